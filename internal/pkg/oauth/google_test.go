package oauth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/config"
)

func newTestService(t *testing.T, verified bool) *GoogleServiceImpl {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/token":
			_, _ = w.Write([]byte(`{"access_token":"at","token_type":"Bearer","expires_in":3600}`))
		case "/userinfo":
			assert.Equal(t, "Bearer at", r.Header.Get("Authorization"))
			if verified {
				_, _ = w.Write([]byte(`{"id":"g-123","email":"ada@example.com","verified_email":true,"given_name":"Ada"}`))
				return
			}
			_, _ = w.Write([]byte(`{"id":"g-123","email":"ada@example.com","verified_email":false}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	return &GoogleServiceImpl{
		config: &oauth2.Config{
			ClientID:     "client",
			ClientSecret: "secret",
			Endpoint:     oauth2.Endpoint{AuthURL: srv.URL + "/auth", TokenURL: srv.URL + "/token"},
		},
		userInfoURL: srv.URL + "/userinfo",
	}
}

func TestGoogleService_Exchange(t *testing.T) {
	g := newTestService(t, true)
	info, err := g.Exchange(context.Background(), "code")
	require.NoError(t, err)
	assert.Equal(t, "g-123", info.GoogleID)
	assert.Equal(t, "Ada", info.GivenName)

	_, err = newTestService(t, false).Exchange(context.Background(), "code")
	assert.ErrorIs(t, err, ErrEmailNotVerified)
}

func TestGoogleService_State(t *testing.T) {
	g := NewGoogleService(config.OAuth2GoogleConfig{ClientID: "id", ClientSecret: "s", RedirectURL: "http://localhost/cb"})
	assert.True(t, g.Enabled())

	a, err := g.GenerateState()
	require.NoError(t, err)
	b, _ := g.GenerateState()
	assert.NotEqual(t, a, b)
	assert.True(t, strings.Contains(g.RedirectURL(a), "state="+a))

	assert.False(t, NewGoogleService(config.OAuth2GoogleConfig{}).Enabled())
}
