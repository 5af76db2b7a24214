package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/auth"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/report"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/handler/http/middleware"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/handler/http/response"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/utils"
)

const (
	defaultPage  = 1
	defaultLimit = 20
	maxLimit     = 100
	maxJSONBody  = 1 << 20
)

// decodeJSON reads a JSON body into dst and writes a 400 on failure
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, op string) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		slog.Error(op+" decode error", "error", err)
		response.BadRequest(w, "Invalid request format", nil)
		return false
	}
	return true
}

// pagination reads page and limit with defaults and the upper bound on limit
func pagination(r *http.Request) (int, int) {
	page := getIntQueryParam(r, "page", defaultPage)
	limit := getIntQueryParam(r, "limit", defaultLimit)
	if page < 1 {
		page = defaultPage
	}
	if limit < 1 || limit > maxLimit {
		limit = defaultLimit
	}
	return page, limit
}

// getIntQueryParam gets an int query parameter with a default value
func getIntQueryParam(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	intVal, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return intVal
}

// getBoolQueryParam gets a bool query parameter with a default value
func getBoolQueryParam(r *http.Request, key string, defaultVal bool) bool {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	return val == "true" || val == "1"
}

func optionalBool(r *http.Request, key string) *bool {
	val := r.URL.Query().Get(key)
	if val == "" {
		return nil
	}
	b := val == "true" || val == "1"
	return &b
}

func optionalString(r *http.Request, key string) *string {
	val := strings.TrimSpace(r.URL.Query().Get(key))
	if val == "" {
		return nil
	}
	return &val
}

// optionalDate parses a YYYY-MM-DD query parameter; ok is false when it is malformed
func optionalDate(r *http.Request, key string) (*time.Time, bool) {
	val := r.URL.Query().Get(key)
	if val == "" {
		return nil, true
	}
	t, err := time.Parse(time.DateOnly, val)
	if err != nil {
		return nil, false
	}
	return &t, true
}

func session(r *http.Request) auth.SessionTrackingRequest {
	return auth.SessionTrackingRequest{
		IPAddress: utils.ClientIP(r),
		UserAgent: r.UserAgent(),
	}
}

// scope returns the workspace and user of an authenticated request
func scope(r *http.Request) (workspaceID, userID string) {
	if m, ok := middleware.MemberFromContext(r.Context()); ok {
		return m.WorkspaceID, m.UserID
	}
	return middleware.WorkspaceID(r.Context()), middleware.UserID(r.Context())
}

// dateRange reads preset, start_date and end_date into a report range
func dateRange(r *http.Request) (report.DateRange, error) {
	q := r.URL.Query()
	return report.Resolve(q.Get("preset"), q.Get("start_date"), q.Get("end_date"), time.Now())
}
