package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/validator"
)

func TestRegisterRequest_Validate(t *testing.T) {
	valid := RegisterRequest{
		Email:           "ada@example.com",
		Username:        "ada",
		Password:        "correct-horse",
		ConfirmPassword: "correct-horse",
	}
	assert.NoError(t, valid.Validate())

	bad := valid
	bad.Username = "a!"
	bad.ConfirmPassword = "other"
	err := bad.Validate()
	require.Error(t, err)

	fields := err.(validator.ValidationErrors).ToMap()
	assert.Contains(t, fields, "username")
	assert.Contains(t, fields, "confirm_password")
}

func TestRegisterRequest_Normalize(t *testing.T) {
	req := RegisterRequest{Email: "  Ada@Example.COM ", Username: " ada "}
	req.Normalize()
	assert.Equal(t, "ada@example.com", req.Email)
	assert.Equal(t, "ada", req.Username)
}

func TestChangePasswordRequest_Validate(t *testing.T) {
	req := ChangePasswordRequest{OldPassword: "same-password", NewPassword: "same-password", ConfirmPassword: "same-password"}
	err := req.Validate()
	require.Error(t, err)
	assert.Contains(t, err.(validator.ValidationErrors).ToMap(), "new_password")

	req.NewPassword, req.ConfirmPassword = "another-one", "another-one"
	assert.NoError(t, req.Validate())
}

func TestSwitchWorkspaceRequest_Validate(t *testing.T) {
	assert.Error(t, (&SwitchWorkspaceRequest{WorkspaceID: "nope"}).Validate())
	assert.NoError(t, (&SwitchWorkspaceRequest{WorkspaceID: "0190a8f2-54c1-7c3e-9b1a-3f0e4d2a6b7c"}).Validate())
}
