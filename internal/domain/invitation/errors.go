package invitation

import "errors"

var (
	ErrInvitationNotFound    = errors.New("invitation not found")
	ErrInvitationExpired     = errors.New("invitation has expired")
	ErrInvitationAlreadyUsed = errors.New("invitation has already been used")
	ErrInvitationRevoked     = errors.New("invitation has been revoked")
	ErrEmailMismatch         = errors.New("your email does not match the invitation email")
	ErrCannotRevokeAccepted  = errors.New("cannot revoke an accepted invitation")
	ErrNotPending            = errors.New("invitation is no longer pending")
	ErrInviteOwnerRole       = errors.New("owner role cannot be invited")
)
