package workspace

import "errors"

var (
	ErrWorkspaceNotFound  = errors.New("workspace not found")
	ErrMemberNotFound     = errors.New("member not found")
	ErrNotAMember         = errors.New("user is not a member of this workspace")
	ErrAlreadyMember      = errors.New("user is already a member of this workspace")
	ErrSlugTaken          = errors.New("workspace slug already taken")
	ErrInvalidRole        = errors.New("invalid workspace role")
	ErrCannotAssignOwner  = errors.New("owner role cannot be assigned")
	ErrCannotChangeOwner  = errors.New("the owner's role cannot be changed")
	ErrCannotRemoveOwner  = errors.New("the owner cannot be removed")
	ErrOwnerCannotLeave   = errors.New("the owner cannot leave the workspace")
	ErrInvalidLogoType    = errors.New("logo must be a png, jpeg or webp image")
	ErrLogoTooLarge       = errors.New("logo exceeds the 2MB limit")
	ErrUnsupportedGateway = errors.New("unsupported payment provider")
)
