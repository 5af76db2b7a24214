package reminder

import "errors"

var (
	ErrRuleNotFound  = errors.New("reminder rule not found")
	ErrAlreadyLogged = errors.New("reminder already sent today")
)
