package intake

import "errors"

var (
	ErrDraftNotFound = errors.New("no intake draft")
	ErrDraftExpired  = errors.New("intake draft expired")
	ErrValidation    = errors.New("invalid intake step")
)
