package console

import "errors"

var (
	ErrUnknownDomain        = errors.New("unknown domain")
	ErrRecordNotFound       = errors.New("record not found")
	ErrConfirmationNotFound = errors.New("confirmation not found")
	ErrConfirmationExpired  = errors.New("confirmation expired")
	ErrNotRemovable         = errors.New("records of this type cannot be removed")
	ErrNotOrdered           = errors.New("records of this type have no ordering")
	ErrSuperseded           = errors.New("load superseded by a newer request")
)
