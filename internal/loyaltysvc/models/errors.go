package models

import "errors"

// Domain errors. Stores and services wrap these; handlers match them with errors.Is.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrConflict          = errors.New("conflict with current state")
	ErrCardNotRedeemable = errors.New("card is not completed")
)
