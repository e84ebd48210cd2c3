package domain

import "errors"

// Common errors
var (
	ErrNotFound           = errors.New("record not found")
	ErrForbidden          = errors.New("access forbidden: you don't own this resource")
	ErrValidation         = errors.New("validation failed")
	ErrStateConflict      = errors.New("request is no longer pending")
	ErrEmailTaken         = errors.New("email is already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNotValidated       = errors.New("trainer account is awaiting admin validation")
)
