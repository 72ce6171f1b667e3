package model

import "errors"

var (
	// Account related errors
	ErrAlreadyRegistered  = errors.New("identity already registered")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// File related errors
	ErrFileNotFound = errors.New("file not found")
	ErrFileExists   = errors.New("file reference already exists")

	// Permission related errors
	ErrUnauthorized = errors.New("unauthorized")

	// Infrastructure errors
	ErrStoreUnavailable = errors.New("store unavailable")

	// Generic errors
	ErrInvalidInput = errors.New("invalid input")
)
