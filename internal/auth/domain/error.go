package domain

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidSession     = errors.New("invalid session")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrSessionNotFound    = errors.New("session not found")

	ErrInvalidUsername  = errors.New("invalid_username")
	ErrInvalidEmail     = errors.New("invalid_email")
	ErrInvalidPassword  = errors.New("invalid_password")
	ErrInvalidFullName  = errors.New("invalid_full_name")
	ErrInvalidRole      = errors.New("invalid_role")
	ErrInvalidUserID    = errors.New("invalid_user_id")
	ErrCannotModifySelf = errors.New("invalid_self_modification")
)
