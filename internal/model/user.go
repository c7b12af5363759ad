package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// User is an account in the account directory.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// Roles.
const (
	RoleDonor     = "donor"
	RoleRecipient = "recipient"
)

// MinPasswordLen is the shortest accepted password.
const MinPasswordLen = 8

var (
	ErrInvalidRole      = errors.New("role must be donor or recipient")
	ErrPasswordTooShort = fmt.Errorf("password must be at least %d characters", MinPasswordLen)
	ErrInvalidUsername  = fmt.Errorf("username must be 1-%d characters without commas or whitespace", MaxUsernameLen)
)

// ValidRole reports whether role is a known role.
func ValidRole(role string) bool {
	return role == RoleDonor || role == RoleRecipient
}

// ValidatePassword checks the password length.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLen {
		return ErrPasswordTooShort
	}
	return nil
}

// ValidateUsername checks that a username can be stored in the record files.
func ValidateUsername(username string) error {
	if username == "" || len(username) > MaxUsernameLen {
		return ErrInvalidUsername
	}
	if strings.ContainsAny(username, ", \t\r\n") {
		return ErrInvalidUsername
	}
	return nil
}
