// Package policy holds the account input rules shared by the identity
// service and the client.
package policy

import (
	"regexp"
	"strings"
	"unicode"

	"ecotrack/internal/apperrors"
)

const (
	minPasswordLen   = 6
	specialCharacter = `!@#$%^&*(),.?":{}|<>`
)

var (
	emailPattern    = regexp.MustCompile(`^\S+@\S+\.\S+$`)
	photoURLPattern = regexp.MustCompile(`(?i)^https?://.+\.(jpg|jpeg|png|gif|webp)$`)
)

// NormalizeEmail trims surrounding space. Lookups compare emails
// case-insensitively, so the stored casing is the one the user typed.
func NormalizeEmail(email string) string {
	return strings.TrimSpace(email)
}

// ValidateEmail rejects addresses that are not shaped like name@host.tld.
func ValidateEmail(email string) error {
	email = NormalizeEmail(email)
	if email == "" {
		return apperrors.New(apperrors.CodeInvalidCredentialsFormat, "email is required")
	}
	if !emailPattern.MatchString(email) {
		return apperrors.New(apperrors.CodeInvalidCredentialsFormat, "email is invalid")
	}
	return nil
}

// ValidatePassword enforces the account password rules and reports the
// first rule the password breaks.
func ValidatePassword(password string) error {
	if password == "" {
		return apperrors.New(apperrors.CodeInvalidCredentialsFormat, "password is required")
	}
	if len([]rune(password)) < minPasswordLen {
		return apperrors.New(apperrors.CodeWeakPassword, "password must be at least 6 characters long")
	}
	var upper, lower, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case strings.ContainsRune(specialCharacter, r):
			special = true
		}
	}
	if !upper {
		return apperrors.New(apperrors.CodeWeakPassword, "password must contain at least one uppercase letter")
	}
	if !lower {
		return apperrors.New(apperrors.CodeWeakPassword, "password must contain at least one lowercase letter")
	}
	if !special {
		return apperrors.New(apperrors.CodeWeakPassword, "password must contain at least one special character")
	}
	return nil
}

// ValidatePhotoURL accepts an empty value or an http(s) image URL.
func ValidatePhotoURL(photoURL string) error {
	photoURL = strings.TrimSpace(photoURL)
	if photoURL == "" {
		return nil
	}
	if !photoURLPattern.MatchString(photoURL) {
		return apperrors.New(apperrors.CodeInvalidCredentialsFormat, "photo URL must be an http(s) image URL")
	}
	return nil
}
