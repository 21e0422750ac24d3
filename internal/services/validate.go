package services

import (
	"net/mail"
	"regexp"
	"strings"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]{3,64}$`)

const minPasswordLength = 6

func validateUsername(username string) error {
	if !usernamePattern.MatchString(username) {
		return ValidationError("username must be 3-64 characters of letters, digits, '.', '_' or '-'")
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return ValidationError("password must be at least %d characters", minPasswordLength)
	}
	return nil
}

func validateEmail(email string) error {
	if email == "" {
		return nil
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return ValidationError("invalid email address")
	}
	return nil
}

func validateRole(role string) error {
	if role != "admin" && role != "user" {
		return ValidationError("role must be admin or user")
	}
	return nil
}

// clampPage normalizes limit/offset query values
func clampPage(limit, offset int) (int, int) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
