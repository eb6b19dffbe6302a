package utils

import (
	"regexp"
	"strings"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func IsValidEmail(email string) bool {
	return emailRegex.MatchString(email)
}

// NormalizeSpace trims s and collapses inner whitespace runs to one space.
func NormalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
