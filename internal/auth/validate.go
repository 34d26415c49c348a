// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Contributors

package auth

import "regexp"

// Password strength constraints.
const MinPasswordLength = 8

// emailRegex matches addresses of the local@domain.tld shape:
// word, dot, and dash characters on both sides of the @, finished by a
// dot-separated alphabetic label of at least two characters.
var emailRegex = regexp.MustCompile(`^[\w.-]+@[\w.-]+\.[a-zA-Z]{2,}$`)

// Password character class checks. Length is checked separately so the
// rules stay independently testable.
var (
	lowerRegex = regexp.MustCompile(`[a-z]`)
	upperRegex = regexp.MustCompile(`[A-Z]`)
	digitRegex = regexp.MustCompile(`[0-9]`)
)

// ValidateEmail reports whether s has a plausible email shape.
// Pure and deterministic; no side effects.
func ValidateEmail(s string) bool {
	return emailRegex.MatchString(s)
}

// ValidatePassword reports whether s meets the strength rules: at least
// MinPasswordLength characters with one lowercase letter, one uppercase
// letter, and one digit.
func ValidatePassword(s string) bool {
	if len(s) < MinPasswordLength {
		return false
	}
	return lowerRegex.MatchString(s) &&
		upperRegex.MatchString(s) &&
		digitRegex.MatchString(s)
}
