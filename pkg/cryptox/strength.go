package cryptox

import (
	"strings"
	"unicode"
)

// StrengthResult reports the outcome of password strength validation.
// Errors list violated hard requirements; Warnings list soft findings that
// only affect the score.
type StrengthResult struct {
	Valid    bool
	Score    int // 0-100
	Errors   []string
	Warnings []string
}

// MinPasswordScore is the score a password must reach on top of the hard
// character-class rules to be accepted.
const MinPasswordScore = 60

// Common words that show up constantly in weak dealership passwords. Matched
// as case-insensitive substrings.
var weakWords = []string{
	"password",
	"wachtwoord",
	"welcome",
	"welkom",
	"admin",
	"test",
	"letmein",
	"proefrit",
	"dealer",
}

// Keyboard rows used for sequential-run detection.
var keyboardRows = []string{
	"qwertyuiop",
	"asdfghjkl",
	"zxcvbnm",
	"azertyuiop",
}

// ValidatePassword checks a candidate password against the platform policy.
//
// Hard requirements (all must hold): length >= 8, at least one lowercase,
// one uppercase, one digit and one symbol. On top of that the computed score
// must reach MinPasswordScore - the hard rules are necessary but not
// sufficient.
func ValidatePassword(password string) StrengthResult {
	res := StrengthResult{}

	var hasLower, hasUpper, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSymbol = true
		}
	}

	if len(password) < 8 {
		res.Errors = append(res.Errors, "password must be at least 8 characters")
	}
	if !hasLower {
		res.Errors = append(res.Errors, "password must contain a lowercase letter")
	}
	if !hasUpper {
		res.Errors = append(res.Errors, "password must contain an uppercase letter")
	}
	if !hasDigit {
		res.Errors = append(res.Errors, "password must contain a digit")
	}
	if !hasSymbol {
		res.Errors = append(res.Errors, "password must contain a symbol")
	}

	score := 0
	if len(password) >= 8 {
		score += 20
	}
	if len(password) >= 12 {
		score += 10
	}
	if hasLower && hasUpper {
		score += 15
	}
	if hasDigit {
		score += 15
	}
	if hasSymbol {
		score += 15
	}

	lower := strings.ToLower(password)

	if hasLowEntropyPattern(lower) {
		score -= 10
		res.Warnings = append(res.Warnings, "password contains a repeated or sequential pattern")
	}

	for _, word := range weakWords {
		if strings.Contains(lower, word) {
			score -= 5
			res.Warnings = append(res.Warnings, "password contains a common word: "+word)
		}
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	res.Score = score
	res.Valid = len(res.Errors) == 0 && score >= MinPasswordScore
	return res
}

// hasLowEntropyPattern reports repeated characters (4+ in a row) or
// sequential runs of at least 4 (numeric, alphabetic, or keyboard rows).
func hasLowEntropyPattern(lower string) bool {
	runes := []rune(lower)

	repeat := 1
	for i := 1; i < len(runes); i++ {
		if runes[i] == runes[i-1] {
			repeat++
			if repeat >= 4 {
				return true
			}
		} else {
			repeat = 1
		}
	}

	ascending := 1
	for i := 1; i < len(runes); i++ {
		if runes[i] == runes[i-1]+1 {
			ascending++
			if ascending >= 4 {
				return true
			}
		} else {
			ascending = 1
		}
	}

	for _, row := range keyboardRows {
		for i := 0; i+4 <= len(row); i++ {
			if strings.Contains(lower, row[i:i+4]) {
				return true
			}
		}
	}

	return false
}
