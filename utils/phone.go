package utils

import (
	"errors"
	"strings"
)

const countryCode = "254"

var ErrInvalidPhone = errors.New("please enter a valid Safaricom phone number")

// NormalizePhone reduces the accepted Kenyan mobile forms (0712345678, 712345678,
// 254712345678, +254712345678) to 2547XXXXXXXX / 2541XXXXXXXX. Spaces, dashes and
// parentheses are ignored; any other character rejects the number.
func NormalizePhone(raw string) (string, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "+")

	var digits strings.Builder
	for _, r := range cleaned {
		switch {
		case r >= '0' && r <= '9':
			digits.WriteRune(r)
		case r == ' ' || r == '-' || r == '(' || r == ')':
		default:
			return "", ErrInvalidPhone
		}
	}

	d := digits.String()
	var subscriber string
	switch {
	case len(d) == 10 && strings.HasPrefix(d, "0"):
		subscriber = d[1:]
	case len(d) == 9:
		subscriber = d
	case len(d) == 12 && strings.HasPrefix(d, countryCode):
		subscriber = d[3:]
	default:
		return "", ErrInvalidPhone
	}

	if subscriber[0] != '7' && subscriber[0] != '1' {
		return "", ErrInvalidPhone
	}
	return countryCode + subscriber, nil
}
