// Package credentials derives the portal login secret from what is stored
// for a user.
package credentials

import (
	"errors"
	"strings"
)

// SecretDigits is how many leading digits of the national id make up the
// derived secret.
const SecretDigits = 9

var ErrNoSecret = errors.New("national id has too few digits to derive a secret")

type Credentials struct {
	LoginID    string
	NationalID string
	// SecretOverride replaces the derived secret when set.
	SecretOverride string
}

// DeriveSecret returns the portal secret for c. The national id may be
// formatted ("123.456.789-09"), only its digits are used.
func DeriveSecret(c Credentials) (string, error) {
	if c.SecretOverride != "" {
		return c.SecretOverride, nil
	}

	var digits strings.Builder
	for _, r := range c.NationalID {
		if r < '0' || r > '9' {
			continue
		}
		digits.WriteRune(r)
		if digits.Len() == SecretDigits {
			return digits.String(), nil
		}
	}
	return "", ErrNoSecret
}
