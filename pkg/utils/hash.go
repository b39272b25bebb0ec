package utils

import (
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// bcryptPrefixes are the hash version markers an operator may hand us instead
// of a plaintext password.
var bcryptPrefixes = []string{"$2a$", "$2b$", "$2y$"}

// HashOrRead returns the bcrypt hash of password. A value that already looks
// like a bcrypt hash passes through unchanged, so config can carry either
// form.
func HashOrRead(password string) ([]byte, error) {
	for _, p := range bcryptPrefixes {
		if strings.HasPrefix(password, p) {
			return []byte(password), nil
		}
	}
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
}
