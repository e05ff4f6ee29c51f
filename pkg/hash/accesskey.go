package hash

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 12

// Hash hashes a device access key for storage.
func Hash(accessKey string) (string, error) {
	if len(accessKey) < 8 {
		return "", fmt.Errorf("access key must be at least 8 characters")
	}

	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(accessKey), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash access key: %w", err)
	}

	return string(hashedBytes), nil
}

func Compare(hashedKey, accessKey string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedKey), []byte(accessKey))
}
