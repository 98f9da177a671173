package hash

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 12

func Hash(pin string) (string, error) {
	if len(pin) < 4 {
		return "", fmt.Errorf("pin must be at least 4 characters")
	}

	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(pin), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash pin: %w", err)
	}

	return string(hashedBytes), nil
}

func Compare(hashedPIN, pin string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPIN), []byte(pin))
}
