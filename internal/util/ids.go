package util

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const runIDAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewRunID returns a lower case 16 character id for a matching run.
func NewRunID() (string, error) {
	id, err := gonanoid.Generate(runIDAlphabet, 16)
	if err != nil {
		return "", fmt.Errorf("failed to generate run id: %w", err)
	}
	return id, nil
}

// IsRunID reports whether s has the shape produced by NewRunID.
func IsRunID(s string) bool {
	if len(s) != 16 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'z') {
			return false
		}
	}
	return true
}
