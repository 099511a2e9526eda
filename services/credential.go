package services

import (
	"fmt"

	"github.com/Maddyahamco00/Nigeria-bece-sub000/apperrors"
	"golang.org/x/crypto/bcrypt"
)

const minCredentialLength = 6

// HashCredential hashes a candidate's chosen password. Callers invoke it
// explicitly before persisting intake; plaintext never reaches the store or
// the gateway.
func HashCredential(plaintext string) (string, error) {
	if len(plaintext) < minCredentialLength {
		return "", fmt.Errorf("password must be at least %d characters: %w", minCredentialLength, apperrors.ErrInvalidInput)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash credential: %w", err)
	}
	return string(hashed), nil
}

func CheckCredential(hash, plaintext string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
