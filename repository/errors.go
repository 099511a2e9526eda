package repository

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// isUniqueViolation covers both translated gorm errors and raw pgx errors
// from connections opened without TranslateError.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "SQLSTATE 23505")
}
