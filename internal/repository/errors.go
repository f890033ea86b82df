package repository

import (
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"example.com/backstage/services/events/internal/errs"
)

// Common repository errors
var (
	ErrNotFound       = errs.NotFound("record not found")
	ErrMissingFilter  = errors.New("refusing to write without a predicate")
	ErrDuplicateWrite = errors.New("duplicate key violation")
)

// wrap maps gorm failures onto the shared taxonomy.
func wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return errs.Storage(ErrDuplicateWrite, message)
	}
	return errs.Storage(err, message)
}
