package db

import (
	"errors"
	"strings"
)

var (
	ErrNotFound  = errors.New("db: not found")
	ErrConflict  = errors.New("db: conflict")
	ErrInvalid   = errors.New("db: invalid")
	ErrDuplicate = errors.New("db: duplicate")
	ErrInternal  = errors.New("db: internal")
)

func IsNotFound(err error) bool  { return errors.Is(err, ErrNotFound) }
func IsConflict(err error) bool  { return errors.Is(err, ErrConflict) }
func IsInvalid(err error) bool   { return errors.Is(err, ErrInvalid) }
func IsDuplicate(err error) bool { return errors.Is(err, ErrDuplicate) }
func IsInternal(err error) bool  { return errors.Is(err, ErrInternal) }

// IsUniqueViolation reports whether err is a sqlite unique-constraint
// failure. modernc.org/sqlite does not export a stable error type for
// this, so the driver message is matched.
func IsUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
