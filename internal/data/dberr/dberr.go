// Package dberr maps driver errors onto a small set of sentinels so services
// can branch without importing a driver.
package dberr

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	ErrNotFound   = errors.New("record not found")
	ErrConflict   = errors.New("unique constraint violated")
	ErrForeignKey = errors.New("foreign key constraint violated")
	ErrNotNull    = errors.New("not null constraint violated")
	ErrRetryable  = errors.New("transient database failure")
)

// Classify returns err wrapped with the matching sentinel, or err unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if sentinel := sentinelFor(err); sentinel != nil && !errors.Is(err, sentinel) {
		return errors.Join(sentinel, err)
	}
	return err
}

func sentinelFor(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrConflict
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return ErrForeignKey
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrRetryable
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch strings.TrimSpace(pgErr.Code) {
		case "23505":
			return ErrConflict // unique_violation
		case "23503":
			return ErrForeignKey // foreign_key_violation
		case "23502":
			return ErrNotNull // not_null_violation
		case "40001", "40P01", "55P03":
			return ErrRetryable // serialization/deadlock/lock_not_available
		}
		return nil
	}

	// sqlite and wrapped drivers only expose text
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "duplicate key"), strings.Contains(msg, "unique constraint failed"):
		return ErrConflict
	case strings.Contains(msg, "foreign key constraint failed"):
		return ErrForeignKey
	case strings.Contains(msg, "not null constraint failed"):
		return ErrNotNull
	case strings.Contains(msg, "deadlock"), strings.Contains(msg, "database is locked"):
		return ErrRetryable
	}
	return nil
}
