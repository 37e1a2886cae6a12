package main

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Postgres SQLSTATE codes.
const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

var (
	ErrNotFound       = errors.New("database: not found")
	ErrConflict       = errors.New("database: duplicated entry")
	ErrUnknownAccount = errors.New("database: unknown account")
)

// classifyError maps driver specific constraint failures onto the package
// sentinels. The original error stays in the chain.
func classifyError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return &storeError{kind: ErrNotFound, err: err}
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return classifyCode(string(pqErr.Code), err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return classifyCode(pgErr.Code, err)
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return &storeError{kind: ErrConflict, err: err}
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return &storeError{kind: ErrUnknownAccount, err: err}
		}

		if liteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
			msg := liteErr.Error()
			switch {
			case strings.Contains(msg, "UNIQUE"):
				return &storeError{kind: ErrConflict, err: err}
			case strings.Contains(msg, "FOREIGN KEY"):
				return &storeError{kind: ErrUnknownAccount, err: err}
			}
		}
	}

	return err
}

func classifyCode(code string, err error) error {
	switch code {
	case uniqueViolation:
		return &storeError{kind: ErrConflict, err: err}
	case foreignKeyViolation:
		return &storeError{kind: ErrUnknownAccount, err: err}
	default:
		return err
	}
}

type storeError struct {
	kind error
	err  error
}

func (e *storeError) Error() string {
	return e.kind.Error() + ": " + e.err.Error()
}

func (e *storeError) Is(target error) bool {
	return target == e.kind
}

func (e *storeError) Unwrap() error {
	return e.err
}
