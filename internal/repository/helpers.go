package repository

import (
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// HandleNotFound maps sql.ErrNoRows from a Get query to a nil row, so Find*
// methods report a missing row without an error.
func HandleNotFound[T any](result *T, err error) (*T, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// jsonText converts raw JSON into a string parameter. lib/pq sends []byte as
// bytea, which jsonb columns reject.
func jsonText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "{}"
	}
	return string(raw)
}

// IsUniqueViolation reports whether err is a Postgres unique constraint failure.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
