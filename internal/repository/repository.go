// Package repository is the canonical store: sqlx repositories over
// SQLite, one per aggregate. All writes are upserts keyed by the
// canonical identities so concurrent runs converge instead of racing.
package repository

import (
	"database/sql"
	"errors"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
