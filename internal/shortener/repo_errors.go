package shortener

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sundayezeilo/tasklinks/internal/errx"
	"github.com/sundayezeilo/tasklinks/internal/store"
)

const codeUniqueConstraint = "links_code_unique"

func isCodeUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == codeUniqueConstraint
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE &&
			strings.Contains(liteErr.Error(), "links.code")
	}
	return false
}

func mapRepoError(op string, err error) error {
	switch {
	case store.IsNoRows(err):
		return errx.E(op, errx.NotFound, errors.New("link not found"))

	case isCodeUniqueViolation(err):
		return errx.E(op, errx.Conflict, err)

	default:
		return errx.E(op, errx.Unavailable, err)
	}
}
