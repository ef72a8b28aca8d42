package shortener

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sundayezeilo/tasklinks/internal/errx"
	"github.com/sundayezeilo/tasklinks/internal/idgen"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS links (
		id              TEXT PRIMARY KEY,
		code            TEXT NOT NULL,
		target_url      TEXT NOT NULL,
		visit_count     INTEGER NOT NULL DEFAULT 0 CHECK (visit_count >= 0),
		created_at      INTEGER NOT NULL,
		last_visited_at INTEGER,
		CONSTRAINT links_code_unique UNIQUE (code)
	)`,
	`CREATE INDEX IF NOT EXISTS links_target_url_idx ON links (target_url)`,
	`CREATE INDEX IF NOT EXISTS links_created_at_idx ON links (created_at)`,
}

const sqliteLinkColumns = `id, code, target_url, visit_count, created_at, last_visited_at`

// RepositoryConfig holds dependencies shared by the repository implementations.
type RepositoryConfig struct {
	IDGen idgen.Generator
	Now   func() time.Time
}

func (c *RepositoryConfig) withDefaults() RepositoryConfig {
	out := RepositoryConfig{}
	if c != nil {
		out = *c
	}
	if out.IDGen == nil {
		out.IDGen = idgen.NewV7()
	}
	if out.Now == nil {
		out.Now = time.Now
	}
	return out
}

type sqliteRepository struct {
	db    *sql.DB
	idGen idgen.Generator
	now   func() time.Time
}

// NewSQLiteRepository creates the links schema if needed and returns a
// Repository backed by db. Timestamps are stored as Unix microseconds.
func NewSQLiteRepository(ctx context.Context, db *sql.DB, cfg *RepositoryConfig) (Repository, error) {
	const op = "shortener.sqlite.Migrate"

	for _, stmt := range sqliteSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, errx.E(op, errx.Unavailable, fmt.Errorf("apply schema: %w", err))
		}
	}

	c := cfg.withDefaults()
	return &sqliteRepository{db: db, idGen: c.IDGen, now: c.Now}, nil
}

func (r *sqliteRepository) Create(ctx context.Context, link Link) (Link, error) {
	const op = "shortener.sqlite.Create"

	if link.ID == uuid.Nil {
		id, err := r.idGen.Generate()
		if err != nil {
			return Link{}, errx.E(op, errx.Internal, err)
		}
		link.ID = id
	}
	if link.CreatedAt.IsZero() {
		link.CreatedAt = r.now()
	}
	link.CreatedAt = link.CreatedAt.UTC().Truncate(time.Microsecond)
	link.VisitCount = 0
	link.LastVisitedAt = nil

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO links (id, code, target_url, visit_count, created_at) VALUES (?, ?, ?, 0, ?)`,
		link.ID.String(), link.Code, link.TargetURL, link.CreatedAt.UnixMicro(),
	)
	if err != nil {
		return Link{}, mapRepoError(op, err)
	}
	return link, nil
}

func (r *sqliteRepository) GetByCode(ctx context.Context, code string) (Link, error) {
	const op = "shortener.sqlite.GetByCode"

	row := r.db.QueryRowContext(ctx,
		`SELECT `+sqliteLinkColumns+` FROM links WHERE code = ?`, code)
	link, err := scanSQLiteLink(row)
	if err != nil {
		return Link{}, mapRepoError(op, err)
	}
	return link, nil
}

func (r *sqliteRepository) FindByTargetURL(ctx context.Context, targetURL string) (Link, error) {
	const op = "shortener.sqlite.FindByTargetURL"

	row := r.db.QueryRowContext(ctx,
		`SELECT `+sqliteLinkColumns+` FROM links WHERE target_url = ? ORDER BY created_at ASC, id ASC LIMIT 1`,
		targetURL)
	link, err := scanSQLiteLink(row)
	if err != nil {
		return Link{}, mapRepoError(op, err)
	}
	return link, nil
}

func (r *sqliteRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	const op = "shortener.sqlite.CodeExists"

	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM links WHERE code = ?)`, code).Scan(&exists)
	if err != nil {
		return false, mapRepoError(op, err)
	}
	return exists, nil
}

func (r *sqliteRepository) ResolveAndTrack(ctx context.Context, code string) (Link, error) {
	const op = "shortener.sqlite.ResolveAndTrack"

	at := r.now().UTC().Truncate(time.Microsecond)
	row := r.db.QueryRowContext(ctx,
		`UPDATE links SET visit_count = visit_count + 1, last_visited_at = ?
		 WHERE code = ?
		 RETURNING `+sqliteLinkColumns,
		at.UnixMicro(), code)
	link, err := scanSQLiteLink(row)
	if err != nil {
		return Link{}, mapRepoError(op, err)
	}
	return link, nil
}

func (r *sqliteRepository) List(ctx context.Context) ([]Link, error) {
	const op = "shortener.sqlite.List"

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sqliteLinkColumns+` FROM links ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, mapRepoError(op, err)
	}
	defer rows.Close()

	links := make([]Link, 0)
	for rows.Next() {
		link, err := scanSQLiteLink(rows)
		if err != nil {
			return nil, mapRepoError(op, err)
		}
		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, mapRepoError(op, err)
	}
	return links, nil
}

func (r *sqliteRepository) Delete(ctx context.Context, code string) error {
	const op = "shortener.sqlite.Delete"

	res, err := r.db.ExecContext(ctx, `DELETE FROM links WHERE code = ?`, code)
	if err != nil {
		return mapRepoError(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapRepoError(op, err)
	}
	if n == 0 {
		return mapRepoError(op, sql.ErrNoRows)
	}
	return nil
}

func (r *sqliteRepository) Summary(ctx context.Context) (Summary, error) {
	const op = "shortener.sqlite.Summary"

	var s Summary
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(visit_count), 0) FROM links`).Scan(&s.Links, &s.Visits)
	if err != nil {
		return Summary{}, mapRepoError(op, err)
	}
	return s, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteLink(row rowScanner) (Link, error) {
	var (
		link        Link
		id          string
		createdAt   int64
		lastVisited sql.NullInt64
	)
	if err := row.Scan(&id, &link.Code, &link.TargetURL, &link.VisitCount, &createdAt, &lastVisited); err != nil {
		return Link{}, err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return Link{}, fmt.Errorf("corrupt link id %q: %w", id, err)
	}
	link.ID = parsed
	link.CreatedAt = time.UnixMicro(createdAt).UTC()
	if lastVisited.Valid {
		t := time.UnixMicro(lastVisited.Int64).UTC()
		link.LastVisitedAt = &t
	}
	return link, nil
}
