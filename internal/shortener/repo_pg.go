package shortener

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sundayezeilo/tasklinks/internal/errx"
	"github.com/sundayezeilo/tasklinks/internal/idgen"
)

var pgSchema = []string{
	`CREATE TABLE IF NOT EXISTS links (
		id              UUID PRIMARY KEY,
		code            TEXT NOT NULL,
		target_url      TEXT NOT NULL,
		visit_count     BIGINT NOT NULL DEFAULT 0 CHECK (visit_count >= 0),
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
		last_visited_at TIMESTAMPTZ,
		CONSTRAINT links_code_unique UNIQUE (code)
	)`,
	`CREATE INDEX IF NOT EXISTS links_target_url_idx ON links (target_url)`,
	`CREATE INDEX IF NOT EXISTS links_created_at_idx ON links (created_at)`,
}

const pgLinkColumns = `id, code, target_url, visit_count, created_at, last_visited_at`

// PGQuerier is the subset of pgxpool.Pool and pgx.Tx used by the repository.
type PGQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type pgRepository struct {
	q     PGQuerier
	idGen idgen.Generator
	now   func() time.Time
}

// NewPostgresRepository creates the links schema if needed and returns a
// Repository backed by q.
func NewPostgresRepository(ctx context.Context, q PGQuerier, cfg *RepositoryConfig) (Repository, error) {
	const op = "shortener.pg.Migrate"

	for _, stmt := range pgSchema {
		if _, err := q.Exec(ctx, stmt); err != nil {
			return nil, errx.E(op, errx.Unavailable, fmt.Errorf("apply schema: %w", err))
		}
	}

	c := cfg.withDefaults()
	return &pgRepository{q: q, idGen: c.IDGen, now: c.Now}, nil
}

func (r *pgRepository) Create(ctx context.Context, link Link) (Link, error) {
	const op = "shortener.pg.Create"

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

	row := r.q.QueryRow(ctx,
		`INSERT INTO links (id, code, target_url, created_at) VALUES ($1, $2, $3, $4)
		 RETURNING `+pgLinkColumns,
		link.ID, link.Code, link.TargetURL, link.CreatedAt.UTC(),
	)
	created, err := scanPGLink(row)
	if err != nil {
		return Link{}, mapRepoError(op, err)
	}
	return created, nil
}

func (r *pgRepository) GetByCode(ctx context.Context, code string) (Link, error) {
	const op = "shortener.pg.GetByCode"

	link, err := scanPGLink(r.q.QueryRow(ctx,
		`SELECT `+pgLinkColumns+` FROM links WHERE code = $1`, code))
	if err != nil {
		return Link{}, mapRepoError(op, err)
	}
	return link, nil
}

func (r *pgRepository) FindByTargetURL(ctx context.Context, targetURL string) (Link, error) {
	const op = "shortener.pg.FindByTargetURL"

	link, err := scanPGLink(r.q.QueryRow(ctx,
		`SELECT `+pgLinkColumns+` FROM links WHERE target_url = $1 ORDER BY created_at ASC, id ASC LIMIT 1`,
		targetURL))
	if err != nil {
		return Link{}, mapRepoError(op, err)
	}
	return link, nil
}

func (r *pgRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	const op = "shortener.pg.CodeExists"

	var exists bool
	if err := r.q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM links WHERE code = $1)`, code).Scan(&exists); err != nil {
		return false, mapRepoError(op, err)
	}
	return exists, nil
}

func (r *pgRepository) ResolveAndTrack(ctx context.Context, code string) (Link, error) {
	const op = "shortener.pg.ResolveAndTrack"

	link, err := scanPGLink(r.q.QueryRow(ctx,
		`UPDATE links SET visit_count = visit_count + 1, last_visited_at = $2
		 WHERE code = $1
		 RETURNING `+pgLinkColumns,
		code, r.now().UTC()))
	if err != nil {
		return Link{}, mapRepoError(op, err)
	}
	return link, nil
}

func (r *pgRepository) List(ctx context.Context) ([]Link, error) {
	const op = "shortener.pg.List"

	rows, err := r.q.Query(ctx,
		`SELECT `+pgLinkColumns+` FROM links ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, mapRepoError(op, err)
	}
	defer rows.Close()

	links := make([]Link, 0)
	for rows.Next() {
		link, err := scanPGLink(rows)
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

func (r *pgRepository) Delete(ctx context.Context, code string) error {
	const op = "shortener.pg.Delete"

	tag, err := r.q.Exec(ctx, `DELETE FROM links WHERE code = $1`, code)
	if err != nil {
		return mapRepoError(op, err)
	}
	if tag.RowsAffected() == 0 {
		return mapRepoError(op, pgx.ErrNoRows)
	}
	return nil
}

func (r *pgRepository) Summary(ctx context.Context) (Summary, error) {
	const op = "shortener.pg.Summary"

	var s Summary
	if err := r.q.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(SUM(visit_count), 0)::BIGINT FROM links`).Scan(&s.Links, &s.Visits); err != nil {
		return Summary{}, mapRepoError(op, err)
	}
	return s, nil
}

func scanPGLink(row pgx.Row) (Link, error) {
	var (
		link        Link
		lastVisited *time.Time
	)
	if err := row.Scan(&link.ID, &link.Code, &link.TargetURL, &link.VisitCount, &link.CreatedAt, &lastVisited); err != nil {
		return Link{}, err
	}
	link.CreatedAt = link.CreatedAt.UTC()
	if lastVisited != nil {
		t := lastVisited.UTC()
		link.LastVisitedAt = &t
	}
	return link, nil
}
