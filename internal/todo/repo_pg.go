package todo

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
	`CREATE TABLE IF NOT EXISTS tasks (
		id          UUID PRIMARY KEY,
		title       TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		completed   BOOLEAN NOT NULL DEFAULT FALSE,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS tasks_created_at_idx ON tasks (created_at)`,
}

const pgTaskColumns = `id, title, description, completed, created_at, updated_at`

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

// NewPostgresRepository creates the tasks schema if needed and returns a
// Repository backed by q.
func NewPostgresRepository(ctx context.Context, q PGQuerier, cfg *RepositoryConfig) (Repository, error) {
	const op = "todo.pg.Migrate"

	for _, stmt := range pgSchema {
		if _, err := q.Exec(ctx, stmt); err != nil {
			return nil, errx.E(op, errx.Unavailable, fmt.Errorf("apply schema: %w", err))
		}
	}

	c := cfg.withDefaults()
	return &pgRepository{q: q, idGen: c.IDGen, now: c.Now}, nil
}

func (r *pgRepository) Create(ctx context.Context, task Task) (Task, error) {
	const op = "todo.pg.Create"

	id, err := r.idGen.Generate()
	if err != nil {
		return Task{}, errx.E(op, errx.Internal, err)
	}
	now := r.now().UTC()

	created, err := scanPGTask(r.q.QueryRow(ctx,
		`INSERT INTO tasks (`+pgTaskColumns+`) VALUES ($1, $2, $3, $4, $5, $5)
		 RETURNING `+pgTaskColumns,
		id, task.Title, task.Description, task.Completed, now))
	if err != nil {
		return Task{}, mapRepoError(op, err)
	}
	return created, nil
}

func (r *pgRepository) Get(ctx context.Context, id uuid.UUID) (Task, error) {
	const op = "todo.pg.Get"

	task, err := scanPGTask(r.q.QueryRow(ctx,
		`SELECT `+pgTaskColumns+` FROM tasks WHERE id = $1`, id))
	if err != nil {
		return Task{}, mapRepoError(op, err)
	}
	return task, nil
}

func (r *pgRepository) List(ctx context.Context) ([]Task, error) {
	const op = "todo.pg.List"

	rows, err := r.q.Query(ctx,
		`SELECT `+pgTaskColumns+` FROM tasks ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, mapRepoError(op, err)
	}
	defer rows.Close()

	tasks := make([]Task, 0)
	for rows.Next() {
		task, err := scanPGTask(rows)
		if err != nil {
			return nil, mapRepoError(op, err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, mapRepoError(op, err)
	}
	return tasks, nil
}

func (r *pgRepository) Update(ctx context.Context, id uuid.UUID, patch Patch) (Task, error) {
	const op = "todo.pg.Update"

	task, err := scanPGTask(r.q.QueryRow(ctx,
		`UPDATE tasks SET
			title       = COALESCE($2::TEXT, title),
			description = COALESCE($3::TEXT, description),
			completed   = COALESCE($4::BOOLEAN, completed),
			updated_at  = $5
		 WHERE id = $1
		 RETURNING `+pgTaskColumns,
		id, patch.Title, patch.Description, patch.Completed, r.now().UTC()))
	if err != nil {
		return Task{}, mapRepoError(op, err)
	}
	return task, nil
}

func (r *pgRepository) Delete(ctx context.Context, id uuid.UUID) error {
	const op = "todo.pg.Delete"

	tag, err := r.q.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return mapRepoError(op, err)
	}
	if tag.RowsAffected() == 0 {
		return mapRepoError(op, pgx.ErrNoRows)
	}
	return nil
}

func scanPGTask(row pgx.Row) (Task, error) {
	var task Task
	if err := row.Scan(&task.ID, &task.Title, &task.Description, &task.Completed, &task.CreatedAt, &task.UpdatedAt); err != nil {
		return Task{}, err
	}
	task.CreatedAt = task.CreatedAt.UTC()
	task.UpdatedAt = task.UpdatedAt.UTC()
	return task, nil
}
