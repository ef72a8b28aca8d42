package todo

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
	`CREATE TABLE IF NOT EXISTS tasks (
		id          TEXT PRIMARY KEY,
		title       TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		completed   INTEGER NOT NULL DEFAULT 0,
		created_at  INTEGER NOT NULL,
		updated_at  INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS tasks_created_at_idx ON tasks (created_at)`,
}

const sqliteTaskColumns = `id, title, description, completed, created_at, updated_at`

type sqliteRepository struct {
	db    *sql.DB
	idGen idgen.Generator
	now   func() time.Time
}

// NewSQLiteRepository creates the tasks schema if needed and returns a
// Repository backed by db. Timestamps are stored as Unix microseconds.
func NewSQLiteRepository(ctx context.Context, db *sql.DB, cfg *RepositoryConfig) (Repository, error) {
	const op = "todo.sqlite.Migrate"

	for _, stmt := range sqliteSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, errx.E(op, errx.Unavailable, fmt.Errorf("apply schema: %w", err))
		}
	}

	c := cfg.withDefaults()
	return &sqliteRepository{db: db, idGen: c.IDGen, now: c.Now}, nil
}

func (r *sqliteRepository) Create(ctx context.Context, task Task) (Task, error) {
	const op = "todo.sqlite.Create"

	id, err := r.idGen.Generate()
	if err != nil {
		return Task{}, errx.E(op, errx.Internal, err)
	}
	now := r.now().UTC().Truncate(time.Microsecond)
	task.ID = id
	task.CreatedAt = now
	task.UpdatedAt = now

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO tasks (`+sqliteTaskColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		task.ID.String(), task.Title, task.Description, task.Completed,
		now.UnixMicro(), now.UnixMicro(),
	)
	if err != nil {
		return Task{}, mapRepoError(op, err)
	}
	return task, nil
}

func (r *sqliteRepository) Get(ctx context.Context, id uuid.UUID) (Task, error) {
	const op = "todo.sqlite.Get"

	task, err := scanSQLiteTask(r.db.QueryRowContext(ctx,
		`SELECT `+sqliteTaskColumns+` FROM tasks WHERE id = ?`, id.String()))
	if err != nil {
		return Task{}, mapRepoError(op, err)
	}
	return task, nil
}

func (r *sqliteRepository) List(ctx context.Context) ([]Task, error) {
	const op = "todo.sqlite.List"

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sqliteTaskColumns+` FROM tasks ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, mapRepoError(op, err)
	}
	defer rows.Close()

	tasks := make([]Task, 0)
	for rows.Next() {
		task, err := scanSQLiteTask(rows)
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

func (r *sqliteRepository) Update(ctx context.Context, id uuid.UUID, patch Patch) (Task, error) {
	const op = "todo.sqlite.Update"

	now := r.now().UTC().Truncate(time.Microsecond)
	task, err := scanSQLiteTask(r.db.QueryRowContext(ctx,
		`UPDATE tasks SET
			title       = COALESCE(?, title),
			description = COALESCE(?, description),
			completed   = COALESCE(?, completed),
			updated_at  = ?
		 WHERE id = ?
		 RETURNING `+sqliteTaskColumns,
		patch.Title, patch.Description, patch.Completed, now.UnixMicro(), id.String()))
	if err != nil {
		return Task{}, mapRepoError(op, err)
	}
	return task, nil
}

func (r *sqliteRepository) Delete(ctx context.Context, id uuid.UUID) error {
	const op = "todo.sqlite.Delete"

	res, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id.String())
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteTask(row rowScanner) (Task, error) {
	var (
		task      Task
		id        string
		createdAt int64
		updatedAt int64
	)
	if err := row.Scan(&id, &task.Title, &task.Description, &task.Completed, &createdAt, &updatedAt); err != nil {
		return Task{}, err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return Task{}, fmt.Errorf("corrupt task id %q: %w", id, err)
	}
	task.ID = parsed
	task.CreatedAt = time.UnixMicro(createdAt).UTC()
	task.UpdatedAt = time.UnixMicro(updatedAt).UTC()
	return task, nil
}
