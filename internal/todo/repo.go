package todo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/sundayezeilo/tasklinks/internal/errx"
	"github.com/sundayezeilo/tasklinks/internal/idgen"
	"github.com/sundayezeilo/tasklinks/internal/store"
)

// Repository defines the persistence operations for tasks.
// Missing rows are reported as errx.NotFound.
type Repository interface {
	Create(ctx context.Context, task Task) (Task, error)
	Get(ctx context.Context, id uuid.UUID) (Task, error)
	List(ctx context.Context) ([]Task, error)
	// Update applies the non-nil fields of patch and bumps updated_at in one statement.
	Update(ctx context.Context, id uuid.UUID, patch Patch) (Task, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

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

func mapRepoError(op string, err error) error {
	if store.IsNoRows(err) {
		return errx.E(op, errx.NotFound, errors.New("task not found"))
	}
	return errx.E(op, errx.Unavailable, err)
}
