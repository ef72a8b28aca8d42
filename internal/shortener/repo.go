package shortener

import "context"

// Repository defines the persistence operations for Link entities.
// Implementations report missing rows as errx.NotFound and duplicate codes
// as errx.Conflict.
type Repository interface {
	Create(ctx context.Context, link Link) (Link, error)
	GetByCode(ctx context.Context, code string) (Link, error)
	// FindByTargetURL returns the oldest link pointing at targetURL.
	FindByTargetURL(ctx context.Context, targetURL string) (Link, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	// ResolveAndTrack increments the visit counter in a single statement
	// and returns the updated link.
	ResolveAndTrack(ctx context.Context, code string) (Link, error)
	List(ctx context.Context) ([]Link, error)
	Delete(ctx context.Context, code string) error
	Summary(ctx context.Context) (Summary, error)
}
