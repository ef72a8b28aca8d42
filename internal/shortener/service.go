package shortener

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/sundayezeilo/tasklinks/internal/errx"
	"github.com/sundayezeilo/tasklinks/sluggen"
)

const (
	DefaultCodeLength      = 6
	DefaultCodeMaxAttempts = 5
	MinCodeLength          = 4
	MaxCodeLength          = 64
	MaxURLLength           = 2048
)

// CreateLinkRequest represents the parameters for creating a new link.
type CreateLinkRequest struct {
	TargetURL string
}

// CreateResult is the outcome of Create. Existing is set when deduplication
// returned a link that was already stored for the same target.
type CreateResult struct {
	Link     Link
	Existing bool
}

// Service defines the business logic operations for URL shortening.
type Service interface {
	Create(ctx context.Context, req CreateLinkRequest) (CreateResult, error)
	// Resolve returns the target URL and counts the visit.
	Resolve(ctx context.Context, code string) (string, error)
	// Stats returns the link without counting a visit.
	Stats(ctx context.Context, code string) (Link, error)
	List(ctx context.Context) ([]Link, error)
	Delete(ctx context.Context, code string) error
	Summary(ctx context.Context) (Summary, error)
}

type service struct {
	repo            Repository
	codeGenerator   sluggen.Generator
	codeLength      int
	codeMaxAttempts int
	dedupe          bool
	metrics         *Metrics
}

// ServiceConfig holds configuration for the service.
type ServiceConfig struct {
	CodeGenerator   sluggen.Generator
	CodeLength      int
	CodeMaxAttempts int // existence checks per Create, shared with insert conflicts (default: 5)
	DedupeTargets   bool
	Metrics         *Metrics
}

// NewService creates a new service instance.
func NewService(repo Repository, config *ServiceConfig) Service {
	if config == nil {
		config = &ServiceConfig{}
	}

	gen := config.CodeGenerator
	if gen == nil {
		gen = sluggen.NewBase62()
	}

	length := config.CodeLength
	if length < MinCodeLength || length > MaxCodeLength {
		length = DefaultCodeLength
	}

	attempts := config.CodeMaxAttempts
	if attempts <= 0 {
		attempts = DefaultCodeMaxAttempts
	}

	return &service{
		repo:            repo,
		codeGenerator:   gen,
		codeLength:      length,
		codeMaxAttempts: attempts,
		dedupe:          config.DedupeTargets,
		metrics:         config.Metrics,
	}
}

// Create validates the target URL and stores it under a freshly generated code.
func (s *service) Create(ctx context.Context, req CreateLinkRequest) (CreateResult, error) {
	const op = "shortener.service.Create"

	target := strings.TrimSpace(req.TargetURL)
	if msg := validateURL(target); msg != "" {
		return CreateResult{}, errx.Field(op, "target_url", msg)
	}

	if s.dedupe {
		existing, err := s.repo.FindByTargetURL(ctx, target)
		switch {
		case err == nil:
			return CreateResult{Link: existing, Existing: true}, nil
		case errx.KindOf(err) != errx.NotFound:
			return CreateResult{}, errx.E(op, errx.KindOf(err), err)
		}
	}

	remaining := s.codeMaxAttempts
	for remaining > 0 {
		checks := 0
		exists := func(ctx context.Context, code string) (bool, error) {
			checks++
			taken, err := s.repo.CodeExists(ctx, code)
			if taken {
				s.metrics.collision()
			}
			return taken, err
		}

		code, err := sluggen.Unique(ctx, s.codeGenerator, s.codeLength, remaining, exists)
		remaining -= checks
		if errors.Is(err, sluggen.ErrExhausted) {
			break
		}
		if err != nil {
			return CreateResult{}, errx.E(op, generationKind(err), err)
		}

		created, err := s.repo.Create(ctx, Link{Code: code, TargetURL: target})
		if err == nil {
			s.metrics.created()
			return CreateResult{Link: created}, nil
		}
		if errx.KindOf(err) != errx.Conflict {
			return CreateResult{}, errx.E(op, errx.KindOf(err), err)
		}
		// Another writer took the code between the check and the insert.
		s.metrics.collision()
	}

	s.metrics.exhausted()
	return CreateResult{}, errx.E(op, errx.Exhausted,
		fmt.Errorf("%w (%d attempts, length %d)", sluggen.ErrExhausted, s.codeMaxAttempts, s.codeLength))
}

func (s *service) Resolve(ctx context.Context, code string) (string, error) {
	const op = "shortener.service.Resolve"

	if err := checkCode(op, code); err != nil {
		s.metrics.resolved(err)
		return "", err
	}

	link, err := s.repo.ResolveAndTrack(ctx, code)
	if err != nil {
		err = errx.E(op, errx.KindOf(err), err)
		s.metrics.resolved(err)
		return "", err
	}
	s.metrics.resolved(nil)
	return link.TargetURL, nil
}

func (s *service) Stats(ctx context.Context, code string) (Link, error) {
	const op = "shortener.service.Stats"

	if err := checkCode(op, code); err != nil {
		return Link{}, err
	}

	link, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return Link{}, errx.E(op, errx.KindOf(err), err)
	}
	return link, nil
}

func (s *service) List(ctx context.Context) ([]Link, error) {
	const op = "shortener.service.List"

	links, err := s.repo.List(ctx)
	if err != nil {
		return nil, errx.E(op, errx.KindOf(err), err)
	}
	return links, nil
}

func (s *service) Delete(ctx context.Context, code string) error {
	const op = "shortener.service.Delete"

	if err := checkCode(op, code); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, code); err != nil {
		return errx.E(op, errx.KindOf(err), err)
	}
	return nil
}

func (s *service) Summary(ctx context.Context) (Summary, error) {
	const op = "shortener.service.Summary"

	sum, err := s.repo.Summary(ctx)
	if err != nil {
		return Summary{}, errx.E(op, errx.KindOf(err), err)
	}
	return sum, nil
}

// checkCode rejects empty or oversized codes as invalid. Codes outside the
// base62 alphabet could never have been generated, so they are reported as
// not found without a store round trip.
func checkCode(op, code string) error {
	if code == "" {
		return errx.Field(op, "code", "code cannot be empty")
	}
	if len(code) > MaxCodeLength {
		return errx.Field(op, "code", fmt.Sprintf("code too long (max %d characters)", MaxCodeLength))
	}
	if !sluggen.IsBase62(code) {
		return errx.E(op, errx.NotFound, errors.New("link not found"))
	}
	return nil
}

// generationKind classifies a non-exhaustion failure from sluggen.Unique:
// store errors keep their kind, context errors are unavailable, the rest internal.
func generationKind(err error) errx.Kind {
	if kind := errx.KindOf(err); kind != errx.Unknown {
		return kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return errx.Unavailable
	}
	return errx.Internal
}

// validateURL returns a client-facing message, or "" when rawURL is acceptable.
func validateURL(rawURL string) string {
	if rawURL == "" {
		return "target_url is required"
	}
	if len(rawURL) > MaxURLLength {
		return fmt.Sprintf("target_url too long (max %d characters)", MaxURLLength)
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return "target_url is not a valid URL"
	}
	if parsedURL.Scheme == "" {
		return "target_url must include scheme (http or https)"
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return "target_url scheme must be http or https"
	}
	if parsedURL.Host == "" {
		return "target_url must include host"
	}
	return ""
}
