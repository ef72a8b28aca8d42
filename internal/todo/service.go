package todo

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/sundayezeilo/tasklinks/internal/errx"
)

const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 2000
)

// CreateTaskRequest holds the fields of a new task.
type CreateTaskRequest struct {
	Title       string
	Description string
	Completed   bool
}

// Service defines the task operations. IDs are accepted as strings so a
// malformed identifier is reported as invalid input rather than not found.
type Service interface {
	Create(ctx context.Context, req CreateTaskRequest) (Task, error)
	List(ctx context.Context) ([]Task, error)
	Get(ctx context.Context, id string) (Task, error)
	Update(ctx context.Context, id string, patch Patch) (Task, error)
	Delete(ctx context.Context, id string) error
}

type service struct {
	repo Repository
}

// NewService creates a new service instance.
func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) Create(ctx context.Context, req CreateTaskRequest) (Task, error) {
	const op = "todo.service.Create"

	title, err := cleanTitle(op, req.Title)
	if err != nil {
		return Task{}, err
	}
	if err := checkDescription(op, req.Description); err != nil {
		return Task{}, err
	}

	task, err := s.repo.Create(ctx, Task{
		Title:       title,
		Description: req.Description,
		Completed:   req.Completed,
	})
	if err != nil {
		return Task{}, errx.E(op, errx.KindOf(err), err)
	}
	return task, nil
}

func (s *service) List(ctx context.Context) ([]Task, error) {
	const op = "todo.service.List"

	tasks, err := s.repo.List(ctx)
	if err != nil {
		return nil, errx.E(op, errx.KindOf(err), err)
	}
	return tasks, nil
}

func (s *service) Get(ctx context.Context, id string) (Task, error) {
	const op = "todo.service.Get"

	taskID, err := parseID(op, id)
	if err != nil {
		return Task{}, err
	}

	task, err := s.repo.Get(ctx, taskID)
	if err != nil {
		return Task{}, errx.E(op, errx.KindOf(err), err)
	}
	return task, nil
}

// Update applies patch. An empty patch returns the stored task untouched.
func (s *service) Update(ctx context.Context, id string, patch Patch) (Task, error) {
	const op = "todo.service.Update"

	taskID, err := parseID(op, id)
	if err != nil {
		return Task{}, err
	}

	if patch.Title != nil {
		title, err := cleanTitle(op, *patch.Title)
		if err != nil {
			return Task{}, err
		}
		patch.Title = &title
	}
	if patch.Description != nil {
		if err := checkDescription(op, *patch.Description); err != nil {
			return Task{}, err
		}
	}

	var task Task
	if patch.IsEmpty() {
		task, err = s.repo.Get(ctx, taskID)
	} else {
		task, err = s.repo.Update(ctx, taskID, patch)
	}
	if err != nil {
		return Task{}, errx.E(op, errx.KindOf(err), err)
	}
	return task, nil
}

func (s *service) Delete(ctx context.Context, id string) error {
	const op = "todo.service.Delete"

	taskID, err := parseID(op, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, taskID); err != nil {
		return errx.E(op, errx.KindOf(err), err)
	}
	return nil
}

func parseID(op, id string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, errx.Field(op, "id", fmt.Sprintf("invalid task id %q", id))
	}
	return parsed, nil
}

func cleanTitle(op, title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", errx.Field(op, "title", "title is required")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return "", errx.Field(op, "title", fmt.Sprintf("title too long (max %d characters)", MaxTitleLength))
	}
	return title, nil
}

func checkDescription(op, description string) error {
	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		return errx.Field(op, "description", fmt.Sprintf("description too long (max %d characters)", MaxDescriptionLength))
	}
	return nil
}
