package todo

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/sundayezeilo/tasklinks/internal/errx"
	"github.com/sundayezeilo/tasklinks/internal/httpx"
)

// HTTPCreateTaskRequest is the body of POST /tasks.
type HTTPCreateTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Completed   bool   `json:"completed,omitempty"`
}

// HTTPUpdateTaskRequest is the body of PUT and PATCH /tasks/{id}.
// Absent fields are left unchanged.
type HTTPUpdateTaskRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Completed   *bool   `json:"completed,omitempty"`
}

// TaskResponse is the JSON representation of a task.
type TaskResponse struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Completed   bool   `json:"completed"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func toResponse(t Task) TaskResponse {
	return TaskResponse{
		ID:          t.ID.String(),
		Title:       t.Title,
		Description: t.Description,
		Completed:   t.Completed,
		CreatedAt:   t.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:   t.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// Handler serves the task endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// NewHandler creates a new Handler instance.
func NewHandler(service Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger}
}

// Register mounts the task routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /tasks", h.CreateTask)
	mux.HandleFunc("GET /tasks", h.ListTasks)
	mux.HandleFunc("GET /tasks/{id}", h.GetTask)
	mux.HandleFunc("PUT /tasks/{id}", h.UpdateTask)
	mux.HandleFunc("PATCH /tasks/{id}", h.UpdateTask)
	mux.HandleFunc("DELETE /tasks/{id}", h.DeleteTask)
}

func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := httpx.DecodeJSON[HTTPCreateTaskRequest](r)
	if err != nil {
		h.handleError(ctx, r, w, err)
		return
	}

	task, err := h.service.Create(ctx, CreateTaskRequest{
		Title:       req.Title,
		Description: req.Description,
		Completed:   req.Completed,
	})
	if err != nil {
		h.handleError(ctx, r, w, err)
		return
	}

	h.logger.InfoContext(ctx, "task created",
		"request_id", httpx.GetRequestID(ctx),
		"task_id", task.ID.String(),
	)
	httpx.WriteJSON(w, http.StatusCreated, toResponse(task))
}

func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tasks, err := h.service.List(ctx)
	if err != nil {
		h.handleError(ctx, r, w, err)
		return
	}

	resp := make([]TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		resp = append(resp, toResponse(t))
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	task, err := h.service.Get(ctx, r.PathValue("id"))
	if err != nil {
		h.handleError(ctx, r, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toResponse(task))
}

func (h *Handler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := httpx.DecodeJSON[HTTPUpdateTaskRequest](r)
	if err != nil {
		h.handleError(ctx, r, w, err)
		return
	}

	task, err := h.service.Update(ctx, r.PathValue("id"), Patch{
		Title:       req.Title,
		Description: req.Description,
		Completed:   req.Completed,
	})
	if err != nil {
		h.handleError(ctx, r, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toResponse(task))
}

func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	if err := h.service.Delete(ctx, id); err != nil {
		h.handleError(ctx, r, w, err)
		return
	}

	h.logger.InfoContext(ctx, "task deleted",
		"request_id", httpx.GetRequestID(ctx),
		"task_id", id,
	)
	httpx.WriteNoContent(w)
}

func (h *Handler) handleError(ctx context.Context, r *http.Request, w http.ResponseWriter, err error) {
	kind := errx.KindOf(err)
	attrs := []any{
		"request_id", httpx.GetRequestID(ctx),
		"method", r.Method,
		"path", r.URL.Path,
		"error", err.Error(),
		"error_kind", kind,
		"operation", errx.OpOf(err),
	}

	if httpx.ErrorKindToStatus(kind) >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, "task request failed", attrs...)
	} else {
		h.logger.WarnContext(ctx, "task request rejected", attrs...)
	}
	httpx.WriteServiceError(w, err)
}
