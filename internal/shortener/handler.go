package shortener

import (
	"context"
	"fmt"
	"image/color"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sundayezeilo/tasklinks/internal/errx"
	"github.com/sundayezeilo/tasklinks/internal/httpx"
	"github.com/sundayezeilo/tasklinks/internal/qrcode"
)

// HTTPCreateLinkRequest represents the JSON request body for creating a link.
// URL is accepted as an alias of TargetURL.
type HTTPCreateLinkRequest struct {
	TargetURL string `json:"target_url"`
	URL       string `json:"url,omitempty"`
	Color     string `json:"color,omitempty"`
}

// CreateLinkResponse represents the JSON response for a created link.
type CreateLinkResponse struct {
	Code      string `json:"code"`
	ShortURL  string `json:"short_url"`
	TargetURL string `json:"target_url"`
	CreatedAt string `json:"created_at"`
	QRURL     string `json:"qr_url,omitempty"`
	Existing  bool   `json:"existing,omitempty"`
}

// LinkResponse is one entry of the link listing.
type LinkResponse struct {
	Code       string `json:"code"`
	ShortURL   string `json:"short_url"`
	TargetURL  string `json:"target_url"`
	VisitCount int64  `json:"visit_count"`
	CreatedAt  string `json:"created_at"`
}

// StatsResponse reports the visit counters of a link.
type StatsResponse struct {
	Code          string  `json:"code"`
	TargetURL     string  `json:"target_url"`
	VisitCount    int64   `json:"visit_count"`
	CreatedAt     string  `json:"created_at"`
	LastVisitedAt *string `json:"last_visited_at"`
}

// HTTPQRCodeRequest is the body of POST /qrcode.
type HTTPQRCodeRequest struct {
	URL   string `json:"url"`
	Color string `json:"color,omitempty"`
}

// Handler provides HTTP handlers for the URL shortener service.
type Handler struct {
	service  Service
	renderer qrcode.Renderer
	logger   *slog.Logger
	baseURL  string
}

// HandlerConfig holds configuration for the handler.
type HandlerConfig struct {
	Service  Service
	Renderer qrcode.Renderer
	Logger   *slog.Logger
	BaseURL  string // Base URL for constructing short URLs (e.g., "https://sho.rt")
}

// NewHandler creates a new Handler instance.
func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	renderer := cfg.Renderer
	if renderer == nil {
		renderer = qrcode.NewPNGRenderer(qrcode.DefaultSize)
	}

	return &Handler{
		service:  cfg.Service,
		renderer: renderer,
		logger:   logger,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
	}
}

// Register mounts the shortener routes on mux. The catch-all code routes are
// less specific than the fixed paths, so /links and /qrcode win.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /links", h.CreateLink)
	mux.HandleFunc("GET /links", h.ListLinks)
	mux.HandleFunc("GET /links/{code}/stats", h.LinkStats)
	mux.HandleFunc("DELETE /links/{code}", h.DeleteLink)
	mux.HandleFunc("POST /qrcode", h.RenderQRCode)
	mux.HandleFunc("GET /{code}", h.ResolveLink)
	mux.HandleFunc("GET /{code}/qr", h.LinkQRCode)
}

func (h *Handler) requestLogger(r *http.Request) *slog.Logger {
	return h.logger.With(
		"request_id", httpx.GetRequestID(r.Context()),
		"method", r.Method,
		"path", r.URL.Path,
	)
}

// CreateLink handles POST /links.
func (h *Handler) CreateLink(w http.ResponseWriter, r *http.Request) {
	const op = "shortener.handler.CreateLink"
	ctx := r.Context()
	logger := h.requestLogger(r)

	req, err := httpx.DecodeJSON[HTTPCreateLinkRequest](r)
	if err != nil {
		h.handleError(ctx, logger, w, err)
		return
	}
	target := req.TargetURL
	if target == "" {
		target = req.URL
	}

	var qrColor string
	if req.Color != "" {
		c, err := qrcode.ParseColor(req.Color)
		if err != nil {
			h.handleError(ctx, logger, w, errx.Field(op, "color", err.Error()))
			return
		}
		qrColor = qrcode.FormatColor(c)
	}

	res, err := h.service.Create(ctx, CreateLinkRequest{TargetURL: target})
	if err != nil {
		h.handleError(ctx, logger, w, err)
		return
	}

	link := res.Link
	resp := CreateLinkResponse{
		Code:      link.Code,
		ShortURL:  h.shortURL(link.Code),
		TargetURL: link.TargetURL,
		CreatedAt: formatTime(link.CreatedAt),
		Existing:  res.Existing,
	}
	if qrColor != "" {
		resp.QRURL = fmt.Sprintf("%s/qr?color=%s", resp.ShortURL, qrColor)
	}

	status := http.StatusCreated
	if res.Existing {
		status = http.StatusOK
		logger.InfoContext(ctx, "existing link returned", "code", link.Code)
	} else {
		logger.InfoContext(ctx, "link created",
			"link_id", link.ID.String(),
			"code", link.Code,
		)
	}

	httpx.WriteJSON(w, status, resp)
}

// ListLinks handles GET /links.
func (h *Handler) ListLinks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	links, err := h.service.List(ctx)
	if err != nil {
		h.handleError(ctx, h.requestLogger(r), w, err)
		return
	}

	resp := make([]LinkResponse, 0, len(links))
	for _, link := range links {
		resp = append(resp, LinkResponse{
			Code:       link.Code,
			ShortURL:   h.shortURL(link.Code),
			TargetURL:  link.TargetURL,
			VisitCount: link.VisitCount,
			CreatedAt:  formatTime(link.CreatedAt),
		})
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// LinkStats handles GET /links/{code}/stats. It never counts a visit.
func (h *Handler) LinkStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	link, err := h.service.Stats(ctx, r.PathValue("code"))
	if err != nil {
		h.handleError(ctx, h.requestLogger(r), w, err)
		return
	}

	resp := StatsResponse{
		Code:       link.Code,
		TargetURL:  link.TargetURL,
		VisitCount: link.VisitCount,
		CreatedAt:  formatTime(link.CreatedAt),
	}
	if link.LastVisitedAt != nil {
		v := formatTime(*link.LastVisitedAt)
		resp.LastVisitedAt = &v
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// DeleteLink handles DELETE /links/{code}.
func (h *Handler) DeleteLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)
	code := r.PathValue("code")

	if err := h.service.Delete(ctx, code); err != nil {
		h.handleError(ctx, logger, w, err)
		return
	}

	logger.InfoContext(ctx, "link deleted", "code", code)
	httpx.WriteNoContent(w)
}

// ResolveLink handles GET /{code}: it counts the visit and redirects.
func (h *Handler) ResolveLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)
	code := r.PathValue("code")

	target, err := h.service.Resolve(ctx, code)
	if err != nil {
		h.handleError(ctx, logger.With("code", code), w, err)
		return
	}

	logger.DebugContext(ctx, "code resolved",
		"code", code,
		"user_agent", r.UserAgent(),
		"referer", r.Referer(),
	)

	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, target, http.StatusFound)
}

// LinkQRCode handles GET /{code}/qr, rendering the link's short URL.
func (h *Handler) LinkQRCode(w http.ResponseWriter, r *http.Request) {
	const op = "shortener.handler.LinkQRCode"
	ctx := r.Context()
	logger := h.requestLogger(r)

	fg, err := qrcode.ParseColor(r.URL.Query().Get("color"))
	if err != nil {
		h.handleError(ctx, logger, w, errx.Field(op, "color", err.Error()))
		return
	}

	link, err := h.service.Stats(ctx, r.PathValue("code"))
	if err != nil {
		h.handleError(ctx, logger, w, err)
		return
	}

	h.writeQRCode(ctx, logger, w, h.shortURL(link.Code), fg)
}

// RenderQRCode handles POST /qrcode for an arbitrary payload.
func (h *Handler) RenderQRCode(w http.ResponseWriter, r *http.Request) {
	const op = "shortener.handler.RenderQRCode"
	ctx := r.Context()
	logger := h.requestLogger(r)

	req, err := httpx.DecodeJSON[HTTPQRCodeRequest](r)
	if err != nil {
		h.handleError(ctx, logger, w, err)
		return
	}
	payload := strings.TrimSpace(req.URL)
	if payload == "" {
		h.handleError(ctx, logger, w, errx.Field(op, "url", "url is required"))
		return
	}
	if len(payload) > qrcode.MaxPayloadSize {
		h.handleError(ctx, logger, w,
			errx.Field(op, "url", fmt.Sprintf("url too long (max %d bytes)", qrcode.MaxPayloadSize)))
		return
	}

	fg, err := qrcode.ParseColor(req.Color)
	if err != nil {
		h.handleError(ctx, logger, w, errx.Field(op, "color", err.Error()))
		return
	}

	h.writeQRCode(ctx, logger, w, payload, fg)
}

func (h *Handler) writeQRCode(ctx context.Context, logger *slog.Logger, w http.ResponseWriter, payload string, fg color.Color) {
	const op = "shortener.handler.writeQRCode"

	img, err := h.renderer.Render(payload, fg)
	if err != nil {
		h.handleError(ctx, logger, w, errx.E(op, errx.Internal, err))
		return
	}
	httpx.WritePNG(w, img)
}

// handleError logs err at a level matching its kind and writes the response.
func (h *Handler) handleError(ctx context.Context, logger *slog.Logger, w http.ResponseWriter, err error) {
	kind := errx.KindOf(err)

	logAttrs := []any{
		"error", err.Error(),
		"error_kind", kind,
		"operation", errx.OpOf(err),
	}

	switch kind {
	case errx.Invalid, errx.NotFound, errx.Conflict:
		logger.WarnContext(ctx, "request rejected", logAttrs...)

	case errx.Exhausted:
		logger.ErrorContext(ctx, "short code space saturated",
			append(logAttrs, "anomaly", "code_space_saturated")...)

	case errx.Unavailable:
		logger.ErrorContext(ctx, "store unavailable", logAttrs...)

	default:
		logger.ErrorContext(ctx, "unexpected error", logAttrs...)
	}

	httpx.WriteServiceError(w, err)
}

func (h *Handler) shortURL(code string) string {
	return h.baseURL + "/" + code
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
