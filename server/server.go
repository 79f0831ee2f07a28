// Package server exposes the control API used while watching: status, the
// title queue, manual check and update triggers and Prometheus metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"yttitle/internal/logger"
	"yttitle/metrics"
	"yttitle/reconcile"
	"yttitle/rotation"
	"yttitle/status"
	"yttitle/youtube"
)

const shutdownTimeout = 10 * time.Second

// Service is the part of the updater the API drives. *yttitle.Updater satisfies it.
type Service interface {
	Status() status.Status
	Broadcast() youtube.Broadcast
	CurrentTitle() string
	NextTitle() string
	Titles() []string
	AddTitle(ctx context.Context, title string) error
	TriggerCheck(ctx context.Context) (youtube.Broadcast, error)
	TriggerUpdate(ctx context.Context) (reconcile.Result, error)
}

// StatusResponse is returned by GET /status and the trigger endpoints.
type StatusResponse struct {
	Message      string          `json:"message"`
	Severity     status.Severity `json:"severity"`
	UpdatedAt    time.Time       `json:"updated_at"`
	Live         bool            `json:"live"`
	VideoID      string          `json:"video_id,omitempty"`
	CurrentTitle string          `json:"current_title"`
	NextTitle    string          `json:"next_title"`
	QueueLength  int             `json:"queue_length"`
}

// TitlesResponse is returned by GET and POST /titles.
type TitlesResponse struct {
	Titles    []string `json:"titles"`
	NextTitle string   `json:"next_title"`
}

// AddTitleRequest is the POST /titles body.
type AddTitleRequest struct {
	Title string `json:"title"`
}

// CycleResponse is returned by POST /check and POST /update.
type CycleResponse struct {
	CycleID string         `json:"cycle_id,omitempty"`
	Outcome string         `json:"outcome,omitempty"`
	Live    bool           `json:"live"`
	VideoID string         `json:"video_id,omitempty"`
	Title   string         `json:"title,omitempty"`
	Error   string         `json:"error,omitempty"`
	Status  StatusResponse `json:"status"`
}

// Handler serves the control API.
type Handler struct {
	svc     Service
	log     *slog.Logger
	metrics *metrics.Metrics
}

// New returns the router for svc. Metrics may be nil, which drops the
// /metrics route and request counting.
func New(svc Service, log *slog.Logger, m *metrics.Metrics) http.Handler {
	if log == nil {
		log = logger.Discard()
	}
	h := &Handler{svc: svc, log: log, metrics: m}

	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	if m != nil {
		r.Use(metrics.RequestMiddleware(m))
		r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			m.Handler(func() { m.SetQueueLength(len(svc.Titles())) }).ServeHTTP(w, r)
		})
	}
	r.Get("/status", h.GetStatus)
	r.Get("/titles", h.ListTitles)
	r.Post("/titles", h.AddTitle)
	r.Post("/check", h.Check)
	r.Post("/update", h.Update)
	return r
}

// GetStatus handles GET /status.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.status())
}

// ListTitles handles GET /titles.
func (h *Handler) ListTitles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.titles())
}

// AddTitle handles POST /titles. Body: {"title": "..."}.
func (h *Handler) AddTitle(w http.ResponseWriter, r *http.Request) {
	var req AddTitleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Debug("invalid title body", slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := h.svc.AddTitle(r.Context(), req.Title); err != nil {
		if errors.Is(err, rotation.ErrInvalidTitle) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.log.Error("add title failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, h.titles())
}

// Check handles POST /check: refresh the live status without updating.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	b, err := h.svc.TriggerCheck(r.Context())
	resp := CycleResponse{Live: b.IsLive, VideoID: b.VideoID, Title: b.Title}
	code := http.StatusOK
	if err != nil {
		resp.Error = err.Error()
		code = http.StatusBadGateway
	}
	resp.Status = h.status()
	writeJSON(w, code, resp)
}

// Update handles POST /update: run one full cycle.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.TriggerUpdate(r.Context())
	resp := CycleResponse{
		CycleID: res.CycleID,
		Outcome: string(res.Outcome),
		Live:    res.Broadcast.IsLive,
		VideoID: res.Broadcast.VideoID,
		Title:   res.Title,
	}
	code := http.StatusOK
	if err != nil {
		resp.Error = err.Error()
		switch {
		case errors.Is(err, rotation.ErrInvariantViolation):
			code = http.StatusConflict
		case res.Outcome == reconcile.OutcomeUpdated:
			// The broadcast changed but local state did not persist.
			code = http.StatusInternalServerError
		default:
			code = http.StatusBadGateway
		}
	}
	resp.Status = h.status()
	writeJSON(w, code, resp)
}

func (h *Handler) status() StatusResponse {
	st := h.svc.Status()
	b := h.svc.Broadcast()
	return StatusResponse{
		Message:      st.Message,
		Severity:     st.Severity,
		UpdatedAt:    st.UpdatedAt,
		Live:         b.IsLive,
		VideoID:      b.VideoID,
		CurrentTitle: h.svc.CurrentTitle(),
		NextTitle:    h.svc.NextTitle(),
		QueueLength:  len(h.svc.Titles()),
	}
}

func (h *Handler) titles() TitlesResponse {
	titles := h.svc.Titles()
	if titles == nil {
		titles = []string{}
	}
	return TitlesResponse{Titles: titles, NextTitle: h.svc.NextTitle()}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// ListenAndServe serves h on addr until ctx is done, then drains connections.
func ListenAndServe(ctx context.Context, addr string, h http.Handler, log *slog.Logger) error {
	if log == nil {
		log = logger.Discard()
	}
	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	log.Info("control API listening", "addr", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutdown signal received, draining connections")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("control API stopped")
	return nil
}
