package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/askcv/askcv/engine/domain"
	"github.com/askcv/askcv/engine/index"
	"github.com/askcv/askcv/engine/ingest"
	"github.com/askcv/askcv/engine/rag"
	"github.com/askcv/askcv/pkg/config"
	"github.com/askcv/askcv/pkg/metrics"
	"github.com/askcv/askcv/pkg/mid"
	"github.com/askcv/askcv/web"
)

const (
	maxChatBody    = 64 << 10
	rebuildTimeout = 5 * time.Minute
)

// answerer is satisfied by *rag.Service.
type answerer interface {
	Answer(ctx context.Context, message string) (rag.Reply, error)
}

type api struct {
	chat    answerer
	index   *index.Handle
	rebuild func(context.Context) ingest.RebuildEvent // nil disables /admin/rebuild
	reg     *metrics.Registry
	logger  *slog.Logger
}

func (a *api) routes(s config.Server) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("POST /chat", mid.Chain(http.HandlerFunc(a.handleChat),
		mid.RateLimit(s.RateLimitRPS, s.RateLimitBurst),
		mid.MaxBody(maxChatBody),
	))
	mux.HandleFunc("GET /health", a.handleHealth)
	mux.Handle("GET /metrics", a.reg.Handler())
	mux.Handle("GET /static/", web.Static())
	mux.Handle("GET /{$}", web.Index())
	if a.rebuild != nil {
		mux.HandleFunc("POST /admin/rebuild", a.handleRebuild)
	}
	return mux
}

func (a *api) handler(s config.Server) http.Handler {
	return mid.Chain(a.routes(s),
		mid.Recover(a.logger),
		mid.Logger(a.logger, "/health", "/metrics"),
		mid.CORS(s.CORSOrigin),
		mid.OTel("askcv-api"),
	)
}

// ChatRequest is the JSON body for POST /chat.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse is the JSON response for POST /chat.
type ChatResponse struct {
	Response string `json:"response"`
	Status   string `json:"status"`
}

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
}

func (a *api) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	reply, err := a.chat.Answer(r.Context(), req.Message)
	switch {
	case errors.Is(err, domain.ErrEmptyMessage):
		writeError(w, http.StatusBadRequest, "No message provided")
		return
	case errors.Is(err, domain.ErrMessageTooLong):
		writeError(w, http.StatusBadRequest, "Message too long")
		return
	case err != nil:
		a.logger.Error("chat failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{Response: reply.Text, Status: reply.Status})
}

func (a *api) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", ModelLoaded: a.index.Ready()})
}

func (a *api) handleRebuild(w http.ResponseWriter, r *http.Request) {
	a.logger.Info("rebuild requested", "via", "http")
	// A client that hangs up must not abort the build halfway.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), rebuildTimeout)
	defer cancel()
	ev := a.rebuild(ctx)
	status := http.StatusOK
	if ev.Error != "" {
		a.logger.Error("rebuild failed", "err", ev.Error)
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, ev)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
