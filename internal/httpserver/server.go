// Package httpserver exposes the backend over HTTP: the Telegram WebApp auth
// exchange, the task/project/event API the mini-app consumes, the assistant
// webhook, and a health probe.
package httpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/quailyquaily/taskmorph/assistant"
	"github.com/quailyquaily/taskmorph/auth"
	"github.com/quailyquaily/taskmorph/store"
)

// MessageSender delivers a bot message to a chat. *telegram.API satisfies it.
type MessageSender interface {
	SendMessage(ctx context.Context, chatID int64, text, clearLabel string) error
}

type Server struct {
	Store     *store.Store
	Issuer    *auth.Issuer
	Assistant *assistant.Dispatcher
	Sender    MessageSender

	BotToken       string
	AllowAnonymous bool
	Logger         *slog.Logger
}

// Handler builds the route table. Auth-exchange, webhook and health endpoints
// are public; everything else goes through the bearer-token middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /auth/telegram", s.handleTelegramAuth)
	mux.HandleFunc("POST /telegram/webhook", s.handleWebhook)
	mux.HandleFunc("GET /healthz", s.handleHealthz)

	mux.Handle("GET /users/me", s.authed(s.handleMe))

	mux.Handle("GET /settings/me", s.authed(s.handleGetUserSettings))
	mux.Handle("PUT /settings/me", s.authed(s.handlePutUserSettings))
	mux.Handle("GET /settings/ai", s.authed(s.handleGetAiSettings))
	mux.Handle("PUT /settings/ai", s.authed(s.handlePutAiSettings))

	mux.Handle("GET /tasks", s.authed(s.handleListTasks))
	mux.Handle("POST /tasks", s.authed(s.handleCreateTask))
	mux.Handle("GET /tasks/{id}", s.authed(s.handleGetTask))
	mux.Handle("PUT /tasks/{id}", s.authed(s.handleUpdateTask))
	mux.Handle("DELETE /tasks/{id}", s.authed(s.handleDeleteTask))

	mux.Handle("GET /projects", s.authed(s.handleListProjects))
	mux.Handle("POST /projects", s.authed(s.handleCreateProject))
	mux.Handle("GET /projects/{id}", s.authed(s.handleGetProject))
	mux.Handle("DELETE /projects/{id}", s.authed(s.handleDeleteProject))

	mux.Handle("GET /events", s.authed(s.handleListEvents))
	mux.Handle("POST /events", s.authed(s.handleCreateEvent))

	mux.Handle("GET /stats/summary", s.authed(s.handleStatsSummary))

	return s.withAccessLog(mux)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(r *http.Request, v any) error {
	defer func() { _ = r.Body.Close() }()
	dec := json.NewDecoder(r.Body)
	return dec.Decode(v)
}
