package api

import (
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/natalis/natalis/internal/chat"
	"github.com/natalis/natalis/internal/config"
	"github.com/natalis/natalis/internal/session"
)

type turnRequest struct {
	Question string `json:"question"`
}

type sessionResponse struct {
	SessionID string      `json:"session_id"`
	CreatedAt time.Time   `json:"created_at"`
	Turns     []chat.Turn `json:"turns"`
}

// turnGate admits one in-flight turn per session within this process.
type turnGate struct {
	mu     sync.Mutex
	active map[string]struct{}
}

func newTurnGate() *turnGate {
	return &turnGate{active: map[string]struct{}{}}
}

func (g *turnGate) acquire(id string) (func(), bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.active[id]; busy {
		return nil, false
	}
	g.active[id] = struct{}{}
	return func() {
		g.mu.Lock()
		delete(g.active, id)
		g.mu.Unlock()
	}, true
}

func handleCreateSession(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Sessions == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SESSIONS_NOT_CONFIGURED", "session store is not configured", false, nil)
		return
	}
	created, err := deps.Sessions.Create(r.Context())
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "SESSION_CREATE_FAILED", "failed to create session", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, toSessionResponse(created))
}

func handleGetSession(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Sessions == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SESSIONS_NOT_CONFIGURED", "session store is not configured", false, nil)
		return
	}
	loaded, err := deps.Sessions.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeSessionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(loaded))
}

func handleSubmitTurn(cfg config.Config, deps Dependencies, gate *turnGate, w http.ResponseWriter, r *http.Request) {
	if deps.Sessions == nil || deps.Turns == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "CHAT_NOT_CONFIGURED", "chat is not configured", false, nil)
		return
	}
	var req turnRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid turn request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_REQUIRED", "question is required", false, nil)
		return
	}

	id := r.PathValue("id")
	release, ok := gate.acquire(id)
	if !ok {
		writeError(r.Context(), w, http.StatusConflict, "TURN_IN_FLIGHT", chat.ErrTurnInFlight.Error(), true, map[string]any{"session_id": id})
		return
	}
	defer release()

	current, err := deps.Sessions.Get(r.Context(), id)
	if err != nil {
		writeSessionError(w, r, err)
		return
	}
	reply, err := current.Submit(r.Context(), deps.Turns, chat.TurnRequest{Question: req.Question, APIKey: modelKey(cfg, r)})
	if err != nil {
		writeSessionError(w, r, err)
		return
	}
	if err := deps.Sessions.Save(r.Context(), current); err != nil {
		if errors.Is(err, session.ErrConflict) {
			writeSessionError(w, r, err)
			return
		}
		writeError(r.Context(), w, http.StatusInternalServerError, "SESSION_SAVE_FAILED", "failed to save session", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session_id": current.ID, "turn": reply})
}

func writeSessionError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		writeError(r.Context(), w, http.StatusNotFound, "SESSION_NOT_FOUND", "session not found", false, map[string]any{"session_id": r.PathValue("id")})
	case errors.Is(err, chat.ErrTurnInFlight), errors.Is(err, session.ErrConflict):
		writeError(r.Context(), w, http.StatusConflict, "TURN_IN_FLIGHT", err.Error(), true, map[string]any{"session_id": r.PathValue("id")})
	default:
		writeError(r.Context(), w, http.StatusInternalServerError, "SESSION_FAILED", "session operation failed", true, map[string]any{"details": err.Error()})
	}
}

func toSessionResponse(s chat.Session) sessionResponse {
	turns := s.History.Turns()
	if turns == nil {
		turns = []chat.Turn{}
	}
	return sessionResponse{SessionID: s.ID, CreatedAt: s.CreatedAt, Turns: turns}
}
