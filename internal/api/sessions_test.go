package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/natalis/natalis/internal/chat"
	"github.com/natalis/natalis/internal/config"
	"github.com/natalis/natalis/internal/session"
)

type recordingHandler struct {
	mu       sync.Mutex
	requests []chat.TurnRequest
	reply    chat.Turn
	entered  chan struct{}
	release  chan struct{}
}

func (h *recordingHandler) HandleTurn(_ context.Context, req chat.TurnRequest) chat.Turn {
	h.mu.Lock()
	h.requests = append(h.requests, req)
	h.mu.Unlock()
	if h.entered != nil {
		h.entered <- struct{}{}
	}
	if h.release != nil {
		<-h.release
	}
	return h.reply
}

func TestSessionLifecycle(t *testing.T) {
	cfg, err := config.Load("natalis-api", mapLookup(map[string]string{}))
	if err != nil {
		t.Fatalf("config load failed: %v", err)
	}
	turns := &recordingHandler{reply: chat.Turn{Status: chat.StatusCredentialMissing, Text: chat.MessageCredentialMissing}}
	h := NewHandler(cfg, Dependencies{Sessions: session.NewMemoryStore(), Turns: turns})

	id := createSession(t, h)

	req := httptest.NewRequest(http.MethodPost, "/v1/sessions/"+id+"/turns", strings.NewReader(`{"question":"How many births were there in 2005?"}`))
	req.Header.Set(ModelKeyHeader, "caller-key")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("turn status = %d, body=%s", rr.Code, rr.Body.String())
	}
	var submitted struct {
		SessionID string    `json:"session_id"`
		Turn      chat.Turn `json:"turn"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &submitted); err != nil {
		t.Fatalf("decode turn: %v", err)
	}
	if submitted.SessionID != id || submitted.Turn.Role != chat.RoleAssistant || submitted.Turn.Status != chat.StatusCredentialMissing {
		t.Fatalf("turn = %+v", submitted)
	}
	if len(turns.requests) != 1 || turns.requests[0].APIKey != "caller-key" {
		t.Fatalf("requests = %+v", turns.requests)
	}

	getResp := httptest.NewRecorder()
	h.ServeHTTP(getResp, httptest.NewRequest(http.MethodGet, "/v1/sessions/"+id, nil))
	if getResp.Code != http.StatusOK {
		t.Fatalf("get status = %d", getResp.Code)
	}
	var loaded sessionResponse
	if err := json.Unmarshal(getResp.Body.Bytes(), &loaded); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if len(loaded.Turns) != 2 {
		t.Fatalf("turns = %d", len(loaded.Turns))
	}
	if loaded.Turns[0].Role != chat.RoleUser || !loaded.Turns[0].Processed {
		t.Fatalf("user turn = %+v", loaded.Turns[0])
	}
	if loaded.Turns[1].Text != chat.MessageCredentialMissing {
		t.Fatalf("assistant turn = %+v", loaded.Turns[1])
	}
}

func TestGetUnknownSessionIs404(t *testing.T) {
	cfg, err := config.Load("natalis-api", mapLookup(map[string]string{}))
	if err != nil {
		t.Fatalf("config load failed: %v", err)
	}
	h := NewHandler(cfg, Dependencies{Sessions: session.NewMemoryStore(), Turns: &recordingHandler{}})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/sessions/nope", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rr.Code)
	}
	if payload := decodeError(t, rr); payload.ErrorCode != "SESSION_NOT_FOUND" {
		t.Fatalf("payload = %+v", payload)
	}

	turnResp := httptest.NewRecorder()
	h.ServeHTTP(turnResp, httptest.NewRequest(http.MethodPost, "/v1/sessions/nope/turns", strings.NewReader(`{"question":"q"}`)))
	if turnResp.Code != http.StatusNotFound {
		t.Fatalf("turn status = %d", turnResp.Code)
	}
}

func TestSubmitTurnRejectsBlankQuestion(t *testing.T) {
	cfg, err := config.Load("natalis-api", mapLookup(map[string]string{}))
	if err != nil {
		t.Fatalf("config load failed: %v", err)
	}
	turns := &recordingHandler{}
	h := NewHandler(cfg, Dependencies{Sessions: session.NewMemoryStore(), Turns: turns})
	id := createSession(t, h)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/sessions/"+id+"/turns", strings.NewReader(`{"question":""}`)))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	if len(turns.requests) != 0 {
		t.Fatalf("handler called %d times", len(turns.requests))
	}
}

func TestSubmitTurnWhileInFlightIs409(t *testing.T) {
	cfg, err := config.Load("natalis-api", mapLookup(map[string]string{}))
	if err != nil {
		t.Fatalf("config load failed: %v", err)
	}
	turns := &recordingHandler{
		reply:   chat.Turn{Status: chat.StatusSynthesisError, Text: chat.MessageSynthesis},
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	h := NewHandler(cfg, Dependencies{Sessions: session.NewMemoryStore(), Turns: turns})
	id := createSession(t, h)

	first := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/v1/sessions/"+id+"/turns", strings.NewReader(`{"question":"first"}`)))
	}()
	<-turns.entered

	second := httptest.NewRecorder()
	h.ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/v1/sessions/"+id+"/turns", strings.NewReader(`{"question":"second"}`)))
	if second.Code != http.StatusConflict {
		t.Fatalf("second status = %d", second.Code)
	}
	if payload := decodeError(t, second); payload.ErrorCode != "TURN_IN_FLIGHT" || !payload.Retryable {
		t.Fatalf("payload = %+v", payload)
	}

	close(turns.release)
	<-done
	if first.Code != http.StatusOK {
		t.Fatalf("first status = %d, body=%s", first.Code, first.Body.String())
	}
}

// conflictingStore saves nothing and reports that another writer got there first.
type conflictingStore struct {
	*session.MemoryStore
}

func (conflictingStore) Save(context.Context, chat.Session) error {
	return fmt.Errorf("%w: position 0 already taken", session.ErrConflict)
}

func TestSubmitTurnStaleSaveIs409(t *testing.T) {
	cfg, err := config.Load("natalis-api", mapLookup(map[string]string{}))
	if err != nil {
		t.Fatalf("config load failed: %v", err)
	}
	turns := &recordingHandler{reply: chat.Turn{Status: chat.StatusSynthesisError, Text: chat.MessageSynthesis}}
	h := NewHandler(cfg, Dependencies{Sessions: conflictingStore{session.NewMemoryStore()}, Turns: turns})
	id := createSession(t, h)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/sessions/"+id+"/turns", strings.NewReader(`{"question":"q"}`)))
	if rr.Code != http.StatusConflict {
		t.Fatalf("status = %d, body=%s", rr.Code, rr.Body.String())
	}
	if payload := decodeError(t, rr); payload.ErrorCode != "TURN_IN_FLIGHT" || !payload.Retryable {
		t.Fatalf("payload = %+v", payload)
	}
}

func TestSessionsNotConfigured(t *testing.T) {
	cfg, err := config.Load("natalis-api", mapLookup(map[string]string{}))
	if err != nil {
		t.Fatalf("config load failed: %v", err)
	}
	rr := httptest.NewRecorder()
	NewHandler(cfg, Dependencies{}).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/sessions", nil))
	if rr.Code != http.StatusNotImplemented {
		t.Fatalf("status = %d", rr.Code)
	}
}

func createSession(t *testing.T, h http.Handler) string {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/sessions", nil))
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body=%s", rr.Code, rr.Body.String())
	}
	var created sessionResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if created.SessionID == "" || created.Turns == nil {
		t.Fatalf("created = %+v", created)
	}
	return created.SessionID
}
