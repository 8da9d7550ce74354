package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/natalis/natalis/internal/chart"
	"github.com/natalis/natalis/internal/warehouse"
)

type staticHandler struct {
	reply Turn
	calls int
}

func (h *staticHandler) HandleTurn(context.Context, TurnRequest) Turn {
	h.calls++
	return h.reply
}

func TestAppendRequiresSQLWithData(t *testing.T) {
	var h History
	err := h.Append(Turn{Role: RoleAssistant, Table: &warehouse.Table{}})
	if !errors.Is(err, ErrMissingSQL) {
		t.Fatalf("error = %v, want ErrMissingSQL", err)
	}
	err = h.Append(Turn{Role: RoleAssistant, Chart: &chart.Spec{X: "state", Y: "births"}})
	if !errors.Is(err, ErrMissingSQL) {
		t.Fatalf("error = %v, want ErrMissingSQL", err)
	}
	if h.Len() != 0 {
		t.Fatalf("Len() = %d", h.Len())
	}
}

func TestAppendAssignsIdentity(t *testing.T) {
	var h History
	if err := h.Append(Turn{Role: RoleUser, Text: "hi"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	last, ok := h.Last()
	if !ok || last.ID == "" || last.CreatedAt.IsZero() {
		t.Fatalf("Last() = %+v, %v", last, ok)
	}
}

func TestMarkProcessedOnlyOnce(t *testing.T) {
	var h History
	_ = h.Append(Turn{Role: RoleUser, Text: "q"})
	if err := h.MarkProcessed(0); err != nil {
		t.Fatalf("MarkProcessed() error = %v", err)
	}
	if err := h.MarkProcessed(0); !errors.Is(err, ErrAlreadyProcessed) {
		t.Fatalf("second MarkProcessed() error = %v", err)
	}
	if err := h.MarkProcessed(5); !errors.Is(err, ErrNoSuchTurn) {
		t.Fatalf("MarkProcessed(5) error = %v", err)
	}
}

func TestTurnsReturnsCopy(t *testing.T) {
	var h History
	_ = h.Append(Turn{Role: RoleUser, Text: "q"})
	turns := h.Turns()
	turns[0].Text = "mutated"
	if last, _ := h.Last(); last.Text != "q" {
		t.Fatalf("history mutated: %q", last.Text)
	}
}

func TestSubmitRecordsBothTurns(t *testing.T) {
	session := NewSession()
	handler := &staticHandler{reply: Turn{Text: "answer", SQL: "SELECT 1", Table: &warehouse.Table{}, Status: StatusOK}}

	reply, err := session.Submit(context.Background(), handler, TurnRequest{Question: "q", APIKey: "k"})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if reply.Role != RoleAssistant || reply.Text != "answer" {
		t.Fatalf("reply = %+v", reply)
	}
	turns := session.History.Turns()
	if len(turns) != 2 {
		t.Fatalf("turns = %d", len(turns))
	}
	if turns[0].Role != RoleUser || !turns[0].Processed {
		t.Fatalf("user turn = %+v", turns[0])
	}
}

func TestBeginRejectsTurnInFlight(t *testing.T) {
	session := NewSession()
	if _, err := session.Begin("first"); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if _, err := session.Begin("second"); !errors.Is(err, ErrTurnInFlight) {
		t.Fatalf("Begin() error = %v, want ErrTurnInFlight", err)
	}
	handler := &staticHandler{}
	if _, err := session.Submit(context.Background(), handler, TurnRequest{Question: "third"}); !errors.Is(err, ErrTurnInFlight) {
		t.Fatalf("Submit() error = %v, want ErrTurnInFlight", err)
	}
	if handler.calls != 0 {
		t.Fatalf("handler called %d times", handler.calls)
	}
}

func TestCompleteRejectsReplyWithoutSQL(t *testing.T) {
	session := NewSession()
	index, _ := session.Begin("q")
	err := session.Complete(index, Turn{Text: "x", Table: &warehouse.Table{}})
	if !errors.Is(err, ErrMissingSQL) {
		t.Fatalf("Complete() error = %v", err)
	}
	if session.History.Turns()[index].Processed {
		t.Fatal("user turn should stay unprocessed when the reply is rejected")
	}
}

func TestRestoreHistoryValidates(t *testing.T) {
	if _, err := RestoreHistory([]Turn{{Role: "system"}}); err == nil {
		t.Fatal("expected unknown role error")
	}
	h, err := RestoreHistory([]Turn{{ID: "t1", Role: RoleUser, Processed: true}, {ID: "t2", Role: RoleAssistant, Processed: true}})
	if err != nil {
		t.Fatalf("RestoreHistory() error = %v", err)
	}
	if h.Len() != 2 || h.Turns()[0].ID != "t1" {
		t.Fatalf("history = %+v", h.Turns())
	}
}
