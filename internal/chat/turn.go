package chat

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/natalis/natalis/internal/chart"
	"github.com/natalis/natalis/internal/warehouse"
)

var (
	ErrTurnInFlight     = errors.New("chat: previous turn is still being processed")
	ErrMissingSQL       = errors.New("chat: turn with data must carry its SQL")
	ErrAlreadyProcessed = errors.New("chat: turn already processed")
	ErrNoSuchTurn       = errors.New("chat: no such turn")
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Status classifies how an assistant turn came about.
type Status string

const (
	StatusCredentialMissing Status = "credential_missing"
	StatusModelInitError    Status = "model_init_error"
	StatusSynthesisError    Status = "synthesis_error"
	StatusExecutionError    Status = "execution_error"
	StatusEmpty             Status = "empty"
	StatusOK                Status = "ok"
)

type Turn struct {
	ID        string           `json:"id"`
	Role      Role             `json:"role"`
	Text      string           `json:"text"`
	Table     *warehouse.Table `json:"table,omitempty"`
	Chart     *chart.Spec      `json:"chart,omitempty"`
	SQL       string           `json:"sql,omitempty"`
	Status    Status           `json:"status,omitempty"`
	Processed bool             `json:"processed"`
	CreatedAt time.Time        `json:"created_at"`
}

// History is the append-only record of one conversation.
type History struct {
	turns []Turn
}

// RestoreHistory rebuilds a history from stored turns, checking each one.
func RestoreHistory(turns []Turn) (History, error) {
	var h History
	for _, turn := range turns {
		if err := h.Append(turn); err != nil {
			return History{}, err
		}
	}
	return h, nil
}

func (h *History) Append(turn Turn) error {
	if err := validate(turn); err != nil {
		return err
	}
	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}
	h.turns = append(h.turns, turn)
	return nil
}

func (h *History) Turns() []Turn {
	out := make([]Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

func (h *History) Len() int {
	return len(h.turns)
}

func (h *History) Last() (Turn, bool) {
	if len(h.turns) == 0 {
		return Turn{}, false
	}
	return h.turns[len(h.turns)-1], true
}

// MarkProcessed flips the processed flag of turn i exactly once.
func (h *History) MarkProcessed(i int) error {
	if i < 0 || i >= len(h.turns) {
		return fmt.Errorf("%w: %d", ErrNoSuchTurn, i)
	}
	if h.turns[i].Processed {
		return fmt.Errorf("%w: %d", ErrAlreadyProcessed, i)
	}
	h.turns[i].Processed = true
	return nil
}

func (h *History) lastUser() (int, bool) {
	for i := len(h.turns) - 1; i >= 0; i-- {
		if h.turns[i].Role == RoleUser {
			return i, true
		}
	}
	return -1, false
}

func validate(turn Turn) error {
	if (turn.Table != nil || turn.Chart != nil) && turn.SQL == "" {
		return ErrMissingSQL
	}
	if turn.Role != RoleUser && turn.Role != RoleAssistant {
		return fmt.Errorf("chat: unknown role %q", turn.Role)
	}
	return nil
}
