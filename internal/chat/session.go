package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type TurnRequest struct {
	Question string
	// APIKey is handed to the model client untouched.
	APIKey string
}

type TurnHandler interface {
	HandleTurn(ctx context.Context, req TurnRequest) Turn
}

type Session struct {
	ID        string
	CreatedAt time.Time
	History   History
}

func NewSession() Session {
	return Session{ID: uuid.NewString(), CreatedAt: time.Now().UTC()}
}

// Submit records the question, runs it through handler, marks the question
// processed and records the reply. A session accepts one turn at a time.
func (s *Session) Submit(ctx context.Context, handler TurnHandler, req TurnRequest) (Turn, error) {
	index, err := s.Begin(req.Question)
	if err != nil {
		return Turn{}, err
	}
	reply := handler.HandleTurn(ctx, req)
	if err := s.Complete(index, reply); err != nil {
		return Turn{}, err
	}
	last, _ := s.History.Last()
	return last, nil
}

// Begin appends the user turn and returns its index.
func (s *Session) Begin(question string) (int, error) {
	if i, ok := s.History.lastUser(); ok && !s.History.turns[i].Processed {
		return -1, ErrTurnInFlight
	}
	if err := s.History.Append(Turn{Role: RoleUser, Text: question}); err != nil {
		return -1, err
	}
	return s.History.Len() - 1, nil
}

// Complete marks the user turn at index processed and appends reply.
func (s *Session) Complete(index int, reply Turn) error {
	if index < 0 || index >= s.History.Len() || s.History.turns[index].Role != RoleUser {
		return fmt.Errorf("%w: %d is not a user turn", ErrNoSuchTurn, index)
	}
	reply.Role = RoleAssistant
	reply.Processed = true
	if err := validate(reply); err != nil {
		return err
	}
	if err := s.History.MarkProcessed(index); err != nil {
		return err
	}
	return s.History.Append(reply)
}
