package session

import (
	"context"
	"errors"

	"github.com/natalis/natalis/internal/chat"
)

var (
	ErrNotFound = errors.New("session not found")
	// ErrConflict means the stored history moved on since the session was
	// loaded, typically because another writer saved a turn first.
	ErrConflict = errors.New("session changed since it was loaded")
)

// Store persists conversations between turns.
type Store interface {
	Create(ctx context.Context) (chat.Session, error)
	Get(ctx context.Context, id string) (chat.Session, error)
	// Save persists turns appended since the session was loaded and any
	// processed flags flipped on earlier ones.
	Save(ctx context.Context, session chat.Session) error
}
