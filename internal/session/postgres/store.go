package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/natalis/natalis/internal/chart"
	"github.com/natalis/natalis/internal/chat"
	"github.com/natalis/natalis/internal/session"
	"github.com/natalis/natalis/internal/warehouse"
)

// Store keeps sessions in chat_session and their turns in chat_turn. Turns
// are only ever inserted; the processed flag is the one column updated.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ session.Store = (*Store)(nil)

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping sessions db: %w", err)
	}
	return nil
}

func (s *Store) Create(ctx context.Context) (chat.Session, error) {
	created := chat.NewSession()
	created.CreatedAt = s.now()
	if _, err := s.db.ExecContext(ctx, `
INSERT INTO chat_session (session_id, created_at)
VALUES ($1, $2)`, created.ID, created.CreatedAt); err != nil {
		return chat.Session{}, fmt.Errorf("create session: %w", err)
	}
	return created, nil
}

func (s *Store) Get(ctx context.Context, id string) (chat.Session, error) {
	loaded := chat.Session{ID: id}
	if err := s.db.QueryRowContext(ctx, `
SELECT created_at
FROM chat_session
WHERE session_id = $1`, id).Scan(&loaded.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return chat.Session{}, fmt.Errorf("%w: %s", session.ErrNotFound, id)
		}
		return chat.Session{}, fmt.Errorf("get session: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT turn_id, role, body, sql_text, status, result_table, chart_spec, processed, created_at
FROM chat_turn
WHERE session_id = $1
ORDER BY position ASC`, id)
	if err != nil {
		return chat.Session{}, fmt.Errorf("list turns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var turns []chat.Turn
	for rows.Next() {
		var (
			turn                 chat.Turn
			role, status         string
			tableJSON, chartJSON []byte
		)
		if err := rows.Scan(&turn.ID, &role, &turn.Text, &turn.SQL, &status, &tableJSON, &chartJSON, &turn.Processed, &turn.CreatedAt); err != nil {
			return chat.Session{}, fmt.Errorf("scan turn: %w", err)
		}
		turn.Role = chat.Role(role)
		turn.Status = chat.Status(status)
		if err := decodeAttachments(&turn, tableJSON, chartJSON); err != nil {
			return chat.Session{}, fmt.Errorf("decode turn %s: %w", turn.ID, err)
		}
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return chat.Session{}, fmt.Errorf("iterate turns: %w", err)
	}

	history, err := chat.RestoreHistory(turns)
	if err != nil {
		return chat.Session{}, fmt.Errorf("restore history: %w", err)
	}
	loaded.History = history
	return loaded, nil
}

func (s *Store) Save(ctx context.Context, current chat.Session) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var locked int
	if err := tx.QueryRowContext(ctx, `
SELECT 1
FROM chat_session
WHERE session_id = $1
FOR UPDATE`, current.ID).Scan(&locked); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", session.ErrNotFound, current.ID)
		}
		return fmt.Errorf("lock session: %w", err)
	}

	stored, err := storedTurns(ctx, tx, current.ID)
	if err != nil {
		return err
	}
	turns := current.History.Turns()
	if len(turns) < len(stored) {
		return fmt.Errorf("%w: session %s history shrank from %d to %d turns", session.ErrConflict, current.ID, len(stored), len(turns))
	}
	for position, existing := range stored {
		if existing.id != turns[position].ID {
			return fmt.Errorf("%w: session %s position %d holds turn %s, not %s", session.ErrConflict, current.ID, position, existing.id, turns[position].ID)
		}
	}

	for position, existing := range stored {
		if existing.processed || !turns[position].Processed {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
UPDATE chat_turn
SET processed = TRUE
WHERE session_id = $1 AND position = $2`, current.ID, position); err != nil {
			return fmt.Errorf("mark turn %d processed: %w", position, err)
		}
	}
	for position := len(stored); position < len(turns); position++ {
		if err := insertTurn(ctx, tx, current.ID, position, turns[position]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit session %s: %w", current.ID, err)
	}
	return nil
}

type storedTurn struct {
	id        string
	processed bool
}

func storedTurns(ctx context.Context, tx *sql.Tx, id string) ([]storedTurn, error) {
	rows, err := tx.QueryContext(ctx, `
SELECT turn_id, processed
FROM chat_turn
WHERE session_id = $1
ORDER BY position ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("list stored turns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var stored []storedTurn
	for rows.Next() {
		var turn storedTurn
		if err := rows.Scan(&turn.id, &turn.processed); err != nil {
			return nil, fmt.Errorf("scan stored turn: %w", err)
		}
		stored = append(stored, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stored turns: %w", err)
	}
	return stored, nil
}

func insertTurn(ctx context.Context, tx *sql.Tx, sessionID string, position int, turn chat.Turn) error {
	tableJSON, err := nullableJSON(turn.Table)
	if err != nil {
		return fmt.Errorf("encode table of turn %s: %w", turn.ID, err)
	}
	chartJSON, err := nullableJSON(turn.Chart)
	if err != nil {
		return fmt.Errorf("encode chart of turn %s: %w", turn.ID, err)
	}
	if _, err := tx.ExecContext(ctx, `
INSERT INTO chat_turn (session_id, position, turn_id, role, body, sql_text, status, result_table, chart_spec, processed, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9::jsonb, $10, $11)`,
		sessionID, position, turn.ID, string(turn.Role), turn.Text, turn.SQL, string(turn.Status),
		tableJSON, chartJSON, turn.Processed, turn.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert turn %d: %w", position, err)
	}
	return nil
}

func nullableJSON[T any](value *T) (any, error) {
	if value == nil {
		return nil, nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return string(payload), nil
}

// decodeAttachments restores table and chart payloads. JSON numbers come
// back as float64 inside table rows.
func decodeAttachments(turn *chat.Turn, tableJSON, chartJSON []byte) error {
	if len(tableJSON) > 0 {
		var table warehouse.Table
		if err := json.Unmarshal(tableJSON, &table); err != nil {
			return fmt.Errorf("table: %w", err)
		}
		turn.Table = &table
	}
	if len(chartJSON) > 0 {
		var spec chart.Spec
		if err := json.Unmarshal(chartJSON, &spec); err != nil {
			return fmt.Errorf("chart: %w", err)
		}
		turn.Chart = &spec
	}
	return nil
}
