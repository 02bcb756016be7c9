package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/aether-games/echoes-engine/internal/domain"
)

// EventRepo handles persistence for GameEvent records.
type EventRepo struct{}

// AppendTx inserts a game event within an existing transaction.
func (r *EventRepo) AppendTx(ctx context.Context, tx *sql.Tx, event domain.GameEvent) error {
	const q = `INSERT INTO game_events (session_id, seq_no, phase, round, event_type, payload_json, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := tx.ExecContext(ctx, q,
		event.SessionID,
		event.SeqNo,
		string(event.Phase),
		event.Round,
		event.EventType,
		event.PayloadJSON,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// ListBySession returns events for a session with sequence numbers greater
// than sinceSeq, ordered by sequence number ascending.
func (r *EventRepo) ListBySession(ctx context.Context, db querier, sessionID string, sinceSeq int64) ([]domain.GameEvent, error) {
	const q = `SELECT id, session_id, seq_no, phase, round, event_type, payload_json, created_at
FROM game_events
WHERE session_id = ? AND seq_no > ?
ORDER BY seq_no ASC`

	rows, err := db.QueryContext(ctx, q, sessionID, sinceSeq)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []domain.GameEvent
	for rows.Next() {
		var e domain.GameEvent
		var phase string
		if err := rows.Scan(&e.ID, &e.SessionID, &e.SeqNo, &phase, &e.Round, &e.EventType, &e.PayloadJSON, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Phase = domain.Phase(phase)
		events = append(events, e)
	}
	return events, rows.Err()
}
