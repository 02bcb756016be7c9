package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aether-games/echoes-engine/internal/domain"
)

// SessionRepo handles persistence for session header rows.
type SessionRepo struct{}

// CreateTx inserts a new session within an existing transaction.
func (r *SessionRepo) CreateTx(ctx context.Context, tx *sql.Tx, rec domain.SessionRecord) error {
	const q = `INSERT INTO sessions (session_id, status, phase, round, state_version, winner, last_event_seq, updated_at_unix)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := tx.ExecContext(ctx, q,
		rec.SessionID,
		string(rec.Status),
		string(rec.Phase),
		rec.Round,
		rec.StateVersion,
		string(rec.Winner),
		rec.LastEventSeq,
		rec.UpdatedAtUnix,
	)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// UpdateStateTx updates a session within a transaction using optimistic locking.
// The update only succeeds if the current state_version matches the expected version.
func (r *SessionRepo) UpdateStateTx(ctx context.Context, tx *sql.Tx, rec domain.SessionRecord) error {
	const q = `UPDATE sessions SET
		status = ?,
		phase = ?,
		round = ?,
		state_version = state_version + 1,
		winner = ?,
		last_event_seq = ?,
		updated_at_unix = ?
	WHERE session_id = ? AND state_version = ?`

	res, err := tx.ExecContext(ctx, q,
		string(rec.Status),
		string(rec.Phase),
		rec.Round,
		string(rec.Winner),
		rec.LastEventSeq,
		rec.UpdatedAtUnix,
		rec.SessionID,
		rec.StateVersion,
	)
	if err != nil {
		return fmt.Errorf("update session state: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrOptimisticLock
	}
	return nil
}

// GetByID retrieves a session header by its ID.
func (r *SessionRepo) GetByID(ctx context.Context, db querier, sessionID string) (*domain.SessionRecord, error) {
	const q = `SELECT session_id, status, phase, round, state_version, winner, last_event_seq, updated_at_unix
FROM sessions WHERE session_id = ?`

	row := db.QueryRowContext(ctx, q, sessionID)

	var s domain.SessionRecord
	var status, phase, winner string
	err := row.Scan(&s.SessionID, &status, &phase, &s.Round, &s.StateVersion,
		&winner, &s.LastEventSeq, &s.UpdatedAtUnix)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	s.Status = domain.Status(status)
	s.Phase = domain.Phase(phase)
	s.Winner = domain.Faction(winner)
	return &s, nil
}

// ListByStatus returns session headers with the given status ordered by id.
func (r *SessionRepo) ListByStatus(ctx context.Context, db querier, status domain.Status) ([]domain.SessionRecord, error) {
	const q = `SELECT session_id, status, phase, round, state_version, winner, last_event_seq, updated_at_unix
FROM sessions WHERE status = ? ORDER BY session_id ASC`

	rows, err := db.QueryContext(ctx, q, string(status))
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []domain.SessionRecord
	for rows.Next() {
		var s domain.SessionRecord
		var st, phase, winner string
		if err := rows.Scan(&s.SessionID, &st, &phase, &s.Round, &s.StateVersion,
			&winner, &s.LastEventSeq, &s.UpdatedAtUnix); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		s.Status = domain.Status(st)
		s.Phase = domain.Phase(phase)
		s.Winner = domain.Faction(winner)
		out = append(out, s)
	}
	return out, rows.Err()
}
