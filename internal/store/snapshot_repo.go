package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aether-games/echoes-engine/internal/domain"
)

// SnapshotRepo handles persistence for PhaseSnapshot records.
type SnapshotRepo struct{}

// SaveTx inserts a phase snapshot within an existing transaction.
func (r *SnapshotRepo) SaveTx(ctx context.Context, tx *sql.Tx, snap domain.PhaseSnapshot) error {
	const q = `INSERT INTO phase_snapshots (session_id, phase, round, generation, state_zstd, created_at)
VALUES (?, ?, ?, ?, ?, ?)`
	_, err := tx.ExecContext(ctx, q,
		snap.SessionID,
		string(snap.Phase),
		snap.Round,
		snap.Generation,
		snap.State,
		snap.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// GetLatest returns the most recent snapshot for a session.
// Returns nil if no snapshot exists.
func (r *SnapshotRepo) GetLatest(ctx context.Context, db querier, sessionID string) (*domain.PhaseSnapshot, error) {
	const q = `SELECT id, session_id, phase, round, generation, state_zstd, created_at
FROM phase_snapshots
WHERE session_id = ?
ORDER BY id DESC
LIMIT 1`

	row := db.QueryRowContext(ctx, q, sessionID)

	var s domain.PhaseSnapshot
	var p string
	err := row.Scan(&s.ID, &s.SessionID, &p, &s.Round, &s.Generation, &s.State, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get latest snapshot: %w", err)
	}
	s.Phase = domain.Phase(p)
	return &s, nil
}
