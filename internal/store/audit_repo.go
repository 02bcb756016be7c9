package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/aether-games/echoes-engine/internal/domain"
)

// AuditRepo persists command decisions and delivery failures.
type AuditRepo struct{}

const auditColumns = `id, session_id, category, actor, action, request_json, decision_json, severity, created_at`

// Record inserts an audit record.
func (r *AuditRepo) Record(ctx context.Context, db querier, rec domain.AuditRecord) error {
	const q = `INSERT INTO audit_records (` + auditColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, q,
		rec.ID,
		rec.SessionID,
		rec.Category,
		rec.Actor,
		rec.Action,
		rec.RequestJSON,
		rec.DecisionJSON,
		rec.Severity,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record audit: %w", err)
	}
	return nil
}

// ListBySession returns every audit record of a session, oldest first.
func (r *AuditRepo) ListBySession(ctx context.Context, db querier, sessionID string) ([]domain.AuditRecord, error) {
	const q = `SELECT ` + auditColumns + ` FROM audit_records
WHERE session_id = ?
ORDER BY created_at ASC, id ASC`
	rows, err := db.QueryContext(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list audit records: %w", err)
	}
	return scanAudits(rows)
}

// ListByCategory returns the records of one category in a session, such as
// the group's command decisions, oldest first.
func (r *AuditRepo) ListByCategory(ctx context.Context, db querier, sessionID, category string) ([]domain.AuditRecord, error) {
	const q = `SELECT ` + auditColumns + ` FROM audit_records
WHERE session_id = ? AND category = ?
ORDER BY created_at ASC, id ASC`
	rows, err := db.QueryContext(ctx, q, sessionID, category)
	if err != nil {
		return nil, fmt.Errorf("list %s audit records: %w", category, err)
	}
	return scanAudits(rows)
}

// CountByActor tallies a session's records of one category and severity per
// actor. For deliveries the actor is the unreachable recipient.
func (r *AuditRepo) CountByActor(ctx context.Context, db querier, sessionID, category, severity string) (map[string]int, error) {
	const q = `SELECT actor, COUNT(*) FROM audit_records
WHERE session_id = ? AND category = ? AND severity = ?
GROUP BY actor`
	rows, err := db.QueryContext(ctx, q, sessionID, category, severity)
	if err != nil {
		return nil, fmt.Errorf("count %s audit records: %w", category, err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var actor string
		var n int
		if err := rows.Scan(&actor, &n); err != nil {
			return nil, fmt.Errorf("scan audit count: %w", err)
		}
		counts[actor] = n
	}
	return counts, rows.Err()
}

func scanAudits(rows *sql.Rows) ([]domain.AuditRecord, error) {
	defer rows.Close()
	var records []domain.AuditRecord
	for rows.Next() {
		var a domain.AuditRecord
		if err := rows.Scan(&a.ID, &a.SessionID, &a.Category, &a.Actor, &a.Action,
			&a.RequestJSON, &a.DecisionJSON, &a.Severity, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		records = append(records, a)
	}
	return records, rows.Err()
}
