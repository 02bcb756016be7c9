package store

import (
	"context"
	"fmt"
)

// GroupRepo tracks the groups allowed to host games.
type GroupRepo struct{}

// Add authorizes a group. It returns false if the group was already authorized.
func (r *GroupRepo) Add(ctx context.Context, db querier, groupID, addedBy string, now int64) (bool, error) {
	const q = `INSERT INTO authorized_groups (group_id, added_by, created_at) VALUES (?, ?, ?)
ON CONFLICT(group_id) DO NOTHING`
	res, err := db.ExecContext(ctx, q, groupID, addedBy, now)
	if err != nil {
		return false, fmt.Errorf("authorize group: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check rows affected: %w", err)
	}
	return n == 1, nil
}

// Remove deauthorizes a group. It returns false if the group was not authorized.
func (r *GroupRepo) Remove(ctx context.Context, db querier, groupID string) (bool, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM authorized_groups WHERE group_id = ?`, groupID)
	if err != nil {
		return false, fmt.Errorf("deauthorize group: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check rows affected: %w", err)
	}
	return n == 1, nil
}

// Contains reports whether a group is authorized.
func (r *GroupRepo) Contains(ctx context.Context, db querier, groupID string) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM authorized_groups WHERE group_id = ?`, groupID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("lookup group: %w", err)
	}
	return n > 0, nil
}
