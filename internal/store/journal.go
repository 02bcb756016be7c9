package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"github.com/aether-games/echoes-engine/internal/domain"
)

// Journal writes the event log and phase snapshots of sessions.
type Journal struct {
	DB        *sql.DB
	Sessions  *SessionRepo
	Events    *EventRepo
	Snapshots *SnapshotRepo
	Audits    *AuditRepo
	Groups    *GroupRepo
	now       func() time.Time
}

// NewJournal creates a Journal with all repos wired to db.
func NewJournal(db *sql.DB) *Journal {
	return &Journal{
		DB:        db,
		Sessions:  &SessionRepo{},
		Events:    &EventRepo{},
		Snapshots: &SnapshotRepo{},
		Audits:    &AuditRepo{},
		Groups:    &GroupRepo{},
		now:       time.Now,
	}
}

// Record appends an event for s and, when snapshot is set, stores the full
// session state. The caller holds the session lock. The session header row
// is created on first use and updated with optimistic locking.
func (j *Journal) Record(ctx context.Context, s *domain.Session, eventType string, payload any, snapshot bool) error {
	payloadJSON := "{}"
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		payloadJSON = string(b)
	}

	var state []byte
	if snapshot {
		var err error
		state, err = EncodeSnapshot(s)
		if err != nil {
			return err
		}
	}

	tx, err := j.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := j.now().Unix()
	rec, err := j.Sessions.GetByID(ctx, tx, s.ID)
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		rec = &domain.SessionRecord{SessionID: s.ID, StateVersion: 1}
		if err := j.Sessions.CreateTx(ctx, tx, *rec); err != nil {
			return err
		}
	case err != nil:
		return err
	}

	seq := rec.LastEventSeq + 1
	event := domain.GameEvent{
		SessionID:   s.ID,
		SeqNo:       seq,
		Phase:       s.Phase,
		Round:       s.Round,
		EventType:   eventType,
		PayloadJSON: payloadJSON,
		CreatedAt:   now,
	}
	if err := j.Events.AppendTx(ctx, tx, event); err != nil {
		return err
	}

	if snapshot {
		snap := domain.PhaseSnapshot{
			SessionID:  s.ID,
			Phase:      s.Phase,
			Round:      s.Round,
			Generation: s.Generation,
			State:      state,
			CreatedAt:  now,
		}
		if err := j.Snapshots.SaveTx(ctx, tx, snap); err != nil {
			return err
		}
	}

	updated := *rec
	updated.Status = s.Status
	updated.Phase = s.Phase
	updated.Round = s.Round
	updated.Winner = s.Winner
	updated.LastEventSeq = seq
	updated.UpdatedAtUnix = now
	if err := j.Sessions.UpdateStateTx(ctx, tx, updated); err != nil {
		return err
	}

	return tx.Commit()
}

// Audit stores an audit record, filling in id and timestamp.
func (j *Journal) Audit(ctx context.Context, rec domain.AuditRecord) error {
	if rec.ID == "" {
		rec.ID = "aud-" + uuid.NewString()
	}
	if rec.CreatedAt == 0 {
		rec.CreatedAt = j.now().Unix()
	}
	if rec.RequestJSON == "" {
		rec.RequestJSON = "{}"
	}
	if rec.DecisionJSON == "" {
		rec.DecisionJSON = "{}"
	}
	return j.Audits.Record(ctx, j.DB, rec)
}

// EventsFor lists every event of a session in order.
func (j *Journal) EventsFor(ctx context.Context, sessionID string) ([]domain.GameEvent, error) {
	return j.Events.ListBySession(ctx, j.DB, sessionID, 0)
}

// DeliveryFailures counts the failed deliveries of a session per recipient.
func (j *Journal) DeliveryFailures(ctx context.Context, sessionID string) (map[string]int, error) {
	return j.Audits.CountByActor(ctx, j.DB, sessionID, domain.AuditDelivery, domain.SeverityWarn)
}

// LatestState decodes the most recent snapshot of a session.
func (j *Journal) LatestState(ctx context.Context, sessionID string) (*domain.Session, error) {
	snap, err := j.Snapshots.GetLatest(ctx, j.DB, sessionID)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, domain.ErrSessionNotFound
	}
	return DecodeSnapshot(snap.State)
}

// EncodeSnapshot serialises a session as zstd-compressed JSON.
func EncodeSnapshot(s *domain.Session) ([]byte, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, fmt.Errorf("zstd writer: %w", err)
	}
	if _, err := enc.Write(raw); err != nil {
		enc.Close()
		return nil, fmt.Errorf("compress snapshot: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("compress snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeSnapshot reverses EncodeSnapshot.
func DecodeSnapshot(b []byte) (*domain.Session, error) {
	dec, err := zstd.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, domain.WrapEngineError(domain.ErrSnapshotCorrupt.Code, domain.ErrSnapshotCorrupt.Message, err)
	}
	defer dec.Close()

	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, domain.WrapEngineError(domain.ErrSnapshotCorrupt.Code, domain.ErrSnapshotCorrupt.Message, err)
	}
	s := &domain.Session{}
	if err := json.Unmarshal(raw, s); err != nil {
		return nil, domain.WrapEngineError(domain.ErrSnapshotCorrupt.Code, domain.ErrSnapshotCorrupt.Message, err)
	}
	return s, nil
}

// GroupAuthorized implements guard.GroupLookup.
func (j *Journal) GroupAuthorized(ctx context.Context, groupID string) (bool, error) {
	return j.Groups.Contains(ctx, j.DB, groupID)
}

// AuthorizeGroup allows a group to host games.
func (j *Journal) AuthorizeGroup(ctx context.Context, groupID, by string) (bool, error) {
	return j.Groups.Add(ctx, j.DB, groupID, by, j.now().Unix())
}

// DeauthorizeGroup revokes a group.
func (j *Journal) DeauthorizeGroup(ctx context.Context, groupID string) (bool, error) {
	return j.Groups.Remove(ctx, j.DB, groupID)
}
