package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aether-games/echoes-engine/internal/domain"
)

func TestAuditRepo_RecordAndList(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := &AuditRepo{}
	now := time.Now().Unix()

	records := []domain.AuditRecord{
		{ID: "aud-1", SessionID: "g1", Category: "command", Actor: "u1", Action: "startgame", RequestJSON: "{}", DecisionJSON: `{"decision":"allow"}`, Severity: "info", CreatedAt: now},
		{ID: "aud-2", SessionID: "g1", Category: "delivery", Actor: "player:u2", Action: "send", RequestJSON: "{}", DecisionJSON: "{}", Severity: "warn", CreatedAt: now + 1},
		{ID: "aud-3", SessionID: "g2", Category: "command", Actor: "u3", Action: "cancel", RequestJSON: "{}", DecisionJSON: `{"decision":"deny"}`, Severity: "warn", CreatedAt: now + 2},
	}
	for _, r := range records {
		if err := repo.Record(ctx, db, r); err != nil {
			t.Fatalf("Record %s: %v", r.ID, err)
		}
	}

	got, err := repo.ListBySession(ctx, db, "g1")
	if err != nil {
		t.Fatalf("ListBySession: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if got[0].ID != "aud-1" || got[1].ID != "aud-2" {
		t.Errorf("records = %q, %q; want aud-1, aud-2", got[0].ID, got[1].ID)
	}

	if err := repo.Record(ctx, db, records[0]); err == nil {
		t.Error("expected error on duplicate ID, got nil")
	}

	empty, err := repo.ListBySession(ctx, db, "nonexistent")
	if err != nil {
		t.Fatalf("ListBySession: %v", err)
	}
	if empty != nil {
		t.Errorf("expected nil for empty result, got %v", empty)
	}
}

func TestAuditRepo_CategoryQueries(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := &AuditRepo{}

	records := []domain.AuditRecord{
		{ID: "a1", SessionID: "g1", Category: domain.AuditDelivery, Actor: "player:p1", Action: "send", Severity: domain.SeverityWarn, CreatedAt: 10},
		{ID: "a2", SessionID: "g1", Category: domain.AuditDelivery, Actor: "player:p1", Action: "send", Severity: domain.SeverityWarn, CreatedAt: 11},
		{ID: "a3", SessionID: "g1", Category: domain.AuditDelivery, Actor: "group:g1", Action: "send", Severity: domain.SeverityWarn, CreatedAt: 12},
		{ID: "a4", SessionID: "g1", Category: domain.AuditCommand, Actor: "player:p1", Action: "cancel", Severity: domain.SeverityWarn, CreatedAt: 13},
		{ID: "a5", SessionID: "g1", Category: domain.AuditCommand, Actor: "owner", Action: "startgame", Severity: domain.SeverityInfo, CreatedAt: 14},
		{ID: "a6", SessionID: "g2", Category: domain.AuditDelivery, Actor: "player:p9", Action: "send", Severity: domain.SeverityWarn, CreatedAt: 15},
	}
	for _, r := range records {
		r.RequestJSON, r.DecisionJSON = "{}", "{}"
		if err := repo.Record(ctx, db, r); err != nil {
			t.Fatalf("Record %s: %v", r.ID, err)
		}
	}

	commands, err := repo.ListByCategory(ctx, db, "g1", domain.AuditCommand)
	if err != nil {
		t.Fatalf("ListByCategory: %v", err)
	}
	if len(commands) != 2 || commands[0].ID != "a4" || commands[1].ID != "a5" {
		t.Errorf("command records = %+v, want a4, a5", commands)
	}

	failed, err := repo.CountByActor(ctx, db, "g1", domain.AuditDelivery, domain.SeverityWarn)
	if err != nil {
		t.Fatalf("CountByActor: %v", err)
	}
	if len(failed) != 2 || failed["player:p1"] != 2 || failed["group:g1"] != 1 {
		t.Errorf("delivery failures = %v, want player:p1=2 group:g1=1", failed)
	}

	none, err := repo.CountByActor(ctx, db, "g3", domain.AuditDelivery, domain.SeverityWarn)
	if err != nil || len(none) != 0 {
		t.Errorf("CountByActor(g3) = %v, %v; want empty", none, err)
	}
}

func TestEventRepo_AppendListAndDuplicate(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := &EventRepo{}

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	for i := int64(1); i <= 3; i++ {
		e := domain.GameEvent{SessionID: "g1", SeqNo: i, Phase: domain.PhaseNight, Round: 0, EventType: "vote_cast", PayloadJSON: "{}", CreatedAt: i}
		if err := repo.AppendTx(ctx, tx, e); err != nil {
			t.Fatalf("AppendTx %d: %v", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	got, err := repo.ListBySession(ctx, db, "g1", 1)
	if err != nil {
		t.Fatalf("ListBySession: %v", err)
	}
	if len(got) != 2 || got[0].SeqNo != 2 || got[1].SeqNo != 3 {
		t.Fatalf("events since 1 = %+v", got)
	}
	if got[0].Phase != domain.PhaseNight {
		t.Errorf("phase = %q, want night", got[0].Phase)
	}

	tx, err = db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Rollback()
	dup := domain.GameEvent{SessionID: "g1", SeqNo: 2, Phase: domain.PhaseDay, EventType: "x", PayloadJSON: "{}"}
	if err := repo.AppendTx(ctx, tx, dup); err == nil {
		t.Error("expected error on duplicate seq_no, got nil")
	}
}

func TestSnapshotRepo_GetLatest(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := &SnapshotRepo{}

	got, err := repo.GetLatest(ctx, db, "g1")
	if err != nil || got != nil {
		t.Fatalf("GetLatest on empty = %v, %v; want nil, nil", got, err)
	}

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	for i, p := range []domain.Phase{domain.PhaseNight, domain.PhaseDay} {
		snap := domain.PhaseSnapshot{SessionID: "g1", Phase: p, Round: i, Generation: int64(i + 1), State: []byte{byte(i)}, CreatedAt: int64(i)}
		if err := repo.SaveTx(ctx, tx, snap); err != nil {
			t.Fatalf("SaveTx: %v", err)
		}
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	got, err = repo.GetLatest(ctx, db, "g1")
	if err != nil {
		t.Fatalf("GetLatest: %v", err)
	}
	if got.Phase != domain.PhaseDay || got.Generation != 2 || len(got.State) != 1 || got.State[0] != 1 {
		t.Errorf("latest = %+v", got)
	}
}

func TestSessionRepo_OptimisticLock(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := &SessionRepo{}

	rec := domain.SessionRecord{SessionID: "g1", Status: domain.StatusPending, Phase: domain.PhaseNone, StateVersion: 1}
	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := repo.CreateTx(ctx, tx, rec); err != nil {
		t.Fatalf("CreateTx: %v", err)
	}
	tx.Commit()

	// Update with correct version should succeed.
	rec.Status = domain.StatusStarted
	rec.Phase = domain.PhaseNight
	tx2, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := repo.UpdateStateTx(ctx, tx2, rec); err != nil {
		t.Fatalf("UpdateStateTx: %v", err)
	}
	tx2.Commit()

	// rec.StateVersion is still 1 but the row is now at 2.
	rec.Phase = domain.PhaseDay
	tx3, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	err = repo.UpdateStateTx(ctx, tx3, rec)
	tx3.Rollback()
	if !errors.Is(err, domain.ErrOptimisticLock) {
		t.Errorf("expected ErrOptimisticLock, got %v", err)
	}

	got, err := repo.GetByID(ctx, db, "g1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.StateVersion != 2 || got.Phase != domain.PhaseNight || got.Status != domain.StatusStarted {
		t.Errorf("stored = %+v", got)
	}

	started, err := repo.ListByStatus(ctx, db, domain.StatusStarted)
	if err != nil || len(started) != 1 {
		t.Errorf("ListByStatus = %v, %v", started, err)
	}

	if _, err := repo.GetByID(ctx, db, "missing"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("GetByID missing = %v, want ErrSessionNotFound", err)
	}
}

func TestGroupRepo(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := &GroupRepo{}

	added, err := repo.Add(ctx, db, "g1", "owner", 1)
	if err != nil || !added {
		t.Fatalf("Add = %v, %v", added, err)
	}
	if added, _ := repo.Add(ctx, db, "g1", "owner", 2); added {
		t.Error("second Add reported new")
	}
	if ok, _ := repo.Contains(ctx, db, "g1"); !ok {
		t.Error("Contains g1 = false")
	}
	removed, err := repo.Remove(ctx, db, "g1")
	if err != nil || !removed {
		t.Fatalf("Remove = %v, %v", removed, err)
	}
	if removed, _ := repo.Remove(ctx, db, "g1"); removed {
		t.Error("second Remove reported removal")
	}
	if ok, _ := repo.Contains(ctx, db, "g1"); ok {
		t.Error("Contains after Remove = true")
	}
}
