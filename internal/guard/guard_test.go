package guard

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aether-games/echoes-engine/internal/domain"
)

type fakeGroups map[string]bool

func (f fakeGroups) GroupAuthorized(_ context.Context, groupID string) (bool, error) {
	return f[groupID], nil
}

type recordingAuditor struct {
	mu   sync.Mutex
	recs []domain.AuditRecord
}

func (r *recordingAuditor) Audit(_ context.Context, rec domain.AuditRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recs = append(r.recs, rec)
	return nil
}

func newGuard(t *testing.T, cfg GuardConfig, groups GroupLookup, auditor Auditor) *Guard {
	t.Helper()
	g, err := NewGuard(context.Background(), cfg, groups, auditor)
	if err != nil {
		t.Fatalf("NewGuard: %v", err)
	}
	return g
}

func TestAuthorize_DefaultPolicy(t *testing.T) {
	groups := fakeGroups{"g1": true}
	g := newGuard(t, GuardConfig{OwnerID: "boss"}, groups, nil)
	ctx := context.Background()

	tests := []struct {
		name  string
		cmd   Command
		actor string
		group string
		want  error
	}{
		{"start in authorized group", CmdStartGame, "u1", "g1", nil},
		{"start in unknown group", CmdStartGame, "u1", "g2", domain.ErrGroupUnauthorized},
		{"cancel in authorized group", CmdCancel, "u1", "g1", nil},
		{"owner authorizes", CmdAuthorize, "boss", "g2", nil},
		{"player authorizes", CmdAuthorize, "u1", "g1", domain.ErrUnauthorized},
		{"player deauthorizes", CmdDeauthorize, "u1", "g1", domain.ErrUnauthorized},
		{"owner deauthorizes", CmdDeauthorize, "boss", "g1", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := g.Authorize(ctx, tt.cmd, tt.actor, tt.group)
			if !errors.Is(err, tt.want) {
				t.Errorf("Authorize = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestAuthorize_NoOwnerAllowsEveryGroup(t *testing.T) {
	g := newGuard(t, GuardConfig{}, nil, nil)
	ctx := context.Background()
	if err := g.Authorize(ctx, CmdStartGame, "u1", "anywhere"); err != nil {
		t.Errorf("start without owner = %v", err)
	}
	if err := g.Authorize(ctx, CmdAuthorize, "u1", "anywhere"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("authorize without owner = %v, want ErrUnauthorized", err)
	}
}

func TestAuthorize_CustomPolicy(t *testing.T) {
	policy := `
package echoes

default decision = "deny"

decision = "allow" {
	input.command == "startgame"
	startswith(input.actor, "mod-")
}
`
	g := newGuard(t, GuardConfig{Policy: policy}, nil, nil)
	ctx := context.Background()
	if err := g.Authorize(ctx, CmdStartGame, "mod-1", "g1"); err != nil {
		t.Errorf("moderator start = %v", err)
	}
	if err := g.Authorize(ctx, CmdStartGame, "u1", "g1"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("player start = %v, want ErrUnauthorized", err)
	}
}

func TestNewGuard_BadPolicy(t *testing.T) {
	_, err := NewGuard(context.Background(), GuardConfig{Policy: "package echoes\n\ndecision = {"}, nil, nil)
	if err == nil {
		t.Fatal("NewGuard accepted a broken policy")
	}
}

func TestAuthorize_AuditsDecision(t *testing.T) {
	aud := &recordingAuditor{}
	g := newGuard(t, GuardConfig{OwnerID: "boss"}, fakeGroups{}, aud)
	_ = g.Authorize(context.Background(), CmdForceStart, "u1", "g9")

	if len(aud.recs) != 1 {
		t.Fatalf("audits = %d, want 1", len(aud.recs))
	}
	rec := aud.recs[0]
	if rec.SessionID != "g9" || rec.Action != "forcestart" || rec.Severity != domain.SeverityWarn {
		t.Errorf("audit = %+v", rec)
	}
	if !strings.Contains(rec.DecisionJSON, DecisionDenyGroup) {
		t.Errorf("decision = %s", rec.DecisionJSON)
	}
}

func TestCheckRateLimit_WindowResets(t *testing.T) {
	g := newGuard(t, GuardConfig{RateLimitPerMinute: 5}, nil, nil)
	now := time.Unix(1000, 0)
	g.now = func() time.Time { return now }

	for i := 0; i < 5; i++ {
		if err := g.CheckRateLimit("p1"); err != nil {
			t.Fatalf("CheckRateLimit iteration %d: %v", i, err)
		}
	}
	if err := g.CheckRateLimit("p1"); !errors.Is(err, domain.ErrRateLimitExceeded) {
		t.Fatalf("expected ErrRateLimitExceeded, got %v", err)
	}
	if err := g.CheckRateLimit("p2"); err != nil {
		t.Errorf("other key limited: %v", err)
	}

	now = now.Add(61 * time.Second)
	if err := g.CheckRateLimit("p1"); err != nil {
		t.Fatalf("CheckRateLimit after window reset: %v", err)
	}
}

func TestForget(t *testing.T) {
	g := newGuard(t, GuardConfig{RateLimitPerMinute: 1}, nil, nil)
	if err := g.CheckRateLimit("p1"); err != nil {
		t.Fatal(err)
	}
	if err := g.CheckRateLimit("p1"); err == nil {
		t.Fatal("second call not limited")
	}
	g.Forget("p1")
	if err := g.CheckRateLimit("p1"); err != nil {
		t.Errorf("after Forget: %v", err)
	}
}
