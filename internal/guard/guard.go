// Package guard decides who may issue manual commands and throttles
// per-player actions.
package guard

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/open-policy-agent/opa/rego"

	"github.com/aether-games/echoes-engine/internal/domain"
)

// Command is a manual command subject to policy.
type Command string

const (
	CmdStartGame   Command = "startgame"
	CmdForceStart  Command = "forcestart"
	CmdExtend      Command = "extend"
	CmdCancel      Command = "cancel"
	CmdAdvance     Command = "advance"
	CmdObserve     Command = "observe"
	CmdAuthorize   Command = "authorize"
	CmdDeauthorize Command = "deauthorize"
)

// Policy decisions.
const (
	DecisionAllow     = "allow"
	DecisionDeny      = "deny"
	DecisionDenyGroup = "deny_group"
)

// GroupLookup reports whether a group may host games.
type GroupLookup interface {
	GroupAuthorized(ctx context.Context, groupID string) (bool, error)
}

// Auditor stores authorization decisions.
type Auditor interface {
	Audit(ctx context.Context, rec domain.AuditRecord) error
}

// GuardConfig holds the owner identity, policy and rate limit.
type GuardConfig struct {
	OwnerID            string
	RateLimitPerMinute int
	// Policy is rego source; DefaultPolicy when empty.
	Policy string
}

// Guard coordinates command policy and action rate checks.
type Guard struct {
	Config  GuardConfig
	Groups  GroupLookup
	Auditor Auditor

	query rego.PreparedEvalQuery
	now   func() time.Time

	mu         sync.Mutex
	rateCounts map[string]*rateBucket
}

type rateBucket struct {
	count       int
	windowStart int64
}

// NewGuard prepares the policy and returns a Guard. groups and auditor may
// be nil.
func NewGuard(ctx context.Context, cfg GuardConfig, groups GroupLookup, auditor Auditor) (*Guard, error) {
	policy := cfg.Policy
	if policy == "" {
		policy = DefaultPolicy
	}
	r := rego.New(
		rego.Query("data.echoes.decision"),
		rego.Module("echoes.rego", policy),
	)
	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}
	if cfg.RateLimitPerMinute == 0 {
		cfg.RateLimitPerMinute = 30
	}
	return &Guard{
		Config:     cfg,
		Groups:     groups,
		Auditor:    auditor,
		query:      query,
		now:        time.Now,
		rateCounts: make(map[string]*rateBucket),
	}, nil
}

// Authorize evaluates the policy for actor issuing cmd in groupID.
func (g *Guard) Authorize(ctx context.Context, cmd Command, actor, groupID string) error {
	authorized := false
	if g.Groups != nil {
		ok, err := g.Groups.GroupAuthorized(ctx, groupID)
		if err != nil {
			return err
		}
		authorized = ok
	}

	input := map[string]any{
		"command":          string(cmd),
		"actor":            actor,
		"owner":            g.Config.OwnerID,
		"group":            groupID,
		"group_authorized": authorized,
	}
	decision, err := g.evaluate(ctx, input)
	if err != nil {
		return err
	}
	g.audit(ctx, groupID, actor, cmd, input, decision)

	switch decision {
	case DecisionAllow:
		return nil
	case DecisionDenyGroup:
		return domain.ErrGroupUnauthorized
	default:
		return domain.ErrUnauthorized
	}
}

func (g *Guard) evaluate(ctx context.Context, input map[string]any) (string, error) {
	results, err := g.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return "", fmt.Errorf("failed to evaluate policy: %w", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return DecisionDeny, nil
	}
	if s, ok := results[0].Expressions[0].Value.(string); ok {
		return s, nil
	}
	return DecisionDeny, nil
}

func (g *Guard) audit(ctx context.Context, groupID, actor string, cmd Command, input map[string]any, decision string) {
	if g.Auditor == nil {
		return
	}
	req, _ := json.Marshal(input)
	dec, _ := json.Marshal(map[string]string{"decision": decision})
	severity := domain.SeverityInfo
	if decision != DecisionAllow {
		severity = domain.SeverityWarn
	}
	err := g.Auditor.Audit(ctx, domain.AuditRecord{
		SessionID:    groupID,
		Category:     domain.AuditCommand,
		Actor:        actor,
		Action:       string(cmd),
		RequestJSON:  string(req),
		DecisionJSON: string(dec),
		Severity:     severity,
	})
	if err != nil {
		log.Printf("WARN: audit %s by %s: %v", cmd, actor, err)
	}
}

// CheckRateLimit enforces a per-key sliding window rate limit.
// The window is 60 seconds. If the count exceeds the configured limit,
// ErrRateLimitExceeded is returned.
func (g *Guard) CheckRateLimit(key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now().Unix()
	bucket, ok := g.rateCounts[key]
	if !ok {
		g.rateCounts[key] = &rateBucket{count: 1, windowStart: now}
		return nil
	}

	if now-bucket.windowStart > 60 {
		bucket.count = 1
		bucket.windowStart = now
		return nil
	}

	if bucket.count >= g.Config.RateLimitPerMinute {
		return domain.ErrRateLimitExceeded
	}

	bucket.count++
	return nil
}

// Forget drops the rate buckets of the given keys.
func (g *Guard) Forget(keys ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, k := range keys {
		delete(g.rateCounts, k)
	}
}

// DefaultPolicy lets the owner manage group authorization and lets
// authorized groups run games. With no owner configured every group may run
// games.
const DefaultPolicy = `
package echoes

default decision = "deny"

owner_command {
	input.command == "authorize"
}

owner_command {
	input.command == "deauthorize"
}

decision = "allow" {
	owner_command
	input.owner != ""
	input.actor == input.owner
}

decision = "allow" {
	not owner_command
	input.group_authorized
}

decision = "allow" {
	not owner_command
	input.owner == ""
}

decision = "deny_group" {
	not owner_command
	input.owner != ""
	not input.group_authorized
}
`
