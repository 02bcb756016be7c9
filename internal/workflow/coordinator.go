// Package workflow drives the phase state machine of a session: lobby,
// night, dawn, day and the Final Echo.
package workflow

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/aether-games/echoes-engine/internal/archive"
	"github.com/aether-games/echoes-engine/internal/domain"
	"github.com/aether-games/echoes-engine/internal/gateway"
	"github.com/aether-games/echoes-engine/internal/registry"
	"github.com/aether-games/echoes-engine/internal/roles"
	"github.com/aether-games/echoes-engine/internal/schedule"
	"github.com/aether-games/echoes-engine/internal/tasks"
)

// Config holds the timing and rule knobs of the coordinator.
type Config struct {
	MinPlayers         int
	LobbyCountdown     time.Duration
	LobbyExtend        time.Duration
	LobbyAlerts        []time.Duration // remaining time at which to warn
	NightWindow        time.Duration
	DayWindow          time.Duration
	EchoWindow         time.Duration
	FrameDelay         time.Duration
	FinalEchoRound     int
	FalseProphecyRound int
	TwistEvery         int
	Roles              roles.Config
}

// DefaultConfig returns the standard game timings.
func DefaultConfig() Config {
	return Config{
		MinPlayers:         3,
		LobbyCountdown:     60 * time.Second,
		LobbyExtend:        30 * time.Second,
		LobbyAlerts:        []time.Duration{30 * time.Second, 10 * time.Second, 5 * time.Second},
		NightWindow:        90 * time.Second,
		DayWindow:          90 * time.Second,
		EchoWindow:         60 * time.Second,
		FrameDelay:         1500 * time.Millisecond,
		FinalEchoRound:     4,
		FalseProphecyRound: 3,
		TwistEvery:         3,
		Roles:              roles.DefaultConfig(),
	}
}

// Journal persists the session history. Record is called with the session
// lock held.
type Journal interface {
	Record(ctx context.Context, s *domain.Session, eventType string, payload any, snapshot bool) error
	Audit(ctx context.Context, rec domain.AuditRecord) error
	EventsFor(ctx context.Context, sessionID string) ([]domain.GameEvent, error)
	DeliveryFailures(ctx context.Context, sessionID string) (map[string]int, error)
}

// RateLimits holds per-player action budgets that die with a session.
type RateLimits interface {
	Forget(keys ...string)
}

// Archiver stores the history of a finished session.
type Archiver interface {
	Write(h archive.Header, events []domain.GameEvent) (string, error)
}

// Coordinator owns every state transition of every session.
type Coordinator struct {
	Registry  registry.Registry
	Gateway   gateway.Gateway
	Scheduler schedule.Scheduler
	Tasks     *tasks.Engine
	Journal   Journal
	Archive   Archiver
	Limits    RateLimits
	Config    Config

	rng    *rand.Rand
	tracer trace.Tracer
	now    func() time.Time

	mu      sync.Mutex
	members map[string]string // player id -> session id
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithJournal persists events and snapshots.
func WithJournal(j Journal) Option { return func(c *Coordinator) { c.Journal = j } }

// WithArchive writes finished sessions to cold storage.
func WithArchive(a Archiver) Option { return func(c *Coordinator) { c.Archive = a } }

// WithRateLimits drops the players' rate buckets when their session ends.
func WithRateLimits(l RateLimits) Option { return func(c *Coordinator) { c.Limits = l } }

// WithSeed makes role deals, task rolls and twists reproducible.
func WithSeed(seed int64) Option { return func(c *Coordinator) { c.rng = newRand(seed) } }

// WithTracer sets the tracer used for transitions.
func WithTracer(t trace.Tracer) Option { return func(c *Coordinator) { c.tracer = t } }

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option { return func(c *Coordinator) { c.now = now } }

// NewCoordinator wires a coordinator.
func NewCoordinator(reg registry.Registry, gw gateway.Gateway, sched schedule.Scheduler, cfg Config, opts ...Option) *Coordinator {
	c := &Coordinator{
		Registry:  reg,
		Gateway:   gw,
		Scheduler: sched,
		Tasks:     tasks.NewEngine(),
		Config:    cfg,
		rng:       newRand(time.Now().UnixNano()),
		tracer:    noop.NewTracerProvider().Tracer(""),
		now:       time.Now,
		members:   make(map[string]string),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// step collects the side effects of one locked transition. Messages are
// delivered only after the session lock is released.
type step struct {
	ctx      context.Context
	s        *domain.Session
	out      []gateway.Envelope
	edits    []edit
	teardown bool
}

type edit struct {
	to  gateway.Recipient
	id  gateway.MessageID
	msg gateway.Message
}

func (st *step) group(text string, buttons ...gateway.Button) {
	st.out = append(st.out, gateway.Envelope{To: gateway.Group(st.s.ID), Msg: gateway.Message{Text: text, Buttons: buttons}})
}

func (st *step) dm(playerID, text string, buttons ...gateway.Button) {
	st.out = append(st.out, gateway.Envelope{To: gateway.Player(playerID), Msg: gateway.Message{Text: text, Buttons: buttons}})
}

// transition runs fn under the session lock, then flushes its outbox.
func (c *Coordinator) transition(ctx context.Context, s *domain.Session, name string, fn func(st *step) error) error {
	ctx, span := c.tracer.Start(ctx, "workflow."+name, trace.WithAttributes(attribute.String("session.id", s.ID)))
	defer span.End()

	st := &step{ctx: ctx, s: s}
	err := c.locked(st, name, fn)
	if errors.Is(err, domain.ErrInvariantViolation) {
		span.RecordError(err)
		return err
	}
	c.flush(ctx, st)
	return err
}

func (c *Coordinator) locked(st *step, name string, fn func(st *step) error) (err error) {
	st.s.Lock()
	defer st.s.Unlock()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ERROR: %s on session %s: %v", name, st.s.ID, r)
			err = domain.ErrInvariantViolation
		}
	}()
	return fn(st)
}

func (c *Coordinator) flush(ctx context.Context, st *step) {
	for _, w := range gateway.Deliver(ctx, c.Gateway, st.out) {
		c.audit(ctx, domain.AuditRecord{
			SessionID: st.s.ID,
			Category:  domain.AuditDelivery,
			Actor:     w.To.String(),
			Action:    "send",
			Severity:  domain.SeverityWarn,
		})
	}
	for _, e := range st.edits {
		gateway.EditQuietly(ctx, c.Gateway, e.to, e.id, e.msg)
	}
	if st.teardown {
		c.teardown(ctx, st.s)
	}
}

// schedule arms a one-shot timer for s. The callback only runs if the
// session still carries the generation and status it had when armed.
func (c *Coordinator) schedule(st *step, delay time.Duration, name string, fn func(st *step) error) {
	s := st.s
	if s.Status.Terminal() {
		return
	}
	gen, want := s.Generation, s.Status
	c.Scheduler.ScheduleOnce(delay, func() {
		err := c.transition(context.Background(), s, name, func(st *step) error {
			if s.Generation != gen || s.Status != want {
				return nil
			}
			return fn(st)
		})
		if err != nil {
			log.Printf("ERROR: timer %s on session %s: %v", name, s.ID, err)
		}
	})
}

// record journals an event. Failures are logged; the game goes on.
func (c *Coordinator) record(st *step, eventType string, payload any, snapshot bool) {
	if c.Journal == nil {
		return
	}
	if err := c.Journal.Record(st.ctx, st.s, eventType, payload, snapshot); err != nil {
		log.Printf("ERROR: journal %s for session %s: %v", eventType, st.s.ID, err)
	}
}

func (c *Coordinator) audit(ctx context.Context, rec domain.AuditRecord) {
	if c.Journal == nil {
		return
	}
	if err := c.Journal.Audit(ctx, rec); err != nil {
		log.Printf("WARN: audit for session %s: %v", rec.SessionID, err)
	}
}

// teardown archives a terminal session and drops every structure tied to it.
// It must run without the session lock held.
func (c *Coordinator) teardown(ctx context.Context, s *domain.Session) {
	s.Lock()
	header := archive.HeaderFor(s, c.now())
	ids := append([]string(nil), s.JoinOrder...)
	s.Unlock()

	if c.Archive != nil && c.Journal != nil {
		if failed, err := c.Journal.DeliveryFailures(ctx, s.ID); err != nil {
			log.Printf("WARN: load delivery failures of %s: %v", s.ID, err)
		} else {
			header.Unreachable = failed
		}
		events, err := c.Journal.EventsFor(ctx, s.ID)
		if err != nil {
			log.Printf("ERROR: load events for archive of %s: %v", s.ID, err)
		} else if path, err := c.Archive.Write(header, events); err != nil {
			log.Printf("ERROR: archive session %s: %v", s.ID, err)
		} else {
			log.Printf("INFO: archived session %s to %s", s.ID, path)
		}
	}

	c.mu.Lock()
	for _, id := range ids {
		if c.members[id] == s.ID {
			delete(c.members, id)
		}
	}
	c.mu.Unlock()
	if c.Limits != nil {
		c.Limits.Forget(ids...)
	}

	if cur, ok := c.Registry.Get(s.ID); ok && cur == s {
		c.Registry.Remove(s.ID)
	}
}

// session returns the session for a group, or ErrNoGame.
func (c *Coordinator) session(groupID string) (*domain.Session, error) {
	s, ok := c.Registry.Get(groupID)
	if !ok {
		return nil, domain.ErrNoGame
	}
	return s, nil
}

// sessionOf returns the session a player belongs to.
func (c *Coordinator) sessionOf(playerID string) (*domain.Session, error) {
	c.mu.Lock()
	id, ok := c.members[playerID]
	c.mu.Unlock()
	if !ok {
		return nil, domain.ErrNotJoined
	}
	s, ok := c.Registry.Get(id)
	if !ok {
		return nil, domain.ErrNotJoined
	}
	return s, nil
}

// claim binds a player to sessionID unless they already belong to another
// session.
func (c *Coordinator) claim(playerID, sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.members[playerID]; ok && cur != sessionID {
		return false
	}
	c.members[playerID] = sessionID
	return true
}

// SessionOf returns the id of the session a player belongs to.
func (c *Coordinator) SessionOf(playerID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.members[playerID]
	return id, ok
}
