package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/aether-games/echoes-engine/internal/domain"
	"github.com/aether-games/echoes-engine/internal/gateway"
	"github.com/aether-games/echoes-engine/internal/tasks"
)

// Inbound is a button press delivered by a transport.
type Inbound struct {
	// GroupID is required for the join token and optional otherwise.
	GroupID     string
	PlayerID    string
	DisplayName string
	Token       string
}

// HandleAction dispatches a callback token.
func (c *Coordinator) HandleAction(ctx context.Context, in Inbound) (domain.Outcome, error) {
	act, err := gateway.ParseToken(in.Token)
	if err != nil {
		return domain.Outcome{}, err
	}
	if act.Kind == gateway.ActionJoin {
		if in.GroupID == "" {
			return domain.Outcome{}, domain.ErrNoGame
		}
		return c.Join(ctx, in.GroupID, in.PlayerID, in.DisplayName)
	}

	s, err := c.actionSession(in)
	if err != nil {
		return domain.Outcome{}, err
	}
	var out domain.Outcome
	err = c.transition(ctx, s, "action_"+string(act.Kind), func(st *step) error {
		var err error
		switch act.Kind {
		case gateway.ActionPower:
			out, err = c.usePower(st, in.PlayerID, act.Value)
		case gateway.ActionVote:
			out, err = c.castVote(st, in.PlayerID, act.Value)
		case gateway.ActionEcho:
			out, err = c.castEcho(st, in.PlayerID, domain.EchoChoice(act.Value))
		default:
			err = domain.ErrUnknownAction
		}
		return err
	})
	return out, err
}

func (c *Coordinator) actionSession(in Inbound) (*domain.Session, error) {
	if in.GroupID != "" {
		return c.session(in.GroupID)
	}
	return c.sessionOf(in.PlayerID)
}

// Advance force-triggers the end of the current phase. Any timer armed for
// that phase becomes stale.
func (c *Coordinator) Advance(ctx context.Context, groupID string) (domain.Outcome, error) {
	s, err := c.session(groupID)
	if err != nil {
		return domain.Outcome{}, err
	}
	var from domain.Phase
	err = c.transition(ctx, s, "advance", func(st *step) error {
		if !s.Live() {
			return domain.ErrNoGame
		}
		from = s.Phase
		switch s.Phase {
		case domain.PhaseNight:
			return c.endNight(st)
		case domain.PhaseDay:
			return c.endDay(st)
		case domain.PhaseFinalEcho:
			return c.endFinalEcho(st)
		default:
			return domain.ErrWrongPhase
		}
	})
	if err != nil {
		return domain.Outcome{}, err
	}
	return domain.Outcome{Text: fmt.Sprintf("The %s was cut short.", strings.ReplaceAll(string(from), "_", " "))}, nil
}

// ObserveMessage feeds a group chat message to the phrase-based tasks.
func (c *Coordinator) ObserveMessage(ctx context.Context, groupID, playerID, text string) {
	s, ok := c.Registry.Get(groupID)
	if !ok {
		return
	}
	_ = c.transition(ctx, s, "observe", func(st *step) error {
		p, ok := s.Players[playerID]
		if !s.Live() || !ok || !p.Alive {
			return nil
		}
		for _, t := range c.Tasks.ObserveMessage(p, text) {
			st.dm(playerID, fmt.Sprintf("✅ Task completed: %s\nReward: %s", t.Description, t.Reward))
			c.record(st, "task_completed", map[string]string{"player_id": playerID, "task_id": t.ID}, false)
		}
		return nil
	})
}

// SubmitTask completes the caller's active task carrying code.
func (c *Coordinator) SubmitTask(ctx context.Context, playerID, code string) (domain.Outcome, error) {
	var out domain.Outcome
	err := c.withPlayer(ctx, playerID, "submit_task", func(st *step, p *domain.Player) error {
		if !p.Alive {
			return domain.ErrPlayerEliminated
		}
		t, err := c.Tasks.Submit(p, code)
		if err != nil {
			return err
		}
		c.record(st, "task_completed", map[string]string{"player_id": playerID, "task_id": t.ID}, false)
		out = domain.Outcome{Text: fmt.Sprintf("✅ Task completed successfully!\nReward: %s", t.Reward)}
		return nil
	})
	return out, err
}

// ListTasks shows the caller's active tasks.
func (c *Coordinator) ListTasks(ctx context.Context, playerID string) (domain.Outcome, error) {
	var out domain.Outcome
	err := c.withPlayer(ctx, playerID, "list_tasks", func(_ *step, p *domain.Player) error {
		active := tasks.ListActive(p)
		if len(active) == 0 {
			out = domain.Outcome{Text: "📭 You have no active tasks."}
			return nil
		}
		var b strings.Builder
		b.WriteString("🧾 Your tasks:")
		for _, t := range active {
			b.WriteString("\n• ")
			b.WriteString(t.Description)
		}
		out = domain.Outcome{Text: b.String()}
		return nil
	})
	return out, err
}

// AbandonTask drops every active task of the caller.
func (c *Coordinator) AbandonTask(ctx context.Context, playerID string) (domain.Outcome, error) {
	var out domain.Outcome
	err := c.withPlayer(ctx, playerID, "abandon_task", func(st *step, p *domain.Player) error {
		if !p.Alive {
			return domain.ErrPlayerEliminated
		}
		n, err := c.Tasks.Abandon(p)
		if err != nil {
			return err
		}
		c.record(st, "task_abandoned", map[string]any{"player_id": playerID, "count": n}, false)
		out = domain.Outcome{Text: "⚠️ Task abandoned."}
		return nil
	})
	return out, err
}

func (c *Coordinator) withPlayer(ctx context.Context, playerID, name string, fn func(st *step, p *domain.Player) error) error {
	s, err := c.sessionOf(playerID)
	if err != nil {
		return err
	}
	return c.transition(ctx, s, name, func(st *step) error {
		p, ok := s.Players[playerID]
		if !ok || s.Status.Terminal() {
			return domain.ErrNotJoined
		}
		return fn(st, p)
	})
}

// PlayerView is the public face of a player. Roles stay hidden until the
// session is over.
type PlayerView struct {
	ID    string      `json:"id"`
	Name  string      `json:"name"`
	Alive bool        `json:"alive"`
	Role  domain.Role `json:"role,omitempty"`
}

// View is a read-only summary of a session.
type View struct {
	SessionID     string            `json:"session_id"`
	Status        domain.Status     `json:"status"`
	Phase         domain.Phase      `json:"phase"`
	Round         int               `json:"round"`
	Players       []PlayerView      `json:"players"`
	VotesCast     int               `json:"votes_cast"`
	FalseProphecy bool              `json:"false_prophecy"`
	Winner        domain.Faction    `json:"winner,omitempty"`
	EchoOutcome   domain.EchoChoice `json:"echo_outcome,omitempty"`
}

// Describe returns the current view of a group's session.
func (c *Coordinator) Describe(groupID string) (View, error) {
	s, err := c.session(groupID)
	if err != nil {
		return View{}, err
	}
	s.Lock()
	defer s.Unlock()
	v := View{
		SessionID:     s.ID,
		Status:        s.Status,
		Phase:         s.Phase,
		Round:         s.Round,
		VotesCast:     len(s.Votes),
		FalseProphecy: s.FalseProphecy,
		Winner:        s.Winner,
		EchoOutcome:   s.EchoOutcome,
	}
	for _, p := range s.Roster() {
		pv := PlayerView{ID: p.ID, Name: s.Name(p.ID), Alive: p.Alive}
		if s.Status.Terminal() {
			pv.Role = p.Role
		}
		v.Players = append(v.Players, pv)
	}
	return v, nil
}
