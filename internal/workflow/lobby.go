package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aether-games/echoes-engine/internal/domain"
	"github.com/aether-games/echoes-engine/internal/gateway"
	"github.com/aether-games/echoes-engine/internal/roles"
	"github.com/aether-games/echoes-engine/internal/story"
)

// StartLobby opens a pending session in a group and starts the countdown.
func (c *Coordinator) StartLobby(ctx context.Context, groupID string) (domain.Outcome, error) {
	s, err := c.Registry.Create(groupID)
	if err != nil {
		return domain.Outcome{}, err
	}
	err = c.transition(ctx, s, "lobby", func(st *step) error {
		s.LobbyDeadline = c.now().Add(c.Config.LobbyCountdown)
		s.Bump()
		st.group("🧩 Echoes of Aether begins! Click below to join the match!",
			gateway.Button{Label: "Join Game", Token: gateway.TokenJoin})
		st.out = append(st.out, gateway.Envelope{
			To:  gateway.Group(s.ID),
			Msg: gateway.Message{Text: lobbyText(s)},
			OnSent: func(id gateway.MessageID) {
				s.Lock()
				s.LobbyMessage = string(id)
				s.Unlock()
			},
		})
		c.armLobby(st, c.Config.LobbyCountdown)
		c.record(st, "lobby_opened", map[string]any{"deadline": s.LobbyDeadline.Unix()}, false)
		return nil
	})
	if err != nil {
		return domain.Outcome{}, err
	}
	return domain.Outcome{Text: "The lobby is open."}, nil
}

// armLobby schedules the countdown alerts and the automatic begin for the
// time remaining until the lobby deadline.
func (c *Coordinator) armLobby(st *step, remaining time.Duration) {
	for _, left := range c.Config.LobbyAlerts {
		if left <= 0 || left >= remaining {
			continue
		}
		c.schedule(st, remaining-left, "lobby_alert", func(st *step) error {
			st.group(fmt.Sprintf("⏳ %d seconds left to join!", int(left.Seconds())))
			return nil
		})
	}
	c.schedule(st, remaining, "lobby_begin", func(st *step) error {
		if err := c.begin(st); err != nil {
			st.group("❌ " + domain.UserMessage(err))
		}
		return nil
	})
}

// Join adds a player to a pending session.
func (c *Coordinator) Join(ctx context.Context, groupID, playerID, name string) (domain.Outcome, error) {
	s, err := c.session(groupID)
	if err != nil {
		return domain.Outcome{}, err
	}
	err = c.transition(ctx, s, "join", func(st *step) error {
		if s.Status != domain.StatusPending {
			return domain.ErrNotPending
		}
		if _, ok := s.Players[playerID]; ok {
			return domain.ErrAlreadyJoined
		}
		if !c.claim(playerID, s.ID) {
			return domain.ErrInOtherGame
		}
		s.AddPlayer(playerID, name)
		st.edits = append(st.edits, edit{to: gateway.Group(s.ID), id: gateway.MessageID(s.LobbyMessage), msg: gateway.Message{Text: lobbyText(s)}})
		c.record(st, "player_joined", map[string]string{"player_id": playerID}, false)
		return nil
	})
	if err != nil {
		return domain.Outcome{}, err
	}
	return domain.Outcome{Text: "You have joined the game."}, nil
}

// Flee removes a player from a pending session.
func (c *Coordinator) Flee(ctx context.Context, groupID, playerID string) (domain.Outcome, error) {
	s, err := c.session(groupID)
	if err != nil {
		return domain.Outcome{}, err
	}
	err = c.transition(ctx, s, "flee", func(st *step) error {
		if s.Status != domain.StatusPending {
			return domain.ErrAlreadyStarted
		}
		name := s.Name(playerID)
		if !s.RemovePlayer(playerID) {
			return domain.ErrNotJoined
		}
		c.mu.Lock()
		delete(c.members, playerID)
		c.mu.Unlock()
		st.group(fmt.Sprintf("🏃 @%s fled the lobby.", name))
		st.edits = append(st.edits, edit{to: gateway.Group(s.ID), id: gateway.MessageID(s.LobbyMessage), msg: gateway.Message{Text: lobbyText(s)}})
		c.record(st, "player_fled", map[string]string{"player_id": playerID}, false)
		return nil
	})
	if err != nil {
		return domain.Outcome{}, err
	}
	return domain.Outcome{Text: "You left the lobby."}, nil
}

// ExtendLobby pushes the lobby deadline back. Timers armed for the old
// deadline become stale.
func (c *Coordinator) ExtendLobby(ctx context.Context, groupID string) (domain.Outcome, error) {
	s, err := c.session(groupID)
	if err != nil {
		return domain.Outcome{}, err
	}
	err = c.transition(ctx, s, "extend", func(st *step) error {
		if s.Status != domain.StatusPending {
			return domain.ErrAlreadyStarted
		}
		now := c.now()
		if s.LobbyDeadline.Before(now) {
			s.LobbyDeadline = now
		}
		s.LobbyDeadline = s.LobbyDeadline.Add(c.Config.LobbyExtend)
		s.Bump()
		st.group("⏳ Extra time added! Waiting for more players...")
		c.armLobby(st, s.LobbyDeadline.Sub(now))
		c.record(st, "lobby_extended", map[string]any{"deadline": s.LobbyDeadline.Unix()}, false)
		return nil
	})
	if err != nil {
		return domain.Outcome{}, err
	}
	return domain.Outcome{Text: "The lobby was extended."}, nil
}

// ForceBegin starts a pending session immediately.
func (c *Coordinator) ForceBegin(ctx context.Context, groupID string) (domain.Outcome, error) {
	s, err := c.session(groupID)
	if err != nil {
		return domain.Outcome{}, err
	}
	if err := c.transition(ctx, s, "force_begin", c.begin); err != nil {
		return domain.Outcome{}, err
	}
	return domain.Outcome{Text: "The game has begun."}, nil
}

// begin deals roles and enters the first night. The session is left
// untouched when a precondition fails.
func (c *Coordinator) begin(st *step) error {
	s := st.s
	switch {
	case s.Status.Terminal():
		return domain.ErrNoGame
	case s.Status != domain.StatusPending:
		return domain.ErrAlreadyStarted
	case len(s.Players) < c.Config.MinPlayers:
		return domain.ErrNotEnoughPlayers
	}

	s.MarkStarted()
	roles.Apply(s, roles.Assign(s.JoinOrder, c.Config.Roles, c.rng))
	for _, p := range s.Roster() {
		st.dm(p.ID, fmt.Sprintf("🎭 Your role: %s.", p.Role))
	}
	st.group("🎮 The game begins!")
	c.record(st, "game_started", map[string]int{"players": len(s.Players)}, true)
	c.enterNight(st)
	return nil
}

// Cancel stops a session and plays the cancel animation in the group.
func (c *Coordinator) Cancel(ctx context.Context, groupID string) (domain.Outcome, error) {
	s, err := c.session(groupID)
	if err != nil {
		return domain.Outcome{}, err
	}
	var animation gateway.MessageID
	err = c.transition(ctx, s, "cancel", func(st *step) error {
		if s.Status.Terminal() {
			return domain.ErrNoGame
		}
		s.Cancel()
		st.group("🚫 The game has been cancelled. Watch closely...")
		st.out = append(st.out, gateway.Envelope{
			To:     gateway.Group(s.ID),
			Msg:    gateway.Message{Text: "..."},
			OnSent: func(id gateway.MessageID) { animation = id },
		})
		c.record(st, "game_cancelled", nil, true)
		st.teardown = true
		return nil
	})
	if err != nil {
		return domain.Outcome{}, err
	}
	c.playFrames(ctx, gateway.Group(groupID), animation)
	return domain.Outcome{Text: "The game was cancelled."}, nil
}

// playFrames edits msg through the cancel animation.
func (c *Coordinator) playFrames(ctx context.Context, to gateway.Recipient, id gateway.MessageID) {
	if id == "" {
		return
	}
	first := true
	for frame := range story.CancelFrames() {
		if !first && c.Config.FrameDelay > 0 {
			select {
			case <-time.After(c.Config.FrameDelay):
			case <-ctx.Done():
				return
			}
		}
		first = false
		gateway.EditQuietly(ctx, c.Gateway, to, id, gateway.Message{Text: frame})
	}
}

func lobbyText(s *domain.Session) string {
	if len(s.JoinOrder) == 0 {
		return "📜 Players joined:\n(Waiting...)"
	}
	var b strings.Builder
	b.WriteString("📜 Players joined:")
	for _, id := range s.JoinOrder {
		b.WriteString("\n• @")
		b.WriteString(s.Name(id))
	}
	return b.String()
}
