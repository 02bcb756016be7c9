package domain

import (
	"slices"
	"sync"
	"time"
)

// Session is one running match scoped to a group. All reads and writes of a
// Session happen while holding its lock; the helpers below assume it is held.
type Session struct {
	ID            string                `json:"id"`
	Status        Status                `json:"status"`
	Phase         Phase                 `json:"phase"`
	Round         int                   `json:"round"`
	Generation    int64                 `json:"generation"`
	Players       map[string]*Player    `json:"players"`
	JoinOrder     []string              `json:"join_order"`
	Votes         map[string]string     `json:"votes"`
	PendingDeaths []string              `json:"pending_deaths"`
	PendingPowers map[string]string     `json:"pending_powers"`
	EchoVotes     map[string]EchoChoice `json:"echo_votes"`
	FalseProphecy bool                  `json:"false_prophecy"`
	TwistCounter  int                   `json:"twist_counter"`
	Winner        Faction               `json:"winner,omitempty"`
	EchoOutcome   EchoChoice            `json:"echo_outcome,omitempty"`
	LobbyDeadline time.Time             `json:"lobby_deadline"`
	LobbyMessage  string                `json:"lobby_message,omitempty"`
	CreatedAt     time.Time             `json:"created_at"`

	mu sync.Mutex
}

// NewSession returns a pending session with empty collections.
func NewSession(id string, now time.Time) *Session {
	return &Session{
		ID:            id,
		Status:        StatusPending,
		Phase:         PhaseNone,
		Players:       make(map[string]*Player),
		Votes:         make(map[string]string),
		PendingPowers: make(map[string]string),
		EchoVotes:     make(map[string]EchoChoice),
		CreatedAt:     now,
	}
}

// Lock acquires the session's exclusive region.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the session's exclusive region.
func (s *Session) Unlock() { s.mu.Unlock() }

// Live reports whether the session accepts phase transitions.
func (s *Session) Live() bool {
	return s.Status == StatusStarted
}

// AddPlayer adds a player while the session is pending. It returns false if
// the player is already present or the session is not pending.
func (s *Session) AddPlayer(id, name string) bool {
	if s.Status != StatusPending {
		return false
	}
	if _, ok := s.Players[id]; ok {
		return false
	}
	s.Players[id] = &Player{ID: id, DisplayName: name, Alive: true}
	s.JoinOrder = append(s.JoinOrder, id)
	return true
}

// RemovePlayer removes a player from a pending session.
func (s *Session) RemovePlayer(id string) bool {
	if s.Status != StatusPending {
		return false
	}
	if _, ok := s.Players[id]; !ok {
		return false
	}
	delete(s.Players, id)
	s.JoinOrder = slices.DeleteFunc(s.JoinOrder, func(p string) bool { return p == id })
	return true
}

// Bump invalidates every timer scheduled against the current generation.
func (s *Session) Bump() int64 {
	s.Generation++
	return s.Generation
}

// SetPhase enters phase p and returns the new generation stamp.
func (s *Session) SetPhase(p Phase) int64 {
	s.Phase = p
	return s.Bump()
}

// MarkStarted moves a pending session to started.
func (s *Session) MarkStarted() bool {
	if s.Status != StatusPending {
		return false
	}
	s.Status = StatusStarted
	return true
}

// IncrementRound advances the round counter.
func (s *Session) IncrementRound() int {
	s.Round++
	return s.Round
}

// Cancel marks the session cancelled. Pending timers become no-ops.
func (s *Session) Cancel() {
	s.Status = StatusCancelled
	s.Bump()
}

// End marks the session ended with the given winner.
func (s *Session) End(winner Faction) {
	s.Status = StatusEnded
	s.Winner = winner
	s.Bump()
}

// RecordVote stores voter's choice, replacing an earlier one.
func (s *Session) RecordVote(voter, target string) error {
	v, ok := s.Players[voter]
	if !ok {
		return ErrNotJoined
	}
	if !v.Alive {
		return ErrPlayerEliminated
	}
	t, ok := s.Players[target]
	if !ok || !t.Alive || voter == target {
		return ErrInvalidTarget
	}
	s.Votes[voter] = target
	return nil
}

// ClearVotes empties the vote map.
func (s *Session) ClearVotes() {
	clear(s.Votes)
}

// KillPlayer eliminates a living player. It returns false if the player is
// unknown or already dead.
func (s *Session) KillPlayer(id string) bool {
	p, ok := s.Players[id]
	if !ok || !p.Alive {
		return false
	}
	p.Alive = false
	p.ProtectedUntilRound = 0
	p.VoteDisabledRounds = 0
	return true
}

// ExpireEffects drops effects scoped to the phase being entered.
func (s *Session) ExpireEffects(phase Phase) {
	for _, p := range s.Players {
		switch phase {
		case PhaseNight:
			if p.ProtectedUntilRound != 0 && p.ProtectedUntilRound <= s.Round {
				p.ProtectedUntilRound = 0
			}
			if p.VoteDisabledRounds > 0 {
				p.VoteDisabledRounds--
			}
		case PhaseDay:
			if p.ProtectedUntilRound != 0 && p.ProtectedUntilRound < s.Round {
				p.ProtectedUntilRound = 0
			}
		}
	}
	if phase == PhaseNight {
		clear(s.PendingPowers)
	}
}

// AlivePlayers returns living player ids in join order.
func (s *Session) AlivePlayers() []string {
	out := make([]string, 0, len(s.JoinOrder))
	for _, id := range s.JoinOrder {
		if p := s.Players[id]; p != nil && p.Alive {
			out = append(out, id)
		}
	}
	return out
}

// AliveSet returns the living players as a set.
func (s *Session) AliveSet() map[string]bool {
	out := make(map[string]bool, len(s.Players))
	for id, p := range s.Players {
		if p.Alive {
			out[id] = true
		}
	}
	return out
}

// ProtectedSet returns living players shielded during the current round.
func (s *Session) ProtectedSet() map[string]bool {
	out := make(map[string]bool)
	for id, p := range s.Players {
		if p.Alive && p.ProtectedUntilRound != 0 && p.ProtectedUntilRound >= s.Round {
			out[id] = true
		}
	}
	return out
}

// DisabledVoters returns players whose votes do not count this day.
func (s *Session) DisabledVoters() map[string]bool {
	out := make(map[string]bool)
	for id, p := range s.Players {
		if p.VoteDisabledRounds > 0 {
			out[id] = true
		}
	}
	return out
}

// Roster returns every player, alive or not, in join order.
func (s *Session) Roster() []*Player {
	out := make([]*Player, 0, len(s.JoinOrder))
	for _, id := range s.JoinOrder {
		if p := s.Players[id]; p != nil {
			out = append(out, p)
		}
	}
	return out
}

// Name returns the display name of a player, falling back to the id.
func (s *Session) Name(id string) string {
	if p, ok := s.Players[id]; ok && p.DisplayName != "" {
		return p.DisplayName
	}
	return "user" + id
}
