package workflow

import (
	"fmt"

	"github.com/aether-games/echoes-engine/internal/domain"
	"github.com/aether-games/echoes-engine/internal/roles"
	"github.com/aether-games/echoes-engine/internal/story"
)

// Twist is a random event fired at the start of some days.
type Twist int

const (
	TwistEchoSwap Twist = iota
	TwistMemoryWipe
	TwistFalseProphet
	TwistEmotionalCollapse
	TwistNightOfWhispers
)

var twistText = map[Twist]string{
	TwistEchoSwap:          "Echo Swap! Every role has been shuffled.",
	TwistMemoryWipe:        "Memory Wipe! All active tasks are forgotten.",
	TwistFalseProphet:      "False Prophet! The Oracle's visions can no longer be trusted.",
	TwistEmotionalCollapse: "Emotional Collapse! Everyone loses a cherished item.",
	TwistNightOfWhispers:   "Night of Whispers! The dead are restless tonight.",
}

// plotTwist fires the False Prophecy on its round and, every TwistEvery
// calls, one random twist. It reports whether the twist ended the session.
func (c *Coordinator) plotTwist(st *step) bool {
	s := st.s
	if s.Round == c.Config.FalseProphecyRound {
		s.FalseProphecy = true
		st.group("🔮 " + story.Pick(story.Prophecy, c.rng))
	}

	s.TwistCounter++
	if c.Config.TwistEvery <= 0 || s.TwistCounter%c.Config.TwistEvery != 0 {
		return false
	}
	t := Twist(c.rng.Intn(len(twistText)))
	st.group("🌪 Plot twist!\n" + twistText[t])
	c.record(st, "plot_twist", map[string]int{"twist": int(t)}, false)
	return c.applyTwist(st, t)
}

// applyTwist mutates the session for t. Echo Swap deals roles to the dead
// as well, so it can hand the game to one faction on the spot.
func (c *Coordinator) applyTwist(st *step, t Twist) bool {
	s := st.s
	switch t {
	case TwistEchoSwap:
		roster := s.Roster()
		roles.Reshuffle(roster, c.rng)
		for _, p := range roster {
			if p.Alive {
				st.dm(p.ID, fmt.Sprintf("🎭 Your echo now sings as the %s.", p.Role))
			}
		}
		if winner, ok := c.checkWin(s); ok {
			c.finish(st, winner)
			return true
		}
	case TwistMemoryWipe:
		var alive []*domain.Player
		for _, id := range s.AlivePlayers() {
			alive = append(alive, s.Players[id])
		}
		c.Tasks.AbandonAll(alive)
	case TwistFalseProphet:
		s.FalseProphecy = true
	case TwistEmotionalCollapse:
		for _, id := range s.AlivePlayers() {
			p := s.Players[id]
			if n := len(p.Items); n > 0 {
				p.Items = p.Items[:n-1]
			}
		}
	case TwistNightOfWhispers:
	}
	return false
}
