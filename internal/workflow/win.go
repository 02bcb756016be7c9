package workflow

import (
	"fmt"
	"strings"

	"github.com/aether-games/echoes-engine/internal/domain"
)

// WinCondition decides a winner from the living faction counts.
type WinCondition struct {
	Winner domain.Faction
	Met    func(alive map[domain.Faction]int) bool
}

// winConditions are evaluated in order; the first met condition wins.
var winConditions = []WinCondition{
	{
		Winner: domain.FactionAether,
		Met: func(alive map[domain.Faction]int) bool {
			return alive[domain.FactionShadow] == 0 && alive[domain.FactionAether] > 0
		},
	},
	{
		Winner: domain.FactionShadow,
		Met: func(alive map[domain.Faction]int) bool {
			return alive[domain.FactionShadow] > 0 && alive[domain.FactionShadow] >= alive[domain.FactionAether]
		},
	},
	{
		Winner: domain.FactionNone,
		Met: func(alive map[domain.Faction]int) bool {
			return alive[domain.FactionShadow] == 0 && alive[domain.FactionAether] == 0
		},
	},
}

// checkWin reports the winning faction, if any.
func (c *Coordinator) checkWin(s *domain.Session) (domain.Faction, bool) {
	alive := make(map[domain.Faction]int, 2)
	for _, id := range s.AlivePlayers() {
		alive[s.Players[id].Role.Faction()]++
	}
	for _, wc := range winConditions {
		if wc.Met(alive) {
			return wc.Winner, true
		}
	}
	return domain.FactionNone, false
}

// finish ends the session. No further timers are armed and the session is
// torn down once the outbox is delivered.
func (c *Coordinator) finish(st *step, winner domain.Faction) {
	s := st.s
	s.End(winner)

	switch winner {
	case domain.FactionShadow:
		st.group("🏆 The Shadows have consumed the Aether. Shadow wins!")
	case domain.FactionAether:
		st.group("🏆 The last Shade has fallen. Aether wins!")
	default:
		st.group("🏁 The game is over.")
	}
	st.group(rosterText(s))

	c.record(st, "game_ended", map[string]string{"winner": string(winner), "echo": string(s.EchoOutcome)}, true)
	st.teardown = true
}

func rosterText(s *domain.Session) string {
	var b strings.Builder
	b.WriteString("🎭 Roles:")
	for _, p := range s.Roster() {
		mark := "alive"
		if !p.Alive {
			mark = "fallen"
		}
		fmt.Fprintf(&b, "\n• @%s: %s (%s)", s.Name(p.ID), p.Role, mark)
	}
	return b.String()
}
