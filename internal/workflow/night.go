package workflow

import (
	"fmt"
	"slices"
	"sort"

	"github.com/aether-games/echoes-engine/internal/domain"
	"github.com/aether-games/echoes-engine/internal/gateway"
	"github.com/aether-games/echoes-engine/internal/story"
)

// enterNight starts a night: expire effects, prompt every power role and
// arm the end-of-night timer.
func (c *Coordinator) enterNight(st *step) {
	s := st.s
	enter(s, domain.PhaseNight)
	s.ExpireEffects(domain.PhaseNight)

	st.group(fmt.Sprintf("🌙 Night falls.\n%s\nEach role must act in shadows.", story.Pick(story.Night, c.rng)))

	alive := s.AlivePlayers()
	for _, id := range alive {
		p := s.Players[id]
		if !p.Role.HasPower() {
			continue
		}
		var buttons []gateway.Button
		for _, target := range alive {
			if target == id {
				continue
			}
			buttons = append(buttons, gateway.Button{
				Label: "Use power on @" + s.Name(target),
				Token: gateway.PowerToken(target),
			})
		}
		st.dm(id, p.Role.PowerPrompt(), buttons...)
	}

	c.record(st, "night_started", nil, true)
	c.schedule(st, c.Config.NightWindow, "night_end", c.endNight)
}

// usePower records the actor's night target. A later choice replaces an
// earlier one.
func (c *Coordinator) usePower(st *step, actor, target string) (domain.Outcome, error) {
	s := st.s
	if err := gate(s, domain.PhaseNight); err != nil {
		return domain.Outcome{}, err
	}
	p, ok := s.Players[actor]
	if !ok {
		return domain.Outcome{}, domain.ErrNotJoined
	}
	if !p.Alive {
		return domain.Outcome{}, domain.ErrPlayerEliminated
	}
	if !p.Role.HasPower() {
		return domain.Outcome{}, domain.ErrNoPower
	}
	t, ok := s.Players[target]
	if !ok || !t.Alive || target == actor {
		return domain.Outcome{}, domain.ErrInvalidTarget
	}
	s.PendingPowers[actor] = target
	c.record(st, "power_used", map[string]string{"actor": actor, "target": target, "role": p.Role.String()}, false)
	return domain.Outcome{Text: fmt.Sprintf("Your power is set on @%s.", s.Name(target))}, nil
}

// endNight resolves the night's powers in a fixed order: shields first,
// then visions and silences, then the Shades' strikes. The game moves on
// to dawn.
func (c *Coordinator) endNight(st *step) error {
	s := st.s
	if err := gate(s, domain.PhaseNight); err != nil {
		return err
	}

	actors := make([]string, 0, len(s.PendingPowers))
	for a := range s.PendingPowers {
		if p := s.Players[a]; p != nil && p.Alive {
			actors = append(actors, a)
		}
	}
	sort.Strings(actors)
	byRole := func(r domain.Role) []string {
		var out []string
		for _, a := range actors {
			if s.Players[a].Role == r {
				out = append(out, a)
			}
		}
		return out
	}

	for _, a := range byRole(domain.RoleWarden) {
		t := s.Players[s.PendingPowers[a]]
		t.ProtectedUntilRound = max(t.ProtectedUntilRound, s.Round+1)
	}
	for _, a := range byRole(domain.RoleSilencer) {
		s.Players[s.PendingPowers[a]].VoteDisabledRounds++
	}
	for _, a := range byRole(domain.RoleOracle) {
		target := s.PendingPowers[a]
		faction := s.Players[target].Role.Faction()
		if s.FalseProphecy {
			faction = invert(faction)
		}
		st.dm(a, fmt.Sprintf("🔮 The echo of @%s resonates with the %s.", s.Name(target), factionName(faction)))
	}
	protected := s.ProtectedSet()
	for _, a := range byRole(domain.RoleShade) {
		target := s.PendingPowers[a]
		if protected[target] {
			continue
		}
		if !slices.Contains(s.PendingDeaths, target) {
			s.PendingDeaths = append(s.PendingDeaths, target)
		}
	}

	c.record(st, "night_resolved", map[string]any{"powers": len(actors), "deaths": len(s.PendingDeaths)}, false)
	c.dawn(st)
	return nil
}

// dawn reveals the night's victims and checks for a winner before day.
func (c *Coordinator) dawn(st *step) {
	s := st.s
	enter(s, domain.PhaseDawn)

	deaths := s.PendingDeaths
	s.PendingDeaths = nil
	for _, id := range deaths {
		if s.KillPlayer(id) {
			st.group(fmt.Sprintf("💀 @%s was found dead at dawn ⚰️", s.Name(id)))
			c.record(st, "player_died", map[string]string{"player_id": id, "cause": "night"}, false)
		}
	}
	if len(deaths) > 0 {
		if winner, ok := c.checkWin(s); ok {
			c.finish(st, winner)
			return
		}
	}
	c.enterDay(st)
}

func invert(f domain.Faction) domain.Faction {
	switch f {
	case domain.FactionAether:
		return domain.FactionShadow
	case domain.FactionShadow:
		return domain.FactionAether
	default:
		return f
	}
}

func factionName(f domain.Faction) string {
	switch f {
	case domain.FactionShadow:
		return "Shadow"
	case domain.FactionAether:
		return "Aether"
	default:
		return "Void"
	}
}
