package workflow

import (
	"fmt"

	"github.com/aether-games/echoes-engine/internal/domain"
	"github.com/aether-games/echoes-engine/internal/gateway"
	"github.com/aether-games/echoes-engine/internal/story"
	"github.com/aether-games/echoes-engine/internal/tally"
	"github.com/aether-games/echoes-engine/internal/tasks"
)

// enterDay advances the round and opens the vote, unless the round limit
// hands the session to the Final Echo.
func (c *Coordinator) enterDay(st *step) {
	s := st.s
	round := s.IncrementRound()
	if round >= c.Config.FinalEchoRound {
		c.enterFinalEcho(st)
		return
	}

	st.group(fmt.Sprintf("🌅 Day %d begins.\n%s", round, story.Pick(story.Dawn, c.rng)))
	if c.plotTwist(st) {
		return
	}

	enter(s, domain.PhaseDay)
	s.ExpireEffects(domain.PhaseDay)

	alive := s.AlivePlayers()
	for _, id := range alive {
		var buttons []gateway.Button
		for _, target := range alive {
			if target == id {
				continue
			}
			buttons = append(buttons, gateway.Button{
				Label: "Vote @" + s.Name(target),
				Token: gateway.VoteToken(target),
			})
		}
		st.dm(id, "🗳️ Vote privately: who should be eliminated?", buttons...)
	}
	for _, id := range alive {
		kind := tasks.Roll(c.rng)
		c.Tasks.Assign(s.Players[id], kind.Description, kind.Code, round)
		st.dm(id, "📜 A new task has been assigned.\nUse /mytasks to view it.")
	}

	c.record(st, "day_started", map[string]int{"round": round}, true)
	c.schedule(st, c.Config.DayWindow, "day_end", c.endDay)
}

// castVote records a day vote.
func (c *Coordinator) castVote(st *step, voter, target string) (domain.Outcome, error) {
	s := st.s
	if err := gate(s, domain.PhaseDay); err != nil {
		return domain.Outcome{}, err
	}
	if err := s.RecordVote(voter, target); err != nil {
		return domain.Outcome{}, err
	}
	c.record(st, "vote_cast", map[string]string{"voter": voter, "target": target}, false)
	return domain.Outcome{Text: "Your vote has been recorded."}, nil
}

// endDay tallies the votes, applies the elimination, and either ends the
// session or loops back to night. Votes are cleared exactly once here,
// whatever the outcome.
func (c *Coordinator) endDay(st *step) error {
	s := st.s
	if err := gate(s, domain.PhaseDay); err != nil {
		return err
	}

	cast := len(s.Votes)
	res := tally.Tally(tally.Input{
		Votes:     s.Votes,
		Alive:     s.AliveSet(),
		Protected: s.ProtectedSet(),
		Disabled:  s.DisabledVoters(),
	})
	for id, voted := range res.Voted {
		tasks.RecordVoting(s.Players[id], voted)
	}
	s.ClearVotes()

	switch {
	case cast == 0:
		st.group("❌ No votes recorded.")
	case res.Eliminated == "":
		st.group("🛡️ All votes were blocked or invalid.")
	default:
		s.KillPlayer(res.Eliminated)
		st.group(fmt.Sprintf("⚖️ @%s was eliminated with %d votes.", s.Name(res.Eliminated), res.Count))
	}
	c.record(st, "day_tallied", map[string]any{
		"eliminated": res.Eliminated,
		"count":      res.Count,
		"blocked":    res.Blocked,
	}, false)

	for _, id := range s.AlivePlayers() {
		for _, t := range c.Tasks.AutoComplete(s.Players[id], s.Round) {
			st.dm(id, fmt.Sprintf("✅ Task completed: %s\nReward: %s", t.Description, t.Reward))
		}
	}

	if res.Eliminated != "" {
		if winner, ok := c.checkWin(s); ok {
			c.finish(st, winner)
			return nil
		}
	}
	c.enterNight(st)
	return nil
}
