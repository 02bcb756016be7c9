package workflow

import (
	"fmt"
	"strings"

	"github.com/aether-games/echoes-engine/internal/domain"
	"github.com/aether-games/echoes-engine/internal/gateway"
)

// enterFinalEcho opens the closing poll for every living player.
func (c *Coordinator) enterFinalEcho(st *step) {
	s := st.s
	enter(s, domain.PhaseFinalEcho)
	clear(s.EchoVotes)

	st.group("🌌 The Core fractures. The Final Echo begins.\nEvery survivor must choose.")
	buttons := make([]gateway.Button, 0, len(domain.EchoChoices))
	for _, ch := range domain.EchoChoices {
		buttons = append(buttons, gateway.Button{Label: ch.Label(), Token: gateway.EchoToken(ch)})
	}
	for _, id := range s.AlivePlayers() {
		st.dm(id, "What will you choose?", buttons...)
	}

	c.record(st, "final_echo_started", nil, true)
	c.schedule(st, c.Config.EchoWindow, "final_echo_end", c.endFinalEcho)
}

// castEcho records a Final Echo choice.
func (c *Coordinator) castEcho(st *step, playerID string, choice domain.EchoChoice) (domain.Outcome, error) {
	s := st.s
	if err := gate(s, domain.PhaseFinalEcho); err != nil {
		return domain.Outcome{}, err
	}
	p, ok := s.Players[playerID]
	if !ok {
		return domain.Outcome{}, domain.ErrNotJoined
	}
	if !p.Alive {
		return domain.Outcome{}, domain.ErrPlayerEliminated
	}
	valid := false
	for _, ch := range domain.EchoChoices {
		valid = valid || ch == choice
	}
	if !valid {
		return domain.Outcome{}, domain.ErrUnknownAction
	}
	s.EchoVotes[playerID] = choice
	c.record(st, "echo_cast", map[string]string{"player_id": playerID, "choice": string(choice)}, false)
	return domain.Outcome{Text: fmt.Sprintf("You chose to %s.", strings.ToLower(choice.Label()))}, nil
}

// endFinalEcho resolves the poll by plurality and ends the session. Ties go
// to the option listed first.
func (c *Coordinator) endFinalEcho(st *step) error {
	s := st.s
	if err := gate(s, domain.PhaseFinalEcho); err != nil {
		return err
	}

	counts := make(map[domain.EchoChoice]int, len(domain.EchoChoices))
	for id, ch := range s.EchoVotes {
		if p := s.Players[id]; p != nil && p.Alive {
			counts[ch]++
		}
	}
	var outcome domain.EchoChoice
	best := 0
	for _, ch := range domain.EchoChoices {
		if counts[ch] > best {
			outcome, best = ch, counts[ch]
		}
	}
	s.EchoOutcome = outcome

	if outcome == "" {
		st.group("🌫️ The Echo fades unanswered.")
	} else {
		st.group(fmt.Sprintf("🌠 The survivors chose to %s (%d votes).", strings.ToLower(outcome.Label()), best))
	}
	winner, _ := c.checkWin(s)
	c.finish(st, winner)
	return nil
}
