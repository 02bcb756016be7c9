package workflow

import (
	"fmt"

	"github.com/aether-games/echoes-engine/internal/domain"
)

// validTransitions defines the legal phase transitions.
// Each key is a source phase, and the value is the set of valid target phases.
var validTransitions = map[domain.Phase]map[domain.Phase]bool{
	domain.PhaseNone:  {domain.PhaseNight: true},
	domain.PhaseNight: {domain.PhaseDawn: true},
	domain.PhaseDawn:  {domain.PhaseDay: true, domain.PhaseFinalEcho: true},
	domain.PhaseDay:   {domain.PhaseNight: true},
}

// IsValidTransition checks if a phase transition is legal.
func IsValidTransition(from, to domain.Phase) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// enter moves s into phase to, invalidating every timer armed for the
// previous phase. An illegal move aborts the caller's transition.
func enter(s *domain.Session, to domain.Phase) int64 {
	if !IsValidTransition(s.Phase, to) {
		panic(fmt.Sprintf("illegal transition %s -> %s", s.Phase, to))
	}
	return s.SetPhase(to)
}

// gate reports whether a timed or forced transition out of phase may run.
func gate(s *domain.Session, phase domain.Phase) error {
	if !s.Live() {
		return domain.ErrNoGame
	}
	if s.Phase != phase {
		return domain.ErrWrongPhase
	}
	return nil
}
