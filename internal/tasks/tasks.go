// Package tasks assigns, tracks and resolves per-player side-objectives.
// Tasks run independently of phase timing; callers hold the owning
// session's lock.
package tasks

import (
	"math/rand"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/aether-games/echoes-engine/internal/domain"
)

// Task codes.
const (
	CodeSayStars     = "say_stars"
	CodeGuard3Rounds = "guard_3rounds"
	CodeNoVote2      = "no_vote2"
)

// StarsPhrase completes CodeSayStars when said in the group.
const StarsPhrase = "The stars remember me."

// guardRounds is how many day tallies a guard task holder must survive.
const guardRounds = 3

var rewards = map[string]domain.Item{
	CodeSayStars:     domain.ItemTruthCrystal,
	CodeGuard3Rounds: domain.ItemShadowRing,
	CodeNoVote2:      domain.ItemGoatScroll,
}

// RewardFor maps a code to its reward. Unknown codes earn a relic.
func RewardFor(code string) domain.Item {
	if r, ok := rewards[code]; ok {
		return r
	}
	return domain.ItemRelic
}

// Kind is a task type rolled at day start.
type Kind struct {
	Name        string
	Description string
	Code        string
}

// Catalog is the fixed set of task types.
var Catalog = []Kind{
	{Name: "phrase", Description: "Say: " + StarsPhrase, Code: CodeSayStars},
	{Name: "protect", Description: "Keep another player alive for 3 rounds.", Code: CodeGuard3Rounds},
	{Name: "abstain", Description: "Avoid voting for two days.", Code: CodeNoVote2},
}

// Roll picks a task type uniformly.
func Roll(rng *rand.Rand) Kind {
	return Catalog[rng.Intn(len(Catalog))]
}

// Engine is the task engine.
type Engine struct {
	newID func() string
}

// NewEngine creates a task engine.
func NewEngine() *Engine {
	return &Engine{
		newID: func() string { return uuid.NewString() },
	}
}

// Assign appends an active task. Existing tasks are kept: a player may hold
// several active tasks at once.
func (e *Engine) Assign(p *domain.Player, description, code string, round int) *domain.Task {
	t := &domain.Task{
		ID:            e.newID(),
		Description:   description,
		Code:          code,
		Reward:        RewardFor(code),
		Status:        domain.TaskActive,
		AssignedRound: round,
	}
	p.Tasks = append(p.Tasks, t)
	return t
}

// ListActive returns the player's active tasks in creation order.
func ListActive(p *domain.Player) []*domain.Task {
	var out []*domain.Task
	for _, t := range p.Tasks {
		if t.Status == domain.TaskActive {
			out = append(out, t)
		}
	}
	return out
}

// Submit completes the first active task whose code matches. A code that was
// already completed is no longer active and is rejected.
func (e *Engine) Submit(p *domain.Player, code string) (*domain.Task, error) {
	code = strings.TrimSpace(code)
	for _, t := range p.Tasks {
		if t.Status == domain.TaskActive && t.Code == code {
			complete(p, t)
			return t, nil
		}
	}
	return nil, domain.ErrInvalidCode
}

// Abandon cancels every active task of the player.
func (e *Engine) Abandon(p *domain.Player) (int, error) {
	n := 0
	for _, t := range p.Tasks {
		if t.Status == domain.TaskActive {
			t.Status = domain.TaskAbandoned
			n++
		}
	}
	if n == 0 {
		return 0, domain.ErrNoActiveTask
	}
	return n, nil
}

// AbandonAll abandons the tasks of each player, ignoring players that have
// none. It returns the number of tasks abandoned.
func (e *Engine) AbandonAll(ps []*domain.Player) int {
	total := 0
	for _, p := range ps {
		n, _ := e.Abandon(p)
		total += n
	}
	return total
}

// RecordVoting updates the abstention streak of an alive player.
func RecordVoting(p *domain.Player, voted bool) {
	if voted {
		p.AbstainStreak = 0
		return
	}
	p.AbstainStreak++
}

// AutoComplete resolves tasks whose condition is met by the player's state
// at the given round. It returns the tasks it completed.
func (e *Engine) AutoComplete(p *domain.Player, round int) []*domain.Task {
	if !p.Alive {
		return nil
	}
	var done []*domain.Task
	for _, t := range p.Tasks {
		if t.Status != domain.TaskActive {
			continue
		}
		switch t.Code {
		case CodeNoVote2:
			if p.AbstainStreak >= 2 {
				complete(p, t)
				done = append(done, t)
			}
		case CodeGuard3Rounds:
			// The assignment round counts as the first survived round.
			if round-t.AssignedRound+1 >= guardRounds {
				complete(p, t)
				done = append(done, t)
			}
		}
	}
	return done
}

// ObserveMessage checks a group message against phrase tasks.
func (e *Engine) ObserveMessage(p *domain.Player, text string) []*domain.Task {
	if !p.Alive || !samePhrase(text, StarsPhrase) {
		return nil
	}
	var done []*domain.Task
	for _, t := range p.Tasks {
		if t.Status == domain.TaskActive && t.Code == CodeSayStars {
			complete(p, t)
			done = append(done, t)
		}
	}
	return done
}

// samePhrase compares case-folded NFC forms. A Caser is not safe for
// concurrent use, so one is built per call.
func samePhrase(text, phrase string) bool {
	fold := cases.Fold()
	normalize := func(s string) string {
		return strings.TrimSpace(fold.String(norm.NFC.String(s)))
	}
	return normalize(text) == normalize(phrase)
}

func complete(p *domain.Player, t *domain.Task) {
	t.Status = domain.TaskCompleted
	p.Items = append(p.Items, t.Reward)
}
