// Package domain defines the core types for the Echoes of Aether game engine.
package domain

// Phase is the current stage of the round cycle.
type Phase string

const (
	PhaseNone      Phase = "none"
	PhaseNight     Phase = "night"
	PhaseDay       Phase = "day"
	PhaseDawn      Phase = "dawn"
	PhaseFinalEcho Phase = "final_echo"
)

// Status represents the lifecycle status of a session.
type Status string

const (
	StatusPending   Status = "pending"
	StatusStarted   Status = "started"
	StatusCancelled Status = "cancelled"
	StatusEnded     Status = "ended"
)

// Terminal reports whether no further transitions may happen.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusEnded
}

// TaskStatus tracks a side-objective.
type TaskStatus string

const (
	TaskActive    TaskStatus = "active"
	TaskCompleted TaskStatus = "completed"
	TaskAbandoned TaskStatus = "abandoned"
)

// Item is an enumerated reward id.
type Item string

const (
	ItemTruthCrystal Item = "truth_crystal"
	ItemShadowRing   Item = "shadow_ring"
	ItemGoatScroll   Item = "goat_scroll"
	ItemRelic        Item = "relic"
)

// Task is a private side-objective with a completion code and item reward.
type Task struct {
	ID            string     `json:"id"`
	Description   string     `json:"description"`
	Code          string     `json:"code"`
	Reward        Item       `json:"reward"`
	Status        TaskStatus `json:"status"`
	AssignedRound int        `json:"assigned_round"`
}

// Player is a participant in one session. Eliminated players stay in the
// roster for display and history.
type Player struct {
	ID                  string  `json:"id"`
	DisplayName         string  `json:"display_name"`
	Role                Role    `json:"role"`
	Alive               bool    `json:"alive"`
	ProtectedUntilRound int     `json:"protected_until_round"` // 0 = none
	VoteDisabledRounds  int     `json:"vote_disabled_rounds"`
	AbstainStreak       int     `json:"abstain_streak"`
	Tasks               []*Task `json:"tasks"`
	Items               []Item  `json:"items"`
}

// EchoChoice is an option of the Final Echo poll.
type EchoChoice string

const (
	EchoSave    EchoChoice = "save_the_core"
	EchoDestroy EchoChoice = "destroy_the_core"
	EchoEscape  EchoChoice = "escape_the_core"
)

// EchoChoices lists the poll options in display order.
var EchoChoices = []EchoChoice{EchoSave, EchoDestroy, EchoEscape}

// Label returns the button text for the choice.
func (c EchoChoice) Label() string {
	switch c {
	case EchoSave:
		return "Save the Core"
	case EchoDestroy:
		return "Destroy the Core"
	case EchoEscape:
		return "Escape the Core"
	default:
		return string(c)
	}
}

// GameEvent is an entry of a session's journal.
type GameEvent struct {
	ID          int64
	SessionID   string
	SeqNo       int64
	Phase       Phase
	Round       int
	EventType   string
	PayloadJSON string
	CreatedAt   int64
}

// PhaseSnapshot captures the session state at a phase boundary.
type PhaseSnapshot struct {
	ID         int64
	SessionID  string
	Phase      Phase
	Round      int
	Generation int64
	State      []byte // zstd-compressed JSON
	CreatedAt  int64
}

// AuditRecord logs authorization decisions and delivery problems.
type AuditRecord struct {
	ID           string
	SessionID    string
	Category     string
	Actor        string
	Action       string
	RequestJSON  string
	DecisionJSON string
	Severity     string
	CreatedAt    int64
}

// Audit categories and severities.
const (
	AuditCommand  = "command"
	AuditDelivery = "delivery"

	SeverityInfo = "info"
	SeverityWarn = "warn"
)

// SessionRecord is the persisted header row of a session.
type SessionRecord struct {
	SessionID     string
	Status        Status
	Phase         Phase
	Round         int
	StateVersion  int64
	Winner        Faction
	LastEventSeq  int64
	UpdatedAtUnix int64
}

// Outcome is the user-displayable result of a player-facing operation.
type Outcome struct {
	Text string `json:"text"`
}
