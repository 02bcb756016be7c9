package domain

import (
	"errors"
	"fmt"
)

// EngineError is the unified error type for the engine.
// Each error has a numeric code and a message that is safe to show a player.
type EngineError struct {
	Code    int
	Message string
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	return fmt.Sprintf("engine error %d: %s", e.Code, e.Message)
}

// Is reports whether target carries the same code, so wrapped or re-worded
// errors still match their sentinel with errors.Is.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewEngineError creates a new EngineError.
func NewEngineError(code int, msg string) *EngineError {
	return &EngineError{Code: code, Message: msg}
}

// WrapEngineError creates an EngineError that includes a cause.
func WrapEngineError(code int, msg string, cause error) *EngineError {
	return &EngineError{Code: code, Message: fmt.Sprintf("%s: %v", msg, cause)}
}

// UserMessage returns the player-facing text of err. Non-engine errors are
// never shown verbatim.
func UserMessage(err error) string {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Message
	}
	return "Something went wrong."
}

// IsPrecondition reports whether err belongs to the precondition range.
func IsPrecondition(err error) bool {
	var e *EngineError
	return errors.As(err, &e) && e.Code <= -32010 && e.Code > -32040
}

// ---- Precondition errors (-32010 to -32039) ----

var (
	ErrPreconditionFailed = &EngineError{Code: -32010, Message: "precondition failed"}
	ErrNotEnoughPlayers   = &EngineError{Code: -32011, Message: "Not enough players to begin. Minimum 3 required."}
	ErrAlreadyStarted     = &EngineError{Code: -32012, Message: "The game has already started."}
	ErrNotPending         = &EngineError{Code: -32013, Message: "The game is no longer accepting players."}
	ErrAlreadyJoined      = &EngineError{Code: -32014, Message: "You're already in the game."}
	ErrNotJoined          = &EngineError{Code: -32015, Message: "You're not part of the game."}
	ErrInvalidCode        = &EngineError{Code: -32016, Message: "Invalid or expired task code."}
	ErrNoActiveTask       = &EngineError{Code: -32017, Message: "You have no task to abandon."}
	ErrPlayerEliminated   = &EngineError{Code: -32018, Message: "The fallen cannot act."}
	ErrWrongPhase         = &EngineError{Code: -32019, Message: "That action is not available in this phase."}
	ErrInvalidTarget      = &EngineError{Code: -32020, Message: "Invalid target."}
	ErrUnknownAction      = &EngineError{Code: -32021, Message: "Unknown action."}
	ErrNoPower            = &EngineError{Code: -32022, Message: "Your role has no power."}
	ErrGroupUnauthorized  = &EngineError{Code: -32023, Message: "This group is not authorized to host games."}
	ErrNoGame             = &EngineError{Code: -32024, Message: "No game is active right now."}
	ErrInOtherGame        = &EngineError{Code: -32025, Message: "You're already in another game."}
)

// ---- Registry errors (-32040 to -32059) ----

var (
	ErrAlreadyExists     = &EngineError{Code: -32040, Message: "A game is already running!"}
	ErrSessionNotFound   = &EngineError{Code: -32041, Message: "session not found"}
	ErrOptimisticLock    = &EngineError{Code: -32042, Message: "optimistic lock conflict: session was modified concurrently"}
	ErrInvalidPhase      = &EngineError{Code: -32043, Message: "invalid phase value"}
	ErrInvalidTransition = &EngineError{Code: -32044, Message: "invalid phase transition"}
)

// ---- Transport / scheduling errors (-32060 to -32079) ----

var (
	ErrDeliveryFailed     = &EngineError{Code: -32060, Message: "message delivery failed"}
	ErrRecipientOffline   = &EngineError{Code: -32061, Message: "recipient is not connected"}
	ErrMessageNotEditable = &EngineError{Code: -32062, Message: "message no longer exists or is not editable"}
	ErrInvariantViolation = &EngineError{Code: -32063, Message: "invariant violation"}
)

// ---- Guard errors (-32100 to -32129) ----

var (
	ErrUnauthorized      = &EngineError{Code: -32100, Message: "You are not authorized to do this."}
	ErrRateLimitExceeded = &EngineError{Code: -32101, Message: "Slow down."}
	ErrGrantInvalid      = &EngineError{Code: -32102, Message: "invalid player grant"}
)

// ---- Store / Config errors (-32130 to -32159) ----

var (
	ErrStoreInit       = &EngineError{Code: -32130, Message: "failed to initialize store"}
	ErrStoreQuery      = &EngineError{Code: -32131, Message: "store query failed"}
	ErrStoreWrite      = &EngineError{Code: -32132, Message: "store write failed"}
	ErrSnapshotCorrupt = &EngineError{Code: -32134, Message: "snapshot could not be decoded"}
	ErrConfigInvalid   = &EngineError{Code: -32136, Message: "invalid configuration"}
	ErrDuplicateEvent  = &EngineError{Code: -32137, Message: "duplicate event sequence number"}
)
