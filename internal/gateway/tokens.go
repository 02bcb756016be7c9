package gateway

import (
	"strings"

	"github.com/aether-games/echoes-engine/internal/domain"
)

// Callback token namespaces.
const (
	PrefixPower = "usepower_"
	PrefixVote  = "vote_"
	PrefixEcho  = "echo_vote_"
	TokenJoin   = "join"
)

// ActionKind is the namespace an inbound token belongs to.
type ActionKind string

const (
	ActionPower ActionKind = "power"
	ActionVote  ActionKind = "vote"
	ActionEcho  ActionKind = "echo"
	ActionJoin  ActionKind = "join"
)

// Action is a decoded callback token.
type Action struct {
	Kind  ActionKind
	Value string
}

// ParseToken decodes a callback token into its namespace and chosen value.
func ParseToken(token string) (Action, error) {
	switch {
	case token == TokenJoin:
		return Action{Kind: ActionJoin}, nil
	case strings.HasPrefix(token, PrefixEcho):
		return nonEmpty(ActionEcho, strings.TrimPrefix(token, PrefixEcho))
	case strings.HasPrefix(token, PrefixPower):
		return nonEmpty(ActionPower, strings.TrimPrefix(token, PrefixPower))
	case strings.HasPrefix(token, PrefixVote):
		return nonEmpty(ActionVote, strings.TrimPrefix(token, PrefixVote))
	default:
		return Action{}, domain.ErrUnknownAction
	}
}

func nonEmpty(kind ActionKind, v string) (Action, error) {
	if v == "" {
		return Action{}, domain.ErrUnknownAction
	}
	return Action{Kind: kind, Value: v}, nil
}

// PowerToken builds the token for using a power on target.
func PowerToken(target string) string { return PrefixPower + target }

// VoteToken builds the token for voting against target.
func VoteToken(target string) string { return PrefixVote + target }

// EchoToken builds the token for a Final Echo choice.
func EchoToken(c domain.EchoChoice) string { return PrefixEcho + string(c) }
