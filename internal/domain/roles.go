package domain

import "fmt"

// Faction is the side a role plays for.
type Faction string

const (
	FactionNone   Faction = ""
	FactionAether Faction = "aether"
	FactionShadow Faction = "shadow"
)

// Role is the closed set of roles a player can hold.
type Role int

const (
	RoleUnassigned Role = iota
	RoleShade
	RoleWarden
	RoleOracle
	RoleSilencer
	RoleGoat
)

var roleNames = map[Role]string{
	RoleUnassigned: "unassigned",
	RoleShade:      "Shade",
	RoleWarden:     "Warden",
	RoleOracle:     "Oracle",
	RoleSilencer:   "Silencer",
	RoleGoat:       "Goat",
}

// String returns the display name of the role.
func (r Role) String() string {
	if n, ok := roleNames[r]; ok {
		return n
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

// HasPower reports whether the role acts during the night.
func (r Role) HasPower() bool {
	switch r {
	case RoleShade, RoleWarden, RoleOracle, RoleSilencer:
		return true
	case RoleGoat, RoleUnassigned:
		return false
	default:
		return false
	}
}

// Faction returns the side the role plays for.
func (r Role) Faction() Faction {
	switch r {
	case RoleShade:
		return FactionShadow
	case RoleWarden, RoleOracle, RoleSilencer, RoleGoat:
		return FactionAether
	default:
		return FactionNone
	}
}

// PowerPrompt is the private night prompt shown to the role.
func (r Role) PowerPrompt() string {
	switch r {
	case RoleShade:
		return "Choose who will not see the dawn:"
	case RoleWarden:
		return "Choose who to shield tonight:"
	case RoleOracle:
		return "Choose whose echo to read:"
	case RoleSilencer:
		return "Choose whose voice to steal tomorrow:"
	default:
		return ""
	}
}

// MarshalText implements encoding.TextMarshaler.
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Role) UnmarshalText(b []byte) error {
	for role, name := range roleNames {
		if name == string(b) {
			*r = role
			return nil
		}
	}
	return fmt.Errorf("unknown role %q", string(b))
}
