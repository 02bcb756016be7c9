// Package roles maps a roster to a role distribution at game start.
package roles

import (
	"math/rand"

	"github.com/aether-games/echoes-engine/internal/domain"
)

// Config controls how the role pool scales with player count.
type Config struct {
	// ShadeEvery adds one Shade per this many players (minimum one Shade).
	ShadeEvery int
	// Specials are the power roles granted after the Shades, in order.
	Specials []domain.Role
}

// DefaultConfig returns the standard pool.
func DefaultConfig() Config {
	return Config{
		ShadeEvery: 4,
		Specials:   []domain.Role{domain.RoleWarden, domain.RoleOracle, domain.RoleSilencer},
	}
}

// Distribution returns the multiset of roles for n players. Shades come
// first, then specials while power slots remain; at least one player in
// three is a Goat and the remainder is filled with Goats.
func Distribution(n int, cfg Config) []domain.Role {
	if n <= 0 {
		return nil
	}
	every := cfg.ShadeEvery
	if every <= 0 {
		every = 4
	}
	goats := max(1, n/3)
	power := max(0, n-goats)
	shades := min(max(1, n/every), power)

	out := make([]domain.Role, 0, n)
	for range shades {
		out = append(out, domain.RoleShade)
	}
	for _, r := range cfg.Specials {
		if len(out) >= power {
			break
		}
		out = append(out, r)
	}
	for len(out) < n {
		out = append(out, domain.RoleGoat)
	}
	return out
}

// Assign deals the distribution for ids uniformly at random.
func Assign(ids []string, cfg Config, rng *rand.Rand) map[string]domain.Role {
	pool := Distribution(len(ids), cfg)
	rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

	out := make(map[string]domain.Role, len(ids))
	for i, id := range ids {
		out[id] = pool[i]
	}
	return out
}

// Apply writes an assignment onto the session's players.
func Apply(s *domain.Session, assignment map[string]domain.Role) {
	for id, r := range assignment {
		if p, ok := s.Players[id]; ok {
			p.Role = r
		}
	}
}

// Reshuffle permutes the roles currently held by the given players among
// them. The multiset of roles is unchanged; the identity permutation is a
// legal outcome.
func Reshuffle(players []*domain.Player, rng *rand.Rand) {
	held := make([]domain.Role, len(players))
	for i, p := range players {
		held[i] = p.Role
	}
	rng.Shuffle(len(held), func(i, j int) { held[i], held[j] = held[j], held[i] })
	for i, p := range players {
		p.Role = held[i]
	}
}

// Count tallies a role multiset.
func Count(rs []domain.Role) map[domain.Role]int {
	out := make(map[domain.Role]int, len(rs))
	for _, r := range rs {
		out[r]++
	}
	return out
}
