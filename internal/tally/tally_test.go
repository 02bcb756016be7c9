package tally

import "testing"

func set(ids ...string) map[string]bool {
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out
}

func TestTally(t *testing.T) {
	tests := []struct {
		name    string
		in      Input
		want    string
		count   int
		blocked int
	}{
		{
			name: "plurality",
			in: Input{
				Votes: map[string]string{"a": "c", "b": "c", "c": "a"},
				Alive: set("a", "b", "c"),
			},
			want: "c", count: 2,
		},
		{
			name: "tie goes to smallest id",
			in: Input{
				Votes: map[string]string{"a": "d", "b": "c"},
				Alive: set("a", "b", "c", "d"),
			},
			want: "c", count: 1,
		},
		{
			name: "protected target blocked",
			in: Input{
				Votes:     map[string]string{"a": "c", "b": "c", "c": "a"},
				Alive:     set("a", "b", "c"),
				Protected: set("c"),
			},
			want: "a", count: 1, blocked: 2,
		},
		{
			name: "silenced voter blocked",
			in: Input{
				Votes:    map[string]string{"a": "c"},
				Alive:    set("a", "b", "c"),
				Disabled: set("a"),
			},
			want: "", count: 0, blocked: 1,
		},
		{
			name: "stale votes ignored",
			in: Input{
				Votes: map[string]string{"a": "c", "x": "b", "b": "x"},
				Alive: set("a", "b", "c"),
			},
			want: "c", count: 1,
		},
		{
			name: "no votes",
			in:   Input{Votes: map[string]string{}, Alive: set("a", "b")},
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tally(tt.in)
			if got.Eliminated != tt.want || got.Count != tt.count || got.Blocked != tt.blocked {
				t.Errorf("Tally = (%q, %d, blocked %d), want (%q, %d, blocked %d)",
					got.Eliminated, got.Count, got.Blocked, tt.want, tt.count, tt.blocked)
			}
		})
	}
}

func TestTally_VotedTracksEveryAlivePlayer(t *testing.T) {
	res := Tally(Input{
		Votes:    map[string]string{"a": "b", "c": "a"},
		Alive:    set("a", "b", "c"),
		Disabled: set("c"),
	})
	if len(res.Voted) != 3 {
		t.Fatalf("Voted = %v, want 3 entries", res.Voted)
	}
	if !res.Voted["a"] || res.Voted["b"] || !res.Voted["c"] {
		t.Errorf("Voted = %v", res.Voted)
	}
}

func TestTally_DoesNotMutateInput(t *testing.T) {
	votes := map[string]string{"a": "b"}
	Tally(Input{Votes: votes, Alive: set("a", "b")})
	if len(votes) != 1 || votes["a"] != "b" {
		t.Errorf("votes mutated: %v", votes)
	}
}
