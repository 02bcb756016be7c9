// Package tally resolves a day's votes into an elimination target.
package tally

import "sort"

// Input is everything the tally needs. None of the maps are modified.
type Input struct {
	Votes     map[string]string // voter -> target
	Alive     map[string]bool
	Protected map[string]bool
	Disabled  map[string]bool
}

// Result is the outcome of a tally.
type Result struct {
	// Eliminated is empty when nobody is eliminated.
	Eliminated string
	Count      int
	// Voted records, for every alive player, whether they cast a vote.
	// Disabled voters count as having voted.
	Voted map[string]bool
	// Blocked counts votes dropped for protection or silencing.
	Blocked int
	// Counts holds the per-target counts that survived filtering.
	Counts map[string]int
}

// Tally counts the votes. Votes cast by or against players who are no longer
// alive are stale and ignored. A tie at the maximum goes to the
// lexicographically smallest player id.
func Tally(in Input) Result {
	res := Result{
		Voted:  make(map[string]bool, len(in.Alive)),
		Counts: make(map[string]int),
	}
	for id := range in.Alive {
		_, res.Voted[id] = in.Votes[id]
	}

	for voter, target := range in.Votes {
		if !in.Alive[voter] || !in.Alive[target] {
			continue
		}
		if in.Disabled[voter] || in.Protected[target] {
			res.Blocked++
			continue
		}
		res.Counts[target]++
	}

	targets := make([]string, 0, len(res.Counts))
	for t := range res.Counts {
		targets = append(targets, t)
	}
	sort.Strings(targets)
	for _, t := range targets {
		if res.Counts[t] > res.Count {
			res.Eliminated = t
			res.Count = res.Counts[t]
		}
	}
	return res
}
