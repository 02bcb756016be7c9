// Package story supplies the flavor text of the game.
package story

import (
	"iter"
	"math/rand"
)

// Kind selects a fragment set.
type Kind string

const (
	Night    Kind = "night"
	Dawn     Kind = "dawn"
	Prophecy Kind = "prophecy"
)

var fragments = map[Kind][]string{
	Night: {
		"The wind screamed once. Someone screamed louder.",
		"In every mirror, someone different stared back.",
		"Shadows whispered your name. Will you answer?",
	},
	Dawn: {
		"Three bells rang. One for the fallen. One for the forgotten. The third? It rang before it should have.",
		"A letter arrived. No name, only the words: 'It wasn't supposed to be you.'",
		"The child in the square pointed at you. Then vanished.",
	},
	Prophecy: {
		"A False Vision descends... The sky whispers lies.",
		"Reality fractures... Not all victories are as they seem.",
	},
}

// cancelFrames play in order when a game is cancelled.
var cancelFrames = []string{
	"The sky turns pitch black...",
	"A blood moon rises above the ruins...",
	"Eyes blink from the shadows... watching...",
	"Whispers coil around your soul...",
	"The forgotten curse stirs once again...",
	"It. Has. Begun.",
}

// Fragments returns an endless lazy sequence of fragments of the given kind,
// each drawn uniformly at random. Ranging over it again starts a fresh
// sequence.
func Fragments(kind Kind, rng *rand.Rand) iter.Seq[string] {
	set := fragments[kind]
	return func(yield func(string) bool) {
		if len(set) == 0 {
			return
		}
		for {
			if !yield(set[rng.Intn(len(set))]) {
				return
			}
		}
	}
}

// Pick draws one fragment.
func Pick(kind Kind, rng *rand.Rand) string {
	for f := range Fragments(kind, rng) {
		return f
	}
	return ""
}

// CancelFrames returns the cancel animation frames in order.
func CancelFrames() iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, f := range cancelFrames {
			if !yield(f) {
				return
			}
		}
	}
}

// Set returns a copy of the fragment set for kind.
func Set(kind Kind) []string {
	return append([]string(nil), fragments[kind]...)
}
