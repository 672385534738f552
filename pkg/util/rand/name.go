// Package rand generates readable random names for seeded rows. Names are
// memorable in logs and report output; uniqueness comes from the suffix the
// caller appends, not from the name itself.
package rand

import (
	mrand "math/rand"
)

// Word lists stay lowercase ASCII with no spaces so a name can be embedded
// in an email local part unchanged.
var adjectives = []string{
	"agile", "brave", "calm", "daring", "eager", "fearless",
	"gentle", "hopeful", "jolly", "keen", "lively", "mighty",
	"nimble", "noble", "patient", "quick", "rustic", "spirited",
	"sturdy", "tidy", "upbeat", "vivid", "warm", "wise",
}

var birds = []string{
	"avocet", "bunting", "crane", "dunlin", "egret", "finch",
	"godwit", "heron", "ibis", "jacana", "kestrel", "kite",
	"lapwing", "merlin", "osprey", "plover", "quail", "raven",
	"sandpiper", "tern", "vireo", "wren",
}

// NewName returns an adjective-bird pair like "keen-osprey".
func NewName() string {
	adj := adjectives[mrand.Intn(len(adjectives))]
	bird := birds[mrand.Intn(len(birds))]
	return adj + "-" + bird
}
