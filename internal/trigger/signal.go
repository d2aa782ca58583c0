package trigger

import (
	"math/rand"
	"sync"
)

// ActivitySignalProvider answers the context predicate of a trigger category:
// does this human currently have a workout streak, a fresh milestone, and so
// on. Real behavioral data plugs in here without touching the evaluator.
type ActivitySignalProvider interface {
	Active(humanID string, category Category) (bool, error)
}

// RandomSignalProvider is the bounded-probability stand-in used until a real
// activity integration exists. Probabilities are per category and fixed.
type RandomSignalProvider struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomSignalProvider seeds the stand-in. A fixed seed gives
// deterministic behavior for tests.
func NewRandomSignalProvider(seed int64) *RandomSignalProvider {
	return &RandomSignalProvider{rng: rand.New(rand.NewSource(seed))}
}

var standInProbability = map[Category]float64{
	CategoryWorkoutStreak:        0.30,
	CategoryMilestoneCelebration: 0.20,
	CategoryMotivationBoost:      0.25,
	CategoryRandomSocial:         0.15,
}

func (p *RandomSignalProvider) Active(humanID string, category Category) (bool, error) {
	prob, ok := standInProbability[category]
	if !ok {
		return false, nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.Float64() < prob, nil
}
