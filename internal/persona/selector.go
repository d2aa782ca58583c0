package persona

import (
	"math/rand"
	"sync"
	"time"

	st "companiond/internal/storagetypes"
	"companiond/internal/trigger"
)

// PersonaCooldown is the anti-pile-on window: a persona that contacted a human
// for any reason within this window is not chosen again for that human. This
// is orthogonal to the per-category frequency floor.
const PersonaCooldown = 3 * 24 * time.Hour

// Store is the slice of the storage collaborator the selector needs.
type Store interface {
	ListActivePersonas() ([]st.Persona, error)
	LatestFireByPersona(humanID, personaID string) (*st.FireRecord, bool, error)
}

// archetypePreference ranks archetypes per category, best first. Categories
// without an entry go straight to the random fallback.
var archetypePreference = map[trigger.Category][]string{
	trigger.CategoryOnboardingWelcome:    {"welcoming", "social"},
	trigger.CategoryWorkoutStreak:        {"motivating", "energetic"},
	trigger.CategoryMilestoneCelebration: {"celebratory", "energetic"},
	trigger.CategoryMotivationBoost:      {"motivating", "supportive"},
	trigger.CategoryCheckIn:              {"supportive", "welcoming"},
	trigger.CategoryRandomSocial:         {"social", "playful"},
}

// Selector picks which persona contacts a human for a trigger.
type Selector struct {
	store Store
	now   func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

func NewSelector(store Store) *Selector {
	return &Selector{
		store: store,
		now:   time.Now,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SetNow overrides the clock. Test hook.
func (s *Selector) SetNow(now func() time.Time) { s.now = now }

// SetSeed makes the random fallback deterministic. Test hook.
func (s *Selector) SetSeed(seed int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rng = rand.New(rand.NewSource(seed))
}

// SelectPersona returns the persona that should message the human for the
// category, or nil when every active persona is cooling down. Archetype
// scarcity never blocks a send: when no preferred archetype is available the
// choice falls back to uniform random among the eligible pool.
func (s *Selector) SelectPersona(humanID string, category trigger.Category) (*st.Persona, error) {
	pool, err := s.store.ListActivePersonas()
	if err != nil {
		return nil, err
	}
	now := s.now()

	eligible := pool[:0:0]
	for _, p := range pool {
		rec, fired, err := s.store.LatestFireByPersona(humanID, p.ID)
		if err != nil {
			return nil, err
		}
		if fired && now.Sub(rec.FiredAt) < PersonaCooldown {
			continue
		}
		eligible = append(eligible, p)
	}
	if len(eligible) == 0 {
		return nil, nil
	}

	for _, want := range archetypePreference[category] {
		for i := range eligible {
			if eligible[i].Archetype == want {
				return &eligible[i], nil
			}
		}
	}

	s.mu.Lock()
	idx := s.rng.Intn(len(eligible))
	s.mu.Unlock()
	return &eligible[idx], nil
}
