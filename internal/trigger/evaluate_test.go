package trigger

import (
	"errors"
	"testing"
	"time"

	st "companiond/internal/storagetypes"
)

type fakeStore struct {
	fires         map[string]st.FireRecord // humanID|category
	humans        map[string]st.Human
	lastPersonaAt map[string]time.Time
	err           error
}

func (f *fakeStore) LatestFireByCategory(humanID, category string) (*st.FireRecord, bool, error) {
	if f.err != nil {
		return nil, false, f.err
	}
	rec, ok := f.fires[humanID+"|"+category]
	if !ok {
		return nil, false, nil
	}
	return &rec, true, nil
}

func (f *fakeStore) GetHuman(id string) (*st.Human, error) {
	if f.err != nil {
		return nil, f.err
	}
	h, ok := f.humans[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return &h, nil
}

func (f *fakeStore) LastPersonaMessageAt(humanID string) (time.Time, bool, error) {
	if f.err != nil {
		return time.Time{}, false, f.err
	}
	t, ok := f.lastPersonaAt[humanID]
	return t, ok, nil
}

type stubSignals struct {
	active bool
	err    error
}

func (s stubSignals) Active(humanID string, category Category) (bool, error) {
	return s.active, s.err
}

func newEvaluator(store *fakeStore, signals ActivitySignalProvider, now time.Time) *Evaluator {
	e := NewEvaluator(store, signals)
	e.SetNow(func() time.Time { return now })
	return e
}

func TestEvaluate_FrequencyFloorBlocks(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{
		fires: map[string]st.FireRecord{
			"h1|workout_streak": {HumanID: "h1", PersonaID: "p1", Category: "workout_streak", FiredAt: now.Add(-3 * 24 * time.Hour)},
		},
	}
	// Signal says yes, but the 7-day floor is a hard gate.
	e := newEvaluator(store, stubSignals{active: true}, now)
	ok, err := e.Evaluate("h1", CategoryWorkoutStreak)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("3 days since last fire must block a 7-day floor")
	}
}

func TestEvaluate_FloorUsesDayCeiling(t *testing.T) {
	now := time.Date(2026, 9, 1, 0, 15, 0, 0, time.UTC)
	// Fired 30 minutes ago, across midnight: 1 elapsed day, floor is 3.
	store := &fakeStore{
		fires: map[string]st.FireRecord{
			"h1|milestone_celebration": {FiredAt: now.Add(-30 * time.Minute)},
		},
	}
	e := newEvaluator(store, stubSignals{active: true}, now)
	if ok, _ := e.Evaluate("h1", CategoryMilestoneCelebration); ok {
		t.Fatal("1 elapsed day must block a 3-day floor")
	}

	// 3 days and a minute ago: DaysCeil = 4, floor satisfied, signal decides.
	store.fires["h1|milestone_celebration"] = st.FireRecord{FiredAt: now.Add(-(3*24*time.Hour + time.Minute))}
	if ok, _ := e.Evaluate("h1", CategoryMilestoneCelebration); !ok {
		t.Fatal("floor satisfied and signal active: expected eligible")
	}
}

func TestEvaluate_OnboardingAccountAge(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{
		humans: map[string]st.Human{
			"fresh": {ID: "fresh", CreatedAt: now.Add(-2 * 24 * time.Hour)},
			"old":   {ID: "old", CreatedAt: now.Add(-30 * 24 * time.Hour)},
		},
		fires: map[string]st.FireRecord{},
	}
	e := newEvaluator(store, stubSignals{}, now)

	if ok, err := e.Evaluate("fresh", CategoryOnboardingWelcome); err != nil || !ok {
		t.Fatalf("2-day-old account must be eligible, got %v err=%v", ok, err)
	}
	if ok, _ := e.Evaluate("old", CategoryOnboardingWelcome); ok {
		t.Fatal("30-day-old account must not be eligible")
	}
}

func TestEvaluate_CheckIn(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{
		fires:         map[string]st.FireRecord{},
		lastPersonaAt: map[string]time.Time{"recent": now.Add(-3 * 24 * time.Hour), "stale": now.Add(-8 * 24 * time.Hour)},
	}
	e := newEvaluator(store, stubSignals{}, now)

	if ok, _ := e.Evaluate("never", CategoryCheckIn); !ok {
		t.Fatal("never-contacted human must be eligible for check_in")
	}
	if ok, _ := e.Evaluate("recent", CategoryCheckIn); ok {
		t.Fatal("contacted 3 days ago: not eligible")
	}
	if ok, _ := e.Evaluate("stale", CategoryCheckIn); !ok {
		t.Fatal("contacted 8 days ago: eligible")
	}
}

func TestEvaluate_FailsClosed(t *testing.T) {
	now := time.Now()
	e := newEvaluator(&fakeStore{fires: map[string]st.FireRecord{}}, stubSignals{active: true, err: errors.New("signal down")}, now)
	ok, err := e.Evaluate("h1", CategoryRandomSocial)
	if ok {
		t.Fatal("predicate error must evaluate as not eligible")
	}
	if err == nil {
		t.Fatal("expected error surfaced for logging")
	}

	if _, err := e.Evaluate("h1", Category("bogus")); err == nil {
		t.Fatal("unknown category must error")
	}
}

func TestCatalogShape(t *testing.T) {
	defs := Catalog()
	if len(defs) != 6 {
		t.Fatalf("expected 6 categories, got %d", len(defs))
	}
	for _, def := range defs {
		if def.MinIntervalDays < 0 {
			t.Fatalf("%s: negative interval", def.Category)
		}
	}
	def, ok := Lookup(CategoryOnboardingWelcome)
	if !ok || def.MinIntervalDays != 30 || def.RequiresContext {
		t.Fatalf("unexpected onboarding definition: %+v", def)
	}
	def, _ = Lookup(CategoryWorkoutStreak)
	if def.MinIntervalDays != 7 || !def.RequiresContext {
		t.Fatalf("unexpected workout_streak definition: %+v", def)
	}
}
