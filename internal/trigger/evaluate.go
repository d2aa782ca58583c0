package trigger

import (
	"fmt"
	"time"

	st "companiond/internal/storagetypes"
	"companiond/pkg/util"
)

// Store is the slice of the storage collaborator the evaluator needs.
type Store interface {
	LatestFireByCategory(humanID, category string) (*st.FireRecord, bool, error)
	GetHuman(id string) (*st.Human, error)
	LastPersonaMessageAt(humanID string) (time.Time, bool, error)
}

// Evaluator decides fire/no-fire for a (human, category) pair.
type Evaluator struct {
	store   Store
	signals ActivitySignalProvider
	now     func() time.Time
}

func NewEvaluator(store Store, signals ActivitySignalProvider) *Evaluator {
	return &Evaluator{store: store, signals: signals, now: time.Now}
}

// SetNow overrides the clock. Test hook.
func (e *Evaluator) SetNow(now func() time.Time) { e.now = now }

// Evaluate returns true when the category should fire for the human right now.
// The frequency floor is a hard gate checked before any predicate; predicate
// errors fail closed (not eligible).
func (e *Evaluator) Evaluate(humanID string, category Category) (bool, error) {
	def, ok := Lookup(category)
	if !ok {
		return false, fmt.Errorf("eligibility: unknown category %q", category)
	}
	now := e.now()

	rec, fired, err := e.store.LatestFireByCategory(humanID, string(category))
	if err != nil {
		return false, err
	}
	if fired && util.DaysCeil(rec.FiredAt, now) < def.MinIntervalDays {
		return false, nil
	}

	switch category {
	case CategoryOnboardingWelcome:
		human, err := e.store.GetHuman(humanID)
		if err != nil {
			return false, err
		}
		return util.DaysCeil(human.CreatedAt, now) <= 7, nil

	case CategoryCheckIn:
		last, ok, err := e.store.LastPersonaMessageAt(humanID)
		if err != nil {
			return false, err
		}
		if !ok {
			return true, nil
		}
		return util.DaysCeil(last, now) >= 7, nil

	default:
		// Signal-backed categories. The stand-in keeps the same contract as a
		// real activity integration: boolean eligibility, independent of the
		// frequency floor above.
		return e.signals.Active(humanID, category)
	}
}
