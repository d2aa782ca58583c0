package trigger

// Category names a proactive trigger condition.
type Category string

const (
	CategoryOnboardingWelcome    Category = "onboarding_welcome"
	CategoryWorkoutStreak        Category = "workout_streak"
	CategoryMilestoneCelebration Category = "milestone_celebration"
	CategoryMotivationBoost      Category = "motivation_boost"
	CategoryCheckIn              Category = "check_in"
	CategoryRandomSocial         Category = "random_social"
)

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Definition is an immutable trigger rule. MinIntervalDays is the hard
// frequency floor per (human, category); RequiresContext marks categories
// that depend on an activity signal.
type Definition struct {
	Category        Category
	Priority        Priority
	MinIntervalDays int
	RequiresContext bool
}

// catalog is configuration baked into the evaluator. Nothing mutates it at
// runtime. Order matters: categories are evaluated in this order per human.
var catalog = []Definition{
	{Category: CategoryOnboardingWelcome, Priority: PriorityHigh, MinIntervalDays: 30, RequiresContext: false},
	{Category: CategoryWorkoutStreak, Priority: PriorityMedium, MinIntervalDays: 7, RequiresContext: true},
	{Category: CategoryMilestoneCelebration, Priority: PriorityHigh, MinIntervalDays: 3, RequiresContext: true},
	{Category: CategoryMotivationBoost, Priority: PriorityMedium, MinIntervalDays: 5, RequiresContext: false},
	{Category: CategoryCheckIn, Priority: PriorityMedium, MinIntervalDays: 14, RequiresContext: false},
	{Category: CategoryRandomSocial, Priority: PriorityLow, MinIntervalDays: 10, RequiresContext: false},
}

// Catalog returns the trigger definitions in evaluation order.
func Catalog() []Definition {
	out := make([]Definition, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup returns the definition for a category.
func Lookup(c Category) (Definition, bool) {
	for _, def := range catalog {
		if def.Category == c {
			return def, true
		}
	}
	return Definition{}, false
}
