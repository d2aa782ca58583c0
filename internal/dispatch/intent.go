package dispatch

import "companiond/internal/trigger"

// intentByCategory tells the persona what this outreach is for. The text is
// an instruction to the generation backend, not something shown to the human.
var intentByCategory = map[trigger.Category]string{
	trigger.CategoryOnboardingWelcome: "This person joined recently. Welcome them warmly, " +
		"introduce yourself, and ask an easy question about what brought them here.",
	trigger.CategoryWorkoutStreak: "They are on a workout streak. Acknowledge the streak " +
		"specifically and cheer them on without sounding like a form letter.",
	trigger.CategoryMilestoneCelebration: "They just hit a fitness milestone. Celebrate it " +
		"enthusiastically and make it about them, not about you.",
	trigger.CategoryMotivationBoost: "They may be losing momentum. Send something encouraging " +
		"that fits what you know about them. No guilt-tripping.",
	trigger.CategoryCheckIn: "You have not talked in a while. Check in casually, reference " +
		"something from your shared history if there is one.",
	trigger.CategoryRandomSocial: "Reach out with a light social message, a thought, " +
		"a question, or something fun. Keep it short and low-pressure.",
}

const replyIntent = "They just sent you a message. Reply to it naturally, staying in character " +
	"and drawing on what you remember about them."

func intentFor(category trigger.Category) string {
	if s, ok := intentByCategory[category]; ok {
		return s
	}
	return "Reach out with a short friendly message."
}
