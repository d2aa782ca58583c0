package memory

import (
	"fmt"
	"sort"
	"strings"

	st "companiond/internal/storagetypes"
	"companiond/pkg/util"
)

// FirstConversationContext is the briefing used when no memory exists yet.
const FirstConversationContext = "This is your first conversation with this person. " +
	"Introduce yourself naturally, be warm but not overwhelming, and ask a question to learn something about them."

// BuildContext renders the memory briefing handed to the generation backend.
// Section order is fixed (stage, details, experiences, topics, last summary,
// recent snapshots) so identical memory always produces identical context.
func BuildContext(mem *st.RelationshipMemory) string {
	if mem == nil {
		return FirstConversationContext
	}

	var b strings.Builder

	b.WriteString("--- Relationship ---\n")
	fmt.Fprintf(&b, "stage=%s conversations=%d\n", mem.RelationshipStage, mem.TotalConversations)

	if len(mem.HumanDetailsLearned) > 0 {
		b.WriteString("--- What you know about them ---\n")
		keys := make([]string, 0, len(mem.HumanDetailsLearned))
		for k := range mem.HumanDetailsLearned {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			v := mem.HumanDetailsLearned[k]
			if list, ok := toStringList(v); ok {
				fmt.Fprintf(&b, "- %s: %s\n", k, strings.Join(list, ", "))
			} else {
				fmt.Fprintf(&b, "- %s: %s\n", k, toString(v))
			}
		}
	}

	if len(mem.SharedExperiences) > 0 {
		b.WriteString("--- Shared experiences ---\n")
		for _, e := range mem.SharedExperiences {
			b.WriteString("- ")
			b.WriteString(e)
			b.WriteString("\n")
		}
	}

	if len(mem.OngoingTopics) > 0 {
		b.WriteString("--- Ongoing topics ---\n")
		for _, topic := range mem.OngoingTopics {
			b.WriteString("- ")
			b.WriteString(topic)
			b.WriteString("\n")
		}
	}

	if mem.LastConversationSummary != "" {
		b.WriteString("--- Last conversation ---\n")
		b.WriteString(mem.LastConversationSummary)
		b.WriteString("\n")
	}

	if n := len(mem.RecentSnapshots); n > 0 {
		b.WriteString("--- Recent conversations ---\n")
		start := n - 3
		if start < 0 {
			start = 0
		}
		// newest first
		for i := n - 1; i >= start; i-- {
			snap := mem.RecentSnapshots[i]
			date := util.FormatDateTpl(snap.Date, "YYYY-MM-DD")
			if snap.EmotionalTone != "" {
				fmt.Fprintf(&b, "- %s (%s): %s\n", date, snap.EmotionalTone, snap.Summary)
			} else {
				fmt.Fprintf(&b, "- %s: %s\n", date, snap.Summary)
			}
		}
	}

	return b.String()
}
