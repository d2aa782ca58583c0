package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"companiond/internal/ai"
	st "companiond/internal/storagetypes"
	"companiond/pkg/retrylimit"
)

const summarySystemPrompt = `You distill conversations into structured memory for a fitness companion.
Given a transcript, respond with ONLY a JSON object, no prose, with these keys:
  "summary":            one or two sentences, third person
  "topics_discussed":   array of short topic strings
  "new_details_learned": object of facts learned about the person (key: short label, value: string or array)
  "emotional_tone":     one word
  "importance_score":   integer 1-5, 5 meaning a moment worth remembering for years
  "follow_ups":         array of things worth bringing up next time`

// summarize asks the generation backend for a structured summary of the
// transcript. The reply is parsed tolerantly: anything around the outermost
// JSON object is discarded.
func (d *Dispatcher) summarize(ctx context.Context, p st.Persona, transcript []st.Message) (*st.ConversationSummary, error) {
	if len(transcript) == 0 {
		return nil, fmt.Errorf("empty transcript")
	}

	var b strings.Builder
	for _, m := range transcript {
		speaker := "Them"
		if m.IsFromPersona {
			speaker = p.Name
		}
		fmt.Fprintf(&b, "%s: %s\n", speaker, m.Content)
	}

	req := ai.Request{
		Messages: []ai.Message{
			{Role: "system", Content: summarySystemPrompt},
			{Role: "user", Content: b.String()},
		},
		MaxTokens: d.maxTokens,
	}

	var raw string
	err := retrylimit.WithRetry(ctx, func() error {
		out, err := d.provider.Generate(req)
		if err != nil {
			return err
		}
		raw = out
		return nil
	}, d.limiter, d.retry)
	if err != nil {
		return nil, err
	}

	sum, err := parseSummary(raw)
	if err != nil {
		return nil, fmt.Errorf("parse summary: %w", err)
	}
	return sum, nil
}

func parseSummary(raw string) (*st.ConversationSummary, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in %q", truncateForLog(raw))
	}

	var parsed struct {
		Summary           string         `json:"summary"`
		TopicsDiscussed   []string       `json:"topics_discussed"`
		NewDetailsLearned map[string]any `json:"new_details_learned"`
		EmotionalTone     string         `json:"emotional_tone"`
		ImportanceScore   int            `json:"importance_score"`
		FollowUps         []string       `json:"follow_ups"`
	}
	if err := json.Unmarshal([]byte(raw[start:end+1]), &parsed); err != nil {
		return nil, err
	}
	if parsed.Summary == "" {
		return nil, fmt.Errorf("summary field missing in %q", truncateForLog(raw))
	}

	score := parsed.ImportanceScore
	if score < 1 {
		score = 1
	} else if score > 5 {
		score = 5
	}
	return &st.ConversationSummary{
		Summary:           parsed.Summary,
		TopicsDiscussed:   parsed.TopicsDiscussed,
		NewDetailsLearned: parsed.NewDetailsLearned,
		EmotionalTone:     parsed.EmotionalTone,
		ImportanceScore:   score,
		FollowUps:         parsed.FollowUps,
	}, nil
}

// minimalSummary is the degraded fallback when summarization fails. It keeps
// counters moving and records the last thing said, nothing more.
func minimalSummary(transcript []st.Message) *st.ConversationSummary {
	last := transcript[len(transcript)-1]
	text := last.Content
	if len(text) > 200 {
		text = text[:200]
	}
	return &st.ConversationSummary{
		Summary:         "Exchanged messages. Last said: " + text,
		ImportanceScore: 1,
	}
}

func truncateForLog(s string) string {
	if len(s) > 120 {
		return s[:120] + "..."
	}
	return s
}
