package storagetypes

import (
	"time"
)

// Persona is an autonomous agent identity with a fixed personality archetype.
type Persona struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Archetype string    `json:"archetype"` // e.g. "welcoming", "motivating", "celebratory"
	Bio       string    `json:"bio"`       // identity text fed to the generation backend
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// Human is a person the personas talk to.
type Human struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// Message is append-only and immutable once sent.
type Message struct {
	ID            string    `json:"id"`
	SenderID      string    `json:"sender_id"`
	ReceiverID    string    `json:"receiver_id"`
	Content       string    `json:"content"`
	SentAt        time.Time `json:"sent_at"`
	IsFromPersona bool      `json:"is_from_persona"`
	ReplyToID     string    `json:"reply_to_id,omitempty"` // set on persona replies to an inbound message
}

// FireRecord marks that a trigger category was dispatched to a human by a persona.
// Append-only; never mutated or deleted. Category is empty for direct replies.
type FireRecord struct {
	HumanID   string    `json:"human_id"`
	PersonaID string    `json:"persona_id"`
	Category  string    `json:"category"`
	FiredAt   time.Time `json:"fired_at"`
}

// RelationshipStage values, ordered from coldest to warmest.
const (
	StageNewConnection        = "new_connection"
	StageGettingAcquainted    = "getting_acquainted"
	StageFriendlyAcquaintance = "friendly_acquaintance"
	StageGoodFriend           = "good_friend"
	StageCloseFriend          = "close_friend"
)

// MemorySnapshot is one bounded-history entry of a past conversation.
type MemorySnapshot struct {
	Date          time.Time `json:"date"`
	Summary       string    `json:"summary"`
	Topics        []string  `json:"topics,omitempty"`
	EmotionalTone string    `json:"emotional_tone,omitempty"`
}

// RelationshipMemory is the permanent relationship ledger for one
// (persona, human) pair. Stage is always derived, never set directly.
type RelationshipMemory struct {
	ID                      string           `json:"id"`
	PersonaID               string           `json:"persona_id"`
	HumanID                 string           `json:"human_id"`
	TotalConversations      int              `json:"total_conversations"`
	TotalMessages           int              `json:"total_messages"`
	RelationshipStage       string           `json:"relationship_stage"`
	HumanDetailsLearned     map[string]any   `json:"human_details_learned,omitempty"`
	SharedExperiences       []string         `json:"shared_experiences,omitempty"`
	OngoingTopics           []string         `json:"ongoing_topics,omitempty"`
	LastConversationSummary string           `json:"last_conversation_summary,omitempty"`
	RecentSnapshots         []MemorySnapshot `json:"recent_snapshots,omitempty"`
	CreatedAt               time.Time        `json:"created_at"`
	UpdatedAt               time.Time        `json:"updated_at"`
}

// ConversationSummary is the ephemeral output of the summarization contract.
type ConversationSummary struct {
	Summary           string         `json:"summary"`
	TopicsDiscussed   []string       `json:"topics_discussed,omitempty"`
	NewDetailsLearned map[string]any `json:"new_details_learned,omitempty"`
	EmotionalTone     string         `json:"emotional_tone,omitempty"`
	ImportanceScore   int            `json:"importance_score"` // 1..5
	FollowUps         []string       `json:"follow_ups,omitempty"`
}
