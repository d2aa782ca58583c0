package memory

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"companiond/internal/storage"
	st "companiond/internal/storagetypes"
)

// MaxSnapshots bounds recentSnapshots; the oldest entry is evicted first.
const MaxSnapshots = 10

// experienceImportanceMin: summaries at or above this importance become
// shared experiences, not just snapshots.
const experienceImportanceMin = 4

// Store is the slice of the storage collaborator the memory manager needs.
type Store interface {
	GetMemory(personaID, humanID string) (*st.RelationshipMemory, error)
	PutMemory(mem st.RelationshipMemory) error
}

// Manager owns relationship memory records. Concurrent updates for the same
// (persona, human) pair serialize on a per-pair lock; different pairs proceed
// independently.
type Manager struct {
	store Store
	now   func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewManager(store Store) *Manager {
	return &Manager{
		store: store,
		now:   time.Now,
		locks: make(map[string]*sync.Mutex),
	}
}

// SetNow overrides the clock. Test hook.
func (m *Manager) SetNow(now func() time.Time) { m.now = now }

func (m *Manager) pairLock(personaID, humanID string) *sync.Mutex {
	key := personaID + "|" + humanID
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[key]
	if !ok {
		l = &sync.Mutex{}
		m.locks[key] = l
	}
	return l
}

// Get returns the pair's memory, or nil when the pair never interacted.
func (m *Manager) Get(personaID, humanID string) (*st.RelationshipMemory, error) {
	mem, err := m.store.GetMemory(personaID, humanID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return mem, nil
}

// Update applies one dispatched exchange to the pair's memory, creating the
// record lazily on first contact. A nil summary (single-message ping) bumps
// message counters only; a summary counts a conversation, merges learned
// details, and rolls the snapshot window. The relationship stage is always
// recomputed from counters, never set directly.
func (m *Manager) Update(personaID, humanID string, messageCount int, sum *st.ConversationSummary) (string, error) {
	l := m.pairLock(personaID, humanID)
	l.Lock()
	defer l.Unlock()

	now := m.now()
	mem, err := m.store.GetMemory(personaID, humanID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return "", err
		}
		mem = &st.RelationshipMemory{
			ID:        uuid.NewString(),
			PersonaID: personaID,
			HumanID:   humanID,
			CreatedAt: now,
		}
	}

	if messageCount > 0 {
		mem.TotalMessages += messageCount
	}

	if sum != nil {
		mem.TotalConversations++
		mem.HumanDetailsLearned = mergeDetails(mem.HumanDetailsLearned, sum.NewDetailsLearned)
		mem.OngoingTopics = prependDedup(mem.OngoingTopics, sum.TopicsDiscussed)
		if sum.Summary != "" {
			mem.LastConversationSummary = sum.Summary
			if sum.ImportanceScore >= experienceImportanceMin {
				mem.SharedExperiences = appendDedup(mem.SharedExperiences, []string{sum.Summary})
			}
			mem.RecentSnapshots = append(mem.RecentSnapshots, st.MemorySnapshot{
				Date:          now,
				Summary:       sum.Summary,
				Topics:        sum.TopicsDiscussed,
				EmotionalTone: sum.EmotionalTone,
			})
			if len(mem.RecentSnapshots) > MaxSnapshots {
				mem.RecentSnapshots = mem.RecentSnapshots[len(mem.RecentSnapshots)-MaxSnapshots:]
			}
		}
	}

	mem.RelationshipStage = RecomputeStage(mem.TotalConversations, len(mem.HumanDetailsLearned))
	mem.UpdatedAt = now

	if err := m.store.PutMemory(*mem); err != nil {
		return "", err
	}
	return mem.ID, nil
}

// RecomputeStage derives the relationship stage from conversation and detail
// counts. The rules form an ordered cascade: the first match wins, so e.g.
// 10 conversations with 3 details lands on good_friend, never close_friend.
func RecomputeStage(totalConversations, detailsCount int) string {
	switch {
	case totalConversations <= 1:
		return st.StageNewConnection
	case totalConversations <= 3:
		return st.StageGettingAcquainted
	case totalConversations <= 8 && detailsCount < 5:
		return st.StageFriendlyAcquaintance
	case totalConversations <= 15 || detailsCount < 8:
		return st.StageGoodFriend
	default:
		return st.StageCloseFriend
	}
}

// mergeDetails folds newly learned details into the accretive map. A non-empty
// value fills a missing or empty slot; list-typed values union with the old
// ones; for scalars the newer value wins. Empty incoming values never erase
// existing data.
func mergeDetails(dst, src map[string]any) map[string]any {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for k, v := range src {
		if isEmptyValue(v) {
			continue
		}
		old, exists := dst[k]
		if !exists || isEmptyValue(old) {
			dst[k] = v
			continue
		}
		if oldList, oldIsList := toStringList(old); oldIsList {
			if newList, newIsList := toStringList(v); newIsList {
				dst[k] = appendDedup(oldList, newList)
			} else {
				dst[k] = appendDedup(oldList, []string{toString(v)})
			}
			continue
		}
		if newList, newIsList := toStringList(v); newIsList {
			dst[k] = appendDedup([]string{toString(old)}, newList)
			continue
		}
		dst[k] = v // scalar vs scalar: newer wins
	}
	return dst
}

// prependDedup puts items in front of list, most recent first, dropping
// duplicates. Re-mentioning a topic moves it back to the front.
func prependDedup(list, items []string) []string {
	if len(items) == 0 {
		return list
	}
	seen := make(map[string]bool, len(items)+len(list))
	out := make([]string, 0, len(items)+len(list))
	for _, s := range items {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	for _, s := range list {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// appendDedup appends items to list, keeping first occurrences.
func appendDedup(list, items []string) []string {
	seen := make(map[string]bool, len(list)+len(items))
	out := make([]string, 0, len(list)+len(items))
	for _, s := range list {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	for _, s := range items {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
