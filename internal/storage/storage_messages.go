package storage

import (
	"errors"
	"sort"
	"strings"
	"time"

	st "companiond/internal/storagetypes"
)

// conversationKey picks the human side of a message: conversations are logged
// per human regardless of direction.
func conversationKey(m st.Message) string {
	if m.IsFromPersona {
		return msgsPrefix + m.ReceiverID
	}
	return msgsPrefix + m.SenderID
}

// InsertMessage appends a message to the human's conversation log.
func (s *Storage) InsertMessage(m st.Message) error {
	if m.ID == "" || m.SenderID == "" || m.ReceiverID == "" {
		return &StorageError{Op: "insert-message", Key: m.ID, Err: errors.New("incomplete message")}
	}
	key := conversationKey(m)
	var msgs []st.Message
	if err := s.get("insert-message", key, &msgs); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	msgs = append(msgs, m)
	return s.set("insert-message", key, msgs)
}

// RecentMessages returns the last limit messages of the human's conversation,
// oldest first.
func (s *Storage) RecentMessages(humanID string, limit int) ([]st.Message, error) {
	var msgs []st.Message
	if err := s.get("recent-messages", msgsPrefix+humanID, &msgs); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

// MessagesSince returns every message across all conversations sent strictly
// after t, ordered by send time. The polling fallback drives off this.
func (s *Storage) MessagesSince(t time.Time) ([]st.Message, error) {
	var out []st.Message
	for _, key := range s.ds.Keys() {
		if !strings.HasPrefix(key, msgsPrefix) {
			continue
		}
		var msgs []st.Message
		if err := s.get("messages-since", key, &msgs); err != nil {
			return nil, err
		}
		for _, m := range msgs {
			if m.SentAt.After(t) {
				out = append(out, m)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SentAt.Before(out[j].SentAt) })
	return out, nil
}

// HasPersonaReplyTo reports whether any persona message in the human's
// conversation already answers the given inbound message.
func (s *Storage) HasPersonaReplyTo(humanID, messageID string) (bool, error) {
	var msgs []st.Message
	if err := s.get("has-reply", msgsPrefix+humanID, &msgs); err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	for _, m := range msgs {
		if m.IsFromPersona && m.ReplyToID == messageID {
			return true, nil
		}
	}
	return false, nil
}

// LastPersonaMessageAt returns when any persona last messaged the human.
// ok is false when no persona ever has.
func (s *Storage) LastPersonaMessageAt(humanID string) (time.Time, bool, error) {
	var msgs []st.Message
	if err := s.get("last-persona-message", msgsPrefix+humanID, &msgs); err != nil {
		if errors.Is(err, ErrNotFound) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}
	var last time.Time
	ok := false
	for _, m := range msgs {
		if m.IsFromPersona && m.SentAt.After(last) {
			last = m.SentAt
			ok = true
		}
	}
	return last, ok, nil
}

type pollCheckpoint struct {
	At time.Time `json:"at"`
}

// PollCheckpoint returns the high-water mark of the polling fallback.
// Zero time when never set.
func (s *Storage) PollCheckpoint() (time.Time, error) {
	var cp pollCheckpoint
	if err := s.get("poll-checkpoint", pollCheckpointKey, &cp); err != nil {
		if errors.Is(err, ErrNotFound) {
			return time.Time{}, nil
		}
		return time.Time{}, err
	}
	return cp.At, nil
}

func (s *Storage) SetPollCheckpoint(t time.Time) error {
	return s.set("set-poll-checkpoint", pollCheckpointKey, pollCheckpoint{At: t})
}
