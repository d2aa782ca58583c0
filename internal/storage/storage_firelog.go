package storage

import (
	"errors"
	"time"

	st "companiond/internal/storagetypes"
)

// AppendFireRecord appends to the human's append-only fire log.
// Records are never mutated or deleted here; retention is an external concern.
func (s *Storage) AppendFireRecord(rec st.FireRecord) error {
	if rec.HumanID == "" || rec.PersonaID == "" {
		return &StorageError{Op: "append-fire", Key: rec.HumanID, Err: errors.New("incomplete fire record")}
	}
	key := firelogPrefix + rec.HumanID
	var log []st.FireRecord
	if err := s.get("append-fire", key, &log); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	log = append(log, rec)
	return s.set("append-fire", key, log)
}

func (s *Storage) fireLog(op, humanID string) ([]st.FireRecord, error) {
	var log []st.FireRecord
	if err := s.get(op, firelogPrefix+humanID, &log); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return log, nil
}

// LatestFireByCategory returns the most recent fire record for
// (humanID, category). ok is false when the category never fired.
func (s *Storage) LatestFireByCategory(humanID, category string) (*st.FireRecord, bool, error) {
	log, err := s.fireLog("latest-fire-category", humanID)
	if err != nil {
		return nil, false, err
	}
	var best *st.FireRecord
	for i := range log {
		if log[i].Category != category {
			continue
		}
		if best == nil || log[i].FiredAt.After(best.FiredAt) {
			best = &log[i]
		}
	}
	return best, best != nil, nil
}

// LatestFireByPersona returns the most recent fire record for
// (humanID, personaID) across all categories, replies included.
func (s *Storage) LatestFireByPersona(humanID, personaID string) (*st.FireRecord, bool, error) {
	log, err := s.fireLog("latest-fire-persona", humanID)
	if err != nil {
		return nil, false, err
	}
	var best *st.FireRecord
	for i := range log {
		if log[i].PersonaID != personaID {
			continue
		}
		if best == nil || log[i].FiredAt.After(best.FiredAt) {
			best = &log[i]
		}
	}
	return best, best != nil, nil
}

// FiresSince returns every fire record for the human at or after t.
func (s *Storage) FiresSince(humanID string, t time.Time) ([]st.FireRecord, error) {
	log, err := s.fireLog("fires-since", humanID)
	if err != nil {
		return nil, err
	}
	var out []st.FireRecord
	for _, rec := range log {
		if !rec.FiredAt.Before(t) {
			out = append(out, rec)
		}
	}
	return out, nil
}
