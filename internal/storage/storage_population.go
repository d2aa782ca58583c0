package storage

import (
	"sort"
	"strings"

	st "companiond/internal/storagetypes"
)

func (s *Storage) SavePersona(p st.Persona) error {
	if p.ID == "" {
		return &StorageError{Op: "save-persona", Key: "", Err: ErrNotFound}
	}
	return s.set("save-persona", personaPrefix+p.ID, p)
}

func (s *Storage) GetPersona(id string) (*st.Persona, error) {
	var p st.Persona
	if err := s.get("get-persona", personaPrefix+id, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListActivePersonas returns active personas sorted by ID for stable iteration.
func (s *Storage) ListActivePersonas() ([]st.Persona, error) {
	var out []st.Persona
	for _, key := range s.ds.Keys() {
		if !strings.HasPrefix(key, personaPrefix) {
			continue
		}
		var p st.Persona
		if err := s.get("list-personas", key, &p); err != nil {
			return nil, err
		}
		if p.Active {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Storage) SaveHuman(h st.Human) error {
	if h.ID == "" {
		return &StorageError{Op: "save-human", Key: "", Err: ErrNotFound}
	}
	return s.set("save-human", humanPrefix+h.ID, h)
}

func (s *Storage) GetHuman(id string) (*st.Human, error) {
	var h st.Human
	if err := s.get("get-human", humanPrefix+id, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// ListActiveHumans returns active humans sorted by ID for stable iteration.
func (s *Storage) ListActiveHumans() ([]st.Human, error) {
	var out []st.Human
	for _, key := range s.ds.Keys() {
		if !strings.HasPrefix(key, humanPrefix) {
			continue
		}
		var h st.Human
		if err := s.get("list-humans", key, &h); err != nil {
			return nil, err
		}
		if h.Active {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
