package storage

import (
	st "companiond/internal/storagetypes"
)

func memoryKey(personaID, humanID string) string {
	return memoryPrefix + personaID + "|" + humanID
}

// GetMemory returns the relationship memory for a (persona, human) pair.
// ErrNotFound when the pair never interacted.
func (s *Storage) GetMemory(personaID, humanID string) (*st.RelationshipMemory, error) {
	var mem st.RelationshipMemory
	if err := s.get("get-memory", memoryKey(personaID, humanID), &mem); err != nil {
		return nil, err
	}
	return &mem, nil
}

// PutMemory writes the full memory record. Memory is never hard-deleted.
func (s *Storage) PutMemory(mem st.RelationshipMemory) error {
	if mem.PersonaID == "" || mem.HumanID == "" {
		return &StorageError{Op: "put-memory", Key: mem.ID, Err: ErrNotFound}
	}
	return s.set("put-memory", memoryKey(mem.PersonaID, mem.HumanID), mem)
}
