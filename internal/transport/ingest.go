package transport

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	st "companiond/internal/storagetypes"
)

// MessageStore is the persistence half of ingestion.
type MessageStore interface {
	InsertMessage(m st.Message) error
}

// Ingestor is the single entry point for inbound human messages: it persists
// the message first, then announces it on the bus. Persist-then-publish means
// a consumer can always re-read what it was told about, and the poller can
// recover anything the bus lost.
type Ingestor struct {
	store MessageStore
	bus   Publisher
	now   func() time.Time
}

func NewIngestor(store MessageStore, bus Publisher) *Ingestor {
	return &Ingestor{store: store, bus: bus, now: time.Now}
}

// SetNow overrides the clock in tests.
func (i *Ingestor) SetNow(now func() time.Time) { i.now = now }

// Ingest records a human-authored message addressed to a persona and fans it
// out to subscribers.
func (i *Ingestor) Ingest(humanID, personaID, content string) (st.Message, error) {
	m := st.Message{
		ID:         uuid.NewString(),
		SenderID:   humanID,
		ReceiverID: personaID,
		Content:    content,
		SentAt:     i.now(),
	}
	if err := i.store.InsertMessage(m); err != nil {
		return st.Message{}, fmt.Errorf("ingest: %w", err)
	}
	i.bus.Publish(m)
	return m, nil
}
