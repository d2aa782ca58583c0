package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"companiond/internal/ai"
	"companiond/internal/memory"
	st "companiond/internal/storagetypes"
	"companiond/internal/trigger"
	"companiond/pkg/retrylimit"
)

// historyLimit bounds how much recent conversation is replayed to the
// generation backend per dispatch.
const historyLimit = 12

// Store is the persistence surface the pipeline writes through.
type Store interface {
	InsertMessage(m st.Message) error
	AppendFireRecord(rec st.FireRecord) error
	RecentMessages(humanID string, limit int) ([]st.Message, error)
}

// Memory is the relationship-memory surface the pipeline reads before
// generating and updates after sending.
type Memory interface {
	Get(personaID, humanID string) (*st.RelationshipMemory, error)
	Update(personaID, humanID string, messageCount int, sum *st.ConversationSummary) (string, error)
}

// Dispatcher runs the send pipeline: build context, generate, persist the
// message, record the fire, then fold the exchange back into memory.
type Dispatcher struct {
	store    Store
	memory   Memory
	provider ai.Provider
	limiter  *retrylimit.AdaptiveLimiter
	retry    retrylimit.RetryConfig

	maxTokens   int
	temperature float64

	now func() time.Time
	wg  sync.WaitGroup
}

type Options struct {
	MaxTokens   int
	Temperature float64
	GenRate     float64 // generations per second
}

func NewDispatcher(store Store, mem Memory, provider ai.Provider, opts Options) *Dispatcher {
	genRate := opts.GenRate
	if genRate <= 0 {
		genRate = 1
	}
	return &Dispatcher{
		store:       store,
		memory:      mem,
		provider:    provider,
		limiter:     retrylimit.NewAdaptiveLimiter(rate.Limit(genRate), rate.Limit(genRate/8), rate.Limit(genRate), rate.Limit(genRate/10), 0.5),
		retry:       retrylimit.DefaultRetryConfig(),
		maxTokens:   opts.MaxTokens,
		temperature: opts.Temperature,
		now:         time.Now,
	}
}

// SetNow overrides the clock in tests.
func (d *Dispatcher) SetNow(now func() time.Time) { d.now = now }

// Close waits for in-flight memory updates to finish. Call before the
// storage backend shuts down.
func (d *Dispatcher) Close() {
	d.wg.Wait()
}

// DispatchProactive sends a triggered outreach from persona to human and
// records the fire under the trigger category.
func (d *Dispatcher) DispatchProactive(ctx context.Context, p st.Persona, humanID string, category trigger.Category) error {
	return d.send(ctx, p, humanID, string(category), intentFor(category), "")
}

// DispatchReply answers an inbound human message. The fire record carries an
// empty category so frequency floors ignore it, while per-persona cooldown
// queries still see it.
func (d *Dispatcher) DispatchReply(ctx context.Context, p st.Persona, inbound st.Message) error {
	return d.send(ctx, p, inbound.SenderID, "", replyIntent, inbound.ID)
}

func (d *Dispatcher) send(ctx context.Context, p st.Persona, humanID, fireCategory, intent, replyToID string) error {
	mem, err := d.memory.Get(p.ID, humanID)
	if err != nil {
		return fmt.Errorf("dispatch: load memory for %s/%s: %w", p.ID, humanID, err)
	}

	history, err := d.store.RecentMessages(humanID, historyLimit)
	if err != nil {
		return fmt.Errorf("dispatch: load history for %s: %w", humanID, err)
	}

	req := d.buildRequest(p, mem, history, intent)

	var reply string
	genErr := retrylimit.WithRetry(ctx, func() error {
		out, err := d.provider.Generate(req)
		if err != nil {
			return err
		}
		reply = strings.TrimSpace(out)
		return nil
	}, d.limiter, d.retry)
	if genErr != nil {
		return fmt.Errorf("dispatch: generate for %s/%s: %w", p.ID, humanID, genErr)
	}
	if reply == "" {
		return errors.New("dispatch: backend produced an empty reply")
	}

	now := d.now()
	msg := st.Message{
		ID:            uuid.NewString(),
		SenderID:      p.ID,
		ReceiverID:    humanID,
		Content:       reply,
		SentAt:        now,
		IsFromPersona: true,
		ReplyToID:     replyToID,
	}
	if err := d.store.InsertMessage(msg); err != nil {
		// No fire record without a persisted message: a failed insert must
		// not consume the frequency floor or the persona cooldown.
		return fmt.Errorf("dispatch: persist message %s: %w", msg.ID, err)
	}

	if err := d.store.AppendFireRecord(st.FireRecord{
		HumanID:   humanID,
		PersonaID: p.ID,
		Category:  fireCategory,
		FiredAt:   now,
	}); err != nil {
		return fmt.Errorf("dispatch: record fire for %s/%s: %w", p.ID, humanID, err)
	}

	messageCount := 1
	if replyToID != "" {
		messageCount = 2 // inbound plus our answer
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.remember(ctx, p, humanID, msg, history, messageCount)
	}()

	log.Printf("[DISPATCH] %s -> %s category=%q msg=%s", p.Name, humanID, fireCategory, msg.ID)
	return nil
}

// remember summarizes the exchange and folds it into relationship memory.
// A summarization failure degrades to a minimal summary rather than losing
// the exchange entirely.
func (d *Dispatcher) remember(ctx context.Context, p st.Persona, humanID string, sent st.Message, history []st.Message, messageCount int) {
	transcript := append(history, sent)
	sum, err := d.summarize(ctx, p, transcript)
	if err != nil {
		log.Printf("[ERR] summarize %s/%s: %v", p.ID, humanID, err)
		sum = minimalSummary(transcript)
	}
	if _, err := d.memory.Update(p.ID, humanID, messageCount, sum); err != nil {
		log.Printf("[ERR] memory update %s/%s: %v", p.ID, humanID, err)
	}
}

func (d *Dispatcher) buildRequest(p st.Persona, mem *st.RelationshipMemory, history []st.Message, intent string) ai.Request {
	var sys strings.Builder
	fmt.Fprintf(&sys, "You are %s, a fitness companion. %s\n\n", p.Name, p.Bio)
	sys.WriteString(memory.BuildContext(mem))
	sys.WriteString("\n\nIntent: ")
	sys.WriteString(intent)

	msgs := []ai.Message{{Role: "system", Content: sys.String()}}
	for _, m := range history {
		role := "user"
		if m.IsFromPersona {
			role = "assistant"
		}
		msgs = append(msgs, ai.Message{Role: role, Content: m.Content})
	}
	return ai.Request{Messages: msgs, MaxTokens: d.maxTokens, Temperature: d.temperature}
}
