// Package scheduler drives the engine's two paths: the periodic proactive
// scan over all active humans, and the reactive answer path fed by the
// transport bus with a polling fallback behind it.
package scheduler

import (
	"context"
	"log"
	"time"

	st "companiond/internal/storagetypes"
	"companiond/internal/transport"
	"companiond/internal/trigger"
	"companiond/pkg/jobmgr"
	"companiond/pkg/util"
)

// Store is the slice of the storage collaborator the scheduler needs.
type Store interface {
	ListActiveHumans() ([]st.Human, error)
	GetPersona(id string) (*st.Persona, error)
	HasPersonaReplyTo(humanID, messageID string) (bool, error)
	MessagesSince(t time.Time) ([]st.Message, error)
	PollCheckpoint() (time.Time, error)
	SetPollCheckpoint(t time.Time) error
}

// Evaluator answers fire/no-fire per (human, category).
type Evaluator interface {
	Evaluate(humanID string, category trigger.Category) (bool, error)
}

// Selector picks the persona that speaks, or nil when everyone is cooling
// down.
type Selector interface {
	SelectPersona(humanID string, category trigger.Category) (*st.Persona, error)
}

// Dispatcher runs the send pipeline.
type Dispatcher interface {
	DispatchProactive(ctx context.Context, p st.Persona, humanID string, category trigger.Category) error
	DispatchReply(ctx context.Context, p st.Persona, inbound st.Message) error
}

// Options are the scheduler tunables, normally lifted from config.Config.
type Options struct {
	ScanInterval  time.Duration
	StartupDelay  time.Duration
	BatchSize     int
	BatchPause    time.Duration
	MaxConcurrent int
	ReplyDelay    time.Duration
	PollInterval  time.Duration
}

type Scheduler struct {
	store    Store
	eval     Evaluator
	selector Selector
	disp     Dispatcher
	bus      transport.Subscriber
	jobs     *jobmgr.Manager
	opts     Options
}

func New(store Store, eval Evaluator, sel Selector, disp Dispatcher, bus transport.Subscriber, opts Options) *Scheduler {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 4
	}
	return &Scheduler{
		store:    store,
		eval:     eval,
		selector: sel,
		disp:     disp,
		bus:      bus,
		jobs: jobmgr.NewManager(func(s string) {
			log.Printf("[SCHED] job %s", s)
		}),
		opts: opts,
	}
}

// Start launches the proactive scan loop, the reactive consumer, and the
// poller. It returns once all three are registered; cancel ctx or call
// Shutdown to stop them.
func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.jobs.StartAsync(ctx, "proactive-scan", s.runProactiveLoop); err != nil {
		return err
	}
	if err := s.jobs.StartAsync(ctx, "reactive", s.runReactiveLoop); err != nil {
		return err
	}
	if err := s.jobs.StartAsync(ctx, "poller", s.runPollLoop); err != nil {
		return err
	}
	return nil
}

// Shutdown cancels all loops and waits for them to exit.
func (s *Scheduler) Shutdown() {
	s.jobs.StopAll()
}

func (s *Scheduler) runProactiveLoop(ctx context.Context) error {
	// Let storage and transport settle before the first full scan.
	if err := sleepCtx(ctx, s.opts.StartupDelay); err != nil {
		return err
	}
	s.RunProactiveScan(ctx)
	return every(ctx, s.opts.ScanInterval, s.RunProactiveScan)
}

// RunProactiveScan walks every active human once, in batches, firing every
// trigger category that is eligible for them this sweep. Per-human failures
// are logged and never abort the sweep.
func (s *Scheduler) RunProactiveScan(ctx context.Context) {
	humans, err := s.store.ListActiveHumans()
	if err != nil {
		log.Printf("[ERR] scan: list humans: %v", err)
		return
	}
	log.Printf("[SCHED] proactive scan over %d humans", len(humans))

	for start := 0; start < len(humans); start += s.opts.BatchSize {
		end := start + s.opts.BatchSize
		if end > len(humans) {
			end = len(humans)
		}
		batch := humans[start:end]

		err := util.ParallelAll(ctx, batch, s.opts.MaxConcurrent, func(ctx context.Context, h st.Human) error {
			return s.scanHuman(ctx, h.ID)
		})
		if err != nil {
			log.Printf("[ERR] scan batch: %v", err)
		}

		if end < len(humans) {
			if err := sleepCtx(ctx, s.opts.BatchPause); err != nil {
				return
			}
		}
	}
}

// TriggerForUser runs one (human, category) evaluation immediately, outside
// the scan cadence. Manual operator surface.
func (s *Scheduler) TriggerForUser(ctx context.Context, humanID string, category trigger.Category) error {
	return s.fireIfEligible(ctx, humanID, category)
}

// scanHuman walks the trigger catalog in order. Every eligible category may
// fire in the same sweep; each obeys its own frequency floor, and the
// selector's anti-pile-on window keeps one persona from stacking messages.
func (s *Scheduler) scanHuman(ctx context.Context, humanID string) error {
	var firstErr error
	for _, def := range trigger.Catalog() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := s.fireIfEligible(ctx, humanID, def.Category); err != nil {
			log.Printf("[ERR] scan %s/%s: %v", humanID, def.Category, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (s *Scheduler) fireIfEligible(ctx context.Context, humanID string, category trigger.Category) error {
	eligible, err := s.eval.Evaluate(humanID, category)
	if err != nil {
		// Fails closed: a broken predicate means not eligible.
		log.Printf("[ERR] eligibility %s/%s: %v", humanID, category, err)
		return nil
	}
	if !eligible {
		return nil
	}

	p, err := s.selector.SelectPersona(humanID, category)
	if err != nil {
		return err
	}
	if p == nil {
		// Every persona is cooling down. The floor was not consumed, so the
		// next scan retries.
		log.Printf("[SCHED] %s: %s eligible but no persona available", humanID, category)
		return nil
	}

	return s.disp.DispatchProactive(ctx, *p, humanID, category)
}
