package scheduler

import (
	"context"
	"errors"
	"log"
	"time"

	"companiond/internal/storage"
	st "companiond/internal/storagetypes"
)

func (s *Scheduler) runReactiveLoop(ctx context.Context) error {
	sub, err := s.bus.Subscribe("reactive")
	if err != nil {
		return err
	}
	defer sub.Close()

	// A feed that dropped events cannot be trusted until storage has been
	// reconciled, so an unhealthy check kicks a poll immediately rather than
	// waiting out the poller's own interval.
	healthInterval := s.opts.PollInterval
	if healthInterval <= 0 {
		healthInterval = time.Minute
	}
	health := time.NewTicker(healthInterval)
	defer health.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-health.C:
			if sub.Healthy() {
				continue
			}
			log.Printf("[ERR] reactive: event feed dropped messages, reconciling from storage")
			if err := s.PollOnce(ctx); err != nil {
				log.Printf("[ERR] reactive: reconcile: %v", err)
			}
		case m, ok := <-sub.C:
			if !ok {
				return errors.New("reactive: subscription closed")
			}
			if err := s.HandleInbound(ctx, m); err != nil {
				log.Printf("[ERR] reactive %s: %v", m.ID, err)
			}
		}
	}
}

// HandleInbound answers one human message. It is idempotent: a message the
// persona already replied to is skipped, so the poller can re-drive the same
// event without double-sending.
func (s *Scheduler) HandleInbound(ctx context.Context, m st.Message) error {
	if m.IsFromPersona {
		return nil
	}
	if m.SenderID == "" || m.SenderID == m.ReceiverID {
		return nil
	}

	p, err := s.store.GetPersona(m.ReceiverID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Not addressed to a persona; nothing to answer.
			return nil
		}
		return err
	}
	if !p.Active {
		return nil
	}

	// A short human-feeling pause, and a window for duplicate deliveries to
	// collapse before the answered check below.
	if err := sleepCtx(ctx, s.opts.ReplyDelay); err != nil {
		return err
	}

	answered, err := s.store.HasPersonaReplyTo(m.SenderID, m.ID)
	if err != nil {
		return err
	}
	if answered {
		return nil
	}

	return s.disp.DispatchReply(ctx, *p, m)
}
