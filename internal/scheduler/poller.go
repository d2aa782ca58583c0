package scheduler

import (
	"context"
	"log"
	"time"
)

func (s *Scheduler) runPollLoop(ctx context.Context) error {
	return every(ctx, s.opts.PollInterval, func(ctx context.Context) {
		if err := s.PollOnce(ctx); err != nil {
			log.Printf("[ERR] poll: %v", err)
		}
	})
}

// PollOnce reconciles the reactive path against storage. Every human message
// recorded after the checkpoint is re-driven through the inbound handler;
// already-answered ones are dropped there, so a healthy event feed makes this
// a no-op while a lossy one is healed within a poll interval.
func (s *Scheduler) PollOnce(ctx context.Context) error {
	checkpoint, err := s.store.PollCheckpoint()
	if err != nil {
		return err
	}
	if checkpoint.IsZero() {
		// First run: start from now instead of replaying the whole history.
		return s.store.SetPollCheckpoint(time.Now())
	}

	msgs, err := s.store.MessagesSince(checkpoint)
	if err != nil {
		return err
	}

	latest := checkpoint
	for _, m := range msgs {
		if m.SentAt.After(latest) {
			latest = m.SentAt
		}
		if m.IsFromPersona {
			continue
		}
		if err := s.HandleInbound(ctx, m); err != nil {
			// Leave the checkpoint where it was so this message is retried
			// on the next poll.
			log.Printf("[ERR] poll re-drive %s: %v", m.ID, err)
			return err
		}
	}

	if latest.After(checkpoint) {
		return s.store.SetPollCheckpoint(latest)
	}
	return nil
}
