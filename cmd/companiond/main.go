package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"companiond/internal/ai"
	"companiond/internal/config"
	"companiond/internal/dispatch"
	"companiond/internal/memory"
	"companiond/internal/persona"
	"companiond/internal/scheduler"
	"companiond/internal/storage"
	"companiond/internal/transport"
	"companiond/internal/trigger"
)

func main() {
	cfg, err := config.New()
	if err != nil {
		log.Fatalf("[ERR] %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The store's save loop runs until ctx is cancelled; Close waits for it,
	// so cancel must happen first on the way out.
	store, err := storage.New(ctx, cfg.StoragePath)
	if err != nil {
		log.Fatalf("[ERR] open storage: %v", err)
	}

	provider, err := ai.NewProvider(cfg.AIProvider)
	if err != nil {
		log.Fatalf("[ERR] %v", err)
	}

	eval := trigger.NewEvaluator(store, trigger.NewRandomSignalProvider(time.Now().UnixNano()))
	sel := persona.NewSelector(store)
	mem := memory.NewManager(store)
	disp := dispatch.NewDispatcher(store, mem, provider, dispatch.Options{
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		GenRate:     cfg.GenRatePerSec,
	})
	bus := transport.NewBus()

	sched := scheduler.New(store, eval, sel, disp, bus, scheduler.Options{
		ScanInterval:  cfg.ScanInterval,
		StartupDelay:  cfg.StartupDelay,
		BatchSize:     cfg.BatchSize,
		BatchPause:    cfg.BatchPause,
		MaxConcurrent: cfg.MaxConcurrent,
		ReplyDelay:    cfg.ReplyDelay,
		PollInterval:  cfg.PollInterval,
	})
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("[ERR] start scheduler: %v", err)
	}
	log.Printf("[INFO] companiond up, provider=%s scan=%s poll=%s", cfg.AIProvider, cfg.ScanInterval, cfg.PollInterval)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("[INFO] shutting down")
	cancel()
	sched.Shutdown()
	disp.Close()
	if err := store.Close(); err != nil {
		log.Printf("[ERR] close storage: %v", err)
	}
}
