package jobmgr

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestStartAsync_DuplicateName(t *testing.T) {
	m := NewManager(nil)
	release := make(chan struct{})
	err := m.StartAsync(context.Background(), "job", func(ctx context.Context) error {
		<-release
		return nil
	})
	if err != nil {
		t.Fatalf("first start failed: %v", err)
	}
	if err := m.StartAsync(context.Background(), "job", func(ctx context.Context) error { return nil }); err == nil {
		t.Fatal("expected duplicate-name error")
	}
	close(release)
	m.StopAll()
}

func TestStopAll_WaitsForJobs(t *testing.T) {
	m := NewManager(nil)
	var mu sync.Mutex
	finished := false
	_ = m.StartAsync(context.Background(), "loop", func(ctx context.Context) error {
		<-ctx.Done()
		time.Sleep(10 * time.Millisecond)
		mu.Lock()
		finished = true
		mu.Unlock()
		return nil
	})
	m.StopAll()
	mu.Lock()
	defer mu.Unlock()
	if !finished {
		t.Fatal("StopAll returned before the job finished")
	}
}

func TestReporter_Lifecycle(t *testing.T) {
	var mu sync.Mutex
	var events []string
	m := NewManager(func(s string) {
		mu.Lock()
		events = append(events, s)
		mu.Unlock()
	})
	done := make(chan struct{})
	_ = m.StartAsync(context.Background(), "quick", func(ctx context.Context) error {
		defer close(done)
		return nil
	})
	<-done
	m.StopAll()

	mu.Lock()
	defer mu.Unlock()
	joined := strings.Join(events, ";")
	if !strings.Contains(joined, "running:quick") || !strings.Contains(joined, "done:quick") {
		t.Fatalf("missing lifecycle events: %v", events)
	}
}
