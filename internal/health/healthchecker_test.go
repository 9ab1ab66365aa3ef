package health

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type stubChecker struct {
	name string
	up   atomic.Bool
}

func (s *stubChecker) Name() string                         { return s.name }
func (s *stubChecker) IsHealthy() bool                      { return s.up.Load() }
func (s *stubChecker) Start(context.Context, time.Duration) {}
func (s *stubChecker) set(up bool)                          { s.up.Store(up) }

func eventually(t *testing.T, what string, pred func() bool) {
	t.Helper()
	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		if pred() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestServiceHealthFollowsDependencies(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	storeChk := &stubChecker{name: "store"}
	pipeChk := &stubChecker{name: "pipeline"}
	storeChk.set(true)
	pipeChk.set(true)

	svc := NewServiceHealthChecker(zerolog.Nop(), storeChk, pipeChk)
	if svc.IsHealthy() {
		t.Fatalf("aggregator healthy before first evaluation")
	}

	go svc.Start(ctx, 10*time.Millisecond)
	eventually(t, "service UP", svc.IsHealthy)

	pipeChk.set(false)
	eventually(t, "service DOWN", func() bool { return !svc.IsHealthy() })
	if failing := svc.Failing(); len(failing) != 1 || failing[0] != "pipeline" {
		t.Fatalf("Failing() = %v, want [pipeline]", failing)
	}

	pipeChk.set(true)
	eventually(t, "service recovered", svc.IsHealthy)
	if failing := svc.Failing(); len(failing) != 0 {
		t.Fatalf("Failing() = %v after recovery", failing)
	}
}

func TestServiceHealthNoDependencies(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc := NewServiceHealthChecker(zerolog.Nop())
	go svc.Start(ctx, 10*time.Millisecond)

	// Nothing to fail means healthy once evaluated.
	eventually(t, "empty aggregator UP", svc.IsHealthy)
}
