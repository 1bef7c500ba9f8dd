package actiongate

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/crabpot-sandbox/crabpot/internal/domain/alert"
	"github.com/crabpot-sandbox/crabpot/internal/telemetry"
)

type fakePolicy struct {
	mu        sync.Mutex
	permanent []string
	approved  []string
	denied    []string
}

func (f *fakePolicy) AddPermanent(domain string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.permanent = append(f.permanent, domain)
}

func (f *fakePolicy) SessionApprove(domain string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.approved = append(f.approved, domain)
}

func (f *fakePolicy) SessionDeny(domain string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.denied = append(f.denied, domain)
}

func TestRequestApproval_ApprovedUnblocksWaiter(t *testing.T) {
	fp := &fakePolicy{}
	bus := alert.NewBus(nil)
	gate := New(fp, bus, time.Second, nil)

	done := make(chan bool, 1)
	go func() { done <- gate.RequestApproval("example.com", 443) }()

	waitForPending(t, gate, "example.com")
	if !gate.Approve("example.com", false) {
		t.Fatalf("expected a live pending request to signal")
	}

	select {
	case approved := <-done:
		if !approved {
			t.Fatalf("expected approval verdict true")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("RequestApproval did not unblock")
	}
}

func TestRequestApproval_WithTracerStillSignalsVerdict(t *testing.T) {
	fp := &fakePolicy{}
	bus := alert.NewBus(nil)
	gate := New(fp, bus, time.Second, nil)

	tr, err := telemetry.NewTracer("stdout")
	if err != nil {
		t.Fatalf("NewTracer: %v", err)
	}
	defer tr.Shutdown(context.Background())
	gate.SetTracer(tr)

	done := make(chan bool, 1)
	go func() { done <- gate.RequestApproval("traced.example.com", 443) }()

	waitForPending(t, gate, "traced.example.com")
	if !gate.Approve("traced.example.com", false) {
		t.Fatalf("expected a live pending request to signal")
	}

	select {
	case approved := <-done:
		if !approved {
			t.Fatalf("expected approval verdict true")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("RequestApproval did not unblock")
	}
}

func TestRequestApproval_Coalesces(t *testing.T) {
	fp := &fakePolicy{}
	bus := alert.NewBus(nil)
	gate := New(fp, bus, 2*time.Second, nil)

	const n = 5
	results := make(chan bool, n)
	for i := 0; i < n; i++ {
		go func() { results <- gate.RequestApproval("coalesce.example.com", 443) }()
	}

	waitForPending(t, gate, "coalesce.example.com")
	gate.Approve("coalesce.example.com", false)

	for i := 0; i < n; i++ {
		select {
		case approved := <-results:
			if !approved {
				t.Fatalf("all coalesced waiters must receive the same (approved) verdict")
			}
		case <-time.After(3 * time.Second):
			t.Fatal("a coalesced waiter never unblocked")
		}
	}
}

func TestRequestApproval_TimeoutDenies(t *testing.T) {
	fp := &fakePolicy{}
	bus := alert.NewBus(nil)
	gate := New(fp, bus, 50*time.Millisecond, nil)

	if gate.RequestApproval("slow.example.com", 443) {
		t.Fatalf("expected timeout to resolve as denied")
	}
}

func TestDeny_UnblocksWaiterAsDenied(t *testing.T) {
	fp := &fakePolicy{}
	bus := alert.NewBus(nil)
	gate := New(fp, bus, time.Second, nil)

	done := make(chan bool, 1)
	go func() { done <- gate.RequestApproval("deny.example.com", 443) }()

	waitForPending(t, gate, "deny.example.com")
	gate.Deny("deny.example.com")

	select {
	case approved := <-done:
		if approved {
			t.Fatalf("expected denied verdict")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("RequestApproval did not unblock on Deny")
	}
}

func TestApprove_NoLivePendingIsNoopOnPendingSet(t *testing.T) {
	fp := &fakePolicy{}
	bus := alert.NewBus(nil)
	gate := New(fp, bus, time.Second, nil)

	if gate.Approve("nobody-waiting.example.com", true) {
		t.Fatalf("expected Approve with no live pending request to return false")
	}
	if len(fp.permanent) != 1 {
		t.Fatalf("expected policy mutation to still happen, got %v", fp.permanent)
	}
}

func TestRequestApproval_CoalescedWaitersLeaveNoGoroutines(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	fp := &fakePolicy{}
	bus := alert.NewBus(nil)
	gate := New(fp, bus, 2*time.Second, nil)

	const n = 5
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			gate.RequestApproval("leaktest.example.com", 443)
		}()
	}

	waitForPending(t, gate, "leaktest.example.com")
	gate.Approve("leaktest.example.com", false)
	wg.Wait()
}

func waitForPending(t *testing.T, gate *Gate, domain string) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		for _, d := range gate.GetPending() {
			if d == domain {
				return
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("domain %s never appeared pending", domain)
}
