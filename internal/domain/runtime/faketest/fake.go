// Package faketest provides an in-memory runtime.Runtime double for tests
// that need to drive the security monitor or egress proxy without a real
// container backend.
package faketest

import (
	"context"
	"sync"
	"time"

	"github.com/crabpot-sandbox/crabpot/internal/domain/runtime"
)

// Fake is a scriptable runtime.Runtime. Tests set its fields/queues before
// starting the code under test and read back which calls were made.
type Fake struct {
	mu sync.Mutex

	status       runtime.Status
	stats        runtime.Stats
	top          []runtime.TopEntry
	health       string
	startTime    time.Time
	hasStartTime bool
	execOutput   string
	execErr      error
	statsErr     error
	topErr       error

	logLines []string
	events   []runtime.Event

	paused   bool
	pauseErr error

	PauseCalls  int
	ResumeCalls int
}

// New returns a Fake in the running state with no findings.
func New() *Fake {
	return &Fake{status: runtime.StatusRunning, health: "healthy"}
}

func (f *Fake) Setup(ctx context.Context) error   { return nil }
func (f *Fake) Start(ctx context.Context) error   { return nil }
func (f *Fake) Stop(ctx context.Context) error    { return nil }
func (f *Fake) Destroy(ctx context.Context) error { return nil }
func (f *Fake) Build(ctx context.Context) error   { return nil }

// Pause records the call and applies any scripted error.
func (f *Fake) Pause(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.PauseCalls++
	if f.pauseErr != nil {
		return f.pauseErr
	}
	f.paused = true
	f.status = runtime.StatusPaused
	return nil
}

// Resume records the call.
func (f *Fake) Resume(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ResumeCalls++
	f.paused = false
	f.status = runtime.StatusRunning
	return nil
}

// SetPauseError scripts Pause to fail with err on every call until it is
// set again.
func (f *Fake) SetPauseError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pauseErr = err
}

// IsPaused reports whether Pause has succeeded more recently than Resume.
func (f *Fake) IsPaused() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.paused
}

func (f *Fake) Status(ctx context.Context) (runtime.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status, nil
}

func (f *Fake) IsRunning(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status == runtime.StatusRunning, nil
}

// SetHealth scripts the value Health returns.
func (f *Fake) SetHealth(h string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.health = h
}

func (f *Fake) Health(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.health, nil
}

func (f *Fake) StartTime(ctx context.Context) (time.Time, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.startTime, f.hasStartTime, nil
}

// SetStats scripts the value StatsSnapshot returns.
func (f *Fake) SetStats(s runtime.Stats) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stats = s
}

// SetStatsError scripts StatsSnapshot to fail with err on every call until
// it is set again.
func (f *Fake) SetStatsError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statsErr = err
}

func (f *Fake) StatsSnapshot(ctx context.Context) (runtime.Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statsErr != nil {
		return runtime.Stats{}, f.statsErr
	}
	return f.stats, nil
}

// SetTop scripts the value Top returns.
func (f *Fake) SetTop(entries []runtime.TopEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.top = entries
}

// SetTopError scripts Top to fail with err on every call until it is set
// again.
func (f *Fake) SetTopError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topErr = err
}

func (f *Fake) Top(ctx context.Context) ([]runtime.TopEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.topErr != nil {
		return nil, f.topErr
	}
	return append([]runtime.TopEntry(nil), f.top...), nil
}

// SetExecResult scripts the value Exec returns.
func (f *Fake) SetExecResult(output string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.execOutput, f.execErr = output, err
}

func (f *Fake) Exec(ctx context.Context, cmd string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.execOutput, f.execErr
}

// PushLogLine enqueues a line for LogsStream to deliver.
func (f *Fake) PushLogLine(line string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logLines = append(f.logLines, line)
}

// LogsStream delivers every currently queued log line onto out, then blocks
// until ctx is canceled — mimicking a follow=true tail with no further
// output, which is sufficient for the monitor's watch loop tests.
func (f *Fake) LogsStream(ctx context.Context, follow bool, tail int, out chan<- string) error {
	f.mu.Lock()
	lines := append([]string(nil), f.logLines...)
	f.mu.Unlock()

	for _, line := range lines {
		select {
		case out <- line:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	<-ctx.Done()
	return ctx.Err()
}

// PushEvent enqueues an event for EventsStream to deliver.
func (f *Fake) PushEvent(e runtime.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
}

// EventsStream delivers every currently queued event onto out, then blocks
// until ctx is canceled.
func (f *Fake) EventsStream(ctx context.Context, out chan<- runtime.Event) error {
	f.mu.Lock()
	events := append([]runtime.Event(nil), f.events...)
	f.mu.Unlock()

	for _, e := range events {
		select {
		case out <- e:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	<-ctx.Done()
	return ctx.Err()
}

var _ runtime.Runtime = (*Fake)(nil)
