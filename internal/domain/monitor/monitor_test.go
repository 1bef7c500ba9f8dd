package monitor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/crabpot-sandbox/crabpot/internal/domain/alert"
	"github.com/crabpot-sandbox/crabpot/internal/domain/runtime"
	"github.com/crabpot-sandbox/crabpot/internal/domain/runtime/faketest"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingSink struct {
	alerts chan alert.Alert
}

func newRecordingSink() *recordingSink {
	return &recordingSink{alerts: make(chan alert.Alert, 64)}
}

func (s *recordingSink) Accept(a alert.Alert) { s.alerts <- a }

func waitForAlert(t *testing.T, sink *recordingSink, source string, timeout time.Duration) alert.Alert {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case a := <-sink.alerts:
			if a.Source == source {
				return a
			}
		case <-deadline:
			t.Fatalf("timed out waiting for alert from source %q", source)
		}
	}
}

func TestWatchProcesses_SuspiciousProcessTriggersAutoPause(t *testing.T) {
	fake := faketest.New()
	fake.SetTop([]runtime.TopEntry{{PID: "1", Command: "/usr/bin/python3 -m http.server"}})

	sink := newRecordingSink()
	bus := alert.NewBus(discardLogger(), sink)
	profile := SecurityProfile{ProcessWatchdog: true, AutoPauseOnCritical: true}
	m := New(fake, bus, profile, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)
	defer m.Stop()

	waitForAlert(t, sink, "processes", 2*time.Second)

	deadline := time.After(time.Second)
	for fake.PauseCalls == 0 {
		select {
		case <-deadline:
			t.Fatal("expected auto-pause to call Pause after suspicious process detection")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestWatchHealth_TwoConsecutiveUnhealthyTriggersCritical(t *testing.T) {
	fake := faketest.New()
	fake.SetHealth("unhealthy")

	sink := newRecordingSink()
	bus := alert.NewBus(discardLogger(), sink)
	profile := SecurityProfile{LogScanner: false}
	m := New(fake, bus, profile, discardLogger())
	m.profile.LogScanner = false

	// Drive the check cycle directly rather than waiting on 30s polls.
	ctx := context.Background()
	m.checkHealthOnce(ctx)
	m.checkHealthOnce(ctx)

	a := waitForAlert(t, sink, "health", time.Second)
	if a.Severity != alert.Critical {
		t.Fatalf("expected CRITICAL health alert, got %s", a.Severity)
	}
}

func TestScanLogLine_MatchesPackageInstallPattern(t *testing.T) {
	sink := newRecordingSink()
	bus := alert.NewBus(discardLogger(), sink)
	m := New(faketest.New(), bus, SecurityProfile{}, discardLogger())

	m.scanLogLine("running apt-get install curl")

	a := waitForAlert(t, sink, "logs", time.Second)
	if a.Severity != alert.Critical {
		t.Fatalf("expected CRITICAL for package install pattern, got %s", a.Severity)
	}
}

func TestScanLogLine_NoMatchFiresNothing(t *testing.T) {
	sink := newRecordingSink()
	bus := alert.NewBus(discardLogger(), sink)
	m := New(faketest.New(), bus, SecurityProfile{}, discardLogger())

	m.scanLogLine("hello world, nothing suspicious here")

	select {
	case a := <-sink.alerts:
		t.Fatalf("expected no alert, got %+v", a)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHandleEvent_ClassifiesSeverity(t *testing.T) {
	cases := []struct {
		action string
		want   alert.Severity
		fires  bool
	}{
		{"die", alert.Critical, true},
		{"oom", alert.Critical, true},
		{"restart", alert.Warning, true},
		{"start", alert.Info, true},
		{"health_status", "", false},
	}

	for _, tc := range cases {
		sink := newRecordingSink()
		bus := alert.NewBus(discardLogger(), sink)
		m := New(faketest.New(), bus, SecurityProfile{}, discardLogger())

		m.handleEvent(runtime.Event{Action: tc.action})

		if !tc.fires {
			select {
			case a := <-sink.alerts:
				t.Fatalf("action %q: expected no alert, got %+v", tc.action, a)
			case <-time.After(30 * time.Millisecond):
			}
			continue
		}

		a := waitForAlert(t, sink, "events", time.Second)
		if a.Severity != tc.want {
			t.Fatalf("action %q: expected severity %s, got %s", tc.action, tc.want, a.Severity)
		}
	}
}

func TestCheckCPUThreshold_SustainedSpikeFiresWarning(t *testing.T) {
	sink := newRecordingSink()
	bus := alert.NewBus(discardLogger(), sink)
	m := New(faketest.New(), bus, SecurityProfile{}, discardLogger(), WithThresholds(80, 85, 0))

	m.checkCPUThreshold(runtime.Stats{CPUPercent: 95})
	m.checkCPUThreshold(runtime.Stats{CPUPercent: 95})

	a := waitForAlert(t, sink, "stats", time.Second)
	if a.Severity != alert.Warning {
		t.Fatalf("expected WARNING for sustained CPU spike, got %s", a.Severity)
	}
}

func TestCheckMemoryThreshold_CooldownSuppressesRepeat(t *testing.T) {
	sink := newRecordingSink()
	bus := alert.NewBus(discardLogger(), sink)
	m := New(faketest.New(), bus, SecurityProfile{}, discardLogger())

	m.checkMemoryThreshold(runtime.Stats{MemoryPercent: 95, MemoryUsedMB: 1800})
	waitForAlert(t, sink, "stats", time.Second)

	m.checkMemoryThreshold(runtime.Stats{MemoryPercent: 96, MemoryUsedMB: 1850})

	select {
	case a := <-sink.alerts:
		t.Fatalf("expected second memory alert to be suppressed by cooldown, got %+v", a)
	case <-time.After(50 * time.Millisecond):
	}
}

// waitForMonitorWarning waits for a WARNING alert from source "monitor",
// skipping over the INFO "security monitor started" alert every Start call
// fires first.
func waitForMonitorWarning(t *testing.T, sink *recordingSink, timeout time.Duration) alert.Alert {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case a := <-sink.alerts:
			if a.Source == "monitor" && a.Severity == alert.Warning {
				return a
			}
		case <-deadline:
			t.Fatalf("timed out waiting for a monitor WARNING alert")
		}
	}
}

// assertNoMonitorWarning drains alerts for timeout and fails if any monitor
// WARNING alert (beyond the startup INFO alert) appears.
func assertNoMonitorWarning(t *testing.T, sink *recordingSink, timeout time.Duration) {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case a := <-sink.alerts:
			if a.Source == "monitor" && a.Severity == alert.Warning {
				t.Fatalf("expected no monitor WARNING alert, got %+v", a)
			}
		case <-deadline:
			return
		}
	}
}

func TestWatchStats_TransientErrorLogsDebugWithNoAlert(t *testing.T) {
	fake := faketest.New()
	fake.SetStatsError(runtime.NewTransientError(errors.New("container not found")))

	sink := newRecordingSink()
	bus := alert.NewBus(discardLogger(), sink)
	profile := SecurityProfile{ResourceLimits: true}
	m := New(fake, bus, profile, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)
	defer m.Stop()

	assertNoMonitorWarning(t, sink, 200*time.Millisecond)
}

func TestWatchStats_UnexpectedErrorFiresWarning(t *testing.T) {
	fake := faketest.New()
	fake.SetStatsError(errors.New("boom"))

	sink := newRecordingSink()
	bus := alert.NewBus(discardLogger(), sink)
	profile := SecurityProfile{ResourceLimits: true}
	m := New(fake, bus, profile, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)
	defer m.Stop()

	waitForMonitorWarning(t, sink, time.Second)
}

func TestWatchProcesses_TransientErrorLogsDebugWithNoAlert(t *testing.T) {
	fake := faketest.New()
	fake.SetTopError(runtime.NewTransientError(errors.New("container not found")))

	sink := newRecordingSink()
	bus := alert.NewBus(discardLogger(), sink)
	profile := SecurityProfile{ProcessWatchdog: true}
	m := New(fake, bus, profile, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)
	defer m.Stop()

	assertNoMonitorWarning(t, sink, 200*time.Millisecond)
}

func TestWatchProcesses_UnexpectedErrorFiresWarning(t *testing.T) {
	fake := faketest.New()
	fake.SetTopError(errors.New("boom"))

	sink := newRecordingSink()
	bus := alert.NewBus(discardLogger(), sink)
	profile := SecurityProfile{ProcessWatchdog: true}
	m := New(fake, bus, profile, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)
	defer m.Stop()

	waitForMonitorWarning(t, sink, time.Second)
}

func TestStartStop_NoChannelsEnabledIsNoop(t *testing.T) {
	sink := newRecordingSink()
	bus := alert.NewBus(discardLogger(), sink)
	m := New(faketest.New(), bus, SecurityProfile{}, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)
	m.Stop()

	select {
	case a := <-sink.alerts:
		t.Fatalf("expected no start alert when no channels are enabled, got %+v", a)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStartStop_AllChannelsLeaveNoGoroutines(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	fake := faketest.New()
	fake.SetTop([]runtime.TopEntry{{PID: "1", Command: "/bin/cat"}})
	fake.PushLogLine("nothing suspicious")
	fake.PushEvent(runtime.Event{Action: "start"})

	sink := newRecordingSink()
	bus := alert.NewBus(discardLogger(), sink)
	profile := SecurityProfile{
		ResourceLimits:  true,
		ProcessWatchdog: true,
		NetworkAuditor:  true,
		LogScanner:      true,
	}
	m := New(fake, bus, profile, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx)
	time.Sleep(50 * time.Millisecond)
	cancel()
	m.Stop()
}
