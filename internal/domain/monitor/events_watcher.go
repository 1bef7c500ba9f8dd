package monitor

import (
	"context"

	"github.com/crabpot-sandbox/crabpot/internal/domain/alert"
	"github.com/crabpot-sandbox/crabpot/internal/domain/runtime"
)

// criticalEvents and warningEvents classify the runtime lifecycle events
// worth surfacing; anything else (besides "start") is silently ignored.
var criticalEvents = map[string]bool{"die": true, "oom": true, "kill": true}
var warningEvents = map[string]bool{"restart": true}

// watchEvents listens for runtime lifecycle events and alerts on the ones
// classified above.
func (m *Monitor) watchEvents(ctx context.Context) {
	out := make(chan runtime.Event, 64)
	done := make(chan error, 1)

	go func() { done <- m.rt.EventsStream(ctx, out) }()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-out:
			if !ok {
				return
			}
			m.handleEvent(event)
		case err := <-done:
			if err != nil && ctx.Err() == nil {
				if runtime.IsTransient(err) {
					m.log.Debug("event watcher transient error", "error", err)
				} else {
					m.alerts.Fire(alert.Warning, "monitor", "event watcher error: "+err.Error())
				}
			}
			return
		}
	}
}

func (m *Monitor) handleEvent(event runtime.Event) {
	action := event.Action
	if action == "" {
		action = event.Status
	}

	switch {
	case criticalEvents[action]:
		m.alerts.Fire(alert.Critical, "events", "container event: "+action)
	case warningEvents[action]:
		m.alerts.Fire(alert.Warning, "events", "container event: "+action)
	case action == "start":
		m.alerts.Fire(alert.Info, "events", "container started")
	}
}
