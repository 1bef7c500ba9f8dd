package dockerrt

import (
	"context"
	"fmt"
	"time"

	"github.com/docker/docker/errdefs"

	"github.com/crabpot-sandbox/crabpot/internal/domain/runtime"
)

// runtime.Status values the lifecycle methods compare Status results against.
const (
	runningStatus = runtime.StatusRunning
	pausedStatus  = runtime.StatusPaused
)

// resolveID maps the configured container name to its current ID via
// inspect. Any inspect failure (not found, API hiccup) is wrapped as
// transient: the container's lifecycle is inherently racy from a watcher's
// point of view, so a single failed lookup is expected noise rather than a
// problem worth alerting on.
func (r *Runtime) resolveID(ctx context.Context) (string, error) {
	info, err := r.cli.ContainerInspect(ctx, r.containerName)
	if err != nil {
		return "", runtime.NewTransientError(err)
	}
	return info.ID, nil
}

// Status reports the container's coarse lifecycle state.
func (r *Runtime) Status(ctx context.Context) (runtime.Status, error) {
	info, err := r.cli.ContainerInspect(ctx, r.containerName)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return runtime.StatusNotFound, nil
		}
		return "", runtime.NewTransientError(fmt.Errorf("inspect container: %w", err))
	}
	if info.State == nil {
		return runtime.StatusExited, nil
	}
	switch {
	case info.State.Paused:
		return runtime.StatusPaused, nil
	case info.State.Running:
		return runtime.StatusRunning, nil
	default:
		return runtime.StatusExited, nil
	}
}

// IsRunning reports whether Status is "running".
func (r *Runtime) IsRunning(ctx context.Context) (bool, error) {
	status, err := r.Status(ctx)
	if err != nil {
		return false, err
	}
	return status == runtime.StatusRunning, nil
}

// Health returns the container's healthcheck status string ("healthy",
// "unhealthy", "starting"), or "none" if no healthcheck is configured.
func (r *Runtime) Health(ctx context.Context) (string, error) {
	info, err := r.cli.ContainerInspect(ctx, r.containerName)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return "none", nil
		}
		return "", runtime.NewTransientError(fmt.Errorf("inspect container: %w", err))
	}
	if info.State == nil || info.State.Health == nil {
		return "none", nil
	}
	return info.State.Health.Status, nil
}

// StartTime returns the container's last start time, if it has ever run.
func (r *Runtime) StartTime(ctx context.Context) (time.Time, bool, error) {
	info, err := r.cli.ContainerInspect(ctx, r.containerName)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, runtime.NewTransientError(fmt.Errorf("inspect container: %w", err))
	}
	if info.State == nil || info.State.StartedAt == "" {
		return time.Time{}, false, nil
	}
	started, err := time.Parse(time.RFC3339Nano, info.State.StartedAt)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse start time: %w", err)
	}
	if started.IsZero() || started.Unix() <= 0 {
		return time.Time{}, false, nil
	}
	return started, true, nil
}
