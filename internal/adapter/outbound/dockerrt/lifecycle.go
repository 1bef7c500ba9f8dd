package dockerrt

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/errdefs"
)

// stopTimeoutSeconds mirrors the reference manager's graceful-stop grace
// period before Docker sends SIGKILL.
const stopTimeoutSeconds = 30

// destroyStopTimeoutSeconds is the shorter grace period destroy falls back
// to when no compose file is present and the container must be stopped
// directly, matching the reference implementation's destroy() path.
const destroyStopTimeoutSeconds = 10

// Build renders the hardened image via docker compose build. It requires
// the compose file crabpot setup wrote into configDir.
func (r *Runtime) Build(ctx context.Context) error {
	if _, err := os.Stat(r.composeFile()); err != nil {
		return fmt.Errorf("%s not found, run 'crabpot setup' first: %w", r.composeFile(), err)
	}
	return r.compose(ctx, "build")
}

// Setup performs first-run provisioning: building the image so Start has
// something to run. Docker has no separate "create distro" step the way
// WSL2 does, so Setup and Build share the same compose build call.
func (r *Runtime) Setup(ctx context.Context) error {
	return r.Build(ctx)
}

// Start brings the container up via docker compose, resuming a paused
// container or no-op'ing on an already-running one instead of re-upping.
func (r *Runtime) Start(ctx context.Context) error {
	if _, err := os.Stat(r.composeFile()); err != nil {
		return fmt.Errorf("%s not found, run 'crabpot setup' first: %w", r.composeFile(), err)
	}

	status, err := r.Status(ctx)
	if err != nil {
		return err
	}
	switch status {
	case runningStatus:
		return nil
	case pausedStatus:
		return r.Resume(ctx)
	}

	return r.compose(ctx, "up", "-d")
}

// Stop gracefully stops the container, unpausing it first if frozen.
func (r *Runtime) Stop(ctx context.Context) error {
	id, err := r.resolveID(ctx)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return nil
		}
		return err
	}

	status, err := r.Status(ctx)
	if err != nil {
		return err
	}
	if status == pausedStatus {
		if err := r.cli.ContainerUnpause(ctx, id); err != nil {
			return fmt.Errorf("unpause before stop: %w", err)
		}
	}

	timeout := stopTimeoutSeconds
	if err := r.cli.ContainerStop(ctx, id, container.StopOptions{Timeout: &timeout}); err != nil {
		return fmt.Errorf("stop container: %w", err)
	}
	return nil
}

// Pause freezes the container via the cgroups freezer: zero CPU, memory
// held in place, exactly as the reference manager documents.
func (r *Runtime) Pause(ctx context.Context) error {
	id, err := r.resolveID(ctx)
	if err != nil {
		return err
	}
	status, err := r.Status(ctx)
	if err != nil {
		return err
	}
	if status != runningStatus {
		return fmt.Errorf("cannot pause container in %q state", status)
	}
	if err := r.cli.ContainerPause(ctx, id); err != nil {
		return fmt.Errorf("pause container: %w", err)
	}
	return nil
}

// Resume unfreezes a paused container.
func (r *Runtime) Resume(ctx context.Context) error {
	id, err := r.resolveID(ctx)
	if err != nil {
		return err
	}
	status, err := r.Status(ctx)
	if err != nil {
		return err
	}
	if status != pausedStatus {
		return fmt.Errorf("container is not paused (status: %s)", status)
	}
	if err := r.cli.ContainerUnpause(ctx, id); err != nil {
		return fmt.Errorf("unpause container: %w", err)
	}
	return nil
}

// Destroy tears down every resource: the compose stack and its volumes when
// a compose file exists, or a direct stop+remove otherwise.
func (r *Runtime) Destroy(ctx context.Context) error {
	if _, err := os.Stat(r.composeFile()); err == nil {
		return r.compose(ctx, "down", "-v", "--remove-orphans")
	}

	id, err := r.resolveID(ctx)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return nil
		}
		return err
	}

	timeout := destroyStopTimeoutSeconds
	_ = r.cli.ContainerStop(ctx, id, container.StopOptions{Timeout: &timeout})
	if err := r.cli.ContainerRemove(ctx, id, types.ContainerRemoveOptions{Force: true, RemoveVolumes: true}); err != nil {
		return fmt.Errorf("remove container: %w", err)
	}
	return nil
}

// compose runs `docker compose -f <composeFile> <args...>` in configDir,
// the same subprocess shape the reference manager uses for build/up/down.
func (r *Runtime) compose(ctx context.Context, args ...string) error {
	full := append([]string{"compose", "-f", r.composeFile()}, args...)
	cmd := exec.CommandContext(ctx, "docker", full...)
	cmd.Dir = r.configDir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("docker %v: %w", full, err)
	}
	return nil
}
