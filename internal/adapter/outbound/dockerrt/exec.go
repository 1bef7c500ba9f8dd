package dockerrt

import (
	"bytes"
	"context"
	"fmt"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/crabpot-sandbox/crabpot/internal/domain/runtime"
)

// Top returns the container's process list, zipping Docker's column titles
// onto each row the way the reference manager's get_top does, collapsed
// here into the PID/Command pair the monitor's process watcher needs.
func (r *Runtime) Top(ctx context.Context) ([]runtime.TopEntry, error) {
	id, err := r.resolveID(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve container: %w", err)
	}

	top, err := r.cli.ContainerTop(ctx, id, nil)
	if err != nil {
		return nil, runtime.NewTransientError(fmt.Errorf("container top: %w", err))
	}

	return zipTop(top.Titles, top.Processes), nil
}

// zipTop zips Docker's column titles onto each process row, keeping only
// the PID and command columns the process watcher needs.
func zipTop(titles []string, rows [][]string) []runtime.TopEntry {
	pidCol, cmdCol := -1, -1
	for i, title := range titles {
		switch title {
		case "PID":
			pidCol = i
		case "CMD", "COMMAND":
			cmdCol = i
		}
	}

	entries := make([]runtime.TopEntry, 0, len(rows))
	for _, row := range rows {
		entry := runtime.TopEntry{}
		if pidCol >= 0 && pidCol < len(row) {
			entry.PID = row[pidCol]
		}
		if cmdCol >= 0 && cmdCol < len(row) {
			entry.Command = row[cmdCol]
		}
		entries = append(entries, entry)
	}
	return entries
}

// Exec runs cmd inside the container via /bin/sh -c and returns its
// demultiplexed stdout, matching the reference manager's exec_run(demux=True)
// behavior of discarding stderr.
func (r *Runtime) Exec(ctx context.Context, cmd string) (string, error) {
	id, err := r.resolveID(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve container: %w", err)
	}

	execID, err := r.cli.ContainerExecCreate(ctx, id, types.ExecConfig{
		Cmd:          []string{"/bin/sh", "-c", cmd},
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return "", runtime.NewTransientError(fmt.Errorf("exec create: %w", err))
	}

	attach, err := r.cli.ContainerExecAttach(ctx, execID.ID, types.ExecStartCheck{})
	if err != nil {
		return "", runtime.NewTransientError(fmt.Errorf("exec attach: %w", err))
	}
	defer attach.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, attach.Reader); err != nil {
		return "", fmt.Errorf("read exec output: %w", err)
	}

	return stdout.String(), nil
}
