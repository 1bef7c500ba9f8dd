package dockerrt

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/crabpot-sandbox/crabpot/internal/domain/runtime"
)

// LogsStream demultiplexes the container's combined stdout/stderr log
// stream and pushes one line at a time onto out, following the reference
// manager's get_logs shape (tail then optionally follow).
func (r *Runtime) LogsStream(ctx context.Context, follow bool, tail int, out chan<- string) error {
	id, err := r.resolveID(ctx)
	if err != nil {
		return fmt.Errorf("resolve container: %w", err)
	}

	tailStr := "all"
	if tail > 0 {
		tailStr = strconv.Itoa(tail)
	}

	reader, err := r.cli.ContainerLogs(ctx, id, types.ContainerLogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     follow,
		Tail:       tailStr,
		Timestamps: true,
	})
	if err != nil {
		return runtime.NewTransientError(fmt.Errorf("container logs: %w", err))
	}
	defer reader.Close()

	stopWatcher := make(chan struct{})
	defer close(stopWatcher)
	go func() {
		select {
		case <-ctx.Done():
			reader.Close()
		case <-stopWatcher:
		}
	}()

	pr, pw := io.Pipe()
	go func() {
		_, copyErr := stdcopy.StdCopy(pw, pw, reader)
		pw.CloseWithError(copyErr)
	}()

	scanner := bufio.NewScanner(pr)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		select {
		case out <- scanner.Text():
		case <-ctx.Done():
			return nil
		}
	}
	return nil
}

// EventsStream streams Docker lifecycle events filtered to this container,
// mapping the SDK's event message onto runtime.Event.
func (r *Runtime) EventsStream(ctx context.Context, out chan<- runtime.Event) error {
	f := filters.NewArgs(filters.Arg("container", r.containerName))
	msgCh, errCh := r.cli.Events(ctx, types.EventsOptions{Filters: f})

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			if err != nil && err != io.EOF {
				return runtime.NewTransientError(fmt.Errorf("events stream: %w", err))
			}
			return nil
		case msg, ok := <-msgCh:
			if !ok {
				return nil
			}
			event := runtime.Event{
				Action: string(msg.Action),
				Status: msg.Status,
				Time:   time.Unix(0, msg.TimeNano),
			}
			select {
			case out <- event:
			case <-ctx.Done():
				return nil
			}
		}
	}
}
