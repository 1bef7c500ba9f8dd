// Package dockerrt implements runtime.Runtime on top of the Docker Engine
// API. It is the only concrete Runtime adapter CrabPot ships; it lives
// outside internal/domain and is wired in only by cmd/crabpot, so the core
// never imports the Docker SDK directly.
package dockerrt

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/docker/docker/client"

	"github.com/crabpot-sandbox/crabpot/internal/domain/runtime"
)

// composeFilename is the docker-compose file crabpot setup renders into the
// config directory; build/start/destroy shell out to docker compose against
// it, mirroring the reference manager's subprocess-based lifecycle.
const composeFilename = "docker-compose.yml"

// Runtime adapts a container named containerName, provisioned by the
// compose file under configDir, to runtime.Runtime. Unlike the pattern seen
// in the pack's pool backend (a fresh client per call), the Docker client is
// constructed once and cached: CrabPot's monitor watchers call Runtime
// methods in tight polling loops, and dialing the daemon socket on every
// tick would be wasteful.
type Runtime struct {
	cli           *client.Client
	containerName string
	configDir     string
	log           *slog.Logger
}

// New builds a Runtime backed by the local Docker daemon (respecting the
// standard DOCKER_HOST/DOCKER_TLS_VERIFY environment, via client.FromEnv).
func New(containerName, configDir string, log *slog.Logger) (*Runtime, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("docker client: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Runtime{cli: cli, containerName: containerName, configDir: configDir, log: log}, nil
}

// Close releases the underlying Docker client connection.
func (r *Runtime) Close() error {
	return r.cli.Close()
}

func (r *Runtime) composeFile() string {
	return filepath.Join(r.configDir, composeFilename)
}

var _ runtime.Runtime = (*Runtime)(nil)
