// Package egress implements the forward/CONNECT HTTP proxy the sandboxed
// agent container routes its outbound traffic through. Every request,
// tunneled or plain, passes the shared admission check in enforce.go
// before a single byte reaches the upstream.
package egress

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/crabpot-sandbox/crabpot/internal/domain/actiongate"
	"github.com/crabpot-sandbox/crabpot/internal/domain/alert"
	"github.com/crabpot-sandbox/crabpot/internal/domain/policy"
	"github.com/crabpot-sandbox/crabpot/internal/telemetry"
)

// shutdownGrace bounds how long Stop waits for in-flight connections
// (including spliced CONNECT tunnels) to finish before the listener is
// torn down regardless.
const shutdownGrace = 5 * time.Second

// Proxy is the egress HTTP/HTTPS forward proxy. It owns a listener and
// dispatches CONNECT requests to the tunnel path and everything else to
// the absolute-form forward path, gating both on the attached policy
// engine and (optionally) a human-approval action gate.
type Proxy struct {
	policy     *policy.Engine
	gate       *actiongate.Gate
	alerts     *alert.Bus
	log        *slog.Logger
	httpClient *http.Client
	tracer     *telemetry.Tracer

	addr     string
	server   *http.Server
	listener net.Listener
}

// SetTracer attaches a Tracer so every admission check spans "egress.enforce".
// A nil or disabled Tracer is a no-op at the call site.
func (p *Proxy) SetTracer(t *telemetry.Tracer) {
	p.tracer = t
}

// New builds a Proxy bound to addr. gate may be nil, in which case PENDING
// decisions are denied outright rather than escalated for human review.
func New(addr string, eng *policy.Engine, gate *actiongate.Gate, alerts *alert.Bus, log *slog.Logger) *Proxy {
	p := &Proxy{
		policy: eng,
		gate:   gate,
		alerts: alerts,
		log:    log,
		addr:   addr,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
	p.server = &http.Server{
		Addr:    addr,
		Handler: http.HandlerFunc(p.ServeHTTP),
	}
	return p
}

// ServeHTTP dispatches CONNECT requests to the tunnel path and all other
// methods to the absolute-form forward path.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodConnect {
		p.handleConnect(w, r)
		return
	}
	p.handleForward(w, r)
}

// Start binds a reuse-address listener and spawns the accept loop on a
// dedicated goroutine. It returns once the listener is bound; serve errors
// other than a clean Stop-triggered shutdown are logged.
func (p *Proxy) Start() error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(context.Background(), "tcp", p.addr)
	if err != nil {
		return err
	}
	p.listener = ln

	go func() {
		p.log.Info("egress proxy listening", "addr", ln.Addr().String())
		if err := p.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.log.Error("egress proxy serve error", "error", err)
		}
	}()

	return nil
}

// Stop signals shutdown and joins with a 5s grace period, after which the
// listener is forced closed regardless of in-flight connections.
func (p *Proxy) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := p.server.Shutdown(ctx); err != nil {
		p.log.Warn("egress proxy graceful shutdown incomplete, forcing close", "error", err)
		return p.server.Close()
	}
	return nil
}
