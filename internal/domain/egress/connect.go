package egress

import (
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/crabpot-sandbox/crabpot/internal/domain/policy"
)

// connectDialTimeout bounds the upstream dial for a CONNECT tunnel.
const connectDialTimeout = 10 * time.Second

// tunnelIdleTimeout is the per-iteration read deadline applied to both
// halves of a spliced CONNECT tunnel. It is the only protection once the
// 200 is sent back to the client — no byte of the tunnelled traffic is
// ever inspected after that point.
const tunnelIdleTimeout = 60 * time.Second

const tunnelBufferSize = 32 * 1024

func (p *Proxy) handleConnect(w http.ResponseWriter, r *http.Request) {
	host, portStr, err := net.SplitHostPort(r.Host)
	if err != nil {
		http.Error(w, "malformed CONNECT target", http.StatusBadRequest)
		return
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		http.Error(w, "malformed CONNECT target", http.StatusBadRequest)
		return
	}

	decision := p.enforce(host, port, "CONNECT")
	if decision != policy.DecisionAllow {
		http.Error(w, "Blocked by CrabPot egress policy: "+host, http.StatusForbidden)
		return
	}

	upstream, err := net.DialTimeout("tcp", r.Host, connectDialTimeout)
	if err != nil {
		http.Error(w, "failed to reach upstream: "+err.Error(), http.StatusBadGateway)
		return
	}

	hijacker, ok := w.(http.Hijacker)
	if !ok {
		upstream.Close()
		http.Error(w, "connection hijacking unsupported", http.StatusInternalServerError)
		return
	}
	client, _, err := hijacker.Hijack()
	if err != nil {
		upstream.Close()
		p.log.Error("failed to hijack client connection", "error", err)
		return
	}

	if _, err := client.Write([]byte("HTTP/1.1 200 Connection Established\r\n\r\n")); err != nil {
		client.Close()
		upstream.Close()
		return
	}

	splice(client, upstream)
}

// splice runs a bidirectional, idle-timeout-bounded byte copy between the
// two connections and closes both once either direction ends. No byte of
// the tunnelled traffic is inspected — CrabPot's CONNECT tunnel is
// intentionally opaque.
func splice(client, upstream net.Conn) {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		copyWithIdleTimeout(upstream, client)
		closeWrite(upstream)
	}()
	go func() {
		defer wg.Done()
		copyWithIdleTimeout(client, upstream)
		closeWrite(client)
	}()

	wg.Wait()
	client.Close()
	upstream.Close()
}

func copyWithIdleTimeout(dst io.Writer, src net.Conn) {
	buf := make([]byte, tunnelBufferSize)
	for {
		src.SetReadDeadline(time.Now().Add(tunnelIdleTimeout))
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return
			}
		}
		if err != nil {
			return
		}
	}
}

func closeWrite(conn net.Conn) {
	if tc, ok := conn.(interface{ CloseWrite() error }); ok {
		tc.CloseWrite()
	}
}
