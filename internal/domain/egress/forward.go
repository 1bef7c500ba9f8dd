package egress

import (
	"bytes"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/crabpot-sandbox/crabpot/internal/domain/alert"
	"github.com/crabpot-sandbox/crabpot/internal/domain/policy"
)

// maxForwardBodySize bounds how much of a request body is buffered for
// secret scanning before forwarding. Requests presenting a larger
// Content-Length are rejected rather than silently scanned only in part.
const maxForwardBodySize = 10 * 1024 * 1024

// hopByHopHeaders must never be copied across a proxy boundary — each hop
// negotiates these independently.
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Connection",
	"Proxy-Authorization",
	"Transfer-Encoding",
	"Upgrade",
	"Host",
}

func (p *Proxy) handleForward(w http.ResponseWriter, r *http.Request) {
	if !r.URL.IsAbs() {
		http.Error(w, "absolute-form request URI required", http.StatusBadRequest)
		return
	}

	host, port := splitHostPort(r.URL)

	decision := p.enforce(host, port, r.Method)
	if decision != policy.DecisionAllow {
		http.Error(w, "Blocked by CrabPot egress policy: "+host, http.StatusForbidden)
		return
	}

	body, err := readBoundedBody(r)
	if err != nil {
		http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
		return
	}

	scanContent := r.URL.String() + " " + toUTF8(body)
	if findings := p.policy.ScanForSecrets(scanContent); len(findings) > 0 {
		p.policy.LogAttempt(host, port, r.Method, "blocked_secrets")
		p.alerts.Fire(alert.Critical, "egress-proxy", "secrets detected in request to "+host)
		http.Error(w, "Blocked by CrabPot egress policy: request content flagged", http.StatusForbidden)
		return
	}

	p.forwardUpstream(w, r, host, body)
}

func (p *Proxy) forwardUpstream(w http.ResponseWriter, r *http.Request, host string, body []byte) {
	outReq, err := http.NewRequestWithContext(r.Context(), r.Method, r.URL.String(), bytes.NewReader(body))
	if err != nil {
		http.Error(w, "failed to build upstream request", http.StatusBadGateway)
		return
	}
	outReq.Header = cloneHeaderWithoutHopByHop(r.Header)
	outReq.Header.Set("X-Forwarded-For", r.RemoteAddr)
	outReq.Header.Set("X-Forwarded-Proto", r.URL.Scheme)
	outReq.Header.Set("X-Forwarded-Host", host)

	resp, err := p.httpClient.Do(outReq)
	if err != nil {
		http.Error(w, "upstream request failed: "+err.Error(), http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	respHeader := w.Header()
	for k, vals := range resp.Header {
		if isHopByHop(k) {
			continue
		}
		for _, v := range vals {
			respHeader.Add(k, v)
		}
	}
	respHeader.Del("Transfer-Encoding")

	w.WriteHeader(resp.StatusCode)
	io.Copy(w, resp.Body)
}

func readBoundedBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	defer r.Body.Close()
	limit := int64(maxForwardBodySize)
	if r.ContentLength > 0 && r.ContentLength < limit {
		limit = r.ContentLength
	}
	limited := io.LimitReader(r.Body, limit+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

var errBodyTooLarge = &bodyTooLargeError{}

type bodyTooLargeError struct{}

func (*bodyTooLargeError) Error() string { return "request body exceeds forward limit" }

// toUTF8 mirrors Python's decode(errors="replace"): invalid byte sequences
// become the Unicode replacement character rather than aborting the scan.
func toUTF8(b []byte) string {
	return strings.ToValidUTF8(string(b), "�")
}

func cloneHeaderWithoutHopByHop(h http.Header) http.Header {
	out := make(http.Header, len(h))
	for k, vals := range h {
		if isHopByHop(k) {
			continue
		}
		out[k] = append([]string(nil), vals...)
	}
	return out
}

func isHopByHop(header string) bool {
	for _, h := range hopByHopHeaders {
		if strings.EqualFold(h, header) {
			return true
		}
	}
	return false
}

func splitHostPort(u *url.URL) (string, int) {
	host := u.Hostname()
	if portStr := u.Port(); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil {
			return host, port
		}
	}
	if u.Scheme == "https" {
		return host, 443
	}
	return host, 80
}
