package adminapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/crabpot-sandbox/crabpot/internal/domain/actiongate"
	"github.com/crabpot-sandbox/crabpot/internal/domain/alert"
)

type stubMutator struct {
	permanent []string
	sessionOK []string
	sessionNo []string
}

func (s *stubMutator) AddPermanent(domain string)  { s.permanent = append(s.permanent, domain) }
func (s *stubMutator) SessionApprove(domain string) { s.sessionOK = append(s.sessionOK, domain) }
func (s *stubMutator) SessionDeny(domain string)    { s.sessionNo = append(s.sessionNo, domain) }

func newTestHandler() (*Handler, *actiongate.Gate) {
	bus := alert.NewBus(nil)
	gate := actiongate.New(&stubMutator{}, bus, time.Second, nil)
	return New(gate, nil), gate
}

func TestHandleList_ReturnsPendingDomains(t *testing.T) {
	h, gate := newTestHandler()

	go gate.RequestApproval("evil.example.com", 443)
	waitForPending(t, gate, "evil.example.com")

	req := httptest.NewRequest(http.MethodGet, "/approvals", nil)
	rec := httptest.NewRecorder()
	h.Mux().ServeHTTP(rec, req)

	var resp pendingResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Domains) != 1 || resp.Domains[0] != "evil.example.com" {
		t.Errorf("Domains = %v, want [evil.example.com]", resp.Domains)
	}
}

func TestHandleApprove_SignalsPendingRequest(t *testing.T) {
	h, gate := newTestHandler()

	result := make(chan bool, 1)
	go func() { result <- gate.RequestApproval("api.example.com", 443) }()
	waitForPending(t, gate, "api.example.com")

	req := httptest.NewRequest(http.MethodPost, "/approvals/api.example.com/approve", nil)
	req.SetPathValue("domain", "api.example.com")
	rec := httptest.NewRecorder()
	h.Mux().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	select {
	case approved := <-result:
		if !approved {
			t.Error("expected approval to resolve true")
		}
	case <-time.After(time.Second):
		t.Fatal("approval did not resolve the pending request")
	}
}

func TestHandleDeny_WithoutPendingRequestStillUpdatesPolicy(t *testing.T) {
	h, _ := newTestHandler()

	req := httptest.NewRequest(http.MethodPost, "/approvals/never-asked.example.com/deny", nil)
	req.SetPathValue("domain", "never-asked.example.com")
	rec := httptest.NewRecorder()
	h.Mux().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp verdictResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Domain != "never-asked.example.com" {
		t.Errorf("Domain = %q", resp.Domain)
	}
}

func TestHandleApprove_MissingDomainIsRejected(t *testing.T) {
	h, _ := newTestHandler()

	req := httptest.NewRequest(http.MethodPost, "/approvals//approve", nil)
	rec := httptest.NewRecorder()
	h.Mux().ServeHTTP(rec, req)

	if rec.Code == http.StatusOK {
		t.Error("expected a non-200 response for an empty domain")
	}
}

func waitForPending(t *testing.T, gate *actiongate.Gate, domain string) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		for _, d := range gate.GetPending() {
			if d == domain {
				return
			}
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("domain %q never became pending", domain)
}
