package studentapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mmcampusware/scholarship_backend/models"
)

func testClient(server *httptest.Server, maxRetries int) *registryClient {
	return &registryClient{
		baseURL:    server.URL,
		apiKey:     "test-key",
		apiKeyHdr:  "X-API-Key",
		http:       server.Client(),
		maxRetries: maxRetries,
		cacheTTL:   0,
	}
}

func TestVerifyMapsRegistryStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-API-Key"); got != "test-key" {
			t.Errorf("expected api key header, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"enrolled","message":"active student","snapshot":{"student_id":"S-1"}}`))
	}))
	defer server.Close()

	result, err := testClient(server, 0).Verify(context.Background(), "S-1")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if result.Status != models.VerificationStatusVerified {
		t.Fatalf("expected verified, got %s", result.Status)
	}
	if result.Snapshot == nil || result.Snapshot.StudentId != "S-1" {
		t.Fatalf("expected snapshot, got %+v", result.Snapshot)
	}
}

func TestVerifyNotFoundIsAResultNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	result, err := testClient(server, 0).Verify(context.Background(), "S-404")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if result.Status != models.VerificationStatusNotFound {
		t.Fatalf("expected not_found, got %s", result.Status)
	}
}

func TestVerifyRetriesServerErrors(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"status":"graduated"}`))
	}))
	defer server.Close()

	result, err := testClient(server, 2).Verify(context.Background(), "S-1")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected one retry, got %d calls", calls)
	}
	if result.Status != models.VerificationStatusGraduated {
		t.Fatalf("expected graduated, got %s", result.Status)
	}
}

func TestVerifyDoesNotRetryClientErrors(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	if _, err := testClient(server, 3).Verify(context.Background(), "S-1"); err == nil {
		t.Fatal("expected error for 403")
	}
	if calls != 1 {
		t.Fatalf("expected no retries, got %d calls", calls)
	}
}

func TestVerifyRejectsEmptyStudentId(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	if _, err := testClient(server, 0).Verify(context.Background(), "  "); err == nil {
		t.Fatal("expected error for empty student id")
	}
}

func TestMapStatus(t *testing.T) {
	cases := map[string]models.VerificationStatus{
		"enrolled":  models.VerificationStatusVerified,
		"ACTIVE":    models.VerificationStatusVerified,
		"graduated": models.VerificationStatusGraduated,
		"suspended": models.VerificationStatusSuspended,
		"dropped":   models.VerificationStatusWithdrawn,
		"not_found": models.VerificationStatusNotFound,
		"mystery":   models.VerificationStatusApiError,
	}
	for in, want := range cases {
		if got := mapStatus(in); got != want {
			t.Fatalf("mapStatus(%q): expected %s, got %s", in, want, got)
		}
	}
}
