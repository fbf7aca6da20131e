package billingprovider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fitcheckhq/fitcheck-backend/pkg/config"
	"github.com/fitcheckhq/fitcheck-backend/pkg/enums"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	client, err := NewClient(config.ProviderConfig{
		BaseURL:      baseURL,
		APIKey:       "test-key",
		FetchTimeout: 2 * time.Second,
		MaxRetries:   2,
		RetryBackoff: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestFetchCurrentSubscriptionParsesSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/tenants/shop.example.com/subscription" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"subscription":{"status":"active","planName":"Professional Plan","currentPeriodEnd":"2026-09-28T12:00:00Z"}}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	snapshot, err := client.FetchCurrentSubscription(context.Background(), "shop.example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snapshot == nil {
		t.Fatalf("expected snapshot")
	}
	if snapshot.Status != enums.ProviderStatusActive {
		t.Fatalf("expected normalized ACTIVE, got %s", snapshot.Status)
	}
	if snapshot.PlanName != "Professional Plan" {
		t.Fatalf("unexpected plan %q", snapshot.PlanName)
	}
	if snapshot.CurrentPeriodEnd == nil || !snapshot.CurrentPeriodEnd.Equal(time.Date(2026, 9, 28, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected period end %v", snapshot.CurrentPeriodEnd)
	}
}

func TestFetchCurrentSubscriptionNoSubscription(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	snapshot, err := client.FetchCurrentSubscription(context.Background(), "shop.example.com")
	if err != nil {
		t.Fatalf("404 should not be an error, got %v", err)
	}
	if snapshot != nil {
		t.Fatalf("expected nil snapshot, got %+v", snapshot)
	}
}

func TestFetchCurrentSubscriptionNullBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"subscription":null}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	snapshot, err := client.FetchCurrentSubscription(context.Background(), "shop.example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snapshot != nil {
		t.Fatalf("expected nil snapshot for null subscription")
	}
}

func TestFetchCurrentSubscriptionRetriesServerErrors(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"subscription":{"status":"FROZEN","planName":"Enterprise Plan"}}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	snapshot, err := client.FetchCurrentSubscription(context.Background(), "shop.example.com")
	if err != nil {
		t.Fatalf("unexpected error after retries: %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
	if snapshot == nil || snapshot.Status != enums.ProviderStatusFrozen {
		t.Fatalf("unexpected snapshot %+v", snapshot)
	}
	if snapshot.CurrentPeriodEnd != nil {
		t.Fatalf("missing period end should stay nil")
	}
}

func TestFetchCurrentSubscriptionExhaustsRetries(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	if _, err := client.FetchCurrentSubscription(context.Background(), "shop.example.com"); err == nil {
		t.Fatalf("expected error after exhausting retries")
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts (1 + 2 retries), got %d", calls.Load())
	}
}

func TestFetchCurrentSubscriptionClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	if _, err := client.FetchCurrentSubscription(context.Background(), "shop.example.com"); err == nil {
		t.Fatalf("expected error for 401")
	}
	if calls.Load() != 1 {
		t.Fatalf("4xx must not be retried, got %d attempts", calls.Load())
	}
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	if _, err := NewClient(config.ProviderConfig{}); err == nil {
		t.Fatalf("expected error when base url missing")
	}
}
