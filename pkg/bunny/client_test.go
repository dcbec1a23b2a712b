package bunny

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mordenhost/whm2bunny/pkg/retry"
)

func fastRetry() *retry.Policy {
	return retry.NewPolicy(retry.Config{
		MaxAttempts:       3,
		InitialDelay:      time.Millisecond,
		MaxDelay:          5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	})
}

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := NewClient("test-key", WithBaseURL(server.URL), WithRetryPolicy(fastRetry()))
	return client, server
}

func TestClient_SendsAccessKey(t *testing.T) {
	var gotKey string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get(AccessKeyHeader)
		json.NewEncoder(w).Encode(DNSZone{ID: 7, Domain: "example.com"})
	}))

	zone, err := client.CreateDNSZone(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("CreateDNSZone: %v", err)
	}
	if gotKey != "test-key" {
		t.Errorf("AccessKey header = %q", gotKey)
	}
	if zone.ID != 7 {
		t.Errorf("zone.ID = %d", zone.ID)
	}
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(PullZone{ID: 42, Name: "example-com"})
	}))

	zone, err := client.GetPullZone(context.Background(), 42)
	if err != nil {
		t.Fatalf("GetPullZone: %v", err)
	}
	if zone.ID != 42 {
		t.Errorf("zone.ID = %d", zone.ID)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestClient_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"Message": "zone not found"})
	}))

	_, err := client.GetDNSZone(context.Background(), 99)
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 for 404", calls)
	}

	apiErr, ok := AsAPIError(err)
	if !ok {
		t.Fatalf("expected APIError, got %v", err)
	}
	if !apiErr.IsNotFound() {
		t.Errorf("IsNotFound() = false for status %d", apiErr.StatusCode)
	}
}

func TestClient_ZoneLookupCache(t *testing.T) {
	var listCalls, getCalls int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/dnszone":
			atomic.AddInt32(&listCalls, 1)
			json.NewEncoder(w).Encode(dnsZoneList{Items: []DNSZone{{ID: 11, Domain: "example.com"}}})
		case "/dnszone/11":
			atomic.AddInt32(&getCalls, 1)
			json.NewEncoder(w).Encode(DNSZone{ID: 11, Domain: "example.com"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	for i := 0; i < 3; i++ {
		zone, err := client.GetDNSZoneByDomain(context.Background(), "example.com")
		if err != nil {
			t.Fatalf("GetDNSZoneByDomain: %v", err)
		}
		if zone == nil || zone.ID != 11 {
			t.Fatalf("zone = %+v", zone)
		}
	}

	if listCalls != 1 {
		t.Errorf("listCalls = %d, want 1 (cache should serve repeats)", listCalls)
	}
	if getCalls != 2 {
		t.Errorf("getCalls = %d, want 2", getCalls)
	}
}

func TestClient_GetDNSZoneByDomain_NoMatch(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(dnsZoneList{Items: []DNSZone{{ID: 5, Domain: "other.com"}}})
	}))

	zone, err := client.GetDNSZoneByDomain(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("GetDNSZoneByDomain: %v", err)
	}
	if zone != nil {
		t.Errorf("zone = %+v, want nil for no exact match", zone)
	}
}

func TestPullZone_SystemHostname(t *testing.T) {
	zone := &PullZone{
		Name: "Example-Com",
		Hostnames: []Hostname{
			{Value: "www.example.com"},
			{Value: "example-com.b-cdn.net", IsSystemHostname: true},
		},
	}
	if got := zone.SystemHostname(); got != "example-com.b-cdn.net" {
		t.Errorf("SystemHostname() = %s", got)
	}

	bare := &PullZone{Name: "Example-Com"}
	if got := bare.SystemHostname(); got != "example-com.b-cdn.net" {
		t.Errorf("SystemHostname() fallback = %s", got)
	}
}
