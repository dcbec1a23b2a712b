package observability

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestMetrics_ObserveHTTPRequest(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ObserveHTTPRequest("POST", "/hook", 202, 15*time.Millisecond)
	m.ObserveHTTPRequest("POST", "/hook", 401, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	if !strings.Contains(body, `whm2bunny_http_requests_total{method="POST",path="/hook",status="2xx"} 1`) {
		t.Errorf("missing 2xx counter in metrics output:\n%s", body)
	}
	if !strings.Contains(body, `whm2bunny_http_requests_total{method="POST",path="/hook",status="4xx"} 1`) {
		t.Error("missing 4xx counter in metrics output")
	}
}

func TestMetrics_WebhookCounters(t *testing.T) {
	m := NewMetrics(nil)

	m.WebhooksReceivedTotal.WithLabelValues("account_created").Inc()
	m.WebhooksRejectedTotal.WithLabelValues("invalid_signature").Inc()
	m.RateLimitDropsTotal.Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	for _, want := range []string{
		`whm2bunny_webhooks_received_total{event="account_created"} 1`,
		`whm2bunny_webhooks_rejected_total{reason="invalid_signature"} 1`,
		`whm2bunny_ratelimit_drops_total 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("missing %q in metrics output", want)
		}
	}
}

func TestHTTPStatusLabel(t *testing.T) {
	cases := map[int]string{200: "2xx", 202: "2xx", 301: "3xx", 404: "4xx", 503: "5xx", 0: "other"}
	for status, want := range cases {
		if got := httpStatusLabel(status); got != want {
			t.Errorf("httpStatusLabel(%d) = %s, want %s", status, got, want)
		}
	}
}
