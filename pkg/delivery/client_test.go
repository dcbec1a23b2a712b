package delivery

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mordenhost/whm2bunny/pkg/config"
	"github.com/mordenhost/whm2bunny/pkg/signature"
)

func testSettings(url string, maxRetries int) config.HookSettings {
	return config.HookSettings{
		WebhookURL: url,
		Secret:     "s3cr3t",
		Timeout:    time.Second,
		MaxRetries: maxRetries,
		RetryDelay: 10 * time.Millisecond,
	}
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// testClient returns a client whose sleeps are recorded instead of slept.
func testClient(settings config.HookSettings, sleeps *int32) *Client {
	c := NewClient(settings, quietLogger())
	c.sleep = func(time.Duration) { atomic.AddInt32(sleeps, 1) }
	return c
}

func testPayload() Payload {
	user := "bob"
	domain := "example.com"
	return Payload{
		Event:  "account_created",
		Fields: map[string]*string{"domain": &domain, "user": &user},
	}
}

func TestDeliver_SucceedsAfterTransientFailures(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	var sleeps int32
	client := testClient(testSettings(server.URL, 3), &sleeps)

	outcome := client.Deliver(context.Background(), testPayload())

	if outcome.Kind != Delivered {
		t.Fatalf("Kind = %v, want Delivered (err: %v)", outcome.Kind, outcome.Err)
	}
	if outcome.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", outcome.StatusCode)
	}
	if outcome.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", outcome.Attempts)
	}
	if sleeps != 2 {
		t.Errorf("sleeps = %d, want exactly 2", sleeps)
	}
}

func TestDeliver_ClientErrorIsTerminal(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	var sleeps int32
	client := testClient(testSettings(server.URL, 3), &sleeps)

	outcome := client.Deliver(context.Background(), testPayload())

	if outcome.Kind != RejectedByServer {
		t.Fatalf("Kind = %v, want RejectedByServer", outcome.Kind)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want exactly 1", attempts)
	}
	if sleeps != 0 {
		t.Errorf("sleeps = %d, want 0 for terminal rejection", sleeps)
	}
}

func TestDeliver_TimeoutExhaustsRetries(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	settings := testSettings(server.URL, 2)
	settings.Timeout = 20 * time.Millisecond
	var sleeps int32
	client := testClient(settings, &sleeps)

	outcome := client.Deliver(context.Background(), testPayload())

	if outcome.Kind != ExhaustedRetries {
		t.Fatalf("Kind = %v, want ExhaustedRetries", outcome.Kind)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
	if outcome.Err == nil {
		t.Error("expected the last transport error to be carried")
	}
}

func TestDeliver_RequestShape(t *testing.T) {
	var gotSig, gotUA, gotCT string
	var gotBody []byte
	var gotLength int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get(SignatureHeader)
		gotUA = r.Header.Get("User-Agent")
		gotCT = r.Header.Get("Content-Type")
		gotLength = r.ContentLength
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	var sleeps int32
	client := testClient(testSettings(server.URL, 1), &sleeps)
	client.Deliver(context.Background(), testPayload())

	if gotCT != "application/json" {
		t.Errorf("Content-Type = %s", gotCT)
	}
	if gotUA != "whm2bunny-hook/1.0" {
		t.Errorf("User-Agent = %s", gotUA)
	}
	if gotLength != int64(len(gotBody)) {
		t.Errorf("Content-Length = %d, body is %d bytes", gotLength, len(gotBody))
	}
	if !signature.Verify(gotBody, gotSig, "s3cr3t") {
		t.Errorf("signature %s does not verify over received body %s", gotSig, gotBody)
	}
}

func TestDeliver_SignatureStableAcrossRetries(t *testing.T) {
	sigs := make(chan string, 3)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sigs <- r.Header.Get(SignatureHeader)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	var sleeps int32
	client := testClient(testSettings(server.URL, 3), &sleeps)
	client.Deliver(context.Background(), testPayload())
	close(sigs)

	var first string
	for sig := range sigs {
		if first == "" {
			first = sig
			continue
		}
		if sig != first {
			t.Errorf("signature changed between attempts: %s vs %s", first, sig)
		}
	}
	if first == "" {
		t.Fatal("no requests observed")
	}
}
