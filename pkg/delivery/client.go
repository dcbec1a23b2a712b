// Package delivery implements the signed webhook delivery client used by the
// hook CLI: one canonical serialization and signature per payload, an HTTP
// POST with bounded constant-delay retry, and classification of retryable
// versus terminal failures.
package delivery

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mordenhost/whm2bunny/pkg/config"
	"github.com/mordenhost/whm2bunny/pkg/signature"
)

// SignatureHeader carries the hex HMAC-SHA256 digest of the request body.
const SignatureHeader = "X-Whm2bunny-Signature"

// userAgent identifies the hook to the receiver.
const userAgent = "whm2bunny-hook/1.0"

// OutcomeKind classifies the terminal result of a delivery sequence.
type OutcomeKind int

const (
	// Delivered means the receiver answered with a non-error status.
	Delivered OutcomeKind = iota
	// RejectedByServer means the receiver answered 4xx; retrying cannot fix
	// a malformed or unauthorized request, so no further attempts are made.
	RejectedByServer
	// ExhaustedRetries means every attempt failed transiently.
	ExhaustedRetries
)

func (k OutcomeKind) String() string {
	switch k {
	case Delivered:
		return "delivered"
	case RejectedByServer:
		return "rejected"
	case ExhaustedRetries:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Outcome is the result of a delivery sequence.
type Outcome struct {
	Kind       OutcomeKind
	StatusCode int
	Attempts   int
	Err        error
}

// Client delivers signed notification payloads.
type Client struct {
	settings   config.HookSettings
	httpClient *http.Client
	sleep      func(time.Duration)
	logger     *logrus.Logger
}

// NewClient creates a delivery client. The settings timeout bounds each
// attempt end to end, connect and read included.
func NewClient(settings config.HookSettings, logger *logrus.Logger) *Client {
	if logger == nil {
		logger = logrus.New()
	}
	return &Client{
		settings: settings,
		httpClient: &http.Client{
			Timeout: settings.Timeout,
		},
		sleep:  time.Sleep,
		logger: logger,
	}
}

// Deliver serializes and signs the payload once, then POSTs it up to
// MaxRetries times. 4xx responses are terminal; 5xx responses and transport
// errors are retried after RetryDelay.
func (c *Client) Deliver(ctx context.Context, p Payload) Outcome {
	body := p.MarshalCanonical()
	sig := signature.Sign(body, c.settings.Secret)

	c.logger.Debugf("sending webhook: %s", body)
	c.logger.Debugf("signature: %s", sig)

	var lastErr error
	for attempt := 1; attempt <= c.settings.MaxRetries; attempt++ {
		c.logger.Debugf("attempt %d/%d", attempt, c.settings.MaxRetries)

		status, err := c.post(ctx, body, sig)
		switch {
		case err != nil:
			c.logger.Errorf("request error: %v", err)
			lastErr = err
		case status >= 200 && status < 400:
			c.logger.Infof("webhook sent successfully: %d", status)
			return Outcome{Kind: Delivered, StatusCode: status, Attempts: attempt}
		case status < 500:
			c.logger.Errorf("HTTP error: %d", status)
			return Outcome{
				Kind:       RejectedByServer,
				StatusCode: status,
				Attempts:   attempt,
				Err:        fmt.Errorf("server rejected request with status %d", status),
			}
		default:
			c.logger.Errorf("HTTP error: %d", status)
			lastErr = fmt.Errorf("server error status %d", status)
		}

		if attempt < c.settings.MaxRetries {
			c.sleep(c.settings.RetryDelay)
		}
	}

	c.logger.Error("failed to send webhook after all retries")
	return Outcome{Kind: ExhaustedRetries, Attempts: c.settings.MaxRetries, Err: lastErr}
}

// post performs one attempt and returns the HTTP status, or an error for
// transport-level failures.
func (c *Client) post(ctx context.Context, body []byte, sig string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.settings.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, sig)
	req.Header.Set("User-Agent", userAgent)
	req.ContentLength = int64(len(body))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	return resp.StatusCode, nil
}
