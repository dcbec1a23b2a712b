package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/mordenhost/whm2bunny/pkg/httputil"
	"github.com/mordenhost/whm2bunny/pkg/observability"
	"github.com/mordenhost/whm2bunny/pkg/signature"
	"github.com/mordenhost/whm2bunny/pkg/validation"
)

// Event types accepted from the control panel hook.
const (
	EventAccountCreated   = "account_created"
	EventAddonCreated     = "addon_created"
	EventSubdomainCreated = "subdomain_created"
	EventAccountDeleted   = "account_deleted"
)

// SignatureHeader carries the hex HMAC-SHA256 of the request body.
const SignatureHeader = "X-Whm2bunny-Signature"

// maxBodySize caps webhook request bodies. Hook payloads are tiny.
const maxBodySize = 64 * 1024

// Provisioner is the downstream interface webhook events are dispatched to.
type Provisioner interface {
	Provision(ctx context.Context, domain, user string) error
	ProvisionSubdomain(ctx context.Context, subdomain, parentDomain, user string) error
	Deprovision(ctx context.Context, domain string) error
}

// Payload is the JSON body the control panel hook sends.
type Payload struct {
	Event        string `json:"event"`
	Domain       string `json:"domain"`
	Subdomain    string `json:"subdomain,omitempty"`
	ParentDomain string `json:"parent_domain,omitempty"`
	User         string `json:"user"`
}

// AcceptedResponse is returned when an event is queued for processing.
type AcceptedResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
}

// Handler authenticates and dispatches incoming webhook requests.
type Handler struct {
	provisioner Provisioner
	validator   *validation.Validator
	logger      *observability.Logger
	metrics     *observability.Metrics

	mu     sync.RWMutex
	secret string

	// wg tracks in-flight async dispatches so shutdown can drain them.
	wg sync.WaitGroup
}

// NewHandler creates a webhook handler. validator and metrics may be nil.
func NewHandler(provisioner Provisioner, secret string, validator *validation.Validator, logger *observability.Logger, metrics *observability.Metrics) *Handler {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, io.Discard)
	}
	return &Handler{
		provisioner: provisioner,
		validator:   validator,
		logger:      logger,
		metrics:     metrics,
		secret:      secret,
	}
}

// UpdateSecret swaps the shared secret, used by config hot reload.
func (h *Handler) UpdateSecret(secret string) {
	h.mu.Lock()
	h.secret = secret
	h.mu.Unlock()
}

// Wait blocks until all in-flight event dispatches finish.
func (h *Handler) Wait() {
	h.wg.Wait()
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.reject(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed", "")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		h.reject(w, http.StatusBadRequest, "body_read", "invalid request", "failed to read request body")
		return
	}
	defer r.Body.Close()
	if len(body) > maxBodySize {
		h.reject(w, http.StatusRequestEntityTooLarge, "body_too_large", "payload too large", "")
		return
	}

	h.mu.RLock()
	secret := h.secret
	h.mu.RUnlock()

	sig := r.Header.Get(SignatureHeader)
	if !signature.Verify(body, sig, secret) {
		h.logger.WithField("remote_addr", r.RemoteAddr).Warn("invalid webhook signature")
		h.reject(w, http.StatusUnauthorized, "bad_signature", "unauthorized", "invalid signature")
		return
	}

	var payload Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		h.reject(w, http.StatusBadRequest, "bad_json", "invalid payload", err.Error())
		return
	}

	if err := h.validatePayload(&payload); err != nil {
		h.logger.WithField("event", payload.Event).WithError(err).Warn("payload validation failed")
		h.reject(w, http.StatusBadRequest, "validation", "validation failed", err.Error())
		return
	}

	trackingID := uuid.New().String()

	switch payload.Event {
	case EventAccountCreated, EventAddonCreated:
		h.dispatch(trackingID, payload.Event, func(ctx context.Context) error {
			return h.provisioner.Provision(ctx, payload.Domain, payload.User)
		})
	case EventSubdomainCreated:
		h.dispatch(trackingID, payload.Event, func(ctx context.Context) error {
			return h.provisioner.ProvisionSubdomain(ctx, payload.Subdomain, payload.ParentDomain, payload.User)
		})
	case EventAccountDeleted:
		h.dispatch(trackingID, payload.Event, func(ctx context.Context) error {
			return h.provisioner.Deprovision(ctx, payload.Domain)
		})
	}

	if h.metrics != nil {
		h.metrics.WebhooksReceivedTotal.WithLabelValues(payload.Event).Inc()
	}
	h.logger.WithFields(map[string]interface{}{
		"event":       payload.Event,
		"tracking_id": trackingID,
		"domain":      payload.Domain,
	}).Info("webhook accepted")

	httputil.WriteJSON(w, http.StatusAccepted, AcceptedResponse{
		Success: true,
		Message: "Processing started",
		ID:      trackingID,
	})
}

// dispatch runs an event handler in the background. The request context is
// not reused: provisioning must outlive the HTTP exchange.
func (h *Handler) dispatch(trackingID, event string, fn func(context.Context) error) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		log := h.logger.WithFields(map[string]interface{}{
			"tracking_id": trackingID,
			"event":       event,
		})
		log.Info("processing webhook event")
		if err := fn(context.Background()); err != nil {
			log.WithError(err).Error("webhook event processing failed")
			return
		}
		log.Info("webhook event processed")
	}()
}

// validatePayload enforces required fields per event and, when a validator
// is configured, domain name format.
func (h *Handler) validatePayload(payload *Payload) error {
	if payload.User == "" {
		return fmt.Errorf("user is required")
	}

	switch payload.Event {
	case EventAccountCreated, EventAddonCreated, EventAccountDeleted:
		if payload.Domain == "" {
			return fmt.Errorf("domain is required for event %q", payload.Event)
		}
		if h.validator != nil {
			if err := h.validator.ValidateDomain(payload.Domain); err != nil {
				return fmt.Errorf("invalid domain: %w", err)
			}
		}
	case EventSubdomainCreated:
		if payload.Subdomain == "" {
			return fmt.Errorf("subdomain is required for event %q", payload.Event)
		}
		if payload.ParentDomain == "" {
			return fmt.Errorf("parent_domain is required for event %q", payload.Event)
		}
		if h.validator != nil {
			if err := h.validator.ValidateDomain(payload.ParentDomain); err != nil {
				return fmt.Errorf("invalid parent domain: %w", err)
			}
			if err := h.validator.ValidateSubdomainLabel(payload.Subdomain); err != nil {
				return fmt.Errorf("invalid subdomain: %w", err)
			}
		}
	default:
		return fmt.Errorf("unknown event type: %q", payload.Event)
	}
	return nil
}

func (h *Handler) reject(w http.ResponseWriter, status int, reason, message, details string) {
	if h.metrics != nil {
		h.metrics.WebhooksRejectedTotal.WithLabelValues(reason).Inc()
	}
	httputil.WriteDetailedError(w, status, message, details)
}
