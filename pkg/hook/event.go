// Package hook maps WHM/cPanel lifecycle event data to notification payloads
// and drives one delivery per invocation.
package hook

import (
	"encoding/json"
	"fmt"

	"github.com/mordenhost/whm2bunny/pkg/delivery"
)

// WHM hook event types, as registered in WHM >> Script Hooks.
const (
	HookCreateAcct     = "createacct"
	HookAddAddonDomain = "addaddondomain"
	HookParkSubdomain  = "parksubdomain"
	HookKillAcct       = "killacct"
)

// Notification payload event values.
const (
	EventAccountCreated   = "account_created"
	EventAddonCreated     = "addon_created"
	EventSubdomainCreated = "subdomain_created"
	EventAccountDeleted   = "account_deleted"
)

// FallbackDomainSuffix is appended to the username when a killacct event
// carries no domain. cPanel resolves main-account domains from the user, so
// this is a best-effort hint for the receiver, not an authoritative value.
const FallbackDomainSuffix = ".local"

// Raw event shapes as WHM sends them. Extra fields are ignored; pointers
// distinguish absent values.
type accountEventData struct {
	Domain *string `json:"domain"`
	User   *string `json:"user"`
}

type subdomainEventData struct {
	Subdomain  *string `json:"subdomain"`
	RootDomain *string `json:"rootdomain"`
	User       *string `json:"user"`
}

// MapEvent validates raw event data for the given WHM event type and maps it
// to a notification payload. Errors are *MissingFieldError,
// *UnknownEventTypeError, or a decode error for malformed data.
func MapEvent(eventType string, raw []byte) (delivery.Payload, error) {
	switch eventType {
	case HookCreateAcct:
		return mapAccountEvent(EventAccountCreated, raw)
	case HookAddAddonDomain:
		return mapAccountEvent(EventAddonCreated, raw)
	case HookParkSubdomain:
		return mapSubdomainEvent(raw)
	case HookKillAcct:
		return mapKillEvent(raw)
	default:
		return delivery.Payload{}, &UnknownEventTypeError{Type: eventType}
	}
}

func mapAccountEvent(event string, raw []byte) (delivery.Payload, error) {
	var data accountEventData
	if err := json.Unmarshal(raw, &data); err != nil {
		return delivery.Payload{}, fmt.Errorf("invalid event data: %w", err)
	}
	if !present(data.Domain) {
		return delivery.Payload{}, &MissingFieldError{Field: "domain"}
	}
	return delivery.Payload{
		Event: event,
		Fields: map[string]*string{
			"domain": data.Domain,
			"user":   normalize(data.User),
		},
	}, nil
}

func mapSubdomainEvent(raw []byte) (delivery.Payload, error) {
	var data subdomainEventData
	if err := json.Unmarshal(raw, &data); err != nil {
		return delivery.Payload{}, fmt.Errorf("invalid event data: %w", err)
	}
	if !present(data.Subdomain) {
		return delivery.Payload{}, &MissingFieldError{Field: "subdomain"}
	}
	return delivery.Payload{
		Event: EventSubdomainCreated,
		Fields: map[string]*string{
			"subdomain":     data.Subdomain,
			"parent_domain": normalize(data.RootDomain),
			"user":          normalize(data.User),
		},
	}, nil
}

func mapKillEvent(raw []byte) (delivery.Payload, error) {
	var data accountEventData
	if err := json.Unmarshal(raw, &data); err != nil {
		return delivery.Payload{}, fmt.Errorf("invalid event data: %w", err)
	}
	if !present(data.Domain) && !present(data.User) {
		return delivery.Payload{}, &MissingFieldError{Field: "domain"}
	}

	domain := data.Domain
	if !present(domain) {
		derived := *data.User + FallbackDomainSuffix
		domain = &derived
	}

	return delivery.Payload{
		Event: EventAccountDeleted,
		Fields: map[string]*string{
			"domain": domain,
			"user":   normalize(data.User),
		},
	}, nil
}

func present(s *string) bool {
	return s != nil && *s != ""
}

// normalize maps empty strings to null so the payload carries an explicit
// null rather than an empty value.
func normalize(s *string) *string {
	if !present(s) {
		return nil
	}
	return s
}
