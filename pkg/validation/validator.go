package validation

import (
	"context"
	"fmt"
	"io"
	"net"
	"regexp"
	"strings"
	"time"

	"github.com/mordenhost/whm2bunny/pkg/observability"
)

const (
	maxDomainLength    = 253
	maxLabelLength     = 63
	maxSubdomainLabels = 5
)

var (
	// labelRegex matches one RFC 1035 label; hyphens are interior only.
	labelRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]*[a-zA-Z0-9])?$`)

	// domainRegex matches a dotted domain name with an alphabetic TLD.
	domainRegex = regexp.MustCompile(`^([a-zA-Z0-9]([a-zA-Z0-9-]*[a-zA-Z0-9])?\.)+[a-zA-Z]{2,}$`)

	// hostnameRegex matches a hostname, optionally with a trailing dot.
	hostnameRegex = regexp.MustCompile(`^([a-zA-Z0-9]([a-zA-Z0-9-]*[a-zA-Z0-9])?\.)*[a-zA-Z]{2,}\.?$`)

	ipv4Regex = regexp.MustCompile(`^(\d{1,3}\.){3}\d{1,3}$`)
)

// ValidationConfig defines which checks the validator runs
type ValidationConfig struct {
	// EnableDNSChecks resolves domains after format checks pass
	EnableDNSChecks bool
	// DNSTimeout bounds each resolver call
	DNSTimeout time.Duration
}

// DefaultValidationConfig returns default validation settings
func DefaultValidationConfig() *ValidationConfig {
	return &ValidationConfig{
		EnableDNSChecks: false,
		DNSTimeout:      5 * time.Second,
	}
}

// Validator performs format and DNS validation on names received from hooks
type Validator struct {
	config *ValidationConfig
	logger *observability.Logger
}

// NewValidator creates a new validator
func NewValidator(config *ValidationConfig, logger *observability.Logger) *Validator {
	if config == nil {
		config = DefaultValidationConfig()
	}
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, io.Discard)
	}
	return &Validator{config: config, logger: logger}
}

// ValidateDomain checks a fully qualified domain name.
func (v *Validator) ValidateDomain(domain string) error {
	if domain == "" {
		return fmt.Errorf("domain is required")
	}

	domain = strings.TrimSpace(domain)
	domain = strings.TrimSuffix(domain, ".")

	if len(domain) > maxDomainLength {
		return fmt.Errorf("domain too long (max %d characters)", maxDomainLength)
	}
	if !domainRegex.MatchString(domain) {
		return fmt.Errorf("invalid domain format")
	}

	labels := strings.Split(domain, ".")
	for _, label := range labels {
		if len(label) > maxLabelLength {
			return fmt.Errorf("label %q too long (max %d characters)", label, maxLabelLength)
		}
		if !labelRegex.MatchString(label) {
			return fmt.Errorf("label %q contains invalid characters", label)
		}
	}

	if isAllNumeric(labels[len(labels)-1]) {
		return fmt.Errorf("TLD cannot be all numeric")
	}

	if v.config.EnableDNSChecks {
		if err := v.resolve(domain); err != nil {
			// Hooks often fire before DNS propagates, so resolution
			// failures only warn.
			v.logger.WithField("domain", domain).WithError(err).Warnf("domain does not resolve yet")
		}
	}
	return nil
}

// ValidateSubdomainLabel checks a bare subdomain label such as "blog".
func (v *Validator) ValidateSubdomainLabel(label string) error {
	if label == "" {
		return fmt.Errorf("subdomain label is required")
	}
	if len(label) > maxLabelLength {
		return fmt.Errorf("subdomain label too long (max %d characters)", maxLabelLength)
	}
	if !labelRegex.MatchString(label) {
		return fmt.Errorf("subdomain label contains invalid characters")
	}
	return nil
}

// ValidateSubdomain checks a full subdomain name including its parent.
func (v *Validator) ValidateSubdomain(subdomain string) error {
	if subdomain == "" {
		return fmt.Errorf("subdomain is required")
	}

	subdomain = strings.TrimSpace(subdomain)
	subdomain = strings.TrimSuffix(subdomain, ".")

	if len(subdomain) > maxDomainLength {
		return fmt.Errorf("subdomain too long (max %d characters)", maxDomainLength)
	}

	labels := strings.Split(subdomain, ".")
	if len(labels) < 2 {
		return fmt.Errorf("subdomain must have at least one dot")
	}
	if len(labels) > maxSubdomainLabels+2 {
		return fmt.Errorf("too many labels in subdomain (max %d)", maxSubdomainLabels)
	}
	for _, label := range labels {
		if len(label) > maxLabelLength {
			return fmt.Errorf("label %q too long (max %d characters)", label, maxLabelLength)
		}
		if !labelRegex.MatchString(label) {
			return fmt.Errorf("label %q contains invalid characters", label)
		}
	}
	if isAllNumeric(labels[len(labels)-1]) {
		return fmt.Errorf("TLD cannot be all numeric")
	}
	return nil
}

// ValidateOriginIP accepts an IPv4 address or a hostname.
func (v *Validator) ValidateOriginIP(ip string) error {
	if ip == "" {
		return fmt.Errorf("origin IP is required")
	}
	if ipv4Regex.MatchString(ip) {
		for _, part := range strings.Split(ip, ".") {
			var num int
			if _, err := fmt.Sscanf(part, "%d", &num); err != nil || num > 255 {
				return fmt.Errorf("invalid IP address octet: %s", part)
			}
		}
		return nil
	}
	if hostnameRegex.MatchString(ip) {
		return nil
	}
	return fmt.Errorf("invalid origin IP or hostname format")
}

// ValidateWebhookSecret enforces a minimum secret length.
func (v *Validator) ValidateWebhookSecret(secret string) error {
	if secret == "" {
		return fmt.Errorf("webhook secret is required")
	}
	if len(secret) < 16 {
		return fmt.Errorf("webhook secret too short (min 16 characters)")
	}
	return nil
}

// CheckDNSRecords reports which record types currently exist for a domain.
func (v *Validator) CheckDNSRecords(ctx context.Context, domain string) (map[string]bool, error) {
	if !v.config.EnableDNSChecks {
		return nil, fmt.Errorf("DNS checks are disabled")
	}

	ctx, cancel := context.WithTimeout(ctx, v.config.DNSTimeout)
	defer cancel()

	results := make(map[string]bool)

	_, err := net.DefaultResolver.LookupHost(ctx, domain)
	results["A"] = err == nil

	mx, err := net.DefaultResolver.LookupMX(ctx, domain)
	results["MX"] = err == nil && len(mx) > 0

	txt, err := net.DefaultResolver.LookupTXT(ctx, domain)
	results["TXT"] = err == nil && len(txt) > 0

	ns, err := net.DefaultResolver.LookupNS(ctx, domain)
	results["NS"] = err == nil && len(ns) > 0

	return results, nil
}

func (v *Validator) resolve(domain string) error {
	ctx, cancel := context.WithTimeout(context.Background(), v.config.DNSTimeout)
	defer cancel()
	_, err := net.DefaultResolver.LookupHost(ctx, domain)
	return err
}

func isAllNumeric(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
