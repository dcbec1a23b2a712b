package provision

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mordenhost/whm2bunny/pkg/bunny"
	"github.com/mordenhost/whm2bunny/pkg/config"
	"github.com/mordenhost/whm2bunny/pkg/observability"
	"github.com/mordenhost/whm2bunny/pkg/state"
)

// bunnyAPI is the subset of the Bunny.net client the provisioner uses.
type bunnyAPI interface {
	CreateDNSZone(ctx context.Context, domain string) (*bunny.DNSZone, error)
	ConfigureDNSZone(ctx context.Context, zoneID int64, ns1, ns2, soaEmail string) error
	GetDNSZoneByDomain(ctx context.Context, domain string) (*bunny.DNSZone, error)
	AddDNSRecord(ctx context.Context, zoneID int64, record bunny.DNSRecord) (*bunny.DNSRecord, error)
	DeleteDNSZone(ctx context.Context, zoneID int64, domain string) error
	CreatePullZone(ctx context.Context, opts bunny.CreatePullZoneOptions) (*bunny.PullZone, error)
	GetPullZone(ctx context.Context, id int64) (*bunny.PullZone, error)
	ListPullZones(ctx context.Context) ([]bunny.PullZone, error)
	AddCustomHostname(ctx context.Context, pullZoneID int64, hostname string) error
	DeletePullZone(ctx context.Context, id int64) error
}

// notifier receives provisioning lifecycle notifications.
type notifier interface {
	NotifySuccess(ctx context.Context, domain string, zoneID int64, cdnHostname string, duration time.Duration) error
	NotifyFailed(ctx context.Context, domain, step, errMsg string) error
	NotifySubdomainProvisioned(ctx context.Context, subdomain, parent, cdnHostname string) error
	NotifyDeprovisioned(ctx context.Context, domain string) error
}

// Provisioner drives Bunny.net DNS and CDN setup for hook events.
type Provisioner struct {
	client   bunnyAPI
	states   *state.Manager
	notifier notifier
	cfg      config.BunnyConfig
	logger   *observability.Logger
	metrics  *observability.Metrics
}

// NewProvisioner wires a provisioner with its dependencies. metrics may be
// nil.
func NewProvisioner(cfg config.BunnyConfig, client bunnyAPI, states *state.Manager, n notifier, logger *observability.Logger, metrics *observability.Metrics) *Provisioner {
	return &Provisioner{
		client:   client,
		states:   states,
		notifier: n,
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
	}
}

// Provision sets up DNS and CDN for a newly created account domain. Already
// succeeded domains are skipped, and a previously failed or interrupted run
// resumes from its last completed step.
func (p *Provisioner) Provision(ctx context.Context, domain, user string) error {
	start := time.Now()
	log := p.logger.WithFields(map[string]interface{}{"domain": domain, "user": user})
	log.Info("starting domain provisioning")

	rec := p.states.GetByFQDN(domain)
	if rec != nil && rec.Status == state.StatusSuccess {
		log.WithField("record_id", rec.ID).Info("domain already provisioned, skipping")
		return nil
	}
	if rec == nil {
		var err error
		rec, err = p.states.Create(domain, "", user, "account_created")
		if err != nil {
			return fmt.Errorf("failed to create provisioning state: %w", err)
		}
	} else {
		log.WithFields(map[string]interface{}{
			"status":         string(rec.Status),
			"completed_step": string(rec.CompletedStep),
		}).Info("resuming provisioning from existing state")
	}

	if rec, _ = p.setStatus(rec.ID, state.StatusProvisioning); rec == nil {
		return fmt.Errorf("failed to mark %s as provisioning", domain)
	}

	rec, err := p.runDomainSteps(ctx, rec)
	duration := time.Since(start)

	if err != nil {
		p.observe("provision_domain", "failed", duration)
		p.failed(ctx, rec, err)
		return fmt.Errorf("provisioning failed for domain %s: %w", domain, err)
	}

	p.observe("provision_domain", "success", duration)
	p.succeeded(rec.ID)
	if nerr := p.notifier.NotifySuccess(ctx, domain, rec.DNSZoneID, rec.CDNHostname, duration); nerr != nil {
		log.WithError(nerr).Warn("failed to send success notification")
	}
	log.WithField("duration", duration.String()).Info("domain provisioning completed successfully")
	return nil
}

// ProvisionSubdomain attaches a subdomain to its parent's DNS zone and gives
// it a dedicated pull zone.
func (p *Provisioner) ProvisionSubdomain(ctx context.Context, subdomain, parentDomain, user string) error {
	start := time.Now()
	fqdn := subdomain + "." + parentDomain
	log := p.logger.WithFields(map[string]interface{}{"subdomain": fqdn, "parent_domain": parentDomain})
	log.Info("starting subdomain provisioning")

	rec := p.states.GetByFQDN(fqdn)
	if rec != nil && rec.Status == state.StatusSuccess {
		log.Info("subdomain already provisioned, skipping")
		return nil
	}
	if rec == nil {
		var err error
		rec, err = p.states.Create(parentDomain, subdomain, user, "subdomain_created")
		if err != nil {
			return fmt.Errorf("failed to create provisioning state: %w", err)
		}
	}

	if rec, _ = p.setStatus(rec.ID, state.StatusProvisioning); rec == nil {
		return fmt.Errorf("failed to mark %s as provisioning", fqdn)
	}

	rec, err := p.runSubdomainSteps(ctx, rec)
	duration := time.Since(start)

	if err != nil {
		p.observe("provision_subdomain", "failed", duration)
		p.failed(ctx, rec, err)
		return fmt.Errorf("subdomain provisioning failed for %s: %w", fqdn, err)
	}

	p.observe("provision_subdomain", "success", duration)
	p.succeeded(rec.ID)
	if nerr := p.notifier.NotifySubdomainProvisioned(ctx, fqdn, parentDomain, rec.CDNHostname); nerr != nil {
		log.WithError(nerr).Warn("failed to send subdomain notification")
	}
	log.Info("subdomain provisioning completed successfully")
	return nil
}

// Deprovision tears down the DNS zone and pull zone for a deleted account.
// Resources that are already gone do not fail the run.
func (p *Provisioner) Deprovision(ctx context.Context, domain string) error {
	start := time.Now()
	log := p.logger.WithField("domain", domain)
	log.Info("starting domain deprovisioning")

	rec := p.states.GetByFQDN(domain)

	if rec != nil && rec.PullZoneID != 0 {
		if err := p.client.DeletePullZone(ctx, rec.PullZoneID); err != nil && !isNotFound(err) {
			p.observe("deprovision", "failed", time.Since(start))
			return fmt.Errorf("failed to delete pull zone %d: %w", rec.PullZoneID, err)
		}
	}

	zoneID := int64(0)
	if rec != nil {
		zoneID = rec.DNSZoneID
	}
	if zoneID == 0 {
		if zone, err := p.client.GetDNSZoneByDomain(ctx, domain); err == nil && zone != nil {
			zoneID = zone.ID
		}
	}
	if zoneID != 0 {
		if err := p.client.DeleteDNSZone(ctx, zoneID, domain); err != nil && !isNotFound(err) {
			p.observe("deprovision", "failed", time.Since(start))
			return fmt.Errorf("failed to delete DNS zone %d: %w", zoneID, err)
		}
	}

	if rec != nil {
		if err := p.states.Delete(rec.ID); err != nil {
			log.WithError(err).Warn("failed to delete state after deprovisioning")
		} else if p.metrics != nil {
			p.metrics.ProvisionedDomainsTotal.Dec()
		}
	}

	p.observe("deprovision", "success", time.Since(start))
	if nerr := p.notifier.NotifyDeprovisioned(ctx, domain); nerr != nil {
		log.WithError(nerr).Warn("failed to send deprovision notification")
	}
	log.Info("domain deprovisioning completed successfully")
	return nil
}

// Recover re-runs records left pending or failed by a previous process,
// typically called once at startup.
func (p *Provisioner) Recover(ctx context.Context) {
	var candidates []*state.Record
	candidates = append(candidates, p.states.ListByStatus(state.StatusPending)...)
	candidates = append(candidates, p.states.ListByStatus(state.StatusProvisioning)...)
	candidates = append(candidates, p.states.ListByStatus(state.StatusFailed)...)

	if len(candidates) == 0 {
		return
	}
	p.logger.WithField("count", len(candidates)).Info("recovering unfinished provisions")

	for _, rec := range candidates {
		var err error
		if rec.Subdomain != "" {
			err = p.ProvisionSubdomain(ctx, rec.Subdomain, rec.Domain, rec.User)
		} else {
			err = p.Provision(ctx, rec.Domain, rec.User)
		}
		if err != nil {
			p.logger.WithField("fqdn", rec.FQDN()).WithError(err).Error("recovery failed")
		}
	}
}

func (p *Provisioner) setStatus(id string, status state.Status) (*state.Record, error) {
	return p.states.Update(id, func(r *state.Record) {
		r.Status = status
	})
}

func (p *Provisioner) succeeded(id string) {
	if _, err := p.states.Update(id, func(r *state.Record) {
		r.Status = state.StatusSuccess
		r.LastError = ""
	}); err != nil {
		p.logger.WithError(err).Error("failed to mark state as success")
		return
	}
	if p.metrics != nil {
		p.metrics.ProvisionedDomainsTotal.Inc()
	}
}

func (p *Provisioner) failed(ctx context.Context, rec *state.Record, cause error) {
	updated, err := p.states.Update(rec.ID, func(r *state.Record) {
		r.Status = state.StatusFailed
		r.LastError = cause.Error()
	})
	if err != nil {
		p.logger.WithError(err).Error("failed to set error state")
		updated = rec
	}
	step := nextStep(updated.CompletedStep)
	if nerr := p.notifier.NotifyFailed(ctx, updated.FQDN(), string(step), cause.Error()); nerr != nil {
		p.logger.WithError(nerr).Warn("failed to send failure notification")
	}
}

func (p *Provisioner) observe(operation, status string, duration time.Duration) {
	if p.metrics != nil {
		p.metrics.ObserveProvision(operation, status, duration)
	}
}

// nextStep names the step a record will run next, used in failure reports.
func nextStep(completed state.Step) state.Step {
	switch completed {
	case state.StepNone:
		return state.StepDNSZone
	case state.StepDNSZone:
		return state.StepDNSRecords
	case state.StepDNSRecords:
		return state.StepPullZone
	case state.StepPullZone:
		return state.StepCNAMESync
	default:
		return state.StepCNAMESync
	}
}

func isNotFound(err error) bool {
	apiErr, ok := bunny.AsAPIError(err)
	return ok && apiErr.IsNotFound()
}

// pullZoneName derives a Bunny pull zone name from a fully qualified domain,
// e.g. "blog.example.com" becomes "morden-blog-example-com".
func pullZoneName(fqdn string) string {
	return "morden-" + strings.ReplaceAll(strings.ToLower(fqdn), ".", "-")
}
