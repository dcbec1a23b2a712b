package provision

import (
	"context"
	"fmt"

	"github.com/mordenhost/whm2bunny/pkg/bunny"
	"github.com/mordenhost/whm2bunny/pkg/state"
)

const recordTTL = 300

// runDomainSteps executes the provisioning pipeline for a root domain,
// skipping steps the record already completed.
func (p *Provisioner) runDomainSteps(ctx context.Context, rec *state.Record) (*state.Record, error) {
	var err error

	if rec.CompletedStep == state.StepNone {
		if rec, err = p.stepDNSZone(ctx, rec); err != nil {
			return rec, err
		}
	}
	if rec.CompletedStep == state.StepDNSZone {
		if rec, err = p.stepDNSRecords(ctx, rec); err != nil {
			return rec, err
		}
	}
	if rec.CompletedStep == state.StepDNSRecords {
		if rec, err = p.stepPullZone(ctx, rec); err != nil {
			return rec, err
		}
	}
	if rec.CompletedStep == state.StepPullZone {
		if rec, err = p.stepCNAMESync(ctx, rec); err != nil {
			return rec, err
		}
	}
	return rec, nil
}

// stepDNSZone creates the DNS zone (or adopts an existing one) and applies
// the configured nameservers and SOA contact.
func (p *Provisioner) stepDNSZone(ctx context.Context, rec *state.Record) (*state.Record, error) {
	zone, err := p.client.GetDNSZoneByDomain(ctx, rec.Domain)
	if err != nil {
		return rec, fmt.Errorf("failed to look up DNS zone: %w", err)
	}
	if zone == nil {
		zone, err = p.client.CreateDNSZone(ctx, rec.Domain)
		if err != nil {
			return rec, fmt.Errorf("failed to create DNS zone: %w", err)
		}
		p.logger.WithFields(map[string]interface{}{"domain": rec.Domain, "zone_id": zone.ID}).Info("DNS zone created")
	}

	if err := p.client.ConfigureDNSZone(ctx, zone.ID, p.cfg.Nameserver1, p.cfg.Nameserver2, p.cfg.SOAEmail); err != nil {
		return rec, fmt.Errorf("failed to configure DNS zone: %w", err)
	}

	return p.states.Update(rec.ID, func(r *state.Record) {
		r.DNSZoneID = zone.ID
		r.CompletedStep = state.StepDNSZone
	})
}

// stepDNSRecords points the zone apex at the reverse proxy.
func (p *Provisioner) stepDNSRecords(ctx context.Context, rec *state.Record) (*state.Record, error) {
	if p.cfg.ReverseProxyIP != "" {
		record := bunny.DNSRecord{
			Type:  bunny.RecordTypeA,
			Name:  "",
			Value: p.cfg.ReverseProxyIP,
			TTL:   recordTTL,
		}
		if _, err := p.client.AddDNSRecord(ctx, rec.DNSZoneID, record); err != nil && !isConflict(err) {
			return rec, fmt.Errorf("failed to add A record: %w", err)
		}
	}

	return p.states.Update(rec.ID, func(r *state.Record) {
		r.CompletedStep = state.StepDNSRecords
	})
}

// stepPullZone creates the CDN pull zone and attaches the custom hostnames.
func (p *Provisioner) stepPullZone(ctx context.Context, rec *state.Record) (*state.Record, error) {
	zone, err := p.createOrAdoptPullZone(ctx, rec.FQDN())
	if err != nil {
		return rec, err
	}

	hostnames := []string{rec.FQDN()}
	if rec.Subdomain == "" {
		hostnames = append(hostnames, "www."+rec.FQDN())
	}
	for _, hostname := range hostnames {
		if err := p.client.AddCustomHostname(ctx, zone.ID, hostname); err != nil && !isConflict(err) {
			return rec, fmt.Errorf("failed to add hostname %s: %w", hostname, err)
		}
	}

	return p.states.Update(rec.ID, func(r *state.Record) {
		r.PullZoneID = zone.ID
		r.CDNHostname = zone.SystemHostname()
		r.CompletedStep = state.StepPullZone
	})
}

// stepCNAMESync points www at the pull zone's system hostname. The apex
// stays on the A record since it cannot carry a CNAME.
func (p *Provisioner) stepCNAMESync(ctx context.Context, rec *state.Record) (*state.Record, error) {
	record := bunny.DNSRecord{
		Type:  bunny.RecordTypeCNAME,
		Name:  "www",
		Value: rec.CDNHostname,
		TTL:   recordTTL,
	}
	if _, err := p.client.AddDNSRecord(ctx, rec.DNSZoneID, record); err != nil && !isConflict(err) {
		return rec, fmt.Errorf("failed to add CNAME record: %w", err)
	}

	return p.states.Update(rec.ID, func(r *state.Record) {
		r.CompletedStep = state.StepCNAMESync
	})
}

// createOrAdoptPullZone creates the pull zone for an FQDN, falling back to
// the existing zone when a previous run already created it.
func (p *Provisioner) createOrAdoptPullZone(ctx context.Context, fqdn string) (*bunny.PullZone, error) {
	name := pullZoneName(fqdn)
	opts := bunny.CreatePullZoneOptions{
		Name:               name,
		OriginURL:          "http://" + p.cfg.ReverseProxyIP,
		EnableGeoZoneASIA:  p.wantsRegion("asia"),
		OriginShieldRegion: p.cfg.OriginShieldRegion,
	}

	zone, err := p.client.CreatePullZone(ctx, opts)
	if err == nil {
		p.logger.WithFields(map[string]interface{}{"fqdn": fqdn, "pull_zone_id": zone.ID}).Info("pull zone created")
		return zone, nil
	}
	if !isConflict(err) {
		return nil, fmt.Errorf("failed to create pull zone: %w", err)
	}

	zones, listErr := p.client.ListPullZones(ctx)
	if listErr != nil {
		return nil, fmt.Errorf("failed to list pull zones after conflict: %w", listErr)
	}
	for i := range zones {
		if zones[i].Name == name {
			return &zones[i], nil
		}
	}
	return nil, fmt.Errorf("pull zone %s exists but was not found: %w", name, err)
}

func (p *Provisioner) wantsRegion(region string) bool {
	for _, r := range p.cfg.Regions {
		if r == region {
			return true
		}
	}
	return false
}

func isConflict(err error) bool {
	apiErr, ok := bunny.AsAPIError(err)
	return ok && apiErr.IsConflict()
}
