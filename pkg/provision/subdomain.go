package provision

import (
	"context"
	"fmt"

	"github.com/mordenhost/whm2bunny/pkg/bunny"
	"github.com/mordenhost/whm2bunny/pkg/state"
)

// runSubdomainSteps executes the pipeline for a subdomain. The parent's DNS
// zone must already exist; the subdomain gets its own pull zone and a CNAME
// record in the parent zone.
func (p *Provisioner) runSubdomainSteps(ctx context.Context, rec *state.Record) (*state.Record, error) {
	var err error

	if rec.CompletedStep == state.StepNone {
		if rec, err = p.stepParentZone(ctx, rec); err != nil {
			return rec, err
		}
	}
	if rec.CompletedStep == state.StepDNSRecords {
		if rec, err = p.stepPullZone(ctx, rec); err != nil {
			return rec, err
		}
	}
	if rec.CompletedStep == state.StepPullZone {
		if rec, err = p.stepSubdomainCNAME(ctx, rec); err != nil {
			return rec, err
		}
	}
	return rec, nil
}

// stepParentZone resolves the parent domain's zone. Subdomains add records
// to that zone rather than creating their own, so this completes both the
// zone and records steps at once.
func (p *Provisioner) stepParentZone(ctx context.Context, rec *state.Record) (*state.Record, error) {
	zone, err := p.client.GetDNSZoneByDomain(ctx, rec.Domain)
	if err != nil {
		return rec, fmt.Errorf("failed to look up parent zone: %w", err)
	}
	if zone == nil {
		return rec, fmt.Errorf("parent domain %s has no DNS zone, provision it first", rec.Domain)
	}

	return p.states.Update(rec.ID, func(r *state.Record) {
		r.DNSZoneID = zone.ID
		r.CompletedStep = state.StepDNSRecords
	})
}

// stepSubdomainCNAME points the subdomain label at its pull zone.
func (p *Provisioner) stepSubdomainCNAME(ctx context.Context, rec *state.Record) (*state.Record, error) {
	record := bunny.DNSRecord{
		Type:  bunny.RecordTypeCNAME,
		Name:  rec.Subdomain,
		Value: rec.CDNHostname,
		TTL:   recordTTL,
	}
	if _, err := p.client.AddDNSRecord(ctx, rec.DNSZoneID, record); err != nil && !isConflict(err) {
		return rec, fmt.Errorf("failed to add subdomain CNAME record: %w", err)
	}

	return p.states.Update(rec.ID, func(r *state.Record) {
		r.CompletedStep = state.StepCNAMESync
	})
}
