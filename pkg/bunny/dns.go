package bunny

import (
	"context"
	"fmt"
	"net/url"
)

// RecordType enumerates the Bunny.net DNS record type codes.
type RecordType int

const (
	RecordTypeA     RecordType = 0
	RecordTypeAAAA  RecordType = 1
	RecordTypeCNAME RecordType = 2
	RecordTypeTXT   RecordType = 3
	RecordTypeMX    RecordType = 4
	RecordTypeNS    RecordType = 12
)

// DNSZone represents a Bunny.net DNS zone
type DNSZone struct {
	ID          int64       `json:"Id"`
	Domain      string      `json:"Domain"`
	Records     []DNSRecord `json:"Records"`
	Nameserver1 string      `json:"Nameserver1"`
	Nameserver2 string      `json:"Nameserver2"`
	SoaEmail    string      `json:"SoaEmail"`
}

// DNSRecord represents a record within a DNS zone
type DNSRecord struct {
	ID       int64      `json:"Id,omitempty"`
	Type     RecordType `json:"Type"`
	Name     string     `json:"Name"`
	Value    string     `json:"Value"`
	TTL      int32      `json:"Ttl"`
	Priority int32      `json:"Priority,omitempty"`
}

type dnsZoneList struct {
	Items []DNSZone `json:"Items"`
}

type createDNSZoneRequest struct {
	Domain string `json:"Domain"`
}

type updateDNSZoneRequest struct {
	Nameserver1              string `json:"Nameserver1,omitempty"`
	Nameserver2              string `json:"Nameserver2,omitempty"`
	SoaEmail                 string `json:"SoaEmail,omitempty"`
	CustomNameserversEnabled bool   `json:"CustomNameserversEnabled"`
}

// CreateDNSZone creates a DNS zone for domain.
// API: POST /dnszone
func (c *Client) CreateDNSZone(ctx context.Context, domain string) (*DNSZone, error) {
	var zone DNSZone
	if err := c.post(ctx, "create_dns_zone", "/dnszone", createDNSZoneRequest{Domain: domain}, &zone); err != nil {
		return nil, err
	}
	c.zoneCache.Add(domain, zone.ID)
	return &zone, nil
}

// ConfigureDNSZone sets custom nameservers and the SOA contact on a zone.
// API: POST /dnszone/{id}
func (c *Client) ConfigureDNSZone(ctx context.Context, zoneID int64, ns1, ns2, soaEmail string) error {
	req := updateDNSZoneRequest{
		Nameserver1:              ns1,
		Nameserver2:              ns2,
		SoaEmail:                 soaEmail,
		CustomNameserversEnabled: ns1 != "",
	}
	return c.post(ctx, "configure_dns_zone", fmt.Sprintf("/dnszone/%d", zoneID), req, nil)
}

// GetDNSZoneByDomain looks up the zone for an exact domain. Lookups are
// cached; a cache hit avoids the list call entirely.
// API: GET /dnszone?search={domain}
func (c *Client) GetDNSZoneByDomain(ctx context.Context, domain string) (*DNSZone, error) {
	if id, ok := c.zoneCache.Get(domain); ok {
		return c.GetDNSZone(ctx, id)
	}

	var list dnsZoneList
	path := "/dnszone?search=" + url.QueryEscape(domain)
	if err := c.get(ctx, "list_dns_zones", path, &list); err != nil {
		return nil, err
	}
	for i := range list.Items {
		if list.Items[i].Domain == domain {
			c.zoneCache.Add(domain, list.Items[i].ID)
			return &list.Items[i], nil
		}
	}
	return nil, nil
}

// GetDNSZone fetches a zone by id.
// API: GET /dnszone/{id}
func (c *Client) GetDNSZone(ctx context.Context, zoneID int64) (*DNSZone, error) {
	var zone DNSZone
	if err := c.get(ctx, "get_dns_zone", fmt.Sprintf("/dnszone/%d", zoneID), &zone); err != nil {
		return nil, err
	}
	return &zone, nil
}

// AddDNSRecord adds a record to a zone.
// API: PUT /dnszone/{id}/records
func (c *Client) AddDNSRecord(ctx context.Context, zoneID int64, record DNSRecord) (*DNSRecord, error) {
	var created DNSRecord
	if err := c.put(ctx, "add_dns_record", fmt.Sprintf("/dnszone/%d/records", zoneID), record, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// DeleteDNSZone deletes a zone and evicts it from the lookup cache.
// API: DELETE /dnszone/{id}
func (c *Client) DeleteDNSZone(ctx context.Context, zoneID int64, domain string) error {
	if err := c.delete(ctx, "delete_dns_zone", fmt.Sprintf("/dnszone/%d", zoneID)); err != nil {
		return err
	}
	c.zoneCache.Remove(domain)
	return nil
}
