package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle status of a provisioning record.
type Status string

const (
	StatusPending      Status = "pending"
	StatusProvisioning Status = "provisioning"
	StatusSuccess      Status = "success"
	StatusFailed       Status = "failed"
)

// Step marks the last provisioning step that completed for a record. A
// resumed run continues with the step after it.
type Step string

const (
	StepNone       Step = ""
	StepDNSZone    Step = "dns_zone"
	StepDNSRecords Step = "dns_records"
	StepPullZone   Step = "pull_zone"
	StepCNAMESync  Step = "cname_sync"
)

// Record is one domain or subdomain tracked through provisioning.
type Record struct {
	ID            string    `json:"id"`
	Domain        string    `json:"domain"`
	Subdomain     string    `json:"subdomain,omitempty"`
	User          string    `json:"user,omitempty"`
	Event         string    `json:"event"`
	Status        Status    `json:"status"`
	CompletedStep Step      `json:"completed_step,omitempty"`
	DNSZoneID     int64     `json:"dns_zone_id,omitempty"`
	PullZoneID    int64     `json:"pull_zone_id,omitempty"`
	CDNHostname   string    `json:"cdn_hostname,omitempty"`
	LastError     string    `json:"last_error,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// FQDN returns the fully qualified name the record provisions.
func (r *Record) FQDN() string {
	if r.Subdomain != "" {
		return r.Subdomain + "." + r.Domain
	}
	return r.Domain
}

// Counts summarizes records by status.
type Counts struct {
	Pending      int `json:"pending"`
	Provisioning int `json:"provisioning"`
	Success      int `json:"success"`
	Failed       int `json:"failed"`
}

// Total returns the number of records across all statuses.
func (c Counts) Total() int {
	return c.Pending + c.Provisioning + c.Success + c.Failed
}

// Manager holds provisioning records in memory and persists them to a JSON
// file after every mutation.
type Manager struct {
	path string

	mu      sync.RWMutex
	records map[string]*Record // keyed by record ID
	byFQDN  map[string]string  // FQDN -> record ID
}

// NewManager loads existing records from path, creating the parent directory
// if needed. A missing file starts an empty store.
func NewManager(path string) (*Manager, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	m := &Manager{
		path:    path,
		records: make(map[string]*Record),
		byFQDN:  make(map[string]string),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return m, nil
		}
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var records []*Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}
	for _, rec := range records {
		m.records[rec.ID] = rec
		m.byFQDN[rec.FQDN()] = rec.ID
	}
	return m, nil
}

// Create registers a new pending record for the given name. If a record for
// the same FQDN already exists it is returned unchanged, so repeated webhook
// deliveries do not fork state.
func (m *Manager) Create(domain, subdomain, user, event string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fqdn := domain
	if subdomain != "" {
		fqdn = subdomain + "." + domain
	}
	if id, ok := m.byFQDN[fqdn]; ok {
		return m.records[id].clone(), nil
	}

	now := time.Now().UTC()
	rec := &Record{
		ID:        uuid.New().String(),
		Domain:    domain,
		Subdomain: subdomain,
		User:      user,
		Event:     event,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.records[rec.ID] = rec
	m.byFQDN[fqdn] = rec.ID

	if err := m.persistLocked(); err != nil {
		return nil, err
	}
	return rec.clone(), nil
}

// Get returns a record by ID, or nil if unknown.
func (m *Manager) Get(id string) *Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if rec, ok := m.records[id]; ok {
		return rec.clone()
	}
	return nil
}

// GetByFQDN returns the record for a fully qualified name, or nil.
func (m *Manager) GetByFQDN(fqdn string) *Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id, ok := m.byFQDN[fqdn]; ok {
		return m.records[id].clone()
	}
	return nil
}

// Update applies fn to the record with the given ID under the write lock and
// persists the result.
func (m *Manager) Update(id string, fn func(*Record)) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok {
		return nil, fmt.Errorf("unknown record: %s", id)
	}
	fn(rec)
	rec.UpdatedAt = time.Now().UTC()

	if err := m.persistLocked(); err != nil {
		return nil, err
	}
	return rec.clone(), nil
}

// Delete removes a record. Deleting an unknown ID is a no-op.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok {
		return nil
	}
	delete(m.records, id)
	delete(m.byFQDN, rec.FQDN())
	return m.persistLocked()
}

// List returns all records ordered by creation time, oldest first.
func (m *Manager) List() []*Record {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Record, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, rec.clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// ListByStatus returns records matching a status, oldest first.
func (m *Manager) ListByStatus(status Status) []*Record {
	var out []*Record
	for _, rec := range m.List() {
		if rec.Status == status {
			out = append(out, rec)
		}
	}
	return out
}

// CountByStatus summarizes the store, used for scheduled reports.
func (m *Manager) CountByStatus() Counts {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var counts Counts
	for _, rec := range m.records {
		switch rec.Status {
		case StatusPending:
			counts.Pending++
		case StatusProvisioning:
			counts.Provisioning++
		case StatusSuccess:
			counts.Success++
		case StatusFailed:
			counts.Failed++
		}
	}
	return counts
}

// persistLocked writes the store to disk. Callers must hold the write lock.
// The file is written to a temp sibling and renamed so a crash mid-write
// cannot truncate existing state.
func (m *Manager) persistLocked() error {
	records := make([]*Record, 0, len(m.records))
	for _, rec := range m.records {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}

func (r *Record) clone() *Record {
	cp := *r
	return &cp
}
