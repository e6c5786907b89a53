package catalog

import (
	"context"
	"sort"
	"sync"
)

// Replicas maps logical filenames to physical ones for a site.
type Replicas interface {
	// Lookup returns the PFN registered for lfn at site. ok is false when the
	// catalog has no record; err is reserved for backend failures.
	Lookup(ctx context.Context, site, lfn string) (pfn string, ok bool, err error)
}

// Replica is one catalog record.
type Replica struct {
	LFN  string
	PFN  string
	Site string
}

// MemoryReplicas is an in-memory replica catalog, typically filled from a
// catalog file. It is safe for concurrent use.
type MemoryReplicas struct {
	mu      sync.RWMutex
	entries map[replicaKey][]string
}

type replicaKey struct {
	site string
	lfn  string
}

// NewMemoryReplicas returns a catalog holding the given records.
func NewMemoryReplicas(records ...Replica) *MemoryReplicas {
	m := &MemoryReplicas{entries: make(map[replicaKey][]string)}
	for _, r := range records {
		m.Add(r)
	}
	return m
}

// Add registers a record. Several PFNs per LFN and site are kept in
// insertion order; Lookup returns the first.
func (m *MemoryReplicas) Add(r Replica) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := replicaKey{site: r.Site, lfn: r.LFN}
	m.entries[k] = append(m.entries[k], r.PFN)
}

// Lookup implements Replicas.
func (m *MemoryReplicas) Lookup(_ context.Context, site, lfn string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pfns := m.entries[replicaKey{site: site, lfn: lfn}]
	if len(pfns) == 0 {
		return "", false, nil
	}
	return pfns[0], true, nil
}

// LFNs returns every LFN known for site, sorted.
func (m *MemoryReplicas) LFNs(site string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for k := range m.entries {
		if k.site == site {
			out = append(out, k.lfn)
		}
	}
	sort.Strings(out)
	return out
}

// Unregistered returns the records rc does not already resolve to the same
// PFN, in order and without duplicates.
func Unregistered(ctx context.Context, rc Replicas, records []Replica) ([]Replica, error) {
	seen := make(map[Replica]struct{}, len(records))
	var fresh []Replica
	for _, r := range records {
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		pfn, ok, err := rc.Lookup(ctx, r.Site, r.LFN)
		if err != nil {
			return nil, err
		}
		if ok && pfn == r.PFN {
			continue
		}
		fresh = append(fresh, r)
	}
	return fresh, nil
}
