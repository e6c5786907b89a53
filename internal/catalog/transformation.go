package catalog

import "sync"

// TransformationEntry binds a logical transformation on a site to the
// executable that implements it.
type TransformationEntry struct {
	Namespace string
	Name      string
	Version   string
	Site      string
	PFN       string
	Profiles  Profiles
}

// Transformations resolves abstract transformations to executables.
type Transformations interface {
	// Lookup returns every entry for name on site. An empty namespace or
	// version in the query matches any value.
	Lookup(namespace, name, version, site string) []TransformationEntry
}

// MemoryTransformations is an in-memory transformation catalog.
type MemoryTransformations struct {
	mu      sync.RWMutex
	entries []TransformationEntry
}

// NewMemoryTransformations returns a catalog holding entries.
func NewMemoryTransformations(entries ...TransformationEntry) *MemoryTransformations {
	return &MemoryTransformations{entries: entries}
}

// Add registers an entry.
func (m *MemoryTransformations) Add(e TransformationEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
}

// Lookup implements Transformations. Entries come back in registration order.
func (m *MemoryTransformations) Lookup(namespace, name, version, site string) []TransformationEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []TransformationEntry
	for _, e := range m.entries {
		if e.Name != name || e.Site != site {
			continue
		}
		if namespace != "" && e.Namespace != namespace {
			continue
		}
		if version != "" && e.Version != version {
			continue
		}
		out = append(out, e)
	}
	return out
}
