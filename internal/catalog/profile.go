package catalog

import (
	"sort"
	"strings"
)

// Profiles is a two-level map: lower-cased namespace -> key -> value.
type Profiles map[string]map[string]string

// Set stores a value, normalizing the namespace.
func (p Profiles) Set(namespace, key, value string) {
	ns := strings.ToLower(strings.TrimSpace(namespace))
	if p[ns] == nil {
		p[ns] = make(map[string]string)
	}
	p[ns][strings.TrimSpace(key)] = value
}

// Has reports whether the namespace has any key.
func (p Profiles) Has(namespace string) bool {
	return len(p[namespace]) > 0
}

// Keys returns the keys of a namespace, sorted.
func (p Profiles) Keys(namespace string) []string {
	keys := make([]string, 0, len(p[namespace]))
	for k := range p[namespace] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Merge combines two profile sets into a new one. Within a namespace that
// both define, keys of high override keys of low.
func Merge(high, low Profiles) Profiles {
	out := make(Profiles, len(high)+len(low))
	for ns, kv := range low {
		out[ns] = make(map[string]string, len(kv))
		for k, v := range kv {
			out[ns][k] = v
		}
	}
	for ns, kv := range high {
		if out[ns] == nil {
			out[ns] = make(map[string]string, len(kv))
		}
		for k, v := range kv {
			out[ns][k] = v
		}
	}
	return out
}
