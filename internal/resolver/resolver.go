// Package resolver maps the logical filenames of a workflow to physical ones.
package resolver

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/vk/shplanner/internal/catalog"
	"github.com/vk/shplanner/internal/ctxlog"
	"github.com/vk/shplanner/internal/fsutil"
)

// FilenameMap is the LFN -> PFN mapping of one planning run. It is built
// once and only read afterwards.
type FilenameMap map[string]string

// Build looks every lfn up in the replica catalog for site. An LFN the
// catalog does not know maps to itself. Relative local paths are made
// absolute against the working directory, because job scripts run from the
// output directory while existence checks run from here. Backend errors
// abort the build.
func Build(ctx context.Context, replicas catalog.Replicas, site string, lfns []string) (FilenameMap, error) {
	logger := ctxlog.FromContext(ctx)
	m := make(FilenameMap, len(lfns))
	misses := 0
	for _, lfn := range lfns {
		if _, seen := m[lfn]; seen {
			continue
		}
		pfn, ok, err := replicas.Lookup(ctx, site, lfn)
		if err != nil {
			return nil, fmt.Errorf("resolving %s at site %s: %w", lfn, site, err)
		}
		if !ok {
			logger.Info("No replica registered, using the logical name.", "lfn", lfn, "site", site)
			pfn = lfn
			misses++
		}
		if pfn, err = absolute(pfn); err != nil {
			return nil, fmt.Errorf("resolving %s: %w", lfn, err)
		}
		m[lfn] = pfn
	}
	logger.Debug("Filename map built.", "lfns", len(m), "misses", misses)
	return m, nil
}

// Lookup returns the PFN of lfn and whether lfn is part of the map.
func (m FilenameMap) Lookup(lfn string) (string, bool) {
	pfn, ok := m[lfn]
	return pfn, ok
}

// Resolve returns the PFN of lfn, or lfn itself when it is not mapped.
func (m FilenameMap) Resolve(lfn string) string {
	if pfn, ok := m[lfn]; ok {
		return pfn
	}
	return lfn
}

// absolute anchors a relative local path to the working directory. URLs and
// absolute paths are returned unchanged.
func absolute(pfn string) (string, error) {
	if fsutil.Scheme(pfn) != "" || filepath.IsAbs(pfn) {
		return pfn, nil
	}
	return filepath.Abs(pfn)
}
