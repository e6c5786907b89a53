package app

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/vk/shplanner/internal/catalog"
	"github.com/vk/shplanner/internal/ctxlog"
	"github.com/vk/shplanner/internal/fsutil"
)

// openReplicas picks the replica catalog backend. A DSN selects Postgres,
// otherwise the catalog files are loaded into memory. The returned close
// function releases the backend.
func (a *App) openReplicas(ctx context.Context) (catalog.Replicas, func() error, error) {
	logger := ctxlog.FromContext(ctx)
	noop := func() error { return nil }

	if a.config.ReplicaDSN == "" {
		rc, err := a.loader.LoadReplicas(ctx, a.config.ReplicaCatalog)
		if err != nil {
			return nil, nil, fmt.Errorf("loading replica catalog: %w", err)
		}
		logger.Debug("Replica catalog loaded from files.", "path", a.config.ReplicaCatalog)
		return rc, noop, nil
	}

	db, err := catalog.NewPostgresReplicas(ctx, a.config.ReplicaDSN)
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("Replica catalog connected.", "backend", "postgres")
	if a.config.ReplicaCacheSize == 0 {
		return db, db.Close, nil
	}
	cached, err := catalog.NewCachedReplicas(db, a.config.ReplicaCacheSize)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return cached, db.Close, nil
}

// openSite loads the site catalog and returns the configured site, or nil
// when the catalog does not describe it.
func (a *App) openSite(ctx context.Context) (*catalog.Site, error) {
	if a.config.SiteCatalog == "" {
		return nil, nil
	}
	sites, err := a.loader.LoadSites(ctx, a.config.SiteCatalog)
	if err != nil {
		return nil, fmt.Errorf("loading site catalog: %w", err)
	}
	site, ok := sites.Lookup(a.config.Site)
	if !ok {
		ctxlog.FromContext(ctx).Warn("Site not found in site catalog.", "site", a.config.Site)
		return nil, nil
	}
	return site, nil
}

// existenceChecker checks local paths, and s3:// URLs when S3 is configured.
func (a *App) existenceChecker() (fsutil.Checker, error) {
	mux := fsutil.NewMux(fsutil.Local{})
	if a.config.S3.Enabled() {
		s3, err := fsutil.NewS3Checker(a.config.S3)
		if err != nil {
			return nil, err
		}
		mux.Handle("s3", s3)
	}
	return mux, nil
}

// registrar is the command job scripts run to record their outputs, or nil
// when there is no catalog to record them in.
func (a *App) registrar() ([]string, error) {
	if !a.config.Register || a.config.Executable == "" {
		return nil, nil
	}
	cmd := []string{a.config.Executable, "-site", a.config.Site}
	switch {
	case a.config.ReplicaDSN != "":
		// The DSN stays out of generated scripts; jobs read it from
		// SHPLANNER_RC_DSN.
		return cmd, nil
	case a.config.ReplicaCatalog != "":
		path, err := filepath.Abs(a.config.ReplicaCatalog)
		if err != nil {
			return nil, fmt.Errorf("replica catalog path: %w", err)
		}
		return append(cmd, "-rc", path), nil
	}
	return nil, nil
}
