package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/vk/shplanner/internal/catalog"
	"github.com/vk/shplanner/internal/ctxlog"
	"github.com/vk/shplanner/internal/hcl_adapter"
	"github.com/vk/shplanner/internal/script"
)

// RegisterOutputs records the files of a job's output list in the replica
// catalog, at the configured site. Records the catalog already holds are
// skipped. It returns the number of new records.
func (a *App) RegisterOutputs(ctx context.Context) (int, error) {
	ctx = a.Context(ctx)
	logger := ctxlog.FromContext(ctx)

	f, err := os.Open(a.config.RegisterOutputs)
	if err != nil {
		return 0, fmt.Errorf("opening output list: %w", err)
	}
	outputs, err := script.ReadOutputList(f)
	_ = f.Close()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", a.config.RegisterOutputs, err)
	}
	records := make([]catalog.Replica, 0, len(outputs))
	for _, o := range outputs {
		records = append(records, catalog.Replica{LFN: o.LFN, PFN: o.PFN, Site: a.config.Site})
	}

	switch {
	case a.config.ReplicaDSN != "":
		rc, err := catalog.NewPostgresReplicas(ctx, a.config.ReplicaDSN)
		if err != nil {
			return 0, err
		}
		defer rc.Close()
		fresh, err := catalog.Unregistered(ctx, rc, records)
		if err != nil {
			return 0, err
		}
		for _, r := range fresh {
			if err := rc.Register(ctx, r); err != nil {
				return 0, err
			}
		}
		logger.Info("Outputs registered.", "backend", "postgres", "new", len(fresh), "listed", len(records))
		return len(fresh), nil

	case a.config.ReplicaCatalog != "":
		rc, err := a.loader.LoadReplicas(ctx, a.config.ReplicaCatalog)
		if err != nil {
			return 0, fmt.Errorf("loading replica catalog: %w", err)
		}
		fresh, err := catalog.Unregistered(ctx, rc, records)
		if err != nil {
			return 0, err
		}
		path, err := hcl_adapter.AppendReplicas(a.config.ReplicaCatalog, fresh)
		if err != nil {
			return 0, err
		}
		logger.Info("Outputs registered.", "path", path, "new", len(fresh), "listed", len(records))
		return len(fresh), nil
	}
	return 0, errors.New("no replica catalog to register outputs in: set -rc or -rc-dsn")
}
