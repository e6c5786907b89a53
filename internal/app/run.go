package app

import (
	"context"
	"fmt"

	"github.com/vk/shplanner/internal/ctxlog"
	"github.com/vk/shplanner/internal/planner"
)

// Run loads the workflow and the catalogs, plans the workflow and reports
// the outcome to the user.
func (a *App) Run(ctx context.Context) (planner.Outcome, error) {
	ctx = a.Context(ctx)
	logger := ctxlog.FromContext(ctx)
	logger.Debug("App.Run method started.")

	w, err := a.loader.LoadWorkflow(ctx, a.config.WorkflowPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", planner.ErrInput, err)
	}

	replicas, closeReplicas, err := a.openReplicas(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := closeReplicas(); err != nil {
			logger.Warn("Closing replica catalog failed.", "error", err)
		}
	}()

	tc, err := a.loader.LoadTransformations(ctx, a.config.TransformationCatalog)
	if err != nil {
		return nil, fmt.Errorf("loading transformation catalog: %w", err)
	}
	site, err := a.openSite(ctx)
	if err != nil {
		return nil, err
	}
	exists, err := a.existenceChecker()
	if err != nil {
		return nil, err
	}

	mode, err := planner.ParseMode(a.config.Mode)
	if err != nil {
		return nil, err
	}
	registrar, err := a.registrar()
	if err != nil {
		return nil, err
	}
	p := planner.New(w, replicas, tc, site, exists, planner.Options{
		Mode:         mode,
		Site:         a.config.Site,
		OutputDir:    a.config.OutputDir,
		TemplatesDir: a.config.TemplatesDir,
		Kickstart:    a.config.Kickstart,
		Register:     a.config.Register,
		Registrar:    registrar,
	})
	outcome, err := p.Run(ctx)
	if err != nil {
		return nil, err
	}

	a.report(outcome)
	logger.Debug("App.Run method finished.")
	return outcome, nil
}

func (a *App) report(outcome planner.Outcome) {
	switch o := outcome.(type) {
	case *planner.Planned:
		fmt.Fprintf(a.outW, "Planned %d job(s) in %d stage(s) for workflow %s.\n", o.Jobs, o.Stages, o.Workflow)
		if len(o.Pruned) > 0 {
			fmt.Fprintf(a.outW, "Skipped %d job(s) whose outputs already exist.\n", len(o.Pruned))
		}
		fmt.Fprintf(a.outW, "Control script: %s\nRun it with: /bin/bash %s\n", o.ControlScript, o.ControlScript)
		if o.PermissionErr != nil {
			fmt.Fprintf(a.outW, "Warning: some scripts are not executable: %v\n", o.PermissionErr)
		}
	case *planner.Satisfied:
		fmt.Fprintf(a.outW, "Workflow %s is already satisfied, no scripts were written.\n", o.Workflow)
	}
}
