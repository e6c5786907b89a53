package planner

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/vk/shplanner/internal/catalog"
	"github.com/vk/shplanner/internal/ctxlog"
	"github.com/vk/shplanner/internal/dag"
	"github.com/vk/shplanner/internal/fsutil"
	"github.com/vk/shplanner/internal/reduce"
	"github.com/vk/shplanner/internal/resolver"
	"github.com/vk/shplanner/internal/script"
	"github.com/vk/shplanner/internal/workflow"
)

// Options tunes a run.
type Options struct {
	Mode Mode
	// Site is the replica catalog site logical filenames are resolved on.
	Site string
	// OutputDir receives every artifact. It is created if missing.
	OutputDir    string
	TemplatesDir string
	Kickstart    string
	Register     bool
	// Registrar records job outputs in the replica catalog; see
	// script.Options.
	Registrar []string
	// RunID identifies the run; a random UUID is used when empty.
	RunID string
}

// Planner plans one workflow. Build a new one for every run.
type Planner struct {
	workflow        *workflow.Workflow
	replicas        catalog.Replicas
	transformations catalog.Transformations
	site            *catalog.Site
	exists          fsutil.Checker
	opts            Options
}

// New creates a Planner. site may be nil.
func New(w *workflow.Workflow, replicas catalog.Replicas, transformations catalog.Transformations, site *catalog.Site, exists fsutil.Checker, opts Options) *Planner {
	if opts.Site == "" {
		opts.Site = script.LocalSite
	}
	if opts.OutputDir == "" {
		opts.OutputDir = w.Name
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	return &Planner{
		workflow:        w,
		replicas:        replicas,
		transformations: transformations,
		site:            site,
		exists:          exists,
		opts:            opts,
	}
}

// Run plans the workflow. Nothing is written before the workflow has been
// validated; when emission fails midway the scripts written so far stay on
// disk.
func (p *Planner) Run(ctx context.Context) (Outcome, error) {
	ctx, logger := ctxlog.With(ctx, "workflow", p.workflow.Name, "run_id", p.opts.RunID)
	logger.Info("Planning started.", "mode", p.opts.Mode.String(), "jobs", len(p.workflow.Jobs))

	if len(p.workflow.Jobs) == 0 {
		return nil, fmt.Errorf("%w: workflow %s has no jobs", ErrInput, p.workflow.Name)
	}
	g, err := workflow.BuildGraph(ctx, p.workflow)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInput, err)
	}
	if err := g.DetectCycles(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInput, err)
	}

	files, err := resolver.Build(ctx, p.replicas, p.opts.Site, p.workflow.LFNs())
	if err != nil {
		return nil, err
	}

	jobs := make(map[string]*workflow.Job, len(p.workflow.Jobs))
	for _, j := range p.workflow.Jobs {
		jobs[j.ID] = j
	}

	var pruned []string
	if p.opts.Mode == ModeMake {
		r := &reduce.Reducer{Files: files, Exists: p.exists}
		report, err := r.Reduce(ctx, g, jobs)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInput, err)
		}
		if report.Satisfied {
			logger.Info("Workflow is already satisfied, nothing to do.")
			return &Satisfied{Workflow: p.workflow.Name, Checked: report.Cut}, nil
		}
		pruned = append(append(pruned, report.Cut...), report.Drained...)
		logger.Info("DAG pruned.", "pruned", len(pruned), "remaining", g.Len())
	} else {
		logger.Info("DAG pruning skipped.")
	}

	if err := validate(g, jobs, files); err != nil {
		return nil, err
	}

	if err := fsutil.EnsureDir(p.opts.OutputDir); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOutputDir, err)
	}

	planned, err := p.emit(ctx, g, jobs, files)
	if err != nil {
		return nil, err
	}
	planned.Pruned = pruned

	n, err := fsutil.MakeExecutable(p.opts.OutputDir, ".sh")
	if err != nil {
		logger.Warn("Some scripts could not be made executable.", "error", err)
		planned.PermissionErr = err
	}
	logger.Info("Planning finished.", "control_script", planned.ControlScript, "jobs", planned.Jobs, "stages", planned.Stages, "executable", n)
	return planned, nil
}

// validate checks that every job left in g only references files of the
// manifest. It walks the stages on its own traversal, leaving g untouched.
func validate(g *dag.Graph, jobs map[string]*workflow.Job, files resolver.FilenameMap) error {
	stages := dag.NewStages(g)
	for {
		stage, ok := stages.Next()
		if !ok {
			return nil
		}
		for _, id := range stage {
			for _, lfn := range script.ReferencedLFNs(jobs[id]) {
				if _, ok := files.Lookup(lfn); !ok {
					return fmt.Errorf("%w: stage %d, job %s: %w: %s", ErrInput, stages.Count(), id, script.ErrUnknownLFN, lfn)
				}
			}
		}
	}
}

// emit writes the job scripts stage by stage and the control script around
// them.
func (p *Planner) emit(ctx context.Context, g *dag.Graph, jobs map[string]*workflow.Job, files resolver.FilenameMap) (*Planned, error) {
	logger := ctxlog.FromContext(ctx)
	s := script.New(ctx, script.Options{
		Dir:          p.opts.OutputDir,
		Label:        p.workflow.Name,
		TemplatesDir: p.opts.TemplatesDir,
		Kickstart:    p.opts.Kickstart,
		Register:     p.opts.Register,
		Registrar:    p.opts.Registrar,
		RunID:        p.opts.RunID,
	}, files, p.transformations, p.site)
	defer s.Close()

	name, err := s.InitializeControlScript(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmission, err)
	}
	planned := &Planned{
		Workflow:      p.workflow.Name,
		ControlScript: filepath.Join(p.opts.OutputDir, name),
	}

	stages := dag.NewStages(g)
	for {
		stage, ok := stages.Next()
		if !ok {
			break
		}
		k := stages.Count()
		stageCtx, stageLogger := ctxlog.With(ctx, "stage", k)
		stageLogger.Debug("Emitting stage.", "jobs", len(stage))
		for _, id := range stage {
			scriptFile, err := s.ProcessJob(stageCtx, jobs[id], k == 1)
			if err != nil {
				class := ErrEmission
				if errors.Is(err, script.ErrUnknownLFN) {
					class = ErrInput
				}
				return nil, fmt.Errorf("%w: stage %d, job %s: %w", class, k, id, err)
			}
			planned.Scripts = append(planned.Scripts, scriptFile)
			planned.Jobs++
		}
		if err := s.IntermediateControlScript(stageCtx); err != nil {
			return nil, fmt.Errorf("%w: stage %d: %w", ErrEmission, k, err)
		}
	}
	if err := stages.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInput, err)
	}
	planned.Stages = stages.Count()

	if err := s.FinalizeControlScript(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmission, err)
	}
	logger.Debug("Control script written.", "path", planned.ControlScript)
	return planned, nil
}
