package reduce

import (
	"context"
	"fmt"
	"maps"

	"github.com/vk/shplanner/internal/ctxlog"
	"github.com/vk/shplanner/internal/dag"
	"github.com/vk/shplanner/internal/fsutil"
	"github.com/vk/shplanner/internal/workflow"
)

// FileResolver turns a logical filename into the physical one that is
// checked on disk.
type FileResolver interface {
	Resolve(lfn string) string
}

// Reducer holds the collaborators of a reduction pass.
type Reducer struct {
	Files  FileResolver
	Exists fsutil.Checker
}

// Report describes what a reduction pass did to the graph.
type Report struct {
	// Satisfied is true when the first examined stage was cut entirely, so
	// no job needs to run.
	Satisfied bool
	// Cut lists the jobs removed because their outputs exist, in the order
	// they were examined.
	Cut []string
	// Drained lists the upstream jobs removed without checks after a fully
	// cut stage.
	Drained []string
	// Stages is the number of reversed stages examined.
	Stages int
	// ExistMap is the final table of files assumed present (lfn -> pfn).
	ExistMap map[string]string
}

// Reduce removes every job from g whose outputs already exist, propagating
// satisfaction upstream. jobs maps every vertex of g to its job.
//
// The add and remove sets accumulate over the whole pass and are never reset
// between stages.
func (r *Reducer) Reduce(ctx context.Context, g *dag.Graph, jobs map[string]*workflow.Job) (Report, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Reduction started.", "jobs", g.Len())

	reversed := g.Reverse()
	stages := dag.NewStages(reversed)

	report := Report{ExistMap: make(map[string]string)}
	existMap := report.ExistMap
	addMap := make(map[string]string)
	removeMap := make(map[string]string)
	lastStage := true

	for {
		stage, ok := stages.Next()
		if !ok {
			break
		}
		report.Stages = stages.Count()
		stageCtx, stageLogger := ctxlog.With(ctx, "stage", report.Stages)

		count := 0
		for _, id := range stage {
			j, ok := jobs[id]
			if !ok {
				return report, fmt.Errorf("stage %d: job %s is in the graph but not in the workflow", report.Stages, id)
			}
			cut, inputMap := r.examine(stageCtx, existMap, j)
			if cut {
				g.RemoveVertex(id)
				reversed.RemoveVertex(id)
				maps.Copy(addMap, inputMap)
				report.Cut = append(report.Cut, id)
				count++
				stageLogger.Debug("Job outputs exist, cutting.", "job", id)
			} else {
				maps.Copy(removeMap, inputMap)
				stageLogger.Debug("Job must run.", "job", id)
			}
		}

		switch {
		case count == len(stage) && lastStage:
			stageLogger.Info("Every output of the workflow exists.", "cut", count)
			report.Satisfied = true
			return report, nil

		case count == len(stage):
			report.Drained = stages.Drain()
			for _, id := range report.Drained {
				g.RemoveVertex(id)
			}
			stageLogger.Info("Stage fully satisfied, removing all upstream jobs.", "cut", count, "drained", len(report.Drained))
			return report, nil

		case count == 0:
			lastStage = false

		default:
			maps.Copy(existMap, addMap)
			for lfn := range removeMap {
				delete(existMap, lfn)
			}
			lastStage = false
			stageLogger.Debug("Stage partially cut.", "cut", count, "of", len(stage), "assumed_present", len(existMap))
		}
	}

	if err := stages.Err(); err != nil {
		return report, fmt.Errorf("reduction: %w", err)
	}
	logger.Info("Reduction finished.", "stages", report.Stages, "cut", len(report.Cut), "remaining", g.Len())
	return report, nil
}

// examine decides whether j can be cut and collects the inputs it reads.
// Files already in existMap are taken as verified and skipped. A failed
// existence check counts as a missing output.
func (r *Reducer) examine(ctx context.Context, existMap map[string]string, j *workflow.Job) (bool, map[string]string) {
	logger := ctxlog.FromContext(ctx)
	cut := true
	inputMap := make(map[string]string)

	for _, use := range j.Uses {
		if _, known := existMap[use.LFN]; known {
			continue
		}
		pfn := r.Files.Resolve(use.LFN)
		if use.Link.IsOutput() {
			exists, err := r.Exists.Exists(ctx, pfn)
			if err != nil {
				logger.Warn("Cannot check output, assuming it is missing.", "job", j.ID, "lfn", use.LFN, "pfn", pfn, "error", err)
				exists = false
			}
			if !exists {
				cut = false
			}
		}
		if use.Link.IsInput() {
			inputMap[use.LFN] = pfn
		}
	}
	return cut, inputMap
}
