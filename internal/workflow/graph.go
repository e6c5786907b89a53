package workflow

import (
	"context"
	"fmt"

	"github.com/vk/shplanner/internal/ctxlog"
	"github.com/vk/shplanner/internal/dag"
)

// BuildGraph constructs the dependency graph of the workflow. It does not
// check for cycles; the planner does that so a cycle is reported as an
// input error of the run.
func BuildGraph(ctx context.Context, w *Workflow) (*dag.Graph, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("BuildGraph: Starting graph construction.", "workflow", w.Name)
	g := dag.New()

	// First pass: one vertex per job.
	for _, j := range w.Jobs {
		g.AddNode(j.ID)
	}
	logger.Debug("BuildGraph: Node creation complete.", "node_count", g.Len())

	// Second pass: link parents to children.
	for _, d := range w.Dependencies {
		if _, ok := w.Job(d.Parent); !ok {
			return nil, fmt.Errorf("job %s depends on unknown job %s", d.Child, d.Parent)
		}
		if _, ok := w.Job(d.Child); !ok {
			return nil, fmt.Errorf("dependency on %s declared for unknown job %s", d.Parent, d.Child)
		}
		if err := g.AddEdge(d.Parent, d.Child); err != nil {
			return nil, fmt.Errorf("linking %s -> %s: %w", d.Parent, d.Child, err)
		}
	}
	logger.Debug("BuildGraph: Node linking complete.", "edge_count", len(w.Dependencies))

	return g, nil
}
