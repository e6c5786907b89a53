package planner

import "errors"

// Error classes of a failed run. Every error returned by Run wraps exactly
// one of them unless it comes from a catalog backend.
var (
	// ErrInput marks a broken workflow: no jobs, a dependency cycle or a
	// reference to a file missing from the manifest.
	ErrInput = errors.New("invalid workflow")
	// ErrOutputDir marks an output directory that cannot be used.
	ErrOutputDir = errors.New("unusable output directory")
	// ErrEmission marks a job script that could not be generated.
	ErrEmission = errors.New("script emission failed")
)

// Outcome is the result of a successful run. It is one of *Planned or
// *Satisfied.
type Outcome interface {
	outcome()
}

// Planned reports the scripts written by a run.
type Planned struct {
	Workflow string
	// ControlScript is the path of the script that runs the workflow.
	ControlScript string
	// Scripts lists the job scripts in the order they were sequenced.
	Scripts []string
	Jobs    int
	Stages  int
	// Pruned lists the jobs removed by make-mode reduction.
	Pruned []string
	// PermissionErr is set when some scripts could not be made executable.
	// The scripts themselves are complete.
	PermissionErr error
}

// Satisfied reports that every output of the workflow already exists and
// nothing was written.
type Satisfied struct {
	Workflow string
	// Checked lists the jobs whose outputs were found.
	Checked []string
}

func (*Planned) outcome()   {}
func (*Satisfied) outcome() {}
