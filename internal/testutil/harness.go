package testutil

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/shplanner/internal/app"
	"github.com/vk/shplanner/internal/planner"
)

// DirPlaceholder is replaced with the test's root directory in every file
// handed to the harness, so catalogs can point at files inside it.
const DirPlaceholder = "{{dir}}"

// Well-known file names. When present they are wired into the config.
const (
	WorkflowFile        = "workflow.hcl"
	ReplicaFile         = "rc.hcl"
	TransformationsFile = "tc.hcl"
	SitesFile           = "sc.hcl"
)

// HarnessResult holds the outcomes of an integration test run.
type HarnessResult struct {
	Dir       string
	OutputDir string
	LogOutput string
	Outcome   planner.Outcome
	Err       error
}

// Planned returns the outcome as *planner.Planned and fails the test if the
// run did not write scripts.
func (r *HarnessResult) Planned(t *testing.T) *planner.Planned {
	t.Helper()
	require.NoError(t, r.Err)
	planned, ok := r.Outcome.(*planner.Planned)
	require.True(t, ok, "expected a planned outcome, got %T", r.Outcome)
	return planned
}

// Path joins elem onto the test's root directory.
func (r *HarnessResult) Path(elem ...string) string {
	return filepath.Join(append([]string{r.Dir}, elem...)...)
}

// Workspace is a temporary directory holding a workflow and its catalogs.
// It can be run more than once, which is how make mode is exercised.
type Workspace struct {
	t   *testing.T
	Dir string
	Cfg app.Config
}

// NewWorkspace writes files below a fresh temporary directory. Paths are
// relative and may contain subdirectories.
func NewWorkspace(t *testing.T, files map[string]string) *Workspace {
	t.Helper()

	tmpDir := t.TempDir()
	for name, content := range files {
		filePath := filepath.Join(tmpDir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(filePath), 0o755))
		content = strings.ReplaceAll(content, DirPlaceholder, tmpDir)
		require.NoError(t, os.WriteFile(filePath, []byte(content), 0o644))
	}

	cfg := app.Config{
		WorkflowPath: filepath.Join(tmpDir, WorkflowFile),
		OutputDir:    filepath.Join(tmpDir, "out"),
		Mode:         "build",
	}
	optional := map[string]*string{
		ReplicaFile:         &cfg.ReplicaCatalog,
		TransformationsFile: &cfg.TransformationCatalog,
		SitesFile:           &cfg.SiteCatalog,
	}
	for name, field := range optional {
		if _, ok := files[name]; ok {
			*field = filepath.Join(tmpDir, name)
		}
	}
	return &Workspace{t: t, Dir: tmpDir, Cfg: cfg}
}

// Run plans the workspace's workflow in the given mode.
func (w *Workspace) Run(ctx context.Context, mode string) *HarnessResult {
	w.t.Helper()

	cfg := w.Cfg
	cfg.Mode = mode
	result := &HarnessResult{Dir: w.Dir, OutputDir: cfg.OutputDir}

	valid, err := app.NewConfig(cfg)
	if err != nil {
		result.Err = err
		return result
	}
	testApp, logBuffer := app.SetupAppTest(w.t, valid)
	result.Outcome, result.Err = testApp.Run(ctx)
	result.LogOutput = logBuffer.String()
	return result
}

// RunIntegrationTest writes files to a temporary directory and plans the
// workflow once in build mode.
func RunIntegrationTest(t *testing.T, files map[string]string) *HarnessResult {
	t.Helper()
	return NewWorkspace(t, files).Run(context.Background(), "build")
}
