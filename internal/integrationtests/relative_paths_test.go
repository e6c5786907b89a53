package integration_tests

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/shplanner/internal/planner"
	"github.com/vk/shplanner/internal/testutil"
)

const relativeWorkflow = `
workflow "rel" {}

job "ID1" {
  name      = "produce"
  arguments = [lfn("f.out")]
  uses "f.out" { link = "output" }
}
`

// Without a replica catalog every filename is relative to the directory the
// planner runs in, while job scripts change into the output directory.
func TestRelativeFilenames_MakeAfterRunIsSatisfied(t *testing.T) {
	touch := lookPath(t, "touch")
	ws := testutil.NewWorkspace(t, map[string]string{
		testutil.WorkflowFile:        relativeWorkflow,
		testutil.TransformationsFile: fmt.Sprintf("transformation \"produce\" {\n  pfn = %q\n}\n", touch),
	})
	ws.Cfg.OutputDir = "out"
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(ws.Dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	ctx := context.Background()

	planned := ws.Run(ctx, "make").Planned(t)
	out, err := testutil.RunControlScript(t, planned.ControlScript)
	require.NoError(t, err, out)

	assert.FileExists(t, filepath.Join(ws.Dir, "f.out"))
	assert.NoFileExists(t, filepath.Join(ws.Dir, "out", "f.out"))

	second := ws.Run(ctx, "make")
	require.NoError(t, second.Err)
	_, ok := second.Outcome.(*planner.Satisfied)
	assert.True(t, ok, "expected a satisfied outcome, got %T", second.Outcome)
}
