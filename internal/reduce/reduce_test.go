package reduce

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/shplanner/internal/ctxlog"
	"github.com/vk/shplanner/internal/dag"
	"github.com/vk/shplanner/internal/resolver"
	"github.com/vk/shplanner/internal/workflow"
)

// fakeFS answers existence checks from a fixed set and records every check.
type fakeFS struct {
	mu      sync.Mutex
	present map[string]bool
	broken  map[string]bool
	checked []string
}

func newFakeFS(present ...string) *fakeFS {
	f := &fakeFS{present: make(map[string]bool), broken: make(map[string]bool)}
	for _, p := range present {
		f.present[p] = true
	}
	return f
}

func (f *fakeFS) Exists(_ context.Context, pfn string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checked = append(f.checked, pfn)
	if f.broken[pfn] {
		return false, errors.New("storage unreachable")
	}
	return f.present[pfn], nil
}

func (f *fakeFS) checks() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]string(nil), f.checked...)
	sort.Strings(out)
	return out
}

func in(lfn string) workflow.FileUse  { return workflow.FileUse{LFN: lfn, Link: workflow.LinkInput} }
func out(lfn string) workflow.FileUse { return workflow.FileUse{LFN: lfn, Link: workflow.LinkOutput} }

// build assembles a workflow from jobs and parent->child edges and returns
// its graph and job index.
func build(t *testing.T, jobs []*workflow.Job, edges ...[2]string) (*dag.Graph, map[string]*workflow.Job) {
	t.Helper()
	w := workflow.New("test")
	index := make(map[string]*workflow.Job)
	for _, j := range jobs {
		require.NoError(t, w.AddJob(j))
		index[j.ID] = j
	}
	for _, e := range edges {
		w.AddDependency(e[0], e[1])
	}
	g, err := workflow.BuildGraph(ctxlog.Discard(context.Background()), w)
	require.NoError(t, err)
	return g, index
}

func diamond(t *testing.T) (*dag.Graph, map[string]*workflow.Job) {
	return build(t, []*workflow.Job{
		{ID: "A", Uses: []workflow.FileUse{in("f.a"), out("f.b1"), out("f.b2")}},
		{ID: "B", Uses: []workflow.FileUse{in("f.b1"), out("f.c1")}},
		{ID: "C", Uses: []workflow.FileUse{in("f.b2"), out("f.c2")}},
		{ID: "D", Uses: []workflow.FileUse{in("f.c1"), in("f.c2"), out("f.d")}},
	}, [2]string{"A", "B"}, [2]string{"A", "C"}, [2]string{"B", "D"}, [2]string{"C", "D"})
}

func newReducer(fs *fakeFS) *Reducer {
	return &Reducer{Files: resolver.FilenameMap{}, Exists: fs}
}

func TestReduce_Diamond_FinalOutputExists(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())
	g, jobs := diamond(t)
	fs := newFakeFS("f.d")

	report, err := newReducer(fs).Reduce(ctx, g, jobs)
	require.NoError(t, err)

	assert.True(t, report.Satisfied)
	assert.Equal(t, []string{"D"}, report.Cut)
	assert.Empty(t, report.Drained)
	assert.Equal(t, 1, report.Stages)
	assert.Equal(t, []string{"f.d"}, fs.checks(), "only the sink is examined")
}

func TestReduce_Diamond_IntermediatesExist(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())
	g, jobs := diamond(t)
	fs := newFakeFS("f.c1", "f.c2")

	report, err := newReducer(fs).Reduce(ctx, g, jobs)
	require.NoError(t, err)

	assert.False(t, report.Satisfied)
	assert.Equal(t, []string{"B", "C"}, report.Cut)
	assert.Equal(t, []string{"A"}, report.Drained)
	assert.Equal(t, []string{"D"}, g.Nodes())
	assert.Equal(t, []string{"f.c1", "f.c2", "f.d"}, fs.checks(), "A's outputs are never checked")
}

func TestReduce_NothingExists(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())
	g, jobs := diamond(t)

	report, err := newReducer(newFakeFS()).Reduce(ctx, g, jobs)
	require.NoError(t, err)

	assert.False(t, report.Satisfied)
	assert.Empty(t, report.Cut)
	assert.Empty(t, report.Drained)
	assert.Equal(t, 3, report.Stages)
	assert.Equal(t, []string{"A", "B", "C", "D"}, g.Nodes())
}

func TestReduce_SharedInputTieBreak(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())
	g, jobs := build(t, []*workflow.Job{
		{ID: "P", Uses: []workflow.FileUse{out("f.in")}},
		{ID: "X", Uses: []workflow.FileUse{in("f.in"), out("x.out")}},
		{ID: "Y", Uses: []workflow.FileUse{in("f.in"), out("y.out")}},
	}, [2]string{"P", "X"}, [2]string{"P", "Y"})
	fs := newFakeFS("x.out")

	report, err := newReducer(fs).Reduce(ctx, g, jobs)
	require.NoError(t, err)

	assert.Equal(t, []string{"X"}, report.Cut)
	assert.NotContains(t, report.ExistMap, "f.in", "the job that still runs wins")
	assert.Equal(t, []string{"P", "Y"}, g.Nodes())
	assert.Contains(t, fs.checks(), "f.in", "P's output is checked on disk")
}

func TestReduce_CutInputsPropagateUpstream(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())
	g, jobs := build(t, []*workflow.Job{
		{ID: "P", Uses: []workflow.FileUse{out("f.in")}},
		{ID: "Q", Uses: []workflow.FileUse{out("g.in")}},
		{ID: "X", Uses: []workflow.FileUse{in("f.in"), out("x.out")}},
		{ID: "Y", Uses: []workflow.FileUse{in("g.in"), out("y.out")}},
	}, [2]string{"P", "X"}, [2]string{"Q", "Y"})
	fs := newFakeFS("x.out")

	report, err := newReducer(fs).Reduce(ctx, g, jobs)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"f.in": "f.in"}, report.ExistMap)
	assert.Equal(t, []string{"X", "P"}, report.Cut, "P is cut on the strength of X's cut")
	assert.Equal(t, []string{"Q", "Y"}, g.Nodes())
	assert.NotContains(t, fs.checks(), "f.in")
}

func TestReduce_InoutCountsBothWays(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())
	g, jobs := build(t, []*workflow.Job{
		{ID: "P", Uses: []workflow.FileUse{out("f.db")}},
		{ID: "U", Uses: []workflow.FileUse{{LFN: "f.db", Link: workflow.LinkInout}, out("u.log")}},
		{ID: "Z", Uses: []workflow.FileUse{out("z.out")}},
	}, [2]string{"P", "U"})
	fs := newFakeFS("f.db", "u.log")

	report, err := newReducer(fs).Reduce(ctx, g, jobs)
	require.NoError(t, err)

	assert.Equal(t, []string{"U", "P"}, report.Cut, "U's inout file counts as P's output")
	assert.Equal(t, map[string]string{"f.db": "f.db"}, report.ExistMap)
	assert.Equal(t, []string{"Z"}, g.Nodes())
	assert.Equal(t, []string{"f.db", "u.log", "z.out"}, fs.checks())
}

func TestReduce_ExistenceErrorKeepsJob(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())
	g, jobs := diamond(t)
	fs := newFakeFS("f.d")
	fs.broken["f.d"] = true

	report, err := newReducer(fs).Reduce(ctx, g, jobs)
	require.NoError(t, err)

	assert.False(t, report.Satisfied)
	assert.NotContains(t, report.Cut, "D")
	assert.True(t, g.Has("D"))
}

func TestReduce_Idempotent(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())
	fs := newFakeFS("f.b1", "f.b2", "f.c1", "f.c2", "f.d")

	for run := 0; run < 2; run++ {
		g, jobs := diamond(t)
		report, err := newReducer(fs).Reduce(ctx, g, jobs)
		require.NoError(t, err)
		assert.True(t, report.Satisfied, "run %d", run)
	}
}

func TestReduce_Safety(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())
	scenarios := [][]string{
		{},
		{"f.d"},
		{"f.c1"},
		{"f.c1", "f.c2"},
		{"f.b1", "f.c2"},
		{"f.b1", "f.b2"},
	}
	for _, present := range scenarios {
		g, jobs := diamond(t)
		fs := newFakeFS(present...)
		report, err := newReducer(fs).Reduce(ctx, g, jobs)
		require.NoError(t, err)

		assumed := report.ExistMap
		for _, id := range report.Cut {
			for _, use := range jobs[id].Uses {
				if !use.Link.IsOutput() {
					continue
				}
				_, ok := assumed[use.LFN]
				assert.True(t, fs.present[use.LFN] || ok,
					"job %s cut with missing output %s (present %v)", id, use.LFN, present)
			}
		}
	}
}

func TestReduce_UnknownJob(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())
	g, _ := diamond(t)
	_, err := newReducer(newFakeFS()).Reduce(ctx, g, map[string]*workflow.Job{})
	assert.ErrorContains(t, err, "not in the workflow")
}
