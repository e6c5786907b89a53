package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/shplanner/internal/ctxlog"
)

func TestParseLink(t *testing.T) {
	cases := map[string]Link{
		"input":  LinkInput,
		"in":     LinkInput,
		"OUTPUT": LinkOutput,
		"out":    LinkOutput,
		"inout":  LinkInout,
		"none":   LinkNone,
		"":       LinkNone,
	}
	for in, want := range cases {
		got, err := ParseLink(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLink("sideways")
	assert.ErrorContains(t, err, "unknown link")
}

func TestLinkDirections(t *testing.T) {
	assert.True(t, LinkInput.IsInput())
	assert.False(t, LinkInput.IsOutput())
	assert.True(t, LinkOutput.IsOutput())
	assert.True(t, LinkInout.IsInput())
	assert.True(t, LinkInout.IsOutput())
	assert.False(t, LinkNone.IsInput())
	assert.False(t, LinkNone.IsOutput())
	assert.Equal(t, "inout", LinkInout.String())
}

func TestCombine(t *testing.T) {
	assert.Equal(t, "diamond::preprocess:2.0", Combine("diamond", "preprocess", "2.0"))
	assert.Equal(t, "preprocess:2.0", Combine("", "preprocess", "2.0"))
	assert.Equal(t, "diamond::preprocess", Combine("diamond", "preprocess", ""))
	assert.Equal(t, "preprocess", Combine("", "preprocess", ""))

	j := &Job{Namespace: "d", Name: "x", Version: "1", DVName: "dx"}
	assert.Equal(t, "d::x:1", j.TR())
	assert.Equal(t, "dx", j.DV())
}

func TestWorkflow_AddJob(t *testing.T) {
	w := New("wf")
	require.NoError(t, w.AddJob(&Job{ID: "ID1", Name: "a"}))
	assert.ErrorContains(t, w.AddJob(&Job{ID: "ID1", Name: "b"}), "duplicate job id ID1")
	assert.ErrorContains(t, w.AddJob(&Job{Name: "c"}), "empty id")

	j, ok := w.Job("ID1")
	require.True(t, ok)
	assert.Equal(t, "a", j.Name)
	assert.Len(t, w.Jobs, 1)
}

func TestWorkflow_LFNs(t *testing.T) {
	w := New("wf")
	w.AddFilename("f.b", LinkOutput)
	w.AddFilename("f.a", LinkInput)
	assert.Equal(t, []string{"f.a", "f.b"}, w.LFNs())
}

func TestBuildGraph(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())

	t.Run("links parents to children", func(t *testing.T) {
		w := New("wf")
		require.NoError(t, w.AddJob(&Job{ID: "A"}))
		require.NoError(t, w.AddJob(&Job{ID: "B"}))
		w.AddDependency("A", "B")

		g, err := BuildGraph(ctx, w)
		require.NoError(t, err)
		deps, err := g.Dependencies("B")
		require.NoError(t, err)
		assert.Equal(t, []string{"A"}, deps)
	})

	t.Run("unknown parent", func(t *testing.T) {
		w := New("wf")
		require.NoError(t, w.AddJob(&Job{ID: "B"}))
		w.AddDependency("A", "B")

		_, err := BuildGraph(ctx, w)
		assert.ErrorContains(t, err, "depends on unknown job A")
	})

	t.Run("unknown child", func(t *testing.T) {
		w := New("wf")
		require.NoError(t, w.AddJob(&Job{ID: "A"}))
		w.AddDependency("A", "C")

		_, err := BuildGraph(ctx, w)
		assert.ErrorContains(t, err, "unknown job C")
	})

	t.Run("self dependency", func(t *testing.T) {
		w := New("wf")
		require.NoError(t, w.AddJob(&Job{ID: "A"}))
		w.AddDependency("A", "A")

		_, err := BuildGraph(ctx, w)
		assert.ErrorContains(t, err, "self-referential edge")
	})
}
