package script

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/shplanner/internal/catalog"
	"github.com/vk/shplanner/internal/ctxlog"
	"github.com/vk/shplanner/internal/resolver"
	"github.com/vk/shplanner/internal/workflow"
)

var fixedNow = time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

func testFiles() resolver.FilenameMap {
	return resolver.FilenameMap{
		"f.a":   "/data/f.a",
		"f.b":   "/data/f.b",
		"f.log": "/data/f.log",
	}
}

func testTC() *catalog.MemoryTransformations {
	tcProfiles := catalog.Profiles{}
	tcProfiles.Set("env", "LEVEL", "tc")
	return catalog.NewMemoryTransformations(
		catalog.TransformationEntry{Namespace: "diamond", Name: "preprocess", Version: "2.0", Site: "local", PFN: "/usr/bin/keg", Profiles: tcProfiles},
		catalog.TransformationEntry{Name: "invokews", Site: "local", PFN: "/usr/bin/invokews"},
	)
}

func testJob() *workflow.Job {
	return &workflow.Job{
		ID:        "ID000001",
		Namespace: "diamond",
		Name:      "preprocess",
		Version:   "2.0",
		DVName:    "top",
		Arguments: []workflow.Leaf{
			workflow.Text("-i "), workflow.File("f.a"), workflow.Text(" -o "), workflow.File("f.b"),
		},
		Uses: []workflow.FileUse{
			{LFN: "f.a", Link: workflow.LinkInput},
			{LFN: "f.b", Link: workflow.LinkOutput},
			{LFN: "f.log", Link: workflow.LinkOutput},
		},
		Stdout: "f.log",
	}
}

func newTestScriptor(t *testing.T, opts Options, site *catalog.Site) (*Scriptor, context.Context) {
	t.Helper()
	ctx := ctxlog.Discard(context.Background())
	if opts.Dir == "" {
		opts.Dir = t.TempDir()
	}
	if opts.Label == "" {
		opts.Label = "diamond"
	}
	s := New(ctx, opts, testFiles(), testTC(), site)
	s.now = func() time.Time { return fixedNow }
	t.Cleanup(func() { _ = s.Close() })
	return s, ctx
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func TestExpand(t *testing.T) {
	s, ctx := newTestScriptor(t, Options{RunID: "run-1"}, nil)

	line, err := s.expand(ctx, "label=@@DAXLABEL@@ at @@NOW@@ id=@@RUNID@@", s.vars, "test", 1)
	require.NoError(t, err)
	assert.Equal(t, "label=diamond at 2024-03-01T12:30:00.000Z id=run-1", line)

	line, err = s.expand(ctx, "a@@NOPE@@b", s.vars, "test", 2)
	require.NoError(t, err)
	assert.Equal(t, "ab", line, "unknown variables expand to nothing")

	_, err = s.expand(ctx, "broken @@DAXLABEL", s.vars, "test", 3)
	assert.ErrorIs(t, err, ErrUnclosedVariable)
	assert.ErrorContains(t, err, "test:3")

	line, err = s.expand(ctx, "x=@@LOOP@@", map[string]string{"LOOP": "@@LOOP@@"}, "test", 4)
	require.NoError(t, err, "a self-referencing value trips the circuit breaker")
	assert.Equal(t, "x=@@LOOP@@", line)
}

func TestScriptor_Run(t *testing.T) {
	s, ctx := newTestScriptor(t, Options{Register: true, RunID: "run-1"}, nil)
	dir := s.opts.Dir

	name, err := s.InitializeControlScript(ctx)
	require.NoError(t, err)
	assert.Equal(t, "diamond.sh", name)

	script, err := s.ProcessJob(ctx, testJob(), true)
	require.NoError(t, err)
	assert.Equal(t, "preprocess_ID000001.sh", script)
	require.NoError(t, s.IntermediateControlScript(ctx))
	require.NoError(t, s.FinalizeControlScript(ctx))
	require.NoError(t, s.Close(), "closing twice is harmless")

	control := readFile(t, filepath.Join(dir, "diamond.sh"))
	assert.True(t, strings.HasPrefix(control, "#!/bin/bash\n"))
	assert.Contains(t, control, `LOGFILE="diamond.log"`)
	assert.Contains(t, control, "at 2024-03-01T12:30:00.000Z, run run-1")
	assert.Contains(t, control, "run_job \"preprocess_ID000001.sh\" &\n")
	assert.Less(t, strings.Index(control, "run_job \"preprocess"), strings.LastIndex(control, "\nwait_stage\n"))
	assert.True(t, strings.HasSuffix(control, "exit 0\n"))

	assert.Equal(t, "f.b /data/f.b\nf.log /data/f.log\n", readFile(t, filepath.Join(dir, "preprocess_ID000001.lst")))

	job := readFile(t, filepath.Join(dir, script))
	assert.Contains(t, job, "# job ID000001 (diamond::preprocess:2.0) of workflow diamond\n")
	assert.Contains(t, job, "# regular job environment setup\nLEVEL='tc'; export LEVEL\n")
	assert.Contains(t, job, "/usr/bin/keg -i /data/f.a -o /data/f.b > /data/f.log\n")
	assert.Contains(t, job, `[ "1" = "1" ]`)
	assert.Contains(t, job, `done < "preprocess_ID000001.lst"`)
	assert.Contains(t, job, "  : -register-outputs \"$1\"\n", "no registrar makes registration a no-op")
	assert.Contains(t, job, `register_outputs "$(pwd)/preprocess_ID000001.lst"`)
}

func TestScriptor_Registrar(t *testing.T) {
	s, ctx := newTestScriptor(t, Options{
		Register:  true,
		Registrar: []string{"/opt/shplanner", "-rc", "/cat alog/rc.hcl"},
	}, nil)
	_, err := s.InitializeControlScript(ctx)
	require.NoError(t, err)

	script, err := s.ProcessJob(ctx, testJob(), false)
	require.NoError(t, err)

	job := readFile(t, filepath.Join(s.opts.Dir, script))
	assert.Contains(t, job, `'/opt/shplanner' '-rc' '/cat alog/rc.hcl' -register-outputs "$1"`)
}

func TestEnvironment_QuotesValues(t *testing.T) {
	p := catalog.Profiles{}
	p.Set("env", "MSG", "it's $HOME")
	p.Set("env", "PLAIN", "x")

	env := environment(p)
	assert.Equal(t, "MSG='it'\\''s $HOME'; export MSG\nPLAIN='x'; export PLAIN\n", env)

	bash, err := exec.LookPath("bash")
	if err != nil {
		t.Skip("bash is not available")
	}
	out, err := exec.Command(bash, "-c", env+`printf %s "$MSG"`).Output()
	require.NoError(t, err)
	assert.Equal(t, "it's $HOME", string(out))
}

func TestReadOutputList(t *testing.T) {
	outputs, err := ReadOutputList(strings.NewReader("f.b /data/f.b\n\nf.log /data/with space.log\n"))
	require.NoError(t, err)
	assert.Equal(t, []Output{
		{LFN: "f.b", PFN: "/data/f.b"},
		{LFN: "f.log", PFN: "/data/with space.log"},
	}, outputs)

	_, err = ReadOutputList(strings.NewReader("f.b\n"))
	assert.ErrorContains(t, err, "line 1")
}

func TestScriptor_Kickstart(t *testing.T) {
	s, ctx := newTestScriptor(t, Options{Kickstart: "/opt/ks"}, nil)
	_, err := s.InitializeControlScript(ctx)
	require.NoError(t, err)

	script, err := s.ProcessJob(ctx, testJob(), false)
	require.NoError(t, err)

	job := readFile(t, filepath.Join(s.opts.Dir, script))
	want := `/opt/ks -R local -l preprocess_ID000001.out -n "diamond::preprocess:2.0" -N "top" -o /data/f.log /usr/bin/keg -i /data/f.a -o /data/f.b` + "\n"
	assert.Contains(t, job, want)
	assert.Contains(t, job, `[ "0" = "1" ]`)
}

func TestNew_SiteLauncher(t *testing.T) {
	launcher := filepath.Join(t.TempDir(), "kickstart")
	require.NoError(t, os.WriteFile(launcher, []byte("#!/bin/sh\n"), 0o755))

	s, _ := newTestScriptor(t, Options{}, &catalog.Site{Handle: "local", GridLaunch: launcher})
	assert.Equal(t, launcher, s.Kickstart())
	assert.Equal(t, launcher, s.vars["KICKSTART"])

	s, _ = newTestScriptor(t, Options{}, &catalog.Site{Handle: "local", GridLaunch: "/does/not/exist"})
	assert.Empty(t, s.Kickstart())

	s, _ = newTestScriptor(t, Options{Kickstart: "/override"}, &catalog.Site{Handle: "local", GridLaunch: launcher})
	assert.Equal(t, "/override", s.Kickstart())
}

func TestScriptor_ProfilePriority(t *testing.T) {
	site := &catalog.Site{Handle: "local", Profiles: catalog.Profiles{}}
	site.Profiles.Set("env", "LEVEL", "site")
	site.Profiles.Set("env", "SITEONLY", "yes")
	s, ctx := newTestScriptor(t, Options{}, site)
	_, err := s.InitializeControlScript(ctx)
	require.NoError(t, err)

	j := testJob()
	j.Profiles = []workflow.Profile{
		{Namespace: "env", Key: "LEVEL", Value: []workflow.Leaf{workflow.Text("job")}},
		{Namespace: "env", Key: "INPUT", Value: []workflow.Leaf{workflow.File("f.a")}},
		{Namespace: "hints", Key: "pfnHint", Value: []workflow.Leaf{workflow.Text("/x")}},
	}
	script, err := s.ProcessJob(ctx, j, false)
	require.NoError(t, err)

	job := readFile(t, filepath.Join(s.opts.Dir, script))
	assert.Contains(t, job, "INPUT='/data/f.a'; export INPUT\nLEVEL='tc'; export LEVEL\nSITEONLY='yes'; export SITEONLY\n")
}

func TestScriptor_WebService(t *testing.T) {
	s, ctx := newTestScriptor(t, Options{}, nil)
	_, err := s.InitializeControlScript(ctx)
	require.NoError(t, err)

	j := testJob()
	j.Profiles = []workflow.Profile{
		{Namespace: "ws", Key: "portType", Value: []workflow.Leaf{workflow.Text("Calc")}},
		{Namespace: "ws", Key: "operation", Value: []workflow.Leaf{workflow.Text("add")}},
		{Namespace: "ws", Key: "input", Value: []workflow.Leaf{workflow.File("f.a")}},
		{Namespace: "ws", Key: "output", Value: []workflow.Leaf{workflow.File("f.b")}},
	}
	script, err := s.ProcessJob(ctx, j, false)
	require.NoError(t, err)
	job := readFile(t, filepath.Join(s.opts.Dir, script))
	assert.Contains(t, job, "/usr/bin/invokews -I /data/f.a -O /data/f.b -p Calc -o add /usr/bin/keg\n")
	assert.NotContains(t, job, "/usr/bin/keg -i")

	j.ID = "ID000002"
	j.Profiles = j.Profiles[:2]
	_, err = s.ProcessJob(ctx, j, false)
	assert.ErrorContains(t, err, "missing input")
}

func TestScriptor_EmissionErrors(t *testing.T) {
	s, ctx := newTestScriptor(t, Options{}, nil)

	_, err := s.ProcessJob(ctx, testJob(), false)
	assert.ErrorContains(t, err, "not initialized")

	_, err = s.InitializeControlScript(ctx)
	require.NoError(t, err)

	j := testJob()
	j.Name = "analyze"
	_, err = s.ProcessJob(ctx, j, false)
	assert.ErrorIs(t, err, ErrNoTransformation)
	assert.NoFileExists(t, filepath.Join(s.opts.Dir, "analyze_ID000001.sh"))

	j = testJob()
	j.Stderr = "f.err"
	_, err = s.ProcessJob(ctx, j, false)
	assert.ErrorIs(t, err, ErrUnknownLFN)
	assert.ErrorContains(t, err, "f.err")
}

func TestScriptor_TemplateOverride(t *testing.T) {
	tmpl := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpl, TemplateMasterHead), []byte("# custom @@DAXLABEL@@\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpl, TemplateMasterTail), []byte("# end @@UNCLOSED\n"), 0o644))

	s, ctx := newTestScriptor(t, Options{TemplatesDir: tmpl}, nil)
	_, err := s.InitializeControlScript(ctx)
	require.NoError(t, err)
	require.NoError(t, s.IntermediateControlScript(ctx), "missing overrides fall back to the built-in template")
	err = s.FinalizeControlScript(ctx)
	assert.ErrorIs(t, err, ErrUnclosedVariable)
	require.NoError(t, s.Close())

	assert.Equal(t, "# custom diamond\nwait_stage\n", readFile(t, filepath.Join(s.opts.Dir, "diamond.sh")))
}

func TestReferencedLFNs(t *testing.T) {
	j := testJob()
	j.Stdin = "f.in"
	j.Profiles = []workflow.Profile{{Namespace: "env", Key: "X", Value: []workflow.Leaf{workflow.File("f.p")}}}
	assert.Equal(t, []string{"f.a", "f.b", "f.log", "f.in", "f.p"}, ReferencedLFNs(j))
}
