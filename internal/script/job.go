package script

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strings"

	"github.com/vk/shplanner/internal/catalog"
	"github.com/vk/shplanner/internal/ctxlog"
	"github.com/vk/shplanner/internal/fsutil"
	"github.com/vk/shplanner/internal/workflow"
)

// ErrUnknownLFN is returned when a job references a logical filename that
// is not part of the workflow's file manifest.
var ErrUnknownLFN = errors.New("logical filename is not in the file manifest")

// ErrNoTransformation is returned when the transformation catalog has no
// executable for a job.
var ErrNoTransformation = errors.New("transformation not found")

// ProcessJob writes the script and output list of j and appends its
// invocation to the control script. With checkInputs set, unreadable local
// input files are reported as warnings. It returns the script's file name.
func (s *Scriptor) ProcessJob(ctx context.Context, j *workflow.Job, checkInputs bool) (string, error) {
	ctx, logger := ctxlog.With(ctx, "job", j.ID)
	logger.Info("Processing job.")
	if s.masterBuf == nil {
		return "", errors.New("control script is not initialized")
	}

	base := j.Name + "_" + j.ID
	scriptFile := base + ".sh"
	outputList := base + ".lst"

	vars := maps.Clone(s.vars)
	vars["JOBSCRIPT"] = scriptFile
	vars["FILELIST"] = outputList
	vars["JOBID"] = j.ID
	vars["TR"] = j.TR()
	vars["DV"] = j.DV()

	pfns, err := s.jobFiles(j)
	if err != nil {
		return "", err
	}

	var list bytes.Buffer
	for _, use := range j.Uses {
		pfn := pfns[use.LFN]
		if checkInputs && use.Link.IsInput() && isLocal(pfn) && !fsutil.Readable(pfn) {
			logger.Warn("Unable to read input file.", "lfn", use.LFN, "pfn", pfn)
		}
		if use.Link.IsOutput() {
			fmt.Fprintf(&list, "%s %s\n", use.LFN, pfn)
		}
	}
	if err := s.writeArtifact(ctx, outputList, list.Bytes()); err != nil {
		return "", err
	}

	body, err := s.generateJobScript(ctx, j, base, pfns, vars)
	if err != nil {
		return "", err
	}
	if err := s.writeArtifact(ctx, scriptFile, body); err != nil {
		return "", err
	}

	logger.Debug("Adding job to control script.", "script", scriptFile)
	if err := s.copyFromTemplate(ctx, s.masterBuf, TemplateMasterJob, vars); err != nil {
		return "", err
	}
	return scriptFile, nil
}

// jobFiles resolves every logical filename j references.
func (s *Scriptor) jobFiles(j *workflow.Job) (map[string]string, error) {
	pfns := make(map[string]string)
	for _, lfn := range ReferencedLFNs(j) {
		pfn, ok := s.files.Lookup(lfn)
		if !ok {
			return nil, fmt.Errorf("job %s: %w: %s", j.ID, ErrUnknownLFN, lfn)
		}
		pfns[lfn] = pfn
	}
	return pfns, nil
}

// ReferencedLFNs lists every logical filename j refers to through its file
// uses, standard streams, arguments and profiles, without duplicates.
func ReferencedLFNs(j *workflow.Job) []string {
	var out []string
	seen := make(map[string]struct{})
	add := func(lfn string) {
		if lfn == "" {
			return
		}
		if _, ok := seen[lfn]; !ok {
			seen[lfn] = struct{}{}
			out = append(out, lfn)
		}
	}
	for _, u := range j.Uses {
		add(u.LFN)
	}
	add(j.Stdin)
	add(j.Stdout)
	add(j.Stderr)
	for _, l := range j.Arguments {
		add(l.LFN)
	}
	for _, p := range j.Profiles {
		for _, l := range p.Value {
			add(l.LFN)
		}
	}
	return out
}

func (s *Scriptor) generateJobScript(ctx context.Context, j *workflow.Job, base string, pfns map[string]string, vars map[string]string) ([]byte, error) {
	logger := ctxlog.FromContext(ctx)
	var buf bytes.Buffer
	if err := s.copyFromTemplate(ctx, &buf, TemplateJobHead, vars); err != nil {
		return nil, err
	}

	tce, err := s.lookupTransformation(ctx, j.Namespace, j.Name, j.Version)
	if err != nil {
		return nil, err
	}

	siteProfiles := catalog.Profiles{}
	if s.site != nil {
		siteProfiles = s.site.Profiles
	}
	// Transformation catalog beats site catalog beats the job itself.
	profiles := catalog.Merge(catalog.Merge(tce.Profiles, siteProfiles), jobProfiles(j, pfns))

	if profiles.Has("hints") {
		logger.Warn("The hints profile namespace is deprecated, ignoring its keys.", "keys", profiles.Keys("hints"))
	}
	if env := environment(profiles); env != "" {
		buf.WriteString("# regular job environment setup\n" + env + "\n")
	}

	if profiles.Has("ws") {
		if err := s.writeServiceInvocation(ctx, &buf, tce.PFN, profiles["ws"], siteProfiles); err != nil {
			return nil, err
		}
	} else {
		s.writeInvocation(&buf, j, base, tce.PFN, pfns, vars)
	}

	if err := s.copyFromTemplate(ctx, &buf, TemplateJobTail, vars); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// lookupTransformation finds the executable on the local site. With
// several matches the first one is used.
func (s *Scriptor) lookupTransformation(ctx context.Context, namespace, name, version string) (catalog.TransformationEntry, error) {
	fqdn := workflow.Combine(namespace, name, version)
	entries := s.tc.Lookup(namespace, name, version, LocalSite)
	if len(entries) == 0 {
		return catalog.TransformationEntry{}, fmt.Errorf("%w: %s on site %q", ErrNoTransformation, fqdn, LocalSite)
	}
	if len(entries) > 1 {
		ctxlog.FromContext(ctx).Warn("Several transformation catalog matches, using the first.", "transformation", fqdn, "matches", len(entries))
	}
	return entries[0], nil
}

// writeInvocation writes the command line of a regular job, wrapped by
// kickstart when one is configured.
func (s *Scriptor) writeInvocation(buf *bytes.Buffer, j *workflow.Job, base, executable string, pfns map[string]string, vars map[string]string) {
	var args strings.Builder
	for _, l := range j.Arguments {
		if l.IsFile() {
			args.WriteString(pfns[l.LFN])
		} else {
			args.WriteString(l.Text)
		}
	}

	if s.kickstart == "" {
		if j.Stdin != "" {
			args.WriteString(" < " + pfns[j.Stdin])
		}
		if j.Stdout != "" {
			args.WriteString(" > " + pfns[j.Stdout])
		}
		if j.Stderr != "" {
			args.WriteString(" 2> " + pfns[j.Stderr])
		}
		buf.WriteString(executable + " " + args.String() + "\n")
		return
	}

	ks := fmt.Sprintf("-R %s -l %s.out -n \"%s\" -N \"%s\"", LocalSite, base, vars["TR"], vars["DV"])
	if j.Stdin != "" {
		ks += " -i " + pfns[j.Stdin]
	}
	if j.Stdout != "" {
		ks += " -o " + pfns[j.Stdout]
	}
	if j.Stderr != "" {
		ks += " -e " + pfns[j.Stderr]
	}
	buf.WriteString(s.kickstart + " " + ks + " " + executable + " " + args.String() + "\n")
}

// writeServiceInvocation writes a web-service call through the invokews
// transformation. The ws profile needs porttype, operation and input.
func (s *Scriptor) writeServiceInvocation(ctx context.Context, buf *bytes.Buffer, executable string, ws map[string]string, siteProfiles catalog.Profiles) error {
	invokews, err := s.lookupTransformation(ctx, "", "invokews", "")
	if err != nil {
		return err
	}

	params := make(map[string]string, len(ws))
	for k, v := range ws {
		params[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}
	for _, required := range []string{"porttype", "operation", "input"} {
		if _, ok := params[required]; !ok {
			return fmt.Errorf("web service invocation needs portType, operation and input, missing %s", required)
		}
	}

	if env := environment(catalog.Merge(invokews.Profiles, siteProfiles)); env != "" {
		buf.WriteString("# extra WS invocation environment\n" + env + "\n")
	}
	buf.WriteString(invokews.PFN + " -I " + params["input"])
	if out, ok := params["output"]; ok {
		buf.WriteString(" -O " + out)
	}
	buf.WriteString(" -p " + params["porttype"] + " -o " + params["operation"] + " " + executable + "\n")
	return nil
}

// jobProfiles renders the profiles attached to j with file references
// replaced by their physical names.
func jobProfiles(j *workflow.Job, pfns map[string]string) catalog.Profiles {
	out := catalog.Profiles{}
	for _, p := range j.Profiles {
		var sb strings.Builder
		for _, l := range p.Value {
			if l.IsFile() {
				sb.WriteString(pfns[l.LFN])
			} else {
				sb.WriteString(l.Text)
			}
		}
		out.Set(p.Namespace, p.Key, strings.TrimSpace(sb.String()))
	}
	return out
}

// environment renders the env namespace as shell exports, sorted by key.
func environment(p catalog.Profiles) string {
	if !p.Has("env") {
		return ""
	}
	var sb strings.Builder
	for _, k := range p.Keys("env") {
		fmt.Fprintf(&sb, "%s=%s; export %s\n", k, shellQuote(p["env"][k]), k)
	}
	return sb.String()
}

// writeArtifact writes one file into the output directory, warning when it
// replaces an existing one.
func (s *Scriptor) writeArtifact(ctx context.Context, name string, data []byte) error {
	path := filepath.Join(s.opts.Dir, name)
	if _, err := os.Stat(path); err == nil {
		ctxlog.FromContext(ctx).Warn("File already exists, overwriting.", "path", path)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return nil
}

func isLocal(pfn string) bool {
	scheme := fsutil.Scheme(pfn)
	return scheme == "" || scheme == "file"
}
