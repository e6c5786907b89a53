package hcl_adapter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/shplanner/internal/catalog"
	"github.com/vk/shplanner/internal/ctxlog"
	"github.com/vk/shplanner/internal/workflow"
)

// DefaultSite is the site catalog records belong to when they name none.
const DefaultSite = "local"

// Loader reads workflow and catalog files written in HCL.
type Loader struct {
	parser  *hclparse.Parser
	evalCtx *hcl.EvalContext
}

// NewLoader creates a new HCL loader.
func NewLoader() *Loader {
	return &Loader{
		parser:  hclparse.NewParser(),
		evalCtx: evalContext(),
	}
}

// LoadWorkflow parses a workflow file. Every LFN a job uses is part of the
// file manifest; LFNs declared with a filename block keep the declared link.
func (l *Loader) LoadWorkflow(ctx context.Context, path string) (*workflow.Workflow, error) {
	logger := ctxlog.FromContext(ctx).With("path", path)
	logger.Debug("Loading workflow file.")

	body, err := l.parse(path)
	if err != nil {
		return nil, err
	}
	var root workflowRoot
	if diags := gohcl.DecodeBody(body, nil, &root); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode workflow file %s: %w", path, diags)
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	switch len(root.Workflows) {
	case 0:
	case 1:
		name = root.Workflows[0].Name
	default:
		return nil, fmt.Errorf("workflow file %s declares %d workflow blocks, expected at most one", path, len(root.Workflows))
	}
	w := workflow.New(name)

	for _, f := range root.Filenames {
		link, err := workflow.ParseLink(f.Link)
		if err != nil {
			return nil, fmt.Errorf("filename %s: %w", f.LFN, err)
		}
		w.AddFilename(f.LFN, link)
	}

	for _, b := range root.Jobs {
		j, err := l.translateJob(ctx, b)
		if err != nil {
			return nil, err
		}
		if err := w.AddJob(j); err != nil {
			return nil, fmt.Errorf("workflow %s: %w", name, err)
		}
		for _, u := range j.Uses {
			declare(w, u.LFN, u.Link)
		}
		declare(w, j.Stdin, workflow.LinkInput)
		declare(w, j.Stdout, workflow.LinkOutput)
		declare(w, j.Stderr, workflow.LinkOutput)
		for _, parent := range b.DependsOn {
			w.AddDependency(parent, j.ID)
		}
	}

	logger.Debug("Workflow loaded.", "workflow", w.Name, "jobs", len(w.Jobs), "files", len(w.Filenames), "dependencies", len(w.Dependencies))
	return w, nil
}

// declare adds lfn to the manifest unless a filename block or an earlier
// job already did.
func declare(w *workflow.Workflow, lfn string, link workflow.Link) {
	if lfn == "" {
		return
	}
	if _, declared := w.Filenames[lfn]; !declared {
		w.AddFilename(lfn, link)
	}
}

// LoadReplicas reads replica records from the given files or directories.
func (l *Loader) LoadReplicas(ctx context.Context, paths ...string) (*catalog.MemoryReplicas, error) {
	rc := catalog.NewMemoryReplicas()
	err := l.eachCatalog(ctx, paths, func(root *catalogRoot) error {
		for _, r := range root.Replicas {
			rc.Add(catalog.Replica{LFN: r.LFN, PFN: r.PFN, Site: orDefault(r.Site, DefaultSite)})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rc, nil
}

// LoadTransformations reads transformation records from the given files or
// directories.
func (l *Loader) LoadTransformations(ctx context.Context, paths ...string) (*catalog.MemoryTransformations, error) {
	tc := catalog.NewMemoryTransformations()
	err := l.eachCatalog(ctx, paths, func(root *catalogRoot) error {
		for _, b := range root.Transformations {
			e, err := l.translateTransformation(b)
			if err != nil {
				return err
			}
			tc.Add(e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tc, nil
}

// LoadSites reads site records from the given files or directories. A
// later record for the same handle replaces an earlier one.
func (l *Loader) LoadSites(ctx context.Context, paths ...string) (catalog.Sites, error) {
	sites := catalog.Sites{}
	err := l.eachCatalog(ctx, paths, func(root *catalogRoot) error {
		for _, b := range root.Sites {
			s, err := l.translateSite(b)
			if err != nil {
				return err
			}
			sites[s.Handle] = s
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sites, nil
}

func (l *Loader) eachCatalog(ctx context.Context, paths []string, fn func(*catalogRoot) error) error {
	logger := ctxlog.FromContext(ctx)
	files, err := l.findAllHCLFiles(paths)
	if err != nil {
		return err
	}
	logger.Debug("Discovered catalog files.", "count", len(files))
	for _, file := range files {
		body, err := l.parse(file)
		if err != nil {
			return err
		}
		var root catalogRoot
		if diags := gohcl.DecodeBody(body, nil, &root); diags.HasErrors() {
			return fmt.Errorf("failed to decode catalog file %s: %w", file, diags)
		}
		if err := fn(&root); err != nil {
			return fmt.Errorf("catalog file %s: %w", file, err)
		}
	}
	return nil
}

func (l *Loader) parse(path string) (hcl.Body, error) {
	f, diags := l.parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", path, diags)
	}
	return f.Body, nil
}

// findAllHCLFiles walks all given paths and returns a flat list of all .hcl files found.
// Paths that do not exist are skipped.
func (l *Loader) findAllHCLFiles(paths []string) ([]string, error) {
	var allFiles []string
	seen := make(map[string]struct{})
	add := func(p string) {
		if _, wasSeen := seen[p]; !wasSeen {
			allFiles = append(allFiles, p)
			seen[p] = struct{}{}
		}
	}

	for _, path := range paths {
		if path == "" {
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("error accessing path %s: %w", path, err)
		}

		if !info.IsDir() {
			add(path)
			continue
		}
		err = filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !info.IsDir() && filepath.Ext(p) == ".hcl" {
				add(p)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return allFiles, nil
}
