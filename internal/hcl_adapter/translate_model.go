// This file translates the decoded HCL blocks into the workflow and catalog
// models.

package hcl_adapter

import (
	"context"
	"fmt"
	"strings"

	"github.com/vk/shplanner/internal/catalog"
	"github.com/vk/shplanner/internal/ctxlog"
	"github.com/vk/shplanner/internal/workflow"
)

// translateJob converts a job block into the workflow model.
func (l *Loader) translateJob(ctx context.Context, b *JobBlock) (*workflow.Job, error) {
	logger := ctxlog.FromContext(ctx).With("job", b.ID, "job_name", b.Name)
	ctx = ctxlog.WithLogger(ctx, logger)
	logger.Debug("Translating HCL job to workflow model.")

	j := &workflow.Job{
		ID:          b.ID,
		Namespace:   b.Namespace,
		Name:        b.Name,
		Version:     b.Version,
		DVNamespace: b.DVNamespace,
		DVName:      b.DVName,
		DVVersion:   b.DVVersion,
		Stdin:       b.Stdin,
		Stdout:      b.Stdout,
		Stderr:      b.Stderr,
	}

	if isExprDefined(ctx, b.Arguments, "arguments") {
		val, diags := b.Arguments.Value(l.evalCtx)
		if diags.HasErrors() {
			return nil, fmt.Errorf("job %s arguments: %w", b.ID, diags)
		}
		leaves, err := toLeaves(val)
		if err != nil {
			return nil, fmt.Errorf("job %s arguments: %w", b.ID, err)
		}
		j.Arguments = joinArguments(leaves)
	}

	for _, u := range b.Uses {
		link, err := workflow.ParseLink(u.Link)
		if err != nil {
			return nil, fmt.Errorf("job %s uses %s: %w", b.ID, u.LFN, err)
		}
		j.Uses = append(j.Uses, workflow.FileUse{LFN: u.LFN, Link: link})
	}

	for _, p := range b.Profiles {
		attrs, err := profileAttributes(p)
		if err != nil {
			return nil, fmt.Errorf("job %s: %w", b.ID, err)
		}
		for _, a := range attrs {
			val, diags := a.Expr.Value(l.evalCtx)
			if diags.HasErrors() {
				return nil, fmt.Errorf("job %s profile %s.%s: %w", b.ID, p.Namespace, a.Name, diags)
			}
			leaves, err := toLeaves(val)
			if err != nil {
				return nil, fmt.Errorf("job %s profile %s.%s: %w", b.ID, p.Namespace, a.Name, err)
			}
			j.Profiles = append(j.Profiles, workflow.Profile{
				Namespace: strings.ToLower(p.Namespace),
				Key:       a.Name,
				Value:     leaves,
			})
		}
	}

	logger.Debug("Job translated.", "uses", len(j.Uses), "arguments", len(j.Arguments), "profiles", len(j.Profiles))
	return j, nil
}

// joinArguments separates list elements with a single blank so the
// argument line renders as the elements joined by spaces.
func joinArguments(leaves []workflow.Leaf) []workflow.Leaf {
	if len(leaves) < 2 {
		return leaves
	}
	out := make([]workflow.Leaf, 0, 2*len(leaves)-1)
	for i, leaf := range leaves {
		if i > 0 {
			out = append(out, workflow.Text(" "))
		}
		out = append(out, leaf)
	}
	return out
}

// translateProfiles evaluates catalog profile blocks.
func (l *Loader) translateProfiles(owner string, blocks []*ProfileBlock) (catalog.Profiles, error) {
	profiles := catalog.Profiles{}
	for _, p := range blocks {
		attrs, err := profileAttributes(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", owner, err)
		}
		for _, a := range attrs {
			val, diags := a.Expr.Value(l.evalCtx)
			if diags.HasErrors() {
				return nil, fmt.Errorf("%s profile %s.%s: %w", owner, p.Namespace, a.Name, diags)
			}
			text, err := toText(val)
			if err != nil {
				return nil, fmt.Errorf("%s profile %s.%s: %w", owner, p.Namespace, a.Name, err)
			}
			profiles.Set(p.Namespace, a.Name, text)
		}
	}
	return profiles, nil
}

// translateTransformation converts a transformation block into a catalog entry.
func (l *Loader) translateTransformation(b *TransformationBlock) (catalog.TransformationEntry, error) {
	profiles, err := l.translateProfiles("transformation "+b.Name, b.Profiles)
	if err != nil {
		return catalog.TransformationEntry{}, err
	}
	return catalog.TransformationEntry{
		Namespace: b.Namespace,
		Name:      b.Name,
		Version:   b.Version,
		Site:      orDefault(b.Site, DefaultSite),
		PFN:       b.PFN,
		Profiles:  profiles,
	}, nil
}

// translateSite converts a site block into a catalog site.
func (l *Loader) translateSite(b *SiteBlock) (*catalog.Site, error) {
	profiles, err := l.translateProfiles("site "+b.Handle, b.Profiles)
	if err != nil {
		return nil, err
	}
	return &catalog.Site{Handle: b.Handle, GridLaunch: b.GridLaunch, Profiles: profiles}, nil
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
