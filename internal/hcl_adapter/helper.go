package hcl_adapter

import (
	"context"
	"fmt"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/vk/shplanner/internal/ctxlog"
)

// isExprDefined checks if an HCL expression was actually present in the source.
// gohcl fills omitted optional expression fields with zero-width placeholders,
// so a nil check is not enough.
func isExprDefined(ctx context.Context, expr hcl.Expression, attrName string) bool {
	logger := ctxlog.FromContext(ctx)

	if expr == nil {
		logger.Debug("Expression is nil, considering it undefined.", "attribute", attrName)
		return false
	}

	exprRange := expr.Range()
	isDefined := exprRange.End.Byte > exprRange.Start.Byte

	logger.Debug("Checking if HCL attribute was explicitly defined.",
		"attribute", attrName,
		"hcl_range", exprRange.String(),
		"is_defined", isDefined,
	)
	return isDefined
}

// profileAttributes returns the attributes of a profile block sorted by
// name, so keys come out in a stable order.
func profileAttributes(p *ProfileBlock) ([]*hcl.Attribute, error) {
	if p.Body == nil {
		return nil, nil
	}
	attrs, diags := p.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, fmt.Errorf("profile %q: %w", p.Namespace, diags)
	}
	out := make([]*hcl.Attribute, 0, len(attrs))
	for _, a := range attrs {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
