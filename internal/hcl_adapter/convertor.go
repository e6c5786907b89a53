package hcl_adapter

import (
	"fmt"

	"github.com/vk/shplanner/internal/workflow"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// toLeaves flattens an evaluated argument or profile value into leaves.
// Strings, numbers and bools become text; lfn() results become file
// references; lists and tuples are flattened in order.
func toLeaves(val cty.Value) ([]workflow.Leaf, error) {
	if val.IsNull() {
		return nil, nil
	}
	if !val.IsKnown() {
		return nil, fmt.Errorf("value is not known at load time")
	}

	ty := val.Type()
	switch {
	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		var out []workflow.Leaf
		it := val.ElementIterator()
		for i := 0; it.Next(); i++ {
			_, elem := it.Element()
			leaves, err := toLeaves(elem)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			out = append(out, leaves...)
		}
		return out, nil

	case ty.IsObjectType():
		if !ty.HasAttribute("lfn") || len(ty.AttributeTypes()) != 1 {
			return nil, fmt.Errorf("objects are only allowed as lfn() references, got %s", ty.FriendlyName())
		}
		name := val.GetAttr("lfn")
		if name.IsNull() || name.AsString() == "" {
			return nil, fmt.Errorf("lfn() needs a non-empty name")
		}
		return []workflow.Leaf{workflow.File(name.AsString())}, nil
	}

	s, err := convert.Convert(val, cty.String)
	if err != nil {
		return nil, fmt.Errorf("cannot use %s as text: %w", ty.FriendlyName(), err)
	}
	return []workflow.Leaf{workflow.Text(s.AsString())}, nil
}

// toText renders an evaluated catalog profile value as plain text. File
// references are not meaningful in catalogs and are rejected.
func toText(val cty.Value) (string, error) {
	leaves, err := toLeaves(val)
	if err != nil {
		return "", err
	}
	out := ""
	for i, l := range leaves {
		if l.IsFile() {
			return "", fmt.Errorf("lfn(%q) is not allowed in catalog profiles", l.LFN)
		}
		if i > 0 {
			out += " "
		}
		out += l.Text
	}
	return out, nil
}
