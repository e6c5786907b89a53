package hcl_adapter

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
)

// fileRefType is the value lfn() returns: an object carrying the logical
// filename, distinguishable from plain strings after evaluation.
var fileRefType = cty.Object(map[string]cty.Type{"lfn": cty.String})

// lfnFunc marks a string as a logical filename reference.
var lfnFunc = function.New(&function.Spec{
	Params: []function.Parameter{
		{Name: "name", Type: cty.String},
	},
	Type: function.StaticReturnType(fileRefType),
	Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
		return cty.ObjectVal(map[string]cty.Value{"lfn": args[0]}), nil
	},
})

// evalContext is the context job arguments and profile values are
// evaluated in.
func evalContext() *hcl.EvalContext {
	return &hcl.EvalContext{
		Functions: map[string]function.Function{
			"lfn": lfnFunc,
		},
	}
}
