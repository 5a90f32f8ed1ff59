package hcl_adapter

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// functions are available in every manifest expression.
var functions = map[string]function.Function{
	"concat":    stdlib.ConcatFunc,
	"distinct":  stdlib.DistinctFunc,
	"format":    stdlib.FormatFunc,
	"join":      stdlib.JoinFunc,
	"lower":     stdlib.LowerFunc,
	"trimspace": stdlib.TrimSpaceFunc,
	"upper":     stdlib.UpperFunc,
}

// newEvalContext exposes locals as `local.<name>`.
func newEvalContext(locals map[string]cty.Value) *hcl.EvalContext {
	vars := map[string]cty.Value{}
	if len(locals) > 0 {
		vars["local"] = cty.ObjectVal(locals)
	} else {
		vars["local"] = cty.EmptyObjectVal
	}
	return &hcl.EvalContext{
		Variables: vars,
		Functions: functions,
	}
}

// evalLocals evaluates every attribute of the given locals bodies. Locals
// may call functions but may not reference each other.
func evalLocals(bodies []hcl.Body, into map[string]cty.Value) hcl.Diagnostics {
	var diags hcl.Diagnostics
	ctx := &hcl.EvalContext{Functions: functions}
	for _, body := range bodies {
		attrs, d := body.JustAttributes()
		diags = append(diags, d...)
		for name, attr := range attrs {
			if _, exists := into[name]; exists {
				diags = append(diags, &hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  "Duplicate local value",
					Detail:   "A local value named \"" + name + "\" was already defined.",
					Subject:  attr.NameRange.Ptr(),
				})
				continue
			}
			val, d := attr.Expr.Value(ctx)
			diags = append(diags, d...)
			into[name] = val
		}
	}
	return diags
}
