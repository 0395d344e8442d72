// Package executor evaluates deployed functions and resources. Expressions
// are evaluated with the HCL expression engine against the global scope; no
// other interpretation takes place.
package executor

import (
	"context"
	"fmt"

	"github.com/specialistvlad/gridhost/internal/ctxlog"
	"github.com/specialistvlad/gridhost/internal/model"
	"github.com/specialistvlad/gridhost/internal/semantic"
	"github.com/zclconf/go-cty/cty"
)

// Invoke calls fn with args, converting each argument to its declared
// parameter type.
func Invoke(ctx context.Context, scope *semantic.Scope, fn *model.Function, args []cty.Value) (cty.Value, error) {
	logger := ctxlog.FromContext(ctx).With("function", fn.Name)

	if len(args) != len(fn.Params) {
		return cty.NilVal, fmt.Errorf("function %q expects %d argument(s), got %d", fn.Name, len(fn.Params), len(args))
	}

	locals := make(map[string]cty.Value, len(fn.Params))
	for i, p := range fn.Params {
		v, err := convertArg(p.Name, args[i], p.Type)
		if err != nil {
			return cty.NilVal, fmt.Errorf("function %q: %w", fn.Name, err)
		}
		locals[p.Name] = v
	}

	logger.Debug("Invoking function.", "args", len(args))
	result, diags := fn.Result.Value(scope.EvalContext(locals))
	if diags.HasErrors() {
		return cty.NilVal, fmt.Errorf("evaluating function %q: %w", fn.Name, diags)
	}
	return result, nil
}

// InvokeStrings calls fn with command-line arguments. Each string is
// converted to the declared parameter type, so "42" satisfies a number and
// "true" a bool.
func InvokeStrings(ctx context.Context, scope *semantic.Scope, fn *model.Function, args []string) (cty.Value, error) {
	values := make([]cty.Value, len(args))
	for i, a := range args {
		values[i] = cty.StringVal(a)
	}
	return Invoke(ctx, scope, fn, values)
}

// FormatResult renders a function result for printing: strings verbatim,
// everything else as JSON.
func FormatResult(v cty.Value) (string, error) {
	body, _, err := encodeBody(v)
	if err != nil {
		return "", err
	}
	return string(body), nil
}
