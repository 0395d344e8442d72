// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines Function and Param, and the parsing of parameter types.
//
// Why typed parameters?
//
// Functions are invoked from two places: the command line, where every argument
// arrives as a string, and other expressions. Declaring a type per parameter
// lets the evaluator convert command-line strings to numbers or booleans before
// the call, and lets the analyzer reject an entry point whose parameters could
// not be supplied from the command line at all.
package model

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
)

// Function is a named expression with typed parameters.
type Function struct {
	Name      string
	Params    []*Param
	Result    hcl.Expression
	DeclRange hcl.Range
}

// Param is a single function parameter.
type Param struct {
	Name string
	// Type is cty.DynamicPseudoType when the parameter is declared `any`.
	Type      cty.Type
	DeclRange hcl.Range
}

// ParamNames returns the parameter names in declaration order.
func (f *Function) ParamNames() []string {
	names := make([]string, len(f.Params))
	for i, p := range f.Params {
		names[i] = p.Name
	}
	return names
}

// TypeFromExpr converts an HCL expression that names a type (e.g. the `string`
// keyword) into its cty.Type. Only the primitive keywords and `any` are
// supported.
func TypeFromExpr(expr hcl.Expression) (cty.Type, hcl.Diagnostics) {
	var diags hcl.Diagnostics

	// We expect a simple identifier like `string`, not a complex expression.
	traversal, travDiags := hcl.AbsTraversalForExpr(expr)
	if travDiags.HasErrors() || len(traversal) != 1 {
		diags = append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Invalid type specification",
			Detail:   "The 'type' attribute must be a simple type keyword like 'string', 'number', or 'bool', not a complex expression.",
			Subject:  expr.Range().Ptr(),
		})
		return cty.NilType, diags
	}

	switch name := traversal.RootName(); name {
	case "string":
		return cty.String, diags
	case "number":
		return cty.Number, diags
	case "bool":
		return cty.Bool, diags
	case "any":
		return cty.DynamicPseudoType, diags
	case "list", "map", "set", "object", "tuple":
		diags = append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Unsupported type",
			Detail:   fmt.Sprintf("The complex type '%s' cannot be used for parameters. Supported types are: string, number, bool, any.", name),
			Subject:  expr.Range().Ptr(),
		})
		return cty.NilType, diags
	default:
		diags = append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Unsupported type",
			Detail:   fmt.Sprintf("The keyword '%s' is not a valid type. Supported types are: string, number, bool, any.", name),
			Subject:  expr.Range().Ptr(),
		})
		return cty.NilType, diags
	}
}
