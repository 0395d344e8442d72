package semantic

import (
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/hashicorp/hcl/v2/hclwrite"
)

// TraversalKey generates a stable, canonical string representation for an
// hcl.Traversal, suitable for use as a map key.
func TraversalKey(t hcl.Traversal) string {
	// e.g., request.query.name
	return string(hclwrite.TokensForTraversal(t).Bytes())
}

// extractReferencesAndFunctions walks through HCL expressions to find all
// unique variable traversals and function calls. The returned slices are
// sorted to ensure a deterministic order.
func extractReferencesAndFunctions(exprs ...hcl.Expression) ([]hcl.Traversal, []*hclsyntax.FunctionCallExpr) {
	traversals := make(map[string]hcl.Traversal)
	var calls []*hclsyntax.FunctionCallExpr

	for _, expr := range exprs {
		if expr == nil {
			continue
		}

		for _, traversal := range expr.Variables() {
			traversals[TraversalKey(traversal)] = traversal
		}

		// Walk the syntax tree to find what Variables() doesn't give us: function calls.
		if syntaxExpr, ok := expr.(hclsyntax.Expression); ok {
			walkForFunctions(syntaxExpr, &calls)
		}
	}

	keys := make([]string, 0, len(traversals))
	for k := range traversals {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	traversalSlice := make([]hcl.Traversal, 0, len(keys))
	for _, k := range keys {
		traversalSlice = append(traversalSlice, traversals[k])
	}

	sort.SliceStable(calls, func(i, j int) bool {
		return calls[i].NameRange.Start.Byte < calls[j].NameRange.Start.Byte
	})
	return traversalSlice, calls
}

// walkForFunctions recursively walks the AST, looking only for function calls.
func walkForFunctions(expr hclsyntax.Expression, calls *[]*hclsyntax.FunctionCallExpr) {
	if expr == nil {
		return
	}
	switch e := expr.(type) {
	case *hclsyntax.FunctionCallExpr:
		*calls = append(*calls, e)
		for _, arg := range e.Args {
			walkForFunctions(arg, calls)
		}
	case *hclsyntax.BinaryOpExpr:
		walkForFunctions(e.LHS, calls)
		walkForFunctions(e.RHS, calls)
	case *hclsyntax.ConditionalExpr:
		walkForFunctions(e.Condition, calls)
		walkForFunctions(e.TrueResult, calls)
		walkForFunctions(e.FalseResult, calls)
	case *hclsyntax.UnaryOpExpr:
		walkForFunctions(e.Val, calls)
	case *hclsyntax.TemplateExpr:
		for _, part := range e.Parts {
			walkForFunctions(part, calls)
		}
	case *hclsyntax.TemplateJoinExpr:
		walkForFunctions(e.Tuple, calls)
	case *hclsyntax.TemplateWrapExpr:
		walkForFunctions(e.Wrapped, calls)
	case *hclsyntax.TupleConsExpr:
		for _, item := range e.Exprs {
			walkForFunctions(item, calls)
		}
	case *hclsyntax.ObjectConsExpr:
		for _, item := range e.Items {
			walkForFunctions(item.KeyExpr, calls)
			walkForFunctions(item.ValueExpr, calls)
		}
	case *hclsyntax.ObjectConsKeyExpr:
		walkForFunctions(e.Wrapped, calls)
	case *hclsyntax.ForExpr:
		walkForFunctions(e.CollExpr, calls)
		walkForFunctions(e.KeyExpr, calls)
		walkForFunctions(e.ValExpr, calls)
		walkForFunctions(e.CondExpr, calls)
	case *hclsyntax.IndexExpr:
		walkForFunctions(e.Collection, calls)
		walkForFunctions(e.Key, calls)
	case *hclsyntax.RelativeTraversalExpr:
		walkForFunctions(e.Source, calls)
	case *hclsyntax.SplatExpr:
		walkForFunctions(e.Source, calls)
		walkForFunctions(e.Each, calls)
	case *hclsyntax.ParenthesesExpr:
		walkForFunctions(e.Expression, calls)
	}
}
