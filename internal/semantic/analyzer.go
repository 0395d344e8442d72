package semantic

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/gridhost/internal/ctxlog"
	"github.com/specialistvlad/gridhost/internal/model"
)

// Variable roots visible to resource expressions.
const (
	RequestVariable = "request"
	SessionVariable = "session"
)

// EntryPointName is the function run when a single file is executed.
const EntryPointName = "main"

// Error lists every problem found in a file.
type Error struct {
	File  string
	Diags hcl.Diagnostics
}

func (e *Error) Error() string {
	return fmt.Sprintf("semantic analysis of %s failed: %s", e.File, e.Diags.Error())
}

func (e *Error) Unwrap() error { return e.Diags }

// Analyzer runs the static checks on a parsed file. The zero value is ready
// to use.
type Analyzer struct{}

// Analyze checks file against scope and returns a *Error describing every
// problem, or nil.
func (Analyzer) Analyze(ctx context.Context, file *model.File, scope *Scope) error {
	logger := ctxlog.FromContext(ctx)
	c := &checker{scope: scope}

	c.checkFunctions(file.Functions)
	c.checkServices(file.Services)

	if len(c.diags) > 0 {
		logger.Debug("Semantic analysis found problems.", "file", file.Name, "count", len(c.diags))
		return &Error{File: file.Name, Diags: c.diags}
	}
	logger.Debug("Semantic analysis passed.", "file", file.Name,
		"functions", len(file.Functions), "services", len(file.Services))
	return nil
}

type checker struct {
	scope *Scope
	diags hcl.Diagnostics
}

func (c *checker) errorf(subject hcl.Range, summary, format string, args ...any) {
	c.diags = append(c.diags, &hcl.Diagnostic{
		Severity: hcl.DiagError,
		Summary:  summary,
		Detail:   fmt.Sprintf(format, args...),
		Subject:  subject.Ptr(),
	})
}

func (c *checker) checkFunctions(fns []*model.Function) {
	seen := make(map[string]bool, len(fns))
	for _, fn := range fns {
		if seen[fn.Name] {
			c.errorf(fn.DeclRange, "Duplicate function", "A function named '%s' has already been defined.", fn.Name)
			continue
		}
		seen[fn.Name] = true

		locals := make(map[string]bool, len(fn.Params))
		for _, p := range fn.Params {
			if locals[p.Name] {
				c.errorf(p.DeclRange, "Duplicate parameter", "Function '%s' declares parameter '%s' more than once.", fn.Name, p.Name)
				continue
			}
			locals[p.Name] = true
			if fn.Name == EntryPointName && !p.Type.IsPrimitiveType() {
				c.errorf(p.DeclRange, "Invalid entry point parameter",
					"Parameter '%s' of '%s' must be string, number or bool so it can be supplied from the command line.", p.Name, EntryPointName)
			}
		}

		c.checkExpressions(fmt.Sprintf("function '%s'", fn.Name), locals, fn.Result)
	}
}

func (c *checker) checkServices(services []*model.Service) {
	seenServices := make(map[string]bool, len(services))
	routes := make(map[string]string)

	for _, svc := range services {
		if seenServices[svc.Name] {
			c.errorf(svc.DeclRange, "Duplicate service", "A service named '%s' has already been defined.", svc.Name)
			continue
		}
		seenServices[svc.Name] = true

		if !strings.HasPrefix(svc.BasePath, "/") {
			c.errorf(svc.DeclRange, "Invalid base path", "The base_path of service '%s' must start with '/', got %q.", svc.Name, svc.BasePath)
		}

		seenResources := make(map[string]bool, len(svc.Resources))
		for _, res := range svc.Resources {
			owner := fmt.Sprintf("resource '%s.%s'", svc.Name, res.Name)
			if seenResources[res.Name] {
				c.errorf(res.DeclRange, "Duplicate resource", "Service '%s' already defines a resource named '%s'.", svc.Name, res.Name)
				continue
			}
			seenResources[res.Name] = true

			if res.Path != "" && !strings.HasPrefix(res.Path, "/") {
				c.errorf(res.DeclRange, "Invalid path", "The path of %s must start with '/', got %q.", owner, res.Path)
			}
			if _, err := model.ParseSessionMode(string(res.Session)); err != nil {
				c.errorf(res.DeclRange, "Invalid session mode", "In %s: %s.", owner, err)
			}

			method := res.Method
			if method == "" {
				method = "*"
			}
			route := method + " " + svc.Route(res)
			if prev, taken := routes[route]; taken {
				c.errorf(res.DeclRange, "Duplicate route", "%s serves %s, which %s already serves.", owner, route, prev)
			} else {
				routes[route] = owner
			}

			locals := map[string]bool{RequestVariable: true, SessionVariable: true}
			c.checkExpressions(owner, locals, res.Expressions()...)
		}
	}
}

// checkExpressions verifies that every called function exists in the scope
// and every variable root is either local or a global variable.
func (c *checker) checkExpressions(owner string, locals map[string]bool, exprs ...hcl.Expression) {
	traversals, calls := extractReferencesAndFunctions(exprs...)

	for _, call := range calls {
		if !c.scope.HasFunction(call.Name) {
			c.errorf(call.NameRange, "Call to unknown function",
				"In %s: there is no function named '%s'.", owner, call.Name)
		}
	}

	for _, t := range traversals {
		root := t.RootName()
		if locals[root] || c.scope.HasVariable(root) {
			continue
		}
		c.errorf(t.SourceRange(), "Unknown variable",
			"In %s: '%s' refers to an undeclared variable '%s'.", owner, TraversalKey(t), root)
	}
}
