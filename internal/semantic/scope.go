// Package semantic holds the global scope shared by every deployed artifact
// and the static checks a parsed file must pass before it is deployed.
package semantic

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/ext/tryfunc"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// Module contributes native functions and variables to a Scope.
type Module interface {
	Register(s *Scope)
}

// Scope is the set of functions and variables visible to every expression.
// It is safe for concurrent use.
type Scope struct {
	mu        sync.RWMutex
	functions map[string]function.Function
	variables map[string]cty.Value
}

// NewScope creates an empty Scope.
func NewScope() *Scope {
	return &Scope{
		functions: make(map[string]function.Function),
		variables: make(map[string]cty.Value),
	}
}

// NewGlobalScope creates a Scope holding the standard function library and
// the given modules.
func NewGlobalScope(modules ...Module) *Scope {
	s := NewScope()
	for name, fn := range standardFunctions() {
		s.RegisterFunction(name, fn)
	}
	for _, m := range modules {
		m.Register(s)
	}
	return s
}

func standardFunctions() map[string]function.Function {
	return map[string]function.Function{
		"abs":        stdlib.AbsoluteFunc,
		"can":        tryfunc.CanFunc,
		"ceil":       stdlib.CeilFunc,
		"coalesce":   stdlib.CoalesceFunc,
		"concat":     stdlib.ConcatFunc,
		"contains":   stdlib.ContainsFunc,
		"floor":      stdlib.FloorFunc,
		"format":     stdlib.FormatFunc,
		"formatdate": stdlib.FormatDateFunc,
		"join":       stdlib.JoinFunc,
		"jsondecode": stdlib.JSONDecodeFunc,
		"jsonencode": stdlib.JSONEncodeFunc,
		"keys":       stdlib.KeysFunc,
		"length":     stdlib.LengthFunc,
		"lookup":     stdlib.LookupFunc,
		"lower":      stdlib.LowerFunc,
		"max":        stdlib.MaxFunc,
		"merge":      stdlib.MergeFunc,
		"min":        stdlib.MinFunc,
		"parseint":   stdlib.ParseIntFunc,
		"replace":    stdlib.ReplaceFunc,
		"split":      stdlib.SplitFunc,
		"strlen":     stdlib.StrlenFunc,
		"substr":     stdlib.SubstrFunc,
		"title":      stdlib.TitleFunc,
		"trimspace":  stdlib.TrimSpaceFunc,
		"try":        tryfunc.TryFunc,
		"upper":      stdlib.UpperFunc,
		"values":     stdlib.ValuesFunc,
	}
}

// RegisterFunction adds a native function. It panics if the name is taken,
// since that can only be a wiring mistake.
func (s *Scope) RegisterFunction(name string, fn function.Function) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.functions[name]; exists {
		panic(fmt.Sprintf("function %q is already registered", name))
	}
	s.functions[name] = fn
}

// RegisterVariable adds or replaces a global variable.
func (s *Scope) RegisterVariable(name string, v cty.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.variables[name] = v
}

// HasFunction reports whether a function with the given name is registered.
func (s *Scope) HasFunction(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.functions[name]
	return ok
}

// HasVariable reports whether a global variable with the given name exists.
func (s *Scope) HasVariable(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.variables[name]
	return ok
}

// FunctionNames returns the registered function names, sorted.
func (s *Scope) FunctionNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.functions))
}

// EvalContext builds an evaluation context holding every function and global
// variable plus locals. Locals shadow globals of the same name.
func (s *Scope) EvalContext(locals map[string]cty.Value) *hcl.EvalContext {
	s.mu.RLock()
	defer s.mu.RUnlock()

	vars := make(map[string]cty.Value, len(s.variables)+len(locals))
	maps.Copy(vars, s.variables)
	maps.Copy(vars, locals)

	return &hcl.EvalContext{
		Variables: vars,
		Functions: maps.Clone(s.functions),
	}
}
