// Package env_vars exposes the process environment to source expressions.
package env_vars

import (
	"fmt"
	"os"
	"strings"

	"github.com/specialistvlad/gridhost/internal/semantic"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
)

// Module implements the semantic.Module interface for this package.
type Module struct{}

// EnvFunc returns the value of an environment variable. An optional second
// argument is returned when the variable is unset; without it the result is
// null.
var EnvFunc = function.New(&function.Spec{
	Description: "Returns the value of an environment variable.",
	Params: []function.Parameter{
		{Name: "name", Type: cty.String},
	},
	VarParam: &function.Parameter{Name: "default", Type: cty.String},
	Type:     function.StaticReturnType(cty.String),
	Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
		if len(args) > 2 {
			return cty.NilVal, fmt.Errorf("env takes a name and at most one default, got %d arguments", len(args))
		}
		if v, ok := os.LookupEnv(args[0].AsString()); ok {
			return cty.StringVal(v), nil
		}
		if len(args) == 2 {
			return args[1], nil
		}
		return cty.NullVal(cty.String), nil
	},
})

// EnvVarsFunc returns every environment variable as a map.
var EnvVarsFunc = function.New(&function.Spec{
	Description: "Returns all environment variables as a map.",
	Params:      []function.Parameter{},
	Type:        function.StaticReturnType(cty.Map(cty.String)),
	Impl: func(_ []cty.Value, _ cty.Type) (cty.Value, error) {
		envMap := make(map[string]cty.Value)
		for _, e := range os.Environ() {
			pair := strings.SplitN(e, "=", 2)
			if len(pair) == 2 && pair[0] != "" {
				envMap[pair[0]] = cty.StringVal(pair[1])
			}
		}
		if len(envMap) == 0 {
			return cty.MapValEmpty(cty.String), nil
		}
		return cty.MapVal(envMap), nil
	},
})

// Register adds env and env_vars to the scope.
func (m *Module) Register(s *semantic.Scope) {
	s.RegisterFunction("env", EnvFunc)
	s.RegisterFunction("env_vars", EnvVarsFunc)
}
