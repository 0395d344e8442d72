// Package print provides a pass-through function that logs the value it is
// given, for inspecting expressions while they are evaluated.
package print

import (
	"log/slog"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	ctyjson "github.com/zclconf/go-cty/cty/json"

	"github.com/specialistvlad/gridhost/internal/semantic"
)

// Module implements the semantic.Module interface for this package.
type Module struct {
	// Logger receives printed values. Defaults to slog.Default().
	Logger *slog.Logger
}

// Func logs its argument and returns it unchanged.
func Func(logger *slog.Logger) function.Function {
	return function.New(&function.Spec{
		Description: "Logs a value and returns it unchanged.",
		Params: []function.Parameter{
			{Name: "value", Type: cty.DynamicPseudoType, AllowNull: true},
		},
		Type: func(args []cty.Value) (cty.Type, error) {
			return args[0].Type(), nil
		},
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			v := args[0]
			logger.Info("Printing value.", "value", render(v), "type", v.Type().FriendlyName())
			return v, nil
		},
	})
}

func render(v cty.Value) string {
	switch {
	case !v.IsWhollyKnown():
		return "(unknown)"
	case v.IsNull():
		return "(null)"
	case v.Type() == cty.String:
		return v.AsString()
	}
	b, err := ctyjson.Marshal(v, v.Type())
	if err != nil {
		return v.GoString()
	}
	return string(b)
}

// Register adds print to the scope.
func (m *Module) Register(s *semantic.Scope) {
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s.RegisterFunction("print", Func(logger))
}
