package executor

import (
	"fmt"
	"maps"
	"slices"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

// ToCtyValue converts a native Go value into its corresponding cty.Value.
// cty values pass through unchanged and nil becomes a dynamic null.
func ToCtyValue(v any) (cty.Value, error) {
	switch v := v.(type) {
	case nil:
		return cty.NullVal(cty.DynamicPseudoType), nil
	case cty.Value:
		return v, nil
	}
	ty, err := gocty.ImpliedType(v)
	if err != nil {
		return cty.NilVal, fmt.Errorf("unable to infer cty.Type: %w", err)
	}
	return gocty.ToCtyValue(v, ty)
}

// objectFromMap converts a map of native or cty values into a cty object.
func objectFromMap(m map[string]any) (cty.Value, error) {
	if len(m) == 0 {
		return cty.EmptyObjectVal, nil
	}
	attrs := make(map[string]cty.Value, len(m))
	for _, k := range slices.Sorted(maps.Keys(m)) {
		v, err := ToCtyValue(m[k])
		if err != nil {
			return cty.NilVal, fmt.Errorf("attribute %q: %w", k, err)
		}
		attrs[k] = v
	}
	return cty.ObjectVal(attrs), nil
}

// stringsObject converts a string map into a cty object of strings.
func stringsObject(m map[string]string) cty.Value {
	if len(m) == 0 {
		return cty.EmptyObjectVal
	}
	attrs := make(map[string]cty.Value, len(m))
	for k, v := range m {
		attrs[k] = cty.StringVal(v)
	}
	return cty.ObjectVal(attrs)
}

// convertArg converts v to want, naming the parameter in the error.
func convertArg(name string, v cty.Value, want cty.Type) (cty.Value, error) {
	if want == cty.NilType {
		want = cty.DynamicPseudoType
	}
	converted, err := convert.Convert(v, want)
	if err != nil {
		return cty.NilVal, fmt.Errorf("cannot convert argument %q from %s to %s: %w",
			name, v.Type().FriendlyName(), want.FriendlyName(), err)
	}
	return converted, nil
}
