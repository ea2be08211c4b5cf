package param

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
)

// Shorthand constructors for the common leaf shapes. They keep settings
// schemas declarative at call sites instead of spelling out full Spec
// literals everywhere.

// String builds a string-typed leaf spec.
func String(name, def, description string) Spec {
	return Spec{Name: name, Type: cty.String, Default: cty.StringVal(def), Description: description}
}

// Bool builds a bool-typed leaf spec.
func Bool(name string, def bool, description string) Spec {
	return Spec{Name: name, Type: cty.Bool, Default: cty.BoolVal(def), Description: description}
}

// Int builds a number-typed leaf spec with an integer default.
func Int(name string, def int64, description string) Spec {
	return Spec{Name: name, Type: cty.Number, Default: cty.NumberIntVal(def), Description: description}
}

// Float builds a number-typed leaf spec with a float default.
func Float(name string, def float64, description string) Spec {
	return Spec{Name: name, Type: cty.Number, Default: cty.NumberFloatVal(def), Description: description}
}

// Enum builds a string-typed leaf restricted to the given options.
func Enum(name, def string, options []string, description string) Spec {
	enum := make([]cty.Value, len(options))
	for i, opt := range options {
		enum[i] = cty.StringVal(opt)
	}
	return Spec{Name: name, Type: cty.String, Default: cty.StringVal(def), Enum: enum, Description: description}
}

// Typed getters. The iterator engine reads its own settings surface through
// these constantly, so the conversion noise lives here.

// GetString returns the string value of the leaf at the dotted path.
func (t *Tree) GetString(path string) (string, error) {
	v, err := t.Get(path)
	if err != nil {
		return "", err
	}
	if v.Type() != cty.String {
		return "", fmt.Errorf("parameter %q is %s, not string", path, v.Type().FriendlyName())
	}
	return v.AsString(), nil
}

// GetBool returns the bool value of the leaf at the dotted path.
func (t *Tree) GetBool(path string) (bool, error) {
	v, err := t.Get(path)
	if err != nil {
		return false, err
	}
	if v.Type() != cty.Bool {
		return false, fmt.Errorf("parameter %q is %s, not bool", path, v.Type().FriendlyName())
	}
	return v.True(), nil
}

// GetInt returns the integer value of the leaf at the dotted path. A number
// with a fractional part is an error.
func (t *Tree) GetInt(path string) (int, error) {
	v, err := t.Get(path)
	if err != nil {
		return 0, err
	}
	if v.Type() != cty.Number {
		return 0, fmt.Errorf("parameter %q is %s, not number", path, v.Type().FriendlyName())
	}
	bf := v.AsBigFloat()
	if !bf.IsInt() {
		return 0, fmt.Errorf("parameter %q must be a whole number", path)
	}
	n, _ := bf.Int64()
	return int(n), nil
}

// GetFloat returns the float value of the leaf at the dotted path.
func (t *Tree) GetFloat(path string) (float64, error) {
	v, err := t.Get(path)
	if err != nil {
		return 0, err
	}
	if v.Type() != cty.Number {
		return 0, fmt.Errorf("parameter %q is %s, not number", path, v.Type().FriendlyName())
	}
	f, _ := v.AsBigFloat().Float64()
	return f, nil
}
