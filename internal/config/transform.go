package config

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// TransformMode selects how retrieved entries are transformed.
type TransformMode int

const (
	// TransformNormalize flattens entries with the default normalizer.
	TransformNormalize TransformMode = iota
	// TransformDisabled keeps the raw entries.
	TransformDisabled
	// TransformCustom applies a user supplied function.
	TransformCustom
)

func (m TransformMode) String() string {
	switch m {
	case TransformNormalize:
		return "normalize"
	case TransformDisabled:
		return "disabled"
	case TransformCustom:
		return "custom"
	default:
		return fmt.Sprintf("TransformMode(%d)", int(m))
	}
}

// TransformFunc transforms one raw entry.
type TransformFunc func(entry any) (any, error)

// Transform is the per entry transformation of a content type. The zero value normalizes entries.
type Transform struct {
	mode TransformMode
	fn   TransformFunc
}

// Normalize returns the default transform.
func Normalize() Transform {
	return Transform{mode: TransformNormalize}
}

// Disabled returns the identity transform.
func Disabled() Transform {
	return Transform{mode: TransformDisabled}
}

// Custom returns a transform applying fn to every entry. A nil fn disables the transform.
func Custom(fn TransformFunc) Transform {
	if fn == nil {
		return Disabled()
	}
	return Transform{mode: TransformCustom, fn: fn}
}

// Mode returns the kind of transform.
func (t Transform) Mode() TransformMode {
	return t.mode
}

// Func returns the function of a custom transform.
func (t Transform) Func() TransformFunc {
	return t.fn
}

// ParseTransform reads a transform from its configuration file form: a boolean or a mode name.
func ParseTransform(v any) (Transform, error) {
	switch v := v.(type) {
	case nil:
		return Normalize(), nil
	case bool:
		if v {
			return Normalize(), nil
		}
		return Disabled(), nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "", "true", "normalize", "default":
			return Normalize(), nil
		case "false", "none", "disabled":
			return Disabled(), nil
		}
	}
	return Transform{}, fmt.Errorf("unsupported transform %v: expecting a boolean, %q or %q", v, "normalize", "disabled")
}

var transformType = reflect.TypeOf(Transform{})

// TransformHook is a decode hook reading Transform values with ParseTransform.
func TransformHook() mapstructure.DecodeHookFuncType {
	return func(_ reflect.Type, to reflect.Type, data any) (any, error) {
		if to != transformType {
			return data, nil
		}
		return ParseTransform(data)
	}
}
