package format

import (
	"reflect"

	"github.com/INLOpen/prevaldb/core"
)

// Clone produces a deep copy of v so that no reference into the live model
// escapes the engine boundary. Values implementing core.Cloner copy
// themselves; everything else round-trips through the formatter. Both paths
// are fallible and report failures as *core.CloneError.
func Clone(f Formatter, op string, v any) (any, error) {
	if v == nil {
		return nil, nil
	}

	if c, ok := v.(core.Cloner); ok {
		out, err := c.CloneValue()
		if err != nil {
			return nil, &core.CloneError{Op: op, Err: err}
		}
		return out, nil
	}

	data, err := f.Marshal(v)
	if err != nil {
		return nil, &core.CloneError{Op: op, Err: err}
	}

	rv := reflect.ValueOf(v)
	var dst reflect.Value
	if rv.Kind() == reflect.Pointer {
		dst = reflect.New(rv.Type().Elem())
	} else {
		dst = reflect.New(rv.Type())
	}
	if err := f.Unmarshal(data, dst.Interface()); err != nil {
		return nil, &core.CloneError{Op: op, Err: err}
	}

	if rv.Kind() == reflect.Pointer {
		return dst.Interface(), nil
	}
	return dst.Elem().Interface(), nil
}
