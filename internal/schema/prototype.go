package schema

import (
	"fmt"
	"reflect"

	"github.com/rogiervandergeer/structargs/internal/convert"
)

// NewPrototype builds a fresh instance of the record carrying its declared
// defaults: the zero value, then the Defaults hook when implemented, then
// `default` tag values. The prototype supplies the resolved default for
// every optional field at synthesis and reconstruction time. A fresh
// prototype is built per parse, so factory-produced defaults never leak
// between invocations.
func (r *Record) NewPrototype() (reflect.Value, error) {
	pv := reflect.New(r.Type)
	if d, ok := pv.Interface().(Defaulter); ok {
		d.Defaults()
	}
	v := pv.Elem()
	for _, f := range r.Fields {
		if !f.HasTagDefault {
			continue
		}
		if err := f.Assign(v, f.TagDefault); err != nil {
			return reflect.Value{}, errf(r.Type, f.Name, "cannot apply default: %v", err)
		}
	}
	return v, nil
}

// Assign stores a parsed (or default) value into the field's slot of a
// record instance, materializing pointers and typed slices as needed.
func (f *Field) Assign(rec reflect.Value, val any) error {
	target := rec.Field(f.Index)
	if val == nil {
		target.SetZero()
		return nil
	}
	rv := reflect.ValueOf(val)

	if rv.Type().AssignableTo(target.Type()) {
		target.Set(rv)
		return nil
	}

	switch target.Kind() {
	case reflect.Interface:
		return fmt.Errorf("value of type %s does not implement %s", rv.Type(), target.Type())
	case reflect.Pointer:
		ev, err := coerce(target.Type().Elem(), f.Conv, rv)
		if err != nil {
			return err
		}
		p := reflect.New(target.Type().Elem())
		p.Elem().Set(ev)
		target.Set(p)
		return nil
	case reflect.Slice:
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return fmt.Errorf("cannot assign %s to list field", rv.Type())
		}
		out := reflect.MakeSlice(target.Type(), 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			elem := rv.Index(i)
			if elem.Kind() == reflect.Interface {
				elem = elem.Elem()
			}
			ev, err := coerce(target.Type().Elem(), f.Conv, elem)
			if err != nil {
				return err
			}
			out = reflect.Append(out, ev)
		}
		target.Set(out)
		return nil
	}

	ev, err := coerce(target.Type(), f.Conv, rv)
	if err != nil {
		return err
	}
	target.Set(ev)
	return nil
}

// coerce adapts a value to the wanted type. Exact and convertible values
// pass through reflection; textual values from config files are run through
// the field's own converter.
func coerce(want reflect.Type, conv convert.Converter, rv reflect.Value) (reflect.Value, error) {
	if !rv.IsValid() {
		return reflect.Zero(want), nil
	}
	if rv.Type().AssignableTo(want) {
		return rv, nil
	}
	if rv.Kind() == reflect.String && want.Kind() != reflect.String && !conv.IsZero() {
		v, err := conv.Convert(rv.String())
		if err != nil {
			return reflect.Value{}, err
		}
		cv := reflect.ValueOf(v)
		if cv.Type().AssignableTo(want) {
			return cv, nil
		}
		if cv.Type().ConvertibleTo(want) {
			return cv.Convert(want), nil
		}
		return reflect.Value{}, fmt.Errorf("converter produced %s, want %s", cv.Type(), want)
	}
	// Numeric-to-string conversion in reflect means "rune to string"; that is
	// never what a config value intends, so reject it outright.
	if want.Kind() == reflect.String && rv.Kind() != reflect.String {
		return reflect.Value{}, fmt.Errorf("cannot use %s value as %s", rv.Type(), want)
	}
	if rv.Type().ConvertibleTo(want) {
		return rv.Convert(want), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot use %s value as %s", rv.Type(), want)
}
