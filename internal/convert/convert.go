// Package convert provides the string-to-value converters used when turning
// command-line tokens into typed field values. Every converter carries a
// human-readable name so that error messages can say which kind of value was
// expected ("invalid int value: 'abc'") without inspecting the function.
package convert

import (
	"encoding"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Converter turns one textual argument into a typed value. Name is the
// display name used in user-facing error messages.
type Converter struct {
	Name string
	Func func(string) (any, error)
}

// Convert applies the converter to a single token.
func (c Converter) Convert(s string) (any, error) {
	v, err := c.Func(s)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value: '%s'", c.Name, s)
	}
	return v, nil
}

// IsZero reports whether the converter is unset.
func (c Converter) IsZero() bool { return c.Func == nil }

// Named wraps an arbitrary conversion function with a display name.
func Named(name string, fn func(string) (any, error)) Converter {
	return Converter{Name: name, Func: fn}
}

var (
	durationType        = reflect.TypeOf(time.Duration(0))
	timeType            = reflect.TypeOf(time.Time{})
	textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
)

// IsTextUnmarshaler reports whether values of t can be produced through
// encoding.TextUnmarshaler (by value or pointer receiver).
func IsTextUnmarshaler(t reflect.Type) bool {
	return t.Implements(textUnmarshalerType) || reflect.PointerTo(t).Implements(textUnmarshalerType)
}

// ForType returns a converter producing values of exactly the given type.
// It covers the plain scalar kinds: strings, integers, unsigned integers,
// floats, value-style booleans, and time.Duration. Types outside that set
// yield an error; the classifier is expected to have routed them elsewhere.
func ForType(t reflect.Type) (Converter, error) {
	if t == durationType {
		return Duration(), nil
	}
	if t == timeType {
		return DateTime(""), nil
	}
	if t.Implements(textUnmarshalerType) || reflect.PointerTo(t).Implements(textUnmarshalerType) {
		return TextUnmarshaler(t), nil
	}
	switch t.Kind() {
	case reflect.String:
		return Converter{Name: "string", Func: func(s string) (any, error) {
			return reflect.ValueOf(s).Convert(t).Interface(), nil
		}}, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Converter{Name: "int", Func: func(s string) (any, error) {
			n, err := strconv.ParseInt(s, 10, t.Bits())
			if err != nil {
				return nil, err
			}
			v := reflect.New(t).Elem()
			v.SetInt(n)
			return v.Interface(), nil
		}}, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return Converter{Name: "uint", Func: func(s string) (any, error) {
			n, err := strconv.ParseUint(s, 10, t.Bits())
			if err != nil {
				return nil, err
			}
			v := reflect.New(t).Elem()
			v.SetUint(n)
			return v.Interface(), nil
		}}, nil
	case reflect.Float32, reflect.Float64:
		return Converter{Name: "float", Func: func(s string) (any, error) {
			f, err := strconv.ParseFloat(s, t.Bits())
			if err != nil {
				return nil, err
			}
			v := reflect.New(t).Elem()
			v.SetFloat(f)
			return v.Interface(), nil
		}}, nil
	case reflect.Bool:
		return Bool(), nil
	}
	return Converter{}, fmt.Errorf("no converter for type %s", t)
}

// Bool parses value-style booleans: true/false/1/0, case-insensitively.
func Bool() Converter {
	return Converter{Name: "bool", Func: func(s string) (any, error) {
		switch strings.ToLower(s) {
		case "true", "1":
			return true, nil
		case "false", "0":
			return false, nil
		}
		return nil, fmt.Errorf("not a boolean: %s", s)
	}}
}

// Duration parses Go duration strings such as "1h30m".
func Duration() Converter {
	return Converter{Name: "duration", Func: func(s string) (any, error) {
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, err
		}
		return d, nil
	}}
}

// defaultTimeLayouts are tried in order when no explicit layout is declared.
var defaultTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// DateTime parses time.Time values. With a non-empty layout only that layout
// is accepted; otherwise a small list of unambiguous layouts is tried.
func DateTime(layout string) Converter {
	return Converter{Name: "timestamp", Func: func(s string) (any, error) {
		if layout != "" {
			return time.Parse(layout, s)
		}
		var lastErr error
		for _, l := range defaultTimeLayouts {
			t, err := time.Parse(l, s)
			if err == nil {
				return t, nil
			}
			lastErr = err
		}
		return nil, lastErr
	}}
}

// Bytes encodes the textual argument into a byte slice using the named text
// encoding. Supported encodings: utf8 (the default), ascii, hex, base64.
// The converter's display name is the encoding, so errors read like
// "invalid ascii value: '...'".
func Bytes(enc string) (Converter, error) {
	switch enc {
	case "", "utf8", "utf-8":
		return Converter{Name: "bytes", Func: func(s string) (any, error) {
			return []byte(s), nil
		}}, nil
	case "ascii":
		return Converter{Name: "ascii", Func: func(s string) (any, error) {
			for i := 0; i < len(s); i++ {
				if s[i] > 0x7f {
					return nil, fmt.Errorf("non-ascii byte at offset %d", i)
				}
			}
			return []byte(s), nil
		}}, nil
	case "hex":
		return Converter{Name: "hex", Func: func(s string) (any, error) {
			return hex.DecodeString(s)
		}}, nil
	case "base64":
		return Converter{Name: "base64", Func: func(s string) (any, error) {
			return base64.StdEncoding.DecodeString(s)
		}}, nil
	}
	return Converter{}, fmt.Errorf("unknown bytes encoding %q", enc)
}

// TextUnmarshaler builds a converter for types implementing
// encoding.TextUnmarshaler (enumerations, IP addresses, and similar).
// The produced value has the given type, not a pointer to it, unless the
// type itself is a pointer.
func TextUnmarshaler(t reflect.Type) Converter {
	name := strings.ToLower(t.Name())
	if name == "" {
		name = t.String()
	}
	return Converter{Name: name, Func: func(s string) (any, error) {
		var pv reflect.Value
		if t.Kind() == reflect.Pointer {
			pv = reflect.New(t.Elem())
		} else {
			pv = reflect.New(t)
		}
		u, ok := pv.Interface().(encoding.TextUnmarshaler)
		if !ok {
			return nil, fmt.Errorf("%s does not implement encoding.TextUnmarshaler", t)
		}
		if err := u.UnmarshalText([]byte(s)); err != nil {
			return nil, err
		}
		if t.Kind() == reflect.Pointer {
			return pv.Interface(), nil
		}
		return pv.Elem().Interface(), nil
	}}
}

// Union tries each member converter in declared order and accepts the first
// that succeeds. This is a deliberate priority-ordered fallback chain; the
// members list is explicit rather than derived by probing constructors.
func Union(members []Converter) Converter {
	names := make([]string, len(members))
	for i, m := range members {
		names[i] = m.Name
	}
	name := strings.Join(names, " | ")
	return Converter{Name: name, Func: func(s string) (any, error) {
		for _, m := range members {
			if v, err := m.Func(s); err == nil {
				return v, nil
			}
		}
		return nil, fmt.Errorf("no union member accepts %q", s)
	}}
}

// unionMembers maps the names usable in a `union:"..."` tag to converters.
var unionMembers = map[string]func() Converter{
	"int": func() Converter {
		c, _ := ForType(reflect.TypeOf(int(0)))
		return c
	},
	"int64": func() Converter {
		c, _ := ForType(reflect.TypeOf(int64(0)))
		return c
	},
	"uint": func() Converter {
		c, _ := ForType(reflect.TypeOf(uint(0)))
		return c
	},
	"float":   func() Converter { c, _ := ForType(reflect.TypeOf(float64(0))); return c },
	"float64": func() Converter { c, _ := ForType(reflect.TypeOf(float64(0))); return c },
	"bool":    Bool,
	"string": func() Converter {
		c, _ := ForType(reflect.TypeOf(""))
		return c
	},
	"duration":  Duration,
	"timestamp": func() Converter { return DateTime("") },
}

// UnionFromNames resolves a comma-separated member list from a `union` tag.
func UnionFromNames(names []string) (Converter, error) {
	if len(names) == 0 {
		return Converter{}, fmt.Errorf("empty union member list")
	}
	members := make([]Converter, 0, len(names))
	for _, n := range names {
		mk, ok := unionMembers[strings.TrimSpace(n)]
		if !ok {
			return Converter{}, fmt.Errorf("unknown union member type %q", n)
		}
		members = append(members, mk())
	}
	return Union(members), nil
}
