package schema

import (
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/iancoleman/strcase"

	"github.com/rogiervandergeer/structargs/internal/convert"
)

var (
	timeType     = reflect.TypeOf(time.Time{})
	durationType = reflect.TypeOf(time.Duration(0))
	anyType      = reflect.TypeOf((*any)(nil)).Elem()
)

// Of builds the record descriptor tree for a struct type, classifying every
// field and resolving nested records and command variants eagerly. All
// declaration-time errors of the schema surface here.
func Of(t reflect.Type) (*Record, error) {
	return buildRecord(t, nil)
}

func buildRecord(t reflect.Type, path []reflect.Type) (*Record, error) {
	if t.Kind() != reflect.Struct {
		return nil, errf(t, "", "record type must be a struct, got %s", t.Kind())
	}
	for _, seen := range path {
		if seen == t {
			return nil, errf(t, "", "recursive nesting of record type")
		}
	}
	path = append(path, t)

	rec := &Record{Type: t}
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		f, err := buildField(t, sf, i, path)
		if err != nil {
			return nil, err
		}
		rec.Fields = append(rec.Fields, f)
	}
	return rec, nil
}

func buildField(owner reflect.Type, sf reflect.StructField, index int, path []reflect.Type) (*Field, error) {
	f := &Field{
		Name:  sf.Name,
		Key:   strcase.ToSnake(sf.Name),
		Index: index,
		Type:  sf.Type,
	}
	if err := parseTags(owner, sf, f); err != nil {
		return nil, err
	}
	if err := classify(owner, f, path); err != nil {
		return nil, err
	}
	if err := validate(owner, f); err != nil {
		return nil, err
	}
	if err := resolveTagDefault(owner, f); err != nil {
		return nil, err
	}
	return f, nil
}

func parseTags(owner reflect.Type, sf reflect.StructField, f *Field) error {
	tag := sf.Tag
	f.Help = tag.Get("help")
	f.Metavar = tag.Get("metavar")
	f.EnvVar = tag.Get("env")
	f.Layout = tag.Get("layout")
	f.Encoding = tag.Get("encoding")
	f.ParserRef = tag.Get("parser")
	if cs := tag.Get("choices"); cs != "" {
		for _, c := range strings.Split(cs, ",") {
			f.Choices = append(f.Choices, strings.TrimSpace(c))
		}
	}
	if s, ok := tag.Lookup("short"); ok {
		s = strings.TrimPrefix(s, "-")
		if len(s) != 1 {
			return errf(owner, f.Name, "short option must be a single character, got %q", s)
		}
		f.Short = s
	}
	var err error
	if f.Positional, err = boolTag(owner, f.Name, tag, "positional"); err != nil {
		return err
	}
	if f.Required, err = boolTag(owner, f.Name, tag, "required"); err != nil {
		return err
	}
	if f.Ignored, err = boolTag(owner, f.Name, tag, "ignore"); err != nil {
		return err
	}
	if f.Negatable, err = boolTag(owner, f.Name, tag, "negatable"); err != nil {
		return err
	}
	if d, ok := tag.Lookup("default"); ok {
		f.HasTagDefault = true
		f.TagDefault = d // converted after classification
	}
	return nil
}

// boolTag treats a present-but-empty marker tag as true.
func boolTag(owner reflect.Type, field string, tag reflect.StructTag, name string) (bool, error) {
	v, ok := tag.Lookup(name)
	if !ok {
		return false, nil
	}
	if v == "" {
		return true, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, errf(owner, field, "invalid %s tag value %q", name, v)
	}
	return b, nil
}

// classify decides the argument shape of a field. The decision order
// matters: structurally more specific rules win.
func classify(owner reflect.Type, f *Field, path []reflect.Type) error {
	t := f.Type

	// Custom parser override beats everything else.
	if f.ParserRef != "" {
		fn, ok := ParserFor(f.ParserRef)
		if !ok {
			return errf(owner, f.Name, "no parser registered under %q", f.ParserRef)
		}
		f.Kind = KindScalar
		f.Conv = convert.Named(f.ParserRef, fn)
		return nil
	}

	// Scalar union declared on an `any` field via the union tag.
	if tag, ok := unionTag(owner, f); ok {
		if t != anyType {
			return errf(owner, f.Name, "union tag requires an `any` field, got %s", t)
		}
		conv, err := convert.UnionFromNames(tag)
		if err != nil {
			return errf(owner, f.Name, "%v", err)
		}
		f.Kind = KindScalar
		f.Conv = conv
		return nil
	}

	// Byte strings before the generic slice rule.
	if t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8 {
		conv, err := convert.Bytes(f.Encoding)
		if err != nil {
			return errf(owner, f.Name, "%v", err)
		}
		f.Kind = KindScalar
		f.Conv = conv
		return nil
	}

	if t.Kind() == reflect.Slice {
		elem := t.Elem()
		conv, err := scalarConverter(elem, f)
		if err != nil {
			return errf(owner, f.Name, "unsupported list element type %s", elem)
		}
		f.Kind = KindList
		f.ElemType = elem
		f.Conv = conv
		return nil
	}

	// Optional scalar declared as a pointer.
	if t.Kind() == reflect.Pointer {
		elem := t.Elem()
		if elem.Kind() == reflect.Struct && elem != timeType && !convert.IsTextUnmarshaler(elem) {
			return errf(owner, f.Name, "pointer to record type is not supported")
		}
		conv, err := scalarConverter(elem, f)
		if err != nil {
			return errf(owner, f.Name, "unsupported pointer element type %s", elem)
		}
		f.Kind = KindScalar
		f.Pointer = true
		f.ElemType = elem
		f.Conv = conv
		return nil
	}

	// Tagged union of record types: interface field with registered variants.
	if t.Kind() == reflect.Interface {
		vts, ok := VariantsFor(t)
		if !ok {
			return errf(owner, f.Name, "no variants registered for interface type %s", t)
		}
		f.Kind = KindCommand
		for _, vt := range vts {
			vrec, err := buildRecord(vt, path)
			if err != nil {
				return err
			}
			f.Variants = append(f.Variants, Variant{
				Name:   vt.Name(),
				Alias:  strings.ToLower(vt.Name()),
				Type:   vt,
				Record: vrec,
			})
		}
		return nil
	}

	if t == timeType || t == durationType {
		f.Kind = KindScalar
		conv, err := scalarConverter(t, f)
		if err != nil {
			return errf(owner, f.Name, "%v", err)
		}
		f.Conv = conv
		return nil
	}

	if t.Kind() == reflect.Bool {
		if f.Negatable {
			f.Kind = KindBoolPair
		} else {
			f.Kind = KindScalar
			f.Conv = convert.Bool()
		}
		return nil
	}

	// Enumeration-like types convert through encoding.TextUnmarshaler and
	// take precedence over nested-record treatment.
	if convert.IsTextUnmarshaler(t) {
		f.Kind = KindScalar
		f.Conv = convert.TextUnmarshaler(t)
		return nil
	}

	if t.Kind() == reflect.Struct {
		rec, err := buildRecord(t, path)
		if err != nil {
			return err
		}
		f.Kind = KindRecord
		f.Record = rec
		return nil
	}

	conv, err := scalarConverter(t, f)
	if err != nil {
		return errf(owner, f.Name, "parsing into type %s is not supported", t)
	}
	f.Kind = KindScalar
	f.Conv = conv
	return nil
}

// scalarConverter resolves the single-value converter for a type, honoring
// the field's layout tag for timestamps.
func scalarConverter(t reflect.Type, f *Field) (convert.Converter, error) {
	if t == timeType {
		return convert.DateTime(f.Layout), nil
	}
	return convert.ForType(t)
}

func unionTag(owner reflect.Type, f *Field) ([]string, bool) {
	sf := owner.Field(f.Index)
	v, ok := sf.Tag.Lookup("union")
	if !ok {
		return nil, false
	}
	return strings.Split(v, ","), true
}

// validate enforces the declaration-time invariants that are independent of
// nesting: illegal tag combinations and shapes that can never be rendered.
func validate(owner reflect.Type, f *Field) error {
	if f.Kind == KindRecord || f.Kind == KindCommand {
		if f.EnvVar != "" {
			return errf(owner, f.Name, "env tag is not applicable to a %s field", f.Kind)
		}
		if f.HasTagDefault {
			return errf(owner, f.Name, "default tag is not applicable to a %s field", f.Kind)
		}
	}
	if f.Ignored {
		if f.Required {
			return errf(owner, f.Name, "ignored field cannot be required: it would have no usable value at construction")
		}
		return nil
	}
	if f.Positional && f.Short != "" {
		return errf(owner, f.Name, "positional field cannot have a short option")
	}
	if f.Positional && f.Negatable {
		return errf(owner, f.Name, "positional field cannot be a flag-style boolean")
	}
	if f.Kind == KindRecord && f.Positional {
		return errf(owner, f.Name, "nested record cannot be positional")
	}
	if f.Kind == KindCommand && f.Positional {
		return errf(owner, f.Name, "command field is positional by nature; drop the positional tag")
	}
	if f.Negatable && f.Type.Kind() != reflect.Bool {
		return errf(owner, f.Name, "negatable tag requires a bool field")
	}
	if len(f.Choices) > 0 && f.Kind != KindScalar && f.Kind != KindList {
		return errf(owner, f.Name, "choices tag is not applicable to a %s field", f.Kind)
	}
	return nil
}

// resolveTagDefault converts the raw `default` tag text into a typed value
// using the field's own converter, so bad defaults fail at schema time.
func resolveTagDefault(owner reflect.Type, f *Field) error {
	if !f.HasTagDefault {
		return nil
	}
	raw, _ := f.TagDefault.(string)
	switch f.Kind {
	case KindBoolPair:
		v, err := convert.Bool().Convert(raw)
		if err != nil {
			return errf(owner, f.Name, "bad default: %v", err)
		}
		f.TagDefault = v
	case KindList:
		var vals []any
		if raw != "" {
			for _, part := range strings.Split(raw, ",") {
				v, err := f.Conv.Convert(strings.TrimSpace(part))
				if err != nil {
					return errf(owner, f.Name, "bad default: %v", err)
				}
				vals = append(vals, v)
			}
		}
		f.TagDefault = vals
	default:
		v, err := f.Conv.Convert(raw)
		if err != nil {
			return errf(owner, f.Name, "bad default: %v", err)
		}
		f.TagDefault = v
	}
	return nil
}
