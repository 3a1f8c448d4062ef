// Package schema derives field descriptors from a Go struct type and
// classifies each field into the argument shape that determines its
// command-line rendering. Descriptors are built fresh per parse; nothing in
// this package caches across parses.
package schema

import (
	"fmt"
	"reflect"

	"github.com/rogiervandergeer/structargs/internal/convert"
)

// Kind is the argument shape of a field after classification. Shapes that
// only differ in how a single value is converted (datetime, bytes, enum,
// union, custom parser) all collapse into KindScalar with the appropriate
// converter attached.
type Kind int

const (
	// KindScalar takes exactly one value, converted by Field.Conv.
	KindScalar Kind = iota
	// KindList takes one-or-more (required) or zero-or-more (optional)
	// values, each converted by Field.Conv.
	KindList
	// KindBoolPair renders as the switch pair --name / --no-name.
	KindBoolPair
	// KindRecord is a nested record; the walker recurses into it.
	KindRecord
	// KindCommand is a tagged union of record types, rendered as a
	// sub-command dispatch point.
	KindCommand
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindList:
		return "list"
	case KindBoolPair:
		return "bool-pair"
	case KindRecord:
		return "record"
	case KindCommand:
		return "command"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Field describes one declared attribute of a record type.
type Field struct {
	Name  string // Go field name, e.g. "SubAction"
	Key   string // internal key, snake_case, e.g. "sub_action"
	Index int    // struct field index
	Type  reflect.Type

	Kind     Kind
	Conv     convert.Converter // value converter for scalar / list element
	ElemType reflect.Type      // list element type
	Pointer  bool              // optional scalar declared as *T

	Record   *Record   // nested record descriptor (KindRecord)
	Variants []Variant // command alternatives (KindCommand)

	Choices []string

	Help      string
	Metavar   string
	Short     string // single-letter alias, without the leading dash
	EnvVar    string
	Layout    string // time layout override
	Encoding  string // bytes encoding
	ParserRef string // name of a registered custom parser

	Positional bool
	Required   bool
	Ignored    bool
	Negatable  bool

	TagDefault    any
	HasTagDefault bool
}

// HasDefault reports whether omitting the argument is allowed; the resolved
// default is the prototype's field value at synthesis time.
func (f *Field) HasDefault() bool { return !f.Required }

// Variant is one alternative record type of a command field, addressable by
// its type name (case-sensitive) or a lowercase alias.
type Variant struct {
	Name   string
	Alias  string
	Type   reflect.Type
	Record *Record
}

// Record is the schema of one record type: its fields in declaration order.
type Record struct {
	Type   reflect.Type
	Fields []*Field
}

// FieldByKey returns the field with the given internal key, or nil.
func (r *Record) FieldByKey(key string) *Field {
	for _, f := range r.Fields {
		if f.Key == key {
			return f
		}
	}
	return nil
}

// Error is a declaration-time problem with the record type itself. Schema
// errors are always raised while the parser is being constructed, never
// deferred to parse time.
type Error struct {
	Type  reflect.Type
	Field string
	Msg   string
}

func (e *Error) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("schema %s: %s", e.Type, e.Msg)
	}
	return fmt.Sprintf("schema %s: field %s: %s", e.Type, e.Field, e.Msg)
}

func errf(t reflect.Type, field, format string, args ...any) *Error {
	return &Error{Type: t, Field: field, Msg: fmt.Sprintf(format, args...)}
}

// Defaulter is the optional default factory hook: Parse instantiates a fresh
// record and, when the pointer receiver implements Defaulter, invokes it
// before applying `default` tags and parsed values.
type Defaulter interface {
	Defaults()
}
