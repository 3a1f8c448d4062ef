// Package synth turns field descriptors into argument specs on the
// underlying parser: naming, prefixing, required/optional/positional
// placement, help text, and the boolean switch pairs. The recursive walker
// in walk.go drives it across nested records and command fields.
package synth

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/rogiervandergeer/structargs/internal/argparse"
	"github.com/rogiervandergeer/structargs/internal/convert"
	"github.com/rogiervandergeer/structargs/internal/schema"
)

// AddField registers one or two argument specs for a single non-record
// field. defVal is the field's slot in the current prototype; it supplies
// the resolved default for optional fields. External names join words with
// hyphens, internal keys with underscores, both derived from the same
// prefixed field name.
func AddField(p *argparse.Parser, g *argparse.Group, f *schema.Field, defVal reflect.Value, namePrefix, keyPrefix string) error {
	key := keyPrefix + f.Key
	external := strings.ReplaceAll(namePrefix+f.Key, "_", "-")

	var def any
	if f.HasDefault() {
		def = defVal.Interface()
	}

	if f.Kind == schema.KindBoolPair {
		posHelp := f.Help
		if posHelp == "" {
			posHelp = fmt.Sprintf("set %s to true", key)
		}
		pos := &argparse.Argument{
			Flag:        "--" + external,
			Short:       f.Short,
			Key:         key,
			IsSwitch:    true,
			SwitchValue: true,
			Convert:     convert.Bool(),
			Required:    f.Required,
			HasDefault:  f.HasDefault(),
			Default:     def,
			Help:        posHelp,
			EnvVar:      f.EnvVar,
		}
		neg := &argparse.Argument{
			Flag:        "--no-" + external,
			Key:         key,
			IsSwitch:    true,
			SwitchValue: false,
			Convert:     convert.Bool(),
			Help:        fmt.Sprintf("set %s to false", key),
		}
		return p.AddPair(g, pos, neg)
	}

	help := f.Help
	if help == "" {
		help = fmt.Sprintf("override field %s", f.Key)
	}
	a := &argparse.Argument{
		Key:        key,
		Convert:    f.Conv,
		Choices:    f.Choices,
		Required:   f.Required,
		HasDefault: f.HasDefault(),
		Default:    def,
		Help:       help,
		Metavar:    f.Metavar,
		EnvVar:     f.EnvVar,
		Arity:      argparse.One,
	}
	if f.Kind == schema.KindList {
		if f.Required {
			a.Arity = argparse.OneOrMore
		} else {
			a.Arity = argparse.ZeroOrMore
		}
	}
	if f.Positional {
		a.Name = key
	} else {
		a.Flag = "--" + external
		a.Short = f.Short
	}
	return p.Add(g, a)
}
