package synth

import (
	"log/slog"
	"reflect"

	"github.com/rogiervandergeer/structargs/internal/argparse"
	"github.com/rogiervandergeer/structargs/internal/schema"
)

// AddArguments walks a record's field tree and registers every argument
// spec on the parser. Nested records flatten onto the same parser under a
// deeper name/key prefix; command fields allocate one sub-parser per
// alternative. proto must be a prototype of rec (it supplies defaults).
func AddArguments(p *argparse.Parser, rec *schema.Record, proto reflect.Value, namePrefix, keyPrefix string) error {
	return addArguments(p, nil, rec, proto, namePrefix, keyPrefix)
}

func addArguments(p *argparse.Parser, g *argparse.Group, rec *schema.Record, proto reflect.Value, namePrefix, keyPrefix string) error {
	for _, f := range rec.Fields {
		if f.Ignored {
			continue
		}
		switch f.Kind {
		case schema.KindCommand:
			if err := addCommand(p, f, namePrefix, keyPrefix); err != nil {
				return err
			}
		case schema.KindRecord:
			if err := addNested(p, f, proto, namePrefix, keyPrefix); err != nil {
				return err
			}
		default:
			if f.Positional && p.HasSubparsers() {
				slog.Warn("structargs: positional argument declared after a subcommand field cannot be matched",
					"field", keyPrefix+f.Key)
			}
			if err := AddField(p, g, f, proto.Field(f.Index), namePrefix, keyPrefix); err != nil {
				return err
			}
		}
	}
	return nil
}

// addNested opens a named help section for the nested record and recurses
// with the prefixes extended by the field name. The nested type's own field
// defaults apply; a pre-populated nested default on the parent cannot be
// honored per argument and is reported.
func addNested(p *argparse.Parser, f *schema.Field, proto reflect.Value, namePrefix, keyPrefix string) error {
	nestedProto, err := f.Record.NewPrototype()
	if err != nil {
		return err
	}
	parentDef := proto.Field(f.Index)
	if !parentDef.IsZero() && !reflect.DeepEqual(parentDef.Interface(), nestedProto.Interface()) {
		slog.Warn("structargs: custom default value of a nested record field is not honored by per-argument defaults",
			"field", keyPrefix+f.Key)
	}
	grp := p.Group(keyPrefix + f.Key)
	return addArguments(p, grp, f.Record, nestedProto, namePrefix+f.Key+"_", keyPrefix+f.Key+"_")
}

// addCommand allocates the sub-command dispatch point and one sub-parser
// per alternative, registered under the type name and a lowercase alias.
// Argument names inside a chosen alternative keep the surrounding name
// prefix but are not re-prefixed by the command field's own name; only the
// internal key extends, so reconstruction can find them.
func addCommand(p *argparse.Parser, f *schema.Field, namePrefix, keyPrefix string) error {
	key := keyPrefix + f.Key
	sub, err := p.AddSubparsers(key, key, f.Required)
	if err != nil {
		return err
	}
	for _, v := range f.Variants {
		sp := sub.AddParser(p, v.Name, v.Alias)
		vproto, err := v.Record.NewPrototype()
		if err != nil {
			return err
		}
		if err := addArguments(sp, nil, v.Record, vproto, namePrefix, key+"_"); err != nil {
			return err
		}
	}
	return nil
}
