// Package reconcile rebuilds the nested record tree from the flat parsed
// namespace. It is the inverse of synthesis: innermost records are built
// first and stashed back into the namespace under their parent key, so the
// general extraction step at each level picks them up like any other value,
// and every consumed key is removed so ancestors only see unclaimed keys.
package reconcile

import (
	"fmt"
	"reflect"

	"github.com/rogiervandergeer/structargs/internal/argparse"
	"github.com/rogiervandergeer/structargs/internal/schema"
)

// Build reconstructs one record from the namespace under the given key
// prefix. The caller owns the leftover-key check after the root build.
func Build(rec *schema.Record, ns *argparse.Namespace, keyPrefix string) (reflect.Value, error) {
	out, err := rec.NewPrototype()
	if err != nil {
		return reflect.Value{}, err
	}

	for _, f := range rec.Fields {
		if f.Ignored {
			continue
		}
		switch f.Kind {
		case schema.KindRecord:
			sub, err := Build(f.Record, ns, keyPrefix+f.Key+"_")
			if err != nil {
				return reflect.Value{}, err
			}
			ns.Set(keyPrefix+f.Key, sub.Interface())
		case schema.KindCommand:
			raw, ok := ns.Take(keyPrefix + f.Key)
			if !ok {
				// No choice was made; the field's own default stands.
				continue
			}
			name, ok := raw.(string)
			if !ok {
				return reflect.Value{}, argparse.Internalf(
					"subcommand choice for %s is not a string, got %T", keyPrefix+f.Key, raw)
			}
			v := variantByName(f, name)
			if v == nil {
				return reflect.Value{}, argparse.Internalf(
					"unreconcilable subcommand choice %q for %s", name, keyPrefix+f.Key)
			}
			built, err := Build(v.Record, ns, keyPrefix+f.Key+"_")
			if err != nil {
				return reflect.Value{}, err
			}
			ns.Set(keyPrefix+f.Key, built.Interface())
		}
	}

	for _, f := range rec.Fields {
		if f.Ignored {
			continue
		}
		v, ok := ns.Take(keyPrefix + f.Key)
		if !ok {
			continue
		}
		if err := f.Assign(out, v); err != nil {
			return reflect.Value{}, fmt.Errorf("field %s: %w", keyPrefix+f.Key, err)
		}
	}
	return out, nil
}

// variantByName resolves a chosen sub-command token against the variant's
// type name (case-sensitive) or its lowercase alias.
func variantByName(f *schema.Field, name string) *schema.Variant {
	for i := range f.Variants {
		v := &f.Variants[i]
		if v.Name == name || v.Alias == name {
			return v
		}
	}
	return nil
}
