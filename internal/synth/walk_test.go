package synth

import (
	"bytes"
	"log/slog"
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rogiervandergeer/structargs/internal/argparse"
	"github.com/rogiervandergeer/structargs/internal/schema"
)

// captureLog routes the default logger into a buffer for the duration of
// the test.
func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func buildParser(t *testing.T, typ reflect.Type) *argparse.Parser {
	t.Helper()
	rec, err := schema.Of(typ)
	require.NoError(t, err)
	proto, err := rec.NewPrototype()
	require.NoError(t, err)
	p := argparse.New("prog")
	p.SetEnvLookup(func(string) (string, bool) { return "", false })
	require.NoError(t, AddArguments(p, rec, proto, "", ""))
	return p
}

func TestAddArguments_FlagsAndDefaults(t *testing.T) {
	type record struct {
		Count   int    `default:"2"`
		SubName string `short:"s"`
		Verbose bool   `negatable:""`
	}
	p := buildParser(t, reflect.TypeOf(record{}))

	ns, err := p.Parse([]string{"--count", "5", "-s", "x", "--verbose"})
	require.NoError(t, err)
	v, _ := ns.Take("count")
	assert.Equal(t, 5, v)
	v, _ = ns.Take("sub_name")
	assert.Equal(t, "x", v)
	v, _ = ns.Take("verbose")
	assert.Equal(t, true, v)
	assert.Equal(t, 0, ns.Len())
}

func TestAddArguments_DefaultFromPrototype(t *testing.T) {
	type record struct {
		Count int `default:"2"`
	}
	p := buildParser(t, reflect.TypeOf(record{}))

	ns, err := p.Parse(nil)
	require.NoError(t, err)
	v, ok := ns.Take("count")
	require.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestAddArguments_MultiWordFieldNames(t *testing.T) {
	// External flags join with hyphens, internal keys with underscores.
	type record struct {
		SubAction string
	}
	p := buildParser(t, reflect.TypeOf(record{}))

	ns, err := p.Parse([]string{"--sub-action", "x"})
	require.NoError(t, err)
	v, ok := ns.Take("sub_action")
	require.True(t, ok)
	assert.Equal(t, "x", v)
}

func TestAddArguments_Nested(t *testing.T) {
	type leaf struct {
		Q string `default:"z"`
	}
	type mid struct {
		A int `short:"a"`
		S leaf
	}
	type root struct {
		A int
		S mid
	}
	p := buildParser(t, reflect.TypeOf(root{}))

	ns, err := p.Parse([]string{"--a", "1", "--s-a", "2", "--s-s-q", "deep"})
	require.NoError(t, err)
	v, _ := ns.Take("a")
	assert.Equal(t, 1, v)
	v, _ = ns.Take("s_a")
	assert.Equal(t, 2, v)
	v, _ = ns.Take("s_s_q")
	assert.Equal(t, "deep", v)
}

func TestAddArguments_NestedShortAlias(t *testing.T) {
	type inner struct {
		A int `short:"a"`
	}
	type root struct {
		Sub inner
	}
	p := buildParser(t, reflect.TypeOf(root{}))

	ns, err := p.Parse([]string{"-a", "3"})
	require.NoError(t, err)
	v, _ := ns.Take("sub_a")
	assert.Equal(t, 3, v)
}

func TestAddArguments_NestedDefaults(t *testing.T) {
	type inner struct {
		Q string `default:"z"`
	}
	type root struct {
		Sub inner
	}
	p := buildParser(t, reflect.TypeOf(root{}))

	ns, err := p.Parse(nil)
	require.NoError(t, err)
	v, ok := ns.Take("sub_q")
	require.True(t, ok)
	assert.Equal(t, "z", v)
}

func TestAddArguments_FieldNameCollision(t *testing.T) {
	type inner struct {
		B int
	}
	// a_b from the flattened A.B collides with the top-level AB key.
	type colliding struct {
		AB int
		A  inner
	}
	rec, err := schema.Of(reflect.TypeOf(colliding{}))
	require.NoError(t, err)
	proto, err := rec.NewPrototype()
	require.NoError(t, err)
	p := argparse.New("prog")
	err = AddArguments(p, rec, proto, "", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "conflicting internal key: a_b")
}

func TestAddArguments_IgnoredFieldSkipped(t *testing.T) {
	type record struct {
		A int
		B int `ignore:""`
	}
	p := buildParser(t, reflect.TypeOf(record{}))

	_, err := p.Parse([]string{"--b", "1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unrecognized arguments: --b 1")
}

func TestAddArguments_PositionalList(t *testing.T) {
	type record struct {
		Items []int `positional:""`
	}
	p := buildParser(t, reflect.TypeOf(record{}))

	ns, err := p.Parse([]string{"1", "2"})
	require.NoError(t, err)
	v, _ := ns.Take("items")
	assert.Equal(t, []any{1, 2}, v)
}

type walkAction interface{ isWalkAction() }

type walkOpen struct {
	A int `short:"a" default:"1"`
}

func (walkOpen) isWalkAction() {}

type walkClose struct {
	B string `required:""`
}

func (walkClose) isWalkAction() {}

func registerWalkActions(t *testing.T) {
	t.Helper()
	require.NoError(t, schema.RegisterVariants(
		reflect.TypeOf((*walkAction)(nil)).Elem(),
		[]reflect.Type{reflect.TypeOf(walkOpen{}), reflect.TypeOf(walkClose{})},
	))
}

func TestAddArguments_Command(t *testing.T) {
	registerWalkActions(t)
	type record struct {
		X      int        `default:"9"`
		Action walkAction `required:""`
	}
	p := buildParser(t, reflect.TypeOf(record{}))

	ns, err := p.Parse([]string{"--x", "4", "walkOpen", "-a", "3"})
	require.NoError(t, err)
	v, _ := ns.Take("x")
	assert.Equal(t, 4, v)
	v, _ = ns.Take("action")
	assert.Equal(t, "walkOpen", v)
	v, _ = ns.Take("action_a")
	assert.Equal(t, 3, v)
}

func TestAddArguments_CommandAlias(t *testing.T) {
	registerWalkActions(t)
	type record struct {
		Action walkAction `required:""`
	}
	p := buildParser(t, reflect.TypeOf(record{}))

	ns, err := p.Parse([]string{"walkclose", "--b", "x"})
	require.NoError(t, err)
	v, _ := ns.Take("action")
	assert.Equal(t, "walkclose", v)
	v, _ = ns.Take("action_b")
	assert.Equal(t, "x", v)
}

func TestAddArguments_CommandRequiredMissing(t *testing.T) {
	registerWalkActions(t)
	type record struct {
		Action walkAction `required:""`
	}
	p := buildParser(t, reflect.TypeOf(record{}))

	_, err := p.Parse(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "the following arguments are required: action")
}

func TestAddArguments_CommandVariantRequired(t *testing.T) {
	registerWalkActions(t)
	type record struct {
		Action walkAction `required:""`
	}
	p := buildParser(t, reflect.TypeOf(record{}))

	_, err := p.Parse([]string{"walkClose"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "the following arguments are required: --b")
}

func TestAddArguments_TwoCommandsRejected(t *testing.T) {
	registerWalkActions(t)
	type record struct {
		One walkAction `required:""`
		Two walkAction `required:""`
	}
	rec, err := schema.Of(reflect.TypeOf(record{}))
	require.NoError(t, err)
	proto, err := rec.NewPrototype()
	require.NoError(t, err)
	p := argparse.New("prog")
	err = AddArguments(p, rec, proto, "", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot have multiple subparser arguments")
}

func TestAddArguments_CommandInNestedRecordAllowed(t *testing.T) {
	registerWalkActions(t)
	// Nested records flatten onto the same parser, so a command inside a
	// nested record still occupies the parser's single dispatch point.
	type inner struct {
		Action walkAction `required:""`
	}
	type record struct {
		Sub inner
	}
	p := buildParser(t, reflect.TypeOf(record{}))

	ns, err := p.Parse([]string{"walkOpen", "-a", "2"})
	require.NoError(t, err)
	v, _ := ns.Take("sub_action")
	assert.Equal(t, "walkOpen", v)
	v, _ = ns.Take("sub_action_a")
	assert.Equal(t, 2, v)
}

func TestAddArguments_PositionalAfterCommandWarns(t *testing.T) {
	registerWalkActions(t)
	type record struct {
		Action walkAction `required:""`
		P      string     `positional:""`
	}
	buf := captureLog(t)
	buildParser(t, reflect.TypeOf(record{}))

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "positional argument declared after a subcommand field"))
	assert.Contains(t, out, "field=p")
}

type warnInner struct {
	Q string `default:"z"`
}

type warnOuter struct {
	Sub warnInner
}

func (w *warnOuter) Defaults() { w.Sub.Q = "custom" }

func TestAddArguments_CustomNestedDefaultWarns(t *testing.T) {
	buf := captureLog(t)
	buildParser(t, reflect.TypeOf(warnOuter{}))

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "custom default value of a nested record field"))
	assert.Contains(t, out, "field=sub")
}

func TestAddArguments_UntouchedNestedDefaultDoesNotWarn(t *testing.T) {
	type inner struct {
		Q string `default:"z"`
	}
	type record struct {
		Sub inner
	}
	buf := captureLog(t)
	buildParser(t, reflect.TypeOf(record{}))

	assert.Empty(t, buf.String())
}

func TestAddArguments_CommandResetsInsideVariant(t *testing.T) {
	registerWalkActions(t)
	// Each sub-parser is a fresh dispatch scope; a command field inside a
	// chosen variant gets its own dispatch point.
	type record struct {
		Action nestedAction `required:""`
	}
	p := buildParser(t, reflect.TypeOf(record{}))

	ns, err := p.Parse([]string{"nestedStep", "walkOpen", "-a", "5"})
	require.NoError(t, err)
	v, _ := ns.Take("action")
	assert.Equal(t, "nestedStep", v)
	v, _ = ns.Take("action_next")
	assert.Equal(t, "walkOpen", v)
	v, _ = ns.Take("action_next_a")
	assert.Equal(t, 5, v)
}

type nestedAction interface{ isNestedAction() }

type nestedStep struct {
	Next walkAction `required:""`
}

func (nestedStep) isNestedAction() {}

func init() {
	_ = schema.RegisterVariants(
		reflect.TypeOf((*nestedAction)(nil)).Elem(),
		[]reflect.Type{reflect.TypeOf(nestedStep{})},
	)
}
