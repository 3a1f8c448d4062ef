package schema

import (
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type withDefaults struct {
	A int
	B string `default:"tag"`
	C []int
}

func (w *withDefaults) Defaults() {
	w.A = 7
	w.B = "hook"
	w.C = []int{1, 2}
}

func TestNewPrototype(t *testing.T) {
	rec := mustOf(t, reflect.TypeOf(withDefaults{}))

	v, err := rec.NewPrototype()
	require.NoError(t, err)
	got := v.Interface().(withDefaults)

	// The Defaults hook runs first; default tags override it.
	assert.Equal(t, 7, got.A)
	assert.Equal(t, "tag", got.B)
	assert.Equal(t, []int{1, 2}, got.C)
}

func TestNewPrototype_FreshPerCall(t *testing.T) {
	rec := mustOf(t, reflect.TypeOf(withDefaults{}))

	v1, err := rec.NewPrototype()
	require.NoError(t, err)
	v2, err := rec.NewPrototype()
	require.NoError(t, err)

	s1 := v1.Interface().(withDefaults)
	s1.C[0] = 99
	s2 := v2.Interface().(withDefaults)
	assert.Equal(t, 1, s2.C[0])
}

func TestAssign(t *testing.T) {
	type record struct {
		Count int
		Name  string
		Maybe *int
		Items []int
		When  time.Time
	}
	rec := mustOf(t, reflect.TypeOf(record{}))

	v := reflect.New(reflect.TypeOf(record{})).Elem()

	require.NoError(t, rec.FieldByKey("count").Assign(v, 5))
	require.NoError(t, rec.FieldByKey("name").Assign(v, "x"))
	require.NoError(t, rec.FieldByKey("maybe").Assign(v, 3))
	require.NoError(t, rec.FieldByKey("items").Assign(v, []any{1, 2}))

	got := v.Interface().(record)
	assert.Equal(t, 5, got.Count)
	assert.Equal(t, "x", got.Name)
	require.NotNil(t, got.Maybe)
	assert.Equal(t, 3, *got.Maybe)
	assert.Equal(t, []int{1, 2}, got.Items)
}

func TestAssign_StringCoercion(t *testing.T) {
	// Values read from a configuration file arrive as strings and pass
	// through the field's own converter.
	type record struct {
		Count int
		When  time.Time
	}
	rec := mustOf(t, reflect.TypeOf(record{}))
	v := reflect.New(reflect.TypeOf(record{})).Elem()

	require.NoError(t, rec.FieldByKey("count").Assign(v, "41"))
	require.NoError(t, rec.FieldByKey("when").Assign(v, "2021-05-06"))

	got := v.Interface().(record)
	assert.Equal(t, 41, got.Count)
	assert.Equal(t, time.Date(2021, 5, 6, 0, 0, 0, 0, time.UTC), got.When)
}

func TestAssign_RejectsNumericToString(t *testing.T) {
	type record struct {
		Name string
	}
	rec := mustOf(t, reflect.TypeOf(record{}))
	v := reflect.New(reflect.TypeOf(record{})).Elem()

	err := rec.FieldByKey("name").Assign(v, 65)
	require.Error(t, err)
}

func TestAssign_NilClearsPointer(t *testing.T) {
	type record struct {
		Maybe *int
	}
	rec := mustOf(t, reflect.TypeOf(record{}))
	v := reflect.New(reflect.TypeOf(record{})).Elem()

	require.NoError(t, rec.FieldByKey("maybe").Assign(v, 3))
	require.NoError(t, rec.FieldByKey("maybe").Assign(v, nil))
	assert.Nil(t, v.Interface().(record).Maybe)
}
