package metadata

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlatten_InjectsTitle(t *testing.T) {
	t.Parallel()

	in := Map{"source": String("web")}
	rec := Flatten("Hello", in)

	assert.Equal(t, Map{"source": String("web"), "title": String("Hello")}, rec)
	assert.Equal(t, Map{"source": String("web")}, in, "input must not be mutated")
}

func TestFlatten_OverwritesCallerTitle(t *testing.T) {
	t.Parallel()

	rec := Flatten("real", Map{"title": String("shadowed"), "n": Number(1)})
	assert.Equal(t, String("real"), rec[TitleKey])

	title, md := Unflatten(rec)
	assert.Equal(t, "real", title)
	assert.Equal(t, Map{"n": Number(1)}, md)
}

func TestFlatten_NilMap(t *testing.T) {
	t.Parallel()

	rec := Flatten("t", nil)
	assert.Equal(t, Map{"title": String("t")}, rec)
}

func TestUnflatten_RoundTrip(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		title string
		md    Map
	}{
		{"example", "Hello", Map{"source": String("web")}},
		{"empty metadata", "Only title", Map{}},
		{"empty title", "", Map{"a": Bool(true)}},
		{"mixed scalars", "mixed", Map{"s": String("x"), "n": Number(2.5), "b": Bool(false)}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			title, md := Unflatten(Flatten(tc.title, tc.md))
			assert.Equal(t, tc.title, title)
			assert.True(t, tc.md.Equal(md), "metadata mismatch: got %v want %v", md, tc.md)
		})
	}
}

func TestUnflatten_MissingTitle(t *testing.T) {
	t.Parallel()

	rec := Map{"k": String("v")}
	title, md := Unflatten(rec)

	assert.Empty(t, title)
	assert.Equal(t, Map{"k": String("v")}, md)
	assert.Len(t, rec, 1, "input must not be mutated")
}

func TestUnflatten_NonStringTitle(t *testing.T) {
	t.Parallel()

	title, md := Unflatten(Map{"title": Number(42)})
	assert.Equal(t, "42", title)
	assert.NotNil(t, md)
	assert.Empty(t, md)
}

func TestValue_JSON(t *testing.T) {
	t.Parallel()

	in := Map{"s": String("web"), "n": Number(3), "b": Bool(true)}
	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"s":"web","n":3,"b":true}`, string(data))

	var out Map
	require.NoError(t, json.Unmarshal(data, &out))
	assert.True(t, in.Equal(out))
}

func TestValue_UnmarshalRejectsNested(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{`{"a":null}`, `{"a":[1]}`, `{"a":{"b":1}}`} {
		var m Map
		err := json.Unmarshal([]byte(raw), &m)
		assert.ErrorIs(t, err, ErrUnsupported, raw)
	}
}

func TestValue_ZeroIsInvalid(t *testing.T) {
	t.Parallel()

	var v Value
	assert.False(t, v.Valid())
	_, err := json.Marshal(v)
	assert.Error(t, err)
	assert.ErrorIs(t, Map{"x": v}.Validate(), ErrUnsupported)
}

func TestFromAny(t *testing.T) {
	t.Parallel()

	m, err := FromAny(map[string]any{"s": "x", "i": 7, "f": 1.5, "b": true})
	require.NoError(t, err)
	assert.Equal(t, Map{"s": String("x"), "i": Number(7), "f": Number(1.5), "b": Bool(true)}, m)

	_, err = FromAny(map[string]any{"bad": []string{"x"}})
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestMap_Any(t *testing.T) {
	t.Parallel()

	got := Map{"s": String("x"), "n": Number(1)}.Any()
	assert.Equal(t, map[string]any{"s": "x", "n": 1.0}, got)
}
