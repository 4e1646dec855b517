package grid

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeAttributes(t *testing.T) {
	tests := []struct {
		name  string
		attrs Attributes
		want  string
	}{
		{"nil", nil, `[]`},
		{"empty", Attributes{}, `[]`},
		{"mixed", tank(), `[["unit","tank"],["health",5]]`},
		{"whole float keeps fraction", Attributes{P("speed", FloatValue(5))}, `[["speed",5.0]]`},
		{"float", Attributes{P("fuel", FloatValue(0.25))}, `[["fuel",0.25]]`},
		{"bool", Attributes{P("ready", BoolValue(false))}, `[["ready",false]]`},
		{"quoted key", Attributes{P(`a"b`, StringValue("x"))}, `[["a\"b","x"]]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncodeAttributes(tt.attrs)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncodeAttributes_Unencodable(t *testing.T) {
	_, err := EncodeAttributes(Attributes{P("x", FloatValue(math.NaN()))})
	assert.Error(t, err)

	_, err = EncodeAttributes(Attributes{P("x", Value{})})
	assert.Error(t, err)
}

func TestDecodeAttributes_PreservesKinds(t *testing.T) {
	in := Attributes{
		P("unit", StringValue("tank")),
		P("health", IntValue(-5)),
		P("speed", FloatValue(5)),
		P("big", FloatValue(1e21)),
		P("tiny", FloatValue(1e-9)),
		P("ready", BoolValue(true)),
		P("unit", StringValue("dup")),
		P("digits", StringValue("42")),
	}
	text, err := EncodeAttributes(in)
	require.NoError(t, err)

	out, err := DecodeAttributes(text)
	require.NoError(t, err)
	require.Len(t, out, len(in))
	for i := range in {
		assert.Equal(t, in[i].Key, out[i].Key)
		assert.Equal(t, in[i].Value.Kind(), out[i].Value.Kind(), "kind of %q", in[i].Key)
		assert.True(t, in[i].Value.Equal(out[i].Value), "value of %q: %v vs %v", in[i].Key, in[i].Value, out[i].Value)
	}
}

func TestDecodeAttributes_Empty(t *testing.T) {
	out, err := DecodeAttributes(`[]`)
	require.NoError(t, err)
	assert.NotNil(t, out)
	assert.Empty(t, out)
}

func TestDecodeAttributes_Invalid(t *testing.T) {
	for _, text := range []string{
		``,
		`null`,
		`{"unit":"tank"}`,
		`[["unit"]]`,
		`[["unit","tank","extra"]]`,
		`[[5,"tank"]]`,
		`[["unit",null]]`,
		`[["unit",{"a":1}]]`,
		`[["n",99999999999999999999]]`,
	} {
		_, err := DecodeAttributes(text)
		assert.Error(t, err, "input %q", text)
	}
}
