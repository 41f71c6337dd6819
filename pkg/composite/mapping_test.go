package composite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLengthTransformMatchesTextLengthTool(t *testing.T) {
	engine := newEngine(t)
	tr := DefaultTransforms()

	for _, value := range []interface{}{"héllo", []interface{}{1, 2}, map[string]interface{}{"k": "v"}} {
		fromTransform, err := tr.Apply("length", value)
		require.NoError(t, err)

		result := engine.Execute(context.Background(), "text.length", map[string]interface{}{"value": value}, nil)
		require.True(t, result.Success, "%v", result.Error)
		assert.Equal(t, result.Data, fromTransform)
	}
}

func TestTransforms(t *testing.T) {
	tr := DefaultTransforms()

	tests := []struct {
		name  string
		input interface{}
		want  interface{}
	}{
		{"json", map[string]interface{}{"a": 1}, `{"a":1}`},
		{"string", "plain", "plain"},
		{"string", 12, "12"},
		{"uppercase", "abc", "ABC"},
		{"lowercase", "ABC", "abc"},
		{"trim", "  x ", "x"},
		{"length", "héllo", 5},
		{"length", []interface{}{1, 2}, 2},
		{"not", "", true},
		{"truthy", 0.0, false},
		{"is_empty", map[string]interface{}{}, true},
		{"keys", map[string]interface{}{"b": 1, "a": 2}, []string{"a", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tr.Apply(tt.name, tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := tr.Apply("uppercase", 1)
	assert.Error(t, err)
	_, err = tr.Apply("nope", 1)
	assert.Error(t, err)
}

func TestTransforms_Register(t *testing.T) {
	tr := NewTransforms()
	require.NoError(t, tr.Register("double", func(v interface{}) (interface{}, error) {
		return v.(int) * 2, nil
	}))
	assert.Error(t, tr.Register("double", func(v interface{}) (interface{}, error) { return v, nil }))
	assert.Error(t, tr.Register("", nil))

	got, err := tr.Apply("double", 4)
	require.NoError(t, err)
	assert.Equal(t, 8, got)
	assert.Equal(t, []string{"double"}, tr.Names())
}

func TestTruthy(t *testing.T) {
	assert.False(t, Truthy(nil))
	assert.False(t, Truthy(false))
	assert.False(t, Truthy(0))
	assert.False(t, Truthy(""))
	assert.False(t, Truthy([]interface{}{}))
	assert.True(t, Truthy("x"))
	assert.True(t, Truthy(1.5))
	assert.True(t, Truthy(map[string]interface{}{"a": 1}))
	assert.True(t, Truthy(struct{}{}))
}

func TestParamMappingKindInference(t *testing.T) {
	assert.Equal(t, MappingKey, ParamMapping{Key: "a"}.kind())
	assert.Equal(t, MappingPath, ParamMapping{Path: "a.b"}.kind())
	assert.Equal(t, MappingTransform, ParamMapping{Key: "a", Transform: "json"}.kind())
	assert.Equal(t, MappingValue, ParamMapping{Value: 3}.kind())
	assert.Equal(t, MappingValue, ParamMapping{}.kind())
}

func TestResolver_MissingSourcesAreOmitted(t *testing.T) {
	r := newResolver(map[string]interface{}{"a": 1}, DefaultTransforms())

	params, err := r.params(map[string]ParamMapping{
		"present": FromKey("a"),
		"absent":  FromKey("b"),
		"nopath":  FromPath("x.y"),
		"notrans": Transformed("json", "b"),
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"present": 1}, params)
}
