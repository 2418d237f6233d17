package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompareNils(t *testing.T) {
	assert.True(t, Compare(nil, nil))
	assert.False(t, Compare(nil, false))
	assert.False(t, Compare(false, nil))
	assert.False(t, Compare(nil, "null"))
}

func TestCompareBooleanCoercion(t *testing.T) {
	assert.True(t, Compare(true, true))
	assert.True(t, Compare(true, float64(1)))
	assert.True(t, Compare(true, "yes"))
	assert.True(t, Compare(false, float64(0)))
	assert.True(t, Compare(false, ""))
	assert.True(t, Compare(false, []any{}))
	assert.False(t, Compare(true, float64(0)))
	assert.False(t, Compare(false, []any{float64(1)}))
}

func TestCompareNumbers(t *testing.T) {
	assert.True(t, Compare(float64(3), float64(3)))
	assert.True(t, Compare(float64(3), "3"))
	assert.True(t, Compare(float64(1), true))
	assert.False(t, Compare(float64(3), "three"))
	assert.False(t, Compare(float64(3), []any{float64(3)}))
}

func TestCompareStrings(t *testing.T) {
	assert.True(t, Compare("done", "done"))
	assert.True(t, Compare("3", float64(3)))
	assert.True(t, Compare("true", true))
	assert.False(t, Compare("done", "Done"))
	assert.False(t, Compare("done", nil))
	// Lists and maps never stringify, not even against the empty string.
	assert.False(t, Compare("", []any{float64(1)}))
	assert.False(t, Compare("", map[string]any{}))
}

func TestCompareLists(t *testing.T) {
	assert.True(t, Compare(
		[]any{float64(1), float64(2)},
		[]any{float64(1), float64(2)},
	))
	assert.False(t, Compare(
		[]any{float64(1), float64(2)},
		[]any{float64(2), float64(1)},
	))
	assert.False(t, Compare(
		[]any{float64(1)},
		[]any{float64(1), float64(2)},
	))
	assert.False(t, Compare([]any{float64(1)}, float64(1)))
}

func TestCompareMaps(t *testing.T) {
	assert.True(t, Compare(
		map[string]any{"a": float64(1)},
		map[string]any{"a": float64(1)},
	))
	// Extra keys in the actual value are a mismatch, not a superset match.
	assert.False(t, Compare(
		map[string]any{"a": float64(1)},
		map[string]any{"a": float64(1), "b": float64(2)},
	))
	assert.False(t, Compare(
		map[string]any{"a": float64(1), "b": float64(2)},
		map[string]any{"a": float64(1)},
	))
	assert.False(t, Compare(map[string]any{"a": float64(1)}, []any{"a"}))
}

func TestCompareNested(t *testing.T) {
	expected := map[string]any{
		"items": []any{
			map[string]any{"name": "first", "done": true},
		},
		"count": float64(1),
	}
	actual := map[string]any{
		"items": []any{
			map[string]any{"name": "first", "done": float64(1)},
		},
		"count": "1",
	}
	assert.True(t, Compare(expected, actual))
}
