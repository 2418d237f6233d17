// Package validator executes candidate validator scripts against live tabs
// and judges their results with a type-aware comparator.
package validator

import (
	"reflect"
	"strconv"
)

// Compare reports whether an observed result matches an expected one. The
// comparison is directed: the expected value's type picks the rule, and the
// actual value is coerced toward it where a coercion is well-defined.
//
// Values are assumed to be decoded JSON (nil, bool, float64, string, []any,
// map[string]any); Go integer types are accepted and treated as numbers.
//
// Rules, in order:
//   - both nil matches; exactly one nil never matches
//   - expected bool: the actual value is coerced to its truthiness
//   - expected number: the actual value must coerce to an equal number
//   - expected string: the actual value is stringified and compared exactly
//   - expected list: the actual must be a list of equal length, elements
//     compared recursively in order
//   - expected map: key sets must be equal in both directions, values
//     compared recursively per key
//   - anything else: direct deep equality
func Compare(expected, actual any) bool {
	if expected == nil && actual == nil {
		return true
	}
	if expected == nil || actual == nil {
		return false
	}

	switch exp := expected.(type) {
	case bool:
		return truthy(actual) == exp

	case float64, int, int64, uint, uint64, float32:
		expNum, _ := asNumber(expected)
		actNum, ok := asNumber(actual)
		return ok && actNum == expNum

	case string:
		s, ok := stringify(actual)
		return ok && s == exp

	case []any:
		act, ok := actual.([]any)
		if !ok || len(act) != len(exp) {
			return false
		}
		for i := range exp {
			if !Compare(exp[i], act[i]) {
				return false
			}
		}
		return true

	case map[string]any:
		act, ok := actual.(map[string]any)
		if !ok || len(act) != len(exp) {
			return false
		}
		for k, v := range exp {
			av, present := act[k]
			if !present || !Compare(v, av) {
				return false
			}
		}
		return true

	default:
		return reflect.DeepEqual(expected, actual)
	}
}

// truthy mirrors script-side boolean coercion: empty strings, zero numbers,
// and empty containers are false.
func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case []any:
		return len(val) > 0
	case map[string]any:
		return len(val) > 0
	default:
		if n, ok := asNumber(v); ok {
			return n != 0
		}
		return true
	}
}

// asNumber coerces a value to float64. Booleans count as 0/1 and numeric
// strings parse; anything else refuses.
func asNumber(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint64:
		return float64(val), true
	case bool:
		if val {
			return 1, true
		}
		return 0, true
	case string:
		n, err := strconv.ParseFloat(val, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

// stringify renders a scalar the way a script would when comparing against a
// string: booleans lowercase, integral floats without a decimal point.
// Lists and maps refuse rather than render as an empty string.
func stringify(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case bool:
		return strconv.FormatBool(val), true
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10), true
		}
		return strconv.FormatFloat(val, 'g', -1, 64), true
	case int:
		return strconv.Itoa(val), true
	case int64:
		return strconv.FormatInt(val, 10), true
	default:
		return "", false
	}
}
