package snapshot

import "regexp"

// FilterConfig excludes noisy or volatile data from snapshot comparison so
// that the classifier does not report autogenerated ids, timestamps, or
// framework churn as semantic changes.
type FilterConfig struct {
	// IgnoreAttrs are attribute names skipped entirely.
	IgnoreAttrs []string

	// IgnoreAttrPatterns are regexes matched against attribute names.
	IgnoreAttrPatterns []*regexp.Regexp

	// VolatileValuePatterns are regexes matched against attribute values;
	// a value change is suppressed when both old and new values match.
	VolatileValuePatterns []*regexp.Regexp
}

// DefaultFilter returns the filter used when none is configured. It drops
// framework-generated identity attributes and suppresses value churn that
// looks like timestamps or random tokens.
func DefaultFilter() FilterConfig {
	return FilterConfig{
		IgnoreAttrs: []string{
			"data-reactid",
			"data-react-checksum",
			"data-v-app",
			"nonce",
		},
		IgnoreAttrPatterns: []*regexp.Regexp{
			regexp.MustCompile(`^data-testid$`),
			regexp.MustCompile(`^aria-owns$`),
			regexp.MustCompile(`^data-radix-`),
		},
		VolatileValuePatterns: []*regexp.Regexp{
			// unix millis / second timestamps
			regexp.MustCompile(`^\d{10}(\d{3})?$`),
			// uuids
			regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`),
			// autogenerated id suffixes like ":r1a:" (React useId)
			regexp.MustCompile(`^:r[0-9a-z]+:$`),
		},
	}
}

// ignoreAttr reports whether the attribute name is excluded from comparison.
func (f FilterConfig) ignoreAttr(name string) bool {
	for _, a := range f.IgnoreAttrs {
		if a == name {
			return true
		}
	}
	for _, re := range f.IgnoreAttrPatterns {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

// volatilePair reports whether an old/new value pair is volatile churn.
func (f FilterConfig) volatilePair(oldVal, newVal string) bool {
	for _, re := range f.VolatileValuePatterns {
		if re.MatchString(oldVal) && re.MatchString(newVal) {
			return true
		}
	}
	return false
}
