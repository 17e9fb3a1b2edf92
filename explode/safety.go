package explode

import (
	"github.com/meigma/gitodb/pack"
)

// ParseSafetyCheck returns the safety check for a configuration key.
// Keys are matched exactly.
func ParseSafetyCheck(key string) (pack.SafetyCheck, error) {
	for _, check := range pack.SafetyChecks() {
		if check.String() == key {
			return check, nil
		}
	}
	return 0, &Error{Kind: KindConfig, Key: key}
}

// SafetyCheckKeys returns every accepted key, strictest first.
func SafetyCheckKeys() []string {
	checks := pack.SafetyChecks()
	keys := make([]string, len(checks))
	for i, check := range checks {
		keys[i] = check.String()
	}
	return keys
}
