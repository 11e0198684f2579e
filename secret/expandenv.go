package secret

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ExpandEnvStrict expands ${VAR} references in s from the process
// environment. See ExpandEnv.
func ExpandEnvStrict(s string) (string, error) {
	return ExpandEnv(s, os.LookupEnv)
}

// ExpandEnv expands ${VAR} references in s using lookup.
//
// Semantics:
//   - Only the braced form is expanded; a bare `$` is kept, so passwords
//     and DSNs containing `$` pass through.
//   - A referenced variable missing from lookup is an error naming every
//     missing variable. A variable set to "" expands to "".
//   - `$${` emits a literal `${`.
func ExpandEnv(s string, lookup func(string) (string, bool)) (string, error) {
	const escaped = "\x00FLEETWATCH_DOLLAR\x00"
	s = strings.ReplaceAll(s, "$${", escaped)

	missing := make(map[string]struct{})
	s = envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		key := match[2 : len(match)-1]
		v, ok := lookup(key)
		if !ok {
			missing[key] = struct{}{}
		}
		return v
	})
	if len(missing) > 0 {
		keys := make([]string, 0, len(missing))
		for k := range missing {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return "", fmt.Errorf("%w: %s", ErrMissingEnv, strings.Join(keys, ", "))
	}

	return strings.ReplaceAll(s, escaped, "${"), nil
}
