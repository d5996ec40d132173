package proc

import (
	"fmt"
	"runtime"
	"strings"
)

// Interpolate expands `$(VAR)` references against env (a case-preserving
// map) and reduces `$$` to a literal `$`. Lookup is
// case-insensitive on Windows (preserving the existing case of the
// variable name found in env), case-sensitive elsewhere.
func Interpolate(value string, env map[string]string) (string, error) {
	var out strings.Builder
	i := 0
	for i < len(value) {
		dollar := strings.IndexByte(value[i:], '$')
		if dollar < 0 {
			out.WriteString(value[i:])
			break
		}
		dollar += i
		out.WriteString(value[i:dollar])

		if dollar+1 >= len(value) {
			// Trailing lone '$' is copied as-is.
			out.WriteByte('$')
			break
		}

		switch value[dollar+1] {
		case '$':
			out.WriteByte('$')
			i = dollar + 2
		case '(':
			end, err := findMatchingParen(value, dollar+1)
			if err != nil {
				return "", err
			}
			varName := value[dollar+2 : end]
			out.WriteString(lookupEnv(env, varName))
			i = end + 1
		default:
			// '$' not followed by '(' or '$': copy through, matching the
			// a lone trailing '$' passes through unchanged.
			out.WriteByte('$')
			i = dollar + 1
		}
	}
	return out.String(), nil
}

// findMatchingParen returns the index of the ')' matching the '(' at
// s[openIdx], honoring nested parens, matching find_match's bracket stack.
func findMatchingParen(s string, openIdx int) (int, error) {
	depth := 0
	for i := openIdx; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i, nil
			}
		}
	}
	return 0, fmt.Errorf("proc: missing closing ')' in %q", s)
}

func lookupEnv(env map[string]string, name string) string {
	if v, ok := env[name]; ok {
		return v
	}
	if runtime.GOOS == "windows" {
		for k, v := range env {
			if strings.EqualFold(k, name) {
				return v
			}
		}
	}
	return ""
}

// SessionEnv builds the SUNSHINE_* variables injected into prep/launch
// child environments.
func SessionEnv(appID, appName string, clientEnv map[string]string, losslessEnv map[string]string, frameGenProvider string) map[string]string {
	out := map[string]string{
		"SUNSHINE_APP_ID":   appID,
		"SUNSHINE_APP_NAME": appName,
	}
	for k, v := range clientEnv {
		out["SUNSHINE_CLIENT_"+strings.ToUpper(k)] = v
	}
	for k, v := range losslessEnv {
		out["SUNSHINE_LOSSLESS_SCALING_"+strings.ToUpper(k)] = v
	}
	if frameGenProvider != "" {
		out["SUNSHINE_FRAME_GENERATION_PROVIDER"] = frameGenProvider
	}
	return out
}
