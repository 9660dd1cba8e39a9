package tools

import "strings"

// Sanitize maps name onto the characters the inference service accepts in
// tool names: every rune outside [A-Za-z0-9_] becomes an underscore.
func Sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		}
		return '_'
	}, name)
}
