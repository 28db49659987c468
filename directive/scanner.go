// Package directive detects conditional-compilation directive lines in
// document text.
package directive

import "strings"

var keywords = []string{"ifdef", "ifndef", "if", "elif", "else", "endif"}

// Scan returns the set of line indices whose line, after stripping leading
// whitespace and an optional '#' with optional following spaces, starts
// with a conditional-compilation keyword. Pure; a document with no
// directives yields an empty map.
func Scan(text string) map[int]bool {
	out := make(map[int]bool)
	for i, line := range strings.Split(text, "\n") {
		if isDirective(line) {
			out[i] = true
		}
	}
	return out
}

func isDirective(line string) bool {
	s := strings.TrimLeft(line, " \t")
	if strings.HasPrefix(s, "#") {
		s = strings.TrimLeft(s[1:], " ")
	}
	for _, kw := range keywords {
		if strings.HasPrefix(s, kw) {
			return true
		}
	}
	return false
}
