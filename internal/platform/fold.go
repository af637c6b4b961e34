package platform

import (
	"strings"
	"unicode/utf8"
)

// hasPrefixFold reports whether name begins with prefix under simple
// Unicode case folding. It compares rune by rune because folded forms
// can differ in encoded length.
func hasPrefixFold(name, prefix string) bool {
	for prefix != "" {
		if name == "" {
			return false
		}
		pr, pn := utf8.DecodeRuneInString(prefix)
		nr, nn := utf8.DecodeRuneInString(name)
		if pr != nr && !strings.EqualFold(prefix[:pn], name[:nn]) {
			return false
		}
		prefix, name = prefix[pn:], name[nn:]
	}
	return true
}
