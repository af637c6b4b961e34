//go:build !windows && !darwin

package platform

import "strings"

// HasPrefix reports whether name begins with prefix.
func HasPrefix(name, prefix string) bool {
	return strings.HasPrefix(name, prefix)
}
