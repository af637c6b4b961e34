//go:build windows || darwin

package platform

// HasPrefix reports whether name begins with prefix, ignoring case to
// match the filesystem's case-insensitive lookups.
func HasPrefix(name, prefix string) bool {
	return hasPrefixFold(name, prefix)
}
