//go:build unix

package platform

import "golang.org/x/sys/unix"

// CheckReadWrite returns an error unless the calling process may read
// and write dir.
func CheckReadWrite(dir string) error {
	return unix.Access(dir, unix.R_OK|unix.W_OK)
}
