//go:build !unix

package platform

import (
	"errors"
	"io"
	"os"
)

// CheckReadWrite returns an error unless the calling process may read
// and write dir. Without access(2) the check lists the directory and
// creates then removes a probe file.
func CheckReadWrite(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	_, err = f.Readdirnames(1)
	f.Close()
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	probe, err := os.CreateTemp(dir, ".probe-*")
	if err != nil {
		return err
	}
	name := probe.Name()
	probe.Close()
	return os.Remove(name)
}
