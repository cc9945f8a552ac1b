package csvio

import (
	"fmt"
	"io"
	"os"
)

// WriteOutput runs write against path, or stdout when path is empty. The file
// is closed before returning and a failed close is reported, since buffered
// data may not have reached disk.
func WriteOutput(path string, write func(io.Writer) error) (err error) {
	if path == "" {
		return write(os.Stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()
	return write(f)
}
