// Package fileutil provides file system utilities.
package fileutil

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrExists is returned by Publish when the destination is already present.
var ErrExists = errors.New("file already exists")

// WriteFileAtomic writes data to filename through a temporary file and a
// rename, so readers see either the old file or the complete new one.
func WriteFileAtomic(filename string, data []byte, perm os.FileMode) error {
	tmpPath, err := writeTemp(filename, perm, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
	if err != nil {
		return err
	}

	if err := os.Rename(tmpPath, filename); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Publish streams the output of write into filename. Unlike
// WriteFileAtomic it never replaces an existing file: the temporary file is
// hard linked into place, which fails with ErrExists if filename is taken.
func Publish(filename string, perm os.FileMode, write func(io.Writer) error) error {
	tmpPath, err := writeTemp(filename, perm, write)
	if err != nil {
		return err
	}
	defer os.Remove(tmpPath)

	if err := os.Link(tmpPath, filename); err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%s: %w", filename, ErrExists)
		}
		return fmt.Errorf("failed to link temp file: %w", err)
	}
	return nil
}

// writeTemp creates the temp file next to filename so the final rename or
// link stays on one filesystem. On success the caller owns the temp path.
func writeTemp(filename string, perm os.FileMode, write func(io.Writer) error) (string, error) {
	dir := filepath.Dir(filename)
	base := filepath.Base(filename)

	tmpFile, err := os.CreateTemp(dir, base+".tmp.*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	fail := func(format string, err error) (string, error) {
		tmpFile.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf(format, err)
	}

	buf := bufio.NewWriter(tmpFile)
	if err := write(buf); err != nil {
		return fail("failed to write temp file: %w", err)
	}
	if err := buf.Flush(); err != nil {
		return fail("failed to write temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fail("failed to sync temp file: %w", err)
	}
	if err := tmpFile.Chmod(perm); err != nil {
		return fail("failed to set permissions: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}
	return tmpPath, nil
}
