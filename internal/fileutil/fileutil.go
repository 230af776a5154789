// Package fileutil writes output files so readers never observe a partial
// write.
package fileutil

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteAtomic streams r into a temporary file next to path and renames it
// into place. Parent directories are created as needed.
func WriteAtomic(path string, r io.Reader, mode os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}()

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Chmod(mode); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

// WriteVerified writes data atomically and re-reads the result, comparing
// size and SHA256. The file is removed on mismatch.
func WriteVerified(path string, data []byte, mode os.FileMode) error {
	if err := WriteAtomic(path, bytes.NewReader(data), mode); err != nil {
		return err
	}
	written, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("verify %s: %w", path, err)
	}
	if len(written) != len(data) {
		_ = os.Remove(path)
		return fmt.Errorf("write size mismatch: expected %d bytes, found %d bytes", len(data), len(written))
	}
	if sha256.Sum256(written) != sha256.Sum256(data) {
		_ = os.Remove(path)
		return fmt.Errorf("write hash mismatch: %s corrupted", path)
	}
	return nil
}
