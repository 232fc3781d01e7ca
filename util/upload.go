package util

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// SanitizeFilename strips path components from a client-supplied filename
// and replaces every run of characters outside [A-Za-z0-9_.-] with a
// single underscore. An empty result means the name is unusable.
func SanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	// client filenames may carry either separator style
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(name)
	name = unsafeFilenameChars.ReplaceAllString(name, "_")
	return strings.Trim(name, "._")
}

// SaveUpload writes the uploaded bytes under the configured upload
// directory using the given (already sanitized) filename.
func SaveUpload(filename string, src io.Reader) error {
	if err := os.MkdirAll(UploadDir, os.ModePerm); err != nil {
		return fmt.Errorf("cannot create upload directory: %w", err)
	}

	dst, err := os.Create(filepath.Join(UploadDir, filename))
	if err != nil {
		return fmt.Errorf("cannot create upload file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("cannot write upload file: %w", err)
	}
	return nil
}

// RemoveUpload deletes a stored upload. A missing file is not an error.
func RemoveUpload(filename string) error {
	err := os.Remove(filepath.Join(UploadDir, filename))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
