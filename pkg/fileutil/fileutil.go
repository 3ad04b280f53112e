// Package fileutil provides file system utility functions shared by the
// asset cache and the script loader.
package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

// Resolve joins a possibly-relative path onto the project root and cleans it.
// Absolute paths are returned unchanged (after cleaning).
func Resolve(root, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Clean(filepath.Join(root, path))
}

// RelativeTo returns path relative to root, or the cleaned absolute path when
// it does not live under root. Used for portable save files.
func RelativeTo(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.Clean(path)
	}
	return filepath.ToSlash(rel)
}

// FindFileCaseInsensitive searches for a file with the given name in the
// specified directory, ignoring case. Useful for projects authored on
// case-insensitive file systems.
func FindFileCaseInsensitive(dir, filename string) (string, error) {
	searchName := strings.ToLower(filename)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.ToLower(entry.Name()) == searchName {
			return filepath.Join(dir, entry.Name()), nil
		}
	}

	return "", fmt.Errorf("file not found: %s (searched in %s)", filename, dir)
}

// DecodeScriptSource converts raw script bytes to UTF-8 text.
// Valid UTF-8 (with or without BOM) passes through; anything else is decoded
// as Shift-JIS for scripts authored with legacy tooling.
func DecodeScriptSource(data []byte) (string, error) {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		data = data[3:]
	}
	if utf8.Valid(data) {
		return string(data), nil
	}

	decoder := japanese.ShiftJIS.NewDecoder()
	decoded, _, err := transform.Bytes(decoder, data)
	if err != nil {
		return "", fmt.Errorf("failed to decode Shift-JIS script source: %w", err)
	}
	return string(decoded), nil
}
