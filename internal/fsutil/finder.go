// Package fsutil provides file system utility functions.
package fsutil

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// HasExtension reports whether name ends with the given extension.
func HasExtension(name, extension string) bool {
	return strings.HasSuffix(name, extension)
}

// ListFilesByExtension lists the regular files directly inside dirPath whose
// names end with the specified extension. Subdirectories are not descended
// into. The returned paths are sorted.
func ListFilesByExtension(dirPath string, extension string) ([]string, error) {
	if extension == "" {
		panic("extension must not be empty")
	}

	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !HasExtension(entry.Name(), extension) {
			continue
		}
		files = append(files, filepath.Join(dirPath, entry.Name()))
	}
	sort.Strings(files)

	return files, nil
}
