// fsutil/files.go
package fsutil

import (
	"os"
	"path/filepath"
	"strings"
)

// ReadFile reads an entire file into memory
func ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// BaseName returns the file name of path with ext trimmed from the end.
// "workflows/a.json" with ".json" gives "a".
func BaseName(path, ext string) string {
	return strings.TrimSuffix(filepath.Base(path), ext)
}
