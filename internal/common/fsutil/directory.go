// fsutil/directory.go
package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/deploymenttheory/n8n-workflow-deployer/internal/common/errors"
)

// DirEntry represents an entry in a directory (file or subdirectory)
type DirEntry struct {
	Path     string
	Name     string
	IsDir    bool
	Size     int64
	Mode     os.FileMode
	ModTime  time.Time
	FullPath string
}

// DirExists checks if a directory exists
func DirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// ListDir returns a list of all files and directories in a directory (non-recursive).
// Entries come back in the order os.ReadDir yields them, which is sorted by name.
func ListDir(path string) ([]DirEntry, error) {
	if !DirExists(path) {
		return nil, fmt.Errorf("%w: %s", errors.ErrDirNotFound, path)
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errors.ErrDirReadError, err.Error())
	}

	result := make([]DirEntry, 0, len(entries))
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			// Removed between ReadDir and Info
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("%w: %s", errors.ErrDirReadError, err.Error())
		}

		result = append(result, DirEntry{
			Path:     path,
			Name:     entry.Name(),
			IsDir:    entry.IsDir(),
			Size:     info.Size(),
			Mode:     info.Mode(),
			ModTime:  info.ModTime(),
			FullPath: filepath.Join(path, entry.Name()),
		})
	}

	return result, nil
}

// ListFiles returns a list of files in a directory (non-recursive, no directories)
func ListFiles(path string) ([]DirEntry, error) {
	entries, err := ListDir(path)
	if err != nil {
		return nil, err
	}

	files := make([]DirEntry, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir {
			files = append(files, entry)
		}
	}

	return files, nil
}

// ListFilesByExt returns the files directly inside path whose name ends with ext.
// The match is case-sensitive, so "a.JSON" is not picked up by ".json".
func ListFilesByExt(path, ext string) ([]DirEntry, error) {
	files, err := ListFiles(path)
	if err != nil {
		return nil, err
	}

	matched := make([]DirEntry, 0, len(files))
	for _, f := range files {
		if strings.HasSuffix(f.Name, ext) {
			matched = append(matched, f)
		}
	}
	return matched, nil
}
