package connectors

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

var ErrNoFiles = errors.New("no matching files found")

type FileMeta struct {
	Path     string
	Size     int64
	Modified time.Time
}

// Name is the file name without directory and extension.
func (m FileMeta) Name() string {
	base := filepath.Base(m.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

type DiscoveryOptions struct {
	Recursive      bool
	MinSize        int64
	MaxSize        int64
	ModifiedAfter  time.Time
	ModifiedBefore time.Time
}

// DiscoverFiles lists the files under root whose extension is one of exts,
// compared case-insensitively, sorted by path.
func DiscoverFiles(root string, exts []string, options DiscoveryOptions) ([]FileMeta, error) {
	if root == "" {
		return nil, fmt.Errorf("root directory cannot be empty")
	}

	stat, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("cannot access %s: %w", root, err)
	}
	if !stat.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", root)
	}

	wanted := make(map[string]bool, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimPrefix(ext, "."))
		if ext != "" {
			wanted["."+ext] = true
		}
	}
	if len(wanted) == 0 {
		return nil, fmt.Errorf("file extension cannot be empty")
	}

	var files []FileMeta
	walkFunc := func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("error accessing path %s: %w", path, err)
		}

		if d.IsDir() {
			if path != root && !options.Recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if !wanted[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("error getting file info for %s: %w", path, err)
		}
		if !options.matches(info) {
			return nil
		}

		files = append(files, FileMeta{
			Path:     path,
			Size:     info.Size(),
			Modified: info.ModTime(),
		})
		return nil
	}

	if err := filepath.WalkDir(root, walkFunc); err != nil {
		return nil, fmt.Errorf("directory walk error: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoFiles, root)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

func (o DiscoveryOptions) matches(info fs.FileInfo) bool {
	if o.MinSize > 0 && info.Size() < o.MinSize {
		return false
	}
	if o.MaxSize > 0 && info.Size() > o.MaxSize {
		return false
	}
	if !o.ModifiedAfter.IsZero() && info.ModTime().Before(o.ModifiedAfter) {
		return false
	}
	if !o.ModifiedBefore.IsZero() && info.ModTime().After(o.ModifiedBefore) {
		return false
	}
	return true
}
