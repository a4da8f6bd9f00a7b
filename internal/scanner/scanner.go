// Package scanner walks a directory tree for files the ingestion pipeline accepts.
package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// Extensions lists the file extensions picked up by Scan.
var Extensions = map[string]bool{
	".pdf":      true,
	".md":       true,
	".markdown": true,
	".txt":      true,
}

// ScannedFile represents an ingestible file found during scanning.
type ScannedFile struct {
	RelPath string // Relative path from the scan root (e.g., "unit1/notes.pdf")
	Folder  string // Folder path (path components except filename, e.g., "unit1")
	AbsPath string // Absolute file path
	Size    int64
}

// Scan walks root and returns ingestible files sorted by relative path.
// Hidden files and directories (leading ".") are skipped. A root that is a
// regular file is returned on its own.
func Scan(ctx context.Context, root string) ([]ScannedFile, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %s: %w", root, err)
	}

	var files []ScannedFile
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("failed to access path %s: %w", path, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if path != absRoot && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !Extensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", path, err)
		}

		relPath := filepath.Base(path)
		if path != absRoot {
			relPath, err = filepath.Rel(absRoot, path)
			if err != nil {
				return fmt.Errorf("failed to compute relative path for %s: %w", path, err)
			}
		}
		relPath = filepath.ToSlash(relPath)

		folder := filepath.Dir(relPath)
		if folder == "." {
			folder = ""
		}

		files = append(files, ScannedFile{
			RelPath: relPath,
			Folder:  folder,
			AbsPath: path,
			Size:    info.Size(),
		})
		return nil
	})
	if err != nil {
		return files, fmt.Errorf("failed to scan %s: %w", root, err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })
	return files, nil
}
