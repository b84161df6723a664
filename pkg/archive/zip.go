// Package archive unpacks zip based source artifacts (Go module zips and
// Java -sources.jar files) into temporary directories.
package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	maxFileSize  = 100 * 1024 * 1024  // 100 MB per file
	maxTotalSize = 1024 * 1024 * 1024 // 1 GB total extracted
	maxFileCount = 50000              // maximum number of files in archive
)

// ExtractZip unpacks an in-memory zip archive to a temp directory.
// Returns the path to the extracted directory and a cleanup function
// that removes the temp directory.
func ExtractZip(data []byte, prefix string) (dir string, cleanup func(), err error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", nil, fmt.Errorf("failed to read zip archive: %w", err)
	}
	return extract(reader.File, prefix)
}

// ExtractZipFile unpacks the zip (or jar) archive at path to a temp
// directory.
func ExtractZipFile(path, prefix string) (dir string, cleanup func(), err error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return "", nil, fmt.Errorf("failed to open archive %s: %w", path, err)
	}
	defer reader.Close()
	return extract(reader.File, prefix)
}

// IsArchive reports whether path names a file this package can extract.
func IsArchive(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zip", ".jar":
		return true
	}
	return false
}

// extract validates all paths to prevent zip-slip (path traversal) attacks
// and enforces size limits to prevent zip bomb attacks.
func extract(files []*zip.File, prefix string) (string, func(), error) {
	if len(files) > maxFileCount {
		return "", nil, fmt.Errorf("zip archive contains %d files, exceeds maximum of %d", len(files), maxFileCount)
	}

	tmpDir, err := os.MkdirTemp("", "apidelta-"+sanitize(prefix)+"-*")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	cleanup := func() { os.RemoveAll(tmpDir) }

	base, err := filepath.Abs(tmpDir)
	if err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to resolve base path: %w", err)
	}

	var total int64
	for _, file := range files {
		// Skip symlinks to prevent symlink-based attacks.
		if file.Mode()&os.ModeSymlink != 0 {
			continue
		}
		n, err := extractFile(file, base)
		if err != nil {
			cleanup()
			return "", nil, err
		}
		total += n
		if total > maxTotalSize {
			cleanup()
			return "", nil, fmt.Errorf("total extracted size exceeds maximum of %d bytes", maxTotalSize)
		}
	}
	return tmpDir, cleanup, nil
}

func extractFile(file *zip.File, base string) (int64, error) {
	target, err := filepath.Abs(filepath.Join(base, file.Name))
	if err != nil {
		return 0, fmt.Errorf("failed to resolve path %s: %w", file.Name, err)
	}
	if !strings.HasPrefix(target, base+string(os.PathSeparator)) && target != base {
		return 0, fmt.Errorf("zip entry attempts path traversal: %s", file.Name)
	}

	if file.FileInfo().IsDir() {
		if err := os.MkdirAll(target, 0o755); err != nil {
			return 0, fmt.Errorf("failed to create directory %s: %w", file.Name, err)
		}
		return 0, nil
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, fmt.Errorf("failed to create parent directory for %s: %w", file.Name, err)
	}

	rc, err := file.Open()
	if err != nil {
		return 0, fmt.Errorf("failed to open zip entry %s: %w", file.Name, err)
	}
	defer rc.Close()

	out, err := os.Create(target)
	if err != nil {
		return 0, fmt.Errorf("failed to create file %s: %w", file.Name, err)
	}
	defer out.Close()

	n, err := io.Copy(out, io.LimitReader(rc, maxFileSize+1))
	if err != nil {
		return 0, fmt.Errorf("failed to extract %s: %w", file.Name, err)
	}
	if n > maxFileSize {
		return 0, fmt.Errorf("file %s exceeds maximum size of %d bytes", file.Name, maxFileSize)
	}
	return n, nil
}

// sanitize keeps temp directory names free of path separators, which
// module paths and versions may carry.
func sanitize(prefix string) string {
	return strings.NewReplacer("/", "_", string(os.PathSeparator), "_", "*", "_").Replace(prefix)
}
