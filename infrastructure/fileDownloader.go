package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileDownloader writes exported files under a local directory
type FileDownloader struct {
	dir string
}

func NewFileDownloader(dir string) (FileDownloader, error) {
	if dir == "" {
		return FileDownloader{}, errors.New("export directory is empty")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return FileDownloader{}, fmt.Errorf("create export directory: %w", err)
	}
	return FileDownloader{dir: dir}, nil
}

// Path returns where filename is written, rejecting names escaping the directory
func (f FileDownloader) Path(filename string) (string, error) {
	target := filepath.Join(f.dir, filepath.FromSlash(filename))
	rel, err := filepath.Rel(f.dir, target)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid export filename %q", filename)
	}
	return target, nil
}

func (f FileDownloader) Download(ctx context.Context, content []byte, filename string, mimeType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target, err := f.Path(filename)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return err
	}
	return os.WriteFile(target, content, 0o640)
}
