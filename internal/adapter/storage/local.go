package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/semmidev/influx-s3/internal/domain"
)

// LocalStorage uses a directory as the bucket. Keys are slash separated paths
// relative to that directory.
type LocalStorage struct {
	basePath string
}

func NewLocal(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalStorage{basePath: basePath}, nil
}

func (l *LocalStorage) Bucket() string {
	return l.basePath
}

func (l *LocalStorage) Upload(ctx context.Context, localPath string, key string) error {
	destPath, err := l.pathFor(key)
	if err != nil {
		return domain.NewTransferError("upload", err)
	}

	source, err := os.Open(localPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.NewNotFoundError("open upload source", err)
		}
		return domain.NewTransferError("open upload source", err)
	}
	defer source.Close()

	if err := copyTo(destPath, source); err != nil {
		return domain.NewTransferError("upload "+key, err)
	}
	return nil
}

func (l *LocalStorage) Download(ctx context.Context, key string, localPath string) error {
	srcPath, err := l.pathFor(key)
	if err != nil {
		return domain.NewTransferError("download", err)
	}

	source, err := os.Open(srcPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.NewNotFoundError("download "+key, err)
		}
		return domain.NewTransferError("download "+key, err)
	}
	defer source.Close()

	if err := copyTo(localPath, source); err != nil {
		return domain.NewTransferError("download "+key, err)
	}
	return nil
}

// List walks the directory in lexical order and yields every file whose key
// starts with prefix.
func (l *LocalStorage) List(ctx context.Context, prefix string) iter.Seq2[domain.RestorePoint, error] {
	return func(yield func(domain.RestorePoint, error) bool) {
		stopped := false
		err := filepath.WalkDir(l.basePath, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if d.IsDir() {
				return nil
			}

			rel, err := filepath.Rel(l.basePath, p)
			if err != nil {
				return err
			}
			key := filepath.ToSlash(rel)
			if !strings.HasPrefix(key, prefix) {
				return nil
			}

			info, err := d.Info()
			if err != nil {
				return err
			}

			if !yield(domain.RestorePoint{Key: key, LastModified: info.ModTime(), Size: info.Size()}, nil) {
				stopped = true
				return fs.SkipAll
			}
			return nil
		})
		if err != nil && !stopped {
			yield(domain.RestorePoint{}, domain.NewTransferError("list "+prefix, err))
		}
	}
}

func (l *LocalStorage) Delete(ctx context.Context, key string) error {
	filePath, err := l.pathFor(key)
	if err != nil {
		return domain.NewTransferError("delete", err)
	}
	if err := os.Remove(filePath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.NewNotFoundError("delete "+key, err)
		}
		return domain.NewTransferError("delete "+key, err)
	}
	return nil
}

func (l *LocalStorage) pathFor(key string) (string, error) {
	clean := path.Clean("/" + key)
	if key == "" || clean == "/" {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return filepath.Join(l.basePath, filepath.FromSlash(clean)), nil
}

func copyTo(destPath string, source io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}

	dest, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create dest: %w", err)
	}
	defer dest.Close()

	if _, err := io.Copy(dest, source); err != nil {
		return fmt.Errorf("failed to copy: %w", err)
	}
	return dest.Close()
}
