// Package storage holds uploaded media and the per-job scratch files the worker
// downloads it into. Both sit on an afero filesystem so tests can run in memory.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/akiwumi/typemyaudio/internal/ports"
)

var (
	ErrNotFound   = errors.New("object not found")
	ErrInvalidKey = errors.New("invalid object key")
)

// Local is an object store rooted at a directory of an afero filesystem.
type Local struct {
	fs   afero.Fs
	root string
}

var _ ports.ObjectStorage = (*Local)(nil)

func NewLocal(fs afero.Fs, root string) *Local {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Local{fs: fs, root: filepath.Clean(root)}
}

// Key builds the storage key for a job's media file.
func Key(accountID, jobID, filename string) string {
	return path.Join(accountID, jobID, path.Base(filename))
}

func (l *Local) resolve(key string) (string, error) {
	clean := path.Clean(strings.TrimPrefix(key, "/"))
	if key == "" || clean == "." || strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(l.root, filepath.FromSlash(clean)), nil
}

func (l *Local) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := l.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := l.fs.Open(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("open object: %w", err)
	}
	return f, nil
}

// Upload writes body to key through a temp file and rename. contentType is accepted
// for interface parity with hosted object stores and is not persisted.
func (l *Local) Upload(ctx context.Context, key string, body io.Reader, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := l.resolve(key)
	if err != nil {
		return err
	}
	if err := l.fs.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("create object dir: %w", err)
	}

	tmp := p + ".tmp"
	f, err := l.fs.Create(tmp)
	if err != nil {
		return fmt.Errorf("create temp object: %w", err)
	}
	if _, err := io.Copy(f, body); err != nil {
		_ = f.Close()
		_ = l.fs.Remove(tmp)
		return fmt.Errorf("write object: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = l.fs.Remove(tmp)
		return fmt.Errorf("close object: %w", err)
	}
	if err := l.fs.Rename(tmp, p); err != nil {
		_ = l.fs.Remove(tmp)
		return fmt.Errorf("rename object: %w", err)
	}
	return nil
}

// Remove deletes every key, ignoring ones that do not exist.
func (l *Local) Remove(ctx context.Context, keys ...string) error {
	var errs []error
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		p, err := l.resolve(key)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := l.fs.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("remove %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}
