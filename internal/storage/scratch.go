package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/akiwumi/typemyaudio/internal/logger"
)

// Scratch hands out one temporary media file per job. The number of live slots is
// bounded by the capacity given to NewScratch.
type Scratch struct {
	fs    afero.Fs
	dir   string
	slots chan struct{}
	log   *logrus.Entry
}

func NewScratch(fs afero.Fs, dir string, capacity int) *Scratch {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if capacity < 1 {
		capacity = 1
	}
	return &Scratch{
		fs:    fs,
		dir:   dir,
		slots: make(chan struct{}, capacity),
		log:   logger.New().WithField("component", "scratch"),
	}
}

// Fs exposes the filesystem slots live on, for readers of Slot.Path.
func (s *Scratch) Fs() afero.Fs { return s.fs }

// InUse reports how many slots are currently held.
func (s *Scratch) InUse() int { return len(s.slots) }

// MediaExt picks the scratch extension from the stored object's name.
func MediaExt(key string) string {
	if strings.EqualFold(filepath.Ext(key), ".mp4") {
		return ".mp4"
	}
	return ".mp3"
}

// Acquire blocks until a slot is free or ctx is done.
func (s *Scratch) Acquire(ctx context.Context, jobID, ext string) (*Slot, error) {
	select {
	case s.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if err := s.fs.MkdirAll(s.dir, 0o700); err != nil {
		<-s.slots
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	return &Slot{Path: filepath.Join(s.dir, jobID+ext), owner: s}, nil
}

type Slot struct {
	Path  string
	owner *Scratch
	once  sync.Once
}

// Fill copies r into the slot's file.
func (sl *Slot) Fill(r io.Reader) (int64, error) {
	f, err := sl.owner.fs.Create(sl.Path)
	if err != nil {
		return 0, fmt.Errorf("create scratch file: %w", err)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, fmt.Errorf("write scratch file: %w", err)
	}
	return n, nil
}

// Release deletes the scratch file and frees the slot. Errors are logged, never
// returned. Calling it more than once is safe.
func (sl *Slot) Release() {
	sl.once.Do(func() {
		if err := sl.owner.fs.Remove(sl.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			sl.owner.log.WithError(err).WithField("path", sl.Path).Warn("scratch cleanup failed")
		}
		<-sl.owner.slots
	})
}
