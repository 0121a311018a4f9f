// Package store names captured stills and writes them to disk as JPEG.
package store

import (
	"bufio"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// TimeLayout formats capture timestamps: 2024-05-30-142501.
const TimeLayout = "2006-01-02-150405"

// Namer builds destination paths for captures.
type Namer struct {
	Dir string
	Now func() time.Time
}

// Name returns {timestamp}.jpg, or {timestamp}_rfid_{tag}.jpg when a tag id
// is given, inside Dir.
func (n Namer) Name(tag string) string {
	now := time.Now
	if n.Now != nil {
		now = n.Now
	}
	name := now().Format(TimeLayout)
	if tag != "" {
		name += "_rfid_" + cleanTag(tag)
	}
	return filepath.Join(n.Dir, name+".jpg")
}

// cleanTag keeps letters, digits, '-' and '_' so a tag can never leave Dir.
func cleanTag(tag string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, tag)
}

// Alternate places a caller supplied file name in Dir. Absolute paths are
// used as they are.
func (n Namer) Alternate(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(n.Dir, name)
}

// WriteError is a failed save of one capture.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

type JPEGWriter struct {
	Quality int
}

// Save encodes img and writes it to path. The file appears complete or not
// at all; an existing file at path is replaced.
func (w JPEGWriter) Save(path string, img image.Image) error {
	q := w.Quality
	if q <= 0 || q > 100 {
		q = jpeg.DefaultQuality
	}
	return WriteAtomic(path, func(bw io.Writer) error {
		return jpeg.Encode(bw, img, &jpeg.Options{Quality: q})
	})
}

// WriteAtomic creates path through a temporary file in the same directory
// that is renamed into place once write has succeeded.
func WriteAtomic(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &WriteError{Path: path, Err: err}
	}

	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return &WriteError{Path: path, Err: err}
	}
	tmp := f.Name()
	fail := func(err error) error {
		f.Close()
		os.Remove(tmp)
		return &WriteError{Path: path, Err: err}
	}

	bw := bufio.NewWriter(f)
	if err := write(bw); err != nil {
		return fail(err)
	}
	if err := bw.Flush(); err != nil {
		return fail(err)
	}
	if err := f.Chmod(0o644); err != nil {
		return fail(err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return &WriteError{Path: path, Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return &WriteError{Path: path, Err: err}
	}
	return nil
}
