// Package tag reads tag identifiers that parameterize capture file names.
package tag

import (
	"bufio"
	"context"
	"encoding/hex"
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ID is a tag's raw UID.
type ID []byte

// String joins the UID bytes in decimal with dashes: 4-17-200-9.
func (id ID) String() string {
	parts := make([]string, len(id))
	for i, b := range id {
		parts[i] = strconv.Itoa(int(b))
	}
	return strings.Join(parts, "-")
}

// Tag is one read. Readers that only hand out a label leave UID empty.
type Tag struct {
	UID  ID
	Text string
}

// Name is what goes in the file name.
func (t Tag) Name() string {
	if len(t.UID) > 0 {
		return t.UID.String()
	}
	return t.Text
}

type Source interface {
	// Scan blocks until a tag is presented or ctx is done.
	Scan(ctx context.Context) (Tag, error)
}

// Fixed presents the same label every Every.
type Fixed struct {
	Label string
	Every time.Duration
}

func (f Fixed) Scan(ctx context.Context) (Tag, error) {
	if f.Every > 0 {
		t := time.NewTimer(f.Every)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return Tag{}, ctx.Err()
		}
	} else if err := ctx.Err(); err != nil {
		return Tag{}, err
	}
	return Tag{Text: f.Label}, nil
}

// LineReader reads one tag per line, as typed by keyboard-emulating RFID
// readers. Hex UIDs (with or without ':' or '-' separators) become a UID,
// anything else is kept as text.
type LineReader struct {
	lines chan string
	err   error
}

func NewLineReader(r io.Reader) *LineReader {
	lr := &LineReader{lines: make(chan string)}
	go func() {
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" {
				continue
			}
			lr.lines <- line
		}
		lr.err = sc.Err()
		close(lr.lines)
	}()
	return lr
}

func (lr *LineReader) Scan(ctx context.Context) (Tag, error) {
	select {
	case line, ok := <-lr.lines:
		if !ok {
			if lr.err != nil {
				return Tag{}, lr.err
			}
			return Tag{}, io.EOF
		}
		return Parse(line), nil
	case <-ctx.Done():
		return Tag{}, ctx.Err()
	}
}

// Parse turns a reader line into a tag.
func Parse(s string) Tag {
	clean := strings.NewReplacer(":", "", "-", "", " ", "").Replace(s)
	if len(clean) >= 2 && len(clean)%2 == 0 {
		if b, err := hex.DecodeString(clean); err == nil {
			return Tag{UID: b}
		}
	}
	return Tag{Text: s}
}

// Watch scans src until ctx is done or the source runs dry, handing every
// tag to fn.
func Watch(ctx context.Context, src Source, log zerolog.Logger, fn func(Tag)) error {
	for {
		t, err := src.Scan(ctx)
		switch {
		case err == nil:
			log.Debug().Str("tag", t.Name()).Msg("tag read")
			fn(t)
		case errors.Is(err, io.EOF):
			return nil
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			log.Warn().Err(err).Msg("tag scan failed")
			select {
			case <-time.After(500 * time.Millisecond):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}
