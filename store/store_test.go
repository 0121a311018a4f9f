package store

import (
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedNow() time.Time {
	return time.Date(2024, 5, 30, 14, 25, 1, 0, time.Local)
}

func TestNamer(t *testing.T) {
	n := Namer{Dir: "shots", Now: fixedNow}

	assert.Equal(t, filepath.Join("shots", "2024-05-30-142501.jpg"), n.Name(""))
	assert.Equal(t, filepath.Join("shots", "2024-05-30-142501_rfid_4-17-200-9.jpg"), n.Name("4-17-200-9"))
	assert.Equal(t, filepath.Join("shots", "me.jpg"), n.Alternate("me.jpg"))
	assert.Equal(t, "/tmp/me.jpg", n.Alternate("/tmp/me.jpg"))
}

func TestNamer_TagStaysInDir(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "captures")
	n := Namer{Dir: dir, Now: fixedNow}

	path := n.Name("x/../../../escape")
	assert.Equal(t, filepath.Join(dir, "2024-05-30-142501_rfid_x__________escape.jpg"), path)

	require.NoError(t, JPEGWriter{}.Save(path, testImage()))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.False(t, entries[0].IsDir())

	rootEntries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Len(t, rootEntries, 1, "nothing written next to the store dir")
}

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 8, 6))
	for x := 0; x < 8; x++ {
		for y := 0; y < 6; y++ {
			img.Set(x, y, color.RGBA{uint8(x * 30), uint8(y * 40), 90, 255})
		}
	}
	return img
}

func TestJPEGWriter_Save(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "a.jpg")

	require.NoError(t, JPEGWriter{Quality: 90}.Save(path, testImage()))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := jpeg.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 8, 6), img.Bounds())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestJPEGWriter_Overwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.jpg")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))

	require.NoError(t, JPEGWriter{}.Save(path, testImage()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotEqual(t, "old", string(data))
}

func TestJPEGWriter_Error(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	err := JPEGWriter{}.Save(filepath.Join(blocker, "a.jpg"), testImage())

	var werr *WriteError
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, filepath.Join(blocker, "a.jpg"), werr.Path)
}

func TestWriteAtomic_FailureLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "upload.jpg")

	err := WriteAtomic(path, func(w io.Writer) error {
		w.Write([]byte("partial"))
		return errors.New("client went away")
	})
	var we *WriteError
	require.ErrorAs(t, err, &we)
	assert.Equal(t, path, we.Path)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
