package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewest(t *testing.T) {
	dir := t.TempDir()
	_, err := newest(dir)
	assert.Error(t, err)

	old := filepath.Join(dir, "2024-05-30-142501.jpg")
	fresh := filepath.Join(dir, "2024-05-30-142509.jpg")
	require.NoError(t, os.WriteFile(old, nil, 0o644))
	require.NoError(t, os.WriteFile(fresh, nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), nil, 0o644))

	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))

	got, err := newest(dir)
	require.NoError(t, err)
	assert.Equal(t, fresh, got)
}
