package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockd/core"
)

func TestLocalFileStorage_SaveAndDelete(t *testing.T) {
	root := t.TempDir()
	files, err := NewLocalFileStorage(root)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, files.Save(ctx, "stock/2026/sunset.jpg", strings.NewReader("image-bytes")))

	data, err := os.ReadFile(filepath.Join(root, "stock", "2026", "sunset.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "image-bytes", string(data))

	require.NoError(t, files.Save(ctx, "stock/2026/sunset.jpg", strings.NewReader("replaced")))
	data, err = os.ReadFile(filepath.Join(root, "stock", "2026", "sunset.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "replaced", string(data))

	require.NoError(t, files.Delete(ctx, "stock/2026/sunset.jpg"))
	_, err = os.Stat(filepath.Join(root, "stock", "2026", "sunset.jpg"))
	assert.True(t, os.IsNotExist(err))

	// already gone
	assert.NoError(t, files.Delete(ctx, "stock/2026/sunset.jpg"))
}

func TestLocalFileStorage_RejectsEscape(t *testing.T) {
	files, err := NewLocalFileStorage(t.TempDir())
	require.NoError(t, err)

	for _, path := range []string{"../outside.jpg", "a/../../outside.jpg", "", "."} {
		err := files.Save(context.Background(), path, strings.NewReader("x"))
		assert.ErrorIs(t, err, core.ErrInvalidArgument, path)
	}
}
