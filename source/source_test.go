package source

import (
	"archive/zip"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"

	"github.com/pierrec/lz4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const csvContent = "region,amount\nNorth,10\n"

func TestResolvePlainFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte(csvContent), 0o644))

	src, err := Resolve(path)
	require.NoError(t, err)
	assert.Equal(t, path, src.Path)
	assert.NotEmpty(t, src.ID)
}

func TestResolveMissingFile(t *testing.T) {
	_, err := Resolve(filepath.Join(t.TempDir(), "nope.csv"))
	assert.Error(t, err)
}

func TestUnpackZipPicksLargestMember(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "upload.zip")
	f, err := os.Create(archive)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	small, err := zw.Create("readme.txt")
	require.NoError(t, err)
	_, err = small.Write([]byte("hi"))
	require.NoError(t, err)
	big, err := zw.Create("data.csv")
	require.NoError(t, err)
	_, err = big.Write([]byte(csvContent))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	src, err := Resolve(archive)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "data.csv"), src.Path)

	content, err := os.ReadFile(src.Path)
	require.NoError(t, err)
	assert.Equal(t, csvContent, string(content))

	// the archive is gone once unpacked
	_, err = os.Stat(archive)
	assert.True(t, os.IsNotExist(err))
}

func TestUnpackGzip(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "data.csv.gz")
	f, err := os.Create(archive)
	require.NoError(t, err)
	gw := gzip.NewWriter(f)
	_, err = gw.Write([]byte(csvContent))
	require.NoError(t, err)
	require.NoError(t, gw.Close())
	require.NoError(t, f.Close())

	src, err := Resolve(archive)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "data.csv"), src.Path)

	content, err := os.ReadFile(src.Path)
	require.NoError(t, err)
	assert.Equal(t, csvContent, string(content))
}

func TestUnpackLZ4(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "data.csv.lz4")
	f, err := os.Create(archive)
	require.NoError(t, err)
	lw := lz4.NewWriter(f)
	_, err = lw.Write([]byte(csvContent))
	require.NoError(t, err)
	require.NoError(t, lw.Close())
	require.NoError(t, f.Close())

	src, err := Resolve(archive)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "data.csv"), src.Path)

	content, err := os.ReadFile(src.Path)
	require.NoError(t, err)
	assert.Equal(t, csvContent, string(content))
}

func TestUnpackEmptyZip(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "empty.zip")
	f, err := os.Create(archive)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	_, err = Resolve(archive)
	assert.Error(t, err)
}
