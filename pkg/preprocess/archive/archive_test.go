package archive_test

import (
	"archive/tar"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KyleAMoore/Redshift-ResNet/pkg/preprocess/archive"
)

// writeTree lays out a small dataset directory for archiving tests.
func writeTree(t *testing.T) string {
	t.Helper()

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "images", "r"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "labels.csv"), []byte("specObjID,z\n1,0.5\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "images", "r", "frame-001.fits"), []byte("fits-bytes"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "images", "README"), []byte("band r cutouts\n"), 0o644))
	return root
}

// memberNames decodes an archive and returns member names in stored order.
func memberNames(t *testing.T, path string) []string {
	t.Helper()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	tr := tar.NewReader(gz)

	var names []string
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		names = append(names, hdr.Name)
	}
	return names
}

func TestDir_RoundTrip(t *testing.T) {
	src := writeTree(t)
	dst := filepath.Join(t.TempDir(), "dataset.tar.gz")

	require.NoError(t, archive.Dir(src, dst))

	unpacked := t.TempDir()
	require.NoError(t, archive.Unpack(dst, unpacked))

	labels, err := os.ReadFile(filepath.Join(unpacked, "labels.csv"))
	require.NoError(t, err)
	assert.Equal(t, "specObjID,z\n1,0.5\n", string(labels))

	frame, err := os.ReadFile(filepath.Join(unpacked, "images", "r", "frame-001.fits"))
	require.NoError(t, err)
	assert.Equal(t, "fits-bytes", string(frame))

	readme, err := os.ReadFile(filepath.Join(unpacked, "images", "README"))
	require.NoError(t, err)
	assert.Equal(t, "band r cutouts\n", string(readme))
}

func TestDir_MemberOrderIsLexical(t *testing.T) {
	src := writeTree(t)
	dst := filepath.Join(t.TempDir(), "dataset.tar.gz")

	require.NoError(t, archive.Dir(src, dst))

	assert.Equal(t, []string{
		"images/",
		"images/README",
		"images/r/",
		"images/r/frame-001.fits",
		"labels.csv",
	}, memberNames(t, dst))
}

func TestDir_Deterministic(t *testing.T) {
	src := writeTree(t)
	outDir := t.TempDir()
	first := filepath.Join(outDir, "first.tar.gz")
	second := filepath.Join(outDir, "second.tar.gz")

	require.NoError(t, archive.Dir(src, first))
	require.NoError(t, archive.Dir(src, second))

	a, err := os.ReadFile(first)
	require.NoError(t, err)
	b, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(a, b), "same tree should archive to identical bytes")
}

func TestDir_MissingSource(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "dataset.tar.gz")
	err := archive.Dir(filepath.Join(t.TempDir(), "absent"), dst)
	assert.Error(t, err)
}

func TestUnpack_RejectsEscapingMembers(t *testing.T) {
	// Handcraft an archive whose member climbs out of the destination.
	evil := filepath.Join(t.TempDir(), "evil.tar.gz")
	f, err := os.Create(evil)
	require.NoError(t, err)

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)
	require.NoError(t, tw.WriteHeader(&tar.Header{
		Name:     "../escape.txt",
		Typeflag: tar.TypeReg,
		Mode:     0o644,
		Size:     4,
	}))
	_, err = tw.Write([]byte("boom"))
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	dst := t.TempDir()
	err = archive.Unpack(evil, dst)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "escapes destination")

	// Nothing may have been written outside dst.
	_, statErr := os.Stat(filepath.Join(dst, "..", "escape.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestUnpack_NotAnArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.txt")
	require.NoError(t, os.WriteFile(path, []byte("not gzip"), 0o644))

	err := archive.Unpack(path, t.TempDir())
	assert.Error(t, err)
}

func TestUnpack_CreatesNestedDirectories(t *testing.T) {
	// A tar written without explicit directory members still unpacks.
	path := filepath.Join(t.TempDir(), "flat.tar.gz")
	f, err := os.Create(path)
	require.NoError(t, err)

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)
	payload := []byte("deep")
	require.NoError(t, tw.WriteHeader(&tar.Header{
		Name:     "a/b/c/data.bin",
		Typeflag: tar.TypeReg,
		Mode:     0o644,
		Size:     int64(len(payload)),
	}))
	_, err = tw.Write(payload)
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	dst := t.TempDir()
	require.NoError(t, archive.Unpack(path, dst))

	got, err := os.ReadFile(filepath.Join(dst, "a", "b", "c", "data.bin"))
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}
