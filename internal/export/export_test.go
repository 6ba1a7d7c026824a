package export

import (
	"errors"
	"image"
	"path/filepath"
	"testing"

	"github.com/banshee-data/itemsheet/internal/fsutil"
	"github.com/banshee-data/itemsheet/internal/sheet"
	"github.com/banshee-data/itemsheet/internal/sheet/l1raster"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assets(indices ...int) []sheet.Asset {
	out := make([]sheet.Asset, len(indices))
	for i, idx := range indices {
		out[i] = sheet.Asset{Index: idx, Image: image.NewNRGBA(image.Rect(0, 0, 8, 8))}
	}
	return out
}

func newMemWriter(prefix string) (*Writer, *fsutil.MemoryFileSystem) {
	mfs := fsutil.NewMemoryFileSystem()
	return &Writer{FS: mfs, Codec: l1raster.PNGCodec{}, Dir: "out/items", Prefix: prefix}, mfs
}

func TestWriter_WritesNamedFiles(t *testing.T) {
	t.Parallel()

	w, mfs := newMemWriter("item_auto")
	rep, err := w.Write(assets(1, 2, 10))
	require.NoError(t, err)

	want := []string{
		filepath.Join("out/items", "item_auto_01.png"),
		filepath.Join("out/items", "item_auto_02.png"),
		filepath.Join("out/items", "item_auto_10.png"),
	}
	assert.Equal(t, want, rep.Written)
	assert.Empty(t, rep.Failed)
	assert.Equal(t, want, mfs.Files())
	assert.Equal(t, want, Paths("out/items", "item_auto", assets(1, 2, 10)))

	data, err := mfs.ReadFile(want[0])
	require.NoError(t, err)
	g, err := l1raster.PNGCodec{}.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, 8, g.Width)
}

func TestWriter_FailureDoesNotStopBatch(t *testing.T) {
	t.Parallel()

	boom := errors.New("no space left")
	w, mfs := newMemWriter("x")
	mfs.FailWrite = func(name string) error {
		if filepath.Base(name) == "x_02.png.tmp" {
			return boom
		}
		return nil
	}

	rep, err := w.Write(assets(1, 2, 3))
	require.NoError(t, err)
	assert.Len(t, rep.Written, 2)
	require.Len(t, rep.Failed, 1)

	pe := rep.Failed[0]
	assert.Equal(t, 2, pe.Index)
	assert.True(t, errors.Is(pe, boom))
	var target *PersistError
	assert.True(t, errors.As(error(pe), &target))
	assert.Contains(t, pe.Error(), "x_02.png")
}

func TestWriter_MissingImageAndDuplicateIndex(t *testing.T) {
	t.Parallel()

	w, _ := newMemWriter("x")
	in := append(assets(1, 1), sheet.Asset{Index: 2})
	rep, err := w.Write(in)
	require.NoError(t, err)
	assert.Len(t, rep.Written, 1)
	require.Len(t, rep.Failed, 2)
	assert.Equal(t, 1, rep.Failed[0].Index)
	assert.Equal(t, 2, rep.Failed[1].Index)
}

func TestWriter_RemoveStale(t *testing.T) {
	t.Parallel()

	w, mfs := newMemWriter("item")
	require.NoError(t, mfs.MkdirAll(w.Dir, 0o755))
	for _, n := range []string{"item_01.png", "item_07.png", "item_extra.png", "other_03.png", "item_99.txt"} {
		require.NoError(t, mfs.WriteFile(filepath.Join(w.Dir, n), []byte("old"), 0o644))
	}

	w.RemoveStale = true
	rep, err := w.Write(assets(1, 2))
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(w.Dir, "item_07.png")}, rep.Removed)
	assert.True(t, mfs.Exists(filepath.Join(w.Dir, "item_extra.png")))
	assert.True(t, mfs.Exists(filepath.Join(w.Dir, "other_03.png")))

	// item_01 was overwritten, not removed.
	data, _ := mfs.ReadFile(filepath.Join(w.Dir, "item_01.png"))
	assert.NotEqual(t, "old", string(data))
}

func TestWriter_InvalidPrefixAndDirectory(t *testing.T) {
	t.Parallel()

	w, mfs := newMemWriter("../x")
	_, err := w.Write(assets(1))
	assert.Error(t, err)

	w, mfs = newMemWriter("ok")
	require.NoError(t, mfs.WriteFile("out", nil, 0o644))
	_, err = w.Write(assets(1))
	assert.Error(t, err, "a file in place of the output directory is fatal")
}

func TestIsAssetName(t *testing.T) {
	t.Parallel()

	assert.True(t, IsAssetName("item_auto_01.png", "item_auto"))
	assert.True(t, IsAssetName("item_auto_123.png", "item_auto"))
	assert.False(t, IsAssetName("item_auto_1.png", "item_auto"))
	assert.False(t, IsAssetName("item_auto_ab.png", "item_auto"))
	assert.False(t, IsAssetName("item_01.png", "item_auto"))
	assert.False(t, IsAssetName("item_auto_01.jpg", "item_auto"))
}
