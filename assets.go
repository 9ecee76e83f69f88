package astral

import (
	"fmt"
	"image"
	"io"
	"os"

	// Register decoders for the texture formats the loader accepts.
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/google/uuid"
)

// AssetId identifies a registered GPU asset.
type AssetId string

func makeAssetId() AssetId {
	return AssetId(uuid.NewString())
}

// TextureEntry is one texture registered in the bindless texture
// table.
type TextureEntry struct {
	Id     AssetId
	Handle ResourceHandle
	View   *wgpu.TextureView
	Width  uint32
	Height uint32
}

// TextureAssets loads image files, uploads them and hands out their
// bindless handles. Files are deduplicated by path.
type TextureAssets struct {
	ctx     *GpuContext
	byPath  map[string]AssetId
	entries map[AssetId]TextureEntry
}

func NewTextureAssets(ctx *GpuContext) *TextureAssets {
	return &TextureAssets{
		ctx:     ctx,
		byPath:  map[string]AssetId{},
		entries: map[AssetId]TextureEntry{},
	}
}

// LoadFile decodes an image file (PNG, BMP or TIFF) and registers it
// in the texture table. Loading the same path twice returns the
// existing entry.
func (a *TextureAssets) LoadFile(path string) (TextureEntry, error) {
	if id, ok := a.byPath[path]; ok {
		return a.entries[id], nil
	}
	file, err := os.Open(path)
	if err != nil {
		return TextureEntry{}, fmt.Errorf("failed to open texture %s: %w", path, err)
	}
	defer file.Close()

	width, height, texels, err := decodeImageRGBA(file)
	if err != nil {
		return TextureEntry{}, fmt.Errorf("failed to decode texture %s: %w", path, err)
	}
	entry, err := a.FromTexels(path, width, height, texels)
	if err != nil {
		return TextureEntry{}, err
	}
	a.byPath[path] = entry.Id
	return entry, nil
}

// FromTexels registers raw RGBA8 texel data.
func (a *TextureAssets) FromTexels(label string, width, height uint32, texels []byte) (TextureEntry, error) {
	if uint32(len(texels)) != width*height*4 {
		return TextureEntry{}, fmt.Errorf("texture %q: %d texel bytes for %dx%d RGBA8", label, len(texels), width, height)
	}
	handle, view, err := a.ctx.CreateTexture2D(label, width, height, wgpu.TextureFormatRGBA8Unorm, texels)
	if err != nil {
		return TextureEntry{}, err
	}
	entry := TextureEntry{
		Id:     makeAssetId(),
		Handle: handle,
		View:   view,
		Width:  width,
		Height: height,
	}
	a.entries[entry.Id] = entry
	return entry, nil
}

// Lookup returns a registered entry by id.
func (a *TextureAssets) Lookup(id AssetId) (TextureEntry, bool) {
	e, ok := a.entries[id]
	return e, ok
}

// Release frees an entry's table slot (deferred per the table's
// in-flight window) and releases its view.
func (a *TextureAssets) Release(id AssetId) error {
	e, ok := a.entries[id]
	if !ok {
		return fmt.Errorf("unknown texture asset %s", id)
	}
	if err := a.ctx.Tables.Textures.Free(e.Handle); err != nil {
		return err
	}
	e.View.Release()
	delete(a.entries, id)
	for path, pid := range a.byPath {
		if pid == id {
			delete(a.byPath, path)
		}
	}
	return nil
}

// decodeImageRGBA decodes any registered image format to tightly
// packed RGBA8 texels.
func decodeImageRGBA(r io.Reader) (width, height uint32, texels []byte, err error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return 0, 0, nil, err
	}
	bounds := img.Bounds()
	rgbaImg, ok := img.(*image.RGBA)
	if !ok {
		rgbaImg = image.NewRGBA(bounds)
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				rgbaImg.Set(x, y, img.At(x, y))
			}
		}
	}
	return uint32(bounds.Dx()), uint32(bounds.Dy()), rgbaImg.Pix, nil
}
