package common

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	qt "github.com/frankban/quicktest"
)

func TestCoalesce(t *testing.T) {
	c := qt.New(t)
	c.Assert(Coalesce(0, 0, 3, 4), qt.Equals, 3)
	c.Assert(Coalesce("", "a"), qt.Equals, "a")
	c.Assert(Coalesce[int](), qt.Equals, 0)
}

func TestClamp(t *testing.T) {
	c := qt.New(t)
	c.Assert(Clamp(5, 0, 3), qt.Equals, 3)
	c.Assert(Clamp(-1.5, 0.0, 1.0), qt.Equals, 0.0)
	c.Assert(Clamp(uint8(7), 1, 9), qt.Equals, uint8(7))
}

func TestSliceToBytes(t *testing.T) {
	c := qt.New(t)
	c.Assert(SliceToBytes([]uint16{}), qt.IsNil)
	b := SliceToBytes([]uint16{0, 1, 4})
	c.Assert(b, qt.HasLen, 6)
	b32 := SliceToBytes([][2]float32{{1, 2}, {3, 4}})
	c.Assert(b32, qt.HasLen, 16)
}

func TestParseHexColor(t *testing.T) {
	c := qt.New(t)

	col, err := ParseHexColor("#1e1e1e")
	c.Assert(err, qt.IsNil)
	c.Assert(col, qt.Equals, MildBlack)
	c.Assert(col.Hex(), qt.Equals, "#1e1e1eff")

	col, err = ParseHexColor("fff")
	c.Assert(err, qt.IsNil)
	c.Assert(col, qt.Equals, Color{R: 1, G: 1, B: 1, A: 1})

	col, err = ParseHexColor("#00000080")
	c.Assert(err, qt.IsNil)
	c.Assert(col.A, qt.Equals, 128.0/255)

	_, err = ParseHexColor("#12345")
	c.Assert(err, qt.ErrorMatches, `invalid hex color "#12345"`)
	_, err = ParseHexColor("#zzzzzz")
	c.Assert(err, qt.Not(qt.IsNil))
}

func TestColorLinear(t *testing.T) {
	c := qt.New(t)
	c.Assert(Color{A: 1}.Linear(), qt.Equals, Color{A: 1})
	c.Assert(Color{R: 1, G: 1, B: 1, A: 1}.WGPU(), qt.Equals, wgpu.Color{R: 1, G: 1, B: 1, A: 1})

	l := MildBlack.Linear()
	c.Assert(l.R < MildBlack.R, qt.IsTrue)
	c.Assert(l.R > 0, qt.IsTrue)
	c.Assert(MildBlack.Linear().R > NearBlack.Linear().R, qt.IsTrue)
}

func TestSamplerStagingDataDescriptor(t *testing.T) {
	c := qt.New(t)
	desc := SamplerStagingData{}.Descriptor("grid")
	c.Assert(desc.Label, qt.Equals, "grid")
	c.Assert(desc.MagFilter, qt.Equals, wgpu.FilterModeNearest)
	c.Assert(desc.MinFilter, qt.Equals, wgpu.FilterModeNearest)
	c.Assert(desc.MipmapFilter, qt.Equals, wgpu.MipmapFilterModeNearest)
	c.Assert(desc.AddressModeU, qt.Equals, wgpu.AddressModeRepeat)
	c.Assert(desc.LodMaxClamp, qt.Equals, float32(32))
	c.Assert(desc.MaxAnisotropy, qt.Equals, uint16(1))

	desc = SamplerStagingData{
		MagFilter:    wgpu.FilterModeLinear,
		MinFilter:    wgpu.FilterModeNearest,
		MipmapFilter: wgpu.MipmapFilterModeLinear,
		AddressModeV: wgpu.AddressModeClampToEdge,
		LodMaxClamp:  4,
	}.Descriptor("mixed")
	c.Assert(desc.MagFilter, qt.Equals, wgpu.FilterModeLinear)
	c.Assert(desc.MinFilter, qt.Equals, wgpu.FilterModeNearest)
	c.Assert(desc.MipmapFilter, qt.Equals, wgpu.MipmapFilterModeLinear)
	c.Assert(desc.AddressModeV, qt.Equals, wgpu.AddressModeClampToEdge)
	c.Assert(desc.LodMaxClamp, qt.Equals, float32(4))

	// Nearest and linear requests must resolve to different descriptors.
	nearest := SamplerStagingData{MagFilter: wgpu.FilterModeNearest, MinFilter: wgpu.FilterModeNearest}.Descriptor("s")
	linear := SamplerStagingData{MagFilter: wgpu.FilterModeLinear, MinFilter: wgpu.FilterModeLinear}.Descriptor("s")
	c.Assert(nearest == linear, qt.IsFalse)
}

func TestDecodeImage(t *testing.T) {
	c := qt.New(t)

	src := image.NewNRGBA(image.Rect(2, 3, 5, 5))
	src.Set(2, 3, color.NRGBA{R: 255, A: 255})
	var buf bytes.Buffer
	c.Assert(png.Encode(&buf, src), qt.IsNil)

	path := filepath.Join(c.TempDir(), "red.png")
	c.Assert(os.WriteFile(path, buf.Bytes(), 0o644), qt.IsNil)

	staging, err := DecodeImageFile(path)
	c.Assert(err, qt.IsNil)
	c.Assert(staging.Width, qt.Equals, uint32(3))
	c.Assert(staging.Height, qt.Equals, uint32(2))
	c.Assert(staging.Pixels, qt.HasLen, 3*2*4)
	c.Assert(staging.Pixels[:4], qt.DeepEquals, []byte{255, 0, 0, 255})
	c.Assert(staging.Validate(), qt.IsNil)

	_, err = DecodeImage(bytes.NewReader([]byte("not an image")))
	c.Assert(err, qt.ErrorMatches, `failed to decode image: .*`)

	_, err = DecodeImageFile(filepath.Join(c.TempDir(), "missing.png"))
	c.Assert(err, qt.ErrorMatches, `failed to read texture file .*`)
}

func TestTextureStagingDataValidate(t *testing.T) {
	c := qt.New(t)
	c.Assert(TextureStagingData{}.Validate(), qt.ErrorMatches, `texture has zero size 0x0`)
	c.Assert(TextureStagingData{Width: 1, Height: 1, Pixels: []byte{1}}.Validate(), qt.ErrorMatches, `texture pixel buffer is 1 bytes, expected 4 for 1x1 RGBA`)
}
