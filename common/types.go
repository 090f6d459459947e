// package common contains plain data types and helpers shared by the renderer packages. Nothing in here owns
// GPU resources; the types describe data that is staged for upload or values passed between packages.
package common

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	"github.com/cogentcore/webgpu/wgpu"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// TextureStagingData holds RGBA pixel data for a texture pending GPU upload.
type TextureStagingData struct {
	// Pixels is the RGBA8 pixel data, 4 bytes per pixel in row-major order.
	Pixels []byte
	// Width is the width of the texture in pixels.
	Width uint32
	// Height is the height of the texture in pixels.
	Height uint32
}

// Validate reports whether the staging data describes a non-empty image whose pixel buffer matches its size.
//
// Returns:
//   - error: nil if the data can be uploaded, otherwise a description of the mismatch
func (t TextureStagingData) Validate() error {
	if t.Width == 0 || t.Height == 0 {
		return fmt.Errorf("texture has zero size %dx%d", t.Width, t.Height)
	}
	if want := int(t.Width) * int(t.Height) * 4; len(t.Pixels) != want {
		return fmt.Errorf("texture pixel buffer is %d bytes, expected %d for %dx%d RGBA", len(t.Pixels), want, t.Width, t.Height)
	}
	return nil
}

// SamplerStagingData holds the configuration for a sampler pending GPU creation.
// The zero value matches the WebGPU defaults: repeat addressing and nearest filtering. Only LodMaxClamp and
// MaxAnisotropy, whose zero values are invalid, are replaced with defaults when the sampler is created.
type SamplerStagingData struct {
	// AddressModeU, AddressModeV, AddressModeW specify the addressing mode for texture coordinates outside [0, 1].
	AddressModeU, AddressModeV, AddressModeW wgpu.AddressMode
	// MagFilter and MinFilter specify the filtering mode for magnification and minification.
	MagFilter, MinFilter wgpu.FilterMode
	// MipmapFilter specifies the filtering mode for mipmap level selection.
	MipmapFilter wgpu.MipmapFilterMode
	// LodMinClamp and LodMaxClamp specify the minimum and maximum level of detail for mipmapping.
	LodMinClamp, LodMaxClamp float32
	// Compare specifies the comparison function for comparison samplers.
	Compare wgpu.CompareFunction
	// MaxAnisotropy specifies the maximum anisotropy level for anisotropic filtering.
	MaxAnisotropy uint16
}

// Descriptor resolves the staging data into a full sampler descriptor, replacing a zero LodMaxClamp with 32 and a zero
// MaxAnisotropy with 1.
//
// Parameters:
//   - label: the debug label for the sampler
//
// Returns:
//   - wgpu.SamplerDescriptor: the descriptor ready to pass to the device
func (s SamplerStagingData) Descriptor(label string) wgpu.SamplerDescriptor {
	return wgpu.SamplerDescriptor{
		Label:         label,
		AddressModeU:  s.AddressModeU,
		AddressModeV:  s.AddressModeV,
		AddressModeW:  s.AddressModeW,
		MagFilter:     s.MagFilter,
		MinFilter:     s.MinFilter,
		MipmapFilter:  s.MipmapFilter,
		LodMinClamp:   s.LodMinClamp,
		LodMaxClamp:   Coalesce(s.LodMaxClamp, 32.0),
		MaxAnisotropy: Coalesce(s.MaxAnisotropy, 1),
		Compare:       s.Compare,
	}
}

// DecodeImage decodes an encoded image (PNG, JPEG, BMP, TIFF or WebP) into RGBA staging data.
//
// Parameters:
//   - r: the reader holding the encoded image bytes
//
// Returns:
//   - TextureStagingData: the decoded RGBA pixels and dimensions
//   - error: an error if the data could not be decoded
func DecodeImage(r io.Reader) (TextureStagingData, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return TextureStagingData{}, fmt.Errorf("failed to decode image: %w", err)
	}
	staging := ImageToStagingData(img)
	if err := staging.Validate(); err != nil {
		return TextureStagingData{}, fmt.Errorf("decoded %s image is unusable: %w", format, err)
	}
	return staging, nil
}

// DecodeImageFile reads and decodes the image file at path into RGBA staging data.
//
// Parameters:
//   - path: the file path of the encoded image
//
// Returns:
//   - TextureStagingData: the decoded RGBA pixels and dimensions
//   - error: an error if the file could not be read or decoded
func DecodeImageFile(path string) (TextureStagingData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return TextureStagingData{}, fmt.Errorf("failed to read texture file %s: %w", path, err)
	}
	staging, err := DecodeImage(bytes.NewReader(data))
	if err != nil {
		return TextureStagingData{}, fmt.Errorf("texture file %s: %w", path, err)
	}
	return staging, nil
}

// ImageToStagingData converts any image into tightly packed RGBA staging data with its origin at (0, 0).
//
// Parameters:
//   - img: the source image
//
// Returns:
//   - TextureStagingData: the RGBA pixels and dimensions of img
func ImageToStagingData(img image.Image) TextureStagingData {
	bounds := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	return TextureStagingData{
		Pixels: rgba.Pix,
		Width:  uint32(bounds.Dx()),
		Height: uint32(bounds.Dy()),
	}
}
