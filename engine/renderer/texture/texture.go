package texture

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-draw/common"
	"github.com/cogentcore/webgpu/wgpu"
)

// Uploader creates a sampleable GPU texture from staged pixels. The renderer backend implements it.
type Uploader interface {
	// UploadTexture creates an RGBA8 sRGB texture, writes the pixels into it and creates a view of it.
	//
	// Parameters:
	//   - label: the debug label of the texture
	//   - data: the pixels to upload
	//
	// Returns:
	//   - *wgpu.Texture: the texture
	//   - *wgpu.TextureView: a view of the whole texture
	//   - error: the device error, if any
	UploadTexture(label string, data common.TextureStagingData) (*wgpu.Texture, *wgpu.TextureView, error)
}

// texture is the implementation of the Texture interface.
type texture struct {
	key    string
	tex    *wgpu.Texture
	view   *wgpu.TextureView
	width  uint32
	height uint32
}

// Texture is a GPU-resident 2D image with a view that can be bound for sampling.
type Texture interface {
	// Key returns the cache key the texture was created under.
	Key() string

	// Texture returns the underlying GPU texture.
	Texture() *wgpu.Texture

	// View returns the view bound in bind groups. It stays valid until Release.
	View() *wgpu.TextureView

	// Size returns the texture dimensions in pixels.
	Size() (width, height uint32)

	// Release frees the view and the texture. It is safe to call more than once.
	Release()
}

var _ Texture = &texture{}

// New uploads staged pixels to the GPU and wraps the result.
//
// Parameters:
//   - uploader: creates the GPU objects
//   - key: the cache key, also used as the debug label
//   - data: the decoded pixels
//
// Returns:
//   - Texture: the uploaded texture
//   - error: a validation error for malformed staging data, or the wrapped upload error
func New(uploader Uploader, key string, data common.TextureStagingData) (Texture, error) {
	if err := data.Validate(); err != nil {
		return nil, fmt.Errorf("texture %s: %w", key, err)
	}
	tex, view, err := uploader.UploadTexture(key, data)
	if err != nil {
		return nil, fmt.Errorf("texture %s: upload failed: %w", key, err)
	}
	return &texture{
		key:    key,
		tex:    tex,
		view:   view,
		width:  data.Width,
		height: data.Height,
	}, nil
}

func (t *texture) Key() string {
	return t.key
}

func (t *texture) Texture() *wgpu.Texture {
	return t.tex
}

func (t *texture) View() *wgpu.TextureView {
	return t.view
}

func (t *texture) Size() (uint32, uint32) {
	return t.width, t.height
}

func (t *texture) Release() {
	if t.view != nil {
		t.view.Release()
		t.view = nil
	}
	if t.tex != nil {
		t.tex.Release()
		t.tex = nil
	}
}
