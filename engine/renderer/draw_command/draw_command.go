package draw_command

import (
	"errors"
	"fmt"
	"math"

	"github.com/Carmen-Shannon/oxy-draw/common"
	"github.com/cogentcore/webgpu/wgpu"
)

// Device is the subset of *wgpu.Device needed to upload draw geometry.
type Device interface {
	CreateBufferInit(descriptor *wgpu.BufferInitDescriptor) (*wgpu.Buffer, error)
}

var _ Device = &wgpu.Device{}

var (
	// ErrEmptyGeometry is returned when a draw command is built without vertices or indices.
	ErrEmptyGeometry = errors.New("draw command has no geometry")

	// ErrNoPipeline is returned when a draw command does not name the pipeline it draws with.
	ErrNoPipeline = errors.New("draw command has no pipeline name")
)

// Index is the set of element types accepted for index data.
type Index interface {
	~uint16 | ~uint32
}

// DrawCommand is one indexed draw: the pipeline it runs with, resolved by name at render time, and the
// GPU buffers and bind group it binds. The vertex and index buffers are owned by the command and freed
// by Release. The bind group is borrowed from whoever built it and must outlive the frame the command
// is drawn in.
type DrawCommand struct {
	PipelineName string
	VertexBuffer *wgpu.Buffer
	IndexBuffer  *wgpu.Buffer
	IndexFormat  wgpu.IndexFormat
	IndexCount   uint32
	BindGroup    *wgpu.BindGroup
}

// NewDrawCommand uploads vertices and indices into new device buffers and returns the command that draws them.
// The upload happens once, synchronously. The bind group is not checked against any pipeline layout.
//
// Parameters:
//   - device: the device used to create the buffers
//   - pipelineName: the key of the pipeline in the renderer's pipeline cache
//   - vertices: the vertex data, laid out as the pipeline's vertex buffer layout expects
//   - indices: the index data; uint16 indices use wgpu.IndexFormatUint16, uint32 indices wgpu.IndexFormatUint32
//   - bindGroup: the bind group bound at group 0, or nil if the pipeline declares none
//
// Returns:
//   - DrawCommand: the command, owning both buffers
//   - error: ErrNoPipeline, ErrEmptyGeometry, or the wrapped device error
func NewDrawCommand[V any, I Index](device Device, pipelineName string, vertices []V, indices []I, bindGroup *wgpu.BindGroup) (DrawCommand, error) {
	if pipelineName == "" {
		return DrawCommand{}, ErrNoPipeline
	}
	if len(vertices) == 0 || len(indices) == 0 {
		return DrawCommand{}, fmt.Errorf("%w: %d vertices, %d indices for pipeline %s", ErrEmptyGeometry, len(vertices), len(indices), pipelineName)
	}

	vertexBuffer, err := device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    pipelineName + " Vertex Buffer",
		Contents: common.SliceToBytes(vertices),
		Usage:    wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return DrawCommand{}, fmt.Errorf("failed to create vertex buffer for %s: %w", pipelineName, err)
	}

	indexBuffer, err := device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    pipelineName + " Index Buffer",
		Contents: alignedIndexBytes(indices),
		Usage:    wgpu.BufferUsageIndex | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		if vertexBuffer != nil {
			vertexBuffer.Release()
		}
		return DrawCommand{}, fmt.Errorf("failed to create index buffer for %s: %w", pipelineName, err)
	}

	return DrawCommand{
		PipelineName: pipelineName,
		VertexBuffer: vertexBuffer,
		IndexBuffer:  indexBuffer,
		IndexFormat:  IndexFormatOf[I](),
		IndexCount:   uint32(len(indices)),
		BindGroup:    bindGroup,
	}, nil
}

// IndexFormatOf returns the wgpu index format matching the element size of I.
func IndexFormatOf[I Index]() wgpu.IndexFormat {
	var zero I
	if uint64(^zero) == math.MaxUint16 {
		return wgpu.IndexFormatUint16
	}
	return wgpu.IndexFormatUint32
}

// Release frees the command's vertex and index buffers. The bind group is left to its owner.
func (d *DrawCommand) Release() {
	if d.VertexBuffer != nil {
		d.VertexBuffer.Release()
		d.VertexBuffer = nil
	}
	if d.IndexBuffer != nil {
		d.IndexBuffer.Release()
		d.IndexBuffer = nil
	}
}

// alignedIndexBytes returns the index data as bytes padded to a multiple of four, the copy alignment
// required for buffers created with initial contents.
func alignedIndexBytes[I Index](indices []I) []byte {
	raw := common.SliceToBytes(indices)
	if pad := len(raw) % 4; pad != 0 {
		padded := make([]byte, len(raw)+4-pad)
		copy(padded, raw)
		return padded
	}
	return raw
}
