package draw_command

import (
	"errors"
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	qt "github.com/frankban/quicktest"
)

type vertex struct {
	Position [2]float32
}

type fakeDevice struct {
	uploads []*wgpu.BufferInitDescriptor
	failAt  int
}

var errOutOfMemory = errors.New("out of memory")

func (d *fakeDevice) CreateBufferInit(desc *wgpu.BufferInitDescriptor) (*wgpu.Buffer, error) {
	d.uploads = append(d.uploads, desc)
	if len(d.uploads) == d.failAt {
		return nil, errOutOfMemory
	}
	return nil, nil
}

var pentagon = []vertex{
	{[2]float32{-0.0868241, 0.49240386}},
	{[2]float32{-0.49513406, 0.06958647}},
	{[2]float32{-0.21918549, -0.44939706}},
	{[2]float32{0.35966998, -0.3473291}},
	{[2]float32{0.44147372, 0.2347359}},
}

func TestNewDrawCommandUint16(t *testing.T) {
	c := qt.New(t)
	device := &fakeDevice{}
	indices := []uint16{0, 1, 4, 1, 2, 4, 2, 3, 4}

	cmd, err := NewDrawCommand(device, "example", pentagon, indices, nil)
	c.Assert(err, qt.IsNil)
	c.Assert(cmd.PipelineName, qt.Equals, "example")
	c.Assert(cmd.IndexCount, qt.Equals, uint32(9))
	c.Assert(cmd.IndexFormat, qt.Equals, wgpu.IndexFormatUint16)
	c.Assert(cmd.BindGroup, qt.IsNil)

	c.Assert(device.uploads, qt.HasLen, 2)
	c.Assert(device.uploads[0].Contents, qt.HasLen, 5*8)
	c.Assert(device.uploads[0].Usage, qt.Equals, wgpu.BufferUsageVertex|wgpu.BufferUsageCopyDst)
	// 18 bytes of indices padded to the 4 byte copy alignment.
	c.Assert(device.uploads[1].Contents, qt.HasLen, 20)
	c.Assert(device.uploads[1].Contents[:4], qt.DeepEquals, []byte{0, 0, 1, 0})
	c.Assert(device.uploads[1].Usage, qt.Equals, wgpu.BufferUsageIndex|wgpu.BufferUsageCopyDst)

	cmd.Release()
	cmd.Release()
}

func TestNewDrawCommandUint32(t *testing.T) {
	c := qt.New(t)
	device := &fakeDevice{}

	cmd, err := NewDrawCommand(device, "wide", pentagon, []uint32{0, 1, 2}, nil)
	c.Assert(err, qt.IsNil)
	c.Assert(cmd.IndexFormat, qt.Equals, wgpu.IndexFormatUint32)
	c.Assert(cmd.IndexCount, qt.Equals, uint32(3))
	c.Assert(device.uploads[1].Contents, qt.HasLen, 12)
}

func TestNewDrawCommandRejectsEmptyInput(t *testing.T) {
	c := qt.New(t)
	device := &fakeDevice{}

	_, err := NewDrawCommand(device, "", pentagon, []uint16{0}, nil)
	c.Assert(err, qt.ErrorIs, ErrNoPipeline)

	_, err = NewDrawCommand(device, "p", []vertex{}, []uint16{0}, nil)
	c.Assert(err, qt.ErrorIs, ErrEmptyGeometry)

	_, err = NewDrawCommand[vertex, uint16](device, "p", pentagon, nil, nil)
	c.Assert(err, qt.ErrorIs, ErrEmptyGeometry)

	c.Assert(device.uploads, qt.HasLen, 0)
}

func TestNewDrawCommandUploadFailure(t *testing.T) {
	c := qt.New(t)
	device := &fakeDevice{failAt: 2}

	cmd, err := NewDrawCommand(device, "p", pentagon, []uint16{0, 1, 2}, nil)
	c.Assert(err, qt.ErrorIs, errOutOfMemory)
	c.Assert(err, qt.ErrorMatches, "failed to create index buffer for p: out of memory")
	c.Assert(cmd, qt.Equals, DrawCommand{})
}

type quadIndex uint16

func TestIndexFormatOf(t *testing.T) {
	c := qt.New(t)
	c.Assert(IndexFormatOf[uint16](), qt.Equals, wgpu.IndexFormatUint16)
	c.Assert(IndexFormatOf[uint32](), qt.Equals, wgpu.IndexFormatUint32)
	c.Assert(IndexFormatOf[quadIndex](), qt.Equals, wgpu.IndexFormatUint16)
}
