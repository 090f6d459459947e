package renderer

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-draw/common"
)

// FramePhase is the position of a frame in the render lifecycle.
type FramePhase int

const (
	// PhaseIdle means no frame is being rendered. RenderFrame only starts from here.
	PhaseIdle FramePhase = iota

	// PhaseAcquired means a swap chain image is held.
	PhaseAcquired

	// PhasePassOpen means the render pass is recording draw calls.
	PhasePassOpen

	// PhaseClosed means the render pass has ended and no more draws can be recorded.
	PhaseClosed

	// PhaseSubmitted means the command buffer went to the GPU queue and the image was presented.
	PhaseSubmitted
)

func (p FramePhase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAcquired:
		return "acquired"
	case PhasePassOpen:
		return "pass-open"
	case PhaseClosed:
		return "pass-closed"
	case PhaseSubmitted:
		return "submitted"
	default:
		return fmt.Sprintf("FramePhase(%d)", int(p))
	}
}

// FrameState is the per-frame state that survives from one frame to the next. It is owned by the
// caller and passed to every RenderFrame call.
type FrameState struct {
	// Phase is the lifecycle position of the frame currently being rendered.
	Phase FramePhase

	// Frame counts the frames submitted so far.
	Frame uint64

	// Colors are the two clear colors frames alternate between, in sRGB.
	Colors [2]common.Color

	toggle bool
}

// NewFrameState returns an idle FrameState whose first frame clears to common.MildBlack and whose
// second frame clears to common.NearBlack.
//
// Returns:
//   - *FrameState: the initial frame state
func NewFrameState() *FrameState {
	return &FrameState{
		Colors: [2]common.Color{common.MildBlack, common.NearBlack},
	}
}

// ClearColor returns the color the next frame clears to.
func (s *FrameState) ClearColor() common.Color {
	if s.toggle {
		return s.Colors[1]
	}
	return s.Colors[0]
}

// advance moves the state on to the next frame after a successful submission.
func (s *FrameState) advance() {
	s.toggle = !s.toggle
	s.Frame++
	s.Phase = PhaseIdle
}
