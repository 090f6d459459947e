package renderer

import "errors"

var (
	// ErrFrameTimeout is wrapped by RenderFrame when no swap chain image could be acquired. The frame is
	// dropped and the draw queue is left as it was, so the caller can simply try again on the next event.
	ErrFrameTimeout = errors.New("timed out acquiring the next frame")

	// ErrFrameNotPresented is returned by RenderFrame when the backend still holds the image of a previous
	// frame. It is a broken invariant rather than a timeout, so it is not wrapped in ErrFrameTimeout.
	ErrFrameNotPresented = errors.New("previous frame surface not yet presented")

	// ErrPipelineNotFound is wrapped by RenderFrame when a queued draw command names a pipeline that is not
	// in the pipeline cache. The frame is abandoned without submitting anything.
	ErrPipelineNotFound = errors.New("pipeline not found")

	// ErrFrameInProgress is returned by RenderFrame when the FrameState passed in is not idle.
	ErrFrameInProgress = errors.New("frame already in progress")

	// ErrRendererReleased is returned by every operation after Release.
	ErrRendererReleased = errors.New("renderer has been released")
)
