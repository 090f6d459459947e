package engine

import (
	"github.com/Carmen-Shannon/oxy-draw/engine/renderer"
	"github.com/Carmen-Shannon/oxy-draw/engine/window"
	log "github.com/sirupsen/logrus"
)

// EngineBuilderOption is a functional option for configuring an Engine.
// Use the With* functions to create options that are applied directly to the engine instance.
type EngineBuilderOption func(*engine)

// WithProfiling enables or disables performance profiling output.
//
// Parameters:
//   - enabled: if true, enables performance profiling
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.profilingEnabled = enabled
	}
}

// WithWindow sets the window whose event loop drives the engine.
//
// Parameters:
//   - w: an open Window instance
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWindow(w window.Window) EngineBuilderOption {
	return func(e *engine) {
		e.window = w
	}
}

// WithRenderer sets the renderer frames are rendered with, usually a renderer.Renderer.
//
// Parameters:
//   - r: the renderer
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRenderer(r FrameRenderer) EngineBuilderOption {
	return func(e *engine) {
		e.renderer = r
	}
}

// WithProducer sets the function that fills the draw queue each loop iteration.
//
// Parameters:
//   - producer: the producer
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProducer(producer Producer) EngineBuilderOption {
	return func(e *engine) {
		e.producer = producer
	}
}

// WithFrameState replaces the initial frame state, for example to change the alternating clear colors.
//
// Parameters:
//   - state: the frame state; nil keeps the default
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithFrameState(state *renderer.FrameState) EngineBuilderOption {
	return func(e *engine) {
		if state != nil {
			e.state = state
		}
	}
}

// WithLogger sets the logger used for loop errors and profiler output.
//
// Parameters:
//   - logger: the logger
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithLogger(logger log.FieldLogger) EngineBuilderOption {
	return func(e *engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}
