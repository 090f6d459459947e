package engine

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-draw/engine/profiler"
	"github.com/Carmen-Shannon/oxy-draw/engine/renderer"
	"github.com/Carmen-Shannon/oxy-draw/engine/window"
	log "github.com/sirupsen/logrus"
)

// FrameRenderer is the part of renderer.Renderer the event loop drives.
type FrameRenderer interface {
	QueueLen() int
	RenderFrame(state *renderer.FrameState) error
	Resize(width, height int)
}

var _ FrameRenderer = renderer.Renderer(nil)

// Producer fills the draw queue for the next frame. It runs once per event loop iteration, after pending
// window events were handled, unless the previous frame's commands are still waiting to be rendered.
// Returning an error stops the loop.
type Producer func() error

// engine implements the Engine interface.
// It connects the window's event loop to the producer and the renderer on a single goroutine.
type engine struct {
	window   window.Window
	renderer FrameRenderer
	producer Producer
	state    *renderer.FrameState
	logger   log.FieldLogger

	profiler         *profiler.Profiler
	profilingEnabled bool

	mu       sync.Mutex
	err      error
	quitting bool
}

// Engine is the main entry point for the engine.
// It orchestrates the event loop: every iteration runs the producer and requests a redraw when the draw
// queue is not empty, and every redraw renders one frame.
//
// A frame dropped because no swap chain image was available is logged and retried on the next redraw.
// Any other frame error, a producer error or a panic stops the loop and is returned by Run.
type Engine interface {
	// Window returns the underlying window.
	//
	// Returns:
	//   - window.Window: the window instance
	Window() window.Window

	// FrameState returns the state carried from one frame to the next.
	//
	// Returns:
	//   - *renderer.FrameState: the frame state
	FrameState() *renderer.FrameState

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// SetProducer registers the function that fills the draw queue each loop iteration.
	//
	// Parameters:
	//   - producer: the producer, or nil to render only what is already queued
	SetProducer(producer Producer)

	// Run starts the event loop and blocks until the window closes or the loop stops on an error.
	//
	// Returns:
	//   - error: the error that stopped the loop, or nil if the window was closed
	Run() error

	// Quit stops the event loop after the current iteration.
	// Safe to call multiple times; subsequent calls are no-ops.
	Quit()
}

// NewEngine creates a new Engine instance with the provided options.
// A window and a renderer are required.
//
// Parameters:
//   - options: functional options for engine configuration (window, renderer, producer, profiling)
//
// Returns:
//   - Engine: the newly created engine
//   - error: an error if the window or the renderer is missing
func NewEngine(options ...EngineBuilderOption) (Engine, error) {
	e := &engine{
		state:  renderer.NewFrameState(),
		logger: log.StandardLogger(),
	}

	for _, opt := range options {
		opt(e)
	}

	if e.window == nil {
		return nil, errors.New("engine needs a window")
	}
	if e.renderer == nil {
		return nil, errors.New("engine needs a renderer")
	}
	e.profiler = profiler.NewProfiler(e.logger)

	e.window.SetUpdateCallback(e.update)
	e.window.SetRedrawCallback(e.redraw)
	e.window.SetResizeCallback(func(width, height int) {
		e.renderer.Resize(width, height)
	})

	return e, nil
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) FrameState() *renderer.FrameState {
	return e.state
}

func (e *engine) Run() error {
	e.window.ProcessMessages()
	closeErr := e.window.Close()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	if closeErr != nil {
		return fmt.Errorf("close window: %w", closeErr)
	}
	return nil
}

func (e *engine) Quit() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.quitLocked()
}

func (e *engine) quitLocked() {
	if e.quitting {
		return
	}
	e.quitting = true
	e.window.RequestClose()
}

// stop records the error that ends the loop and requests the window to close. Only the first error is kept.
func (e *engine) stop(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err == nil {
		e.err = err
	}
	e.quitLocked()
}

func (e *engine) stopped() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.quitting
}

// update runs once per loop iteration after the window handled its events.
func (e *engine) update() {
	if e.stopped() {
		return
	}
	defer e.recoverPanic("update")

	// Commands of a dropped frame are still queued; producing again would stack a second copy on them.
	if e.producer != nil && e.renderer.QueueLen() == 0 {
		if err := e.producer(); err != nil {
			e.logger.WithError(err).Error("producer failed")
			e.stop(fmt.Errorf("produce frame: %w", err))
			return
		}
	}
	if e.renderer.QueueLen() > 0 {
		e.window.RequestRedraw()
	}
}

// redraw renders one frame.
func (e *engine) redraw() {
	if e.stopped() {
		return
	}
	defer e.recoverPanic("redraw")

	err := e.renderer.RenderFrame(e.state)
	switch {
	case err == nil:
		if e.profilingEnabled {
			e.profiler.FrameSubmitted()
		}
	case errors.Is(err, renderer.ErrFrameTimeout):
		if e.profilingEnabled {
			e.profiler.FrameDropped()
		}
	default:
		e.stop(fmt.Errorf("render frame %d: %w", e.state.Frame, err))
	}
}

// recoverPanic turns a panic in a loop callback into a stop error instead of crashing the process.
func (e *engine) recoverPanic(where string) {
	if r := recover(); r != nil {
		e.logger.WithField("callback", where).Errorf("recovered from panic: %v", r)
		e.stop(fmt.Errorf("panic in %s: %v", where, r))
	}
}

// EnableProfiler enables performance profiling output to the log.
func (e *engine) EnableProfiler() {
	e.profilingEnabled = true
}

// DisableProfiler disables performance profiling output.
func (e *engine) DisableProfiler() {
	e.profilingEnabled = false
}

func (e *engine) SetProducer(producer Producer) {
	e.producer = producer
}
