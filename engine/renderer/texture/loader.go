package texture

import (
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-draw/common"
)

// loader is the implementation of the Loader interface.
type loader struct {
	mu      sync.Mutex
	pool    worker.DynamicWorkerPool
	workers int
	decode  func(path string) (common.TextureStagingData, error)
	closed  bool
}

// Loader decodes image files into staging data ready for upload. Batches are decoded in parallel on a
// worker pool; uploading stays on the caller's goroutine since it needs the device.
type Loader interface {
	// Load decodes a single image file.
	//
	// Parameters:
	//   - path: the image file to decode
	//
	// Returns:
	//   - common.TextureStagingData: the decoded RGBA pixels
	//   - error: the wrapped decode error
	Load(path string) (common.TextureStagingData, error)

	// LoadAll decodes a batch of image files in parallel and waits for all of them.
	//
	// Parameters:
	//   - paths: image files keyed by the caller's texture key
	//
	// Returns:
	//   - map[string]common.TextureStagingData: decoded pixels for every key that succeeded
	//   - error: every decode failure joined together, or nil
	LoadAll(paths map[string]string) (map[string]common.TextureStagingData, error)

	// Close stops the worker pool. Further batches fail.
	Close()
}

var _ Loader = &loader{}

// ErrLoaderClosed is returned by LoadAll after Close.
var ErrLoaderClosed = errors.New("texture loader is closed")

// NewLoader creates a Loader whose worker pool has one worker per CPU unless configured otherwise.
//
// Parameters:
//   - options: variadic list of LoaderBuilderOption functions
//
// Returns:
//   - Loader: the loader, with its worker pool started
func NewLoader(options ...LoaderBuilderOption) Loader {
	l := &loader{
		workers: runtime.NumCPU(),
		decode:  common.DecodeImageFile,
	}
	for _, opt := range options {
		opt(l)
	}
	l.pool = worker.NewDynamicWorkerPool(l.workers, 64, 1*time.Second)
	return l
}

func (l *loader) Load(path string) (common.TextureStagingData, error) {
	data, err := l.decode(path)
	if err != nil {
		return common.TextureStagingData{}, fmt.Errorf("loading texture %s: %w", path, err)
	}
	return data, nil
}

func (l *loader) LoadAll(paths map[string]string) (map[string]common.TextureStagingData, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, ErrLoaderClosed
	}

	keys := make([]string, 0, len(paths))
	for key := range paths {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	results := make([]common.TextureStagingData, len(keys))
	errs := make([]error, len(keys))

	var wg sync.WaitGroup
	for i, key := range keys {
		wg.Add(1)
		l.pool.SubmitTask(worker.Task{
			ID:      i,
			Payload: paths[key],
			Do: func() (any, error) {
				defer wg.Done()
				results[i], errs[i] = l.Load(paths[key])
				return nil, errs[i]
			},
		})
	}
	wg.Wait()

	loaded := make(map[string]common.TextureStagingData, len(keys))
	for i, key := range keys {
		if errs[i] == nil {
			loaded[key] = results[i]
		}
	}
	return loaded, errors.Join(errs...)
}

func (l *loader) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	l.pool.Stop()
}
