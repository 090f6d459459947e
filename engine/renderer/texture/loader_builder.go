package texture

import "github.com/Carmen-Shannon/oxy-draw/common"

// LoaderBuilderOption is a functional option for configuring a Loader.
type LoaderBuilderOption func(*loader)

// WithWorkers sets the number of decode workers. Values below one are ignored.
//
// Parameters:
//   - n: the maximum number of files decoded at once
//
// Returns:
//   - LoaderBuilderOption: a function that applies the worker count to a loader
func WithWorkers(n int) LoaderBuilderOption {
	return func(l *loader) {
		if n > 0 {
			l.workers = n
		}
	}
}

// WithDecoder replaces the image decoder, which defaults to common.DecodeImageFile.
//
// Parameters:
//   - decode: turns a path into RGBA staging data
//
// Returns:
//   - LoaderBuilderOption: a function that applies the decoder to a loader
func WithDecoder(decode func(path string) (common.TextureStagingData, error)) LoaderBuilderOption {
	return func(l *loader) {
		if decode != nil {
			l.decode = decode
		}
	}
}
