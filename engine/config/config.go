// Package config loads runtime settings from .env files and the process environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-draw/common"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// Environment keys read by Load.
const (
	KeyLogLevel             = "OXY_LOG_LEVEL"
	KeyLogJSON              = "OXY_LOG_JSON"
	KeyPresentMode          = "OXY_PRESENT_MODE"
	KeyForceFallbackAdapter = "OXY_FORCE_FALLBACK_ADAPTER"
	KeyWindowWidth          = "OXY_WINDOW_WIDTH"
	KeyWindowHeight         = "OXY_WINDOW_HEIGHT"
	KeyWindowTitle          = "OXY_WINDOW_TITLE"
	KeyProfile              = "OXY_PROFILE"
	KeyProfiler             = "OXY_PROFILER"
	KeyClearColorA          = "OXY_CLEAR_COLOR_A"
	KeyClearColorB          = "OXY_CLEAR_COLOR_B"
	KeyTextureWorkers       = "OXY_TEXTURE_WORKERS"
	KeyShaderValidation     = "OXY_SHADER_VALIDATION"
	KeySamplerCacheSize     = "OXY_SAMPLER_CACHE_SIZE"
)

// Present modes accepted for KeyPresentMode.
const (
	PresentModeVSync    = "vsync"
	PresentModeUncapped = "uncapped"
)

// Profile modes accepted for KeyProfile.
const (
	ProfileNone   = ""
	ProfileCPU    = "cpu"
	ProfileMemory = "mem"
)

// Config holds every runtime setting of the application.
type Config struct {
	LogLevel             log.Level
	LogJSON              bool
	PresentMode          string
	ForceFallbackAdapter bool
	WindowWidth          int
	WindowHeight         int
	WindowTitle          string
	Profile              string
	Profiler             bool
	ClearColors          [2]common.Color
	TextureWorkers       int
	ShaderValidation     bool
	SamplerCacheSize     int
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		LogLevel:         log.InfoLevel,
		PresentMode:      PresentModeVSync,
		WindowWidth:      1280,
		WindowHeight:     720,
		WindowTitle:      "oxy-draw",
		ClearColors:      [2]common.Color{common.MildBlack, common.NearBlack},
		TextureWorkers:   runtime.NumCPU(),
		ShaderValidation: true,
		SamplerCacheSize: 16,
	}
}

// Load reads settings from the given .env files, then from the process environment, which takes precedence.
// Files that do not exist are skipped. With no files, ".env" in the working directory is tried.
//
// Parameters:
//   - files: .env files, later files overriding earlier ones
//
// Returns:
//   - Config: the defaults overlaid with every configured value
//   - error: an error naming the key of the first invalid value, or a file read error
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	values := make(map[string]string)
	for _, f := range files {
		fileValues, err := godotenv.Read(f)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return Config{}, fmt.Errorf("reading %s: %w", f, err)
		}
		for k, v := range fileValues {
			values[k] = v
		}
	}
	return parse(func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := values[key]
		return v, ok
	})
}

func parse(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	p := parser{lookup: lookup}

	p.str(KeyLogLevel, func(v string) error {
		lvl, err := log.ParseLevel(v)
		cfg.LogLevel = lvl
		return err
	})
	p.boolean(KeyLogJSON, &cfg.LogJSON)
	p.str(KeyPresentMode, func(v string) error {
		return oneOf(&cfg.PresentMode, strings.ToLower(v), PresentModeVSync, PresentModeUncapped)
	})
	p.boolean(KeyForceFallbackAdapter, &cfg.ForceFallbackAdapter)
	p.positive(KeyWindowWidth, &cfg.WindowWidth)
	p.positive(KeyWindowHeight, &cfg.WindowHeight)
	p.str(KeyWindowTitle, func(v string) error {
		cfg.WindowTitle = v
		return nil
	})
	p.str(KeyProfile, func(v string) error {
		return oneOf(&cfg.Profile, strings.ToLower(v), ProfileNone, ProfileCPU, ProfileMemory)
	})
	p.boolean(KeyProfiler, &cfg.Profiler)
	p.color(KeyClearColorA, &cfg.ClearColors[0])
	p.color(KeyClearColorB, &cfg.ClearColors[1])
	p.positive(KeyTextureWorkers, &cfg.TextureWorkers)
	p.boolean(KeyShaderValidation, &cfg.ShaderValidation)
	p.positive(KeySamplerCacheSize, &cfg.SamplerCacheSize)

	if p.err != nil {
		return Config{}, p.err
	}
	return cfg, nil
}

// ApplyLogging sets the level and formatter of logger from the configuration.
//
// Parameters:
//   - logger: the logger to configure, usually logrus.StandardLogger()
func (c Config) ApplyLogging(logger *log.Logger) {
	logger.SetLevel(c.LogLevel)
	if c.LogJSON {
		logger.SetFormatter(&log.JSONFormatter{})
	} else {
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}

// Fields returns the configuration as structured log fields.
func (c Config) Fields() log.Fields {
	return log.Fields{
		"log_level":       c.LogLevel.String(),
		"present_mode":    c.PresentMode,
		"fallback":        c.ForceFallbackAdapter,
		"window":          fmt.Sprintf("%dx%d", c.WindowWidth, c.WindowHeight),
		"profile":         c.Profile,
		"texture_workers": c.TextureWorkers,
		"validation":      c.ShaderValidation,
	}
}

// parser applies lookups in order and keeps the first error.
type parser struct {
	lookup func(string) (string, bool)
	err    error
}

func (p *parser) str(key string, set func(string) error) {
	if p.err != nil {
		return
	}
	v, ok := p.lookup(key)
	if !ok {
		return
	}
	if err := set(strings.TrimSpace(v)); err != nil {
		p.err = fmt.Errorf("invalid %s=%q: %w", key, v, err)
	}
}

func (p *parser) boolean(key string, dst *bool) {
	p.str(key, func(v string) error {
		b, err := strconv.ParseBool(v)
		*dst = b
		return err
	})
}

func (p *parser) positive(key string, dst *int) {
	p.str(key, func(v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		if n <= 0 {
			return errors.New("must be positive")
		}
		*dst = n
		return nil
	})
}

func (p *parser) color(key string, dst *common.Color) {
	p.str(key, func(v string) error {
		col, err := common.ParseHexColor(v)
		*dst = col
		return err
	})
}

func oneOf(dst *string, v string, allowed ...string) error {
	for _, a := range allowed {
		if v == a {
			*dst = v
			return nil
		}
	}
	return fmt.Errorf("must be one of %q", allowed)
}
