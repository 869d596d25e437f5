package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type contextKey string

const configKey contextKey = "config"

// Config holds all application configuration
type Config struct {
	// Core settings
	DatabasePath string `yaml:"database_path"`
	LogFormat    string `yaml:"log_format"`
	LogFile      string `yaml:"log_file"`

	// FFmpeg settings
	FFmpeg FFmpegConfig `yaml:"ffmpeg"`

	// Loop search settings
	Search SearchConfig `yaml:"search"`

	// Loop encoding settings
	Render RenderConfig `yaml:"render"`

	// Stabilization settings
	Stabilize StabilizeConfig `yaml:"stabilize"`

	// Workspace settings
	Workspace WorkspaceConfig `yaml:"workspace"`
}

type FFmpegConfig struct {
	BinaryPath  string `yaml:"binary_path"`
	ProbePath   string `yaml:"probe_path"`
	Threads     int    `yaml:"threads"`
	DecodeWidth int    `yaml:"decode_width"`
}

type SearchConfig struct {
	HashSize              int     `yaml:"hash_size"`
	SampleStride          int     `yaml:"sample_stride"`
	MinLoopFrames         int     `yaml:"min_loop_frames"`
	MaxLoopFrames         int     `yaml:"max_loop_frames"`
	SimilarityRatio       float64 `yaml:"similarity_ratio"`
	MinMidFrameSimilarity float64 `yaml:"min_mid_frame_similarity"`
	MaxSearchSeconds      float64 `yaml:"max_search_seconds"`
	MaxCandidates         int     `yaml:"max_candidates"`
}

type RenderConfig struct {
	Sound       bool   `yaml:"sound"`
	Width       int    `yaml:"width"`
	GIFFPS      int    `yaml:"gif_fps"`
	WebMMinRate string `yaml:"webm_min_rate"`
	WebMBitrate string `yaml:"webm_bitrate"`
	WebMMaxRate string `yaml:"webm_max_rate"`
	MP4Bitrate  string `yaml:"mp4_bitrate"`
}

type StabilizeConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Threads   int    `yaml:"threads"`
	StepSize  int    `yaml:"step_size"`
	Shakiness int    `yaml:"shakiness"`
	Accuracy  int    `yaml:"accuracy"`
	Zoom      int    `yaml:"zoom"`
	Smoothing int    `yaml:"smoothing"`
	Unsharp   string `yaml:"unsharp"`
	Preset    string `yaml:"preset"`
	Tune      string `yaml:"tune"`
	CRF       int    `yaml:"crf"`
}

type WorkspaceConfig struct {
	RetainTempFiles bool `yaml:"retain_temp_files"`
	DumpFrames      bool `yaml:"dump_frames"`
	ThumbnailSize   uint `yaml:"thumbnail_size"`
}

// Load reads configuration from file or returns defaults
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = findConfigFile()
	}

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// Save writes configuration to file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Validate checks the settings the pipeline cannot run without.
func (c *Config) Validate() error {
	var errs []error

	if hs := c.Search.HashSize; hs <= 0 || hs&(hs-1) != 0 {
		errs = append(errs, fmt.Errorf("search.hash_size must be a positive power of two, got %d", hs))
	}
	if c.Search.SampleStride <= 0 {
		errs = append(errs, fmt.Errorf("search.sample_stride must be positive"))
	}
	if c.Search.MinLoopFrames < 0 || c.Search.MaxLoopFrames < c.Search.MinLoopFrames {
		errs = append(errs, fmt.Errorf("search loop frame window [%d, %d] is invalid",
			c.Search.MinLoopFrames, c.Search.MaxLoopFrames))
	}
	if c.Search.SimilarityRatio <= 0 || c.Search.SimilarityRatio > 1 {
		errs = append(errs, fmt.Errorf("search.similarity_ratio must be in (0, 1]"))
	}
	if c.Search.MaxSearchSeconds <= 0 {
		errs = append(errs, fmt.Errorf("search.max_search_seconds must be positive"))
	}
	if c.Search.MaxCandidates <= 0 {
		errs = append(errs, fmt.Errorf("search.max_candidates must be positive"))
	}
	if c.Render.Width <= 0 {
		errs = append(errs, fmt.Errorf("render.width must be positive"))
	}
	if c.Render.GIFFPS <= 0 {
		errs = append(errs, fmt.Errorf("render.gif_fps must be positive"))
	}
	switch c.LogFormat {
	case "", "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format must be console or json, got %q", c.LogFormat))
	}

	return errors.Join(errs...)
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		DatabasePath: filepath.Join(os.Getenv("HOME"), ".loopifi", "jobs.db"),
		LogFormat:    "console",
		FFmpeg: FFmpegConfig{
			BinaryPath:  "ffmpeg",
			ProbePath:   "ffprobe",
			Threads:     0,
			DecodeWidth: 320,
		},
		Search: SearchConfig{
			HashSize:              16,
			SampleStride:          5,
			MinLoopFrames:         15,
			MaxLoopFrames:         300,
			SimilarityRatio:       0.75,
			MinMidFrameSimilarity: 4,
			MaxSearchSeconds:      600,
			MaxCandidates:         5,
		},
		Render: RenderConfig{
			Sound:       true,
			Width:       500,
			GIFFPS:      25,
			WebMMinRate: "1700k",
			WebMBitrate: "1800K",
			WebMMaxRate: "2000K",
			MP4Bitrate:  "1800K",
		},
		Stabilize: StabilizeConfig{
			Enabled:   true,
			Threads:   8,
			StepSize:  6,
			Shakiness: 4,
			Accuracy:  5,
			Zoom:      1,
			Smoothing: 30,
			Unsharp:   "5:5:0.8:3:3:0.4",
			Preset:    "fast",
			Tune:      "film",
			CRF:       17,
		},
		Workspace: WorkspaceConfig{
			RetainTempFiles: false,
			DumpFrames:      false,
			ThumbnailSize:   160,
		},
	}
}

func findConfigFile() string {
	candidates := []string{
		"./config.yaml",
		"./config.yml",
		filepath.Join(os.Getenv("HOME"), ".loopifi", "config.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// WithConfig stores config in context
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// FromContext retrieves config from context
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(configKey).(*Config); ok {
		return cfg
	}
	return Default()
}
