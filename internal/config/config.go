package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/codenamed22/DupliGone/internal/faces"
	"github.com/codenamed22/DupliGone/internal/fingerprint"
	"github.com/codenamed22/DupliGone/internal/pipeline"
	"github.com/codenamed22/DupliGone/internal/quality"
	"github.com/codenamed22/DupliGone/internal/tuner"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Analysis AnalysisConfig `yaml:"analysis"`
	Tuner    TunerConfig    `yaml:"tuner"`
	Quality  QualityConfig  `yaml:"quality"`
	Faces    FacesConfig    `yaml:"faces"`
	Web      WebConfig      `yaml:"web"`
}

type AnalysisConfig struct {
	HashSize          int           `yaml:"hash_size"`
	MinNeighbors      int           `yaml:"min_neighbors"`
	Concurrency       int           `yaml:"concurrency"` // 0 means runtime.NumCPU()
	LoadRetries       int           `yaml:"load_retries"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	AbortOnUnreadable bool          `yaml:"abort_on_unreadable"`
	MaxBatchSize      int           `yaml:"max_batch_size"` // images per batch, HTTP and CLI alike
}

type TunerConfig struct {
	Strictness     float64 `yaml:"strictness"`
	Floor          float64 `yaml:"floor"`
	MaxEps         float64 `yaml:"max_eps"`
	Percentile     float64 `yaml:"percentile"`
	FlatTolerance  float64 `yaml:"flat_tolerance"`
	MinPoints      int     `yaml:"min_points"`
	Knee           string  `yaml:"knee"`            // "kneedle" or "maxgap"
	KneeProminence float64 `yaml:"knee_prominence"` // min prominence (kneedle) or min gap (maxgap)
	KneeStep       float64 `yaml:"knee_step"`       // dominant jump share of the curve range (kneedle); 0 disables
}

type QualityConfig struct {
	Weights         quality.Weights `yaml:"weights"`
	SharpnessRef    float64         `yaml:"sharpness_ref"`
	ContrastRef     float64         `yaml:"contrast_ref"`
	IdealBrightness float64         `yaml:"ideal_brightness"`
	MaxDimension    int             `yaml:"max_dimension"`
}

type FacesConfig struct {
	Cascade      string  `yaml:"cascade"` // pigo cascade or Haar .xml; empty disables detection
	ScaleFactor  float64 `yaml:"scale_factor"`
	MinSize      int     `yaml:"min_size"`
	MaxSize      int     `yaml:"max_size"`
	MinNeighbors int     `yaml:"min_neighbors"` // Haar only
	ShiftFactor  float64 `yaml:"shift_factor"`  // pigo only
	MinQuality   float64 `yaml:"min_quality"`   // pigo only
}

type WebConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	MaxUploadMB    int64    `yaml:"max_upload_mb"`
	AllowedOrigins []string `yaml:"allowed_origins"` // CORS origins besides localhost
}

const (
	KneeKneedle = "kneedle"
	KneeMaxGap  = "maxgap"
)

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a float.
// Returns the default value if the env var is unset, empty, or invalid.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// splitList splits a comma-separated value, dropping empty entries.
func splitList(s string) []string {
	var out []string
	for item := range strings.SplitSeq(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Default returns the embedded defaults.
func Default() *Config {
	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}
	return &cfg
}

// Load builds the configuration from the embedded defaults, the YAML file named
// by DUPLIGONE_CONFIG (if set) and individual environment variables, in that order.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("DUPLIGONE_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	cfg.Analysis.HashSize = envInt("DUPLIGONE_HASH_SIZE", cfg.Analysis.HashSize)
	cfg.Analysis.MinNeighbors = envInt("DUPLIGONE_MIN_NEIGHBORS", cfg.Analysis.MinNeighbors)
	cfg.Analysis.Concurrency = envInt("DUPLIGONE_CONCURRENCY", cfg.Analysis.Concurrency)
	cfg.Analysis.MaxBatchSize = envInt("DUPLIGONE_MAX_BATCH_SIZE", cfg.Analysis.MaxBatchSize)
	cfg.Tuner.Strictness = envFloat("DUPLIGONE_STRICTNESS", cfg.Tuner.Strictness)
	cfg.Tuner.Floor = envFloat("DUPLIGONE_EPS_FLOOR", cfg.Tuner.Floor)
	cfg.Tuner.MaxEps = envFloat("DUPLIGONE_MAX_EPS", cfg.Tuner.MaxEps)
	cfg.Tuner.Knee = envString("DUPLIGONE_KNEE", cfg.Tuner.Knee)
	cfg.Faces.Cascade = envString("DUPLIGONE_FACE_CASCADE", cfg.Faces.Cascade)
	cfg.Web.Host = envString("WEB_HOST", cfg.Web.Host)
	cfg.Web.Port = envInt("WEB_PORT", cfg.Web.Port)
	if env := os.Getenv("WEB_ALLOWED_ORIGINS"); env != "" {
		cfg.Web.AllowedOrigins = splitList(env)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every out-of-range setting.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(fingerprint.ValidHashSize(c.Analysis.HashSize), "analysis.hash_size must be a power of two between 4 and 16, got %d", c.Analysis.HashSize)
	check(c.Analysis.MinNeighbors >= 1, "analysis.min_neighbors must be at least 1, got %d", c.Analysis.MinNeighbors)
	check(c.Analysis.Concurrency >= 0, "analysis.concurrency must not be negative, got %d", c.Analysis.Concurrency)
	check(c.Analysis.LoadRetries >= 0, "analysis.load_retries must not be negative, got %d", c.Analysis.LoadRetries)
	check(c.Analysis.MaxBatchSize >= 1, "analysis.max_batch_size must be at least 1, got %d", c.Analysis.MaxBatchSize)

	check(c.Tuner.Strictness > 0 && c.Tuner.Strictness <= 1, "tuner.strictness must be in (0, 1], got %g", c.Tuner.Strictness)
	check(c.Tuner.Floor > 0, "tuner.floor must be positive, got %g", c.Tuner.Floor)
	check(c.Tuner.MaxEps > 0 && c.Tuner.MaxEps <= 1, "tuner.max_eps must be in (0, 1], got %g", c.Tuner.MaxEps)
	check(c.Tuner.Floor <= c.Tuner.MaxEps, "tuner.floor (%g) must not exceed tuner.max_eps (%g)", c.Tuner.Floor, c.Tuner.MaxEps)
	check(c.Tuner.Percentile >= 0 && c.Tuner.Percentile <= 100, "tuner.percentile must be in [0, 100], got %g", c.Tuner.Percentile)
	check(c.Tuner.KneeStep >= 0 && c.Tuner.KneeStep <= 1, "tuner.knee_step must be in [0, 1], got %g", c.Tuner.KneeStep)
	check(c.Tuner.Knee == KneeKneedle || c.Tuner.Knee == KneeMaxGap, "tuner.knee must be %q or %q, got %q", KneeKneedle, KneeMaxGap, c.Tuner.Knee)

	w := c.Quality.Weights
	check(w.Sharpness >= 0 && w.Brightness >= 0 && w.Contrast >= 0 && w.Faces >= 0, "quality.weights must not be negative")
	check(w.Sharpness+w.Brightness+w.Contrast+w.Faces > 0, "quality.weights must not all be zero")
	check(c.Quality.SharpnessRef > 0, "quality.sharpness_ref must be positive, got %g", c.Quality.SharpnessRef)
	check(c.Quality.ContrastRef > 0, "quality.contrast_ref must be positive, got %g", c.Quality.ContrastRef)
	check(c.Quality.IdealBrightness > 0 && c.Quality.IdealBrightness < 255, "quality.ideal_brightness must be in (0, 255), got %g", c.Quality.IdealBrightness)

	check(c.Faces.ScaleFactor > 1, "faces.scale_factor must be greater than 1, got %g", c.Faces.ScaleFactor)
	check(c.Faces.MinSize > 0, "faces.min_size must be positive, got %d", c.Faces.MinSize)

	check(c.Web.Port > 0 && c.Web.Port < 65536, "web.port must be a valid TCP port, got %d", c.Web.Port)
	check(c.Web.MaxUploadMB > 0, "web.max_upload_mb must be positive, got %d", c.Web.MaxUploadMB)

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// Pipeline converts the configuration to the analyzer's tuning.
func (c *Config) Pipeline() pipeline.Config {
	p := pipeline.DefaultConfig()
	p.HashSize = c.Analysis.HashSize
	p.MinNeighbors = c.Analysis.MinNeighbors
	if c.Analysis.Concurrency > 0 {
		p.Concurrency = c.Analysis.Concurrency
	}
	p.LoadRetries = c.Analysis.LoadRetries
	p.MaxBatchSize = c.Analysis.MaxBatchSize
	if c.Analysis.RetryInterval > 0 {
		p.RetryInterval = c.Analysis.RetryInterval
	}
	p.OnUnreadable = pipeline.Skip
	if c.Analysis.AbortOnUnreadable {
		p.OnUnreadable = pipeline.Abort
	}

	p.Tuner = tuner.Config{
		K:             tuner.KForMinNeighbors(c.Analysis.MinNeighbors),
		Strictness:    c.Tuner.Strictness,
		Floor:         c.Tuner.Floor,
		MaxEps:        c.Tuner.MaxEps,
		Percentile:    c.Tuner.Percentile,
		FlatTolerance: c.Tuner.FlatTolerance,
		MinPoints:     c.Tuner.MinPoints,
		Knee:          c.kneeFunc(),
	}

	p.Quality = quality.Config{
		Weights:         c.Quality.Weights,
		SharpnessRef:    c.Quality.SharpnessRef,
		ContrastRef:     c.Quality.ContrastRef,
		IdealBrightness: c.Quality.IdealBrightness,
		MaxDimension:    c.Quality.MaxDimension,
	}
	return p
}

func (c *Config) kneeFunc() tuner.KneeFunc {
	if c.Tuner.Knee == KneeMaxGap {
		return tuner.MaxGap(c.Tuner.KneeProminence)
	}
	if c.Tuner.KneeStep == 0 {
		return tuner.NewKneedle(c.Tuner.KneeProminence)
	}
	return tuner.FirstOf(
		tuner.DominantStep(c.Tuner.KneeStep, tuner.DefaultStepRatio),
		tuner.NewKneedle(c.Tuner.KneeProminence),
	)
}

// FaceDetector loads the configured face detector. Without a cascade path it
// returns a detector that finds no faces.
func (c *Config) FaceDetector() (faces.Detector, error) {
	return faces.Load(c.Faces.Cascade, faces.CascadeParams{
		ScaleFactor:  c.Faces.ScaleFactor,
		MinSize:      c.Faces.MinSize,
		MaxSize:      c.Faces.MaxSize,
		MinNeighbors: c.Faces.MinNeighbors,
		ShiftFactor:  c.Faces.ShiftFactor,
		MinQuality:   c.Faces.MinQuality,
	})
}

// MaxUploadBytes is the request body limit of the analyze endpoint.
func (c *Config) MaxUploadBytes() int64 {
	return c.Web.MaxUploadMB << 20
}
