// Package config loads the optional JSON run configuration of reflectkit.
package config

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cwbudde/algo-reflect/earth/ingest"
	"github.com/cwbudde/algo-reflect/spectral/synth"
	"github.com/cwbudde/algo-reflect/spectral/taper"
)

// Crust modification modes.
const (
	CrustNone    = "none"
	CrustOceanic = "oceanic"
	CrustOne     = "crust1"
)

// Defaults for fields a run configuration leaves out.
const (
	DefaultMaxDepth       = 100.0
	DefaultVelocityFactor = 0.1
	DefaultWorkers        = 0
)

const maxFileSize = 1 * 1024 * 1024 // 1MB

// RunConfig holds model-building and synthesis settings. Every field is a
// pointer so a partial file leaves the rest at their defaults; the Get
// methods supply them.
type RunConfig struct {
	// Model building
	Reference      *string  `json:"reference,omitempty"`
	MaxDepth       *float64 `json:"max_depth_km,omitempty"`
	Crust          *string  `json:"crust,omitempty"` // none, oceanic or crust1
	CrustDir       *string  `json:"crust_dir,omitempty"`
	Lat            *float64 `json:"lat,omitempty"`
	Lon            *float64 `json:"lon,omitempty"`
	GradientStep   *float64 `json:"gradient_step_km,omitempty"`
	VelocityFactor *float64 `json:"velocity_factor,omitempty"`

	// Synthesis
	ReduceVelocity *float64 `json:"reduce_velocity,omitempty"`
	TimeOffset     *float64 `json:"time_offset,omitempty"`
	Amplitude      *string  `json:"amplitude,omitempty"` // displacement or velocity
	Source         *string  `json:"source,omitempty"`    // step or impulse
	Taper          *string  `json:"taper,omitempty"`
	TaperAlpha     *float64 `json:"taper_alpha,omitempty"`
	Workers        *int     `json:"workers,omitempty"`
	ByteOrder      *string  `json:"byte_order,omitempty"` // little or big

	Debug *bool `json:"debug,omitempty"`
}

// EmptyRunConfig returns a RunConfig with all fields unset.
func EmptyRunConfig() *RunConfig {
	return &RunConfig{}
}

// LoadRunConfig loads a RunConfig from a JSON file. The file must have a
// .json extension and be at most 1MB.
func LoadRunConfig(path string) (*RunConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyRunConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks the fields that are set.
func (c *RunConfig) Validate() error {
	if c.MaxDepth != nil && !(*c.MaxDepth > 0) {
		return fmt.Errorf("max_depth_km must be positive, got %v", *c.MaxDepth)
	}

	switch c.GetCrust() {
	case CrustNone, CrustOceanic:
	case CrustOne:
		if c.CrustDir == nil || *c.CrustDir == "" {
			return fmt.Errorf("crust %q needs crust_dir", CrustOne)
		}
	default:
		return fmt.Errorf("crust must be %q, %q or %q, got %q", CrustNone, CrustOceanic, CrustOne, c.GetCrust())
	}

	if lat := c.GetLat(); lat < -90 || lat > 90 {
		return fmt.Errorf("lat must be between -90 and 90, got %v", lat)
	}

	if c.GradientStep != nil && !(*c.GradientStep > 0) {
		return fmt.Errorf("gradient_step_km must be positive, got %v", *c.GradientStep)
	}

	if c.VelocityFactor != nil && !(*c.VelocityFactor > 0) {
		return fmt.Errorf("velocity_factor must be positive, got %v", *c.VelocityFactor)
	}

	if !(c.GetReduceVelocity() > 0) {
		return fmt.Errorf("reduce_velocity must be positive, got %v", c.GetReduceVelocity())
	}

	if _, err := synth.Weight(c.GetAmplitude(), c.GetSource(), 1); err != nil {
		return err
	}

	if _, err := taper.ParseType(c.GetTaper()); err != nil {
		return err
	}

	if a := c.GetTaperAlpha(); a < 0 || a > 1 {
		return fmt.Errorf("taper_alpha must be between 0 and 1, got %v", a)
	}

	if c.Workers != nil && *c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", *c.Workers)
	}

	if _, err := c.GetByteOrder(); err != nil {
		return err
	}

	return nil
}

// GetReference returns the reference profile name or PREM.
func (c *RunConfig) GetReference() string {
	if c.Reference == nil || *c.Reference == "" {
		return ingest.PREM
	}
	return *c.Reference
}

// GetMaxDepth returns the truncation depth in km.
func (c *RunConfig) GetMaxDepth() float64 {
	if c.MaxDepth == nil {
		return DefaultMaxDepth
	}
	return *c.MaxDepth
}

// GetCrust returns the crust modification mode.
func (c *RunConfig) GetCrust() string {
	if c.Crust == nil || *c.Crust == "" {
		return CrustNone
	}
	return *c.Crust
}

// GetCrustDir returns the directory of the Crust-1.0 grid files.
func (c *RunConfig) GetCrustDir() string {
	if c.CrustDir == nil {
		return ""
	}
	return *c.CrustDir
}

// GetLat returns the latitude for crust1, degrees.
func (c *RunConfig) GetLat() float64 {
	if c.Lat == nil {
		return 0
	}
	return *c.Lat
}

// GetLon returns the longitude for crust1, degrees.
func (c *RunConfig) GetLon() float64 {
	if c.Lon == nil {
		return 0
	}
	return *c.Lon
}

// GetGradientStep returns the gradient step in km, zero meaning the
// model's own.
func (c *RunConfig) GetGradientStep() float64 {
	if c.GradientStep == nil {
		return 0
	}
	return *c.GradientStep
}

// GetVelocityFactor returns the flattening velocity factor.
func (c *RunConfig) GetVelocityFactor() float64 {
	if c.VelocityFactor == nil {
		return DefaultVelocityFactor
	}
	return *c.VelocityFactor
}

// GetReduceVelocity returns the reducing velocity in km/s.
func (c *RunConfig) GetReduceVelocity() float64 {
	if c.ReduceVelocity == nil {
		return synth.DefaultReduceVelocity
	}
	return *c.ReduceVelocity
}

// GetTimeOffset returns the time offset in seconds.
func (c *RunConfig) GetTimeOffset() float64 {
	if c.TimeOffset == nil {
		return synth.DefaultTimeOffset
	}
	return *c.TimeOffset
}

// GetAmplitude returns the amplitude style.
func (c *RunConfig) GetAmplitude() synth.AmplitudeStyle {
	if c.Amplitude == nil || *c.Amplitude == "" {
		return synth.Velocity
	}
	return synth.AmplitudeStyle(*c.Amplitude)
}

// GetSource returns the source style.
func (c *RunConfig) GetSource() synth.SourceStyle {
	if c.Source == nil || *c.Source == "" {
		return synth.Step
	}
	return synth.SourceStyle(*c.Source)
}

// GetTaper returns the taper name.
func (c *RunConfig) GetTaper() string {
	if c.Taper == nil || *c.Taper == "" {
		return taper.TypeNone.String()
	}
	return *c.Taper
}

// GetTaperAlpha returns the tapered fraction for a Tukey taper.
func (c *RunConfig) GetTaperAlpha() float64 {
	if c.TaperAlpha == nil {
		return 0.1
	}
	return *c.TaperAlpha
}

// GetWorkers returns the synthesis worker count, zero meaning one per CPU.
func (c *RunConfig) GetWorkers() int {
	if c.Workers == nil {
		return DefaultWorkers
	}
	return *c.Workers
}

// GetByteOrder returns the byte order of spectral files.
func (c *RunConfig) GetByteOrder() (binary.ByteOrder, error) {
	if c.ByteOrder == nil {
		return binary.LittleEndian, nil
	}

	switch *c.ByteOrder {
	case "", "little":
		return binary.LittleEndian, nil
	case "big":
		return binary.BigEndian, nil
	default:
		return nil, fmt.Errorf("byte_order must be \"little\" or \"big\", got %q", *c.ByteOrder)
	}
}

// GetDebug reports whether debug logging is on.
func (c *RunConfig) GetDebug() bool {
	return c.Debug != nil && *c.Debug
}

// SynthOptions returns the synthesis options the configuration selects.
func (c *RunConfig) SynthOptions() ([]synth.Option, error) {
	t, err := taper.ParseType(c.GetTaper())
	if err != nil {
		return nil, err
	}

	opts := []synth.Option{
		synth.WithReduceVelocity(c.GetReduceVelocity()),
		synth.WithTimeOffset(c.GetTimeOffset()),
		synth.WithAmplitudeStyle(c.GetAmplitude()),
		synth.WithSourceStyle(c.GetSource()),
		synth.WithTaper(t, taper.WithAlpha(c.GetTaperAlpha()), taper.WithSlope(taper.SlopeRight)),
	}

	if n := c.GetWorkers(); n > 0 {
		opts = append(opts, synth.WithWorkers(n))
	}

	return opts, nil
}
