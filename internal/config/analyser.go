package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/banshee-data/laserscope/internal/units"
)

// DefaultConfigPath is the path to the canonical defaults file shipped with
// the repository.
const DefaultConfigPath = "config/laserscope.defaults.json"

// AnalyserConfig is the root configuration for the analyser daemon. Every
// field is optional; the Get* accessors supply defaults for omitted values
// so partial files are safe.
type AnalyserConfig struct {
	// Analysis params
	SmoothingRadius    *int     `json:"smoothing_radius,omitempty"`
	MaxSmoothingRadius *int     `json:"max_smoothing_radius,omitempty"`
	FitMaxIterations   *int     `json:"fit_max_iterations,omitempty"`
	FitTolerance       *float64 `json:"fit_tolerance,omitempty"`

	// Display params
	DisplayHeight *float64 `json:"display_height,omitempty"`
	PixelPitchUM  *float64 `json:"pixel_pitch_um,omitempty"`
	Units         *string  `json:"units,omitempty"`

	// Recording params
	RecordInterval *string `json:"record_interval,omitempty"` // duration string like "1s"

	// Sensor port params
	SerialPort   *string  `json:"serial_port,omitempty"`
	BaudRate     *int     `json:"baud_rate,omitempty"`
	DataBits     *int     `json:"data_bits,omitempty"`
	StopBits     *int     `json:"stop_bits,omitempty"`
	Parity       *string  `json:"parity,omitempty"`
	InitCommands []string `json:"init_commands,omitempty"`
}

// EmptyConfig returns an AnalyserConfig with all fields unset.
func EmptyConfig() *AnalyserConfig {
	return &AnalyserConfig{}
}

// LoadConfig loads an AnalyserConfig from a JSON file. The file must have a
// .json extension and be at most 1MB.
func LoadConfig(path string) (*AnalyserConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents. Panics if the file cannot be loaded; intended
// for test setup.
func MustLoadDefaultConfig() *AnalyserConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/config/
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that set values are usable.
func (c *AnalyserConfig) Validate() error {
	maxRadius := c.GetMaxSmoothingRadius()
	if maxRadius < 0 {
		return fmt.Errorf("max_smoothing_radius must be non-negative, got %d", maxRadius)
	}
	if c.SmoothingRadius != nil {
		if r := *c.SmoothingRadius; r < 0 || r > maxRadius {
			return fmt.Errorf("smoothing_radius must be between 0 and %d, got %d", maxRadius, r)
		}
	}

	if c.FitMaxIterations != nil && *c.FitMaxIterations <= 0 {
		return fmt.Errorf("fit_max_iterations must be positive, got %d", *c.FitMaxIterations)
	}
	if c.FitTolerance != nil {
		if t := *c.FitTolerance; !(t > 0) || math.IsInf(t, 0) {
			return fmt.Errorf("fit_tolerance must be a positive number, got %v", t)
		}
	}

	if c.DisplayHeight != nil {
		if h := *c.DisplayHeight; !(h > 0) || math.IsInf(h, 0) {
			return fmt.Errorf("display_height must be positive, got %v", h)
		}
	}
	if c.PixelPitchUM != nil {
		if p := *c.PixelPitchUM; !(p > 0) || math.IsInf(p, 0) {
			return fmt.Errorf("pixel_pitch_um must be positive, got %v", p)
		}
	}
	if c.Units != nil && !units.IsValid(*c.Units) {
		return fmt.Errorf("units must be one of %s, got %q", units.GetValidUnitsString(), *c.Units)
	}

	if c.RecordInterval != nil && *c.RecordInterval != "" {
		d, err := time.ParseDuration(*c.RecordInterval)
		if err != nil {
			return fmt.Errorf("invalid record_interval '%s': %w", *c.RecordInterval, err)
		}
		if d < 0 {
			return fmt.Errorf("record_interval must be non-negative, got %s", d)
		}
	}

	if c.SerialPort != nil && strings.TrimSpace(*c.SerialPort) == "" {
		return fmt.Errorf("serial_port must not be empty when set")
	}

	return nil
}

// GetSmoothingRadius returns the smoothing_radius value or the default.
func (c *AnalyserConfig) GetSmoothingRadius() int {
	if c.SmoothingRadius == nil {
		return 0
	}
	return *c.SmoothingRadius
}

// GetMaxSmoothingRadius returns the max_smoothing_radius value or the default.
func (c *AnalyserConfig) GetMaxSmoothingRadius() int {
	if c.MaxSmoothingRadius == nil {
		return 200
	}
	return *c.MaxSmoothingRadius
}

// GetFitMaxIterations returns the fit_max_iterations value or the default.
func (c *AnalyserConfig) GetFitMaxIterations() int {
	if c.FitMaxIterations == nil {
		return 100
	}
	return *c.FitMaxIterations
}

// GetFitTolerance returns the fit_tolerance value or the default.
func (c *AnalyserConfig) GetFitTolerance() float64 {
	if c.FitTolerance == nil {
		return 1e-9
	}
	return *c.FitTolerance
}

// GetDisplayHeight returns the display_height value or the default.
func (c *AnalyserConfig) GetDisplayHeight() float64 {
	if c.DisplayHeight == nil {
		return 256
	}
	return *c.DisplayHeight
}

// GetPixelPitchUM returns the pixel_pitch_um value or the default.
func (c *AnalyserConfig) GetPixelPitchUM() float64 {
	if c.PixelPitchUM == nil {
		return 1.0
	}
	return *c.PixelPitchUM
}

// GetUnits returns the units value or the default.
func (c *AnalyserConfig) GetUnits() string {
	if c.Units == nil {
		return units.Pixels
	}
	return *c.Units
}

// GetRecordInterval parses and returns RecordInterval as a time.Duration.
func (c *AnalyserConfig) GetRecordInterval() time.Duration {
	if c.RecordInterval == nil || *c.RecordInterval == "" {
		return time.Second // default
	}
	d, err := time.ParseDuration(*c.RecordInterval)
	if err != nil {
		return time.Second // default on parse error
	}
	return d
}

// GetSerialPort returns the serial_port value or the default.
func (c *AnalyserConfig) GetSerialPort() string {
	if c.SerialPort == nil {
		return "/dev/ttyUSB0"
	}
	return *c.SerialPort
}

// GetBaudRate returns the baud_rate value or the default.
func (c *AnalyserConfig) GetBaudRate() int {
	if c.BaudRate == nil {
		return 115200
	}
	return *c.BaudRate
}

// GetDataBits returns the data_bits value, 0 meaning the port default.
func (c *AnalyserConfig) GetDataBits() int {
	if c.DataBits == nil {
		return 0
	}
	return *c.DataBits
}

// GetStopBits returns the stop_bits value, 0 meaning the port default.
func (c *AnalyserConfig) GetStopBits() int {
	if c.StopBits == nil {
		return 0
	}
	return *c.StopBits
}

// GetParity returns the parity value, empty meaning the port default.
func (c *AnalyserConfig) GetParity() string {
	if c.Parity == nil {
		return ""
	}
	return *c.Parity
}
