package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gonum.org/v1/plot/vg"

	"github.com/gilchrisn/cpa-plot/pkg/correlation"
	"github.com/gilchrisn/cpa-plot/pkg/render"
)

// EnvPrefix is prepended to every environment override, e.g. CPAPLOT_RENDER_DPI
const EnvPrefix = "CPAPLOT"

// Config manages tool configuration using Viper
type Config struct {
	v *viper.Viper
}

// NewConfig creates a new configuration with defaults
func NewConfig() *Config {
	v := viper.New()

	// Input tables
	v.SetDefault("input.dir", ".")
	v.SetDefault("input.pattern", correlation.DefaultPattern)
	v.SetDefault("input.num_bytes", 16)

	// Rendering
	v.SetDefault("render.top_n", 3)
	v.SetDefault("render.width_in", 12.0)
	v.SetDefault("render.height_in", 8.0)
	v.SetDefault("render.dpi", 300)
	v.SetDefault("render.format", "png")

	// Output
	v.SetDefault("output.dir", "plots")
	v.SetDefault("output.manifest", "")

	// Logging
	v.SetDefault("logging.level", "info")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Config{v: v}
}

// LoadFromFile loads configuration from file
func (c *Config) LoadFromFile(path string) error {
	c.v.SetConfigFile(path)
	return c.v.ReadInConfig()
}

// BindFlag lets a command-line flag override the given key when it is set
func (c *Config) BindFlag(key string, flag *pflag.Flag) error {
	return c.v.BindPFlag(key, flag)
}

// Getters for input parameters
func (c *Config) InputDir() string { return c.v.GetString("input.dir") }
func (c *Config) InputPattern() string { return c.v.GetString("input.pattern") }
func (c *Config) NumBytes() int { return c.v.GetInt("input.num_bytes") }

func (c *Config) TopN() int { return c.v.GetInt("render.top_n") }
func (c *Config) WidthIn() float64 { return c.v.GetFloat64("render.width_in") }
func (c *Config) HeightIn() float64 { return c.v.GetFloat64("render.height_in") }
func (c *Config) DPI() int { return c.v.GetInt("render.dpi") }
func (c *Config) Format() string { return strings.ToLower(strings.TrimPrefix(c.v.GetString("render.format"), ".")) }

func (c *Config) OutputDir() string { return c.v.GetString("output.dir") }
func (c *Config) Manifest() string { return c.v.GetString("output.manifest") }

func (c *Config) LogLevel() string { return c.v.GetString("logging.level") }

// Set allows dynamic configuration changes
func (c *Config) Set(key string, value interface{}) {
	c.v.Set(key, value)
}

// Style converts the render settings into a render.Style
func (c *Config) Style() render.Style {
	return render.Style{
		Width:  vg.Length(c.WidthIn()) * vg.Inch,
		Height: vg.Length(c.HeightIn()) * vg.Inch,
		DPI:    c.DPI(),
		Format: c.Format(),
	}
}

// Validate rejects settings that cannot produce any plot
func (c *Config) Validate() error {
	if c.NumBytes() <= 0 {
		return fmt.Errorf("input.num_bytes must be positive, got %d", c.NumBytes())
	}
	if !strings.Contains(c.InputPattern(), "%d") {
		return fmt.Errorf("input.pattern %q must contain %%d for the byte index", c.InputPattern())
	}
	if c.TopN() <= 0 {
		return fmt.Errorf("render.top_n must be positive, got %d", c.TopN())
	}
	if c.WidthIn() <= 0 || c.HeightIn() <= 0 {
		return fmt.Errorf("render size must be positive, got %gx%g in", c.WidthIn(), c.HeightIn())
	}
	if c.DPI() <= 0 {
		return fmt.Errorf("render.dpi must be positive, got %d", c.DPI())
	}
	if !render.SupportedFormat(c.Format()) {
		return fmt.Errorf("unsupported render.format %q", c.Format())
	}
	if c.OutputDir() == "" {
		return fmt.Errorf("output.dir must not be empty")
	}
	return nil
}

// CreateLogger creates a zerolog logger based on config
func (c *Config) CreateLogger() zerolog.Logger {
	level, err := zerolog.ParseLevel(c.LogLevel())
	if err != nil {
		level = zerolog.InfoLevel
	}

	return zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: "15:04:05",
	}).Level(level).With().Timestamp().Str("service", "cpaplot").Logger()
}
