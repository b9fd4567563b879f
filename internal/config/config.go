package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Render    RenderConfig    `mapstructure:"render"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Log       LogConfig       `mapstructure:"log"`
}

type RenderConfig struct {
	PreferHardware bool `mapstructure:"prefer_hardware"`
	CacheEntries   int  `mapstructure:"cache_entries"`
	MaxPixels      int  `mapstructure:"max_pixels"`
}

type WorkerConfig struct {
	Concurrency int    `mapstructure:"concurrency"`
	OutputDir   string `mapstructure:"output_dir"`
	FailFast    bool   `mapstructure:"fail_fast"`
}

type TelemetryConfig struct {
	ServiceName  string  `mapstructure:"service_name"`
	Exporter     string  `mapstructure:"exporter"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
}

// MetricsConfig points at a node_exporter textfile. Empty disables export.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads configuration from file and env. Env var overrides use prefix
// PIXELGRAPH_, with dots replaced by underscores
// (PIXELGRAPH_WORKER_CONCURRENCY). path wins over PIXELGRAPH_CONFIG; with
// neither, ~/.config/pixelgraph/config.toml is read when present.
func Load(path string) (Config, error) {
	v := viper.New()

	v.SetDefault("render.prefer_hardware", true)
	v.SetDefault("render.cache_entries", 64)
	v.SetDefault("render.max_pixels", 256<<20)
	v.SetDefault("worker.concurrency", max(2, runtime.NumCPU()))
	v.SetDefault("worker.output_dir", "./.pixelgraph-output")
	v.SetDefault("worker.fail_fast", false)
	v.SetDefault("telemetry.service_name", "pixelgraph")
	v.SetDefault("telemetry.exporter", "none")
	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.otlp_insecure", false)
	v.SetDefault("telemetry.sample_ratio", 1.0)
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("log.level", "info")

	v.SetConfigType("toml")

	explicit := path != ""
	if !explicit {
		path = os.Getenv("PIXELGRAPH_CONFIG")
		explicit = path != ""
	}
	if explicit {
		v.SetConfigFile(path)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "pixelgraph"))
		}
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("PIXELGRAPH")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.Worker.Concurrency < 1 {
		c.Worker.Concurrency = 1
	}
	return c, nil
}
