package cfg

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"placement-predictor/internal/common"
)

type Settings struct {
	ArtifactBackend   string
	ArtifactDir       string
	DataPath          string
	ServerPort        int
	MetricsPort       int
	RequestTimeout    time.Duration
	Warmup            bool
	RecordPredictions bool
	LogLevel          string
	LogFormat         string
}

type ConfigFile struct {
	Artifacts struct {
		Backend string `yaml:"backend"`
		Dir     string `yaml:"dir"`
	} `yaml:"artifacts"`

	Server struct {
		Port              int    `yaml:"port"`
		RequestTimeout    string `yaml:"requestTimeout"`
		Warmup            *bool  `yaml:"warmup"`
		RecordPredictions bool   `yaml:"recordPredictions"`
	} `yaml:"server"`

	System struct {
		DataPath    string `yaml:"dataPath"`
		MetricsPort int    `yaml:"metricsPort"`
		LogLevel    string `yaml:"logLevel"`
		LogFormat   string `yaml:"logFormat"`
	} `yaml:"system"`
}

// Load reads settings from CONFIG_FILE when set, otherwise from the
// environment. A .env file (or the one named by ENV_FILE) is loaded first;
// variables already set in the process win over it.
func Load() (Settings, error) {
	if err := loadDotEnv(); err != nil {
		return Settings{}, err
	}

	if configPath := os.Getenv(common.EnvConfigFile); configPath != "" {
		return loadFromYAML(configPath)
	}

	return loadFromEnv()
}

func loadDotEnv() error {
	path := os.Getenv(common.EnvEnvFile)
	if path == "" {
		path = ".env"
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return nil
		}
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	timeout, err := time.ParseDuration(config.Server.RequestTimeout)
	if err != nil {
		timeout = common.DefaultRequestTimeout
	}

	warmup := true
	if config.Server.Warmup != nil {
		warmup = *config.Server.Warmup
	}

	settings := Settings{
		ArtifactBackend:   getEnvOrDefault(common.EnvArtifactBackend, orDefault(config.Artifacts.Backend, common.DefaultArtifactBackend)),
		ArtifactDir:       getEnvOrDefault(common.EnvArtifactDir, orDefault(config.Artifacts.Dir, common.DefaultArtifactDir)),
		DataPath:          getEnvOrDefault(common.EnvDataPath, config.System.DataPath),
		ServerPort:        getIntFromEnvOrConfig(common.EnvServerPort, config.Server.Port, common.DefaultServerPort),
		MetricsPort:       getIntFromEnvOrConfig(common.EnvMetricsPort, config.System.MetricsPort, common.DefaultMetricsPort),
		RequestTimeout:    getDurationOrDefault(common.EnvRequestTimeout, timeout),
		Warmup:            getBoolOrDefault(common.EnvWarmup, warmup),
		RecordPredictions: getBoolOrDefault(common.EnvRecordPredictions, config.Server.RecordPredictions),
		LogLevel:          getEnvOrDefault(common.EnvLogLevel, orDefault(config.System.LogLevel, common.DefaultLogLevel)),
		LogFormat:         getEnvOrDefault(common.EnvLogFormat, orDefault(config.System.LogFormat, common.DefaultLogFormat)),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromEnv() (Settings, error) {
	settings := Settings{
		ArtifactBackend:   getEnvOrDefault(common.EnvArtifactBackend, common.DefaultArtifactBackend),
		ArtifactDir:       getEnvOrDefault(common.EnvArtifactDir, common.DefaultArtifactDir),
		DataPath:          os.Getenv(common.EnvDataPath), // optional
		ServerPort:        getIntOrDefault(common.EnvServerPort, common.DefaultServerPort),
		MetricsPort:       getIntOrDefault(common.EnvMetricsPort, common.DefaultMetricsPort),
		RequestTimeout:    getDurationOrDefault(common.EnvRequestTimeout, common.DefaultRequestTimeout),
		Warmup:            getBoolOrDefault(common.EnvWarmup, true),
		RecordPredictions: getBoolOrDefault(common.EnvRecordPredictions, false),
		LogLevel:          getEnvOrDefault(common.EnvLogLevel, common.DefaultLogLevel),
		LogFormat:         getEnvOrDefault(common.EnvLogFormat, common.DefaultLogFormat),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

// ZerologLevel returns the parsed log level. Settings are validated on load,
// so the fallback is only reached for hand-built values.
func (s *Settings) ZerologLevel() zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(s.LogLevel))
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

func orDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

func getIntFromEnvOrConfig(key string, configValue, defaultValue int) int {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.Atoi(env); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

// validateSettings performs validation of configuration values
func validateSettings(settings *Settings) error {
	switch settings.ArtifactBackend {
	case common.BackendDir:
		if settings.ArtifactDir == "" {
			return fmt.Errorf("artifact directory cannot be empty for the %q backend", common.BackendDir)
		}
	case common.BackendBolt:
		if settings.DataPath == "" {
			return fmt.Errorf("data path is required for the %q backend", common.BackendBolt)
		}
	default:
		return fmt.Errorf("artifact backend must be %q or %q, got %q",
			common.BackendDir, common.BackendBolt, settings.ArtifactBackend)
	}

	if settings.RecordPredictions && settings.DataPath == "" {
		return fmt.Errorf("data path is required to record predictions")
	}

	if settings.ServerPort < common.MinPort || settings.ServerPort > common.MaxPort {
		return fmt.Errorf("server port must be between %d and %d, got %d", common.MinPort, common.MaxPort, settings.ServerPort)
	}
	if settings.MetricsPort < common.MinPort || settings.MetricsPort > common.MaxPort {
		return fmt.Errorf("metrics port must be between %d and %d, got %d", common.MinPort, common.MaxPort, settings.MetricsPort)
	}
	if settings.ServerPort == settings.MetricsPort {
		return fmt.Errorf("server and metrics ports must differ, both are %d", settings.ServerPort)
	}

	if settings.RequestTimeout < 10*time.Millisecond || settings.RequestTimeout > time.Minute {
		return fmt.Errorf("request timeout must be between 10ms and 1m, got %v", settings.RequestTimeout)
	}

	if _, err := zerolog.ParseLevel(strings.ToLower(settings.LogLevel)); err != nil || settings.LogLevel == "" {
		return fmt.Errorf("invalid log level %q", settings.LogLevel)
	}
	if settings.LogFormat != "json" && settings.LogFormat != "console" {
		return fmt.Errorf("log format must be json or console, got %q", settings.LogFormat)
	}

	return nil
}
