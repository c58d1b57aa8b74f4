package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// ErrMissingCredential reports a required secret absent from the environment.
var ErrMissingCredential = errors.New("missing credential")

// ConfigFileEnv names an optional YAML file layered under the environment.
const ConfigFileEnv = "WEATHER_AGENT_CONFIG"

// Units selects the OpenWeatherMap unit system.
type Units string

const (
	UnitsMetric   Units = "metric"
	UnitsImperial Units = "imperial"
	UnitsStandard Units = "standard"
)

// ParseUnits accepts a unit system name in any case. Empty input yields the
// empty Units, which Normalize replaces with the default.
func ParseUnits(raw string) (Units, error) {
	u := Units(strings.ToLower(strings.TrimSpace(raw)))
	switch u {
	case "", UnitsMetric, UnitsImperial, UnitsStandard:
		return u, nil
	}
	return "", fmt.Errorf("weather units %q: want metric, imperial or standard", raw)
}

// Config holds all runtime configuration for the agent.
type Config struct {
	APIKey  string `mapstructure:"openai_api_key"`
	BaseURL string `mapstructure:"openai_base_url"`
	Model   string `mapstructure:"openai_model"`

	WeatherAPIKey  string `mapstructure:"weather_api_key"`
	WeatherBaseURL string `mapstructure:"weather_base_url"`
	WeatherUnits   Units  `mapstructure:"weather_units"`

	MaxTurns         int           `mapstructure:"max_turns"`
	MalformedRetries int           `mapstructure:"malformed_retries"`
	ModelTimeout     time.Duration `mapstructure:"model_timeout"`
	WeatherTimeout   time.Duration `mapstructure:"weather_timeout"`
	Verbose          bool          `mapstructure:"verbose"`
}

// DefaultConfig returns a baseline configuration without side effects.
func DefaultConfig() Config {
	return Config{
		Model:            "gpt-4o",
		WeatherBaseURL:   "https://api.openweathermap.org/data/2.5/weather",
		WeatherUnits:     UnitsMetric,
		MaxTurns:         10,
		MalformedRetries: 1,
		ModelTimeout:     60 * time.Second,
		WeatherTimeout:   15 * time.Second,
	}
}

// envKeys maps config keys to the environment variables that feed them.
var envKeys = map[string]string{
	"openai_api_key":    "OPENAI_API_KEY",
	"openai_base_url":   "OPENAI_BASE_URL",
	"openai_model":      "OPENAI_MODEL",
	"weather_api_key":   "WEATHER_API_KEY",
	"weather_base_url":  "WEATHER_BASE_URL",
	"weather_units":     "WEATHER_UNITS",
	"max_turns":         "MAX_TURNS",
	"malformed_retries": "MALFORMED_RETRIES",
	"model_timeout":     "MODEL_TIMEOUT",
	"weather_timeout":   "WEATHER_TIMEOUT",
	"verbose":           "VERBOSE",
}

// Load reads configuration from the environment, optionally layered over the
// YAML file named by WEATHER_AGENT_CONFIG. The result is normalized but not
// validated.
func Load() (Config, error) {
	defaults := DefaultConfig()

	v := viper.New()
	v.SetDefault("openai_api_key", "")
	v.SetDefault("openai_base_url", "")
	v.SetDefault("openai_model", defaults.Model)
	v.SetDefault("weather_api_key", "")
	v.SetDefault("weather_base_url", defaults.WeatherBaseURL)
	v.SetDefault("weather_units", string(defaults.WeatherUnits))
	v.SetDefault("max_turns", defaults.MaxTurns)
	v.SetDefault("malformed_retries", defaults.MalformedRetries)
	v.SetDefault("model_timeout", defaults.ModelTimeout)
	v.SetDefault("weather_timeout", defaults.WeatherTimeout)
	v.SetDefault("verbose", defaults.Verbose)

	for key, env := range envKeys {
		if err := v.BindEnv(key, env); err != nil {
			return Config{}, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if path := strings.TrimSpace(os.Getenv(ConfigFileEnv)); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		trimStringsHook,
		mapstructure.StringToTimeDurationHookFunc(),
		unitsHook,
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return Normalize(cfg), nil
}

// trimStringsHook strips surrounding whitespace from every string value, so
// env files and YAML quoting cannot leak spaces into keys or URLs.
func trimStringsHook(from, _ reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String {
		return data, nil
	}
	return strings.TrimSpace(reflect.ValueOf(data).String()), nil
}

// unitsHook rejects unit systems OpenWeatherMap does not know.
func unitsHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != reflect.TypeOf(Units("")) {
		return data, nil
	}
	return ParseUnits(reflect.ValueOf(data).String())
}

// Normalize applies defaults and clamps out-of-range values. Load has already
// trimmed and validated string fields while decoding.
func Normalize(cfg Config) Config {
	defaults := DefaultConfig()

	if cfg.Model == "" {
		cfg.Model = defaults.Model
	}
	if cfg.WeatherBaseURL == "" {
		cfg.WeatherBaseURL = defaults.WeatherBaseURL
	}
	if cfg.WeatherUnits == "" {
		cfg.WeatherUnits = defaults.WeatherUnits
	}
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = 1
	}
	if cfg.MalformedRetries < 0 {
		cfg.MalformedRetries = 0
	}
	if cfg.ModelTimeout <= 0 {
		cfg.ModelTimeout = defaults.ModelTimeout
	}
	if cfg.WeatherTimeout <= 0 {
		cfg.WeatherTimeout = defaults.WeatherTimeout
	}
	return cfg
}

// Validate reports configuration that must stop the process before it serves
// any query.
func (c Config) Validate() error {
	var missing []string
	if c.APIKey == "" {
		missing = append(missing, "OPENAI_API_KEY")
	}
	if c.WeatherAPIKey == "" {
		missing = append(missing, "WEATHER_API_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s is not set", ErrMissingCredential, strings.Join(missing, ", "))
	}
	return nil
}
