package server

import (
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"mcp-tools-go/internal/arithmetic"
	"mcp-tools-go/internal/tools/weather"
)

// Environment variable names.
const (
	EnvLogLevel        = "LOG_LEVEL"
	EnvPrecision       = "NUMBER_PRECISION"
	EnvHost            = "MCP_HOST"
	EnvPort            = "MCP_PORT"
	EnvPath            = "MCP_PATH"
	EnvRequireSession  = "MCP_REQUIRE_SESSION"
	EnvSessionTimeout  = "MCP_SESSION_TIMEOUT"
	EnvCleanupInterval = "MCP_CLEANUP_INTERVAL"
	EnvWeatherAPIKey   = "OPEN_WEATHER_API_KEY"
	EnvWeatherAPIURL   = "WEATHER_API_URL"
	EnvWeatherCity     = "WEATHER_CITY_DEFAULT"
	EnvWeatherUnits    = "WEATHER_UNITS"
	EnvWeatherOverride = "WEATHER_ALLOW_OVERRIDES"
)

// Config contains the server configuration.
type Config struct {
	ServerName    string
	ServerVersion string

	Host string
	Port int
	Path string

	// LogLevel is the upper-cased level name as configured, e.g. "INFO".
	LogLevel string

	// RawPrecision is the precision value as configured, echoed in tool descriptions.
	RawPrecision string
	Precision    arithmetic.Precision

	RequireSession  bool
	SessionTimeout  time.Duration
	CleanupInterval time.Duration
	MetricsInterval time.Duration

	Weather weather.Config

	// Degraded lists the settings that fell back to their default.
	Degraded []string
}

// DefaultConfig returns the configuration used when the environment is empty.
func DefaultConfig() Config {
	return Config{
		ServerName:      "AppsToolServer",
		ServerVersion:   "1.0.0",
		Host:            "0.0.0.0",
		Port:            1015,
		Path:            "/",
		LogLevel:        "INFO",
		RawPrecision:    strconv.Itoa(int(arithmetic.DefaultPrecision)),
		Precision:       arithmetic.DefaultPrecision,
		RequireSession:  true,
		SessionTimeout:  time.Hour,
		CleanupInterval: 5 * time.Minute,
		MetricsInterval: 15 * time.Second,
		Weather:         weather.DefaultConfig(),
	}
}

// Addr returns the host:port the server listens on.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// LoadDotEnv loads KEY=VALUE pairs from path into the environment without
// overriding variables that are already set. A missing file only logs a warning.
func LoadDotEnv(path string, logger zerolog.Logger) {
	if err := godotenv.Load(path); err != nil {
		logger.Warn().Str("path", path).Msg(".env file not found")
		return
	}
	logger.Debug().Str("path", path).Msg("Loaded .env file")
}

// LoadConfig builds the configuration from lookup, typically os.LookupEnv.
// Invalid values never fail: they fall back to the default, are logged at
// warn level and recorded in Config.Degraded.
func LoadConfig(lookup func(string) (string, bool), logger zerolog.Logger) Config {
	cfg := DefaultConfig()

	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		if !ok {
			return "", false
		}
		v = strings.TrimSpace(v)
		return v, v != ""
	}
	degrade := func(key, value string, fallback any) {
		logger.Warn().
			Str("setting", key).
			Str("value", value).
			Interface("default", fallback).
			Msg("Invalid setting, using default")
		cfg.Degraded = append(cfg.Degraded, key)
	}

	if v, ok := get(EnvLogLevel); ok {
		cfg.LogLevel = cases.Upper(language.Und).String(v)
		if _, err := ParseLogLevel(cfg.LogLevel); err != nil {
			degrade(EnvLogLevel, v, "INFO")
			cfg.LogLevel = "INFO"
		}
	}

	if v, ok := lookup(EnvPrecision); ok {
		cfg.RawPrecision = v
	}
	precision, usedDefault := arithmetic.ResolvePrecision(cfg.RawPrecision)
	cfg.Precision = precision
	if usedDefault {
		degrade(EnvPrecision, cfg.RawPrecision, arithmetic.DefaultPrecision)
	}

	if v, ok := get(EnvHost); ok {
		cfg.Host = v
	}
	if v, ok := get(EnvPort); ok {
		port, err := strconv.Atoi(v)
		if err != nil || port < 1 || port > 65535 {
			degrade(EnvPort, v, cfg.Port)
		} else {
			cfg.Port = port
		}
	}
	if v, ok := get(EnvPath); ok {
		if !strings.HasPrefix(v, "/") {
			v = "/" + v
		}
		cfg.Path = v
	}

	if v, ok := get(EnvRequireSession); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			degrade(EnvRequireSession, v, cfg.RequireSession)
		} else {
			cfg.RequireSession = b
		}
	}
	cfg.SessionTimeout = durationSetting(get, EnvSessionTimeout, cfg.SessionTimeout, degrade)
	cfg.CleanupInterval = durationSetting(get, EnvCleanupInterval, cfg.CleanupInterval, degrade)

	if v, ok := get(EnvWeatherAPIKey); ok {
		cfg.Weather.APIKey = v
	}
	if v, ok := get(EnvWeatherAPIURL); ok {
		cfg.Weather.BaseURL = v
	}
	if v, ok := get(EnvWeatherCity); ok {
		cfg.Weather.DefaultCity = v
	}
	if v, ok := get(EnvWeatherUnits); ok {
		cfg.Weather.Units = v
	}
	if v, ok := get(EnvWeatherOverride); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			degrade(EnvWeatherOverride, v, cfg.Weather.AllowOverrides)
		} else {
			cfg.Weather.AllowOverrides = b
		}
	}

	return cfg
}

// LoadConfigFromEnv is LoadConfig over the process environment.
func LoadConfigFromEnv(logger zerolog.Logger) Config {
	return LoadConfig(os.LookupEnv, logger)
}

func durationSetting(get func(string) (string, bool), key string, fallback time.Duration, degrade func(string, string, any)) time.Duration {
	v, ok := get(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		degrade(key, v, fallback.String())
		return fallback
	}
	return d
}

// ParseLogLevel maps a level name, including the WARNING and CRITICAL
// spellings, to a zerolog level.
func ParseLogLevel(name string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "warning":
		return zerolog.WarnLevel, nil
	case "critical":
		return zerolog.FatalLevel, nil
	}
	return zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(name)))
}
