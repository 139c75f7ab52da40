package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Port            string
	StoreURL        string
	StoreToken      string
	RoomTTL         time.Duration
	AllowedOrigins  []string
	LogLevel        string
	LogFormat       string
	MaxMessageBytes int64
	EventsPerSecond int
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("STORE_URL", "memory")
	v.SetDefault("STORE_TOKEN", "")
	v.SetDefault("ROOM_TTL", "24h")
	v.SetDefault("ALLOWED_ORIGINS", "*")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
	v.SetDefault("MAX_MESSAGE_BYTES", 1<<20)
	v.SetDefault("EVENTS_PER_SECOND", 20)
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("reading .env: %w", err)
		}
		log.Debug().Msg("[config.Load] no .env file, using process environment")
	}
	return fromViper()
}

func fromViper() (Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	ttl, err := time.ParseDuration(v.GetString("ROOM_TTL"))
	if err != nil {
		return Config{}, fmt.Errorf("ROOM_TTL: %w", err)
	}

	cfg := Config{
		Port:            strings.TrimPrefix(v.GetString("PORT"), ":"),
		StoreURL:        v.GetString("STORE_URL"),
		StoreToken:      v.GetString("STORE_TOKEN"),
		RoomTTL:         ttl,
		AllowedOrigins:  splitOrigins(v.GetString("ALLOWED_ORIGINS")),
		LogLevel:        strings.ToLower(v.GetString("LOG_LEVEL")),
		LogFormat:       strings.ToLower(v.GetString("LOG_FORMAT")),
		MaxMessageBytes: v.GetInt64("MAX_MESSAGE_BYTES"),
		EventsPerSecond: v.GetInt("EVENTS_PER_SECOND"),
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, errors.New("PORT must not be empty"))
	}
	if c.RoomTTL <= 0 {
		errs = append(errs, fmt.Errorf("ROOM_TTL must be positive, got %s", c.RoomTTL))
	}
	if c.LogFormat != "console" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be console or json, got %q", c.LogFormat))
	}
	if c.MaxMessageBytes <= 0 {
		errs = append(errs, fmt.Errorf("MAX_MESSAGE_BYTES must be positive, got %d", c.MaxMessageBytes))
	}
	if c.EventsPerSecond <= 0 {
		errs = append(errs, fmt.Errorf("EVENTS_PER_SECOND must be positive, got %d", c.EventsPerSecond))
	}
	return errors.Join(errs...)
}

func splitOrigins(raw string) []string {
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// Addr is the listen address for Port.
func (c Config) Addr() string {
	return ":" + c.Port
}
