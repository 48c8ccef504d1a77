// Package config loads matchbroker settings.
//
// Values come from, in increasing priority: built-in defaults, an optional
// config.yaml (searched in ".", "./config" and "/etc/matchbroker"), and
// MATCHBROKER_* environment variables, where dots in a key become
// underscores (server.port -> MATCHBROKER_SERVER_PORT). A .env file in the
// working directory is loaded into the environment first. Command line flags
// are applied on top by main.
package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "MATCHBROKER"

type Config struct {
	Debug   bool          `mapstructure:"debug"`
	Server  ServerConfig  `mapstructure:"server"`
	Catalog CatalogConfig `mapstructure:"catalog"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Matches MatchesConfig `mapstructure:"matches"`
	Ngrok   NgrokConfig   `mapstructure:"ngrok"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
}

// Addr returns host:port for net.Listen.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, s.Port)
}

type CatalogConfig struct {
	Dir string `mapstructure:"dir"`
}

// RedisConfig enables cross-instance lobby fanout when Addr is set.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
}

type MatchesConfig struct {
	Retention       time.Duration `mapstructure:"retention"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	// ArchiveDir stores finalized matches as JSON when set.
	ArchiveDir string `mapstructure:"archive_dir"`
}

type NgrokConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	AuthToken string `mapstructure:"authtoken"`
	Domain    string `mapstructure:"domain"`
}

// Load reads configuration using the default search paths.
func Load() (Config, error) {
	_ = godotenv.Load()
	return LoadFrom(viper.New(), ".", "./config", "/etc/matchbroker")
}

// LoadFrom reads configuration into v, searching paths for config.yaml.
func LoadFrom(v *viper.Viper, paths ...string) (Config, error) {
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")

	v.SetDefault("catalog.dir", "catalog")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel", "matchbroker:lobby")

	v.SetDefault("matches.retention", 24*time.Hour)
	v.SetDefault("matches.cleanup_interval", time.Hour)
	v.SetDefault("matches.archive_dir", "")

	v.SetDefault("ngrok.enabled", false)
	v.SetDefault("ngrok.authtoken", "")
	v.SetDefault("ngrok.domain", "")
}
