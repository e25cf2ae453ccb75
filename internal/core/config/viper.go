package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. COMMISSAR_SERVER_PORT.
const EnvPrefix = "COMMISSAR"

// LoadConfig loads configuration from file using viper.
// CLI flags > environment > config file > defaults precedence; flags are
// applied by the caller on the returned Config.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	def := Default()
	v.SetDefault("rules.file", def.Rules.File)
	v.SetDefault("rules.watch", def.Rules.Watch)
	v.SetDefault("database.url", "")
	v.SetDefault("server.host", def.Server.Host)
	v.SetDefault("server.port", def.Server.Port)
	v.SetDefault("server.max_connections", def.Server.MaxConnections)
	v.SetDefault("server.request_timeout", def.Server.RequestTimeout.String())
	v.SetDefault("metrics.addr", "")
	v.SetDefault("tracing.endpoint", "")

	// Bind environment variables with COMMISSAR_ prefix
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		// Credentials must be environment-only per 12-factor principles
		if err := validateNoSecretsInConfig(configPath); err != nil {
			return nil, err
		}
	}

	cfg := &Config{
		Rules: RulesConfig{
			File:  v.GetString("rules.file"),
			Watch: v.GetBool("rules.watch"),
		},
		Database: DatabaseConfig{URL: v.GetString("database.url")},
		Server: ServerConfig{
			Host:           v.GetString("server.host"),
			Port:           v.GetInt("server.port"),
			MaxConnections: v.GetInt("server.max_connections"),
			RequestTimeout: v.GetDuration("server.request_timeout"),
		},
		Metrics: MetricsConfig{Addr: v.GetString("metrics.addr")},
		Tracing: TracingConfig{Endpoint: v.GetString("tracing.endpoint")},
	}

	if err := v.UnmarshalKey("schema.associations", &cfg.Schema.Associations); err != nil {
		return nil, fmt.Errorf("invalid schema.associations: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks port range, positive limits and complete associations.
func Validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", cfg.Server.Port)
	}
	if cfg.Server.MaxConnections <= 0 {
		return fmt.Errorf("max_connections must be positive, got %d", cfg.Server.MaxConnections)
	}
	if cfg.Server.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %v", cfg.Server.RequestTimeout)
	}
	if cfg.Rules.File == "" {
		return fmt.Errorf("rules.file must be set")
	}
	for i, a := range cfg.Schema.Associations {
		if a.Type == "" || a.Field == "" || a.ChildType == "" || a.ForeignKey == "" {
			return fmt.Errorf("schema.associations[%d]: type, field, child_type and foreign_key are required", i)
		}
	}
	return nil
}

// validateNoSecretsInConfig rejects a database URL carrying a password in
// the config file itself.
func validateNoSecretsInConfig(configPath string) error {
	file := viper.New()
	file.SetConfigFile(configPath)
	if err := file.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	raw := file.GetString("database.url")
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid database.url: %w", err)
	}
	if _, hasPassword := u.User.Password(); hasPassword {
		return fmt.Errorf("database passwords not allowed in config files (use %s_DATABASE_URL environment variable)", EnvPrefix)
	}
	return nil
}
