// Package config provides configuration management for Commissar services.
package config

import (
	"time"
)

// Config is the complete service configuration.
type Config struct {
	Rules    RulesConfig
	Database DatabaseConfig
	Server   ServerConfig
	Metrics  MetricsConfig
	Tracing  TracingConfig
	Schema   SchemaConfig
}

// RulesConfig locates the rule file.
type RulesConfig struct {
	File  string
	Watch bool
}

// DatabaseConfig selects the record store. An empty URL means the
// in-memory store.
type DatabaseConfig struct {
	URL string
}

// ServerConfig holds configuration for the gRPC enforcement service.
type ServerConfig struct {
	Host           string
	Port           int
	MaxConnections int
	RequestTimeout time.Duration
}

// MetricsConfig holds the Prometheus listener address. Empty disables it.
type MetricsConfig struct {
	Addr string
}

// TracingConfig holds the OTLP/HTTP trace endpoint. Empty disables tracing.
type TracingConfig struct {
	Endpoint string
}

// SchemaConfig declares the child collections loaded with each record.
type SchemaConfig struct {
	Associations []AssociationConfig
}

// AssociationConfig declares that Type owns collection Field of ChildType
// records linked by ForeignKey.
type AssociationConfig struct {
	Type       string `mapstructure:"type"`
	Field      string `mapstructure:"field"`
	ChildType  string `mapstructure:"child_type"`
	ForeignKey string `mapstructure:"foreign_key"`
}

// Default returns configuration with default values.
func Default() *Config {
	return &Config{
		Rules: RulesConfig{File: "rules.yaml"},
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           50051,
			MaxConnections: 1000,
			RequestTimeout: 30 * time.Second,
		},
	}
}
