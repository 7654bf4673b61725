// Package common provides configuration management, database initialization,
// and HTTP endpoint utilities for the Shibboleth Go components. It includes
// support for YAML configuration files, environment variable overrides, CORS
// setup, health endpoints, and PostgreSQL database connections with
// connection pooling.
package common

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/spf13/viper"
)

// Config represents the complete configuration structure for the attribute
// authority service. It combines server settings, database configuration,
// CORS policy, ARP storage selection, and attribute resolver settings.
type Config struct {
	Server     ServerConfig   `yaml:"server"`   // HTTP server configuration
	Postgres   PostgresConfig `yaml:"postgres"` // PostgreSQL database settings
	Mongo      MongoConfig    `yaml:"mongo"`    // MongoDB settings
	CorsConfig CorsConfig     `yaml:"cors"`     // CORS policy configuration

	Arp      ArpConfig      `mapstructure:"arp" json:"arp"`           // Attribute release policy storage
	Resolver ResolverConfig `mapstructure:"resolver" json:"resolver"` // Attribute resolver settings
}

// ServerConfig contains HTTP server configuration parameters.
type ServerConfig struct {
	Host        string `yaml:"host"`        // Bind address
	Port        int    `yaml:"port"`        // HTTP server port (default: 5105)
	ContextPath string `yaml:"contextPath"` // Base path for all endpoints
}

// PostgresConfig contains PostgreSQL database connection parameters.
// It includes connection pooling settings for optimal performance.
type PostgresConfig struct {
	Host                   string `yaml:"host"`                   // Database host address
	Port                   int    `yaml:"port"`                   // Database port (default: 5432)
	User                   string `yaml:"user"`                   // Database username
	Password               string `yaml:"password"`               // Database password
	DBName                 string `yaml:"dbname"`                 // Database name
	MaxOpenConnections     int    `yaml:"maxOpenConnections"`     // Maximum open connections
	MaxIdleConnections     int    `yaml:"maxIdleConnections"`     // Maximum idle connections
	ConnMaxLifetimeMinutes int    `yaml:"connMaxLifetimeMinutes"` // Connection lifetime in minutes
}

// MongoConfig contains MongoDB connection parameters for the MongoDB-backed
// ARP repository.
type MongoConfig struct {
	URI      string `yaml:"uri"`      // Connection URI
	Database string `yaml:"database"` // Database name
}

// CorsConfig contains Cross-Origin Resource Sharing (CORS) policy settings.
type CorsConfig struct {
	AllowedOrigins   []string `yaml:"allowedOrigins"`   // Allowed origin domains
	AllowedMethods   []string `yaml:"allowedMethods"`   // Allowed HTTP methods
	AllowedHeaders   []string `yaml:"allowedHeaders"`   // Allowed request headers
	AllowCredentials bool     `yaml:"allowCredentials"` // Allow credentials in requests
}

// ArpConfig selects and parameterizes the attribute release policy store.
type ArpConfig struct {
	Backend   string `mapstructure:"backend" json:"backend"`     // inmemory | file | postgresql | mongodb
	Directory string `mapstructure:"directory" json:"directory"` // Policy directory for the file backend
}

// ResolverConfig contains attribute resolver settings.
type ResolverConfig struct {
	ConfigPath string `mapstructure:"configPath" json:"configPath"` // Path to the resolver XML configuration
}

// LoadConfig loads the configuration from YAML files and environment variables.
//
// The function supports multiple configuration sources with the following precedence:
// 1. Environment variables (highest priority)
// 2. Configuration file (if provided)
// 3. Default values (lowest priority)
//
// Environment variables should use underscore notation (e.g., SERVER_PORT for server.port).
//
// Parameters:
//   - configPath: Path to the YAML configuration file. If empty, only environment
//     variables and defaults will be used.
//
// Returns:
//   - *Config: Loaded configuration structure
//   - error: Error if configuration loading fails
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// Set default values
	setDefaults(v)

	if configPath != "" {
		log.Printf("📁 Loading config from file: %s", configPath)
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		log.Println("📁 No config file provided — loading from environment variables only")
	}

	// Override config with environment variables
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := new(Config)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	log.Println("✅ Configuration loaded successfully")
	PrintConfiguration(cfg)
	return cfg, nil
}

// setDefaults configures sensible default values for all configuration options.
//
// The defaults allow the service to run in development environments without
// requiring extensive configuration. Production deployments should override
// these values through configuration files or environment variables.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 5105)
	v.SetDefault("server.contextPath", "")

	// PostgreSQL defaults
	v.SetDefault("postgres.host", "db")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "admin")
	v.SetDefault("postgres.password", "admin123")
	v.SetDefault("postgres.dbname", "shibTestDB")
	v.SetDefault("postgres.maxOpenConnections", 50)
	v.SetDefault("postgres.maxIdleConnections", 50)
	v.SetDefault("postgres.connMaxLifetimeMinutes", 5)

	// MongoDB defaults
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "shibboleth")

	// CORS defaults
	v.SetDefault("cors.allowedOrigins", []string{"*"})
	v.SetDefault("cors.allowedMethods", []string{"GET", "POST", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowedHeaders", []string{"*"})
	v.SetDefault("cors.allowCredentials", true)

	v.SetDefault("arp.backend", "inmemory")
	v.SetDefault("arp.directory", "config/arps")

	v.SetDefault("resolver.configPath", "config/resolver.xml")
}

// PrintConfiguration prints the current configuration to the console with
// sensitive data redacted. Useful for debugging and verifying configuration
// during startup; database credentials are masked to prevent accidental
// exposure in logs.
func PrintConfiguration(cfg *Config) {
	// Create a copy of the config to avoid modifying the original
	cfgCopy := *cfg

	// Redact sensitive information if present in the Postgres configuration
	if cfg.Postgres.Host != "" {
		cfgCopy.Postgres.Host = "****"
		cfgCopy.Postgres.User = "****"
		cfgCopy.Postgres.Password = "****"
	}
	if cfg.Mongo.URI != "" {
		cfgCopy.Mongo.URI = "****"
	}

	// Convert to JSON for pretty printing
	configJSON, err := json.MarshalIndent(cfgCopy, "", "  ")
	if err != nil {
		log.Printf("Unable to marshal configuration to JSON: %v", err)
		return
	}

	log.Printf("📜 Loaded configuration:\n%s", string(configJSON))
}

// AddCors configures Cross-Origin Resource Sharing (CORS) middleware for the
// router based on the provided configuration.
func AddCors(r *chi.Mux, config *Config) {
	c := cors.New(cors.Options{
		AllowedOrigins:   config.CorsConfig.AllowedOrigins,
		AllowedMethods:   config.CorsConfig.AllowedMethods,
		AllowedHeaders:   config.CorsConfig.AllowedHeaders,
		AllowCredentials: config.CorsConfig.AllowCredentials,
	})
	r.Use(c.Handler)
}

// NormalizeBasePath ensures a context path is either empty or of the form
// "/segment[/segment...]" with no trailing slash.
func NormalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || p == "/" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return strings.TrimSuffix(p, "/")
}
