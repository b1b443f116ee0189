// Package config loads the service configuration from yaml with environment
// variable overrides. Trusted protocol constants (attester address, circuit
// id, rollup version) are bound here at startup rather than compiled in, so
// each environment can carry its own trust roots.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config application configuration structure.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	NATS         NATSConfig         `yaml:"nats"`
	Bridge       BridgeConfig       `yaml:"bridge"`
	Oracle       OracleConfig       `yaml:"oracle"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Auth         AuthConfig         `yaml:"auth"`
	Admin        AdminConfig        `yaml:"admin"`
}

// ServerConfig HTTP server configuration.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig database configuration. An empty DSN disables persistence;
// flows then live only in memory.
type DatabaseConfig struct {
	DSN    string `yaml:"dsn"`
	Driver string `yaml:"driver"`
}

// NATSConfig NATS event bus configuration. An empty URL disables event
// publishing.
type NATSConfig struct {
	URL           string `yaml:"url"`
	Timeout       int    `yaml:"timeout"`
	ReconnectWait int    `yaml:"reconnect_wait"`
	MaxReconnects int    `yaml:"max_reconnects"`
}

// BridgeConfig binds the devnet bridge deployment: chain identity, actor
// addresses and the attestation trust root.
type BridgeConfig struct {
	L1ChainID       uint64 `yaml:"l1ChainId"`
	RollupVersion   uint64 `yaml:"rollupVersion"`
	PortalAddress   string `yaml:"portalAddress"`   // L1 portal account (hex address)
	L2BridgeAddress string `yaml:"l2BridgeAddress"` // L2 bridge actor (hex field element)
	AssetSymbol     string `yaml:"assetSymbol"`
	Attester        string `yaml:"attester"`  // trusted attester address
	CircuitID       string `yaml:"circuitId"` // trusted circuit identifier
	BlockInterval   int    `yaml:"blockInterval"` // L2 block production interval (milliseconds)
}

// OracleConfig attestation oracle service configuration.
type OracleConfig struct {
	BaseURL    string `yaml:"baseUrl"`
	Timeout    int    `yaml:"timeout"`    // request timeout (seconds)
	MaxRetries int    `yaml:"maxRetries"` // transient failure retries
	SignerKey  string `yaml:"signerKey"`  // devnet oracle only: attester private key (hex)
}

// OrchestratorConfig client-side wait bounds for the cross-layer flow.
type OrchestratorConfig struct {
	ConsumabilityTimeout int `yaml:"consumabilityTimeout"` // seconds
	ExitTimeout          int `yaml:"exitTimeout"`          // seconds
	PollInterval         int `yaml:"pollInterval"`         // milliseconds
}

// AuthConfig API authentication configuration.
type AuthConfig struct {
	JWTSecret   string `yaml:"jwtSecret"`
	TokenExpiry int    `yaml:"tokenExpiry"` // hours
}

// AdminConfig admin endpoint access control.
type AdminConfig struct {
	TOTPSecret string `yaml:"totpSecret"`
}

var AppConfig *Config

// ConsumabilityWait returns the bounded wait for L1-to-L2 message inclusion.
func (c *OrchestratorConfig) ConsumabilityWait() time.Duration {
	if c.ConsumabilityTimeout <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.ConsumabilityTimeout) * time.Second
}

// ExitWait returns the bounded wait for L2-to-L1 message availability.
func (c *OrchestratorConfig) ExitWait() time.Duration {
	if c.ExitTimeout <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.ExitTimeout) * time.Second
}

// Poll returns the polling interval for cross-layer waits.
func (c *OrchestratorConfig) Poll() time.Duration {
	if c.PollInterval <= 0 {
		return 50 * time.Millisecond
	}
	return time.Duration(c.PollInterval) * time.Millisecond
}

// BlockProduction returns the devnet L2 block interval.
func (c *BridgeConfig) BlockProduction() time.Duration {
	if c.BlockInterval <= 0 {
		return 100 * time.Millisecond
	}
	return time.Duration(c.BlockInterval) * time.Millisecond
}

// LoadConfig loads the configuration file and applies environment overrides.
func LoadConfig(configPath string) error {
	if configPath == "" {
		configPath = "config.yaml"
		if _, err := os.Stat("config.local.yaml"); err == nil {
			configPath = "config.local.yaml"
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	overrideFromEnv(&config)

	AppConfig = &config
	return nil
}

// overrideFromEnv applies environment variable overrides.
func overrideFromEnv(config *Config) {
	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		config.Database.DSN = dsn
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		config.NATS.URL = natsURL
	}
	if natsTimeout := os.Getenv("NATS_TIMEOUT"); natsTimeout != "" {
		if t, err := strconv.Atoi(natsTimeout); err == nil {
			config.NATS.Timeout = t
		}
	}
	if oracleURL := os.Getenv("ORACLE_BASE_URL"); oracleURL != "" {
		config.Oracle.BaseURL = oracleURL
	}
	if signerKey := os.Getenv("ORACLE_SIGNER_KEY"); signerKey != "" {
		config.Oracle.SignerKey = signerKey
	}
	if attester := os.Getenv("BRIDGE_ATTESTER"); attester != "" {
		config.Bridge.Attester = attester
	}
	if circuitID := os.Getenv("BRIDGE_CIRCUIT_ID"); circuitID != "" {
		config.Bridge.CircuitID = circuitID
	}
	if chainID := os.Getenv("BRIDGE_L1_CHAIN_ID"); chainID != "" {
		if id, err := strconv.ParseUint(chainID, 10, 64); err == nil {
			config.Bridge.L1ChainID = id
		}
	}
	if jwtSecret := os.Getenv("JWT_SECRET"); jwtSecret != "" {
		config.Auth.JWTSecret = jwtSecret
	}
	if totpSecret := os.Getenv("ADMIN_TOTP_SECRET"); totpSecret != "" {
		config.Admin.TOTPSecret = totpSecret
	}
}
