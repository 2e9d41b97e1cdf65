package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	Chain          string
	RPCURL         string
	PrivateKey     string
	AccountsFile   string
	MinGasGwei     float64
	MaxGasGwei     float64
	GasLimit       uint64
	Slippage       float64
	ConfirmTimeout time.Duration
	Workers        int
	LogLevel       string
	MetricsAddr    string
	RegistryFile   string
}

var globalConfig *Config

// Load reads configuration from environment variables and config file
func Load() (*Config, error) {
	viper.SetConfigName(".evm-swap")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME")
	viper.AddConfigPath(".")

	setDefaults(viper.GetViper())

	// Read from environment variables
	viper.SetEnvPrefix("EVM_SWAP")
	viper.AutomaticEnv()

	// Read config file (optional)
	_ = viper.ReadInConfig()

	cfg := fromViper(viper.GetViper())
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	globalConfig = cfg
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("chain", "bsc")
	v.SetDefault("min_gas_gwei", 1)
	v.SetDefault("max_gas_gwei", 10)
	v.SetDefault("gas_limit", 0)
	v.SetDefault("slippage", 0.01)
	v.SetDefault("confirm_timeout", "60s")
	v.SetDefault("workers", 4)
	v.SetDefault("log_level", "info")
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Chain:          v.GetString("chain"),
		RPCURL:         v.GetString("rpc_url"),
		PrivateKey:     v.GetString("private_key"),
		AccountsFile:   v.GetString("accounts_file"),
		MinGasGwei:     v.GetFloat64("min_gas_gwei"),
		MaxGasGwei:     v.GetFloat64("max_gas_gwei"),
		GasLimit:       v.GetUint64("gas_limit"),
		Slippage:       v.GetFloat64("slippage"),
		ConfirmTimeout: v.GetDuration("confirm_timeout"),
		Workers:        v.GetInt("workers"),
		LogLevel:       v.GetString("log_level"),
		MetricsAddr:    v.GetString("metrics_addr"),
		RegistryFile:   v.GetString("registry_file"),
	}
}

// Validate checks the settings every command depends on.
func (c *Config) Validate() error {
	if c.Chain == "" {
		return fmt.Errorf("chain is required")
	}
	if c.Slippage < 0 || c.Slippage >= 1 {
		return fmt.Errorf("slippage must be in [0, 1), got %v", c.Slippage)
	}
	if c.MinGasGwei < 0 || c.MinGasGwei > c.MaxGasGwei {
		return fmt.Errorf("invalid gas bounds: min %v gwei, max %v gwei", c.MinGasGwei, c.MaxGasGwei)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.ConfirmTimeout <= 0 {
		return fmt.Errorf("confirm_timeout must be positive, got %s", c.ConfirmTimeout)
	}
	return nil
}

// RequirePrivateKey fails unless a signing key is configured.
func (c *Config) RequirePrivateKey() error {
	if c.PrivateKey == "" {
		return fmt.Errorf("private key not found. Please set EVM_SWAP_PRIVATE_KEY environment variable or add private_key to .evm-swap.yaml")
	}
	return nil
}

// RequireAccountsFile fails unless a batch accounts file is configured.
func (c *Config) RequireAccountsFile() error {
	if c.AccountsFile == "" {
		return fmt.Errorf("accounts file not found. Please set EVM_SWAP_ACCOUNTS_FILE environment variable or add accounts_file to .evm-swap.yaml")
	}
	return nil
}

// Get returns the global configuration
func Get() *Config {
	if globalConfig == nil {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
			os.Exit(1)
		}
		return cfg
	}
	return globalConfig
}

// Set updates the global configuration
func Set(cfg *Config) {
	globalConfig = cfg
}
