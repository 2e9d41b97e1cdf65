package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	cfg := fromViper(v)

	assert.Equal(t, "bsc", cfg.Chain)
	assert.Equal(t, 1.0, cfg.MinGasGwei)
	assert.Equal(t, 10.0, cfg.MaxGasGwei)
	assert.Zero(t, cfg.GasLimit)
	assert.Equal(t, 0.01, cfg.Slippage)
	assert.Equal(t, 60*time.Second, cfg.ConfirmTimeout)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.NoError(t, cfg.Validate())
	assert.Error(t, cfg.RequirePrivateKey())
	assert.Error(t, cfg.RequireAccountsFile())
}

func TestFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".evm-swap.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
chain: polygon
private_key: "0xabc"
max_gas_gwei: 50
slippage: 0.05
confirm_timeout: 90s
workers: 8
`), 0o600))

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())
	cfg := fromViper(v)

	assert.Equal(t, "polygon", cfg.Chain)
	assert.Equal(t, 50.0, cfg.MaxGasGwei)
	assert.Equal(t, 0.05, cfg.Slippage)
	assert.Equal(t, 90*time.Second, cfg.ConfirmTimeout)
	assert.Equal(t, 8, cfg.Workers)
	assert.NoError(t, cfg.RequirePrivateKey())
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{Chain: "bsc", MinGasGwei: 1, MaxGasGwei: 10, Slippage: 0.01, Workers: 1, ConfirmTimeout: time.Second}
	}
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"slippage one", func(c *Config) { c.Slippage = 1 }},
		{"negative slippage", func(c *Config) { c.Slippage = -0.1 }},
		{"min above max", func(c *Config) { c.MinGasGwei = 20 }},
		{"no workers", func(c *Config) { c.Workers = 0 }},
		{"no chain", func(c *Config) { c.Chain = "" }},
		{"no timeout", func(c *Config) { c.ConfirmTimeout = 0 }},
	}
	require.NoError(t, valid().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestEnvironment(t *testing.T) {
	t.Setenv("EVM_SWAP_CHAIN", "okc")
	t.Setenv("EVM_SWAP_WORKERS", "2")
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "okc", cfg.Chain)
	assert.Equal(t, 2, cfg.Workers)
	assert.Same(t, cfg, Get())
}
