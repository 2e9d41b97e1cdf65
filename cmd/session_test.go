package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGweiToWei(t *testing.T) {
	assert.Equal(t, "1000000000", gweiToWei(1).String())
	assert.Equal(t, "10000000000", gweiToWei(10).String())
	assert.Equal(t, "1500000000", gweiToWei(1.5).String())
	assert.Equal(t, "0", gweiToWei(0).String())
}

func TestCommandsRegistered(t *testing.T) {
	for _, path := range [][]string{
		{"chains"}, {"list-tokens"}, {"tokens"}, {"balance"}, {"send"}, {"approve"},
		{"quote"}, {"swap"}, {"sell-floor"}, {"buy-listing"}, {"status"},
		{"honeypot"}, {"syrup"},
		{"batch", "distribute"}, {"batch", "collect"}, {"batch", "balances"},
	} {
		found, _, err := rootCmd.Find(path)
		require.NoError(t, err, path)
		assert.NotEqual(t, rootCmd, found, path)
	}
}

func TestPersistentFlags(t *testing.T) {
	for _, name := range []string{"chain", "verbose", "json", "log-level", "metrics-addr"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(name), name)
	}
}
