package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "BTC-USD", cfg.Product)
	assert.Equal(t, "ticker_data.csv", cfg.Output)
	assert.Equal(t, 5*time.Second, cfg.EMA.Interval)
	assert.Equal(t, 1024, cfg.Pipeline.RingACapacity)
	assert.Equal(t, 256, cfg.Pipeline.RingBCapacity)
}

func TestLoad_FlagOverridesEnv(t *testing.T) {
	t.Setenv("TICKERPIPE_PRODUCT", "ETH-USD")

	cfg, err := Load([]string{"--product", "SOL-USD"})
	require.NoError(t, err)

	assert.Equal(t, "SOL-USD", cfg.Product, "explicit CLI flag must win over env")
}

func TestLoad_EnvOverridesDefault(t *testing.T) {
	t.Setenv("TICKERPIPE_PRODUCT", "ETH-USD")

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "ETH-USD", cfg.Product)
}

func TestLoad_RejectsNonPowerOfTwoRingCapacity(t *testing.T) {
	t.Setenv("TICKERPIPE_RING_A_CAPACITY", "100")

	_, err := Load(nil)
	assert.Error(t, err)
}
