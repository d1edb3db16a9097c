package stakekit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBaseUnitsRoundsTiesAwayFromZero(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, uint64(1_500_000), cfg.BaseUnits(1.5))
	assert.Equal(t, uint64(2), cfg.BaseUnits(0.0000015))
	assert.Equal(t, uint64(1), cfg.BaseUnits(0.0000014))
}

func TestBaseUnitsFloorNeverRoundsUp(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, uint64(599_999), cfg.BaseUnitsFloor(0.5999999))
	assert.Equal(t, uint64(0), cfg.BaseUnitsFloor(0.0000009))
}

func TestWholeUnits(t *testing.T) {
	cfg := DefaultConfig()

	assert.InDelta(t, 1.5, cfg.WholeUnits(1_500_000), 1e-9)
}

func TestPriceFor(t *testing.T) {
	cfg := DefaultConfig()

	// 1000 tokens per native: 100 tokens cost 0.1 native.
	assert.InDelta(t, 0.1, cfg.PriceFor(100), 1e-9)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 6, cfg.Decimals)
	assert.Equal(t, 0.0001, cfg.RewardRatePerMinute)
	assert.Equal(t, CommitmentConfirmed, cfg.Commitment)
	assert.Equal(t, 3, cfg.CheckpointRetries)
}

func TestLoadConfigReadsEnvironment(t *testing.T) {
	t.Setenv("STAKEKIT_ASSET_DECIMALS", "9")
	t.Setenv("STAKEKIT_REWARD_RATE_PER_MINUTE", "0.001")

	cfg, err := LoadConfig()
	assert.NoError(t, err)
	assert.Equal(t, 9, cfg.Decimals)
	assert.Equal(t, 0.001, cfg.RewardRatePerMinute)
	assert.Equal(t, "STAKE", cfg.AssetName)
}
