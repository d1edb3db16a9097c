package stakekit

import (
	"math"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the tunable parameters of the SDK. Zero-config deployments use
// DefaultConfig; LoadConfig overlays values from the environment.
type Config struct {
	// AssetName and AssetSymbol label the fungible asset on its registration
	// record.
	AssetName   string `env:"STAKEKIT_ASSET_NAME" envDefault:"STAKE"`
	AssetSymbol string `env:"STAKEKIT_ASSET_SYMBOL" envDefault:"STAKE"`

	// Decimals is the asset's decimal precision; one whole unit is
	// 10^Decimals base units.
	Decimals int `env:"STAKEKIT_ASSET_DECIMALS" envDefault:"6"`

	// TokensPerNative is the purchase exchange rate: asset units granted per
	// whole native currency unit paid.
	TokensPerNative float64 `env:"STAKEKIT_TOKENS_PER_NATIVE" envDefault:"1000"`

	// RewardRatePerMinute is the staking accrual rate as a fraction of the
	// staked amount per minute. The canonical rate is 0.0001 (0.01%/minute).
	RewardRatePerMinute float64 `env:"STAKEKIT_REWARD_RATE_PER_MINUTE" envDefault:"0.0001"`

	// FundingThresholdNative is the minimum native balance, in whole units,
	// the authority must hold before signing paid operations.
	FundingThresholdNative float64 `env:"STAKEKIT_FUNDING_THRESHOLD" envDefault:"0.1"`

	// AirdropNative is the faucet grant requested, in whole units, when the
	// authority falls below the funding threshold.
	AirdropNative float64 `env:"STAKEKIT_AIRDROP_AMOUNT" envDefault:"2"`

	// Commitment is the confirmation level used for all submissions.
	Commitment Commitment `env:"STAKEKIT_COMMITMENT" envDefault:"confirmed"`

	// CheckpointRetries and CheckpointBackoff bound checkpoint retrieval
	// before a purchase fails with CHECKPOINT_UNAVAILABLE.
	CheckpointRetries int           `env:"STAKEKIT_CHECKPOINT_RETRIES" envDefault:"3"`
	CheckpointBackoff time.Duration `env:"STAKEKIT_CHECKPOINT_BACKOFF" envDefault:"1s"`

	// Network labels persisted records with the target network.
	Network string `env:"STAKEKIT_NETWORK" envDefault:"devnet"`
}

// DefaultConfig returns the built-in defaults without consulting the
// environment.
func DefaultConfig() Config {
	return Config{
		AssetName:              "STAKE",
		AssetSymbol:            "STAKE",
		Decimals:               6,
		TokensPerNative:        1000,
		RewardRatePerMinute:    0.0001,
		FundingThresholdNative: 0.1,
		AirdropNative:          2,
		Commitment:             CommitmentConfirmed,
		CheckpointRetries:      3,
		CheckpointBackoff:      time.Second,
		Network:                "devnet",
	}
}

// LoadConfig parses configuration from environment variables, falling back to
// the documented defaults for unset values.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// BaseUnits converts a whole asset amount to base units, rounding to the
// nearest unit with ties away from zero. Used for issuance amounts.
func (c Config) BaseUnits(amount float64) uint64 {
	return uint64(math.Round(amount * math.Pow10(c.Decimals)))
}

// BaseUnitsFloor converts a whole asset amount to base units, rounding down.
// Used for reward payouts so a payout never exceeds what accrued.
func (c Config) BaseUnitsFloor(amount float64) uint64 {
	return uint64(math.Floor(amount * math.Pow10(c.Decimals)))
}

// WholeUnits converts base units back to a whole asset amount.
func (c Config) WholeUnits(base uint64) float64 {
	return float64(base) / math.Pow10(c.Decimals)
}

// NativeBaseUnits converts a whole native currency amount to base units.
func (c Config) NativeBaseUnits(amount float64) uint64 {
	return uint64(math.Floor(amount * float64(UnitsPerNative)))
}

// PriceFor computes the native currency price for purchasing an asset amount
// at the configured exchange rate. The issuance orchestrator trusts the price
// it is handed; this helper is how callers are expected to derive it.
func (c Config) PriceFor(amount float64) float64 {
	return amount / c.TokensPerNative
}
