package staking

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stakekit "github.com/solstake/stakekit-go"
	"github.com/solstake/stakekit-go/account"
	"github.com/solstake/stakekit-go/errors"
	"github.com/solstake/stakekit-go/funding"
	"github.com/solstake/stakekit-go/identity"
	"github.com/solstake/stakekit-go/issuance"
	"github.com/solstake/stakekit-go/ledger"
	"github.com/solstake/stakekit-go/ledger/ledgertest"
	"github.com/solstake/stakekit-go/registry"
	"github.com/solstake/stakekit-go/store/memory"
)

type fixture struct {
	cfg      stakekit.Config
	client   *ledgertest.Client
	wallet   *ledgertest.Wallet
	registry *registry.Resolver
	staking  *Ledger
	now      *time.Time
}

// advance moves the fixture clock forward.
func (f *fixture) advance(d time.Duration) {
	*f.now = f.now.Add(d)
}

// holding returns the wallet owner's derived holding account address.
func (f *fixture) holding(t *testing.T) stakekit.Address {
	t.Helper()
	asset, err := f.registry.ResolveOrCreate(context.Background())
	require.NoError(t, err)
	return account.Derive(f.wallet.Address(), asset)
}

// newFixture wires a staking ledger over the fake chain and funds the owner
// with an initial token balance via the issuance path.
func newFixture(t *testing.T, initialTokens float64) *fixture {
	t.Helper()
	cfg := stakekit.DefaultConfig()
	cfg.CheckpointBackoff = time.Millisecond

	client := ledgertest.NewClient()
	kv := memory.New()
	identities := identity.New(kv, nil)
	guard := funding.New(cfg, client, identities, nil)
	reg := registry.New(cfg, client, kv, identities, guard, nil)
	accounts := account.New(cfg, client, nil)

	start := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	now := &start
	clock := func() time.Time { return *now }

	wallet, err := ledgertest.NewWallet()
	require.NoError(t, err)
	client.FundNative(wallet.Address(), stakekit.UnitsPerNative)

	if initialTokens > 0 {
		orch := issuance.New(cfg, client, identities, reg, accounts, guard, nil)
		_, err := orch.MintPurchased(context.Background(), wallet.Address(), initialTokens)
		require.NoError(t, err)
	}

	return &fixture{
		cfg:      cfg,
		client:   client,
		wallet:   wallet,
		registry: reg,
		staking:  New(cfg, client, kv, identities, reg, accounts, guard, clock, nil),
		now:      now,
	}
}

func TestStakeMovesTokensIntoPool(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()

	before := f.client.HoldingBalance(f.holding(t))
	require.Equal(t, uint64(100_000_000), before)

	_, err := f.staking.Stake(ctx, f.wallet, 40)
	require.NoError(t, err)

	assert.Equal(t, uint64(60_000_000), f.client.HoldingBalance(f.holding(t)))

	pos, err := f.staking.Position(ctx, f.wallet.Address())
	require.NoError(t, err)
	assert.InDelta(t, 40, pos.Staked, 1e-9)
	assert.Zero(t, pos.Rewards)
}

func TestStakeThenImmediateUnstakeRestoresBalance(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()

	_, err := f.staking.Stake(ctx, f.wallet, 100)
	require.NoError(t, err)
	_, err = f.staking.Unstake(ctx, f.wallet.Address(), 100)
	require.NoError(t, err)

	assert.Equal(t, uint64(100_000_000), f.client.HoldingBalance(f.holding(t)))

	pos, err := f.staking.Position(ctx, f.wallet.Address())
	require.NoError(t, err)
	assert.Zero(t, pos.Staked)
	assert.Zero(t, pos.Rewards)

	// No time passed, so no rewards were minted; the only mint on record
	// is the fixture's initial funding.
	assert.Equal(t, 1, f.client.CountKind(ledger.KindMintTo))
}

func TestRewardsAccrueOverTime(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()

	_, err := f.staking.Stake(ctx, f.wallet, 100)
	require.NoError(t, err)

	f.advance(30 * time.Minute)
	early, err := f.staking.Position(ctx, f.wallet.Address())
	require.NoError(t, err)

	f.advance(30 * time.Minute)
	later, err := f.staking.Position(ctx, f.wallet.Address())
	require.NoError(t, err)

	assert.Greater(t, later.Rewards, early.Rewards)
	// 100 staked for 60 minutes at 0.0001 per minute.
	assert.InDelta(t, 0.6, later.Rewards, 1e-9)
	// Reads never fold; the stored timestamp is still the stake time.
	assert.Equal(t, early.LastUpdate, later.LastUpdate)
}

func TestClaimMintsFlooredRewards(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()

	_, err := f.staking.Stake(ctx, f.wallet, 100)
	require.NoError(t, err)

	f.advance(60 * time.Minute)
	_, err = f.staking.ClaimRewards(ctx, f.wallet.Address())
	require.NoError(t, err)

	// 0.6 rewards = 600000 base units on top of the 0 left after staking all.
	assert.Equal(t, uint64(600_000), f.client.HoldingBalance(f.holding(t)))

	pos, err := f.staking.Position(ctx, f.wallet.Address())
	require.NoError(t, err)
	assert.InDelta(t, 100, pos.Staked, 1e-9)
	assert.Zero(t, pos.Rewards)
}

func TestClaimWithNothingAccruedIsRefused(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()

	_, err := f.staking.Stake(ctx, f.wallet, 100)
	require.NoError(t, err)

	submitted := len(f.client.Submitted())
	_, err = f.staking.ClaimRewards(ctx, f.wallet.Address())
	require.Error(t, err)
	assert.Equal(t, errors.INVALID_AMOUNT, errors.CodeOf(err))
	assert.Len(t, f.client.Submitted(), submitted)
}

func TestUnstakePaysPrincipalAndRewards(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()

	_, err := f.staking.Stake(ctx, f.wallet, 100)
	require.NoError(t, err)

	f.advance(60 * time.Minute)
	_, err = f.staking.Unstake(ctx, f.wallet.Address(), 25)
	require.NoError(t, err)

	// 25 principal back plus floor(0.6 * 10^6) reward base units.
	assert.Equal(t, uint64(25_000_000+600_000), f.client.HoldingBalance(f.holding(t)))

	pos, err := f.staking.Position(ctx, f.wallet.Address())
	require.NoError(t, err)
	assert.InDelta(t, 75, pos.Staked, 1e-9)
	// A partial unstake still zeroes the reward balance.
	assert.Zero(t, pos.Rewards)
}

func TestRewardPayoutNeverExceedsAccrual(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()

	_, err := f.staking.Stake(ctx, f.wallet, 100)
	require.NoError(t, err)

	// 100 * 0.0001 * 7.5 minutes = 0.075 rewards.
	f.advance(7*time.Minute + 30*time.Second)
	pos, err := f.staking.Position(ctx, f.wallet.Address())
	require.NoError(t, err)

	_, err = f.staking.ClaimRewards(ctx, f.wallet.Address())
	require.NoError(t, err)

	paid := f.client.HoldingBalance(f.holding(t))
	assert.LessOrEqual(t, float64(paid), pos.Rewards*1e6)
	assert.InDelta(t, 75_000, float64(paid), 1)
}

func TestUnstakeBeyondStakedIsRefusedBeforeNetwork(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()

	_, err := f.staking.Stake(ctx, f.wallet, 100)
	require.NoError(t, err)

	submitted := len(f.client.Submitted())
	_, err = f.staking.Unstake(ctx, f.wallet.Address(), 150)
	require.Error(t, err)
	assert.Equal(t, errors.INVALID_AMOUNT, errors.CodeOf(err))
	assert.Len(t, f.client.Submitted(), submitted)
}

func TestStakeRejectsNonPositiveAmount(t *testing.T) {
	f := newFixture(t, 100)

	_, err := f.staking.Stake(context.Background(), f.wallet, 0)
	require.Error(t, err)
	assert.Equal(t, errors.INVALID_AMOUNT, errors.CodeOf(err))
}

func TestPositionForUnknownOwnerIsZero(t *testing.T) {
	f := newFixture(t, 0)

	pos, err := f.staking.Position(context.Background(), "GUNKNOWN")
	require.NoError(t, err)
	assert.Zero(t, pos.Staked)
	assert.Zero(t, pos.Rewards)
}

func TestRestakeFoldsAccruedRewards(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()

	_, err := f.staking.Stake(ctx, f.wallet, 50)
	require.NoError(t, err)

	f.advance(60 * time.Minute)
	_, err = f.staking.Stake(ctx, f.wallet, 50)
	require.NoError(t, err)

	// 50 * 0.0001 * 60 = 0.3 earned before the second stake survives the
	// timestamp reset.
	pos, err := f.staking.Position(ctx, f.wallet.Address())
	require.NoError(t, err)
	assert.InDelta(t, 100, pos.Staked, 1e-9)
	assert.InDelta(t, 0.3, pos.Rewards, 1e-9)
}

func TestMalformedPositionRecordIsSurfaced(t *testing.T) {
	cfg := stakekit.DefaultConfig()
	client := ledgertest.NewClient()
	kv := memory.New()
	identities := identity.New(kv, nil)
	guard := funding.New(cfg, client, identities, nil)
	reg := registry.New(cfg, client, kv, identities, guard, nil)
	accounts := account.New(cfg, client, nil)
	l := New(cfg, client, kv, identities, reg, accounts, guard, nil, nil)

	ctx := context.Background()
	require.NoError(t, kv.Put(ctx, "stakekit/position/GOWNER", []byte("{broken")))

	_, err := l.Position(ctx, "GOWNER")
	require.Error(t, err)
	assert.Equal(t, errors.STORAGE_CORRUPTION, errors.CodeOf(err))
}
