package issuance

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
	orch     *Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := stakekit.DefaultConfig()
	cfg.CheckpointBackoff = time.Millisecond

	client := ledgertest.NewClient()
	kv := memory.New()
	identities := identity.New(kv, nil)
	guard := funding.New(cfg, client, identities, nil)
	reg := registry.New(cfg, client, kv, identities, guard, nil)
	accounts := account.New(cfg, client, nil)

	wallet, err := ledgertest.NewWallet()
	require.NoError(t, err)
	client.FundNative(wallet.Address(), stakekit.UnitsPerNative) // 1 native

	return &fixture{
		cfg:      cfg,
		client:   client,
		wallet:   wallet,
		registry: reg,
		orch:     New(cfg, client, identities, reg, accounts, guard, nil),
	}
}

func (f *fixture) holding(t *testing.T, owner stakekit.Address) stakekit.Address {
	t.Helper()
	asset, err := f.registry.ResolveOrCreate(context.Background())
	require.NoError(t, err)
	return account.Derive(owner, asset)
}

func TestIssueMintsAfterPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	price := f.cfg.PriceFor(100) // 0.1 native
	receipt, err := f.orch.Issue(ctx, f.wallet, 100, price)
	require.NoError(t, err)
	require.NotEmpty(t, receipt)

	// Requester paid the price.
	balance, err := f.client.GetBalance(ctx, f.wallet.Address())
	require.NoError(t, err)
	assert.Equal(t, stakekit.UnitsPerNative-f.cfg.NativeBaseUnits(price), balance)

	// And received the minted units.
	holding := f.holding(t, f.wallet.Address())
	assert.Equal(t, uint64(100_000_000), f.client.HoldingBalance(holding))
}

func TestIssueRejectsNonPositiveAmounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.orch.Issue(ctx, f.wallet, 0, 1)
	assert.Equal(t, errors.INVALID_AMOUNT, errors.CodeOf(err))

	_, err = f.orch.Issue(ctx, f.wallet, 100, 0)
	assert.Equal(t, errors.INVALID_AMOUNT, errors.CodeOf(err))

	assert.Empty(t, f.client.Submitted())
}

func TestPaymentFailureLeavesBalancesUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.wallet.RejectNext = true
	_, err := f.orch.Issue(ctx, f.wallet, 100, 0.1)
	require.Error(t, err)
	assert.Equal(t, errors.PAYMENT_FAILED, errors.CodeOf(err))

	balance, err := f.client.GetBalance(ctx, f.wallet.Address())
	require.NoError(t, err)
	assert.Equal(t, stakekit.UnitsPerNative, balance)
	assert.Zero(t, f.client.CountKind(ledger.KindMintTo))
	assert.Zero(t, f.client.CountKind(ledger.KindNativeTransfer))
}

func TestCheckpointRetriesExhaust(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Resolve the registration up front so the injected failures hit the
	// payment phase, not asset creation.
	_, err := f.registry.ResolveOrCreate(ctx)
	require.NoError(t, err)

	f.client.FailCheckpoints = 3
	_, err = f.orch.Issue(ctx, f.wallet, 100, 0.1)
	require.Error(t, err)
	assert.Equal(t, errors.CHECKPOINT_UNAVAILABLE, errors.CodeOf(err))

	// All three attempts were consumed, none left over.
	assert.Zero(t, f.client.FailCheckpoints)

	balance, err := f.client.GetBalance(ctx, f.wallet.Address())
	require.NoError(t, err)
	assert.Equal(t, stakekit.UnitsPerNative, balance)
}

func TestIssuanceFailureAfterPaymentCarriesReceipt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.registry.ResolveOrCreate(ctx)
	require.NoError(t, err)

	f.client.FailMint = assert.AnError
	_, err = f.orch.Issue(ctx, f.wallet, 100, 0.1)
	require.Error(t, err)
	assert.Equal(t, errors.ISSUANCE_AFTER_PAYMENT_FAILED, errors.CodeOf(err))

	var ske *errors.StakeKitError
	require.True(t, errors.As(err, &ske))
	paymentTx, ok := ske.PaymentTx()
	require.True(t, ok)
	assert.NotEmpty(t, paymentTx)

	// The payment really happened.
	balance, err := f.client.GetBalance(ctx, f.wallet.Address())
	require.NoError(t, err)
	assert.Equal(t, stakekit.UnitsPerNative-f.cfg.NativeBaseUnits(0.1), balance)

	// Recovery path: mint only, no second charge.
	f.client.FailMint = nil
	_, err = f.orch.MintPurchased(ctx, f.wallet.Address(), 100)
	require.NoError(t, err)

	after, err := f.client.GetBalance(ctx, f.wallet.Address())
	require.NoError(t, err)
	assert.Equal(t, balance, after)

	holding := f.holding(t, f.wallet.Address())
	assert.Equal(t, uint64(100_000_000), f.client.HoldingBalance(holding))
}

func TestIssueRoundsToNearestBaseUnit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// 0.0000017 tokens is 1.7 base units: nearest-rounding mints 2 where a
	// floor would mint 1.
	_, err := f.orch.Issue(ctx, f.wallet, 0.0000017, 0.1)
	require.NoError(t, err)

	holding := f.holding(t, f.wallet.Address())
	assert.Equal(t, uint64(2), f.client.HoldingBalance(holding))
}
