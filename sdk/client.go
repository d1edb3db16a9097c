// Package sdk composes the StakeKit components into a single client: the
// persistent authority identity, the asset registry, the funding guard, the
// holding-account resolver, the issuance orchestrator, and the staking
// ledger.
package sdk

import (
	"context"

	"github.com/sirupsen/logrus"

	stakekit "github.com/solstake/stakekit-go"
	"github.com/solstake/stakekit-go/account"
	"github.com/solstake/stakekit-go/funding"
	"github.com/solstake/stakekit-go/identity"
	"github.com/solstake/stakekit-go/issuance"
	"github.com/solstake/stakekit-go/registry"
	"github.com/solstake/stakekit-go/staking"
)

// Client is the entry point for issuing the asset and managing staking
// positions. All state lives in the client and its durable store; there are
// no package-level singletons, so independent clients (and tests) never
// share state.
type Client struct {
	cfg    stakekit.Config
	client stakekit.LedgerClient
	store  stakekit.Store
	log    *logrus.Entry
	clock  stakekit.Clock

	identities *identity.Store
	guard      *funding.Guard
	registry   *registry.Resolver
	accounts   *account.Resolver
	issuer     *issuance.Orchestrator
	staking    *staking.Ledger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the structured logger for all components.
func WithLogger(log *logrus.Entry) Option {
	return func(c *Client) {
		c.log = log
	}
}

// WithClock injects a time source, used by tests to drive reward accrual
// deterministically.
func WithClock(clock stakekit.Clock) Option {
	return func(c *Client) {
		c.clock = clock
	}
}

// New creates a client over the given configuration, durable store, and
// ledger client.
func New(cfg stakekit.Config, store stakekit.Store, client stakekit.LedgerClient, opts ...Option) *Client {
	c := &Client{
		cfg:    cfg,
		client: client,
		store:  store,
		log:    stakekit.NopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.identities = identity.New(store, c.log)
	c.guard = funding.New(cfg, client, c.identities, c.log)
	c.registry = registry.New(cfg, client, store, c.identities, c.guard, c.log)
	c.accounts = account.New(cfg, client, c.log)
	c.issuer = issuance.New(cfg, client, c.identities, c.registry, c.accounts, c.guard, c.log)
	c.staking = staking.New(cfg, client, store, c.identities, c.registry, c.accounts, c.guard, c.clock, c.log)
	return c
}

// Config returns the client's configuration.
func (c *Client) Config() stakekit.Config {
	return c.cfg
}

// AuthorityAddress returns the authority's ledger address, creating the
// identity on first use.
func (c *Client) AuthorityAddress(ctx context.Context) (stakekit.Address, error) {
	authority, err := c.identities.Authority(ctx)
	if err != nil {
		return "", err
	}
	return authority.Address(), nil
}

// AuthorityBalance returns the authority's native balance in whole units.
func (c *Client) AuthorityBalance(ctx context.Context) (float64, error) {
	return c.guard.Balance(ctx)
}

// Issue purchases amount asset units for the wallet's owner at the given
// native price and returns the payment transaction id as the receipt.
// See issuance.Orchestrator.Issue for the two-phase failure semantics.
func (c *Client) Issue(ctx context.Context, wallet stakekit.WalletSigner, amount, price float64) (stakekit.TxID, error) {
	return c.issuer.Issue(ctx, wallet, amount, price)
}

// MintPurchased re-runs only the issuance phase of a purchase whose payment
// already confirmed, without charging again.
func (c *Client) MintPurchased(ctx context.Context, requester stakekit.Address, amount float64) (stakekit.TxID, error) {
	return c.issuer.MintPurchased(ctx, requester, amount)
}

// Stake moves amount asset units from the wallet's owner into the pool.
func (c *Client) Stake(ctx context.Context, wallet stakekit.WalletSigner, amount float64) (stakekit.TxID, error) {
	return c.staking.Stake(ctx, wallet, amount)
}

// Unstake returns amount staked units plus any live rewards to the owner.
func (c *Client) Unstake(ctx context.Context, owner stakekit.Address, amount float64) (stakekit.TxID, error) {
	return c.staking.Unstake(ctx, owner, amount)
}

// ClaimRewards mints the owner's accrued rewards without touching the stake.
func (c *Client) ClaimRewards(ctx context.Context, owner stakekit.Address) (stakekit.TxID, error) {
	return c.staking.ClaimRewards(ctx, owner)
}

// Position returns the owner's live staking position.
func (c *Client) Position(ctx context.Context, owner stakekit.Address) (stakekit.Position, error) {
	return c.staking.Position(ctx, owner)
}

// AssetBalance returns the owner's asset balance in whole units. An owner
// whose holding account was never created reports zero; that absence is a
// deliberate non-error.
func (c *Client) AssetBalance(ctx context.Context, owner stakekit.Address) (float64, error) {
	asset, err := c.registry.ResolveOrCreate(ctx)
	if err != nil {
		return 0, err
	}
	info, err := c.client.GetAccountInfo(ctx, account.Derive(owner, asset))
	if err != nil {
		return 0, err
	}
	if info == nil {
		return 0, nil
	}
	return c.cfg.WholeUnits(info.Balance), nil
}

// Airdrop requests native whole units from the network faucet for an
// arbitrary address and waits for confirmation. Provided for test-currency
// helpers; the authority's own funding goes through the funding guard.
func (c *Client) Airdrop(ctx context.Context, addr stakekit.Address, amount float64) (stakekit.TxID, error) {
	id, err := c.client.RequestAirdrop(ctx, addr, c.cfg.NativeBaseUnits(amount))
	if err != nil {
		return "", err
	}
	if err := c.client.ConfirmTransaction(ctx, id, c.cfg.Commitment); err != nil {
		return "", err
	}
	return id, nil
}
