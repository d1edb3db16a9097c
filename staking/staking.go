// Package staking tracks per-owner staking positions and pairs every
// position change with a real balance-moving ledger transaction. Staked
// funds live in the authority's holding account, which acts as the pool;
// the position records themselves are local bookkeeping in the durable
// store.
//
// Rewards accrue continuously as staked * rate * elapsedMinutes. Accrual is
// evaluated on read and folded into the stored record only on a mutating
// action. Reward payouts round down to the smallest asset unit so a payout
// never exceeds what accrued; issuance rounding (ties to nearest) is the
// deliberate asymmetry on the purchase side.
package staking

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	stakekit "github.com/solstake/stakekit-go"
	"github.com/solstake/stakekit-go/account"
	"github.com/solstake/stakekit-go/errors"
	"github.com/solstake/stakekit-go/funding"
	"github.com/solstake/stakekit-go/identity"
	"github.com/solstake/stakekit-go/ledger"
	"github.com/solstake/stakekit-go/registry"
)

const component = "staking"

// positionKeyPrefix namespaces position records; one record per owner.
const positionKeyPrefix = "stakekit/position/"

// Ledger applies stake, unstake, and claim transitions and serves position
// reads. Each owner's record is mutated under that owner's lock; owners are
// independent and never block each other.
type Ledger struct {
	cfg        stakekit.Config
	client     stakekit.LedgerClient
	store      stakekit.Store
	identities *identity.Store
	registry   *registry.Resolver
	accounts   *account.Resolver
	guard      *funding.Guard
	clock      stakekit.Clock
	log        *logrus.Entry

	mu     sync.Mutex
	owners map[stakekit.Address]*sync.Mutex
}

// New creates a staking ledger. A nil clock uses wall-clock time; a nil log
// discards output.
func New(cfg stakekit.Config, client stakekit.LedgerClient, store stakekit.Store, identities *identity.Store, reg *registry.Resolver, accounts *account.Resolver, guard *funding.Guard, clock stakekit.Clock, log *logrus.Entry) *Ledger {
	if clock == nil {
		clock = time.Now
	}
	if log == nil {
		log = stakekit.NopLogger()
	}
	return &Ledger{
		cfg:        cfg,
		client:     client,
		store:      store,
		identities: identities,
		registry:   reg,
		accounts:   accounts,
		guard:      guard,
		clock:      clock,
		log:        log,
		owners:     make(map[stakekit.Address]*sync.Mutex),
	}
}

func positionKey(owner stakekit.Address) string {
	return positionKeyPrefix + string(owner)
}

// ownerLock returns the mutex guarding one owner's record.
func (l *Ledger) ownerLock(owner stakekit.Address) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.owners[owner]
	if !ok {
		lock = &sync.Mutex{}
		l.owners[owner] = lock
	}
	return lock
}

// load reads an owner's stored position. An absent record is a valid zero
// position stamped with the current time.
func (l *Ledger) load(ctx context.Context, owner stakekit.Address) (stakekit.Position, error) {
	raw, found, err := l.store.Get(ctx, positionKey(owner))
	if err != nil {
		return stakekit.Position{}, errors.New(component, errors.STORE_ERROR, "failed to read staking position", err)
	}
	if !found {
		return stakekit.Position{LastUpdate: l.clock()}, nil
	}
	var pos stakekit.Position
	if err := json.Unmarshal(raw, &pos); err != nil {
		return stakekit.Position{}, errors.New(component, errors.STORAGE_CORRUPTION, "staking position record is malformed", err).
			WithContext("owner", string(owner))
	}
	return pos, nil
}

func (l *Ledger) save(ctx context.Context, owner stakekit.Address, pos stakekit.Position) error {
	raw, err := json.Marshal(pos)
	if err != nil {
		return errors.New(component, errors.STORE_ERROR, "failed to encode staking position", err)
	}
	if err := l.store.Put(ctx, positionKey(owner), raw); err != nil {
		return errors.New(component, errors.STORE_ERROR, "failed to persist staking position", err)
	}
	return nil
}

// accrue returns pos with rewards evaluated at now. The stored record is not
// touched; folding happens only on mutating actions.
func (l *Ledger) accrue(pos stakekit.Position, now time.Time) stakekit.Position {
	elapsed := now.Sub(pos.LastUpdate).Minutes()
	if elapsed < 0 {
		elapsed = 0
	}
	pos.Rewards += pos.Staked * l.cfg.RewardRatePerMinute * elapsed
	return pos
}

// Position returns the owner's live position: stored state plus rewards
// accrued since the last update, without mutating storage.
func (l *Ledger) Position(ctx context.Context, owner stakekit.Address) (stakekit.Position, error) {
	lock := l.ownerLock(owner)
	lock.Lock()
	defer lock.Unlock()

	pos, err := l.load(ctx, owner)
	if err != nil {
		return stakekit.Position{}, err
	}
	live := l.accrue(pos, l.clock())
	live.LastUpdate = pos.LastUpdate
	return live, nil
}

// Stake transfers amount asset units from the owner's holding account to the
// pool, signed by the owner's wallet, and on confirmation increases the
// stored staked balance. Rewards accrued up to this point are folded into the
// stored rewards before the timestamp resets, so nothing already earned is
// lost.
func (l *Ledger) Stake(ctx context.Context, wallet stakekit.WalletSigner, amount float64) (stakekit.TxID, error) {
	if amount <= 0 {
		return "", errors.New(component, errors.INVALID_AMOUNT, "stake amount must be positive", nil)
	}

	owner := wallet.Address()
	lock := l.ownerLock(owner)
	lock.Lock()
	defer lock.Unlock()

	pos, err := l.load(ctx, owner)
	if err != nil {
		return "", err
	}

	authority, asset, err := l.resolve(ctx)
	if err != nil {
		return "", err
	}
	if err := l.guard.EnsureFunded(ctx); err != nil {
		return "", err
	}

	ownerHolding, err := l.accounts.ResolveOrCreate(ctx, authority, owner, asset)
	if err != nil {
		return "", err
	}
	pool, err := l.accounts.ResolveOrCreate(ctx, authority, authority.Address(), asset)
	if err != nil {
		return "", err
	}

	checkpoint, err := l.client.GetLatestCheckpoint(ctx, l.cfg.Commitment)
	if err != nil {
		return "", errors.New(component, errors.NETWORK_UNAVAILABLE, "failed to fetch checkpoint for stake", err)
	}

	tx := ledger.New(checkpoint, owner).
		Add(ledger.AssetTransfer(ownerHolding, pool, owner, l.cfg.BaseUnits(amount)))
	envelope, err := tx.Bytes()
	if err != nil {
		return "", errors.New(component, errors.NETWORK_UNAVAILABLE, "failed to encode stake transfer", err)
	}

	id, err := wallet.SignAndSubmit(ctx, envelope, l.client)
	if err != nil {
		return "", errors.New(component, errors.NETWORK_UNAVAILABLE, "stake transfer was rejected or not submitted", err)
	}
	if err := l.client.ConfirmTransaction(ctx, id, l.cfg.Commitment); err != nil {
		return "", errors.New(component, errors.NETWORK_UNAVAILABLE, "stake transfer not confirmed", err).
			WithContext("tx", string(id))
	}

	now := l.clock()
	folded := l.accrue(pos, now)
	folded.Staked += amount
	folded.LastUpdate = now
	if err := l.save(ctx, owner, folded); err != nil {
		return "", err
	}

	l.log.WithFields(logrus.Fields{
		"owner":  owner,
		"amount": amount,
		"staked": folded.Staked,
		"tx":     id,
	}).Info("stake applied")
	return id, nil
}

// Unstake returns amount staked units from the pool to the owner and pays
// out any live rewards in the same authority-signed submission: a pool
// transfer plus, when the floored reward amount is positive, a mint directly
// to the owner. On confirmation the stored staked balance decreases, rewards
// reset to zero, and the timestamp resets.
func (l *Ledger) Unstake(ctx context.Context, owner stakekit.Address, amount float64) (stakekit.TxID, error) {
	if amount <= 0 {
		return "", errors.New(component, errors.INVALID_AMOUNT, "unstake amount must be positive", nil)
	}

	lock := l.ownerLock(owner)
	lock.Lock()
	defer lock.Unlock()

	pos, err := l.load(ctx, owner)
	if err != nil {
		return "", err
	}
	if amount > pos.Staked {
		return "", errors.New(component, errors.INVALID_AMOUNT, "unstake amount exceeds staked balance", nil).
			WithContext("staked", pos.Staked).
			WithContext("requested", amount)
	}

	now := l.clock()
	live := l.accrue(pos, now)
	rewardBase := l.cfg.BaseUnitsFloor(live.Rewards)

	authority, asset, err := l.resolve(ctx)
	if err != nil {
		return "", err
	}
	if err := l.guard.EnsureFunded(ctx); err != nil {
		return "", err
	}

	ownerHolding, err := l.accounts.ResolveOrCreate(ctx, authority, owner, asset)
	if err != nil {
		return "", err
	}
	pool, err := l.accounts.ResolveOrCreate(ctx, authority, authority.Address(), asset)
	if err != nil {
		return "", err
	}

	checkpoint, err := l.client.GetLatestCheckpoint(ctx, l.cfg.Commitment)
	if err != nil {
		return "", errors.New(component, errors.NETWORK_UNAVAILABLE, "failed to fetch checkpoint for unstake", err)
	}

	tx := ledger.New(checkpoint, authority.Address()).
		Add(ledger.AssetTransfer(pool, ownerHolding, authority.Address(), l.cfg.BaseUnits(amount)))
	if rewardBase > 0 {
		tx.Add(ledger.MintTo(asset, ownerHolding, authority.Address(), rewardBase))
	}
	if err := tx.PartialSign(authority); err != nil {
		return "", errors.New(component, errors.NETWORK_UNAVAILABLE, "failed to sign unstake", err)
	}
	raw, err := tx.Bytes()
	if err != nil {
		return "", errors.New(component, errors.NETWORK_UNAVAILABLE, "failed to encode unstake", err)
	}

	id, err := l.client.SendRawTransaction(ctx, raw)
	if err != nil {
		return "", errors.New(component, errors.NETWORK_UNAVAILABLE, "unstake submission failed", err)
	}
	if err := l.client.ConfirmTransaction(ctx, id, l.cfg.Commitment); err != nil {
		return "", errors.New(component, errors.NETWORK_UNAVAILABLE, "unstake not confirmed", err).
			WithContext("tx", string(id))
	}

	updated := stakekit.Position{
		Staked:     pos.Staked - amount,
		Rewards:    0,
		LastUpdate: now,
	}
	if err := l.save(ctx, owner, updated); err != nil {
		return "", err
	}

	l.log.WithFields(logrus.Fields{
		"owner":   owner,
		"amount":  amount,
		"rewards": live.Rewards,
		"tx":      id,
	}).Info("unstake applied")
	return id, nil
}

// ClaimRewards mints the floored live reward amount to the owner, leaving
// the staked balance untouched. Refused with INVALID_AMOUNT when nothing
// claimable has accrued.
func (l *Ledger) ClaimRewards(ctx context.Context, owner stakekit.Address) (stakekit.TxID, error) {
	lock := l.ownerLock(owner)
	lock.Lock()
	defer lock.Unlock()

	pos, err := l.load(ctx, owner)
	if err != nil {
		return "", err
	}

	now := l.clock()
	live := l.accrue(pos, now)
	rewardBase := l.cfg.BaseUnitsFloor(live.Rewards)
	if rewardBase == 0 {
		return "", errors.New(component, errors.INVALID_AMOUNT, "no claimable rewards accrued", nil)
	}

	authority, asset, err := l.resolve(ctx)
	if err != nil {
		return "", err
	}
	if err := l.guard.EnsureFunded(ctx); err != nil {
		return "", err
	}

	ownerHolding, err := l.accounts.ResolveOrCreate(ctx, authority, owner, asset)
	if err != nil {
		return "", err
	}

	checkpoint, err := l.client.GetLatestCheckpoint(ctx, l.cfg.Commitment)
	if err != nil {
		return "", errors.New(component, errors.NETWORK_UNAVAILABLE, "failed to fetch checkpoint for claim", err)
	}

	tx := ledger.New(checkpoint, authority.Address()).
		Add(ledger.MintTo(asset, ownerHolding, authority.Address(), rewardBase))
	if err := tx.PartialSign(authority); err != nil {
		return "", errors.New(component, errors.NETWORK_UNAVAILABLE, "failed to sign claim", err)
	}
	raw, err := tx.Bytes()
	if err != nil {
		return "", errors.New(component, errors.NETWORK_UNAVAILABLE, "failed to encode claim", err)
	}

	id, err := l.client.SendRawTransaction(ctx, raw)
	if err != nil {
		return "", errors.New(component, errors.NETWORK_UNAVAILABLE, "claim submission failed", err)
	}
	if err := l.client.ConfirmTransaction(ctx, id, l.cfg.Commitment); err != nil {
		return "", errors.New(component, errors.NETWORK_UNAVAILABLE, "claim not confirmed", err).
			WithContext("tx", string(id))
	}

	updated := stakekit.Position{
		Staked:     pos.Staked,
		Rewards:    0,
		LastUpdate: now,
	}
	if err := l.save(ctx, owner, updated); err != nil {
		return "", err
	}

	l.log.WithFields(logrus.Fields{
		"owner":   owner,
		"rewards": live.Rewards,
		"tx":      id,
	}).Info("rewards claimed")
	return id, nil
}

func (l *Ledger) resolve(ctx context.Context) (*ledger.Keypair, stakekit.Address, error) {
	authority, err := l.identities.Authority(ctx)
	if err != nil {
		return nil, "", err
	}
	asset, err := l.registry.ResolveOrCreate(ctx)
	if err != nil {
		return nil, "", err
	}
	return authority, asset, nil
}
