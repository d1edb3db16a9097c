// Package registry resolves the on-ledger registration of the fungible
// asset. The registration is created at most once: concurrent first-time
// callers share a single in-flight creation through a single-flight group,
// since asset creation is an expensive, non-idempotent network operation and
// launching it twice would both waste authority funds and leave two distinct
// registrations referenced by different callers.
package registry

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	stakekit "github.com/solstake/stakekit-go"
	"github.com/solstake/stakekit-go/errors"
	"github.com/solstake/stakekit-go/funding"
	"github.com/solstake/stakekit-go/identity"
	"github.com/solstake/stakekit-go/ledger"
)

const component = "registry"

// storageKey namespaces the registration record in the durable store.
const storageKey = "stakekit/asset"

// flightKey is the single-flight key; there is only one asset per deployment.
const flightKey = "asset"

// Record is the persisted form of the asset registration.
type Record struct {
	Asset     stakekit.Address `json:"asset"`
	Authority stakekit.Address `json:"authority"`
	Decimals  int              `json:"decimals"`
	Name      string           `json:"name"`
	Symbol    string           `json:"symbol"`
	Network   string           `json:"network"`
	CreatedAt time.Time        `json:"createdAt"`
}

// Resolver resolves or creates the asset registration.
type Resolver struct {
	cfg        stakekit.Config
	client     stakekit.LedgerClient
	store      stakekit.Store
	identities *identity.Store
	guard      *funding.Guard
	log        *logrus.Entry

	flight singleflight.Group

	mu       sync.Mutex
	resolved stakekit.Address
}

// New creates a registry resolver. A nil log discards output.
func New(cfg stakekit.Config, client stakekit.LedgerClient, store stakekit.Store, identities *identity.Store, guard *funding.Guard, log *logrus.Entry) *Resolver {
	if log == nil {
		log = stakekit.NopLogger()
	}
	return &Resolver{
		cfg:        cfg,
		client:     client,
		store:      store,
		identities: identities,
		guard:      guard,
		log:        log,
	}
}

// ResolveOrCreate returns the asset registration address, creating the
// registration if it does not yet exist. Concurrent callers observe exactly
// one network creation and all receive the same address. A failed attempt
// clears the in-flight slot so a later call can retry.
func (r *Resolver) ResolveOrCreate(ctx context.Context) (stakekit.Address, error) {
	r.mu.Lock()
	if r.resolved != "" {
		addr := r.resolved
		r.mu.Unlock()
		return addr, nil
	}
	r.mu.Unlock()

	v, err, _ := r.flight.Do(flightKey, func() (any, error) {
		return r.resolveOrCreate(ctx)
	})
	if err != nil {
		return "", err
	}

	addr := v.(stakekit.Address)
	r.mu.Lock()
	r.resolved = addr
	r.mu.Unlock()
	return addr, nil
}

func (r *Resolver) resolveOrCreate(ctx context.Context) (stakekit.Address, error) {
	authority, err := r.identities.Authority(ctx)
	if err != nil {
		return "", err
	}

	raw, found, err := r.store.Get(ctx, storageKey)
	if err != nil {
		return "", errors.New(component, errors.STORE_ERROR, "failed to read asset record", err)
	}
	if found {
		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return "", errors.New(component, errors.STORAGE_CORRUPTION, "asset record is malformed", err)
		}
		if rec.Authority != authority.Address() {
			// A registration minted under a different key cannot be served
			// by this identity; surfacing beats silently re-creating.
			return "", errors.New(component, errors.STORAGE_CORRUPTION, "asset record authority does not match current identity", nil).
				WithContext("record_authority", string(rec.Authority)).
				WithContext("identity", string(authority.Address()))
		}

		info, err := r.client.GetAccountInfo(ctx, rec.Asset)
		if err != nil {
			return "", errors.New(component, errors.NETWORK_UNAVAILABLE, "failed to verify asset registration", err)
		}
		if info != nil {
			r.log.WithField("asset", rec.Asset).Info("using existing verified asset registration")
			return rec.Asset, nil
		}

		// Stale record: the registration never landed or the network was
		// reset. Discard and fall through to creation.
		r.log.WithField("asset", rec.Asset).Warn("persisted asset not found on network, creating a new one")
		if err := r.store.Delete(ctx, storageKey); err != nil {
			return "", errors.New(component, errors.STORE_ERROR, "failed to discard stale asset record", err)
		}
	}

	return r.create(ctx, authority)
}

func (r *Resolver) create(ctx context.Context, authority *ledger.Keypair) (stakekit.Address, error) {
	if err := r.guard.EnsureFunded(ctx); err != nil {
		return "", err
	}

	assetKey, err := ledger.NewKeypair()
	if err != nil {
		return "", errors.New(component, errors.CREATION_REJECTED, "failed to generate asset keypair", err)
	}

	checkpoint, err := r.client.GetLatestCheckpoint(ctx, r.cfg.Commitment)
	if err != nil {
		return "", errors.New(component, errors.NETWORK_UNAVAILABLE, "failed to fetch checkpoint for asset creation", err)
	}

	tx := ledger.New(checkpoint, authority.Address()).
		Add(ledger.CreateAsset(assetKey.Address(), authority.Address(), r.cfg.Decimals))
	if err := tx.PartialSign(authority, assetKey); err != nil {
		return "", errors.New(component, errors.CREATION_REJECTED, "failed to sign asset creation", err)
	}
	raw, err := tx.Bytes()
	if err != nil {
		return "", errors.New(component, errors.CREATION_REJECTED, "failed to encode asset creation", err)
	}

	id, err := r.client.SendRawTransaction(ctx, raw)
	if err != nil {
		return "", errors.New(component, errors.CREATION_REJECTED, "asset creation rejected", err)
	}
	if err := r.client.ConfirmTransaction(ctx, id, r.cfg.Commitment); err != nil {
		return "", errors.New(component, errors.CREATION_REJECTED, "asset creation not confirmed", err).
			WithContext("tx", string(id))
	}

	rec := Record{
		Asset:     assetKey.Address(),
		Authority: authority.Address(),
		Decimals:  r.cfg.Decimals,
		Name:      r.cfg.AssetName,
		Symbol:    r.cfg.AssetSymbol,
		Network:   r.cfg.Network,
		CreatedAt: time.Now().UTC(),
	}
	encoded, err := json.Marshal(rec)
	if err != nil {
		return "", errors.New(component, errors.STORE_ERROR, "failed to encode asset record", err)
	}
	if err := r.store.Put(ctx, storageKey, encoded); err != nil {
		return "", errors.New(component, errors.STORE_ERROR, "failed to persist asset record", err)
	}

	r.log.WithFields(logrus.Fields{
		"asset":     rec.Asset,
		"authority": rec.Authority,
		"tx":        id,
	}).Info("created asset registration")
	return rec.Asset, nil
}
