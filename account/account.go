// Package account resolves ledger-side holding accounts. A holding account
// binds one owner to one asset registration; its address is derived
// deterministically from the pair, so there is at most one per pair, and it
// is created lazily the first time it is needed.
package account

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/sirupsen/logrus"

	stakekit "github.com/solstake/stakekit-go"
	"github.com/solstake/stakekit-go/errors"
	"github.com/solstake/stakekit-go/ledger"
)

const component = "account"

// Derive computes the deterministic holding-account address for an
// (owner, asset) pair.
func Derive(owner, asset stakekit.Address) stakekit.Address {
	sum := sha256.Sum256([]byte(fmt.Sprintf("stakekit:holding:%s:%s", asset, owner)))
	return stakekit.Address(hex.EncodeToString(sum[:]))
}

// Resolver resolves or lazily creates holding accounts.
type Resolver struct {
	cfg    stakekit.Config
	client stakekit.LedgerClient
	log    *logrus.Entry
}

// New creates an account resolver. A nil log discards output.
func New(cfg stakekit.Config, client stakekit.LedgerClient, log *logrus.Entry) *Resolver {
	if log == nil {
		log = stakekit.NopLogger()
	}
	return &Resolver{cfg: cfg, client: client, log: log}
}

// ResolveOrCreate returns the holding account address for (owner, asset),
// creating the account with payer covering the cost if it does not exist.
// Safe to call repeatedly; creation is a no-op once the account exists.
func (r *Resolver) ResolveOrCreate(ctx context.Context, payer *ledger.Keypair, owner, asset stakekit.Address) (stakekit.Address, error) {
	addr := Derive(owner, asset)

	info, err := r.client.GetAccountInfo(ctx, addr)
	if err != nil {
		return "", errors.New(component, errors.ACCOUNT_RESOLUTION_FAILED, "failed to query holding account", err)
	}
	if info != nil {
		return addr, nil
	}

	checkpoint, err := r.client.GetLatestCheckpoint(ctx, r.cfg.Commitment)
	if err != nil {
		return "", errors.New(component, errors.ACCOUNT_RESOLUTION_FAILED, "failed to fetch checkpoint for account creation", err)
	}

	tx := ledger.New(checkpoint, payer.Address()).
		Add(ledger.CreateHolding(addr, owner, asset, payer.Address()))
	if err := tx.PartialSign(payer); err != nil {
		return "", errors.New(component, errors.ACCOUNT_RESOLUTION_FAILED, "failed to sign account creation", err)
	}
	raw, err := tx.Bytes()
	if err != nil {
		return "", errors.New(component, errors.ACCOUNT_RESOLUTION_FAILED, "failed to encode account creation", err)
	}

	id, err := r.client.SendRawTransaction(ctx, raw)
	if err != nil {
		return "", errors.New(component, errors.ACCOUNT_RESOLUTION_FAILED, "account creation rejected", err)
	}
	if err := r.client.ConfirmTransaction(ctx, id, r.cfg.Commitment); err != nil {
		return "", errors.New(component, errors.ACCOUNT_RESOLUTION_FAILED, "account creation not confirmed", err).
			WithContext("tx", string(id))
	}

	r.log.WithFields(logrus.Fields{
		"owner":   owner,
		"account": addr,
		"tx":      id,
	}).Info("created holding account")
	return addr, nil
}
