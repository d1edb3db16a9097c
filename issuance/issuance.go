// Package issuance sequences the two-phase purchase flow: collect a native
// currency payment from the requester, then mint asset units to the
// requester's holding account.
//
// The two phases are deliberately not atomic: there is no on-chain program
// tying them together. A payment-phase failure means nothing happened and the
// purchase is safe to retry. An issuance-phase failure after a confirmed
// payment is a recognized inconsistent state (money taken, asset not
// delivered); it surfaces as ISSUANCE_AFTER_PAYMENT_FAILED carrying the
// payment receipt, and MintPurchased offers the retry-issuance-only path that
// completes delivery without re-charging.
package issuance

import (
	"context"
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

const component = "issuance"

// Orchestrator runs purchase flows against the ledger.
type Orchestrator struct {
	cfg        stakekit.Config
	client     stakekit.LedgerClient
	identities *identity.Store
	registry   *registry.Resolver
	accounts   *account.Resolver
	guard      *funding.Guard
	log        *logrus.Entry
}

// New creates an issuance orchestrator. A nil log discards output.
func New(cfg stakekit.Config, client stakekit.LedgerClient, identities *identity.Store, reg *registry.Resolver, accounts *account.Resolver, guard *funding.Guard, log *logrus.Entry) *Orchestrator {
	if log == nil {
		log = stakekit.NopLogger()
	}
	return &Orchestrator{
		cfg:        cfg,
		client:     client,
		identities: identities,
		registry:   reg,
		accounts:   accounts,
		guard:      guard,
		log:        log,
	}
}

// Issue purchases amount asset units for the wallet's owner at the given
// native currency price. The price is supplied by the caller (typically
// Config.PriceFor) and is trusted as-is; the orchestrator does not recompute
// it.
//
// Phase one transfers price from the requester to the authority, signed by
// the requester's wallet, and waits for confirmation. Phase two runs only
// after payment confirms: it mints round(amount * 10^decimals) base units to
// the requester's holding account, signed by the authority.
//
// The returned TxID is the payment transaction's identifier, the operation's
// receipt.
func (o *Orchestrator) Issue(ctx context.Context, wallet stakekit.WalletSigner, amount, price float64) (stakekit.TxID, error) {
	if amount <= 0 {
		return "", errors.New(component, errors.INVALID_AMOUNT, "purchase amount must be positive", nil)
	}
	if price <= 0 {
		return "", errors.New(component, errors.INVALID_AMOUNT, "purchase price must be positive", nil)
	}

	requester := wallet.Address()

	authority, err := o.identities.Authority(ctx)
	if err != nil {
		return "", err
	}
	asset, err := o.registry.ResolveOrCreate(ctx)
	if err != nil {
		return "", err
	}

	// Phase 1: payment. Any failure here leaves every balance untouched.
	checkpoint, err := o.latestCheckpoint(ctx)
	if err != nil {
		return "", err
	}

	payment := ledger.New(checkpoint, requester).
		Add(ledger.NativeTransfer(requester, authority.Address(), o.cfg.NativeBaseUnits(price)))
	envelope, err := payment.Bytes()
	if err != nil {
		return "", errors.New(component, errors.PAYMENT_FAILED, "failed to encode payment transaction", err)
	}

	o.log.WithFields(logrus.Fields{
		"requester": requester,
		"price":     price,
		"amount":    amount,
	}).Info("requesting payment signature")

	paymentID, err := wallet.SignAndSubmit(ctx, envelope, o.client)
	if err != nil {
		return "", errors.New(component, errors.PAYMENT_FAILED, "payment was rejected or not submitted", err)
	}
	if err := o.client.ConfirmTransaction(ctx, paymentID, o.cfg.Commitment); err != nil {
		return "", errors.New(component, errors.PAYMENT_FAILED, "payment was not confirmed", err).
			WithContext("tx", string(paymentID))
	}

	o.log.WithField("tx", paymentID).Info("payment confirmed")

	// Phase 2: issuance. Failures here happened after money moved.
	if _, err := o.mint(ctx, authority, asset, requester, amount); err != nil {
		return "", errors.New(component, errors.ISSUANCE_AFTER_PAYMENT_FAILED, "payment succeeded but issuance failed", err).
			WithPaymentTx(string(paymentID))
	}

	return paymentID, nil
}

// MintPurchased re-runs the issuance phase alone for a purchase whose payment
// already confirmed. Callers reach for it after an
// ISSUANCE_AFTER_PAYMENT_FAILED error; it never charges the requester.
func (o *Orchestrator) MintPurchased(ctx context.Context, requester stakekit.Address, amount float64) (stakekit.TxID, error) {
	if amount <= 0 {
		return "", errors.New(component, errors.INVALID_AMOUNT, "mint amount must be positive", nil)
	}
	authority, err := o.identities.Authority(ctx)
	if err != nil {
		return "", err
	}
	asset, err := o.registry.ResolveOrCreate(ctx)
	if err != nil {
		return "", err
	}
	return o.mint(ctx, authority, asset, requester, amount)
}

func (o *Orchestrator) mint(ctx context.Context, authority *ledger.Keypair, asset stakekit.Address, requester stakekit.Address, amount float64) (stakekit.TxID, error) {
	if err := o.guard.EnsureFunded(ctx); err != nil {
		return "", err
	}

	holding, err := o.accounts.ResolveOrCreate(ctx, authority, requester, asset)
	if err != nil {
		return "", err
	}

	checkpoint, err := o.client.GetLatestCheckpoint(ctx, o.cfg.Commitment)
	if err != nil {
		return "", errors.New(component, errors.NETWORK_UNAVAILABLE, "failed to fetch checkpoint for mint", err)
	}

	tx := ledger.New(checkpoint, authority.Address()).
		Add(ledger.MintTo(asset, holding, authority.Address(), o.cfg.BaseUnits(amount)))
	if err := tx.PartialSign(authority); err != nil {
		return "", errors.New(component, errors.NETWORK_UNAVAILABLE, "failed to sign mint", err)
	}
	raw, err := tx.Bytes()
	if err != nil {
		return "", errors.New(component, errors.NETWORK_UNAVAILABLE, "failed to encode mint", err)
	}

	id, err := o.client.SendRawTransaction(ctx, raw)
	if err != nil {
		return "", errors.New(component, errors.NETWORK_UNAVAILABLE, "mint submission failed", err)
	}
	if err := o.client.ConfirmTransaction(ctx, id, o.cfg.Commitment); err != nil {
		return "", errors.New(component, errors.NETWORK_UNAVAILABLE, "mint not confirmed", err).
			WithContext("tx", string(id))
	}

	o.log.WithFields(logrus.Fields{
		"requester": requester,
		"amount":    amount,
		"tx":        id,
	}).Info("asset units minted")
	return id, nil
}

// latestCheckpoint fetches a checkpoint with bounded retry: up to the
// configured number of attempts with a fixed backoff between them, surfacing
// CHECKPOINT_UNAVAILABLE on exhaustion.
func (o *Orchestrator) latestCheckpoint(ctx context.Context) (stakekit.Checkpoint, error) {
	var lastErr error
	for attempt := 0; attempt < o.cfg.CheckpointRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", errors.New(component, errors.CHECKPOINT_UNAVAILABLE, "checkpoint retrieval cancelled", ctx.Err())
			case <-time.After(o.cfg.CheckpointBackoff):
			}
		}
		checkpoint, err := o.client.GetLatestCheckpoint(ctx, o.cfg.Commitment)
		if err == nil {
			return checkpoint, nil
		}
		lastErr = err
		o.log.WithField("attempt", attempt+1).WithError(err).Warn("checkpoint fetch failed")
	}
	return "", errors.New(component, errors.CHECKPOINT_UNAVAILABLE, "checkpoint retrieval exhausted retries", lastErr)
}
