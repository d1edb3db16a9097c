package ledgertest

import (
	"context"
	"fmt"

	stakekit "github.com/solstake/stakekit-go"
	"github.com/solstake/stakekit-go/ledger"
)

// Wallet implements stakekit.WalletSigner with a locally generated keypair.
// Set RejectNext to simulate the user declining a signing prompt.
type Wallet struct {
	kp *ledger.Keypair

	// RejectNext makes the next SignAndSubmit fail without submitting.
	RejectNext bool
}

// NewWallet creates a wallet with a fresh keypair.
func NewWallet() (*Wallet, error) {
	kp, err := ledger.NewKeypair()
	if err != nil {
		return nil, err
	}
	return &Wallet{kp: kp}, nil
}

// Address returns the wallet's ledger address.
func (w *Wallet) Address() stakekit.Address {
	return w.kp.Address()
}

// SignAndSubmit parses the envelope, signs it with the wallet key, and
// submits it through the client.
func (w *Wallet) SignAndSubmit(ctx context.Context, envelope []byte, client stakekit.LedgerClient) (stakekit.TxID, error) {
	if w.RejectNext {
		w.RejectNext = false
		return "", fmt.Errorf("user rejected the transaction")
	}
	tx, err := ledger.Parse(envelope)
	if err != nil {
		return "", err
	}
	if err := tx.PartialSign(w.kp); err != nil {
		return "", err
	}
	raw, err := tx.Bytes()
	if err != nil {
		return "", err
	}
	return client.SendRawTransaction(ctx, raw)
}

// Verify that Wallet implements stakekit.WalletSigner
var _ stakekit.WalletSigner = (*Wallet)(nil)
