// Package ledger provides the transaction model shared by every component:
// instructions, transaction envelopes, digests, and keypair signing. The wire
// form is a canonical serialized envelope the ledger client submits as-is.
package ledger

import (
	"fmt"

	"github.com/stellar/go/keypair"

	stakekit "github.com/solstake/stakekit-go"
)

// Keypair wraps a signing keypair. The secret seed never leaves the wrapper
// except through Seed, which the identity store uses for persistence.
type Keypair struct {
	full *keypair.Full
}

// NewKeypair generates a fresh random keypair.
func NewKeypair() (*Keypair, error) {
	full, err := keypair.Random()
	if err != nil {
		return nil, fmt.Errorf("generate keypair: %w", err)
	}
	return &Keypair{full: full}, nil
}

// KeypairFromSeed reconstructs a keypair from its secret seed (S...).
// Returns an error if the seed is malformed.
func KeypairFromSeed(seed string) (*Keypair, error) {
	full, err := keypair.ParseFull(seed)
	if err != nil {
		return nil, fmt.Errorf("invalid secret seed: %w", err)
	}
	return &Keypair{full: full}, nil
}

// Address returns the public address for this keypair.
func (k *Keypair) Address() stakekit.Address {
	return stakekit.Address(k.full.Address())
}

// Seed returns the secret seed for persistence.
func (k *Keypair) Seed() string {
	return k.full.Seed()
}

// Sign signs an arbitrary message with the secret key.
func (k *Keypair) Sign(msg []byte) ([]byte, error) {
	return k.full.Sign(msg)
}

// Verify reports whether sig is a valid signature of msg by addr.
func Verify(addr stakekit.Address, msg, sig []byte) bool {
	kp, err := keypair.ParseAddress(string(addr))
	if err != nil {
		return false
	}
	return kp.Verify(msg, sig) == nil
}
