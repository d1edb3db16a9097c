// Package stakekit provides a Go SDK for issuing a fungible asset on a public
// ledger and tracking staking positions against it. It owns a persistent
// signing authority, provisions the asset registration exactly once under
// concurrent callers, sequences two-party purchase flows (a user-signed
// payment paired with an authority-signed mint), and computes time-based
// reward accrual over a per-owner staking ledger.
//
// The SDK does not talk to any particular network itself. The caller supplies
// a LedgerClient for chain access, a WalletSigner for end-user authorization,
// and a Store for durable local records; the SDK uses them.
package stakekit

import (
	"context"
	"time"
)

// Address is a ledger account address in its string encoding.
type Address string

// TxID identifies a submitted transaction.
type TxID string

// Checkpoint is a recent network state reference required to submit a valid
// transaction. Checkpoints expire quickly; they are fetched immediately before
// building a transaction.
type Checkpoint string

// Commitment is the confirmation level requested from the network.
type Commitment string

const (
	// CommitmentProcessed means the transaction was seen by a node.
	CommitmentProcessed Commitment = "processed"

	// CommitmentConfirmed means the transaction was voted on by a majority.
	CommitmentConfirmed Commitment = "confirmed"

	// CommitmentFinalized means the transaction is irreversible.
	CommitmentFinalized Commitment = "finalized"
)

// UnitsPerNative is the number of base units in one whole native currency unit.
const UnitsPerNative uint64 = 1_000_000_000

// ProgramAddress is the address reserved for the on-chain staking program.
// No program is deployed in this codebase; every invariant the SDK maintains
// is client-side bookkeeping, and the network's own state stays authoritative.
const ProgramAddress Address = "StakeProgram1111111111111111111111111111111"

// AccountInfo describes a ledger account as reported by the network.
// For holding accounts, Owner and Asset bind the account to its
// (owner, asset registration) pair and Balance is in the asset's smallest unit.
type AccountInfo struct {
	Address Address
	Owner   Address
	Asset   Address
	Balance uint64
}

// LedgerClient is the chain access contract the SDK consumes. Implementations
// wrap whatever RPC transport the application already uses.
//
// GetAccountInfo returns (nil, nil) for an account that does not exist;
// absence is a valid state, not an error.
type LedgerClient interface {
	// GetBalance returns the native-currency balance of an address in base
	// units. A never-funded address reports zero.
	GetBalance(ctx context.Context, addr Address) (uint64, error)

	// GetLatestCheckpoint fetches a recent checkpoint at the given commitment.
	GetLatestCheckpoint(ctx context.Context, commitment Commitment) (Checkpoint, error)

	// GetAccountInfo returns account details, or (nil, nil) if the account
	// does not exist on the network.
	GetAccountInfo(ctx context.Context, addr Address) (*AccountInfo, error)

	// SendRawTransaction submits a fully signed transaction envelope.
	SendRawTransaction(ctx context.Context, raw []byte) (TxID, error)

	// ConfirmTransaction blocks until the transaction reaches the given
	// commitment or the network reports an error. Callers bound the wait
	// through ctx; a context timeout does not mean the transaction did not
	// land, only that the client stopped waiting.
	ConfirmTransaction(ctx context.Context, id TxID, commitment Commitment) error

	// RequestAirdrop asks the network faucet to grant base units of native
	// currency to an address and returns the grant transaction.
	RequestAirdrop(ctx context.Context, addr Address, units uint64) (TxID, error)
}

// WalletSigner authorizes transactions on behalf of the end user. It is
// invoked only for owner-signed transfers; authority-signed transactions are
// signed locally and submitted directly, never through the wallet.
//
// The envelope is the canonical serialized form of an unsigned transaction
// (see the ledger package). The wallet signs it with the user's key and
// submits it through the provided client.
type WalletSigner interface {
	// Address returns the user's ledger address.
	Address() Address

	// SignAndSubmit signs the envelope and submits it, returning the
	// transaction id. It does not wait for confirmation.
	SignAndSubmit(ctx context.Context, envelope []byte, client LedgerClient) (TxID, error)
}

// Store is the durable key/value persistence contract for local records: the
// authority identity, the asset registration, and staking positions. Each
// record is namespaced by a stable key and stored as a serialized structure.
//
// Absence of a key is a valid "not yet created" state: Get returns
// (nil, false, nil), never an error, for a missing key.
type Store interface {
	// Get retrieves the value for key. The second return reports presence.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Put stores value under key, replacing any existing value.
	Put(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// Position is a per-owner staking record. Staked and Rewards are in whole
// asset units; both are non-negative. Rewards accrue continuously as
// staked * rate * elapsedMinutes and are evaluated on read, folded into the
// stored record only on a mutating action.
type Position struct {
	Staked     float64   `json:"staked"`
	Rewards    float64   `json:"rewards"`
	LastUpdate time.Time `json:"lastUpdate"`
}

// Clock abstracts wall-clock time so accrual can be tested deterministically.
type Clock func() time.Time
