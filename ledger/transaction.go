package ledger

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"

	stakekit "github.com/solstake/stakekit-go"
)

// InstructionKind discriminates the operations a transaction can carry.
type InstructionKind string

const (
	// KindNativeTransfer moves native currency base units between addresses.
	KindNativeTransfer InstructionKind = "native_transfer"

	// KindCreateAsset registers a new fungible asset class under an authority.
	KindCreateAsset InstructionKind = "create_asset"

	// KindCreateHolding creates a holding account binding an owner to an asset.
	KindCreateHolding InstructionKind = "create_holding"

	// KindAssetTransfer moves asset base units between holding accounts,
	// authorized by the source account's owner.
	KindAssetTransfer InstructionKind = "asset_transfer"

	// KindMintTo mints new asset base units to a holding account, authorized
	// by the asset's authority.
	KindMintTo InstructionKind = "mint_to"
)

// Instruction is one operation within a transaction. Fields are populated
// per kind; unused fields are omitted from the wire form.
type Instruction struct {
	Kind      InstructionKind  `json:"kind"`
	From      stakekit.Address `json:"from,omitempty"`
	To        stakekit.Address `json:"to,omitempty"`
	Asset     stakekit.Address `json:"asset,omitempty"`
	Authority stakekit.Address `json:"authority,omitempty"`
	Owner     stakekit.Address `json:"owner,omitempty"`
	Payer     stakekit.Address `json:"payer,omitempty"`
	Account   stakekit.Address `json:"account,omitempty"`
	Amount    uint64           `json:"amount,omitempty"`
	Decimals  int              `json:"decimals,omitempty"`
}

// NativeTransfer moves amount native base units from one address to another.
func NativeTransfer(from, to stakekit.Address, amount uint64) Instruction {
	return Instruction{Kind: KindNativeTransfer, From: from, To: to, Amount: amount}
}

// CreateAsset registers asset with the given authority and decimal precision.
func CreateAsset(asset, authority stakekit.Address, decimals int) Instruction {
	return Instruction{Kind: KindCreateAsset, Asset: asset, Authority: authority, Decimals: decimals}
}

// CreateHolding creates the holding account for (owner, asset), with payer
// covering the creation cost.
func CreateHolding(account, owner, asset, payer stakekit.Address) Instruction {
	return Instruction{Kind: KindCreateHolding, Account: account, Owner: owner, Asset: asset, Payer: payer}
}

// AssetTransfer moves amount asset base units from one holding account to
// another, authorized by the source owner.
func AssetTransfer(from, to, owner stakekit.Address, amount uint64) Instruction {
	return Instruction{Kind: KindAssetTransfer, From: from, To: to, Owner: owner, Amount: amount}
}

// MintTo mints amount new asset base units to a holding account, authorized
// by the asset authority.
func MintTo(asset, to, authority stakekit.Address, amount uint64) Instruction {
	return Instruction{Kind: KindMintTo, Asset: asset, To: to, Authority: authority, Amount: amount}
}

// Signature binds a signer address to its signature over the transaction
// digest.
type Signature struct {
	Signer    stakekit.Address `json:"signer"`
	Signature []byte           `json:"signature"`
}

// Transaction is an ordered list of instructions anchored to a checkpoint,
// with a fee payer and any collected signatures. The digest covers the
// checkpoint, fee payer, and instructions; signatures are appended, never
// part of the signed payload.
type Transaction struct {
	Checkpoint   stakekit.Checkpoint `json:"checkpoint"`
	FeePayer     stakekit.Address    `json:"feePayer"`
	Instructions []Instruction       `json:"instructions"`
	Signatures   []Signature         `json:"signatures,omitempty"`
}

// New creates an empty transaction anchored to checkpoint with the given fee
// payer.
func New(checkpoint stakekit.Checkpoint, feePayer stakekit.Address) *Transaction {
	return &Transaction{Checkpoint: checkpoint, FeePayer: feePayer}
}

// Add appends instructions in order.
func (t *Transaction) Add(instrs ...Instruction) *Transaction {
	t.Instructions = append(t.Instructions, instrs...)
	return t
}

// payload is the signed portion of a transaction.
type payload struct {
	Checkpoint   stakekit.Checkpoint `json:"checkpoint"`
	FeePayer     stakekit.Address    `json:"feePayer"`
	Instructions []Instruction       `json:"instructions"`
}

// Digest returns the sha256 digest of the signed portion.
func (t *Transaction) Digest() ([]byte, error) {
	raw, err := json.Marshal(payload{
		Checkpoint:   t.Checkpoint,
		FeePayer:     t.FeePayer,
		Instructions: t.Instructions,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal transaction payload: %w", err)
	}
	sum := sha256.Sum256(raw)
	return sum[:], nil
}

// PartialSign appends a signature over the digest for each keypair. Signing
// the same transaction with the same key twice replaces the prior signature.
func (t *Transaction) PartialSign(keys ...*Keypair) error {
	digest, err := t.Digest()
	if err != nil {
		return err
	}
	for _, key := range keys {
		sig, err := key.Sign(digest)
		if err != nil {
			return fmt.Errorf("sign transaction as %s: %w", key.Address(), err)
		}
		t.setSignature(Signature{Signer: key.Address(), Signature: sig})
	}
	return nil
}

func (t *Transaction) setSignature(sig Signature) {
	for i, existing := range t.Signatures {
		if existing.Signer == sig.Signer {
			t.Signatures[i] = sig
			return
		}
	}
	t.Signatures = append(t.Signatures, sig)
}

// SignedBy reports whether the transaction carries a valid signature from addr.
func (t *Transaction) SignedBy(addr stakekit.Address) bool {
	digest, err := t.Digest()
	if err != nil {
		return false
	}
	for _, sig := range t.Signatures {
		if sig.Signer == addr {
			return Verify(addr, digest, sig.Signature)
		}
	}
	return false
}

// Bytes serializes the transaction, including any signatures, into its wire
// form.
func (t *Transaction) Bytes() ([]byte, error) {
	raw, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("marshal transaction: %w", err)
	}
	return raw, nil
}

// Parse decodes a transaction from its wire form.
func Parse(raw []byte) (*Transaction, error) {
	var tx Transaction
	if err := json.Unmarshal(raw, &tx); err != nil {
		return nil, fmt.Errorf("parse transaction: %w", err)
	}
	return &tx, nil
}
