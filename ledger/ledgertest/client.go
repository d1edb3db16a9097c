// Package ledgertest provides in-memory fakes of the SDK's collaborator
// interfaces for testing: a Client that applies transactions to an in-memory
// chain state, and a Wallet that signs with a local keypair.
package ledgertest

import (
	"context"
	"fmt"
	"sync"

	stakekit "github.com/solstake/stakekit-go"
	"github.com/solstake/stakekit-go/ledger"
)

// assetMeta is the registration state of one fake asset.
type assetMeta struct {
	Authority stakekit.Address
	Decimals  int
}

// SubmittedTx is one transaction accepted by the fake chain.
type SubmittedTx struct {
	ID stakekit.TxID
	Tx *ledger.Transaction
}

// Client implements stakekit.LedgerClient against in-memory chain state.
// Transactions are validated (balances, signatures, authority) and applied
// atomically on SendRawTransaction. Fields prefixed Fail inject errors.
type Client struct {
	mu       sync.RWMutex
	native   map[stakekit.Address]uint64
	assets   map[stakekit.Address]assetMeta
	holdings map[stakekit.Address]*stakekit.AccountInfo

	submitted []SubmittedTx
	seq       int

	// FailCheckpoints makes the next N GetLatestCheckpoint calls fail.
	FailCheckpoints int

	// FailNextSend rejects the next SendRawTransaction with this error.
	FailNextSend error

	// FailConfirm maps transaction ids to confirmation errors.
	FailConfirm map[stakekit.TxID]error

	// FailAirdrop rejects every RequestAirdrop with this error.
	FailAirdrop error

	// FailMint rejects any transaction carrying a mint instruction with
	// this error, leaving other submissions untouched. Used to force the
	// payment-confirmed-but-mint-failed state.
	FailMint error
}

// NewClient creates an empty fake chain.
func NewClient() *Client {
	return &Client{
		native:      make(map[stakekit.Address]uint64),
		assets:      make(map[stakekit.Address]assetMeta),
		holdings:    make(map[stakekit.Address]*stakekit.AccountInfo),
		FailConfirm: make(map[stakekit.TxID]error),
	}
}

// FundNative credits native base units to an address, bypassing the faucet.
func (c *Client) FundNative(addr stakekit.Address, units uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.native[addr] += units
}

// HoldingBalance returns the asset balance of a holding account, or zero if
// the account does not exist.
func (c *Client) HoldingBalance(account stakekit.Address) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if info, ok := c.holdings[account]; ok {
		return info.Balance
	}
	return 0
}

// Submitted returns the transactions accepted so far, in order.
func (c *Client) Submitted() []SubmittedTx {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]SubmittedTx, len(c.submitted))
	copy(out, c.submitted)
	return out
}

// CountKind returns how many submitted instructions carry the given kind.
func (c *Client) CountKind(kind ledger.InstructionKind) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, sub := range c.submitted {
		for _, instr := range sub.Tx.Instructions {
			if instr.Kind == kind {
				n++
			}
		}
	}
	return n
}

// GetBalance returns the native balance of addr. Unknown addresses report zero.
func (c *Client) GetBalance(_ context.Context, addr stakekit.Address) (uint64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.native[addr], nil
}

// GetLatestCheckpoint returns a fresh checkpoint, or fails while
// FailCheckpoints is positive.
func (c *Client) GetLatestCheckpoint(_ context.Context, _ stakekit.Commitment) (stakekit.Checkpoint, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailCheckpoints > 0 {
		c.FailCheckpoints--
		return "", fmt.Errorf("checkpoint fetch failed")
	}
	c.seq++
	return stakekit.Checkpoint(fmt.Sprintf("checkpoint-%d", c.seq)), nil
}

// GetAccountInfo reports holding accounts and asset registrations. Unknown
// addresses return (nil, nil).
func (c *Client) GetAccountInfo(_ context.Context, addr stakekit.Address) (*stakekit.AccountInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if info, ok := c.holdings[addr]; ok {
		cp := *info
		return &cp, nil
	}
	if meta, ok := c.assets[addr]; ok {
		return &stakekit.AccountInfo{Address: addr, Owner: meta.Authority}, nil
	}
	return nil, nil
}

// SendRawTransaction parses, validates, and applies a transaction envelope.
func (c *Client) SendRawTransaction(_ context.Context, raw []byte) (stakekit.TxID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.FailNextSend; err != nil {
		c.FailNextSend = nil
		return "", err
	}

	tx, err := ledger.Parse(raw)
	if err != nil {
		return "", err
	}
	if c.FailMint != nil {
		for _, instr := range tx.Instructions {
			if instr.Kind == ledger.KindMintTo {
				return "", c.FailMint
			}
		}
	}
	if err := c.validate(tx); err != nil {
		return "", err
	}
	c.apply(tx)

	c.seq++
	id := stakekit.TxID(fmt.Sprintf("tx-%d", c.seq))
	c.submitted = append(c.submitted, SubmittedTx{ID: id, Tx: tx})
	return id, nil
}

// ConfirmTransaction succeeds for known transactions unless an error was
// injected via FailConfirm.
func (c *Client) ConfirmTransaction(_ context.Context, id stakekit.TxID, _ stakekit.Commitment) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if err, ok := c.FailConfirm[id]; ok {
		return err
	}
	for _, sub := range c.submitted {
		if sub.ID == id {
			return nil
		}
	}
	return fmt.Errorf("unknown transaction %s", id)
}

// RequestAirdrop credits native base units from the fake faucet.
func (c *Client) RequestAirdrop(_ context.Context, addr stakekit.Address, units uint64) (stakekit.TxID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailAirdrop != nil {
		return "", c.FailAirdrop
	}
	c.native[addr] += units
	c.seq++
	id := stakekit.TxID(fmt.Sprintf("airdrop-%d", c.seq))
	c.submitted = append(c.submitted, SubmittedTx{ID: id, Tx: &ledger.Transaction{}})
	return id, nil
}

// validate checks balances, signatures, and authorities for every
// instruction before anything is applied.
func (c *Client) validate(tx *ledger.Transaction) error {
	for _, instr := range tx.Instructions {
		switch instr.Kind {
		case ledger.KindNativeTransfer:
			if !tx.SignedBy(instr.From) {
				return fmt.Errorf("native transfer not signed by %s", instr.From)
			}
			if c.native[instr.From] < instr.Amount {
				return fmt.Errorf("insufficient native balance on %s", instr.From)
			}
		case ledger.KindCreateAsset:
			if !tx.SignedBy(instr.Authority) {
				return fmt.Errorf("asset creation not signed by authority")
			}
			if _, exists := c.assets[instr.Asset]; exists {
				return fmt.Errorf("asset %s already exists", instr.Asset)
			}
		case ledger.KindCreateHolding:
			if !tx.SignedBy(instr.Payer) {
				return fmt.Errorf("holding creation not signed by payer")
			}
		case ledger.KindAssetTransfer:
			if !tx.SignedBy(instr.Owner) {
				return fmt.Errorf("asset transfer not signed by owner %s", instr.Owner)
			}
			from, ok := c.holdings[instr.From]
			if !ok || from.Balance < instr.Amount {
				return fmt.Errorf("insufficient asset balance on %s", instr.From)
			}
			if _, ok := c.holdings[instr.To]; !ok {
				return fmt.Errorf("destination holding %s does not exist", instr.To)
			}
		case ledger.KindMintTo:
			meta, ok := c.assets[instr.Asset]
			if !ok {
				return fmt.Errorf("asset %s does not exist", instr.Asset)
			}
			if meta.Authority != instr.Authority || !tx.SignedBy(instr.Authority) {
				return fmt.Errorf("mint not authorized by asset authority")
			}
			if _, ok := c.holdings[instr.To]; !ok {
				return fmt.Errorf("destination holding %s does not exist", instr.To)
			}
		default:
			return fmt.Errorf("unknown instruction kind %q", instr.Kind)
		}
	}
	return nil
}

func (c *Client) apply(tx *ledger.Transaction) {
	for _, instr := range tx.Instructions {
		switch instr.Kind {
		case ledger.KindNativeTransfer:
			c.native[instr.From] -= instr.Amount
			c.native[instr.To] += instr.Amount
		case ledger.KindCreateAsset:
			c.assets[instr.Asset] = assetMeta{Authority: instr.Authority, Decimals: instr.Decimals}
		case ledger.KindCreateHolding:
			if _, exists := c.holdings[instr.Account]; !exists {
				c.holdings[instr.Account] = &stakekit.AccountInfo{
					Address: instr.Account,
					Owner:   instr.Owner,
					Asset:   instr.Asset,
				}
			}
		case ledger.KindAssetTransfer:
			c.holdings[instr.From].Balance -= instr.Amount
			c.holdings[instr.To].Balance += instr.Amount
		case ledger.KindMintTo:
			c.holdings[instr.To].Balance += instr.Amount
		}
	}
}

// Verify that Client implements stakekit.LedgerClient
var _ stakekit.LedgerClient = (*Client)(nil)
