// Package identity owns the persistent signing authority: the one keypair
// permitted to create the asset registration and mint new units.
//
// The keypair is created once, persisted, and never regenerated once
// persisted; a regenerated authority would orphan every asset issued under
// the old key. A malformed persisted record therefore surfaces as
// STORAGE_CORRUPTION instead of being silently replaced.
package identity

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	stakekit "github.com/solstake/stakekit-go"
	"github.com/solstake/stakekit-go/errors"
	"github.com/solstake/stakekit-go/ledger"
)

const component = "identity"

// storageKey namespaces the authority record in the durable store.
const storageKey = "stakekit/authority"

// Record is the persisted form of the authority identity.
type Record struct {
	Seed      string           `json:"seed"`
	Address   stakekit.Address `json:"address"`
	CreatedAt time.Time        `json:"createdAt"`
}

// Store loads or creates the authority keypair and memoizes it for the
// process lifetime.
type Store struct {
	store stakekit.Store
	log   *logrus.Entry

	mu sync.Mutex
	kp *ledger.Keypair
}

// New creates an identity store backed by the given durable store.
// A nil log discards output.
func New(store stakekit.Store, log *logrus.Entry) *Store {
	if log == nil {
		log = stakekit.NopLogger()
	}
	return &Store{store: store, log: log}
}

// Authority returns the authority keypair, loading it from the durable store
// on first call or generating and persisting a new one if none exists.
// Idempotent and side-effect-free after the first call within a process.
func (s *Store) Authority(ctx context.Context) (*ledger.Keypair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.kp != nil {
		return s.kp, nil
	}

	raw, found, err := s.store.Get(ctx, storageKey)
	if err != nil {
		return nil, errors.New(component, errors.STORE_ERROR, "failed to read authority record", err)
	}

	if found {
		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, errors.New(component, errors.STORAGE_CORRUPTION, "authority record is malformed", err)
		}
		kp, err := ledger.KeypairFromSeed(rec.Seed)
		if err != nil {
			return nil, errors.New(component, errors.STORAGE_CORRUPTION, "authority seed is invalid", err)
		}
		s.kp = kp
		s.log.WithField("authority", kp.Address()).Info("loaded existing authority identity")
		return s.kp, nil
	}

	kp, err := ledger.NewKeypair()
	if err != nil {
		return nil, errors.New(component, errors.STORE_ERROR, "failed to generate authority keypair", err)
	}
	rec := Record{
		Seed:      kp.Seed(),
		Address:   kp.Address(),
		CreatedAt: time.Now().UTC(),
	}
	raw, err = json.Marshal(rec)
	if err != nil {
		return nil, errors.New(component, errors.STORE_ERROR, "failed to encode authority record", err)
	}
	// Persist before returning so two process runs can never observe
	// different authorities.
	if err := s.store.Put(ctx, storageKey, raw); err != nil {
		return nil, errors.New(component, errors.STORE_ERROR, "failed to persist authority record", err)
	}

	s.kp = kp
	s.log.WithField("authority", kp.Address()).Info("created new authority identity")
	return s.kp, nil
}
