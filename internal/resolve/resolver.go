// Package resolve maps the natural keys found in a block (address bytes, asset
// identifiers, output references) to the surrogate ids of the index, inserting
// what is missing.
package resolve

import (
	"context"

	"github.com/ethereum/go-ethereum/common/lru"
	"github.com/goran-ethernal/CardanoIndexor/internal/ledger"
	"github.com/goran-ethernal/CardanoIndexor/internal/logger"
	"github.com/goran-ethernal/CardanoIndexor/internal/store"
	"github.com/goran-ethernal/CardanoIndexor/pkg/config"
)

// MaxAddressLength is the number of address bytes kept by the index.
// Longer addresses are truncated, so two addresses sharing this prefix resolve to the same row.
const MaxAddressLength = 500

// Store is the subset of the store the resolver works against.
type Store interface {
	FindAddresses(ctx context.Context, payloads [][]byte) ([]*store.Address, error)
	InsertAddresses(ctx context.Context, addresses []*store.Address) ([]*store.Address, error)
	FindAssets(ctx context.Context, ids []ledger.AssetID) ([]*store.NativeAsset, error)
	InsertAssets(ctx context.Context, assets []*store.NativeAsset) ([]*store.NativeAsset, error)
	FindOutputsByRefs(ctx context.Context, refs []ledger.OutputRef) ([]*store.SpentOutput, error)
}

// OutputDecoder decodes stored output payloads.
type OutputDecoder interface {
	DecodeOutput(payload []byte) (*ledger.Output, error)
}

// Resolver owns the cross-block caches. Entries are only published after the
// block that resolved them commits, so a rolled back block never leaves ids
// behind that the database does not have.
type Resolver struct {
	addresses *lru.Cache[string, *store.Address]
	assets    *lru.Cache[ledger.AssetID, *store.NativeAsset]
	decoder   OutputDecoder
	log       *logger.Logger
}

// New creates a resolver with caches sized by cfg.
func New(cfg config.ResolverConfig, decoder OutputDecoder, log *logger.Logger) *Resolver {
	cfg.ApplyDefaults()
	return &Resolver{
		addresses: lru.NewCache[string, *store.Address](cfg.AddressCacheSize),
		assets:    lru.NewCache[ledger.AssetID, *store.NativeAsset](cfg.AssetCacheSize),
		decoder:   decoder,
		log:       log,
	}
}

// NewSession starts the resolution scope of one block over s, normally the block's transaction.
func (r *Resolver) NewSession(s Store) *Session {
	return &Session{
		resolver:  r,
		store:     s,
		addresses: make(map[string]*store.Address),
		assets:    make(map[ledger.AssetID]*store.NativeAsset),
	}
}

// Purge empties the caches.
func (r *Resolver) Purge() {
	r.addresses.Purge()
	r.assets.Purge()
}

// Session resolves entities within one block. It is not safe for concurrent use.
type Session struct {
	resolver  *Resolver
	store     Store
	addresses map[string]*store.Address
	assets    map[ledger.AssetID]*store.NativeAsset
}

// Commit publishes every entity the session resolved to the resolver caches.
// It must only be called once the block's transaction has committed.
func (s *Session) Commit() {
	for key, a := range s.addresses {
		s.resolver.addresses.Add(key, a)
	}
	for id, a := range s.assets {
		s.resolver.assets.Add(id, a)
	}
	s.resolver.log.Debugw("published resolved entities",
		"addresses", len(s.addresses), "assets", len(s.assets))
}

func (s *Session) cachedAddress(key string) (*store.Address, bool) {
	if a, ok := s.addresses[key]; ok {
		return a, true
	}
	return s.resolver.addresses.Get(key)
}

func (s *Session) cachedAsset(id ledger.AssetID) (*store.NativeAsset, bool) {
	if a, ok := s.assets[id]; ok {
		return a, true
	}
	return s.resolver.assets.Get(id)
}
