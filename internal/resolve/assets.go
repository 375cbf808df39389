package resolve

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
	"github.com/goran-ethernal/CardanoIndexor/internal/ledger"
	"github.com/goran-ethernal/CardanoIndexor/internal/metrics"
	"github.com/goran-ethernal/CardanoIndexor/internal/store"
)

const kindAsset = "native_asset"

// AssetInBlock is a resolved native asset. IsNew reports whether this block created the row.
type AssetInBlock struct {
	Asset *store.NativeAsset
	IsNew bool
}

// Fingerprint returns the CIP-14 fingerprint of an asset.
func Fingerprint(id ledger.AssetID) string {
	return lcommon.NewAssetFingerprint([]byte(id.PolicyID), []byte(id.Name)).String()
}

// ResolveAssets maps native asset ids to their rows, inserting the assets the
// index has not seen yet. candidates carries the id of the first transaction of
// the block that references each asset. ADA has no row and is dropped.
func (s *Session) ResolveAssets(
	ctx context.Context,
	candidates map[ledger.AssetID]int64,
) (map[ledger.AssetID]AssetInBlock, error) {
	result := make(map[ledger.AssetID]AssetInBlock, len(candidates))

	var missing []ledger.AssetID
	for id := range candidates {
		if id.IsADA() {
			continue
		}
		if a, ok := s.cachedAsset(id); ok {
			result[id] = AssetInBlock{Asset: a}
			continue
		}
		missing = append(missing, id)
	}
	metrics.EntitiesResolvedAdd(kindAsset, metrics.SourceCache, len(result))

	if len(missing) == 0 {
		return result, nil
	}

	slices.SortFunc(missing, ledger.AssetID.Compare)
	if err := s.findAssets(ctx, missing, result); err != nil {
		return nil, err
	}

	toInsert := make([]*store.NativeAsset, 0, len(missing))
	for _, id := range missing {
		if _, ok := result[id]; ok {
			continue
		}
		toInsert = append(toInsert, &store.NativeAsset{
			PolicyID:    []byte(id.PolicyID),
			AssetName:   []byte(id.Name),
			Fingerprint: Fingerprint(id),
			FirstTx:     candidates[id],
		})
	}
	if err := s.insertAssets(ctx, toInsert, result); err != nil {
		return nil, err
	}

	return result, nil
}

// FindAssets returns the ids of the assets the index already knows, without inserting.
// ADA maps to nil and unknown assets are absent from the result.
func (s *Session) FindAssets(ctx context.Context, ids []ledger.AssetID) (map[ledger.AssetID]*int64, error) {
	result := make(map[ledger.AssetID]*int64, len(ids))
	found := make(map[ledger.AssetID]AssetInBlock, len(ids))

	seen := make(map[ledger.AssetID]struct{}, len(ids))
	var missing []ledger.AssetID
	for _, id := range ids {
		if id.IsADA() {
			result[id] = nil
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if a, ok := s.cachedAsset(id); ok {
			found[id] = AssetInBlock{Asset: a}
			continue
		}
		missing = append(missing, id)
	}

	if len(missing) > 0 {
		slices.SortFunc(missing, ledger.AssetID.Compare)
		if err := s.findAssets(ctx, missing, found); err != nil {
			return nil, err
		}
	}

	for id, a := range found {
		result[id] = &a.Asset.ID
	}
	return result, nil
}

func (s *Session) findAssets(ctx context.Context, ids []ledger.AssetID, resolved map[ledger.AssetID]AssetInBlock) error {
	found, err := s.store.FindAssets(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to find native assets: %w", err)
	}
	for _, a := range found {
		id := a.AssetID()
		s.assets[id] = a
		resolved[id] = AssetInBlock{Asset: a}
	}
	metrics.EntitiesResolvedAdd(kindAsset, metrics.SourceStore, len(found))
	return nil
}

func (s *Session) insertAssets(
	ctx context.Context,
	rows []*store.NativeAsset,
	resolved map[ledger.AssetID]AssetInBlock,
) error {
	if len(rows) == 0 {
		return nil
	}

	slices.SortFunc(rows, func(a, b *store.NativeAsset) int {
		if c := cmp.Compare(a.FirstTx, b.FirstTx); c != 0 {
			return c
		}
		return a.AssetID().Compare(b.AssetID())
	})

	created, err := s.store.InsertAssets(ctx, rows)
	if err != nil {
		return fmt.Errorf("failed to insert native assets: %w", err)
	}
	for _, a := range created {
		id := a.AssetID()
		s.assets[id] = a
		resolved[id] = AssetInBlock{Asset: a, IsNew: true}
	}
	metrics.EntitiesResolvedAdd(kindAsset, metrics.SourceInserted, len(created))

	if len(created) == len(rows) {
		return nil
	}

	// another writer created some of the rows between the find and the insert
	var raced []ledger.AssetID
	for _, a := range rows {
		if _, ok := resolved[a.AssetID()]; !ok {
			raced = append(raced, a.AssetID())
		}
	}
	if err := s.findAssets(ctx, raced, resolved); err != nil {
		return err
	}
	for _, id := range raced {
		if _, ok := resolved[id]; !ok {
			return fmt.Errorf("%w: native asset %x.%x neither inserted nor found", store.ErrMissingRows, id.PolicyID, id.Name)
		}
	}
	return nil
}
