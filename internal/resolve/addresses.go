package resolve

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/goran-ethernal/CardanoIndexor/internal/metrics"
	"github.com/goran-ethernal/CardanoIndexor/internal/store"
)

const kindAddress = "address"

// AddressInBlock is a resolved address. IsNew reports whether this block created the row.
type AddressInBlock struct {
	Address *store.Address
	IsNew   bool
}

// TruncateAddress returns the stored form of a raw address.
func TruncateAddress(raw []byte) []byte {
	if len(raw) > MaxAddressLength {
		return raw[:MaxAddressLength]
	}
	return raw
}

func truncateKey(raw string) string {
	if len(raw) > MaxAddressLength {
		return raw[:MaxAddressLength]
	}
	return raw
}

// ResolveAddresses maps raw address bytes (as string keys) to address rows,
// inserting the addresses the index has not seen yet. candidates carries the
// id of the first transaction of the block that references each address.
//
// Missing addresses are inserted in ascending order of first transaction id,
// ties broken by payload, so row ids follow first appearance on chain.
func (s *Session) ResolveAddresses(ctx context.Context, candidates map[string]int64) (map[string]AddressInBlock, error) {
	result := make(map[string]AddressInBlock, len(candidates))
	if len(candidates) == 0 {
		return result, nil
	}

	firstSeen := make(map[string]int64, len(candidates))
	for raw, txID := range candidates {
		key := truncateKey(raw)
		if cur, ok := firstSeen[key]; !ok || txID < cur {
			firstSeen[key] = txID
		}
	}

	resolved := make(map[string]AddressInBlock, len(firstSeen))
	var missing []string
	for key := range firstSeen {
		if a, ok := s.cachedAddress(key); ok {
			resolved[key] = AddressInBlock{Address: a}
			continue
		}
		missing = append(missing, key)
	}
	metrics.EntitiesResolvedAdd(kindAddress, metrics.SourceCache, len(resolved))

	if len(missing) > 0 {
		slices.Sort(missing)
		if err := s.findAddresses(ctx, missing, resolved); err != nil {
			return nil, err
		}

		toInsert := make([]*store.Address, 0, len(missing))
		for _, key := range missing {
			if _, ok := resolved[key]; !ok {
				toInsert = append(toInsert, &store.Address{Payload: []byte(key), FirstTx: firstSeen[key]})
			}
		}
		if err := s.insertAddresses(ctx, toInsert, resolved); err != nil {
			return nil, err
		}
	}

	for raw := range candidates {
		result[raw] = resolved[truncateKey(raw)]
	}
	return result, nil
}

// findAddresses looks keys up in the store and records the rows found as existing.
func (s *Session) findAddresses(ctx context.Context, keys []string, resolved map[string]AddressInBlock) error {
	payloads := make([][]byte, len(keys))
	for i, key := range keys {
		payloads[i] = []byte(key)
	}

	found, err := s.store.FindAddresses(ctx, payloads)
	if err != nil {
		return fmt.Errorf("failed to find addresses: %w", err)
	}
	for _, a := range found {
		key := string(a.Payload)
		s.addresses[key] = a
		resolved[key] = AddressInBlock{Address: a}
	}
	metrics.EntitiesResolvedAdd(kindAddress, metrics.SourceStore, len(found))
	return nil
}

func (s *Session) insertAddresses(ctx context.Context, rows []*store.Address, resolved map[string]AddressInBlock) error {
	if len(rows) == 0 {
		return nil
	}

	slices.SortFunc(rows, func(a, b *store.Address) int {
		if c := cmp.Compare(a.FirstTx, b.FirstTx); c != 0 {
			return c
		}
		return bytes.Compare(a.Payload, b.Payload)
	})

	created, err := s.store.InsertAddresses(ctx, rows)
	if err != nil {
		return fmt.Errorf("failed to insert addresses: %w", err)
	}
	for _, a := range created {
		key := string(a.Payload)
		s.addresses[key] = a
		resolved[key] = AddressInBlock{Address: a, IsNew: true}
	}
	metrics.EntitiesResolvedAdd(kindAddress, metrics.SourceInserted, len(created))

	if len(created) == len(rows) {
		return nil
	}

	// another writer created some of the rows between the find and the insert
	var raced []string
	for _, a := range rows {
		if _, ok := resolved[string(a.Payload)]; !ok {
			raced = append(raced, string(a.Payload))
		}
	}
	if err := s.findAddresses(ctx, raced, resolved); err != nil {
		return err
	}
	for _, key := range raced {
		if _, ok := resolved[key]; !ok {
			return fmt.Errorf("%w: address %x neither inserted nor found", store.ErrMissingRows, key)
		}
	}
	return nil
}
