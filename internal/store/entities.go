package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/goran-ethernal/CardanoIndexor/internal/ledger"
)

// FindAddresses returns the address rows whose payload is in payloads.
func (s *Store) FindAddresses(ctx context.Context, payloads [][]byte) ([]*Address, error) {
	var found []*Address
	for _, c := range chunks(len(payloads), s.chunkSize(1)) {
		batch := payloads[c[0]:c[1]]
		args := make([]any, len(batch))
		for i, p := range batch {
			args[i] = p
		}

		var rows []*Address
		query := fmt.Sprintf(`SELECT id, payload, first_tx FROM address WHERE payload IN (%s)`, inList(len(batch)))
		if err := s.queryAll(ctx, &rows, query, args...); err != nil {
			return nil, fmt.Errorf("failed to find addresses: %w", err)
		}
		found = append(found, rows...)
	}
	return found, nil
}

// InsertAddresses inserts the rows in the given order, skipping payloads that already exist.
// It returns only the rows it created, with their ids.
func (s *Store) InsertAddresses(ctx context.Context, addresses []*Address) ([]*Address, error) {
	values := make([][]any, len(addresses))
	for i, a := range addresses {
		values[i] = []any{a.Payload, a.FirstTx}
	}

	var created []*Address
	err := s.insertRows(ctx, "address",
		[]string{"payload", "first_tx"},
		values,
		"ON CONFLICT (payload) DO NOTHING RETURNING id, payload, first_tx",
		func(rows *sql.Rows) error {
			row := &Address{}
			if err := rows.Scan(&row.ID, &row.Payload, &row.FirstTx); err != nil {
				return err
			}
			created = append(created, row)
			return nil
		})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// FindAssets returns the native asset rows matching ids. ADA never has a row.
func (s *Store) FindAssets(ctx context.Context, ids []ledger.AssetID) ([]*NativeAsset, error) {
	var found []*NativeAsset
	for _, c := range chunks(len(ids), s.chunkSize(2)) {
		batch := ids[c[0]:c[1]]
		args := make([]any, 0, len(batch)*2)
		for _, id := range batch {
			args = append(args, blob(id.PolicyID), blob(id.Name))
		}

		var rows []*NativeAsset
		query := fmt.Sprintf(
			`SELECT id, policy_id, asset_name, cip14_fingerprint, first_tx FROM native_asset
			WHERE (policy_id, asset_name) IN (VALUES %s)`,
			placeholders(len(batch), 2))
		if err := s.queryAll(ctx, &rows, query, args...); err != nil {
			return nil, fmt.Errorf("failed to find native assets: %w", err)
		}
		found = append(found, rows...)
	}
	return found, nil
}

// InsertAssets inserts the rows in the given order, skipping pairs that already exist.
// It returns only the rows it created, with their ids.
func (s *Store) InsertAssets(ctx context.Context, assets []*NativeAsset) ([]*NativeAsset, error) {
	values := make([][]any, len(assets))
	for i, a := range assets {
		values[i] = []any{blob(string(a.PolicyID)), blob(string(a.AssetName)), a.Fingerprint, a.FirstTx}
	}

	var created []*NativeAsset
	err := s.insertRows(ctx, "native_asset",
		[]string{"policy_id", "asset_name", "cip14_fingerprint", "first_tx"},
		values,
		"ON CONFLICT (policy_id, asset_name) DO NOTHING RETURNING id, policy_id, asset_name, cip14_fingerprint, first_tx",
		func(rows *sql.Rows) error {
			row := &NativeAsset{}
			if err := rows.Scan(&row.ID, &row.PolicyID, &row.AssetName, &row.Fingerprint, &row.FirstTx); err != nil {
				return err
			}
			created = append(created, row)
			return nil
		})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// blob returns a non-nil byte slice so that empty asset names bind as x'' rather than NULL.
func blob(s string) []byte {
	if s == "" {
		return []byte{}
	}
	return []byte(s)
}
