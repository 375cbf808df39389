package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/goran-ethernal/CardanoIndexor/internal/db"
	"github.com/goran-ethernal/CardanoIndexor/internal/ledger"
)

type outputKey struct {
	txID  int64
	index uint32
}

// InsertOutputs writes the outputs and fills in their ids.
func (s *Store) InsertOutputs(ctx context.Context, outputs []*Output) error {
	byKey := make(map[outputKey]*Output, len(outputs))
	values := make([][]any, len(outputs))
	for i, o := range outputs {
		byKey[outputKey{o.TxID, o.OutputIndex}] = o
		values[i] = []any{o.TxID, o.AddressID, o.OutputIndex, o.Payload}
	}

	return s.insertRows(ctx, "tx_output",
		[]string{"tx_id", "address_id", "output_index", "payload"},
		values,
		"RETURNING id, tx_id, output_index",
		func(rows *sql.Rows) error {
			var id int64
			var key outputKey
			if err := rows.Scan(&id, &key.txID, &key.index); err != nil {
				return err
			}
			o, ok := byKey[key]
			if !ok {
				return fmt.Errorf("unexpected output %d:%d returned", key.txID, key.index)
			}
			o.ID = id
			return nil
		})
}

// InsertInputs writes the inputs.
func (s *Store) InsertInputs(ctx context.Context, inputs []*Input) error {
	values := make([][]any, len(inputs))
	for i, in := range inputs {
		values[i] = []any{in.UtxoID, in.TxID, in.InputIndex, in.IsCollateral}
	}
	err := s.insertRows(ctx, "tx_input",
		[]string{"utxo_id", "tx_id", "input_index", "is_collateral"}, values, "", nil)
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("%w: %w", ErrDoubleSpend, err)
	}
	return err
}

// InsertAssetTransfers writes the asset transfers.
func (s *Store) InsertAssetTransfers(ctx context.Context, transfers []*AssetTransfer) error {
	values := make([][]any, len(transfers))
	for i, t := range transfers {
		values[i] = []any{t.UtxoID, nullableID(t.AssetID), db.AmountValue(t.Amount)}
	}
	return s.insertRows(ctx, "asset_transfer",
		[]string{"utxo_id", "asset_id", "amount"}, values, "", nil)
}

// FindOutputsByRefs returns the outputs matching refs, joined with their transaction hash.
// The lookup is a row-value IN list rather than a chain of OR terms, which keeps
// large blocks clear of SQLite's expression depth limit.
func (s *Store) FindOutputsByRefs(ctx context.Context, refs []ledger.OutputRef) ([]*SpentOutput, error) {
	var found []*SpentOutput
	for _, c := range chunks(len(refs), s.chunkSize(2)) {
		batch := refs[c[0]:c[1]]
		args := make([]any, 0, len(batch)*2)
		for _, ref := range batch {
			args = append(args, db.HashValue(ref.TxHash), ref.Index)
		}

		query := fmt.Sprintf(
			`SELECT tx_output.id, tx_output.tx_id, tx_output.address_id, tx_output.output_index,
				tx_output.payload, tx.hash AS tx_hash
			FROM tx_output JOIN tx ON tx.id = tx_output.tx_id
			WHERE (tx.hash, tx_output.output_index) IN (VALUES %s)`,
			placeholders(len(batch), 2))

		var rows []*SpentOutput
		if err := s.queryAll(ctx, &rows, query, args...); err != nil {
			return nil, fmt.Errorf("failed to find spent outputs: %w", err)
		}
		found = append(found, rows...)
	}
	return found, nil
}

// OutputFromPointer returns the output created at index by the transaction with id txID.
func (s *Store) OutputFromPointer(ctx context.Context, txID int64, index uint32) (*Output, error) {
	var out Output
	err := s.queryRow(ctx, &out,
		`SELECT id, tx_id, address_id, output_index, payload FROM tx_output WHERE tx_id = ? AND output_index = ?`,
		txID, index)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query output: %w", err)
	}
	return &out, nil
}

// InputFromPointer returns the input at index of the transaction with id txID.
func (s *Store) InputFromPointer(ctx context.Context, txID int64, index int) (*Input, error) {
	var in Input
	err := s.queryRow(ctx, &in,
		`SELECT id, utxo_id, tx_id, input_index, is_collateral FROM tx_input WHERE tx_id = ? AND input_index = ?`,
		txID, index)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query input: %w", err)
	}
	return &in, nil
}
