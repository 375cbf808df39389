package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/goran-ethernal/CardanoIndexor/internal/db"
	"github.com/goran-ethernal/CardanoIndexor/internal/ledger"
	"github.com/russross/meddler"
)

const blockColumns = "id, hash, era, height, slot, payload"

// InsertBlock writes the block row and returns it with its id.
func (s *Store) InsertBlock(ctx context.Context, block *ledger.Block) (*Block, error) {
	row := &Block{
		Hash:    block.Hash,
		Era:     block.Era,
		Height:  block.Height,
		Slot:    block.Slot,
		Payload: block.Payload,
	}

	err := s.db.QueryRowContext(ctx,
		`INSERT INTO block (hash, era, height, slot, payload) VALUES (?, ?, ?, ?, ?) RETURNING id`,
		db.HashValue(row.Hash), row.Era, row.Height, row.Slot, row.Payload,
	).Scan(&row.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert block %s: %w", block.Hash, err)
	}

	return row, nil
}

// InsertTransactions writes the transactions of a block and returns the rows in input order.
func (s *Store) InsertTransactions(ctx context.Context, blockID int64, txs []*ledger.Transaction) ([]*Transaction, error) {
	if len(txs) == 0 {
		return nil, nil
	}

	result := make([]*Transaction, len(txs))
	byHash := make(map[ledger.Hash]*Transaction, len(txs))
	values := make([][]any, len(txs))
	for i, tx := range txs {
		row := &Transaction{
			Hash:    tx.Hash,
			BlockID: blockID,
			Index:   tx.Index,
			Payload: tx.Payload,
			IsValid: tx.IsValid,
		}
		result[i] = row
		byHash[tx.Hash] = row
		values[i] = []any{db.HashValue(row.Hash), row.BlockID, row.Index, row.Payload, row.IsValid}
	}

	err := s.insertRows(ctx, "tx",
		[]string{"hash", "block_id", "tx_index", "payload", "is_valid"},
		values,
		"RETURNING id, hash",
		func(rows *sql.Rows) error {
			var id int64
			var hash []byte
			if err := rows.Scan(&id, &hash); err != nil {
				return err
			}
			row, ok := byHash[ledger.NewHash(hash)]
			if !ok {
				return fmt.Errorf("unexpected tx hash %x returned", hash)
			}
			row.ID = id
			return nil
		})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// TransactionsFromHashes returns the transaction rows for the given hashes keyed by hash.
// It fails with ErrMissingRows when any hash is unknown.
func (s *Store) TransactionsFromHashes(ctx context.Context, hashes []ledger.Hash) (map[ledger.Hash]*Transaction, error) {
	unique := make(map[ledger.Hash]struct{}, len(hashes))
	args := make([]any, 0, len(hashes))
	for _, h := range hashes {
		if _, dup := unique[h]; dup {
			continue
		}
		unique[h] = struct{}{}
		args = append(args, db.HashValue(h))
	}

	found := make(map[ledger.Hash]*Transaction, len(args))
	for _, c := range chunks(len(args), s.chunkSize(1)) {
		batch := args[c[0]:c[1]]
		query := fmt.Sprintf(
			`SELECT id, hash, block_id, tx_index, payload, is_valid FROM tx WHERE hash IN (%s)`,
			inList(len(batch)))

		var rows []*Transaction
		if err := s.queryAll(ctx, &rows, query, batch...); err != nil {
			return nil, fmt.Errorf("failed to query transactions: %w", err)
		}
		for _, row := range rows {
			found[row.Hash] = row
		}
	}

	if len(found) < len(unique) {
		return nil, fmt.Errorf("%w: requested %d transactions, found %d", ErrMissingRows, len(unique), len(found))
	}

	return found, nil
}

// BlockFromHash returns the block row with the given hash.
func (s *Store) BlockFromHash(ctx context.Context, hash ledger.Hash) (*Block, error) {
	return s.queryBlock(ctx, `SELECT `+blockColumns+` FROM block WHERE hash = ?`, db.HashValue(hash))
}

// LatestBlock returns the most recently indexed block, the resumption point of the pipeline.
func (s *Store) LatestBlock(ctx context.Context) (*Block, error) {
	return s.queryBlock(ctx, `SELECT `+blockColumns+` FROM block ORDER BY id DESC LIMIT 1`)
}

func (s *Store) queryBlock(ctx context.Context, query string, args ...any) (*Block, error) {
	var block Block
	if err := s.queryRow(ctx, &block, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query block: %w", err)
	}
	return &block, nil
}

// queryAll runs query and scans every row into dst, a pointer to a slice of struct pointers.
func (s *Store) queryAll(ctx context.Context, dst any, query string, args ...any) error {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return meddler.ScanAll(rows, dst)
}

// queryRow runs query and scans the first row into dst. It returns sql.ErrNoRows when there is none.
func (s *Store) queryRow(ctx context.Context, dst any, query string, args ...any) error {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	return meddler.ScanRow(rows, dst)
}

// inList renders "?, ?, ?".
func inList(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
