package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/goran-ethernal/CardanoIndexor/internal/db"
	"github.com/goran-ethernal/CardanoIndexor/internal/ledger"
)

// InsertMeanPrices writes DEX mean price events.
func (s *Store) InsertMeanPrices(ctx context.Context, prices []*MeanPrice) error {
	values := make([][]any, len(prices))
	for i, p := range prices {
		values[i] = []any{
			p.TxID, p.AddressID, p.Dex, nullableID(p.Asset1ID), nullableID(p.Asset2ID),
			db.AmountValue(p.Amount1), db.AmountValue(p.Amount2),
		}
	}
	return s.insertRows(ctx, "dex_mean_price",
		[]string{"tx_id", "address_id", "dex", "asset1_id", "asset2_id", "amount1", "amount2"},
		values, "", nil)
}

// InsertSwaps writes DEX swap events.
func (s *Store) InsertSwaps(ctx context.Context, swaps []*Swap) error {
	values := make([][]any, len(swaps))
	for i, sw := range swaps {
		values[i] = []any{
			sw.TxID, sw.AddressID, sw.Dex, nullableID(sw.Asset1ID), nullableID(sw.Asset2ID),
			db.AmountValue(sw.Amount1), db.AmountValue(sw.Amount2), sw.Direction,
		}
	}
	return s.insertRows(ctx, "dex_swap",
		[]string{"tx_id", "address_id", "dex", "asset1_id", "asset2_id", "amount1", "amount2", "direction"},
		values, "", nil)
}

// AssetPair selects events between two assets. The order of the pair matters.
type AssetPair struct {
	Asset1 ledger.AssetID
	Asset2 ledger.AssetID
}

// EventQuery selects DEX events for the read API.
type EventQuery struct {
	Addresses  [][]byte
	AssetPairs []AssetPair
	// UntilTxID is the inclusive upper bound of the page
	UntilTxID int64
	// AfterTxID is the exclusive lower bound of the page, -1 for the first page
	AfterTxID int64
	Limit     int
}

// MeanPriceView is a mean price event as served by the API.
type MeanPriceView struct {
	ID         int64  `meddler:"id"`
	TxHash     []byte `meddler:"tx_hash"`
	Address    []byte `meddler:"address"`
	Dex        int    `meddler:"dex"`
	PolicyID1  []byte `meddler:"policy_id1"`
	AssetName1 []byte `meddler:"asset_name1"`
	PolicyID2  []byte `meddler:"policy_id2"`
	AssetName2 []byte `meddler:"asset_name2"`
	Amount1    uint64 `meddler:"amount1,amount"`
	Amount2    uint64 `meddler:"amount2,amount"`
}

// SwapView is a swap event as served by the API.
type SwapView struct {
	MeanPriceView
	Direction int `meddler:"direction"`
}

// swapView is flat for scanning.
type swapView struct {
	ID         int64  `meddler:"id"`
	TxHash     []byte `meddler:"tx_hash"`
	Address    []byte `meddler:"address"`
	Dex        int    `meddler:"dex"`
	PolicyID1  []byte `meddler:"policy_id1"`
	AssetName1 []byte `meddler:"asset_name1"`
	PolicyID2  []byte `meddler:"policy_id2"`
	AssetName2 []byte `meddler:"asset_name2"`
	Amount1    uint64 `meddler:"amount1,amount"`
	Amount2    uint64 `meddler:"amount2,amount"`
	Direction  int    `meddler:"direction"`
}

const eventSelect = `SELECT e.id AS id, tx.hash AS tx_hash, address.payload AS address, e.dex AS dex,
	a1.policy_id AS policy_id1, a1.asset_name AS asset_name1,
	a2.policy_id AS policy_id2, a2.asset_name AS asset_name2,
	e.amount1 AS amount1, e.amount2 AS amount2`

// QueryMeanPrices returns mean price events ordered by transaction.
func (s *Store) QueryMeanPrices(ctx context.Context, q EventQuery) ([]*MeanPriceView, error) {
	query, args, ok, err := s.eventQuery(ctx, "dex_mean_price", "", q)
	if err != nil || !ok {
		return nil, err
	}

	var rows []*MeanPriceView
	if err := s.queryAll(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query mean prices: %w", err)
	}
	return rows, nil
}

// QuerySwaps returns swap events ordered by transaction.
func (s *Store) QuerySwaps(ctx context.Context, q EventQuery) ([]*SwapView, error) {
	query, args, ok, err := s.eventQuery(ctx, "dex_swap", ", e.direction AS direction", q)
	if err != nil || !ok {
		return nil, err
	}

	var rows []*swapView
	if err := s.queryAll(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query swaps: %w", err)
	}

	views := make([]*SwapView, len(rows))
	for i, r := range rows {
		views[i] = &SwapView{
			MeanPriceView: MeanPriceView{
				ID: r.ID, TxHash: r.TxHash, Address: r.Address, Dex: r.Dex,
				PolicyID1: r.PolicyID1, AssetName1: r.AssetName1,
				PolicyID2: r.PolicyID2, AssetName2: r.AssetName2,
				Amount1: r.Amount1, Amount2: r.Amount2,
			},
			Direction: r.Direction,
		}
	}
	return views, nil
}

// eventQuery builds the paginated event query. ok is false when no event can match,
// e.g. every requested asset is unknown.
func (s *Store) eventQuery(
	ctx context.Context,
	table, extraColumns string,
	q EventQuery,
) (query string, args []any, ok bool, err error) {
	if len(q.Addresses) == 0 || len(q.AssetPairs) == 0 {
		return "", nil, false, nil
	}

	// asset pairs are matched by id, 0 stands for ADA
	var ids []ledger.AssetID
	for _, p := range q.AssetPairs {
		for _, a := range []ledger.AssetID{p.Asset1, p.Asset2} {
			if !a.IsADA() {
				ids = append(ids, a)
			}
		}
	}
	known, err := s.FindAssets(ctx, ids)
	if err != nil {
		return "", nil, false, err
	}
	assetIDs := make(map[ledger.AssetID]int64, len(known)+1)
	assetIDs[ledger.ADA] = 0
	for _, a := range known {
		assetIDs[a.AssetID()] = a.ID
	}

	var pairArgs []any
	for _, p := range q.AssetPairs {
		id1, ok1 := assetIDs[p.Asset1]
		id2, ok2 := assetIDs[p.Asset2]
		if ok1 && ok2 {
			pairArgs = append(pairArgs, id1, id2)
		}
	}
	if len(pairArgs) == 0 {
		return "", nil, false, nil
	}

	args = make([]any, 0, len(q.Addresses)+len(pairArgs)+3)
	for _, a := range q.Addresses {
		args = append(args, a)
	}
	args = append(args, pairArgs...)
	args = append(args, q.AfterTxID, q.UntilTxID, q.Limit)

	var b strings.Builder
	b.WriteString(eventSelect)
	b.WriteString(extraColumns)
	fmt.Fprintf(&b, ` FROM %s e
	JOIN tx ON tx.id = e.tx_id
	JOIN address ON address.id = e.address_id
	LEFT JOIN native_asset a1 ON a1.id = e.asset1_id
	LEFT JOIN native_asset a2 ON a2.id = e.asset2_id
	WHERE address.payload IN (%s)
	AND (COALESCE(e.asset1_id, 0), COALESCE(e.asset2_id, 0)) IN (VALUES %s)
	AND e.tx_id > ? AND e.tx_id <= ?
	ORDER BY e.tx_id ASC, e.id ASC
	LIMIT ?`, table, inList(len(q.Addresses)), placeholders(len(pairArgs)/2, 2))

	return b.String(), args, true, nil
}

// LastTxIDUntilBlock returns the id of the last transaction in or before the block with the given hash.
// It returns ErrNotFound for an unknown block and 0 when no transaction precedes it.
func (s *Store) LastTxIDUntilBlock(ctx context.Context, blockHash ledger.Hash) (int64, error) {
	block, err := s.BlockFromHash(ctx, blockHash)
	if err != nil {
		return 0, err
	}

	var id sql.NullInt64
	err = s.db.QueryRowContext(ctx, `SELECT MAX(id) FROM tx WHERE block_id <= ?`, block.ID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to query last tx: %w", err)
	}
	return id.Int64, nil
}

// TxIDInBlock returns the id of the transaction with txHash if it belongs to the block with blockHash.
func (s *Store) TxIDInBlock(ctx context.Context, blockHash, txHash ledger.Hash) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT tx.id FROM tx JOIN block ON block.id = tx.block_id WHERE tx.hash = ? AND block.hash = ?`,
		db.HashValue(txHash), db.HashValue(blockHash)).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("failed to query tx: %w", err)
	}
	return id, nil
}
