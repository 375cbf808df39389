package dex

import (
	"context"
	"errors"
	"fmt"

	"github.com/goran-ethernal/CardanoIndexor/internal/ledger"
	"github.com/goran-ethernal/CardanoIndexor/internal/logger"
	"github.com/goran-ethernal/CardanoIndexor/internal/metrics"
	"github.com/goran-ethernal/CardanoIndexor/internal/resolve"
	"github.com/goran-ethernal/CardanoIndexor/internal/store"
)

const (
	eventMeanPrice = "mean_price"
	eventSwap      = "swap"
)

// EventStore persists extracted events.
type EventStore interface {
	InsertMeanPrices(ctx context.Context, prices []*store.MeanPrice) error
	InsertSwaps(ctx context.Context, swaps []*store.Swap) error
}

// AssetFinder looks up native asset ids without creating them.
type AssetFinder interface {
	FindAssets(ctx context.Context, ids []ledger.AssetID) (map[ledger.AssetID]*int64, error)
}

// BlockInput is what a handler needs from the block being indexed.
type BlockInput struct {
	Block *ledger.Block
	// Transactions are the stored rows of Block.Transactions, in the same order
	Transactions []*store.Transaction
	// Addresses are the resolved addresses of the block keyed by raw address
	Addresses map[string]resolve.AddressInBlock
	// Spent are the outputs consumed by the block, required for swaps
	Spent resolve.SpentOutputs
}

// Handler extracts the events of one protocol for a whole block and writes them in one batch.
type Handler struct {
	protocol Protocol
	log      *logger.Logger
}

// NewHandler creates a handler for protocol.
func NewHandler(protocol Protocol, log *logger.Logger) *Handler {
	return &Handler{protocol: protocol, log: log}
}

// Protocol returns the handled protocol.
func (h *Handler) Protocol() Protocol {
	return h.protocol
}

// MeanPrices extracts and stores the mean price events of the valid transactions of
// the block. It returns the number of events written.
func (h *Handler) MeanPrices(ctx context.Context, st EventStore, finder AssetFinder, in BlockInput) (int, error) {
	if err := in.check(); err != nil {
		return 0, err
	}

	var prices []*MeanPrice
	for i, tx := range in.Block.Transactions {
		if !tx.IsValid {
			continue
		}
		txID := in.Transactions[i].ID
		price, err := h.protocol.ExtractMeanPrice(tx, txID)
		if err != nil {
			if h.skip(err, eventMeanPrice, txID) {
				continue
			}
			return 0, err
		}
		if price != nil {
			prices = append(prices, price)
		}
	}
	if len(prices) == 0 {
		return 0, nil
	}

	assets, err := h.findAssets(ctx, finder, prices)
	if err != nil {
		return 0, err
	}

	rows := make([]*store.MeanPrice, 0, len(prices))
	for _, p := range prices {
		row, ok, err := h.meanPriceRow(p, in.Addresses, assets)
		if err != nil {
			return 0, err
		}
		if ok {
			rows = append(rows, row)
		}
	}
	if len(rows) == 0 {
		return 0, nil
	}

	if err := st.InsertMeanPrices(ctx, rows); err != nil {
		return 0, fmt.Errorf("failed to store %s mean prices: %w", h.protocol.Type, err)
	}
	metrics.DexEventsAdd(h.protocol.Type.String(), eventMeanPrice, len(rows))
	return len(rows), nil
}

// Swaps extracts and stores the swap events of the valid transactions of the block.
// It returns the number of events written.
func (h *Handler) Swaps(ctx context.Context, st EventStore, finder AssetFinder, in BlockInput) (int, error) {
	if err := in.check(); err != nil {
		return 0, err
	}

	var swaps []*Swap
	for i, tx := range in.Block.Transactions {
		if !tx.IsValid {
			continue
		}
		txID := in.Transactions[i].ID
		extracted, err := h.protocol.ExtractSwaps(tx, txID, in.Spent)
		if err != nil {
			if h.skip(err, eventSwap, txID) {
				continue
			}
			return 0, err
		}
		for j := range extracted {
			swaps = append(swaps, &extracted[j])
		}
	}
	if len(swaps) == 0 {
		return 0, nil
	}

	prices := make([]*MeanPrice, len(swaps))
	for i, s := range swaps {
		prices[i] = &s.MeanPrice
	}
	assets, err := h.findAssets(ctx, finder, prices)
	if err != nil {
		return 0, err
	}

	rows := make([]*store.Swap, 0, len(swaps))
	for _, s := range swaps {
		row, ok, err := h.meanPriceRow(&s.MeanPrice, in.Addresses, assets)
		if err != nil {
			return 0, err
		}
		if !ok {
			continue
		}
		rows = append(rows, &store.Swap{
			TxID:      row.TxID,
			AddressID: row.AddressID,
			Dex:       row.Dex,
			Asset1ID:  row.Asset1ID,
			Asset2ID:  row.Asset2ID,
			Amount1:   row.Amount1,
			Amount2:   row.Amount2,
			Direction: int(s.Direction),
		})
	}
	if len(rows) == 0 {
		return 0, nil
	}

	if err := st.InsertSwaps(ctx, rows); err != nil {
		return 0, fmt.Errorf("failed to store %s swaps: %w", h.protocol.Type, err)
	}
	metrics.DexEventsAdd(h.protocol.Type.String(), eventSwap, len(rows))
	return len(rows), nil
}

func (in BlockInput) check() error {
	if len(in.Block.Transactions) != len(in.Transactions) {
		return fmt.Errorf("block %s has %d transactions but %d stored rows",
			in.Block.Hash, len(in.Block.Transactions), len(in.Transactions))
	}
	return nil
}

// skip reports whether err only affects one transaction and logs it.
func (h *Handler) skip(err error, event string, txID int64) bool {
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		return false
	}
	metrics.DexParseErrorsInc(h.protocol.Type.String())
	h.log.Warnw("failed to parse dex event",
		"protocol", h.protocol.Type.String(),
		"event", event,
		"tx_id", txID,
		"error", parseErr.Err)
	return true
}

// findAssets looks up every native asset of the events with one query.
func (h *Handler) findAssets(
	ctx context.Context,
	finder AssetFinder,
	prices []*MeanPrice,
) (map[ledger.AssetID]*int64, error) {
	ids := make([]ledger.AssetID, 0, 2*len(prices)) //nolint:mnd
	for _, p := range prices {
		ids = append(ids, p.Asset1, p.Asset2)
	}
	assets, err := finder.FindAssets(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to find %s assets: %w", h.protocol.Type, err)
	}
	return assets, nil
}

// meanPriceRow maps an event to its row. ok is false when one of its assets is
// not indexed, the event is then dropped.
func (h *Handler) meanPriceRow(
	p *MeanPrice,
	addresses map[string]resolve.AddressInBlock,
	assets map[ledger.AssetID]*int64,
) (*store.MeanPrice, bool, error) {
	address, ok := addresses[string(p.Address)]
	if !ok {
		return nil, false, fmt.Errorf("%w: pool address %x of tx %d was not resolved",
			store.ErrMissingRows, p.Address, p.TxID)
	}

	asset1, ok1 := assets[p.Asset1]
	asset2, ok2 := assets[p.Asset2]
	if !ok1 || !ok2 {
		h.log.Warnw("dropping dex event with unknown asset",
			"protocol", h.protocol.Type.String(),
			"tx_id", p.TxID,
			"asset1", fmt.Sprintf("%x.%x", p.Asset1.PolicyID, p.Asset1.Name),
			"asset2", fmt.Sprintf("%x.%x", p.Asset2.PolicyID, p.Asset2.Name))
		return nil, false, nil
	}

	return &store.MeanPrice{
		TxID:      p.TxID,
		AddressID: address.Address.ID,
		Dex:       int(p.Pool),
		Asset1ID:  asset1,
		Asset2ID:  asset2,
		Amount1:   p.Amount1,
		Amount2:   p.Amount2,
	}, true, nil
}
