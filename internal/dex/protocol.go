package dex

import (
	"bytes"
	"encoding/hex"
	"errors"

	"github.com/goran-ethernal/CardanoIndexor/internal/ledger"
	"github.com/goran-ethernal/CardanoIndexor/internal/resolve"
)

// Protocol extracts the events of one exchange.
type Protocol struct {
	Type PoolType
}

// NewProtocol returns the protocol for a supported pool type.
func NewProtocol(t PoolType) (Protocol, error) {
	if !t.Valid() {
		return Protocol{}, ErrUnknownProtocol
	}
	return Protocol{Type: t}, nil
}

// ExtractMeanPrice returns the pool state left by tx, or nil when tx does not touch a pool.
// A malformed pool datum yields a *ParseError.
func (p Protocol) ExtractMeanPrice(tx *ledger.Transaction, txID int64) (*MeanPrice, error) {
	var (
		price *MeanPrice
		err   error
	)
	switch p.Type {
	case WingRidersV1:
		price, err = wingRidersMeanPrice(tx)
	case SundaeSwapV1:
		price, err = sundaeSwapMeanPrice(tx)
	case MinSwapV1:
		price, err = minSwapV1MeanPrice(tx)
	case MinSwapV2:
		price, err = minSwapV2MeanPrice(tx)
	default:
		return nil, ErrUnknownProtocol
	}
	if err != nil {
		return nil, &ParseError{Protocol: p.Type, TxID: txID, Err: err}
	}
	if price != nil {
		price.TxID = txID
		price.Pool = p.Type
	}
	return price, nil
}

// ExtractSwaps returns the orders of tx executed against a pool. spent holds the
// outputs consumed by the block, the request outputs among them carry the orders.
// An input missing from spent is returned as is, it is not a parse error.
// Only SundaeSwap orders are decoded, the other protocols yield no swaps.
func (p Protocol) ExtractSwaps(tx *ledger.Transaction, txID int64, spent resolve.SpentOutputs) ([]Swap, error) {
	var (
		swaps []Swap
		err   error
	)
	switch p.Type {
	case SundaeSwapV1:
		swaps, err = sundaeSwapSwaps(tx, spent)
	case WingRidersV1, MinSwapV1, MinSwapV2:
		return nil, nil
	default:
		return nil, ErrUnknownProtocol
	}
	if errors.Is(err, resolve.ErrUnresolvedInput) {
		return nil, err
	}
	if err != nil {
		return nil, &ParseError{Protocol: p.Type, TxID: txID, Err: err}
	}
	for i := range swaps {
		swaps[i].TxID = txID
		swaps[i].Pool = p.Type
	}
	return swaps, nil
}

func mustDecodeHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}

type outputWithDatum struct {
	output *ledger.Output
	datum  Datum
}

// outputsWithDatum returns the outputs locked by scriptHash whose datum tx provides.
func outputsWithDatum(tx *ledger.Transaction, outputs []*ledger.Output, scriptHash []byte) []outputWithDatum {
	var matched []outputWithDatum
	for _, out := range outputs {
		if !bytes.Equal(out.PaymentHash(), scriptHash) {
			continue
		}
		d, ok := tx.DatumFor(out)
		if !ok {
			continue
		}
		matched = append(matched, outputWithDatum{output: out, datum: NewDatum(d)})
	}
	return matched
}

// firstPoolOutput returns the first output locked by scriptHash. ok is false when
// there is none or its datum is not available.
func firstPoolOutput(tx *ledger.Transaction, scriptHash []byte) (*ledger.Output, Datum, bool) {
	for _, out := range tx.Outputs {
		if !bytes.Equal(out.PaymentHash(), scriptHash) {
			continue
		}
		d, ok := tx.DatumFor(out)
		if !ok {
			return nil, Datum{}, false
		}
		return out, NewDatum(d), true
	}
	return nil, Datum{}, false
}

