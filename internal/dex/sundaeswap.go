package dex

import (
	"bytes"
	"fmt"
	"slices"

	"github.com/goran-ethernal/CardanoIndexor/internal/ledger"
	"github.com/goran-ethernal/CardanoIndexor/internal/resolve"
)

var (
	sundaeSwapPoolScript    = mustDecodeHex("4020e7fc2de75a0729c3cc3af715b34d98381e0cdbcfa99c950bc3ac")
	sundaeSwapRequestScript = mustDecodeHex("ba158766c1bae60e2117ee8987621441fac66a5e0fb9c7aca58cf20a")
)

const (
	// oil ADA plus the agent fee
	sundaeSwapInADA uint64 = 4_500_000
	// oil ADA
	sundaeSwapOutADA uint64 = 2_000_000

	sundaeSwapOperationSwap = 0
	// header of a mainnet base address with key payment and key stake credentials
	mainnetBaseAddressHeader = 0x01
)

// sundaeSwapPool returns the pool output of tx with its pair. There is at most one.
func sundaeSwapPool(tx *ledger.Transaction) (*outputWithDatum, ledger.AssetID, ledger.AssetID, error) {
	pools := outputsWithDatum(tx, tx.Outputs, sundaeSwapPoolScript)
	if len(pools) == 0 {
		return nil, ledger.AssetID{}, ledger.AssetID{}, nil
	}
	pool := pools[0]
	asset1, asset2, err := pool.datum.Field(0).AssetPair()
	if err != nil {
		return nil, ledger.AssetID{}, ledger.AssetID{}, err
	}
	return &pool, asset1, asset2, nil
}

func sundaeSwapMeanPrice(tx *ledger.Transaction) (*MeanPrice, error) {
	pool, asset1, asset2, err := sundaeSwapPool(tx)
	if err != nil || pool == nil {
		return nil, err
	}
	return &MeanPrice{
		Address: pool.output.Address,
		Asset1:  asset1,
		Asset2:  asset2,
		Amount1: pool.output.Amount(asset1),
		Amount2: pool.output.Amount(asset2),
	}, nil
}

func sundaeSwapSwaps(tx *ledger.Transaction, spent resolve.SpentOutputs) ([]Swap, error) {
	pool, asset1, asset2, err := sundaeSwapPool(tx)
	if err != nil || pool == nil {
		return nil, err
	}

	inputs := make([]*ledger.Output, 0, len(tx.Inputs))
	for _, ref := range tx.Inputs {
		o, err := spent.Require(ref)
		if err != nil {
			return nil, err
		}
		out, err := o.Output()
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, out)
	}

	free := slices.Clone(tx.Outputs)
	var swaps []Swap
	for _, request := range outputsWithDatum(tx, inputs, sundaeSwapRequestScript) {
		order := request.datum
		operation, err := order.Field(3).Constructor()
		if err != nil {
			return nil, err
		}
		if operation != sundaeSwapOperationSwap {
			continue
		}

		target, err := sundaeSwapDestination(order)
		if err != nil {
			return nil, err
		}
		pos := slices.IndexFunc(free, func(o *ledger.Output) bool {
			return bytes.Equal(o.Address, target)
		})
		if pos < 0 {
			return nil, fmt.Errorf("no output pays the swap destination %x", target)
		}
		utxo := free[pos]
		free = slices.Delete(free, pos, pos+1)

		side, err := order.Field(3).Field(0).Constructor()
		if err != nil {
			return nil, err
		}

		swap := Swap{
			MeanPrice: MeanPrice{
				Address: pool.output.Address,
				Asset1:  asset1,
				Asset2:  asset2,
			},
		}
		if side == 0 {
			swap.Direction = BuyAsset1
			swap.Amount1, err = sub(request.output.Amount(asset1), reduceADA(asset1, sundaeSwapInADA), "amount1")
			if err != nil {
				return nil, err
			}
			swap.Amount2, err = sub(utxo.Amount(asset2), reduceADA(asset2, sundaeSwapOutADA), "amount2")
		} else {
			swap.Direction = SellAsset1
			swap.Amount1, err = sub(utxo.Amount(asset1), reduceADA(asset1, sundaeSwapOutADA), "amount1")
			if err != nil {
				return nil, err
			}
			swap.Amount2, err = sub(request.output.Amount(asset2), reduceADA(asset2, sundaeSwapInADA), "amount2")
		}
		if err != nil {
			return nil, err
		}
		swaps = append(swaps, swap)
	}
	return swaps, nil
}

// sundaeSwapDestination rebuilds the address the order pays out to from the
// payment and stake key hashes in the order datum.
func sundaeSwapDestination(order Datum) ([]byte, error) {
	owner := order.Field(1).Field(0).Field(0)
	payment, err := owner.Field(0).Field(0).Bytes()
	if err != nil {
		return nil, err
	}
	stake, err := owner.Field(1).Field(0).Field(0).Field(0).Bytes()
	if err != nil {
		return nil, err
	}

	address := make([]byte, 0, 1+len(payment)+len(stake))
	address = append(address, mainnetBaseAddressHeader)
	address = append(address, payment...)
	return append(address, stake...), nil
}
