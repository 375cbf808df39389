package dex

import (
	"github.com/goran-ethernal/CardanoIndexor/internal/ledger"
)

var (
	minSwapV1PoolScript = mustDecodeHex("e1317b152faac13426e6a83e06ff88a4d62cce3c1634ab0a5ec13309")
	minSwapV2PoolScript = mustDecodeHex("ea07b733d932129c378af627436e7cbc2ef0bf96e0036bb51b3bde6b")
)

// minSwapV2 pool datum positions
const (
	minSwapV2AssetA   = 1
	minSwapV2AssetB   = 2
	minSwapV2ReserveA = 4
	minSwapV2ReserveB = 5
)

// minSwapV1MeanPrice reads the pair from the pool datum and the reserves from the pool output.
func minSwapV1MeanPrice(tx *ledger.Transaction) (*MeanPrice, error) {
	out, datum, ok := firstPoolOutput(tx, minSwapV1PoolScript)
	if !ok {
		return nil, nil
	}

	asset1, asset2, err := datum.Field(1).Field(0).AssetPair()
	if err != nil {
		return nil, err
	}
	return &MeanPrice{
		Address: out.Address,
		Asset1:  asset1,
		Asset2:  asset2,
		Amount1: out.Amount(asset1),
		Amount2: out.Amount(asset2),
	}, nil
}

// minSwapV2MeanPrice reads both the pair and the reserves from the pool datum.
// The datum reserves exclude the ADA the pool output holds for its own upkeep.
func minSwapV2MeanPrice(tx *ledger.Transaction) (*MeanPrice, error) {
	out, datum, ok := firstPoolOutput(tx, minSwapV2PoolScript)
	if !ok {
		return nil, nil
	}

	asset1, err := datum.Field(minSwapV2AssetA).Asset()
	if err != nil {
		return nil, err
	}
	asset2, err := datum.Field(minSwapV2AssetB).Asset()
	if err != nil {
		return nil, err
	}
	reserve1, err := datum.Field(minSwapV2ReserveA).Uint64()
	if err != nil {
		return nil, err
	}
	reserve2, err := datum.Field(minSwapV2ReserveB).Uint64()
	if err != nil {
		return nil, err
	}
	return &MeanPrice{
		Address: out.Address,
		Asset1:  asset1,
		Asset2:  asset2,
		Amount1: reserve1,
		Amount2: reserve2,
	}, nil
}
