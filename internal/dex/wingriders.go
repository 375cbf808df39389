package dex

import (
	"github.com/goran-ethernal/CardanoIndexor/internal/ledger"
)

var wingRidersPoolScript = mustDecodeHex("e6c90a5923713af5786963dee0fdffd830ca7e0c86a041d9e5833e91")

// ADA locked in every pool output that is not part of the reserves
const wingRidersPoolFixedADA uint64 = 3_000_000

// wingRidersMeanPrice subtracts the treasury accumulators kept in the pool datum
// and the fixed pool ADA from the amounts held by the pool output.
func wingRidersMeanPrice(tx *ledger.Transaction) (*MeanPrice, error) {
	out, datum, ok := firstPoolOutput(tx, wingRidersPoolScript)
	if !ok {
		return nil, nil
	}

	state := datum.Field(1)
	treasury1, err := state.Field(2).Uint64()
	if err != nil {
		return nil, err
	}
	treasury2, err := state.Field(3).Uint64()
	if err != nil {
		return nil, err
	}
	asset1, asset2, err := state.Field(0).AssetPair()
	if err != nil {
		return nil, err
	}

	amount1, err := wingRidersReserve(out, asset1, treasury1, "amount1")
	if err != nil {
		return nil, err
	}
	amount2, err := wingRidersReserve(out, asset2, treasury2, "amount2")
	if err != nil {
		return nil, err
	}
	return &MeanPrice{
		Address: out.Address,
		Asset1:  asset1,
		Asset2:  asset2,
		Amount1: amount1,
		Amount2: amount2,
	}, nil
}

func wingRidersReserve(out *ledger.Output, asset ledger.AssetID, treasury uint64, what string) (uint64, error) {
	amount, err := sub(out.Amount(asset), treasury, what)
	if err != nil {
		return 0, err
	}
	return sub(amount, reduceADA(asset, wingRidersPoolFixedADA), what)
}
