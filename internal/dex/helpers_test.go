package dex

import (
	"math/big"

	"github.com/blinklabs-io/plutigo/data"
	"github.com/goran-ethernal/CardanoIndexor/internal/ledger"
	"github.com/goran-ethernal/CardanoIndexor/internal/resolve"
	"github.com/goran-ethernal/CardanoIndexor/internal/store"
	"github.com/goran-ethernal/CardanoIndexor/internal/testutil"
)

var (
	testToken = ledger.NewAssetID(mustDecodeHex("7eae28af2208be856f7a119668ae52a49b73725e326dc16579dcc373"), []byte("TOKEN"))
	testOther = ledger.NewAssetID(mustDecodeHex("7eae28af2208be856f7a119668ae52a49b73725e326dc16579dcc373"), []byte("OTHER"))
)

func dBytes(b []byte) data.PlutusData {
	return data.NewByteString(b)
}

func dInt(n int64) data.PlutusData {
	return data.NewInteger(big.NewInt(n))
}

func dConstr(tag uint, fields ...data.PlutusData) data.PlutusData {
	return data.NewConstr(tag, fields...)
}

func dAsset(a ledger.AssetID) data.PlutusData {
	return dConstr(0, dBytes([]byte(a.PolicyID)), dBytes([]byte(a.Name)))
}

func withInlineDatum(out *ledger.Output, d data.PlutusData) *ledger.Output {
	out.InlineDatum = d
	return out
}

// withWitnessDatum attaches d to out through a datum hash whose preimage tx carries.
func withWitnessDatum(tx *ledger.Transaction, out *ledger.Output, seed byte, d data.PlutusData) *ledger.Output {
	h := testutil.Hash(0xdd, seed)
	out.DatumHash = &h
	if tx.Datums == nil {
		tx.Datums = make(map[ledger.Hash]data.PlutusData)
	}
	tx.Datums[h] = d
	return out
}

func sundaePoolDatum(asset1, asset2 ledger.AssetID) data.PlutusData {
	return dConstr(0,
		dConstr(0, dAsset(asset1), dAsset(asset2)),
		dBytes([]byte{0x01}),
		dInt(1_000_000),
		dConstr(0, dInt(1), dInt(2000)),
	)
}

// sundaeOrderDatum builds a request datum paying out to 0x01 ‖ payment ‖ stake.
func sundaeOrderDatum(operation, side uint, payment, stake []byte) data.PlutusData {
	owner := dConstr(0,
		dConstr(0, dBytes(payment)),
		dConstr(0, dConstr(0, dConstr(0, dBytes(stake)))),
	)
	return dConstr(0,
		dBytes([]byte{0x01}),
		dConstr(0, dConstr(0, owner), dConstr(1)),
		dInt(2_500_000),
		dConstr(operation, dConstr(side), dInt(100)),
	)
}

func destination(payment, stake []byte) []byte {
	addr := append([]byte{mainnetBaseAddressHeader}, payment...)
	return append(addr, stake...)
}

func minSwapV1PoolDatum(asset1, asset2 ledger.AssetID) data.PlutusData {
	return dConstr(0,
		dBytes([]byte{0x02}),
		dConstr(0, dConstr(0, dAsset(asset1), dAsset(asset2))),
	)
}

func minSwapV2PoolDatum(asset1, asset2 ledger.AssetID, reserve1, reserve2 int64) data.PlutusData {
	return dConstr(0,
		dConstr(0, dBytes([]byte{0x03})),
		dAsset(asset1),
		dAsset(asset2),
		dInt(5_000),
		dInt(reserve1),
		dInt(reserve2),
		dInt(30),
		dInt(30),
	)
}

func wingRidersPoolDatum(asset1, asset2 ledger.AssetID, treasury1, treasury2 int64) data.PlutusData {
	return dConstr(0,
		dBytes([]byte{0x04}),
		dConstr(0,
			dConstr(0, dAsset(asset1), dAsset(asset2)),
			dInt(1_650_000_000),
			dInt(treasury1),
			dInt(treasury2),
		),
	)
}

func newTx(outputs ...*ledger.Output) *ledger.Transaction {
	return &ledger.Transaction{Hash: testutil.Hash(0x70, byte(len(outputs))), IsValid: true, Outputs: outputs}
}

// spend registers outputs as consumed by tx and returns the lookup a block would resolve.
func spend(tx *ledger.Transaction, outputs ...*ledger.Output) resolve.SpentOutputs {
	decoder := testutil.NewFakeDecoder(outputs...)
	spent := make(resolve.SpentOutputs)
	for i, out := range outputs {
		ref := ledger.OutputRef{TxHash: testutil.Hash(0x50, byte(i)), Index: uint32(i)} //nolint:gosec
		tx.Inputs = append(tx.Inputs, ref)
		spent.Add(resolve.NewSpentOutput(&store.SpentOutput{
			ID:          int64(i + 1),
			OutputIndex: ref.Index,
			TxHash:      ref.TxHash,
			Payload:     out.Payload,
		}, decoder))
	}
	return spent
}
