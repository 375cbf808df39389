package store

import (
	"github.com/goran-ethernal/CardanoIndexor/internal/ledger"
)

// Block is a row of the block table.
type Block struct {
	ID      int64       `meddler:"id,pk"`
	Hash    ledger.Hash `meddler:"hash,hash"`
	Era     uint        `meddler:"era"`
	Height  uint64      `meddler:"height"`
	Slot    uint64      `meddler:"slot"`
	Payload []byte      `meddler:"payload"`
}

// Transaction is a row of the tx table.
type Transaction struct {
	ID      int64       `meddler:"id,pk"`
	Hash    ledger.Hash `meddler:"hash,hash"`
	BlockID int64       `meddler:"block_id"`
	Index   int         `meddler:"tx_index"`
	Payload []byte      `meddler:"payload"`
	IsValid bool        `meddler:"is_valid"`
}

// Address is a row of the address table.
type Address struct {
	ID      int64  `meddler:"id,pk"`
	Payload []byte `meddler:"payload"`
	FirstTx int64  `meddler:"first_tx"`
}

// NativeAsset is a row of the native_asset table.
type NativeAsset struct {
	ID          int64  `meddler:"id,pk"`
	PolicyID    []byte `meddler:"policy_id"`
	AssetName   []byte `meddler:"asset_name"`
	Fingerprint string `meddler:"cip14_fingerprint"`
	FirstTx     int64  `meddler:"first_tx"`
}

// AssetID returns the ledger identifier of the asset.
func (a *NativeAsset) AssetID() ledger.AssetID {
	return ledger.NewAssetID(a.PolicyID, a.AssetName)
}

// Output is a row of the tx_output table.
type Output struct {
	ID          int64  `meddler:"id,pk"`
	TxID        int64  `meddler:"tx_id"`
	AddressID   int64  `meddler:"address_id"`
	OutputIndex uint32 `meddler:"output_index"`
	Payload     []byte `meddler:"payload"`
}

// SpentOutput is a tx_output row joined with the hash of its transaction.
type SpentOutput struct {
	ID          int64       `meddler:"id,pk"`
	TxID        int64       `meddler:"tx_id"`
	AddressID   int64       `meddler:"address_id"`
	OutputIndex uint32      `meddler:"output_index"`
	Payload     []byte      `meddler:"payload"`
	TxHash      ledger.Hash `meddler:"tx_hash,hash"`
}

// Ref returns the pointer the ledger uses for the output.
func (o *SpentOutput) Ref() ledger.OutputRef {
	return ledger.OutputRef{TxHash: o.TxHash, Index: o.OutputIndex}
}

// Input is a row of the tx_input table.
type Input struct {
	ID           int64 `meddler:"id,pk"`
	UtxoID       int64 `meddler:"utxo_id"`
	TxID         int64 `meddler:"tx_id"`
	InputIndex   int   `meddler:"input_index"`
	IsCollateral bool  `meddler:"is_collateral"`
}

// AssetTransfer is a row of the asset_transfer table. A nil AssetID is ADA.
type AssetTransfer struct {
	ID      int64  `meddler:"id,pk"`
	UtxoID  int64  `meddler:"utxo_id"`
	AssetID *int64 `meddler:"asset_id"`
	Amount  uint64 `meddler:"amount,amount"`
}

// MeanPrice is a row of the dex_mean_price table. Nil asset ids are ADA.
type MeanPrice struct {
	ID        int64  `meddler:"id,pk"`
	TxID      int64  `meddler:"tx_id"`
	AddressID int64  `meddler:"address_id"`
	Dex       int    `meddler:"dex"`
	Asset1ID  *int64 `meddler:"asset1_id"`
	Asset2ID  *int64 `meddler:"asset2_id"`
	Amount1   uint64 `meddler:"amount1,amount"`
	Amount2   uint64 `meddler:"amount2,amount"`
}

// Swap is a row of the dex_swap table. Nil asset ids are ADA.
type Swap struct {
	ID        int64  `meddler:"id,pk"`
	TxID      int64  `meddler:"tx_id"`
	AddressID int64  `meddler:"address_id"`
	Dex       int    `meddler:"dex"`
	Asset1ID  *int64 `meddler:"asset1_id"`
	Asset2ID  *int64 `meddler:"asset2_id"`
	Amount1   uint64 `meddler:"amount1,amount"`
	Amount2   uint64 `meddler:"amount2,amount"`
	Direction int    `meddler:"direction"`
}

// nullableID maps a nil id to NULL.
func nullableID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}
