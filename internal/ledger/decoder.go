package ledger

import (
	"fmt"
	"slices"

	"github.com/blinklabs-io/gouroboros/ledger"
	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
	"github.com/blinklabs-io/plutigo/data"
)

// Decoder turns raw block and output CBOR into the ledger model.
type Decoder struct{}

// NewDecoder creates a new decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// DecodeBlock decodes a block of the given block type.
func (d *Decoder) DecodeBlock(blockType uint, payload []byte) (*Block, error) {
	raw, err := ledger.NewBlockFromCbor(blockType, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode block of type %d: %w", blockType, err)
	}

	block := &Block{
		Hash:    raw.Hash(),
		Era:     blockType,
		Height:  raw.BlockNumber(),
		Slot:    raw.SlotNumber(),
		Payload: payload,
	}

	txs := raw.Transactions()
	block.Transactions = make([]*Transaction, 0, len(txs))
	for i, rawTx := range txs {
		tx, err := decodeTransaction(i, rawTx)
		if err != nil {
			return nil, fmt.Errorf("failed to decode tx %d of block %s: %w", i, block.Hash, err)
		}
		block.Transactions = append(block.Transactions, tx)
	}

	return block, nil
}

// DecodeOutput decodes a stored output payload.
func (d *Decoder) DecodeOutput(payload []byte) (*Output, error) {
	raw, err := ledger.NewTransactionOutputFromCbor(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode output: %w", err)
	}
	return decodeOutput(raw)
}

func decodeTransaction(index int, raw lcommon.Transaction) (*Transaction, error) {
	tx := &Transaction{
		Hash:    raw.Hash(),
		Index:   index,
		Payload: raw.Cbor(),
		IsValid: raw.IsValid(),
	}

	tx.Inputs = decodeInputs(raw.Inputs())
	tx.CollateralInputs = decodeInputs(raw.Collateral())

	outputs := raw.Outputs()
	tx.Outputs = make([]*Output, 0, len(outputs))
	for i, rawOut := range outputs {
		out, err := decodeOutput(rawOut)
		if err != nil {
			return nil, fmt.Errorf("output %d: %w", i, err)
		}
		tx.Outputs = append(tx.Outputs, out)
	}

	if rawReturn := raw.CollateralReturn(); rawReturn != nil {
		out, err := decodeOutput(rawReturn)
		if err != nil {
			return nil, fmt.Errorf("collateral return: %w", err)
		}
		tx.CollateralReturn = out
	}

	if mint := raw.AssetMint(); mint != nil {
		for _, policy := range mint.Policies() {
			for _, name := range mint.Assets(policy) {
				tx.Mint = append(tx.Mint, NewAssetID(policy.Bytes(), name))
			}
		}
		// multi-asset maps iterate in random order
		slices.SortFunc(tx.Mint, AssetID.Compare)
	}

	if witnesses := raw.Witnesses(); witnesses != nil {
		for _, datum := range witnesses.PlutusData() {
			rawDatum := datum.Cbor()
			if len(rawDatum) == 0 {
				continue
			}
			decoded, err := data.Decode(rawDatum)
			if err != nil {
				// datums the DEX parsers cannot read are not an indexing error
				continue
			}
			if tx.Datums == nil {
				tx.Datums = make(map[Hash]data.PlutusData)
			}
			tx.Datums[lcommon.Blake2b256Hash(rawDatum)] = decoded
		}
	}

	return tx, nil
}

func decodeInputs(inputs []lcommon.TransactionInput) []OutputRef {
	if len(inputs) == 0 {
		return nil
	}
	refs := make([]OutputRef, len(inputs))
	for i, in := range inputs {
		refs[i] = OutputRef{TxHash: in.Id(), Index: in.Index()}
	}
	return refs
}

func decodeOutput(raw lcommon.TransactionOutput) (*Output, error) {
	addr, err := raw.Address().Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to encode address: %w", err)
	}

	out := &Output{
		Address:  addr,
		Payload:  raw.Cbor(),
		Lovelace: raw.Amount(),
	}

	if assets := raw.Assets(); assets != nil {
		for _, policy := range assets.Policies() {
			for _, name := range assets.Assets(policy) {
				out.Assets = append(out.Assets, AssetAmount{
					Asset:  NewAssetID(policy.Bytes(), name),
					Amount: assets.Asset(policy, name),
				})
			}
		}
		slices.SortFunc(out.Assets, func(a, b AssetAmount) int {
			return a.Asset.Compare(b.Asset)
		})
	}

	if dh := raw.DatumHash(); dh != nil {
		h := *dh
		out.DatumHash = &h
	}

	if datum := raw.Datum(); datum != nil && len(datum.Cbor()) > 0 {
		if decoded, err := data.Decode(datum.Cbor()); err == nil {
			out.InlineDatum = decoded
		}
	}

	return out, nil
}
