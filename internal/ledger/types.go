// Package ledger holds the decoded view of blocks that the indexing tasks work on.
package ledger

import (
	"bytes"

	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
	"github.com/blinklabs-io/plutigo/data"
)

// Hash is a blake2b-256 digest identifying a block, a transaction or a datum.
type Hash = lcommon.Blake2b256

// NewHash copies a 32 byte digest into a Hash.
func NewHash(b []byte) Hash {
	return lcommon.NewBlake2b256(b)
}

// Block types as tagged in the block source, they double as the era tag.
const (
	BlockTypeByronEbb uint = 0
	BlockTypeByron    uint = 1
	BlockTypeShelley  uint = 2
	BlockTypeAllegra  uint = 3
	BlockTypeMary     uint = 4
	BlockTypeAlonzo   uint = 5
	BlockTypeBabbage  uint = 6
	BlockTypeConway   uint = 7
)

// Block is a decoded block.
type Block struct {
	Hash         Hash
	Era          uint
	Height       uint64
	Slot         uint64
	Payload      []byte
	Transactions []*Transaction
}

// HasTransactions reports whether the block carries at least one transaction.
func (b *Block) HasTransactions() bool {
	return len(b.Transactions) > 0
}

// OutputRef points at an output by the hash of the transaction that created it.
type OutputRef struct {
	TxHash Hash
	Index  uint32
}

// AssetID identifies a native asset by raw policy id and raw asset name.
// The zero value is ADA.
type AssetID struct {
	PolicyID string
	Name     string
}

// ADA is the sentinel for the ledger's native currency.
var ADA = AssetID{}

// NewAssetID builds an AssetID from raw bytes.
func NewAssetID(policyID, name []byte) AssetID {
	return AssetID{PolicyID: string(policyID), Name: string(name)}
}

// IsADA reports whether the id is the ADA sentinel.
func (a AssetID) IsADA() bool {
	return a.PolicyID == "" && a.Name == ""
}

// Compare orders ids by policy id, then name.
func (a AssetID) Compare(b AssetID) int {
	if c := bytes.Compare([]byte(a.PolicyID), []byte(b.PolicyID)); c != 0 {
		return c
	}
	return bytes.Compare([]byte(a.Name), []byte(b.Name))
}

// AssetAmount is a quantity of one native asset held by an output.
type AssetAmount struct {
	Asset  AssetID
	Amount uint64
}

// Output is a decoded transaction output.
type Output struct {
	Address     []byte
	Payload     []byte
	Lovelace    uint64
	Assets      []AssetAmount
	DatumHash   *Hash
	InlineDatum data.PlutusData
}

// Amount returns the quantity of asset held by the output, lovelace for ADA.
func (o *Output) Amount(asset AssetID) uint64 {
	if asset.IsADA() {
		return o.Lovelace
	}
	for _, a := range o.Assets {
		if a.Asset == asset {
			return a.Amount
		}
	}
	return 0
}

// Transaction is a decoded transaction.
// Invalid transactions (failed phase-2 validation) only consume their collateral
// inputs and only produce their collateral return.
type Transaction struct {
	Hash             Hash
	Index            int
	Payload          []byte
	IsValid          bool
	Inputs           []OutputRef
	CollateralInputs []OutputRef
	Outputs          []*Output
	CollateralReturn *Output
	Mint             []AssetID
	Datums           map[Hash]data.PlutusData
}

// ProducedOutputs returns the outputs the transaction adds to the ledger with their indexes.
func (t *Transaction) ProducedOutputs() []IndexedOutput {
	if !t.IsValid {
		if t.CollateralReturn == nil {
			return nil
		}
		return []IndexedOutput{{Index: uint32(len(t.Outputs)), Output: t.CollateralReturn}} //nolint:gosec
	}

	produced := make([]IndexedOutput, len(t.Outputs))
	for i, out := range t.Outputs {
		produced[i] = IndexedOutput{Index: uint32(i), Output: out} //nolint:gosec
	}
	return produced
}

// ConsumedInputs returns the outputs the transaction spends.
func (t *Transaction) ConsumedInputs() []OutputRef {
	if !t.IsValid {
		return t.CollateralInputs
	}
	return t.Inputs
}

// HasProducedOutputs reports whether ProducedOutputs is non-empty.
func (t *Transaction) HasProducedOutputs() bool {
	if t.IsValid {
		return len(t.Outputs) > 0
	}
	return t.CollateralReturn != nil
}

// DatumFor returns the datum attached to an output, either inline or
// through a datum hash whose preimage is in the witness set.
func (t *Transaction) DatumFor(out *Output) (data.PlutusData, bool) {
	if out.InlineDatum != nil {
		return out.InlineDatum, true
	}
	if out.DatumHash == nil {
		return nil, false
	}
	d, ok := t.Datums[*out.DatumHash]
	return d, ok
}

// IndexedOutput is an output with its position in the transaction.
type IndexedOutput struct {
	Index  uint32
	Output *Output
}
