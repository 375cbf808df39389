package testutil

import (
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"

	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
	"github.com/goran-ethernal/CardanoIndexor/internal/ledger"
)

// Hash returns a deterministic hash derived from seed.
func Hash(seed ...byte) ledger.Hash {
	return lcommon.Blake2b256Hash(append([]byte("hash"), seed...))
}

// Address returns a deterministic mainnet enterprise key address.
func Address(seed ...byte) []byte {
	cred := lcommon.Blake2b224Hash(append([]byte("address"), seed...))
	return append([]byte{0x61}, cred.Bytes()...)
}

// ScriptAddress returns a mainnet enterprise script address for the given script hash.
func ScriptAddress(scriptHash []byte) []byte {
	return append([]byte{0x71}, scriptHash...)
}

var payloadSeq atomic.Uint64

// NewOutput builds an output with a unique payload.
func NewOutput(address []byte, lovelace uint64, assets ...ledger.AssetAmount) *ledger.Output {
	payload := binary.BigEndian.AppendUint64([]byte("output"), payloadSeq.Add(1))
	return &ledger.Output{
		Address:  address,
		Payload:  payload,
		Lovelace: lovelace,
		Assets:   assets,
	}
}

// FakeDecoder decodes the payloads of outputs registered with it.
type FakeDecoder struct {
	mu      sync.RWMutex
	outputs map[string]*ledger.Output
}

// NewFakeDecoder creates a decoder that knows the given outputs.
func NewFakeDecoder(outputs ...*ledger.Output) *FakeDecoder {
	d := &FakeDecoder{outputs: make(map[string]*ledger.Output)}
	d.Register(outputs...)
	return d
}

// Register makes the outputs decodable.
func (d *FakeDecoder) Register(outputs ...*ledger.Output) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, o := range outputs {
		d.outputs[string(o.Payload)] = o
	}
}

// RegisterBlock makes every output of the block decodable.
func (d *FakeDecoder) RegisterBlock(block *ledger.Block) {
	for _, tx := range block.Transactions {
		for _, out := range tx.ProducedOutputs() {
			d.Register(out.Output)
		}
	}
}

// DecodeOutput implements the resolver's output decoder.
func (d *FakeDecoder) DecodeOutput(payload []byte) (*ledger.Output, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out, ok := d.outputs[string(payload)]
	if !ok {
		return nil, fmt.Errorf("unknown output payload %x", payload)
	}
	return out, nil
}
