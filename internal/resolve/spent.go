package resolve

import (
	"context"
	"errors"
	"fmt"

	"github.com/goran-ethernal/CardanoIndexor/internal/ledger"
	"github.com/goran-ethernal/CardanoIndexor/internal/metrics"
	"github.com/goran-ethernal/CardanoIndexor/internal/store"
)

const kindSpentOutput = "spent_output"

// ErrUnresolvedInput is returned when an input references an output the index does not have.
// The chain and the index have diverged, so it is fatal.
var ErrUnresolvedInput = errors.New("unresolved input")

// UnresolvedInputError names the input that could not be resolved.
type UnresolvedInputError struct {
	Ref ledger.OutputRef
}

func (e *UnresolvedInputError) Error() string {
	return fmt.Sprintf("%s: %s#%d", ErrUnresolvedInput, e.Ref.TxHash, e.Ref.Index)
}

func (e *UnresolvedInputError) Unwrap() error {
	return ErrUnresolvedInput
}

// SpentOutput is a stored output consumed by the block.
type SpentOutput struct {
	Row *store.SpentOutput

	decoder OutputDecoder
	decoded *ledger.Output
}

// NewSpentOutput wraps a stored output row. decoder reads its payload on demand.
func NewSpentOutput(row *store.SpentOutput, decoder OutputDecoder) *SpentOutput {
	return &SpentOutput{Row: row, decoder: decoder}
}

// Output decodes the stored payload on first use.
func (o *SpentOutput) Output() (*ledger.Output, error) {
	if o.decoded != nil {
		return o.decoded, nil
	}
	out, err := o.decoder.DecodeOutput(o.Row.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode spent output %s#%d: %w", o.Row.TxHash, o.Row.OutputIndex, err)
	}
	o.decoded = out
	return out, nil
}

// SpentOutputs indexes the outputs consumed by a block by transaction hash, then output index.
type SpentOutputs map[ledger.Hash]map[uint32]*SpentOutput

// Add indexes o under the reference of its row.
func (s SpentOutputs) Add(o *SpentOutput) {
	byIndex, ok := s[o.Row.TxHash]
	if !ok {
		byIndex = make(map[uint32]*SpentOutput)
		s[o.Row.TxHash] = byIndex
	}
	byIndex[o.Row.OutputIndex] = o
}

// Lookup returns the spent output referenced by ref.
func (s SpentOutputs) Lookup(ref ledger.OutputRef) (*SpentOutput, bool) {
	byIndex, ok := s[ref.TxHash]
	if !ok {
		return nil, false
	}
	o, ok := byIndex[ref.Index]
	return o, ok
}

// Require is Lookup that fails with an *UnresolvedInputError.
func (s SpentOutputs) Require(ref ledger.OutputRef) (*SpentOutput, error) {
	o, ok := s.Lookup(ref)
	if !ok {
		return nil, &UnresolvedInputError{Ref: ref}
	}
	return o, nil
}

// Len returns the number of spent outputs.
func (s SpentOutputs) Len() int {
	n := 0
	for _, byIndex := range s {
		n += len(byIndex)
	}
	return n
}

// BuildInputs returns the input rows of the transaction with id txID spending refs.
func (s SpentOutputs) BuildInputs(txID int64, refs []ledger.OutputRef, collateral bool) ([]*store.Input, error) {
	inputs := make([]*store.Input, 0, len(refs))
	for i, ref := range refs {
		o, err := s.Require(ref)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, &store.Input{
			UtxoID:       o.Row.ID,
			TxID:         txID,
			InputIndex:   i,
			IsCollateral: collateral,
		})
	}
	return inputs, nil
}

// ResolveSpentOutputs fetches every output referenced by refs in one batched lookup.
// Every reference must match a stored output, otherwise an *UnresolvedInputError
// for the first missing one is returned.
func (s *Session) ResolveSpentOutputs(ctx context.Context, refs []ledger.OutputRef) (SpentOutputs, error) {
	spent := make(SpentOutputs)
	if len(refs) == 0 {
		return spent, nil
	}

	rows, err := s.store.FindOutputsByRefs(ctx, refs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve spent outputs: %w", err)
	}

	for _, row := range rows {
		spent.Add(NewSpentOutput(row, s.resolver.decoder))
	}

	for _, ref := range refs {
		if _, ok := spent.Lookup(ref); !ok {
			return nil, &UnresolvedInputError{Ref: ref}
		}
	}

	metrics.EntitiesResolvedAdd(kindSpentOutput, metrics.SourceStore, len(rows))
	return spent, nil
}
