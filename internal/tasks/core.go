package tasks

import (
	"context"
	"fmt"

	"github.com/goran-ethernal/CardanoIndexor/internal/ledger"
	"github.com/goran-ethernal/CardanoIndexor/internal/resolve"
	"github.com/goran-ethernal/CardanoIndexor/internal/store"
	"github.com/goran-ethernal/CardanoIndexor/pkg/task"
)

func newBlockTask(task.Options) (task.Task, error) {
	return task.Task{
		Name:   NameBlock,
		Writes: []task.Key{KeyBlock},
		Execute: func(ctx context.Context, env *task.Env) (any, error) {
			return env.Store.InsertBlock(ctx, env.Block)
		},
	}, nil
}

func newTransactionsTask(task.Options) (task.Task, error) {
	return task.Task{
		Name:    NameTransactions,
		Reads:   []task.Key{KeyBlock},
		Writes:  []task.Key{KeyTransactions},
		Applies: (*ledger.Block).HasTransactions,
		Execute: func(ctx context.Context, env *task.Env) (any, error) {
			block, err := task.Get[*store.Block](env, KeyBlock)
			if err != nil {
				return nil, err
			}
			return env.Store.InsertTransactions(ctx, block.ID, env.Block.Transactions)
		},
	}, nil
}

// newAddressesTask resolves every address that receives an output in the block.
func newAddressesTask(task.Options) (task.Task, error) {
	return task.Task{
		Name:    NameAddresses,
		Reads:   []task.Key{KeyTransactions},
		Writes:  []task.Key{KeyAddresses},
		Applies: producesOutputs,
		Execute: func(ctx context.Context, env *task.Env) (any, error) {
			txs, err := task.Get[[]*store.Transaction](env, KeyTransactions)
			if err != nil {
				return nil, err
			}

			candidates := make(map[string]int64)
			for i, tx := range env.Block.Transactions {
				for _, out := range tx.ProducedOutputs() {
					key := string(out.Output.Address)
					if _, seen := candidates[key]; !seen {
						candidates[key] = txs[i].ID
					}
				}
			}
			return env.Resolve.ResolveAddresses(ctx, candidates)
		},
	}, nil
}

// newOutputsTask stores the outputs the block creates. A failed transaction
// creates only its collateral return.
func newOutputsTask(task.Options) (task.Task, error) {
	return task.Task{
		Name:    NameOutputs,
		Reads:   []task.Key{KeyTransactions, KeyAddresses},
		Writes:  []task.Key{KeyOutputs},
		Applies: producesOutputs,
		Execute: func(ctx context.Context, env *task.Env) (any, error) {
			txs, err := task.Get[[]*store.Transaction](env, KeyTransactions)
			if err != nil {
				return nil, err
			}
			addresses, err := task.Get[map[string]resolve.AddressInBlock](env, KeyAddresses)
			if err != nil {
				return nil, err
			}

			var stored []*StoredOutput
			rows := make([]*store.Output, 0, len(env.Block.Transactions))
			for i, tx := range env.Block.Transactions {
				for _, out := range tx.ProducedOutputs() {
					address, ok := addresses[string(out.Output.Address)]
					if !ok {
						return nil, fmt.Errorf("%w: address of output %s#%d", store.ErrMissingRows, tx.Hash, out.Index)
					}
					row := &store.Output{
						TxID:        txs[i].ID,
						AddressID:   address.Address.ID,
						OutputIndex: out.Index,
						Payload:     out.Output.Payload,
					}
					rows = append(rows, row)
					stored = append(stored, &StoredOutput{Row: row, Output: out.Output})
				}
			}

			if err := env.Store.InsertOutputs(ctx, rows); err != nil {
				return nil, fmt.Errorf("failed to insert outputs: %w", err)
			}
			return stored, nil
		},
	}, nil
}

// newUsedInputsTask resolves the outputs the block spends and stores the inputs.
// A failed transaction spends only its collateral.
func newUsedInputsTask(task.Options) (task.Task, error) {
	return task.Task{
		Name: NameUsedInputs,
		// outputs created earlier in the block can be spent later in the same block
		Reads:   []task.Key{KeyTransactions, KeyOutputs},
		Writes:  []task.Key{KeySpentOutputs},
		Applies: consumesInputs,
		Execute: func(ctx context.Context, env *task.Env) (any, error) {
			txs, err := task.Get[[]*store.Transaction](env, KeyTransactions)
			if err != nil {
				return nil, err
			}
			if _, _, err := task.Optional[[]*StoredOutput](env, KeyOutputs); err != nil {
				return nil, err
			}

			var refs []ledger.OutputRef
			for _, tx := range env.Block.Transactions {
				refs = append(refs, tx.ConsumedInputs()...)
			}
			spent, err := env.Resolve.ResolveSpentOutputs(ctx, refs)
			if err != nil {
				return nil, err
			}

			inputs := make([]*store.Input, 0, len(refs))
			for i, tx := range env.Block.Transactions {
				built, err := spent.BuildInputs(txs[i].ID, tx.ConsumedInputs(), !tx.IsValid)
				if err != nil {
					return nil, err
				}
				inputs = append(inputs, built...)
			}
			if err := env.Store.InsertInputs(ctx, inputs); err != nil {
				return nil, fmt.Errorf("failed to insert inputs: %w", err)
			}
			return spent, nil
		},
	}, nil
}
