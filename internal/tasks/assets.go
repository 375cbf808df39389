package tasks

import (
	"context"
	"fmt"

	"github.com/goran-ethernal/CardanoIndexor/internal/ledger"
	"github.com/goran-ethernal/CardanoIndexor/internal/resolve"
	"github.com/goran-ethernal/CardanoIndexor/internal/store"
	"github.com/goran-ethernal/CardanoIndexor/pkg/task"
)

// newNativeAssetsTask resolves every native asset the block mints or sends to an output.
func newNativeAssetsTask(task.Options) (task.Task, error) {
	return task.Task{
		Name:    NameNativeAssets,
		Reads:   []task.Key{KeyTransactions},
		Writes:  []task.Key{KeyAssets},
		Applies: producesAssets,
		Execute: func(ctx context.Context, env *task.Env) (any, error) {
			txs, err := task.Get[[]*store.Transaction](env, KeyTransactions)
			if err != nil {
				return nil, err
			}

			candidates := make(map[ledger.AssetID]int64)
			add := func(id ledger.AssetID, txID int64) {
				if _, seen := candidates[id]; !seen {
					candidates[id] = txID
				}
			}
			for i, tx := range env.Block.Transactions {
				if tx.IsValid {
					for _, id := range tx.Mint {
						add(id, txs[i].ID)
					}
				}
				for _, out := range tx.ProducedOutputs() {
					for _, a := range out.Output.Assets {
						add(a.Asset, txs[i].ID)
					}
				}
			}
			return env.Resolve.ResolveAssets(ctx, candidates)
		},
	}, nil
}

// newAssetTransfersTask records the lovelace and the native assets every new output holds.
func newAssetTransfersTask(task.Options) (task.Task, error) {
	return task.Task{
		Name:    NameAssetTransfers,
		Reads:   []task.Key{KeyOutputs, KeyAssets},
		Applies: producesOutputs,
		Execute: func(ctx context.Context, env *task.Env) (any, error) {
			outputs, err := task.Get[[]*StoredOutput](env, KeyOutputs)
			if err != nil {
				return nil, err
			}
			// absent when no output holds a native asset
			assets, _, err := task.Optional[map[ledger.AssetID]resolve.AssetInBlock](env, KeyAssets)
			if err != nil {
				return nil, err
			}

			transfers := make([]*store.AssetTransfer, 0, len(outputs))
			for _, o := range outputs {
				transfers = append(transfers, &store.AssetTransfer{
					UtxoID: o.Row.ID,
					Amount: o.Output.Lovelace,
				})
				for _, a := range o.Output.Assets {
					resolved, ok := assets[a.Asset]
					if !ok {
						return nil, fmt.Errorf("%w: native asset %x.%x of output %d",
							store.ErrMissingRows, a.Asset.PolicyID, a.Asset.Name, o.Row.ID)
					}
					transfers = append(transfers, &store.AssetTransfer{
						UtxoID:  o.Row.ID,
						AssetID: &resolved.Asset.ID,
						Amount:  a.Amount,
					})
				}
			}

			if err := env.Store.InsertAssetTransfers(ctx, transfers); err != nil {
				return nil, fmt.Errorf("failed to insert asset transfers: %w", err)
			}
			return nil, nil
		},
	}, nil
}
