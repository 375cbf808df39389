// Package tasks holds the indexing tasks that run for every block. Each task is
// registered with the task registry on import.
package tasks

import (
	"github.com/goran-ethernal/CardanoIndexor/internal/ledger"
	"github.com/goran-ethernal/CardanoIndexor/internal/store"
	"github.com/goran-ethernal/CardanoIndexor/pkg/task"
)

// Block context keys.
const (
	KeyBlock        task.Key = "block"
	KeyTransactions task.Key = "transactions"
	KeyAddresses    task.Key = "addresses"
	KeyOutputs      task.Key = "outputs"
	KeySpentOutputs task.Key = "spent_outputs"
	KeyAssets       task.Key = "assets"
)

// Task names.
const (
	NameBlock          = "block"
	NameTransactions   = "transactions"
	NameAddresses      = "addresses"
	NameOutputs        = "outputs"
	NameUsedInputs     = "used_inputs"
	NameNativeAssets   = "native_assets"
	NameAssetTransfers = "asset_transfers"

	dexMeanPricePrefix = "dex_mean_price_"
	dexSwapPrefix      = "dex_swap_"
)

func init() {
	task.Register(NameBlock, newBlockTask)
	task.Register(NameTransactions, newTransactionsTask)
	task.Register(NameAddresses, newAddressesTask)
	task.Register(NameOutputs, newOutputsTask)
	task.Register(NameUsedInputs, newUsedInputsTask)
	task.Register(NameNativeAssets, newNativeAssetsTask)
	task.Register(NameAssetTransfers, newAssetTransfersTask)
	registerDexTasks()
}

// StoredOutput is an output the block created, with its row.
type StoredOutput struct {
	Row    *store.Output
	Output *ledger.Output
}

func anyTx(block *ledger.Block, pred func(tx *ledger.Transaction) bool) bool {
	for _, tx := range block.Transactions {
		if pred(tx) {
			return true
		}
	}
	return false
}

func producesOutputs(block *ledger.Block) bool {
	return anyTx(block, (*ledger.Transaction).HasProducedOutputs)
}

func consumesInputs(block *ledger.Block) bool {
	return anyTx(block, func(tx *ledger.Transaction) bool {
		return len(tx.ConsumedInputs()) > 0
	})
}

func producesAssets(block *ledger.Block) bool {
	return anyTx(block, func(tx *ledger.Transaction) bool {
		if tx.IsValid && len(tx.Mint) > 0 {
			return true
		}
		for _, out := range tx.ProducedOutputs() {
			if len(out.Output.Assets) > 0 {
				return true
			}
		}
		return false
	})
}
