package tasks

import (
	"context"
	"slices"

	"github.com/goran-ethernal/CardanoIndexor/internal/common"
	"github.com/goran-ethernal/CardanoIndexor/internal/dex"
	"github.com/goran-ethernal/CardanoIndexor/internal/ledger"
	"github.com/goran-ethernal/CardanoIndexor/internal/logger"
	"github.com/goran-ethernal/CardanoIndexor/internal/resolve"
	"github.com/goran-ethernal/CardanoIndexor/internal/store"
	"github.com/goran-ethernal/CardanoIndexor/pkg/config"
	"github.com/goran-ethernal/CardanoIndexor/pkg/task"
)

// MeanPriceTaskName returns the name of the mean price task of a protocol.
func MeanPriceTaskName(p dex.PoolType) string {
	return dexMeanPricePrefix + p.String()
}

// SwapTaskName returns the name of the swap task of a protocol.
func SwapTaskName(p dex.PoolType) string {
	return dexSwapPrefix + p.String()
}

func registerDexTasks() {
	for _, p := range dex.PoolTypes {
		task.Register(MeanPriceTaskName(p), meanPriceFactory(p))
	}
	for _, p := range dex.PoolTypes {
		task.Register(SwapTaskName(p), swapFactory(p))
	}
}

// dexHandler builds the handler of p, or reports ErrDisabled when p is not configured.
func dexHandler(p dex.PoolType, opts task.Options) (*dex.Handler, error) {
	enabled := config.DefaultDexProtocols
	if opts.Config != nil {
		enabled = opts.Config.Dex.Protocols
	}
	if !slices.Contains(enabled, p.String()) {
		return nil, task.ErrDisabled
	}

	protocol, err := dex.NewProtocol(p)
	if err != nil {
		return nil, err
	}

	log := opts.Log
	if log == nil {
		log = logger.GetDefaultLogger()
	}
	return dex.NewHandler(protocol, log.WithComponent(common.ComponentDex)), nil
}

func hasValidTx(block *ledger.Block, pred func(tx *ledger.Transaction) bool) bool {
	return anyTx(block, func(tx *ledger.Transaction) bool {
		return tx.IsValid && pred(tx)
	})
}

func meanPriceFactory(p dex.PoolType) task.Factory {
	return func(opts task.Options) (task.Task, error) {
		handler, err := dexHandler(p, opts)
		if err != nil {
			return task.Task{}, err
		}

		return task.Task{
			Name: MeanPriceTaskName(p),
			// pool assets are looked up, never created
			Dependencies: []string{NameNativeAssets},
			Reads:        []task.Key{KeyTransactions, KeyAddresses},
			Applies: func(block *ledger.Block) bool {
				return hasValidTx(block, func(tx *ledger.Transaction) bool { return len(tx.Outputs) > 0 })
			},
			Execute: func(ctx context.Context, env *task.Env) (any, error) {
				in, err := dexInput(env)
				if err != nil {
					return nil, err
				}
				_, err = handler.MeanPrices(ctx, env.Store, env.Resolve, in)
				return nil, err
			},
		}, nil
	}
}

func swapFactory(p dex.PoolType) task.Factory {
	return func(opts task.Options) (task.Task, error) {
		handler, err := dexHandler(p, opts)
		if err != nil {
			return task.Task{}, err
		}

		return task.Task{
			Name:         SwapTaskName(p),
			Dependencies: []string{NameNativeAssets},
			Reads:        []task.Key{KeyTransactions, KeyAddresses, KeySpentOutputs},
			Applies: func(block *ledger.Block) bool {
				return hasValidTx(block, func(tx *ledger.Transaction) bool {
					return len(tx.Inputs) > 0 && len(tx.Outputs) > 0
				})
			},
			Execute: func(ctx context.Context, env *task.Env) (any, error) {
				in, err := dexInput(env)
				if err != nil {
					return nil, err
				}
				spent, err := task.Get[resolve.SpentOutputs](env, KeySpentOutputs)
				if err != nil {
					return nil, err
				}
				in.Spent = spent
				_, err = handler.Swaps(ctx, env.Store, env.Resolve, in)
				return nil, err
			},
		}, nil
	}
}

func dexInput(env *task.Env) (dex.BlockInput, error) {
	txs, err := task.Get[[]*store.Transaction](env, KeyTransactions)
	if err != nil {
		return dex.BlockInput{}, err
	}
	addresses, err := task.Get[map[string]resolve.AddressInBlock](env, KeyAddresses)
	if err != nil {
		return dex.BlockInput{}, err
	}
	return dex.BlockInput{Block: env.Block, Transactions: txs, Addresses: addresses}, nil
}
