// Package mocks holds testify mocks of the API dependencies.
package mocks

import (
	"context"

	"github.com/goran-ethernal/CardanoIndexor/internal/ledger"
	"github.com/goran-ethernal/CardanoIndexor/internal/store"
	"github.com/stretchr/testify/mock"
)

// DexQuerier is a mock of api.DexQuerier.
type DexQuerier struct {
	mock.Mock
}

// NewDexQuerier creates a DexQuerier whose expectations are asserted at test cleanup.
func NewDexQuerier(t interface {
	mock.TestingT
	Cleanup(func())
}) *DexQuerier {
	m := &DexQuerier{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *DexQuerier) LatestBlock(ctx context.Context) (*store.Block, error) {
	ret := m.Called(ctx)
	block, _ := ret.Get(0).(*store.Block)
	return block, ret.Error(1)
}

func (m *DexQuerier) LastTxIDUntilBlock(ctx context.Context, blockHash ledger.Hash) (int64, error) {
	ret := m.Called(ctx, blockHash)
	return ret.Get(0).(int64), ret.Error(1) //nolint:forcetypeassert
}

func (m *DexQuerier) TxIDInBlock(ctx context.Context, blockHash, txHash ledger.Hash) (int64, error) {
	ret := m.Called(ctx, blockHash, txHash)
	return ret.Get(0).(int64), ret.Error(1) //nolint:forcetypeassert
}

func (m *DexQuerier) QueryMeanPrices(ctx context.Context, q store.EventQuery) ([]*store.MeanPriceView, error) {
	ret := m.Called(ctx, q)
	rows, _ := ret.Get(0).([]*store.MeanPriceView)
	return rows, ret.Error(1)
}

func (m *DexQuerier) QuerySwaps(ctx context.Context, q store.EventQuery) ([]*store.SwapView, error) {
	ret := m.Called(ctx, q)
	rows, _ := ret.Get(0).([]*store.SwapView)
	return rows, ret.Error(1)
}
