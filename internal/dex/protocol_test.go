package dex

import (
	"bytes"
	"errors"
	"testing"

	"github.com/goran-ethernal/CardanoIndexor/internal/ledger"
	"github.com/goran-ethernal/CardanoIndexor/internal/resolve"
	"github.com/goran-ethernal/CardanoIndexor/internal/testutil"
	"github.com/stretchr/testify/require"
)

func TestPoolType(t *testing.T) {
	t.Parallel()

	for i, p := range PoolTypes {
		require.Equal(t, i, int(p))
		require.True(t, p.Valid())

		parsed, err := ParsePoolType(" " + p.String() + " ")
		require.NoError(t, err)
		require.Equal(t, p, parsed)
	}

	_, err := ParsePoolType("spectrum_v1")
	require.ErrorIs(t, err, ErrUnknownProtocol)
	require.False(t, Unknown.Valid())
	require.Equal(t, "unknown", Unknown.String())

	_, err = NewProtocol(Unknown)
	require.ErrorIs(t, err, ErrUnknownProtocol)

	_, err = Protocol{Type: Unknown}.ExtractMeanPrice(newTx(), 1)
	require.ErrorIs(t, err, ErrUnknownProtocol)
	_, err = Protocol{Type: Unknown}.ExtractSwaps(newTx(), 1, nil)
	require.ErrorIs(t, err, ErrUnknownProtocol)
}

func TestReduceADA(t *testing.T) {
	t.Parallel()

	require.Equal(t, uint64(10), reduceADA(ledger.ADA, 10))
	require.Zero(t, reduceADA(testToken, 10))
	require.True(t, buildAsset(nil, []byte{}).IsADA())
	require.False(t, buildAsset(nil, []byte("x")).IsADA())
}

func TestExtractMeanPrice(t *testing.T) {
	t.Parallel()

	sundaePool := testutil.ScriptAddress(sundaeSwapPoolScript)
	minV1Pool := testutil.ScriptAddress(minSwapV1PoolScript)
	minV2Pool := testutil.ScriptAddress(minSwapV2PoolScript)
	wrPool := testutil.ScriptAddress(wingRidersPoolScript)
	user := testutil.Address(1)

	tests := []struct {
		name     string
		protocol PoolType
		tx       func() *ledger.Transaction
		want     *MeanPrice
		parseErr bool
	}{
		{
			name:     "sundaeswap pool output",
			protocol: SundaeSwapV1,
			tx: func() *ledger.Transaction {
				pool := testutil.NewOutput(sundaePool, 5_000_000_000,
					ledger.AssetAmount{Asset: testToken, Amount: 7_000})
				return newTx(
					testutil.NewOutput(user, 2_000_000),
					withInlineDatum(pool, sundaePoolDatum(ledger.ADA, testToken)),
				)
			},
			want: &MeanPrice{
				Address: sundaePool, Asset1: ledger.ADA, Asset2: testToken,
				Amount1: 5_000_000_000, Amount2: 7_000,
			},
		},
		{
			name:     "sundaeswap pool datum from the witness set",
			protocol: SundaeSwapV1,
			tx: func() *ledger.Transaction {
				tx := newTx()
				pool := testutil.NewOutput(sundaePool, 3_000_000,
					ledger.AssetAmount{Asset: testToken, Amount: 10},
					ledger.AssetAmount{Asset: testOther, Amount: 20})
				tx.Outputs = append(tx.Outputs, withWitnessDatum(tx, pool, 1, sundaePoolDatum(testToken, testOther)))
				return tx
			},
			want: &MeanPrice{
				Address: sundaePool, Asset1: testToken, Asset2: testOther,
				Amount1: 10, Amount2: 20,
			},
		},
		{
			name:     "no pool output",
			protocol: SundaeSwapV1,
			tx: func() *ledger.Transaction {
				return newTx(testutil.NewOutput(user, 2_000_000))
			},
		},
		{
			name:     "pool output without datum",
			protocol: MinSwapV1,
			tx: func() *ledger.Transaction {
				return newTx(testutil.NewOutput(minV1Pool, 2_000_000))
			},
		},
		{
			name:     "malformed pool datum",
			protocol: SundaeSwapV1,
			tx: func() *ledger.Transaction {
				return newTx(withInlineDatum(testutil.NewOutput(sundaePool, 1), dConstr(0, dInt(1))))
			},
			parseErr: true,
		},
		{
			name:     "minswap v1",
			protocol: MinSwapV1,
			tx: func() *ledger.Transaction {
				pool := testutil.NewOutput(minV1Pool, 900_000_000,
					ledger.AssetAmount{Asset: testToken, Amount: 300})
				return newTx(withInlineDatum(pool, minSwapV1PoolDatum(ledger.ADA, testToken)))
			},
			want: &MeanPrice{
				Address: minV1Pool, Asset1: ledger.ADA, Asset2: testToken,
				Amount1: 900_000_000, Amount2: 300,
			},
		},
		{
			name:     "minswap v2 reserves come from the datum",
			protocol: MinSwapV2,
			tx: func() *ledger.Transaction {
				pool := testutil.NewOutput(minV2Pool, 902_000_000,
					ledger.AssetAmount{Asset: testToken, Amount: 300})
				return newTx(withInlineDatum(pool, minSwapV2PoolDatum(ledger.ADA, testToken, 900_000_000, 299)))
			},
			want: &MeanPrice{
				Address: minV2Pool, Asset1: ledger.ADA, Asset2: testToken,
				Amount1: 900_000_000, Amount2: 299,
			},
		},
		{
			name:     "wingriders subtracts treasury and fixed ada",
			protocol: WingRidersV1,
			tx: func() *ledger.Transaction {
				pool := testutil.NewOutput(wrPool, 103_000_000,
					ledger.AssetAmount{Asset: testToken, Amount: 5_000})
				return newTx(withInlineDatum(pool, wingRidersPoolDatum(ledger.ADA, testToken, 1_000_000, 100)))
			},
			want: &MeanPrice{
				Address: wrPool, Asset1: ledger.ADA, Asset2: testToken,
				Amount1: 99_000_000, Amount2: 4_900,
			},
		},
		{
			name:     "wingriders fixed ada never applies to a token leg",
			protocol: WingRidersV1,
			tx: func() *ledger.Transaction {
				pool := testutil.NewOutput(wrPool, 3_000_000,
					ledger.AssetAmount{Asset: testToken, Amount: 50},
					ledger.AssetAmount{Asset: testOther, Amount: 70})
				return newTx(withInlineDatum(pool, wingRidersPoolDatum(testToken, testOther, 0, 10)))
			},
			want: &MeanPrice{
				Address: wrPool, Asset1: testToken, Asset2: testOther,
				Amount1: 50, Amount2: 60,
			},
		},
		{
			name:     "wingriders underflow",
			protocol: WingRidersV1,
			tx: func() *ledger.Transaction {
				pool := testutil.NewOutput(wrPool, 2_000_000,
					ledger.AssetAmount{Asset: testToken, Amount: 5_000})
				return newTx(withInlineDatum(pool, wingRidersPoolDatum(ledger.ADA, testToken, 0, 0)))
			},
			parseErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p, err := NewProtocol(tt.protocol)
			require.NoError(t, err)

			got, err := p.ExtractMeanPrice(tt.tx(), 77)
			if tt.parseErr {
				var parseErr *ParseError
				require.ErrorAs(t, err, &parseErr)
				require.Equal(t, int64(77), parseErr.TxID)
				require.Equal(t, tt.protocol, parseErr.Protocol)
				return
			}
			require.NoError(t, err)
			if tt.want == nil {
				require.Nil(t, got)
				return
			}
			tt.want.TxID = 77
			tt.want.Pool = tt.protocol
			require.Equal(t, tt.want, got)
		})
	}
}

func TestExtractSwaps_SundaeSwap(t *testing.T) {
	t.Parallel()

	pool := testutil.ScriptAddress(sundaeSwapPoolScript)
	request := testutil.ScriptAddress(sundaeSwapRequestScript)
	payment := bytes.Repeat([]byte{0xaa}, 28)
	stake := bytes.Repeat([]byte{0xbb}, 28)
	otherPayment := bytes.Repeat([]byte{0xcc}, 28)

	p, err := NewProtocol(SundaeSwapV1)
	require.NoError(t, err)

	t.Run("buy and sell", func(t *testing.T) {
		t.Parallel()

		tx := newTx(
			withInlineDatum(testutil.NewOutput(pool, 1_000_000_000,
				ledger.AssetAmount{Asset: testToken, Amount: 9_000}), sundaePoolDatum(ledger.ADA, testToken)),
			testutil.NewOutput(destination(payment, stake), 2_000_000,
				ledger.AssetAmount{Asset: testToken, Amount: 50}),
			testutil.NewOutput(destination(otherPayment, stake), 12_000_000),
		)
		buy := testutil.NewOutput(request, 104_500_000)
		withWitnessDatum(tx, buy, 1, sundaeOrderDatum(sundaeSwapOperationSwap, 0, payment, stake))
		sell := testutil.NewOutput(request, 4_500_000, ledger.AssetAmount{Asset: testToken, Amount: 30})
		withWitnessDatum(tx, sell, 2, sundaeOrderDatum(sundaeSwapOperationSwap, 1, otherPayment, stake))
		spent := spend(tx, buy, sell)

		swaps, err := p.ExtractSwaps(tx, 9, spent)
		require.NoError(t, err)
		require.Equal(t, []Swap{
			{
				MeanPrice: MeanPrice{
					TxID: 9, Address: pool, Pool: SundaeSwapV1, Asset1: ledger.ADA, Asset2: testToken,
					Amount1: 100_000_000, Amount2: 50,
				},
				Direction: BuyAsset1,
			},
			{
				MeanPrice: MeanPrice{
					TxID: 9, Address: pool, Pool: SundaeSwapV1, Asset1: ledger.ADA, Asset2: testToken,
					Amount1: 10_000_000, Amount2: 30,
				},
				Direction: SellAsset1,
			},
		}, swaps)
	})

	t.Run("each result output pays one order", func(t *testing.T) {
		t.Parallel()

		tx := newTx(
			withInlineDatum(testutil.NewOutput(pool, 1_000_000_000), sundaePoolDatum(ledger.ADA, testToken)),
			testutil.NewOutput(destination(payment, stake), 2_000_000, ledger.AssetAmount{Asset: testToken, Amount: 5}),
			testutil.NewOutput(destination(payment, stake), 2_000_000, ledger.AssetAmount{Asset: testToken, Amount: 7}),
		)
		first := testutil.NewOutput(request, 14_500_000)
		withWitnessDatum(tx, first, 1, sundaeOrderDatum(sundaeSwapOperationSwap, 0, payment, stake))
		second := testutil.NewOutput(request, 24_500_000)
		withWitnessDatum(tx, second, 2, sundaeOrderDatum(sundaeSwapOperationSwap, 0, payment, stake))

		swaps, err := p.ExtractSwaps(tx, 1, spend(tx, first, second))
		require.NoError(t, err)
		require.Len(t, swaps, 2)
		require.Equal(t, uint64(5), swaps[0].Amount2)
		require.Equal(t, uint64(7), swaps[1].Amount2)
	})

	t.Run("other operations and inputs are skipped", func(t *testing.T) {
		t.Parallel()

		tx := newTx(
			withInlineDatum(testutil.NewOutput(pool, 1_000_000_000), sundaePoolDatum(ledger.ADA, testToken)),
			testutil.NewOutput(destination(payment, stake), 2_000_000),
		)
		deposit := testutil.NewOutput(request, 14_500_000)
		withWitnessDatum(tx, deposit, 1, sundaeOrderDatum(2, 0, payment, stake))
		noDatum := testutil.NewOutput(request, 14_500_000)
		wallet := testutil.NewOutput(testutil.Address(9), 14_500_000)

		swaps, err := p.ExtractSwaps(tx, 1, spend(tx, deposit, noDatum, wallet))
		require.NoError(t, err)
		require.Empty(t, swaps)
	})

	t.Run("no pool output", func(t *testing.T) {
		t.Parallel()

		tx := newTx(testutil.NewOutput(destination(payment, stake), 2_000_000))
		order := testutil.NewOutput(request, 14_500_000)
		withWitnessDatum(tx, order, 1, sundaeOrderDatum(sundaeSwapOperationSwap, 0, payment, stake))

		swaps, err := p.ExtractSwaps(tx, 1, spend(tx, order))
		require.NoError(t, err)
		require.Empty(t, swaps)
	})

	t.Run("missing result output", func(t *testing.T) {
		t.Parallel()

		tx := newTx(withInlineDatum(testutil.NewOutput(pool, 1_000_000_000), sundaePoolDatum(ledger.ADA, testToken)))
		order := testutil.NewOutput(request, 14_500_000)
		withWitnessDatum(tx, order, 1, sundaeOrderDatum(sundaeSwapOperationSwap, 0, payment, stake))

		_, err := p.ExtractSwaps(tx, 3, spend(tx, order))
		var parseErr *ParseError
		require.ErrorAs(t, err, &parseErr)
		require.ErrorContains(t, err, "no output pays the swap destination")
	})

	t.Run("overhead underflow", func(t *testing.T) {
		t.Parallel()

		tx := newTx(
			withInlineDatum(testutil.NewOutput(pool, 1_000_000_000), sundaePoolDatum(ledger.ADA, testToken)),
			testutil.NewOutput(destination(payment, stake), 2_000_000),
		)
		order := testutil.NewOutput(request, 1_000_000)
		withWitnessDatum(tx, order, 1, sundaeOrderDatum(sundaeSwapOperationSwap, 0, payment, stake))

		_, err := p.ExtractSwaps(tx, 3, spend(tx, order))
		var parseErr *ParseError
		require.ErrorAs(t, err, &parseErr)
		require.ErrorContains(t, err, "amount1 underflow")
	})

	t.Run("unresolved input is not a parse error", func(t *testing.T) {
		t.Parallel()

		tx := newTx(withInlineDatum(testutil.NewOutput(pool, 1_000_000_000), sundaePoolDatum(ledger.ADA, testToken)))
		tx.Inputs = []ledger.OutputRef{{TxHash: testutil.Hash(0xee), Index: 4}}

		_, err := p.ExtractSwaps(tx, 3, resolve.SpentOutputs{})
		require.ErrorIs(t, err, resolve.ErrUnresolvedInput)
		var parseErr *ParseError
		require.False(t, errors.As(err, &parseErr))
	})
}

func TestExtractSwaps_WithoutSwapSupport(t *testing.T) {
	t.Parallel()

	for _, pt := range []PoolType{WingRidersV1, MinSwapV1, MinSwapV2} {
		p, err := NewProtocol(pt)
		require.NoError(t, err)

		swaps, err := p.ExtractSwaps(newTx(), 1, nil)
		require.NoError(t, err)
		require.Nil(t, swaps)
	}
}
