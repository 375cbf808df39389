// Package dex extracts exchange events from the transactions of a block.
//
// Every supported exchange is a PoolType. A Protocol value dispatches on the
// pool type to the parser that understands the positional datum layout of that
// exchange's pool and request scripts.
package dex

import (
	"errors"
	"fmt"

	"github.com/goran-ethernal/CardanoIndexor/internal/common"
	"github.com/goran-ethernal/CardanoIndexor/internal/ledger"
)

// ErrUnknownProtocol is returned for a pool type outside the supported set.
var ErrUnknownProtocol = errors.New("unknown dex protocol")

// PoolType identifies an exchange protocol. The numeric value is stored in the dex column.
type PoolType int

const (
	WingRidersV1 PoolType = 0
	SundaeSwapV1 PoolType = 1
	MinSwapV1    PoolType = 2
	MinSwapV2    PoolType = 3

	// Unknown is never stored.
	Unknown PoolType = -1
)

var poolNames = map[PoolType]string{
	WingRidersV1: "wingriders_v1",
	SundaeSwapV1: "sundaeswap_v1",
	MinSwapV1:    "minswap_v1",
	MinSwapV2:    "minswap_v2",
}

// PoolTypes lists the supported protocols in stored id order.
var PoolTypes = []PoolType{WingRidersV1, SundaeSwapV1, MinSwapV1, MinSwapV2}

func (p PoolType) String() string {
	if name, ok := poolNames[p]; ok {
		return name
	}
	return "unknown"
}

// Valid reports whether p is one of the supported protocols.
func (p PoolType) Valid() bool {
	_, ok := poolNames[p]
	return ok
}

// ParsePoolType maps a configuration name to its pool type.
func ParsePoolType(name string) (PoolType, error) {
	name = common.ToLowerWithTrim(name)
	for p, n := range poolNames {
		if n == name {
			return p, nil
		}
	}
	return Unknown, fmt.Errorf("%w: %s", ErrUnknownProtocol, name)
}

// Direction is the side of a swap relative to the first asset of the pair.
type Direction int

const (
	BuyAsset1  Direction = 0
	SellAsset1 Direction = 1
)

func (d Direction) String() string {
	if d == BuyAsset1 {
		return "buy"
	}
	return "sell"
}

// MeanPrice is the pool state observed in one transaction.
type MeanPrice struct {
	TxID    int64
	Address []byte
	Pool    PoolType
	Asset1  ledger.AssetID
	Asset2  ledger.AssetID
	Amount1 uint64
	Amount2 uint64
}

// Swap is one order executed against a pool.
type Swap struct {
	MeanPrice
	Direction Direction
}

// buildAsset maps an empty policy and name to ADA.
func buildAsset(policyID, name []byte) ledger.AssetID {
	return ledger.NewAssetID(policyID, name)
}

// reduceADA returns amount when asset is ADA and zero otherwise.
func reduceADA(asset ledger.AssetID, amount uint64) uint64 {
	if asset.IsADA() {
		return amount
	}
	return 0
}

// sub subtracts b from a and fails instead of wrapping.
func sub(a, b uint64, what string) (uint64, error) {
	if b > a {
		return 0, fmt.Errorf("%s underflow: %d - %d", what, a, b)
	}
	return a - b, nil
}
