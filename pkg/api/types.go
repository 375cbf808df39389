package api

import "time"

// Asset identifies a native asset by hex policy id and hex asset name. ADA is null.
type Asset struct {
	PolicyID  string `json:"policyId" example:"8a1cfae21368b8bebbbed9800fec304e95cce39a2a57dc35e2e3ebaa"`
	AssetName string `json:"assetName" example:"4d494c4b"`
}

// AssetPair selects events between two assets, in this order.
type AssetPair struct {
	Asset1 *Asset `json:"asset1"`
	Asset2 *Asset `json:"asset2"`
}

// PageStart is the last event of the previous page.
type PageStart struct {
	Block string `json:"block"`
	Tx    string `json:"tx"`
}

// DexRequest is the body of the DEX event queries.
type DexRequest struct {
	// Addresses as hex or bech32
	Addresses  []string    `json:"addresses"`
	AssetPairs []AssetPair `json:"assetPairs"`
	// UntilBlock is the hash of the last block the page may include
	UntilBlock string `json:"untilBlock"`
	// After omitted starts at the first event
	After *PageStart `json:"after,omitempty"`
	// Limit defaults to the configured maximum
	Limit int `json:"limit,omitempty"`
}

// DexMeanPrice is a pool state observed in a transaction.
type DexMeanPrice struct {
	TxHash  string `json:"tx_hash"`
	Address string `json:"address"`
	Dex     string `json:"dex" example:"sundaeswap_v1"`
	Asset1  *Asset `json:"asset1"`
	Asset2  *Asset `json:"asset2"`
	// Amount1 is a decimal uint64
	Amount1 string `json:"amount1" example:"2042352568679"`
	Amount2 string `json:"amount2" example:"1000000"`
}

// DexSwap is a swap executed against a pool.
type DexSwap struct {
	DexMeanPrice
	Direction string `json:"direction" enums:"buy,sell"`
}

// DexMeanPriceResponse is the response of the mean price query.
type DexMeanPriceResponse struct {
	MeanPrices []DexMeanPrice `json:"meanPrices"`
}

// DexSwapResponse is the response of the swap query.
type DexSwapResponse struct {
	Swaps []DexSwap `json:"swaps"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}

// QueryError is a rejected query. Codes are stable across releases.
type QueryError struct {
	Code   int    `json:"code"`
	Reason string `json:"reason"`
}

// HealthResponse represents a health check response.
type HealthResponse struct {
	Status      string       `json:"status"`
	Timestamp   time.Time    `json:"timestamp"`
	LatestBlock *BlockStatus `json:"latest_block,omitempty"`
}

// BlockStatus describes the last indexed block.
type BlockStatus struct {
	Hash   string `json:"hash"`
	Height uint64 `json:"height"`
	Slot   uint64 `json:"slot"`
}
