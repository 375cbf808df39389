package api

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
	"github.com/goran-ethernal/CardanoIndexor/internal/common"
	"github.com/goran-ethernal/CardanoIndexor/internal/dex"
	"github.com/goran-ethernal/CardanoIndexor/internal/ledger"
	"github.com/goran-ethernal/CardanoIndexor/internal/logger"
	"github.com/goran-ethernal/CardanoIndexor/internal/resolve"
	"github.com/goran-ethernal/CardanoIndexor/internal/store"
)

// maxBodySize bounds a query body.
const maxBodySize = 1 << 20

// DexQuerier reads indexed DEX events. *store.Store implements it.
type DexQuerier interface {
	LatestBlock(ctx context.Context) (*store.Block, error)
	LastTxIDUntilBlock(ctx context.Context, blockHash ledger.Hash) (int64, error)
	TxIDInBlock(ctx context.Context, blockHash, txHash ledger.Hash) (int64, error)
	QueryMeanPrices(ctx context.Context, q store.EventQuery) ([]*store.MeanPriceView, error)
	QuerySwaps(ctx context.Context, q store.EventQuery) ([]*store.SwapView, error)
}

// Handler handles HTTP requests for the API.
type Handler struct {
	querier      DexQuerier
	maxAddresses int
	maxLimit     int
	log          *logger.Logger
}

// NewHandler creates a new API handler.
func NewHandler(querier DexQuerier, maxAddresses, maxLimit int, log *logger.Logger) *Handler {
	return &Handler{
		querier:      querier,
		maxAddresses: maxAddresses,
		maxLimit:     maxLimit,
		log:          log,
	}
}

// dexQuery is a validated DexRequest. reverse maps the stored address form back
// to the address as the client sent it.
type dexQuery struct {
	store.EventQuery
	reverse map[string]string
}

// MeanPrices returns pool states of the requested pools.
// @Summary Query DEX mean prices
// @Description Pool states observed in transactions at the given addresses for the given asset pairs,
// @Description ordered by transaction, up to and including untilBlock.
// @Tags Dex
// @Accept json
// @Produce json
// @Param request body DexRequest true "Query"
// @Success 200 {object} DexMeanPriceResponse "Mean prices"
// @Failure 400 {object} ErrorResponse "Malformed request"
// @Failure 422 {object} QueryError "Rejected query"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /dex/mean-price [post]
func (h *Handler) MeanPrices(w http.ResponseWriter, r *http.Request) {
	q, ok := h.parseDexRequest(w, r)
	if !ok {
		return
	}

	rows, err := h.querier.QueryMeanPrices(r.Context(), q.EventQuery)
	if err != nil {
		h.log.Errorf("Failed to query mean prices: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to query mean prices")
		return
	}

	resp := DexMeanPriceResponse{MeanPrices: make([]DexMeanPrice, len(rows))}
	for i, row := range rows {
		resp.MeanPrices[i] = q.meanPrice(row)
	}
	respondJSON(w, http.StatusOK, resp)
}

// Swaps returns swaps executed against the requested pools.
// @Summary Query DEX swaps
// @Description Swaps at the given addresses for the given asset pairs, ordered by transaction,
// @Description up to and including untilBlock. Direction is relative to asset1.
// @Tags Dex
// @Accept json
// @Produce json
// @Param request body DexRequest true "Query"
// @Success 200 {object} DexSwapResponse "Swaps"
// @Failure 400 {object} ErrorResponse "Malformed request"
// @Failure 422 {object} QueryError "Rejected query"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /dex/swap [post]
func (h *Handler) Swaps(w http.ResponseWriter, r *http.Request) {
	q, ok := h.parseDexRequest(w, r)
	if !ok {
		return
	}

	rows, err := h.querier.QuerySwaps(r.Context(), q.EventQuery)
	if err != nil {
		h.log.Errorf("Failed to query swaps: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to query swaps")
		return
	}

	resp := DexSwapResponse{Swaps: make([]DexSwap, len(rows))}
	for i, row := range rows {
		resp.Swaps[i] = DexSwap{
			DexMeanPrice: q.meanPrice(&row.MeanPriceView),
			Direction:    dex.Direction(row.Direction).String(),
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

// Health returns the health status of the API and the last indexed block.
// @Summary Health check
// @Description Check the health status of the API and the indexing progress
// @Tags Health
// @Produce json
// @Success 200 {object} HealthResponse "API health status"
// @Failure 503 {object} HealthResponse "Index unreadable"
// @Router /health [get]
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
	}

	block, err := h.querier.LatestBlock(r.Context())
	switch {
	case err == nil:
		response.LatestBlock = &BlockStatus{
			Hash:   block.Hash.String(),
			Height: block.Height,
			Slot:   block.Slot,
		}
	case errors.Is(err, store.ErrNotFound):
	default:
		h.log.Errorf("Failed to read latest block: %v", err)
		response.Status = "unavailable"
		respondJSON(w, http.StatusServiceUnavailable, response)
		return
	}

	respondJSON(w, http.StatusOK, response)
}

// parseDexRequest validates the request body. It writes the error response and
// returns false when the request is rejected.
func (h *Handler) parseDexRequest(w http.ResponseWriter, r *http.Request) (*dexQuery, bool) {
	var req DexRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return nil, false
	}

	if len(req.Addresses) > h.maxAddresses {
		respondQueryError(w, addressLimitExceeded(h.maxAddresses, len(req.Addresses)))
		return nil, false
	}

	q := &dexQuery{reverse: make(map[string]string, len(req.Addresses))}
	var invalid []string
	for _, a := range req.Addresses {
		raw, err := ledger.ParseAddress(a)
		if err != nil {
			invalid = append(invalid, a)
			continue
		}
		stored := resolve.TruncateAddress(raw)
		if _, seen := q.reverse[string(stored)]; !seen {
			q.reverse[string(stored)] = a
			q.Addresses = append(q.Addresses, stored)
		}
	}
	if len(invalid) > 0 {
		respondQueryError(w, incorrectAddressFormat(invalid))
		return nil, false
	}

	for i, p := range req.AssetPairs {
		asset1, err1 := parseAsset(p.Asset1)
		asset2, err2 := parseAsset(p.Asset2)
		if err := errors.Join(err1, err2); err != nil {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid asset pair %d: %v", i, err))
			return nil, false
		}
		q.AssetPairs = append(q.AssetPairs, store.AssetPair{Asset1: asset1, Asset2: asset2})
	}

	switch {
	case req.Limit == 0:
		q.Limit = h.maxLimit
	case req.Limit < 0 || req.Limit > h.maxLimit:
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid limit: must be between 1 and %d", h.maxLimit))
		return nil, false
	default:
		q.Limit = req.Limit
	}

	until, err := parseHash(req.UntilBlock)
	if err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid untilBlock: %v", err))
		return nil, false
	}
	q.UntilTxID, err = h.querier.LastTxIDUntilBlock(r.Context(), until)
	if errors.Is(err, store.ErrNotFound) {
		respondQueryError(w, untilBlockNotFound(req.UntilBlock))
		return nil, false
	}
	if err != nil {
		h.log.Errorf("Failed to resolve until block: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to resolve until block")
		return nil, false
	}

	q.AfterTxID = -1
	if req.After != nil {
		block, err1 := parseHash(req.After.Block)
		tx, err2 := parseHash(req.After.Tx)
		if err := errors.Join(err1, err2); err != nil {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid after: %v", err))
			return nil, false
		}
		q.AfterTxID, err = h.querier.TxIDInBlock(r.Context(), block, tx)
		if errors.Is(err, store.ErrNotFound) {
			respondQueryError(w, pageStartNotFound(req.After.Block, req.After.Tx))
			return nil, false
		}
		if err != nil {
			h.log.Errorf("Failed to resolve page start: %v", err)
			respondError(w, http.StatusInternalServerError, "failed to resolve page start")
			return nil, false
		}
	}

	return q, true
}

func (q *dexQuery) meanPrice(row *store.MeanPriceView) DexMeanPrice {
	return DexMeanPrice{
		TxHash:  hex.EncodeToString(row.TxHash),
		Address: q.reverse[string(row.Address)],
		Dex:     dex.PoolType(row.Dex).String(),
		Asset1:  viewAsset(row.PolicyID1, row.AssetName1),
		Asset2:  viewAsset(row.PolicyID2, row.AssetName2),
		Amount1: strconv.FormatUint(row.Amount1, 10),
		Amount2: strconv.FormatUint(row.Amount2, 10),
	}
}

func parseAsset(a *Asset) (ledger.AssetID, error) {
	if a == nil {
		return ledger.ADA, nil
	}
	policy, err := common.DecodeHex(a.PolicyID)
	if err != nil {
		return ledger.AssetID{}, err
	}
	if len(policy) != lcommon.Blake2b224Size {
		return ledger.AssetID{}, fmt.Errorf("policy id must be %d bytes", lcommon.Blake2b224Size)
	}
	name, err := common.DecodeHex(a.AssetName)
	if err != nil {
		return ledger.AssetID{}, err
	}
	return ledger.NewAssetID(policy, name), nil
}

func viewAsset(policyID, name []byte) *Asset {
	if policyID == nil {
		return nil
	}
	return &Asset{PolicyID: hex.EncodeToString(policyID), AssetName: hex.EncodeToString(name)}
}

func parseHash(s string) (ledger.Hash, error) {
	b, err := common.DecodeHex(s)
	if err != nil {
		return ledger.Hash{}, err
	}
	if len(b) != lcommon.Blake2b256Size {
		return ledger.Hash{}, fmt.Errorf("hash must be %d bytes", lcommon.Blake2b256Size)
	}
	return ledger.NewHash(b), nil
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")

	// Encode JSON first to catch any errors before writing status
	encoded, err := json.Marshal(data)
	if err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	if _, err := w.Write(encoded); err != nil {
		// Headers already sent
		return
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	response := ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    status,
	}
	respondJSON(w, status, response)
}

// respondQueryError rejects a well-formed query the index cannot answer.
func respondQueryError(w http.ResponseWriter, qerr *QueryError) {
	respondJSON(w, http.StatusUnprocessableEntity, qerr)
}
