package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"nftmarket/native/market"
)

const (
	codeMarketInvalidParams = -32030
	codeMarketNotFound      = -32031
	codeMarketConflict      = -32032
	codeMarketCommission    = -32033
	codeMarketReceiver      = -32034
	codeMarketFunds         = -32035
	codeMarketRange         = -32036
	codeMarketInternal      = -32037
)

type ownerParams struct {
	Owner string `json:"owner"`
}

type listItemParams struct {
	Owner               string   `json:"owner"`
	Collection          string   `json:"collection"`
	AssetID             uint64   `json:"assetId"`
	SalePrice           string   `json:"salePrice"`
	CustomID            string   `json:"customId,omitempty"`
	CommissionAmount    string   `json:"commissionAmount,omitempty"`
	CommissionReceivers []string `json:"commissionReceivers,omitempty"`
	Expiry              int64    `json:"expiry"`
}

type purchaseParams struct {
	Owner              string `json:"owner"`
	ListingID          uint64 `json:"listingId"`
	Buyer              string `json:"buyer"`
	CommissionReceiver string `json:"commissionReceiver,omitempty"`
}

type listingRefParams struct {
	Owner     string `json:"owner"`
	ListingID uint64 `json:"listingId"`
}

type cleanupParams struct {
	Owner string `json:"owner"`
	Start int64  `json:"start"`
	End   int64  `json:"end"`
}

type duplicatesParams struct {
	Owner      string `json:"owner"`
	Collection string `json:"collection"`
	AssetID    uint64 `json:"assetId"`
	Excluding  uint64 `json:"excluding"`
}

type royaltyCutJSON struct {
	Receiver string `json:"receiver"`
	RateBps  uint32 `json:"rateBps"`
}

type commissionJSON struct {
	Amount  string   `json:"amount"`
	Allowed []string `json:"allowed,omitempty"`
}

type listingJSON struct {
	ID         uint64           `json:"id"`
	Collection string           `json:"collection"`
	AssetID    uint64           `json:"assetId"`
	SalePrice  string           `json:"salePrice"`
	CustomID   string           `json:"customId,omitempty"`
	Expiry     int64            `json:"expiry"`
	Royalties  []royaltyCutJSON `json:"royalties,omitempty"`
	Commission *commissionJSON  `json:"commission,omitempty"`
	Purchased  bool             `json:"purchased"`
	CreatedAt  int64            `json:"createdAt"`
}

type payoutJSON struct {
	Receiver string `json:"receiver"`
	Amount   string `json:"amount"`
}

type receiptJSON struct {
	ListingID         uint64       `json:"listingId"`
	Collection        string       `json:"collection"`
	AssetID           uint64       `json:"assetId"`
	Buyer             string       `json:"buyer"`
	SalePrice         string       `json:"salePrice"`
	Royalties         []payoutJSON `json:"royalties,omitempty"`
	CommissionPaid    string       `json:"commissionPaid"`
	CommissionTo      *string      `json:"commissionTo,omitempty"`
	SellerRemainder   string       `json:"sellerRemainder"`
	RemovedDuplicates []uint64     `json:"removedDuplicates,omitempty"`
}

type cleanupResult struct {
	Removed int `json:"removed"`
}

func listingToJSON(l *market.Listing) listingJSON {
	out := listingJSON{
		ID:         l.ID,
		Collection: l.Collection,
		AssetID:    l.AssetID,
		SalePrice:  l.SalePrice.String(),
		CustomID:   l.CustomID,
		Expiry:     l.Expiry,
		Purchased:  l.Purchased,
		CreatedAt:  l.CreatedAt,
	}
	for _, cut := range l.RoyaltyCuts {
		out.Royalties = append(out.Royalties, royaltyCutJSON{
			Receiver: formatAddress(cut.Receiver),
			RateBps:  cut.RateBps,
		})
	}
	if l.Commission != nil {
		commission := &commissionJSON{Amount: l.CommissionAmount().String()}
		for _, allowed := range l.Commission.Allowed {
			commission.Allowed = append(commission.Allowed, formatAddress(allowed))
		}
		out.Commission = commission
	}
	return out
}

func receiptToJSON(receipt *market.Receipt) receiptJSON {
	out := receiptJSON{
		ListingID:         receipt.ListingID,
		Collection:        receipt.Collection,
		AssetID:           receipt.AssetID,
		Buyer:             formatAddress(receipt.Buyer),
		SalePrice:         receipt.SalePrice.String(),
		CommissionPaid:    receipt.CommissionPaid.String(),
		SellerRemainder:   receipt.SellerRemainder.String(),
		RemovedDuplicates: receipt.RemovedDuplicates,
	}
	for _, payout := range receipt.Royalties {
		out.Royalties = append(out.Royalties, payoutJSON{
			Receiver: formatAddress(payout.Receiver),
			Amount:   payout.Amount.String(),
		})
	}
	if receipt.CommissionTo != nil {
		formatted := formatAddress(*receipt.CommissionTo)
		out.CommissionTo = &formatted
	}
	return out
}

func parseAmount(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount must not be negative")
	}
	return amount, nil
}

func decodeSingleParam(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("exactly one parameter object expected")
	}
	return json.Unmarshal(req.Params[0], out)
}

func writeMarketError(w http.ResponseWriter, id interface{}, err error) {
	if err == nil {
		return
	}
	status := http.StatusInternalServerError
	code := codeMarketInternal
	message := "internal_error"
	data := err.Error()
	switch {
	case errors.Is(err, market.ErrStorefrontNotFound) || errors.Is(err, market.ErrListingNotFound):
		status = http.StatusNotFound
		code = codeMarketNotFound
		message = "not_found"
	case errors.Is(err, market.ErrCommissionReceiverRequired) || errors.Is(err, market.ErrCommissionReceiverNotAllowed):
		status = http.StatusConflict
		code = codeMarketCommission
		message = "commission_rejected"
	case errors.Is(err, market.ErrReceiverUnavailable):
		status = http.StatusConflict
		code = codeMarketReceiver
		message = "receiver_unavailable"
	case errors.Is(err, market.ErrInsufficientFunds):
		status = http.StatusConflict
		code = codeMarketFunds
		message = "insufficient_funds"
	case errors.Is(err, market.ErrRangeOutOfBounds):
		status = http.StatusBadRequest
		code = codeMarketRange
		message = "range_out_of_bounds"
	case errors.Is(err, market.ErrAlreadyPurchased) || errors.Is(err, market.ErrExpired) || errors.Is(err, market.ErrAssetUnavailable):
		status = http.StatusConflict
		code = codeMarketConflict
		message = "conflict"
	case errors.Is(err, market.ErrNegativeRemainder) || errors.Is(err, market.ErrInvalidRoyaltyMetadata):
		status = http.StatusInternalServerError
		code = codeMarketInternal
		message = "internal_error"
	}
	writeError(w, status, id, code, message, data)
}

func (s *Server) handleMarketCreateStorefront(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params ownerParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	owner, err := parseAddress(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	s.mu.Lock()
	sf, err := s.market.CreateStorefront(owner)
	s.mu.Unlock()
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]interface{}{
		"owner":    formatAddress(sf.Owner),
		"listings": len(sf.Listings),
	})
}

func (s *Server) handleMarketListItem(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params listItemParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	owner, err := parseAddress(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	price, err := parseAmount(params.SalePrice)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	commission, err := parseAmount(params.CommissionAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	receivers := make([][20]byte, 0, len(params.CommissionReceivers))
	for _, raw := range params.CommissionReceivers {
		receiver, err := parseAddress(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
			return
		}
		receivers = append(receivers, receiver)
	}
	s.mu.Lock()
	listingID, err := s.market.List(owner, market.ListParams{
		Collection:          params.Collection,
		AssetID:             params.AssetID,
		SalePrice:           price,
		CustomID:            params.CustomID,
		CommissionAmount:    commission,
		CommissionReceivers: receivers,
		Expiry:              params.Expiry,
	})
	s.mu.Unlock()
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]uint64{"listingId": listingID})
}

func (s *Server) handleMarketPurchase(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params purchaseParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	owner, err := parseAddress(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	buyer, err := parseAddress(params.Buyer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	var commissionReceiver *[20]byte
	if strings.TrimSpace(params.CommissionReceiver) != "" {
		receiver, err := parseAddress(params.CommissionReceiver)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
			return
		}
		commissionReceiver = &receiver
	}
	s.mu.Lock()
	receipt, err := s.market.Purchase(owner, params.ListingID, buyer, commissionReceiver)
	s.mu.Unlock()
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, receiptToJSON(receipt))
}

func (s *Server) handleMarketRemoveListing(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params listingRefParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	owner, err := parseAddress(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	s.mu.Lock()
	err = s.market.RemoveListing(owner, params.ListingID)
	s.mu.Unlock()
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"removed": true})
}

func (s *Server) handleMarketCleanupExpired(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params cleanupParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	owner, err := parseAddress(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	s.mu.Lock()
	removed, err := s.market.CleanupExpired(owner, params.Start, params.End)
	s.mu.Unlock()
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, cleanupResult{Removed: removed})
}

func (s *Server) handleMarketGetListingIDs(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params ownerParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	owner, err := parseAddress(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	ids, err := s.market.ListingIDs(owner)
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string][]uint64{"listingIds": ids})
}

func (s *Server) handleMarketGetListing(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params listingRefParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	owner, err := parseAddress(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	listing, err := s.market.GetListing(owner, params.ListingID)
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, listingToJSON(listing))
}

func (s *Server) handleMarketGetDuplicateListingIDs(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params duplicatesParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	owner, err := parseAddress(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	ids, err := s.market.DuplicateListingIDs(owner, params.Collection, params.AssetID, params.Excluding)
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string][]uint64{"listingIds": ids})
}

func (s *Server) handleMarketGetCommissionReceivers(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params listingRefParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	owner, err := parseAddress(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	allowed, err := s.market.AllowedCommissionReceivers(owner, params.ListingID)
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	formatted := make([]string, 0, len(allowed))
	for _, receiver := range allowed {
		formatted = append(formatted, formatAddress(receiver))
	}
	writeResult(w, req.ID, map[string]interface{}{
		"hasCommission": allowed != nil,
		"receivers":     formatted,
	})
}
