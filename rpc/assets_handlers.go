package rpc

import (
	"net/http"

	"nftmarket/native/assets"
)

const (
	codeAssetsInvalidParams = -32040
	codeAssetsError         = -32041
)

type registerCollectionParams struct {
	Name        string `json:"name"`
	StoragePath string `json:"storagePath"`
	DepositPath string `json:"depositPath"`
}

type mintParams struct {
	Collection string `json:"collection"`
	Owner      string `json:"owner"`
}

type transferParams struct {
	Collection string `json:"collection"`
	AssetID    uint64 `json:"assetId"`
	From       string `json:"from"`
	To         string `json:"to"`
}

type setRoyaltiesParams struct {
	Collection string           `json:"collection"`
	AssetID    uint64           `json:"assetId"`
	Caller     string           `json:"caller"`
	Royalties  []royaltyCutJSON `json:"royalties"`
}

type addressParams struct {
	Address string `json:"address"`
}

type collectionJSON struct {
	Name        string `json:"name"`
	StoragePath string `json:"storagePath"`
	DepositPath string `json:"depositPath"`
}

type assetJSON struct {
	Collection string `json:"collection"`
	ID         uint64 `json:"id"`
	Owner      string `json:"owner"`
}

func (s *Server) handleAssetsRegisterCollection(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params registerCollectionParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAssetsInvalidParams, "invalid_params", err.Error())
		return
	}
	s.mu.Lock()
	collection, err := s.assets.RegisterCollection(params.Name, params.StoragePath, params.DepositPath)
	s.mu.Unlock()
	if err != nil {
		writeError(w, http.StatusConflict, req.ID, codeAssetsError, "register_failed", err.Error())
		return
	}
	writeResult(w, req.ID, collectionJSON{
		Name:        collection.Name,
		StoragePath: collection.StoragePath,
		DepositPath: collection.DepositPath,
	})
}

func (s *Server) handleAssetsMint(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params mintParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAssetsInvalidParams, "invalid_params", err.Error())
		return
	}
	owner, err := parseAddress(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAssetsInvalidParams, "invalid_params", err.Error())
		return
	}
	s.mu.Lock()
	asset, err := s.assets.Mint(params.Collection, owner)
	s.mu.Unlock()
	if err != nil {
		writeError(w, http.StatusConflict, req.ID, codeAssetsError, "mint_failed", err.Error())
		return
	}
	writeResult(w, req.ID, assetJSON{
		Collection: asset.Collection,
		ID:         asset.ID,
		Owner:      formatAddress(asset.Owner),
	})
}

func (s *Server) handleAssetsTransfer(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params transferParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAssetsInvalidParams, "invalid_params", err.Error())
		return
	}
	from, err := parseAddress(params.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAssetsInvalidParams, "invalid_params", err.Error())
		return
	}
	to, err := parseAddress(params.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAssetsInvalidParams, "invalid_params", err.Error())
		return
	}
	s.mu.Lock()
	err = s.assets.Transfer(params.Collection, params.AssetID, from, to)
	s.mu.Unlock()
	if err != nil {
		writeError(w, http.StatusConflict, req.ID, codeAssetsError, "transfer_failed", err.Error())
		return
	}
	writeResult(w, req.ID, map[string]bool{"transferred": true})
}

func (s *Server) handleAssetsSetRoyalties(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params setRoyaltiesParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAssetsInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAssetsInvalidParams, "invalid_params", err.Error())
		return
	}
	cuts := make([]assets.RoyaltyInfo, 0, len(params.Royalties))
	for _, royalty := range params.Royalties {
		receiver, err := parseAddress(royalty.Receiver)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeAssetsInvalidParams, "invalid_params", err.Error())
			return
		}
		cuts = append(cuts, assets.RoyaltyInfo{Receiver: receiver, RateBps: royalty.RateBps})
	}
	s.mu.Lock()
	err = s.assets.SetRoyalties(params.Collection, params.AssetID, caller, cuts)
	s.mu.Unlock()
	if err != nil {
		writeError(w, http.StatusConflict, req.ID, codeAssetsError, "set_royalties_failed", err.Error())
		return
	}
	writeResult(w, req.ID, map[string]bool{"updated": true})
}

func (s *Server) handleAssetsCollections(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	names, err := s.assets.Collections()
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeAssetsError, "query_failed", err.Error())
		return
	}
	writeResult(w, req.ID, map[string][]string{"collections": names})
}

func (s *Server) handleAssetsOwnedBy(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params addressParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAssetsInvalidParams, "invalid_params", err.Error())
		return
	}
	addr, err := parseAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAssetsInvalidParams, "invalid_params", err.Error())
		return
	}
	owned, err := s.assets.ListOwned(addr)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeAssetsError, "query_failed", err.Error())
		return
	}
	out := make([]assetJSON, 0, len(owned))
	for _, asset := range owned {
		out = append(out, assetJSON{
			Collection: asset.Collection,
			ID:         asset.ID,
			Owner:      formatAddress(asset.Owner),
		})
	}
	writeResult(w, req.ID, map[string]interface{}{"assets": out})
}
