package assets

import (
	"encoding/hex"
	"strconv"

	"nftmarket/core/types"
)

const (
	EventTypeCollectionRegistered = "assets.collection_registered"
	EventTypeMinted               = "assets.minted"
	EventTypeTransferred          = "assets.transferred"
	EventTypeRoyaltiesUpdated     = "assets.royalties_updated"
	EventTypeReceiverPaused       = "assets.receiver_paused"
	EventTypeReceiverResumed      = "assets.receiver_resumed"
)

// NewCollectionRegisteredEvent returns the canonical payload for a new
// type-catalog entry.
func NewCollectionRegisteredEvent(c *Collection) *types.Event {
	attrs := make(map[string]string)
	if c != nil {
		attrs["collection"] = c.Name
		attrs["storagePath"] = c.StoragePath
		attrs["depositPath"] = c.DepositPath
	}
	return &types.Event{Type: EventTypeCollectionRegistered, Attributes: attrs}
}

// NewMintedEvent returns the canonical payload for a freshly minted asset.
func NewMintedEvent(a *Asset) *types.Event {
	attrs := make(map[string]string)
	if a != nil {
		attrs["collection"] = a.Collection
		attrs["assetId"] = strconv.FormatUint(a.ID, 10)
		attrs["owner"] = hex.EncodeToString(a.Owner[:])
	}
	return &types.Event{Type: EventTypeMinted, Attributes: attrs}
}

// NewTransferredEvent returns the canonical payload for a custody transfer.
func NewTransferredEvent(a *Asset, from [20]byte) *types.Event {
	attrs := make(map[string]string)
	if a != nil {
		attrs["collection"] = a.Collection
		attrs["assetId"] = strconv.FormatUint(a.ID, 10)
		attrs["from"] = hex.EncodeToString(from[:])
		attrs["to"] = hex.EncodeToString(a.Owner[:])
	}
	return &types.Event{Type: EventTypeTransferred, Attributes: attrs}
}

// NewRoyaltiesUpdatedEvent returns the canonical payload for a royalty
// schedule change.
func NewRoyaltiesUpdatedEvent(collection string, id uint64, cuts []RoyaltyInfo) *types.Event {
	attrs := map[string]string{
		"collection": collection,
		"assetId":    strconv.FormatUint(id, 10),
		"cuts":       strconv.Itoa(len(cuts)),
	}
	return &types.Event{Type: EventTypeRoyaltiesUpdated, Attributes: attrs}
}

// NewReceiverPausedEvent returns the canonical payload for a receiver
// capability change.
func NewReceiverPausedEvent(addr [20]byte, paused bool) *types.Event {
	eventType := EventTypeReceiverResumed
	if paused {
		eventType = EventTypeReceiverPaused
	}
	attrs := map[string]string{"address": hex.EncodeToString(addr[:])}
	return &types.Event{Type: eventType, Attributes: attrs}
}
