package market

import (
	"encoding/hex"
	"strconv"

	"nftmarket/core/types"
)

const (
	EventTypeStorefrontCreated = "market.storefront_created"
	EventTypeListingCreated    = "market.listing_created"
	EventTypeListingPurchased  = "market.listing_purchased"
	EventTypeListingRemoved    = "market.listing_removed"
)

// Reasons attached to listing removal events.
const (
	RemovalReasonWithdrawn = "withdrawn"
	RemovalReasonDuplicate = "duplicate"
	RemovalReasonExpired   = "expired"
	RemovalReasonPurchased = "purchased"
)

// NewStorefrontCreatedEvent returns the canonical payload for a freshly
// installed storefront.
func NewStorefrontCreatedEvent(owner [20]byte) *types.Event {
	return &types.Event{
		Type:       EventTypeStorefrontCreated,
		Attributes: map[string]string{"owner": hex.EncodeToString(owner[:])},
	}
}

// NewListingCreatedEvent returns the canonical payload for a new sale offer.
func NewListingCreatedEvent(owner [20]byte, l *Listing) *types.Event {
	attrs := make(map[string]string)
	if l != nil {
		attrs["owner"] = hex.EncodeToString(owner[:])
		attrs["listingId"] = strconv.FormatUint(l.ID, 10)
		attrs["collection"] = l.Collection
		attrs["assetId"] = strconv.FormatUint(l.AssetID, 10)
		attrs["salePrice"] = l.SalePrice.String()
		attrs["commission"] = l.CommissionAmount().String()
		attrs["expiry"] = strconv.FormatInt(l.Expiry, 10)
		if l.CustomID != "" {
			attrs["customId"] = l.CustomID
		}
	}
	return &types.Event{Type: EventTypeListingCreated, Attributes: attrs}
}

// NewListingPurchasedEvent returns the canonical payload for a settled sale.
func NewListingPurchasedEvent(owner [20]byte, l *Listing, receipt *Receipt) *types.Event {
	attrs := make(map[string]string)
	if l != nil && receipt != nil {
		attrs["owner"] = hex.EncodeToString(owner[:])
		attrs["listingId"] = strconv.FormatUint(l.ID, 10)
		attrs["collection"] = l.Collection
		attrs["assetId"] = strconv.FormatUint(l.AssetID, 10)
		attrs["buyer"] = hex.EncodeToString(receipt.Buyer[:])
		attrs["salePrice"] = receipt.SalePrice.String()
		attrs["commission"] = receipt.CommissionPaid.String()
		attrs["sellerRemainder"] = receipt.SellerRemainder.String()
		if receipt.CommissionTo != nil {
			attrs["commissionReceiver"] = hex.EncodeToString(receipt.CommissionTo[:])
		}
	}
	return &types.Event{Type: EventTypeListingPurchased, Attributes: attrs}
}

// NewListingRemovedEvent returns the canonical payload for a listing removal.
func NewListingRemovedEvent(owner [20]byte, listingID uint64, reason string) *types.Event {
	attrs := map[string]string{
		"owner":     hex.EncodeToString(owner[:]),
		"listingId": strconv.FormatUint(listingID, 10),
		"reason":    reason,
	}
	return &types.Event{Type: EventTypeListingRemoved, Attributes: attrs}
}
