package market

import "errors"

// Failure kinds surfaced to callers. Every mutating operation that returns
// one of these leaves the storefront exactly as it was before the call; the
// offending field (address, id, index) is attached by wrapping so clients can
// decide whether to retry with different parameters.
var (
	ErrStorefrontNotFound           = errors.New("market: storefront not found")
	ErrListingNotFound              = errors.New("market: listing not found")
	ErrAlreadyPurchased             = errors.New("market: listing already purchased")
	ErrExpired                      = errors.New("market: listing expired")
	ErrCommissionReceiverRequired   = errors.New("market: commission receiver required")
	ErrCommissionReceiverNotAllowed = errors.New("market: commission receiver not allowed")
	ErrReceiverUnavailable          = errors.New("market: receiver cannot accept funds")
	ErrRangeOutOfBounds             = errors.New("market: cleanup range out of bounds")
	ErrNegativeRemainder            = errors.New("market: seller remainder negative")
	ErrInvalidRoyaltyMetadata       = errors.New("market: invalid royalty metadata")
	ErrInsufficientFunds            = errors.New("market: insufficient balance")
	ErrAssetUnavailable             = errors.New("market: asset not held by seller")
)

var (
	errNilState           = errors.New("market engine: state not configured")
	errNilCustody         = errors.New("market engine: custody not configured")
	errNilCatalog         = errors.New("market engine: catalog not configured")
	errNilRoyaltySource   = errors.New("market engine: royalty source not configured")
	errInvalidPrice       = errors.New("market: sale price must be positive")
	errCommissionTooLarge = errors.New("market: commission must be below sale price")
	errExpiryInPast       = errors.New("market: expiry must be in the future")
	errUnknownCollection  = errors.New("market: unknown collection")
)
