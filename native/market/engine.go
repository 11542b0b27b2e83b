package market

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"nftmarket/core/events"
	"nftmarket/core/types"
	"nftmarket/native/assets"
)

type engineState interface {
	StorefrontGet(owner [20]byte) (*Storefront, bool, error)
	StorefrontPut(*Storefront) error
	GetAccount(addr []byte) (*types.Account, error)
	PutAccount(addr []byte, account *types.Account) error
	ReceiverActive(addr [20]byte) (bool, error)
}

// Custody is the asset-transfer primitive the settlement engine moves the
// sold asset through. It must guarantee an asset has at most one owner.
type Custody interface {
	OwnerOf(collection string, id uint64) ([20]byte, bool, error)
	Transfer(collection string, id uint64, from, to [20]byte) error
}

// Catalog resolves a human-readable asset-type name to its storage
// coordinates. The engine passes the coordinates through without
// interpreting them.
type Catalog interface {
	ResolveCollection(name string) (*assets.Collection, bool, error)
}

// RoyaltySource exposes the royalty schedule declared on an asset. It is read
// exactly once, at listing time.
type RoyaltySource interface {
	Royalties(collection string, id uint64) ([]assets.RoyaltyInfo, error)
}

type marketEvent struct {
	evt *types.Event
}

func (e marketEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e marketEvent) Event() *types.Event { return e.evt }

// Engine wires the marketplace business logic with external state, custody
// and event emission. All mutating operations validate fully before touching
// state, so a failed call leaves the storefront exactly as it was.
type Engine struct {
	state     engineState
	custody   Custody
	catalog   Catalog
	royalties RoyaltySource
	emitter   events.Emitter
	nowFn     func() int64
}

// NewEngine creates a marketplace engine with a no-op emitter. Callers can
// override the emitter via SetEmitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetCustody configures the asset-transfer collaborator.
func (e *Engine) SetCustody(custody Custody) { e.custody = custody }

// SetCatalog configures the type-catalog collaborator.
func (e *Engine) SetCatalog(catalog Catalog) { e.catalog = catalog }

// SetRoyaltySource configures the royalty-metadata collaborator.
func (e *Engine) SetRoyaltySource(src RoyaltySource) { e.royalties = src }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(marketEvent{evt: evt})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) ready() error {
	switch {
	case e == nil || e.state == nil:
		return errNilState
	case e.custody == nil:
		return errNilCustody
	case e.catalog == nil:
		return errNilCatalog
	case e.royalties == nil:
		return errNilRoyaltySource
	}
	return nil
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func addrHex(addr [20]byte) string {
	return hex.EncodeToString(addr[:])
}

func (e *Engine) loadStorefront(owner [20]byte) (*Storefront, error) {
	sf, ok, err := e.state.StorefrontGet(owner)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrStorefrontNotFound, addrHex(owner))
	}
	return sf, nil
}

func (e *Engine) credit(addr [20]byte, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	account, err := e.state.GetAccount(addr[:])
	if err != nil {
		return err
	}
	account.Balance = new(big.Int).Add(account.Balance, amount)
	return e.state.PutAccount(addr[:], account)
}

func (e *Engine) debit(addr [20]byte, amount *big.Int) error {
	account, err := e.state.GetAccount(addr[:])
	if err != nil {
		return err
	}
	if account.Balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s", ErrInsufficientFunds, addrHex(addr))
	}
	account.Balance = new(big.Int).Sub(account.Balance, amount)
	return e.state.PutAccount(addr[:], account)
}

func (e *Engine) requireActiveReceiver(addr [20]byte) error {
	active, err := e.state.ReceiverActive(addr)
	if err != nil {
		return err
	}
	if !active {
		return fmt.Errorf("%w: %s", ErrReceiverUnavailable, addrHex(addr))
	}
	return nil
}

// royaltyPayout computes one royalty share of the post-commission base.
func royaltyPayout(base *big.Int, rateBps uint32) *big.Int {
	payout := new(big.Int).Mul(base, new(big.Int).SetUint64(uint64(rateBps)))
	return payout.Div(payout, big.NewInt(maxRateBps))
}

// CreateStorefront installs an empty storefront for the owner. The operation
// is idempotent; an existing storefront is returned unchanged.
func (e *Engine) CreateStorefront(owner [20]byte) (*Storefront, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if owner == ([20]byte{}) {
		return nil, fmt.Errorf("market: owner must not be zero")
	}
	existing, ok, err := e.state.StorefrontGet(owner)
	if err != nil {
		return nil, err
	}
	if ok {
		return existing.Clone(), nil
	}
	sf := NewStorefront(owner)
	if err := e.state.StorefrontPut(sf); err != nil {
		return nil, err
	}
	e.emit(NewStorefrontCreatedEvent(owner))
	return sf.Clone(), nil
}

// ListParams carries the seller-supplied inputs of a new listing.
type ListParams struct {
	Collection          string
	AssetID             uint64
	SalePrice           *big.Int
	CustomID            string
	CommissionAmount    *big.Int
	CommissionReceivers [][20]byte
	Expiry              int64
}

// List creates a sale offer for an asset the caller owns. The asset's royalty
// schedule is snapshotted into the listing as fixed cuts, and every royalty
// beneficiary must be able to receive funds at this point.
func (e *Engine) List(owner [20]byte, params ListParams) (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	sf, err := e.loadStorefront(owner)
	if err != nil {
		return 0, err
	}
	price := cloneBigInt(params.SalePrice)
	if price.Sign() <= 0 {
		return 0, errInvalidPrice
	}
	commission := cloneBigInt(params.CommissionAmount)
	if commission.Sign() < 0 || commission.Cmp(price) >= 0 {
		return 0, fmt.Errorf("%w: commission %s against price %s", errCommissionTooLarge, commission, price)
	}
	now := e.now()
	if params.Expiry <= now {
		return 0, fmt.Errorf("%w: expiry %d at time %d", errExpiryInPast, params.Expiry, now)
	}
	collection, ok, err := e.catalog.ResolveCollection(params.Collection)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%w: %s", errUnknownCollection, params.Collection)
	}
	holder, ok, err := e.custody.OwnerOf(collection.Name, params.AssetID)
	if err != nil {
		return 0, err
	}
	if !ok || holder != owner {
		return 0, fmt.Errorf("%w: %s/%d", ErrAssetUnavailable, collection.Name, params.AssetID)
	}

	schedule, err := e.royalties.Royalties(collection.Name, params.AssetID)
	if err != nil {
		return 0, err
	}
	base := new(big.Int).Sub(price, commission)
	totalPayout := big.NewInt(0)
	cuts := make([]SaleCut, 0, len(schedule))
	for i, royalty := range schedule {
		if royalty.RateBps > maxRateBps {
			return 0, fmt.Errorf("%w: cut %d rate %d bps", ErrInvalidRoyaltyMetadata, i, royalty.RateBps)
		}
		if err := e.requireActiveReceiver(royalty.Receiver); err != nil {
			return 0, err
		}
		totalPayout = totalPayout.Add(totalPayout, royaltyPayout(base, royalty.RateBps))
		cuts = append(cuts, SaleCut{Kind: CutRoyalty, RateBps: royalty.RateBps, Receiver: royalty.Receiver})
	}
	if totalPayout.Cmp(base) > 0 {
		return 0, fmt.Errorf("%w: payouts %s exceed base %s", ErrInvalidRoyaltyMetadata, totalPayout, base)
	}

	var commissionCut *SaleCut
	if commission.Sign() > 0 || len(params.CommissionReceivers) > 0 {
		allowed := make([][20]byte, len(params.CommissionReceivers))
		copy(allowed, params.CommissionReceivers)
		commissionCut = &SaleCut{Kind: CutCommission, Amount: commission, Allowed: allowed}
	}

	listing := &Listing{
		ID:          sf.NextListingID,
		Collection:  collection.Name,
		AssetID:     params.AssetID,
		SalePrice:   price,
		CustomID:    params.CustomID,
		Expiry:      params.Expiry,
		RoyaltyCuts: cuts,
		Commission:  commissionCut,
		CreatedAt:   now,
	}
	sf.NextListingID++
	sf.AddListing(listing)
	if err := e.state.StorefrontPut(sf); err != nil {
		return 0, err
	}
	e.emit(NewListingCreatedEvent(owner, listing))
	return listing.ID, nil
}

// Payout is one settled transfer of a purchase.
type Payout struct {
	Kind     CutKind
	Receiver [20]byte
	Amount   *big.Int
}

// Receipt summarises a settled purchase: where every unit of the sale price
// went, plus the duplicate listings purged alongside.
type Receipt struct {
	ListingID         uint64
	Collection        string
	AssetID           uint64
	Buyer             [20]byte
	SalePrice         *big.Int
	Royalties         []Payout
	CommissionPaid    *big.Int
	CommissionTo      *[20]byte
	SellerRemainder   *big.Int
	RemovedDuplicates []uint64
}

// Purchase settles the sale: it splits the price among commission, royalties
// and the seller, moves the asset to the buyer, marks the listing purchased
// and purges duplicate listings of the same asset, all in one atomic step.
// Validation happens before the first transfer; any failure leaves both the
// storefront and every balance untouched.
func (e *Engine) Purchase(owner [20]byte, listingID uint64, buyer [20]byte, commissionReceiver *[20]byte) (*Receipt, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	sf, err := e.loadStorefront(owner)
	if err != nil {
		return nil, err
	}
	listing, ok := sf.Listing(listingID)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrListingNotFound, listingID)
	}
	if listing.Purchased {
		return nil, fmt.Errorf("%w: %d", ErrAlreadyPurchased, listingID)
	}
	if e.now() >= listing.Expiry {
		return nil, fmt.Errorf("%w: %d", ErrExpired, listingID)
	}

	price := cloneBigInt(listing.SalePrice)
	commission := listing.CommissionAmount()
	if commission.Sign() > 0 {
		if commissionReceiver == nil {
			return nil, fmt.Errorf("%w: listing %d", ErrCommissionReceiverRequired, listingID)
		}
		if !listing.Commission.AllowsReceiver(*commissionReceiver) {
			return nil, fmt.Errorf("%w: %s", ErrCommissionReceiverNotAllowed, addrHex(*commissionReceiver))
		}
	}

	base := new(big.Int).Sub(price, commission)
	royaltyPayouts := make([]Payout, 0, len(listing.RoyaltyCuts))
	remainder := new(big.Int).Set(base)
	for i := range listing.RoyaltyCuts {
		cut := &listing.RoyaltyCuts[i]
		payout := royaltyPayout(base, cut.RateBps)
		remainder = remainder.Sub(remainder, payout)
		royaltyPayouts = append(royaltyPayouts, Payout{Kind: CutRoyalty, Receiver: cut.Receiver, Amount: payout})
	}
	if remainder.Sign() < 0 {
		return nil, fmt.Errorf("%w: listing %d remainder %s", ErrNegativeRemainder, listingID, remainder)
	}

	holder, ok, err := e.custody.OwnerOf(listing.Collection, listing.AssetID)
	if err != nil {
		return nil, err
	}
	if !ok || holder != owner {
		return nil, fmt.Errorf("%w: %s/%d", ErrAssetUnavailable, listing.Collection, listing.AssetID)
	}

	buyerAccount, err := e.state.GetAccount(buyer[:])
	if err != nil {
		return nil, err
	}
	if buyerAccount.Balance.Cmp(price) < 0 {
		return nil, fmt.Errorf("%w: %s", ErrInsufficientFunds, addrHex(buyer))
	}
	for _, payout := range royaltyPayouts {
		if payout.Amount.Sign() == 0 {
			continue
		}
		if err := e.requireActiveReceiver(payout.Receiver); err != nil {
			return nil, err
		}
	}
	if commission.Sign() > 0 {
		if err := e.requireActiveReceiver(*commissionReceiver); err != nil {
			return nil, err
		}
	}
	if remainder.Sign() > 0 {
		if err := e.requireActiveReceiver(owner); err != nil {
			return nil, err
		}
	}

	// All checks passed; apply the settlement in cut order.
	if err := e.debit(buyer, price); err != nil {
		return nil, err
	}
	for _, payout := range royaltyPayouts {
		if err := e.credit(payout.Receiver, payout.Amount); err != nil {
			return nil, err
		}
	}
	if commission.Sign() > 0 {
		if err := e.credit(*commissionReceiver, commission); err != nil {
			return nil, err
		}
	}
	if err := e.credit(owner, remainder); err != nil {
		return nil, err
	}
	if err := e.custody.Transfer(listing.Collection, listing.AssetID, owner, buyer); err != nil {
		return nil, err
	}

	listing.Purchased = true
	duplicates := sf.DuplicateListingIDs(listing.Collection, listing.AssetID, listingID)
	for _, id := range duplicates {
		sf.RemoveListing(id)
	}
	if err := e.state.StorefrontPut(sf); err != nil {
		return nil, err
	}

	receipt := &Receipt{
		ListingID:         listingID,
		Collection:        listing.Collection,
		AssetID:           listing.AssetID,
		Buyer:             buyer,
		SalePrice:         price,
		Royalties:         royaltyPayouts,
		CommissionPaid:    commission,
		SellerRemainder:   remainder,
		RemovedDuplicates: duplicates,
	}
	if commissionReceiver != nil {
		receiver := *commissionReceiver
		receipt.CommissionTo = &receiver
	}
	for _, id := range duplicates {
		e.emit(NewListingRemovedEvent(owner, id, RemovalReasonDuplicate))
	}
	e.emit(NewListingPurchasedEvent(owner, listing, receipt))
	return receipt, nil
}

// RemoveListing withdraws an unpurchased sale offer. Only the storefront
// owner may remove listings; authorisation is enforced at the call boundary.
func (e *Engine) RemoveListing(owner [20]byte, listingID uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	sf, err := e.loadStorefront(owner)
	if err != nil {
		return err
	}
	listing, ok := sf.Listing(listingID)
	if !ok {
		return fmt.Errorf("%w: %d", ErrListingNotFound, listingID)
	}
	if listing.Purchased {
		return fmt.Errorf("%w: %d", ErrAlreadyPurchased, listingID)
	}
	sf.RemoveListing(listingID)
	if err := e.state.StorefrontPut(sf); err != nil {
		return err
	}
	e.emit(NewListingRemovedEvent(owner, listingID, RemovalReasonWithdrawn))
	return nil
}

// CleanupExpired sweeps one index range of the storefront's listing
// enumeration, removing every entry in [start, end) that has expired or was
// already purchased. The range is validated against a snapshot of ids taken
// at call entry; callers page through [0, N) in chunks to bound per-call
// work. Returns the number of listings removed.
func (e *Engine) CleanupExpired(owner [20]byte, start, end int64) (int, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	sf, err := e.loadStorefront(owner)
	if err != nil {
		return 0, err
	}
	ids := sf.ListingIDs()
	total := int64(len(ids))
	if start < 0 || start >= end || end > total {
		return 0, fmt.Errorf("%w: [%d, %d) of %d listings", ErrRangeOutOfBounds, start, end, total)
	}
	now := e.now()
	removed := 0
	for i := start; i < end; i++ {
		listing, ok := sf.Listing(ids[i])
		if !ok {
			continue
		}
		if !listing.Purchased && listing.Expiry > now {
			continue
		}
		reason := RemovalReasonExpired
		if listing.Purchased {
			reason = RemovalReasonPurchased
		}
		sf.RemoveListing(listing.ID)
		e.emit(NewListingRemovedEvent(owner, listing.ID, reason))
		removed++
	}
	if removed > 0 {
		if err := e.state.StorefrontPut(sf); err != nil {
			return 0, err
		}
	}
	return removed, nil
}

// ListingIDs returns the ids of every listing in the storefront, sorted
// ascending.
func (e *Engine) ListingIDs(owner [20]byte) ([]uint64, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	sf, err := e.loadStorefront(owner)
	if err != nil {
		return nil, err
	}
	return sf.ListingIDs(), nil
}

// GetListing returns a copy of one listing.
func (e *Engine) GetListing(owner [20]byte, listingID uint64) (*Listing, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	sf, err := e.loadStorefront(owner)
	if err != nil {
		return nil, err
	}
	listing, ok := sf.Listing(listingID)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrListingNotFound, listingID)
	}
	return listing.Clone(), nil
}

// DuplicateListingIDs returns the ids of every other listing in the
// storefront referencing the same asset.
func (e *Engine) DuplicateListingIDs(owner [20]byte, collection string, assetID uint64, excluding uint64) ([]uint64, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	sf, err := e.loadStorefront(owner)
	if err != nil {
		return nil, err
	}
	return sf.DuplicateListingIDs(collection, assetID, excluding), nil
}

// AllowedCommissionReceivers returns the commission allow-list of a listing.
// A nil result with no error means the listing carries no commission; an
// empty list means the commission is open to any receiver.
func (e *Engine) AllowedCommissionReceivers(owner [20]byte, listingID uint64) ([][20]byte, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	sf, err := e.loadStorefront(owner)
	if err != nil {
		return nil, err
	}
	listing, ok := sf.Listing(listingID)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrListingNotFound, listingID)
	}
	if listing.Commission == nil {
		return nil, nil
	}
	allowed := make([][20]byte, len(listing.Commission.Allowed))
	copy(allowed, listing.Commission.Allowed)
	return allowed, nil
}
