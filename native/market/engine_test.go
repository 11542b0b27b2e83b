package market

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"nftmarket/core/events"
	"nftmarket/core/types"
	"nftmarket/native/assets"
)

const testNow int64 = 1_700_000_000

type mockState struct {
	storefronts map[[20]byte]*Storefront
	accounts    map[[20]byte]*types.Account
	paused      map[[20]byte]bool
	collections map[string]*assets.Collection
	owners      map[string][20]byte
	royalties   map[string][]assets.RoyaltyInfo
}

func newMockState() *mockState {
	return &mockState{
		storefronts: make(map[[20]byte]*Storefront),
		accounts:    make(map[[20]byte]*types.Account),
		paused:      make(map[[20]byte]bool),
		collections: make(map[string]*assets.Collection),
		owners:      make(map[string][20]byte),
		royalties:   make(map[string][]assets.RoyaltyInfo),
	}
}

func assetRef(collection string, id uint64) string {
	return fmt.Sprintf("%s/%d", collection, id)
}

func (m *mockState) StorefrontGet(owner [20]byte) (*Storefront, bool, error) {
	sf, ok := m.storefronts[owner]
	if !ok {
		return nil, false, nil
	}
	return sf.Clone(), true, nil
}

func (m *mockState) StorefrontPut(sf *Storefront) error {
	if sf == nil {
		return fmt.Errorf("nil storefront")
	}
	m.storefronts[sf.Owner] = sf.Clone()
	return nil
}

func (m *mockState) GetAccount(addr []byte) (*types.Account, error) {
	var key [20]byte
	copy(key[:], addr)
	if account, ok := m.accounts[key]; ok {
		clone := &types.Account{Nonce: account.Nonce, ReceiverPaused: account.ReceiverPaused}
		clone.Balance = new(big.Int).Set(account.Balance)
		return clone, nil
	}
	return &types.Account{Balance: big.NewInt(0)}, nil
}

func (m *mockState) PutAccount(addr []byte, account *types.Account) error {
	var key [20]byte
	copy(key[:], addr)
	clone := &types.Account{Nonce: account.Nonce, ReceiverPaused: account.ReceiverPaused}
	clone.Balance = new(big.Int).Set(account.Balance)
	m.accounts[key] = clone
	return nil
}

func (m *mockState) ReceiverActive(addr [20]byte) (bool, error) {
	return !m.paused[addr], nil
}

func (m *mockState) ResolveCollection(name string) (*assets.Collection, bool, error) {
	c, ok := m.collections[name]
	return c, ok, nil
}

func (m *mockState) OwnerOf(collection string, id uint64) ([20]byte, bool, error) {
	owner, ok := m.owners[assetRef(collection, id)]
	return owner, ok, nil
}

func (m *mockState) Transfer(collection string, id uint64, from, to [20]byte) error {
	key := assetRef(collection, id)
	owner, ok := m.owners[key]
	if !ok || owner != from {
		return fmt.Errorf("mock custody: %s not held by %x", key, from)
	}
	m.owners[key] = to
	return nil
}

func (m *mockState) Royalties(collection string, id uint64) ([]assets.RoyaltyInfo, error) {
	return append([]assets.RoyaltyInfo(nil), m.royalties[assetRef(collection, id)]...), nil
}

func (m *mockState) fund(addr [20]byte, amount int64) {
	m.accounts[addr] = &types.Account{Balance: big.NewInt(amount)}
}

func (m *mockState) balance(addr [20]byte) *big.Int {
	if account, ok := m.accounts[addr]; ok {
		return new(big.Int).Set(account.Balance)
	}
	return big.NewInt(0)
}

type recordingEmitter struct {
	events []events.Event
}

func (r *recordingEmitter) Emit(evt events.Event) {
	r.events = append(r.events, evt)
}

func (r *recordingEmitter) typesSeen() []string {
	out := make([]string, 0, len(r.events))
	for _, evt := range r.events {
		out = append(out, evt.EventType())
	}
	return out
}

func newTestAddress(fill byte) [20]byte {
	var addr [20]byte
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

func newTestEngine(t *testing.T) (*Engine, *mockState, *recordingEmitter) {
	t.Helper()
	state := newMockState()
	emitter := &recordingEmitter{}
	engine := NewEngine()
	engine.SetState(state)
	engine.SetCustody(state)
	engine.SetCatalog(state)
	engine.SetRoyaltySource(state)
	engine.SetEmitter(emitter)
	engine.SetNowFunc(func() int64 { return testNow })
	state.collections["moments"] = &assets.Collection{
		Name:        "moments",
		StoragePath: "/storage/momentsCollection",
		DepositPath: "/public/momentsReceiver",
	}
	return engine, state, emitter
}

func setupSeller(t *testing.T, engine *Engine, state *mockState, seller [20]byte, assetID uint64) {
	t.Helper()
	if _, err := engine.CreateStorefront(seller); err != nil {
		t.Fatalf("create storefront: %v", err)
	}
	state.owners[assetRef("moments", assetID)] = seller
}

func mustList(t *testing.T, engine *Engine, seller [20]byte, params ListParams) uint64 {
	t.Helper()
	id, err := engine.List(seller, params)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	return id
}

func baseParams(assetID uint64) ListParams {
	return ListParams{
		Collection: "moments",
		AssetID:    assetID,
		SalePrice:  big.NewInt(5050),
		CustomID:   "topshot-platform",
		Expiry:     testNow + 500,
	}
}

func TestCreateStorefrontIdempotent(t *testing.T) {
	engine, state, emitter := newTestEngine(t)
	owner := newTestAddress(0x01)

	first, err := engine.CreateStorefront(owner)
	if err != nil {
		t.Fatalf("create storefront: %v", err)
	}
	if first.Owner != owner {
		t.Fatalf("unexpected owner %x", first.Owner)
	}

	state.owners[assetRef("moments", 7)] = owner
	mustList(t, engine, owner, baseParams(7))

	again, err := engine.CreateStorefront(owner)
	if err != nil {
		t.Fatalf("create storefront twice: %v", err)
	}
	if len(again.Listings) != 1 {
		t.Fatalf("idempotent create must not reset listings, got %d", len(again.Listings))
	}
	created := 0
	for _, evt := range emitter.typesSeen() {
		if evt == EventTypeStorefrontCreated {
			created++
		}
	}
	if created != 1 {
		t.Fatalf("expected a single storefront_created event, got %d", created)
	}
}

func TestListValidation(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	seller := newTestAddress(0x01)
	stranger := newTestAddress(0x02)
	setupSeller(t, engine, state, seller, 1)

	if _, err := engine.List(stranger, baseParams(1)); !errors.Is(err, ErrStorefrontNotFound) {
		t.Fatalf("expected storefront-not-found, got %v", err)
	}

	params := baseParams(1)
	params.SalePrice = big.NewInt(0)
	if _, err := engine.List(seller, params); !errors.Is(err, errInvalidPrice) {
		t.Fatalf("expected invalid price, got %v", err)
	}

	params = baseParams(1)
	params.CommissionAmount = big.NewInt(5050)
	if _, err := engine.List(seller, params); !errors.Is(err, errCommissionTooLarge) {
		t.Fatalf("expected commission rejection, got %v", err)
	}

	params = baseParams(1)
	params.Expiry = testNow - 1
	if _, err := engine.List(seller, params); !errors.Is(err, errExpiryInPast) {
		t.Fatalf("expected expiry rejection, got %v", err)
	}

	params = baseParams(1)
	params.Collection = "unknown"
	if _, err := engine.List(seller, params); !errors.Is(err, errUnknownCollection) {
		t.Fatalf("expected unknown collection, got %v", err)
	}

	params = baseParams(99)
	if _, err := engine.List(seller, params); !errors.Is(err, ErrAssetUnavailable) {
		t.Fatalf("expected asset-unavailable, got %v", err)
	}
}

func TestListRejectsMalformedRoyalties(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	seller := newTestAddress(0x01)
	setupSeller(t, engine, state, seller, 1)

	state.royalties[assetRef("moments", 1)] = []assets.RoyaltyInfo{
		{Receiver: newTestAddress(0xA1), RateBps: 12_000},
	}
	if _, err := engine.List(seller, baseParams(1)); !errors.Is(err, ErrInvalidRoyaltyMetadata) {
		t.Fatalf("expected invalid royalty metadata, got %v", err)
	}

	state.royalties[assetRef("moments", 1)] = []assets.RoyaltyInfo{
		{Receiver: newTestAddress(0xA1), RateBps: 6_000},
		{Receiver: newTestAddress(0xA2), RateBps: 6_000},
	}
	if _, err := engine.List(seller, baseParams(1)); !errors.Is(err, ErrInvalidRoyaltyMetadata) {
		t.Fatalf("expected invalid royalty metadata for oversubscribed schedule, got %v", err)
	}
}

func TestListFailsFastOnPausedRoyaltyReceiver(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	seller := newTestAddress(0x01)
	beneficiary := newTestAddress(0xA1)
	setupSeller(t, engine, state, seller, 1)
	state.royalties[assetRef("moments", 1)] = []assets.RoyaltyInfo{{Receiver: beneficiary, RateBps: 1000}}
	state.paused[beneficiary] = true

	if _, err := engine.List(seller, baseParams(1)); !errors.Is(err, ErrReceiverUnavailable) {
		t.Fatalf("expected receiver-unavailable, got %v", err)
	}
	ids, err := engine.ListingIDs(seller)
	if err != nil {
		t.Fatalf("listing ids: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("failed list must not leave a listing behind, got %v", ids)
	}
}

func TestListSnapshotsRoyaltySchedule(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	seller := newTestAddress(0x01)
	beneficiary := newTestAddress(0xA1)
	setupSeller(t, engine, state, seller, 1)
	state.royalties[assetRef("moments", 1)] = []assets.RoyaltyInfo{{Receiver: beneficiary, RateBps: 1000}}

	id := mustList(t, engine, seller, baseParams(1))

	// Mutating the declared schedule after listing must not affect the
	// snapshotted cuts.
	state.royalties[assetRef("moments", 1)] = []assets.RoyaltyInfo{{Receiver: beneficiary, RateBps: 9000}}

	listing, err := engine.GetListing(seller, id)
	if err != nil {
		t.Fatalf("get listing: %v", err)
	}
	if len(listing.RoyaltyCuts) != 1 || listing.RoyaltyCuts[0].RateBps != 1000 {
		t.Fatalf("royalty cuts not snapshotted: %+v", listing.RoyaltyCuts)
	}
}

func TestPurchaseSplitsPriceExactly(t *testing.T) {
	engine, state, emitter := newTestEngine(t)
	seller := newTestAddress(0x01)
	buyer := newTestAddress(0x02)
	marketplace := newTestAddress(0x03)
	beneficiaryA := newTestAddress(0xA1)
	beneficiaryB := newTestAddress(0xA2)
	setupSeller(t, engine, state, seller, 1)
	state.fund(buyer, 10_000)
	state.royalties[assetRef("moments", 1)] = []assets.RoyaltyInfo{
		{Receiver: beneficiaryA, RateBps: 1000},
		{Receiver: beneficiaryB, RateBps: 2500},
	}

	params := baseParams(1)
	params.CommissionAmount = big.NewInt(1050)
	params.CommissionReceivers = [][20]byte{marketplace}
	id := mustList(t, engine, seller, params)

	receipt, err := engine.Purchase(seller, id, buyer, &marketplace)
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}

	if got := state.balance(beneficiaryA); got.Cmp(big.NewInt(400)) != 0 {
		t.Fatalf("beneficiary A payout = %s, want 400", got)
	}
	if got := state.balance(beneficiaryB); got.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("beneficiary B payout = %s, want 1000", got)
	}
	if got := state.balance(marketplace); got.Cmp(big.NewInt(1050)) != 0 {
		t.Fatalf("commission payout = %s, want 1050", got)
	}
	if got := state.balance(seller); got.Cmp(big.NewInt(2600)) != 0 {
		t.Fatalf("seller remainder = %s, want 2600", got)
	}
	if got := state.balance(buyer); got.Cmp(big.NewInt(10_000-5050)) != 0 {
		t.Fatalf("buyer balance = %s, want %d", got, 10_000-5050)
	}

	total := new(big.Int).Set(receipt.CommissionPaid)
	total.Add(total, receipt.SellerRemainder)
	for _, payout := range receipt.Royalties {
		total.Add(total, payout.Amount)
	}
	if total.Cmp(receipt.SalePrice) != 0 {
		t.Fatalf("payouts sum to %s, want %s", total, receipt.SalePrice)
	}

	if owner := state.owners[assetRef("moments", 1)]; owner != buyer {
		t.Fatalf("asset owner = %x, want buyer", owner)
	}
	listing, err := engine.GetListing(seller, id)
	if err != nil {
		t.Fatalf("get listing: %v", err)
	}
	if !listing.Purchased {
		t.Fatalf("listing not marked purchased")
	}
	found := false
	for _, evt := range emitter.typesSeen() {
		if evt == EventTypeListingPurchased {
			found = true
		}
	}
	if !found {
		t.Fatalf("missing listing_purchased event")
	}
}

func TestPurchaseZeroCommission(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	seller := newTestAddress(0x01)
	buyer := newTestAddress(0x02)
	bystander := newTestAddress(0x04)
	setupSeller(t, engine, state, seller, 1)
	setupSeller(t, engine, state, seller, 2)
	state.fund(buyer, 20_000)

	// No receiver supplied.
	id := mustList(t, engine, seller, baseParams(1))
	if _, err := engine.Purchase(seller, id, buyer, nil); err != nil {
		t.Fatalf("purchase without receiver: %v", err)
	}

	// Receiver supplied against a zero commission: accepted, paid nothing.
	id = mustList(t, engine, seller, baseParams(2))
	receipt, err := engine.Purchase(seller, id, buyer, &bystander)
	if err != nil {
		t.Fatalf("purchase with receiver: %v", err)
	}
	if receipt.CommissionPaid.Sign() != 0 {
		t.Fatalf("commission paid = %s, want 0", receipt.CommissionPaid)
	}
	if got := state.balance(bystander); got.Sign() != 0 {
		t.Fatalf("bystander balance = %s, want 0", got)
	}
}

func TestPurchaseCommissionReceiverRequired(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	seller := newTestAddress(0x01)
	buyer := newTestAddress(0x02)
	setupSeller(t, engine, state, seller, 1)
	state.fund(buyer, 10_000)

	params := baseParams(1)
	params.CommissionAmount = big.NewInt(100)
	id := mustList(t, engine, seller, params)

	if _, err := engine.Purchase(seller, id, buyer, nil); !errors.Is(err, ErrCommissionReceiverRequired) {
		t.Fatalf("expected commission-receiver-required, got %v", err)
	}
}

func TestPurchaseCommissionReceiverNotAllowed(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	seller := newTestAddress(0x01)
	buyer := newTestAddress(0x02)
	marketplace := newTestAddress(0x03)
	outsider := newTestAddress(0x05)
	setupSeller(t, engine, state, seller, 1)
	state.fund(buyer, 10_000)

	params := baseParams(1)
	params.CommissionAmount = big.NewInt(1050)
	params.CommissionReceivers = [][20]byte{marketplace}
	id := mustList(t, engine, seller, params)

	if _, err := engine.Purchase(seller, id, buyer, &outsider); !errors.Is(err, ErrCommissionReceiverNotAllowed) {
		t.Fatalf("expected commission-receiver-not-allowed, got %v", err)
	}

	// The failed purchase must leave everything untouched.
	if got := state.balance(buyer); got.Cmp(big.NewInt(10_000)) != 0 {
		t.Fatalf("buyer balance changed to %s", got)
	}
	if owner := state.owners[assetRef("moments", 1)]; owner != seller {
		t.Fatalf("asset moved to %x on failed purchase", owner)
	}
	listing, err := engine.GetListing(seller, id)
	if err != nil {
		t.Fatalf("get listing: %v", err)
	}
	if listing.Purchased {
		t.Fatalf("listing marked purchased on failed purchase")
	}
}

func TestPurchaseOpenCommission(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	seller := newTestAddress(0x01)
	buyer := newTestAddress(0x02)
	anyone := newTestAddress(0x06)
	setupSeller(t, engine, state, seller, 1)
	state.fund(buyer, 10_000)

	params := baseParams(1)
	params.CommissionAmount = big.NewInt(500)
	id := mustList(t, engine, seller, params)

	receipt, err := engine.Purchase(seller, id, buyer, &anyone)
	if err != nil {
		t.Fatalf("open commission purchase: %v", err)
	}
	if got := state.balance(anyone); got.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("open commission payout = %s, want 500", got)
	}
	if receipt.CommissionTo == nil || *receipt.CommissionTo != anyone {
		t.Fatalf("receipt commission receiver = %v", receipt.CommissionTo)
	}
}

func TestPurchaseExpiredListing(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	seller := newTestAddress(0x01)
	buyer := newTestAddress(0x02)
	setupSeller(t, engine, state, seller, 1)
	state.fund(buyer, 10_000)

	id := mustList(t, engine, seller, baseParams(1))
	engine.SetNowFunc(func() int64 { return testNow + 500 })

	if _, err := engine.Purchase(seller, id, buyer, nil); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected expired, got %v", err)
	}
}

func TestPurchaseTwiceFails(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	seller := newTestAddress(0x01)
	buyer := newTestAddress(0x02)
	second := newTestAddress(0x07)
	setupSeller(t, engine, state, seller, 1)
	state.fund(buyer, 10_000)
	state.fund(second, 10_000)

	id := mustList(t, engine, seller, baseParams(1))
	if _, err := engine.Purchase(seller, id, buyer, nil); err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if _, err := engine.Purchase(seller, id, second, nil); !errors.Is(err, ErrAlreadyPurchased) {
		t.Fatalf("expected already-purchased, got %v", err)
	}
}

func TestPurchaseInsufficientFunds(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	seller := newTestAddress(0x01)
	buyer := newTestAddress(0x02)
	setupSeller(t, engine, state, seller, 1)
	state.fund(buyer, 100)

	id := mustList(t, engine, seller, baseParams(1))
	if _, err := engine.Purchase(seller, id, buyer, nil); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if got := state.balance(buyer); got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("buyer balance changed to %s", got)
	}
}

func TestPurchaseRollsBackOnUnavailableReceiver(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	seller := newTestAddress(0x01)
	buyer := newTestAddress(0x02)
	beneficiary := newTestAddress(0xA1)
	setupSeller(t, engine, state, seller, 1)
	state.fund(buyer, 10_000)
	state.royalties[assetRef("moments", 1)] = []assets.RoyaltyInfo{{Receiver: beneficiary, RateBps: 1000}}

	id := mustList(t, engine, seller, baseParams(1))

	// The beneficiary's receiver breaks between listing and purchase.
	state.paused[beneficiary] = true

	if _, err := engine.Purchase(seller, id, buyer, nil); !errors.Is(err, ErrReceiverUnavailable) {
		t.Fatalf("expected receiver-unavailable, got %v", err)
	}
	if got := state.balance(buyer); got.Cmp(big.NewInt(10_000)) != 0 {
		t.Fatalf("buyer balance changed to %s on failed purchase", got)
	}
	if got := state.balance(seller); got.Sign() != 0 {
		t.Fatalf("seller credited %s on failed purchase", got)
	}
	if owner := state.owners[assetRef("moments", 1)]; owner != seller {
		t.Fatalf("asset moved on failed purchase")
	}
}

func TestPurchaseNegativeRemainder(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	seller := newTestAddress(0x01)
	buyer := newTestAddress(0x02)
	setupSeller(t, engine, state, seller, 1)
	state.fund(buyer, 10_000)

	// Craft a stored listing whose cuts were mutated past the listing-time
	// invariant; settlement must re-validate the remainder.
	sf := NewStorefront(seller)
	sf.NextListingID = 1
	sf.AddListing(&Listing{
		ID:         0,
		Collection: "moments",
		AssetID:    1,
		SalePrice:  big.NewInt(5050),
		Expiry:     testNow + 500,
		RoyaltyCuts: []SaleCut{
			{Kind: CutRoyalty, RateBps: 8000, Receiver: newTestAddress(0xA1)},
			{Kind: CutRoyalty, RateBps: 8000, Receiver: newTestAddress(0xA2)},
		},
		CreatedAt: testNow,
	})
	if err := state.StorefrontPut(sf); err != nil {
		t.Fatalf("seed storefront: %v", err)
	}

	if _, err := engine.Purchase(seller, 0, buyer, nil); !errors.Is(err, ErrNegativeRemainder) {
		t.Fatalf("expected negative remainder, got %v", err)
	}
}

func TestPurchaseRemovesDuplicates(t *testing.T) {
	engine, state, emitter := newTestEngine(t)
	seller := newTestAddress(0x01)
	buyer := newTestAddress(0x02)
	setupSeller(t, engine, state, seller, 1)
	state.owners[assetRef("moments", 2)] = seller
	state.fund(buyer, 20_000)

	first := mustList(t, engine, seller, baseParams(1))
	second := mustList(t, engine, seller, baseParams(1))
	third := mustList(t, engine, seller, baseParams(1))
	other := mustList(t, engine, seller, baseParams(2))

	dups, err := engine.DuplicateListingIDs(seller, "moments", 1, second)
	if err != nil {
		t.Fatalf("duplicate ids: %v", err)
	}
	if len(dups) != 2 {
		t.Fatalf("expected 2 duplicates, got %v", dups)
	}

	receipt, err := engine.Purchase(seller, second, buyer, nil)
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if len(receipt.RemovedDuplicates) != 2 {
		t.Fatalf("removed duplicates = %v", receipt.RemovedDuplicates)
	}

	ids, err := engine.ListingIDs(seller)
	if err != nil {
		t.Fatalf("listing ids: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected winner and unrelated listing to remain, got %v", ids)
	}
	for _, id := range []uint64{first, third} {
		if _, err := engine.GetListing(seller, id); !errors.Is(err, ErrListingNotFound) {
			t.Fatalf("duplicate %d still present: %v", id, err)
		}
	}
	if _, err := engine.GetListing(seller, other); err != nil {
		t.Fatalf("unrelated listing removed: %v", err)
	}
	if owner := state.owners[assetRef("moments", 1)]; owner != buyer {
		t.Fatalf("asset owner = %x, want buyer", owner)
	}

	removedEvents := 0
	for _, evt := range emitter.events {
		me, ok := evt.(marketEvent)
		if !ok || me.Event().Type != EventTypeListingRemoved {
			continue
		}
		if me.Event().Attributes["reason"] == RemovalReasonDuplicate {
			removedEvents++
		}
	}
	if removedEvents != 2 {
		t.Fatalf("expected 2 duplicate removal events, got %d", removedEvents)
	}
}

func TestRemoveListing(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	seller := newTestAddress(0x01)
	buyer := newTestAddress(0x02)
	setupSeller(t, engine, state, seller, 1)
	state.fund(buyer, 10_000)

	id := mustList(t, engine, seller, baseParams(1))
	if err := engine.RemoveListing(seller, id); err != nil {
		t.Fatalf("remove listing: %v", err)
	}
	if err := engine.RemoveListing(seller, id); !errors.Is(err, ErrListingNotFound) {
		t.Fatalf("expected listing-not-found, got %v", err)
	}

	id = mustList(t, engine, seller, baseParams(1))
	if _, err := engine.Purchase(seller, id, buyer, nil); err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if err := engine.RemoveListing(seller, id); !errors.Is(err, ErrAlreadyPurchased) {
		t.Fatalf("expected already-purchased, got %v", err)
	}
}

func TestCleanupRangeValidation(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	seller := newTestAddress(0x01)
	setupSeller(t, engine, state, seller, 1)
	state.owners[assetRef("moments", 2)] = seller
	mustList(t, engine, seller, baseParams(1))
	mustList(t, engine, seller, baseParams(2))

	cases := []struct{ start, end int64 }{
		{0, 3},  // end exceeds listing count
		{1, 1},  // empty range
		{2, 1},  // inverted range
		{-1, 1}, // negative start
	}
	for _, tc := range cases {
		removed, err := engine.CleanupExpired(seller, tc.start, tc.end)
		if !errors.Is(err, ErrRangeOutOfBounds) {
			t.Fatalf("range [%d,%d): expected out-of-bounds, got %v", tc.start, tc.end, err)
		}
		if removed != 0 {
			t.Fatalf("range [%d,%d): removed %d listings", tc.start, tc.end, removed)
		}
	}
	ids, err := engine.ListingIDs(seller)
	if err != nil {
		t.Fatalf("listing ids: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("failed cleanup mutated the storefront: %v", ids)
	}
}

func TestCleanupExpiredWindow(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	seller := newTestAddress(0x01)
	setupSeller(t, engine, state, seller, 1)
	for id := uint64(2); id <= 4; id++ {
		state.owners[assetRef("moments", id)] = seller
	}

	expiries := []int64{testNow + 2, testNow + 3, testNow + 4, testNow + 15}
	for i, expiry := range expiries {
		params := baseParams(uint64(i + 1))
		params.Expiry = expiry
		mustList(t, engine, seller, params)
	}

	engine.SetNowFunc(func() int64 { return testNow + 16 })

	removed, err := engine.CleanupExpired(seller, 0, 3)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if removed != 3 {
		t.Fatalf("removed = %d, want 3", removed)
	}
	ids, err := engine.ListingIDs(seller)
	if err != nil {
		t.Fatalf("listing ids: %v", err)
	}
	if len(ids) != 1 || ids[0] != 3 {
		t.Fatalf("surviving listings = %v, want [3]", ids)
	}

	// The fourth listing is also expired but outside the swept range; a
	// subsequent call covering its index purges it.
	removed, err = engine.CleanupExpired(seller, 0, 1)
	if err != nil {
		t.Fatalf("second cleanup: %v", err)
	}
	if removed != 1 {
		t.Fatalf("second cleanup removed = %d, want 1", removed)
	}
}

func TestCleanupLeavesValidListings(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	seller := newTestAddress(0x01)
	setupSeller(t, engine, state, seller, 1)
	state.owners[assetRef("moments", 2)] = seller

	params := baseParams(1)
	params.Expiry = testNow + 5
	mustList(t, engine, seller, params)
	mustList(t, engine, seller, baseParams(2))

	engine.SetNowFunc(func() int64 { return testNow + 10 })
	removed, err := engine.CleanupExpired(seller, 0, 2)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	ids, err := engine.ListingIDs(seller)
	if err != nil {
		t.Fatalf("listing ids: %v", err)
	}
	if len(ids) != 1 || ids[0] != 1 {
		t.Fatalf("surviving listings = %v, want [1]", ids)
	}
}

func TestCleanupRemovesPurchasedLeftovers(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	seller := newTestAddress(0x01)
	buyer := newTestAddress(0x02)
	setupSeller(t, engine, state, seller, 1)
	state.fund(buyer, 10_000)

	id := mustList(t, engine, seller, baseParams(1))
	if _, err := engine.Purchase(seller, id, buyer, nil); err != nil {
		t.Fatalf("purchase: %v", err)
	}

	removed, err := engine.CleanupExpired(seller, 0, 1)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	ids, err := engine.ListingIDs(seller)
	if err != nil {
		t.Fatalf("listing ids: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("purchased leftover survived cleanup: %v", ids)
	}
}

func TestQueries(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	seller := newTestAddress(0x01)
	marketplaceA := newTestAddress(0x03)
	marketplaceB := newTestAddress(0x04)
	setupSeller(t, engine, state, seller, 1)
	state.owners[assetRef("moments", 2)] = seller

	params := baseParams(1)
	params.CommissionAmount = big.NewInt(200)
	params.CommissionReceivers = [][20]byte{marketplaceA, marketplaceB}
	withCommission := mustList(t, engine, seller, params)
	plain := mustList(t, engine, seller, baseParams(2))

	ids, err := engine.ListingIDs(seller)
	if err != nil {
		t.Fatalf("listing ids: %v", err)
	}
	if len(ids) != 2 || ids[0] != withCommission || ids[1] != plain {
		t.Fatalf("listing ids = %v", ids)
	}

	allowed, err := engine.AllowedCommissionReceivers(seller, withCommission)
	if err != nil {
		t.Fatalf("allowed receivers: %v", err)
	}
	if len(allowed) != 2 || allowed[0] != marketplaceA || allowed[1] != marketplaceB {
		t.Fatalf("allowed receivers = %v", allowed)
	}

	allowed, err = engine.AllowedCommissionReceivers(seller, plain)
	if err != nil {
		t.Fatalf("allowed receivers for plain listing: %v", err)
	}
	if allowed != nil {
		t.Fatalf("plain listing has commission allow-list %v", allowed)
	}

	if _, err := engine.AllowedCommissionReceivers(seller, 99); !errors.Is(err, ErrListingNotFound) {
		t.Fatalf("expected listing-not-found, got %v", err)
	}
}
