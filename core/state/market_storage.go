package state

import (
	"fmt"
	"math/big"

	"nftmarket/native/market"
)

type storedSaleCut struct {
	Kind     uint8
	RateBps  uint32
	Amount   *big.Int
	Receiver [20]byte
	Allowed  [][20]byte
}

type storedListing struct {
	ID         uint64
	Collection string
	AssetID    uint64
	SalePrice  *big.Int
	CustomID   string
	Expiry     *big.Int
	Royalties  []storedSaleCut
	Commission []storedSaleCut
	Purchased  bool
	CreatedAt  *big.Int
}

type storedStorefront struct {
	Owner         [20]byte
	NextListingID uint64
	Listings      []storedListing
}

func storefrontKey(owner [20]byte) []byte {
	buf := make([]byte, len(storefrontPrefix)+len(owner))
	copy(buf, storefrontPrefix)
	copy(buf[len(storefrontPrefix):], owner[:])
	return buf
}

func newStoredSaleCut(cut *market.SaleCut) storedSaleCut {
	stored := storedSaleCut{
		Kind:     uint8(cut.Kind),
		RateBps:  cut.RateBps,
		Amount:   big.NewInt(0),
		Receiver: cut.Receiver,
	}
	if cut.Amount != nil {
		stored.Amount = new(big.Int).Set(cut.Amount)
	}
	if len(cut.Allowed) > 0 {
		stored.Allowed = make([][20]byte, len(cut.Allowed))
		copy(stored.Allowed, cut.Allowed)
	}
	return stored
}

func (s storedSaleCut) toSaleCut() *market.SaleCut {
	cut := &market.SaleCut{
		Kind:     market.CutKind(s.Kind),
		RateBps:  s.RateBps,
		Receiver: s.Receiver,
	}
	if s.Amount != nil {
		cut.Amount = new(big.Int).Set(s.Amount)
	}
	if len(s.Allowed) > 0 {
		cut.Allowed = make([][20]byte, len(s.Allowed))
		copy(cut.Allowed, s.Allowed)
	}
	return cut
}

func newStoredListing(l *market.Listing) storedListing {
	stored := storedListing{
		ID:         l.ID,
		Collection: l.Collection,
		AssetID:    l.AssetID,
		SalePrice:  big.NewInt(0),
		CustomID:   l.CustomID,
		Expiry:     big.NewInt(l.Expiry),
		Purchased:  l.Purchased,
		CreatedAt:  big.NewInt(l.CreatedAt),
	}
	if l.SalePrice != nil {
		stored.SalePrice = new(big.Int).Set(l.SalePrice)
	}
	for i := range l.RoyaltyCuts {
		stored.Royalties = append(stored.Royalties, newStoredSaleCut(&l.RoyaltyCuts[i]))
	}
	if l.Commission != nil {
		stored.Commission = []storedSaleCut{newStoredSaleCut(l.Commission)}
	}
	return stored
}

func (s storedListing) toListing() *market.Listing {
	listing := &market.Listing{
		ID:         s.ID,
		Collection: s.Collection,
		AssetID:    s.AssetID,
		SalePrice:  big.NewInt(0),
		CustomID:   s.CustomID,
		Purchased:  s.Purchased,
	}
	if s.SalePrice != nil {
		listing.SalePrice = new(big.Int).Set(s.SalePrice)
	}
	if s.Expiry != nil {
		listing.Expiry = s.Expiry.Int64()
	}
	if s.CreatedAt != nil {
		listing.CreatedAt = s.CreatedAt.Int64()
	}
	for _, cut := range s.Royalties {
		listing.RoyaltyCuts = append(listing.RoyaltyCuts, *cut.toSaleCut())
	}
	if len(s.Commission) > 0 {
		listing.Commission = s.Commission[0].toSaleCut()
	}
	return listing
}

// StorefrontPut persists the storefront aggregate wholesale. Every listing is
// sanitised before encoding so corrupt records never reach disk.
func (m *Manager) StorefrontPut(sf *market.Storefront) error {
	if sf == nil {
		return fmt.Errorf("state: nil storefront")
	}
	if sf.Owner == ([20]byte{}) {
		return fmt.Errorf("state: storefront owner must not be zero")
	}
	stored := &storedStorefront{Owner: sf.Owner, NextListingID: sf.NextListingID}
	for _, l := range sf.Listings {
		sanitized, err := market.SanitizeListing(l)
		if err != nil {
			return err
		}
		stored.Listings = append(stored.Listings, newStoredListing(sanitized))
	}
	return m.KVPut(storefrontKey(sf.Owner), stored)
}

// StorefrontGet loads the storefront aggregate for the owner.
func (m *Manager) StorefrontGet(owner [20]byte) (*market.Storefront, bool, error) {
	stored := new(storedStorefront)
	ok, err := m.KVGet(storefrontKey(owner), stored)
	if err != nil || !ok {
		return nil, false, err
	}
	sf := market.NewStorefront(stored.Owner)
	sf.NextListingID = stored.NextListingID
	for _, l := range stored.Listings {
		sf.AddListing(l.toListing())
	}
	return sf, true, nil
}
