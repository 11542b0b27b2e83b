package market

import (
	"fmt"
	"math/big"
	"sort"
	"strings"
)

// CutKind discriminates the two beneficiary rules a listing can carry.
type CutKind uint8

const (
	// CutRoyalty is a fractional share of the post-commission base paid to a
	// beneficiary fixed at listing time.
	CutRoyalty CutKind = iota + 1
	// CutCommission is an absolute amount payable to a receiver the buyer
	// names at purchase time, restricted by an optional allow-list.
	CutCommission
)

const maxRateBps = 10_000

// Valid reports whether the kind is within the supported range.
func (k CutKind) Valid() bool {
	return k == CutRoyalty || k == CutCommission
}

// SaleCut describes one beneficiary and its share rule. Royalty cuts use
// RateBps and Receiver; the commission cut uses Amount and Allowed. An empty
// allow-list leaves the commission open to any receiver the buyer names.
type SaleCut struct {
	Kind     CutKind
	RateBps  uint32
	Amount   *big.Int
	Receiver [20]byte
	Allowed  [][20]byte
}

// Clone returns a deep copy of the cut.
func (c *SaleCut) Clone() *SaleCut {
	if c == nil {
		return nil
	}
	clone := &SaleCut{Kind: c.Kind, RateBps: c.RateBps, Receiver: c.Receiver}
	if c.Amount != nil {
		clone.Amount = new(big.Int).Set(c.Amount)
	}
	if len(c.Allowed) > 0 {
		clone.Allowed = make([][20]byte, len(c.Allowed))
		copy(clone.Allowed, c.Allowed)
	}
	return clone
}

// AllowsReceiver reports whether the commission cut permits the supplied
// receiver. An empty allow-list permits anyone.
func (c *SaleCut) AllowsReceiver(addr [20]byte) bool {
	if c == nil {
		return false
	}
	if len(c.Allowed) == 0 {
		return true
	}
	for _, allowed := range c.Allowed {
		if allowed == addr {
			return true
		}
	}
	return false
}

// Listing is a single sale offer. The referenced asset stays in the seller's
// custody while the listing is live; settlement moves it at purchase time.
type Listing struct {
	ID          uint64
	Collection  string
	AssetID     uint64
	SalePrice   *big.Int
	CustomID    string
	Expiry      int64
	RoyaltyCuts []SaleCut
	Commission  *SaleCut
	Purchased   bool
	CreatedAt   int64
}

// CommissionAmount returns the declared commission, zero when none is set.
func (l *Listing) CommissionAmount() *big.Int {
	if l == nil || l.Commission == nil || l.Commission.Amount == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(l.Commission.Amount)
}

// Clone returns a deep copy of the listing so callers can safely mutate the
// copy without affecting the stored instance.
func (l *Listing) Clone() *Listing {
	if l == nil {
		return nil
	}
	clone := *l
	if l.SalePrice != nil {
		clone.SalePrice = new(big.Int).Set(l.SalePrice)
	} else {
		clone.SalePrice = big.NewInt(0)
	}
	if len(l.RoyaltyCuts) > 0 {
		clone.RoyaltyCuts = make([]SaleCut, len(l.RoyaltyCuts))
		for i := range l.RoyaltyCuts {
			clone.RoyaltyCuts[i] = *l.RoyaltyCuts[i].Clone()
		}
	}
	clone.Commission = l.Commission.Clone()
	return &clone
}

// SanitizeListing validates structural invariants of a listing record and
// returns a normalised clone. It does not re-check time-dependent rules.
func SanitizeListing(l *Listing) (*Listing, error) {
	if l == nil {
		return nil, fmt.Errorf("market: nil listing")
	}
	clone := l.Clone()
	collection := strings.ToLower(strings.TrimSpace(clone.Collection))
	if collection == "" {
		return nil, fmt.Errorf("market: listing %d collection required", clone.ID)
	}
	clone.Collection = collection
	if clone.SalePrice == nil || clone.SalePrice.Sign() <= 0 {
		return nil, fmt.Errorf("market: listing %d sale price must be positive", clone.ID)
	}
	for i := range clone.RoyaltyCuts {
		cut := &clone.RoyaltyCuts[i]
		if !cut.Kind.Valid() {
			return nil, fmt.Errorf("market: listing %d cut %d has unknown kind %d", clone.ID, i, cut.Kind)
		}
		if cut.Kind != CutRoyalty {
			return nil, fmt.Errorf("market: listing %d cut %d is not a royalty", clone.ID, i)
		}
		if cut.RateBps > maxRateBps {
			return nil, fmt.Errorf("market: listing %d royalty %d rate out of range", clone.ID, i)
		}
	}
	if clone.Commission != nil {
		if !clone.Commission.Kind.Valid() {
			return nil, fmt.Errorf("market: listing %d commission cut has unknown kind %d", clone.ID, clone.Commission.Kind)
		}
		if clone.Commission.Kind != CutCommission {
			return nil, fmt.Errorf("market: listing %d commission cut has wrong kind", clone.ID)
		}
		if clone.Commission.Amount == nil || clone.Commission.Amount.Sign() < 0 {
			return nil, fmt.Errorf("market: listing %d commission amount must not be negative", clone.ID)
		}
	}
	return clone, nil
}

type assetKey struct {
	collection string
	assetID    uint64
}

// Storefront owns the set of listings for one account. The byAsset index is
// rebuilt lazily after loading from state and maintained by the mutators; it
// is never persisted.
type Storefront struct {
	Owner         [20]byte
	NextListingID uint64
	Listings      []*Listing

	byAsset map[assetKey][]uint64
}

// NewStorefront creates an empty storefront for the owner.
func NewStorefront(owner [20]byte) *Storefront {
	return &Storefront{Owner: owner, Listings: []*Listing{}}
}

func (s *Storefront) index() map[assetKey][]uint64 {
	if s.byAsset == nil {
		s.byAsset = make(map[assetKey][]uint64)
		for _, l := range s.Listings {
			key := assetKey{collection: l.Collection, assetID: l.AssetID}
			s.byAsset[key] = append(s.byAsset[key], l.ID)
		}
	}
	return s.byAsset
}

// Listing returns the listing with the given id.
func (s *Storefront) Listing(id uint64) (*Listing, bool) {
	if s == nil {
		return nil, false
	}
	for _, l := range s.Listings {
		if l.ID == id {
			return l, true
		}
	}
	return nil, false
}

// AddListing registers the listing and indexes it by asset identity.
func (s *Storefront) AddListing(l *Listing) {
	if s == nil || l == nil {
		return
	}
	s.Listings = append(s.Listings, l)
	key := assetKey{collection: l.Collection, assetID: l.AssetID}
	idx := s.index()
	idx[key] = append(idx[key], l.ID)
}

// RemoveListing drops the listing and its index entry. It reports whether the
// id was present.
func (s *Storefront) RemoveListing(id uint64) bool {
	if s == nil {
		return false
	}
	for i, l := range s.Listings {
		if l.ID != id {
			continue
		}
		s.Listings = append(s.Listings[:i], s.Listings[i+1:]...)
		key := assetKey{collection: l.Collection, assetID: l.AssetID}
		idx := s.index()
		ids := idx[key]
		for j, candidate := range ids {
			if candidate == id {
				ids = append(ids[:j], ids[j+1:]...)
				break
			}
		}
		if len(ids) == 0 {
			delete(idx, key)
		} else {
			idx[key] = ids
		}
		return true
	}
	return false
}

// ListingIDs returns the ids of all listings sorted ascending. This is the
// enumeration order the range-bounded cleanup operates over.
func (s *Storefront) ListingIDs() []uint64 {
	if s == nil {
		return nil
	}
	ids := make([]uint64, 0, len(s.Listings))
	for _, l := range s.Listings {
		ids = append(ids, l.ID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// DuplicateListingIDs returns the ids of every listing referencing the same
// asset, excluding the supplied id, sorted ascending.
func (s *Storefront) DuplicateListingIDs(collection string, assetID uint64, excluding uint64) []uint64 {
	if s == nil {
		return nil
	}
	key := assetKey{collection: strings.ToLower(strings.TrimSpace(collection)), assetID: assetID}
	ids := make([]uint64, 0)
	for _, id := range s.index()[key] {
		if id != excluding {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Clone returns a deep copy of the storefront.
func (s *Storefront) Clone() *Storefront {
	if s == nil {
		return nil
	}
	clone := NewStorefront(s.Owner)
	clone.NextListingID = s.NextListingID
	clone.Listings = make([]*Listing, 0, len(s.Listings))
	for _, l := range s.Listings {
		clone.Listings = append(clone.Listings, l.Clone())
	}
	return clone
}
