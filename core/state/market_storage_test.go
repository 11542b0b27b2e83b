package state

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"nftmarket/native/market"
	"nftmarket/storage"
)

func testAddr(fill byte) [20]byte {
	var addr [20]byte
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

func TestStorefrontRoundTrip(t *testing.T) {
	manager := NewManager(storage.NewMemDB())
	owner := testAddr(0x01)

	sf := market.NewStorefront(owner)
	sf.NextListingID = 3
	sf.AddListing(&market.Listing{
		ID:         0,
		Collection: "moments",
		AssetID:    7,
		SalePrice:  big.NewInt(5050),
		CustomID:   "topshot-platform",
		Expiry:     1_700_000_500,
		RoyaltyCuts: []market.SaleCut{
			{Kind: market.CutRoyalty, RateBps: 1000, Receiver: testAddr(0xA1)},
			{Kind: market.CutRoyalty, RateBps: 2500, Receiver: testAddr(0xA2)},
		},
		Commission: &market.SaleCut{
			Kind:    market.CutCommission,
			Amount:  big.NewInt(1050),
			Allowed: [][20]byte{testAddr(0x03)},
		},
		CreatedAt: 1_700_000_000,
	})
	sf.AddListing(&market.Listing{
		ID:         2,
		Collection: "moments",
		AssetID:    7,
		SalePrice:  big.NewInt(4000),
		Expiry:     1_700_000_900,
		Purchased:  true,
		CreatedAt:  1_700_000_100,
	})

	require.NoError(t, manager.StorefrontPut(sf))

	loaded, ok, err := manager.StorefrontGet(owner)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, owner, loaded.Owner)
	require.Equal(t, uint64(3), loaded.NextListingID)
	require.Len(t, loaded.Listings, 2)

	first, ok := loaded.Listing(0)
	require.True(t, ok)
	require.Equal(t, "moments", first.Collection)
	require.Equal(t, uint64(7), first.AssetID)
	require.Equal(t, "5050", first.SalePrice.String())
	require.Equal(t, "topshot-platform", first.CustomID)
	require.Equal(t, int64(1_700_000_500), first.Expiry)
	require.Equal(t, int64(1_700_000_000), first.CreatedAt)
	require.Len(t, first.RoyaltyCuts, 2)
	require.Equal(t, uint32(1000), first.RoyaltyCuts[0].RateBps)
	require.Equal(t, testAddr(0xA2), first.RoyaltyCuts[1].Receiver)
	require.NotNil(t, first.Commission)
	require.Equal(t, "1050", first.Commission.Amount.String())
	require.Equal(t, [][20]byte{testAddr(0x03)}, first.Commission.Allowed)
	require.False(t, first.Purchased)

	second, ok := loaded.Listing(2)
	require.True(t, ok)
	require.Nil(t, second.Commission)
	require.True(t, second.Purchased)

	// The asset index is rebuilt on load.
	require.Equal(t, []uint64{2}, loaded.DuplicateListingIDs("moments", 7, 0))
}

func TestStorefrontGetMissing(t *testing.T) {
	manager := NewManager(storage.NewMemDB())
	_, ok, err := manager.StorefrontGet(testAddr(0x01))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStorefrontPutRejectsCorruptRecords(t *testing.T) {
	manager := NewManager(storage.NewMemDB())
	require.Error(t, manager.StorefrontPut(nil))

	sf := market.NewStorefront(testAddr(0x01))
	sf.AddListing(&market.Listing{ID: 0, Collection: "moments", AssetID: 1, SalePrice: big.NewInt(0)})
	require.Error(t, manager.StorefrontPut(sf), "zero sale price must not reach disk")

	var zero [20]byte
	require.Error(t, manager.StorefrontPut(market.NewStorefront(zero)))
}
