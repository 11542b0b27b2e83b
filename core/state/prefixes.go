package state

var (
	accountPrefix        = []byte("account:")
	collectionPrefix     = []byte("assets/collection/")
	collectionListKey    = []byte("assets/collection-list")
	assetPrefix          = []byte("assets/asset/")
	assetCounterPrefix   = []byte("assets/next-id/")
	assetOwnedPrefix     = []byte("assets/owned/")
	royaltyPrefix        = []byte("assets/royalties/")
	storefrontPrefix     = []byte("market/storefront/")
	genesisAppliedKeyStr = []byte("genesis/applied")
)
