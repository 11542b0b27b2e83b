package genesis

import (
	"fmt"

	"nftmarket/core/state"
	"nftmarket/core/types"
	"nftmarket/native/assets"
)

// Apply seeds the database from the fixture. The operation is idempotent: a
// marker in state guards against re-seeding an already initialised database.
// Returns true when the fixture was applied, false when it had been before.
func Apply(spec *Spec, manager *state.Manager, assetsEngine *assets.Engine) (bool, error) {
	if spec == nil {
		return false, fmt.Errorf("genesis: nil spec")
	}
	if manager == nil {
		return false, fmt.Errorf("genesis: nil state manager")
	}
	if assetsEngine == nil {
		return false, fmt.Errorf("genesis: nil assets engine")
	}
	applied, err := manager.GenesisApplied()
	if err != nil {
		return false, err
	}
	if applied {
		return false, nil
	}

	for _, accountSpec := range spec.Accounts {
		addr, err := ParseAddress(accountSpec.Address)
		if err != nil {
			return false, err
		}
		balance, err := ParseBalance(accountSpec.Balance)
		if err != nil {
			return false, err
		}
		account := &types.Account{Balance: balance, ReceiverPaused: accountSpec.ReceiverPaused}
		if err := manager.PutAccount(addr[:], account); err != nil {
			return false, fmt.Errorf("genesis: seed account %s: %w", accountSpec.Address, err)
		}
	}

	for _, collectionSpec := range spec.Collections {
		if _, err := assetsEngine.RegisterCollection(collectionSpec.Name, collectionSpec.StoragePath, collectionSpec.DepositPath); err != nil {
			return false, fmt.Errorf("genesis: register collection %s: %w", collectionSpec.Name, err)
		}
	}

	for i, assetSpec := range spec.Assets {
		owner, err := ParseAddress(assetSpec.Owner)
		if err != nil {
			return false, err
		}
		asset, err := assetsEngine.Mint(assetSpec.Collection, owner)
		if err != nil {
			return false, fmt.Errorf("genesis: mint asset %d: %w", i, err)
		}
		if len(assetSpec.Royalties) == 0 {
			continue
		}
		cuts := make([]assets.RoyaltyInfo, 0, len(assetSpec.Royalties))
		for _, royalty := range assetSpec.Royalties {
			receiver, err := ParseAddress(royalty.Receiver)
			if err != nil {
				return false, err
			}
			cuts = append(cuts, assets.RoyaltyInfo{Receiver: receiver, RateBps: royalty.RateBps})
		}
		if err := assetsEngine.SetRoyalties(asset.Collection, asset.ID, owner, cuts); err != nil {
			return false, fmt.Errorf("genesis: royalties for asset %d: %w", i, err)
		}
	}

	if err := manager.SetGenesisApplied(); err != nil {
		return false, err
	}
	return true, nil
}
