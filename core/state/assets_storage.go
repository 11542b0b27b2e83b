package state

import (
	"encoding/binary"
	"fmt"

	"nftmarket/native/assets"
)

type storedCollection struct {
	Name        string
	StoragePath string
	DepositPath string
}

type storedAssetRef struct {
	Collection string
	ID         uint64
}

func collectionKey(name string) []byte {
	buf := make([]byte, len(collectionPrefix)+len(name))
	copy(buf, collectionPrefix)
	copy(buf[len(collectionPrefix):], name)
	return buf
}

func assetStorageKey(collection string, id uint64) []byte {
	buf := make([]byte, len(assetPrefix)+len(collection)+1+8)
	copy(buf, assetPrefix)
	copy(buf[len(assetPrefix):], collection)
	buf[len(assetPrefix)+len(collection)] = ':'
	binary.BigEndian.PutUint64(buf[len(buf)-8:], id)
	return buf
}

func assetCounterKey(collection string) []byte {
	buf := make([]byte, len(assetCounterPrefix)+len(collection))
	copy(buf, assetCounterPrefix)
	copy(buf[len(assetCounterPrefix):], collection)
	return buf
}

func assetOwnedKey(addr [20]byte) []byte {
	buf := make([]byte, len(assetOwnedPrefix)+len(addr))
	copy(buf, assetOwnedPrefix)
	copy(buf[len(assetOwnedPrefix):], addr[:])
	return buf
}

func royaltyKey(collection string, id uint64) []byte {
	buf := make([]byte, len(royaltyPrefix)+len(collection)+1+8)
	copy(buf, royaltyPrefix)
	copy(buf[len(royaltyPrefix):], collection)
	buf[len(royaltyPrefix)+len(collection)] = ':'
	binary.BigEndian.PutUint64(buf[len(buf)-8:], id)
	return buf
}

// CollectionPut registers or updates a type-catalog entry and records its name
// in the collection index.
func (m *Manager) CollectionPut(c *assets.Collection) error {
	sanitized, err := assets.SanitizeCollection(c)
	if err != nil {
		return err
	}
	stored := &storedCollection{
		Name:        sanitized.Name,
		StoragePath: sanitized.StoragePath,
		DepositPath: sanitized.DepositPath,
	}
	if err := m.KVPut(collectionKey(sanitized.Name), stored); err != nil {
		return err
	}
	var names []string
	if err := m.KVGetList(collectionListKey, &names); err != nil {
		return err
	}
	for _, existing := range names {
		if existing == sanitized.Name {
			return nil
		}
	}
	names = append(names, sanitized.Name)
	return m.KVPut(collectionListKey, names)
}

// CollectionGet resolves a collection name to its catalog entry.
func (m *Manager) CollectionGet(name string) (*assets.Collection, bool, error) {
	normalized, err := assets.NormalizeCollectionName(name)
	if err != nil {
		return nil, false, err
	}
	stored := new(storedCollection)
	ok, err := m.KVGet(collectionKey(normalized), stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return &assets.Collection{
		Name:        stored.Name,
		StoragePath: stored.StoragePath,
		DepositPath: stored.DepositPath,
	}, true, nil
}

// Collections returns the names of all registered collections.
func (m *Manager) Collections() ([]string, error) {
	var names []string
	if err := m.KVGetList(collectionListKey, &names); err != nil {
		return nil, err
	}
	return names, nil
}

// AssetNextID increments and returns the mint counter for the collection.
func (m *Manager) AssetNextID(collection string) (uint64, error) {
	var counter uint64
	if _, err := m.KVGet(assetCounterKey(collection), &counter); err != nil {
		return 0, err
	}
	counter++
	if err := m.KVPut(assetCounterKey(collection), counter); err != nil {
		return 0, err
	}
	return counter, nil
}

// AssetOwner returns the current owner of the asset.
func (m *Manager) AssetOwner(collection string, id uint64) ([20]byte, bool, error) {
	var owner [20]byte
	ok, err := m.KVGet(assetStorageKey(collection, id), &owner)
	if err != nil || !ok {
		return [20]byte{}, false, err
	}
	return owner, true, nil
}

// AssetSetOwner records the owner of the asset and keeps the per-account
// holdings index in sync. Passing the zero previous owner registers a freshly
// minted asset.
func (m *Manager) AssetSetOwner(collection string, id uint64, previous, owner [20]byte) error {
	if owner == ([20]byte{}) {
		return fmt.Errorf("state: asset owner must not be zero")
	}
	if err := m.KVPut(assetStorageKey(collection, id), owner); err != nil {
		return err
	}
	if previous != ([20]byte{}) && previous != owner {
		if err := m.removeOwnedRef(previous, collection, id); err != nil {
			return err
		}
	}
	return m.appendOwnedRef(owner, collection, id)
}

func (m *Manager) appendOwnedRef(addr [20]byte, collection string, id uint64) error {
	var refs []storedAssetRef
	if err := m.KVGetList(assetOwnedKey(addr), &refs); err != nil {
		return err
	}
	for _, ref := range refs {
		if ref.Collection == collection && ref.ID == id {
			return nil
		}
	}
	refs = append(refs, storedAssetRef{Collection: collection, ID: id})
	return m.KVPut(assetOwnedKey(addr), refs)
}

func (m *Manager) removeOwnedRef(addr [20]byte, collection string, id uint64) error {
	var refs []storedAssetRef
	if err := m.KVGetList(assetOwnedKey(addr), &refs); err != nil {
		return err
	}
	filtered := refs[:0]
	for _, ref := range refs {
		if ref.Collection == collection && ref.ID == id {
			continue
		}
		filtered = append(filtered, ref)
	}
	return m.KVPut(assetOwnedKey(addr), filtered)
}

// AssetsOwned lists the assets currently held by the address.
func (m *Manager) AssetsOwned(addr [20]byte) ([]assets.Asset, error) {
	var refs []storedAssetRef
	if err := m.KVGetList(assetOwnedKey(addr), &refs); err != nil {
		return nil, err
	}
	owned := make([]assets.Asset, 0, len(refs))
	for _, ref := range refs {
		owned = append(owned, assets.Asset{Collection: ref.Collection, ID: ref.ID, Owner: addr})
	}
	return owned, nil
}

// RoyaltiesPut stores the royalty schedule declared for the asset.
func (m *Manager) RoyaltiesPut(collection string, id uint64, cuts []assets.RoyaltyInfo) error {
	sanitized, err := assets.SanitizeRoyalties(cuts)
	if err != nil {
		return err
	}
	return m.KVPut(royaltyKey(collection, id), sanitized)
}

// RoyaltiesGet returns the royalty schedule declared for the asset. Assets
// without a schedule yield an empty slice.
func (m *Manager) RoyaltiesGet(collection string, id uint64) ([]assets.RoyaltyInfo, error) {
	var cuts []assets.RoyaltyInfo
	if err := m.KVGetList(royaltyKey(collection, id), &cuts); err != nil {
		return nil, err
	}
	return cuts, nil
}
