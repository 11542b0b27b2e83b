package assets

import (
	"errors"
	"fmt"

	"nftmarket/core/events"
	"nftmarket/core/types"
)

var (
	errNilState           = errors.New("assets engine: state not configured")
	errCollectionNotFound = errors.New("assets engine: collection not found")
	errAssetNotFound      = errors.New("assets engine: asset not found")
	errNotOwner           = errors.New("assets engine: caller does not own asset")
	errZeroAddress        = errors.New("assets engine: address must not be zero")
)

type engineState interface {
	CollectionPut(*Collection) error
	CollectionGet(name string) (*Collection, bool, error)
	Collections() ([]string, error)
	AssetNextID(collection string) (uint64, error)
	AssetOwner(collection string, id uint64) ([20]byte, bool, error)
	AssetSetOwner(collection string, id uint64, previous, owner [20]byte) error
	AssetsOwned(addr [20]byte) ([]Asset, error)
	RoyaltiesPut(collection string, id uint64, cuts []RoyaltyInfo) error
	RoyaltiesGet(collection string, id uint64) ([]RoyaltyInfo, error)
	SetReceiverPaused(addr [20]byte, paused bool) error
	ReceiverActive(addr [20]byte) (bool, error)
}

type assetsEvent struct {
	evt *types.Event
}

func (e assetsEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e assetsEvent) Event() *types.Event { return e.evt }

// Engine implements the custody, type-catalog and royalty-metadata services
// the marketplace settles against. It guarantees an asset has at most one
// owner at any time.
type Engine struct {
	state   engineState
	emitter events.Emitter
}

// NewEngine constructs an assets engine with a no-op emitter. Callers can
// override the emitter via SetEmitter.
func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(assetsEvent{evt: evt})
}

// RegisterCollection records a type-catalog entry binding the collection name
// to its storage coordinates. Re-registering with identical coordinates is a
// no-op; diverging coordinates are rejected.
func (e *Engine) RegisterCollection(name, storagePath, depositPath string) (*Collection, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	sanitized, err := SanitizeCollection(&Collection{Name: name, StoragePath: storagePath, DepositPath: depositPath})
	if err != nil {
		return nil, err
	}
	existing, ok, err := e.state.CollectionGet(sanitized.Name)
	if err != nil {
		return nil, err
	}
	if ok {
		if existing.StoragePath != sanitized.StoragePath || existing.DepositPath != sanitized.DepositPath {
			return nil, fmt.Errorf("assets engine: collection %s already registered with different paths", sanitized.Name)
		}
		return existing, nil
	}
	if err := e.state.CollectionPut(sanitized); err != nil {
		return nil, err
	}
	e.emit(NewCollectionRegisteredEvent(sanitized))
	return sanitized, nil
}

// ResolveCollection translates a collection name into its catalog entry.
func (e *Engine) ResolveCollection(name string) (*Collection, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	return e.state.CollectionGet(name)
}

// Collections lists the names of all registered collections.
func (e *Engine) Collections() ([]string, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.state.Collections()
}

// Mint creates a new asset in the collection owned by the supplied address and
// returns its custody record.
func (e *Engine) Mint(collection string, owner [20]byte) (*Asset, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if owner == ([20]byte{}) {
		return nil, errZeroAddress
	}
	normalized, err := NormalizeCollectionName(collection)
	if err != nil {
		return nil, err
	}
	if _, ok, err := e.state.CollectionGet(normalized); err != nil {
		return nil, err
	} else if !ok {
		return nil, fmt.Errorf("%w: %s", errCollectionNotFound, normalized)
	}
	id, err := e.state.AssetNextID(normalized)
	if err != nil {
		return nil, err
	}
	if err := e.state.AssetSetOwner(normalized, id, [20]byte{}, owner); err != nil {
		return nil, err
	}
	asset := &Asset{Collection: normalized, ID: id, Owner: owner}
	e.emit(NewMintedEvent(asset))
	return asset, nil
}

// Transfer moves the asset from its current holder to the recipient. The
// caller must be the current owner.
func (e *Engine) Transfer(collection string, id uint64, from, to [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if to == ([20]byte{}) {
		return errZeroAddress
	}
	normalized, err := NormalizeCollectionName(collection)
	if err != nil {
		return err
	}
	owner, ok, err := e.state.AssetOwner(normalized, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s/%d", errAssetNotFound, normalized, id)
	}
	if owner != from {
		return fmt.Errorf("%w: %s/%d", errNotOwner, normalized, id)
	}
	if err := e.state.AssetSetOwner(normalized, id, from, to); err != nil {
		return err
	}
	e.emit(NewTransferredEvent(&Asset{Collection: normalized, ID: id, Owner: to}, from))
	return nil
}

// OwnerOf returns the current owner of an asset.
func (e *Engine) OwnerOf(collection string, id uint64) ([20]byte, bool, error) {
	if e == nil || e.state == nil {
		return [20]byte{}, false, errNilState
	}
	normalized, err := NormalizeCollectionName(collection)
	if err != nil {
		return [20]byte{}, false, err
	}
	return e.state.AssetOwner(normalized, id)
}

// ListOwned returns the assets currently held by the address.
func (e *Engine) ListOwned(addr [20]byte) ([]Asset, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.state.AssetsOwned(addr)
}

// SetRoyalties declares the royalty schedule for an asset. Only the current
// owner may declare royalties, and the asset must exist.
func (e *Engine) SetRoyalties(collection string, id uint64, caller [20]byte, cuts []RoyaltyInfo) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	normalized, err := NormalizeCollectionName(collection)
	if err != nil {
		return err
	}
	owner, ok, err := e.state.AssetOwner(normalized, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s/%d", errAssetNotFound, normalized, id)
	}
	if owner != caller {
		return fmt.Errorf("%w: %s/%d", errNotOwner, normalized, id)
	}
	sanitized, err := SanitizeRoyalties(cuts)
	if err != nil {
		return err
	}
	if err := e.state.RoyaltiesPut(normalized, id, sanitized); err != nil {
		return err
	}
	e.emit(NewRoyaltiesUpdatedEvent(normalized, id, sanitized))
	return nil
}

// Royalties returns the royalty schedule declared for the asset. The schedule
// is read once at listing time by the marketplace.
func (e *Engine) Royalties(collection string, id uint64) ([]RoyaltyInfo, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	normalized, err := NormalizeCollectionName(collection)
	if err != nil {
		return nil, err
	}
	return e.state.RoyaltiesGet(normalized, id)
}

// PauseReceiver revokes the address's ability to accept payments.
func (e *Engine) PauseReceiver(addr [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if addr == ([20]byte{}) {
		return errZeroAddress
	}
	if err := e.state.SetReceiverPaused(addr, true); err != nil {
		return err
	}
	e.emit(NewReceiverPausedEvent(addr, true))
	return nil
}

// ResumeReceiver restores the address's ability to accept payments.
func (e *Engine) ResumeReceiver(addr [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if addr == ([20]byte{}) {
		return errZeroAddress
	}
	if err := e.state.SetReceiverPaused(addr, false); err != nil {
		return err
	}
	e.emit(NewReceiverPausedEvent(addr, false))
	return nil
}

// ReceiverActive reports whether the address can currently accept payments.
func (e *Engine) ReceiverActive(addr [20]byte) (bool, error) {
	if e == nil || e.state == nil {
		return false, errNilState
	}
	return e.state.ReceiverActive(addr)
}
