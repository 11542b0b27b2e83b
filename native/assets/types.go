package assets

import (
	"fmt"
	"strings"
)

// Collection is a type-catalog entry: it binds a human-readable asset-type
// name to the storage coordinates custody and deposit calls are routed
// through. The engine never interprets the paths beyond passing them along.
type Collection struct {
	Name        string
	StoragePath string
	DepositPath string
}

// Asset is one custody record. An asset has exactly one owner at any time.
type Asset struct {
	Collection string
	ID         uint64
	Owner      [20]byte
}

// RoyaltyInfo is one entry of an asset's declared royalty schedule: a fixed
// beneficiary and its share expressed in basis points of the sale base.
type RoyaltyInfo struct {
	Receiver [20]byte
	RateBps  uint32
}

const maxRateBps = 10_000

// NormalizeCollectionName validates and canonicalises a collection name.
func NormalizeCollectionName(name string) (string, error) {
	trimmed := strings.ToLower(strings.TrimSpace(name))
	if trimmed == "" {
		return "", fmt.Errorf("assets: collection name required")
	}
	for _, r := range trimmed {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-' || r == '_' {
			continue
		}
		return "", fmt.Errorf("assets: invalid collection name %q", name)
	}
	return trimmed, nil
}

// SanitizeCollection validates the catalog entry and returns a copy with the
// canonical collection name.
func SanitizeCollection(c *Collection) (*Collection, error) {
	if c == nil {
		return nil, fmt.Errorf("assets: nil collection")
	}
	name, err := NormalizeCollectionName(c.Name)
	if err != nil {
		return nil, err
	}
	storagePath := strings.TrimSpace(c.StoragePath)
	depositPath := strings.TrimSpace(c.DepositPath)
	if storagePath == "" || depositPath == "" {
		return nil, fmt.Errorf("assets: collection %s requires storage and deposit paths", name)
	}
	return &Collection{Name: name, StoragePath: storagePath, DepositPath: depositPath}, nil
}

// SanitizeRoyalties validates a royalty schedule: every rate must lie in
// [0, 10000] basis points and the schedule as a whole must not exceed the
// full base.
func SanitizeRoyalties(cuts []RoyaltyInfo) ([]RoyaltyInfo, error) {
	out := make([]RoyaltyInfo, 0, len(cuts))
	var total uint64
	for i, cut := range cuts {
		if cut.RateBps > maxRateBps {
			return nil, fmt.Errorf("assets: royalty %d rate %d exceeds %d bps", i, cut.RateBps, maxRateBps)
		}
		if cut.Receiver == ([20]byte{}) {
			return nil, fmt.Errorf("assets: royalty %d receiver required", i)
		}
		total += uint64(cut.RateBps)
		out = append(out, cut)
	}
	if total > maxRateBps {
		return nil, fmt.Errorf("assets: royalty schedule totals %d bps, exceeds %d", total, maxRateBps)
	}
	return out, nil
}
