package genesis

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Spec is the YAML genesis fixture: the accounts, collections, assets and
// royalty schedules seeded before the service starts taking requests.
type Spec struct {
	NetworkName string           `yaml:"networkName"`
	Accounts    []AccountSpec    `yaml:"accounts"`
	Collections []CollectionSpec `yaml:"collections"`
	Assets      []AssetSpec      `yaml:"assets"`
}

type AccountSpec struct {
	Address        string `yaml:"address"`
	Balance        string `yaml:"balance"`
	ReceiverPaused bool   `yaml:"receiverPaused,omitempty"`
}

type CollectionSpec struct {
	Name        string `yaml:"name"`
	StoragePath string `yaml:"storagePath"`
	DepositPath string `yaml:"depositPath"`
}

type AssetSpec struct {
	Collection string        `yaml:"collection"`
	Owner      string        `yaml:"owner"`
	Royalties  []RoyaltySpec `yaml:"royalties,omitempty"`
}

type RoyaltySpec struct {
	Receiver string `yaml:"receiver"`
	RateBps  uint32 `yaml:"rateBps"`
}

// LoadSpec reads and validates a genesis fixture from disk.
func LoadSpec(path string) (*Spec, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis file: %w", err)
	}
	spec := &Spec{}
	if err := yaml.Unmarshal(raw, spec); err != nil {
		return nil, fmt.Errorf("parse genesis file: %w", err)
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return spec, nil
}

// Validate checks structural rules the apply step depends on.
func (s *Spec) Validate() error {
	if s == nil {
		return fmt.Errorf("genesis: nil spec")
	}
	collections := make(map[string]struct{}, len(s.Collections))
	for i, c := range s.Collections {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return fmt.Errorf("genesis: collection %d name required", i)
		}
		if _, dup := collections[name]; dup {
			return fmt.Errorf("genesis: duplicate collection %s", name)
		}
		collections[name] = struct{}{}
	}
	for i, a := range s.Accounts {
		if _, err := ParseAddress(a.Address); err != nil {
			return fmt.Errorf("genesis: account %d: %w", i, err)
		}
		if _, err := ParseBalance(a.Balance); err != nil {
			return fmt.Errorf("genesis: account %d: %w", i, err)
		}
	}
	for i, a := range s.Assets {
		if _, ok := collections[strings.TrimSpace(a.Collection)]; !ok {
			return fmt.Errorf("genesis: asset %d references unknown collection %s", i, a.Collection)
		}
		if _, err := ParseAddress(a.Owner); err != nil {
			return fmt.Errorf("genesis: asset %d: %w", i, err)
		}
		for j, r := range a.Royalties {
			if _, err := ParseAddress(r.Receiver); err != nil {
				return fmt.Errorf("genesis: asset %d royalty %d: %w", i, j, err)
			}
		}
	}
	return nil
}

// ParseAddress decodes a 0x-prefixed hex account address.
func ParseAddress(value string) ([20]byte, error) {
	var out [20]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return out, fmt.Errorf("invalid address %q: %w", value, err)
	}
	if len(raw) != len(out) {
		return out, fmt.Errorf("invalid address %q: want 20 bytes, got %d", value, len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

// ParseBalance decodes a non-negative base-10 balance.
func ParseBalance(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	balance, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid balance %q", value)
	}
	if balance.Sign() < 0 {
		return nil, fmt.Errorf("balance must not be negative")
	}
	return balance, nil
}
