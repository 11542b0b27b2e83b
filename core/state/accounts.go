package state

import (
	"fmt"
	"math/big"

	"nftmarket/core/types"
)

type storedAccount struct {
	Nonce          uint64
	Balance        *big.Int
	ReceiverPaused bool
}

func accountKey(addr []byte) []byte {
	buf := make([]byte, len(accountPrefix)+len(addr))
	copy(buf, accountPrefix)
	copy(buf[len(accountPrefix):], addr)
	return buf
}

// GetAccount reconstructs the account stored under the provided address.
// Unknown addresses yield a zero-value account rather than an error so fresh
// participants can be credited without prior registration.
func (m *Manager) GetAccount(addr []byte) (*types.Account, error) {
	if len(addr) == 0 {
		return nil, fmt.Errorf("state: address must not be empty")
	}
	stored := new(storedAccount)
	ok, err := m.KVGet(accountKey(addr), stored)
	if err != nil {
		return nil, err
	}
	account := &types.Account{}
	if ok {
		account.Nonce = stored.Nonce
		account.ReceiverPaused = stored.ReceiverPaused
		if stored.Balance != nil {
			account.Balance = new(big.Int).Set(stored.Balance)
		}
	}
	account.EnsureDefaults()
	return account, nil
}

// PutAccount persists the supplied account under the provided address.
func (m *Manager) PutAccount(addr []byte, account *types.Account) error {
	if len(addr) == 0 {
		return fmt.Errorf("state: address must not be empty")
	}
	if account == nil {
		return fmt.Errorf("state: account must not be nil")
	}
	account.EnsureDefaults()
	if account.Balance.Sign() < 0 {
		return fmt.Errorf("state: account balance must not be negative")
	}
	stored := &storedAccount{
		Nonce:          account.Nonce,
		Balance:        new(big.Int).Set(account.Balance),
		ReceiverPaused: account.ReceiverPaused,
	}
	return m.KVPut(accountKey(addr), stored)
}

// ReceiverActive reports whether the account's payment receiver can accept
// deposits. Accounts never seen before are considered active; only an explicit
// pause revokes the capability.
func (m *Manager) ReceiverActive(addr [20]byte) (bool, error) {
	account, err := m.GetAccount(addr[:])
	if err != nil {
		return false, err
	}
	return !account.ReceiverPaused, nil
}

// SetReceiverPaused toggles the payment receiver flag for the address.
func (m *Manager) SetReceiverPaused(addr [20]byte, paused bool) error {
	account, err := m.GetAccount(addr[:])
	if err != nil {
		return err
	}
	account.ReceiverPaused = paused
	return m.PutAccount(addr[:], account)
}
