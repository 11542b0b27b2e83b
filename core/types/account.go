package types

import "math/big"

// Account is the ledger-level record for one participant: a payment balance,
// a replay-protection nonce and the state of its payment receiver. When
// ReceiverPaused is set the account cannot be credited by settlement, which is
// how a revoked deposit capability surfaces to the marketplace.
type Account struct {
	Nonce          uint64   `json:"nonce"`
	Balance        *big.Int `json:"balance"`
	ReceiverPaused bool     `json:"receiverPaused"`
}

// EnsureDefaults normalises nil pointer fields so callers can rely on a
// non-nil balance.
func (a *Account) EnsureDefaults() {
	if a.Balance == nil {
		a.Balance = big.NewInt(0)
	}
}
