package types

import "github.com/holiman/uint256"

// Account is a single entry in the versioned ledger state.
type Account struct {
	Address string       `json:"address"`
	Balance *uint256.Int `json:"balance"`
	Nonce   uint64       `json:"nonce"`
}

// Clone returns a deep copy so snapshots never alias working state.
func (a *Account) Clone() *Account {
	balance := new(uint256.Int)
	if a.Balance != nil {
		balance.Set(a.Balance)
	}
	return &Account{
		Address: a.Address,
		Balance: balance,
		Nonce:   a.Nonce,
	}
}
