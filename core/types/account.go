package types

import "math/big"

// Account tracks the fungible balances held by a ledger participant. The base
// currency funds borrows and repayments while collateral tokens are tracked
// per token identifier so multiple real-world assets can pledge independently.
type Account struct {
	Nonce       uint64              `json:"nonce"`
	BalanceBase *big.Int            `json:"balanceBase"`
	Collateral  map[string]*big.Int `json:"collateral,omitempty"`
}

// CollateralBalance returns the balance held for the supplied collateral
// token, treating missing entries as zero.
func (a *Account) CollateralBalance(token string) *big.Int {
	if a == nil || a.Collateral == nil {
		return big.NewInt(0)
	}
	if bal, ok := a.Collateral[token]; ok && bal != nil {
		return bal
	}
	return big.NewInt(0)
}

// SetCollateralBalance stores the balance for the supplied collateral token,
// allocating the map on first use.
func (a *Account) SetCollateralBalance(token string, amount *big.Int) {
	if a == nil {
		return
	}
	if a.Collateral == nil {
		a.Collateral = make(map[string]*big.Int)
	}
	if amount == nil {
		amount = big.NewInt(0)
	}
	a.Collateral[token] = amount
}
