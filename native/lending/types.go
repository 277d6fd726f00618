package lending

import (
	"math/big"

	"rwachain/crypto"
)

// Position tracks the collateral and debt a single account holds against a
// single real-world asset. Amounts are denominated in wei-style 18-decimal
// fixed point and expressed as big integers to keep the accounting exact.
type Position struct {
	// Account is the borrower owning the position.
	Account crypto.Address
	// Asset identifies the real-world asset the collateral tracks.
	Asset string
	// CollateralShares is the amount of collateral token pledged.
	CollateralShares *big.Int
	// Principal is the outstanding debt including interest capitalised so
	// far.
	Principal *big.Int
	// LastAccrual records the unix timestamp when interest was last applied.
	// It never decreases.
	LastAccrual int64
}

// Clone returns a deep copy of the position.
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	clone := &Position{Account: p.Account, Asset: p.Asset, LastAccrual: p.LastAccrual}
	if p.CollateralShares != nil {
		clone.CollateralShares = new(big.Int).Set(p.CollateralShares)
	}
	if p.Principal != nil {
		clone.Principal = new(big.Int).Set(p.Principal)
	}
	return clone
}

// AssetConfig describes the static wiring for a single asset.
type AssetConfig struct {
	// CollateralToken is the token identifier pledged against the asset. It
	// must be configured before any collateral can be posted.
	CollateralToken string
	// CashflowSource optionally names the registered cashflow health source
	// used to cap the effective LTV dynamically.
	CashflowSource string
}

// Clone returns a copy of the asset configuration.
func (c *AssetConfig) Clone() *AssetConfig {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// ProtocolConfig groups the governance controlled liquidation economics. The
// struct is versioned so downstream consumers can detect admin mutations.
type ProtocolConfig struct {
	// LiquidationBonusBps is the premium paid to liquidators in seized
	// collateral value, expressed in basis points of the repaid debt. Always
	// at least 10000 (par).
	LiquidationBonusBps uint64
	// ProtocolFeeBps is the additional collateral share routed to the
	// treasury during liquidation. Never above 2000.
	ProtocolFeeBps uint64
	// Treasury receives the protocol fee share of seized collateral.
	Treasury crypto.Address
	// Version increments on every successful admin mutation.
	Version uint64
}

// Clone returns a copy of the protocol configuration.
func (c *ProtocolConfig) Clone() *ProtocolConfig {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// CashflowStatus is the closed performance classification reported by a
// cashflow health source.
type CashflowStatus uint8

const (
	CashflowPerforming CashflowStatus = iota
	CashflowGracePeriod
	CashflowLate
	CashflowDefaulted
)

// String renders the canonical lowercase label for the status.
func (s CashflowStatus) String() string {
	switch s {
	case CashflowPerforming:
		return "performing"
	case CashflowGracePeriod:
		return "grace_period"
	case CashflowLate:
		return "late"
	case CashflowDefaulted:
		return "defaulted"
	default:
		return "unknown"
	}
}

// LTVCapBps maps the classification onto the basis-point cap applied to the
// underwriting LTV.
func (s CashflowStatus) LTVCapBps() uint64 {
	switch s {
	case CashflowPerforming:
		return 10_000
	case CashflowGracePeriod:
		return 8_000
	case CashflowLate:
		return 5_000
	case CashflowDefaulted:
		return 0
	default:
		return 0
	}
}
