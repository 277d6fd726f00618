package lending

import "errors"

var (
	// ErrNilState is returned when the engine has no persistence wired.
	ErrNilState = errors.New("lending engine: state not configured")
	// ErrProtocolNotConfigured is returned when the protocol configuration
	// has not been initialised at genesis.
	ErrProtocolNotConfigured = errors.New("lending engine: protocol config not initialised")
	// ErrInvalidAmount rejects zero or negative operation amounts.
	ErrInvalidAmount = errors.New("lending engine: amount must be positive")
	// ErrAssetNotConfigured rejects collateral operations before the asset's
	// collateral token has been set.
	ErrAssetNotConfigured = errors.New("lending engine: asset collateral token not configured")
	// ErrInsufficientCollateral rejects withdrawals exceeding the pledged
	// collateral shares and liquidations of positions with no seizable
	// collateral left.
	ErrInsufficientCollateral = errors.New("lending engine: insufficient collateral")
	// ErrInsufficientBalance rejects transfers the funding account cannot
	// cover.
	ErrInsufficientBalance = errors.New("lending engine: insufficient balance")
	// ErrInsufficientLiquidity rejects borrows the module vault cannot fund.
	ErrInsufficientLiquidity = errors.New("lending engine: insufficient liquidity")
	// ErrNotApproved rejects borrows without current underwriting approval.
	// Expired terms are treated identically to unapproved ones.
	ErrNotApproved = errors.New("lending engine: borrower terms not approved")
	// ErrExceedsLTV rejects borrows that would push debt above the
	// risk-adjusted borrow cap.
	ErrExceedsLTV = errors.New("lending engine: borrow exceeds effective LTV cap")
	// ErrStaleValuation rejects operations that need a collateral valuation
	// while the oracle report is outside its freshness window.
	ErrStaleValuation = errors.New("lending engine: stale asset valuation")
	// ErrZeroValuation rejects operations against assets reporting a zero
	// net asset value.
	ErrZeroValuation = errors.New("lending engine: zero asset valuation")
	// ErrWouldBecomeUnhealthy rejects collateral withdrawals that would push
	// the health factor below par.
	ErrWouldBecomeUnhealthy = errors.New("lending engine: withdrawal would leave position unhealthy")
	// ErrHealthyPosition rejects liquidation of positions at or above the
	// liquidation threshold.
	ErrHealthyPosition = errors.New("lending engine: position not eligible for liquidation")
	// ErrNoOutstandingDebt rejects repayments and liquidations of debt-free
	// positions.
	ErrNoOutstandingDebt = errors.New("lending engine: no outstanding debt")
	// ErrFeeTooHigh rejects protocol fee settings above 20%.
	ErrFeeTooHigh = errors.New("lending engine: protocol fee exceeds cap")
	// ErrBonusBelowPar rejects liquidation bonus settings below 100%.
	ErrBonusBelowPar = errors.New("lending engine: liquidation bonus below par")
	// ErrUnauthorized rejects admin mutations from non-authority callers.
	ErrUnauthorized = errors.New("lending engine: caller not authorised")
)
