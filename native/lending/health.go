package lending

import (
	"math/big"
	"strings"

	"rwachain/crypto"
)

// oracleView captures the oracle reads for a single operation. Each upstream
// is consulted at most once and the captured value is held fixed for the
// remainder of the operation's math, even if the oracle is updated
// concurrently.
type oracleView struct {
	engine  *Engine
	account crypto.Address
	asset   string
	now     int64

	termsLoaded bool
	terms       Terms
	termsErr    error

	navLoaded bool
	nav       NAVData
	navFresh  bool
	navErr    error

	capLoaded bool
	capBps    uint64
}

func (e *Engine) newOracleView(account crypto.Address, asset string) *oracleView {
	return &oracleView{engine: e, account: account, asset: normaliseAsset(asset), now: e.now()}
}

// Terms returns the underwriting terms captured for this operation. A missing
// terms oracle resolves to zero-value terms: unapproved with a zero rate.
func (v *oracleView) Terms() (Terms, error) {
	if v.termsLoaded {
		return v.terms, v.termsErr
	}
	v.termsLoaded = true
	if v.engine == nil || v.engine.termsOracle == nil {
		return v.terms, nil
	}
	v.terms, v.termsErr = v.engine.termsOracle.Terms(v.account, v.asset)
	return v.terms, v.termsErr
}

// NAV returns the valuation report and freshness verdict captured for this
// operation.
func (v *oracleView) NAV() (NAVData, bool, error) {
	if v.navLoaded {
		return v.nav, v.navFresh, v.navErr
	}
	v.navLoaded = true
	if v.engine == nil || v.engine.valuationOracle == nil {
		v.navErr = ErrStaleValuation
		return v.nav, false, v.navErr
	}
	v.navFresh = v.engine.valuationOracle.IsFresh(v.asset)
	if !v.navFresh {
		return v.nav, false, nil
	}
	v.nav, v.navErr = v.engine.valuationOracle.NAVData(v.asset)
	return v.nav, v.navFresh, v.navErr
}

// CashflowCapBps resolves the dynamic LTV cap. Assets without a configured
// source, unknown source names and erroring sources all fail open to a 100%
// cap; the classification only ever tightens the underwriting LTV.
func (v *oracleView) CashflowCapBps() uint64 {
	if v.capLoaded {
		return v.capBps
	}
	v.capLoaded = true
	v.capBps = 10_000
	if v.engine == nil || v.engine.state == nil {
		return v.capBps
	}
	cfg, err := v.engine.state.GetAssetConfig(v.asset)
	if err != nil || cfg == nil {
		return v.capBps
	}
	name := strings.ToLower(strings.TrimSpace(cfg.CashflowSource))
	if name == "" {
		return v.capBps
	}
	source, ok := v.engine.cashflowSources[name]
	if !ok || source == nil {
		return v.capBps
	}
	status, err := source.Health(v.asset)
	if err != nil {
		return v.capBps
	}
	v.capBps = status.LTVCapBps()
	return v.capBps
}

// collateralValue prices the pledged collateral using the live NAV. The
// valuation must be fresh and strictly positive.
func (e *Engine) collateralValue(pos *Position, view *oracleView) (*big.Int, error) {
	nav, fresh, err := view.NAV()
	if err != nil {
		return nil, err
	}
	if !fresh {
		return nil, ErrStaleValuation
	}
	if nav.NAV == nil || nav.NAV.Sign() <= 0 {
		return nil, ErrZeroValuation
	}
	return mulDiv(pos.CollateralShares, nav.NAV, wad), nil
}

// effectiveLTVBps caps the underwriting LTV with the cashflow classification.
func (e *Engine) effectiveLTVBps(underwritingLTV uint64, view *oracleView) uint64 {
	cap := view.CashflowCapBps()
	if underwritingLTV < cap {
		return underwritingLTV
	}
	return cap
}

// maxBorrowable computes the risk-adjusted borrow cap. Unapproved or expired
// terms yield a zero cap rather than an error; callers must treat a zero cap
// as "not approved".
func (e *Engine) maxBorrowable(pos *Position, view *oracleView) (*big.Int, error) {
	terms, err := view.Terms()
	if err != nil {
		return nil, err
	}
	if !terms.CurrentlyApproved(view.now) {
		return big.NewInt(0), nil
	}
	value, err := e.collateralValue(pos, view)
	if err != nil {
		return nil, err
	}
	ltv := e.effectiveLTVBps(terms.MaxLTVBps, view)
	return bpsShare(value, ltv), nil
}

// healthFactor returns the position's health in wad fixed point. The second
// return reports the "infinite" sentinel, which holds exactly when the
// position carries no debt. The position must already be accrued.
func (e *Engine) healthFactor(pos *Position, view *oracleView) (*big.Int, bool, error) {
	if pos.Principal == nil || pos.Principal.Sign() == 0 {
		return nil, true, nil
	}
	maxB, err := e.maxBorrowable(pos, view)
	if err != nil {
		return nil, false, err
	}
	return mulDiv(maxB, wad, pos.Principal), false, nil
}

// isLiquidatable reports whether the accrued position sits below the fixed
// 0.95 liquidation threshold.
func (e *Engine) isLiquidatable(pos *Position, view *oracleView) (bool, error) {
	hf, infinite, err := e.healthFactor(pos, view)
	if err != nil {
		return false, err
	}
	if infinite {
		return false, nil
	}
	return hf.Cmp(liquidationThreshold) < 0, nil
}

// HealthFactor accrues the position and returns its live health factor. The
// boolean reports the infinite sentinel for debt-free positions.
func (e *Engine) HealthFactor(account crypto.Address, asset string) (*big.Int, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, ErrNilState
	}
	unlock := e.lockPosition(account, asset)
	defer unlock()
	pos, err := e.ensurePosition(account, asset)
	if err != nil {
		return nil, false, err
	}
	view := e.newOracleView(account, asset)
	if err := e.accrue(pos, view); err != nil {
		return nil, false, err
	}
	if err := e.state.PutPosition(pos); err != nil {
		return nil, false, err
	}
	return e.healthFactor(pos, view)
}

// MaxBorrowable accrues the position and returns the current borrow cap.
func (e *Engine) MaxBorrowable(account crypto.Address, asset string) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	unlock := e.lockPosition(account, asset)
	defer unlock()
	pos, err := e.ensurePosition(account, asset)
	if err != nil {
		return nil, err
	}
	view := e.newOracleView(account, asset)
	if err := e.accrue(pos, view); err != nil {
		return nil, err
	}
	if err := e.state.PutPosition(pos); err != nil {
		return nil, err
	}
	return e.maxBorrowable(pos, view)
}
