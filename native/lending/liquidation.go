package lending

import (
	"math/big"

	"rwachain/crypto"
	nativecommon "rwachain/native/common"
	"rwachain/observability/metrics"
)

// Liquidate lets a third party repay part of an unhealthy position's debt in
// exchange for discounted collateral. The repay amount is clamped to both the
// outstanding principal and the most the available collateral can cover at
// the bonus rate, so the seizure never exceeds the pledged balance. A
// positive principal may remain after the collateral is exhausted; that
// residual is bad debt and is never auto-forgiven. The repaid debt and seized
// collateral shares are returned.
func (e *Engine) Liquidate(liquidator, account crypto.Address, asset string, requestedRepay *big.Int) (*big.Int, *big.Int, error) {
	if e == nil || e.state == nil {
		return nil, nil, ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, nil, err
	}
	if requestedRepay == nil || requestedRepay.Sign() <= 0 {
		return nil, nil, ErrInvalidAmount
	}
	protocol, err := e.protocolConfig()
	if err != nil {
		return nil, nil, err
	}
	cfg, err := e.assetConfig(asset)
	if err != nil {
		return nil, nil, err
	}
	unlock := e.lockPosition(account, asset)
	defer unlock()

	pos, err := e.ensurePosition(account, asset)
	if err != nil {
		return nil, nil, err
	}
	view := e.newOracleView(account, asset)
	if err := e.accrue(pos, view); err != nil {
		return nil, nil, err
	}
	liquidatable, err := e.isLiquidatable(pos, view)
	if err != nil {
		return nil, nil, err
	}
	if !liquidatable {
		return nil, nil, ErrHealthyPosition
	}
	if pos.Principal.Sign() == 0 {
		return nil, nil, ErrNoOutstandingDebt
	}

	// The health check already validated freshness and a positive NAV.
	nav, _, err := view.NAV()
	if err != nil {
		return nil, nil, err
	}

	maxUsdRecoverable := mulDiv(pos.CollateralShares, nav.NAV, wad)
	maxRepayPossible := mulDiv(maxUsdRecoverable, basisPoints, new(big.Int).SetUint64(protocol.LiquidationBonusBps))
	repayAmount := minBig(requestedRepay, maxRepayPossible, pos.Principal)
	if repayAmount.Sign() <= 0 {
		// The request and principal are positive here, so a zero clamp means
		// the remaining collateral cannot cover any repay at the bonus rate:
		// the position is pure bad debt.
		return nil, nil, ErrInsufficientCollateral
	}

	liquidatorAcc, err := e.loadAccount(liquidator)
	if err != nil {
		return nil, nil, err
	}
	if liquidatorAcc.BalanceBase.Cmp(repayAmount) < 0 {
		return nil, nil, ErrInsufficientBalance
	}

	liquidatorUsd := bpsShare(repayAmount, protocol.LiquidationBonusBps)
	protocolUsd := bpsShare(repayAmount, protocol.ProtocolFeeBps)
	totalUsdSeized := new(big.Int).Add(liquidatorUsd, protocolUsd)

	totalShares := mulDiv(totalUsdSeized, wad, nav.NAV)
	if totalShares.Cmp(pos.CollateralShares) > 0 {
		totalShares = new(big.Int).Set(pos.CollateralShares)
	}
	liquidatorShares := mulDiv(liquidatorUsd, wad, nav.NAV)
	protocolShares := mulDiv(protocolUsd, wad, nav.NAV)
	combined := new(big.Int).Add(liquidatorShares, protocolShares)
	if combined.Cmp(totalShares) > 0 {
		// Rounding pushed the split past the clamped total; rescale the
		// liquidator share proportionally and give the treasury the rest so
		// the two never exceed what is actually available.
		liquidatorShares = mulDiv(totalShares, liquidatorUsd, totalUsdSeized)
		protocolShares = new(big.Int).Sub(totalShares, liquidatorShares)
	}

	pos.Principal = new(big.Int).Sub(pos.Principal, repayAmount)
	if pos.Principal.Sign() == 0 {
		pos.LastAccrual = view.now
	}
	pos.CollateralShares = new(big.Int).Sub(pos.CollateralShares, totalShares)
	if err := e.state.PutPosition(pos); err != nil {
		return nil, nil, err
	}

	if err := e.transferBase(liquidator, e.moduleAddress, repayAmount); err != nil {
		return nil, nil, err
	}
	if liquidatorShares.Sign() > 0 {
		if err := e.transferCollateral(cfg.CollateralToken, e.collateralAddress, liquidator, liquidatorShares); err != nil {
			return nil, nil, err
		}
	}
	if protocolShares.Sign() > 0 {
		if err := e.transferCollateral(cfg.CollateralToken, e.collateralAddress, protocol.Treasury, protocolShares); err != nil {
			return nil, nil, err
		}
	}

	e.emit(NewLiquidatedEvent(account, asset, repayAmount, totalShares))
	e.logOperation("liquidate", account, asset, repayAmount)
	if pos.Principal.Sign() > 0 && pos.CollateralShares.Sign() == 0 {
		metrics.Lending().ObserveBadDebt()
	}
	return repayAmount, totalShares, nil
}
