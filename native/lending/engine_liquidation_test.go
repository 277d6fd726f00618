package lending

import (
	"math/big"
	"testing"
)

// seedUnhealthy builds a position carrying 500 of debt against 1000 collateral
// shares at a NAV of one, then tightens the underwriting LTV so the health
// factor lands at 0.8, below the liquidation threshold.
func (env *testEnv) seedUnhealthy(t *testing.T) {
	t.Helper()
	env.vals.Set(testAsset, ether(1), env.now)
	env.approve(5_000, 0)
	env.fundCollateral(t, env.borrower, big.NewInt(1000))
	env.fundBase(t, env.module, big.NewInt(1_000_000))
	if err := env.engine.DepositCollateral(env.borrower, testAsset, big.NewInt(1000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := env.engine.Borrow(env.borrower, testAsset, big.NewInt(500)); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	env.approve(4_000, 0)
}

func TestLiquidateSplitsBonusAndFee(t *testing.T) {
	env := newTestEnv(t)
	env.seedUnhealthy(t)
	env.fundBase(t, env.liquidator, big.NewInt(1_000))

	repaid, seized, err := env.engine.Liquidate(env.liquidator, env.borrower, testAsset, big.NewInt(500))
	if err != nil {
		t.Fatalf("liquidate: %v", err)
	}
	if repaid.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("unexpected repaid debt: got %s want 500", repaid)
	}
	// 105% bonus on 500 is 525 shares; the 2% fee adds 10 for the treasury.
	if seized.Cmp(big.NewInt(535)) != 0 {
		t.Fatalf("unexpected seized collateral: got %s want 535", seized)
	}
	if got := env.collateralBalance(t, env.liquidator); got.Cmp(big.NewInt(525)) != 0 {
		t.Fatalf("unexpected liquidator collateral: got %s want 525", got)
	}
	if got := env.collateralBalance(t, env.treasury); got.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("unexpected treasury collateral: got %s want 10", got)
	}
	pos := env.position(t)
	if pos.Principal.Sign() != 0 {
		t.Fatalf("expected debt cleared, got %s", pos.Principal)
	}
	if pos.CollateralShares.Cmp(big.NewInt(465)) != 0 {
		t.Fatalf("unexpected residual collateral: got %s want 465", pos.CollateralShares)
	}
	if got := env.baseBalance(t, env.liquidator); got.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("unexpected liquidator base balance: got %s want 500", got)
	}

	evt := env.recorder.last()
	if evt == nil || evt.Type != EventTypeLiquidated {
		t.Fatalf("expected %s event, got %+v", EventTypeLiquidated, evt)
	}
	if evt.Attributes["debtRepaid"] != "500" || evt.Attributes["collateralSeized"] != "535" {
		t.Fatalf("unexpected event attributes: %+v", evt.Attributes)
	}
}

func TestLiquidatePartialRepay(t *testing.T) {
	env := newTestEnv(t)
	env.seedUnhealthy(t)
	env.fundBase(t, env.liquidator, big.NewInt(1_000))

	repaid, seized, err := env.engine.Liquidate(env.liquidator, env.borrower, testAsset, big.NewInt(200))
	if err != nil {
		t.Fatalf("liquidate: %v", err)
	}
	if repaid.Cmp(big.NewInt(200)) != 0 {
		t.Fatalf("unexpected repaid debt: got %s want 200", repaid)
	}
	if seized.Cmp(big.NewInt(214)) != 0 {
		t.Fatalf("unexpected seized collateral: got %s want 214", seized)
	}
	if got := env.collateralBalance(t, env.liquidator); got.Cmp(big.NewInt(210)) != 0 {
		t.Fatalf("unexpected liquidator collateral: got %s want 210", got)
	}
	if got := env.collateralBalance(t, env.treasury); got.Cmp(big.NewInt(4)) != 0 {
		t.Fatalf("unexpected treasury collateral: got %s want 4", got)
	}
	pos := env.position(t)
	if pos.Principal.Cmp(big.NewInt(300)) != 0 {
		t.Fatalf("unexpected residual debt: got %s want 300", pos.Principal)
	}
}

func TestLiquidateConservesCollateral(t *testing.T) {
	env := newTestEnv(t)
	env.seedUnhealthy(t)
	env.fundBase(t, env.liquidator, big.NewInt(1_000))

	before := env.position(t).CollateralShares
	_, seized, err := env.engine.Liquidate(env.liquidator, env.borrower, testAsset, big.NewInt(333))
	if err != nil {
		t.Fatalf("liquidate: %v", err)
	}
	pos := env.position(t)
	distributed := new(big.Int).Add(
		env.collateralBalance(t, env.liquidator),
		env.collateralBalance(t, env.treasury),
	)
	if distributed.Cmp(seized) > 0 {
		t.Fatalf("distributed %s exceeds seized %s", distributed, seized)
	}
	total := new(big.Int).Add(pos.CollateralShares, distributed)
	if total.Cmp(before) != 0 {
		t.Fatalf("collateral not conserved: %s remaining + %s distributed != %s", pos.CollateralShares, distributed, before)
	}
}

func TestLiquidateClampsToOutstandingDebt(t *testing.T) {
	env := newTestEnv(t)
	env.seedUnhealthy(t)
	env.fundBase(t, env.liquidator, big.NewInt(10_000))

	repaid, _, err := env.engine.Liquidate(env.liquidator, env.borrower, testAsset, big.NewInt(10_000))
	if err != nil {
		t.Fatalf("liquidate: %v", err)
	}
	if repaid.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("expected repay clamped to principal 500, got %s", repaid)
	}
}

func TestLiquidateClampsToCollateralCoverageAndLeavesBadDebt(t *testing.T) {
	env := newTestEnv(t)
	env.vals.Set(testAsset, ether(20), env.now)
	env.approve(5_000, 0)
	env.fundCollateral(t, env.borrower, big.NewInt(100))
	env.fundBase(t, env.module, big.NewInt(1_000_000))
	if err := env.engine.DepositCollateral(env.borrower, testAsset, big.NewInt(100)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := env.engine.Borrow(env.borrower, testAsset, big.NewInt(1_000)); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	// NAV collapses 20x; 100 shares now cover only 95 of repay at the bonus
	// rate.
	env.vals.Set(testAsset, ether(1), env.now)
	env.fundBase(t, env.liquidator, big.NewInt(1_000))

	repaid, seized, err := env.engine.Liquidate(env.liquidator, env.borrower, testAsset, big.NewInt(1_000))
	if err != nil {
		t.Fatalf("liquidate: %v", err)
	}
	if repaid.Cmp(big.NewInt(95)) != 0 {
		t.Fatalf("unexpected repaid debt: got %s want 95", repaid)
	}
	if seized.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("unexpected seized collateral: got %s want 100", seized)
	}
	pos := env.position(t)
	if pos.CollateralShares.Sign() != 0 {
		t.Fatalf("expected collateral exhausted, got %s", pos.CollateralShares)
	}
	// Residual debt with no collateral left is bad debt and stays on the book.
	if pos.Principal.Cmp(big.NewInt(905)) != 0 {
		t.Fatalf("unexpected bad-debt residual: got %s want 905", pos.Principal)
	}
}

func TestLiquidateExhaustedCollateralRejected(t *testing.T) {
	env := newTestEnv(t)
	env.vals.Set(testAsset, ether(20), env.now)
	env.approve(5_000, 0)
	env.fundCollateral(t, env.borrower, big.NewInt(100))
	env.fundBase(t, env.module, big.NewInt(1_000_000))
	if err := env.engine.DepositCollateral(env.borrower, testAsset, big.NewInt(100)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := env.engine.Borrow(env.borrower, testAsset, big.NewInt(1_000)); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	env.vals.Set(testAsset, ether(1), env.now)
	env.fundBase(t, env.liquidator, big.NewInt(1_000))
	if _, _, err := env.engine.Liquidate(env.liquidator, env.borrower, testAsset, big.NewInt(1_000)); err != nil {
		t.Fatalf("first liquidation: %v", err)
	}

	// The first pass seized all collateral and left bad debt; a second attempt
	// has nothing to seize and must say so rather than blaming the request.
	if _, _, err := env.engine.Liquidate(env.liquidator, env.borrower, testAsset, big.NewInt(100)); err != ErrInsufficientCollateral {
		t.Fatalf("expected ErrInsufficientCollateral, got %v", err)
	}
}

func TestLiquidateHealthyPositionRejected(t *testing.T) {
	env := newTestEnv(t)
	env.depositAndBorrow(t, 500_000)
	env.fundBase(t, env.liquidator, big.NewInt(1_000))
	if _, _, err := env.engine.Liquidate(env.liquidator, env.borrower, testAsset, big.NewInt(100)); err != ErrHealthyPosition {
		t.Fatalf("expected ErrHealthyPosition, got %v", err)
	}
}

func TestLiquidateRequiresFundedLiquidator(t *testing.T) {
	env := newTestEnv(t)
	env.seedUnhealthy(t)
	env.fundBase(t, env.liquidator, big.NewInt(100))

	if _, _, err := env.engine.Liquidate(env.liquidator, env.borrower, testAsset, big.NewInt(500)); err != ErrInsufficientBalance {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	pos := env.position(t)
	if pos.Principal.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("rejected liquidation mutated principal: %s", pos.Principal)
	}
	if pos.CollateralShares.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("rejected liquidation mutated collateral: %s", pos.CollateralShares)
	}
}

func TestLiquidateStaleValuationRejected(t *testing.T) {
	env := newTestEnv(t)
	env.seedUnhealthy(t)
	env.fundBase(t, env.liquidator, big.NewInt(1_000))
	env.advance(600)
	if _, _, err := env.engine.Liquidate(env.liquidator, env.borrower, testAsset, big.NewInt(500)); err != ErrStaleValuation {
		t.Fatalf("expected ErrStaleValuation, got %v", err)
	}
}
