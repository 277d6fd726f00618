package lending

import (
	"math/big"

	"rwachain/crypto"
	nativecommon "rwachain/native/common"
)

// Borrow draws base currency against the position up to the risk-adjusted
// cap. Approval is checked against the terms current at call time; expired
// terms reject identically to unapproved ones.
func (e *Engine) Borrow(account crypto.Address, asset string, amount *big.Int) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	unlock := e.lockPosition(account, asset)
	defer unlock()

	pos, err := e.ensurePosition(account, asset)
	if err != nil {
		return err
	}
	view := e.newOracleView(account, asset)
	terms, err := view.Terms()
	if err != nil {
		return err
	}
	if !terms.CurrentlyApproved(view.now) {
		return ErrNotApproved
	}
	if err := e.accrue(pos, view); err != nil {
		return err
	}
	maxB, err := e.maxBorrowable(pos, view)
	if err != nil {
		return err
	}
	projected := new(big.Int).Add(pos.Principal, amount)
	if projected.Cmp(maxB) > 0 {
		return ErrExceedsLTV
	}

	moduleAcc, err := e.loadAccount(e.moduleAddress)
	if err != nil {
		return err
	}
	if moduleAcc.BalanceBase.Cmp(amount) < 0 {
		return ErrInsufficientLiquidity
	}

	pos.Principal = projected
	if err := e.state.PutPosition(pos); err != nil {
		return err
	}
	if err := e.transferBase(e.moduleAddress, account, amount); err != nil {
		return err
	}
	e.emit(NewBorrowedEvent(account, asset, amount))
	e.logOperation("borrow", account, asset, amount)
	return nil
}

// Repay pulls the full amount from the caller and reduces the outstanding
// principal, clamping at zero. Overpayment is still pulled; clamping the
// request to the post-accrual debt is the caller's responsibility. When the
// debt reaches zero the accrual clock resets to now.
func (e *Engine) Repay(account crypto.Address, asset string, amount *big.Int) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	unlock := e.lockPosition(account, asset)
	defer unlock()

	pos, err := e.ensurePosition(account, asset)
	if err != nil {
		return err
	}
	if pos.Principal.Sign() == 0 {
		return ErrNoOutstandingDebt
	}
	view := e.newOracleView(account, asset)
	if err := e.accrue(pos, view); err != nil {
		return err
	}

	payerAcc, err := e.loadAccount(account)
	if err != nil {
		return err
	}
	if payerAcc.BalanceBase.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}

	if amount.Cmp(pos.Principal) >= 0 {
		pos.Principal = big.NewInt(0)
		pos.LastAccrual = view.now
	} else {
		pos.Principal = new(big.Int).Sub(pos.Principal, amount)
	}
	if err := e.state.PutPosition(pos); err != nil {
		return err
	}
	if err := e.transferBase(account, e.moduleAddress, amount); err != nil {
		return err
	}
	e.emit(NewRepaidEvent(account, asset, amount))
	e.logOperation("repay", account, asset, amount)
	return nil
}
