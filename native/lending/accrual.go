package lending

import "math/big"

// accrue advances the position's principal to reflect elapsed-time interest.
// The rate is read from the underwriting terms current at accrual time, so an
// oracle refresh changes future accrual immediately. Calling accrue twice
// with the same timestamp is a no-op; interest is applied at most once per
// distinct timestamp per position.
func (e *Engine) accrue(pos *Position, view *oracleView) error {
	if pos == nil || view == nil {
		return ErrNilState
	}
	now := view.now
	if pos.Principal == nil || pos.Principal.Sign() == 0 {
		pos.Principal = big.NewInt(0)
		if now > pos.LastAccrual {
			pos.LastAccrual = now
		}
		return nil
	}
	if now <= pos.LastAccrual {
		return nil
	}
	terms, err := view.Terms()
	if err != nil {
		return err
	}
	elapsed := now - pos.LastAccrual
	if terms.RateBps > 0 {
		// Floor division drops fractional interest below one unit on every
		// call instead of carrying it forward, a borrower-favouring bias
		// that is part of the observable balance semantics.
		num := new(big.Int).Mul(pos.Principal, new(big.Int).SetUint64(terms.RateBps))
		num.Mul(num, big.NewInt(elapsed))
		den := new(big.Int).Mul(basisPoints, big.NewInt(secondsPerYear))
		interest := num.Quo(num, den)
		pos.Principal = new(big.Int).Add(pos.Principal, interest)
	}
	pos.LastAccrual = now
	return nil
}
