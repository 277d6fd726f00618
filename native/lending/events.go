package lending

import (
	"math/big"

	"rwachain/core/types"
	"rwachain/crypto"
)

const (
	EventTypeCollateralDeposited = "lending.collateral.deposited"
	EventTypeCollateralWithdrawn = "lending.collateral.withdrawn"
	EventTypeBorrowed            = "lending.borrowed"
	EventTypeRepaid              = "lending.repaid"
	EventTypeLiquidated          = "lending.liquidated"
)

// NewCollateralDepositedEvent returns the canonical payload emitted when an
// account pledges collateral.
func NewCollateralDepositedEvent(account crypto.Address, asset string, amount *big.Int) *types.Event {
	return newAmountEvent(EventTypeCollateralDeposited, account, asset, amount)
}

// NewCollateralWithdrawnEvent returns the canonical payload emitted when
// pledged collateral is released back to the account.
func NewCollateralWithdrawnEvent(account crypto.Address, asset string, amount *big.Int) *types.Event {
	return newAmountEvent(EventTypeCollateralWithdrawn, account, asset, amount)
}

// NewBorrowedEvent returns the canonical payload emitted when base currency
// is drawn against a position.
func NewBorrowedEvent(account crypto.Address, asset string, amount *big.Int) *types.Event {
	return newAmountEvent(EventTypeBorrowed, account, asset, amount)
}

// NewRepaidEvent returns the canonical payload emitted when outstanding debt
// is repaid.
func NewRepaidEvent(account crypto.Address, asset string, amount *big.Int) *types.Event {
	return newAmountEvent(EventTypeRepaid, account, asset, amount)
}

// NewLiquidatedEvent returns the canonical payload emitted when a position is
// liquidated, carrying both the repaid debt and the seized collateral shares.
func NewLiquidatedEvent(account crypto.Address, asset string, debtRepaid, collateralSeized *big.Int) *types.Event {
	evt := newAmountEvent(EventTypeLiquidated, account, asset, debtRepaid)
	evt.Attributes["debtRepaid"] = cloneBigInt(debtRepaid).String()
	evt.Attributes["collateralSeized"] = cloneBigInt(collateralSeized).String()
	delete(evt.Attributes, "amount")
	return evt
}

func newAmountEvent(eventType string, account crypto.Address, asset string, amount *big.Int) *types.Event {
	attrs := make(map[string]string)
	attrs["account"] = account.String()
	attrs["asset"] = normaliseAsset(asset)
	attrs["amount"] = cloneBigInt(amount).String()
	return &types.Event{Type: eventType, Attributes: attrs}
}
