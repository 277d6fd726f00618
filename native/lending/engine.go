package lending

import (
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"rwachain/core/events"
	"rwachain/core/types"
	"rwachain/crypto"
	nativecommon "rwachain/native/common"
	"rwachain/observability/metrics"
)

const moduleName = "lending"

// engineState is the narrow persistence contract the engine mutates through.
// The engine is the only writer for positions and configuration.
type engineState interface {
	GetPosition(account crypto.Address, asset string) (*Position, error)
	PutPosition(position *Position) error
	GetAssetConfig(asset string) (*AssetConfig, error)
	PutAssetConfig(asset string, cfg *AssetConfig) error
	GetProtocolConfig() (*ProtocolConfig, error)
	PutProtocolConfig(cfg *ProtocolConfig) error
	GetAccount(addr crypto.Address) (*types.Account, error)
	PutAccount(addr crypto.Address, account *types.Account) error
}

type lendingEvent struct {
	evt *types.Event
}

func (e lendingEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e lendingEvent) Event() *types.Event { return e.evt }

// Engine orchestrates the collateralized-lending state transitions: posting
// and releasing collateral, drawing and repaying the base currency, and
// liquidating unhealthy positions. Every public operation is atomic per
// (account, asset) key; operations on distinct keys may run concurrently.
type Engine struct {
	state             engineState
	moduleAddress     crypto.Address
	collateralAddress crypto.Address
	authority         crypto.Address
	termsOracle       RiskTermsOracle
	valuationOracle   ValuationOracle
	cashflowSources   map[string]CashflowHealthSource
	emitter           events.Emitter
	logger            *slog.Logger
	pauses            nativecommon.PauseView
	nowFn             func() int64

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex
}

// NewEngine constructs a lending engine wired to the module vault addresses.
// The module address custodies base-currency liquidity while the collateral
// address custodies pledged collateral tokens.
func NewEngine(moduleAddr, collateralAddr crypto.Address) *Engine {
	return &Engine{
		moduleAddress:     moduleAddr,
		collateralAddress: collateralAddr,
		cashflowSources:   make(map[string]CashflowHealthSource),
		emitter:           events.NoopEmitter{},
		nowFn:             func() int64 { return time.Now().Unix() },
		locks:             make(map[string]*sync.Mutex),
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetAuthority configures the privileged caller allowed to mutate asset and
// protocol configuration.
func (e *Engine) SetAuthority(authority crypto.Address) {
	if e == nil {
		return
	}
	e.authority = authority
}

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil {
		return
	}
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetLogger attaches a structured logger used to record committed operations.
func (e *Engine) SetLogger(logger *slog.Logger) {
	if e == nil {
		return
	}
	e.logger = logger
}

// SetPauses wires the governance pause view consulted before every operation.
func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if e == nil {
		return
	}
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetRiskTermsOracle wires the underwriting terms oracle.
func (e *Engine) SetRiskTermsOracle(oracle RiskTermsOracle) {
	if e == nil {
		return
	}
	e.termsOracle = oracle
}

// SetValuationOracle wires the NAV oracle.
func (e *Engine) SetValuationOracle(oracle ValuationOracle) {
	if e == nil {
		return
	}
	e.valuationOracle = oracle
}

// RegisterCashflowSource registers a cashflow health source under a name that
// asset configurations can reference.
func (e *Engine) RegisterCashflowSource(name string, source CashflowHealthSource) {
	if e == nil {
		return
	}
	trimmed := strings.ToLower(strings.TrimSpace(name))
	if trimmed == "" || source == nil {
		return
	}
	e.cashflowSources[trimmed] = source
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(lendingEvent{evt: event})
}

// logOperation records a committed operation. The metrics counter always
// moves; the structured log line additionally requires a logger to be
// attached.
func (e *Engine) logOperation(op string, account crypto.Address, asset string, amount *big.Int) {
	metrics.Lending().ObserveOperation(op)
	if e == nil || e.logger == nil {
		return
	}
	e.logger.Info("lending operation committed",
		slog.String("op", op),
		slog.String("account", account.String()),
		slog.String("asset", normaliseAsset(asset)),
		slog.String("amount", cloneBigInt(amount).String()),
	)
}

// lockPosition serializes access per (account, asset) key and returns the
// unlock function. Interleaved reads between accrual and mutation would break
// the position invariants, so the lock is held for the whole operation.
func (e *Engine) lockPosition(account crypto.Address, asset string) func() {
	key := string(account.Bytes()) + "|" + normaliseAsset(asset)
	e.lockMu.Lock()
	lock, ok := e.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[key] = lock
	}
	e.lockMu.Unlock()
	lock.Lock()
	return lock.Unlock
}

func (e *Engine) ensurePosition(account crypto.Address, asset string) (*Position, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	pos, err := e.state.GetPosition(account, normaliseAsset(asset))
	if err != nil {
		return nil, err
	}
	if pos == nil {
		pos = &Position{Account: account, Asset: normaliseAsset(asset)}
	}
	if pos.CollateralShares == nil {
		pos.CollateralShares = big.NewInt(0)
	}
	if pos.Principal == nil {
		pos.Principal = big.NewInt(0)
	}
	return pos, nil
}

func (e *Engine) assetConfig(asset string) (*AssetConfig, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	cfg, err := e.state.GetAssetConfig(normaliseAsset(asset))
	if err != nil {
		return nil, err
	}
	if cfg == nil || strings.TrimSpace(cfg.CollateralToken) == "" {
		return nil, ErrAssetNotConfigured
	}
	return cfg, nil
}

func (e *Engine) protocolConfig() (*ProtocolConfig, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	cfg, err := e.state.GetProtocolConfig()
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, ErrProtocolNotConfigured
	}
	return cfg, nil
}

func (e *Engine) loadAccount(addr crypto.Address) (*types.Account, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	acc, err := e.state.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		acc = &types.Account{}
	}
	if acc.BalanceBase == nil {
		acc.BalanceBase = big.NewInt(0)
	}
	return acc, nil
}

// transferBase moves base currency between two accounts, persisting both. The
// transfer fails without side effects when the source cannot cover the
// amount.
func (e *Engine) transferBase(from, to crypto.Address, amount *big.Int) error {
	fromAcc, err := e.loadAccount(from)
	if err != nil {
		return err
	}
	if fromAcc.BalanceBase.Cmp(amount) < 0 {
		if from.Equal(e.moduleAddress) {
			return ErrInsufficientLiquidity
		}
		return ErrInsufficientBalance
	}
	toAcc, err := e.loadAccount(to)
	if err != nil {
		return err
	}
	fromAcc.BalanceBase = new(big.Int).Sub(fromAcc.BalanceBase, amount)
	toAcc.BalanceBase = new(big.Int).Add(toAcc.BalanceBase, amount)
	if err := e.state.PutAccount(from, fromAcc); err != nil {
		return err
	}
	return e.state.PutAccount(to, toAcc)
}

// transferCollateral moves collateral token units between two accounts.
func (e *Engine) transferCollateral(token string, from, to crypto.Address, amount *big.Int) error {
	fromAcc, err := e.loadAccount(from)
	if err != nil {
		return err
	}
	balance := fromAcc.CollateralBalance(token)
	if balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	toAcc, err := e.loadAccount(to)
	if err != nil {
		return err
	}
	fromAcc.SetCollateralBalance(token, new(big.Int).Sub(balance, amount))
	toAcc.SetCollateralBalance(token, new(big.Int).Add(toAcc.CollateralBalance(token), amount))
	if err := e.state.PutAccount(from, fromAcc); err != nil {
		return err
	}
	return e.state.PutAccount(to, toAcc)
}

// DepositCollateral pledges collateral token units against the asset. The
// position is created implicitly on first use.
func (e *Engine) DepositCollateral(account crypto.Address, asset string, amount *big.Int) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	cfg, err := e.assetConfig(asset)
	if err != nil {
		return err
	}
	unlock := e.lockPosition(account, asset)
	defer unlock()

	depositorAcc, err := e.loadAccount(account)
	if err != nil {
		return err
	}
	if depositorAcc.CollateralBalance(cfg.CollateralToken).Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}

	pos, err := e.ensurePosition(account, asset)
	if err != nil {
		return err
	}
	pos.CollateralShares = new(big.Int).Add(pos.CollateralShares, amount)
	if err := e.state.PutPosition(pos); err != nil {
		return err
	}
	if err := e.transferCollateral(cfg.CollateralToken, account, e.collateralAddress, amount); err != nil {
		return err
	}
	e.emit(NewCollateralDepositedEvent(account, asset, amount))
	e.logOperation("deposit_collateral", account, asset, amount)
	return nil
}

// WithdrawCollateral releases pledged collateral back to the account while
// ensuring the remaining position stays at or above a health factor of one.
// Debt-free positions withdraw without consulting the valuation oracle.
func (e *Engine) WithdrawCollateral(account crypto.Address, asset string, amount *big.Int) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	cfg, err := e.assetConfig(asset)
	if err != nil {
		return err
	}
	unlock := e.lockPosition(account, asset)
	defer unlock()

	pos, err := e.ensurePosition(account, asset)
	if err != nil {
		return err
	}
	if pos.CollateralShares.Cmp(amount) < 0 {
		return ErrInsufficientCollateral
	}

	view := e.newOracleView(account, asset)
	if err := e.accrue(pos, view); err != nil {
		return err
	}

	// Tentative decrement; rolled back by aborting before persist when the
	// projected health factor drops below par.
	retained := new(big.Int).Set(pos.CollateralShares)
	pos.CollateralShares = new(big.Int).Sub(pos.CollateralShares, amount)
	hf, infinite, err := e.healthFactor(pos, view)
	if err != nil {
		pos.CollateralShares = retained
		return err
	}
	if !infinite && hf.Cmp(wad) < 0 {
		pos.CollateralShares = retained
		return ErrWouldBecomeUnhealthy
	}

	if err := e.state.PutPosition(pos); err != nil {
		return err
	}
	if err := e.transferCollateral(cfg.CollateralToken, e.collateralAddress, account, amount); err != nil {
		return err
	}
	e.emit(NewCollateralWithdrawnEvent(account, asset, amount))
	e.logOperation("withdraw_collateral", account, asset, amount)
	return nil
}

// --- admin surface ---

func (e *Engine) requireAuthority(caller crypto.Address) error {
	if e == nil {
		return ErrNilState
	}
	if e.authority.IsZero() || !caller.Equal(e.authority) {
		return ErrUnauthorized
	}
	return nil
}

// InitialiseProtocol seeds the protocol configuration at genesis. The config
// is range-validated exactly like the admin setters.
func (e *Engine) InitialiseProtocol(cfg *ProtocolConfig) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if cfg == nil {
		return ErrProtocolNotConfigured
	}
	if cfg.LiquidationBonusBps < 10_000 {
		return ErrBonusBelowPar
	}
	if cfg.ProtocolFeeBps > 2_000 {
		return ErrFeeTooHigh
	}
	return e.state.PutProtocolConfig(cfg.Clone())
}

// SetCollateralToken configures the collateral token accepted for the asset.
func (e *Engine) SetCollateralToken(caller crypto.Address, asset, token string) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if err := e.requireAuthority(caller); err != nil {
		return err
	}
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return ErrAssetNotConfigured
	}
	cfg, err := e.state.GetAssetConfig(normaliseAsset(asset))
	if err != nil {
		return err
	}
	if cfg == nil {
		cfg = &AssetConfig{}
	}
	cfg.CollateralToken = trimmed
	return e.state.PutAssetConfig(normaliseAsset(asset), cfg)
}

// SetCashflowSource points the asset at a registered cashflow health source.
// An empty name detaches the source and restores the fail-open default cap.
func (e *Engine) SetCashflowSource(caller crypto.Address, asset, source string) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if err := e.requireAuthority(caller); err != nil {
		return err
	}
	cfg, err := e.state.GetAssetConfig(normaliseAsset(asset))
	if err != nil {
		return err
	}
	if cfg == nil {
		cfg = &AssetConfig{}
	}
	cfg.CashflowSource = strings.ToLower(strings.TrimSpace(source))
	return e.state.PutAssetConfig(normaliseAsset(asset), cfg)
}

// SetLiquidationBonus updates the liquidator premium. Values below par are
// rejected outright, never clamped.
func (e *Engine) SetLiquidationBonus(caller crypto.Address, bps uint64) error {
	if err := e.requireAuthority(caller); err != nil {
		return err
	}
	if bps < 10_000 {
		return ErrBonusBelowPar
	}
	cfg, err := e.protocolConfig()
	if err != nil {
		return err
	}
	cfg.LiquidationBonusBps = bps
	cfg.Version++
	return e.state.PutProtocolConfig(cfg)
}

// SetProtocolFee updates the treasury fee share. Values above 20% are
// rejected outright, never clamped.
func (e *Engine) SetProtocolFee(caller crypto.Address, bps uint64) error {
	if err := e.requireAuthority(caller); err != nil {
		return err
	}
	if bps > 2_000 {
		return ErrFeeTooHigh
	}
	cfg, err := e.protocolConfig()
	if err != nil {
		return err
	}
	cfg.ProtocolFeeBps = bps
	cfg.Version++
	return e.state.PutProtocolConfig(cfg)
}

// SetTreasury updates the account receiving the protocol fee share.
func (e *Engine) SetTreasury(caller, treasury crypto.Address) error {
	if err := e.requireAuthority(caller); err != nil {
		return err
	}
	cfg, err := e.protocolConfig()
	if err != nil {
		return err
	}
	cfg.Treasury = treasury
	cfg.Version++
	return e.state.PutProtocolConfig(cfg)
}
