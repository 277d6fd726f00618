package lending

import (
	"math/big"
	"testing"
	"time"

	"rwachain/core/events"
	"rwachain/core/types"
	"rwachain/crypto"
)

const (
	testAsset = "RWA-POOL-1"
	testToken = "RWA-POOL-1-SHARES"
)

func makeAddress(suffix byte) crypto.Address {
	raw := make([]byte, 20)
	raw[len(raw)-1] = suffix
	return crypto.NewAddress(crypto.RWAPrefix, raw)
}

func ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), wad)
}

type eventRecorder struct {
	events []*types.Event
}

func (r *eventRecorder) Emit(evt events.Event) {
	if typed, ok := evt.(interface{ Event() *types.Event }); ok {
		r.events = append(r.events, typed.Event())
	}
}

func (r *eventRecorder) last() *types.Event {
	if len(r.events) == 0 {
		return nil
	}
	return r.events[len(r.events)-1]
}

type testEnv struct {
	engine   *Engine
	state    *MemoryState
	terms    *ManualTermsOracle
	vals     *ManualValuationOracle
	cashflow *ManualCashflowSource
	recorder *eventRecorder
	now      int64

	module     crypto.Address
	vault      crypto.Address
	authority  crypto.Address
	treasury   crypto.Address
	borrower   crypto.Address
	liquidator crypto.Address
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		now:        1_700_000_000,
		module:     makeAddress(0x01),
		vault:      makeAddress(0x02),
		authority:  makeAddress(0x03),
		treasury:   makeAddress(0x04),
		borrower:   makeAddress(0x10),
		liquidator: makeAddress(0x11),
	}
	nowFn := func() int64 { return env.now }

	env.state = NewMemoryState()
	env.terms = NewManualTermsOracle()
	env.vals = NewManualValuationOracle(5 * time.Minute)
	env.vals.SetNowFunc(nowFn)
	env.cashflow = NewManualCashflowSource()
	env.recorder = &eventRecorder{}

	env.engine = NewEngine(env.module, env.vault)
	env.engine.SetState(env.state)
	env.engine.SetNowFunc(nowFn)
	env.engine.SetAuthority(env.authority)
	env.engine.SetEmitter(env.recorder)
	env.engine.SetRiskTermsOracle(env.terms)
	env.engine.SetValuationOracle(env.vals)
	env.engine.RegisterCashflowSource("servicer", env.cashflow)

	if err := env.engine.InitialiseProtocol(&ProtocolConfig{
		LiquidationBonusBps: 10_500,
		ProtocolFeeBps:      200,
		Treasury:            env.treasury,
	}); err != nil {
		t.Fatalf("initialise protocol: %v", err)
	}
	if err := env.engine.SetCollateralToken(env.authority, testAsset, testToken); err != nil {
		t.Fatalf("set collateral token: %v", err)
	}
	return env
}

func (env *testEnv) advance(seconds int64) { env.now += seconds }

func (env *testEnv) fundBase(t *testing.T, addr crypto.Address, amount *big.Int) {
	t.Helper()
	acc, err := env.state.GetAccount(addr)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if acc == nil {
		acc = &types.Account{BalanceBase: big.NewInt(0)}
	}
	acc.BalanceBase = new(big.Int).Set(amount)
	if err := env.state.PutAccount(addr, acc); err != nil {
		t.Fatalf("put account: %v", err)
	}
}

func (env *testEnv) fundCollateral(t *testing.T, addr crypto.Address, amount *big.Int) {
	t.Helper()
	acc, err := env.state.GetAccount(addr)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if acc == nil {
		acc = &types.Account{BalanceBase: big.NewInt(0)}
	}
	acc.SetCollateralBalance(testToken, new(big.Int).Set(amount))
	if err := env.state.PutAccount(addr, acc); err != nil {
		t.Fatalf("put account: %v", err)
	}
}

func (env *testEnv) approve(maxLTVBps, rateBps uint64) {
	env.terms.Set(env.borrower, testAsset, Terms{
		Approved:  true,
		MaxLTVBps: maxLTVBps,
		RateBps:   rateBps,
		Expiry:    env.now + 365*24*3600,
	})
}

func (env *testEnv) position(t *testing.T) *Position {
	t.Helper()
	pos, err := env.state.GetPosition(env.borrower, testAsset)
	if err != nil {
		t.Fatalf("get position: %v", err)
	}
	if pos == nil {
		t.Fatalf("position not found")
	}
	return pos
}

func (env *testEnv) baseBalance(t *testing.T, addr crypto.Address) *big.Int {
	t.Helper()
	acc, err := env.state.GetAccount(addr)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if acc == nil || acc.BalanceBase == nil {
		return big.NewInt(0)
	}
	return acc.BalanceBase
}

func (env *testEnv) collateralBalance(t *testing.T, addr crypto.Address) *big.Int {
	t.Helper()
	acc, err := env.state.GetAccount(addr)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if acc == nil {
		return big.NewInt(0)
	}
	return acc.CollateralBalance(testToken)
}

// depositAndBorrow seeds the canonical boundary setup: NAV 1000, collateral
// 1000 shares, 50% LTV and a zero rate.
func (env *testEnv) depositAndBorrow(t *testing.T, borrow int64) {
	t.Helper()
	env.vals.Set(testAsset, ether(1000), env.now)
	env.approve(5_000, 0)
	env.fundCollateral(t, env.borrower, big.NewInt(1000))
	env.fundBase(t, env.module, big.NewInt(1_000_000))
	if err := env.engine.DepositCollateral(env.borrower, testAsset, big.NewInt(1000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if borrow > 0 {
		if err := env.engine.Borrow(env.borrower, testAsset, big.NewInt(borrow)); err != nil {
			t.Fatalf("borrow: %v", err)
		}
	}
}
