package lending

import (
	"crypto/sha256"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"sync"
	"time"

	"rwachain/crypto"
)

// Terms captures the per-account-per-asset underwriting decision produced by
// the off-chain risk desk. RateBps is read at accrual time, so a refreshed
// report changes future interest immediately.
type Terms struct {
	Approved  bool
	MaxLTVBps uint64
	RateBps   uint64
	Expiry    int64
}

// CurrentlyApproved reports whether the terms authorise borrowing at the
// supplied time. Expired terms are equivalent to unapproved ones.
func (t Terms) CurrentlyApproved(now int64) bool {
	return t.Approved && t.Expiry > now
}

// NAVData is a single valuation report for an asset's collateral share.
type NAVData struct {
	// NAV is the net asset value per collateral share in wad fixed point.
	NAV *big.Int
	// UpdatedAt is the unix timestamp of the upstream report.
	UpdatedAt int64
	// SourceHash fingerprints the signed report the value was derived from.
	SourceHash [32]byte
}

// RiskTermsOracle resolves underwriting terms for an (account, asset) pair.
type RiskTermsOracle interface {
	Terms(account crypto.Address, asset string) (Terms, error)
}

// ValuationOracle resolves the latest NAV report for an asset along with a
// freshness verdict. Engine operations never fall back to a cached value when
// IsFresh reports false.
type ValuationOracle interface {
	NAVData(asset string) (NAVData, error)
	IsFresh(asset string) bool
}

// CashflowHealthSource reports the coarse performance classification used to
// cap the effective LTV. Sources are optional per asset and may fail; the
// engine fails open to a 100% cap in both cases.
type CashflowHealthSource interface {
	Health(asset string) (CashflowStatus, error)
}

// ManualTermsOracle is an in-memory terms oracle used for tests and manual
// overrides during incident response.
type ManualTermsOracle struct {
	mu    sync.RWMutex
	terms map[string]Terms
}

// NewManualTermsOracle constructs an empty manual terms oracle.
func NewManualTermsOracle() *ManualTermsOracle {
	return &ManualTermsOracle{terms: make(map[string]Terms)}
}

func termsKey(account crypto.Address, asset string) string {
	return string(account.Bytes()) + "|" + normaliseAsset(asset)
}

// Set stores the terms for the supplied pair.
func (o *ManualTermsOracle) Set(account crypto.Address, asset string, terms Terms) {
	if o == nil {
		return
	}
	o.mu.Lock()
	o.terms[termsKey(account, asset)] = terms
	o.mu.Unlock()
}

// Terms returns the stored terms. Unknown pairs resolve to zero-value terms,
// i.e. unapproved with a zero rate.
func (o *ManualTermsOracle) Terms(account crypto.Address, asset string) (Terms, error) {
	if o == nil {
		return Terms{}, fmt.Errorf("manual terms oracle not configured")
	}
	o.mu.RLock()
	stored := o.terms[termsKey(account, asset)]
	o.mu.RUnlock()
	return stored, nil
}

// ManualValuationOracle is an in-memory valuation oracle with a configurable
// freshness window.
type ManualValuationOracle struct {
	mu     sync.RWMutex
	navs   map[string]NAVData
	maxAge time.Duration
	nowFn  func() int64
}

// NewManualValuationOracle constructs a manual valuation oracle enforcing the
// supplied freshness window. A zero maxAge disables staleness checks.
func NewManualValuationOracle(maxAge time.Duration) *ManualValuationOracle {
	return &ManualValuationOracle{
		navs:   make(map[string]NAVData),
		maxAge: maxAge,
		nowFn:  func() int64 { return time.Now().Unix() },
	}
}

// SetNowFunc overrides the time source used for freshness checks. Primarily
// intended for tests to provide deterministic timestamps.
func (o *ManualValuationOracle) SetNowFunc(now func() int64) {
	if o == nil || now == nil {
		return
	}
	o.mu.Lock()
	o.nowFn = now
	o.mu.Unlock()
}

// Set records a NAV report for the asset. The source hash is computed over
// the canonical report payload so downstream consumers can audit provenance.
func (o *ManualValuationOracle) Set(asset string, nav *big.Int, updatedAt int64) {
	if o == nil || nav == nil {
		return
	}
	key := normaliseAsset(asset)
	if key == "" {
		return
	}
	payload := key + "|nav=" + nav.String() + "|t=" + strconv.FormatInt(updatedAt, 10)
	o.mu.Lock()
	o.navs[key] = NAVData{
		NAV:        new(big.Int).Set(nav),
		UpdatedAt:  updatedAt,
		SourceHash: sha256.Sum256([]byte(payload)),
	}
	o.mu.Unlock()
}

// NAVData returns the stored report for the asset.
func (o *ManualValuationOracle) NAVData(asset string) (NAVData, error) {
	if o == nil {
		return NAVData{}, fmt.Errorf("manual valuation oracle not configured")
	}
	o.mu.RLock()
	stored, ok := o.navs[normaliseAsset(asset)]
	o.mu.RUnlock()
	if !ok {
		return NAVData{}, fmt.Errorf("manual valuation oracle: no report for %s", asset)
	}
	clone := stored
	clone.NAV = new(big.Int).Set(stored.NAV)
	return clone, nil
}

// IsFresh reports whether the stored report is within the freshness window.
// Assets without any report are never fresh.
func (o *ManualValuationOracle) IsFresh(asset string) bool {
	if o == nil {
		return false
	}
	o.mu.RLock()
	stored, ok := o.navs[normaliseAsset(asset)]
	maxAge := o.maxAge
	now := o.nowFn()
	o.mu.RUnlock()
	if !ok {
		return false
	}
	if maxAge <= 0 {
		return true
	}
	return stored.UpdatedAt >= now-int64(maxAge/time.Second)
}

// ManualCashflowSource is an in-memory cashflow health source. Assets without
// a recorded status report an error so the fail-open path is exercised the
// same way a broken upstream would.
type ManualCashflowSource struct {
	mu       sync.RWMutex
	statuses map[string]CashflowStatus
	failing  bool
}

// NewManualCashflowSource constructs an empty manual cashflow source.
func NewManualCashflowSource() *ManualCashflowSource {
	return &ManualCashflowSource{statuses: make(map[string]CashflowStatus)}
}

// Set records the classification for the asset.
func (s *ManualCashflowSource) Set(asset string, status CashflowStatus) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.statuses[normaliseAsset(asset)] = status
	s.mu.Unlock()
}

// SetFailing forces all lookups to error, simulating an upstream outage.
func (s *ManualCashflowSource) SetFailing(failing bool) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.failing = failing
	s.mu.Unlock()
}

// Health returns the recorded classification for the asset.
func (s *ManualCashflowSource) Health(asset string) (CashflowStatus, error) {
	if s == nil {
		return CashflowPerforming, fmt.Errorf("manual cashflow source not configured")
	}
	s.mu.RLock()
	status, ok := s.statuses[normaliseAsset(asset)]
	failing := s.failing
	s.mu.RUnlock()
	if failing {
		return CashflowPerforming, fmt.Errorf("manual cashflow source: upstream unavailable")
	}
	if !ok {
		return CashflowPerforming, fmt.Errorf("manual cashflow source: no status for %s", asset)
	}
	return status, nil
}

func normaliseAsset(asset string) string {
	return strings.ToUpper(strings.TrimSpace(asset))
}
