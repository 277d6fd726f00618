package lending

import (
	"math/big"
	"sync"

	"rwachain/core/types"
	"rwachain/crypto"
)

// MemoryState is an in-memory engineState implementation backing tests,
// tooling and single-process deployments.
type MemoryState struct {
	mu        sync.RWMutex
	positions map[string]*Position
	assets    map[string]*AssetConfig
	protocol  *ProtocolConfig
	accounts  map[string]*types.Account
}

// NewMemoryState constructs an empty in-memory state.
func NewMemoryState() *MemoryState {
	return &MemoryState{
		positions: make(map[string]*Position),
		assets:    make(map[string]*AssetConfig),
		accounts:  make(map[string]*types.Account),
	}
}

func positionKey(account crypto.Address, asset string) string {
	return string(account.Bytes()) + "|" + normaliseAsset(asset)
}

func (s *MemoryState) GetPosition(account crypto.Address, asset string) (*Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if pos, ok := s.positions[positionKey(account, asset)]; ok {
		return pos.Clone(), nil
	}
	return nil, nil
}

func (s *MemoryState) PutPosition(position *Position) error {
	if position == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions[positionKey(position.Account, position.Asset)] = position.Clone()
	return nil
}

func (s *MemoryState) GetAssetConfig(asset string) (*AssetConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if cfg, ok := s.assets[normaliseAsset(asset)]; ok {
		return cfg.Clone(), nil
	}
	return nil, nil
}

func (s *MemoryState) PutAssetConfig(asset string, cfg *AssetConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assets[normaliseAsset(asset)] = cfg.Clone()
	return nil
}

func (s *MemoryState) GetProtocolConfig() (*ProtocolConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.protocol.Clone(), nil
}

func (s *MemoryState) PutProtocolConfig(cfg *ProtocolConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.protocol = cfg.Clone()
	return nil
}

func (s *MemoryState) GetAccount(addr crypto.Address) (*types.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if acc, ok := s.accounts[string(addr.Bytes())]; ok {
		return cloneAccount(acc), nil
	}
	return nil, nil
}

func (s *MemoryState) PutAccount(addr crypto.Address, account *types.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[string(addr.Bytes())] = cloneAccount(account)
	return nil
}

func cloneAccount(acc *types.Account) *types.Account {
	if acc == nil {
		return nil
	}
	clone := &types.Account{Nonce: acc.Nonce, BalanceBase: cloneBigInt(acc.BalanceBase)}
	if acc.Collateral != nil {
		clone.Collateral = make(map[string]*big.Int, len(acc.Collateral))
		for token, balance := range acc.Collateral {
			clone.Collateral[token] = cloneBigInt(balance)
		}
	}
	return clone
}
