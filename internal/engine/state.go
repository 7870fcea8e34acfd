package engine

import (
	"gatebot/internal/models"
	"sync"
)

// MarketState последняя свеча по каждой паре интервал+контракт (ключ "1m_BTC_USDT").
type MarketState struct {
	mu      sync.RWMutex
	candles map[string]models.Candlestick
}

func NewMarketState() *MarketState {
	return &MarketState{candles: make(map[string]models.Candlestick)}
}

// Update отбрасывает свечи старше уже известной. Свеча с тем же временем заменяет прежнюю.
func (s *MarketState) Update(c models.Candlestick) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.candles[c.N]; ok && c.T < prev.T {
		return false
	}
	s.candles[c.N] = c
	return true
}

func (s *MarketState) Last(interval, contract string) (models.Candlestick, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.candles[interval+"_"+contract]
	return c, ok
}

func (s *MarketState) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.candles)
}
