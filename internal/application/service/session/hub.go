package session

import (
	"sync"

	"orderflow/internal/domain/entity/instruments"
	"orderflow/internal/domain/entity/marketdata"
)

// Hub fans live trades out to the sessions observing their symbol.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]map[*RollingWindowSession]struct{}
}

func NewHub() *Hub {
	return &Hub{sessions: make(map[string]map[*RollingWindowSession]struct{})}
}

// Subscribe registers s for its symbol. The returned func removes it again.
func (h *Hub) Subscribe(s *RollingWindowSession) func() {
	symbol := s.Symbol()
	h.mu.Lock()
	set, ok := h.sessions[symbol]
	if !ok {
		set = make(map[*RollingWindowSession]struct{})
		h.sessions[symbol] = set
	}
	set[s] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.sessions[symbol], s)
			if len(h.sessions[symbol]) == 0 {
				delete(h.sessions, symbol)
			}
		})
	}
}

// Publish appends trades to every session of their symbol.
func (h *Hub) Publish(trades ...marketdata.Trade) {
	if len(trades) == 0 {
		return
	}
	bySymbol := make(map[string][]marketdata.Trade)
	for _, t := range trades {
		symbol := instruments.NormalizeSymbol(t.Symbol)
		bySymbol[symbol] = append(bySymbol[symbol], t)
	}

	h.mu.RLock()
	targets := make(map[*RollingWindowSession][]marketdata.Trade)
	for symbol, batch := range bySymbol {
		for s := range h.sessions[symbol] {
			targets[s] = batch
		}
	}
	h.mu.RUnlock()

	for s, batch := range targets {
		s.Append(batch...)
	}
}

// Count returns the number of subscribed sessions.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.sessions {
		n += len(set)
	}
	return n
}

// Symbols lists symbols with at least one session.
func (h *Hub) Symbols() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.sessions))
	for symbol := range h.sessions {
		out = append(out, symbol)
	}
	return out
}
