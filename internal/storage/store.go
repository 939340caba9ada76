// Package storage provides persistence for events and payouts, either
// in-memory or SQLite-backed.
package storage

import (
	"sort"
	"sync"

	"giveaway/internal/models"
)

// IndexedEvent pairs an event with its ledger id.
type IndexedEvent struct {
	ID    uint64        `json:"event_id"`
	Event *models.Event `json:"event"`
}

// IndexedPayout pairs a payout with its slot index within an event.
type IndexedPayout struct {
	Index  uint64         `json:"index"`
	Payout *models.Payout `json:"payout"`
}

// Store persists events and their payout slots. Event ids are dense and
// assigned by the caller in insertion order; payout indexes are dense within
// an event. Implementations return copies, never aliased internals.
type Store interface {
	PutEvent(id uint64, ev *models.Event) error
	GetEvent(id uint64) (*models.Event, bool, error)
	EventCount() (uint64, error)
	ListEvents(fromIndex, limit uint64) ([]IndexedEvent, error)

	PutPayout(eventID, index uint64, p *models.Payout) error
	GetPayout(eventID, index uint64) (*models.Payout, bool, error)
	PayoutCount(eventID uint64) (uint64, error)
	ListPayouts(eventID, fromIndex, limit uint64) ([]IndexedPayout, error)
	DeletePayouts(eventID uint64) error

	Close() error
}

type payoutKey struct {
	eventID uint64
	index   uint64
}

// Memory is a Store backed by maps, guarded by a RWMutex.
type Memory struct {
	mu      sync.RWMutex
	events  map[uint64]*models.Event
	payouts map[payoutKey]*models.Payout
	counts  map[uint64]uint64 // payouts per event
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		events:  make(map[uint64]*models.Event),
		payouts: make(map[payoutKey]*models.Payout),
		counts:  make(map[uint64]uint64),
	}
}

func (m *Memory) PutEvent(id uint64, ev *models.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[id] = cloneEvent(ev)
	return nil
}

func (m *Memory) GetEvent(id uint64) (*models.Event, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ev, ok := m.events[id]
	if !ok {
		return nil, false, nil
	}
	return cloneEvent(ev), true, nil
}

func (m *Memory) EventCount() (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return uint64(len(m.events)), nil
}

func (m *Memory) ListEvents(fromIndex, limit uint64) ([]IndexedEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := uint64(len(m.events))
	if fromIndex >= total {
		return nil, nil
	}
	// Clamp before adding so a huge limit cannot wrap past fromIndex.
	end := total
	if limit < total-fromIndex {
		end = fromIndex + limit
	}
	var out []IndexedEvent
	for id := fromIndex; id < end; id++ {
		if ev, ok := m.events[id]; ok {
			out = append(out, IndexedEvent{ID: id, Event: cloneEvent(ev)})
		}
	}
	return out, nil
}

func (m *Memory) PutPayout(eventID, index uint64, p *models.Payout) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := payoutKey{eventID, index}
	if _, exists := m.payouts[key]; !exists {
		m.counts[eventID]++
	}
	m.payouts[key] = clonePayout(p)
	return nil
}

func (m *Memory) GetPayout(eventID, index uint64) (*models.Payout, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.payouts[payoutKey{eventID, index}]
	if !ok {
		return nil, false, nil
	}
	return clonePayout(p), true, nil
}

func (m *Memory) PayoutCount(eventID uint64) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counts[eventID], nil
}

func (m *Memory) ListPayouts(eventID, fromIndex, limit uint64) ([]IndexedPayout, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := m.counts[eventID]
	if fromIndex >= total {
		return nil, nil
	}
	end := total
	if limit < total-fromIndex {
		end = fromIndex + limit
	}
	var out []IndexedPayout
	for idx := fromIndex; idx < end; idx++ {
		if p, ok := m.payouts[payoutKey{eventID, idx}]; ok {
			out = append(out, IndexedPayout{Index: idx, Payout: clonePayout(p)})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

func (m *Memory) DeletePayouts(eventID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for idx := uint64(0); idx < m.counts[eventID]; idx++ {
		delete(m.payouts, payoutKey{eventID, idx})
	}
	delete(m.counts, eventID)
	return nil
}

func (m *Memory) Close() error {
	return nil
}

func cloneEvent(ev *models.Event) *models.Event {
	cp := *ev
	cp.Rewards = append([]models.Balance(nil), ev.Rewards...)
	cp.Participants = append([]string(nil), ev.Participants...)
	if ev.RewardsTokenID != nil {
		token := *ev.RewardsTokenID
		cp.RewardsTokenID = &token
	}
	if ev.FinalizedTimestamp != nil {
		ts := *ev.FinalizedTimestamp
		cp.FinalizedTimestamp = &ts
	}
	return &cp
}

func clonePayout(p *models.Payout) *models.Payout {
	cp := *p
	if p.TokenID != nil {
		token := *p.TokenID
		cp.TokenID = &token
	}
	return &cp
}
