// Package metrics aggregates per-tenant, per-channel run metrics for
// the status endpoint and the app home panel.
package metrics

import (
	"sync"
	"time"
)

// Store provides per-tenant, per-channel metrics aggregation from
// triage run events.
type Store struct {
	mu     sync.RWMutex
	meters map[string]*TenantMeter
}

// TenantMeter tracks per-tenant triage activity.
type TenantMeter struct {
	TenantID        string
	Runs            int64
	Failures        int64
	MessagesScanned int64
	MessagesMatched int64
	ExportBytes     int64
	LastRun         time.Time
	Channels        map[string]*ChannelMeter
}

// ChannelMeter tracks per-channel triage activity within a tenant.
type ChannelMeter struct {
	ChannelID       string
	Runs            int64
	MessagesScanned int64
	MessagesMatched int64
	LastRun         time.Time
}

// RunEvent is one completed or failed triage run.
type RunEvent struct {
	Scanned     int
	Matched     int
	ExportBytes int
	WindowHours int
	Duration    time.Duration
	Failed      bool
	Timestamp   time.Time
}

// NewStore creates a new metrics store.
func NewStore() *Store {
	return &Store{
		meters: make(map[string]*TenantMeter),
	}
}

// Record adds a run event to the store.
func (s *Store) Record(tenantID, channelID string, event RunEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	meter, ok := s.meters[tenantID]
	if !ok {
		meter = &TenantMeter{
			TenantID: tenantID,
			Channels: make(map[string]*ChannelMeter),
		}
		s.meters[tenantID] = meter
	}

	meter.Runs++
	if event.Failed {
		meter.Failures++
	}
	meter.MessagesScanned += int64(event.Scanned)
	meter.MessagesMatched += int64(event.Matched)
	meter.ExportBytes += int64(event.ExportBytes)
	if event.Timestamp.After(meter.LastRun) {
		meter.LastRun = event.Timestamp
	}

	ch, ok := meter.Channels[channelID]
	if !ok {
		ch = &ChannelMeter{ChannelID: channelID}
		meter.Channels[channelID] = ch
	}
	ch.Runs++
	ch.MessagesScanned += int64(event.Scanned)
	ch.MessagesMatched += int64(event.Matched)
	if event.Timestamp.After(ch.LastRun) {
		ch.LastRun = event.Timestamp
	}
}

// Get returns a detached copy of one tenant's metrics. Record keeps
// mutating the live meter, so callers get a copy they can read and
// encode without holding the store's lock.
func (s *Store) Get(tenantID string) (*TenantMeter, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.meters[tenantID]
	if !ok {
		return nil, false
	}
	return m.clone(), true
}

// Snapshot returns detached copies of all tenant meters.
func (s *Store) Snapshot() map[string]*TenantMeter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make(map[string]*TenantMeter, len(s.meters))
	for id, m := range s.meters {
		result[id] = m.clone()
	}
	return result
}

// clone deep-copies a meter, including the channel map. Callers must
// hold the store's lock.
func (m *TenantMeter) clone() *TenantMeter {
	c := *m
	c.Channels = make(map[string]*ChannelMeter, len(m.Channels))
	for id, ch := range m.Channels {
		chCopy := *ch
		c.Channels[id] = &chCopy
	}
	return &c
}
