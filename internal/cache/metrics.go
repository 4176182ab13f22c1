package cache

import (
	"sync/atomic"
	"time"
)

type Tier int

const (
	TierMemory Tier = iota
	TierRedis
)

func (t Tier) String() string {
	if t == TierRedis {
		return "l2"
	}
	return "l1"
}

type tierCounters struct {
	hits    atomic.Int64
	misses  atomic.Int64
	errors  atomic.Int64
	skipped atomic.Int64
}

// TierStats counts lookups answered (or not) by one tier. Skipped counts
// Redis calls the circuit breaker refused.
type TierStats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Errors  int64   `json:"errors"`
	Skipped int64   `json:"skipped"`
	HitRate float64 `json:"hit_rate"`
}

// MetricsSnapshot is a point-in-time copy of CacheMetrics. Hits and Misses
// are end-to-end: a lookup missing L1 but found in L2 is one hit.
type MetricsSnapshot struct {
	L1      TierStats `json:"l1"`
	L2      TierStats `json:"l2"`
	Hits    int64     `json:"hits"`
	Misses  int64     `json:"misses"`
	HitRate float64   `json:"hit_rate"`
	Sets    int64     `json:"sets"`
	Deletes int64     `json:"deletes"`
	Since   time.Time `json:"since"`
}

type CacheMetrics struct {
	tiers   [2]tierCounters
	lookups atomic.Int64
	sets    atomic.Int64
	deletes atomic.Int64
	since   atomic.Int64
}

func NewCacheMetrics() *CacheMetrics {
	m := &CacheMetrics{}
	m.since.Store(time.Now().UnixNano())
	return m
}

func (m *CacheMetrics) RecordLookup()         { m.lookups.Add(1) }
func (m *CacheMetrics) RecordHit(tier Tier)   { m.tiers[tier].hits.Add(1) }
func (m *CacheMetrics) RecordMiss(tier Tier)  { m.tiers[tier].misses.Add(1) }
func (m *CacheMetrics) RecordError(tier Tier) { m.tiers[tier].errors.Add(1) }
func (m *CacheMetrics) RecordSkip(tier Tier)  { m.tiers[tier].skipped.Add(1) }
func (m *CacheMetrics) RecordSet()            { m.sets.Add(1) }
func (m *CacheMetrics) RecordDelete()         { m.deletes.Add(1) }

func (m *CacheMetrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		L1:      m.tierStats(TierMemory),
		L2:      m.tierStats(TierRedis),
		Sets:    m.sets.Load(),
		Deletes: m.deletes.Load(),
		Since:   time.Unix(0, m.since.Load()),
	}
	lookups := m.lookups.Load()
	snap.Hits = snap.L1.Hits + snap.L2.Hits
	snap.Misses = lookups - snap.Hits
	snap.HitRate = ratio(snap.Hits, lookups)
	return snap
}

func (m *CacheMetrics) tierStats(tier Tier) TierStats {
	c := &m.tiers[tier]
	s := TierStats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Errors:  c.errors.Load(),
		Skipped: c.skipped.Load(),
	}
	s.HitRate = ratio(s.Hits, s.Hits+s.Misses)
	return s
}

func (m *CacheMetrics) Reset() {
	for i := range m.tiers {
		m.tiers[i].hits.Store(0)
		m.tiers[i].misses.Store(0)
		m.tiers[i].errors.Store(0)
		m.tiers[i].skipped.Store(0)
	}
	m.lookups.Store(0)
	m.sets.Store(0)
	m.deletes.Store(0)
	m.since.Store(time.Now().UnixNano())
}

// ratio returns a percentage, 0 when there is nothing to divide.
func ratio(part, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}
