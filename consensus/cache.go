// elStrain: strain-level phasing of assembly graphs.
// Copyright (c) 2026 imec vzw.

// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version, and Additional Terms
// (see below).

// This program is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.

// You should have received a copy of the GNU Affero General Public
// License and Additional Terms along with this program. If not, see
// <https://github.com/ExaScience/elstrain/blob/master/LICENSE.txt>.

package consensus

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/biogo/hts/sam"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"

	"github.com/exascience/elstrain/intervals"
)

// An AlignmentFetcher returns the alignments to unitig of the named
// reads.
type AlignmentFetcher interface {
	Fetch(unitig string, names []string) ([]*sam.Record, error)
}

// A ReferenceProvider returns the sequence of a unitig.
type ReferenceProvider interface {
	Sequence(unitig string) ([]byte, bool)
}

// StaticReferences is a ReferenceProvider over a fixed set of
// sequences.
type StaticReferences map[string][]byte

// Sequence implements ReferenceProvider.
func (refs StaticReferences) Sequence(unitig string) ([]byte, bool) {
	seq, ok := refs[unitig]
	return seq, ok
}

// Job is one polishing task: the reads of a cluster, aligned to the
// unitig, and the reference sequence [Start, Start+len(Reference)) of
// that unitig.
type Job struct {
	Name      string
	Unitig    string
	Start     int
	Reference []byte
	Records   []*sam.Record
}

// A Polisher computes a consensus sequence for a Job.
type Polisher interface {
	Polish(ctx context.Context, job Job) ([]byte, error)
}

// CacheStats reports cache usage.
type CacheStats struct {
	Entries  int
	Hits     int64
	Misses   int64
	Failures int64
}

type cacheMetrics struct {
	hits, misses, failures prometheus.Counter
	duration               prometheus.Histogram
}

func newCacheMetrics() *cacheMetrics {
	return &cacheMetrics{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "elstrain_consensus_cache_hits_total",
			Help: "Consensus lookups served from the cache",
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "elstrain_consensus_cache_misses_total",
			Help: "Consensus lookups that required polishing",
		}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "elstrain_consensus_polish_failures_total",
			Help: "Polisher invocations that produced no consensus",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "elstrain_consensus_polish_duration_seconds",
			Help:    "Polisher invocation duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 14),
		}),
	}
}

// Cache memoizes consensus records per Key. At most one computation
// per key is in flight; concurrent callers for the same key share its
// result. Failed computations are cached as well.
type Cache struct {
	mu      sync.Mutex
	records map[Key]*Record
	flight  singleflight.Group

	fetchMu  sync.Mutex
	fetcher  AlignmentFetcher
	refs     ReferenceProvider
	polisher Polisher
	logger   *slog.Logger

	hits, misses, failures atomic.Int64
	metrics                *cacheMetrics
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithLogger sets the logger of the cache.
func WithLogger(logger *slog.Logger) CacheOption {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRegisterer registers the cache metrics.
func WithRegisterer(registerer prometheus.Registerer) CacheOption {
	return func(c *Cache) {
		registerer.MustRegister(c.metrics.hits, c.metrics.misses, c.metrics.failures, c.metrics.duration)
	}
}

// WithRecords seeds the cache, typically from a checkpoint.
func WithRecords(records map[Key]*Record) CacheOption {
	return func(c *Cache) {
		for key, record := range records {
			c.records[key] = record
		}
	}
}

// NewCache creates a consensus cache.
func NewCache(fetcher AlignmentFetcher, refs ReferenceProvider, polisher Polisher, opts ...CacheOption) *Cache {
	c := &Cache{
		records:  make(map[Key]*Record),
		fetcher:  fetcher,
		refs:     refs,
		polisher: polisher,
		logger:   slog.Default(),
		metrics:  newCacheMetrics(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) lookup(key Key) (*Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	record, ok := c.records[key]
	return record, ok
}

// Get returns the consensus of the cluster identified by key, with the
// given member reads, computing it on first use. Get never fails: a
// consensus that cannot be computed is returned, and cached, with
// status Failed and an empty sequence.
func (c *Cache) Get(ctx context.Context, key Key, members []string) *Record {
	if record, ok := c.lookup(key); ok {
		c.hits.Add(1)
		c.metrics.hits.Inc()
		return record
	}
	result, _, _ := c.flight.Do(key.String(), func() (interface{}, error) {
		if record, ok := c.lookup(key); ok {
			return record, nil
		}
		c.misses.Add(1)
		c.metrics.misses.Inc()
		record := c.compute(ctx, key, members)
		if record.Status == Failed {
			c.failures.Add(1)
			c.metrics.failures.Inc()
		}
		c.mu.Lock()
		c.records[key] = record
		c.mu.Unlock()
		return record, nil
	})
	return result.(*Record)
}

func (c *Cache) fetch(unitig string, members []string) ([]*sam.Record, error) {
	c.fetchMu.Lock()
	defer c.fetchMu.Unlock()
	return c.fetcher.Fetch(unitig, members)
}

func (c *Cache) compute(ctx context.Context, key Key, members []string) *Record {
	record := &Record{Status: Failed}
	alignments, err := c.fetch(key.Unitig, members)
	if err != nil {
		c.logger.Warn("fetching cluster reads failed", "key", key.String(), "error", err)
		return record
	}
	if len(alignments) == 0 {
		c.logger.Warn("cluster has no alignments", "key", key.String(), "reads", len(members))
		return record
	}
	record.Start, record.End = alignments[0].Start(), alignments[0].End()
	record.ReadLimits = make([]intervals.Interval, 0, len(alignments))
	for _, rec := range alignments {
		start, end := rec.Start(), rec.End()
		record.Start = min(record.Start, start)
		record.End = max(record.End, end)
		record.ReadLimits = append(record.ReadLimits, intervals.Interval{Start: start, End: end})
	}
	reference, ok := c.refs.Sequence(key.Unitig)
	if !ok || record.End > len(reference) || record.Start < 0 {
		c.logger.Warn("no reference sequence for cluster span", "key", key.String(), "start", record.Start, "end", record.End)
		return record
	}
	job := Job{
		Name:      key.String(),
		Unitig:    key.Unitig,
		Start:     record.Start,
		Reference: reference[record.Start:record.End],
		Records:   alignments,
	}
	begin := time.Now()
	sequence, err := c.polisher.Polish(ctx, job)
	c.metrics.duration.Observe(time.Since(begin).Seconds())
	if err != nil || len(sequence) == 0 {
		c.logger.Warn("polishing failed, using empty consensus", "key", key.String(), "error", err)
		return record
	}
	record.Sequence = sequence
	record.Status = Polished
	c.logger.Debug("polished consensus", "key", key.String(), "start", record.Start, "end", record.End, "length", len(sequence))
	return record
}

// Records returns a snapshot of all cached records.
func (c *Cache) Records() map[Key]*Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	snapshot := make(map[Key]*Record, len(c.records))
	for key, record := range c.records {
		snapshot[key] = record
	}
	return snapshot
}

// Stats reports cache usage.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	entries := len(c.records)
	c.mu.Unlock()
	return CacheStats{
		Entries:  entries,
		Hits:     c.hits.Load(),
		Misses:   c.misses.Load(),
		Failures: c.failures.Load(),
	}
}
