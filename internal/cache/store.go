package cache

import (
	"container/list"
	"sort"
	"sync"
	"time"

	"github.com/ferro-labs/ai-shield/internal/logging"
	"github.com/ferro-labs/ai-shield/internal/metrics"
)

// Options configures a Store. Zero values fall back to the documented
// defaults.
type Options struct {
	// MaxEntries bounds the number of live entries (default 100). Inserting
	// a new key at capacity first evicts the least-recently-accessed entry.
	MaxEntries int
	// DefaultTTL applies to Set calls with ttl <= 0 (default 1h).
	DefaultTTL time.Duration
	// SweepInterval is the cadence of the background expiry sweep
	// (default 10m).
	SweepInterval time.Duration
	// Persistence is the durable side channel. nil disables durability.
	Persistence Persistence
}

// persistOp is one queued durable-storage operation. A single worker drains
// the queue in submission order, so a Delete or Clear issued after a Set can
// never be overtaken by that Set's write.
type persistOp struct {
	kind persistKind
	key  string
	rec  Record
	blob []byte
}

type persistKind int

const (
	persistSave persistKind = iota
	persistDelete
	persistClear
)

// Store is a thread-safe LRU cache with per-entry TTL expiration and an
// asynchronous durable-persistence side channel. Construct with New and
// release with Close.
type Store struct {
	mu        sync.Mutex
	opts      Options
	items     map[string]*list.Element
	evictList *list.List // front = most recently accessed

	persistCh   chan persistOp
	persistDone chan struct{}
	stop        chan struct{}
	done        chan struct{}
}

// New creates a Store, loads any surviving persisted entries, and starts the
// background expiry sweep.
func New(opts Options) *Store {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = 100
	}
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = time.Hour
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = 10 * time.Minute
	}

	s := &Store{
		opts:        opts,
		items:       make(map[string]*list.Element),
		evictList:   list.New(),
		persistCh:   make(chan persistOp, 64),
		persistDone: make(chan struct{}),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
	s.loadPersisted()
	go s.persistLoop()
	go s.sweepLoop()
	return s
}

// Get returns the cached value for key. It returns false if the key is
// absent or expired; an expired entry is removed as a side effect. A hit
// increments the entry's access count and refreshes its recency.
func (s *Store) Get(key string) (Value, bool) {
	s.mu.Lock()
	elem, ok := s.items[key]
	if !ok {
		s.mu.Unlock()
		return Value{}, false
	}

	entry := elem.Value.(*Entry)
	now := time.Now()
	if entry.Expired(now) {
		s.removeElement(elem)
		s.mu.Unlock()
		metrics.CacheEntries.Set(float64(s.Len()))
		metrics.CacheEvictions.WithLabelValues("expired").Inc()
		s.persistDelete(key)
		return Value{}, false
	}

	entry.AccessCount++
	entry.LastAccessed = now
	s.evictList.MoveToFront(elem)
	v := entry.Value
	s.mu.Unlock()
	return v, true
}

// Set inserts or overwrites the entry for key. ttl <= 0 selects the
// configured default TTL. At capacity, inserting a new key first evicts the
// least-recently-accessed entry. The in-memory update is synchronous; the
// durable write happens asynchronously and its failure is logged, never
// returned.
func (s *Store) Set(key string, v Value, ttl time.Duration) {
	if ttl <= 0 {
		ttl = s.opts.DefaultTTL
	}
	now := time.Now()

	s.mu.Lock()
	var entry *Entry
	if elem, ok := s.items[key]; ok {
		entry = elem.Value.(*Entry)
		entry.Value = v
		entry.CreatedAt = now
		entry.TTL = ttl
		entry.AccessCount = 1
		entry.LastAccessed = now
		s.evictList.MoveToFront(elem)
	} else {
		if s.evictList.Len() >= s.opts.MaxEntries {
			s.removeOldest()
			metrics.CacheEvictions.WithLabelValues("lru").Inc()
		}
		entry = &Entry{
			Key:          key,
			Value:        v,
			CreatedAt:    now,
			TTL:          ttl,
			AccessCount:  1,
			LastAccessed: now,
		}
		s.items[key] = s.evictList.PushFront(entry)
	}
	rec := recordOf(entry)
	blob := entry.Value.Blob
	s.mu.Unlock()

	metrics.CacheEntries.Set(float64(s.Len()))
	s.persistSave(rec, blob)
}

// Delete removes the entry for key from memory and durable storage.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	if elem, ok := s.items[key]; ok {
		s.removeElement(elem)
	}
	s.mu.Unlock()
	metrics.CacheEntries.Set(float64(s.Len()))
	s.persistDelete(key)
}

// Clear removes all entries from memory and durable storage.
func (s *Store) Clear() {
	s.mu.Lock()
	s.items = make(map[string]*list.Element)
	s.evictList.Init()
	s.mu.Unlock()
	metrics.CacheEntries.Set(0)
	s.enqueuePersist(persistOp{kind: persistClear})
}

// Len returns the number of live entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evictList.Len()
}

// Stats derives aggregate figures from the live entries. Hit rate counts
// every access beyond an entry's first (the Set) as a hit.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var st Stats
	st.Count = s.evictList.Len()

	var totalAccess, totalHits int64
	var oldest, newest time.Time
	for elem := s.evictList.Front(); elem != nil; elem = elem.Next() {
		entry := elem.Value.(*Entry)
		totalAccess += entry.AccessCount
		if entry.AccessCount > 1 {
			totalHits += entry.AccessCount - 1
		}
		st.TotalBytes += entry.Value.Size()
		if oldest.IsZero() || entry.CreatedAt.Before(oldest) {
			oldest = entry.CreatedAt
		}
		if newest.IsZero() || entry.CreatedAt.After(newest) {
			newest = entry.CreatedAt
		}
	}
	if totalAccess > 0 {
		st.HitRate = float64(totalHits) / float64(totalAccess) * 100
	}
	if !oldest.IsZero() {
		st.OldestAge = int64(now.Sub(oldest).Seconds())
	}
	if !newest.IsZero() {
		st.NewestAge = int64(now.Sub(newest).Seconds())
	}
	return st
}

// Close stops the background sweep, drains the persistence queue, and closes
// the persistence backend.
func (s *Store) Close() {
	close(s.stop)
	<-s.done
	close(s.persistCh)
	<-s.persistDone
	if s.opts.Persistence != nil {
		if err := s.opts.Persistence.Close(); err != nil {
			logging.Logger.Warn("cache: close persistence", "error", err)
		}
	}
}

// sweepLoop proactively removes expired entries on a fixed interval,
// independent of request traffic.
func (s *Store) sweepLoop() {
	defer close(s.done)
	ticker := time.NewTicker(s.opts.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stop:
			return
		}
	}
}

func (s *Store) sweep() {
	now := time.Now()
	var expired []string

	s.mu.Lock()
	for elem := s.evictList.Front(); elem != nil; {
		next := elem.Next()
		entry := elem.Value.(*Entry)
		if entry.Expired(now) {
			expired = append(expired, entry.Key)
			s.removeElement(elem)
		}
		elem = next
	}
	s.mu.Unlock()

	if len(expired) == 0 {
		return
	}
	metrics.CacheEntries.Set(float64(s.Len()))
	metrics.CacheEvictions.WithLabelValues("expired").Add(float64(len(expired)))
	for _, key := range expired {
		s.persistDelete(key)
	}
	logging.Logger.Info("cache: swept expired entries", "count", len(expired))
}

// loadPersisted scans durable storage, discards expired records, and
// rebuilds the LRU in last-accessed order.
func (s *Store) loadPersisted() {
	if s.opts.Persistence == nil {
		return
	}
	recs, err := s.opts.Persistence.ListAll()
	if err != nil {
		logging.Logger.Warn("cache: scan persisted entries", "error", err)
		return
	}

	now := time.Now()
	live := recs[:0]
	for _, rec := range recs {
		if rec.Expired(now) {
			if err := s.opts.Persistence.Delete(rec.Key); err != nil {
				logging.Logger.Warn("cache: delete expired record",
					"key_prefix", keyPrefix(rec.Key), "error", err)
			}
			continue
		}
		live = append(live, rec)
	}

	// Most recent access first; entries are appended back-to-front so the
	// most recently accessed record sits at the front of the eviction list.
	// Anything beyond capacity is simply not loaded.
	sort.Slice(live, func(i, j int) bool {
		return live[i].LastAccessed.After(live[j].LastAccessed)
	})
	if len(live) > s.opts.MaxEntries {
		live = live[:s.opts.MaxEntries]
	}

	loaded := 0
	for _, rec := range live {
		full, blob, err := s.opts.Persistence.Load(rec.Key)
		if err != nil {
			logging.Logger.Warn("cache: load persisted entry",
				"key_prefix", keyPrefix(rec.Key), "error", err)
			continue
		}
		entry := &Entry{
			Key:          full.Key,
			Value:        Value{Meta: full.Meta, Blob: blob},
			CreatedAt:    full.CreatedAt,
			TTL:          time.Duration(full.TTLSeconds) * time.Second,
			AccessCount:  full.AccessCount,
			LastAccessed: full.LastAccessed,
		}
		s.items[entry.Key] = s.evictList.PushBack(entry)
		loaded++
	}
	if loaded > 0 {
		metrics.CacheEntries.Set(float64(loaded))
		logging.Logger.Info("cache: loaded persisted entries", "count", loaded)
	}
}

func (s *Store) persistSave(rec Record, blob []byte) {
	s.enqueuePersist(persistOp{kind: persistSave, key: rec.Key, rec: rec, blob: blob})
}

func (s *Store) persistDelete(key string) {
	s.enqueuePersist(persistOp{kind: persistDelete, key: key})
}

func (s *Store) enqueuePersist(op persistOp) {
	if s.opts.Persistence == nil {
		return
	}
	s.persistCh <- op
}

// persistLoop is the single writer to durable storage. Draining one queue in
// FIFO order keeps saves, deletes, and clears in the order they were issued;
// failures are logged, never surfaced.
func (s *Store) persistLoop() {
	defer close(s.persistDone)
	for op := range s.persistCh {
		var err error
		switch op.kind {
		case persistSave:
			err = s.opts.Persistence.Save(op.rec, op.blob)
		case persistDelete:
			err = s.opts.Persistence.Delete(op.key)
		case persistClear:
			err = s.opts.Persistence.Clear()
		}
		if err != nil {
			logging.Logger.Warn("cache: persistence write failed",
				"key_prefix", keyPrefix(op.key), "error", err)
		}
	}
}

func (s *Store) removeOldest() {
	if elem := s.evictList.Back(); elem != nil {
		entry := elem.Value.(*Entry)
		s.removeElement(elem)
		s.persistDelete(entry.Key)
	}
}

// removeElement must be called with s.mu held.
func (s *Store) removeElement(elem *list.Element) {
	s.evictList.Remove(elem)
	entry := elem.Value.(*Entry)
	delete(s.items, entry.Key)
}

func recordOf(e *Entry) Record {
	return Record{
		Key:          e.Key,
		CreatedAt:    e.CreatedAt,
		TTLSeconds:   int64(e.TTL / time.Second),
		AccessCount:  e.AccessCount,
		LastAccessed: e.LastAccessed,
		Meta:         e.Value.Meta,
	}
}

// keyPrefix truncates a cache key for log output so diagnostics never carry
// the full payload-derived identifier.
func keyPrefix(key string) string {
	if len(key) > 12 {
		return key[:12]
	}
	return key
}
