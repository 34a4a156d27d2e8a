// Package cache implements the gateway's response cache: a TTL-bounded,
// LRU-evicting in-memory store with a pluggable durable-persistence side
// channel so cached upstream results survive process restarts.
//
// The store never returns an expired entry (expiry is checked lazily on every
// read) and a background sweep removes expired entries proactively. All
// persistence I/O failures are logged and swallowed at the store boundary;
// the cache degrades to memory-only behaviour rather than failing a caller.
package cache

import (
	"encoding/json"
	"time"
)

// Value is a cached payload. Meta carries the small structured part of the
// result; Blob optionally carries a large binary artifact (e.g. synthesised
// audio) that persistence backends store out of line from the metadata
// record.
type Value struct {
	Meta json.RawMessage
	Blob []byte
}

// Size returns the approximate in-memory footprint of the value in bytes.
func (v Value) Size() int64 {
	return int64(len(v.Meta) + len(v.Blob))
}

// Entry is a single cache entry. An entry is logically expired once
// now >= CreatedAt + TTL.
type Entry struct {
	Key          string
	Value        Value
	CreatedAt    time.Time
	TTL          time.Duration
	AccessCount  int64
	LastAccessed time.Time
}

// Expired reports whether the entry has passed its TTL at time now.
func (e *Entry) Expired(now time.Time) bool {
	return !now.Before(e.CreatedAt.Add(e.TTL))
}

// Stats is a point-in-time aggregate view over the store, consumed by the
// stats collector and the admin surface.
type Stats struct {
	Count      int     `json:"count"`
	HitRate    float64 `json:"hit_rate"` // percentage, 0-100
	TotalBytes int64   `json:"total_bytes"`
	OldestAge  int64   `json:"oldest_age_seconds"`
	NewestAge  int64   `json:"newest_age_seconds"`
}

// Record is the durable form of an entry's metadata. Large binary payloads
// are not embedded: they are written as separate blobs referenced by BlobRef.
type Record struct {
	Key          string          `json:"key"`
	CreatedAt    time.Time       `json:"created_at"`
	TTLSeconds   int64           `json:"ttl_seconds"`
	AccessCount  int64           `json:"access_count"`
	LastAccessed time.Time       `json:"last_accessed"`
	Meta         json.RawMessage `json:"meta,omitempty"`
	BlobRef      string          `json:"blob_ref,omitempty"`
}

// Expired reports whether the record's TTL has elapsed at time now.
func (r Record) Expired(now time.Time) bool {
	return !now.Before(r.CreatedAt.Add(time.Duration(r.TTLSeconds) * time.Second))
}

// Persistence is the durable key-value side channel behind the store. The
// backend varies (local files, remote cache) without touching store logic.
// Implementations must be safe for concurrent use.
type Persistence interface {
	// Save writes the metadata record and, when blob is non-empty, its
	// binary payload. The record's BlobRef is assigned by the backend.
	Save(rec Record, blob []byte) error
	// Load reads one record and its blob payload, if any.
	Load(key string) (*Record, []byte, error)
	// Delete removes the record and any associated blob.
	Delete(key string) error
	// ListAll returns the metadata records of every persisted entry,
	// without blob payloads.
	ListAll() ([]Record, error)
	// Clear removes all persisted records and blobs.
	Clear() error
	// Close releases backend resources.
	Close() error
}
