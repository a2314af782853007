// Package resource implements a content-addressed resource store: an
// append-only blob store keyed by mcp://<category>/<id> URIs, used by the
// response builder to offload data that doesn't fit a tool result's token
// budget.
package resource

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mcpforge/server/pkg/internal/fileutil"
	"github.com/mcpforge/server/pkg/jsonparser"
)

// Blob is one immutable stored resource.
type Blob struct {
	URI       string
	MimeType  string
	Content   []byte
	CreatedAt time.Time
	TTL       time.Duration // zero means no expiry
}

func (b Blob) expired(now time.Time) bool {
	return b.TTL > 0 && now.After(b.CreatedAt.Add(b.TTL))
}

// Store is the interface a pluggable resource-store backend implements.
// The memory-backed implementation below is the default; a durable backend
// (e.g. a KV store or object store) can satisfy the same contract.
type Store interface {
	Store(ctx context.Context, category string, content []byte, mimeType string) (uri string, err error)
	Retrieve(ctx context.Context, uri string) ([]byte, bool, error)
	Exists(ctx context.Context, uri string) (bool, error)
}

// MemoryStore is the default in-process resource store. Writers are
// serialized per category (namespace) under their own lock; readers proceed
// concurrently.
type MemoryStore struct {
	maxBytes int64 // 0 means unbounded

	mu         sync.RWMutex
	blobs      map[string]Blob
	namespace  map[string]*sync.Mutex
	totalBytes int64
}

// NewMemoryStore creates an empty memory-backed resource store. maxBytes, if
// positive, bounds total stored content; the oldest blobs are evicted by
// creation time once exceeded.
func NewMemoryStore(maxBytes int64) *MemoryStore {
	return &MemoryStore{
		maxBytes:  maxBytes,
		blobs:     make(map[string]Blob),
		namespace: make(map[string]*sync.Mutex),
	}
}

func (s *MemoryStore) namespaceLock(category string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.namespace[category]
	if !ok {
		lock = &sync.Mutex{}
		s.namespace[category] = lock
	}
	return lock
}

// Store writes content under a new id in category and returns its URI. The
// returned id is a UUID so concurrent writers in the same category never
// collide.
func (s *MemoryStore) Store(ctx context.Context, category string, content []byte, mimeType string) (string, error) {
	lock := s.namespaceLock(category)
	lock.Lock()
	defer lock.Unlock()

	if mimeType == "" {
		mimeType = fileutil.DetectMediaType(content).MimeType
	}

	uri := fmt.Sprintf("mcp://%s/%s", category, uuid.NewString())
	blob := Blob{
		URI:       uri,
		MimeType:  mimeType,
		Content:   content,
		CreatedAt: time.Now(),
	}

	s.mu.Lock()
	s.blobs[uri] = blob
	s.totalBytes += int64(len(content))
	s.mu.Unlock()

	s.evictIfNeeded()
	return uri, nil
}

// Retrieve returns the bytes stored at uri, or ok=false if absent or expired.
// Concurrent-safe and idempotent: repeated reads never mutate state.
func (s *MemoryStore) Retrieve(ctx context.Context, uri string) ([]byte, bool, error) {
	s.mu.RLock()
	blob, ok := s.blobs[uri]
	s.mu.RUnlock()
	if !ok || blob.expired(time.Now()) {
		return nil, false, nil
	}
	return blob.Content, true, nil
}

// RetrievePartialJSON reads uri and, if its content is JSON that didn't
// parse cleanly (e.g. a supervised tool's output was captured mid-write),
// attempts a best-effort repair before giving up. The returned ParseResult's
// State reports whether repair was needed.
func (s *MemoryStore) RetrievePartialJSON(ctx context.Context, uri string) (jsonparser.ParseResult, bool, error) {
	content, ok, err := s.Retrieve(ctx, uri)
	if err != nil || !ok {
		return jsonparser.ParseResult{}, ok, err
	}
	return jsonparser.ParsePartialJSON(string(content)), true, nil
}

// Exists reports whether uri is present and unexpired.
func (s *MemoryStore) Exists(ctx context.Context, uri string) (bool, error) {
	_, ok, err := s.Retrieve(ctx, uri)
	return ok, err
}

// evictIfNeeded removes the oldest blobs until total size is under maxBytes.
// A zero maxBytes disables eviction entirely.
func (s *MemoryStore) evictIfNeeded() {
	if s.maxBytes <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for s.totalBytes > s.maxBytes && len(s.blobs) > 0 {
		var oldestURI string
		var oldestAt time.Time
		first := true
		for uri, b := range s.blobs {
			if first || b.CreatedAt.Before(oldestAt) {
				oldestURI, oldestAt = uri, b.CreatedAt
				first = false
			}
		}
		s.totalBytes -= int64(len(s.blobs[oldestURI].Content))
		delete(s.blobs, oldestURI)
	}
}
