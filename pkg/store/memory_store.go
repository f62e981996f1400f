package store

import (
	"context"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store intended for tests and examples. It
// counts loads per identifier so callers can observe re-parsing.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]memoryRecord
	loads   map[string]int
}

type memoryRecord struct {
	doc  Document
	meta Meta
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: map[string]memoryRecord{},
		loads:   map[string]int{},
	}
}

// Load returns a copy of the document and counts the read for Loads.
func (s *MemoryStore) Load(_ context.Context, identifier string) (Document, Meta, bool, error) {
	key, err := normalizeIdentifier(identifier)
	if err != nil {
		return Document{}, Meta{}, false, err
	}

	s.mu.Lock()
	record, ok := s.records[key]
	if ok {
		s.loads[key]++
	}
	s.mu.Unlock()
	if !ok {
		return Document{}, Meta{}, false, nil
	}
	return record.doc.Clone(), cloneMeta(record.meta), true, nil
}

func (s *MemoryStore) Save(_ context.Context, identifier string, doc Document, meta Meta) (Meta, error) {
	key, err := normalizeIdentifier(identifier)
	if err != nil {
		return Meta{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.records[key]; ok && meta.ETag != "" && existing.meta.ETag != meta.ETag {
		return Meta{}, ErrETagMismatch
	}
	stored := cloneMeta(meta)
	stored.ETag = uuid.NewString()
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = time.Now()
	}
	s.records[key] = memoryRecord{doc: doc.Clone(), meta: stored}
	return cloneMeta(stored), nil
}

func (s *MemoryStore) Exists(_ context.Context, identifier string) (bool, error) {
	key, err := normalizeIdentifier(identifier)
	if err != nil {
		return false, err
	}
	s.mu.RLock()
	_, ok := s.records[key]
	s.mu.RUnlock()
	return ok, nil
}

// Put stores doc under identifier without etag checks. It is a convenience
// for fixtures.
func (s *MemoryStore) Put(identifier string, doc Document) {
	_, _ = s.Save(context.Background(), identifier, doc, Meta{})
}

// Loads reports how many times identifier has been loaded.
func (s *MemoryStore) Loads(identifier string) int {
	key, err := normalizeIdentifier(identifier)
	if err != nil {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loads[key]
}

func normalizeIdentifier(identifier string) (string, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return "", ErrIdentifierRequired
	}
	if !strings.HasPrefix(identifier, "/") {
		return identifier, nil
	}
	return path.Clean(identifier), nil
}
