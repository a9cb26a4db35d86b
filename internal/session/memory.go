package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is the in-process Store used by unit tests and local runs
// without Redis. TTLs are enforced lazily on read.
type MemoryStore struct {
	mu        sync.Mutex
	families  map[string]memEntry
	userFams  map[string]map[string]struct{}
	blacklist map[string]time.Time
}

type memEntry struct {
	rec       FamilyRecord
	expiresAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		families:  make(map[string]memEntry),
		userFams:  make(map[string]map[string]struct{}),
		blacklist: make(map[string]time.Time),
	}
}

func (s *MemoryStore) GetFamily(_ context.Context, family string) (*FamilyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.families[family]
	if !ok || time.Now().After(e.expiresAt) {
		delete(s.families, family)
		return nil, ErrFamilyNotFound
	}
	rec := e.rec
	return &rec, nil
}

func (s *MemoryStore) PutFamily(_ context.Context, rec *FamilyRecord, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.families[rec.Family] = memEntry{rec: *rec, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (s *MemoryStore) CompareAndSwapFamily(_ context.Context, family, old, new string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.families[family]
	if !ok || time.Now().After(e.expiresAt) {
		delete(s.families, family)
		return ErrFamilyNotFound
	}
	if e.rec.Current != old {
		return ErrConflict
	}
	e.rec.Current = new
	e.expiresAt = time.Now().Add(ttl)
	s.families[family] = e
	return nil
}

func (s *MemoryStore) DeleteFamily(_ context.Context, family string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.families, family)
	return nil
}

func (s *MemoryStore) AddUserFamily(_ context.Context, userID, family string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.userFams[userID] == nil {
		s.userFams[userID] = make(map[string]struct{})
	}
	s.userFams[userID][family] = struct{}{}
	return nil
}

func (s *MemoryStore) UserFamilies(_ context.Context, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fams := make([]string, 0, len(s.userFams[userID]))
	for f := range s.userFams[userID] {
		fams = append(fams, f)
	}
	return fams, nil
}

func (s *MemoryStore) RemoveUserFamily(_ context.Context, userID, family string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.userFams[userID], family)
	return nil
}

func (s *MemoryStore) DeleteUserFamilies(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.userFams, userID)
	return nil
}

func (s *MemoryStore) Blacklist(_ context.Context, jti string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blacklist[jti] = time.Now().Add(ttl)
	return nil
}

func (s *MemoryStore) IsBlacklisted(_ context.Context, jti string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.blacklist[jti]
	if !ok {
		return false, nil
	}
	if time.Now().After(exp) {
		delete(s.blacklist, jti)
		return false, nil
	}
	return true, nil
}
