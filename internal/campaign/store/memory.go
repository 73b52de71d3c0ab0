package store

import (
	"context"
	"encoding/json"
	"sync"

	"callpilot_backend/internal/campaign/domain"
)

// MemoryStore keeps groups in process memory. Groups are deep-copied on
// the way in and out so callers never share mutable state with the store.
type MemoryStore struct {
	mu        sync.RWMutex
	groups    map[string][]byte
	owners    map[string][]string // ownerID -> group ids, insertion order
	sessions  map[string]SessionRef
	campaigns map[string]string
}

// NewMemoryStore returns an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		groups:    make(map[string][]byte),
		owners:    make(map[string][]string),
		sessions:  make(map[string]SessionRef),
		campaigns: make(map[string]string),
	}
}

func (s *MemoryStore) Save(_ context.Context, g *domain.Group) error {
	raw, err := json.Marshal(g)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.groups[g.ID]; !exists {
		s.owners[g.OwnerID] = append(s.owners[g.OwnerID], g.ID)
	}
	s.groups[g.ID] = raw
	return nil
}

func (s *MemoryStore) Get(_ context.Context, groupID string) (*domain.Group, error) {
	s.mu.RLock()
	raw, ok := s.groups[groupID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	var g domain.Group
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *MemoryStore) ListByOwner(_ context.Context, ownerID string) ([]*domain.Group, error) {
	s.mu.RLock()
	ids := append([]string(nil), s.owners[ownerID]...)
	raws := make([][]byte, 0, len(ids))
	for _, id := range ids {
		if raw, ok := s.groups[id]; ok {
			raws = append(raws, raw)
		}
	}
	s.mu.RUnlock()

	out := make([]*domain.Group, 0, len(raws))
	for _, raw := range raws {
		var g domain.Group
		if err := json.Unmarshal(raw, &g); err != nil {
			return nil, err
		}
		out = append(out, &g)
	}
	return out, nil
}

func (s *MemoryStore) Delete(_ context.Context, groupID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[groupID]; !ok {
		return ErrNotFound
	}
	delete(s.groups, groupID)
	for sid, ref := range s.sessions {
		if ref.GroupID == groupID {
			delete(s.sessions, sid)
		}
	}
	for cid, gid := range s.campaigns {
		if gid == groupID {
			delete(s.campaigns, cid)
		}
	}
	return nil
}

func (s *MemoryStore) BindSession(_ context.Context, sessionID string, ref SessionRef) error {
	s.mu.Lock()
	s.sessions[sessionID] = ref
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) ResolveSession(_ context.Context, sessionID string) (SessionRef, error) {
	s.mu.RLock()
	ref, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return SessionRef{}, ErrNotFound
	}
	return ref, nil
}

func (s *MemoryStore) BindCampaign(_ context.Context, campaignID, groupID string) error {
	s.mu.Lock()
	s.campaigns[campaignID] = groupID
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) ResolveCampaign(_ context.Context, campaignID string) (string, error) {
	s.mu.RLock()
	gid, ok := s.campaigns[campaignID]
	s.mu.RUnlock()
	if !ok {
		return "", ErrNotFound
	}
	return gid, nil
}
