package internal

import (
	"context"
	"fmt"
)

// MirrorService handles mirror maintenance outside of a blame request
type MirrorService struct {
	mirrors *MirrorStore
	syncer  *Synchronizer
	locks   *KeyedLock
}

func NewMirrorService(mirrors *MirrorStore, syncer *Synchronizer, locks *KeyedLock) *MirrorService {
	if locks == nil {
		locks = NewKeyedLock()
	}
	return &MirrorService{mirrors: mirrors, syncer: syncer, locks: locks}
}

func (s *MirrorService) Path(repoID string) (string, error) {
	id, err := ParseRepoID(repoID)
	if err != nil {
		return "", err
	}
	return s.mirrors.MirrorPath(id), nil
}

// Sync clones the mirror if needed and makes sure it contains commit.
func (s *MirrorService) Sync(ctx context.Context, repoID, commit string) (*Mirror, error) {
	id, err := ParseRepoID(repoID)
	if err != nil {
		return nil, err
	}

	unlock, err := s.locks.Lock(ctx, s.mirrors.MirrorPath(id))
	if err != nil {
		return nil, fmt.Errorf("wait for mirror %s: %w", id, err)
	}
	defer unlock()

	m, err := s.mirrors.OpenOrCreate(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.syncer.EnsureCommit(ctx, m, commit); err != nil {
		return nil, err
	}
	return m, nil
}

// CacheService reads the blame store directly
type CacheService struct {
	store BlameStore
}

func NewCacheService(store BlameStore) *CacheService {
	return &CacheService{store: store}
}

func (s *CacheService) Get(ctx context.Context, commit, filePath string) ([]BlameLine, bool, error) {
	commit, err := ParseCommit(commit)
	if err != nil {
		return nil, false, err
	}
	lines, ok, err := s.store.Lookup(ctx, commit, filePath)
	if err != nil {
		return nil, false, fmt.Errorf("lookup blame: %w", err)
	}
	return lines, ok, nil
}
