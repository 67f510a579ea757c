package internal

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"
)

// OpenBlameStore builds the store described by cfg.Cache, fronted by an
// in-process LRU unless lru_size is zero.
func OpenBlameStore(ctx context.Context, cfg *Config, log *logrus.Logger) (BlameStore, error) {
	var (
		backend BlameStore
		err     error
	)

	switch cfg.Cache.Backend {
	case CacheMemory:
	case CacheSQLite:
		backend, err = OpenSQLiteBlameStore(cfg.Cache.Path)
	case CacheBadger:
		backend, err = OpenBadgerBlameStore(cfg.Cache.Path, log)
	case CachePostgres:
		backend, err = OpenPostgresBlameStore(ctx, cfg.Cache.DSN, log)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
	if err != nil {
		return nil, err
	}

	if cfg.Cache.LRUSize == 0 {
		if backend == nil {
			return nil, fmt.Errorf("memory cache backend needs a positive lru_size")
		}
		return backend, nil
	}

	store, err := NewLRUBlameStore(cfg.Cache.LRUSize, backend)
	if err != nil {
		if backend != nil {
			backend.Close()
		}
		return nil, err
	}
	return store, nil
}

// LRUBlameStore keeps recent results in memory in front of an optional
// backing store.
type LRUBlameStore struct {
	cache *lru.Cache
	next  BlameStore
}

func NewLRUBlameStore(size int, next BlameStore) (*LRUBlameStore, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	return &LRUBlameStore{cache: cache, next: next}, nil
}

func (s *LRUBlameStore) Lookup(ctx context.Context, commit, filePath string) ([]BlameLine, bool, error) {
	key := cacheKey(commit, filePath)
	if v, ok := s.cache.Get(key); ok {
		return cloneLines(v.([]BlameLine)), true, nil
	}
	if s.next == nil {
		return nil, false, nil
	}

	lines, ok, err := s.next.Lookup(ctx, commit, filePath)
	if err != nil || !ok {
		return nil, false, err
	}
	s.cache.Add(key, cloneLines(lines))
	return lines, true, nil
}

func (s *LRUBlameStore) Insert(ctx context.Context, commit, filePath string, lines []BlameLine) error {
	if s.next != nil {
		if err := s.next.Insert(ctx, commit, filePath, lines); err != nil {
			return err
		}
	}
	s.cache.ContainsOrAdd(cacheKey(commit, filePath), cloneLines(lines))
	return nil
}

func (s *LRUBlameStore) Close() error {
	s.cache.Purge()
	if s.next != nil {
		return s.next.Close()
	}
	return nil
}

func cacheKey(commit, filePath string) string {
	return commit + "\x00" + filePath
}

func cloneLines(lines []BlameLine) []BlameLine {
	out := make([]BlameLine, len(lines))
	copy(out, lines)
	return out
}

// blameRow is one row of the blamelines table.
type blameRow struct {
	LineNumber int // x_line_number
	BlameLine
}

// emptyFileLine is the x_line_number of the single row stored for a file
// with no lines, so that an empty blame is still a hit.
const emptyFileLine = 0

// linesToRows numbers lines from 1, or yields the empty file marker.
func linesToRows(lines []BlameLine) []blameRow {
	if len(lines) == 0 {
		return []blameRow{{LineNumber: emptyFileLine}}
	}
	rows := make([]blameRow, len(lines))
	for i, l := range lines {
		rows[i] = blameRow{LineNumber: i + 1, BlameLine: l}
	}
	return rows
}

// rowsToLines checks that rows, ordered by line number, cover 1..N exactly
// or are the lone empty file marker.
func rowsToLines(rows []blameRow) ([]BlameLine, error) {
	if len(rows) == 1 && rows[0].LineNumber == emptyFileLine {
		return []BlameLine{}, nil
	}
	lines := make([]BlameLine, 0, len(rows))
	for i, r := range rows {
		if r.LineNumber != i+1 {
			return nil, fmt.Errorf("%w: stored blame is missing line %d", ErrBlameFailed, i+1)
		}
		lines = append(lines, r.BlameLine)
	}
	return lines, nil
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrCacheUnavailable, op, err)
}
