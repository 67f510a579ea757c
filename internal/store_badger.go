package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"
)

// BadgerBlameStore keeps one JSON document per (commit, path) in an
// embedded badger database.
type BadgerBlameStore struct {
	db *badger.DB
}

// OpenBadgerBlameStore opens or creates a badger directory at path. Badger's
// own logging goes through log when it is set.
func OpenBadgerBlameStore(path string, log *logrus.Logger) (*BadgerBlameStore, error) {
	if path == "" {
		return nil, storeErr("open badger", fmt.Errorf("cache.path is empty"))
	}

	opts := badger.DefaultOptions(path)
	if log != nil {
		opts = opts.WithLogger(log)
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, storeErr("open badger", err)
	}
	return &BadgerBlameStore{db: db}, nil
}

func badgerKey(commit, filePath string) []byte {
	return []byte("blame/" + commit + "/" + filePath)
}

func (s *BadgerBlameStore) Lookup(ctx context.Context, commit, filePath string) ([]BlameLine, bool, error) {
	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(commit, filePath))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, storeErr("get blame", err)
	}

	var lines []BlameLine
	if err := json.Unmarshal(raw, &lines); err != nil {
		return nil, false, fmt.Errorf("%w: decode stored blame: %w", ErrBlameFailed, err)
	}
	return lines, true, nil
}

// Insert keeps the first value written for a key.
func (s *BadgerBlameStore) Insert(ctx context.Context, commit, filePath string, lines []BlameLine) error {
	if lines == nil {
		lines = []BlameLine{}
	}
	raw, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("encode blame: %w", err)
	}

	key := badgerKey(commit, filePath)
	err = s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, raw)
	})
	// A conflicting transaction wrote the same key first.
	if errors.Is(err, badger.ErrConflict) {
		return nil
	}
	if err != nil {
		return storeErr("put blame", err)
	}
	return nil
}

func (s *BadgerBlameStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close badger: %w", err)
	}
	return nil
}
