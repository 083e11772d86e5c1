// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package history

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/dgraph-io/badger/v4"
)

// BadgerStore keeps history in a badger directory:
//   - matches: key = "match:<big-endian id>" (JSON)
//   - cursors: key = "cursor:<rotation key>" (decimal)
//   - the last match id: key = "meta:match_seq"
type BadgerStore struct {
	db *badger.DB
	mu sync.Mutex // serialises id allocation
}

var (
	matchPrefix = []byte("match:")
	seqKey      = []byte("meta:match_seq")
)

func OpenBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Backend() string { return "badger" }

func (s *BadgerStore) Close() error { return s.db.Close() }

func matchKey(id int64) []byte {
	k := make([]byte, len(matchPrefix)+8)
	copy(k, matchPrefix)
	binary.BigEndian.PutUint64(k[len(matchPrefix):], uint64(id))
	return k
}

func cursorKey(key string) []byte { return []byte("cursor:" + key) }

func (s *BadgerStore) RecordMatch(_ context.Context, m Match) (Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.db.Update(func(txn *badger.Txn) error {
		var last uint64
		item, err := txn.Get(seqKey)
		switch {
		case err == nil:
			if err := item.Value(func(val []byte) error {
				if len(val) != 8 {
					return fmt.Errorf("corrupt match sequence (%d bytes)", len(val))
				}
				last = binary.BigEndian.Uint64(val)
				return nil
			}); err != nil {
				return err
			}
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}
		m.ID = int64(last + 1)
		buf, err := json.Marshal(m)
		if err != nil {
			return err
		}
		seq := make([]byte, 8)
		binary.BigEndian.PutUint64(seq, last+1)
		if err := txn.Set(seqKey, seq); err != nil {
			return err
		}
		return txn.Set(matchKey(m.ID), buf)
	})
	if err != nil {
		return Match{}, fmt.Errorf("record match: %w", err)
	}
	return m, nil
}

func (s *BadgerStore) RecentMatches(_ context.Context, limit int) ([]Match, error) {
	var out []Match
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = matchPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		seek := append(append([]byte(nil), matchPrefix...), 0xff)
		for it.Seek(seek); it.ValidForPrefix(matchPrefix); it.Next() {
			var m Match
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &m)
			}); err != nil {
				return err
			}
			out = append(out, m)
			if limit > 0 && len(out) == limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan matches: %w", err)
	}
	return out, nil
}

func (s *BadgerStore) SaveCursor(_ context.Context, key string, cursor int) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(cursorKey(key), []byte(strconv.Itoa(cursor)))
	})
}

func (s *BadgerStore) LoadCursor(_ context.Context, key string) (int, bool, error) {
	var cursor int
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(cursorKey(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			cursor, err = strconv.Atoi(string(val))
			return err
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("load cursor: %w", err)
	}
	return cursor, true, nil
}
