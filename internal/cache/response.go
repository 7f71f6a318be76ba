// rankbench - LLM Re-ranking Evaluation for Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rankbench

// Package cache stores LLM responses so repeated evaluations do not pay for the
// same completion twice.
//
// ResponseCache has two tiers: an in-process LRU in front of a BadgerDB
// directory. Keys are content hashes built by Key, so any change to the model,
// temperature or prompt produces a new entry.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/rankbench/internal/logging"
	"github.com/tomtom215/rankbench/internal/metrics"
)

const keyPrefix = "resp:"

// Config configures a ResponseCache.
type Config struct {
	// Path of the badger directory. Ignored when InMemory is set.
	Path string

	// TTL of stored entries; 0 keeps them forever.
	TTL time.Duration

	// MemoryEntries sizes the LRU tier (default 1024).
	MemoryEntries int

	// InMemory runs badger without touching disk.
	InMemory bool
}

// ResponseCache is safe for concurrent use.
type ResponseCache struct {
	db  *badger.DB
	mem *LRU
	ttl time.Duration
}

// Open opens (or creates) the cache.
func Open(cfg Config) (*ResponseCache, error) {
	if cfg.Path == "" && !cfg.InMemory {
		return nil, errors.New("cache: path is required")
	}

	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.WithLogger(badgerLogger{}).WithNumVersionsToKeep(1)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("cache: open badger at %q: %w", cfg.Path, err)
	}

	return &ResponseCache{
		db:  db,
		mem: NewLRU(cfg.MemoryEntries, cfg.TTL),
		ttl: cfg.TTL,
	}, nil
}

// Get returns the stored value for key. A miss is (nil, false, nil).
func (c *ResponseCache) Get(key string) ([]byte, bool, error) {
	if v, ok := c.mem.Get(key); ok {
		metrics.RecordCacheLookup(true)
		return v, true, nil
	}

	var value []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		metrics.RecordCacheLookup(false)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: get: %w", err)
	}

	metrics.RecordCacheLookup(true)
	c.mem.Add(key, value)
	return value, true, nil
}

// Set stores value under key in both tiers.
func (c *ResponseCache) Set(key string, value []byte) error {
	err := c.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(keyPrefix+key), value)
		if c.ttl > 0 {
			e = e.WithTTL(c.ttl)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		return fmt.Errorf("cache: set: %w", err)
	}
	c.mem.Add(key, value)
	return nil
}

// Delete removes key from both tiers.
func (c *ResponseCache) Delete(key string) error {
	c.mem.Remove(key)
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(keyPrefix + key))
	})
}

// Len counts the live entries on disk.
func (c *ResponseCache) Len() (int, error) {
	n := 0
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// Close flushes and closes badger.
func (c *ResponseCache) Close() error {
	return c.db.Close()
}

// Key hashes namespace and the JSON encoding of params into a hex cache key.
func Key(namespace string, params any) (string, error) {
	data, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("cache: key for %s: %w", namespace, err)
	}
	h := sha256.New()
	h.Write([]byte(namespace))
	h.Write([]byte{0})
	h.Write(data)
	return namespace + ":" + hex.EncodeToString(h.Sum(nil)), nil
}

// badgerLogger routes badger's internal logging through zerolog. Info and debug
// chatter is demoted to debug.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...interface{}) {
	logging.Error().Str("component", "badger").Msgf(format, args...)
}

func (badgerLogger) Warningf(format string, args ...interface{}) {
	logging.Warn().Str("component", "badger").Msgf(format, args...)
}

func (badgerLogger) Infof(format string, args ...interface{}) {
	logging.Debug().Str("component", "badger").Msgf(format, args...)
}

func (badgerLogger) Debugf(format string, args ...interface{}) {
	logging.Debug().Str("component", "badger").Msgf(format, args...)
}
