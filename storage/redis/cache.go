// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package redis provides a Redis-backed answer cache for deployments that
// share the cache across processes. It is interchangeable with the BadgerDB
// cache; expiry is enforced by Redis key TTLs.
package redis

import (
	"context"
	"fmt"

	"time"

	"github.com/poiesic/docent/core"
	"github.com/poiesic/docent/storage"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "anscache"

// CacheStore implements storage.CacheStore on a Redis instance.
type CacheStore struct {
	client *redis.Client
}

var _ storage.CacheStore = (*CacheStore)(nil)

// NewCacheStore creates a CacheStore connected to the given Redis address.
func NewCacheStore(addr string) (storage.CacheStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	return &CacheStore{client: client}, nil
}

// NewCacheStoreWithClient wraps an existing Redis client.
func NewCacheStoreWithClient(client *redis.Client) storage.CacheStore {
	return &CacheStore{client: client}
}

// Close closes the underlying Redis client.
func (s *CacheStore) Close() error {
	return s.client.Close()
}

// Put stores a cache entry with the given TTL. A ttl of zero stores the
// entry without expiry.
func (s *CacheStore) Put(ctx context.Context, sessionID string, key core.ID, entry *core.CacheEntry, ttl time.Duration) error {
	if err := core.ValidateSessionID(sessionID); err != nil {
		return err
	}
	data := storage.MarshalCacheEntry(entry)
	return s.client.Set(ctx, makeKey(sessionID, key), data, ttl).Err()
}

// Entries returns all live cache entries for a session via SCAN, so large
// keyspaces are walked incrementally rather than with a blocking KEYS call.
func (s *CacheStore) Entries(ctx context.Context, sessionID string) ([]*core.CacheEntry, error) {
	if err := core.ValidateSessionID(sessionID); err != nil {
		return nil, err
	}
	results := []*core.CacheEntry{}
	iter := s.client.Scan(ctx, 0, makePattern(sessionID), 0).Iterator()
	for iter.Next(ctx) {
		data, err := s.client.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			if err == redis.Nil {
				// expired between SCAN and GET
				continue
			}
			return nil, err
		}
		entry, err := storage.UnmarshalCacheEntry(data)
		if err != nil {
			return nil, err
		}
		results = append(results, entry)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func makeKey(sessionID string, id core.ID) string {
	return fmt.Sprintf("%s:%s:%d", keyPrefix, sessionID, id)
}

func makePattern(sessionID string) string {
	return keyPrefix + ":" + sessionID + ":*"
}
