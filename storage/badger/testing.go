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


package badger

import "github.com/poiesic/docent/storage"

// Stores bundles the repositories served by a single backend.
type Stores struct {
	Chunks   storage.ChunkRepository
	Sessions storage.SessionRepository
	Cache    storage.CacheStore
	Index    storage.IndexBlobStore
	Backend  *Backend
}

// NewMemoryStores creates in-memory repositories for testing.
// Caller must close the stores when done.
func NewMemoryStores() (*Stores, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, err
	}

	chunks, err := NewChunkRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	sessions, err := NewSessionRepository(backend)
	if err != nil {
		chunks.Close()
		backend.Close()
		return nil, err
	}

	cache, err := NewCacheStore(backend)
	if err != nil {
		sessions.Close()
		chunks.Close()
		backend.Close()
		return nil, err
	}

	index, err := NewIndexBlobStore(backend)
	if err != nil {
		cache.Close()
		sessions.Close()
		chunks.Close()
		backend.Close()
		return nil, err
	}

	return &Stores{
		Chunks:   chunks,
		Sessions: sessions,
		Cache:    cache,
		Index:    index,
		Backend:  backend,
	}, nil
}

// Close closes all stores and the underlying backend.
func (s *Stores) Close() error {
	s.Index.Close()
	s.Cache.Close()
	s.Sessions.Close()
	s.Chunks.Close()
	return s.Backend.Close()
}
