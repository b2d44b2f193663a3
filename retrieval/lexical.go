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


package retrieval

import (
	"fmt"
	"math"
	"sort"
	"sync/atomic"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/docent/core"
)

// ScoredID is one lexical search hit.
type ScoredID struct {
	Id    core.ID
	Score float64
}

// LexicalIndex is an in-memory Okapi BM25 index over chunk text. Build
// replaces the whole ranking structure atomically, so searches may run
// concurrently with a rebuild and see either the old or the new corpus,
// never a partial one.
type LexicalIndex struct {
	config Config
	state  atomic.Pointer[lexicalState]
}

type lexicalState struct {
	docIDs    []core.ID
	docTokens [][]string
	termFreqs []map[string]int
	docLens   []int
	avgDocLen float64
	docFreq   map[string]int
}

// NewLexicalIndex creates an empty index with the given parameters.
func NewLexicalIndex(config Config) (*LexicalIndex, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &LexicalIndex{config: config}, nil
}

// Build tokenizes the chunks and constructs the ranking structure,
// replacing any previous corpus.
func (idx *LexicalIndex) Build(chunks []*core.Chunk) {
	ids := make([]core.ID, 0, len(chunks))
	tokens := make([][]string, 0, len(chunks))
	for _, chunk := range chunks {
		if chunk == nil {
			continue
		}
		ids = append(ids, chunk.Id)
		tokens = append(tokens, tokenize(chunk.Text))
	}
	idx.state.Store(buildState(ids, tokens))
}

func buildState(ids []core.ID, tokens [][]string) *lexicalState {
	state := &lexicalState{
		docIDs:    ids,
		docTokens: tokens,
		termFreqs: make([]map[string]int, len(ids)),
		docLens:   make([]int, len(ids)),
		docFreq:   make(map[string]int),
	}

	totalLen := 0
	for i, docTokens := range tokens {
		freqs := make(map[string]int, len(docTokens))
		for _, token := range docTokens {
			freqs[token]++
		}
		state.termFreqs[i] = freqs
		state.docLens[i] = len(docTokens)
		totalLen += len(docTokens)
		for term := range freqs {
			state.docFreq[term]++
		}
	}
	if len(ids) > 0 {
		state.avgDocLen = float64(totalLen) / float64(len(ids))
	}
	return state
}

// Search scores every corpus document against the query and returns the
// topK ids by descending BM25 score. Ties keep insertion order. Returns an
// empty list when the index is unbuilt or the query tokenizes to nothing.
func (idx *LexicalIndex) Search(query string, topK int) []ScoredID {
	state := idx.state.Load()
	if state == nil || len(state.docIDs) == 0 || topK <= 0 {
		return []ScoredID{}
	}

	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		return []ScoredID{}
	}

	n := float64(len(state.docIDs))
	results := make([]ScoredID, 0, len(state.docIDs))
	for i, id := range state.docIDs {
		var score float64
		for _, term := range queryTokens {
			tf := float64(state.termFreqs[i][term])
			if tf == 0 {
				continue
			}
			df := float64(state.docFreq[term])
			idf := math.Log((n-df+0.5)/(df+0.5) + 1)
			norm := idx.config.BM25K1 * (1 - idx.config.BM25B + idx.config.BM25B*float64(state.docLens[i])/state.avgDocLen)
			score += idf * tf * (idx.config.BM25K1 + 1) / (tf + norm)
		}
		if score > 0 {
			results = append(results, ScoredID{Id: id, Score: score})
		}
	}

	sort.SliceStable(results, func(a, b int) bool {
		return results[a].Score > results[b].Score
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results
}

// Size returns the number of indexed documents.
func (idx *LexicalIndex) Size() int {
	state := idx.state.Load()
	if state == nil {
		return 0
	}
	return len(state.docIDs)
}

// MarshalBinary serializes the built corpus. Token lists are stored rather
// than the derived frequency tables, which are cheap to rebuild on load.
func (idx *LexicalIndex) MarshalBinary() ([]byte, error) {
	state := idx.state.Load()
	if state == nil {
		return nil, ErrIndexNotBuilt
	}

	size := varint.PositiveInt.Size(len(state.docIDs))
	for i, id := range state.docIDs {
		size += varint.Uint64.Size(uint64(id))
		size += varint.PositiveInt.Size(len(state.docTokens[i]))
		for _, token := range state.docTokens[i] {
			size += ord.String.Size(token)
		}
	}

	buf := make([]byte, size)
	n := varint.PositiveInt.Marshal(len(state.docIDs), buf)
	for i, id := range state.docIDs {
		n += varint.Uint64.Marshal(uint64(id), buf[n:])
		n += varint.PositiveInt.Marshal(len(state.docTokens[i]), buf[n:])
		for _, token := range state.docTokens[i] {
			n += ord.String.Marshal(token, buf[n:])
		}
	}
	return buf, nil
}

// UnmarshalBinary restores a serialized corpus, replacing any current one.
func (idx *LexicalIndex) UnmarshalBinary(data []byte) error {
	docCount, n, err := varint.PositiveInt.Unmarshal(data)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCorruptIndexData, err)
	}

	ids := make([]core.ID, 0, docCount)
	tokens := make([][]string, 0, docCount)
	for range docCount {
		id, m, err := varint.Uint64.Unmarshal(data[n:])
		if err != nil {
			return fmt.Errorf("%w: %w", ErrCorruptIndexData, err)
		}
		n += m

		tokenCount, m, err := varint.PositiveInt.Unmarshal(data[n:])
		if err != nil {
			return fmt.Errorf("%w: %w", ErrCorruptIndexData, err)
		}
		n += m

		docTokens := make([]string, 0, tokenCount)
		for range tokenCount {
			token, m, err := ord.String.Unmarshal(data[n:])
			if err != nil {
				return fmt.Errorf("%w: %w", ErrCorruptIndexData, err)
			}
			n += m
			docTokens = append(docTokens, token)
		}

		ids = append(ids, core.ID(id))
		tokens = append(tokens, docTokens)
	}

	idx.state.Store(buildState(ids, tokens))
	return nil
}
