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

import "fmt"

// Config holds the tunable retrieval parameters. The zero value is not
// usable; start from DefaultConfig.
type Config struct {
	// ShortCircuitScore is the vector similarity above which the top vector
	// matches are returned directly without reranking.
	ShortCircuitScore float32

	// MinContextLen is the minimum candidate text length in runes. Shorter
	// fragments are discarded as noise.
	MinContextLen int

	// RerankCap bounds how many candidates are sent to the reranker in one
	// call.
	RerankCap int

	// DefaultTopK is the result count used when the caller passes topK <= 0.
	DefaultTopK int

	// BM25K1 and BM25B are the Okapi BM25 term saturation and length
	// normalization parameters.
	BM25K1 float64
	BM25B  float64
}

// DefaultConfig returns the canonical parameter set.
func DefaultConfig() Config {
	return Config{
		ShortCircuitScore: 0.85,
		MinContextLen:     40,
		RerankCap:         6,
		DefaultTopK:       5,
		BM25K1:            1.5,
		BM25B:             0.75,
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.ShortCircuitScore <= 0 || c.ShortCircuitScore > 1 {
		return fmt.Errorf("short-circuit score must be in (0, 1], got %f", c.ShortCircuitScore)
	}
	if c.MinContextLen < 0 {
		return fmt.Errorf("minimum context length cannot be negative, got %d", c.MinContextLen)
	}
	if c.RerankCap <= 0 {
		return fmt.Errorf("rerank cap must be positive, got %d", c.RerankCap)
	}
	if c.DefaultTopK <= 0 {
		return fmt.Errorf("default top-k must be positive, got %d", c.DefaultTopK)
	}
	if c.BM25K1 <= 0 {
		return fmt.Errorf("bm25 k1 must be positive, got %f", c.BM25K1)
	}
	if c.BM25B < 0 || c.BM25B > 1 {
		return fmt.Errorf("bm25 b must be in [0, 1], got %f", c.BM25B)
	}
	return nil
}
