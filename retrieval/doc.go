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


// Package retrieval provides hybrid lexical and vector search over a chunked
// document corpus.
//
// The HybridRetriever type implements a multi-stage retrieval algorithm:
//   - Concurrent BM25 keyword search and dense vector search
//   - A high-confidence short-circuit that returns vector matches directly
//   - Identifier-level fusion of the two candidate sets
//   - Cross-encoder reranking of the fused candidates
//
// Lexical and vector scores live on incomparable scales, so candidates are
// merged by identifier union and re-scored in a single reranking pass rather
// than by weighted score fusion. Retrieval failures degrade to an empty
// context list; callers supply their own no-context fallback.
package retrieval
