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


// Package ai defines the contracts for the external model services docent
// depends on: text embedding, answer generation and cross-encoder reranking.
//
// The package deliberately contains no network code. Concrete clients live in
// subpackages (ai/openai for OpenAI-compatible services, ai/mock for test
// doubles) and are injected into the retriever, cache and engine as
// interfaces, so callers never couple to a specific vendor.
//
// # Failure kinds
//
// Collaborator failures are classified with sentinel errors so callers can
// branch without string matching:
//
//   - ErrEmbeddingUnavailable: embedding backend down or timing out
//   - ErrGenerationUnavailable: generation backend down or timing out
//   - ErrRateLimited: backend rejected the call with a rate-limit response
//   - ErrMalformedResponse: backend answered but the payload was unusable
//
// Transient failures should be retried by the caller with RetryWithBackoff;
// the retry budget is bounded, never indefinite.
package ai
