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


package ai

import "errors"

var (
	// ErrEmbeddingUnavailable indicates the embedding backend is down or timed out.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrGenerationUnavailable indicates the generation backend is down or timed out.
	ErrGenerationUnavailable = errors.New("generation service unavailable")

	// ErrRerankUnavailable indicates the rerank backend is down or timed out.
	ErrRerankUnavailable = errors.New("rerank service unavailable")

	// ErrRateLimited indicates the backend rejected the call with a rate-limit response.
	ErrRateLimited = errors.New("rate limited by model service")

	// ErrMalformedResponse indicates the backend answered but the payload was missing
	// expected fields. Retriable once, then a hard failure.
	ErrMalformedResponse = errors.New("malformed model service response")

	// ErrInvalidMaxAttempts indicates a retry budget of zero or less.
	ErrInvalidMaxAttempts = errors.New("max attempts must be greater than zero")
)
