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


package docent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/docent/ai"
	"github.com/poiesic/docent/ai/openai"
	"github.com/poiesic/docent/cache"
	"github.com/poiesic/docent/core"
	"github.com/poiesic/docent/indexer"
	"github.com/poiesic/docent/memory"
	"github.com/poiesic/docent/retrieval"
	"github.com/poiesic/docent/storage"
	"github.com/poiesic/docent/storage/badger"
)

// FallbackAnswer is returned when retrieval yields no usable context.
const FallbackAnswer = "I do not have enough information in the provided documents."

const (
	askMaxAttempts    = 3
	askRetryBaseWait  = 500 * time.Millisecond
	defaultTopK       = 5
	defaultAskTimeout = 2 * time.Minute
)

// Source tags where an answer came from.
type Source int

const (
	// SourceGenerated means the answer was produced by the model from
	// retrieved context.
	SourceGenerated Source = iota + 1

	// SourceCached means the answer was served from the semantic cache.
	SourceCached

	// SourceFallback means no context was found and the stock fallback
	// message was returned.
	SourceFallback
)

func (s Source) String() string {
	switch s {
	case SourceGenerated:
		return "generated"
	case SourceCached:
		return "cached"
	case SourceFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// Answer is the result of one question.
type Answer struct {
	Text     string
	Contexts []string
	Source   Source
}

// Engine wires storage, retrieval, caching, memory and the AI provider
// into the full question-answering flow.
type Engine struct {
	backend    *badger.Backend
	chunkRepo  storage.ChunkRepository
	sessions   storage.SessionRepository
	blobs      storage.IndexBlobStore
	cacheStore storage.CacheStore
	provider   ai.Provider
	lexical    *retrieval.LexicalIndex
	retriever  *retrieval.HybridRetriever
	cache      *cache.SemanticCache
	memory     *memory.ConversationMemory
	indexer    *indexer.Indexer
	topK       int
	askTimeout time.Duration
	logger     *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*engineOptions)

type engineOptions struct {
	aiConfig        *ai.Config
	provider        ai.Provider
	retrievalConfig retrieval.Config
	cacheStore      storage.CacheStore
	inMemory        bool
	topK            int
	askTimeout      time.Duration
	logger          *slog.Logger
}

// WithAIConfig sets the AI provider configuration used when no provider is
// injected. Default is ai.DefaultConfig().
func WithAIConfig(config *ai.Config) EngineOption {
	return func(o *engineOptions) {
		o.aiConfig = config
	}
}

// WithProvider injects an AI provider, bypassing the OpenAI-compatible
// default. Intended for tests and alternative backends.
func WithProvider(provider ai.Provider) EngineOption {
	return func(o *engineOptions) {
		o.provider = provider
	}
}

// WithRetrievalConfig overrides the default retrieval parameters.
func WithRetrievalConfig(config retrieval.Config) EngineOption {
	return func(o *engineOptions) {
		o.retrievalConfig = config
	}
}

// WithCacheStore injects an answer cache backend, replacing the embedded
// BadgerDB store. Use this to share the cache across processes via Redis.
func WithCacheStore(store storage.CacheStore) EngineOption {
	return func(o *engineOptions) {
		o.cacheStore = store
	}
}

// WithInMemory opens the storage backend in memory. Nothing persists
// across restarts; intended for tests.
func WithInMemory() EngineOption {
	return func(o *engineOptions) {
		o.inMemory = true
	}
}

// WithTopK sets how many contexts a question retrieves. Default is 5.
func WithTopK(topK int) EngineOption {
	return func(o *engineOptions) {
		o.topK = topK
	}
}

// WithAskTimeout bounds the whole Ask flow with a context deadline so a
// hung collaborator cannot block the caller. Default is 2 minutes.
func WithAskTimeout(timeout time.Duration) EngineOption {
	return func(o *engineOptions) {
		o.askTimeout = timeout
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) EngineOption {
	return func(o *engineOptions) {
		o.logger = logger
	}
}

// NewEngine opens the storage backend at filePath and wires the full
// question-answering stack.
func NewEngine(filePath string, opts ...EngineOption) (*Engine, error) {
	options := &engineOptions{
		aiConfig:        ai.DefaultConfig(),
		retrievalConfig: retrieval.DefaultConfig(),
		topK:            defaultTopK,
		askTimeout:      defaultAskTimeout,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.topK < 1 {
		options.topK = defaultTopK
	}
	if options.askTimeout <= 0 {
		options.askTimeout = defaultAskTimeout
	}

	backend, err := badger.OpenBackend(filePath, options.inMemory)
	if err != nil {
		return nil, err
	}

	chunkRepo, err := badger.NewChunkRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	sessions, err := badger.NewSessionRepository(backend)
	if err != nil {
		chunkRepo.Close()
		backend.Close()
		return nil, err
	}

	blobs, err := badger.NewIndexBlobStore(backend)
	if err != nil {
		sessions.Close()
		chunkRepo.Close()
		backend.Close()
		return nil, err
	}

	cacheStore := options.cacheStore
	if cacheStore == nil {
		cacheStore, err = badger.NewCacheStore(backend)
		if err != nil {
			sessions.Close()
			chunkRepo.Close()
			backend.Close()
			return nil, err
		}
	}

	closeStores := func() {
		cacheStore.Close()
		blobs.Close()
		sessions.Close()
		chunkRepo.Close()
		backend.Close()
	}

	provider := options.provider
	if provider == nil {
		provider, err = openai.NewProvider(options.aiConfig)
		if err != nil {
			closeStores()
			return nil, err
		}
	}

	ix, err := indexer.NewIndexer(chunkRepo, blobs, provider.Embedder(),
		indexer.WithRetrievalConfig(options.retrievalConfig),
		indexer.WithLogger(options.logger))
	if err != nil {
		closeStores()
		return nil, err
	}

	lexical, err := loadOrRebuildLexical(ix, options.logger)
	if err != nil {
		ix.Close()
		closeStores()
		return nil, err
	}

	vectors, err := retrieval.NewChunkVectorIndex(chunkRepo)
	if err != nil {
		ix.Close()
		closeStores()
		return nil, err
	}

	retriever, err := retrieval.NewHybridRetriever(lexical, vectors, provider.Reranker(),
		retrieval.WithConfig(options.retrievalConfig),
		retrieval.WithLogger(options.logger))
	if err != nil {
		ix.Close()
		closeStores()
		return nil, err
	}

	answerCache, err := cache.NewSemanticCache(cacheStore, cache.WithLogger(options.logger))
	if err != nil {
		ix.Close()
		closeStores()
		return nil, err
	}

	conversations, err := memory.NewConversationMemory(sessions, provider.Generator(),
		memory.WithLogger(options.logger))
	if err != nil {
		ix.Close()
		closeStores()
		return nil, err
	}

	return &Engine{
		backend:    backend,
		chunkRepo:  chunkRepo,
		sessions:   sessions,
		blobs:      blobs,
		cacheStore: cacheStore,
		provider:   provider,
		lexical:    lexical,
		retriever:  retriever,
		cache:      answerCache,
		memory:     conversations,
		indexer:    ix,
		topK:       options.topK,
		askTimeout: options.askTimeout,
		logger:     options.logger,
	}, nil
}

// loadOrRebuildLexical restores the persisted lexical index. A fresh
// database has no blob yet; that rebuilds from stored chunks instead.
// Corrupt data is fatal.
func loadOrRebuildLexical(ix *indexer.Indexer, logger *slog.Logger) (*retrieval.LexicalIndex, error) {
	ctx := context.Background()
	lexical, err := ix.LoadLexical(ctx)
	if err == nil {
		return lexical, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("restoring lexical index: %w", err)
	}

	logger.Info("no persisted lexical index, rebuilding from stored chunks")
	return ix.RebuildLexical(ctx)
}

// Close shuts the engine down, waiting for background summarizations.
func (e *Engine) Close() error {
	if err := e.memory.Close(); err != nil {
		e.logger.Error("error closing conversation memory", "err", err)
	}
	if err := e.indexer.Close(); err != nil {
		e.logger.Error("error closing indexer", "err", err)
	}
	if err := e.provider.Close(); err != nil {
		e.logger.Error("error closing AI provider", "err", err)
	}
	if err := e.cacheStore.Close(); err != nil {
		e.logger.Error("error closing cache store", "err", err)
	}
	if err := e.blobs.Close(); err != nil {
		e.logger.Error("error closing index blob store", "err", err)
	}
	if err := e.sessions.Close(); err != nil {
		e.logger.Error("error closing session repository", "err", err)
		return err
	}
	if err := e.chunkRepo.Close(); err != nil {
		e.logger.Error("error closing chunk repository", "err", err)
		return err
	}
	if err := e.backend.Close(); err != nil {
		e.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

// IndexDocuments embeds and stores the documents and refreshes the serving
// lexical index.
func (e *Engine) IndexDocuments(ctx context.Context, docs []indexer.Document) (int, error) {
	_, stored, err := e.indexer.Index(ctx, docs)
	if err != nil {
		return 0, err
	}

	// Swap the refreshed corpus into the shared serving index
	data, err := e.blobs.LoadIndex(ctx, indexer.LexicalIndexName)
	if err != nil {
		return stored, fmt.Errorf("reloading lexical index: %w", err)
	}
	if err := e.lexical.UnmarshalBinary(data); err != nil {
		return stored, fmt.Errorf("reloading lexical index: %w", err)
	}
	return stored, nil
}

// Ask answers a question within a session: semantic cache first, then
// hybrid retrieval and generation, with conversation memory updated on the
// way out.
func (e *Engine) Ask(ctx context.Context, sessionID, question string) (*Answer, error) {
	if err := core.ValidateSessionID(sessionID); err != nil {
		return nil, err
	}
	if question == "" {
		return nil, core.ErrEmptyContent
	}

	ctx, cancel := context.WithTimeout(ctx, e.askTimeout)
	defer cancel()

	var embedding []float32
	err := ai.RetryWithBackoff(ctx, func() error {
		var embedErr error
		embedding, embedErr = e.provider.Embedder().EmbedText(ctx, question)
		return embedErr
	}, askMaxAttempts, askRetryBaseWait)
	if err != nil {
		return nil, fmt.Errorf("embedding question: %w", err)
	}

	if cached, ok := e.cache.Get(ctx, sessionID, question, embedding); ok {
		return &Answer{Text: cached, Source: SourceCached}, nil
	}

	recent, err := e.memory.GetRecent(ctx, sessionID)
	if err != nil {
		e.logger.Warn("failed to load recent history, continuing without it", "session", sessionID, "err", err)
		recent = nil
	}
	summary, _, err := e.memory.GetSummary(ctx, sessionID)
	if err != nil {
		e.logger.Warn("failed to load session summary, continuing without it", "session", sessionID, "err", err)
		summary = ""
	}

	contexts := e.retriever.Search(ctx, question, embedding, e.topK)

	var text string
	source := SourceGenerated
	if len(contexts) == 0 {
		text = FallbackAnswer
		source = SourceFallback
	} else {
		prompt := buildAnswerPrompt(question, contexts, summary, recent)
		err := ai.RetryWithBackoff(ctx, func() error {
			var genErr error
			text, genErr = e.provider.Generator().Generate(ctx, prompt, ai.WithSystemPrompt(answerSystemPrompt))
			return genErr
		}, askMaxAttempts, askRetryBaseWait)
		if err != nil {
			return nil, fmt.Errorf("generating answer: %w", err)
		}
	}

	// The answer is already in hand; persistence failures must not take
	// it away from the caller.
	if err := e.memory.Append(ctx, sessionID, core.RoleUser, question); err != nil {
		e.logger.Error("failed to persist question", "session", sessionID, "err", err)
	}
	if err := e.memory.Append(ctx, sessionID, core.RoleAssistant, text); err != nil {
		e.logger.Error("failed to persist answer", "session", sessionID, "err", err)
	}

	e.memory.TriggerSummarization(ctx, sessionID)

	if source == SourceGenerated {
		e.cache.Set(ctx, sessionID, question, text, embedding)
	}

	return &Answer{Text: text, Contexts: contexts, Source: source}, nil
}

// History returns a session's full transcript, oldest first.
func (e *Engine) History(ctx context.Context, sessionID string) ([]*core.Message, error) {
	return e.memory.GetTranscript(ctx, sessionID)
}

// Memory exposes the conversation memory.
func (e *Engine) Memory() *memory.ConversationMemory {
	return e.memory
}

// Retriever exposes the hybrid retriever.
func (e *Engine) Retriever() *retrieval.HybridRetriever {
	return e.retriever
}

// Cache exposes the semantic answer cache.
func (e *Engine) Cache() *cache.SemanticCache {
	return e.cache
}
