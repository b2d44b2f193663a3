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


// Package memory maintains per-session conversation state: a bounded
// recent-message window over an append-only log, and a single rolling
// summary compacted in the background when the window fills.
package memory

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/docent/ai"
	"github.com/poiesic/docent/core"
	"github.com/poiesic/docent/storage"
)

// DefaultWindowSize is how many recent messages feed context building and
// how many must accumulate before summarization triggers.
const DefaultWindowSize = 6

// ConversationMemory provides windowed history and rolling summaries for
// chat sessions. Mutations within one session are serialized; sessions are
// independent.
type ConversationMemory struct {
	sessions   storage.SessionRepository
	generator  ai.Generator
	pool       *ants.Pool
	windowSize int
	logger     *slog.Logger

	locksMu      sync.Mutex
	sessionLocks map[string]*sync.Mutex

	background sync.WaitGroup
}

// Option configures a ConversationMemory.
type Option func(*ConversationMemory) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(m *ConversationMemory) error {
		if logger == nil {
			logger = slog.Default()
		}
		m.logger = logger
		return nil
	}
}

// WithWindowSize sets the recent-message window and the summarization
// trigger threshold. Default is DefaultWindowSize.
func WithWindowSize(size int) Option {
	return func(m *ConversationMemory) error {
		if size < 1 {
			return ErrInvalidWindowSize
		}
		m.windowSize = size
		return nil
	}
}

// WithPoolSize sets the worker pool size for background summarization.
// Default is 1.
func WithPoolSize(size int) Option {
	return func(m *ConversationMemory) error {
		if size < 1 {
			size = 1
		}
		if m.pool != nil {
			m.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		m.pool = pool
		return nil
	}
}

// NewConversationMemory creates a new conversation memory.
func NewConversationMemory(
	sessions storage.SessionRepository,
	generator ai.Generator,
	opts ...Option,
) (*ConversationMemory, error) {
	if sessions == nil {
		return nil, ErrSessionRepositoryRequired
	}
	if generator == nil {
		return nil, ErrGeneratorRequired
	}

	pool, err := ants.NewPool(1)
	if err != nil {
		return nil, err
	}

	m := &ConversationMemory{
		sessions:     sessions,
		generator:    generator,
		pool:         pool,
		windowSize:   DefaultWindowSize,
		logger:       slog.Default(),
		sessionLocks: make(map[string]*sync.Mutex),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(m); err != nil {
			m.pool.Release()
			return nil, err
		}
	}

	return m, nil
}

// Close waits for in-flight summarizations and releases the pool.
func (m *ConversationMemory) Close() error {
	m.background.Wait()
	m.pool.Release()
	return nil
}

// Wait blocks until all queued background summarizations finish.
func (m *ConversationMemory) Wait() {
	m.background.Wait()
}

func (m *ConversationMemory) sessionLock(sessionID string) *sync.Mutex {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()
	lock, ok := m.sessionLocks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		m.sessionLocks[sessionID] = lock
	}
	return lock
}

// GetRecent returns the most recent messages for a session, oldest first,
// bounded by the window size. An unknown session yields an empty list.
func (m *ConversationMemory) GetRecent(ctx context.Context, sessionID string) ([]*core.Message, error) {
	return m.sessions.GetRecentMessages(ctx, sessionID, m.windowSize)
}

// GetTranscript returns a session's full message history, oldest first.
func (m *ConversationMemory) GetTranscript(ctx context.Context, sessionID string) ([]*core.Message, error) {
	return m.sessions.GetAllMessages(ctx, sessionID)
}

// Append adds a message to the session log. Storage is unbounded; the
// window limit applies only at read time.
func (m *ConversationMemory) Append(ctx context.Context, sessionID string, role core.Role, content string) error {
	lock := m.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	return m.sessions.AppendMessage(ctx, sessionID, &core.Message{
		Role:    role,
		Content: content,
	})
}

// GetSummary returns the session's rolling summary, or ok=false when the
// session has never been summarized.
func (m *ConversationMemory) GetSummary(ctx context.Context, sessionID string) (string, bool, error) {
	summary, err := m.sessions.GetSummary(ctx, sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return summary, true, nil
}

// SetSummary overwrites the session's rolling summary.
func (m *ConversationMemory) SetSummary(ctx context.Context, sessionID string, summary string) error {
	return m.sessions.SetSummary(ctx, sessionID, summary)
}

// TriggerSummarization queues a background compaction if the session's
// recent window has filled. The caller never waits on the result; a failed
// compaction is logged and the old summary kept.
func (m *ConversationMemory) TriggerSummarization(ctx context.Context, sessionID string) {
	recent, err := m.sessions.GetRecentMessages(ctx, sessionID, m.windowSize)
	if err != nil {
		m.logger.Warn("summarization check failed", "session", sessionID, "err", err)
		return
	}
	if len(recent) < m.windowSize {
		return
	}

	m.background.Add(1)
	err = m.pool.Submit(func() {
		defer m.background.Done()
		if err := m.Compact(context.Background(), sessionID); err != nil {
			m.logger.Error("summary compaction failed, keeping previous summary", "session", sessionID, "err", err)
		}
	})
	if err != nil {
		m.background.Done()
		m.logger.Error("failed to queue summary compaction", "session", sessionID, "err", err)
	}
}

// Compact rebuilds the session summary from the existing summary and the
// recent window, replacing the stored summary entirely.
func (m *ConversationMemory) Compact(ctx context.Context, sessionID string) error {
	lock := m.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	recent, err := m.sessions.GetRecentMessages(ctx, sessionID, m.windowSize)
	if err != nil {
		return err
	}
	if len(recent) == 0 {
		return nil
	}

	existing, err := m.sessions.GetSummary(ctx, sessionID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	prompt := buildCompactionPrompt(existing, recent)
	summary, err := m.generator.Generate(ctx, prompt)
	if err != nil {
		return err
	}

	return m.sessions.SetSummary(ctx, sessionID, summary)
}
