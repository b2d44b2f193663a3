package docent

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/docent/ai"
	"github.com/poiesic/docent/ai/mock"
	"github.com/poiesic/docent/core"
	"github.com/poiesic/docent/indexer"
)

var testCorpus = []indexer.Document{
	{Text: "Metformin is the recommended first-line pharmacologic agent for type 2 diabetes in most adults."},
	{Text: "Insulin should be refrigerated between 2 and 8 degrees Celsius and discarded 28 days after opening."},
	{Text: "Renal function must be assessed before initiating metformin and at least annually thereafter."},
	{Text: "Blood pressure targets for most adults with diabetes are below 130 over 80 millimeters of mercury."},
}

func newTestEngine(t *testing.T) (*Engine, *mock.MockProvider) {
	t.Helper()

	provider := mock.NewMockProvider().(*mock.MockProvider)
	engine, err := NewEngine("", WithInMemory(), WithProvider(provider))
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })

	_, err = engine.IndexDocuments(context.Background(), testCorpus)
	require.NoError(t, err)
	return engine, provider
}

func TestAskGeneratesFromContext(t *testing.T) {
	engine, provider := newTestEngine(t)
	ctx := context.Background()

	provider.GetMockGenerator().GenerateFunc = func(_ context.Context, prompt string, opts ai.GenerateOptions) (string, error) {
		assert.Contains(t, prompt, "Context:")
		assert.Contains(t, prompt, "metformin")
		assert.NotEmpty(t, opts.SystemPrompt)
		return "Metformin is first line; assess renal function before starting.", nil
	}

	answer, err := engine.Ask(ctx, "session-1", "When should metformin be started?")
	require.NoError(t, err)
	assert.Equal(t, SourceGenerated, answer.Source)
	assert.NotEmpty(t, answer.Contexts)
	assert.Equal(t, "Metformin is first line; assess renal function before starting.", answer.Text)
}

func TestAskCachesAndServesSimilarQuestion(t *testing.T) {
	engine, provider := newTestEngine(t)
	ctx := context.Background()

	provider.GetMockGenerator().GenerateFunc = func(context.Context, string, ai.GenerateOptions) (string, error) {
		return "generated answer", nil
	}
	// Same embedding for every question makes any repeat a cache hit
	provider.GetMockEmbedder().EmbedTextFunc = func(context.Context, string) ([]float32, error) {
		return []float32{1, 0, 0}, nil
	}

	first, err := engine.Ask(ctx, "session-1", "When should metformin be started?")
	require.NoError(t, err)
	require.Equal(t, SourceGenerated, first.Source)

	second, err := engine.Ask(ctx, "session-1", "At what point does one begin metformin?")
	require.NoError(t, err)
	assert.Equal(t, SourceCached, second.Source)
	assert.Equal(t, first.Text, second.Text)

	// A different session never sees the cached answer
	third, err := engine.Ask(ctx, "session-2", "When should metformin be started?")
	require.NoError(t, err)
	assert.Equal(t, SourceGenerated, third.Source)
}

func TestAskFallbackOnNoContext(t *testing.T) {
	provider := mock.NewMockProvider().(*mock.MockProvider)
	engine, err := NewEngine("", WithInMemory(), WithProvider(provider))
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })

	// Empty corpus: retrieval finds nothing
	answer, err := engine.Ask(context.Background(), "session-1", "Anything at all?")
	require.NoError(t, err)
	assert.Equal(t, SourceFallback, answer.Source)
	assert.Equal(t, FallbackAnswer, answer.Text)
	assert.Empty(t, answer.Contexts)
	assert.Zero(t, provider.GetMockGenerator().CallCount(), "fallback must not invoke generation")
}

func TestAskFallbackNotCached(t *testing.T) {
	provider := mock.NewMockProvider().(*mock.MockProvider)
	engine, err := NewEngine("", WithInMemory(), WithProvider(provider))
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })
	ctx := context.Background()

	provider.GetMockEmbedder().EmbedTextFunc = func(context.Context, string) ([]float32, error) {
		return []float32{1, 0}, nil
	}

	first, err := engine.Ask(ctx, "session-1", "No documents yet?")
	require.NoError(t, err)
	require.Equal(t, SourceFallback, first.Source)

	second, err := engine.Ask(ctx, "session-1", "Still no documents?")
	require.NoError(t, err)
	assert.Equal(t, SourceFallback, second.Source, "fallback answers must not be served from cache")
}

func TestAskPersistsConversation(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.Ask(ctx, "session-1", "When should metformin be started?")
	require.NoError(t, err)

	history, err := engine.History(ctx, "session-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, core.RoleUser, history[0].Role)
	assert.Equal(t, "When should metformin be started?", history[0].Content)
	assert.Equal(t, core.RoleAssistant, history[1].Role)
}

func TestAskTriggersSummarization(t *testing.T) {
	engine, provider := newTestEngine(t)
	ctx := context.Background()

	summarized := false
	provider.GetMockGenerator().GenerateFunc = func(_ context.Context, prompt string, _ ai.GenerateOptions) (string, error) {
		if len(prompt) > 0 && prompt[:3] == "You" {
			summarized = true
			return "rolling summary", nil
		}
		return "an answer", nil
	}
	// Distinct embeddings so cache never hits
	question := 0
	provider.GetMockEmbedder().EmbedTextFunc = func(context.Context, string) ([]float32, error) {
		question++
		v := make([]float32, 8)
		v[question%8] = 1
		return v, nil
	}

	for i := 0; i < 3; i++ {
		_, err := engine.Ask(ctx, "session-1", fmt.Sprintf("Question number %d about metformin dosing?", i))
		require.NoError(t, err)
	}
	engine.Memory().Wait()

	require.True(t, summarized)
	summary, ok, err := engine.Memory().GetSummary(ctx, "session-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "rolling summary", summary)
}

func TestAskGenerationFailure(t *testing.T) {
	engine, provider := newTestEngine(t)

	provider.GetMockGenerator().GenerateFunc = func(context.Context, string, ai.GenerateOptions) (string, error) {
		return "", ai.ErrGenerationUnavailable
	}

	_, err := engine.Ask(context.Background(), "session-1", "When should metformin be started?")
	assert.ErrorIs(t, err, ai.ErrGenerationUnavailable)
}

func TestAskEmbeddingFailure(t *testing.T) {
	engine, provider := newTestEngine(t)

	provider.GetMockEmbedder().EmbedTextFunc = func(context.Context, string) ([]float32, error) {
		return nil, ai.ErrEmbeddingUnavailable
	}

	_, err := engine.Ask(context.Background(), "session-1", "When should metformin be started?")
	assert.ErrorIs(t, err, ai.ErrEmbeddingUnavailable)
}

func TestAskInputValidation(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.Ask(ctx, "", "question?")
	assert.Error(t, err)

	_, err = engine.Ask(ctx, "session-1", "")
	assert.ErrorIs(t, err, core.ErrEmptyContent)
}

func TestEngineRestoresLexicalIndex(t *testing.T) {
	dir := t.TempDir()
	provider := mock.NewMockProvider().(*mock.MockProvider)

	engine, err := NewEngine(dir, WithProvider(provider))
	require.NoError(t, err)
	_, err = engine.IndexDocuments(context.Background(), testCorpus)
	require.NoError(t, err)
	require.NoError(t, engine.Close())

	reopened, err := NewEngine(dir, WithProvider(mock.NewMockProvider()))
	require.NoError(t, err)
	defer reopened.Close()

	answer, err := reopened.Ask(context.Background(), "session-1", "When should metformin therapy be initiated?")
	require.NoError(t, err)
	assert.NotEqual(t, SourceFallback, answer.Source, "persisted index must serve after reopen")
}

func TestSourceString(t *testing.T) {
	assert.Equal(t, "generated", SourceGenerated.String())
	assert.Equal(t, "cached", SourceCached.String())
	assert.Equal(t, "fallback", SourceFallback.String())
	assert.Equal(t, "unknown", Source(0).String())
}

var errBoom = errors.New("boom")

func TestAskRetriesTransientEmbeddingFailure(t *testing.T) {
	engine, provider := newTestEngine(t)

	attempts := 0
	provider.GetMockEmbedder().EmbedTextFunc = func(context.Context, string) ([]float32, error) {
		attempts++
		if attempts == 1 {
			return nil, errBoom
		}
		return []float32{1, 0}, nil
	}

	_, err := engine.Ask(context.Background(), "session-1", "When should metformin be started?")
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestAskDeadlineCutsOffHungGeneration(t *testing.T) {
	provider := mock.NewMockProvider().(*mock.MockProvider)
	engine, err := NewEngine("", WithInMemory(), WithProvider(provider),
		WithAskTimeout(100*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })

	_, err = engine.IndexDocuments(context.Background(), testCorpus)
	require.NoError(t, err)

	provider.GetMockGenerator().GenerateFunc = func(ctx context.Context, _ string, _ ai.GenerateOptions) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}

	start := time.Now()
	_, err = engine.Ask(context.Background(), "session-1", "When should metformin be started?")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second, "a hung backend must not block the caller")
}

// recordingCacheStore tracks whether Close was called.
type recordingCacheStore struct {
	closed bool
}

func (s *recordingCacheStore) Put(context.Context, string, core.ID, *core.CacheEntry, time.Duration) error {
	return nil
}

func (s *recordingCacheStore) Entries(context.Context, string) ([]*core.CacheEntry, error) {
	return nil, nil
}

func (s *recordingCacheStore) Close() error {
	s.closed = true
	return nil
}

func TestCloseClosesInjectedCacheStore(t *testing.T) {
	store := &recordingCacheStore{}
	engine, err := NewEngine("", WithInMemory(), WithProvider(mock.NewMockProvider()),
		WithCacheStore(store))
	require.NoError(t, err)

	require.NoError(t, engine.Close())
	assert.True(t, store.closed, "an injected cache store owns a connection that must be released")
}
