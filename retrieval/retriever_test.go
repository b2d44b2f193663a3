package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/docent/ai/mock"
	"github.com/poiesic/docent/core"
)

// fakeVectorIndex is a scriptable VectorIndex for retriever tests.
type fakeVectorIndex struct {
	QueryFunc func(ctx context.Context, vector []float32, topK int, namespace string) ([]VectorMatch, error)
	records   map[core.ID]VectorRecord
}

func (f *fakeVectorIndex) Query(ctx context.Context, vector []float32, topK int, namespace string) ([]VectorMatch, error) {
	if f.QueryFunc != nil {
		return f.QueryFunc(ctx, vector, topK, namespace)
	}
	return []VectorMatch{}, nil
}

func (f *fakeVectorIndex) Fetch(_ context.Context, ids []core.ID, _ string) (map[core.ID]VectorRecord, error) {
	result := make(map[core.ID]VectorRecord)
	for _, id := range ids {
		if record, ok := f.records[id]; ok {
			result[id] = record
		}
	}
	return result, nil
}

// fusionMonitor records the fused id set for assertions.
type fusionMonitor struct {
	noopMonitor
	fused []core.ID
}

func (m *fusionMonitor) AfterFusion(ids []core.ID) {
	m.fused = ids
}

var corpusTexts = []string{
	"Metformin is the recommended first-line pharmacologic agent for type 2 diabetes in most adults.",
	"Insulin should be refrigerated between 2 and 8 degrees Celsius and discarded 28 days after opening.",
	"Renal function must be assessed before initiating metformin and at least annually thereafter.",
	"Aspirin therapy for primary prevention requires an individualized assessment of bleeding risk.",
	"Blood pressure targets for most adults with diabetes are below 130 over 80 millimeters of mercury.",
	"Statin therapy intensity should be matched to the patient's atherosclerotic cardiovascular risk.",
	"Annual dilated eye examinations are recommended to screen for diabetic retinopathy in all patients.",
	"Foot examinations at every visit are advised for patients with diagnosed peripheral neuropathy.",
}

func buildTestRetriever(t *testing.T, texts []string) (*HybridRetriever, *fakeVectorIndex, *mock.MockReranker, []*core.Chunk) {
	t.Helper()

	chunks := make([]*core.Chunk, len(texts))
	records := make(map[core.ID]VectorRecord, len(texts))
	for i, text := range texts {
		chunks[i] = core.NewChunk(text, nil)
		records[chunks[i].Id] = VectorRecord{Text: text}
	}

	lexical, err := NewLexicalIndex(DefaultConfig())
	require.NoError(t, err)
	lexical.Build(chunks)

	vectors := &fakeVectorIndex{records: records}
	reranker := mock.NewMockReranker()

	retriever, err := NewHybridRetriever(lexical, vectors, reranker)
	require.NoError(t, err)
	return retriever, vectors, reranker, chunks
}

func vectorMatches(chunks []*core.Chunk, scores map[int]float32) []VectorMatch {
	matches := make([]VectorMatch, 0, len(scores))
	for i, score := range scores {
		matches = append(matches, VectorMatch{Id: chunks[i].Id, Score: score, Text: chunks[i].Text})
	}
	return matches
}

func TestSearchEmptyCorpus(t *testing.T) {
	retriever, _, reranker, _ := buildTestRetriever(t, nil)

	contexts := retriever.Search(context.Background(), "metformin dosing", []float32{0.1}, 5)
	assert.Empty(t, contexts)
	assert.Zero(t, reranker.CallCount())
}

func TestSearchFusionCompleteness(t *testing.T) {
	retriever, vectors, _, chunks := buildTestRetriever(t, corpusTexts)

	// Vector side returns two ids below the short-circuit threshold, one
	// overlapping with the lexical side.
	vectors.QueryFunc = func(context.Context, []float32, int, string) ([]VectorMatch, error) {
		return vectorMatches(chunks, map[int]float32{0: 0.7, 3: 0.6}), nil
	}

	monitor := &fusionMonitor{}
	retriever.SearchWithMonitor(context.Background(), "metformin renal function", []float32{0.1}, 5, monitor)

	lexicalHits := retriever.lexical.Search("metformin renal function", 5)
	expected := make(map[core.ID]bool)
	for _, hit := range lexicalHits {
		expected[hit.Id] = true
	}
	expected[chunks[0].Id] = true
	expected[chunks[3].Id] = true

	got := make(map[core.ID]bool)
	for _, id := range monitor.fused {
		got[id] = true
	}
	assert.Equal(t, expected, got, "fused set must equal the union of lexical and vector ids")
}

func TestSearchShortCircuit(t *testing.T) {
	retriever, vectors, reranker, chunks := buildTestRetriever(t, corpusTexts)

	vectors.QueryFunc = func(context.Context, []float32, int, string) ([]VectorMatch, error) {
		return []VectorMatch{
			{Id: chunks[2].Id, Score: 0.90, Text: chunks[2].Text},
			{Id: chunks[0].Id, Score: 0.72, Text: chunks[0].Text},
		}, nil
	}

	contexts := retriever.Search(context.Background(), "metformin renal", []float32{0.1}, 5)
	require.Equal(t, []string{chunks[2].Text, chunks[0].Text}, contexts)
	assert.Zero(t, reranker.CallCount(), "short circuit must skip reranking")
}

func TestSearchShortCircuitTruncatesToTopK(t *testing.T) {
	retriever, vectors, reranker, chunks := buildTestRetriever(t, corpusTexts)

	vectors.QueryFunc = func(context.Context, []float32, int, string) ([]VectorMatch, error) {
		return []VectorMatch{
			{Id: chunks[0].Id, Score: 0.95, Text: chunks[0].Text},
			{Id: chunks[1].Id, Score: 0.91, Text: chunks[1].Text},
			{Id: chunks[2].Id, Score: 0.88, Text: chunks[2].Text},
		}, nil
	}

	contexts := retriever.Search(context.Background(), "anything", []float32{0.1}, 2)
	assert.Equal(t, []string{chunks[0].Text, chunks[1].Text}, contexts)
	assert.Zero(t, reranker.CallCount())
}

func TestSearchShortCircuitAppliesLengthFloor(t *testing.T) {
	texts := append([]string{}, corpusTexts...)
	texts = append(texts, "Brief.")
	retriever, vectors, reranker, chunks := buildTestRetriever(t, texts)

	short := chunks[len(chunks)-1]
	vectors.QueryFunc = func(context.Context, []float32, int, string) ([]VectorMatch, error) {
		return []VectorMatch{
			{Id: short.Id, Score: 0.95, Text: short.Text},
			{Id: chunks[0].Id, Score: 0.90, Text: chunks[0].Text},
		}, nil
	}

	contexts := retriever.Search(context.Background(), "metformin", []float32{0.1}, 5)
	assert.Equal(t, []string{chunks[0].Text}, contexts, "a near-exact match still has to clear the length floor")
	assert.Zero(t, reranker.CallCount())
}

func TestSearchLengthFloor(t *testing.T) {
	texts := append([]string{}, corpusTexts...)
	texts = append(texts, "Too short.", "Tiny note metformin.")
	retriever, vectors, _, chunks := buildTestRetriever(t, texts)

	short1 := chunks[len(chunks)-2]
	short2 := chunks[len(chunks)-1]
	vectors.QueryFunc = func(context.Context, []float32, int, string) ([]VectorMatch, error) {
		return vectorMatches(chunks, map[int]float32{0: 0.7}), nil
	}

	contexts := retriever.Search(context.Background(), "metformin", []float32{0.1}, 5)
	require.NotEmpty(t, contexts)
	for _, text := range contexts {
		assert.GreaterOrEqual(t, len(text), 40)
		assert.NotEqual(t, short1.Text, text)
		assert.NotEqual(t, short2.Text, text)
	}
}

func TestSearchCapBeforeRerank(t *testing.T) {
	retriever, vectors, reranker, chunks := buildTestRetriever(t, corpusTexts)

	// Vector search contributes every chunk, so the fused set is larger
	// than the rerank cap.
	vectors.QueryFunc = func(context.Context, []float32, int, string) ([]VectorMatch, error) {
		scores := make(map[int]float32, len(chunks))
		for i := range chunks {
			scores[i] = 0.5
		}
		return vectorMatches(chunks, scores), nil
	}

	contexts := retriever.Search(context.Background(), "diabetes patients therapy", []float32{0.1}, 5)
	require.NotEmpty(t, contexts)
	assert.Equal(t, 1, reranker.CallCount())
	assert.LessOrEqual(t, reranker.MaxBatchSize(), 6)
}

func TestSearchFullOverlapRerankBatch(t *testing.T) {
	retriever, vectors, reranker, chunks := buildTestRetriever(t, corpusTexts)

	// Vector search returns the same three documents the lexical side
	// finds; the union must collapse to three, not six.
	query := "metformin renal diabetes"
	lexicalHits := retriever.lexical.Search(query, 3)
	require.Len(t, lexicalHits, 3)

	vectors.QueryFunc = func(context.Context, []float32, int, string) ([]VectorMatch, error) {
		matches := make([]VectorMatch, 0, 3)
		for _, hit := range lexicalHits {
			for _, chunk := range chunks {
				if chunk.Id == hit.Id {
					matches = append(matches, VectorMatch{Id: chunk.Id, Score: 0.6, Text: chunk.Text})
				}
			}
		}
		return matches, nil
	}

	contexts := retriever.Search(context.Background(), query, []float32{0.1}, 5)
	require.NotEmpty(t, contexts)
	require.Len(t, reranker.BatchSizes, 1)
	assert.Equal(t, 3, reranker.BatchSizes[0])
}

func TestSearchAllCandidatesTooShort(t *testing.T) {
	retriever, vectors, reranker, chunks := buildTestRetriever(t, []string{
		"Short one.",
		"Short two.",
		"Short three.",
	})

	vectors.QueryFunc = func(context.Context, []float32, int, string) ([]VectorMatch, error) {
		return vectorMatches(chunks, map[int]float32{0: 0.6, 1: 0.5, 2: 0.4}), nil
	}

	contexts := retriever.Search(context.Background(), "short", []float32{0.1}, 5)
	assert.Empty(t, contexts)
	assert.Zero(t, reranker.CallCount())
}

func TestSearchRerankOrdersResults(t *testing.T) {
	retriever, vectors, reranker, chunks := buildTestRetriever(t, corpusTexts)

	vectors.QueryFunc = func(context.Context, []float32, int, string) ([]VectorMatch, error) {
		return vectorMatches(chunks, map[int]float32{1: 0.6}), nil
	}
	reranker.RerankFunc = func(_ context.Context, _ string, candidates []string) ([]float32, error) {
		// Highest score to the insulin document regardless of position
		scores := make([]float32, len(candidates))
		for i, text := range candidates {
			if text == chunks[1].Text {
				scores[i] = 10
			} else {
				scores[i] = 1
			}
		}
		return scores, nil
	}

	contexts := retriever.Search(context.Background(), "metformin renal", []float32{0.1}, 5)
	require.NotEmpty(t, contexts)
	assert.Equal(t, chunks[1].Text, contexts[0])
}

func TestSearchVectorFailureDegradesToLexical(t *testing.T) {
	retriever, vectors, _, chunks := buildTestRetriever(t, corpusTexts)

	vectors.QueryFunc = func(context.Context, []float32, int, string) ([]VectorMatch, error) {
		return nil, errors.New("index unreachable")
	}

	contexts := retriever.Search(context.Background(), "metformin renal", []float32{0.1}, 5)
	require.NotEmpty(t, contexts, "lexical hits should survive a vector outage")
	assert.Contains(t, contexts, chunks[2].Text)
}

func TestSearchRerankFailureReturnsEmpty(t *testing.T) {
	retriever, vectors, reranker, chunks := buildTestRetriever(t, corpusTexts)

	vectors.QueryFunc = func(context.Context, []float32, int, string) ([]VectorMatch, error) {
		return vectorMatches(chunks, map[int]float32{0: 0.6}), nil
	}
	reranker.RerankFunc = func(context.Context, string, []string) ([]float32, error) {
		return nil, errors.New("model overloaded")
	}

	contexts := retriever.Search(context.Background(), "metformin renal", []float32{0.1}, 5)
	assert.Empty(t, contexts)
}

func TestNewHybridRetrieverValidation(t *testing.T) {
	lexical, err := NewLexicalIndex(DefaultConfig())
	require.NoError(t, err)
	vectors := &fakeVectorIndex{}
	reranker := mock.NewMockReranker()

	_, err = NewHybridRetriever(nil, vectors, reranker)
	assert.ErrorIs(t, err, ErrLexicalIndexRequired)

	_, err = NewHybridRetriever(lexical, nil, reranker)
	assert.ErrorIs(t, err, ErrVectorIndexRequired)

	_, err = NewHybridRetriever(lexical, vectors, nil)
	assert.ErrorIs(t, err, ErrRerankerRequired)
}
