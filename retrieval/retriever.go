package retrieval

import (
	"context"
	"log/slog"
	"sort"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/poiesic/docent/ai"
	"github.com/poiesic/docent/core"
)

// HybridRetriever orchestrates lexical and vector search, identifier
// fusion, and reranking. It holds no per-call state and is safe for
// concurrent use.
type HybridRetriever struct {
	lexical   *LexicalIndex
	vectors   VectorIndex
	reranker  ai.Reranker
	config    Config
	namespace string
	logger    *slog.Logger
}

// candidate is the ephemeral retrieval-time pairing of an id with its
// fetched text. It lives only for the duration of one Search call.
type candidate struct {
	id   core.ID
	text string
}

// Option configures a HybridRetriever.
type Option func(*HybridRetriever) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *HybridRetriever) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// WithConfig overrides the default retrieval parameters.
func WithConfig(config Config) Option {
	return func(r *HybridRetriever) error {
		if err := config.Validate(); err != nil {
			return err
		}
		r.config = config
		return nil
	}
}

// WithNamespace sets the vector index namespace used on queries and
// fetches. Default is the empty namespace.
func WithNamespace(namespace string) Option {
	return func(r *HybridRetriever) error {
		r.namespace = namespace
		return nil
	}
}

// NewHybridRetriever creates a new retriever.
func NewHybridRetriever(
	lexical *LexicalIndex,
	vectors VectorIndex,
	reranker ai.Reranker,
	opts ...Option,
) (*HybridRetriever, error) {
	if lexical == nil {
		return nil, ErrLexicalIndexRequired
	}
	if vectors == nil {
		return nil, ErrVectorIndexRequired
	}
	if reranker == nil {
		return nil, ErrRerankerRequired
	}

	r := &HybridRetriever{
		lexical:  lexical,
		vectors:  vectors,
		reranker: reranker,
		config:   DefaultConfig(),
		logger:   slog.Default(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// Search runs the hybrid retrieval pipeline and returns up to topK context
// texts ordered by relevance. An empty list means nothing was found or
// retrieval failed; failures are logged, never returned.
func (r *HybridRetriever) Search(ctx context.Context, query string, queryEmbedding []float32, topK int) []string {
	return r.SearchWithMonitor(ctx, query, queryEmbedding, topK, nil)
}

// SearchWithMonitor runs Search with monitoring. The monitor receives
// callbacks at each stage of the retrieval process.
func (r *HybridRetriever) SearchWithMonitor(ctx context.Context, query string, queryEmbedding []float32, topK int, monitor RetrievalMonitor) []string {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	if topK <= 0 {
		topK = r.config.DefaultTopK
	}

	monitor.Start(query)

	// 1. Lexical and vector search run concurrently. A failure on either
	// side degrades that side to an empty result set rather than aborting
	// the whole search.
	var lexicalHits []ScoredID
	var vectorHits []VectorMatch
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lexicalHits = r.lexical.Search(query, topK)
		return nil
	})
	g.Go(func() error {
		matches, err := r.vectors.Query(gctx, queryEmbedding, topK, r.namespace)
		if err != nil {
			r.logger.Warn("vector query failed, continuing with lexical results only", "err", err)
			return nil
		}
		vectorHits = matches
		return nil
	})
	_ = g.Wait()
	sort.SliceStable(vectorHits, func(a, b int) bool {
		return vectorHits[a].Score > vectorHits[b].Score
	})
	monitor.AfterLexicalSearch(lexicalHits)
	monitor.AfterVectorSearch(vectorHits)

	// 2. High-confidence short-circuit: a near-exact vector match needs no
	// reranking.
	if len(vectorHits) > 0 && vectorHits[0].Score >= r.config.ShortCircuitScore {
		monitor.ShortCircuit(vectorHits)
		contexts := make([]string, 0, topK)
		for _, match := range vectorHits {
			if len(contexts) == topK {
				break
			}
			text := match.Text
			if text == "" {
				text = match.Metadata["text"]
			}
			// The length floor applies here too; a near-exact match on a
			// stub passage is still a stub passage.
			if utf8.RuneCountInString(text) >= r.config.MinContextLen {
				contexts = append(contexts, text)
			}
		}
		monitor.Finish(contexts)
		return contexts
	}

	// 3. Identifier-level union, lexical first then vector, duplicates
	// collapsed. Arrival order matters later when the rerank cap applies.
	seen := make(map[core.ID]bool)
	fused := make([]core.ID, 0, len(lexicalHits)+len(vectorHits))
	for _, hit := range lexicalHits {
		if !seen[hit.Id] {
			seen[hit.Id] = true
			fused = append(fused, hit.Id)
		}
	}
	for _, match := range vectorHits {
		if !seen[match.Id] {
			seen[match.Id] = true
			fused = append(fused, match.Id)
		}
	}
	monitor.AfterFusion(fused)

	// 4. Nothing found is not an error.
	if len(fused) == 0 {
		monitor.Finish([]string{})
		return []string{}
	}

	// 5. Batch fetch. Partial responses are fine; ids absent from the
	// fetch simply drop out.
	records, err := r.vectors.Fetch(ctx, fused, r.namespace)
	if err != nil {
		r.logger.Error("candidate fetch failed", "candidateCount", len(fused), "err", err)
		monitor.Finish([]string{})
		return []string{}
	}
	monitor.AfterFetch(len(records))

	// Length floor: short fragments are noise, not context.
	candidates := make([]candidate, 0, len(fused))
	for _, id := range fused {
		record, ok := records[id]
		if !ok {
			continue
		}
		if utf8.RuneCountInString(record.Text) < r.config.MinContextLen {
			continue
		}
		candidates = append(candidates, candidate{id: id, text: record.Text})
	}
	monitor.AfterLengthFilter(len(candidates))

	// 6. Nothing survived the filter.
	if len(candidates) == 0 {
		monitor.Finish([]string{})
		return []string{}
	}

	// 7. Cap before reranking to bound reranker latency. Selection among
	// the survivors is arrival order.
	if len(candidates) > r.config.RerankCap {
		candidates = candidates[:r.config.RerankCap]
	}

	// 8. Rerank and sort descending. The sort is stable, so ties keep
	// arrival order.
	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.text
	}
	scores, err := r.reranker.Rerank(ctx, query, texts)
	if err != nil || len(scores) != len(texts) {
		r.logger.Error("rerank failed", "candidateCount", len(texts), "err", err)
		monitor.Finish([]string{})
		return []string{}
	}
	monitor.AfterRerank(scores)

	order := make([]int, len(texts))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	// 9. Top-k texts only; scores are ordering-internal.
	if len(order) > topK {
		order = order[:topK]
	}
	contexts := make([]string, len(order))
	for i, idx := range order {
		contexts[i] = texts[idx]
	}
	monitor.Finish(contexts)
	return contexts
}
