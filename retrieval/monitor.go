package retrieval

import "github.com/poiesic/docent/core"

// RetrievalMonitor provides hooks to observe the retrieval process.
// Implement this interface to track intermediate steps and results during a
// hybrid search.
type RetrievalMonitor interface {
	Start(query string)
	AfterLexicalSearch(hits []ScoredID)
	AfterVectorSearch(matches []VectorMatch)
	ShortCircuit(matches []VectorMatch)
	AfterFusion(ids []core.ID)
	AfterFetch(candidateCount int)
	AfterLengthFilter(candidateCount int)
	AfterRerank(scores []float32)
	Finish(contexts []string)
}

// noopMonitor is a no-op implementation of RetrievalMonitor
type noopMonitor struct{}

var _ RetrievalMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                    {}
func (n *noopMonitor) AfterLexicalSearch(_ []ScoredID)   {}
func (n *noopMonitor) AfterVectorSearch(_ []VectorMatch) {}
func (n *noopMonitor) ShortCircuit(_ []VectorMatch)      {}
func (n *noopMonitor) AfterFusion(_ []core.ID)           {}
func (n *noopMonitor) AfterFetch(_ int)                  {}
func (n *noopMonitor) AfterLengthFilter(_ int)           {}
func (n *noopMonitor) AfterRerank(_ []float32)           {}
func (n *noopMonitor) Finish(_ []string)                 {}
