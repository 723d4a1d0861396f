package search

import (
	"iter"

	"github.com/poiesic/websift/core"
)

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps and results during search.
type SearchMonitor interface {
	Start(query string)
	AfterQueryEmbedding(dimensions int)
	AfterVectorSearch(segmentIds []core.ID)
	AfterDocumentJoin(documentIds iter.Seq[core.ID])
	VerbatimHit(record *core.SegmentRecord)
	Finish(matches []*core.RankedMatch)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                       {}
func (n *noopMonitor) AfterQueryEmbedding(_ int)            {}
func (n *noopMonitor) AfterVectorSearch(_ []core.ID)        {}
func (n *noopMonitor) AfterDocumentJoin(_ iter.Seq[core.ID]) {}
func (n *noopMonitor) VerbatimHit(_ *core.SegmentRecord)    {}
func (n *noopMonitor) Finish(_ []*core.RankedMatch)         {}
