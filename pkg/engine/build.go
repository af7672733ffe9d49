package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/calaix/esmena/pkg/embed"
	"github.com/calaix/esmena/pkg/glossary"
	"github.com/calaix/esmena/pkg/index"
)

// IndexType names the similarity index implementation in build reports.
const IndexType = "flat-ip"

// BuildReport is the structured result of one rebuild. Soft failures set
// Success=false with Error populated; the previously published generation
// stays intact and serving either way.
type BuildReport struct {
	Success           bool   `json:"success"`
	GlossaryEntries   int    `json:"glossary_entries"`
	VectorizedEntries int    `json:"vectorized_entries"`
	EmbeddingModel    string `json:"embedding_model,omitempty"`
	VectorDimensions  int    `json:"vector_dimensions,omitempty"`
	IndexType         string `json:"index_type,omitempty"`
	ProcessingTime    string `json:"processing_time,omitempty"`
	IndexSize         string `json:"index_size,omitempty"`
	Error             string `json:"error,omitempty"`
}

// Rebuild normalizes raw submissions, embeds them, builds a new index and
// variant lookup, persists the artifact, and publishes the new generation
// atomically. Returns ErrNotReady when no embedder is configured and
// ErrEmptyGlossary for an empty request; build faults are reported in the
// BuildReport, not as errors.
func (e *Engine) Rebuild(ctx context.Context, subs []glossary.Submission) (BuildReport, error) {
	if len(subs) == 0 {
		return BuildReport{}, ErrEmptyGlossary
	}
	return e.RebuildEntries(ctx, glossary.FromSubmissions(subs), len(subs))
}

// RebuildEntries is the adapter-agnostic rebuild: callers that already hold
// canonical entries (e.g. the offline CSV build) enter here. rawCount is the
// number of records before normalization, reported for count deltas.
func (e *Engine) RebuildEntries(ctx context.Context, entries []glossary.Entry, rawCount int) (BuildReport, error) {
	if e.embedder == nil {
		return BuildReport{}, fmt.Errorf("%w: embedding model not loaded", ErrNotReady)
	}

	e.buildMu.Lock()
	defer e.buildMu.Unlock()

	start := time.Now()
	report := BuildReport{GlossaryEntries: rawCount, EmbeddingModel: e.embedder.ModelID()}

	if len(entries) == 0 {
		report.Error = "no valid glossary entries to vectorize"
		return report, nil
	}

	texts := glossary.EmbedTexts(entries)
	e.logger.Info("embedding glossary", "entries", len(entries), "model", e.embedder.ModelID())
	vectors, err := e.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		e.logger.Error("glossary embedding failed", "error", err)
		report.Error = fmt.Sprintf("embed glossary: %v", err)
		return report, nil
	}
	embed.NormalizeBatch(vectors)

	dim := len(vectors[0])
	idx, err := index.NewFlat(dim)
	if err != nil {
		report.Error = fmt.Sprintf("create index: %v", err)
		return report, nil
	}
	if err := idx.Add(vectors); err != nil {
		report.Error = fmt.Sprintf("fill index: %v", err)
		return report, nil
	}

	if e.artifactPath != "" {
		size, err := index.SaveArtifact(e.artifactPath, idx, entries)
		if err != nil {
			e.logger.Error("artifact persistence failed", "error", err, "path", e.artifactPath)
			report.Error = fmt.Sprintf("persist artifact: %v", err)
			return report, nil
		}
		report.IndexSize = formatSize(size)
	}

	lookup := glossary.BuildVariantLookup(entries, e.normalize)
	e.publish(&Generation{Entries: entries, Index: idx, Lookup: lookup})

	elapsed := time.Since(start)
	report.Success = true
	report.VectorizedEntries = len(entries)
	report.VectorDimensions = dim
	report.IndexType = IndexType
	report.ProcessingTime = fmt.Sprintf("%.1fs", elapsed.Seconds())

	e.logger.Info("generation published",
		"entries", len(entries),
		"variants", lookup.Len(),
		"dimensions", dim,
		"elapsed", elapsed.Round(time.Millisecond),
	)
	return report, nil
}

func formatSize(n int64) string {
	if n >= 1024*1024 {
		return fmt.Sprintf("%.1f MB", float64(n)/(1024*1024))
	}
	return fmt.Sprintf("%.1f KB", float64(n)/1024)
}
