// Package engine is the matching core: it owns the current glossary
// generation (canonical entries, similarity index, variant lookup) and serves
// candidate detection and similarity search against it.
package engine

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/calaix/esmena/pkg/embed"
	"github.com/calaix/esmena/pkg/glossary"
	"github.com/calaix/esmena/pkg/index"
	"github.com/calaix/esmena/pkg/lemma"
)

// Generation is one immutable snapshot of the built artifacts. The three
// fields are always built together and published together; readers take the
// snapshot once per call and never observe a partial rebuild.
type Generation struct {
	Entries []glossary.Entry
	Index   *index.Flat
	Lookup  *glossary.VariantLookup
}

// Config wires the engine's collaborators. Embedder and Lemmatizer may be
// nil; the operations that need them report not-ready instead of crashing.
type Config struct {
	Embedder     embed.Embedder
	Lemmatizer   lemma.Lemmatizer
	ArtifactPath string // persisted generation; empty disables persistence
	KeyNormalize glossary.KeyNormalizer
	Logger       *slog.Logger
}

// Engine serves detection and search over the current generation.
type Engine struct {
	embedder     embed.Embedder
	lemmatizer   lemma.Lemmatizer
	artifactPath string
	normalize    glossary.KeyNormalizer
	logger       *slog.Logger

	gen     atomic.Pointer[Generation]
	buildMu sync.Mutex // serializes rebuilds; reads never take it
}

// New creates an engine with no generation published yet.
func New(cfg Config) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.KeyNormalize == nil {
		cfg.KeyNormalize = glossary.NormalizeKey
	}
	return &Engine{
		embedder:     cfg.Embedder,
		lemmatizer:   cfg.Lemmatizer,
		artifactPath: cfg.ArtifactPath,
		normalize:    cfg.KeyNormalize,
		logger:       cfg.Logger,
	}
}

// snapshot returns the current generation, or nil before the first publish.
func (e *Engine) snapshot() *Generation {
	return e.gen.Load()
}

// publish atomically swaps in a new generation. Single pointer store: a
// reader sees either the whole previous generation or the whole new one.
func (e *Engine) publish(gen *Generation) {
	e.gen.Store(gen)
}

// LoadArtifact restores the persisted generation, rebuilds the variant
// lookup, and publishes the result. Callers decide whether a missing
// artifact is an error; it is reported as-is.
func (e *Engine) LoadArtifact() error {
	if e.artifactPath == "" {
		return fmt.Errorf("no artifact path configured")
	}
	idx, entries, err := index.LoadArtifact(e.artifactPath)
	if err != nil {
		return err
	}
	e.publish(&Generation{
		Entries: entries,
		Index:   idx,
		Lookup:  glossary.BuildVariantLookup(entries, e.normalize),
	})
	e.logger.Info("generation restored",
		"entries", len(entries),
		"dimensions", idx.Dimension(),
		"path", e.artifactPath,
	)
	return nil
}

// Status reports readiness and sizes for the health endpoint.
type Status struct {
	EmbedderReady     bool   `json:"embedder_ready"`
	LemmatizerReady   bool   `json:"lemmatizer_ready"`
	IndexReady        bool   `json:"index_ready"`
	ReadyForSearch    bool   `json:"ready_for_search"`
	ReadyForDetection bool   `json:"ready_for_detection"`
	GlossaryEntries   int    `json:"glossary_entries"`
	VariantCount      int    `json:"variant_count"`
	EmbeddingModel    string `json:"embedding_model,omitempty"`
	Lemmatizer        string `json:"lemmatizer,omitempty"`
}

// Status returns the current readiness snapshot.
func (e *Engine) Status() Status {
	s := Status{
		EmbedderReady:   e.embedder != nil,
		LemmatizerReady: e.lemmatizer != nil,
	}
	if s.EmbedderReady {
		s.EmbeddingModel = e.embedder.ModelID()
	}
	if s.LemmatizerReady {
		s.Lemmatizer = e.lemmatizer.Name()
	}
	if gen := e.snapshot(); gen != nil {
		s.IndexReady = true
		s.GlossaryEntries = len(gen.Entries)
		s.VariantCount = gen.Lookup.Len()
	}
	s.ReadyForSearch = s.EmbedderReady && s.IndexReady
	s.ReadyForDetection = s.LemmatizerReady && s.IndexReady
	return s
}
