package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/calaix/esmena/pkg/glossary"
	"github.com/calaix/esmena/pkg/lemma"
)

// stubEmbedder returns a fixed vector for any text containing one of its
// keys, and the zero vector otherwise. Dimension 4 so that exactly
// representable unit vectors like (0.5, 0.5, 0.5, 0.5) are available.
type stubEmbedder struct {
	vecs map[string][]float32
	err  error
}

func (s *stubEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, 4)
		for key, v := range s.vecs {
			if strings.Contains(text, key) {
				copy(vec, v)
				break
			}
		}
		out[i] = vec
	}
	return out, nil
}

func (s *stubEmbedder) Dimension() int  { return 4 }
func (s *stubEmbedder) ModelID() string { return "stub-embed" }

type failLemmatizer struct{}

func (failLemmatizer) Lemmatize(context.Context, string) ([]lemma.Token, error) {
	return nil, errors.New("sidecar unreachable")
}
func (failLemmatizer) Name() string { return "lemma-fail" }

// Vectors are unit length in exact float32 arithmetic, so similarity
// boundaries in the tests are not disturbed by normalization rounding.
func testEmbedder() *stubEmbedder {
	return &stubEmbedder{vecs: map[string][]float32{
		"formar":  {1, 0, 0, 0},
		"sector":  {0.5, 0.5, 0.5, 0.5},
		"entitat": {0, 1, 0, 0},
	}}
}

func testLemmatizer() *lemma.DictLemmatizer {
	return lemma.NewDictLemmatizer(map[string]lemma.Form{
		"conformen": {Lemma: "conformar", POS: "VERB"},
		"entitats":  {Lemma: "entitat", POS: "NOUN"},
	})
}

func testSubmissions() []glossary.Submission {
	return []glossary.Submission{
		{ID: "1", RecommendedTerm: "formar", Variants: glossary.StringList{"conformar"}, Category: "verb"},
		{ID: "2", RecommendedTerm: "sector", Variants: glossary.StringList{"àmbit sectorial"}, Category: "substantiu"},
		{ID: "3", RecommendedTerm: "entitat", Category: "substantiu"},
	}
}

func newTestEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(cfg)
}

func rebuiltEngine(t *testing.T) *Engine {
	t.Helper()
	e := newTestEngine(t, Config{Embedder: testEmbedder(), Lemmatizer: testLemmatizer()})
	report, err := e.Rebuild(context.Background(), testSubmissions())
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if !report.Success {
		t.Fatalf("Rebuild report not successful: %+v", report)
	}
	return e
}

func TestRebuild_Report(t *testing.T) {
	e := newTestEngine(t, Config{Embedder: testEmbedder()})

	subs := append(testSubmissions(), glossary.Submission{RecommendedTerm: "   "})
	report, err := e.Rebuild(context.Background(), subs)
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if !report.Success {
		t.Fatalf("report.Success = false: %+v", report)
	}
	if report.GlossaryEntries != 4 {
		t.Errorf("GlossaryEntries = %d, want 4", report.GlossaryEntries)
	}
	if report.VectorizedEntries != 3 {
		t.Errorf("VectorizedEntries = %d, want 3 (blank term dropped)", report.VectorizedEntries)
	}
	if report.VectorDimensions != 4 {
		t.Errorf("VectorDimensions = %d, want 4", report.VectorDimensions)
	}
	if report.IndexType != IndexType {
		t.Errorf("IndexType = %q, want %q", report.IndexType, IndexType)
	}
	if report.EmbeddingModel != "stub-embed" {
		t.Errorf("EmbeddingModel = %q", report.EmbeddingModel)
	}
}

func TestRebuild_EmptyGlossary(t *testing.T) {
	e := rebuiltEngine(t)

	if _, err := e.Rebuild(context.Background(), nil); !errors.Is(err, ErrEmptyGlossary) {
		t.Fatalf("err = %v, want ErrEmptyGlossary", err)
	}

	// The rejected rebuild must not touch the published generation.
	results, err := e.Search(context.Background(), []string{"formar"}, 1, 0)
	if err != nil {
		t.Fatalf("Search after rejected rebuild: %v", err)
	}
	if len(results[0].Matches) != 1 {
		t.Errorf("matches = %d, want 1", len(results[0].Matches))
	}
}

func TestRebuild_NoEmbedder(t *testing.T) {
	e := newTestEngine(t, Config{})
	if _, err := e.Rebuild(context.Background(), testSubmissions()); !errors.Is(err, ErrNotReady) {
		t.Fatalf("err = %v, want ErrNotReady", err)
	}
}

func TestRebuild_AllEntriesInvalid(t *testing.T) {
	e := newTestEngine(t, Config{Embedder: testEmbedder()})
	report, err := e.Rebuild(context.Background(), []glossary.Submission{{RecommendedTerm: "  "}})
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if report.Success {
		t.Fatal("report.Success = true for all-invalid input")
	}
	if report.Error == "" {
		t.Fatal("report.Error empty")
	}
	if e.snapshot() != nil {
		t.Fatal("generation published from all-invalid input")
	}
}

func TestRebuild_EmbedFailureKeepsGeneration(t *testing.T) {
	emb := testEmbedder()
	e := newTestEngine(t, Config{Embedder: emb})
	if _, err := e.Rebuild(context.Background(), testSubmissions()); err != nil {
		t.Fatalf("first Rebuild: %v", err)
	}
	before := e.snapshot()

	emb.err = errors.New("backend down")
	report, err := e.Rebuild(context.Background(), testSubmissions())
	if err != nil {
		t.Fatalf("second Rebuild: %v", err)
	}
	if report.Success {
		t.Fatal("report.Success = true despite embed failure")
	}
	if !strings.Contains(report.Error, "embed glossary") {
		t.Errorf("report.Error = %q", report.Error)
	}
	if e.snapshot() != before {
		t.Fatal("failed rebuild replaced the published generation")
	}
}

func TestRebuild_ArtifactRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "generation.gob")

	builder := newTestEngine(t, Config{Embedder: testEmbedder(), ArtifactPath: path})
	if _, err := builder.Rebuild(context.Background(), testSubmissions()); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	restored := newTestEngine(t, Config{
		Embedder:     testEmbedder(),
		Lemmatizer:   testLemmatizer(),
		ArtifactPath: path,
	})
	if err := restored.LoadArtifact(); err != nil {
		t.Fatalf("LoadArtifact: %v", err)
	}

	s := restored.Status()
	if s.GlossaryEntries != 3 {
		t.Errorf("GlossaryEntries = %d, want 3", s.GlossaryEntries)
	}
	if !s.ReadyForSearch || !s.ReadyForDetection {
		t.Errorf("readiness after restore: %+v", s)
	}

	results, err := restored.Search(context.Background(), []string{"formar"}, 1, 0)
	if err != nil {
		t.Fatalf("Search after restore: %v", err)
	}
	if len(results[0].Matches) != 1 || results[0].Matches[0].RecommendedTerm != "formar" {
		t.Errorf("restored search results = %+v", results)
	}
}

func TestDetect_NotReady(t *testing.T) {
	noLemma := newTestEngine(t, Config{Embedder: testEmbedder()})
	if _, err := noLemma.DetectCandidates(context.Background(), "text", -1); !errors.Is(err, ErrNotReady) {
		t.Errorf("no lemmatizer: err = %v, want ErrNotReady", err)
	}

	noGen := newTestEngine(t, Config{Lemmatizer: testLemmatizer()})
	if _, err := noGen.DetectCandidates(context.Background(), "text", -1); !errors.Is(err, ErrNotReady) {
		t.Errorf("no generation: err = %v, want ErrNotReady", err)
	}
}

func TestDetect_LemmaBeforeRaw(t *testing.T) {
	e := rebuiltEngine(t)

	report, err := e.DetectCandidates(context.Background(), "Les entitats conformen el sector.", -1)
	if err != nil {
		t.Fatalf("DetectCandidates: %v", err)
	}
	if !report.Success {
		t.Fatalf("report not successful: %+v", report)
	}
	if len(report.Candidates) != 1 {
		t.Fatalf("candidates = %+v, want exactly one", report.Candidates)
	}

	c := report.Candidates[0]
	if c.Term != "conformen" {
		t.Errorf("Term = %q, want conformen", c.Term)
	}
	if c.MatchedKey != "conformar" {
		t.Errorf("MatchedKey = %q, want the lemma conformar", c.MatchedKey)
	}
	if c.RecommendedTerm != "formar" {
		t.Errorf("RecommendedTerm = %q, want formar", c.RecommendedTerm)
	}
	if c.Strategy != StrategyToken || c.Tag != "VERB" {
		t.Errorf("Strategy/Tag = %q/%q", c.Strategy, c.Tag)
	}
	if c.Position != 2 {
		t.Errorf("Position = %d, want 2", c.Position)
	}
	if !strings.Contains(c.Context, "entitats conformen el") {
		t.Errorf("Context = %q", c.Context)
	}
}

func TestDetect_RawFallback(t *testing.T) {
	// The glossary lists the exact plural "mitjans" as the variant. Its lemma
	// "mitjà" misses the lookup, so the lowercased surface form must hit.
	e := newTestEngine(t, Config{
		Lemmatizer: lemma.NewDictLemmatizer(map[string]lemma.Form{
			"mitjans": {Lemma: "mitjà", POS: "NOUN"},
		}),
	})
	entries := []glossary.Entry{
		{ID: "1", RecommendedTerm: "recursos", Variants: []string{"mitjans"}},
	}
	e.publish(&Generation{
		Entries: entries,
		Lookup:  glossary.BuildVariantLookup(entries, nil),
	})

	report, err := e.DetectCandidates(context.Background(), "Els Mitjans disponibles.", -1)
	if err != nil {
		t.Fatalf("DetectCandidates: %v", err)
	}
	if len(report.Candidates) != 1 {
		t.Fatalf("candidates = %+v", report.Candidates)
	}
	c := report.Candidates[0]
	if c.MatchedKey != "mitjans" {
		t.Errorf("MatchedKey = %q, want the surface form mitjans", c.MatchedKey)
	}
	if c.Term != "Mitjans" {
		t.Errorf("Term = %q", c.Term)
	}
}

func TestDetect_MultiwordShadowsTokens(t *testing.T) {
	e := newTestEngine(t, Config{Lemmatizer: testLemmatizer()})
	entries := []glossary.Entry{
		{ID: "1", RecommendedTerm: "al capdavall", Variants: []string{"fet i fet"}},
		{ID: "2", RecommendedTerm: "acció", Variants: []string{"fet"}},
	}
	e.publish(&Generation{
		Entries: entries,
		Lookup:  glossary.BuildVariantLookup(entries, nil),
	})

	report, err := e.DetectCandidates(context.Background(), "Fet i fet, tot ajuda.", -1)
	if err != nil {
		t.Fatalf("DetectCandidates: %v", err)
	}
	if len(report.Candidates) != 1 {
		t.Fatalf("candidates = %+v, want the multi-word match only", report.Candidates)
	}

	c := report.Candidates[0]
	if c.Strategy != StrategyMultiword || c.Tag != TagMultiword {
		t.Errorf("Strategy/Tag = %q/%q", c.Strategy, c.Tag)
	}
	if c.Term != "Fet i fet" {
		t.Errorf("Term = %q", c.Term)
	}
	if c.RecommendedTerm != "al capdavall" {
		t.Errorf("RecommendedTerm = %q", c.RecommendedTerm)
	}
	if c.Position != 0 {
		t.Errorf("Position = %d, want 0", c.Position)
	}
}

func TestDetect_SortedByPosition(t *testing.T) {
	e := newTestEngine(t, Config{Lemmatizer: testLemmatizer()})
	entries := []glossary.Entry{
		{ID: "1", RecommendedTerm: "al capdavall", Variants: []string{"fet i fet"}},
		{ID: "2", RecommendedTerm: "formar", Variants: []string{"conformar"}},
	}
	e.publish(&Generation{
		Entries: entries,
		Lookup:  glossary.BuildVariantLookup(entries, nil),
	})

	// Token pass finds "conformen" before the multi-word pass position-wise,
	// but the multi-word pass runs first. The output must still be in
	// document order.
	report, err := e.DetectCandidates(context.Background(), "Es conformen grups, fet i fet.", -1)
	if err != nil {
		t.Fatalf("DetectCandidates: %v", err)
	}
	if len(report.Candidates) != 2 {
		t.Fatalf("candidates = %+v, want 2", report.Candidates)
	}
	if report.Candidates[0].Position >= report.Candidates[1].Position {
		t.Errorf("candidates out of order: %+v", report.Candidates)
	}
	if report.Candidates[0].Strategy != StrategyToken {
		t.Errorf("first candidate strategy = %q", report.Candidates[0].Strategy)
	}
}

func TestDetect_LemmatizerFailureIsSoft(t *testing.T) {
	e := newTestEngine(t, Config{Lemmatizer: failLemmatizer{}})
	e.publish(&Generation{Lookup: glossary.BuildVariantLookup(nil, nil)})

	report, err := e.DetectCandidates(context.Background(), "qualsevol text", -1)
	if err != nil {
		t.Fatalf("DetectCandidates: %v", err)
	}
	if report.Success {
		t.Fatal("report.Success = true despite lemmatizer failure")
	}
	if !strings.Contains(report.Error, "lemmatize") {
		t.Errorf("report.Error = %q", report.Error)
	}
	if report.Lemmatizer != "lemma-fail" {
		t.Errorf("report.Lemmatizer = %q", report.Lemmatizer)
	}
}

func TestSearch_ThresholdInclusive(t *testing.T) {
	e := rebuiltEngine(t)

	// "formar" embeds to (1,0,0,0); "sector" to (0.5,0.5,0.5,0.5). Their dot
	// product is exactly 0.5, so a 0.5 threshold must keep both.
	results, err := e.Search(context.Background(), []string{"formar"}, 5, 0.5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	m := results[0].Matches
	if len(m) != 2 {
		t.Fatalf("matches = %+v, want 2 (boundary score included)", m)
	}
	if m[0].RecommendedTerm != "formar" || m[0].Similarity != 1 {
		t.Errorf("top match = %+v", m[0])
	}
	if m[1].RecommendedTerm != "sector" || m[1].Similarity != 0.5 {
		t.Errorf("second match = %+v", m[1])
	}
}

func TestSearch_DefaultThresholdFilters(t *testing.T) {
	e := rebuiltEngine(t)

	results, err := e.Search(context.Background(), []string{"formar"}, 0, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	m := results[0].Matches
	if len(m) != 1 {
		t.Fatalf("matches = %+v, want the exact hit only at the default threshold", m)
	}
	if m[0].RecommendedTerm != "formar" {
		t.Errorf("match = %+v", m[0])
	}
}

func TestSearch_UnknownTermNoMatches(t *testing.T) {
	e := rebuiltEngine(t)

	// Unknown text embeds to the zero vector; nothing reaches the threshold,
	// but the term still gets a result row.
	results, err := e.Search(context.Background(), []string{"xyzzy"}, 3, 0.1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Original != "xyzzy" {
		t.Fatalf("results = %+v", results)
	}
	if len(results[0].Matches) != 0 {
		t.Errorf("matches = %+v, want none", results[0].Matches)
	}
}

func TestSearch_KLargerThanIndex(t *testing.T) {
	e := rebuiltEngine(t)

	results, err := e.Search(context.Background(), []string{"formar"}, 50, 0.1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	// Padding sentinels from the index must not leak into results.
	if len(results[0].Matches) > 3 {
		t.Errorf("matches = %d, index only has 3 entries", len(results[0].Matches))
	}
}

func TestSearch_EmptyCandidates(t *testing.T) {
	e := rebuiltEngine(t)
	results, err := e.Search(context.Background(), nil, 5, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("results = %+v, want empty", results)
	}
}

func TestSearch_NotReady(t *testing.T) {
	noEmbed := newTestEngine(t, Config{})
	if _, err := noEmbed.Search(context.Background(), []string{"x"}, 1, 0); !errors.Is(err, ErrNotReady) {
		t.Errorf("no embedder: err = %v, want ErrNotReady", err)
	}

	noGen := newTestEngine(t, Config{Embedder: testEmbedder()})
	if _, err := noGen.Search(context.Background(), []string{"x"}, 1, 0); !errors.Is(err, ErrNotReady) {
		t.Errorf("no generation: err = %v, want ErrNotReady", err)
	}
}

func TestStatus_Readiness(t *testing.T) {
	e := newTestEngine(t, Config{Embedder: testEmbedder(), Lemmatizer: testLemmatizer()})

	s := e.Status()
	if s.IndexReady || s.ReadyForSearch || s.ReadyForDetection {
		t.Fatalf("status before first build: %+v", s)
	}
	if !s.EmbedderReady || !s.LemmatizerReady {
		t.Fatalf("collaborator readiness: %+v", s)
	}

	if _, err := e.Rebuild(context.Background(), testSubmissions()); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	s = e.Status()
	if !s.ReadyForSearch || !s.ReadyForDetection {
		t.Fatalf("status after build: %+v", s)
	}
	if s.GlossaryEntries != 3 {
		t.Errorf("GlossaryEntries = %d, want 3", s.GlossaryEntries)
	}
	if s.VariantCount == 0 {
		t.Error("VariantCount = 0")
	}
	if s.EmbeddingModel != "stub-embed" || s.Lemmatizer != "lemma-dict" {
		t.Errorf("model names: %+v", s)
	}
}
