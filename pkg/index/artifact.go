package index

import (
	"encoding/gob"
	"fmt"
	"os"

	"github.com/calaix/esmena/pkg/glossary"
)

// Artifact is the persisted form of one generation: the index vectors and the
// canonical entries in identical order. Keeping both in a single file makes
// it impossible to load an index against the wrong entry store.
type Artifact struct {
	Dimension int
	Vectors   [][]float32
	Entries   []glossary.Entry
}

// SaveArtifact writes the index and its entry store to path atomically
// (write to a temp file, then rename) and returns the persisted byte size.
func SaveArtifact(path string, f *Flat, entries []glossary.Entry) (int64, error) {
	if f.Size() != len(entries) {
		return 0, fmt.Errorf("index has %d vectors for %d entries", f.Size(), len(entries))
	}

	tmp := path + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return 0, fmt.Errorf("create artifact: %w", err)
	}

	art := Artifact{Dimension: f.dimension, Vectors: f.vectors, Entries: entries}
	if err := gob.NewEncoder(out).Encode(art); err != nil {
		out.Close()
		os.Remove(tmp)
		return 0, fmt.Errorf("encode artifact: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("close artifact: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("publish artifact: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("stat artifact: %w", err)
	}
	return info.Size(), nil
}

// LoadArtifact reads a persisted generation back.
func LoadArtifact(path string) (*Flat, []glossary.Entry, error) {
	in, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open artifact: %w", err)
	}
	defer in.Close()

	var art Artifact
	if err := gob.NewDecoder(in).Decode(&art); err != nil {
		return nil, nil, fmt.Errorf("decode artifact: %w", err)
	}
	if len(art.Vectors) != len(art.Entries) {
		return nil, nil, fmt.Errorf("artifact has %d vectors for %d entries", len(art.Vectors), len(art.Entries))
	}

	f, err := NewFlat(art.Dimension)
	if err != nil {
		return nil, nil, fmt.Errorf("artifact dimension: %w", err)
	}
	if err := f.Add(art.Vectors); err != nil {
		return nil, nil, fmt.Errorf("artifact vectors: %w", err)
	}
	return f, art.Entries, nil
}
