// Package embedcache persists post embeddings as a JSON array of vectors,
// positionally aligned with the sorted file list of post.LoadAll, so a
// re-ingest can skip the embedding step.
//
// A manifest at ManifestPath(path) records which records and which embedding
// model produced the vectors. The artifact itself stays a plain array.
package embedcache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrMisaligned is returned by LoadAligned when the artifact was not produced
// for exactly the given records and embedding model.
var ErrMisaligned = errors.New("embedcache: artifact does not match the record list")

// Entry identifies one embedded record: its key and a hash of the text sent
// to the embedder.
type Entry struct {
	Key  string `json:"key"`
	Hash string `json:"hash"`
}

// NewEntry hashes text for key.
func NewEntry(key, text string) Entry {
	sum := sha256.Sum256([]byte(text))
	return Entry{Key: key, Hash: hex.EncodeToString(sum[:])}
}

// Manifest describes the vectors of an artifact, in artifact order.
type Manifest struct {
	Namespace string  `json:"namespace"`
	Entries   []Entry `json:"entries"`
}

// ManifestPath is where the manifest of the artifact at path is kept.
func ManifestPath(path string) string {
	return path + ".meta"
}

// Save writes vectors to path and m next to it, each atomically. The old
// manifest is removed first; an interrupted save leaves no manifest.
func Save(path string, vectors [][]float32, m Manifest) error {
	if len(m.Entries) != len(vectors) {
		return fmt.Errorf("embedcache: %d manifest entries for %d vectors", len(m.Entries), len(vectors))
	}
	if vectors == nil {
		vectors = [][]float32{}
	}
	if m.Entries == nil {
		m.Entries = []Entry{}
	}
	data, err := json.Marshal(vectors)
	if err != nil {
		return fmt.Errorf("embedcache: marshal: %w", err)
	}
	meta, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("embedcache: marshal manifest: %w", err)
	}

	if err := os.Remove(ManifestPath(path)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("embedcache: remove stale manifest: %w", err)
	}
	if err := writeFile(path, data); err != nil {
		return err
	}
	return writeFile(ManifestPath(path), meta)
}

// writeFile replaces path with data through a temp file in the same dir.
func writeFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("embedcache: create dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("embedcache: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("embedcache: write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("embedcache: close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("embedcache: rename to %s: %w", path, err)
	}
	return nil
}

// Load reads the artifact at path.
func Load(path string) ([][]float32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("embedcache: read %s: %w", path, err)
	}
	var vectors [][]float32
	if err := json.Unmarshal(data, &vectors); err != nil {
		return nil, fmt.Errorf("embedcache: decode %s: %w", path, err)
	}
	return vectors, nil
}

// LoadManifest reads the manifest of the artifact at path.
func LoadManifest(path string) (Manifest, error) {
	var m Manifest
	data, err := os.ReadFile(ManifestPath(path))
	if err != nil {
		return m, fmt.Errorf("embedcache: read manifest: %w", err)
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("embedcache: decode manifest: %w", err)
	}
	return m, nil
}

// LoadAligned loads the artifact and checks it against want: the stored
// manifest must name the same namespace and the same entries in the same
// order, and the artifact must hold one non-empty vector of one dimension
// per entry. A missing manifest or any mismatch wraps ErrMisaligned.
func LoadAligned(path string, want Manifest) ([][]float32, error) {
	vectors, err := Load(path)
	if err != nil {
		return nil, err
	}
	n := len(want.Entries)
	if len(vectors) != n {
		return nil, fmt.Errorf("%w: %d vectors for %d records", ErrMisaligned, len(vectors), n)
	}

	got, err := LoadManifest(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMisaligned, err)
	}
	if got.Namespace != want.Namespace {
		return nil, fmt.Errorf("%w: embedded with %q, want %q", ErrMisaligned, got.Namespace, want.Namespace)
	}
	if len(got.Entries) != n {
		return nil, fmt.Errorf("%w: manifest lists %d records, want %d", ErrMisaligned, len(got.Entries), n)
	}
	for i, e := range want.Entries {
		if got.Entries[i] != e {
			return nil, fmt.Errorf("%w: record %d (%s) changed", ErrMisaligned, i, e.Key)
		}
	}

	for i, v := range vectors {
		if len(v) == 0 || len(v) != len(vectors[0]) {
			return nil, fmt.Errorf("%w: vector %d has dimension %d", ErrMisaligned, i, len(v))
		}
	}
	return vectors, nil
}
