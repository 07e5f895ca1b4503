// Package vector provides an append-only flat inner-product index over unit vectors.
package vector

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// NoMatch is the sentinel position returned by Search when the index holds
// fewer vectors than requested. Callers drop sentinel entries.
const NoMatch = -1

// FlatIndex is an exhaustive inner-product index. Vectors are stored raw and
// contiguously, so a vector can always be reconstructed from its position.
// The index is append-only: rows are numbered in insertion order and there is
// no removal operation. Removal semantics are built on top by rebuilding a
// fresh index (see the vectorstore package).
type FlatIndex struct {
	dimensions int
	data       []float32 // row-major, len = ntotal*dimensions
	mu         sync.RWMutex
}

// NewFlatIndex creates an empty flat index with the given dimension.
func NewFlatIndex(dimensions int) (*FlatIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &FlatIndex{dimensions: dimensions}, nil
}

// Dimensions returns the configured vector dimension.
func (f *FlatIndex) Dimensions() int {
	return f.dimensions
}

// NTotal returns the number of vectors in the index.
func (f *FlatIndex) NTotal() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.data) / f.dimensions
}

// Add appends vec to the index and returns its position (the previous NTotal).
func (f *FlatIndex) Add(vec []float32) (int, error) {
	if len(vec) != f.dimensions {
		return NoMatch, fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(vec), f.dimensions)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	pos := len(f.data) / f.dimensions
	f.data = append(f.data, vec...)
	return pos, nil
}

// Search returns the k nearest vectors to query by inner product, as parallel
// score and position slices of length exactly k. When the index holds fewer
// than k vectors the tail is padded with NoMatch positions and zero scores.
func (f *FlatIndex) Search(query []float32, k int) ([]float32, []int, error) {
	if len(query) != f.dimensions {
		return nil, nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), f.dimensions)
	}
	if k <= 0 {
		return nil, nil, nil
	}
	f.mu.RLock()
	defer f.mu.RUnlock()

	n := len(f.data) / f.dimensions
	type scored struct {
		pos   int
		score float32
	}
	scores := make([]scored, n)
	for i := 0; i < n; i++ {
		row := f.data[i*f.dimensions : (i+1)*f.dimensions]
		var dot float32
		for j, q := range query {
			dot += q * row[j]
		}
		scores[i] = scored{pos: i, score: dot}
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	outScores := make([]float32, k)
	outPositions := make([]int, k)
	for i := 0; i < k; i++ {
		if i < n {
			outScores[i] = scores[i].score
			outPositions[i] = scores[i].pos
		} else {
			outPositions[i] = NoMatch
		}
	}
	return outScores, outPositions, nil
}

// Reconstruct returns a copy of the vector at position pos.
func (f *FlatIndex) Reconstruct(pos int) ([]float32, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	n := len(f.data) / f.dimensions
	if pos < 0 || pos >= n {
		return nil, fmt.Errorf("position %d out of range [0, %d)", pos, n)
	}
	out := make([]float32, f.dimensions)
	copy(out, f.data[pos*f.dimensions:(pos+1)*f.dimensions])
	return out, nil
}

// Save writes the index to path as a little-endian blob (dimension, count, raw
// vectors). The file is written to a temporary sibling and renamed so a crash
// mid-write cannot corrupt an existing index file.
func (f *FlatIndex) Save(path string) error {
	if path == "" {
		return nil
	}
	f.mu.RLock()
	defer f.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	tmp := path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	n := len(f.data) / f.dimensions
	if err := binary.Write(file, binary.LittleEndian, uint32(f.dimensions)); err != nil {
		_ = file.Close()
		return fmt.Errorf("write dimensions: %w", err)
	}
	if err := binary.Write(file, binary.LittleEndian, uint32(n)); err != nil {
		_ = file.Close()
		return fmt.Errorf("write count: %w", err)
	}
	if _, err := file.Write(float32SliceToBytes(f.data)); err != nil {
		_ = file.Close()
		return fmt.Errorf("write vectors: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close index file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename index file: %w", err)
	}
	return nil
}

// Load reads the index from path, replacing the in-memory contents. Dimensions
// must match. If the file does not exist, the index stays empty and no error
// is returned.
func (f *FlatIndex) Load(path string) error {
	if path == "" {
		return nil
	}
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open index file: %w", err)
	}
	defer file.Close()

	var dim, n uint32
	if err := binary.Read(file, binary.LittleEndian, &dim); err != nil {
		return fmt.Errorf("read dimensions: %w", err)
	}
	if int(dim) != f.dimensions {
		return fmt.Errorf("dimension mismatch: file has %d, index expects %d", dim, f.dimensions)
	}
	if err := binary.Read(file, binary.LittleEndian, &n); err != nil {
		return fmt.Errorf("read count: %w", err)
	}
	buf := make([]byte, int(n)*f.dimensions*4)
	if _, err := io.ReadFull(file, buf); err != nil {
		return fmt.Errorf("read vectors: %w", err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data = bytesToFloat32Slice(buf)
	return nil
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
