package vector

import (
	"path/filepath"
	"testing"
)

func TestFlatIndex_AddSearch(t *testing.T) {
	idx, err := NewFlatIndex(3)
	if err != nil {
		t.Fatal(err)
	}

	vecs := [][]float32{
		{1, 0, 0},
		{0.9, 0.1, 0},
		{0, 1, 0},
	}
	for i, v := range vecs {
		pos, err := idx.Add(v)
		if err != nil {
			t.Fatal(err)
		}
		if pos != i {
			t.Errorf("position for vector %d = %d", i, pos)
		}
	}
	if idx.NTotal() != 3 {
		t.Errorf("NTotal = %d", idx.NTotal())
	}

	scores, positions, err := idx.Search([]float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(scores) != 2 || len(positions) != 2 {
		t.Fatalf("expected 2 results, got %d/%d", len(scores), len(positions))
	}
	if positions[0] != 0 {
		t.Errorf("top position should be 0, got %d", positions[0])
	}
	if scores[0] < scores[1] {
		t.Error("scores not in descending order")
	}
}

func TestFlatIndex_SearchPadsWithSentinel(t *testing.T) {
	idx, _ := NewFlatIndex(2)
	_, _ = idx.Add([]float32{1, 0})

	scores, positions, err := idx.Search([]float32{1, 0}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(positions) != 5 {
		t.Fatalf("expected padded length 5, got %d", len(positions))
	}
	if positions[0] != 0 {
		t.Errorf("first position = %d", positions[0])
	}
	for i := 1; i < 5; i++ {
		if positions[i] != NoMatch {
			t.Errorf("position %d = %d, want sentinel", i, positions[i])
		}
		if scores[i] != 0 {
			t.Errorf("sentinel score %d = %f, want 0", i, scores[i])
		}
	}
}

func TestFlatIndex_SearchEmpty(t *testing.T) {
	idx, _ := NewFlatIndex(2)
	_, positions, err := idx.Search([]float32{1, 0}, 3)
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range positions {
		if p != NoMatch {
			t.Errorf("empty index returned position %d", p)
		}
	}
}

func TestFlatIndex_DimensionMismatch(t *testing.T) {
	idx, _ := NewFlatIndex(3)
	if _, err := idx.Add([]float32{1, 0}); err == nil {
		t.Error("expected error adding wrong-dimension vector")
	}
	if _, _, err := idx.Search([]float32{1, 0}, 1); err == nil {
		t.Error("expected error searching with wrong-dimension query")
	}
}

func TestFlatIndex_Reconstruct(t *testing.T) {
	idx, _ := NewFlatIndex(2)
	_, _ = idx.Add([]float32{0.5, 0.25})
	_, _ = idx.Add([]float32{0, 1})

	vec, err := idx.Reconstruct(0)
	if err != nil {
		t.Fatal(err)
	}
	if vec[0] != 0.5 || vec[1] != 0.25 {
		t.Errorf("reconstructed vector = %v", vec)
	}

	// Mutating the copy must not affect the index.
	vec[0] = 99
	again, _ := idx.Reconstruct(0)
	if again[0] != 0.5 {
		t.Error("Reconstruct returned a live reference, not a copy")
	}

	if _, err := idx.Reconstruct(2); err == nil {
		t.Error("expected error for out-of-range position")
	}
	if _, err := idx.Reconstruct(-1); err == nil {
		t.Error("expected error for negative position")
	}
}

func TestFlatIndex_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.bin")
	idx, _ := NewFlatIndex(2)
	_, _ = idx.Add([]float32{1, 0})
	_, _ = idx.Add([]float32{0.6, 0.8})

	if err := idx.Save(path); err != nil {
		t.Fatal(err)
	}

	loaded, _ := NewFlatIndex(2)
	if err := loaded.Load(path); err != nil {
		t.Fatal(err)
	}
	if loaded.NTotal() != 2 {
		t.Fatalf("loaded NTotal = %d", loaded.NTotal())
	}
	vec, err := loaded.Reconstruct(1)
	if err != nil {
		t.Fatal(err)
	}
	if vec[0] != 0.6 || vec[1] != 0.8 {
		t.Errorf("loaded vector = %v", vec)
	}
}

func TestFlatIndex_LoadMissingFile(t *testing.T) {
	idx, _ := NewFlatIndex(4)
	if err := idx.Load(filepath.Join(t.TempDir(), "nope.bin")); err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if idx.NTotal() != 0 {
		t.Errorf("NTotal = %d after loading missing file", idx.NTotal())
	}
}

func TestFlatIndex_LoadDimensionMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.bin")
	idx, _ := NewFlatIndex(2)
	_, _ = idx.Add([]float32{1, 0})
	if err := idx.Save(path); err != nil {
		t.Fatal(err)
	}

	other, _ := NewFlatIndex(3)
	if err := other.Load(path); err == nil {
		t.Error("expected dimension mismatch error")
	}
}
