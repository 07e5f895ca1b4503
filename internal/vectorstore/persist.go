package vectorstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/hoanvu/ragserve/internal/models"
)

// Persist writes the index blob and both catalogs to their configured paths.
// Every file is written via temp-file-then-rename so a crash mid-write cannot
// corrupt the on-disk state.
func (s *Store) Persist() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.index.Save(s.paths.Index); err != nil {
		return fmt.Errorf("persist index: %w", err)
	}
	if err := writeJSONAtomic(s.paths.ChunkCatalog, s.catalog.records); err != nil {
		return fmt.Errorf("persist chunk catalog: %w", err)
	}
	if err := writeJSONAtomic(s.paths.DocumentCatalog, s.catalog.docs); err != nil {
		return fmt.Errorf("persist document catalog: %w", err)
	}
	if s.logger != nil {
		s.logger.Debug("store persisted", zap.Int("total_vectors", s.index.NTotal()))
	}
	return nil
}

// Load replaces the in-memory state from the configured paths. Missing files
// initialize an empty store rather than failing, so first boot just works.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.index.Load(s.paths.Index); err != nil {
		return fmt.Errorf("load index: %w", err)
	}

	cat := newCatalog()
	var records []*models.ChunkRecord
	if err := readJSON(s.paths.ChunkCatalog, &records); err != nil {
		return fmt.Errorf("load chunk catalog: %w", err)
	}
	for _, rec := range records {
		cat.add(rec)
	}
	docs := make(map[string]*models.DocumentEntry)
	if err := readJSON(s.paths.DocumentCatalog, &docs); err != nil {
		return fmt.Errorf("load document catalog: %w", err)
	}
	cat.docs = docs
	s.catalog = cat

	if len(cat.records) != s.index.NTotal() {
		return fmt.Errorf("catalog has %d chunks but index has %d vectors", len(cat.records), s.index.NTotal())
	}
	if s.logger != nil {
		s.logger.Info("store loaded",
			zap.Int("total_vectors", s.index.NTotal()),
			zap.Int("total_documents", len(cat.docs)),
		)
	}
	return nil
}

// writeJSONAtomic marshals v and writes it via temp-file-then-rename.
// Non-ASCII content is written as UTF-8, not escaped, so it round-trips exactly.
func writeJSONAtomic(path string, v interface{}) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// readJSON decodes path into v. A missing file leaves v unchanged.
func readJSON(path string, v interface{}) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read file: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
