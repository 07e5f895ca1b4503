package vectorstore

import (
	"sort"

	"github.com/hoanvu/ragserve/internal/models"
)

// catalog holds chunk records in creation order alongside the id and document
// lookups. Positions are allocated append-only and renumbered contiguously on
// rebuild, so a record's Position always equals its slot in records.
type catalog struct {
	records []*models.ChunkRecord
	byID    map[string]*models.ChunkRecord
	docs    map[string]*models.DocumentEntry
}

func newCatalog() *catalog {
	return &catalog{
		byID: make(map[string]*models.ChunkRecord),
		docs: make(map[string]*models.DocumentEntry),
	}
}

func (c *catalog) add(rec *models.ChunkRecord) {
	c.records = append(c.records, rec)
	c.byID[rec.ChunkID] = rec
}

// byPosition resolves an index position to its record, or nil when out of range.
func (c *catalog) byPosition(pos int) *models.ChunkRecord {
	if pos < 0 || pos >= len(c.records) {
		return nil
	}
	return c.records[pos]
}

// documentChunks returns copies of the document's records ordered by ordinal.
func (c *catalog) documentChunks(docID string) []models.ChunkRecord {
	var out []models.ChunkRecord
	for _, rec := range c.records {
		if rec.DocumentID == docID {
			out = append(out, *rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ordinal < out[j].Ordinal })
	return out
}
