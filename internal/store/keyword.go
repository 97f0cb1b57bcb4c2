package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/lang/cjk"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
)

// TextAnalyzerName is the custom analyzer for mixed Japanese/Latin
// chunk content: unicode segmentation, CJK width folding, lowercasing,
// and CJK bigrams.
const TextAnalyzerName = "kensaku_text"

// KeywordIndex is the bleve-backed keyword index over chunk content.
// It serves candidate retrieval; the keyword strategy re-scores hits
// with its own weighting.
type KeywordIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	closed bool
}

// keywordDoc is the indexed representation of a chunk.
type keywordDoc struct {
	Content string `json:"content"`
	Tenant  string `json:"tenant"`
}

// NewKeywordIndex opens or creates a keyword index. An empty path
// creates an in-memory index for testing.
func NewKeywordIndex(path string) (*KeywordIndex, error) {
	indexMapping, err := createKeywordMapping()
	if err != nil {
		return nil, fmt.Errorf("create index mapping: %w", err)
	}

	var idx bleve.Index
	if path == "" {
		idx, err = bleve.NewMemOnly(indexMapping)
	} else {
		dir := filepath.Dir(path)
		if mkErr := os.MkdirAll(dir, 0755); mkErr != nil {
			return nil, fmt.Errorf("create directory %s: %w", dir, mkErr)
		}
		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, indexMapping)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("open keyword index: %w", err)
	}

	return &KeywordIndex{index: idx, path: path}, nil
}

func createKeywordMapping() (*mapping.IndexMappingImpl, error) {
	indexMapping := bleve.NewIndexMapping()

	err := indexMapping.AddCustomAnalyzer(TextAnalyzerName, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": unicode.Name,
		"token_filters": []string{
			cjk.WidthName,
			lowercase.Name,
			cjk.BigramName,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("add custom analyzer: %w", err)
	}

	contentField := bleve.NewTextFieldMapping()
	contentField.Analyzer = TextAnalyzerName

	tenantField := bleve.NewTextFieldMapping()
	tenantField.Analyzer = keyword.Name

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("content", contentField)
	docMapping.AddFieldMappingsAt("tenant", tenantField)

	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = TextAnalyzerName
	return indexMapping, nil
}

// Index adds chunks to the index in one batch. Existing IDs are
// replaced.
func (k *KeywordIndex) Index(ctx context.Context, chunks []*Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return fmt.Errorf("index is closed")
	}

	batch := k.index.NewBatch()
	for _, c := range chunks {
		doc := keywordDoc{Content: c.Content, Tenant: c.TenantID}
		if err := batch.Index(c.ID, doc); err != nil {
			return fmt.Errorf("index chunk %s: %w", c.ID, err)
		}
	}
	if err := k.index.Batch(batch); err != nil {
		return fmt.Errorf("execute batch: %w", err)
	}
	return nil
}

// Delete removes chunks by ID.
func (k *KeywordIndex) Delete(ctx context.Context, ids []string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return fmt.Errorf("index is closed")
	}

	batch := k.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	return k.index.Batch(batch)
}

// Search returns chunks matching any of the terms within one tenant.
func (k *KeywordIndex) Search(ctx context.Context, tenantID string, terms []string, limit int) ([]*KeywordHit, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.closed {
		return nil, fmt.Errorf("index is closed")
	}
	if len(terms) == 0 {
		return nil, nil
	}

	tenantQuery := bleve.NewTermQuery(tenantID)
	tenantQuery.SetField("tenant")

	var shoulds []query.Query
	for _, term := range terms {
		mq := bleve.NewMatchQuery(term)
		mq.SetField("content")
		shoulds = append(shoulds, mq)
	}

	boolQuery := bleve.NewBooleanQuery()
	boolQuery.AddMust(tenantQuery)
	boolQuery.AddShould(shoulds...)
	boolQuery.SetMinShould(1)

	req := bleve.NewSearchRequest(boolQuery)
	req.Size = limit
	req.IncludeLocations = true

	result, err := k.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}

	hits := make([]*KeywordHit, 0, len(result.Hits))
	for _, hit := range result.Hits {
		var matched []string
		for _, fields := range hit.Locations {
			for term := range fields {
				matched = append(matched, term)
			}
		}
		hits = append(hits, &KeywordHit{
			ChunkID:      hit.ID,
			Score:        hit.Score,
			MatchedTerms: matched,
		})
	}
	return hits, nil
}

// Count returns the number of indexed chunks.
func (k *KeywordIndex) Count() (uint64, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.closed {
		return 0, fmt.Errorf("index is closed")
	}
	return k.index.DocCount()
}

// Close releases the index.
func (k *KeywordIndex) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return nil
	}
	k.closed = true
	return k.index.Close()
}
