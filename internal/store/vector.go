package store

import (
	"bufio"
	"context"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"
)

// VectorIndexConfig configures the HNSW graph.
type VectorIndexConfig struct {
	Dimensions int
	M          int
	EfSearch   int
}

// VectorIndex is an HNSW-backed similarity index over chunk embeddings.
// Deletion is lazy: removed IDs stay in the graph but never surface in
// results.
type VectorIndex struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[uint64]
	config VectorIndexConfig

	idMap   map[string]uint64
	keyMap  map[uint64]string
	tenants map[uint64]string
	nextKey uint64

	closed bool
}

// vectorMetadata persists ID mappings alongside the graph.
type vectorMetadata struct {
	IDMap   map[string]uint64
	Tenants map[uint64]string
	NextKey uint64
	Config  VectorIndexConfig
}

// NewVectorIndex creates an empty vector index.
func NewVectorIndex(cfg VectorIndexConfig) (*VectorIndex, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive, got %d", cfg.Dimensions)
	}
	if cfg.M == 0 {
		cfg.M = 16
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = 20
	}

	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = cfg.M
	graph.EfSearch = cfg.EfSearch
	graph.Ml = 0.25

	return &VectorIndex{
		graph:   graph,
		config:  cfg,
		idMap:   make(map[string]uint64),
		keyMap:  make(map[uint64]string),
		tenants: make(map[uint64]string),
	}, nil
}

// OpenVectorIndex restores a saved index from path, or creates an
// empty one with cfg when nothing is saved there. A saved index carries
// its own configuration, so cfg is only consulted for fresh indexes.
func OpenVectorIndex(path string, cfg VectorIndexConfig) (*VectorIndex, error) {
	if meta, err := peekVectorMetadata(path + ".meta"); err == nil {
		cfg = meta.Config
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	idx, err := NewVectorIndex(cfg)
	if err != nil {
		return nil, err
	}
	if err := idx.Load(path); err != nil {
		_ = idx.Close()
		return nil, err
	}
	return idx, nil
}

func peekVectorMetadata(path string) (*vectorMetadata, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	var meta vectorMetadata
	if err := gob.NewDecoder(file).Decode(&meta); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return &meta, nil
}

// Add inserts chunk embeddings. Existing IDs are lazily replaced.
func (v *VectorIndex) Add(ctx context.Context, chunks []*Chunk) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return fmt.Errorf("index is closed")
	}

	for _, c := range chunks {
		if c.Embedding == nil {
			continue
		}
		if len(c.Embedding) != v.config.Dimensions {
			return fmt.Errorf("chunk %s: dimension mismatch, want %d got %d",
				c.ID, v.config.Dimensions, len(c.Embedding))
		}

		if oldKey, exists := v.idMap[c.ID]; exists {
			delete(v.keyMap, oldKey)
			delete(v.tenants, oldKey)
			delete(v.idMap, c.ID)
		}

		key := v.nextKey
		v.nextKey++

		vec := make([]float32, len(c.Embedding))
		copy(vec, c.Embedding)
		normalizeInPlace(vec)

		v.graph.Add(hnsw.MakeNode(key, vec))
		v.idMap[c.ID] = key
		v.keyMap[key] = c.ID
		v.tenants[key] = c.TenantID
	}
	return nil
}

// Search returns the k nearest chunks within one tenant. The graph is
// shared across tenants, so the search over-fetches and filters.
func (v *VectorIndex) Search(ctx context.Context, tenantID string, query []float32, k int) ([]*VectorHit, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.closed {
		return nil, fmt.Errorf("index is closed")
	}
	if len(query) != v.config.Dimensions {
		return nil, fmt.Errorf("query dimension mismatch, want %d got %d",
			v.config.Dimensions, len(query))
	}
	if v.graph.Len() == 0 {
		return nil, nil
	}

	q := make([]float32, len(query))
	copy(q, query)
	normalizeInPlace(q)

	// Over-fetch to survive lazy-deleted and cross-tenant nodes.
	fetch := k * 4
	if fetch < 20 {
		fetch = 20
	}
	nodes := v.graph.Search(q, fetch)

	hits := make([]*VectorHit, 0, k)
	for _, node := range nodes {
		id, ok := v.keyMap[node.Key]
		if !ok || v.tenants[node.Key] != tenantID {
			continue
		}
		distance := v.graph.Distance(q, node.Value)
		hits = append(hits, &VectorHit{
			ChunkID: id,
			// Cosine distance 0..2 maps to similarity 1..0.
			Score: float64(1.0 - distance/2.0),
		})
		if len(hits) >= k {
			break
		}
	}
	return hits, nil
}

// Delete lazily removes chunk IDs.
func (v *VectorIndex) Delete(ctx context.Context, ids []string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return fmt.Errorf("index is closed")
	}

	for _, id := range ids {
		if key, ok := v.idMap[id]; ok {
			delete(v.keyMap, key)
			delete(v.tenants, key)
			delete(v.idMap, id)
		}
	}
	return nil
}

// Count returns the number of live vectors.
func (v *VectorIndex) Count() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.idMap)
}

// Dimensions returns the configured vector width.
func (v *VectorIndex) Dimensions() int {
	return v.config.Dimensions
}

// Save persists the graph and mappings atomically (temp file + rename).
func (v *VectorIndex) Save(path string) error {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.closed {
		return fmt.Errorf("index is closed")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	if err := v.graph.Export(file); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("export graph: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close index file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename index file: %w", err)
	}

	return v.saveMetadata(path + ".meta")
}

func (v *VectorIndex) saveMetadata(path string) error {
	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create metadata file: %w", err)
	}

	meta := vectorMetadata{
		IDMap:   v.idMap,
		Tenants: v.tenants,
		NextKey: v.nextKey,
		Config:  v.config,
	}
	if err := gob.NewEncoder(file).Encode(meta); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close metadata file: %w", err)
	}
	return os.Rename(tmpPath, path)
}

// Load restores a saved index. Missing files leave the index empty.
func (v *VectorIndex) Load(path string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return fmt.Errorf("index is closed")
	}

	if err := v.loadMetadata(path + ".meta"); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("load metadata: %w", err)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open index file: %w", err)
	}
	defer func() { _ = file.Close() }()

	// Import requires an io.ByteReader.
	if err := v.graph.Import(bufio.NewReader(file)); err != nil {
		return fmt.Errorf("import graph: %w", err)
	}
	return nil
}

func (v *VectorIndex) loadMetadata(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	var meta vectorMetadata
	if err := gob.NewDecoder(file).Decode(&meta); err != nil {
		return fmt.Errorf("decode metadata: %w", err)
	}

	v.idMap = meta.IDMap
	v.tenants = meta.Tenants
	v.nextKey = meta.NextKey
	v.config = meta.Config
	v.keyMap = make(map[uint64]string, len(meta.IDMap))
	for id, key := range v.idMap {
		v.keyMap[key] = id
	}
	return nil
}

// Close releases the graph.
func (v *VectorIndex) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return nil
	}
	v.closed = true
	v.graph = nil
	return nil
}

func normalizeInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}
