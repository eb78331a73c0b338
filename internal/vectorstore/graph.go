package vectorstore

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

// HNSWGraph implements Graph using coder/hnsw, the pure-Go HNSW
// implementation with no CGO dependency. Deletions are lazy and saves are
// atomic (write-temp then rename, graph and ID-mapping sidecar alike).
type HNSWGraph struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[uint64]
	config Config

	idMap   map[string]uint64
	keyMap  map[uint64]string
	nextKey uint64
	closed  bool
}

type hnswMetadata struct {
	IDMap   map[string]uint64
	NextKey uint64
	Config  Config
}

// NewHNSWGraph builds a graph parameterized by cfg.
func NewHNSWGraph(cfg Config) *HNSWGraph {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = cfg.M
	// coder/hnsw has no direct ef_construction knob; EfSearch also governs
	// insertion-time candidate width, so seed it from ef_construction.
	graph.EfSearch = cfg.EfConstruction
	graph.Ml = 1.0 / math.Log(float64(cfg.M))

	return &HNSWGraph{
		graph:   graph,
		config:  cfg,
		idMap:   make(map[string]uint64),
		keyMap:  make(map[uint64]string),
		nextKey: 0,
	}
}

var _ Graph = (*HNSWGraph)(nil)

// Add inserts or replaces vectors by string ID.
func (g *HNSWGraph) Add(_ context.Context, ids []string, vectors [][]float32) error {
	if len(ids) == 0 {
		return nil
	}
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch: %d vs %d", len(ids), len(vectors))
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return fmt.Errorf("graph is closed")
	}

	for _, v := range vectors {
		if len(v) != g.config.Dimensions {
			return ErrDimensionMismatch{Expected: g.config.Dimensions, Got: len(v)}
		}
	}

	for i, id := range ids {
		// Lazy deletion on replace: coder/hnsw has a known issue deleting
		// the graph's last remaining node, so an existing ID's old key is
		// orphaned rather than removed from the graph.
		if existingKey, exists := g.idMap[id]; exists {
			delete(g.keyMap, existingKey)
			delete(g.idMap, id)
		}

		key := g.nextKey
		g.nextKey++

		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		normalizeInPlace(vec)

		g.graph.Add(hnsw.MakeNode(key, vec))
		g.idMap[id] = key
		g.keyMap[key] = id
	}

	return nil
}

// Search returns the topK nearest neighbors using the engine's
// ef = max(64, 4*topK) search width. It takes the write lock because the
// underlying graph's EfSearch knob is set per query.
func (g *HNSWGraph) Search(_ context.Context, query []float32, topK int) ([]Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return nil, fmt.Errorf("graph is closed")
	}
	if len(query) != g.config.Dimensions {
		return nil, ErrDimensionMismatch{Expected: g.config.Dimensions, Got: len(query)}
	}
	if g.graph.Len() == 0 {
		return nil, nil
	}

	normalized := make([]float32, len(query))
	copy(normalized, query)
	normalizeInPlace(normalized)

	g.graph.EfSearch = QueryEf(topK)
	nodes := g.graph.Search(normalized, topK)

	results := make([]Result, 0, len(nodes))
	for _, node := range nodes {
		id, ok := g.keyMap[node.Key]
		if !ok {
			continue
		}
		distance := g.graph.Distance(normalized, node.Value)
		results = append(results, Result{
			ID:       id,
			Distance: distance,
			Score:    1.0 - distance,
		})
	}
	return results, nil
}

// Delete lazily removes ids from the mapping (the graph node is orphaned).
func (g *HNSWGraph) Delete(_ context.Context, ids []string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return fmt.Errorf("graph is closed")
	}
	for _, id := range ids {
		if key, ok := g.idMap[id]; ok {
			delete(g.keyMap, key)
			delete(g.idMap, id)
		}
	}
	return nil
}

func (g *HNSWGraph) Contains(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.idMap[id]
	return ok
}

func (g *HNSWGraph) Count() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.idMap)
}

// Save writes the graph and its ID-mapping sidecar atomically.
func (g *HNSWGraph) Save(path string) error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.closed {
		return fmt.Errorf("graph is closed")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmp := path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create graph file: %w", err)
	}
	if err := g.graph.Export(file); err != nil {
		file.Close()
		os.Remove(tmp)
		return fmt.Errorf("export graph: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close graph file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename graph file: %w", err)
	}

	return g.saveMetadata(path + ".meta")
}

func (g *HNSWGraph) saveMetadata(path string) error {
	tmp := path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create metadata file: %w", err)
	}
	meta := hnswMetadata{IDMap: g.idMap, NextKey: g.nextKey, Config: g.config}
	if err := gob.NewEncoder(file).Encode(meta); err != nil {
		file.Close()
		os.Remove(tmp)
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close metadata file: %w", err)
	}
	return os.Rename(tmp, path)
}

// Load restores the graph and ID mapping from path.
func (g *HNSWGraph) Load(path string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return fmt.Errorf("graph is closed")
	}

	if err := g.loadMetadata(path + ".meta"); err != nil {
		return fmt.Errorf("load metadata: %w", err)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open graph file: %w", err)
	}
	defer file.Close()

	reader := bufio.NewReader(file)
	if err := g.graph.Import(reader); err != nil {
		return fmt.Errorf("import graph: %w", err)
	}
	return nil
}

func (g *HNSWGraph) loadMetadata(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open metadata file: %w", err)
	}
	defer file.Close()

	var meta hnswMetadata
	if err := gob.NewDecoder(file).Decode(&meta); err != nil {
		return fmt.Errorf("decode metadata: %w", err)
	}

	g.idMap = meta.IDMap
	g.nextKey = meta.NextKey
	g.config = meta.Config
	g.keyMap = make(map[uint64]string, len(g.idMap))
	for id, key := range g.idMap {
		g.keyMap[key] = id
	}
	return nil
}

// Close releases the graph. Safe to call more than once.
func (g *HNSWGraph) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	g.graph = nil
	return nil
}

// ReadDimensions reads just the configured dimension count from an existing
// graph's metadata sidecar, returning 0 if it doesn't exist (fresh build).
func ReadDimensions(path string) (int, error) {
	file, err := os.Open(path + ".meta")
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("open metadata file: %w", err)
	}
	defer file.Close()

	var meta hnswMetadata
	if err := gob.NewDecoder(file).Decode(&meta); err != nil {
		return 0, fmt.Errorf("decode metadata: %w", err)
	}
	return meta.Config.Dimensions, nil
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
