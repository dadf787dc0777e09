package store

import (
	"bufio"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/coder/hnsw"
)

// vectorGraph is a per-shard approximate-nearest-neighbor index over record
// keys, built on coder/hnsw (pure Go, cosine distance).
//
// Deletion is lazy: removing a key only drops the key<->node mappings, the
// node stays in the graph and is filtered out of search results. This avoids
// graph-repair issues in coder/hnsw when the last node is removed; orphans
// are swept when the shard rebuilds the graph from SQLite.
//
// Not safe for concurrent use; the owning shard serializes access.
type vectorGraph struct {
	graph  *hnsw.Graph[uint64]
	config HNSWConfig

	keyByID map[string]uint64
	idByKey map[uint64]string
	nextID  uint64
}

// graphSidecar is the gob-encoded mapping file stored next to the graph
// snapshot.
type graphSidecar struct {
	KeyByID map[string]uint64
	NextID  uint64
	Config  HNSWConfig
}

func newVectorGraph(cfg HNSWConfig) *vectorGraph {
	if cfg.M <= 0 {
		cfg.M = 16
	}
	if cfg.EfSearch <= 0 {
		cfg.EfSearch = 64
	}

	g := hnsw.NewGraph[uint64]()
	g.Distance = hnsw.CosineDistance
	g.M = cfg.M
	g.EfSearch = cfg.EfSearch
	g.Ml = 0.25

	return &vectorGraph{
		graph:   g,
		config:  cfg,
		keyByID: make(map[string]uint64),
		idByKey: make(map[uint64]string),
	}
}

// add inserts a vector under a record key, replacing any existing entry for
// that key via lazy deletion.
func (v *vectorGraph) add(key string, vector []float32) error {
	if len(vector) != v.config.Dimensions {
		return fmt.Errorf("vector has %d dimensions, graph expects %d", len(vector), v.config.Dimensions)
	}

	if oldID, exists := v.keyByID[key]; exists {
		delete(v.idByKey, oldID)
		delete(v.keyByID, key)
	}

	id := v.nextID
	v.nextID++

	vec := make([]float32, len(vector))
	copy(vec, vector)
	normalizeInPlace(vec)

	v.graph.Add(hnsw.MakeNode(id, vec))
	v.keyByID[key] = id
	v.idByKey[id] = key
	return nil
}

// remove lazily deletes keys from the graph.
func (v *vectorGraph) remove(keys []string) {
	for _, key := range keys {
		if id, exists := v.keyByID[key]; exists {
			delete(v.idByKey, id)
			delete(v.keyByID, key)
		}
	}
}

// graphHit is a raw nearest-neighbor match before record hydration.
type graphHit struct {
	key   string
	score float64
}

// search returns up to k live neighbors of query, scored as cosine
// similarity in [-1, 1], most similar first. Orphaned nodes are skipped, so
// the fetch is widened to compensate.
func (v *vectorGraph) search(query []float32, k int) ([]graphHit, error) {
	if len(query) != v.config.Dimensions {
		return nil, fmt.Errorf("query has %d dimensions, graph expects %d", len(query), v.config.Dimensions)
	}
	if v.graph.Len() == 0 || k <= 0 {
		return nil, nil
	}

	normalized := make([]float32, len(query))
	copy(normalized, query)
	normalizeInPlace(normalized)

	orphans := v.graph.Len() - len(v.keyByID)
	nodes := v.graph.Search(normalized, k+orphans)

	hits := make([]graphHit, 0, k)
	for _, node := range nodes {
		key, live := v.idByKey[node.Key]
		if !live {
			continue
		}
		distance := v.graph.Distance(normalized, node.Value)
		hits = append(hits, graphHit{key: key, score: 1 - float64(distance)})
		if len(hits) == k {
			break
		}
	}
	return hits, nil
}

func (v *vectorGraph) contains(key string) bool {
	_, exists := v.keyByID[key]
	return exists
}

func (v *vectorGraph) count() int {
	return len(v.keyByID)
}

// keys lists every live record key in the graph, sorted.
func (v *vectorGraph) keys() []string {
	out := make([]string, 0, len(v.keyByID))
	for key := range v.keyByID {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

// save persists the graph snapshot and its sidecar, temp file + rename.
func (v *vectorGraph) save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create shard directory: %w", err)
	}

	tmp := path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create graph snapshot: %w", err)
	}
	if err := v.graph.Export(file); err != nil {
		_ = file.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("export graph: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close graph snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename graph snapshot: %w", err)
	}

	return v.saveSidecar(path + ".meta")
}

func (v *vectorGraph) saveSidecar(path string) error {
	tmp := path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create graph sidecar: %w", err)
	}

	sidecar := graphSidecar{
		KeyByID: v.keyByID,
		NextID:  v.nextID,
		Config:  v.config,
	}
	if err := gob.NewEncoder(file).Encode(sidecar); err != nil {
		_ = file.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("encode graph sidecar: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close graph sidecar: %w", err)
	}
	return os.Rename(tmp, path)
}

// load restores the graph snapshot and sidecar from disk.
func (v *vectorGraph) load(path string) error {
	if err := v.loadSidecar(path + ".meta"); err != nil {
		return err
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open graph snapshot: %w", err)
	}
	defer func() { _ = file.Close() }()

	// coder/hnsw Import needs an io.ByteReader.
	if err := v.graph.Import(bufio.NewReader(file)); err != nil {
		return fmt.Errorf("import graph: %w", err)
	}
	return nil
}

func (v *vectorGraph) loadSidecar(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open graph sidecar: %w", err)
	}
	defer func() { _ = file.Close() }()

	var sidecar graphSidecar
	if err := gob.NewDecoder(file).Decode(&sidecar); err != nil {
		return fmt.Errorf("decode graph sidecar: %w", err)
	}
	if sidecar.Config.Dimensions != v.config.Dimensions {
		return fmt.Errorf("sidecar has %d dimensions, graph expects %d",
			sidecar.Config.Dimensions, v.config.Dimensions)
	}

	v.keyByID = sidecar.KeyByID
	v.nextID = sidecar.NextID
	v.idByKey = make(map[uint64]string, len(sidecar.KeyByID))
	for key, id := range sidecar.KeyByID {
		v.idByKey[id] = key
	}
	return nil
}

// normalizeInPlace scales v to unit length. Zero vectors stay zero.
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
