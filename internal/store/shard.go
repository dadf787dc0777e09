package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure Go SQLite driver, no CGO
)

const (
	shardRecordsFile = "records.db"
	shardGraphFile   = "vectors.hnsw"
)

// shard owns one shards/<nnn>/ directory: a SQLite record database (source
// of truth) and an HNSW graph over the same records (search accelerator).
// The graph is rebuilt from SQLite whenever its snapshot is missing or
// corrupt, so losing it never loses data.
//
// Not safe for concurrent use; ShardedStore guarantees each shard is touched
// by one goroutine at a time within a pooled call.
type shard struct {
	id    int
	dir   string
	db    *sql.DB
	graph *vectorGraph
}

// openShard opens or creates a shard directory.
func openShard(id int, dir string, hnswCfg HNSWConfig, cacheMB int) (*shard, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create shard directory: %w", err)
	}

	db, err := openRecordsDB(filepath.Join(dir, shardRecordsFile), cacheMB)
	if err != nil {
		return nil, err
	}

	s := &shard{
		id:    id,
		dir:   dir,
		db:    db,
		graph: newVectorGraph(hnswCfg),
	}

	graphPath := filepath.Join(dir, shardGraphFile)
	if _, statErr := os.Stat(graphPath); statErr == nil {
		if loadErr := s.graph.load(graphPath); loadErr != nil {
			slog.Warn("shard_graph_corrupt",
				slog.Int("shard", id),
				slog.String("error", loadErr.Error()))
			s.graph = newVectorGraph(hnswCfg)
			if rebuildErr := s.rebuildGraph(context.Background()); rebuildErr != nil {
				_ = db.Close()
				return nil, rebuildErr
			}
			slog.Info("shard_graph_rebuilt",
				slog.Int("shard", id),
				slog.Int("vectors", s.graph.count()))
		}
	} else if count, countErr := s.recordCount(context.Background()); countErr == nil && count > 0 {
		// Records exist but no snapshot: first open after a crash mid-save.
		if rebuildErr := s.rebuildGraph(context.Background()); rebuildErr != nil {
			_ = db.Close()
			return nil, rebuildErr
		}
		slog.Warn("shard_graph_missing_rebuilt",
			slog.Int("shard", id),
			slog.Int("vectors", s.graph.count()))
	}

	return s, nil
}

// openRecordsDB opens the shard SQLite database with WAL and a single
// writer connection.
func openRecordsDB(path string, cacheMB int) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open records database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if cacheMB <= 0 {
		cacheMB = 16
	}
	// modernc.org/sqlite ignores some DSN params; set pragmas explicitly.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		fmt.Sprintf("PRAGMA cache_size = -%d", cacheMB*1024),
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	schema := `
	CREATE TABLE IF NOT EXISTS records (
		file_path   TEXT    NOT NULL,
		chunk_index INTEGER NOT NULL,
		content     TEXT    NOT NULL,
		embedding   BLOB    NOT NULL,
		PRIMARY KEY (file_path, chunk_index)
	);
	CREATE INDEX IF NOT EXISTS idx_records_file ON records(file_path);
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize records schema: %w", err)
	}
	return db, nil
}

// rebuildGraph repopulates the HNSW graph from the SQLite records.
func (s *shard) rebuildGraph(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT file_path, chunk_index, embedding FROM records`)
	if err != nil {
		return fmt.Errorf("scan records for graph rebuild: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var filePath string
		var chunkIndex int
		var blob []byte
		if err := rows.Scan(&filePath, &chunkIndex, &blob); err != nil {
			return fmt.Errorf("scan record: %w", err)
		}
		if err := s.graph.add(RecordKey(filePath, chunkIndex), decodeVector(blob)); err != nil {
			return fmt.Errorf("rebuild graph for %s: %w", RecordKey(filePath, chunkIndex), err)
		}
	}
	return rows.Err()
}

// upsert replaces records sharing a (file_path, chunk_index) identity in
// both SQLite and the graph.
func (s *shard) upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO records(file_path, chunk_index, content, embedding) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx, rec.FilePath, rec.ChunkIndex, rec.Content, encodeVector(rec.Embedding)); err != nil {
			return fmt.Errorf("upsert record %s: %w", rec.Key(), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}

	for _, rec := range records {
		if err := s.graph.add(rec.Key(), rec.Embedding); err != nil {
			return err
		}
	}
	return nil
}

// deleteByFile removes all records for a file, returning the removed keys.
func (s *shard) deleteByFile(ctx context.Context, filePath string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT chunk_index FROM records WHERE file_path = ?`, filePath)
	if err != nil {
		return nil, fmt.Errorf("list records for %s: %w", filePath, err)
	}

	var keys []string
	for rows.Next() {
		var idx int
		if err := rows.Scan(&idx); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan chunk index: %w", err)
		}
		keys = append(keys, RecordKey(filePath, idx))
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	if len(keys) == 0 {
		return nil, nil
	}

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM records WHERE file_path = ?`, filePath); err != nil {
		return nil, fmt.Errorf("delete records for %s: %w", filePath, err)
	}
	s.graph.remove(keys)
	return keys, nil
}

// nearest returns up to topK records with similarity >= minScore, sorted
// descending, ties broken by file path then chunk index (handled by the
// caller-side sort since hydration happens here).
func (s *shard) nearest(ctx context.Context, query []float32, topK int, minScore float64) ([]ScoredRecord, error) {
	hits, err := s.graph.search(query, topK)
	if err != nil {
		return nil, err
	}

	results := make([]ScoredRecord, 0, len(hits))
	for _, hit := range hits {
		if hit.score < minScore {
			continue
		}
		filePath, chunkIndex, err := ParseRecordKey(hit.key)
		if err != nil {
			return nil, err
		}

		var content string
		var blob []byte
		row := s.db.QueryRowContext(ctx,
			`SELECT content, embedding FROM records WHERE file_path = ? AND chunk_index = ?`,
			filePath, chunkIndex)
		if err := row.Scan(&content, &blob); err != nil {
			if err == sql.ErrNoRows {
				// Graph ahead of SQLite; skip rather than fail the query.
				continue
			}
			return nil, fmt.Errorf("hydrate record %s: %w", hit.key, err)
		}

		results = append(results, ScoredRecord{
			Record: Record{
				FilePath:   filePath,
				ChunkIndex: chunkIndex,
				Content:    content,
				Embedding:  decodeVector(blob),
				ShardID:    s.id,
			},
			Score: hit.score,
		})
	}

	sortScored(results)
	return results, nil
}

// stats derives chunk and file counts from SQLite.
func (s *shard) stats(ctx context.Context) (ShardStats, error) {
	var st ShardStats
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(DISTINCT file_path) FROM records`)
	if err := row.Scan(&st.ChunkCount, &st.FileCount); err != nil {
		return ShardStats{}, fmt.Errorf("shard stats: %w", err)
	}
	return st, nil
}

// filePaths lists distinct files in this shard.
func (s *shard) filePaths(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT file_path FROM records ORDER BY file_path`)
	if err != nil {
		return nil, fmt.Errorf("list shard files: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// recordKeys lists every record key in SQLite, sorted.
func (s *shard) recordKeys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT file_path, chunk_index FROM records ORDER BY file_path, chunk_index`)
	if err != nil {
		return nil, fmt.Errorf("list shard record keys: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var keys []string
	for rows.Next() {
		var filePath string
		var chunkIndex int
		if err := rows.Scan(&filePath, &chunkIndex); err != nil {
			return nil, err
		}
		keys = append(keys, RecordKey(filePath, chunkIndex))
	}
	return keys, rows.Err()
}

func (s *shard) recordCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&count)
	return count, err
}

// clear drops all records and resets the graph.
func (s *shard) clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM records`); err != nil {
		return fmt.Errorf("clear shard records: %w", err)
	}
	s.graph = newVectorGraph(s.graph.config)

	_ = os.Remove(filepath.Join(s.dir, shardGraphFile))
	_ = os.Remove(filepath.Join(s.dir, shardGraphFile+".meta"))
	return nil
}

// save checkpoints the WAL and persists the graph snapshot.
func (s *shard) save() error {
	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("checkpoint shard database: %w", err)
	}
	return s.graph.save(filepath.Join(s.dir, shardGraphFile))
}

func (s *shard) close() error {
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}

// encodeVector packs a []float32 as little-endian bytes for BLOB storage.
func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, val := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(val))
	}
	return buf
}

// decodeVector unpacks a BLOB back into a []float32.
func decodeVector(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v
}
