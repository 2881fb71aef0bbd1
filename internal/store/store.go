// Package store implements the unified structured+vector store:
// one SQLite database holding a flat records table alongside a sqlite-vec
// vec0 virtual table that stores the embeddings. Nearest-neighbour search
// runs over an in-memory index loaded from that table at Open.
package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/brunobiangulo/alchemy/internal/ingest"
)

func init() {
	sqlite_vec.Auto()
}

// ScoredRecord pairs a stored Record with a vector similarity score.
type ScoredRecord struct {
	Record     ingest.Record
	Similarity float64
}

// Store wraps the SQLite database backing the unified store, plus the
// in-memory vector index mirrored from it.
type Store struct {
	db           *sql.DB
	embeddingDim int
	vecIndex     *VectorIndex
}

// Open creates (or reuses) a SQLite database at dbPath and ensures the
// records/vec_records schema exists.
func Open(dbPath string, embeddingDim int) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := db.Exec(schemaSQL(embeddingDim)); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{db: db, embeddingDim: embeddingDim, vecIndex: newVectorIndex()}
	if err := s.loadVectorIndex(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("loading vector index: %w", err)
	}
	return s, nil
}

// loadVectorIndex populates the in-memory index by scanning every
// record with a stored vector.
func (s *Store) loadVectorIndex(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.record_id, r.file_path, r.file_name, r.file_type, r.processed_at, r.sub_id, r.data, v.embedding
		FROM vec_records v
		JOIN records r ON r.id = v.record_rowid
	`)
	if err != nil {
		return err
	}
	defer rows.Close()

	var records []ingest.Record
	for rows.Next() {
		var r ingest.Record
		var dataJSON string
		var embedding []byte
		if err := rows.Scan(&r.RecordID, &r.FilePath, &r.FileName, &r.FileType,
			&r.ProcessedAt, &r.SubID, &dataJSON, &embedding); err != nil {
			return err
		}
		if err := json.Unmarshal([]byte(dataJSON), &r.Data); err != nil {
			return fmt.Errorf("unmarshaling record data: %w", err)
		}
		r.Vector = deserializeFloat32(embedding)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	s.vecIndex.rebuild(records)
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// EmbeddingDim returns the configured vector dimension.
func (s *Store) EmbeddingDim() int {
	return s.embeddingDim
}

// Save persists records for one or more files. All existing records
// for each distinct file_path among the given records
// are deleted first, then the new records are bulk-inserted, all within
// a single transaction so a partial ingest never leaves stale and fresh
// rows mixed for the same file.
func (s *Store) Save(ctx context.Context, records []ingest.Record) error {
	if len(records) == 0 {
		return nil
	}

	paths := make(map[string]struct{})
	for _, r := range records {
		paths[r.FilePath] = struct{}{}
	}

	var replacedIDs []string
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		for path := range paths {
			ids, err := recordIDsForPath(ctx, tx, path)
			if err != nil {
				return fmt.Errorf("listing existing records for %s: %w", path, err)
			}
			replacedIDs = append(replacedIDs, ids...)

			if err := deleteByPath(ctx, tx, path); err != nil {
				return fmt.Errorf("clearing existing records for %s: %w", path, err)
			}
		}

		insertStmt, err := tx.PrepareContext(ctx, `
			INSERT INTO records (record_id, file_path, file_name, file_type, processed_at, sub_id, data)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer insertStmt.Close()

		for _, r := range records {
			dataJSON, err := json.Marshal(r.Data)
			if err != nil {
				return fmt.Errorf("marshaling record data: %w", err)
			}

			res, err := insertStmt.ExecContext(ctx, r.RecordID, r.FilePath, r.FileName,
				r.FileType, r.ProcessedAt, r.SubID, string(dataJSON))
			if err != nil {
				return fmt.Errorf("inserting record %s: %w", r.RecordID, err)
			}

			if len(r.Vector) == 0 {
				continue
			}
			rowID, err := res.LastInsertId()
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx,
				"INSERT OR REPLACE INTO vec_records (record_rowid, embedding) VALUES (?, ?)",
				rowID, serializeFloat32(r.Vector)); err != nil {
				return fmt.Errorf("inserting vector for %s: %w", r.RecordID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.vecIndex.remove(replacedIDs)
	for _, r := range records {
		s.vecIndex.add(r)
	}
	return nil
}

func recordIDsForPath(ctx context.Context, tx *sql.Tx, path string) ([]string, error) {
	rows, err := tx.QueryContext(ctx, "SELECT record_id FROM records WHERE file_path = ?", path)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func deleteByPath(ctx context.Context, tx *sql.Tx, path string) error {
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM vec_records WHERE record_rowid IN (
			SELECT id FROM records WHERE file_path = ?
		)`, path); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, "DELETE FROM records WHERE file_path = ?", path)
	return err
}

// RemoveByPaths deletes every record (and its vector, if any) belonging
// to any of the given file paths. Used when a file disappears from the
// source tree between ingestion runs.
func (s *Store) RemoveByPaths(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}

	var removedIDs []string
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		for _, p := range paths {
			ids, err := recordIDsForPath(ctx, tx, p)
			if err != nil {
				return err
			}
			removedIDs = append(removedIDs, ids...)

			if err := deleteByPath(ctx, tx, p); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.vecIndex.remove(removedIDs)
	return nil
}

// GetByPath returns every record currently stored for a given file path.
func (s *Store) GetByPath(ctx context.Context, path string) ([]ingest.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT record_id, file_path, file_name, file_type, processed_at, sub_id, data
		FROM records WHERE file_path = ? ORDER BY sub_id
	`, path)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

// AllPaths returns the distinct file_path values currently represented
// in the store.
func (s *Store) AllPaths(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT file_path FROM records")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

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

// Count returns the total number of stored records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM records").Scan(&n)
	return n, err
}

func scanRecords(rows *sql.Rows) ([]ingest.Record, error) {
	var records []ingest.Record
	for rows.Next() {
		var r ingest.Record
		var dataJSON string
		if err := rows.Scan(&r.RecordID, &r.FilePath, &r.FileName, &r.FileType,
			&r.ProcessedAt, &r.SubID, &dataJSON); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(dataJSON), &r.Data); err != nil {
			return nil, fmt.Errorf("unmarshaling record data: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// serializeFloat32 converts a float32 slice to little-endian bytes for sqlite-vec.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// deserializeFloat32 reverses serializeFloat32, used when loading the
// in-memory vector index from vec_records at startup.
func deserializeFloat32(buf []byte) []float32 {
	n := len(buf) / 4
	v := make([]float32, n)
	for i := 0; i < n; i++ {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v
}
