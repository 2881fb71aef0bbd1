package store

import (
	"context"
	"time"

	"github.com/brunobiangulo/alchemy/internal/ingest"
)

// SearchText returns records whose serialized data contains substring,
// case-insensitive, newest-first, capped at limit. Backs the "text"
// structured query shape.
func (s *Store) SearchText(ctx context.Context, substring string, limit int) ([]ingest.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT record_id, file_path, file_name, file_type, processed_at, sub_id, data
		FROM records
		WHERE LOWER(data) LIKE '%' || LOWER(?) || '%'
		ORDER BY processed_at DESC
		LIMIT ?
	`, substring, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

// SearchByFileType returns records of a given extension, newest-first,
// capped at limit. Backs the "file" structured query shape.
func (s *Store) SearchByFileType(ctx context.Context, extension string, limit int) ([]ingest.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT record_id, file_path, file_name, file_type, processed_at, sub_id, data
		FROM records
		WHERE LOWER(file_type) = LOWER(?)
		ORDER BY processed_at DESC
		LIMIT ?
	`, extension, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

// SearchByDateRange returns records whose processed_at falls within
// [start, end], newest-first, with no hard limit. Backs the "date"
// structured query shape.
func (s *Store) SearchByDateRange(ctx context.Context, start, end time.Time) ([]ingest.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT record_id, file_path, file_name, file_type, processed_at, sub_id, data
		FROM records
		WHERE processed_at BETWEEN ? AND ?
		ORDER BY processed_at DESC
	`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}
