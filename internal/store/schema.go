package store

import "fmt"

// schemaSQL returns the DDL for the unified record store. embeddingDim
// controls the vec0 virtual table dimension.
func schemaSQL(embeddingDim int) string {
	return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS records (
    id INTEGER PRIMARY KEY,
    record_id TEXT NOT NULL UNIQUE,
    file_path TEXT NOT NULL,
    file_name TEXT NOT NULL,
    file_type TEXT NOT NULL,
    processed_at DATETIME NOT NULL,
    sub_id INTEGER NOT NULL,
    data JSON NOT NULL
);

CREATE VIRTUAL TABLE IF NOT EXISTS vec_records USING vec0(
    record_rowid INTEGER PRIMARY KEY,
    embedding float[%d]
);

CREATE INDEX IF NOT EXISTS idx_records_file_path ON records(file_path);
CREATE INDEX IF NOT EXISTS idx_records_file_type ON records(file_type);
CREATE INDEX IF NOT EXISTS idx_records_processed_at ON records(processed_at);
`, embeddingDim)
}
