package ingest

import (
	"os"
	"strconv"

	"github.com/gabriel-vasile/mimetype"
)

// BinaryRecord captures the binary-bucket fallback: a single
// record with size, MIME type, and mtime, for any extension that falls
// outside the structured/text dispatch tables.
func BinaryRecord(path string, info os.FileInfo) (map[string]string, error) {
	mtype, err := mimetype.DetectFile(path)
	mimeStr := "application/octet-stream"
	if err == nil && mtype != nil {
		mimeStr = mtype.String()
	}

	return map[string]string{
		"size":          strconv.FormatInt(info.Size(), 10),
		"mime_type":     mimeStr,
		"last_modified": info.ModTime().UTC().Format("2006-01-02T15:04:05Z07:00"),
	}, nil
}
