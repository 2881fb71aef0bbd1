package ingest

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBinaryRecordCapturesSizeAndMime(t *testing.T) {
	path := writeTemp(t, "blob.bin", "\x00\x01\x02binary content")
	info, err := os.Stat(path)
	require.NoError(t, err)

	fields, err := BinaryRecord(path, info)
	require.NoError(t, err)
	require.Equal(t, "17", fields["size"])
	require.NotEmpty(t, fields["mime_type"])
	require.NotEmpty(t, fields["last_modified"])
}
