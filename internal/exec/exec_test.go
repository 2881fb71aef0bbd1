package exec

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFingerprintIsCaseAndWhitespaceInsensitive(t *testing.T) {
	a := fingerprint(map[string]string{"content": "Hello   World"})
	b := fingerprint(map[string]string{"content": "hello world"})
	require.Equal(t, a, b)
}

func TestFingerprintDiffersForDifferentContent(t *testing.T) {
	a := fingerprint(map[string]string{"content": "hello"})
	b := fingerprint(map[string]string{"content": "goodbye"})
	require.NotEqual(t, a, b)
}

func TestMarkSeenDedupes(t *testing.T) {
	seen := make(map[string]struct{})
	data := map[string]string{"content": "same"}

	require.True(t, markSeen(seen, data))
	require.False(t, markSeen(seen, data))
	require.False(t, markSeen(seen, map[string]string{"content": "SAME"}))
}

func TestFailedEnvelopeCarriesError(t *testing.T) {
	res := Failed("q", errors.New("boom"))
	require.Equal(t, "boom", res.Metadata.Error)
	require.Equal(t, 0, res.Stats.Total)
}

