package llmdispatch

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNextKeyRoundRobin(t *testing.T) {
	r := NewRegistry()
	r.Register(ModelSpec{Name: "m1", Type: ModelTypeAPI, APIKeys: []string{"a", "b", "c"}})

	keys := make([]string, 6)
	for i := range keys {
		k, err := r.NextKey("m1")
		require.NoError(t, err)
		keys[i] = k
	}
	require.Equal(t, []string{"a", "b", "c", "a", "b", "c"}, keys)
}

func TestNextKeyUnknownModel(t *testing.T) {
	r := NewRegistry()
	_, err := r.NextKey("missing")
	require.Error(t, err)
}

func TestNextKeyLocalModelUnsupported(t *testing.T) {
	r := NewRegistry()
	r.Register(ModelSpec{Name: "local1", Type: ModelTypeLocal})
	_, err := r.NextKey("local1")
	require.Error(t, err)
}

func TestNextKeyNoKeysConfigured(t *testing.T) {
	r := NewRegistry()
	r.Register(ModelSpec{Name: "m1", Type: ModelTypeAPI})
	_, err := r.NextKey("m1")
	require.Error(t, err)
}
