package ingest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFlattenPrimitiveLeaves(t *testing.T) {
	out := Flatten(`{"name":"widget","price":12}`)
	require.Equal(t, "widget", out["name"])
	require.Equal(t, "12", out["price"])
}

func TestFlattenNestedObjectKeepsCompositeAndLeaves(t *testing.T) {
	out := Flatten(`{"meta":{"owner":"ana","tags":["a","b"]}}`)
	require.Equal(t, "ana", out["meta_owner"])
	require.Equal(t, "a", out["meta_tags_0"])
	require.Equal(t, "b", out["meta_tags_1"])
	require.JSONEq(t, `{"owner":"ana","tags":["a","b"]}`, out["meta"])
	require.JSONEq(t, `["a","b"]`, out["meta_tags"])
}

func TestFlattenArrayAtRoot(t *testing.T) {
	out := Flatten(`[1,2,3]`)
	require.Equal(t, "1", out["_0"])
	require.Equal(t, "2", out["_1"])
	require.Equal(t, "3", out["_2"])
}

func TestFlattenMapFromGoMap(t *testing.T) {
	out := FlattenMap(map[string]string{"widget.name": "box", "count": "3"})
	require.Equal(t, "box", out["widget_name"])
	require.Equal(t, "3", out["count"])
}

func TestEscapeKeyReplacesDots(t *testing.T) {
	require.Equal(t, "a_b_c", escapeKey("a.b.c"))
}
