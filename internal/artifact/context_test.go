package artifact

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAssembleFollowsFilePathReferences(t *testing.T) {
	dir := t.TempDir()

	referenced := filepath.Join(dir, "referenced.txt")
	if err := os.WriteFile(referenced, []byte("referenced content"), 0o644); err != nil {
		t.Fatal(err)
	}

	seed := filepath.Join(dir, "seed.json")
	seedJSON := `{"structured":[{"file_path":"` + referenced + `","data":{"content":"x"}}]}`
	if err := os.WriteFile(seed, []byte(seedJSON), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, err := Assemble([]string{seed})
	if err != nil {
		t.Fatal(err)
	}

	if _, ok := ctx.Contents[referenced]; !ok {
		t.Fatalf("expected referenced file to be pulled in, got paths: %v", ctx.Manifest.FilePaths)
	}
	if ctx.Manifest.TotalCount != 2 {
		t.Fatalf("expected 2 files, got %d", ctx.Manifest.TotalCount)
	}
}

func TestAssembleDeduplicatesPaths(t *testing.T) {
	dir := t.TempDir()
	f := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(f, []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, err := Assemble([]string{f, f})
	if err != nil {
		t.Fatal(err)
	}
	if ctx.Manifest.TotalCount != 1 {
		t.Fatalf("expected dedup to 1 file, got %d", ctx.Manifest.TotalCount)
	}
}
