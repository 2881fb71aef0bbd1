package artifact

import "testing"

func TestExtractHTMLPlainDocument(t *testing.T) {
	in := "  <!DOCTYPE html>\n<html><body>hi</body></html>"
	out, ok := ExtractHTML(in)
	if !ok {
		t.Fatal("expected ok")
	}
	if out[0] != '<' {
		t.Fatalf("expected trimmed document, got %q", out)
	}
}

func TestExtractHTMLFencedBlock(t *testing.T) {
	in := "Here you go:\n```html\n<html><body>fenced</body></html>\n```\nthanks"
	out, ok := ExtractHTML(in)
	if !ok {
		t.Fatal("expected ok")
	}
	if out != "<html><body>fenced</body></html>" {
		t.Fatalf("unexpected extraction: %q", out)
	}
}

func TestExtractHTMLFallsBackToWellFormedTag(t *testing.T) {
	in := "Sure, here is a snippet: <div class=\"x\">content</div> done."
	out, ok := ExtractHTML(in)
	if !ok {
		t.Fatal("expected ok")
	}
	if out != "<div class=\"x\">content</div> done." {
		t.Fatalf("unexpected extraction: %q", out)
	}
}

func TestExtractHTMLNoMatch(t *testing.T) {
	_, ok := ExtractHTML("just some prose, nothing tag-like here")
	if ok {
		t.Fatal("expected no match")
	}
}
