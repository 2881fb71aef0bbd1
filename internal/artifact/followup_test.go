package artifact

import "testing"

func TestExtractFollowUpQueryFromAnswerTag(t *testing.T) {
	got := ExtractFollowUpQuery("<think>hmm</think>\n\n<answer>\nbetter widget specs\n</answer>")
	if got != "better widget specs" {
		t.Fatalf("got %q", got)
	}
}

func TestExtractFollowUpQueryFallsBackToStripped(t *testing.T) {
	got := ExtractFollowUpQuery("`widget pricing history`")
	if got != "widget pricing history" {
		t.Fatalf("got %q", got)
	}
}
