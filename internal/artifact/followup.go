package artifact

import (
	"regexp"
	"strings"
)

var answerTag = regexp.MustCompile(`(?is)<answer>\s*(.*?)\s*</answer>`)

// ExtractFollowUpQuery pulls the optimized query out of a follow-up
// model response: content between <answer> and </answer> if present,
// otherwise the whole response with surrounding backticks/quotes
// stripped.
func ExtractFollowUpQuery(response string) string {
	if m := answerTag.FindStringSubmatch(response); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.Trim(strings.TrimSpace(response), "`\"' \n")
}
