package llmdispatch

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStreamWrapperWithReasoning(t *testing.T) {
	sw := &streamWrapper{}
	var out string
	out += sw.reasoning("let me think")
	out += sw.reasoning(" more")
	out += sw.content("the answer")
	out += sw.content(" continues")
	out += sw.end()

	require.Equal(t,
		"<think>\nlet me think more\n</think>\n\n<answer>\nthe answer continues\n</answer>",
		out,
	)
}

func TestStreamWrapperWithoutReasoning(t *testing.T) {
	sw := &streamWrapper{}
	var out string
	out += sw.content("just the answer")
	out += sw.end()

	require.Equal(t, "<answer>\njust the answer\n</answer>", out)
}

func TestStreamWrapperReasoningOnlyClosesThink(t *testing.T) {
	sw := &streamWrapper{}
	var out string
	out += sw.reasoning("stuck thinking")
	out += sw.end()

	require.Equal(t, "<think>\nstuck thinking\n</think>", out)
}

func TestStreamWrapperEmptyStreamEmitsNothing(t *testing.T) {
	sw := &streamWrapper{}
	require.Equal(t, "", sw.end())
}
