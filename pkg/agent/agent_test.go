package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstruction_NoHandoffs(t *testing.T) {
	t.Parallel()

	a := New("faq", "Answer questions.")
	assert.Equal(t, "Answer questions.", a.Instruction())
}

func TestInstruction_WithHandoffs(t *testing.T) {
	t.Parallel()

	faq := New("faq", "Answer questions.")
	root := New("root", "Triage the request.", WithHandoffs(faq))

	instruction := root.Instruction()
	assert.Contains(t, instruction, "# System context")
	assert.Contains(t, instruction, "Triage the request.")

	require.Len(t, root.Handoffs(), 1)
	assert.Equal(t, "faq", root.Handoffs()[0].Name())
}

func TestToolSlug(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "account_management_agent", ToolSlug("Account Management Agent"))
	assert.Equal(t, "faq", ToolSlug(" FAQ "))
}
