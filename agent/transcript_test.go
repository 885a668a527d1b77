package agent_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/therealnoof/mcp-server-lab/agent"
	"github.com/therealnoof/mcp-server-lab/pkg/llms"
)

func Test_Transcript_AppendOnly(t *testing.T) {
	tr := agent.NewTranscript(
		llms.MessageFromTextParts(llms.RoleSystem, "prompt"),
	)
	require.Equal(t, 1, tr.Len())

	tr.Append(llms.MessageFromTextParts(llms.RoleHuman, "question"))
	before := tr.Messages()

	tr.Append(llms.MessageFromTextParts(llms.RoleAI, "answer"))
	after := tr.Messages()

	// Earlier messages are a stable prefix of later snapshots.
	require.Len(t, after, 3)
	assert.Equal(t, before, after[:2])
}

func Test_Transcript_SnapshotIsCopy(t *testing.T) {
	tr := agent.NewTranscript()
	tr.Append(llms.MessageFromTextParts(llms.RoleHuman, "one"))

	snapshot := tr.Messages()
	snapshot[0] = llms.MessageFromTextParts(llms.RoleHuman, "mutated")

	fresh := tr.Messages()
	text := fresh[0].Parts[0].(llms.TextContent)
	assert.Equal(t, "one", text.Text)
}

func Test_Transcript_ConcurrentAppend(t *testing.T) {
	tr := agent.NewTranscript()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			tr.Append(llms.MessageFromTextParts(llms.RoleTool, fmt.Sprintf("result %d", n)))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, tr.Len())
}
