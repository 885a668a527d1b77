package agent

import (
	"sync"

	"github.com/therealnoof/mcp-server-lab/pkg/llms"
)

// Transcript is the append-only conversation record of one investigation.
// Messages are never modified or removed once added, so the model always
// sees the full history of what it asked for and what came back.
type Transcript struct {
	mu       sync.RWMutex
	messages []llms.Message
}

// NewTranscript creates a transcript seeded with the given messages.
func NewTranscript(seed ...llms.Message) *Transcript {
	t := &Transcript{}
	t.messages = append(t.messages, seed...)
	return t
}

// Append adds messages to the end of the transcript.
func (t *Transcript) Append(msgs ...llms.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = append(t.messages, msgs...)
}

// Messages returns a copy of the transcript in order.
func (t *Transcript) Messages() []llms.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]llms.Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Len returns the number of messages.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}
