// Package store keeps conversation history across runs, keyed by the chat ID
// carried in the context.
package store

import (
	"context"

	"github.com/therealnoof/mcp-server-lab/pkg/llms"
)

// MessageStore persists chat messages for the chat ID found in the context.
type MessageStore interface {
	Messages(ctx context.Context) []llms.Message
	Add(ctx context.Context, msgs ...llms.Message) error
	Reset(ctx context.Context) error
}
