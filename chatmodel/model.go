// Package chatmodel provides the shared chat session primitives: the chat
// context carried in context.Context and the errors shared between the agent
// and the tools.
package chatmodel

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
)

var (
	// ErrFailedUnmarshalInput is returned by a tool when the input does not
	// match the declared schema.
	ErrFailedUnmarshalInput = errors.New("failed to unmarshal input: check the schema and try again")
)

// ContentProvider is implemented by results that carry a textual content.
type ContentProvider interface {
	GetContent() string
}

type Stringer interface {
	String() string
}

func Stringify(s any) string {
	if v, ok := s.(Stringer); ok {
		return v.String()
	}
	if v, ok := s.(ContentProvider); ok {
		return v.GetContent()
	}
	bs, _ := json.Marshal(s)
	return string(bs)
}
