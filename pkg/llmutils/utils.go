// Package llmutils provides helpers for shuttling data between LLM responses
// and tool invocations.
package llmutils

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/therealnoof/mcp-server-lab/pkg/llms"
	"gopkg.in/yaml.v3"
)

// CleanJSON returns JSON by trimming prefixes and postfixes,
// this is more useful than TrimBackticks,
// as LLM can reply like,
// `Here you go: {json}`
func CleanJSON(bs []byte) []byte {
	trimmedPrefix := trimPrefixBeforeJSON(bs)
	trimmedJSON := trimPostfixAfterJSON(trimmedPrefix)
	return trimmedJSON
}

// Removes any prefixes before the JSON (like "Sure, here you go:")
func trimPrefixBeforeJSON(bs []byte) []byte {
	startObject := bytes.IndexByte(bs, '{')
	startArray := bytes.IndexByte(bs, '[')

	var start int
	if startObject == -1 && startArray == -1 {
		return bs // No opening brace or bracket found, return the original string
	} else if startObject == -1 {
		start = startArray
	} else if startArray == -1 {
		start = startObject
	} else {
		start = min(startObject, startArray)
	}

	return bs[start:]
}

// Removes any postfixes after the JSON
func trimPostfixAfterJSON(bs []byte) []byte {
	endObject := bytes.LastIndexByte(bs, '}')
	endArray := bytes.LastIndexByte(bs, ']')

	var end int
	if endObject == -1 && endArray == -1 {
		return bs // No closing brace or bracket found, return the original string
	} else if endObject == -1 {
		end = endArray
	} else if endArray == -1 {
		end = endObject
	} else {
		end = max(endObject, endArray)
	}
	return bs[:end+1]
}

// DecodeArguments normalizes the raw tool-call arguments produced by a model
// into a structured map. The wire value may be a JSON-encoded string or an
// already-structured object; a malformed encoding yields an empty map rather
// than an error, so a bad tool call never aborts the turn.
func DecodeArguments(raw string) map[string]any {
	args := map[string]any{}
	if strings.TrimSpace(raw) == "" {
		return args
	}
	if err := json.Unmarshal(CleanJSON([]byte(raw)), &args); err != nil {
		return map[string]any{}
	}
	return args
}

func JSONIndent(body string) string {
	var buf bytes.Buffer
	_ = json.Indent(&buf, []byte(body), "", "\t")
	return buf.String()
}

func ToJSON(val any) string {
	js, _ := json.Marshal(val)
	return string(js)
}

func ToJSONIndent(val any) string {
	js, _ := json.MarshalIndent(val, "", "\t")
	return string(js)
}

func ToYAML(val any) string {
	js, _ := yaml.Marshal(val)
	return string(js)
}

func BackticksJSON(js string) string {
	return "\n```json\n" + strings.TrimSpace(js) + "\n```\n"
}

// PrintMessages is a debugging helper for the message transcript.
func PrintMessages(w io.Writer, msgs []llms.Message) {
	for _, mc := range msgs {
		fmt.Fprintf(w, "%s: ", strings.ToUpper(string(mc.Role)))
		for _, p := range mc.Parts {
			switch pp := p.(type) {
			case llms.TextContent:
				fmt.Fprintln(w, pp.Text)
			case llms.ToolCall:
				fmt.Fprintf(w, "ToolCall ID=%s, Type=%s, Func=%s(%s)\n", pp.ID, pp.Type, pp.FunctionCall.Name, pp.FunctionCall.Arguments)
			case llms.ToolCallResponse:
				fmt.Fprintf(w, "ToolCallResponse ID=%s, Name=%s, Content=%s\n", pp.ToolCallID, pp.Name, pp.Content)
			}
		}
	}
}

// CountMessagesContentSize counts the size of the content in the messages
func CountMessagesContentSize(msgs []llms.Message) uint64 {
	var size uint64
	for _, mc := range msgs {
		size += uint64(len(mc.Role))
		for _, p := range mc.Parts {
			switch pp := p.(type) {
			case llms.TextContent:
				size += uint64(len(pp.Text))
			case llms.ToolCall:
				size += uint64(len(pp.ID))
				size += uint64(len(pp.Type))
				if pp.FunctionCall != nil {
					size += uint64(len(pp.FunctionCall.Name))
					size += uint64(len(pp.FunctionCall.Arguments))
				}
			case llms.ToolCallResponse:
				size += uint64(len(pp.ToolCallID))
				size += uint64(len(pp.Name))
				size += uint64(len(pp.Content))
			}
		}
	}
	return size
}

// FindLastUserQuestion returns the text of the most recent human message.
func FindLastUserQuestion(messages []llms.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		msg := messages[i]
		if msg.Role == llms.RoleHuman {
			for _, part := range msg.Parts {
				if textPart, ok := part.(llms.TextContent); ok {
					return textPart.Text
				}
			}
		}
	}
	return ""
}

// EnsureEndsWithNewline ensures the message ends with a newline,
// it also removes any extra leading and trailing spaces.
func EnsureEndsWithNewline(s string) string {
	s = strings.TrimSpace(s)
	c := len(s)
	if c == 0 {
		return s
	}
	if s[c-1] != '\n' {
		return s + "\n"
	}
	return s
}
