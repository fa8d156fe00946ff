package summarizer

import (
	"encoding/json"
	"strings"
)

// Fallback payload messages.
const (
	parseFailedIntent  = "Unable to parse"
	parseFailedSummary = "Chat history collected but parsing failed"
	callFailedSummary  = "Failed to summarize chat history"
)

// StripFences removes a surrounding markdown code fence and a leading "json"
// language tag. Text after the closing fence is dropped.
func StripFences(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	content = strings.TrimPrefix(content, "```")
	if end := strings.Index(content, "```"); end >= 0 {
		content = content[:end]
	}
	content = strings.TrimPrefix(content, "json")
	return strings.TrimSpace(content)
}

// Parse decodes a model reply into a JSON object. ok is false when the reply
// is not a JSON object after fence stripping; the payload is then the parse
// fallback carrying the stripped text.
func Parse(reply string) (payload json.RawMessage, ok bool) {
	content := StripFences(reply)

	var obj map[string]any
	if err := json.Unmarshal([]byte(content), &obj); err != nil || obj == nil {
		return ParseFailure(content), false
	}
	out, err := json.Marshal(obj)
	if err != nil {
		return ParseFailure(content), false
	}
	return out, true
}

// ParseFailure is stored when the model answered with something other than JSON.
func ParseFailure(raw string) json.RawMessage {
	out, _ := json.Marshal(map[string]any{
		"intent":       parseFailedIntent,
		"summary":      parseFailedSummary,
		"raw_response": raw,
	})
	return out
}

// CallFailure is stored when the model could not be reached.
func CallFailure(err error) json.RawMessage {
	out, _ := json.Marshal(map[string]any{
		"error":   err.Error(),
		"summary": callFailedSummary,
	})
	return out
}
