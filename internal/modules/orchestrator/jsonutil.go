package orchestrator

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/jobtrail/core/internal/pkg/aierr"
)

// decodeModelJSON extracts the JSON object from a model reply. Models wrap
// output in code fences or prose despite instructions, so the raw text and
// the outermost {...} span are both attempted before giving up.
func decodeModelJSON(raw string) (json.RawMessage, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```JSON")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	if msg, ok := compactObject(cleaned); ok {
		return msg, nil
	}

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start >= 0 && end > start {
		if msg, ok := compactObject(cleaned[start : end+1]); ok {
			return msg, nil
		}
	}

	return nil, aierr.New(aierr.KindTotal, "model reply is not valid JSON")
}

func compactObject(s string) (json.RawMessage, bool) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &probe); err != nil {
		return nil, false
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(s)); err != nil {
		return nil, false
	}
	return json.RawMessage(buf.Bytes()), true
}

// truncateText cuts text to limit runes, preferring a line boundary near the
// end so a truncated document does not stop mid-word.
func truncateText(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	cut := string(runes[:limit])
	if idx := strings.LastIndex(cut, "\n"); idx > limit*3/4 {
		cut = cut[:idx]
	}
	return cut
}
