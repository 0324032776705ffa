package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/jobtrail/core/internal/modules/provider"
	"github.com/jobtrail/core/internal/modules/settings"
	"github.com/jobtrail/core/internal/pkg/aierr"
)

// splitChunks breaks text into pieces of at most budget runes, cutting on
// paragraph boundaries where one exists inside the budget, otherwise on a
// line boundary, otherwise hard. Chunk order follows document order.
func splitChunks(text string, budget int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	runes := []rune(text)
	if len(runes) <= budget {
		return []string{text}
	}

	var chunks []string
	for len(runes) > 0 {
		if len(runes) <= budget {
			chunks = append(chunks, strings.TrimSpace(string(runes)))
			break
		}
		window := string(runes[:budget])
		cut := runeOffset(window, strings.LastIndex(window, "\n\n"))
		if cut < budget/2 {
			if nl := runeOffset(window, strings.LastIndex(window, "\n")); nl >= budget/2 {
				cut = nl
			} else {
				cut = budget
			}
		}
		piece := strings.TrimSpace(string(runes[:cut]))
		if piece != "" {
			chunks = append(chunks, piece)
		}
		runes = runes[cut:]
		for len(runes) > 0 && unicode.IsSpace(runes[0]) {
			runes = runes[1:]
		}
	}
	return chunks
}

// runeOffset converts a byte index from the strings package into a rune
// index in s. Negative indexes (no match) pass through unchanged.
func runeOffset(s string, byteIdx int) int {
	if byteIdx < 0 {
		return byteIdx
	}
	return utf8.RuneCountInString(s[:byteIdx])
}

// chunkResult records one chunk's outcome. Index is 1-based so error
// messages and the failed_chunks list read naturally.
type chunkResult struct {
	Index   int
	Payload json.RawMessage
	Err     error
}

// invokeChunks runs every chunk through the adapter sequentially. A chunk
// failure is recorded and the remaining chunks still run.
func (o *Orchestrator) invokeChunks(ctx context.Context, adapter provider.Adapter, cfg settings.AiSettings, purpose Purpose, chunks []string, opts Options) []chunkResult {
	results := make([]chunkResult, 0, len(chunks))
	for i, chunk := range chunks {
		payload, err := o.invokeParsed(ctx, adapter, cfg, buildRequest(purpose, chunk, opts))
		results = append(results, chunkResult{Index: i + 1, Payload: payload, Err: err})
		if err != nil {
			o.log.Warn("chunk invocation failed",
				zap.String("purpose", string(purpose)), zap.Int("chunk", i+1), zap.Error(err))
		}
	}
	return results
}

// mergeChunks combines per-chunk JSON objects into one. Array fields take
// the union across chunks with near-duplicate suppression; scalar fields
// keep the first non-empty value. Summary-style purposes keep only the first
// successful chunk's object. Returns the merged payload and the 1-based
// indexes of failed chunks.
func mergeChunks(purpose Purpose, results []chunkResult) (json.RawMessage, []int, error) {
	var failed []int
	var succeeded []chunkResult
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, r.Index)
		} else {
			succeeded = append(succeeded, r)
		}
	}

	if len(succeeded) == 0 {
		first := results[0]
		return nil, failed, aierr.Wrap(aierr.KindTotal,
			fmt.Sprintf("all %d chunks failed, first failure at chunk %d", len(results), first.Index),
			first.Err)
	}

	if purpose.summaryStyle() {
		return succeeded[0].Payload, failed, nil
	}

	merged := map[string]json.RawMessage{}
	seen := map[string]map[string]bool{}
	for _, r := range succeeded {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(r.Payload, &obj); err != nil {
			continue
		}
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			v := obj[k]
			var arr []json.RawMessage
			if json.Unmarshal(v, &arr) == nil && len(v) > 0 && v[0] == '[' {
				if _, ok := merged[k]; !ok {
					merged[k] = json.RawMessage("[]")
				}
				if seen[k] == nil {
					seen[k] = map[string]bool{}
				}
				merged[k] = appendUnique(merged[k], arr, seen[k])
				continue
			}
			if prev, ok := merged[k]; ok && !emptyScalar(prev) {
				continue
			}
			merged[k] = v
		}
	}

	payload, err := json.Marshal(merged)
	if err != nil {
		return nil, failed, aierr.Wrap(aierr.KindTotal, "merge chunk outputs", err)
	}
	return payload, failed, nil
}

// appendUnique extends a merged JSON array with items whose normalized form
// has not been seen yet.
func appendUnique(current json.RawMessage, items []json.RawMessage, seen map[string]bool) json.RawMessage {
	var arr []json.RawMessage
	_ = json.Unmarshal(current, &arr)
	for _, item := range items {
		key := dedupKey(item)
		if seen[key] {
			continue
		}
		seen[key] = true
		arr = append(arr, item)
	}
	out, _ := json.Marshal(arr)
	return out
}

// dedupKey normalizes an array item for near-duplicate comparison: strings
// compare case-insensitively with punctuation and whitespace runs collapsed,
// objects compare on their normalized string fields.
func dedupKey(item json.RawMessage) string {
	var s string
	if json.Unmarshal(item, &s) == nil {
		return normalizeItem(s)
	}
	var obj map[string]interface{}
	if json.Unmarshal(item, &obj) == nil {
		keys := make([]string, 0, len(obj))
		for k := range obj {
			if str, ok := obj[k].(string); ok && strings.TrimSpace(str) != "" {
				keys = append(keys, k+"="+normalizeItem(str))
			}
		}
		sort.Strings(keys)
		return strings.Join(keys, ";")
	}
	return string(item)
}

func normalizeItem(s string) string {
	var b strings.Builder
	lastSpace := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case !lastSpace:
			b.WriteRune(' ')
			lastSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}

func emptyScalar(v json.RawMessage) bool {
	s := strings.TrimSpace(string(v))
	return s == `""` || s == "null" || s == "0" || s == "[]" || s == "{}"
}
