package mcp

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/jmespath/go-jmespath"
)

// minContextChars bounds the excerpt around each regex match.
const minContextChars = 100

// FilterResult is a reduced response body and a description of the reduction
type FilterResult struct {
	Content string         `json:"content"`
	Meta    map[string]any `json:"_meta"`
}

// estimateTokens approximates token count using chars/4
func estimateTokens(data string) int {
	return len(data) / 4
}

func sizeMeta(filter map[string]any, result, source string) map[string]any {
	return map[string]any{
		"filter": filter,
		"tokens": map[string]any{
			"returned": estimateTokens(result),
			"source":   estimateTokens(source),
		},
		"bytes": map[string]any{
			"returned": len(result),
			"source":   len(source),
		},
	}
}

type window struct {
	start, end int
}

// filterRegex returns every match of pattern in body with surrounding
// context. contextLines is scaled by ~80 characters per line; overlapping
// windows are merged.
func filterRegex(body, pattern string, contextLines int) (*FilterResult, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex pattern: %w", err)
	}

	contextChars := max(contextLines*80, minContextChars)
	matches := re.FindAllStringIndex(body, -1)
	filter := map[string]any{
		"type":          "regex",
		"pattern":       pattern,
		"total_matches": len(matches),
	}
	if len(matches) == 0 {
		return &FilterResult{Meta: sizeMeta(filter, "", body)}, nil
	}

	var merged []window
	for _, m := range matches {
		w := window{start: max(0, m[0]-contextChars), end: min(len(body), m[1]+contextChars)}
		if n := len(merged); n > 0 && w.start <= merged[n-1].end {
			merged[n-1].end = max(merged[n-1].end, w.end)
			continue
		}
		merged = append(merged, w)
	}

	blocks := make([]string, 0, len(merged))
	for i, w := range merged {
		excerpt := body[w.start:w.end]
		if w.start > 0 {
			excerpt = "..." + excerpt
		}
		if w.end < len(body) {
			excerpt += "..."
		}
		blocks = append(blocks, fmt.Sprintf("=== Context Window %d (bytes %d-%d) ===\n%s", i+1, w.start, w.end, excerpt))
	}

	content := strings.Join(blocks, "\n\n")
	filter["merged_windows"] = len(merged)
	return &FilterResult{Content: content, Meta: sizeMeta(filter, content, body)}, nil
}

// filterJMESPath applies a JMESPath expression to a JSON body
func filterJMESPath(body, expression string) (*FilterResult, error) {
	var data any
	if err := json.Unmarshal([]byte(body), &data); err != nil {
		return nil, fmt.Errorf("invalid JSON response: %w", err)
	}

	result, err := jmespath.Search(expression, data)
	if err != nil {
		return nil, fmt.Errorf("invalid jmespath expression: %w", err)
	}

	filtered, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal filtered result: %w", err)
	}

	count := 0
	if arr, ok := result.([]any); ok {
		count = len(arr)
	} else if result != nil {
		count = 1
	}

	content := string(filtered)
	filter := map[string]any{
		"type":         "jmespath",
		"expression":   expression,
		"result_count": count,
	}
	return &FilterResult{Content: content, Meta: sizeMeta(filter, content, body)}, nil
}
