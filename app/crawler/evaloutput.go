package crawler

import (
	"encoding/json"
	"regexp"
	"strings"
)

type evalLink struct {
	URL   string
	Title string
}

var jsonArraySpan = regexp.MustCompile(`(?s)\[.*\]`)

// evalStrategies locate the JSON value in the tool's eval output. They are
// tried in order; the first one that decodes wins.
var evalStrategies = []func(output string) (any, bool){
	wholeOutput,
	embeddedJSONLine,
	firstArraySpan,
}

// parseEvalOutput extracts post links from eval output that may be a bare
// array, an envelope such as {"data":{"result":[...]}} or {"data":[...]}, or
// JSON mixed with log lines.
func parseEvalOutput(output string) []evalLink {
	output = strings.TrimSpace(output)
	if output == "" {
		return nil
	}

	for _, strategy := range evalStrategies {
		if value, ok := strategy(output); ok {
			return linksFromValue(value)
		}
	}
	return nil
}

func wholeOutput(output string) (any, bool) {
	return decodeJSON(output)
}

func embeddedJSONLine(output string) (any, bool) {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "{") && !strings.HasPrefix(line, "[") {
			continue
		}
		if !strings.Contains(line, "url") && !strings.Contains(line, "title") {
			continue
		}
		if value, ok := decodeJSON(line); ok {
			return value, true
		}
	}
	return nil, false
}

func firstArraySpan(output string) (any, bool) {
	span := jsonArraySpan.FindString(output)
	if span == "" {
		return nil, false
	}
	return decodeJSON(span)
}

func decodeJSON(s string) (any, bool) {
	var value any
	if err := json.Unmarshal([]byte(s), &value); err != nil {
		return nil, false
	}
	return value, true
}

func linksFromValue(value any) []evalLink {
	switch v := value.(type) {
	case []any:
		return linksFromList(v)
	case map[string]any:
		switch data := v["data"].(type) {
		case []any:
			return linksFromList(data)
		case map[string]any:
			if result, ok := data["result"].([]any); ok {
				return linksFromList(result)
			}
		}
	}
	return nil
}

func linksFromList(items []any) []evalLink {
	var links []evalLink
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		u, _ := obj["url"].(string)
		if u == "" {
			continue
		}
		title, _ := obj["title"].(string)
		links = append(links, evalLink{URL: u, Title: title})
	}
	return links
}
