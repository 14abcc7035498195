// Package normalize turns free-form model output into the structured payload
// returned to the browser. Normalization never fails: malformed output yields
// type-stable defaults.
package normalize

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/biladesigns/brief-gateway/internal/domain"
)

// maxFallbackLines caps the line-split fallback for page suggestions.
const maxFallbackLines = 5

var (
	objectSpan = regexp.MustCompile(`(?s)\{.*\}`)
	arraySpan  = regexp.MustCompile(`(?s)\[.*\]`)
)

// SectorSuggestions is the payload for sector_suggestions.
type SectorSuggestions struct {
	Pages    []string `json:"pages"`
	Keywords []string `json:"keywords"`
	Features []string `json:"features"`
	Tip      string   `json:"tip"`
}

// PageSuggestions is the payload for pages.
type PageSuggestions struct {
	Suggestions []string `json:"suggestions"`
}

// PageContent is the payload for content.
type PageContent struct {
	Content string `json:"content"`
}

// SEOStructure is the payload for seo.
type SEOStructure struct {
	H1              string   `json:"h1"`
	H2              []string `json:"h2"`
	MetaDescription string   `json:"metaDescription"`
}

// KeywordSuggestions is the payload for keyword_suggestions.
type KeywordSuggestions struct {
	Keywords []string `json:"keywords"`
}

// Normalize extracts the structured response for t from raw model output.
// The returned value is one of the payload types of this package.
func Normalize(t domain.RequestType, raw string) any {
	switch t {
	case domain.TypeSectorSuggestions:
		fields := extractObject(raw)
		return SectorSuggestions{
			Pages:    stringList(fields["pages"]),
			Keywords: stringList(fields["keywords"]),
			Features: stringList(fields["features"]),
			Tip:      stringField(fields["tip"]),
		}
	case domain.TypePages:
		return PageSuggestions{Suggestions: pageSuggestions(raw)}
	case domain.TypeContent:
		return PageContent{Content: strings.TrimSpace(raw)}
	case domain.TypeSEO:
		fields := extractObject(raw)
		if fields == nil {
			return SEOStructure{H1: raw, H2: []string{}}
		}
		return SEOStructure{
			H1:              stringField(fields["h1"]),
			H2:              stringList(fields["h2"]),
			MetaDescription: stringField(fields["metaDescription"]),
		}
	case domain.TypeKeywordSuggestions:
		fields := extractObject(raw)
		return KeywordSuggestions{Keywords: stringList(fields["keywords"])}
	default:
		// Unreachable after validation; keep the text rather than drop it.
		return PageContent{Content: strings.TrimSpace(raw)}
	}
}

// extractObject parses the first greedy {...} span of raw. It returns nil when
// there is no span or it is not a JSON object.
func extractObject(raw string) map[string]json.RawMessage {
	span := objectSpan.FindString(raw)
	if span == "" {
		return nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(span), &fields); err != nil {
		return nil
	}
	return fields
}

func pageSuggestions(raw string) []string {
	if span := arraySpan.FindString(raw); span != "" {
		var items []json.RawMessage
		if err := json.Unmarshal([]byte(span), &items); err == nil {
			out := make([]string, 0, len(items))
			for _, item := range items {
				out = append(out, elementText(item))
			}
			return out
		}
	}

	out := []string{}
	for _, line := range strings.Split(raw, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, line)
		if len(out) == maxFallbackLines {
			break
		}
	}
	return out
}

// stringField decodes a JSON string, or returns "" for anything else.
func stringField(msg json.RawMessage) string {
	var s string
	if len(msg) == 0 || json.Unmarshal(msg, &s) != nil {
		return ""
	}
	return s
}

// stringList decodes a JSON array into strings. Non-string elements are kept
// as their JSON text; a missing or non-array value yields an empty list.
func stringList(msg json.RawMessage) []string {
	var items []json.RawMessage
	if len(msg) == 0 || json.Unmarshal(msg, &items) != nil {
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, elementText(item))
	}
	return out
}

func elementText(item json.RawMessage) string {
	item = bytes.TrimSpace(item)
	var s string
	if len(item) > 0 && item[0] == '"' && json.Unmarshal(item, &s) == nil {
		return s
	}
	return string(item)
}
