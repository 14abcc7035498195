// Package domain holds the request envelope, its context record and the
// error taxonomy shared by every stage of the brief pipeline.
package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// RequestType discriminates the kind of brief a client asks for.
type RequestType string

const (
	TypePages              RequestType = "pages"
	TypeContent            RequestType = "content"
	TypeSEO                RequestType = "seo"
	TypeSectorSuggestions  RequestType = "sector_suggestions"
	TypeKeywordSuggestions RequestType = "keyword_suggestions"
)

// RequestTypes lists every recognized request type. Validator, prompt and
// normalizer tests iterate it so a new type cannot be added without every
// stage handling it.
func RequestTypes() []RequestType {
	return []RequestType{
		TypePages,
		TypeContent,
		TypeSEO,
		TypeSectorSuggestions,
		TypeKeywordSuggestions,
	}
}

// ParseRequestType returns the RequestType named by s.
func ParseRequestType(s string) (RequestType, bool) {
	for _, t := range RequestTypes() {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

func (t RequestType) String() string {
	return string(t)
}

// Context is the free-form record a client sends alongside the type.
// Values are strings or lists of strings once decoded from JSON.
type Context map[string]any

// String returns the textual value stored under key, or "" when the key is
// absent, null or false. Lists are joined with ", ".
func (c Context) String(key string) string {
	switch v := c[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		if !v {
			return ""
		}
		return "true"
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	case []string:
		return strings.Join(v, ", ")
	case []any:
		return strings.Join(c.Strings(key), ", ")
	default:
		return fmt.Sprint(v)
	}
}

// Strings returns the list stored under key. A non-list value yields nil.
func (c Context) Strings(key string) []string {
	switch v := c[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			switch s := item.(type) {
			case string:
				out = append(out, s)
			case nil:
			default:
				out = append(out, fmt.Sprint(s))
			}
		}
		return out
	default:
		return nil
	}
}

// IsList reports whether key holds a JSON array.
func (c Context) IsList(key string) bool {
	switch c[key].(type) {
	case []string, []any:
		return true
	}
	return false
}

// Envelope is the inbound request after JSON decoding. Context is nil when
// the client omitted it or sent something other than an object.
type Envelope struct {
	Type    string
	Context Context
}
