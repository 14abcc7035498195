package domain

import (
	"errors"
	"io"
	"testing"
)

func TestValidationError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *ValidationError
		expected string
	}{
		{
			name:     "invalid type",
			err:      ErrInvalidType(),
			expected: "invalid type",
		},
		{
			name:     "missing context",
			err:      ErrMissingContext(),
			expected: "context is required",
		},
		{
			name:     "single missing field",
			err:      ErrMissingField(TypeSectorSuggestions, "sector"),
			expected: "sector is required for sector_suggestions",
		},
		{
			name:     "two missing fields",
			err:      ErrMissingField(TypePages, "sector", "target"),
			expected: "sector and target are required for pages",
		},
		{
			name:     "three missing fields",
			err:      ErrMissingField(TypeContent, "page", "business", "sector"),
			expected: "page, business and sector are required for content",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestUpstreamError(t *testing.T) {
	t.Run("http status", func(t *testing.T) {
		err := &UpstreamError{StatusCode: 401, Body: `{"error":"nope"}`}
		if err.IsTransport() {
			t.Error("IsTransport() = true for an HTTP failure")
		}
		if got, want := err.Error(), `upstream status 401: {"error":"nope"}`; got != want {
			t.Errorf("Error() = %q, want %q", got, want)
		}
	})

	t.Run("transport failure unwraps cause", func(t *testing.T) {
		err := &UpstreamError{Err: io.ErrUnexpectedEOF}
		if !err.IsTransport() {
			t.Error("IsTransport() = false for a transport failure")
		}
		if !errors.Is(err, io.ErrUnexpectedEOF) {
			t.Error("errors.Is did not reach the cause")
		}
	})

	t.Run("errors.As through wrapping", func(t *testing.T) {
		wrapped := errors.Join(errors.New("context"), &UpstreamError{StatusCode: 503})
		var upErr *UpstreamError
		if !errors.As(wrapped, &upErr) {
			t.Fatal("errors.As failed")
		}
		if upErr.StatusCode != 503 {
			t.Errorf("StatusCode = %d, want 503", upErr.StatusCode)
		}
	})
}

func TestParseRequestType(t *testing.T) {
	for _, rt := range RequestTypes() {
		got, ok := ParseRequestType(string(rt))
		if !ok || got != rt {
			t.Errorf("ParseRequestType(%q) = %q, %v", rt, got, ok)
		}
	}
	for _, bad := range []string{"", "PAGES", "blog", "seo "} {
		if _, ok := ParseRequestType(bad); ok {
			t.Errorf("ParseRequestType(%q) accepted an unknown type", bad)
		}
	}
}

func TestContext_String(t *testing.T) {
	ctx := Context{
		"sector":   "bakery",
		"empty":    "",
		"keywords": []any{"bread", "cake"},
		"count":    float64(3),
		"flag":     false,
		"nothing":  nil,
	}

	tests := []struct {
		key  string
		want string
	}{
		{"sector", "bakery"},
		{"empty", ""},
		{"keywords", "bread, cake"},
		{"count", "3"},
		{"flag", ""},
		{"nothing", ""},
		{"absent", ""},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := ctx.String(tt.key); got != tt.want {
				t.Errorf("String(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}

	if !ctx.IsList("keywords") || ctx.IsList("sector") {
		t.Error("IsList misclassified values")
	}
	if got := ctx.Strings("sector"); got != nil {
		t.Errorf("Strings on a scalar = %v, want nil", got)
	}
}
