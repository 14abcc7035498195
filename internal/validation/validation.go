// Package validation checks brief envelopes before any prompt is built.
package validation

import (
	"github.com/biladesigns/brief-gateway/internal/domain"
)

// Validate returns a *domain.ValidationError describing the first problem
// found in env, or nil. It has no side effects.
func Validate(env domain.Envelope) error {
	t, ok := domain.ParseRequestType(env.Type)
	if !ok {
		return domain.ErrInvalidType()
	}
	if env.Context == nil {
		return domain.ErrMissingContext()
	}

	switch t {
	case domain.TypeSectorSuggestions:
		return requireStrings(t, env.Context, "sector")
	case domain.TypePages:
		return requireStrings(t, env.Context, "sector", "target")
	case domain.TypeContent:
		return requireStrings(t, env.Context, "page", "business", "sector")
	case domain.TypeSEO:
		if !env.Context.IsList("keywords") || len(env.Context.Strings("keywords")) == 0 {
			return domain.ErrMissingField(t, "keywords")
		}
		return nil
	case domain.TypeKeywordSuggestions:
		return requireStrings(t, env.Context, "description")
	default:
		return domain.ErrInvalidType()
	}
}

// requireStrings fails when any listed field is absent or empty. The error
// names the whole set the client has to send.
func requireStrings(t domain.RequestType, ctx domain.Context, fields ...string) error {
	for _, f := range fields {
		if ctx.String(f) == "" {
			return domain.ErrMissingField(t, fields...)
		}
	}
	return nil
}
