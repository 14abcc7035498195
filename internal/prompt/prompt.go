// Package prompt renders the instruction sent upstream for each request type.
package prompt

import (
	"embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/biladesigns/brief-gateway/internal/domain"
)

// DefaultLanguage is the language answers are requested in.
const DefaultLanguage = "French"

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(
	template.New("prompts").
		Funcs(template.FuncMap{"join": strings.Join}).
		ParseFS(templateFS, "templates/*.tmpl"),
)

// view is the typed projection of a domain.Context that templates read.
// Templates never see the raw context, so a missing key renders as "".
type view struct {
	Sector      string
	Target      string
	Description string
	Page        string
	Business    string
	UserNotes   string
	PageNotes   string
	Keywords    []string
	Language    string
}

// Renderer turns a validated envelope into a prompt string.
type Renderer struct {
	language string
}

// NewRenderer creates a Renderer asking for answers in language. An empty
// language selects DefaultLanguage.
func NewRenderer(language string) *Renderer {
	if language == "" {
		language = DefaultLanguage
	}
	return &Renderer{language: language}
}

// Render returns the prompt for t filled from ctx. The only error is an
// unknown request type, which validation rejects earlier.
func (r *Renderer) Render(t domain.RequestType, ctx domain.Context) (string, error) {
	name, err := templateName(t)
	if err != nil {
		return "", err
	}

	v := view{
		Sector:      ctx.String("sector"),
		Target:      ctx.String("target"),
		Description: ctx.String("description"),
		Page:        ctx.String("page"),
		Business:    ctx.String("business"),
		UserNotes:   ctx.String("userNotes"),
		PageNotes:   ctx.String("pageNotes"),
		Keywords:    ctx.Strings("keywords"),
		Language:    r.language,
	}

	var b strings.Builder
	if err := templates.ExecuteTemplate(&b, name, v); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", t, err)
	}
	return strings.TrimSpace(b.String()), nil
}

func templateName(t domain.RequestType) (string, error) {
	switch t {
	case domain.TypeSectorSuggestions:
		return "sector_suggestions.tmpl", nil
	case domain.TypePages:
		return "pages.tmpl", nil
	case domain.TypeContent:
		return "content.tmpl", nil
	case domain.TypeSEO:
		return "seo.tmpl", nil
	case domain.TypeKeywordSuggestions:
		return "keyword_suggestions.tmpl", nil
	default:
		return "", fmt.Errorf("no prompt template for request type %q", t)
	}
}
