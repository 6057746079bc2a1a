package render

import (
	"fmt"
	"strings"
	"text/template"
)

// Renderer renders a template against a data model.
type Renderer interface {
	Render(tmpl string, data map[string]any) (string, error)
}

// TextTemplate is the text/template based Renderer. The zero value is ready to use.
type TextTemplate struct{}

// NewTextTemplate returns a TextTemplate renderer.
func NewTextTemplate() *TextTemplate {
	return &TextTemplate{}
}

var funcs = template.FuncMap{
	"join":  join,
	"upper": strings.ToUpper,
	"lower": strings.ToLower,
	"default": func(def, v any) any {
		if v == nil {
			return def
		}
		if s, ok := v.(string); ok && s == "" {
			return def
		}
		return v
	},
}

// Render parses tmpl and executes it against data.
func (TextTemplate) Render(tmpl string, data map[string]any) (string, error) {
	t, err := template.New("message").
		Option("missingkey=error").
		Funcs(funcs).
		Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("render: parse template: %w", err)
	}

	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render: execute template: %w", err)
	}
	return b.String(), nil
}

// join concatenates the string form of each element of a list.
func join(sep string, v any) string {
	switch list := v.(type) {
	case []string:
		return strings.Join(list, sep)
	case []any:
		parts := make([]string, 0, len(list))
		for _, e := range list {
			parts = append(parts, fmt.Sprint(e))
		}
		return strings.Join(parts, sep)
	default:
		return fmt.Sprint(v)
	}
}
