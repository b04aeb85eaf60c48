// Package tmpl provides template rendering for generated scripts.
package tmpl

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
)

// jsQuote returns s as a JavaScript string literal. The result is safe to
// embed inside a <script> element.
func jsQuote(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	// HTML escaping keeps "</script>" from closing the element.
	enc.SetEscapeHTML(true)
	_ = enc.Encode(s)
	return strings.TrimSuffix(buf.String(), "\n")
}

// jsList returns ss as a JavaScript array literal of strings.
func jsList(ss []string) string {
	quoted := make([]string, len(ss))
	for i, s := range ss {
		quoted[i] = jsQuote(s)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

var funcs = template.FuncMap{
	"jsq":    jsQuote,
	"jslist": jsList,
}

// Render executes a Go template string with the given data.
// Returns an error if the template is invalid or references undefined keys.
//
// Available template functions:
//   - jsq: Quote a string as a JavaScript string literal
//   - jslist: Render a string slice as a JavaScript array literal
func Render(tmpl string, data any) (string, error) {
	t, err := template.New("").Funcs(funcs).Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute template: %w", err)
	}

	return buf.String(), nil
}
