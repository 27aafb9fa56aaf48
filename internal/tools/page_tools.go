package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/vishalm/LlamaBot/internal/page"
)

// Pages is the artifact store the page tools write through.
type Pages interface {
	Paths() page.Paths
	WriteHTML(content string) error
	WriteCSS(content string) error
	WriteJS(content string) error
	NumberedHTML() (string, error)
}

// PageTools returns write_html, write_css, write_javascript and read_page.
func PageTools(pages Pages) []Tool {
	paths := pages.Paths()
	return []Tool{
		funcTool{
			name:        "write_html",
			description: "Write HTML code to a file.",
			schema:      stringArgSchema("html_code", "The complete HTML document."),
			fn: func(_ context.Context, args json.RawMessage) (string, error) {
				code, err := stringArg(args, "html_code")
				if err != nil {
					return "", err
				}
				if err := pages.WriteHTML(code); err != nil {
					return "", err
				}
				return fmt.Sprintf("HTML code written to %s", filepath.Base(paths.HTML)), nil
			},
		},
		funcTool{
			name:        "write_css",
			description: "Write CSS code to a file.",
			schema:      stringArgSchema("css_code", "The stylesheet contents."),
			fn: func(_ context.Context, args json.RawMessage) (string, error) {
				code, err := stringArg(args, "css_code")
				if err != nil {
					return "", err
				}
				if err := pages.WriteCSS(code); err != nil {
					return "", err
				}
				return fmt.Sprintf("CSS code written to %s", filepath.Base(paths.CSS)), nil
			},
		},
		funcTool{
			name:        "write_javascript",
			description: "Write JavaScript code to a file.",
			schema:      stringArgSchema("javascript_code", "The script contents."),
			fn: func(_ context.Context, args json.RawMessage) (string, error) {
				code, err := stringArg(args, "javascript_code")
				if err != nil {
					return "", err
				}
				if err := pages.WriteJS(code); err != nil {
					return "", err
				}
				return fmt.Sprintf("JavaScript code written to %s", filepath.Base(paths.JS)), nil
			},
		},
		funcTool{
			name:        "read_page",
			description: "Read the current page HTML with line numbers.",
			schema:      json.RawMessage(`{"type":"object","properties":{},"additionalProperties":false}`),
			fn: func(context.Context, json.RawMessage) (string, error) {
				numbered, err := pages.NumberedHTML()
				if err != nil {
					return "", err
				}
				if numbered == "" {
					return "(page is empty)", nil
				}
				return numbered, nil
			},
		},
	}
}
