// Package prompts renders the LLM prompt templates. The templates ship
// embedded in the binary; a directory of <name>.tmpl files can override any
// of them at load time.
package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"
)

const (
	DetermineUserIntent       = "determine_user_intent"
	RespondToUser             = "respond_to_user"
	DesignPlanning            = "design_planning_prompt"
	AfterPlanningGenerateHTML = "after_planning_generate_html"
	ReactSystem               = "react_system"
	ClonePage                 = "clone_page"
)

var ErrNotFound = errors.New("prompt not found")

//go:embed templates/*.tmpl
var builtinTemplates embed.FS

// Vars is the data passed to every template; each template uses a subset.
type Vars struct {
	UserMessage         string
	ExistingHTMLContent string
	DesignPlan          string
	CSSPath             string
	JSPath              string
	URL                 string
	TrimmedHTML         string
	ImageSources        []string
}

type Library struct {
	templates map[string]*template.Template
}

func Load(overrideDir string) (*Library, error) {
	lib := &Library{templates: map[string]*template.Template{}}
	entries, err := fs.ReadDir(builtinTemplates, "templates")
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		content, err := builtinTemplates.ReadFile("templates/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read builtin %s: %w", entry.Name(), err)
		}
		if err := lib.add(strings.TrimSuffix(entry.Name(), ".tmpl"), string(content)); err != nil {
			return nil, err
		}
	}

	if strings.TrimSpace(overrideDir) == "" {
		return lib, nil
	}
	overrides, err := filepath.Glob(filepath.Join(overrideDir, "*.tmpl"))
	if err != nil {
		return nil, err
	}
	for _, path := range overrides {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read override %s: %w", path, err)
		}
		if err := lib.add(strings.TrimSuffix(filepath.Base(path), ".tmpl"), string(content)); err != nil {
			return nil, err
		}
	}
	return lib, nil
}

// MustLoad returns the embedded templates only.
func MustLoad() *Library {
	lib, err := Load("")
	if err != nil {
		panic(err)
	}
	return lib
}

func (l *Library) add(name, content string) error {
	tmpl, err := template.New(name).Option("missingkey=zero").Parse(content)
	if err != nil {
		return fmt.Errorf("parse prompt %s: %w", name, err)
	}
	l.templates[name] = tmpl
	return nil
}

func (l *Library) Render(name string, vars Vars) (string, error) {
	tmpl, ok := l.templates[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("render prompt %s: %w", name, err)
	}
	return buf.String(), nil
}

func (l *Library) Names() []string {
	names := make([]string, 0, len(l.templates))
	for name := range l.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
