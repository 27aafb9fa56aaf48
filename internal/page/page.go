// Package page stores the generated page artifacts. There is one current
// version of each file; writes overwrite it in place.
package page

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

type Paths struct {
	HTML string
	CSS  string
	JS   string
}

type Store struct {
	paths Paths
}

func NewStore(paths Paths) *Store {
	return &Store{paths: paths}
}

func (s *Store) Paths() Paths {
	return s.paths
}

// ReadHTML returns the current page markup, or "" when no page exists yet.
func (s *Store) ReadHTML() (string, error) {
	return readOptional(s.paths.HTML)
}

func (s *Store) WriteHTML(content string) error {
	return writeFile(s.paths.HTML, content)
}

func (s *Store) WriteCSS(content string) error {
	return writeFile(s.paths.CSS, content)
}

func (s *Store) WriteJS(content string) error {
	return writeFile(s.paths.JS, content)
}

// NumberedHTML returns the page as numbered code, "" when it is missing.
func (s *Store) NumberedHTML() (string, error) {
	content, err := s.ReadHTML()
	if err != nil {
		return "", err
	}
	return NumberedLines(content), nil
}

// NumberedLines prefixes each line with its 1-based number, zero padded to
// five digits, and strips trailing whitespace.
func NumberedLines(content string) string {
	if content == "" {
		return ""
	}
	lines := strings.Split(content, "\n")
	if strings.HasSuffix(content, "\n") {
		lines = lines[:len(lines)-1]
	}
	numbered := make([]string, 0, len(lines))
	for i, line := range lines {
		numbered = append(numbered, fmt.Sprintf("%05d: %s", i+1, strings.TrimRight(line, " \t\r\v\f")))
	}
	return strings.Join(numbered, "\n")
}

func readOptional(path string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

func writeFile(path, content string) error {
	if path == "" {
		return errors.New("artifact path not configured")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
