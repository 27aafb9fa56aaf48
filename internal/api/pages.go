package api

import (
	_ "embed"
	"html/template"
	"net/http"
	"os"
)

const pageNotFoundHTML = "<html><body><h1>Page not found</h1></body></html>"

//go:embed static/home.html.tmpl
var homeFallbackSource string

//go:embed static/chat.html
var chatFallbackHTML string

var homeFallback = template.Must(template.New("home").Parse(homeFallbackSource))

func (s *Server) home(w http.ResponseWriter, r *http.Request) {
	if serveHTMLFile(w, s.cfg.HomeHTMLPath) {
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	baseURL := s.cfg.LLMBaseURL
	if s.models != nil {
		baseURL = s.models.BaseURL()
	}
	_ = homeFallback.Execute(w, map[string]string{
		"Model":   s.cfg.LLMModel,
		"BaseURL": baseURL,
	})
}

func (s *Server) chatPage(w http.ResponseWriter, r *http.Request) {
	if serveHTMLFile(w, s.cfg.ChatHTMLPath) {
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(chatFallbackHTML))
}

func (s *Server) page(w http.ResponseWriter, r *http.Request) {
	if serveHTMLFile(w, s.cfg.PageHTMLPath) {
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(pageNotFoundHTML))
}

func (s *Server) conversations(w http.ResponseWriter, r *http.Request) {
	if serveHTMLFile(w, s.cfg.ConversationsHTMLPath) {
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(pageNotFoundHTML))
}

// serveHTMLFile reports false when the file cannot be read.
func serveHTMLFile(w http.ResponseWriter, path string) bool {
	if path == "" {
		return false
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(content)
	return true
}
