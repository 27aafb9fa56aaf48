package tools

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/vishalm/LlamaBot/internal/browser"
	"github.com/vishalm/LlamaBot/internal/llm"
	"github.com/vishalm/LlamaBot/internal/prompts"
)

type CloneConfig struct {
	Capturer      browser.Capturer
	Vision        llm.Provider
	VisionModel   string
	Pages         Pages
	Prompts       *prompts.Library
	ScreenshotDir string
	Logger        *zap.Logger
}

type CloneTool struct {
	cfg CloneConfig
}

func NewCloneTool(cfg CloneConfig) *CloneTool {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &CloneTool{cfg: cfg}
}

func (t *CloneTool) Name() string { return "clone_page" }

func (t *CloneTool) Description() string {
	return "Capture a live web page and recreate it as the current page."
}

func (t *CloneTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"url":{"type":"string","description":"Absolute URL of the page to clone.","pattern":"^https?://"}},"required":["url"],"additionalProperties":false}`)
}

func (t *CloneTool) Invoke(ctx context.Context, args json.RawMessage) (string, error) {
	url, err := stringArg(args, "url")
	if err != nil {
		return "", err
	}

	capture, err := t.cfg.Capturer.Capture(ctx, url)
	if err != nil {
		return "", fmt.Errorf("capture %s: %w", url, err)
	}
	if t.cfg.ScreenshotDir != "" {
		path, err := t.saveScreenshot(capture.Screenshot)
		if err != nil {
			return "", err
		}
		t.cfg.Logger.Info("screenshot saved", zap.String("url", url), zap.String("path", path))
	}

	prompt, err := t.cfg.Prompts.Render(prompts.ClonePage, prompts.Vars{
		URL:          url,
		TrimmedHTML:  capture.HTML,
		ImageSources: capture.ImageSources,
	})
	if err != nil {
		return "", err
	}
	reply, err := t.cfg.Vision.Chat(ctx, llm.Request{
		Model: t.cfg.VisionModel,
		Messages: []llm.Message{{
			Role:    llm.RoleUser,
			Content: prompt,
			Images:  []string{"data:image/png;base64," + base64.StdEncoding.EncodeToString(capture.Screenshot)},
		}},
	}, nil)
	if err != nil {
		return "", err
	}
	doc := stripCodeFence(reply.Content)
	if doc == "" {
		return "", errors.New("vision model returned no HTML")
	}
	if err := t.cfg.Pages.WriteHTML(doc); err != nil {
		return "", err
	}
	return fmt.Sprintf("Cloned %s into %s (%d images referenced)", url, filepath.Base(t.cfg.Pages.Paths().HTML), len(capture.ImageSources)), nil
}

func (t *CloneTool) saveScreenshot(png []byte) (string, error) {
	if err := os.MkdirAll(t.cfg.ScreenshotDir, 0o755); err != nil {
		return "", fmt.Errorf("create screenshot dir: %w", err)
	}
	path := filepath.Join(t.cfg.ScreenshotDir, "clone-"+strings.ToLower(ulid.Make().String())+".png")
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return "", fmt.Errorf("write screenshot: %w", err)
	}
	return path, nil
}

// isFenceLanguage reports whether tag looks like a code fence info string.
func isFenceLanguage(tag string) bool {
	if tag == "" {
		return true
	}
	for _, r := range tag {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !strings.ContainsRune("+-_.#", r) {
			return false
		}
	}
	return true
}

// stripCodeFence removes a surrounding markdown code fence, if any.
func stripCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	newline := strings.IndexByte(trimmed, '\n')
	if newline < 0 {
		// Opening and closing fence on one line.
		body := strings.TrimSpace(strings.TrimSuffix(trimmed, "```"))
		if isFenceLanguage(body) {
			return ""
		}
		return body
	}
	trimmed = trimmed[newline+1:]
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
