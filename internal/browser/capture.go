// Package browser captures live web pages with a headless Chromium and
// prepares their markup for an LLM.
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

type Capture struct {
	URL string
	// HTML is the trimmed document, see TrimHTML.
	HTML         string
	ImageSources []string
	// Screenshot is a full-page PNG.
	Screenshot []byte
}

type Capturer interface {
	Capture(ctx context.Context, url string) (Capture, error)
}

type RodConfig struct {
	Bin      string
	Headless bool
	Timeout  time.Duration
}

type RodCapturer struct {
	cfg    RodConfig
	launch func(RodConfig) (string, func(), error)
}

func NewRodCapturer(cfg RodConfig) *RodCapturer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &RodCapturer{cfg: cfg, launch: launchChromium}
}

func launchChromium(cfg RodConfig) (string, func(), error) {
	l := launcher.New().Headless(cfg.Headless)
	if cfg.Bin != "" {
		l = l.Bin(cfg.Bin)
	}
	controlURL, err := l.Launch()
	if err != nil {
		return "", func() {}, fmt.Errorf("launch chrome: %w", err)
	}
	return controlURL, func() {
		l.Kill()
		l.Cleanup()
	}, nil
}

// Capture loads url in a fresh browser, takes a full-page screenshot and
// collects the trimmed DOM and image sources.
func (c *RodCapturer) Capture(ctx context.Context, url string) (Capture, error) {
	controlURL, cleanup, err := c.launch(c.cfg)
	if err != nil {
		return Capture{}, err
	}
	defer cleanup()

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return Capture{}, fmt.Errorf("connect to chrome: %w", err)
	}
	defer browser.Close()

	page, err := browser.Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return Capture{}, fmt.Errorf("open %s: %w", url, err)
	}
	page = page.Timeout(c.cfg.Timeout)
	if err := page.WaitLoad(); err != nil {
		return Capture{}, fmt.Errorf("load %s: %w", url, err)
	}

	screenshot, err := page.Screenshot(true, nil)
	if err != nil {
		return Capture{}, fmt.Errorf("screenshot %s: %w", url, err)
	}
	raw, err := page.HTML()
	if err != nil {
		return Capture{}, fmt.Errorf("read dom %s: %w", url, err)
	}

	trimmed, err := TrimHTML(raw)
	if err != nil {
		return Capture{}, err
	}
	images, err := ImageSources(raw)
	if err != nil {
		return Capture{}, err
	}
	return Capture{
		URL:          url,
		HTML:         trimmed,
		ImageSources: images,
		Screenshot:   screenshot,
	}, nil
}
