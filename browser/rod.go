package browser

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// renderSettle gives client-side scripts time to populate the page
// after the load event fires.
const renderSettle = 3 * time.Second

// RodSession implements Session using rod (headless browser).
type RodSession struct {
	browser   *rod.Browser
	userAgent string
}

// NewRodSession launches a headless browser and connects to it. The
// user agent is applied to every page the session opens.
func NewRodSession(userAgent string) (*RodSession, error) {
	// Get user data directory from environment or use default
	// This should be mounted as a volume to use disk instead of memory
	userDataDir := os.Getenv("SCRAPER_DATA_DIR")
	if userDataDir == "" {
		userDataDir = "/tmp/dirscraper-data"
	}

	if err := os.MkdirAll(userDataDir, 0755); err != nil {
		log.Printf("Warning: Failed to create data directory %s: %v\n", userDataDir, err)
		userDataDir = "" // Fall back to default if we can't create it
	}

	l := launcher.New().
		Headless(true).
		Set("disable-blink-features", "AutomationControlled").
		NoSandbox(true).
		Leakless(false). // Disable leakless to avoid antivirus issues
		UserDataDir(userDataDir).
		// Flags for Linux/container compatibility
		Set("disable-dev-shm-usage").
		Set("disable-gpu").
		Set("no-first-run").
		Set("no-default-browser-check").
		Set("disable-extensions").
		Set("disable-background-networking").
		Set("disable-background-timer-throttling").
		Set("disable-renderer-backgrounding").
		Set("disable-backgrounding-occluded-windows").
		Set("disable-breakpad").
		Set("disable-default-apps").
		Set("disable-hang-monitor").
		Set("disable-popup-blocking").
		Set("disable-prompt-on-repost").
		Set("disable-sync").
		Set("metrics-recording-only").
		Set("mute-audio").
		Set("no-zygote").
		Set("memory-pressure-off").
		Set("disable-ipc-flooding-protection").
		Set("disable-features", "TranslateUI,BlinkGenPropertyTrees")

	// Prefer a system Chrome/Chromium over downloading one
	systemPaths := []string{
		"/usr/bin/google-chrome",
		"/usr/bin/google-chrome-stable",
		"/usr/bin/chromium",
		"/usr/bin/chromium-browser",
		"/snap/bin/chromium",
	}
	for _, path := range systemPaths {
		if _, err := os.Stat(path); err == nil {
			l = l.Bin(path)
			break
		}
	}

	browserURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	b := rod.New().ControlURL(browserURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	return &RodSession{
		browser:   b,
		userAgent: userAgent,
	}, nil
}

// Open creates a tab, applies the session user agent and navigates to
// the URL, waiting for the initial render.
func (s *RodSession) Open(url string) (Page, error) {
	page, err := s.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	if s.userAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: s.userAgent}); err != nil {
			page.Close()
			return nil, fmt.Errorf("failed to set user agent: %w", err)
		}
	}

	p := &rodPage{page: page}
	if err := p.Navigate(url); err != nil {
		page.Close()
		return nil, err
	}
	return p, nil
}

// Close closes the browser.
func (s *RodSession) Close() error {
	if s.browser != nil {
		return s.browser.Close()
	}
	return nil
}

type rodPage struct {
	page *rod.Page
}

func (p *rodPage) Navigate(url string) error {
	if err := p.page.Navigate(url); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	if err := p.page.WaitLoad(); err != nil {
		return fmt.Errorf("failed to load %s: %w", url, err)
	}
	time.Sleep(renderSettle) // Give JavaScript time to render
	return nil
}

func (p *rodPage) HTML() (string, error) {
	html, err := p.page.HTML()
	if err != nil {
		return "", fmt.Errorf("failed to get HTML: %w", err)
	}
	return html, nil
}

func (p *rodPage) Has(selector string) (bool, error) {
	ok, el, err := p.page.Has(selector)
	if err != nil {
		return false, fmt.Errorf("failed to query %q: %w", selector, err)
	}
	if !ok {
		return false, nil
	}
	// A present but hidden control is as good as absent.
	visible, err := el.Visible()
	if err != nil {
		return false, nil
	}
	return visible, nil
}

func (p *rodPage) Click(selector string) error {
	el, err := p.page.Timeout(5 * time.Second).Element(selector)
	if err != nil {
		return fmt.Errorf("no element matches %q: %w", selector, err)
	}
	el.ScrollIntoView()
	if err := el.Click("left", 1); err != nil {
		return fmt.Errorf("failed to click %q: %w", selector, err)
	}
	return nil
}

func (p *rodPage) WaitStable(timeout time.Duration) error {
	if err := p.page.WaitLoad(); err != nil {
		return fmt.Errorf("page load did not complete: %w", err)
	}
	if err := p.page.Timeout(timeout).WaitStable(500 * time.Millisecond); err != nil {
		return fmt.Errorf("page did not stabilize within %s: %w", timeout, err)
	}
	return nil
}
