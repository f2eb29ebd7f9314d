package browser

import (
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
)

// StaticSession implements Session over plain HTTP using colly. It
// serves server-rendered sites where no JavaScript execution is
// needed; pagination happens by following link hrefs.
type StaticSession struct {
	collector *colly.Collector
}

// NewStaticSession creates a static-fetch session with the given user
// agent.
func NewStaticSession(userAgent string) *StaticSession {
	c := colly.NewCollector(
		colly.UserAgent(userAgent),
		colly.AllowURLRevisit(),
	)
	return &StaticSession{collector: c}
}

// Open fetches the URL and returns a page over the response document.
func (s *StaticSession) Open(rawURL string) (Page, error) {
	p := &staticPage{collector: s.collector}
	if err := p.Navigate(rawURL); err != nil {
		return nil, err
	}
	return p, nil
}

// Close releases the session. The underlying HTTP client holds no
// resources that outlive its requests.
func (s *StaticSession) Close() error {
	return nil
}

type staticPage struct {
	collector *colly.Collector
	url       string
	html      string
	doc       *goquery.Document
}

func (p *staticPage) Navigate(rawURL string) error {
	// Callbacks are per-navigation, so each fetch uses a fresh clone.
	c := p.collector.Clone()

	var body []byte
	c.OnResponse(func(r *colly.Response) {
		body = r.Body
	})
	c.OnError(func(r *colly.Response, err error) {
		log.Printf("Error fetching %s: %v\n", r.Request.URL, err)
	})

	if err := c.Visit(rawURL); err != nil {
		return fmt.Errorf("failed to fetch %s: %w", rawURL, err)
	}
	c.Wait()

	if len(body) == 0 {
		return fmt.Errorf("empty response from %s", rawURL)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return fmt.Errorf("failed to parse response from %s: %w", rawURL, err)
	}

	p.url = rawURL
	p.html = string(body)
	p.doc = doc
	return nil
}

func (p *staticPage) HTML() (string, error) {
	return p.html, nil
}

func (p *staticPage) Has(selector string) (bool, error) {
	return p.doc.Find(selector).Length() > 0, nil
}

// Click follows the href of the first matching element. Controls
// without an href cannot be activated without a script engine.
func (p *staticPage) Click(selector string) error {
	href, ok := p.doc.Find(selector).First().Attr("href")
	if !ok || href == "" {
		return fmt.Errorf("element %q has no href to follow", selector)
	}

	next, err := p.resolve(href)
	if err != nil {
		return err
	}
	return p.Navigate(next)
}

// WaitStable is a no-op: a fetched document never changes.
func (p *staticPage) WaitStable(timeout time.Duration) error {
	return nil
}

func (p *staticPage) resolve(href string) (string, error) {
	base, err := url.Parse(p.url)
	if err != nil {
		return "", fmt.Errorf("failed to parse page URL %s: %w", p.url, err)
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("failed to parse link %q: %w", href, err)
	}
	return base.ResolveReference(ref).String(), nil
}
