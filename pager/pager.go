package pager

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"directory-scraper/browser"

	"github.com/PuerkitoBio/goquery"
)

// DefaultStabilizeTimeout bounds how long Advance waits for a page to
// settle after turning.
const DefaultStabilizeTimeout = 15 * time.Second

// Pager decides whether a further page exists and performs the
// navigation. Markup for pagination controls varies between sites;
// everything page-turn related stays behind these two calls so the
// scraping loop is site-agnostic.
type Pager interface {
	// HasNext reports whether a usable next-page control exists. An
	// error means the page could no longer be queried, not that the
	// control is missing.
	HasNext(page browser.Page) (bool, error)
	// Advance turns to the next page and waits for it to stabilize.
	// An error is a graceful end-of-pagination signal for the caller,
	// logged distinctly from a clean "no next page" stop.
	Advance(page browser.Page) error
}

// NextButton pages by clicking a configured control. The control
// counts as absent when it is missing, hidden, or matches the disabled
// selector.
type NextButton struct {
	Selector         string
	DisabledSelector string
	StabilizeTimeout time.Duration
}

func (p *NextButton) HasNext(page browser.Page) (bool, error) {
	ok, err := page.Has(p.Selector)
	if err != nil {
		return false, fmt.Errorf("failed to probe next control %q: %w", p.Selector, err)
	}
	if !ok {
		return false, nil
	}
	if p.DisabledSelector != "" {
		disabled, err := page.Has(p.DisabledSelector)
		if err != nil {
			return false, fmt.Errorf("failed to probe disabled state %q: %w", p.DisabledSelector, err)
		}
		if disabled {
			return false, nil
		}
	}
	return true, nil
}

func (p *NextButton) Advance(page browser.Page) error {
	if err := page.Click(p.Selector); err != nil {
		return fmt.Errorf("failed to activate next control: %w", err)
	}
	if err := page.WaitStable(p.timeout()); err != nil {
		return fmt.Errorf("next page did not stabilize: %w", err)
	}
	return nil
}

func (p *NextButton) timeout() time.Duration {
	if p.StabilizeTimeout > 0 {
		return p.StabilizeTimeout
	}
	return DefaultStabilizeTimeout
}

// QueryParam pages by rewriting a ?page=N style query parameter. The
// total page count is discovered once from pagination links on the
// current page; when no numbered links exist the site has one page.
type QueryParam struct {
	BaseURL          string
	Param            string
	StabilizeTimeout time.Duration

	current int
	total   int
}

func (p *QueryParam) HasNext(page browser.Page) (bool, error) {
	if p.current == 0 {
		p.current = 1
	}
	if p.total == 0 {
		total, err := p.discoverTotal(page)
		if err != nil {
			return false, err
		}
		p.total = total
	}
	return p.current < p.total, nil
}

func (p *QueryParam) Advance(page browser.Page) error {
	next, err := p.pageURL(p.current + 1)
	if err != nil {
		return err
	}
	if err := page.Navigate(next); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", next, err)
	}
	if err := page.WaitStable(p.timeout()); err != nil {
		return fmt.Errorf("page %d did not stabilize: %w", p.current+1, err)
	}
	p.current++
	return nil
}

// discoverTotal scans anchors carrying the page parameter and returns
// the highest page number found.
func (p *QueryParam) discoverTotal(page browser.Page) (int, error) {
	html, err := page.HTML()
	if err != nil {
		return 0, fmt.Errorf("failed to read page content: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return 0, fmt.Errorf("failed to parse HTML: %w", err)
	}

	highest := 1
	doc.Find(fmt.Sprintf("a[href*='%s=']", p.Param)).Each(func(i int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		u, err := url.Parse(href)
		if err != nil {
			return
		}
		n, err := strconv.Atoi(u.Query().Get(p.Param))
		if err != nil {
			return
		}
		if n > highest {
			highest = n
		}
	})
	return highest, nil
}

func (p *QueryParam) pageURL(n int) (string, error) {
	u, err := url.Parse(p.BaseURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse base URL %s: %w", p.BaseURL, err)
	}
	q := u.Query()
	q.Set(p.Param, strconv.Itoa(n))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (p *QueryParam) timeout() time.Duration {
	if p.StabilizeTimeout > 0 {
		return p.StabilizeTimeout
	}
	return DefaultStabilizeTimeout
}
