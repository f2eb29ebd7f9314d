package browser

import "time"

// Page is the capability surface a loaded page exposes to the scraping
// loop. Implementations wrap either a live browser tab or a fetched
// document; the loop itself is engine-agnostic.
type Page interface {
	// Navigate loads the given URL in this page.
	Navigate(url string) error
	// HTML returns the current document markup.
	HTML() (string, error)
	// Has reports whether at least one element matches the selector.
	Has(selector string) (bool, error)
	// Click activates the first element matching the selector.
	Click(selector string) error
	// WaitStable blocks until the page reaches a state where further
	// queries are reliable, or the timeout elapses.
	WaitStable(timeout time.Duration) error
}

// Session owns one browsing context and the pages it serves. Each
// scraper job holds exactly one session for its lifetime.
type Session interface {
	// Open creates a page and navigates it to the URL.
	Open(url string) (Page, error)
	// Close releases the session resources.
	Close() error
}
