package policy

import (
	"math/rand"
	"time"
)

// Delay is the inter-page politeness pause. Injected so tests can run
// with a zero-delay policy.
type Delay interface {
	Sleep()
}

// UniformDelay sleeps for a duration drawn uniformly from [Min, Max].
type UniformDelay struct {
	Min time.Duration
	Max time.Duration
}

// NewUniformDelay builds a delay policy from a range in seconds.
func NewUniformDelay(minSec, maxSec float64) *UniformDelay {
	return &UniformDelay{
		Min: time.Duration(minSec * float64(time.Second)),
		Max: time.Duration(maxSec * float64(time.Second)),
	}
}

func (d *UniformDelay) Sleep() {
	time.Sleep(d.Duration())
}

// Duration picks the next sleep duration.
func (d *UniformDelay) Duration() time.Duration {
	if d.Max <= d.Min {
		return d.Min
	}
	return d.Min + time.Duration(rand.Int63n(int64(d.Max-d.Min)+1))
}

// NoDelay skips the pause entirely.
type NoDelay struct{}

func (NoDelay) Sleep() {}

// Identity supplies the user agent a session presents.
type Identity interface {
	UserAgent() string
}

// Browser user agents rotated between sessions.
var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
}

// RandomIdentity picks a user agent from a fixed pool.
type RandomIdentity struct {
	pool []string
}

// NewRandomIdentity returns an identity policy over the default pool.
func NewRandomIdentity() *RandomIdentity {
	return &RandomIdentity{pool: defaultUserAgents}
}

func (r *RandomIdentity) UserAgent() string {
	return r.pool[rand.Intn(len(r.pool))]
}

// FixedIdentity always presents the same user agent.
type FixedIdentity string

func (f FixedIdentity) UserAgent() string {
	return string(f)
}
