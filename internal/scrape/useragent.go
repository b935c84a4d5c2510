package scrape

import (
	"math/rand"
	"sync"
)

// fallbackUserAgents is a small pool of current desktop browser identities.
var fallbackUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:124.0) Gecko/20100101 Firefox/124.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
}

// UserAgentProvider hands out randomized user agents. It is an explicit,
// constructor-injected dependency so tests can substitute a fixed pool.
type UserAgentProvider struct {
	mu   sync.Mutex
	rand *rand.Rand
	pool []string
}

// NewUserAgentProvider creates a provider backed by the fallback pool.
func NewUserAgentProvider(seed int64) *UserAgentProvider {
	return &UserAgentProvider{
		rand: rand.New(rand.NewSource(seed)),
		pool: fallbackUserAgents,
	}
}

// Get returns a random user agent string.
func (p *UserAgentProvider) Get() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pool[p.rand.Intn(len(p.pool))]
}
