package middleware

import (
	"sync"
	"time"

	"github.com/akolanti/TenderRAG/internal/config"
	"golang.org/x/time/rate"
)

var limiterInstance = NewClientRateLimiter(rate.Limit(config.RATE_LIMIT_PER_SECOND), config.BURST_RATE_LIMIT_PER_SECOND)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ClientRateLimiter keeps one token bucket per client address.
// Once the table holds maxClients entries, clients idle for longer than idleTTL are dropped.
type ClientRateLimiter struct {
	mu         sync.Mutex
	clients    map[string]*clientLimiter
	rateLimit  rate.Limit
	burstRate  int
	idleTTL    time.Duration
	maxClients int
	now        func() time.Time
}

func NewClientRateLimiter(r rate.Limit, b int) *ClientRateLimiter {
	return &ClientRateLimiter{
		clients:    make(map[string]*clientLimiter),
		rateLimit:  r,
		burstRate:  b,
		idleTTL:    config.RateLimiterIdleTTL,
		maxClients: config.RateLimiterMaxClients,
		now:        time.Now,
	}
}

// Allow spends one token of the client's bucket.
func (l *ClientRateLimiter) Allow(client string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	c, exists := l.clients[client]
	if !exists {
		if len(l.clients) >= l.maxClients {
			l.evictIdle(now)
		}
		c = &clientLimiter{limiter: rate.NewLimiter(l.rateLimit, l.burstRate)}
		l.clients[client] = c
	}
	c.lastSeen = now
	return c.limiter.AllowN(now, 1)
}

func (l *ClientRateLimiter) evictIdle(now time.Time) {
	for key, c := range l.clients {
		if now.Sub(c.lastSeen) > l.idleTTL {
			delete(l.clients, key)
		}
	}
}

func (l *ClientRateLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}
