package auth

import (
	"net/http"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"
)

const maxTrackedClients = 10000

// Throttle limits credential endpoints per client IP.
type Throttle struct {
	limit rate.Limit
	burst int
	now   func() time.Time

	mu      sync.Mutex
	clients map[string]*clientLimiter
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewThrottle allows perMinute attempts per client with the given burst. A
// non-positive perMinute disables throttling.
func NewThrottle(perMinute, burst int) *Throttle {
	if burst <= 0 {
		burst = 1
	}
	return &Throttle{
		limit:   rate.Limit(float64(perMinute) / 60),
		burst:   burst,
		now:     time.Now,
		clients: make(map[string]*clientLimiter),
	}
}

// Handle rejects the request with 429 once the client's budget is spent.
func (t *Throttle) Handle(c *fiber.Ctx) error {
	if t == nil || t.limit <= 0 {
		return c.Next()
	}
	if !t.allow(c.IP()) {
		return fiber.NewError(http.StatusTooManyRequests, "too many attempts, retry later")
	}
	return c.Next()
}

func (t *Throttle) allow(client string) bool {
	now := t.now()
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.clients[client]
	if !ok {
		if len(t.clients) >= maxTrackedClients {
			t.prune(now)
		}
		entry = &clientLimiter{limiter: rate.NewLimiter(t.limit, t.burst)}
		t.clients[client] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// prune drops clients idle long enough to have refilled their bucket.
func (t *Throttle) prune(now time.Time) {
	idle := time.Duration(float64(t.burst)/float64(t.limit)) * time.Second
	for client, entry := range t.clients {
		if now.Sub(entry.lastSeen) > idle {
			delete(t.clients, client)
		}
	}
}
