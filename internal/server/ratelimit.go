package server

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/biladesigns/brief-gateway/internal/ratelimit"
)

// SetRateLimitHeaders writes the X-RateLimit-* headers for d. Denied
// decisions also get Retry-After. Reset values are whole seconds, rounded up.
func SetRateLimitHeaders(h http.Header, d ratelimit.Decision) {
	reset := ceilSeconds(d.ResetAfter)

	h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	h.Set("X-RateLimit-Reset", strconv.Itoa(reset))

	if !d.Allowed {
		h.Set("Retry-After", strconv.Itoa(max(reset, 1)))
	}
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}
