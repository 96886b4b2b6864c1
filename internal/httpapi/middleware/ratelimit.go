package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/genie-chat/internal/common"
	"golang.org/x/time/rate"
)

type ipLimiter struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// RateLimit allows perMinute requests per client IP with a burst of the same size.
func RateLimit(perMinute int) gin.HandlerFunc {
	var (
		mu       sync.Mutex
		limiters = make(map[string]*ipLimiter)
		lastGC   = time.Now()
	)
	every := rate.Every(time.Minute / time.Duration(perMinute))

	return func(c *gin.Context) {
		ip := c.ClientIP()
		now := time.Now()

		mu.Lock()
		if now.Sub(lastGC) > 10*time.Minute {
			for k, v := range limiters {
				if now.Sub(v.lastSeen) > 10*time.Minute {
					delete(limiters, k)
				}
			}
			lastGC = now
		}
		l, ok := limiters[ip]
		if !ok {
			l = &ipLimiter{lim: rate.NewLimiter(every, perMinute)}
			limiters[ip] = l
		}
		l.lastSeen = now
		allowed := l.lim.Allow()
		mu.Unlock()

		if !allowed {
			common.Fail(c, http.StatusTooManyRequests, 42900, "too many requests")
			return
		}
		c.Next()
	}
}
