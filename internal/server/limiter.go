package server

import (
	"sync"

	"golang.org/x/time/rate"
)

// tenantLimiters hands out one token bucket per tenant.
type tenantLimiters struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	byTenant map[string]*rate.Limiter
}

func newTenantLimiters(limit rate.Limit, burst int) *tenantLimiters {
	if burst <= 0 {
		burst = 1
	}
	return &tenantLimiters{limit: limit, burst: burst, byTenant: make(map[string]*rate.Limiter)}
}

// allow reports whether tenant may make another request now.
func (l *tenantLimiters) allow(tenant string) bool {
	if l.limit <= 0 {
		return true
	}
	l.mu.Lock()
	lim, ok := l.byTenant[tenant]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.byTenant[tenant] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}
