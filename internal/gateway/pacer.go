package gateway

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// HostPacer spaces out outbound calls per upstream host with a token bucket,
// so a wide sync cannot flood a single gateway. A nil pacer never waits.
type HostPacer struct {
	limiters sync.Map // host → *rate.Limiter
	r        rate.Limit
	burst    int
}

// NewHostPacer returns nil when perSecond is not positive.
func NewHostPacer(perSecond float64, burst int) *HostPacer {
	if perSecond <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &HostPacer{r: rate.Limit(perSecond), burst: burst}
}

// Wait blocks until host may be called or ctx is done.
func (p *HostPacer) Wait(ctx context.Context, host string) error {
	if p == nil {
		return nil
	}
	return p.limiter(host).Wait(ctx)
}

func (p *HostPacer) limiter(host string) *rate.Limiter {
	if v, ok := p.limiters.Load(host); ok {
		return v.(*rate.Limiter)
	}
	actual, _ := p.limiters.LoadOrStore(host, rate.NewLimiter(p.r, p.burst))
	return actual.(*rate.Limiter)
}
