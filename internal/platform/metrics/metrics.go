package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"kpieval/internal/domain/apperr"
)

type Collector struct {
	totalRequests   uint64
	errorRequests   uint64
	rateLimited     uint64
	totalDurationMs uint64

	mu            sync.Mutex
	transitions   map[string]map[string]uint64
	notifications map[string]uint64
}

func New() *Collector {
	return &Collector{
		transitions:   map[string]map[string]uint64{},
		notifications: map[string]uint64{},
	}
}

func (c *Collector) Record(status int, duration time.Duration) {
	atomic.AddUint64(&c.totalRequests, 1)
	if status >= 500 {
		atomic.AddUint64(&c.errorRequests, 1)
	}
	if status == 429 {
		atomic.AddUint64(&c.rateLimited, 1)
	}
	atomic.AddUint64(&c.totalDurationMs, uint64(duration.Milliseconds()))
}

// RecordTransition counts a workflow outcome under its error code, or "ok".
func (c *Collector) RecordTransition(event string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = apperr.Code(err)
		if outcome == "" {
			outcome = "error"
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	byOutcome, ok := c.transitions[event]
	if !ok {
		byOutcome = map[string]uint64{}
		c.transitions[event] = byOutcome
	}
	byOutcome[outcome]++
}

func (c *Collector) NotificationDispatched(ntype string, recipients int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notifications[ntype] += uint64(recipients)
}

func (c *Collector) Snapshot() map[string]any {
	total := atomic.LoadUint64(&c.totalRequests)
	errs := atomic.LoadUint64(&c.errorRequests)
	limited := atomic.LoadUint64(&c.rateLimited)
	totalMs := atomic.LoadUint64(&c.totalDurationMs)
	avg := float64(0)
	if total > 0 {
		avg = float64(totalMs) / float64(total)
	}

	c.mu.Lock()
	transitions := make(map[string]map[string]uint64, len(c.transitions))
	for event, byOutcome := range c.transitions {
		copied := make(map[string]uint64, len(byOutcome))
		for outcome, n := range byOutcome {
			copied[outcome] = n
		}
		transitions[event] = copied
	}
	delivered := make(map[string]uint64, len(c.notifications))
	for ntype, n := range c.notifications {
		delivered[ntype] = n
	}
	c.mu.Unlock()

	return map[string]any{
		"requestsTotal":          total,
		"errorsTotal":            errs,
		"rateLimitedTotal":       limited,
		"avgDurationMs":          avg,
		"totalDurationMs":        totalMs,
		"transitionsTotal":       transitions,
		"notificationsDelivered": delivered,
	}
}
