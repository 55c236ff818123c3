package health

import (
	"context"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"
	"golang.org/x/sync/errgroup"

	"github.com/GPTx-global/rofl-oracle/oracle/log"
)

// Check is a single named probe.
type Check interface {
	Check(ctx context.Context) error
	Name() string
}

// Status is the latest result of one check.
type Status struct {
	Healthy   bool      `json:"healthy"`
	LastCheck time.Time `json:"lastCheck"`
	LastError string    `json:"lastError,omitempty"`
}

// Checker runs its checks periodically and keeps the latest status of each.
type Checker struct {
	checks   cmap.ConcurrentMap[string, Check]
	status   cmap.ConcurrentMap[string, Status]
	interval time.Duration
	timeout  time.Duration
}

func NewChecker(interval, timeout time.Duration) *Checker {
	return &Checker{
		checks:   cmap.New[Check](),
		status:   cmap.New[Status](),
		interval: interval,
		timeout:  timeout,
	}
}

// AddCheck registers check. It is reported healthy until its first run.
func (c *Checker) AddCheck(check Check) {
	name := check.Name()
	c.checks.Set(name, check)
	c.status.Set(name, Status{
		Healthy:   true,
		LastCheck: time.Now(),
	})

	log.Debugf("added health check: %s", name)
}

// Start runs all checks immediately and then once per interval until ctx is done.
func (c *Checker) Start(ctx context.Context) {
	log.Infof("health checker started, interval %s", c.interval)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.RunChecks(ctx)

	for {
		select {
		case <-ticker.C:
			c.RunChecks(ctx)
		case <-ctx.Done():
			log.Info("health checker stopped")
			return
		}
	}
}

// RunChecks runs every check concurrently and waits for all of them.
func (c *Checker) RunChecks(ctx context.Context) {
	var g errgroup.Group

	for name, check := range c.checks.Items() {
		name, check := name, check
		g.Go(func() error {
			checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()

			err := check.Check(checkCtx)

			status := Status{
				Healthy:   err == nil,
				LastCheck: time.Now(),
			}
			if err != nil {
				status.LastError = err.Error()
				log.Warnf("health check failed - %s: %v", name, err)
			}
			c.status.Set(name, status)
			return nil
		})
	}

	_ = g.Wait()
}

// GetStatus returns a snapshot of all statuses.
func (c *Checker) GetStatus() map[string]Status {
	return c.status.Items()
}

// IsHealthy reports whether every check passed on its last run.
func (c *Checker) IsHealthy() bool {
	for _, status := range c.status.Items() {
		if !status.Healthy {
			return false
		}
	}
	return true
}

// FuncCheck adapts a function into a Check.
type FuncCheck struct {
	name      string
	checkFunc func(ctx context.Context) error
}

func NewFuncCheck(name string, checkFunc func(ctx context.Context) error) *FuncCheck {
	return &FuncCheck{
		name:      name,
		checkFunc: checkFunc,
	}
}

func (fc *FuncCheck) Check(ctx context.Context) error {
	return fc.checkFunc(ctx)
}

func (fc *FuncCheck) Name() string {
	return fc.name
}
