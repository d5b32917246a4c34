package health

import (
	"context"
	"time"
)

// Checkable is a component able to report its own health, such as a storage adapter.
type Checkable interface {
	HealthCheck(ctx context.Context) error
}

// AdapterChecker checks a Checkable under a timeout.
type AdapterChecker struct {
	name    string
	adapter Checkable
	timeout time.Duration
}

// NewAdapterChecker creates a checker for adapter. A zero timeout means 5s.
func NewAdapterChecker(name string, adapter Checkable, timeout time.Duration) *AdapterChecker {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &AdapterChecker{name: name, adapter: adapter, timeout: timeout}
}

// NewDatabaseChecker checks the relational store backing search and the ledger.
func NewDatabaseChecker(db Checkable) *AdapterChecker {
	return NewAdapterChecker("database", db, 3*time.Second)
}

func (c *AdapterChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	result := CheckResult{Name: c.name, Status: StatusHealthy, Message: "OK"}
	if err := c.adapter.HealthCheck(checkCtx); err != nil {
		result.Status = StatusUnhealthy
		result.Message = ""
		result.Error = err.Error()
	}
	result.Timestamp = time.Now()
	result.Duration = time.Since(start)
	return result
}

func (c *AdapterChecker) Name() string {
	return c.name
}
