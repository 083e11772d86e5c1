// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package health

import (
	"context"
	"errors"
)

// PingChecker is healthy while ping returns nil. Optional checkers only
// degrade readiness.
type PingChecker struct {
	name     string
	ping     func(ctx context.Context) error
	optional bool
}

func NewPingChecker(name string, ping func(ctx context.Context) error) *PingChecker {
	return &PingChecker{name: name, ping: ping}
}

// NewOptionalChecker reports failures as degraded instead of unhealthy.
func NewOptionalChecker(name string, ping func(ctx context.Context) error) *PingChecker {
	return &PingChecker{name: name, ping: ping, optional: true}
}

func (c *PingChecker) Name() string { return c.name }

func (c *PingChecker) Check(ctx context.Context) CheckResult {
	err := c.ping(ctx)
	if err == nil {
		return CheckResult{Status: StatusHealthy}
	}
	res := CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	if errors.Is(err, context.DeadlineExceeded) {
		res.Message = "check timed out"
	}
	if c.optional {
		res.Status = StatusDegraded
	}
	return res
}
