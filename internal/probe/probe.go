package probe

import "context"

// CheckResult is the outcome of a single connection attempt. LatencyMS is
// only meaningful when Success is true; Message carries a best-effort
// diagnostic reason and never reaches persisted results.
type CheckResult struct {
	Success   bool
	LatencyMS float64
	Message   string
}

// Checker performs a single reachability check against a host:port address.
type Checker interface {
	Check(ctx context.Context, addr string) CheckResult
}
