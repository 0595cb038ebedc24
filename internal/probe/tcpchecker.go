package probe

import (
	"context"
	"net"
	"time"
)

// TCPChecker dials the target address and reports whether the handshake
// completed within the timeout. The connection is closed immediately; no
// payload is exchanged.
type TCPChecker struct {
	Timeout time.Duration
	dialer  net.Dialer
}

func NewTCPChecker(timeout time.Duration) *TCPChecker {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &TCPChecker{Timeout: timeout}
}

func (c *TCPChecker) Check(ctx context.Context, addr string) CheckResult {
	dctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	start := time.Now()
	conn, err := c.dialer.DialContext(dctx, "tcp", addr)
	if err != nil {
		// Timeout, refused, unreachable, resolution failure: all the same
		// outcome. The cause only survives as a log message.
		return CheckResult{Success: false, Message: err.Error()}
	}
	latency := time.Since(start).Seconds() * 1000
	_ = conn.Close()

	return CheckResult{Success: true, LatencyMS: latency}
}
