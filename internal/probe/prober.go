package probe

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"portwatch/internal/domain"
)

// Prober fans a batch of targets out to the checker with bounded
// concurrency. A channel semaphore is the only synchronization on the hot
// path; attempts share no mutable state.
type Prober struct {
	Logger      *zap.Logger
	Checker     Checker
	Concurrency int
}

func NewProber(logger *zap.Logger, checker Checker, concurrency int) *Prober {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Prober{Logger: logger, Checker: checker, Concurrency: concurrency}
}

// Probe attempts every target once and returns one result per target. A
// failed attempt never aborts or delays its siblings; an empty batch returns
// an empty slice.
func (p *Prober) Probe(ctx context.Context, targets []domain.Target) []domain.ProbeResult {
	results := make([]domain.ProbeResult, len(targets))
	if len(targets) == 0 {
		return results
	}

	sem := make(chan struct{}, p.Concurrency)
	var wg sync.WaitGroup

	for i, tgt := range targets {
		i, tgt := i, tgt
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer func() { <-sem }()
			defer wg.Done()

			addr := net.JoinHostPort(tgt.PublicIP, strconv.Itoa(tgt.Port))
			out := p.Checker.Check(ctx, addr)

			r := domain.ProbeResult{
				TargetID:     tgt.ID,
				Region:       tgt.Region,
				PublicIP:     tgt.PublicIP,
				Port:         tgt.Port,
				IsSuccessful: out.Success,
				LatencyMS:    domain.FailedLatencyMS,
				ProbedAt:     time.Now().UTC(),
			}
			if out.Success {
				r.LatencyMS = out.LatencyMS
			} else {
				p.Logger.Debug("probe_failed",
					zap.Int64("target_id", int64(tgt.ID)),
					zap.String("addr", addr),
					zap.String("reason", out.Message),
				)
			}
			results[i] = r
		}()
	}

	wg.Wait()
	return results
}
