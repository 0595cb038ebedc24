package stats

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"portwatch/internal/domain"
	"portwatch/internal/repo"
)

// Recognized aggregation windows, token -> days. Anything else is rejected
// before any computation starts.
var timeRanges = map[string]int{
	"1d": 1,
	"7d": 7,
	"1M": 30,
	"3M": 90,
	"6M": 180,
	"1Y": 365,
}

// TimeRanges returns the recognized window tokens, sorted by span.
func TimeRanges() []string {
	out := make([]string, 0, len(timeRanges))
	for k := range timeRanges {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return timeRanges[out[i]] < timeRanges[out[j]] })
	return out
}

// WindowStart resolves a window token against now.
func WindowStart(timeRange string, now time.Time) (time.Time, error) {
	days, ok := timeRanges[timeRange]
	if !ok {
		return time.Time{}, fmt.Errorf("invalid time range %q, supported: %v", timeRange, TimeRanges())
	}
	return now.AddDate(0, 0, -days), nil
}

// Service answers aggregation queries from the persisted probe log. It reads
// independently of the scheduler; both sides go through the same stores.
type Service struct {
	Targets repo.TargetStore
	Results repo.ResultStore
}

func NewService(targets repo.TargetStore, results repo.ResultStore) *Service {
	return &Service{Targets: targets, Results: results}
}

// Aggregate groups probe results per target over the window. Average latency
// covers successful attempts only and is absent when there were none; the
// failure sentinel never enters the mean.
func (s *Service) Aggregate(ctx context.Context, timeRange, region string) ([]domain.TargetStats, error) {
	since, err := WindowStart(timeRange, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	rows, err := s.Results.AggregateSince(ctx, since, region)
	if err != nil {
		return nil, fmt.Errorf("aggregate %s: %w", timeRange, err)
	}
	for i := range rows {
		if rows[i].AvgLatencyMS != nil {
			v := round2(*rows[i].AvgLatencyMS)
			rows[i].AvgLatencyMS = &v
		}
		rows[i].PacketLossRate = round2(rows[i].PacketLossRate)
	}
	return rows, nil
}

// Summary reports fleet totals over a fixed trailing 24h window plus the
// per-region spread of currently active targets.
func (s *Service) Summary(ctx context.Context) (*domain.Summary, error) {
	active, err := s.Targets.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("summary targets: %w", err)
	}
	regions, err := s.Targets.RegionCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("summary regions: %w", err)
	}

	since := time.Now().UTC().Add(-24 * time.Hour)
	total, successful, err := s.Results.CountSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("summary counts: %w", err)
	}

	var rate float64
	if total > 0 {
		rate = round2(float64(successful) / float64(total) * 100)
	}
	return &domain.Summary{
		TotalTargets:   int64(len(active)),
		RecentProbes24: total,
		SuccessRate24:  rate,
		Regions:        regions,
	}, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
