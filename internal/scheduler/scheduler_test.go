package scheduler

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"portwatch/internal/domain"
	"portwatch/internal/probe"
	"portwatch/internal/repo"
	"portwatch/internal/repo/memory"
)

// --- fakes ---

type okChecker struct{}

func (okChecker) Check(ctx context.Context, addr string) probe.CheckResult {
	return probe.CheckResult{Success: true, LatencyMS: 10}
}

type fakeSettings struct {
	mu sync.Mutex
	m  map[string]string
}

func newFakeSettings(interval int, status string) *fakeSettings {
	return &fakeSettings{m: map[string]string{
		domain.SettingProbeInterval: strconv.Itoa(interval),
		domain.SettingTaskStatus:    status,
	}}
}

func (f *fakeSettings) GetSetting(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.m[key]
	if !ok {
		return "", repo.ErrNotFound
	}
	return v, nil
}

func (f *fakeSettings) SetSetting(ctx context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.m[key] = value
	return nil
}

type failingResults struct {
	*memory.Store
	appendErr error
	purgeErr  error
}

func (f *failingResults) Append(ctx context.Context, rs []domain.ProbeResult) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	return f.Store.Append(ctx, rs)
}

func (f *failingResults) Purge(ctx context.Context, olderThan time.Time) (int64, error) {
	if f.purgeErr != nil {
		return 0, f.purgeErr
	}
	return f.Store.Purge(ctx, olderThan)
}

type failingTargets struct {
	*memory.Store
	listErr error
}

func (f *failingTargets) ListActive(ctx context.Context) ([]domain.Target, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.Store.ListActive(ctx)
}

func newTestScheduler(t *testing.T, store *memory.Store, settings repo.SettingStore) *Scheduler {
	t.Helper()
	prober := probe.NewProber(zap.NewNop(), okChecker{}, 2)
	return New(zap.NewNop(), store, store, settings, prober)
}

func addActiveTarget(t *testing.T, store *memory.Store) {
	t.Helper()
	err := store.Add(context.Background(), &domain.Target{
		Region: "us", PublicIP: "203.0.113.5", Port: 9999, IsActive: true,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func countResults(t *testing.T, store *memory.Store) int64 {
	t.Helper()
	total, _, err := store.CountSince(context.Background(), time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	return total
}

// --- tests ---

func TestStep_FiresEveryInterval(t *testing.T) {
	store := memory.New()
	addActiveTarget(t, store)
	s := newTestScheduler(t, store, newFakeSettings(10, domain.TaskRunning))

	ctx := context.Background()
	now := time.Now().UTC()

	s.step(ctx, now) // countdown at zero: fires
	if got := countResults(t, store); got != 1 {
		t.Fatalf("expected 1 result after first tick, got %d", got)
	}

	for i := 0; i < 9; i++ {
		s.step(ctx, now)
	}
	if got := countResults(t, store); got != 1 {
		t.Fatalf("round fired mid-countdown, results=%d", got)
	}

	s.step(ctx, now) // 11th tick: counter wrapped, fires again
	if got := countResults(t, store); got != 2 {
		t.Fatalf("expected 2 results after full interval, got %d", got)
	}
}

func TestStep_StoppedPreventsRound(t *testing.T) {
	store := memory.New()
	addActiveTarget(t, store)
	set := newFakeSettings(10, domain.TaskStopped)
	s := newTestScheduler(t, store, set)

	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 25; i++ {
		s.step(ctx, now)
	}
	if got := countResults(t, store); got != 0 {
		t.Fatalf("stopped scheduler must not probe, results=%d", got)
	}

	// Re-enabling starts a fresh countdown; the first running tick fires
	// because the counter was held at zero while stopped.
	_ = set.SetSetting(ctx, domain.SettingTaskStatus, domain.TaskRunning)
	s.step(ctx, now)
	if got := countResults(t, store); got != 1 {
		t.Fatalf("expected round on re-enable, results=%d", got)
	}
}

func TestStep_StopMidCountdownHoldsFire(t *testing.T) {
	store := memory.New()
	addActiveTarget(t, store)
	set := newFakeSettings(5, domain.TaskRunning)
	s := newTestScheduler(t, store, set)

	ctx := context.Background()
	now := time.Now().UTC()

	s.step(ctx, now) // fires, elapsed=1
	_ = set.SetSetting(ctx, domain.SettingTaskStatus, domain.TaskStopped)

	// The counter would have wrapped here if still running.
	for i := 0; i < 10; i++ {
		s.step(ctx, now)
	}
	if got := countResults(t, store); got != 1 {
		t.Fatalf("round fired while stopped, results=%d", got)
	}
}

func TestStep_IntervalChangeResetsCountdown(t *testing.T) {
	store := memory.New()
	addActiveTarget(t, store)
	set := newFakeSettings(3600, domain.TaskRunning)
	s := newTestScheduler(t, store, set)

	ctx := context.Background()
	now := time.Now().UTC()

	s.step(ctx, now) // fires, then a long countdown begins
	s.step(ctx, now)
	if got := countResults(t, store); got != 1 {
		t.Fatalf("setup: expected 1 result, got %d", got)
	}

	// Frequency change abandons the old countdown; the next round lands
	// within one new-interval period.
	_ = set.SetSetting(ctx, domain.SettingProbeInterval, "10")
	fired := false
	for i := 0; i < 10; i++ {
		s.step(ctx, now)
		if countResults(t, store) == 2 {
			fired = true
			break
		}
	}
	if !fired {
		t.Fatal("round did not fire within one new-interval period after change")
	}
}

func TestStep_InvalidIntervalKeepsLastSeen(t *testing.T) {
	store := memory.New()
	set := newFakeSettings(20, domain.TaskRunning)
	s := newTestScheduler(t, store, set)

	ctx := context.Background()
	s.step(ctx, time.Now().UTC())
	if s.currentInterval != 20 {
		t.Fatalf("expected interval 20 adopted, got %d", s.currentInterval)
	}

	_ = set.SetSetting(ctx, domain.SettingProbeInterval, "5") // below minimum
	s.step(ctx, time.Now().UTC())
	if s.currentInterval != 20 {
		t.Fatalf("invalid interval must not be adopted, got %d", s.currentInterval)
	}

	_ = set.SetSetting(ctx, domain.SettingProbeInterval, "banana")
	s.step(ctx, time.Now().UTC())
	if s.currentInterval != 20 {
		t.Fatalf("garbage interval must not be adopted, got %d", s.currentInterval)
	}
}

func TestStep_UnreadableSettingsBehaveStopped(t *testing.T) {
	store := memory.New()
	addActiveTarget(t, store)
	s := newTestScheduler(t, store, &fakeSettings{m: map[string]string{}})

	for i := 0; i < 5; i++ {
		s.step(context.Background(), time.Now().UTC())
	}
	if got := countResults(t, store); got != 0 {
		t.Fatalf("missing settings must behave as stopped, results=%d", got)
	}
}

func TestRunRound_ContainsStoreFailures(t *testing.T) {
	boom := errors.New("boom")
	ctx := context.Background()
	now := time.Now().UTC()

	// failing sweep: round still probes and persists
	store := memory.New()
	addActiveTarget(t, store)
	s := newTestScheduler(t, store, newFakeSettings(10, domain.TaskRunning))
	s.Results = &failingResults{Store: store, purgeErr: boom}
	s.runRound(ctx, now)

	// failing snapshot: round degrades to nothing, no panic
	s2 := newTestScheduler(t, store, newFakeSettings(10, domain.TaskRunning))
	s2.Targets = &failingTargets{Store: store, listErr: boom}
	s2.runRound(ctx, now)

	// failing append: results lost for this round, loop must survive
	s3 := newTestScheduler(t, store, newFakeSettings(10, domain.TaskRunning))
	s3.Results = &failingResults{Store: store, appendErr: boom}
	s3.runRound(ctx, now)
	s3.step(ctx, now) // next tick proceeds
}

func TestRunRound_SweepsByFixedCutoff(t *testing.T) {
	store := memory.New()
	addActiveTarget(t, store)

	ctx := context.Background()
	now := time.Now().UTC()
	old := domain.ProbeResult{TargetID: 1, Region: "us", PublicIP: "203.0.113.5", Port: 9999,
		LatencyMS: 12, IsSuccessful: true, ProbedAt: now.Add(-32 * 24 * time.Hour)}
	fresh := old
	fresh.ProbedAt = now.Add(-30 * 24 * time.Hour)
	if err := store.Append(ctx, []domain.ProbeResult{old, fresh}); err != nil {
		t.Fatal(err)
	}

	s := newTestScheduler(t, store, newFakeSettings(10, domain.TaskRunning))
	s.runRound(ctx, now)

	// 32d-old purged, 30d-old retained, plus the round's own result
	total, _, err := store.CountSince(ctx, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if total != 2 {
		t.Fatalf("expected retained+new = 2 results, got %d", total)
	}
	kept, _, _ := store.CountSince(ctx, now.Add(-31*24*time.Hour))
	if kept != 2 {
		t.Fatalf("expected both remaining results inside horizon, got %d", kept)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	store := memory.New()
	s := newTestScheduler(t, store, newFakeSettings(10, domain.TaskStopped))
	s.Tick = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop on cancel")
	}
}
