package memory

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"portwatch/internal/domain"
	"portwatch/internal/repo"
)

var _ repo.TargetStore = (*Store)(nil)
var _ repo.ResultStore = (*Store)(nil)
var _ repo.SettingStore = (*Store)(nil)

// Store keeps everything in process memory. Used when DATABASE_URL is empty
// and by tests.
type Store struct {
	mu       sync.RWMutex
	nextID   domain.TargetID
	targets  map[domain.TargetID]*domain.Target
	results  []domain.ProbeResult
	settings map[string]string
}

func New() *Store {
	return &Store{
		nextID:  1,
		targets: make(map[domain.TargetID]*domain.Target),
		results: make([]domain.ProbeResult, 0, 128),
		settings: map[string]string{
			domain.SettingProbeInterval: strconv.Itoa(60),
			domain.SettingTaskStatus:    domain.TaskStopped,
		},
	}
}

// ---- TargetStore ----

func (m *Store) Add(ctx context.Context, t *domain.Target) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ex := range m.targets {
		if ex.PublicIP == t.PublicIP && ex.Port == t.Port {
			return repo.ErrDuplicateTarget
		}
	}
	t.ID = m.nextID
	m.nextID++
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	cp := *t
	m.targets[t.ID] = &cp
	return nil
}

func (m *Store) Get(ctx context.Context, id domain.TargetID) (*domain.Target, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.targets[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *Store) Update(ctx context.Context, t *domain.Target) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.targets[t.ID]; !ok {
		return repo.ErrNotFound
	}
	for id, ex := range m.targets {
		if id != t.ID && ex.PublicIP == t.PublicIP && ex.Port == t.Port {
			return repo.ErrDuplicateTarget
		}
	}
	t.UpdatedAt = time.Now().UTC()
	cp := *t
	m.targets[t.ID] = &cp
	return nil
}

func (m *Store) Delete(ctx context.Context, id domain.TargetID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.targets[id]; !ok {
		return repo.ErrNotFound
	}
	delete(m.targets, id)
	return nil
}

func (m *Store) List(ctx context.Context) ([]domain.Target, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Target, 0, len(m.targets))
	for _, t := range m.targets {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Store) ListActive(ctx context.Context) ([]domain.Target, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Target, 0, len(m.targets))
	for _, t := range m.targets {
		if t.IsActive {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Store) RegionCounts(ctx context.Context) ([]domain.RegionCount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[string]int64)
	for _, t := range m.targets {
		if t.IsActive {
			counts[t.Region]++
		}
	}
	out := make([]domain.RegionCount, 0, len(counts))
	for r, n := range counts {
		out = append(out, domain.RegionCount{Region: r, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Region < out[j].Region })
	return out, nil
}

// ---- ResultStore ----

func (m *Store) Append(ctx context.Context, results []domain.ProbeResult) error {
	if len(results) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	base := int64(len(m.results))
	for i, r := range results {
		r.ID = base + int64(i) + 1
		m.results = append(m.results, r)
	}
	return nil
}

func (m *Store) Purge(ctx context.Context, olderThan time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.results[:0]
	var deleted int64
	for _, r := range m.results {
		if r.ProbedAt.Before(olderThan) {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	m.results = kept
	return deleted, nil
}

func (m *Store) AggregateSince(ctx context.Context, since time.Time, region string) ([]domain.TargetStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	type acc struct {
		stats      domain.TargetStats
		latencySum float64
	}
	groups := make(map[domain.TargetID]*acc)

	for _, r := range m.results {
		if r.ProbedAt.Before(since) {
			continue
		}
		if region != "" && region != "all" && r.Region != region {
			continue
		}
		g, ok := groups[r.TargetID]
		if !ok {
			g = &acc{stats: domain.TargetStats{
				TargetID: r.TargetID,
				Region:   r.Region,
				PublicIP: r.PublicIP,
				Port:     r.Port,
			}}
			if t := m.targets[r.TargetID]; t != nil {
				g.stats.BusinessSystem = t.BusinessSystem
			}
			groups[r.TargetID] = g
		}
		g.stats.TotalProbes++
		if r.IsSuccessful {
			g.stats.SuccessfulProbes++
			g.latencySum += r.LatencyMS
		}
	}

	out := make([]domain.TargetStats, 0, len(groups))
	for _, g := range groups {
		s := g.stats
		if s.SuccessfulProbes > 0 {
			avg := g.latencySum / float64(s.SuccessfulProbes)
			s.AvgLatencyMS = &avg
		}
		if s.TotalProbes > 0 {
			s.PacketLossRate = float64(s.TotalProbes-s.SuccessfulProbes) / float64(s.TotalProbes) * 100
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TargetID < out[j].TargetID })
	return out, nil
}

func (m *Store) CountSince(ctx context.Context, since time.Time) (int64, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var total, successful int64
	for _, r := range m.results {
		if r.ProbedAt.Before(since) {
			continue
		}
		total++
		if r.IsSuccessful {
			successful++
		}
	}
	return total, successful, nil
}

// ---- SettingStore ----

func (m *Store) GetSetting(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.settings[key]
	if !ok {
		return "", fmt.Errorf("setting %q: %w", key, repo.ErrNotFound)
	}
	return v, nil
}

func (m *Store) SetSetting(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[key] = value
	return nil
}
