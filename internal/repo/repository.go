package repo

import (
	"context"
	"errors"
	"time"

	"portwatch/internal/domain"
)

var ErrNotFound = errors.New("not found")

// ErrDuplicateTarget is returned when (public_ip, port) already exists.
var ErrDuplicateTarget = errors.New("target already exists")

// Ports (interfaces) — postgres and memory adapters implement these.

// TargetStore is the registry surface. The probing pipeline only calls
// ListActive; the rest backs the operator CRUD API.
type TargetStore interface {
	Add(ctx context.Context, t *domain.Target) error
	Get(ctx context.Context, id domain.TargetID) (*domain.Target, error)
	Update(ctx context.Context, t *domain.Target) error
	Delete(ctx context.Context, id domain.TargetID) error
	List(ctx context.Context) ([]domain.Target, error)
	ListActive(ctx context.Context) ([]domain.Target, error)
	RegionCounts(ctx context.Context) ([]domain.RegionCount, error)
}

// ResultStore is the append-only probe-result log plus its read paths.
type ResultStore interface {
	// Append persists the batch as a unit. Readers may observe the batch with
	// a delay but never a torn write.
	Append(ctx context.Context, results []domain.ProbeResult) error
	// Purge deletes results older than the cutoff and reports how many went.
	Purge(ctx context.Context, olderThan time.Time) (int64, error)
	// AggregateSince groups results probed at or after since by target.
	// region restricts the grouping when non-empty and not "all".
	AggregateSince(ctx context.Context, since time.Time, region string) ([]domain.TargetStats, error)
	// CountSince returns total and successful probes at or after since.
	CountSince(ctx context.Context, since time.Time) (total, successful int64, err error)
}

// SettingStore holds the two operator-mutable rows. Get returns ErrNotFound
// for a key that was never written.
type SettingStore interface {
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
}
