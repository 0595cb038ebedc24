package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"portwatch/internal/domain"
	"portwatch/internal/repo"
)

var _ repo.TargetStore = (*Store)(nil)
var _ repo.ResultStore = (*Store)(nil)
var _ repo.SettingStore = (*Store)(nil)

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	p, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgxpool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := p.Ping(pingCtx); err != nil {
		p.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Store{pool: p}, nil
}

func (s *Store) Close() { s.pool.Close() }

// EnsureSchema creates tables and indexes if missing and seeds the two
// settings rows.
func (s *Store) EnsureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS targets (
    id              BIGSERIAL PRIMARY KEY,
    region          TEXT        NOT NULL,
    public_ip       TEXT        NOT NULL,
    port            INT         NOT NULL,
    business_system TEXT        NOT NULL DEFAULT '',
    internal_ip     TEXT        NOT NULL DEFAULT '',
    internal_port   INT         NOT NULL DEFAULT 0,
    is_active       BOOLEAN     NOT NULL DEFAULT TRUE,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (public_ip, port)
);
CREATE TABLE IF NOT EXISTS probe_results (
    id            BIGSERIAL PRIMARY KEY,
    target_id     BIGINT           NOT NULL,
    region        TEXT             NOT NULL,
    public_ip     TEXT             NOT NULL,
    port          INT              NOT NULL,
    latency_ms    DOUBLE PRECISION NOT NULL,
    is_successful BOOLEAN          NOT NULL,
    probed_at     TIMESTAMPTZ      NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_probe_results_probed_at ON probe_results (probed_at);
CREATE INDEX IF NOT EXISTS idx_probe_results_target_id ON probe_results (target_id);
CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
INSERT INTO settings (key, value) VALUES ('probe_interval_seconds', '60')
    ON CONFLICT (key) DO NOTHING;
INSERT INTO settings (key, value) VALUES ('task_status', 'stopped')
    ON CONFLICT (key) DO NOTHING;
`
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// ---- TargetStore ----

func (s *Store) Add(ctx context.Context, t *domain.Target) error {
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	err := s.pool.QueryRow(ctx,
		`INSERT INTO targets
		   (region, public_ip, port, business_system, internal_ip, internal_port, is_active, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		 RETURNING id`,
		t.Region, t.PublicIP, t.Port, t.BusinessSystem, t.InternalIP, t.InternalPort,
		t.IsActive, t.CreatedAt, t.UpdatedAt,
	).Scan(&t.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return repo.ErrDuplicateTarget
		}
		return fmt.Errorf("insert target: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id domain.TargetID) (*domain.Target, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, region, public_ip, port, business_system, internal_ip, internal_port,
		        is_active, created_at, updated_at
		   FROM targets WHERE id = $1`, int64(id))
	t, err := scanTarget(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		return nil, fmt.Errorf("get target: %w", err)
	}
	return t, nil
}

func (s *Store) Update(ctx context.Context, t *domain.Target) error {
	t.UpdatedAt = time.Now().UTC()
	tag, err := s.pool.Exec(ctx,
		`UPDATE targets
		    SET region=$2, public_ip=$3, port=$4, business_system=$5,
		        internal_ip=$6, internal_port=$7, is_active=$8, updated_at=$9
		  WHERE id=$1`,
		int64(t.ID), t.Region, t.PublicIP, t.Port, t.BusinessSystem,
		t.InternalIP, t.InternalPort, t.IsActive, t.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return repo.ErrDuplicateTarget
		}
		return fmt.Errorf("update target: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id domain.TargetID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM targets WHERE id = $1`, int64(id))
	if err != nil {
		return fmt.Errorf("delete target: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (s *Store) List(ctx context.Context) ([]domain.Target, error) {
	return s.listWhere(ctx, ``)
}

func (s *Store) ListActive(ctx context.Context) ([]domain.Target, error) {
	return s.listWhere(ctx, `WHERE is_active`)
}

func (s *Store) listWhere(ctx context.Context, where string) ([]domain.Target, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, region, public_ip, port, business_system, internal_ip, internal_port,
		        is_active, created_at, updated_at
		   FROM targets `+where+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	defer rows.Close()

	var out []domain.Target
	for rows.Next() {
		t, err := scanTarget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan target: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (s *Store) RegionCounts(ctx context.Context) ([]domain.RegionCount, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT region, COUNT(*) FROM targets WHERE is_active GROUP BY region ORDER BY region`)
	if err != nil {
		return nil, fmt.Errorf("region counts: %w", err)
	}
	defer rows.Close()

	var out []domain.RegionCount
	for rows.Next() {
		var rc domain.RegionCount
		if err := rows.Scan(&rc.Region, &rc.Count); err != nil {
			return nil, fmt.Errorf("scan region count: %w", err)
		}
		out = append(out, rc)
	}
	return out, rows.Err()
}

// ---- ResultStore ----

// Append inserts the whole batch in one transaction so the round is
// all-or-nothing on the wire.
func (s *Store) Append(ctx context.Context, results []domain.ProbeResult) error {
	if len(results) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	b := &pgx.Batch{}
	for _, r := range results {
		b.Queue(
			`INSERT INTO probe_results
			   (target_id, region, public_ip, port, latency_ms, is_successful, probed_at)
			 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			int64(r.TargetID), r.Region, r.PublicIP, r.Port, r.LatencyMS, r.IsSuccessful, r.ProbedAt)
	}
	if err := tx.SendBatch(ctx, b).Close(); err != nil {
		return fmt.Errorf("insert results: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Store) Purge(ctx context.Context, olderThan time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM probe_results WHERE probed_at < $1`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("purge results: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) AggregateSince(ctx context.Context, since time.Time, region string) ([]domain.TargetStats, error) {
	q := `
SELECT r.target_id,
       r.region,
       r.public_ip,
       r.port,
       COALESCE(t.business_system, ''),
       AVG(r.latency_ms) FILTER (WHERE r.is_successful),
       COUNT(*),
       COUNT(*) FILTER (WHERE r.is_successful)
  FROM probe_results r
  LEFT JOIN targets t ON t.id = r.target_id
 WHERE r.probed_at >= $1`
	args := []any{since}
	if region != "" && region != "all" {
		q += ` AND r.region = $2`
		args = append(args, region)
	}
	q += `
 GROUP BY r.target_id, r.region, r.public_ip, r.port, t.business_system
 ORDER BY r.target_id`

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("aggregate: %w", err)
	}
	defer rows.Close()

	var out []domain.TargetStats
	for rows.Next() {
		var st domain.TargetStats
		var avg *float64
		if err := rows.Scan(&st.TargetID, &st.Region, &st.PublicIP, &st.Port,
			&st.BusinessSystem, &avg, &st.TotalProbes, &st.SuccessfulProbes); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		st.AvgLatencyMS = avg
		if st.TotalProbes > 0 {
			st.PacketLossRate = float64(st.TotalProbes-st.SuccessfulProbes) / float64(st.TotalProbes) * 100
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *Store) CountSince(ctx context.Context, since time.Time) (int64, int64, error) {
	var total, successful int64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE is_successful)
		   FROM probe_results WHERE probed_at >= $1`, since).
		Scan(&total, &successful)
	if err != nil {
		return 0, 0, fmt.Errorf("count results: %w", err)
	}
	return total, successful, nil
}

// ---- SettingStore ----

func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	var v string
	err := s.pool.QueryRow(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&v)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("setting %q: %w", key, repo.ErrNotFound)
		}
		return "", fmt.Errorf("get setting: %w", err)
	}
	return v, nil
}

func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO settings (key, value) VALUES ($1,$2)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, key, value)
	if err != nil {
		return fmt.Errorf("set setting: %w", err)
	}
	return nil
}

// ---- helpers ----

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTarget(row rowScanner) (*domain.Target, error) {
	var t domain.Target
	err := row.Scan(&t.ID, &t.Region, &t.PublicIP, &t.Port, &t.BusinessSystem,
		&t.InternalIP, &t.InternalPort, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
