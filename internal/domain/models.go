package domain

import "time"

// FailedLatencyMS is the latency recorded for a failed attempt. It is a
// storage sentinel only; aggregation never averages it.
const FailedLatencyMS = -1

type TargetID int64

// Target is one monitored endpoint. The registry owns it; the probing
// pipeline only reads snapshots of active targets at round start.
type Target struct {
	ID             TargetID  `json:"id"`
	Region         string    `json:"region"`
	PublicIP       string    `json:"public_ip"`
	Port           int       `json:"port"`
	BusinessSystem string    `json:"business_system,omitempty"`
	InternalIP     string    `json:"internal_ip,omitempty"`
	InternalPort   int       `json:"internal_port,omitempty"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ProbeResult is one connection attempt against one target. Region and
// address are denormalized at probe time so history stays truthful when the
// target is later edited or deleted.
type ProbeResult struct {
	ID           int64     `json:"id,omitempty"`
	TargetID     TargetID  `json:"target_id"`
	Region       string    `json:"region"`
	PublicIP     string    `json:"public_ip"`
	Port         int       `json:"port"`
	LatencyMS    float64   `json:"latency_ms"` // FailedLatencyMS when IsSuccessful is false
	IsSuccessful bool      `json:"is_successful"`
	ProbedAt     time.Time `json:"probed_at"`
}

// TargetStats is one aggregation row: one target's reachability over a window.
type TargetStats struct {
	TargetID         TargetID `json:"target_id"`
	Region           string   `json:"region"`
	PublicIP         string   `json:"public_ip"`
	Port             int      `json:"port"`
	BusinessSystem   string   `json:"business_system,omitempty"`
	AvgLatencyMS     *float64 `json:"avg_latency_ms"` // nil when no successful probes
	PacketLossRate   float64  `json:"packet_loss_rate"`
	TotalProbes      int64    `json:"total_probes"`
	SuccessfulProbes int64    `json:"successful_probes"`
}

type RegionCount struct {
	Region string `json:"region"`
	Count  int64  `json:"count"`
}

// Summary is the fleet-wide view over a fixed trailing 24h window.
type Summary struct {
	TotalTargets   int64         `json:"total_targets"`
	RecentProbes24 int64         `json:"recent_probes_24h"`
	SuccessRate24  float64       `json:"success_rate_24h"`
	Regions        []RegionCount `json:"regions"`
}
