package domain

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Settings keys. Two rows, last-write-wins, no history.
const (
	SettingProbeInterval = "probe_interval_seconds"
	SettingTaskStatus    = "task_status"
)

const (
	TaskRunning = "running"
	TaskStopped = "stopped"
)

const (
	MinProbeIntervalSec = 10
	MaxProbeIntervalSec = 86400
)

// ValidateProbeInterval rejects out-of-range intervals at the write boundary
// so the store never holds an invalid value.
func ValidateProbeInterval(seconds int) error {
	return validation.Validate(seconds,
		validation.Required,
		validation.Min(MinProbeIntervalSec),
		validation.Max(MaxProbeIntervalSec),
	)
}

// ValidateTaskStatus accepts only the running/stopped enum.
func ValidateTaskStatus(status string) error {
	return validation.Validate(status,
		validation.Required,
		validation.In(TaskRunning, TaskStopped),
	)
}

// ValidateTarget checks operator input before a target reaches the registry.
func ValidateTarget(t *Target) error {
	return validation.ValidateStruct(t,
		validation.Field(&t.Region, validation.Required, validation.Length(1, 100)),
		validation.Field(&t.PublicIP, validation.Required, validation.Length(1, 45)),
		validation.Field(&t.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&t.InternalPort, validation.Min(0), validation.Max(65535)),
	)
}
