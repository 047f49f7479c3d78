package ports

import "context"

// SweepResult aggregates one lifecycle sweep. Per-user failures are
// counted, never propagated.
type SweepResult struct {
	Examined int `json:"examined"`
	Warned   int `json:"warned"`
	Disabled int `json:"disabled"`
	Failed   int `json:"failed"`
}

// LifecycleService runs the time-bounded account sweep: warn users whose
// accounts expire within the window, disable accounts already expired.
type LifecycleService interface {
	RunSweep(ctx context.Context, warnWindowDays int) (*SweepResult, error)
}
