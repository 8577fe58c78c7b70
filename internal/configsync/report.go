package configsync

import "time"

// Phase is the state of a sweep.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhasePersisting  Phase = "persisting"
	PhaseAborted     Phase = "aborted"
	PhaseEnumerating Phase = "enumerating"
	PhaseNotifying   Phase = "notifying"
	PhaseDone        Phase = "done"
)

// TargetResult is the outcome for one project or one server instance.
// InstanceID is empty when the failure concerns the whole project.
type TargetResult struct {
	ProjectID   string
	ProjectName string
	InstanceID  string
	Sent        bool
	Err         error
}

// Report summarizes one sweep.
type Report struct {
	SyncID   string
	Phase    Phase
	Skipped  bool
	Targets  []TargetResult
	Started  time.Time
	Duration time.Duration
}

// Sent returns the number of delivered notifications.
func (r *Report) Sent() int {
	n := 0
	for _, t := range r.Targets {
		if t.Sent {
			n++
		}
	}
	return n
}

// Failed returns the number of failed targets.
func (r *Report) Failed() int {
	n := 0
	for _, t := range r.Targets {
		if t.Err != nil {
			n++
		}
	}
	return n
}
