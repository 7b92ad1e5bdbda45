package model

import (
	"errors"
	"fmt"
	"time"
)

// JobStatus is a step of the job lifecycle
type JobStatus string

const (
	JobPending      JobStatus = "pending"
	JobUploading    JobStatus = "uploading"
	JobTranscribing JobStatus = "transcribing"
	JobAnalyzing    JobStatus = "analyzing"
	JobCompleted    JobStatus = "completed"
	JobFailed       JobStatus = "failed"
)

// JobKind describes what was submitted
type JobKind string

const (
	JobKindText  JobKind = "text"
	JobKindAudio JobKind = "audio"
)

var (
	// ErrTerminal is returned when mutating a completed or failed job
	ErrTerminal = errors.New("job is in a terminal state")
	// ErrBackwardTransition is returned when a transition would move a job backwards
	ErrBackwardTransition = errors.New("job cannot move backwards")
)

// Rank orders statuses along the lifecycle
func (s JobStatus) Rank() int {
	switch s {
	case JobPending:
		return 0
	case JobUploading:
		return 1
	case JobTranscribing:
		return 2
	case JobAnalyzing:
		return 3
	case JobCompleted, JobFailed:
		return 4
	default:
		return -1
	}
}

// IsTerminal reports whether no transition may leave s
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed
}

// IsRunning reports whether a worker currently owns a job in this status
func (s JobStatus) IsRunning() bool {
	return s == JobUploading || s == JobTranscribing || s == JobAnalyzing
}

// Job is one tracked execution of the pipeline
type Job struct {
	ID             string             `json:"id"`
	OwnerID        string             `json:"owner_id"`
	DeviceID       string             `json:"device_id,omitempty"` // Originating device, informational only
	Kind           JobKind            `json:"kind"`
	Filename       string             `json:"filename,omitempty"`
	Status         JobStatus          `json:"status"`
	Phase          string             `json:"phase"`    // Human-readable progress message
	Progress       int                `json:"progress"` // 0-100, never decreases
	QueuePosition  int                `json:"queue_position,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	StartedAt      *time.Time         `json:"started_at,omitempty"`
	CompletedAt    *time.Time         `json:"completed_at,omitempty"`
	InputText      string             `json:"input_text,omitempty"`
	AudioRef       string             `json:"audio_ref,omitempty"`
	Transcript     string             `json:"transcript,omitempty"` // Preserved even when later phases fail
	Language       string             `json:"language,omitempty"`
	Result         *CredibilityReport `json:"result"`
	Error          *string            `json:"error"`
	ReanalyzedFrom string             `json:"reanalyzed_from,omitempty"`
}

// Transition moves the job to next, enforcing monotonic lifecycle order
func (j *Job) Transition(next JobStatus, now time.Time) error {
	if j.Status.IsTerminal() {
		return fmt.Errorf("%w: %s is %s", ErrTerminal, j.ID, j.Status)
	}
	if next.Rank() < 0 {
		return fmt.Errorf("unknown job status %q", next)
	}
	if next.Rank() < j.Status.Rank() {
		return fmt.Errorf("%w: %s -> %s", ErrBackwardTransition, j.Status, next)
	}
	if j.Status == JobPending && next != JobPending && j.StartedAt == nil && next != JobFailed {
		t := now
		j.StartedAt = &t
	}
	j.Status = next
	if next.IsTerminal() {
		t := now
		j.CompletedAt = &t
		j.QueuePosition = 0
	}
	return nil
}

// Advance sets progress and phase text; progress never decreases
func (j *Job) Advance(progress int, phase string) {
	if progress > 100 {
		progress = 100
	}
	if progress > j.Progress {
		j.Progress = progress
	}
	if phase != "" {
		j.Phase = phase
	}
}

// Fail marks the job failed with msg, keeping any partial results
func (j *Job) Fail(msg string, now time.Time) error {
	if err := j.Transition(JobFailed, now); err != nil {
		return err
	}
	j.Error = &msg
	j.Phase = "Failed"
	return nil
}

// Complete stores the report and marks the job completed
func (j *Job) Complete(report *CredibilityReport, now time.Time) error {
	if err := j.Transition(JobCompleted, now); err != nil {
		return err
	}
	j.Result = report
	j.Advance(100, "Completed")
	return nil
}

// Clone returns a deep copy safe to hand to readers
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	c := *j
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	if j.Error != nil {
		e := *j.Error
		c.Error = &e
	}
	if j.Result != nil {
		r := *j.Result
		r.Verdicts = cloneVerdicts(j.Result.Verdicts)
		r.QuestionableClaims = cloneVerdicts(j.Result.QuestionableClaims)
		r.Warnings = append([]string(nil), j.Result.Warnings...)
		if j.Result.OverallScore != nil {
			s := *j.Result.OverallScore
			r.OverallScore = &s
		}
		c.Result = &r
	}
	return &c
}

func cloneVerdicts(in []ClaimVerdict) []ClaimVerdict {
	if in == nil {
		return nil
	}
	out := make([]ClaimVerdict, len(in))
	for i, v := range in {
		v.Evidence = append([]EvidenceItem(nil), v.Evidence...)
		out[i] = v
	}
	return out
}

// JobSummary counts an owner's jobs per status
type JobSummary struct {
	Total    int               `json:"total"`
	ByStatus map[JobStatus]int `json:"by_status"`
	Active   int               `json:"active"`
}
