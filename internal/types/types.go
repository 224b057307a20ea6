package types

import "time"

// Status is the canonical lifecycle state of a transcription job.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// Terminal reports whether a status will not change on further refreshes.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Known reports whether the status is one of the four canonical values.
func (s Status) Known() bool {
	switch s {
	case StatusQueued, StatusProcessing, StatusCompleted, StatusError:
		return true
	}
	return false
}

// Job represents one transcription request and its evolving result.
//
// RawText, RawError and ServerStatus carry the provider's fields verbatim.
// Canonical is always derived from them; nothing else in the system may
// branch on the raw fields directly.
type Job struct {
	ID           string     `json:"id"`
	AudioRef     string     `json:"audio_url,omitempty"`
	LanguageCode string     `json:"language_code,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	RawText      string     `json:"text,omitempty"`
	RawError     string     `json:"error,omitempty"`
	ServerStatus Status     `json:"status"`
	Canonical    Status     `json:"canonical_status"`
}

// Partition is the four-way grouping of jobs by status.
type Partition struct {
	Queued     []Job `json:"queued"`
	Processing []Job `json:"processing"`
	Completed  []Job `json:"completed"`
	Error      []Job `json:"error"`
}

// All returns every job in the partition as a single slice.
func (p Partition) All() []Job {
	out := make([]Job, 0, len(p.Queued)+len(p.Processing)+len(p.Completed)+len(p.Error))
	out = append(out, p.Queued...)
	out = append(out, p.Processing...)
	out = append(out, p.Completed...)
	out = append(out, p.Error...)
	return out
}

// StatusCounts is the per-status aggregate of a partition.
type StatusCounts struct {
	Queued     int `json:"queued"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Error      int `json:"error"`
}

// Total returns the number of jobs across all statuses.
func (c StatusCounts) Total() int {
	return c.Queued + c.Processing + c.Completed + c.Error
}
