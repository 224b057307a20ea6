// Package reconcile derives one trustworthy status per job from the
// provider's ambiguous raw fields. It is the only writer of canonical
// status in the system.
package reconcile

import (
	"strings"

	"github.com/codebuildervaibhav/textor-gateway/internal/types"
)

// The provider overloads its error field: one value is a placeholder
// meaning the job is still running, another marks a result that never
// materialized. Both must be matched exactly.
const (
	SentinelStillProcessing = "Please wait, processing your audio..."
	SentinelNotAvailable    = "Transcription not available"
)

// Canonicalize maps the raw server fields to a canonical status. It is
// a pure function: the same inputs always produce the same status.
//
// Ordering matters. The sentinel checks outrank the server's own status
// field because the provider is known to report "completed" with an
// empty payload under transient conditions; that case must be demoted
// back to processing rather than surfaced as a false completion.
func Canonicalize(rawText, rawError string, serverStatus types.Status) types.Status {
	if rawError == SentinelStillProcessing {
		return types.StatusProcessing
	}
	if rawError != "" {
		return types.StatusError
	}
	if serverStatus == types.StatusCompleted {
		if strings.TrimSpace(rawText) != "" {
			return types.StatusCompleted
		}
		// Terminal with no text and no error: a data-integrity
		// failure, not something another poll will fix.
		return types.StatusError
	}
	if serverStatus == types.StatusQueued || serverStatus == types.StatusError {
		return serverStatus
	}
	return types.StatusProcessing
}

// Job returns a copy of the job with its canonical status derived.
func Job(job types.Job) types.Job {
	job.Canonical = Canonicalize(job.RawText, job.RawError, job.ServerStatus)
	return job
}

// Snapshot canonicalizes every job in a server partition and re-buckets
// each one under its derived status. Jobs the server filed under a
// misleading bucket move to where they belong.
func Snapshot(p types.Partition) types.Partition {
	var out types.Partition
	for _, job := range p.All() {
		reconciled := Job(job)
		switch reconciled.Canonical {
		case types.StatusQueued:
			out.Queued = append(out.Queued, reconciled)
		case types.StatusProcessing:
			out.Processing = append(out.Processing, reconciled)
		case types.StatusCompleted:
			out.Completed = append(out.Completed, reconciled)
		case types.StatusError:
			out.Error = append(out.Error, reconciled)
		}
	}
	return out
}
