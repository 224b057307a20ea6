// Package store holds the client-local view of all known transcription
// jobs. It is the single source of truth consumed by every view.
package store

import (
	"sort"
	"sync"

	"github.com/codebuildervaibhav/textor-gateway/internal/reconcile"
	"github.com/codebuildervaibhav/textor-gateway/internal/types"
)

// Store is the lifecycle store. Snapshots are swapped wholesale; fields
// are never patched individually. Writes come only from the history
// refresh path and the active-submission transitions.
type Store struct {
	mu           sync.RWMutex
	partition    types.Partition
	serverCounts types.StatusCounts
	currentPage  int
	totalPages   int
	hasSnapshot  bool

	issuedSeq  uint64
	appliedSeq uint64

	active *types.Job
}

// New creates an empty store.
func New() *Store {
	return &Store{}
}

// BeginFetch reserves a sequence number for a history request about to
// be issued. Responses are applied in issue order: a late response from
// a superseded request is dropped.
func (s *Store) BeginFetch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issuedSeq++
	return s.issuedSeq
}

// ApplySnapshot atomically adopts a fetched snapshot. Every job is
// canonicalized and re-bucketed on the way in. It reports whether the
// snapshot was adopted; snapshots from requests that are no longer the
// most recently issued are rejected.
func (s *Store) ApplySnapshot(seq uint64, partition types.Partition, counts types.StatusCounts, currentPage, totalPages int) bool {
	reconciled := reconcile.Snapshot(partition)

	s.mu.Lock()
	defer s.mu.Unlock()

	if seq != s.issuedSeq || seq <= s.appliedSeq {
		return false
	}
	s.appliedSeq = seq

	s.partition = reconciled
	s.serverCounts = counts
	s.currentPage = currentPage
	s.totalPages = totalPages
	s.hasSnapshot = true
	return true
}

// Counts returns the per-status aggregate. Once jobs are known locally
// the counts are always recomputed from the partitioned lists; the
// server's own counter summary is only used before the first jobs
// arrive, so the two numbers can never silently diverge.
func (s *Store) Counts() types.StatusCounts {
	s.mu.RLock()
	defer s.mu.RUnlock()

	derived := types.StatusCounts{
		Queued:     len(s.partition.Queued),
		Processing: len(s.partition.Processing),
		Completed:  len(s.partition.Completed),
		Error:      len(s.partition.Error),
	}
	if derived.Total() == 0 {
		return s.serverCounts
	}
	return derived
}

// Partition returns a copy of the current four-way job grouping.
func (s *Store) Partition() types.Partition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return types.Partition{
		Queued:     copyJobs(s.partition.Queued),
		Processing: copyJobs(s.partition.Processing),
		Completed:  copyJobs(s.partition.Completed),
		Error:      copyJobs(s.partition.Error),
	}
}

// Filtered returns the jobs matching a view tab, newest first. The
// "all" tab flattens every bucket.
func (s *Store) Filtered(tab string) []types.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var jobs []types.Job
	switch types.Status(tab) {
	case types.StatusQueued:
		jobs = copyJobs(s.partition.Queued)
	case types.StatusProcessing:
		jobs = copyJobs(s.partition.Processing)
	case types.StatusCompleted:
		jobs = copyJobs(s.partition.Completed)
	case types.StatusError:
		jobs = copyJobs(s.partition.Error)
	default:
		jobs = s.partition.All()
	}

	sort.SliceStable(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs
}

// Newest returns the most recently created job across all statuses.
func (s *Store) Newest() (types.Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var newest types.Job
	found := false
	for _, job := range s.partition.All() {
		if !found || job.CreatedAt.After(newest.CreatedAt) {
			newest = job
			found = true
		}
	}
	return newest, found
}

// Find looks a job up by id across all statuses.
func (s *Store) Find(id string) (types.Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, job := range s.partition.All() {
		if job.ID == id {
			return job, true
		}
	}
	return types.Job{}, false
}

// Remove drops a job from whichever bucket holds it, after a successful
// provider-side delete.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := false
	for _, bucket := range []*[]types.Job{
		&s.partition.Queued,
		&s.partition.Processing,
		&s.partition.Completed,
		&s.partition.Error,
	} {
		kept := (*bucket)[:0]
		for _, job := range *bucket {
			if job.ID == id {
				removed = true
				continue
			}
			kept = append(kept, job)
		}
		*bucket = kept
	}
	return removed
}

// Pages returns the pagination metadata of the adopted snapshot.
func (s *Store) Pages() (current, total int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentPage, s.totalPages
}

// HasSnapshot reports whether any server snapshot was adopted yet.
func (s *Store) HasSnapshot() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasSnapshot
}

// SetActive records the single submission currently mid-upload-or-poll.
func (s *Store) SetActive(job types.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := job
	s.active = &copied
}

// UpdateActive mutates the active submission in place, if one exists.
func (s *Store) UpdateActive(fn func(*types.Job)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil {
		fn(s.active)
	}
}

// Active returns a copy of the active submission.
func (s *Store) Active() (types.Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.active == nil {
		return types.Job{}, false
	}
	return *s.active, true
}

// ClearActive resets the store to idle.
func (s *Store) ClearActive() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = nil
}

func copyJobs(jobs []types.Job) []types.Job {
	if len(jobs) == 0 {
		return nil
	}
	out := make([]types.Job, len(jobs))
	copy(out, jobs)
	return out
}
