// Package lifecycle drives a submission from upload through polling to
// its terminal state. One explicit state machine replaces the scattered
// loading/polling flags a naive client accumulates.
package lifecycle

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codebuildervaibhav/textor-gateway/internal/provider"
	"github.com/codebuildervaibhav/textor-gateway/internal/store"
	"github.com/codebuildervaibhav/textor-gateway/internal/types"
)

// State names the submission machine's position.
type State string

const (
	StateIdle      State = "idle"
	StateUploading State = "uploading"
	StatePolling   State = "polling"
	StateDone      State = "done"
	StateErrored   State = "errored"
)

// Uploader transmits a normalized payload to the provider.
type Uploader interface {
	Upload(ctx context.Context, req provider.UploadRequest) (provider.UploadResult, error)
}

// Fetcher retrieves the server-authoritative history partition.
type Fetcher interface {
	History(ctx context.Context, page int, status string) (*provider.Snapshot, error)
}

// Manager owns the single active submission. Starting a new submission
// supersedes any running one: the generation counter invalidates the
// previous upload continuation and polling loop.
type Manager struct {
	uploader Uploader
	fetcher  Fetcher
	store    *store.Store
	events   *EventBus

	pollInterval time.Duration
	maxPollTicks int
	sleep        func(time.Duration)

	mu         sync.Mutex
	state      State
	lastError  string
	generation uint64

	onCompleted func(types.Job)
}

// NewManager wires the submission machine. pollInterval and
// maxPollTicks bound the polling loop; a stuck job resolves to a
// "still processing" outcome instead of polling forever.
func NewManager(uploader Uploader, fetcher Fetcher, st *store.Store, events *EventBus, pollInterval time.Duration, maxPollTicks int) *Manager {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	if maxPollTicks <= 0 {
		maxPollTicks = 90
	}
	return &Manager{
		uploader:     uploader,
		fetcher:      fetcher,
		store:        st,
		events:       events,
		pollInterval: pollInterval,
		maxPollTicks: maxPollTicks,
		sleep:        time.Sleep,
		state:        StateIdle,
	}
}

// SetCompletionHook registers a callback invoked once per completed
// transcription, used for local persistence and export.
func (m *Manager) SetCompletionHook(fn func(types.Job)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onCompleted = fn
}

// State returns the current machine state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// LastError returns the single user-visible error slot; the most recent
// error wins.
func (m *Manager) LastError() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastError
}

// Begin starts a new submission and returns the optimistic local job
// immediately; upload and polling continue asynchronously. Any active
// submission is superseded.
func (m *Manager) Begin(payload []byte, contentType, filename, languageCode string) types.Job {
	job := types.Job{
		ID:           "local-" + uuid.New().String(),
		AudioRef:     filename,
		LanguageCode: languageCode,
		CreatedAt:    time.Now().UTC(),
		ServerStatus: types.StatusQueued,
		Canonical:    types.StatusQueued,
	}

	m.mu.Lock()
	m.generation++
	gen := m.generation
	m.state = StateUploading
	m.lastError = ""
	m.mu.Unlock()

	m.store.SetActive(job)
	m.publishState(job.ID, StateUploading, types.StatusQueued, "Upload started")

	go m.run(gen, job, provider.UploadRequest{
		Payload:      payload,
		ContentType:  contentType,
		Filename:     filename,
		LanguageCode: languageCode,
		OnProgress: func(percent int) {
			if !m.stale(gen) {
				m.events.Publish(Event{JobID: job.ID, Type: EventTypeProgress, Percent: percent})
			}
		},
	})
	return job
}

// Cancel supersedes any running upload or polling loop and returns the
// machine to idle.
func (m *Manager) Cancel() {
	m.mu.Lock()
	m.generation++
	m.state = StateIdle
	m.mu.Unlock()

	m.store.ClearActive()
	m.publishState("", StateIdle, "", "Submission cancelled")
}

// Refresh issues one history fetch and adopts the snapshot. A response
// superseded by a later request is dropped by the store; a failed fetch
// leaves the previous snapshot untouched.
func (m *Manager) Refresh(ctx context.Context, page int, status string) error {
	seq := m.store.BeginFetch()
	snap, err := m.fetcher.History(ctx, page, status)
	if err != nil {
		m.setLastError(err.Error())
		return err
	}
	m.store.ApplySnapshot(seq, snap.Partition, snap.Counts, snap.CurrentPage, snap.TotalPages)
	return nil
}

// run carries a submission from upload completion into polling.
func (m *Manager) run(gen uint64, job types.Job, req provider.UploadRequest) {
	ctx := context.Background()

	result, err := m.uploader.Upload(ctx, req)
	if m.stale(gen) {
		log.Printf("Submission %s superseded during upload, discarding result", job.ID)
		return
	}
	if err != nil {
		m.failSubmission(job.ID, err.Error())
		return
	}

	switch result.Kind {
	case provider.ResultDirect:
		now := time.Now().UTC()
		job.RawText = result.Text
		job.Canonical = types.StatusCompleted
		job.ServerStatus = types.StatusCompleted
		job.CompletedAt = &now
		m.finishCompleted(gen, job)
		if err := m.Refresh(ctx, 0, ""); err != nil {
			log.Printf("Post-completion history refresh failed: %v", err)
		}

	case provider.ResultQueued:
		job.ID = result.ID
		job.Canonical = types.StatusProcessing
		m.store.SetActive(job)
		m.setState(StatePolling)
		m.publishState(job.ID, StatePolling, types.StatusProcessing, "Upload accepted, waiting for transcription")
		m.poll(ctx, gen, job.ID)

	default:
		m.failSubmission(job.ID, "provider returned an unrecognized upload result")
	}
}

// poll refreshes the history until the newest job reaches a terminal
// status, the tick budget runs out, or the loop is superseded. The
// generation switch is checked before scheduling every subsequent tick;
// an in-flight refresh from a superseded loop cannot clobber the store
// because of the fetch sequence guard.
func (m *Manager) poll(ctx context.Context, gen uint64, jobID string) {
	for tick := 0; tick < m.maxPollTicks; tick++ {
		if m.stale(gen) {
			return
		}

		if err := m.Refresh(ctx, 0, ""); err != nil {
			m.events.Publish(Event{
				JobID:   jobID,
				Type:    EventTypeError,
				Message: err.Error(),
			})
		} else if newest, ok := m.store.Newest(); ok && newest.Canonical.Terminal() {
			if m.stale(gen) {
				return
			}
			m.finishTerminal(gen, newest)
			return
		}

		if m.stale(gen) {
			return
		}
		m.sleep(m.pollInterval)
	}

	if m.stale(gen) {
		return
	}

	// Budget exhausted: resolve without declaring an error. The job
	// stays in its server-reported bucket and will show up on the
	// next manual refresh.
	m.setState(StateDone)
	m.store.ClearActive()
	m.events.Publish(Event{
		JobID:   jobID,
		Type:    EventTypeState,
		State:   StateDone,
		Status:  types.StatusProcessing,
		Message: "Still processing, check back later",
	})
}

// finishTerminal resolves the active submission from the newest
// reconciled job.
func (m *Manager) finishTerminal(gen uint64, job types.Job) {
	if job.Canonical == types.StatusCompleted {
		m.finishCompleted(gen, job)
		return
	}

	message := job.RawError
	if message == "" {
		message = "transcription failed"
	}
	m.failSubmission(job.ID, message)
}

func (m *Manager) finishCompleted(gen uint64, job types.Job) {
	m.store.UpdateActive(func(active *types.Job) {
		*active = job
	})

	m.mu.Lock()
	hook := m.onCompleted
	m.state = StateDone
	m.mu.Unlock()

	if hook != nil {
		hook(job)
	}

	m.events.Publish(Event{
		JobID:  job.ID,
		Type:   EventTypeResult,
		State:  StateDone,
		Status: types.StatusCompleted,
		Text:   job.RawText,
	})
	m.store.ClearActive()
}

// failSubmission aborts the current attempt and resets the active slot.
func (m *Manager) failSubmission(jobID, message string) {
	m.mu.Lock()
	m.state = StateErrored
	m.lastError = message
	m.mu.Unlock()

	m.store.ClearActive()
	m.events.Publish(Event{
		JobID:   jobID,
		Type:    EventTypeError,
		State:   StateErrored,
		Status:  types.StatusError,
		Message: message,
	})
}

func (m *Manager) publishState(jobID string, state State, status types.Status, message string) {
	m.events.Publish(Event{
		JobID:   jobID,
		Type:    EventTypeState,
		State:   state,
		Status:  status,
		Message: message,
	})
}

func (m *Manager) setState(state State) {
	m.mu.Lock()
	m.state = state
	m.mu.Unlock()
}

func (m *Manager) setLastError(message string) {
	m.mu.Lock()
	m.lastError = message
	m.mu.Unlock()
}

// stale reports whether gen has been superseded by a newer submission
// or a cancellation.
func (m *Manager) stale(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return gen != m.generation
}
