package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/codebuildervaibhav/textor-gateway/internal/provider"
	"github.com/codebuildervaibhav/textor-gateway/internal/store"
	"github.com/codebuildervaibhav/textor-gateway/internal/types"
)

type fakeUploader struct {
	mu     sync.Mutex
	result provider.UploadResult
	err    error
	gate   chan struct{} // if non-nil, Upload blocks until closed
	calls  int
}

func (f *fakeUploader) Upload(ctx context.Context, req provider.UploadRequest) (provider.UploadResult, error) {
	f.mu.Lock()
	f.calls++
	gate := f.gate
	result, err := f.result, f.err
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return result, err
}

func (f *fakeUploader) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeFetcher struct {
	mu        sync.Mutex
	snapshots []*provider.Snapshot
	errs      []error
	calls     int
}

// History pops the next scripted response; the last one repeats.
func (f *fakeFetcher) History(ctx context.Context, page int, status string) (*provider.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	if i >= len(f.snapshots) {
		i = len(f.snapshots) - 1
	}
	if i < 0 {
		return nil, errors.New("no scripted response")
	}
	if err := f.errs[i]; err != nil {
		return nil, err
	}
	return f.snapshots[i], nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func processingSnapshot(id string) *provider.Snapshot {
	return &provider.Snapshot{
		Partition: types.Partition{
			Processing: []types.Job{{
				ID:           id,
				ServerStatus: types.StatusProcessing,
				CreatedAt:    time.Now().UTC(),
			}},
		},
		CurrentPage: 1,
		TotalPages:  1,
	}
}

func completedSnapshot(id, text string) *provider.Snapshot {
	now := time.Now().UTC()
	return &provider.Snapshot{
		Partition: types.Partition{
			Completed: []types.Job{{
				ID:           id,
				RawText:      text,
				ServerStatus: types.StatusCompleted,
				CreatedAt:    now,
				CompletedAt:  &now,
			}},
		},
		CurrentPage: 1,
		TotalPages:  1,
	}
}

func newTestManager(up *fakeUploader, fetch *fakeFetcher) (*Manager, *store.Store, *EventBus) {
	st := store.New()
	events := NewEventBus(100)
	m := NewManager(up, fetch, st, events, time.Millisecond, 5)
	m.sleep = func(time.Duration) {}
	return m, st, events
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// TestSubmissionCompletesAfterPolling drives the canonical flow: queued
// upload, one processing tick, then completion.
func TestSubmissionCompletesAfterPolling(t *testing.T) {
	up := &fakeUploader{result: provider.UploadResult{Kind: provider.ResultQueued, ID: "42"}}
	fetch := &fakeFetcher{
		snapshots: []*provider.Snapshot{processingSnapshot("42"), completedSnapshot("42", "final transcript")},
		errs:      []error{nil, nil},
	}
	m, st, _ := newTestManager(up, fetch)

	var completed types.Job
	done := make(chan struct{})
	m.SetCompletionHook(func(job types.Job) {
		completed = job
		close(done)
	})

	job := m.Begin([]byte("payload"), "audio/wav", "clip.wav", "en")
	if job.ID == "" || job.Canonical != types.StatusQueued {
		t.Fatalf("optimistic job = %+v", job)
	}
	if _, ok := st.Active(); !ok {
		t.Fatal("active submission should be set immediately")
	}

	<-done
	waitFor(t, "machine to settle", func() bool { return m.State() == StateDone })

	if completed.ID != "42" || completed.RawText != "final transcript" {
		t.Errorf("completion hook got %+v", completed)
	}
	if got := fetch.callCount(); got != 2 {
		t.Errorf("fetcher called %d times, want 2", got)
	}
	if _, ok := st.Active(); ok {
		t.Error("active slot should be cleared after completion")
	}
	if newest, ok := st.Newest(); !ok || newest.Canonical != types.StatusCompleted {
		t.Errorf("store newest = %+v, %v", newest, ok)
	}
}

// TestDirectResultSkipsPolling checks an inline transcript completes
// without any poll ticks.
func TestDirectResultSkipsPolling(t *testing.T) {
	up := &fakeUploader{result: provider.UploadResult{Kind: provider.ResultDirect, Text: "instant"}}
	fetch := &fakeFetcher{
		snapshots: []*provider.Snapshot{completedSnapshot("1", "instant")},
		errs:      []error{nil},
	}
	m, _, _ := newTestManager(up, fetch)

	done := make(chan struct{})
	m.SetCompletionHook(func(types.Job) { close(done) })

	m.Begin([]byte("payload"), "audio/wav", "", "")
	<-done
	waitFor(t, "machine to settle", func() bool { return m.State() == StateDone })

	// Only the single post-completion refresh, no polling loop.
	waitFor(t, "post-completion refresh", func() bool { return fetch.callCount() == 1 })
}

// TestUploadFailureResetsActive checks an upload error lands in errored
// state with the active slot released.
func TestUploadFailureResetsActive(t *testing.T) {
	up := &fakeUploader{err: &types.ValidationError{Message: "unsupported audio format"}}
	fetch := &fakeFetcher{}
	m, st, events := newTestManager(up, fetch)

	m.Begin([]byte("payload"), "audio/wav", "", "")
	waitFor(t, "errored state", func() bool { return m.State() == StateErrored })

	if m.LastError() != "unsupported audio format" {
		t.Errorf("last error = %q", m.LastError())
	}
	if _, ok := st.Active(); ok {
		t.Error("active slot should be cleared on failure")
	}

	sawError := false
	for _, event := range events.Since(0) {
		if event.Type == EventTypeError && event.State == StateErrored {
			sawError = true
		}
	}
	if !sawError {
		t.Error("no errored event published")
	}
}

// TestCancelSupersedesUpload checks a cancelled submission discards its
// in-flight upload result.
func TestCancelSupersedesUpload(t *testing.T) {
	gate := make(chan struct{})
	up := &fakeUploader{
		result: provider.UploadResult{Kind: provider.ResultQueued, ID: "42"},
		gate:   gate,
	}
	fetch := &fakeFetcher{
		snapshots: []*provider.Snapshot{processingSnapshot("42")},
		errs:      []error{nil},
	}
	m, st, _ := newTestManager(up, fetch)

	m.Begin([]byte("payload"), "audio/wav", "", "")
	m.Cancel()
	close(gate)

	if m.State() != StateIdle {
		t.Errorf("state = %s, want idle", m.State())
	}
	if _, ok := st.Active(); ok {
		t.Error("cancel should clear the active slot")
	}

	// The superseded goroutine must not start polling.
	time.Sleep(50 * time.Millisecond)
	if got := fetch.callCount(); got != 0 {
		t.Errorf("superseded submission polled %d times, want 0", got)
	}
	if m.State() != StateIdle {
		t.Errorf("state = %s after discard, want idle", m.State())
	}
}

// TestNewSubmissionSupersedesOld checks a second Begin invalidates the
// first submission's continuation.
func TestNewSubmissionSupersedesOld(t *testing.T) {
	gate := make(chan struct{})
	up := &fakeUploader{err: errors.New("stale upload failed"), gate: gate}
	fetch := &fakeFetcher{
		snapshots: []*provider.Snapshot{completedSnapshot("7", "second wins")},
		errs:      []error{nil},
	}
	m, _, _ := newTestManager(up, fetch)

	m.Begin([]byte("first"), "audio/wav", "", "")
	// The first upload captures the error script on entry and then
	// parks on the gate.
	waitFor(t, "first upload to start", func() bool { return up.callCount() == 1 })

	// Second submission: switch the uploader to direct success before
	// releasing the first upload.
	up.mu.Lock()
	up.err = nil
	up.result = provider.UploadResult{Kind: provider.ResultDirect, Text: "second wins"}
	up.gate = nil
	up.mu.Unlock()

	done := make(chan struct{})
	m.SetCompletionHook(func(types.Job) { close(done) })
	m.Begin([]byte("second"), "audio/wav", "", "")

	<-done
	waitFor(t, "machine to settle", func() bool { return m.State() == StateDone })

	// Release the first upload; its error must not flip the machine.
	close(gate)
	time.Sleep(50 * time.Millisecond)
	if m.State() != StateDone {
		t.Errorf("state = %s, stale submission overrode the newer one", m.State())
	}
	if m.LastError() != "" {
		t.Errorf("last error = %q, want empty", m.LastError())
	}
}

// TestPollBudgetExhausted checks a stuck job resolves to done with a
// still-processing message rather than an error.
func TestPollBudgetExhausted(t *testing.T) {
	up := &fakeUploader{result: provider.UploadResult{Kind: provider.ResultQueued, ID: "42"}}
	fetch := &fakeFetcher{
		snapshots: []*provider.Snapshot{processingSnapshot("42")},
		errs:      []error{nil},
	}
	m, st, events := newTestManager(up, fetch)

	m.Begin([]byte("payload"), "audio/wav", "", "")
	waitFor(t, "budget exhaustion", func() bool { return m.State() == StateDone })

	if got := fetch.callCount(); got != 5 {
		t.Errorf("fetcher called %d times, want the full 5-tick budget", got)
	}
	if _, ok := st.Active(); ok {
		t.Error("active slot should be released on exhaustion")
	}
	if m.LastError() != "" {
		t.Errorf("exhaustion is not an error, got %q", m.LastError())
	}

	sawStillProcessing := false
	for _, event := range events.Since(0) {
		if event.State == StateDone && event.Status == types.StatusProcessing {
			sawStillProcessing = true
		}
	}
	if !sawStillProcessing {
		t.Error("no still-processing resolution event published")
	}
}

// TestPollSurvivesTransientFetchError checks one failed refresh does not
// abort the polling loop.
func TestPollSurvivesTransientFetchError(t *testing.T) {
	up := &fakeUploader{result: provider.UploadResult{Kind: provider.ResultQueued, ID: "42"}}
	fetch := &fakeFetcher{
		snapshots: []*provider.Snapshot{nil, completedSnapshot("42", "recovered")},
		errs:      []error{&types.HistoryFetchError{Err: errors.New("connection reset")}, nil},
	}
	m, _, _ := newTestManager(up, fetch)

	done := make(chan struct{})
	m.SetCompletionHook(func(types.Job) { close(done) })

	m.Begin([]byte("payload"), "audio/wav", "", "")
	<-done
	waitFor(t, "machine to settle", func() bool { return m.State() == StateDone })

	if got := fetch.callCount(); got != 2 {
		t.Errorf("fetcher called %d times, want 2 (failed tick + success)", got)
	}
}

// TestRefreshFailureKeepsSnapshot checks a failed manual refresh leaves
// the previously adopted data untouched.
func TestRefreshFailureKeepsSnapshot(t *testing.T) {
	fetch := &fakeFetcher{
		snapshots: []*provider.Snapshot{completedSnapshot("1", "kept"), nil},
		errs:      []error{nil, &types.HistoryFetchError{Err: errors.New("boom")}},
	}
	m, st, _ := newTestManager(&fakeUploader{}, fetch)

	if err := m.Refresh(context.Background(), 0, ""); err != nil {
		t.Fatalf("first Refresh() error = %v", err)
	}
	if err := m.Refresh(context.Background(), 0, ""); err == nil {
		t.Fatal("second Refresh() should fail")
	}

	if _, found := st.Find("1"); !found {
		t.Error("failed refresh wiped the retained snapshot")
	}
	if m.LastError() == "" {
		t.Error("failed refresh should set the error slot")
	}
}

// TestEventBusSequencing checks ordering, incremental reads, and the
// bounded buffer.
func TestEventBusSequencing(t *testing.T) {
	bus := NewEventBus(3)

	for i := 0; i < 5; i++ {
		bus.Publish(Event{Type: EventTypeProgress, Percent: i})
	}

	all := bus.Since(0)
	if len(all) != 3 {
		t.Fatalf("buffer holds %d events, want 3", len(all))
	}
	if all[0].Seq != 3 || all[2].Seq != 5 {
		t.Errorf("retained sequences %d..%d, want 3..5", all[0].Seq, all[2].Seq)
	}

	tail := bus.Since(4)
	if len(tail) != 1 || tail[0].Percent != 4 {
		t.Errorf("Since(4) = %+v, want the final event", tail)
	}
	if got := bus.Since(5); len(got) != 0 {
		t.Errorf("Since(latest) = %+v, want empty", got)
	}
}
