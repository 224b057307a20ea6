package store

import (
	"testing"
	"time"

	"github.com/codebuildervaibhav/textor-gateway/internal/reconcile"
	"github.com/codebuildervaibhav/textor-gateway/internal/types"
)

func at(hour int) time.Time {
	return time.Date(2026, 8, 27, hour, 0, 0, 0, time.UTC)
}

func snapshotWith(jobs ...types.Job) types.Partition {
	var p types.Partition
	for _, job := range jobs {
		switch job.ServerStatus {
		case types.StatusQueued:
			p.Queued = append(p.Queued, job)
		case types.StatusCompleted:
			p.Completed = append(p.Completed, job)
		case types.StatusError:
			p.Error = append(p.Error, job)
		default:
			p.Processing = append(p.Processing, job)
		}
	}
	return p
}

// TestApplySnapshotReconciles checks adoption canonicalizes and
// re-buckets every job.
func TestApplySnapshotReconciles(t *testing.T) {
	s := New()

	seq := s.BeginFetch()
	ok := s.ApplySnapshot(seq, snapshotWith(
		types.Job{ID: "1", RawText: "text", ServerStatus: types.StatusCompleted, CreatedAt: at(10)},
		types.Job{ID: "2", RawError: reconcile.SentinelStillProcessing, ServerStatus: types.StatusCompleted, CreatedAt: at(11)},
	), types.StatusCounts{}, 1, 1)
	if !ok {
		t.Fatal("snapshot should be adopted")
	}

	p := s.Partition()
	if len(p.Completed) != 1 || p.Completed[0].ID != "1" {
		t.Errorf("completed = %+v", p.Completed)
	}
	if len(p.Processing) != 1 || p.Processing[0].ID != "2" {
		t.Errorf("processing = %+v", p.Processing)
	}
	if p.Completed[0].Canonical != types.StatusCompleted {
		t.Error("adopted jobs must carry canonical status")
	}
	if !s.HasSnapshot() {
		t.Error("HasSnapshot() = false after adoption")
	}
}

// TestStaleSnapshotDropped verifies the in-flight guard: a response from
// a superseded request never overwrites a newer one.
func TestStaleSnapshotDropped(t *testing.T) {
	s := New()

	seqA := s.BeginFetch()
	seqB := s.BeginFetch()

	// Response B (the most recently issued) arrives first.
	if !s.ApplySnapshot(seqB, snapshotWith(
		types.Job{ID: "new", ServerStatus: types.StatusQueued, CreatedAt: at(12)},
	), types.StatusCounts{}, 1, 1) {
		t.Fatal("latest snapshot should be adopted")
	}

	// Response A straggles in and must be dropped.
	if s.ApplySnapshot(seqA, snapshotWith(
		types.Job{ID: "old", ServerStatus: types.StatusQueued, CreatedAt: at(9)},
	), types.StatusCounts{}, 1, 1) {
		t.Fatal("stale snapshot must be rejected")
	}

	if _, found := s.Find("old"); found {
		t.Error("stale snapshot data leaked into the store")
	}
	if _, found := s.Find("new"); !found {
		t.Error("adopted snapshot data missing")
	}

	// Re-applying the already-applied sequence is also rejected.
	if s.ApplySnapshot(seqB, types.Partition{}, types.StatusCounts{}, 1, 1) {
		t.Error("duplicate apply of the same sequence must be rejected")
	}
}

// TestCountsDerivedFromPartition verifies counts come from the
// reconciled lists once jobs are known, not the server's summary.
func TestCountsDerivedFromPartition(t *testing.T) {
	s := New()

	// Before any jobs arrive the server summary stands in.
	seq := s.BeginFetch()
	s.ApplySnapshot(seq, types.Partition{}, types.StatusCounts{Completed: 40, Queued: 2}, 1, 5)
	if got := s.Counts(); got.Completed != 40 || got.Total() != 42 {
		t.Errorf("empty-partition counts = %+v, want server summary", got)
	}

	// With jobs present, derived counts win even when the server
	// summary disagrees (paginated listing vs global counters).
	seq = s.BeginFetch()
	s.ApplySnapshot(seq, snapshotWith(
		types.Job{ID: "1", RawText: "t", ServerStatus: types.StatusCompleted, CreatedAt: at(10)},
		types.Job{ID: "2", ServerStatus: types.StatusCompleted, CreatedAt: at(11)}, // blank -> error
		types.Job{ID: "3", ServerStatus: types.StatusQueued, CreatedAt: at(12)},
	), types.StatusCounts{Completed: 40, Queued: 2}, 1, 5)

	got := s.Counts()
	if got.Completed != 1 || got.Error != 1 || got.Queued != 1 || got.Processing != 0 {
		t.Errorf("derived counts = %+v, want {1 completed, 1 error, 1 queued}", got)
	}
}

// TestFilteredNewestFirst checks tab filtering and descending creation order.
func TestFilteredNewestFirst(t *testing.T) {
	s := New()
	seq := s.BeginFetch()
	s.ApplySnapshot(seq, snapshotWith(
		types.Job{ID: "old", RawText: "a", ServerStatus: types.StatusCompleted, CreatedAt: at(8)},
		types.Job{ID: "mid", ServerStatus: types.StatusQueued, CreatedAt: at(10)},
		types.Job{ID: "new", RawText: "b", ServerStatus: types.StatusCompleted, CreatedAt: at(12)},
	), types.StatusCounts{}, 1, 1)

	all := s.Filtered("all")
	if len(all) != 3 {
		t.Fatalf("all tab has %d jobs, want 3", len(all))
	}
	for i, want := range []string{"new", "mid", "old"} {
		if all[i].ID != want {
			t.Errorf("all[%d] = %s, want %s", i, all[i].ID, want)
		}
	}

	completed := s.Filtered("completed")
	if len(completed) != 2 || completed[0].ID != "new" || completed[1].ID != "old" {
		t.Errorf("completed tab = %+v", completed)
	}

	if got := s.Filtered("queued"); len(got) != 1 || got[0].ID != "mid" {
		t.Errorf("queued tab = %+v", got)
	}
}

// TestNewestAndFind exercises the cross-bucket lookups.
func TestNewestAndFind(t *testing.T) {
	s := New()

	if _, found := s.Newest(); found {
		t.Error("empty store should have no newest job")
	}

	seq := s.BeginFetch()
	s.ApplySnapshot(seq, snapshotWith(
		types.Job{ID: "a", ServerStatus: types.StatusQueued, CreatedAt: at(9)},
		types.Job{ID: "b", RawText: "t", ServerStatus: types.StatusCompleted, CreatedAt: at(11)},
	), types.StatusCounts{}, 1, 1)

	newest, found := s.Newest()
	if !found || newest.ID != "b" {
		t.Errorf("newest = %+v, want job b", newest)
	}

	if job, found := s.Find("a"); !found || job.ID != "a" {
		t.Errorf("Find(a) = %+v, %v", job, found)
	}
	if _, found := s.Find("nope"); found {
		t.Error("Find on unknown id should report not found")
	}
}

// TestRemove drops a deleted job from its bucket.
func TestRemove(t *testing.T) {
	s := New()
	seq := s.BeginFetch()
	s.ApplySnapshot(seq, snapshotWith(
		types.Job{ID: "keep", RawText: "t", ServerStatus: types.StatusCompleted, CreatedAt: at(9)},
		types.Job{ID: "drop", RawText: "t", ServerStatus: types.StatusCompleted, CreatedAt: at(10)},
	), types.StatusCounts{}, 1, 1)

	if !s.Remove("drop") {
		t.Fatal("Remove should report success for a known id")
	}
	if s.Remove("drop") {
		t.Error("second Remove of the same id should report failure")
	}
	if _, found := s.Find("drop"); found {
		t.Error("removed job still findable")
	}
	if got := s.Counts().Completed; got != 1 {
		t.Errorf("completed count = %d after removal, want 1", got)
	}
}

// TestActiveSubmission exercises the single-active-job transitions.
func TestActiveSubmission(t *testing.T) {
	s := New()

	if _, ok := s.Active(); ok {
		t.Error("new store should be idle")
	}

	s.SetActive(types.Job{ID: "local-1", Canonical: types.StatusQueued})
	s.UpdateActive(func(j *types.Job) {
		j.ID = "42"
		j.Canonical = types.StatusProcessing
	})

	active, ok := s.Active()
	if !ok || active.ID != "42" || active.Canonical != types.StatusProcessing {
		t.Errorf("active = %+v, %v", active, ok)
	}

	s.ClearActive()
	if _, ok := s.Active(); ok {
		t.Error("ClearActive should reset to idle")
	}
	// UpdateActive on an idle store is a no-op, not a panic.
	s.UpdateActive(func(j *types.Job) { j.ID = "x" })
}

// TestPagesMetadata checks pagination metadata tracks the last snapshot.
func TestPagesMetadata(t *testing.T) {
	s := New()
	seq := s.BeginFetch()
	s.ApplySnapshot(seq, types.Partition{}, types.StatusCounts{}, 3, 9)

	current, total := s.Pages()
	if current != 3 || total != 9 {
		t.Errorf("pages = %d/%d, want 3/9", current, total)
	}
}
