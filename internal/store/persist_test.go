package store

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"stepwise/internal/logging"
	"stepwise/internal/recipe"
	"stepwise/internal/storage"
)

func startPersister(t *testing.T, f *fixture, clock *manualClock) *Persister {
	t.Helper()
	p := NewPersister(f.memory, WithAfterFunc(clock.AfterFunc), WithPersistLogger(logging.NewNop()))
	p.Start(f.store)
	return p
}

func TestPersisterCoalescesBursts(t *testing.T) {
	f := newFixture(t)
	f.hydrate(t)
	clock := &manualClock{}
	p := startPersister(t, f, clock)

	mustTask(t, f.store, "task", 0)
	for i := range 10000 {
		if err := f.store.SetTranscript(strconv.Itoa(i)); err != nil {
			t.Fatalf("SetTranscript: %v", err)
		}
	}
	if got := clock.Armed(); got != 1 {
		t.Fatalf("armed timers = %d, want 1", got)
	}
	if f.memory.Saves() != 0 {
		t.Fatal("nothing should be written before the quiet period ends")
	}
	if fired := clock.Fire(); fired != 1 {
		t.Fatalf("fired = %d", fired)
	}
	if err := p.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if got := f.memory.Saves(); got != 1 {
		t.Fatalf("saves = %d, want 1", got)
	}
	saved := f.memory.GetProject(context.Background())
	if len(saved.Tasks) != 1 || saved.Transcript != "9999" {
		t.Fatalf("saved = %d tasks, transcript %q", len(saved.Tasks), saved.Transcript)
	}
}

func TestPersisterStopFlushesPendingWrite(t *testing.T) {
	f := newFixture(t)
	f.hydrate(t)
	clock := &manualClock{}
	p := startPersister(t, f, clock)
	mustTask(t, f.store, "a", 1)
	if !p.Pending() {
		t.Fatal("expected a pending write")
	}
	if err := p.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if f.memory.Saves() != 1 || p.Pending() {
		t.Fatalf("saves = %d pending = %v", f.memory.Saves(), p.Pending())
	}
	if clock.Fire() != 0 {
		t.Fatal("the stopped timer must not fire")
	}
	mustTask(t, f.store, "b", 2)
	if clock.Armed() != 0 {
		t.Fatal("a stopped persister must not schedule writes")
	}
}

func TestPersisterIgnoresUnhydratedStore(t *testing.T) {
	f := newFixture(t)
	clock := &manualClock{}
	p := startPersister(t, f, clock)
	mustTask(t, f.store, "early", 0)
	if clock.Armed() != 0 {
		t.Fatal("changes before hydration must not be scheduled")
	}
	if err := p.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if f.memory.Saves() != 0 {
		t.Fatal("an unhydrated store must never overwrite the stored profile")
	}
}

func TestPersisterWritesBackMigratedRecord(t *testing.T) {
	f := newFixture(t)
	f.memory.Seed([]byte(legacyRecord))
	f.hydrate(t)
	clock := &manualClock{}
	startPersister(t, f, clock)
	if clock.Fire() != 1 {
		t.Fatal("migrated data should be scheduled at start")
	}
	stored := f.memory.GetProject(context.Background())
	for _, task := range stored.Tasks {
		if task.ID == "" || task.HasLegacyChildren() {
			t.Fatalf("record not upgraded: %+v", task)
		}
	}
	if len(stored.TodoProjects) != 1 || len(stored.TodoRows) != 0 {
		t.Fatalf("flat rows should be stored inside a project: %+v", stored)
	}
}

func TestPersisterFailureRaisesExportNotice(t *testing.T) {
	f := newFixture(t)
	f.hydrate(t)
	clock := &manualClock{}
	p := startPersister(t, f, clock)
	f.memory.FailSaves(storage.ErrQuotaExceeded)
	mustTask(t, f.store, "a", 0)
	clock.Fire()

	notice := f.store.State().Notice
	if notice == nil || notice.Reaction != ReactionExportBackup {
		t.Fatalf("notice = %+v", notice)
	}
	if clock.Armed() != 0 {
		t.Fatal("raising the notice must not schedule another write")
	}

	f.memory.FailSaves(nil)
	if err := p.Stop(context.Background()); err != nil {
		t.Fatalf("Stop should retry the failed write: %v", err)
	}
	if got := len(f.memory.GetProject(context.Background()).Tasks); got != 1 {
		t.Fatalf("saved tasks = %d", got)
	}
}

func TestPersisterFlushReportsError(t *testing.T) {
	f := newFixture(t)
	f.hydrate(t)
	p := startPersister(t, f, &manualClock{})
	boom := errors.New("disk gone")
	f.memory.FailSaves(boom)
	if err := p.Flush(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Flush = %v", err)
	}
}

func TestPersisterRealDebounce(t *testing.T) {
	f := newFixture(t)
	f.hydrate(t)
	for i := range 50 {
		mustTask(t, f.store, "t", float64(i))
	}
	p := NewPersister(f.memory, WithDebounce(20*time.Millisecond), WithPersistLogger(logging.NewNop()))
	p.Start(f.store)
	defer func() { _ = p.Stop(context.Background()) }()

	deadline := time.Now().Add(2 * time.Second)
	for f.memory.Saves() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(60 * time.Millisecond)
	if got := f.memory.Saves(); got != 1 {
		t.Fatalf("saves = %d, want 1", got)
	}
}

func TestSavedProfileReloads(t *testing.T) {
	f := newFixture(t)
	f.hydrate(t)
	p := startPersister(t, f, &manualClock{})
	task := mustTask(t, f.store, "knead", 12)
	step, _ := f.store.AddStep(task.ID, "", "fold")
	if _, err := f.store.ToggleStep(step.ID); err != nil {
		t.Fatalf("ToggleStep: %v", err)
	}
	if _, err := f.store.AddProject("Errands"); err != nil {
		t.Fatalf("AddProject: %v", err)
	}
	if _, err := f.store.AddRow("post office", "stamps"); err != nil {
		t.Fatalf("AddRow: %v", err)
	}
	if err := p.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	want := f.store.State()

	reloaded := newFixtureWith(t, f.memory)
	reloaded.hydrate(t)
	got := reloaded.store.State()
	if got.Revision != 0 {
		t.Fatal("reloading saved data must not count as a change")
	}
	if len(got.Tasks) != 1 || got.Tasks[0].ID != task.ID || !got.Tasks[0].SubSteps[0].IsCompleted {
		t.Fatalf("tasks = %+v", got.Tasks)
	}
	if got.ActiveProjectID != want.ActiveProjectID || got.NextProjectNumber != 3 {
		t.Fatalf("projects = %q %d", got.ActiveProjectID, got.NextProjectNumber)
	}
	if rows := got.TodoRows(); len(rows) != 1 || rows[0].Steps[0] != "stamps" {
		t.Fatalf("rows = %+v", rows)
	}
	if got.ProjectType != recipe.ProjectVideo {
		t.Fatalf("project type = %q", got.ProjectType)
	}
}
