package store

import (
	"errors"
	"reflect"
	"slices"
	"testing"

	"stepwise/internal/recipe"
	"stepwise/internal/services"
)

func TestAddTaskKeepsChronologicalOrder(t *testing.T) {
	f := newFixture(t)
	f.hydrate(t)
	mustTask(t, f.store, "late", 90)
	mustTask(t, f.store, "early", 5)
	mustTask(t, f.store, "middle", 40)
	mustTask(t, f.store, "tie", 40)

	got := taskNames(f.store.State().Tasks)
	want := []string{"early", "middle", "tie", "late"}
	if !slices.Equal(got, want) {
		t.Fatalf("order = %v, want %v", got, want)
	}

	if _, err := f.store.AddTask("  ", "", 1); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("blank name: %v", err)
	}
	if _, err := f.store.AddTask("neg", "", -1); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("negative timestamp: %v", err)
	}
}

func TestUpdateTaskRepositionsOnTimestampChange(t *testing.T) {
	f := newFixture(t)
	f.hydrate(t)
	a := mustTask(t, f.store, "a", 10)
	mustTask(t, f.store, "b", 20)
	mustTask(t, f.store, "c", 30)

	ts := 25.0
	name := "a moved"
	if err := f.store.UpdateTask(a.ID, TaskPatch{TaskName: &name, TimestampSeconds: &ts}); err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	if got := taskNames(f.store.State().Tasks); !slices.Equal(got, []string{"b", "a moved", "c"}) {
		t.Fatalf("order = %v", got)
	}
	if err := f.store.UpdateTask("missing", TaskPatch{Description: &name}); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("missing task: %v", err)
	}
}

func TestStepEditsAtAnyDepth(t *testing.T) {
	f := newFixture(t)
	f.hydrate(t)
	task := mustTask(t, f.store, "bake", 0)
	top, err := f.store.AddStep(task.ID, "", "mix")
	if err != nil {
		t.Fatalf("AddStep: %v", err)
	}
	mid, err := f.store.AddStep(task.ID, top.ID, "whisk eggs")
	if err != nil {
		t.Fatalf("AddStep nested: %v", err)
	}
	deep, err := f.store.AttachSubSteps(task.ID, mid.ID, []string{"crack", " ", "beat"})
	if err != nil {
		t.Fatalf("AttachSubSteps: %v", err)
	}
	if len(deep) != 2 {
		t.Fatalf("blank texts must be dropped, got %d steps", len(deep))
	}

	done, err := f.store.ToggleStep(deep[1].ID)
	if err != nil || !done {
		t.Fatalf("ToggleStep = %v, %v", done, err)
	}
	if err := f.store.UpdateStepText(deep[0].ID, "crack two"); err != nil {
		t.Fatalf("UpdateStepText: %v", err)
	}

	state := f.store.State()
	_, beat := recipe.FindTaskStep(state.Tasks, deep[1].ID)
	if beat == nil || !beat.IsCompleted {
		t.Fatalf("deep toggle lost: %+v", beat)
	}
	total, completed := recipe.CountSteps(state.Tasks[0].SubSteps)
	if total != 4 || completed != 1 {
		t.Fatalf("CountSteps = %d/%d", completed, total)
	}

	if err := f.store.DeleteStep(mid.ID); err != nil {
		t.Fatalf("DeleteStep: %v", err)
	}
	if total, _ := recipe.CountSteps(f.store.State().Tasks[0].SubSteps); total != 1 {
		t.Fatalf("subtree not removed, total = %d", total)
	}
	if _, err := f.store.ToggleStep(deep[0].ID); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("removed step: %v", err)
	}
	if _, err := f.store.AddStep(task.ID, "nope", "x"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("missing parent: %v", err)
	}
}

func TestPublishedStateIsNeverModified(t *testing.T) {
	f := newFixture(t)
	f.hydrate(t)
	task := mustTask(t, f.store, "a", 0)
	step, err := f.store.AddStep(task.ID, "", "one")
	if err != nil {
		t.Fatalf("AddStep: %v", err)
	}

	var seen []State
	unsubscribe := f.store.Subscribe(func(st State) { seen = append(seen, st) })
	if _, err := f.store.ToggleStep(step.ID); err != nil {
		t.Fatalf("ToggleStep: %v", err)
	}
	before := f.store.current()
	if _, err := f.store.ToggleStep(step.ID); err != nil {
		t.Fatalf("ToggleStep: %v", err)
	}
	unsubscribe()
	mustTask(t, f.store, "b", 1)

	if len(seen) != 2 {
		t.Fatalf("notifications = %d", len(seen))
	}
	if !before.Tasks[0].SubSteps[0].IsCompleted {
		t.Fatal("an earlier published state was modified by a later action")
	}
	if seen[1].Tasks[0].SubSteps[0].IsCompleted {
		t.Fatal("latest published state should show the step open again")
	}
	if seen[0].Revision >= seen[1].Revision {
		t.Fatal("revision must increase with each change")
	}
}

func TestFailedActionChangesNothing(t *testing.T) {
	f := newFixture(t)
	f.hydrate(t)
	before := f.store.State()
	notified := 0
	f.store.Subscribe(func(State) { notified++ })
	if err := f.store.DeleteTask("missing"); err == nil {
		t.Fatal("expected error")
	}
	if notified != 0 || f.store.State().Revision != before.Revision {
		t.Fatal("a failed action must not publish")
	}
}

func TestDerivedAccessorsFollowActiveProject(t *testing.T) {
	f := newFixture(t)
	f.hydrate(t)
	first, _ := f.store.State().ActiveProject()

	second, err := f.store.AddProject("")
	if err != nil {
		t.Fatalf("AddProject: %v", err)
	}
	if second.Name != "Project 2" {
		t.Fatalf("name = %q", second.Name)
	}
	if _, err := f.store.AddRow("shop", "milk", "eggs"); err != nil {
		t.Fatalf("AddRow: %v", err)
	}
	dials := recipe.PriorityDials{Left: 150, Right: -4, FocusedSide: recipe.FocusRight}
	if err := f.store.SetPriorityDials(dials); err != nil {
		t.Fatalf("SetPriorityDials: %v", err)
	}

	state := f.store.State()
	if rows := state.TodoRows(); len(rows) != 1 || rows[0].Steps != [4]string{"milk", "eggs", "", ""} {
		t.Fatalf("rows = %+v", rows)
	}
	if got := state.PriorityDials(); got.Left != 100 || got.Right != 0 || got.FocusedSide != recipe.FocusRight {
		t.Fatalf("dials = %+v", got)
	}

	if err := f.store.SelectProject(first.ID); err != nil {
		t.Fatalf("SelectProject: %v", err)
	}
	state = f.store.State()
	if len(state.TodoRows()) != 0 {
		t.Fatal("rows must follow the active project")
	}
	if state.PriorityDials() != recipe.DefaultPriorityDials() {
		t.Fatalf("dials = %+v", state.PriorityDials())
	}
}

func TestProjectLifecycle(t *testing.T) {
	f := newFixture(t)
	f.hydrate(t)
	first, _ := f.store.State().ActiveProject()
	if err := f.store.DeleteProject(first.ID); !errors.Is(err, ErrLastProject) {
		t.Fatalf("deleting the last project: %v", err)
	}

	p2, _ := f.store.AddProject("")
	p3, _ := f.store.AddProject("Garden")
	if p3.Name != "Garden" || p3.Color != recipe.ProjectColor(3) {
		t.Fatalf("p3 = %+v", p3)
	}
	if err := f.store.DeleteProject(p3.ID); err != nil {
		t.Fatalf("DeleteProject: %v", err)
	}
	state := f.store.State()
	if state.ActiveProjectID != first.ID {
		t.Fatalf("deleting the active project should select the first, got %q", state.ActiveProjectID)
	}
	p4, _ := f.store.AddProject("")
	if p4.Name != "Project 4" {
		t.Fatalf("project numbers must never be reused, got %q", p4.Name)
	}

	if err := f.store.MoveProject(p4.ID, 0); err != nil {
		t.Fatalf("MoveProject: %v", err)
	}
	if err := f.store.RenameProject(p2.ID, " Kitchen "); err != nil {
		t.Fatalf("RenameProject: %v", err)
	}
	if err := f.store.RecolorProject(p2.ID, "#123456"); err != nil {
		t.Fatalf("RecolorProject: %v", err)
	}
	state = f.store.State()
	var ids []string
	for _, p := range state.TodoProjects {
		ids = append(ids, p.ID)
	}
	if !slices.Equal(ids, []string{p4.ID, first.ID, p2.ID}) {
		t.Fatalf("order = %v", ids)
	}
	if state.TodoProjects[2].Name != "Kitchen" || state.TodoProjects[2].Color != "#123456" {
		t.Fatalf("p2 = %+v", state.TodoProjects[2])
	}
	if err := f.store.RenameProject(p2.ID, ""); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("blank rename: %v", err)
	}
}

func TestRowOperations(t *testing.T) {
	f := newFixture(t)
	f.hydrate(t)
	a, _ := f.store.AddRow("a")
	b, _ := f.store.AddRow("b")
	c, _ := f.store.AddRow("c")

	if err := f.store.MoveRowToBottom(a.ID); err != nil {
		t.Fatalf("MoveRowToBottom: %v", err)
	}
	inserted, err := f.store.InsertRowAfter(b.ID, "b2")
	if err != nil {
		t.Fatalf("InsertRowAfter: %v", err)
	}
	if err := f.store.MoveRow(c.ID, 99); err != nil {
		t.Fatalf("MoveRow: %v", err)
	}
	rows := f.store.State().TodoRows()
	var order []string
	for _, row := range rows {
		order = append(order, row.Task)
	}
	if !slices.Equal(order, []string{"b", "b2", "a", "c"}) {
		t.Fatalf("order = %v", order)
	}

	if err := f.store.SetRowSteps(inserted.ID, []string{"1", "2", "3", "4", "5"}); err != nil {
		t.Fatalf("SetRowSteps: %v", err)
	}
	if err := f.store.UpdateRowStep(inserted.ID, 3, "four"); err != nil {
		t.Fatalf("UpdateRowStep: %v", err)
	}
	if err := f.store.UpdateRowStep(inserted.ID, 4, "x"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("out of range cell: %v", err)
	}
	if err := f.store.SetRowSteps(b.ID, []string{"only"}); err != nil {
		t.Fatalf("SetRowSteps: %v", err)
	}
	done, err := f.store.ToggleRow(b.ID)
	if err != nil || !done {
		t.Fatalf("ToggleRow = %v, %v", done, err)
	}
	if err := f.store.UpdateRowTask(c.ID, "see"); err != nil {
		t.Fatalf("UpdateRowTask: %v", err)
	}
	if err := f.store.DeleteRow(a.ID); err != nil {
		t.Fatalf("DeleteRow: %v", err)
	}

	rows = f.store.State().TodoRows()
	want := []recipe.TodoRow{
		{ID: b.ID, Task: "b", Steps: [4]string{"only", "", "", ""}, IsCompleted: true},
		{ID: inserted.ID, Task: "b2", Steps: [4]string{"1", "2", "3", "four"}},
		{ID: c.ID, Task: "see"},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Fatalf("rows = %+v", rows)
	}
	if err := f.store.DeleteRow(a.ID); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("deleted row: %v", err)
	}
}

func TestAddRowFromStep(t *testing.T) {
	f := newFixture(t)
	f.hydrate(t)
	task := mustTask(t, f.store, "paint", 0)
	step, _ := f.store.AddStep(task.ID, "", "prime wall")
	if _, err := f.store.AttachSubSteps(task.ID, step.ID, []string{"1", "2", "3", "4", "5"}); err != nil {
		t.Fatalf("AttachSubSteps: %v", err)
	}

	row, err := f.store.AddRowFromStep(step.ID)
	if err != nil {
		t.Fatalf("AddRowFromStep: %v", err)
	}
	if row.Task != "prime wall" || row.Steps != [4]string{"1", "2", "3", "4"} || row.SourceStepID != step.ID {
		t.Fatalf("row = %+v", row)
	}
	revision := f.store.State().Revision
	again, err := f.store.AddRowFromStep(step.ID)
	if err != nil {
		t.Fatalf("AddRowFromStep again: %v", err)
	}
	if again.ID != row.ID || f.store.State().Revision != revision || len(f.store.State().TodoRows()) != 1 {
		t.Fatal("a step already on the board must not be added twice")
	}
	if _, err := f.store.AddRowFromStep("missing"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("missing step: %v", err)
	}
}

func TestScoutHistoryDedupesAndCaps(t *testing.T) {
	f := newFixture(t)
	f.store.scoutLimit = 3
	f.hydrate(t)
	for _, topic := range []string{"bread", "pasta", "Bread", "soup", "tacos"} {
		if err := f.store.SetScout(topic, "youtube", []string{topic + " basics"}); err != nil {
			t.Fatalf("SetScout: %v", err)
		}
	}
	state := f.store.State()
	if !slices.Equal(state.ScoutHistory, []string{"tacos", "soup", "Bread"}) {
		t.Fatalf("history = %v", state.ScoutHistory)
	}
	if state.ScoutTopic != "tacos" || !slices.Equal(state.ScoutResults, []string{"tacos basics"}) {
		t.Fatalf("scout = %q %v", state.ScoutTopic, state.ScoutResults)
	}
}

func TestProjectFields(t *testing.T) {
	f := newFixture(t)
	f.hydrate(t)
	if err := f.store.SetProjectType("text"); err != nil {
		t.Fatalf("SetProjectType: %v", err)
	}
	if err := f.store.SetProjectType("podcast"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("bad type: %v", err)
	}
	if err := f.store.SetProjectTitle("  Sourdough "); err != nil {
		t.Fatalf("SetProjectTitle: %v", err)
	}
	if err := f.store.SetTranscript("knead"); err != nil {
		t.Fatalf("SetTranscript: %v", err)
	}
	state := f.store.State()
	if state.ProjectType != recipe.ProjectText || state.ProjectTitle != "Sourdough" || state.Transcript != "knead" {
		t.Fatalf("fields = %q %q %q", state.ProjectType, state.ProjectTitle, state.Transcript)
	}
}

func TestReactionFor(t *testing.T) {
	cases := map[services.Kind]Reaction{
		services.KindQuota:       ReactionNewCredential,
		services.KindRateLimited: ReactionNewCredential,
		services.KindAuth:        ReactionNewCredential,
		services.KindOverloaded:  ReactionTransientWarning,
		services.KindNetwork:     ReactionTransientWarning,
		services.KindTimeout:     ReactionTransientWarning,
		services.KindSafety:      ReactionHardError,
		services.KindParse:       ReactionHardError,
		services.KindUnknown:     ReactionHardError,
		KindSourceUnavailable:    ReactionReselectSource,
		KindPersist:              ReactionExportBackup,
	}
	for kind, want := range cases {
		if got := ReactionFor(kind); got != want {
			t.Errorf("ReactionFor(%s) = %s, want %s", kind, got, want)
		}
	}
}
