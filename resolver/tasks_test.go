package resolver

import (
	"testing"

	"ilmem/process"
)

func TestTasksForPlayerEnrichesFromOwnedTasks(t *testing.T) {
	w := newWorld(t, process.Arch64)
	w.addPlayer(playerSpec{id: 0, color: 2, pos: Vec2{1, 1}})
	w.addTasks(0,
		taskSpec{id: 20, typeID: 0x0C, startAt: 19, step: 1, maxStep: 3},
		taskSpec{id: 21, typeID: 0x03, completed: true, startAt: 20, step: 1, maxStep: 1},
	)
	s := w.session()

	tasks := s.TasksForPlayer(0)
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}

	wiring := tasks[0]
	if wiring.ID != 20 || wiring.TypeName() != "Fix Wiring" || wiring.Completed {
		t.Fatalf("unexpected first task %+v", wiring)
	}
	if wiring.Step == nil || wiring.MaxStep == nil || *wiring.Step != 1 || *wiring.MaxStep != 3 {
		t.Fatalf("expected step 1/3, got %v/%v", wiring.Step, wiring.MaxStep)
	}
	if wiring.StartSystem == nil || *wiring.StartSystem != 19 || wiring.Location == nil || *wiring.Location != "Launchpad" {
		t.Fatalf("unexpected start system %v location %v", wiring.StartSystem, wiring.Location)
	}

	course := tasks[1]
	if course.ID != 21 || course.TypeName() != "Chart Course" || !course.Completed {
		t.Fatalf("unexpected second task %+v", course)
	}
	if course.Step == nil || *course.Step != 1 || *course.MaxStep != 1 {
		t.Fatalf("expected step 1/1, got %v/%v", course.Step, course.MaxStep)
	}

	if got := s.TasksForColor(2); len(got) != 2 {
		t.Fatalf("expected the same tasks by color, got %d", len(got))
	}
}

func TestTasksWithoutOwnedListKeepBasicFields(t *testing.T) {
	w := newWorld(t, process.Arch64)
	w.addPlayer(playerSpec{id: 0, color: 2})
	w.addTasks(0, taskSpec{id: 5, typeID: 0x09, completed: true})
	w.blob.PutPointer(w.fields(controlAt(0))+controlOwnedField, 0)

	tasks := w.session().TasksForPlayer(0)
	if len(tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(tasks))
	}
	task := tasks[0]
	if task.ID != 5 || task.TypeID != 0x09 || !task.Completed {
		t.Fatalf("unexpected task %+v", task)
	}
	if task.Step != nil || task.MaxStep != nil || task.Location != nil {
		t.Fatalf("optional fields should stay unset: %+v", task)
	}
}

func TestTasksForUnknownPlayer(t *testing.T) {
	w := newWorld(t, process.Arch64)
	w.addPlayer(playerSpec{id: 0, color: 2})

	s := w.session()
	if tasks := s.TasksForPlayer(9); tasks != nil {
		t.Fatalf("expected no tasks, got %v", tasks)
	}
	if tasks := s.TasksForPlayer(0); tasks != nil {
		t.Fatalf("player without a task list should have no tasks, got %v", tasks)
	}
}

func TestScoreStep(t *testing.T) {
	tests := []struct {
		a, b      int
		completed bool
		score     int
		valid     bool
	}{
		{1, 3, false, 4, true},
		{2, 2, true, 5, true},
		{0, 8, false, 2, true},
		{3, 2, false, 0, false},
		{0, 0, false, 0, false},
		{1, 17, false, 0, false},
		{-1, 2, false, 0, false},
	}
	for _, tt := range tests {
		score, valid := scoreStep(tt.a, tt.b, tt.completed)
		if valid != tt.valid || (valid && score != tt.score) {
			t.Fatalf("scoreStep(%d, %d, %v) = %d, %v; want %d, %v", tt.a, tt.b, tt.completed, score, valid, tt.score, tt.valid)
		}
	}
}
