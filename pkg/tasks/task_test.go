package tasks

import (
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	before := time.Now()
	task := New(5, "ship the release")

	if task.ID == "" {
		t.Error("expected a generated ID")
	}
	if task.Priority != 5 {
		t.Errorf("expected priority 5, got %d", task.Priority)
	}
	if task.Status != StatusPending {
		t.Errorf("expected pending status, got %s", task.Status)
	}
	if task.CreatedAt.Before(before) || task.CreatedAt.After(time.Now()) {
		t.Errorf("CreatedAt not stamped at construction: %s", task.CreatedAt)
	}
	if task.AssignedTo != "" {
		t.Errorf("expected unassigned task, got %q", task.AssignedTo)
	}
}

func TestNewGeneratesUniqueIDs(t *testing.T) {
	a := New(1, "a")
	b := New(1, "b")
	if a.ID == b.ID {
		t.Errorf("expected distinct IDs, both got %s", a.ID)
	}
}

func TestAssign(t *testing.T) {
	task := New(1, "review PR").Assign("alex")
	if task.AssignedTo != "alex" {
		t.Errorf("expected assignee alex, got %q", task.AssignedTo)
	}
}

func TestStatusIsValid(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusInProgress, StatusDone, StatusFailed} {
		if !s.IsValid() {
			t.Errorf("expected %s to be valid", s)
		}
	}
	if Status("cancelled").IsValid() {
		t.Error("expected unknown status to be invalid")
	}
}
