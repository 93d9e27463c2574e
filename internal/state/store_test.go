package state

import (
	"path/filepath"
	"testing"

	"github.com/wingmanhq/wingman/internal/prefs"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStatusDefaultsToStopped(t *testing.T) {
	s := newTestStore(t)
	status, err := s.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status != StatusStopped {
		t.Errorf("Status = %q, want %q", status, StatusStopped)
	}
}

func TestStatusPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.db")

	s, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := s.SetStatus(StatusPaused); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	_ = s.Close()

	s2, err := NewStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	status, err := s2.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status != StatusPaused {
		t.Errorf("Status after reopen = %q, want paused to survive restart", status)
	}
}

func TestSetOverwrites(t *testing.T) {
	s := newTestStore(t)
	if err := s.Set("k", "a"); err != nil {
		t.Fatal(err)
	}
	if err := s.Set("k", "b"); err != nil {
		t.Fatal(err)
	}
	v, err := s.Get("k")
	if err != nil {
		t.Fatal(err)
	}
	if v != "b" {
		t.Errorf("Get = %q, want b", v)
	}
}

func TestFeedbackQueue(t *testing.T) {
	s := newTestStore(t)

	first := prefs.Feedback{Action: prefs.ActionAccept, Topics: []string{"ai"}}
	second := prefs.Feedback{Action: prefs.ActionReject, Topics: []string{"crypto"}, Reason: prefs.ReasonNotMyIndustry}
	if err := s.EnqueueFeedback(first); err != nil {
		t.Fatal(err)
	}
	if err := s.EnqueueFeedback(second); err != nil {
		t.Fatal(err)
	}

	if n, _ := s.PendingFeedbackCount(); n != 2 {
		t.Errorf("PendingFeedbackCount = %d, want 2", n)
	}

	got, err := s.DrainFeedback()
	if err != nil {
		t.Fatalf("DrainFeedback: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("drained %d items, want 2", len(got))
	}
	if got[0].Action != prefs.ActionAccept || got[1].Reason != prefs.ReasonNotMyIndustry {
		t.Errorf("drained = %+v, want insertion order preserved", got)
	}

	again, err := s.DrainFeedback()
	if err != nil {
		t.Fatal(err)
	}
	if len(again) != 0 {
		t.Errorf("second drain returned %d items, want 0", len(again))
	}
}
