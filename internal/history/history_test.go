package history

import (
	"testing"
	"time"
)

func TestLoad_MissingTranscript(t *testing.T) {
	s := NewStore(t.TempDir())

	turns, err := s.Load("1001")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(turns) != 0 {
		t.Errorf("got %d turns, want 0", len(turns))
	}
}

func TestAppendAndLoad(t *testing.T) {
	s := NewStore(t.TempDir())
	s.now = func() time.Time { return time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC) }

	if err := s.Append("1001", "مرحبا", "أهلاً بك"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s.Append("1001", "كم رصيدي؟", "رصيدك 25 يوم"); err != nil {
		t.Fatalf("Append: %v", err)
	}

	turns, err := s.Load("1001")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(turns) != 4 {
		t.Fatalf("got %d turns, want 4", len(turns))
	}
	if turns[0].Type != TypeUser || turns[0].Content != "مرحبا" {
		t.Errorf("turns[0] = %+v", turns[0])
	}
	if turns[1].Type != TypeBot {
		t.Errorf("turns[1].Type = %q, want bot", turns[1].Type)
	}
	if turns[3].Content != "رصيدك 25 يوم" {
		t.Errorf("turns[3].Content = %q", turns[3].Content)
	}
}

func TestTranscriptsAreScopedPerEmployee(t *testing.T) {
	s := NewStore(t.TempDir())

	if err := s.Append("1001", "a", "b"); err != nil {
		t.Fatalf("Append: %v", err)
	}

	turns, err := s.Load("1002")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(turns) != 0 {
		t.Errorf("employee 1002 sees %d turns from 1001's transcript", len(turns))
	}
}
