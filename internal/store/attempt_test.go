package store

import (
	"errors"
	"testing"

	"github.com/ayusman/strokerehab/internal/pose"
)

func newAttempt(id, username string) *Attempt {
	features := make([]float64, 74)
	features[0] = 179.9
	features[73] = 18.4
	return &Attempt{
		ID:            id,
		Username:      username,
		Exercise:      "elbow_flexion",
		SchemaVersion: "rehab-arm-v1",
		Features:      features,
		Score:         64.25,
		Label:         "moderate",
		Model:         "baseline@1.0.0",
	}
}

func TestAttemptRepository_Create(t *testing.T) {
	s := newTestStore(t)
	repo := s.Attempts()

	frames := pose.RestingArmsSequence(6, 33)
	frames[2] = pose.Frame{Timestamp: 66}

	a := newAttempt("attempt-1", "alice")
	if err := repo.Create(a, frames); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if a.FrameCount != 6 {
		t.Errorf("expected frame count 6, got %d", a.FrameCount)
	}
	if a.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}

	got, err := repo.GetByID("attempt-1")
	if err != nil {
		t.Fatalf("GetByID() failed: %v", err)
	}
	if got.Username != "alice" || got.Exercise != "elbow_flexion" || got.Label != "moderate" {
		t.Errorf("unexpected attempt %+v", got)
	}
	if got.Score != 64.25 {
		t.Errorf("expected score 64.25, got %f", got.Score)
	}
	if len(got.Features) != 74 || got.Features[0] != 179.9 || got.Features[73] != 18.4 {
		t.Errorf("features not preserved: %v", got.Features)
	}
	if got.FrameCount != 6 {
		t.Errorf("expected frame count 6, got %d", got.FrameCount)
	}

	stored, err := repo.Frames("attempt-1")
	if err != nil {
		t.Fatalf("Frames() failed: %v", err)
	}
	if len(stored) != 6 {
		t.Fatalf("expected 6 frames, got %d", len(stored))
	}
	if !stored[2].Empty() {
		t.Error("expected empty frame to stay empty")
	}
	if stored[5].Timestamp != 165 {
		t.Errorf("expected timestamp 165, got %d", stored[5].Timestamp)
	}
	if stored[1].Landmarks[pose.RightWrist] != frames[1].Landmarks[pose.RightWrist] {
		t.Errorf("landmark not preserved: %+v", stored[1].Landmarks[pose.RightWrist])
	}
}

func TestAttemptRepository_Create_DuplicateID(t *testing.T) {
	s := newTestStore(t)
	repo := s.Attempts()

	if err := repo.Create(newAttempt("dup", "alice"), nil); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if err := repo.Create(newAttempt("dup", "bob"), pose.RestingArmsSequence(5, 33)); err == nil {
		t.Fatal("expected error for duplicate id")
	}

	// The failed insert must not leave frames behind
	frames, err := repo.Frames("dup")
	if err != nil {
		t.Fatalf("Frames() failed: %v", err)
	}
	if len(frames) != 0 {
		t.Errorf("expected no frames, got %d", len(frames))
	}
}

func TestAttemptRepository_List(t *testing.T) {
	s := newTestStore(t)
	repo := s.Attempts()

	for _, a := range []*Attempt{
		newAttempt("a1", "alice"),
		newAttempt("b1", "bob"),
		newAttempt("a2", "alice"),
	} {
		if err := repo.Create(a, nil); err != nil {
			t.Fatalf("Create() failed: %v", err)
		}
	}

	alice, err := repo.List("alice")
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(alice) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(alice))
	}
	if alice[0].ID != "a2" || alice[1].ID != "a1" {
		t.Errorf("expected newest first, got %s, %s", alice[0].ID, alice[1].ID)
	}

	all, err := repo.List("")
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 attempts, got %d", len(all))
	}

	none, err := repo.List("carol")
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("expected no attempts, got %d", len(none))
	}
}

func TestAttemptRepository_Delete(t *testing.T) {
	s := newTestStore(t)
	repo := s.Attempts()

	if err := repo.Create(newAttempt("gone", "alice"), pose.RestingArmsSequence(5, 33)); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if err := repo.Delete("gone"); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}

	if _, err := repo.GetByID("gone"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	// Frames are removed with the attempt
	var count int
	if err := s.DB().QueryRow(`SELECT COUNT(*) FROM attempt_frames WHERE attempt_id = ?`, "gone").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("expected frames to be deleted, %d remain", count)
	}
}

func TestAttemptRepository_NotFound(t *testing.T) {
	s := newTestStore(t)
	repo := s.Attempts()

	if _, err := repo.GetByID("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := repo.Delete("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
