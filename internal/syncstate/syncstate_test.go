package syncstate

import (
	"testing"
	"time"
)

func TestFileStore_FirstRunIsNever(t *testing.T) {
	s := NewFileStore(t.TempDir())
	got, err := s.LastSync()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.IsZero() {
		t.Errorf("lastSync = %v, want zero", got)
	}
}

func TestFileStore_RoundTrip(t *testing.T) {
	s := NewFileStore(t.TempDir())
	want := time.Date(2026, time.August, 29, 12, 0, 0, 0, time.UTC)

	if err := s.SetLastSync(want); err != nil {
		t.Fatalf("SetLastSync: %v", err)
	}
	got, err := s.LastSync()
	if err != nil {
		t.Fatalf("LastSync: %v", err)
	}
	if !got.Equal(want) {
		t.Errorf("lastSync = %v, want %v", got, want)
	}
}

func TestFileStore_Overwrite(t *testing.T) {
	s := NewFileStore(t.TempDir())
	first := time.Unix(1_700_000_000, 0)
	second := first.Add(8 * 24 * time.Hour)

	if err := s.SetLastSync(first); err != nil {
		t.Fatalf("SetLastSync: %v", err)
	}
	if err := s.SetLastSync(second); err != nil {
		t.Fatalf("SetLastSync: %v", err)
	}
	got, err := s.LastSync()
	if err != nil {
		t.Fatalf("LastSync: %v", err)
	}
	if !got.Equal(second) {
		t.Errorf("lastSync = %v, want %v", got, second)
	}
}
