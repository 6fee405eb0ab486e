package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRecordAndRecent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	runs := []Run{
		{StartedAt: base, AudioDuration: 2 * time.Second, RawText: "こんにちは", FinalText: "こんにちは。", Outcome: "inserted"},
		{StartedAt: base.Add(time.Minute), AudioDuration: time.Second, RawText: "えーと", FinalText: "", Outcome: "rejected"},
		{StartedAt: base.Add(2 * time.Minute), AudioDuration: 3 * time.Second, RawText: "テスト", FinalText: "テスト", Outcome: "inserted", FallbackReason: "echo_answer"},
	}
	for _, r := range runs {
		if _, err := s.Record(ctx, r); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	got, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Recent returned %d runs, want 3", len(got))
	}

	// Newest first.
	if got[0].RawText != "テスト" {
		t.Errorf("got[0].RawText = %q, want %q", got[0].RawText, "テスト")
	}
	if got[0].FallbackReason != "echo_answer" {
		t.Errorf("got[0].FallbackReason = %q, want %q", got[0].FallbackReason, "echo_answer")
	}
	if got[2].FinalText != "こんにちは。" {
		t.Errorf("got[2].FinalText = %q, want %q", got[2].FinalText, "こんにちは。")
	}
	if got[2].AudioDuration != 2*time.Second {
		t.Errorf("got[2].AudioDuration = %v, want 2s", got[2].AudioDuration)
	}
	if got[2].StartedAt.Unix() != base.Unix() {
		t.Errorf("got[2].StartedAt = %v, want %v", got[2].StartedAt, base)
	}
}

func TestRecentLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := range 5 {
		_, err := s.Record(ctx, Run{
			StartedAt: time.Now().Add(time.Duration(i) * time.Second),
			RawText:   "run",
			Outcome:   "inserted",
		})
		if err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	got, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("Recent returned %d runs, want 2", len(got))
	}
}

func TestRecentEmpty(t *testing.T) {
	s := openTestStore(t)

	got, err := s.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Recent returned %d runs, want 0", len(got))
	}
}

func TestOpenCreatesSchemaIdempotently(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	if _, err := s1.Record(context.Background(), Run{StartedAt: time.Now(), Outcome: "inserted"}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := s1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	defer s2.Close()

	got, err := s2.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("Recent returned %d runs after reopen, want 1", len(got))
	}
}
