package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(context.Background(), filepath.Join(t.TempDir(), "verdicts.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func sampleVerdict(id string) Verdict {
	return Verdict{
		ID:           id,
		Archive:      "agent.zip",
		RiskLevel:    "medium",
		RiskScore:    12,
		FindingCount: 4,
		Safe:         false,
		Score:        67,
		Category:     "Likely",
		CreatedAt:    time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
	}
}

func TestSaveVerdict_RoundTrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	want := sampleVerdict("id-1")
	if err := st.SaveVerdict(ctx, want); err != nil {
		t.Fatalf("SaveVerdict: %v", err)
	}

	got, err := st.Get(ctx, "id-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Archive != want.Archive || got.RiskLevel != want.RiskLevel ||
		got.RiskScore != want.RiskScore || got.FindingCount != want.FindingCount ||
		got.Safe != want.Safe || got.Score != want.Score || got.Category != want.Category {
		t.Errorf("Get = %+v, want %+v", got, want)
	}
	if !got.CreatedAt.Equal(want.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, want.CreatedAt)
	}
}

func TestGet_NotFound(t *testing.T) {
	st := openTestStore(t)

	_, err := st.Get(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get error = %v, want ErrNotFound", err)
	}
}

func TestSaveVerdict_SafeFlag(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	v := sampleVerdict("id-safe")
	v.Safe = true
	v.RiskLevel = "safe"
	if err := st.SaveVerdict(ctx, v); err != nil {
		t.Fatalf("SaveVerdict: %v", err)
	}

	got, err := st.Get(ctx, "id-safe")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.Safe {
		t.Error("Safe flag not persisted")
	}
}

func TestRecent_NewestFirst(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		v := sampleVerdict(fmt.Sprintf("id-%d", i))
		v.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := st.SaveVerdict(ctx, v); err != nil {
			t.Fatalf("SaveVerdict %d: %v", i, err)
		}
	}

	got, err := st.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].ID != "id-2" || got[1].ID != "id-1" {
		t.Errorf("order = %s, %s; want id-2, id-1", got[0].ID, got[1].ID)
	}
}

func TestRecent_DefaultLimit(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	if err := st.SaveVerdict(ctx, sampleVerdict("id-1")); err != nil {
		t.Fatalf("SaveVerdict: %v", err)
	}

	got, err := st.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("len = %d, want 1", len(got))
	}
}

func TestSaveVerdict_DuplicateIDFails(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	if err := st.SaveVerdict(ctx, sampleVerdict("dup")); err != nil {
		t.Fatalf("first SaveVerdict: %v", err)
	}
	if err := st.SaveVerdict(ctx, sampleVerdict("dup")); err == nil {
		t.Error("expected primary key violation on duplicate id")
	}
}

func TestOpen_ReopensExistingDatabase(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "verdicts.db")

	st, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := st.SaveVerdict(ctx, sampleVerdict("persisted")); err != nil {
		t.Fatalf("SaveVerdict: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	st2, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("reopening: %v", err)
	}
	defer st2.Close()
	if _, err := st2.Get(ctx, "persisted"); err != nil {
		t.Errorf("Get after reopen: %v", err)
	}
}
