package database

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"attendance-kiosk/internal/kiosk"
)

func newTestJournal(t *testing.T) *Journal {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return NewJournal(db)
}

func intPtr(v int) *int { return &v }

func TestJournalRecordAndList(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	recs := []kiosk.Recognition{
		{KioskID: "k1", Name: "Alice", Known: true, Token: intPtr(3), At: base, Payload: json.RawMessage(`{"name":"Alice"}`)},
		{KioskID: "k1", Name: "unknown", At: base.Add(time.Minute), Payload: json.RawMessage(`"unknown"`)},
		{KioskID: "k1", Name: "Bob", Known: true, At: base.Add(2 * time.Minute), SnapshotPath: "/data/snapshots/bob.jpg"},
		{KioskID: "k1", Name: "Alice", Known: true, At: base.Add(3 * time.Minute)},
	}
	for _, r := range recs {
		if err := j.Record(ctx, r); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	all, err := j.List(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 4 || all[0].Name != "Alice" || all[1].Name != "Bob" {
		t.Fatalf("List order = %+v", all)
	}
	if all[3].Token == nil || *all[3].Token != 3 {
		t.Fatalf("token not stored: %+v", all[3])
	}
	if string(all[3].Payload) != `{"name":"Alice"}` {
		t.Fatalf("payload = %s", all[3].Payload)
	}

	known, err := j.List(ctx, ListOptions{KnownOnly: true, Limit: 2})
	if err != nil {
		t.Fatalf("List known: %v", err)
	}
	if len(known) != 2 {
		t.Fatalf("known rows = %d, want 2", len(known))
	}

	alice, err := j.List(ctx, ListOptions{Name: "Alice", Since: base.Add(time.Second)})
	if err != nil {
		t.Fatalf("List alice: %v", err)
	}
	if len(alice) != 1 {
		t.Fatalf("alice since = %d rows, want 1", len(alice))
	}

	st, err := j.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.Total != 4 || st.Known != 3 || st.Unknown != 1 || st.People != 2 {
		t.Fatalf("Stats = %+v", st)
	}
	if !st.LatestAt.Equal(base.Add(3 * time.Minute)) {
		t.Fatalf("LatestAt = %v", st.LatestAt)
	}
}

func TestJournalPrune(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()
	now := time.Now().UTC()

	old := kiosk.Recognition{KioskID: "k1", Name: "Old", Known: true, At: now.Add(-48 * time.Hour), SnapshotPath: "/tmp/old.jpg"}
	fresh := kiosk.Recognition{KioskID: "k1", Name: "Fresh", Known: true, At: now}
	for _, r := range []kiosk.Recognition{old, fresh} {
		if err := j.Record(ctx, r); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	res, err := j.Prune(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if res.Rows != 1 || len(res.Snapshots) != 1 || res.Snapshots[0] != "/tmp/old.jpg" {
		t.Fatalf("Prune = %+v", res)
	}
	rows, _ := j.List(ctx, ListOptions{})
	if len(rows) != 1 || rows[0].Name != "Fresh" {
		t.Fatalf("remaining = %+v", rows)
	}
}
