package store

import (
	"context"
	"testing"
	"time"

	"github.com/rcliao/lore-memory/internal/model"
)

func turn(session, user string) model.Turn {
	return model.Turn{
		SessionID:    session,
		UserText:     user,
		ResponseText: "re: " + user,
		Retrieved:    []string{"m-" + user},
	}
}

func TestWorldSnapshotNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.AppendWorld(ctx, "current_time", "morning", time.Time{})
	s.AppendWorld(ctx, "weather", "clear", time.Time{})
	s.AppendWorld(ctx, "current_time", "midday", time.Time{})

	snap, err := s.WorldSnapshot(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(snap) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(snap))
	}
	want := []string{"midday", "clear", "morning"}
	for i, w := range want {
		if snap[i].Value != w {
			t.Errorf("entry %d: expected %q, got %q", i, w, snap[i].Value)
		}
	}

	two, _ := s.WorldSnapshot(ctx, 2)
	if len(two) != 2 || two[0].Value != "midday" {
		t.Errorf("unexpected limited snapshot %v", two)
	}
	none, _ := s.WorldSnapshot(ctx, 0)
	if len(none) != 0 {
		t.Errorf("expected empty snapshot for limit 0")
	}
}

func TestWorldSameInstantOrdersByID(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	a, _ := s.AppendWorld(ctx, "region_status", "calm", at)
	b, _ := s.AppendWorld(ctx, "region_status", "under siege", at)
	if b.ID <= a.ID {
		t.Fatalf("ids must increase: %d then %d", a.ID, b.ID)
	}

	snap, _ := s.WorldSnapshot(ctx, 5)
	if snap[0].ID != b.ID {
		t.Errorf("expected later append first")
	}
}

func TestWorldHistoryAndCurrent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.AppendWorld(ctx, "current_time", "morning", time.Time{})
	s.AppendWorld(ctx, "weather", "clear", time.Time{})
	s.AppendWorld(ctx, "current_time", "midday", time.Time{})
	s.AppendWorld(ctx, "weather", "storm", time.Time{})
	s.AppendWorld(ctx, "current_time", "evening", time.Time{})

	hist, _ := s.WorldHistory(ctx, "current_time", 10)
	if len(hist) != 3 || hist[0].Value != "evening" || hist[2].Value != "morning" {
		t.Errorf("unexpected history %v", hist)
	}

	cur, err := s.CurrentWorld(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(cur) != 2 {
		t.Fatalf("expected 2 keys, got %d", len(cur))
	}
	if cur[0].Key != "current_time" || cur[0].Value != "evening" {
		t.Errorf("unexpected current_time %v", cur[0])
	}
	if cur[1].Key != "weather" || cur[1].Value != "storm" {
		t.Errorf("unexpected weather %v", cur[1])
	}

	// History is retained alongside the current view.
	all, _ := s.AllWorld(ctx)
	if len(all) != 5 {
		t.Errorf("expected full history of 5, got %d", len(all))
	}
}

func TestAppendWorldRejectsEmptyKey(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.AppendWorld(context.Background(), "  ", "x", time.Time{}); err == nil {
		t.Error("expected error for empty key")
	}
}

func TestTurns(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for _, u := range []string{"one", "two", "three"} {
		if _, err := s.AppendTurn(ctx, turn("s1", u)); err != nil {
			t.Fatal(err)
		}
	}
	s.AppendTurn(ctx, turn("s2", "other"))

	turns, err := s.Turns(ctx, "s1", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(turns) != 2 || turns[0].UserText != "two" || turns[1].UserText != "three" {
		t.Errorf("expected last two turns in order, got %v", turns)
	}
	if len(turns[0].Retrieved) != 1 || turns[0].Retrieved[0] != "m-two" {
		t.Errorf("retrieved ids not round-tripped: %v", turns[0].Retrieved)
	}
}

func TestExportAll(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.Put(ctx, PutParams{Type: "character", Content: "first"})
	s.Put(ctx, PutParams{Type: "item", Content: "second"})
	s.AppendWorld(ctx, "weather", "fog", time.Time{})

	exp, err := s.ExportAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if exp.Version != ExportVersion || len(exp.Memories) != 2 || len(exp.World) != 1 {
		t.Fatalf("unexpected export %+v", exp)
	}
	if exp.Memories[0].Content != "first" {
		t.Errorf("expected oldest first in export")
	}
}
