package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rcliao/lore-memory/internal/model"
)

// stepClock returns a clock that advances one second per call.
func stepClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	s, err := NewSQLiteStore(filepath.Join(dir, "test.db"), WithClock(stepClock()))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutAndGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	mem, err := s.Put(ctx, PutParams{
		Type: model.TypeCharacter, Name: "Elowen", Content: "Elowen is a healer",
		Embedding: []float32{0.6, 0.8},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if mem.ID == "" {
		t.Error("expected non-empty ID")
	}
	if mem.LastReferencedAt != nil {
		t.Error("expected nil LastReferencedAt on a new memory")
	}

	got, err := s.Get(ctx, mem.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Content != "Elowen is a healer" || got.Name != "Elowen" || got.Type != model.TypeCharacter {
		t.Errorf("unexpected memory %+v", got)
	}
	if !got.CreatedAt.Equal(mem.CreatedAt) {
		t.Errorf("created_at mismatch: %v vs %v", got.CreatedAt, mem.CreatedAt)
	}
	if len(got.Embedding) != 2 || got.Embedding[0] != 0.6 || got.Embedding[1] != 0.8 {
		t.Errorf("embedding not round-tripped: %v", got.Embedding)
	}
}

func TestPutRejectsInvalidType(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Put(context.Background(), PutParams{Type: "faction", Content: "x"})
	if !errors.Is(err, model.ErrInvalidType) {
		t.Fatalf("expected ErrInvalidType, got %v", err)
	}
}

func TestGetNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(context.Background(), "01NOPE")
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestList(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a, _ := s.Put(ctx, PutParams{Type: model.TypeCharacter, Content: "alpha"})
	b, _ := s.Put(ctx, PutParams{Type: model.TypeCharacter, Content: "beta"})
	s.Put(ctx, PutParams{Type: model.TypeLocation, Content: "gamma"})

	all, _ := s.List(ctx, ListParams{})
	if len(all) != 3 {
		t.Errorf("expected 3, got %d", len(all))
	}

	chars, _ := s.List(ctx, ListParams{Type: model.TypeCharacter})
	if len(chars) != 2 {
		t.Fatalf("expected 2, got %d", len(chars))
	}
	if chars[0].ID != b.ID || chars[1].ID != a.ID {
		t.Errorf("expected newest first, got %s, %s", chars[0].ID, chars[1].ID)
	}

	one, _ := s.List(ctx, ListParams{Type: model.TypeCharacter, Limit: 1})
	if len(one) != 1 || one[0].ID != b.ID {
		t.Errorf("expected only the newest, got %v", one)
	}
}

func TestListSameTimestampOrdersByID(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	first, _ := s.Put(ctx, PutParams{Type: model.TypeItem, Content: "sword", CreatedAt: at})
	second, _ := s.Put(ctx, PutParams{Type: model.TypeItem, Content: "shield", CreatedAt: at})

	list, _ := s.List(ctx, ListParams{Type: model.TypeItem})
	if list[0].ID != second.ID || list[1].ID != first.ID {
		t.Errorf("expected later id first on equal timestamps")
	}
}

func TestTouch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	mem, _ := s.Put(ctx, PutParams{Type: model.TypeEvent, Content: "the bridge fell"})
	at := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	ok, err := s.Touch(ctx, mem.ID, at)
	if err != nil || !ok {
		t.Fatalf("touch: ok=%v err=%v", ok, err)
	}
	got, _ := s.Get(ctx, mem.ID)
	if got.LastReferencedAt == nil || !got.LastReferencedAt.Equal(at) {
		t.Errorf("expected last_referenced_at %v, got %v", at, got.LastReferencedAt)
	}

	ok, err = s.Touch(ctx, "missing", at)
	if err != nil || ok {
		t.Errorf("touch of unknown id: ok=%v err=%v", ok, err)
	}
}

func TestUpdateContent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	mem, _ := s.Put(ctx, PutParams{Type: model.TypeLocation, Name: "Rivendell", Content: "a quiet valley"})
	got, err := s.UpdateContent(ctx, mem.ID, "a hidden valley", []float32{1, 0})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Content != "a hidden valley" || !got.CreatedAt.Equal(mem.CreatedAt) || got.ID != mem.ID {
		t.Errorf("unexpected update result %+v", got)
	}

	// FTS index follows the update.
	res, _ := s.Search(ctx, SearchParams{Query: "hidden"})
	if len(res) != 1 {
		t.Errorf("expected updated content to be searchable, got %d", len(res))
	}

	if _, err := s.UpdateContent(ctx, "missing", "x", nil); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRm(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	mem, _ := s.Put(ctx, PutParams{Type: model.TypeItem, Content: "data"})
	if err := s.Rm(ctx, mem.ID); err != nil {
		t.Fatalf("rm: %v", err)
	}
	if _, err := s.Get(ctx, mem.ID); err == nil {
		t.Error("expected error after delete")
	}
	if err := s.Rm(ctx, mem.ID); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	old := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	s.Put(ctx, PutParams{Type: model.TypeCharacter, Content: "a", CreatedAt: old})
	s.Put(ctx, PutParams{Type: model.TypeCharacter, Content: "b"})
	s.Put(ctx, PutParams{Type: model.TypeLocation, Content: "c"})

	st, err := s.Stats(ctx, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.TotalMemories != 3 {
		t.Errorf("expected 3 total, got %d", st.TotalMemories)
	}
	if st.ByType[model.TypeCharacter] != 2 || st.ByType[model.TypeLocation] != 1 || len(st.ByType) != 2 {
		t.Errorf("unexpected by_type %v", st.ByType)
	}
	if st.Recent24h != 2 {
		t.Errorf("expected 2 recent, got %d", st.Recent24h)
	}
}

func TestConcurrentPuts(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Put(ctx, PutParams{Type: model.TypeDialogue, Content: "hello"}); err != nil {
				t.Errorf("put: %v", err)
			}
		}()
	}
	wg.Wait()

	st, _ := s.Stats(ctx, time.Time{})
	if st.TotalMemories != 25 {
		t.Errorf("expected 25, got %d", st.TotalMemories)
	}
}

func TestReopenPersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "lore.db")

	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatal(err)
	}
	mem, _ := s.Put(ctx, PutParams{Type: model.TypeCharacter, Content: "persisted"})
	s.AppendWorld(ctx, "weather", "rain", time.Time{})
	s.Close()

	s, err = NewSQLiteStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if _, err := s.Get(ctx, mem.ID); err != nil {
		t.Errorf("memory lost after reopen: %v", err)
	}
	w, _ := s.WorldSnapshot(ctx, 10)
	if len(w) != 1 || w[0].Value != "rain" {
		t.Errorf("world state lost after reopen: %v", w)
	}
}

func TestDBPathCreation(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "sub", "dir", "test.db")
	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("expected db file to be created")
	}
}

func TestVectorCodec(t *testing.T) {
	if encodeVector(nil) != nil {
		t.Error("expected nil blob for empty vector")
	}
	if decodeVector([]byte{1, 2, 3}) != nil {
		t.Error("expected nil for truncated blob")
	}
	v := []float32{-1.5, 0, 3.25}
	got := decodeVector(encodeVector(v))
	for i := range v {
		if got[i] != v[i] {
			t.Fatalf("codec mismatch at %d: %v vs %v", i, got, v)
		}
	}
}
