package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/lore-memory/internal/embedding"
	"github.com/rcliao/lore-memory/internal/engine"
	"github.com/rcliao/lore-memory/internal/model"
)

func newTestServer(t *testing.T, emb embedding.Embedder) (*httptest.Server, *engine.Engine) {
	t.Helper()
	if emb == nil {
		emb = embedding.NewHashEmbedder(0)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	eng, err := engine.Open(filepath.Join(t.TempDir(), "lore.db"), engine.Options{Embedder: emb, Logger: logger})
	require.NoError(t, err)
	t.Cleanup(func() { eng.Close() })

	ts := httptest.NewServer(New(eng, logger))
	t.Cleanup(ts.Close)
	return ts, eng
}

func do(t *testing.T, method, url string, body interface{}, out interface{}) int {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, rdr)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	var out map[string]string
	assert.Equal(t, http.StatusOK, do(t, "GET", ts.URL+"/health", nil, &out))
	assert.Equal(t, "ok", out["status"])
}

func TestMemoryLifecycle(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	var created model.Memory
	status := do(t, "POST", ts.URL+"/memories", map[string]string{
		"type": "Character", "name": "Elowen", "content": "a healer from the northern village",
	}, &created)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, model.TypeCharacter, created.Type)

	var got model.Memory
	assert.Equal(t, http.StatusOK, do(t, "GET", ts.URL+"/memories/"+created.ID, nil, &got))
	assert.Equal(t, "Elowen", got.Name)

	var list []model.Memory
	assert.Equal(t, http.StatusOK, do(t, "GET", ts.URL+"/memories?type=character&limit=10", nil, &list))
	assert.Len(t, list, 1)

	assert.Equal(t, http.StatusOK, do(t, "GET", ts.URL+"/memories?type=faction", nil, &list))
	assert.Empty(t, list)

	var fixed model.Memory
	assert.Equal(t, http.StatusOK, do(t, "PATCH", ts.URL+"/memories/"+created.ID,
		map[string]string{"content": "a healer from the southern coast"}, &fixed))
	assert.Equal(t, "a healer from the southern coast", fixed.Content)

	assert.Equal(t, http.StatusNoContent, do(t, "DELETE", ts.URL+"/memories/"+created.ID, nil, nil))

	var errOut map[string]string
	assert.Equal(t, http.StatusNotFound, do(t, "GET", ts.URL+"/memories/"+created.ID, nil, &errOut))
	assert.Contains(t, errOut["error"], "not found")
}

func TestCreateMemoryValidation(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	var out map[string]string

	assert.Equal(t, http.StatusBadRequest, do(t, "POST", ts.URL+"/memories",
		map[string]string{"type": "faction", "content": "x"}, &out))
	assert.Equal(t, http.StatusBadRequest, do(t, "POST", ts.URL+"/memories",
		map[string]string{"type": "item", "content": " "}, &out))
	assert.Equal(t, http.StatusBadRequest, do(t, "POST", ts.URL+"/memories",
		map[string]string{"type": "item", "content": "x", "importance": "9"}, &out))
}

type downEmbedder struct{}

func (downEmbedder) Embed(context.Context, string) (embedding.Vector, error) {
	return nil, errors.New("connection refused")
}

func (downEmbedder) Dims() int { return 4 }

func TestEmbeddingUnavailableIs503(t *testing.T) {
	ts, _ := newTestServer(t, downEmbedder{})
	var out map[string]string
	assert.Equal(t, http.StatusServiceUnavailable, do(t, "POST", ts.URL+"/memories",
		map[string]string{"type": "item", "content": "a lantern"}, &out))
}

func TestSearch(t *testing.T) {
	ts, eng := newTestServer(t, nil)
	ctx := context.Background()
	elowen, err := eng.Store(ctx, model.TypeCharacter, "Elowen", "a healer from the northern village")
	require.NoError(t, err)
	_, err = eng.Store(ctx, model.TypeLocation, "Silverpine", "a forest on the border")
	require.NoError(t, err)

	var scored []model.ScoredMemory
	assert.Equal(t, http.StatusOK, do(t, "GET", ts.URL+"/memories/search?q=Who+can+heal+the+wounded%3F&limit=1", nil, &scored))
	require.Len(t, scored, 1)
	assert.Equal(t, elowen.ID, scored[0].ID)

	var mems []model.Memory
	assert.Equal(t, http.StatusOK, do(t, "GET", ts.URL+"/memories/search?q=forest&mode=keyword", nil, &mems))
	require.Len(t, mems, 1)
	assert.Equal(t, "Silverpine", mems[0].Name)

	var out map[string]string
	assert.Equal(t, http.StatusBadRequest, do(t, "GET", ts.URL+"/memories/search", nil, &out))
}

func TestWorldState(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	var entry model.WorldStateEntry
	require.Equal(t, http.StatusCreated, do(t, "POST", ts.URL+"/world-state",
		map[string]string{"key": "region_status", "value": "calm"}, &entry))
	require.Equal(t, http.StatusCreated, do(t, "POST", ts.URL+"/world-state",
		map[string]string{"key": "region_status", "value": "under_siege"}, &entry))

	var snap []model.WorldStateEntry
	assert.Equal(t, http.StatusOK, do(t, "GET", ts.URL+"/world-state?limit=10", nil, &snap))
	require.Len(t, snap, 2)
	assert.Equal(t, "under_siege", snap[0].Value)

	var cur []model.WorldStateEntry
	assert.Equal(t, http.StatusOK, do(t, "GET", ts.URL+"/world-state/current", nil, &cur))
	require.Len(t, cur, 1)

	var hist []model.WorldStateEntry
	assert.Equal(t, http.StatusOK, do(t, "GET", ts.URL+"/world-state/region_status?limit=1", nil, &hist))
	require.Len(t, hist, 1)
	assert.Equal(t, "under_siege", hist[0].Value)

	var out map[string]string
	assert.Equal(t, http.StatusBadRequest, do(t, "POST", ts.URL+"/world-state", map[string]string{"value": "x"}, &out))
}

func TestExtractTurnAndHistory(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	var res extractResponse
	status := do(t, "POST", ts.URL+"/turns/extract", map[string]interface{}{
		"session_id": "s1",
		"user":       "We travel to Silverpine.",
		"response":   "You meet Elowen, a healer with silver hair.",
	}, &res)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, res.Stored, 2)
	assert.NotEmpty(t, res.TurnID)

	var turns []model.Turn
	assert.Equal(t, http.StatusOK, do(t, "GET", ts.URL+"/turns/s1", nil, &turns))
	require.Len(t, turns, 1)
	assert.Equal(t, "We travel to Silverpine.", turns[0].UserText)
}

func TestStatsAndContext(t *testing.T) {
	ts, eng := newTestServer(t, nil)
	ctx := context.Background()
	for _, c := range []struct {
		typ           model.MemoryType
		name, content string
	}{
		{model.TypeCharacter, "Elowen", "a healer"},
		{model.TypeCharacter, "Thorin", "a dwarf"},
		{model.TypeLocation, "Havenbrook", "a village"},
	} {
		_, err := eng.Store(ctx, c.typ, c.name, c.content)
		require.NoError(t, err)
	}

	var stats model.MemoryStats
	assert.Equal(t, http.StatusOK, do(t, "GET", ts.URL+"/stats", nil, &stats))
	assert.Equal(t, 3, stats.TotalMemories)
	assert.Equal(t, map[model.MemoryType]int{model.TypeCharacter: 2, model.TypeLocation: 1}, stats.ByType)

	var cr engine.ContextResult
	assert.Equal(t, http.StatusOK, do(t, "GET", ts.URL+"/context?q=healer&budget=200", nil, &cr))
	assert.Equal(t, 200, cr.Budget)
	assert.NotEmpty(t, cr.Memories)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(model.ErrInvalidType))
	assert.Equal(t, http.StatusNotFound, statusFor(model.ErrNotFound))
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(model.ErrEmbeddingUnavailable))
	assert.Equal(t, http.StatusInternalServerError, statusFor(model.ErrStorage))
}
