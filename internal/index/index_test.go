package index

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/lore-memory/internal/model"
)

var base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func backends(t *testing.T) map[string]Index {
	t.Helper()
	out := map[string]Index{}
	for _, name := range []string{BackendFlat, BackendChromem} {
		idx, err := New(name)
		require.NoError(t, err)
		out[name] = idx
	}
	return out
}

func ids(hits []Hit) []string {
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.ID
	}
	return out
}

func TestSearch_OrdersBySimilarity(t *testing.T) {
	ctx := context.Background()
	for name, idx := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, idx.Put(ctx, Entry{ID: "a", Type: model.TypeCharacter, Vector: []float32{1, 0, 0}, CreatedAt: base}))
			require.NoError(t, idx.Put(ctx, Entry{ID: "b", Type: model.TypeLocation, Vector: []float32{1, 1, 0}, CreatedAt: base}))
			require.NoError(t, idx.Put(ctx, Entry{ID: "c", Type: model.TypeItem, Vector: []float32{0, 0, 1}, CreatedAt: base}))

			hits, err := idx.Search(ctx, []float32{2, 0, 0}, 10, "")
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "b", "c"}, ids(hits))
			assert.InDelta(t, 1.0, hits[0].Similarity, 1e-5)
			assert.InDelta(t, 0.7071, hits[1].Similarity, 1e-3)
			assert.InDelta(t, 0.0, hits[2].Similarity, 1e-5)

			hits, err = idx.Search(ctx, []float32{1, 0, 0}, 2, "")
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "b"}, ids(hits))
		})
	}
}

func TestSearch_TieBreaks(t *testing.T) {
	ctx := context.Background()
	for name, idx := range backends(t) {
		t.Run(name, func(t *testing.T) {
			v := []float32{0, 1}
			require.NoError(t, idx.Put(ctx, Entry{ID: "01A", Type: model.TypeEvent, Vector: v, CreatedAt: base}))
			require.NoError(t, idx.Put(ctx, Entry{ID: "01B", Type: model.TypeEvent, Vector: v, CreatedAt: base}))
			require.NoError(t, idx.Put(ctx, Entry{ID: "01C", Type: model.TypeEvent, Vector: v, CreatedAt: base.Add(time.Second)}))
			require.NoError(t, idx.Put(ctx, Entry{ID: "01D", Type: model.TypeEvent, Vector: v, CreatedAt: base.Add(-time.Hour)}))

			// Same similarity: newer creation first, then higher id.
			hits, err := idx.Search(ctx, v, 10, "")
			require.NoError(t, err)
			assert.Equal(t, []string{"01C", "01B", "01A", "01D"}, ids(hits))

			// A referenced memory outranks never-referenced ones.
			idx.Touch("01D", base)
			hits, err = idx.Search(ctx, v, 10, "")
			require.NoError(t, err)
			assert.Equal(t, []string{"01D", "01C", "01B", "01A"}, ids(hits))

			idx.Touch("01A", base.Add(time.Minute))
			hits, err = idx.Search(ctx, v, 10, "")
			require.NoError(t, err)
			assert.Equal(t, []string{"01A", "01D", "01C", "01B"}, ids(hits))

			idx.Touch("missing", base)
			assert.Equal(t, 4, idx.Len())
		})
	}
}

func TestSearch_TypeFilterAndLimits(t *testing.T) {
	ctx := context.Background()
	for name, idx := range backends(t) {
		t.Run(name, func(t *testing.T) {
			hits, err := idx.Search(ctx, []float32{1, 0}, 5, "")
			require.NoError(t, err)
			assert.Empty(t, hits)

			require.NoError(t, idx.Put(ctx, Entry{ID: "x", Type: model.TypeCharacter, Vector: []float32{1, 0}, CreatedAt: base}))
			require.NoError(t, idx.Put(ctx, Entry{ID: "y", Type: model.TypeLocation, Vector: []float32{1, 0}, CreatedAt: base}))

			hits, err = idx.Search(ctx, []float32{1, 0}, 5, model.TypeLocation)
			require.NoError(t, err)
			assert.Equal(t, []string{"y"}, ids(hits))

			hits, err = idx.Search(ctx, []float32{1, 0}, 0, "")
			require.NoError(t, err)
			assert.Empty(t, hits)

			hits, err = idx.Search(ctx, []float32{1, 0}, -3, "")
			require.NoError(t, err)
			assert.Empty(t, hits)
		})
	}
}

func TestSearch_ZeroVectors(t *testing.T) {
	ctx := context.Background()
	for name, idx := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, idx.Put(ctx, Entry{ID: "z", Type: model.TypeItem, Vector: []float32{0, 0}, CreatedAt: base}))
			require.NoError(t, idx.Put(ctx, Entry{ID: "n", Type: model.TypeItem, Vector: []float32{0, 1}, CreatedAt: base}))

			hits, err := idx.Search(ctx, []float32{0, 1}, 5, "")
			require.NoError(t, err)
			assert.Equal(t, []string{"n", "z"}, ids(hits))
			assert.Equal(t, 0.0, hits[1].Similarity)

			hits, err = idx.Search(ctx, []float32{0, 0}, 5, "")
			require.NoError(t, err)
			assert.Len(t, hits, 2)
			for _, h := range hits {
				assert.Equal(t, 0.0, h.Similarity)
			}
		})
	}
}

func TestRemoveAndReplace(t *testing.T) {
	ctx := context.Background()
	for name, idx := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, idx.Put(ctx, Entry{ID: "a", Type: model.TypeItem, Vector: []float32{1, 0}, CreatedAt: base}))
			require.NoError(t, idx.Put(ctx, Entry{ID: "b", Type: model.TypeItem, Vector: []float32{0, 1}, CreatedAt: base}))

			// Replacing a vector re-scores the entry.
			require.NoError(t, idx.Put(ctx, Entry{ID: "a", Type: model.TypeItem, Vector: []float32{0, 1}, CreatedAt: base.Add(time.Second)}))
			hits, err := idx.Search(ctx, []float32{0, 1}, 1, "")
			require.NoError(t, err)
			assert.Equal(t, []string{"a"}, ids(hits))

			require.NoError(t, idx.Remove(ctx, "a"))
			require.NoError(t, idx.Remove(ctx, "a"))
			assert.Equal(t, 1, idx.Len())
			hits, err = idx.Search(ctx, []float32{0, 1}, 5, "")
			require.NoError(t, err)
			assert.Equal(t, []string{"b"}, ids(hits))
		})
	}
}

func TestBackendsAgree(t *testing.T) {
	ctx := context.Background()
	all := backends(t)
	vecs := [][]float32{{1, 2, 3}, {3, 1, 0}, {1, 0, 1}, {0, 1, 0}, {1, 2, 3}, {2, 2, 2}}
	for _, idx := range all {
		for i, v := range vecs {
			e := Entry{
				ID:        fmt.Sprintf("m%02d", i),
				Type:      model.Types[i%len(model.Types)],
				Vector:    v,
				CreatedAt: base.Add(time.Duration(i%2) * time.Minute),
			}
			require.NoError(t, idx.Put(ctx, e))
		}
	}

	queries := [][]float32{{1, 2, 3}, {0, 0, 1}, {1, 1, 1}}
	for _, q := range queries {
		flat, err := all[BackendFlat].Search(ctx, q, 4, "")
		require.NoError(t, err)
		chrom, err := all[BackendChromem].Search(ctx, q, 4, "")
		require.NoError(t, err)
		assert.Equal(t, ids(flat), ids(chrom), "query %v", q)
	}
}

func TestConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	for name, idx := range backends(t) {
		t.Run(name, func(t *testing.T) {
			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(2)
				go func(i int) {
					defer wg.Done()
					_ = idx.Put(ctx, Entry{ID: fmt.Sprintf("id%02d", i), Type: model.TypeEvent, Vector: []float32{float32(i), 1}, CreatedAt: base})
				}(i)
				go func() {
					defer wg.Done()
					_, _ = idx.Search(ctx, []float32{1, 1}, 3, "")
				}()
			}
			wg.Wait()
			assert.Equal(t, 20, idx.Len())
		})
	}
}

func TestNew_UnknownBackend(t *testing.T) {
	_, err := New("faiss")
	assert.Error(t, err)
}

func TestFlatSearch_AllocationsDoNotGrowWithEntries(t *testing.T) {
	ctx := context.Background()
	fill := func(n int) *Flat {
		f := NewFlat()
		for i := 0; i < n; i++ {
			v := make([]float32, 256)
			v[i%256] = 1
			v[(i+1)%256] = float32(i)
			require.NoError(t, f.Put(ctx, Entry{ID: fmt.Sprintf("m%04d", i), Type: model.TypeEvent, Vector: v, CreatedAt: base}))
		}
		return f
	}
	q := make([]float32, 256)
	q[3] = 1

	small, large := fill(1), fill(500)
	allocs := func(f *Flat) float64 {
		return testing.AllocsPerRun(20, func() {
			_, _ = f.Search(ctx, q, 5, "")
		})
	}
	assert.LessOrEqual(t, allocs(large), allocs(small)+1)
}
