package store

import (
	"context"
	"strings"

	"github.com/rcliao/lore-memory/internal/model"
)

// Search finds memories whose name or content match the query keywords.
// It tries the FTS5 index first (all terms must match, best bm25 first) and
// falls back to a substring match when the index yields nothing.
func (s *SQLiteStore) Search(ctx context.Context, p SearchParams) ([]model.Memory, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = 20
	}
	q := strings.TrimSpace(p.Query)
	if q == "" {
		return []model.Memory{}, nil
	}

	if match := ftsQuery(q); match != "" {
		where := []string{"memories_fts MATCH ?"}
		args := []interface{}{match}
		if p.Type != "" {
			where = append(where, "m.type = ?")
			args = append(args, string(p.Type))
		}
		args = append(args, limit)

		query := `SELECT m.id, m.type, m.name, m.content, m.embedding, m.created_at, m.last_referenced_at
			FROM memories_fts f
			JOIN memories m ON m.rowid = f.rowid
			WHERE ` + strings.Join(where, " AND ") + `
			ORDER BY bm25(memories_fts), m.created_at DESC, m.id DESC
			LIMIT ?`
		found, err := s.queryMemories(ctx, "fts search", query, args...)
		if err == nil && len(found) > 0 {
			return found, nil
		}
	}

	like := "%" + q + "%"
	where := []string{"(content LIKE ? OR name LIKE ?)"}
	args := []interface{}{like, like}
	if p.Type != "" {
		where = append(where, "type = ?")
		args = append(args, string(p.Type))
	}
	args = append(args, limit)

	query := `SELECT ` + memoryColumns + ` FROM memories
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY created_at DESC, id DESC
		LIMIT ?`
	return s.queryMemories(ctx, "search", query, args...)
}

// ftsQuery quotes each word so user input cannot inject FTS5 operators.
func ftsQuery(q string) string {
	var terms []string
	for _, w := range strings.Fields(q) {
		w = strings.Trim(w, `"'.,;:!?()[]{}`)
		if w == "" {
			continue
		}
		terms = append(terms, `"`+strings.ReplaceAll(w, `"`, `""`)+`"`)
	}
	return strings.Join(terms, " ")
}
