package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/rcliao/lore-memory/internal/model"
)

// SQLiteStore implements Store using SQLite.
//
// Writes are serialised through mu; reads go straight to the WAL-mode pool.
type SQLiteStore struct {
	db      *sql.DB
	path    string
	mu      sync.Mutex
	entropy io.Reader
	now     func() time.Time
}

var _ Store = (*SQLiteStore)(nil)

// Option configures a SQLiteStore.
type Option func(*SQLiteStore)

// WithClock overrides the store's time source.
func WithClock(now func() time.Time) Option {
	return func(s *SQLiteStore) { s.now = now }
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string, opts ...Option) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, storageErr("create db dir", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, storageErr("open db", err)
	}

	s := &SQLiteStore{
		db:      db,
		path:    dbPath,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, storageErr("migrate", err)
	}

	return s, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string { return s.path }

// newID must be called with mu held; monotonic entropy is not goroutine safe.
func (s *SQLiteStore) newID(at time.Time) string {
	return ulid.MustNew(ulid.Timestamp(at), s.entropy).String()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS memories (
		id                 TEXT PRIMARY KEY,
		type               TEXT NOT NULL,
		name               TEXT NOT NULL DEFAULT '',
		content            TEXT NOT NULL,
		embedding          BLOB,
		created_at         INTEGER NOT NULL,
		last_referenced_at INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_memories_type ON memories(type, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_memories_created ON memories(created_at DESC);

	CREATE TABLE IF NOT EXISTS world_state (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		key         TEXT NOT NULL,
		value       TEXT NOT NULL,
		recorded_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_world_key ON world_state(key, id DESC);

	CREATE TABLE IF NOT EXISTS turns (
		id            TEXT PRIMARY KEY,
		session_id    TEXT NOT NULL,
		user_text     TEXT NOT NULL,
		response_text TEXT NOT NULL,
		retrieved     TEXT,
		created_at    INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_id, created_at);

	CREATE VIRTUAL TABLE IF NOT EXISTS memories_fts USING fts5(
		name,
		content,
		content=memories,
		content_rowid=rowid
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	// FTS5 triggers for automatic sync
	triggers := []string{
		`CREATE TRIGGER IF NOT EXISTS memories_ai AFTER INSERT ON memories BEGIN
			INSERT INTO memories_fts(rowid, name, content) VALUES (new.rowid, new.name, new.content);
		END`,
		`CREATE TRIGGER IF NOT EXISTS memories_ad AFTER DELETE ON memories BEGIN
			INSERT INTO memories_fts(memories_fts, rowid, name, content) VALUES('delete', old.rowid, old.name, old.content);
		END`,
		`CREATE TRIGGER IF NOT EXISTS memories_au AFTER UPDATE OF name, content ON memories BEGIN
			INSERT INTO memories_fts(memories_fts, rowid, name, content) VALUES('delete', old.rowid, old.name, old.content);
			INSERT INTO memories_fts(rowid, name, content) VALUES (new.rowid, new.name, new.content);
		END`,
	}
	for _, t := range triggers {
		if _, err := s.db.Exec(t); err != nil {
			return err
		}
	}
	return nil
}

const memoryColumns = `id, type, name, content, embedding, created_at, last_referenced_at`

func (s *SQLiteStore) Put(ctx context.Context, p PutParams) (*model.Memory, error) {
	if !p.Type.Valid() {
		return nil, fmt.Errorf("%w: %q", model.ErrInvalidType, p.Type)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	id := p.ID
	if id == "" {
		id = s.newID(createdAt)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storageErr("begin", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO memories (`+memoryColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, string(p.Type), p.Name, p.Content, encodeVector(p.Embedding),
		createdAt.UnixNano(), nullTime(p.LastReferencedAt))
	if err != nil {
		return nil, storageErr("insert memory", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, storageErr("commit", err)
	}

	mem := &model.Memory{
		ID:               id,
		Type:             p.Type,
		Name:             p.Name,
		Content:          p.Content,
		Embedding:        append([]float32(nil), p.Embedding...),
		CreatedAt:        time.Unix(0, createdAt.UnixNano()).UTC(),
		LastReferencedAt: p.LastReferencedAt,
	}
	return mem, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*model.Memory, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+memoryColumns+` FROM memories WHERE id = ?`, id)
	m, err := scanMemory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: memory %s", model.ErrNotFound, id)
	}
	if err != nil {
		return nil, storageErr("get memory", err)
	}
	return &m, nil
}

// Has reports whether a memory with the given id exists.
func (s *SQLiteStore) Has(ctx context.Context, id string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories WHERE id = ?`, id).Scan(&n)
	if err != nil {
		return false, storageErr("lookup memory", err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) List(ctx context.Context, p ListParams) ([]model.Memory, error) {
	var where []string
	var args []interface{}

	if p.Type != "" {
		where = append(where, "type = ?")
		args = append(args, string(p.Type))
	}

	query := `SELECT ` + memoryColumns + ` FROM memories`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if p.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, p.Limit)
	}

	return s.queryMemories(ctx, "list memories", query, args...)
}

func (s *SQLiteStore) Touch(ctx context.Context, id string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE memories SET last_referenced_at = ? WHERE id = ?`, at.UnixNano(), id)
	if err != nil {
		return false, storageErr("touch memory", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *SQLiteStore) UpdateContent(ctx context.Context, id, content string, embedding []float32) (*model.Memory, error) {
	s.mu.Lock()
	res, err := s.db.ExecContext(ctx,
		`UPDATE memories SET content = ?, embedding = ? WHERE id = ?`,
		content, encodeVector(embedding), id)
	s.mu.Unlock()
	if err != nil {
		return nil, storageErr("update memory", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("%w: memory %s", model.ErrNotFound, id)
	}
	return s.Get(ctx, id)
}

func (s *SQLiteStore) Rm(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id)
	if err != nil {
		return storageErr("delete memory", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: memory %s", model.ErrNotFound, id)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) queryMemories(ctx context.Context, op, query string, args ...interface{}) ([]model.Memory, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer rows.Close()

	memories := []model.Memory{}
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, storageErr(op, err)
		}
		memories = append(memories, m)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(op, err)
	}
	return memories, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanMemory(row scanner) (model.Memory, error) {
	var m model.Memory
	var typ string
	var blob []byte
	var createdAt int64
	var lastRef sql.NullInt64

	err := row.Scan(&m.ID, &typ, &m.Name, &m.Content, &blob, &createdAt, &lastRef)
	if err != nil {
		return m, err
	}

	m.Type = model.MemoryType(typ)
	m.Embedding = decodeVector(blob)
	m.CreatedAt = time.Unix(0, createdAt).UTC()
	if lastRef.Valid {
		t := time.Unix(0, lastRef.Int64).UTC()
		m.LastReferencedAt = &t
	}
	return m, nil
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", model.ErrStorage, op, err)
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UnixNano()
}

// encodeVector packs a vector as little-endian float32s.
func encodeVector(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	if len(b) == 0 || len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
