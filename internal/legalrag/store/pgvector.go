package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier 是 PGIndex 依赖的 pgx 子集，*pgxpool.Pool 满足该接口。
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

var _ Index = (*PGIndex)(nil)

// PGIndex 基于 PostgreSQL + pgvector 的索引。
// 向量查询使用余弦距离运算符 <=>，关键词查询使用 ts_rank_cd。
type PGIndex struct {
	db    Querier
	table string
}

// NewPGIndex 创建 PostgreSQL 索引。
func NewPGIndex(db Querier, table string) *PGIndex {
	return &PGIndex{
		db:    db,
		table: pgx.Identifier{table}.Sanitize(),
	}
}

const chunkColumns = "id, document_id, document_title, chunk_type, page_number, position, content, concepts"

// EnsureSchema 创建扩展、表和索引（幂等）。
func (s *PGIndex) EnsureSchema(ctx context.Context, dimension int) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id             TEXT PRIMARY KEY,
			document_id    TEXT NOT NULL,
			document_title TEXT NOT NULL DEFAULT '',
			chunk_type     TEXT NOT NULL DEFAULT '',
			page_number    INTEGER NOT NULL DEFAULT 0,
			position       INTEGER NOT NULL DEFAULT 0,
			content        TEXT NOT NULL,
			concepts       TEXT[] NOT NULL DEFAULT '{}',
			embedding      vector(%d),
			tsv            tsvector GENERATED ALWAYS AS (to_tsvector('english', content)) STORED
		)`, s.table, dimension),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (document_id)`, pgx.Identifier{s.rawTable() + "_doc_idx"}.Sanitize(), s.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING GIN (tsv)`, pgx.Identifier{s.rawTable() + "_tsv_idx"}.Sanitize(), s.table),
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure postgres schema: %w", err)
		}
	}
	return nil
}

// Upsert 写入或替换块。
func (s *PGIndex) Upsert(ctx context.Context, chunks []*Chunk) error {
	sql := fmt.Sprintf(`INSERT INTO %s (%s, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::vector)
		ON CONFLICT (id) DO UPDATE SET
			document_id = EXCLUDED.document_id,
			document_title = EXCLUDED.document_title,
			chunk_type = EXCLUDED.chunk_type,
			page_number = EXCLUDED.page_number,
			position = EXCLUDED.position,
			content = EXCLUDED.content,
			concepts = EXCLUDED.concepts,
			embedding = EXCLUDED.embedding`, s.table, chunkColumns)

	for _, c := range chunks {
		concepts := c.Concepts
		if concepts == nil {
			concepts = []string{}
		}
		var embedding any
		if len(c.Embedding) > 0 {
			embedding = VectorLiteral(c.Embedding)
		}
		if _, err := s.db.Exec(ctx, sql,
			c.ID, c.DocumentID, c.DocumentTitle, c.ChunkType, c.PageNumber, c.Position, c.Content, concepts, embedding,
		); err != nil {
			return fmt.Errorf("failed to upsert chunk %s: %w", c.ID, err)
		}
	}
	return nil
}

// VectorQuery 实现 Index。
func (s *PGIndex) VectorQuery(ctx context.Context, vector []float32, threshold float64, filter Filter, limit int) ([]Candidate, error) {
	args := []any{VectorLiteral(vector), threshold}
	where, args := buildPGFilter(filter, args)

	sql := fmt.Sprintf(`SELECT %s, 1 - (embedding <=> $1::vector) AS score
		FROM %s
		WHERE embedding IS NOT NULL AND 1 - (embedding <=> $1::vector) >= $2%s
		ORDER BY embedding <=> $1::vector, id
		LIMIT %d`, chunkColumns, s.table, where, normalizeLimit(limit))

	return s.query(ctx, sql, args)
}

// KeywordQuery 实现 Index。ts_rank_cd 的归一化选项 32 把分数映射到 [0,1)。
func (s *PGIndex) KeywordQuery(ctx context.Context, text string, filter Filter, limit int) ([]Candidate, error) {
	args := []any{text}
	where, args := buildPGFilter(filter, args)

	sql := fmt.Sprintf(`SELECT %s, ts_rank_cd(tsv, plainto_tsquery('english', $1), 32) AS score
		FROM %s
		WHERE tsv @@ plainto_tsquery('english', $1)%s
		ORDER BY score DESC, id
		LIMIT %d`, chunkColumns, s.table, where, normalizeLimit(limit))

	return s.query(ctx, sql, args)
}

// DocumentChunks 实现 Index。
func (s *PGIndex) DocumentChunks(ctx context.Context, documentID string) ([]*Chunk, error) {
	sql := fmt.Sprintf(`SELECT %s, 0::float8 AS score FROM %s WHERE document_id = $1 ORDER BY position, id`, chunkColumns, s.table)
	cands, err := s.query(ctx, sql, []any{documentID})
	if err != nil {
		return nil, err
	}
	chunks := make([]*Chunk, len(cands))
	for i, c := range cands {
		chunks[i] = c.Chunk
	}
	return chunks, nil
}

func (s *PGIndex) query(ctx context.Context, sql string, args []any) ([]Candidate, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres query failed: %w", err)
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		var (
			c     Chunk
			score float64
		)
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.DocumentTitle, &c.ChunkType, &c.PageNumber, &c.Position, &c.Content, &c.Concepts, &score); err != nil {
			return nil, fmt.Errorf("failed to scan chunk row: %w", err)
		}
		out = append(out, Candidate{Chunk: &c, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres rows error: %w", err)
	}
	return out, nil
}

func (s *PGIndex) rawTable() string {
	return strings.Trim(s.table, `"`)
}

// buildPGFilter 追加过滤条件，返回以 " AND" 开头的片段和新的参数列表。
func buildPGFilter(f Filter, args []any) (string, []any) {
	var sb strings.Builder
	if len(f.DocumentIDs) > 0 {
		args = append(args, f.DocumentIDs)
		fmt.Fprintf(&sb, " AND document_id = ANY($%d)", len(args))
	}
	if len(f.ChunkTypes) > 0 {
		lowered := make([]string, len(f.ChunkTypes))
		for i, t := range f.ChunkTypes {
			lowered[i] = strings.ToLower(t)
		}
		args = append(args, lowered)
		fmt.Fprintf(&sb, " AND lower(chunk_type) = ANY($%d)", len(args))
	}
	if len(f.ExcludeDocumentIDs) > 0 {
		args = append(args, f.ExcludeDocumentIDs)
		fmt.Fprintf(&sb, " AND NOT (document_id = ANY($%d))", len(args))
	}
	return sb.String(), args
}

// VectorLiteral 把向量编码为 pgvector 文本格式，如 [0.1,0.2]。
func VectorLiteral(v []float32) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(float64(x), 'f', -1, 32))
	}
	sb.WriteByte(']')
	return sb.String()
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 100
	}
	return limit
}
