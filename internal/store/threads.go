package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go-thread-scout/internal/model"
)

// ThreadFilter 为帖子查询条件，零值表示全部。
type ThreadFilter struct {
	Community string
	Limit     int
}

const threadColumns = `id, community, permalink, title, COALESCE(body,''), COALESCE(author,''), upvotes, comments,
    COALESCE(flair,''), created_utc, harvested_at, synthetic, COALESCE(intent,''), keywords, score, rank`

// UpsertThread 按 (community, permalink) 插入或更新帖子的可变字段；
// permalink/created_utc 与评分字段不会被覆盖。回填 t.ID 并返回是否新建。
func (s *SQLite) UpsertThread(ctx context.Context, t *model.ThreadRecord) (bool, error) {
	if t.Permalink == "" || t.Community == "" {
		return false, errors.New("thread.community and thread.permalink required")
	}
	id := t.ID
	if id == "" {
		id = model.NewID()
	}
	var got string
	err := s.db.QueryRowContext(ctx, `INSERT INTO threads(id, community, permalink, title, body, author, upvotes, comments, flair, created_utc, harvested_at, synthetic, keywords)
        VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?)
        ON CONFLICT(community, permalink) DO UPDATE SET title=excluded.title, body=excluded.body, author=excluded.author,
            upvotes=excluded.upvotes, comments=excluded.comments, flair=excluded.flair,
            harvested_at=excluded.harvested_at, synthetic=excluded.synthetic
        RETURNING id`,
		id, t.Community, t.Permalink, t.Title, t.Body, t.Author, t.Upvotes, t.Comments, t.Flair,
		nowOr(t.CreatedUTC), nowOr(t.HarvestedAt), t.Synthetic, encodeList(t.Keywords)).Scan(&got)
	if err != nil {
		return false, fmt.Errorf("upsert thread %s%s: %w", t.Community, t.Permalink, err)
	}
	t.ID = got
	return got == id, nil
}

// GetThread 按 ID 查询帖子。
func (s *SQLite) GetThread(ctx context.Context, id string) (model.ThreadRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+threadColumns+` FROM threads WHERE id = ?`, id)
	t, err := scanThread(row)
	if errors.Is(err, sql.ErrNoRows) {
		return t, fmt.Errorf("thread %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return t, fmt.Errorf("get thread %s: %w", id, err)
	}
	return t, nil
}

// ListThreads 返回帖子，按 created_utc 倒序。
func (s *SQLite) ListThreads(ctx context.Context, f ThreadFilter) ([]model.ThreadRecord, error) {
	var (
		where []string
		args  []any
	)
	if f.Community != "" {
		where = append(where, "community = ? COLLATE NOCASE")
		args = append(args, f.Community)
	}
	q := `SELECT ` + threadColumns + ` FROM threads`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_utc DESC, id"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query threads: %w", err)
	}
	defer rows.Close()
	var out []model.ThreadRecord
	for rows.Next() {
		t, err := scanThread(rows)
		if err != nil {
			return nil, fmt.Errorf("scan threads: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate threads: %w", err)
	}
	return out, nil
}

// UpdateThreadEnrichment 写回评分阶段计算出的 intent/keywords/score。
func (s *SQLite) UpdateThreadEnrichment(ctx context.Context, t model.ThreadRecord) error {
	res, err := s.db.ExecContext(ctx, `UPDATE threads SET intent = ?, keywords = ?, score = ? WHERE id = ?`,
		nullString(string(t.Intent)), encodeList(t.Keywords), t.Score, t.ID)
	if err != nil {
		return fmt.Errorf("update thread %s: %w", t.ID, err)
	}
	return affected(res, "thread", t.ID)
}

// UpdateThreadRank 更新帖子的搜索排名（nil 表示未进入已扫描页面）。
func (s *SQLite) UpdateThreadRank(ctx context.Context, id string, rank *int) error {
	res, err := s.db.ExecContext(ctx, `UPDATE threads SET rank = ? WHERE id = ?`, nullInt(rank), id)
	if err != nil {
		return fmt.Errorf("update thread rank %s: %w", id, err)
	}
	return affected(res, "thread", id)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanThread(sc scanner) (model.ThreadRecord, error) {
	var (
		t         model.ThreadRecord
		intent    string
		keywords  sql.NullString
		rank      sql.NullInt64
		created   sql.NullTime
		harvested sql.NullTime
	)
	err := sc.Scan(&t.ID, &t.Community, &t.Permalink, &t.Title, &t.Body, &t.Author, &t.Upvotes, &t.Comments,
		&t.Flair, &created, &harvested, &t.Synthetic, &intent, &keywords, &t.Score, &rank)
	if err != nil {
		return t, err
	}
	t.Intent = model.Intent(intent)
	t.Keywords = decodeList(keywords)
	t.Rank = intPtr(rank)
	if created.Valid {
		t.CreatedUTC = created.Time
	}
	if harvested.Valid {
		t.HarvestedAt = harvested.Time
	}
	return t, nil
}

func affected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return nil
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return nil
}
