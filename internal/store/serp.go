package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go-thread-scout/internal/model"
)

// CreateSerpCheck 追加一条排名查询记录。
func (s *SQLite) CreateSerpCheck(ctx context.Context, c *model.SerpCheck) error {
	if c.ID == "" {
		c.ID = model.NewID()
	}
	c.CheckedAt = nowOr(c.CheckedAt)
	_, err := s.db.ExecContext(ctx, `INSERT INTO serp_checks(id, thread_id, query, position, is_ranked, checked_at) VALUES(?,?,?,?,?,?)`,
		c.ID, c.ThreadID, c.Query, nullInt(c.Position), c.IsRanked, c.CheckedAt)
	if err != nil {
		return fmt.Errorf("create serp check for thread %s: %w", c.ThreadID, err)
	}
	return nil
}

// LatestSerpCheck 返回帖子最近一次排名查询，没有则返回 ErrNotFound。
func (s *SQLite) LatestSerpCheck(ctx context.Context, threadID string) (model.SerpCheck, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, thread_id, query, position, is_ranked, checked_at FROM serp_checks
        WHERE thread_id = ? ORDER BY checked_at DESC, rowid DESC LIMIT 1`, threadID)
	c, err := scanSerpCheck(row)
	if errors.Is(err, sql.ErrNoRows) {
		return c, fmt.Errorf("serp check for thread %s: %w", threadID, ErrNotFound)
	}
	if err != nil {
		return c, fmt.Errorf("latest serp check %s: %w", threadID, err)
	}
	return c, nil
}

// LatestSerpChecks 返回每个帖子最近一次排名查询（thread_id → check）。
func (s *SQLite) LatestSerpChecks(ctx context.Context) (map[string]model.SerpCheck, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, thread_id, query, position, is_ranked, checked_at FROM serp_checks
        ORDER BY checked_at ASC, rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("query serp checks: %w", err)
	}
	defer rows.Close()
	out := map[string]model.SerpCheck{}
	for rows.Next() {
		c, err := scanSerpCheck(rows)
		if err != nil {
			return nil, fmt.Errorf("scan serp checks: %w", err)
		}
		// 升序遍历，后写入的覆盖先写入的
		out[c.ThreadID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate serp checks: %w", err)
	}
	return out, nil
}

func scanSerpCheck(sc scanner) (model.SerpCheck, error) {
	var (
		c   model.SerpCheck
		pos sql.NullInt64
	)
	if err := sc.Scan(&c.ID, &c.ThreadID, &c.Query, &pos, &c.IsRanked, &c.CheckedAt); err != nil {
		return c, err
	}
	c.Position = intPtr(pos)
	return c, nil
}
