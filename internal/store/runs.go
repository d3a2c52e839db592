package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go-thread-scout/internal/model"
)

// CreateCrawlRun 写入一条抓取批次记录（通常为 running 状态）。
func (s *SQLite) CreateCrawlRun(ctx context.Context, r *model.CrawlRun) error {
	if r.ID == "" {
		r.ID = model.NewID()
	}
	r.StartedAt = nowOr(r.StartedAt)
	_, err := s.db.ExecContext(ctx, `INSERT INTO crawl_runs(id, started_at, completed_at, communities, discovered, saved, status, error)
        VALUES(?,?,?,?,?,?,?,?)`,
		r.ID, r.StartedAt, nullTime(r), encodeList(r.Communities), r.Discovered, r.Saved, string(r.Status), nullString(r.Error))
	if err != nil {
		return fmt.Errorf("create crawl run: %w", err)
	}
	return nil
}

// UpdateCrawlRun 更新批次的终态与计数。
func (s *SQLite) UpdateCrawlRun(ctx context.Context, r model.CrawlRun) error {
	res, err := s.db.ExecContext(ctx, `UPDATE crawl_runs SET completed_at = ?, discovered = ?, saved = ?, status = ?, error = ? WHERE id = ?`,
		nullTime(&r), r.Discovered, r.Saved, string(r.Status), nullString(r.Error), r.ID)
	if err != nil {
		return fmt.Errorf("update crawl run %s: %w", r.ID, err)
	}
	return affected(res, "crawl run", r.ID)
}

// GetCrawlRun 按 ID 查询批次。
func (s *SQLite) GetCrawlRun(ctx context.Context, id string) (model.CrawlRun, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, started_at, completed_at, communities, discovered, saved, status, COALESCE(error,'') FROM crawl_runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return r, fmt.Errorf("crawl run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return r, fmt.Errorf("get crawl run %s: %w", id, err)
	}
	return r, nil
}

// ListCrawlRuns 返回最近的批次，按开始时间倒序。
func (s *SQLite) ListCrawlRuns(ctx context.Context, limit int) ([]model.CrawlRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, started_at, completed_at, communities, discovered, saved, status, COALESCE(error,'')
        FROM crawl_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query crawl runs: %w", err)
	}
	defer rows.Close()
	var out []model.CrawlRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan crawl runs: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate crawl runs: %w", err)
	}
	return out, nil
}

func scanRun(sc scanner) (model.CrawlRun, error) {
	var (
		r           model.CrawlRun
		status      string
		completed   sql.NullTime
		communities sql.NullString
	)
	if err := sc.Scan(&r.ID, &r.StartedAt, &completed, &communities, &r.Discovered, &r.Saved, &status, &r.Error); err != nil {
		return r, err
	}
	r.Status = model.CrawlStatus(status)
	r.Communities = decodeList(communities)
	if completed.Valid {
		t := completed.Time
		r.CompletedAt = &t
	}
	return r, nil
}

func nullTime(r *model.CrawlRun) sql.NullTime {
	if r.CompletedAt == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *r.CompletedAt, Valid: true}
}
