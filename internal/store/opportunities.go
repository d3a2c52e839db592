package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go-thread-scout/internal/model"
)

const opportunityColumns = `id, thread_id, score, COALESCE(intent,''), program_ids, serp_match, COALESCE(action,'pending'), created_at, updated_at`

// GetOpportunityByThreadID 返回帖子当前的机会记录，不存在时返回 ErrNotFound。
func (s *SQLite) GetOpportunityByThreadID(ctx context.Context, threadID string) (model.Opportunity, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+opportunityColumns+` FROM opportunities WHERE thread_id = ?`, threadID)
	o, err := scanOpportunity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return o, fmt.Errorf("opportunity for thread %s: %w", threadID, ErrNotFound)
	}
	if err != nil {
		return o, fmt.Errorf("get opportunity %s: %w", threadID, err)
	}
	return o, nil
}

// CreateOpportunity 新建机会；thread_id 唯一约束保证每个帖子至多一条。
func (s *SQLite) CreateOpportunity(ctx context.Context, o *model.Opportunity) error {
	if o.ID == "" {
		o.ID = model.NewID()
	}
	if o.Action == "" {
		o.Action = model.ActionPending
	}
	o.CreatedAt = nowOr(o.CreatedAt)
	o.UpdatedAt = nowOr(o.UpdatedAt)
	_, err := s.db.ExecContext(ctx, `INSERT INTO opportunities(id, thread_id, score, intent, program_ids, serp_match, action, created_at, updated_at)
        VALUES(?,?,?,?,?,?,?,?,?)`,
		o.ID, o.ThreadID, o.Score, nullString(string(o.Intent)), encodeList(o.ProgramIDs), o.SerpMatch, string(o.Action), o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create opportunity for thread %s: %w", o.ThreadID, err)
	}
	return nil
}

// UpdateOpportunity 原地更新评分派生字段与处理状态。
func (s *SQLite) UpdateOpportunity(ctx context.Context, o model.Opportunity) error {
	res, err := s.db.ExecContext(ctx, `UPDATE opportunities SET score = ?, intent = ?, program_ids = ?, serp_match = ?, action = ?, updated_at = ?
        WHERE id = ?`,
		o.Score, nullString(string(o.Intent)), encodeList(o.ProgramIDs), o.SerpMatch, string(o.Action), nowOr(o.UpdatedAt), o.ID)
	if err != nil {
		return fmt.Errorf("update opportunity %s: %w", o.ID, err)
	}
	return affected(res, "opportunity", o.ID)
}

// UpdateOpportunityScore 只更新评分派生字段，不触碰 action，
// 与并发的 UpdateOpportunity(action) 互不覆盖。
func (s *SQLite) UpdateOpportunityScore(ctx context.Context, o model.Opportunity) error {
	res, err := s.db.ExecContext(ctx, `UPDATE opportunities SET score = ?, intent = ?, program_ids = ?, serp_match = ?, updated_at = ?
        WHERE id = ?`,
		o.Score, nullString(string(o.Intent)), encodeList(o.ProgramIDs), o.SerpMatch, nowOr(o.UpdatedAt), o.ID)
	if err != nil {
		return fmt.Errorf("update opportunity score %s: %w", o.ID, err)
	}
	return affected(res, "opportunity", o.ID)
}

// ListOpportunities 按分数倒序返回机会；action 为空表示不过滤。
func (s *SQLite) ListOpportunities(ctx context.Context, action model.Action, limit int) ([]model.Opportunity, error) {
	q := `SELECT ` + opportunityColumns + ` FROM opportunities`
	var args []any
	if action != "" {
		q += ` WHERE action = ?`
		args = append(args, string(action))
	}
	q += ` ORDER BY score DESC, updated_at DESC`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query opportunities: %w", err)
	}
	defer rows.Close()
	var out []model.Opportunity
	for rows.Next() {
		o, err := scanOpportunity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan opportunities: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate opportunities: %w", err)
	}
	return out, nil
}

func scanOpportunity(sc scanner) (model.Opportunity, error) {
	var (
		o       model.Opportunity
		intent  string
		action  string
		ids     sql.NullString
		created sql.NullTime
		updated sql.NullTime
	)
	if err := sc.Scan(&o.ID, &o.ThreadID, &o.Score, &intent, &ids, &o.SerpMatch, &action, &created, &updated); err != nil {
		return o, err
	}
	o.Intent = model.Intent(intent)
	o.Action = model.Action(action)
	o.ProgramIDs = decodeList(ids)
	if created.Valid {
		o.CreatedAt = created.Time
	}
	if updated.Valid {
		o.UpdatedAt = updated.Time
	}
	return o, nil
}
