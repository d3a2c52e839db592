package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go-thread-scout/internal/model"
)

// UpsertProgram 按 name 插入或更新联盟计划，回填 p.ID。
func (s *SQLite) UpsertProgram(ctx context.Context, p *model.AffiliateProgram) error {
	if p.Name == "" {
		return errors.New("program.name required")
	}
	id := p.ID
	if id == "" {
		id = model.NewID()
	}
	err := s.db.QueryRowContext(ctx, `INSERT INTO programs(id, name, description, link, promo_code, keywords, commission, active)
        VALUES(?,?,?,?,?,?,?,?)
        ON CONFLICT(name) DO UPDATE SET description=excluded.description, link=excluded.link, promo_code=excluded.promo_code,
            keywords=excluded.keywords, commission=excluded.commission, active=excluded.active
        RETURNING id`,
		id, p.Name, p.Description, p.Link, p.PromoCode, encodeList(p.Keywords), p.Commission, p.Active).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("upsert program %s: %w", p.Name, err)
	}
	return nil
}

// ListPrograms 返回联盟计划，activeOnly 时只返回启用项；按名称排序。
func (s *SQLite) ListPrograms(ctx context.Context, activeOnly bool) ([]model.AffiliateProgram, error) {
	q := `SELECT id, name, COALESCE(description,''), COALESCE(link,''), COALESCE(promo_code,''), keywords, COALESCE(commission,''), active FROM programs`
	if activeOnly {
		q += ` WHERE active`
	}
	q += ` ORDER BY name`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query programs: %w", err)
	}
	defer rows.Close()
	var out []model.AffiliateProgram
	for rows.Next() {
		var (
			p        model.AffiliateProgram
			keywords sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Link, &p.PromoCode, &keywords, &p.Commission, &p.Active); err != nil {
			return nil, fmt.Errorf("scan programs: %w", err)
		}
		p.Keywords = decodeList(keywords)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate programs: %w", err)
	}
	return out, nil
}
