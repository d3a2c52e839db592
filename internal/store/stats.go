package store

import (
	"context"
	"fmt"
	"time"

	"go-thread-scout/internal/model"
)

// Stats 统计汇总：帖子总数/样例数、机会总数/待处理数、已进入搜索结果的帖子数。
func (s *SQLite) Stats(ctx context.Context) (model.Stats, error) {
	var st model.Stats
	counts := []struct {
		q   string
		dst *int
	}{
		{`SELECT COUNT(1) FROM threads`, &st.ThreadsTotal},
		{`SELECT COUNT(1) FROM threads WHERE synthetic`, &st.ThreadsSynthetic},
		{`SELECT COUNT(1) FROM opportunities`, &st.OpportunitiesTotal},
		{`SELECT COUNT(1) FROM opportunities WHERE action = 'pending'`, &st.Pending},
		{`SELECT COUNT(1) FROM threads WHERE rank IS NOT NULL`, &st.Ranked},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.q).Scan(c.dst); err != nil {
			return st, fmt.Errorf("stats %q: %w", c.q, err)
		}
	}
	st.UpdatedAt = time.Now()
	return st, nil
}
