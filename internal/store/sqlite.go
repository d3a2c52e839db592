// 包 store 提供存储实现（SQLite），包含表迁移/写入/查询等操作。
// 每个写操作只作用于单个实体，不依赖多行事务。
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound 表示记录不存在。
var ErrNotFound = errors.New("not found")

// SQLite 封装 *sql.DB，基于 modernc.org/sqlite（纯 Go 实现）。
type SQLite struct {
	db *sql.DB
}

// OpenSQLite 打开 SQLite 数据库并执行自动迁移。
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

// Reset 清空业务数据表（不删除数据库文件）。
func (s *SQLite) Reset(ctx context.Context) error {
	for _, table := range []string{"serp_checks", "opportunities", "crawl_runs", "threads", "programs"} {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("delete %s: %w", table, err)
		}
	}
	return nil
}

// migrate 执行建表语句，保持幂等。
func (s *SQLite) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS threads (
            id TEXT PRIMARY KEY,
            community TEXT NOT NULL,
            permalink TEXT NOT NULL,
            title TEXT NOT NULL,
            body TEXT,
            author TEXT,
            upvotes INTEGER DEFAULT 0,
            comments INTEGER DEFAULT 0,
            flair TEXT,
            created_utc TIMESTAMP,
            harvested_at TIMESTAMP,
            synthetic BOOLEAN DEFAULT FALSE,
            intent TEXT,
            keywords TEXT,
            score INTEGER DEFAULT 0,
            rank INTEGER,
            UNIQUE(community, permalink)
        );`,
		`CREATE TABLE IF NOT EXISTS programs (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL UNIQUE,
            description TEXT,
            link TEXT,
            promo_code TEXT,
            keywords TEXT,
            commission TEXT,
            active BOOLEAN DEFAULT TRUE
        );`,
		`CREATE TABLE IF NOT EXISTS opportunities (
            id TEXT PRIMARY KEY,
            thread_id TEXT NOT NULL UNIQUE,
            score INTEGER NOT NULL,
            intent TEXT,
            program_ids TEXT,
            serp_match BOOLEAN DEFAULT FALSE,
            action TEXT DEFAULT 'pending',
            created_at TIMESTAMP,
            updated_at TIMESTAMP
        );`,
		`CREATE TABLE IF NOT EXISTS crawl_runs (
            id TEXT PRIMARY KEY,
            started_at TIMESTAMP NOT NULL,
            completed_at TIMESTAMP,
            communities TEXT,
            discovered INTEGER DEFAULT 0,
            saved INTEGER DEFAULT 0,
            status TEXT NOT NULL,
            error TEXT
        );`,
		`CREATE TABLE IF NOT EXISTS serp_checks (
            id TEXT PRIMARY KEY,
            thread_id TEXT NOT NULL,
            query TEXT NOT NULL,
            position INTEGER,
            is_ranked BOOLEAN DEFAULT FALSE,
            checked_at TIMESTAMP NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS idx_serp_checks_thread ON serp_checks(thread_id, checked_at);`,
		`CREATE INDEX IF NOT EXISTS idx_opportunities_score ON opportunities(score);`,
	}
	for _, q := range stmts {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("exec migrate: %w", err)
		}
	}
	return nil
}

func encodeList(v []string) string {
	if len(v) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func decodeList(s sql.NullString) []string {
	if !s.Valid || s.String == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s.String), &out); err != nil {
		return nil
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nowOr(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}
