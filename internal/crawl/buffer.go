package crawl

import (
	"context"
	"sort"
	"sync"
	"time"

	"go-thread-scout/internal/model"
)

// Buffer 在演练模式下收集抓取结果，不落库；实现 Store。
type Buffer struct {
	mu      sync.Mutex
	runs    map[string]model.CrawlRun
	threads map[string]model.ThreadRecord // key: community + permalink
}

func NewBuffer() *Buffer {
	return &Buffer{
		runs:    make(map[string]model.CrawlRun),
		threads: make(map[string]model.ThreadRecord),
	}
}

func (b *Buffer) CreateCrawlRun(_ context.Context, r *model.CrawlRun) error {
	if r.ID == "" {
		r.ID = model.NewID()
	}
	b.mu.Lock()
	b.runs[r.ID] = *r
	b.mu.Unlock()
	return nil
}

func (b *Buffer) UpdateCrawlRun(_ context.Context, r model.CrawlRun) error {
	b.mu.Lock()
	b.runs[r.ID] = r
	b.mu.Unlock()
	return nil
}

// UpsertThread 按 (community, permalink) 去重，重复写入保留首次分配的 ID。
func (b *Buffer) UpsertThread(_ context.Context, t *model.ThreadRecord) (bool, error) {
	key := t.Community + "\x00" + t.Permalink
	b.mu.Lock()
	defer b.mu.Unlock()
	if old, ok := b.threads[key]; ok {
		t.ID = old.ID
		b.threads[key] = *t
		return false, nil
	}
	if t.ID == "" {
		t.ID = model.NewID()
	}
	if t.HarvestedAt.IsZero() {
		t.HarvestedAt = time.Now()
	}
	b.threads[key] = *t
	return true, nil
}

// Snapshot 返回副本：帖子按发布时间倒序，运行记录按开始时间倒序。
func (b *Buffer) Snapshot() ([]model.ThreadRecord, []model.CrawlRun) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ts := make([]model.ThreadRecord, 0, len(b.threads))
	for _, v := range b.threads {
		ts = append(ts, v)
	}
	sort.Slice(ts, func(i, j int) bool { return ts[i].CreatedUTC.After(ts[j].CreatedUTC) })
	rs := make([]model.CrawlRun, 0, len(b.runs))
	for _, v := range b.runs {
		rs = append(rs, v)
	}
	sort.Slice(rs, func(i, j int) bool { return rs[i].StartedAt.After(rs[j].StartedAt) })
	return ts, rs
}
