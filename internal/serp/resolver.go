package serp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go-thread-scout/internal/logx"
	"go-thread-scout/internal/model"
)

var log = logx.For("serp")

// Store 为排名查询所需的持久化操作。
type Store interface {
	GetThread(ctx context.Context, id string) (model.ThreadRecord, error)
	CreateSerpCheck(ctx context.Context, c *model.SerpCheck) error
	UpdateThreadRank(ctx context.Context, id string, rank *int) error
}

// Options 为扫描参数，零值使用默认：每页 10 条，最多 10 页。
// PageSize 超过 MaxPageSize 时按 MaxPageSize 处理。
type Options struct {
	PageSize    int
	MaxPages    int
	QuerySuffix string
}

// Resolver 负责单个帖子的排名查询。
type Resolver struct {
	provider Provider
	store    Store
	opts     Options
	now      func() time.Time
}

// NewResolver 创建 Resolver。
func NewResolver(p Provider, s Store, opts Options) *Resolver {
	if opts.PageSize <= 0 || opts.PageSize > MaxPageSize {
		opts.PageSize = MaxPageSize
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = 10
	}
	if opts.QuerySuffix == "" {
		opts.QuerySuffix = DefaultSuffix
	}
	return &Resolver{provider: p, store: s, opts: opts, now: time.Now}
}

// CheckPosition 查询帖子排名并追加一条 SerpCheck，同时更新帖子 rank。
// query 为空时由帖子内容生成。未命中返回 Position 为 nil 的正常结果；
// 搜索接口出错时直接返回错误，不写任何记录。
func (r *Resolver) CheckPosition(ctx context.Context, threadID, query string) (model.SerpCheck, error) {
	t, err := r.store.GetThread(ctx, threadID)
	if err != nil {
		return model.SerpCheck{}, fmt.Errorf("load thread %s: %w", threadID, err)
	}
	query = strings.TrimSpace(query)
	if query == "" {
		query = BuildQuery(t, r.opts.QuerySuffix)
	}

	pos, err := r.scan(ctx, query, canonical(t))
	if err != nil {
		return model.SerpCheck{}, err
	}

	c := model.SerpCheck{
		ThreadID:  t.ID,
		Query:     query,
		Position:  pos,
		IsRanked:  pos != nil,
		CheckedAt: r.now(),
	}
	if err := r.store.CreateSerpCheck(ctx, &c); err != nil {
		return model.SerpCheck{}, fmt.Errorf("save serp check: %w", err)
	}
	if err := r.store.UpdateThreadRank(ctx, t.ID, pos); err != nil {
		return c, fmt.Errorf("update thread rank: %w", err)
	}
	if pos != nil {
		log.Infof("排名命中：thread=%s 位置=%d query=%q", t.ID, *pos, query)
	} else {
		log.Infof("未进入前 %d 名：thread=%s query=%q", r.opts.PageSize*r.opts.MaxPages, t.ID, query)
	}
	return c, nil
}

// scan 逐页累加名次，返回首个包含 target 的结果的 1 起名次。
// 下一页的 start 取已扫描的结果数，接口实际返回条数少于 PageSize 时名次不会跳号。
func (r *Resolver) scan(ctx context.Context, query, target string) (*int, error) {
	rank := 0
	for page := 0; page < r.opts.MaxPages; page++ {
		res, err := r.provider.Search(ctx, query, rank+1, r.opts.PageSize)
		if err != nil {
			return nil, fmt.Errorf("search page %d: %w", page+1, err)
		}
		for _, link := range res.Links {
			rank++
			if link != "" && strings.Contains(strings.ToLower(link), target) {
				found := rank
				return &found, nil
			}
		}
		if len(res.Links) == 0 || !res.HasNext {
			break
		}
	}
	return nil, nil
}
