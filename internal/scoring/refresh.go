package scoring

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go-thread-scout/internal/logx"
	"go-thread-scout/internal/model"
	"go-thread-scout/internal/store"
)

var log = logx.For("scoring")

// Store 为 Refresh 所需的持久化操作，*store.SQLite 满足该接口。
type Store interface {
	ListThreads(ctx context.Context, f store.ThreadFilter) ([]model.ThreadRecord, error)
	ListPrograms(ctx context.Context, activeOnly bool) ([]model.AffiliateProgram, error)
	LatestSerpChecks(ctx context.Context) (map[string]model.SerpCheck, error)
	UpdateThreadEnrichment(ctx context.Context, t model.ThreadRecord) error
	GetOpportunityByThreadID(ctx context.Context, threadID string) (model.Opportunity, error)
	CreateOpportunity(ctx context.Context, o *model.Opportunity) error
	UpdateOpportunityScore(ctx context.Context, o model.Opportunity) error
}

// Engine 负责全量重算机会。
type Engine struct {
	store   Store
	weights Weights
	now     func() time.Time
}

// NewEngine 创建 Engine。
func NewEngine(s Store, w Weights) *Engine {
	return &Engine{store: s, weights: w, now: time.Now}
}

// Evaluation 为单个帖子的评分结果。
type Evaluation struct {
	Intent     model.Intent
	Keywords   []string
	ProgramIDs []string
	SerpMatch  bool
	Score      int
}

// Evaluate 为纯函数：对单个帖子完成分类、匹配与评分。
func Evaluate(t model.ThreadRecord, programs []model.AffiliateProgram, hasSerpMatch bool, w Weights) Evaluation {
	m := MatchKeywords(t, programs)
	intent := ClassifyIntent(t)
	return Evaluation{
		Intent:     intent,
		Keywords:   m.Keywords,
		ProgramIDs: m.ProgramIDs,
		SerpMatch:  hasSerpMatch,
		Score:      Score(t, m.ProgramIDs, intent, hasSerpMatch, w),
	}
}

// Refresh 读取全部帖子、启用的计划与最新排名检查，逐帖重算并 upsert 机会。
// 返回新建或发生变化的机会数；单个帖子的写入失败只记录日志，不中断批次。
func (e *Engine) Refresh(ctx context.Context) (int, error) {
	threads, err := e.store.ListThreads(ctx, store.ThreadFilter{})
	if err != nil {
		return 0, fmt.Errorf("list threads: %w", err)
	}
	programs, err := e.store.ListPrograms(ctx, true)
	if err != nil {
		return 0, fmt.Errorf("list programs: %w", err)
	}
	checks, err := e.store.LatestSerpChecks(ctx)
	if err != nil {
		return 0, fmt.Errorf("list serp checks: %w", err)
	}
	log.Infof("开始重算：帖子=%d 计划=%d", len(threads), len(programs))

	changed := 0
	for _, t := range threads {
		if err := ctx.Err(); err != nil {
			return changed, err
		}
		ev := Evaluate(t, programs, serpMatch(t, checks), e.weights)
		ok, err := e.apply(ctx, t, ev)
		if err != nil {
			log.Warnf("帖子 %s 重算失败：%v", t.ID, err)
			continue
		}
		if ok {
			changed++
		}
	}
	log.Infof("重算完成：变更机会=%d", changed)
	return changed, nil
}

// apply 写回帖子派生字段并 upsert 机会；机会四个派生字段都未变化时不写。
func (e *Engine) apply(ctx context.Context, t model.ThreadRecord, ev Evaluation) (bool, error) {
	if t.Intent != ev.Intent || t.Score != ev.Score || !slices.Equal(t.Keywords, ev.Keywords) {
		t.Intent, t.Score, t.Keywords = ev.Intent, ev.Score, ev.Keywords
		if err := e.store.UpdateThreadEnrichment(ctx, t); err != nil {
			return false, err
		}
	}

	opp, err := e.store.GetOpportunityByThreadID(ctx, t.ID)
	if errors.Is(err, store.ErrNotFound) {
		now := e.now()
		o := model.Opportunity{
			ThreadID:   t.ID,
			Score:      ev.Score,
			Intent:     ev.Intent,
			ProgramIDs: ev.ProgramIDs,
			SerpMatch:  ev.SerpMatch,
			Action:     model.ActionPending,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := e.store.CreateOpportunity(ctx, &o); err != nil {
			return false, err
		}
		return true, nil
	}
	if err != nil {
		return false, err
	}
	if opp.Score == ev.Score && opp.Intent == ev.Intent && opp.SerpMatch == ev.SerpMatch && slices.Equal(opp.ProgramIDs, ev.ProgramIDs) {
		return false, nil
	}
	opp.Score, opp.Intent, opp.SerpMatch, opp.ProgramIDs = ev.Score, ev.Intent, ev.SerpMatch, ev.ProgramIDs
	opp.UpdatedAt = e.now()
	if err := e.store.UpdateOpportunityScore(ctx, opp); err != nil {
		return false, err
	}
	return true, nil
}

// serpMatch 以最新一次排名检查为准；没有检查记录时参考帖子上的 rank 字段。
func serpMatch(t model.ThreadRecord, checks map[string]model.SerpCheck) bool {
	if c, ok := checks[t.ID]; ok {
		return c.IsRanked
	}
	return t.Rank != nil
}
