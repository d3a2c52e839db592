package scoring

import (
	"go-thread-scout/internal/config"
	"go-thread-scout/internal/model"
)

// Weights 为各评分分段的权重与上限，每段独立封顶。
type Weights struct {
	UpvotesPerPoint  int
	UpvoteCap        int
	CommentsPerPoint int
	CommentCap       int
	IntentPoints     map[model.Intent]int
	IntentCap        int
	PerProgram       int
	ProgramCap       int
	SerpBonus        int
}

// DefaultIntentPoints 为意图分值表。
var DefaultIntentPoints = map[model.Intent]int{
	model.IntentComparison: 25,
	model.IntentQuestion:   20,
	model.IntentReview:     15,
	model.IntentDiscovery:  12,
	model.IntentDiscussion: 5,
}

// DefaultWeights 返回内置权重：投票 30 + 评论 10 + 意图 25 + 计划 25 + 排名 10。
func DefaultWeights() Weights {
	return Weights{
		UpvotesPerPoint:  10,
		UpvoteCap:        30,
		CommentsPerPoint: 5,
		CommentCap:       10,
		IntentPoints:     DefaultIntentPoints,
		IntentCap:        25,
		PerProgram:       10,
		ProgramCap:       25,
		SerpBonus:        10,
	}
}

// WeightsFromConfig 将 SCORING 配置转换为 Weights，未配置的意图沿用内置分值。
func WeightsFromConfig(c config.Scoring) Weights {
	w := DefaultWeights()
	setPos(&w.UpvotesPerPoint, c.UpvotesPerPoint)
	setPos(&w.UpvoteCap, c.UpvoteCap)
	setPos(&w.CommentsPerPoint, c.CommentsPerPoint)
	setPos(&w.CommentCap, c.CommentCap)
	setPos(&w.IntentCap, c.IntentCap)
	setPos(&w.PerProgram, c.PerProgram)
	setPos(&w.ProgramCap, c.ProgramCap)
	setPos(&w.SerpBonus, c.SerpBonus)
	if len(c.IntentPoints) > 0 {
		pts := make(map[model.Intent]int, len(DefaultIntentPoints))
		for k, v := range DefaultIntentPoints {
			pts[k] = v
		}
		for k, v := range c.IntentPoints {
			if v >= 0 {
				pts[model.Intent(k)] = v
			}
		}
		w.IntentPoints = pts
	}
	return w
}

func setPos(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

// Score 计算 0..100 的机会分：
// 投票/评论/意图/计划数各自封顶，命中搜索结果再加固定分，最后整体截断。
// 计划数与 hasSerpMatch 对结果单调不减。
func Score(t model.ThreadRecord, programIDs []string, intent model.Intent, hasSerpMatch bool, w Weights) int {
	total := 0
	total += band(perPoint(t.Upvotes, w.UpvotesPerPoint), w.UpvoteCap)
	total += band(perPoint(t.Comments, w.CommentsPerPoint), w.CommentCap)
	if intent != "" {
		total += band(w.IntentPoints[intent], w.IntentCap)
	}
	total += band(len(programIDs)*w.PerProgram, w.ProgramCap)
	if hasSerpMatch {
		total += w.SerpBonus
	}
	return clamp(total, 0, 100)
}

func perPoint(n, per int) int {
	if n <= 0 {
		return 0
	}
	if per <= 0 {
		per = 1
	}
	return n / per
}

func band(v, limit int) int {
	if v < 0 {
		return 0
	}
	if limit >= 0 && v > limit {
		return limit
	}
	return v
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
