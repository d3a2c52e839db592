// 包 scoring 为与存储无关的分类与评分逻辑：
// - ClassifyIntent：按固定优先级的规则表判定意图
// - MatchKeywords：在帖子文本中匹配联盟计划名称与关键词
// - Score：分段封顶累加后截断到 [0,100]
// Engine.Refresh 在此之上完成全量重算与机会 upsert。
package scoring

import (
	"regexp"
	"strings"

	"go-thread-scout/internal/model"
)

// rule 为意图规则：任一标记命中即判定。
type rule struct {
	intent   model.Intent
	markers  []string
	patterns []*regexp.Regexp
	prefixes []string
}

// 规则表按优先级排列，先命中者生效；均未命中时为 Discussion。
var rules = []rule{
	{
		intent:  model.IntentComparison,
		markers: []string{"versus", "compare", "comparison", "better than", "alternative to", "alternatives to"},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`\bvs\b\.?`),
			regexp.MustCompile(`\bwhich\b.*\b(is|should)\b`),
		},
	},
	{
		intent:   model.IntentQuestion,
		markers:  []string{"?", "can someone", "does anyone", "anyone know"},
		prefixes: []string{"how", "what", "why", "which", "who", "where", "when", "is", "are", "can", "could", "should", "does", "do", "any", "has", "will"},
	},
	{
		intent:  model.IntentReview,
		markers: []string{"review", "experience with", "thoughts on", "honest opinion", "after using", "pros and cons"},
	},
	{
		intent:  model.IntentDiscovery,
		markers: []string{"looking for", "recommend", "suggestion", "best tool", "best app", "tools for", "just found", "discovered"},
	},
}

// DefaultIntent 为所有规则均未命中时的基线标签。
const DefaultIntent = model.IntentDiscussion

// ClassifyIntent 判定帖子意图，文本为小写的 标题 + 正文。
func ClassifyIntent(t model.ThreadRecord) model.Intent {
	return classifyText(t.Text())
}

func classifyText(text string) model.Intent {
	text = strings.TrimSpace(text)
	first := firstWord(text)
	for _, r := range rules {
		if r.matches(text, first) {
			return r.intent
		}
	}
	return DefaultIntent
}

func (r rule) matches(text, first string) bool {
	for _, m := range r.markers {
		if strings.Contains(text, m) {
			return true
		}
	}
	for _, p := range r.patterns {
		if p.MatchString(text) {
			return true
		}
	}
	for _, p := range r.prefixes {
		if first == p {
			return true
		}
	}
	return false
}

func firstWord(text string) string {
	f := strings.FieldsFunc(text, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r == '\'')
	})
	if len(f) == 0 {
		return ""
	}
	return f[0]
}
