// 包 serp 查询帖子在外部搜索结果中的排名：
// 按固定页大小逐页扫描，命中帖子规范地址即返回全局名次，未命中不视为错误。
package serp

import (
	"strings"
	"unicode"

	"go-thread-scout/internal/model"
)

const (
	titleLimit     = 60
	shortTitle     = 30
	bodyWords      = 5
	minBodyWordLen = 5
	queryLimit     = 100
	// DefaultSuffix 为查询末尾附加的固定词。
	DefaultSuffix = "reddit"
)

// BuildQuery 由帖子生成搜索词：标题（截断）+ 短标题时补充正文长词 + 社区名 + 后缀。
func BuildQuery(t model.ThreadRecord, suffix string) string {
	if suffix == "" {
		suffix = DefaultSuffix
	}
	parts := []string{truncate(strings.TrimSpace(t.Title), titleLimit)}
	if len([]rune(strings.TrimSpace(t.Title))) < shortTitle {
		parts = append(parts, longWords(t.Body, bodyWords)...)
	}
	if t.Community != "" {
		parts = append(parts, t.Community)
	}
	parts = append(parts, suffix)
	q := strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
	return strings.TrimSpace(truncate(q, queryLimit))
}

func longWords(body string, n int) []string {
	var out []string
	for _, w := range strings.Fields(body) {
		w = strings.TrimFunc(w, func(r rune) bool { return unicode.IsPunct(r) || unicode.IsSymbol(r) })
		if len([]rune(w)) < minBodyWordLen {
			continue
		}
		out = append(out, w)
		if len(out) == n {
			break
		}
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// canonical 返回用于比对的小写地址片段，例如 "reddit.com/r/seo/comments/abc/x"。
func canonical(t model.ThreadRecord) string {
	u := strings.ToLower(t.URL())
	u = strings.TrimPrefix(u, "https://")
	u = strings.TrimPrefix(u, "http://")
	u = strings.TrimPrefix(u, "www.")
	u = strings.TrimPrefix(u, "old.")
	return strings.TrimSuffix(u, "/")
}
