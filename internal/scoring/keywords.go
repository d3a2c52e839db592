package scoring

import (
	"sort"
	"strings"

	"go-thread-scout/internal/model"
)

// Match 为关键词匹配结果：命中的关键词与命中的计划 ID，均去重排序。
type Match struct {
	Keywords   []string
	ProgramIDs []string
}

// minTermLen 以下的名称变体不参与匹配，避免 "ai" 之类的短词误命中；
// 目录中显式配置的关键词不受此限制。
const minTermLen = 3

// MatchKeywords 在帖子文本中匹配启用中的联盟计划：
// 名称（原样/去空格/去掉结尾 AI 后缀）或任一关键词作为不区分大小写的子串出现即算命中。
func MatchKeywords(t model.ThreadRecord, programs []model.AffiliateProgram) Match {
	text := t.Text()
	hits := map[string]struct{}{}
	matched := map[string]struct{}{}
	for _, p := range programs {
		if !p.Active {
			continue
		}
		hit := false
		for _, term := range programTerms(p) {
			if strings.Contains(text, term) {
				hits[term] = struct{}{}
				hit = true
			}
		}
		if hit {
			id := p.ID
			if id == "" {
				id = p.Name
			}
			matched[id] = struct{}{}
		}
	}
	return Match{Keywords: sortedKeys(hits), ProgramIDs: sortedKeys(matched)}
}

// programTerms 返回计划的全部匹配词（小写、去重）。
func programTerms(p model.AffiliateProgram) []string {
	seen := map[string]struct{}{}
	var out []string
	add := func(s string, minLen int) {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" || len(s) < minLen {
			return
		}
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	for _, v := range nameVariants(p.Name) {
		add(v, minTermLen)
	}
	for _, k := range p.Keywords {
		add(k, 1)
	}
	return out
}

// nameVariants 返回名称的原样/去空格/去 AI 后缀形式。
// "Jasper AI" → "Jasper AI", "JasperAI", "Jasper"；"WriterAI" → 同时给出 "Writer"。
func nameVariants(name string) []string {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	out := []string{name, strings.ReplaceAll(name, " ", "")}
	if stripped, ok := stripAISuffix(name); ok {
		out = append(out, stripped)
	}
	return out
}

func stripAISuffix(name string) (string, bool) {
	lower := strings.ToLower(name)
	for _, suf := range []string{" ai", ".ai", "-ai", " a.i."} {
		if strings.HasSuffix(lower, suf) {
			return strings.TrimSpace(name[:len(name)-len(suf)]), true
		}
	}
	// 驼峰写法的结尾大写 AI，例如 "CopyAI"
	if len(name) > 2 && strings.HasSuffix(name, "AI") {
		prev := name[len(name)-3]
		if prev >= 'a' && prev <= 'z' {
			return name[:len(name)-2], true
		}
	}
	return "", false
}

func sortedKeys(m map[string]struct{}) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
