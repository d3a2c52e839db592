// 包 catalog 负责加载联盟计划目录（programs.yaml），
// 以计划名为键组织，供评分匹配使用，并可写入数据库。
package catalog

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"go-thread-scout/internal/model"
)

// Catalog 表示全部联盟计划：键为计划名。
type Catalog struct {
	Programs map[string]model.AffiliateProgram
}

// entry 为 YAML 中的单个计划；active 缺省视为启用。
type entry struct {
	Description string   `yaml:"description"`
	Link        string   `yaml:"link"`
	PromoCode   string   `yaml:"promo_code"`
	Keywords    []string `yaml:"keywords"`
	Commission  string   `yaml:"commission"`
	Active      *bool    `yaml:"active"`
}

func Load(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog %s: %w", path, err)
	}
	defer f.Close()
	b, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return Parse(b)
}

// Parse 解析 YAML 内容；计划名重复（不区分大小写）视为错误。
func Parse(b []byte) (*Catalog, error) {
	var raw map[string]entry
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal catalog: %w", err)
	}
	c := &Catalog{Programs: make(map[string]model.AffiliateProgram, len(raw))}
	seen := map[string]string{}
	for name, e := range raw {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("catalog: empty program name")
		}
		if prev, ok := seen[strings.ToLower(name)]; ok {
			return nil, fmt.Errorf("catalog: duplicate program %q and %q", prev, name)
		}
		seen[strings.ToLower(name)] = name
		active := true
		if e.Active != nil {
			active = *e.Active
		}
		c.Programs[name] = model.AffiliateProgram{
			Name:        name,
			Description: e.Description,
			Link:        e.Link,
			PromoCode:   e.PromoCode,
			Keywords:    cleanKeywords(e.Keywords),
			Commission:  e.Commission,
			Active:      active,
		}
	}
	return c, nil
}

// Get 按名称获取计划（不区分大小写）。
func (c *Catalog) Get(name string) (model.AffiliateProgram, bool) {
	if c == nil || len(c.Programs) == 0 {
		return model.AffiliateProgram{}, false
	}
	if p, ok := c.Programs[name]; ok {
		return p, true
	}
	lower := strings.ToLower(strings.TrimSpace(name))
	for k, v := range c.Programs {
		if strings.ToLower(k) == lower {
			return v, true
		}
	}
	return model.AffiliateProgram{}, false
}

// List 返回按名称排序的计划列表。
func (c *Catalog) List() []model.AffiliateProgram {
	if c == nil {
		return nil
	}
	out := make([]model.AffiliateProgram, 0, len(c.Programs))
	for _, p := range c.Programs {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name) })
	return out
}

// Writer 为写入计划所需的持久化操作。
type Writer interface {
	UpsertProgram(ctx context.Context, p *model.AffiliateProgram) error
}

// Seed 按名称 upsert 目录中的全部计划，返回写入数量。
func (c *Catalog) Seed(ctx context.Context, w Writer) (int, error) {
	n := 0
	for _, p := range c.List() {
		if err := w.UpsertProgram(ctx, &p); err != nil {
			return n, fmt.Errorf("seed %s: %w", p.Name, err)
		}
		n++
	}
	return n, nil
}

func cleanKeywords(in []string) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, k := range in {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if _, ok := seen[strings.ToLower(k)]; ok {
			continue
		}
		seen[strings.ToLower(k)] = struct{}{}
		out = append(out, k)
	}
	return out
}
