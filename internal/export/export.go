// 包 export 负责导出机会清单：worklist.json 与 Atom 订阅。
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"go-thread-scout/internal/model"
	"go-thread-scout/internal/store"
)

// MaxItems 为导出条目上限，按分数倒序保留。
const MaxItems = 150

// Source 为导出所需的查询操作。
type Source interface {
	ListOpportunities(ctx context.Context, action model.Action, limit int) ([]model.Opportunity, error)
	ListThreads(ctx context.Context, f store.ThreadFilter) ([]model.ThreadRecord, error)
	Stats(ctx context.Context) (model.Stats, error)
}

// Worklist 查询机会并关联帖子，按分数倒序；action 为空时不过滤。
func Worklist(ctx context.Context, s Source, action model.Action, limit int) (model.Export, error) {
	if limit <= 0 || limit > MaxItems {
		limit = MaxItems
	}
	opps, err := s.ListOpportunities(ctx, action, limit)
	if err != nil {
		return model.Export{}, fmt.Errorf("list opportunities: %w", err)
	}
	threads, err := s.ListThreads(ctx, store.ThreadFilter{})
	if err != nil {
		return model.Export{}, fmt.Errorf("list threads: %w", err)
	}
	stats, err := s.Stats(ctx)
	if err != nil {
		return model.Export{}, fmt.Errorf("stats: %w", err)
	}
	byID := make(map[string]model.ThreadRecord, len(threads))
	for _, t := range threads {
		byID[t.ID] = t
	}
	items := make([]model.WorkItem, 0, len(opps))
	for _, o := range opps {
		t, ok := byID[o.ThreadID]
		if !ok {
			continue
		}
		items = append(items, model.WorkItem{Opportunity: o, Thread: t})
	}
	return model.Export{Stats: stats, Items: items}, nil
}

// ToJSON 查询清单并写入 JSON 文件（带缩进格式）。
func ToJSON(ctx context.Context, s Source, path string) error {
	out, err := Worklist(ctx, s, "", MaxItems)
	if err != nil {
		return err
	}
	return writeJSON(out, path)
}

// ToJSONData 直接将内存中的条目写成 JSON，带上限与统计，用于不落库的演练模式。
func ToJSONData(items []model.WorkItem, path string) error {
	items = append([]model.WorkItem(nil), items...)
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Opportunity.Score > items[j].Opportunity.Score
	})
	st := model.Stats{UpdatedAt: time.Now()}
	for _, it := range items {
		st.ThreadsTotal++
		if it.Thread.Synthetic {
			st.ThreadsSynthetic++
		}
		st.OpportunitiesTotal++
		if it.Opportunity.Action == "" || it.Opportunity.Action == model.ActionPending {
			st.Pending++
		}
		if it.Opportunity.SerpMatch {
			st.Ranked++
		}
	}
	if len(items) > MaxItems {
		items = items[:MaxItems]
	}
	return writeJSON(model.Export{Stats: st, Items: items}, path)
}

func writeJSON(out model.Export, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode json to %s: %w", path, err)
	}
	return nil
}
