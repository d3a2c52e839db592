// 包 reddit 负责按社区抓取帖子：
// - 主站结构化列表（JSON）→ 镜像站列表 → 社区订阅（Atom）→ 内置样例，按序回退
// - Fetch 永不失败：全部策略失败时返回带 Synthetic 标记的样例记录
package reddit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go-thread-scout/internal/fetch"
	"go-thread-scout/internal/logx"
	"go-thread-scout/internal/model"
)

var log = logx.For("reddit")

// Options 为抓取参数。
type Options struct {
	PrimaryHost string
	MirrorHost  string
	Listing     string // hot|new|top
	// 切换社区之间的额外等待区间
	CommunityDelayMin time.Duration
	CommunityDelayMax time.Duration
}

// Harvester 为抓取入口，持有 HTTP 客户端与回退链。
type Harvester struct {
	fetch *fetch.Client
	opts  Options
	now   func() time.Time
}

// strategy 为回退链中的一环：成功返回记录，失败返回错误，由 Fetch 决定是否继续。
type strategy struct {
	name string
	run  func(ctx context.Context, community string, n int) ([]model.ThreadRecord, error)
}

// New 创建 Harvester。
func New(cl *fetch.Client, opts Options) *Harvester {
	if opts.PrimaryHost == "" {
		opts.PrimaryHost = "https://www.reddit.com"
	}
	if opts.MirrorHost == "" {
		opts.MirrorHost = "https://old.reddit.com"
	}
	if opts.Listing == "" {
		opts.Listing = "hot"
	}
	return &Harvester{fetch: cl, opts: opts, now: time.Now}
}

func (h *Harvester) chain() []strategy {
	return []strategy{
		{name: "listing", run: h.listingFrom(h.opts.PrimaryHost)},
		{name: "mirror", run: h.listingFrom(h.opts.MirrorHost)},
		{name: "feed", run: h.feedFrom(h.opts.PrimaryHost)},
	}
}

// Fetch 返回社区的最多 n 条帖子，任何网络/解析失败都不会向上抛出。
func (h *Harvester) Fetch(ctx context.Context, community string, n int) []model.ThreadRecord {
	community = normalizeCommunity(community)
	if n <= 0 {
		n = 25
	}
	for _, s := range h.chain() {
		recs, err := s.run(ctx, community, n)
		if err != nil {
			log.Warnf("r/%s 策略 %s 失败：%v", community, s.name, err)
			continue
		}
		if len(recs) == 0 {
			log.Warnf("r/%s 策略 %s 无可用帖子", community, s.name)
			continue
		}
		if len(recs) > n {
			recs = recs[:n]
		}
		log.Infof("r/%s 通过 %s 获取 %d 条帖子", community, s.name, len(recs))
		return recs
	}
	recs := Samples(community, n, h.now())
	log.Warnf("r/%s 全部策略失败，使用 %d 条样例数据", community, len(recs))
	return recs
}

// CommunityPause 在切换社区之间插入较长的随机等待。
func (h *Harvester) CommunityPause(ctx context.Context) error {
	return fetch.Sleep(ctx, fetch.Between(h.opts.CommunityDelayMin, h.opts.CommunityDelayMax))
}

// accept 过滤置顶帖与非文本帖，并要求标题与 permalink 均非空。
func accept(p post) bool {
	if p.Stickied || p.Pinned || !p.IsSelf {
		return false
	}
	return strings.TrimSpace(p.Title) != "" && strings.TrimSpace(p.Permalink) != ""
}

func normalizeCommunity(c string) string {
	c = strings.TrimSpace(c)
	c = strings.TrimPrefix(c, "/")
	c = strings.TrimPrefix(c, "r/")
	return strings.Trim(c, "/")
}

func listingURL(host, community, listing string, n int) string {
	if n > 100 {
		n = 100
	}
	return fmt.Sprintf("%s/r/%s/%s.json?limit=%d&raw_json=1", strings.TrimRight(host, "/"), community, listing, n)
}
