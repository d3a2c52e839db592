// 包 model 定义核心数据模型（帖子/联盟计划/机会/抓取批次/排名检查）。
package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Intent 为帖子的商业意图标签。
type Intent string

const (
	IntentComparison Intent = "comparison"
	IntentQuestion   Intent = "question"
	IntentReview     Intent = "review"
	IntentDiscovery  Intent = "discovery"
	IntentDiscussion Intent = "discussion"
)

// CrawlStatus 为抓取批次状态。
type CrawlStatus string

const (
	CrawlRunning   CrawlStatus = "running"
	CrawlCompleted CrawlStatus = "completed"
	CrawlFailed    CrawlStatus = "failed"
)

// Action 为机会的人工处理状态。
type Action string

const (
	ActionPending  Action = "pending"
	ActionDone     Action = "done"
	ActionRejected Action = "rejected"
)

// PlatformHost 用于拼接帖子的规范地址。
const PlatformHost = "https://www.reddit.com"

// ThreadRecord 表示一条抓取到的帖子。
// (Community, Permalink) 唯一，Permalink 创建后不可变。
type ThreadRecord struct {
	ID          string    `json:"id"`
	Community   string    `json:"community"`
	Permalink   string    `json:"permalink"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Author      string    `json:"author"`
	Upvotes     int       `json:"upvotes"`
	Comments    int       `json:"comments"`
	Flair       string    `json:"flair,omitempty"`
	CreatedUTC  time.Time `json:"created_utc"`
	HarvestedAt time.Time `json:"harvested_at"`
	// Synthetic 标记内置样例数据（抓取全部失败时的占位记录）
	Synthetic bool `json:"synthetic"`

	Intent   Intent   `json:"intent,omitempty"`
	Keywords []string `json:"keywords,omitempty"`
	Score    int      `json:"score"`
	Rank     *int     `json:"rank,omitempty"`
}

// URL 返回带域名的规范地址。
func (t ThreadRecord) URL() string {
	if strings.HasPrefix(t.Permalink, "http://") || strings.HasPrefix(t.Permalink, "https://") {
		return t.Permalink
	}
	return PlatformHost + t.Permalink
}

// Text 返回用于分类与匹配的小写文本（标题 + 正文）。
func (t ThreadRecord) Text() string {
	return strings.ToLower(t.Title + " " + t.Body)
}

// AffiliateProgram 为可推广的联盟计划。
type AffiliateProgram struct {
	ID          string   `json:"id" yaml:"-"`
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description" yaml:"description"`
	Link        string   `json:"link" yaml:"link"`
	PromoCode   string   `json:"promo_code,omitempty" yaml:"promo_code"`
	Keywords    []string `json:"keywords" yaml:"keywords"`
	Commission  string   `json:"commission" yaml:"commission"`
	Active      bool     `json:"active" yaml:"active"`
}

// Opportunity 为针对单个帖子的评分结论，每个帖子至多一条。
type Opportunity struct {
	ID         string    `json:"id"`
	ThreadID   string    `json:"thread_id"`
	Score      int       `json:"score"`
	Intent     Intent    `json:"intent,omitempty"`
	ProgramIDs []string  `json:"program_ids"`
	SerpMatch  bool      `json:"serp_match"`
	Action     Action    `json:"action"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// CrawlRun 为一次抓取调用的记录。
type CrawlRun struct {
	ID          string      `json:"id"`
	StartedAt   time.Time   `json:"started_at"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
	Communities []string    `json:"communities"`
	Discovered  int         `json:"discovered"`
	Saved       int         `json:"saved"`
	Status      CrawlStatus `json:"status"`
	Error       string      `json:"error,omitempty"`
}

// SerpCheck 为一次搜索排名查询，只追加不修改。
type SerpCheck struct {
	ID        string    `json:"id"`
	ThreadID  string    `json:"thread_id"`
	Query     string    `json:"query"`
	Position  *int      `json:"position"`
	IsRanked  bool      `json:"is_ranked"`
	CheckedAt time.Time `json:"checked_at"`
}

// NewID 生成实体 ID。
func NewID() string { return uuid.NewString() }
