// 包 config 负责加载与校验应用配置（settings.yaml），
// 对外提供结构体 Config 及默认值/合法性校验。
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultCommunities 为未配置目标社区时使用的默认目录。
var DefaultCommunities = []string{
	"SaaS", "Entrepreneur", "smallbusiness", "marketing", "SEO",
	"productivity", "artificial", "webdev", "startups", "juststart",
}

type Config struct {
	Communities       []string       `yaml:"COMMUNITIES"`
	PostsPerCommunity int            `yaml:"POSTS_PER_COMMUNITY"`
	CrawlInterval     time.Duration  `yaml:"CRAWL_INTERVAL"`
	RequestTimeout    time.Duration  `yaml:"REQUEST_TIMEOUT"`
	RequestDelay      RequestDelay   `yaml:"REQUEST_DELAY"`
	CommunityDelay    CommunityDelay `yaml:"COMMUNITY_DELAY"`
	Reddit            Reddit         `yaml:"REDDIT"`
	Serp              Serp           `yaml:"SERP"`
	Scoring           Scoring        `yaml:"SCORING"`
	CatalogPath       string         `yaml:"CATALOG"`
	Database          Database       `yaml:"DATABASE"`
	Proxy             Proxy          `yaml:"PROXY"`
	Listen            string         `yaml:"LISTEN"`
	ResetOnStart      bool           `yaml:"RESET_ON_START"`
	LogLevel          string         `yaml:"LOG_LEVEL"`
	LogFormat         string         `yaml:"LOG_FORMAT"` // text|json|pretty
	LogLocale         string         `yaml:"LOG_LOCALE"` // zh-CN|en
	LogColor          string         `yaml:"LOG_COLOR"`  // auto|always|never
}

// RequestDelay：每次外部请求前的等待 = base + [0, jitter*base)
type RequestDelay struct {
	Base   time.Duration `yaml:"base"`
	Jitter float64       `yaml:"jitter"`
}

// CommunityDelay：切换社区之间的额外等待区间。
type CommunityDelay struct {
	Min time.Duration `yaml:"min"`
	Max time.Duration `yaml:"max"`
}

type Reddit struct {
	PrimaryHost string `yaml:"primary"`
	MirrorHost  string `yaml:"mirror"`
	Listing     string `yaml:"listing"` // hot|new|top
}

type Serp struct {
	Endpoint    string `yaml:"endpoint"`
	APIKey      string `yaml:"api_key"`
	CX          string `yaml:"cx"`
	PageSize    int    `yaml:"page_size"`
	MaxPages    int    `yaml:"max_pages"`
	QuerySuffix string `yaml:"query_suffix"`
}

// Scoring 为评分各分段权重；零值由 Validate 填充默认值。
type Scoring struct {
	UpvotesPerPoint  int            `yaml:"upvotes_per_point"`
	UpvoteCap        int            `yaml:"upvote_cap"`
	CommentsPerPoint int            `yaml:"comments_per_point"`
	CommentCap       int            `yaml:"comment_cap"`
	IntentPoints     map[string]int `yaml:"intent_points"`
	IntentCap        int            `yaml:"intent_cap"`
	PerProgram       int            `yaml:"per_program"`
	ProgramCap       int            `yaml:"program_cap"`
	SerpBonus        int            `yaml:"serp_bonus"`
}

type Database struct {
	Type string `yaml:"type"` // sqlite (default)
	DSN  string `yaml:"dsn"`  // ./data.db
}

type Proxy struct {
	HTTP  string `yaml:"http"`
	HTTPS string `yaml:"https"`
}

func Load(path string) (*Config, error) {
	// Load 从文件读取 YAML 并反序列化为 Config，同时进行基础校验与默认值填充。
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", path, err)
	}
	defer f.Close()
	b, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("unmarshal config %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// Default 返回仅含默认值的配置（找不到 settings.yaml 时使用）。
func Default() *Config {
	c := &Config{}
	_ = c.Validate()
	return c
}

func (c *Config) Validate() error {
	// Validate 负责合法性检查与默认值设置，避免在业务层分散判空逻辑。
	if c.PostsPerCommunity < 0 {
		return errors.New("POSTS_PER_COMMUNITY must be >= 0")
	}
	if c.RequestDelay.Jitter < 0 || c.RequestDelay.Jitter > 1 {
		return errors.New("REQUEST_DELAY.jitter must be within [0,1]")
	}
	if c.CommunityDelay.Max < c.CommunityDelay.Min {
		return errors.New("COMMUNITY_DELAY.max must be >= min")
	}
	if c.Serp.PageSize < 0 || c.Serp.MaxPages < 0 {
		return errors.New("SERP.page_size and SERP.max_pages must be >= 0")
	}
	if c.Serp.PageSize > 10 {
		return errors.New("SERP.page_size must be <= 10")
	}
	if len(c.Communities) == 0 {
		c.Communities = append([]string(nil), DefaultCommunities...)
	}
	for i, name := range c.Communities {
		c.Communities[i] = strings.TrimPrefix(strings.TrimSpace(name), "r/")
	}
	if c.PostsPerCommunity == 0 {
		c.PostsPerCommunity = 25
	}
	if c.CrawlInterval <= 0 {
		c.CrawlInterval = 12 * time.Hour
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 10 * time.Second
	}
	if c.RequestDelay.Base == 0 && c.RequestDelay.Jitter == 0 {
		c.RequestDelay = RequestDelay{Base: 2 * time.Second, Jitter: 0.3}
	}
	if c.CommunityDelay.Min == 0 && c.CommunityDelay.Max == 0 {
		c.CommunityDelay = CommunityDelay{Min: 5 * time.Second, Max: 12 * time.Second}
	}
	if c.Reddit.PrimaryHost == "" {
		c.Reddit.PrimaryHost = "https://www.reddit.com"
	}
	if c.Reddit.MirrorHost == "" {
		c.Reddit.MirrorHost = "https://old.reddit.com"
	}
	if c.Reddit.Listing == "" {
		c.Reddit.Listing = "hot"
	}
	if c.Serp.Endpoint == "" {
		c.Serp.Endpoint = "https://www.googleapis.com/customsearch/v1"
	}
	// 密钥优先读取环境变量，避免写进配置文件
	if c.Serp.APIKey == "" {
		c.Serp.APIKey = os.Getenv("SERP_API_KEY")
	}
	if c.Serp.CX == "" {
		c.Serp.CX = os.Getenv("SERP_CX")
	}
	if c.Serp.PageSize == 0 {
		c.Serp.PageSize = 10
	}
	if c.Serp.MaxPages == 0 {
		c.Serp.MaxPages = 10
	}
	if c.Serp.QuerySuffix == "" {
		c.Serp.QuerySuffix = "reddit"
	}
	c.Scoring.applyDefaults()
	if c.CatalogPath == "" {
		c.CatalogPath = "programs.yaml"
	}
	if c.Database.Type == "" {
		c.Database.Type = "sqlite"
	}
	if c.Database.Type != "sqlite" {
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}
	if c.Database.DSN == "" {
		c.Database.DSN = "./data.db"
	}
	if c.Listen == "" {
		c.Listen = ":8080"
	}
	if c.LogFormat == "" {
		c.LogFormat = "pretty"
	}
	if c.LogLocale == "" {
		c.LogLocale = "zh-CN"
	}
	if c.LogColor == "" {
		c.LogColor = "auto"
	}
	return nil
}

func (s *Scoring) applyDefaults() {
	if s.UpvotesPerPoint <= 0 {
		s.UpvotesPerPoint = 10
	}
	if s.UpvoteCap <= 0 {
		s.UpvoteCap = 30
	}
	if s.CommentsPerPoint <= 0 {
		s.CommentsPerPoint = 5
	}
	if s.CommentCap <= 0 {
		s.CommentCap = 10
	}
	if s.IntentCap <= 0 {
		s.IntentCap = 25
	}
	if s.PerProgram <= 0 {
		s.PerProgram = 10
	}
	if s.ProgramCap <= 0 {
		s.ProgramCap = 25
	}
	if s.SerpBonus <= 0 {
		s.SerpBonus = 10
	}
	// intent_points 为空时由 scoring 包使用内置表
}
