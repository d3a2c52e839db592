package serp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"go-thread-scout/internal/fetch"
)

// ErrQuota 表示搜索接口配额耗尽或被限流，调用方可稍后重试。
var ErrQuota = errors.New("serp: quota exceeded")

// ErrNotConfigured 表示缺少搜索接口凭据。
var ErrNotConfigured = errors.New("serp: api key or cx not configured")

// Page 为一页搜索结果。
type Page struct {
	Links   []string
	HasNext bool
}

// MaxPageSize 为接口单页上限。
const MaxPageSize = 10

// Provider 为搜索结果来源；start 从 1 开始。
// Links 与结果一一对应，缺少链接的结果以空串占位，保证名次连续。
type Provider interface {
	Search(ctx context.Context, query string, start, num int) (Page, error)
}

// DefaultEndpoint 为 Google Custom Search JSON API 地址。
const DefaultEndpoint = "https://www.googleapis.com/customsearch/v1"

// CSEProvider 基于 Google Custom Search JSON API。
type CSEProvider struct {
	client   *fetch.Client
	endpoint string
	key      string
	cx       string
}

// NewCSE 创建 CSEProvider；endpoint 为空时使用 DefaultEndpoint。
func NewCSE(cl *fetch.Client, endpoint, key, cx string) *CSEProvider {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &CSEProvider{client: cl, endpoint: endpoint, key: key, cx: cx}
}

type cseResponse struct {
	Items []struct {
		Link string `json:"link"`
	} `json:"items"`
	Queries struct {
		NextPage []json.RawMessage `json:"nextPage"`
	} `json:"queries"`
}

// Search 请求一页结果；接口单页最多 10 条。
func (p *CSEProvider) Search(ctx context.Context, query string, start, num int) (Page, error) {
	if p.key == "" || p.cx == "" {
		return Page{}, ErrNotConfigured
	}
	if num <= 0 || num > MaxPageSize {
		num = MaxPageSize
	}
	if start < 1 {
		start = 1
	}
	v := url.Values{}
	v.Set("key", p.key)
	v.Set("cx", p.cx)
	v.Set("q", query)
	v.Set("start", strconv.Itoa(start))
	v.Set("num", strconv.Itoa(num))

	resp, err := p.client.Get(ctx, p.endpoint+"?"+v.Encode(), http.Header{"Accept": {"application/json"}})
	if err != nil {
		var se *fetch.StatusError
		if errors.As(err, &se) && (se.Code == http.StatusTooManyRequests || se.Code == http.StatusForbidden) {
			return Page{}, fmt.Errorf("%w: %s", ErrQuota, se.Status)
		}
		return Page{}, fmt.Errorf("search %q: %w", query, err)
	}
	defer resp.Body.Close()

	var r cseResponse
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return Page{}, fmt.Errorf("decode search response: %w", err)
	}
	page := Page{HasNext: len(r.Queries.NextPage) > 0}
	for _, it := range r.Items {
		page.Links = append(page.Links, it.Link)
	}
	return page, nil
}
