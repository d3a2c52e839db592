package serp_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-thread-scout/internal/fetch"
	"go-thread-scout/internal/model"
	"go-thread-scout/internal/serp"
	"go-thread-scout/internal/store"
)

// pagedProvider 按 start 返回预置结果，total 之后为空页。
type pagedProvider struct {
	links []string
	err   error
	calls []int
}

func (p *pagedProvider) Search(_ context.Context, _ string, start, num int) (serp.Page, error) {
	p.calls = append(p.calls, start)
	if p.err != nil {
		return serp.Page{}, p.err
	}
	from := start - 1
	if from >= len(p.links) {
		return serp.Page{}, nil
	}
	to := min(from+num, len(p.links))
	return serp.Page{Links: p.links[from:to], HasNext: to < len(p.links)}, nil
}

func filler(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("https://example.com/result/%d", i+1)
	}
	return out
}

func setup(t *testing.T) (*store.SQLite, model.ThreadRecord) {
	t.Helper()
	s, err := store.OpenSQLite(filepath.Join(t.TempDir(), "serp.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	th := model.ThreadRecord{Community: "SEO", Permalink: "/r/SEO/comments/abc123/ahrefs_vs_semrush/", Title: "Ahrefs vs Semrush in 2024 for a solo consultant"}
	_, err = s.UpsertThread(context.Background(), &th)
	require.NoError(t, err)
	return s, th
}

func TestCheckPosition_SecondPage(t *testing.T) {
	s, th := setup(t)
	links := filler(12)
	links = append(links, "https://www.reddit.com/r/seo/comments/abc123/ahrefs_vs_semrush/?utm=x")
	links = append(links, filler(5)...)
	p := &pagedProvider{links: links}

	r := serp.NewResolver(p, s, serp.Options{PageSize: 10, MaxPages: 10})
	res, err := r.CheckPosition(context.Background(), th.ID, "ahrefs semrush")
	require.NoError(t, err)
	require.NotNil(t, res.Position)
	assert.Equal(t, 13, *res.Position)
	assert.True(t, res.IsRanked)
	assert.Equal(t, "ahrefs semrush", res.Query)
	assert.Equal(t, []int{1, 11}, p.calls)

	got, err := s.GetThread(context.Background(), th.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Rank)
	assert.Equal(t, 13, *got.Rank)
	last, err := s.LatestSerpCheck(context.Background(), th.ID)
	require.NoError(t, err)
	assert.Equal(t, res.ID, last.ID)
}

func TestCheckPosition_NotFoundIsNormal(t *testing.T) {
	s, th := setup(t)
	p := &pagedProvider{links: filler(100)}
	r := serp.NewResolver(p, s, serp.Options{PageSize: 10, MaxPages: 3})
	res, err := r.CheckPosition(context.Background(), th.ID, "")
	require.NoError(t, err)
	assert.Nil(t, res.Position)
	assert.False(t, res.IsRanked)
	assert.Len(t, p.calls, 3)
	assert.Contains(t, res.Query, "SEO reddit")

	last, err := s.LatestSerpCheck(context.Background(), th.ID)
	require.NoError(t, err)
	assert.False(t, last.IsRanked)
}

func TestCheckPosition_StopsOnLastPage(t *testing.T) {
	s, th := setup(t)
	p := &pagedProvider{links: filler(15)}
	r := serp.NewResolver(p, s, serp.Options{})
	_, err := r.CheckPosition(context.Background(), th.ID, "q")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 11}, p.calls)
}

func TestCheckPosition_ProviderErrorWritesNothing(t *testing.T) {
	s, th := setup(t)
	p := &pagedProvider{err: serp.ErrQuota}
	r := serp.NewResolver(p, s, serp.Options{})
	_, err := r.CheckPosition(context.Background(), th.ID, "q")
	require.ErrorIs(t, err, serp.ErrQuota)

	_, err = s.LatestSerpCheck(context.Background(), th.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCheckPosition_UnknownThread(t *testing.T) {
	s, _ := setup(t)
	r := serp.NewResolver(&pagedProvider{}, s, serp.Options{})
	_, err := r.CheckPosition(context.Background(), "missing", "q")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestBuildQuery(t *testing.T) {
	short := model.ThreadRecord{Community: "saas", Title: "Billing help", Body: "We use Stripe, but dunning is weak. Considering Chargebee, Paddle or Recurly soon."}
	assert.Equal(t, "Billing help Stripe dunning Considering Chargebee Paddle saas reddit", serp.BuildQuery(short, ""))

	long := model.ThreadRecord{Community: "productivity", Title: strings.Repeat("abcdefghij ", 10), Body: "ignored words entirely"}
	q := serp.BuildQuery(long, "forum")
	assert.LessOrEqual(t, len([]rune(q)), 100)
	assert.NotContains(t, q, "ignored")
	assert.True(t, strings.HasSuffix(q, "productivity forum"))

	huge := model.ThreadRecord{Community: strings.Repeat("c", 80), Title: strings.Repeat("t", 59)}
	assert.LessOrEqual(t, len([]rune(serp.BuildQuery(huge, ""))), 100)
}

func TestCSEProvider_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("key") != "k" || q.Get("cx") != "c" || q.Get("start") != "11" || q.Get("num") != "10" {
			http.Error(w, "bad params", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[{"link":"https://a.example/1"},{"link":"https://www.reddit.com/r/x/comments/y/"}],"queries":{"nextPage":[{"startIndex":21}]}}`))
	}))
	defer srv.Close()

	cl, err := fetch.New(fetch.Options{})
	require.NoError(t, err)
	p := serp.NewCSE(cl, srv.URL, "k", "c")
	page, err := p.Search(context.Background(), "x reddit", 11, 10)
	require.NoError(t, err)
	assert.Len(t, page.Links, 2)
	assert.True(t, page.HasNext)
}

func TestCSEProvider_Quota(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	cl, err := fetch.New(fetch.Options{})
	require.NoError(t, err)
	_, err = serp.NewCSE(cl, srv.URL, "k", "c").Search(context.Background(), "q", 1, 10)
	assert.True(t, errors.Is(err, serp.ErrQuota), "err=%v", err)

	_, err = serp.NewCSE(cl, srv.URL, "", "").Search(context.Background(), "q", 1, 10)
	assert.ErrorIs(t, err, serp.ErrNotConfigured)
}

// cseServer 模拟搜索接口：num 超过 10 时拒绝，按 start 切片返回 links。
func cseServer(t *testing.T, links []string, starts *[]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		*starts = append(*starts, q.Get("start"))
		start, num := 0, 0
		_, _ = fmt.Sscan(q.Get("start"), &start)
		_, _ = fmt.Sscan(q.Get("num"), &num)
		if num > 10 {
			http.Error(w, "num must be <= 10", http.StatusBadRequest)
			return
		}
		from := start - 1
		to := min(from+num, len(links))
		var items []string
		for _, l := range links[from:to] {
			items = append(items, fmt.Sprintf(`{"link":%q}`, l))
		}
		next := ""
		if to < len(links) {
			next = fmt.Sprintf(`,"queries":{"nextPage":[{"startIndex":%d}]}`, to+1)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"items":[%s]%s}`, strings.Join(items, ","), next)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCheckPosition_OversizedPageKeepsTrueRank(t *testing.T) {
	s, th := setup(t)
	links := filler(30)
	links[24] = "https://old.reddit.com/r/SEO/comments/abc123/ahrefs_vs_semrush/"
	var starts []string
	srv := cseServer(t, links, &starts)

	cl, err := fetch.New(fetch.Options{})
	require.NoError(t, err)
	r := serp.NewResolver(serp.NewCSE(cl, srv.URL, "k", "c"), s, serp.Options{PageSize: 20, MaxPages: 3})
	res, err := r.CheckPosition(context.Background(), th.ID, "q")
	require.NoError(t, err)
	require.NotNil(t, res.Position)
	assert.Equal(t, 25, *res.Position)
	assert.Equal(t, []string{"1", "11", "21"}, starts)
}

func TestCheckPosition_MissingLinkStillCounts(t *testing.T) {
	s, th := setup(t)
	links := filler(15)
	links[3] = ""
	links[12] = "https://www.reddit.com/r/SEO/comments/abc123/ahrefs_vs_semrush/"
	var starts []string
	srv := cseServer(t, links, &starts)

	cl, err := fetch.New(fetch.Options{})
	require.NoError(t, err)
	r := serp.NewResolver(serp.NewCSE(cl, srv.URL, "k", "c"), s, serp.Options{})
	res, err := r.CheckPosition(context.Background(), th.ID, "q")
	require.NoError(t, err)
	require.NotNil(t, res.Position)
	assert.Equal(t, 13, *res.Position)
	assert.Equal(t, []string{"1", "11"}, starts)
}
