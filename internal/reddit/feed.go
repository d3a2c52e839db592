package reddit

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"go-thread-scout/internal/model"
)

// feedFrom 读取社区订阅 /r/<c>/.rss（Atom），作为结构化列表都失败后的补充来源。
// 订阅中没有投票/评论数，记录的这两项为 0。
func (h *Harvester) feedFrom(host string) func(ctx context.Context, community string, n int) ([]model.ThreadRecord, error) {
	return func(ctx context.Context, community string, n int) ([]model.ThreadRecord, error) {
		u := fmt.Sprintf("%s/r/%s/.rss", strings.TrimRight(host, "/"), community)
		resp, err := h.fetch.Get(ctx, u, http.Header{"Accept": {"application/atom+xml,application/rss+xml"}})
		if err != nil {
			return nil, fmt.Errorf("GET feed %s: %w", u, err)
		}
		defer resp.Body.Close()
		feed, err := gofeed.NewParser().Parse(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("parse feed %s: %w", u, err)
		}
		now := h.now()
		out := make([]model.ThreadRecord, 0, len(feed.Items))
		for _, it := range feed.Items {
			rec, ok := feedRecord(it, community, now)
			if !ok {
				continue
			}
			out = append(out, rec)
			if len(out) >= n {
				break
			}
		}
		return out, nil
	}
}

func feedRecord(it *gofeed.Item, community string, now time.Time) (model.ThreadRecord, bool) {
	title := strings.TrimSpace(it.Title)
	permalink := permalinkOf(it.Link)
	if title == "" || permalink == "" {
		return model.ThreadRecord{}, false
	}
	body, selfPost := htmlText(it.Content)
	if !selfPost {
		return model.ThreadRecord{}, false
	}
	author := ""
	if len(it.Authors) > 0 && it.Authors[0] != nil {
		author = strings.TrimPrefix(strings.TrimSpace(it.Authors[0].Name), "/u/")
	} else if it.Author != nil {
		author = strings.TrimPrefix(strings.TrimSpace(it.Author.Name), "/u/")
	}
	created := now
	if it.PublishedParsed != nil {
		created = it.PublishedParsed.UTC()
	} else if it.UpdatedParsed != nil {
		created = it.UpdatedParsed.UTC()
	}
	flair := ""
	if len(it.Categories) > 0 && !strings.EqualFold(it.Categories[0], community) {
		flair = it.Categories[0]
	}
	return model.ThreadRecord{
		Community:   community,
		Permalink:   permalink,
		Title:       title,
		Body:        body,
		Author:      author,
		Flair:       flair,
		CreatedUTC:  created,
		HarvestedAt: now,
	}, true
}

// htmlText 从订阅条目 HTML 中提取正文（div.md）；
// 外链帖没有正文块且带外部 [link]，返回 selfPost=false。
func htmlText(html string) (string, bool) {
	if strings.TrimSpace(html) == "" {
		return "", true
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", true
	}
	if md := doc.Find("div.md"); md.Length() > 0 {
		return strings.TrimSpace(md.Text()), true
	}
	self := true
	doc.Find("a").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.TrimSpace(s.Text()) != "[link]" {
			return true
		}
		href, _ := s.Attr("href")
		if u, err := url.Parse(href); err == nil && u.Host != "" && !strings.HasSuffix(u.Hostname(), "reddit.com") {
			self = false
		}
		return false
	})
	return "", self
}

// permalinkOf 将完整链接转换为站内路径（/r/x/comments/...）。
func permalinkOf(link string) string {
	link = strings.TrimSpace(link)
	if link == "" {
		return ""
	}
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	if !strings.HasPrefix(u.Path, "/r/") {
		return ""
	}
	return u.Path
}
