package export

import (
	"fmt"
	"html"
	"os"
	"strings"
	"time"

	"github.com/gorilla/feeds"

	"go-thread-scout/internal/model"
)

// Feed 将清单渲染为 Atom 订阅，条目链接指向帖子原文。
func Feed(items []model.WorkItem, now time.Time) (string, error) {
	feed := &feeds.Feed{
		Title:       "Thread Scout opportunities",
		Description: "Scored discussion threads matching affiliate programs",
		Link:        &feeds.Link{Href: model.PlatformHost, Rel: "self", Type: "text/html"},
		Id:          "tag:thread-scout,2024:worklist",
		Created:     now,
		Updated:     now,
	}
	for _, it := range items {
		t := it.Thread
		feed.Items = append(feed.Items, &feeds.Item{
			Title:       fmt.Sprintf("[%d] %s", it.Opportunity.Score, t.Title),
			Link:        &feeds.Link{Href: t.URL(), Rel: "alternate", Type: "text/html"},
			Id:          t.URL(),
			Author:      &feeds.Author{Name: t.Author},
			Description: describe(it),
			Created:     t.CreatedUTC,
			Updated:     it.Opportunity.UpdatedAt,
		})
	}
	return feed.ToAtom()
}

// WriteFeed 渲染并写入订阅文件。
func WriteFeed(items []model.WorkItem, path string) error {
	s, err := Feed(items, time.Now())
	if err != nil {
		return fmt.Errorf("render feed: %w", err)
	}
	if err := os.WriteFile(path, []byte(s), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func describe(it model.WorkItem) string {
	o, t := it.Opportunity, it.Thread
	var b strings.Builder
	fmt.Fprintf(&b, "<p><strong>r/%s</strong> · %d upvotes · %d comments</p>", html.EscapeString(t.Community), t.Upvotes, t.Comments)
	intent := string(o.Intent)
	if intent == "" {
		intent = "-"
	}
	fmt.Fprintf(&b, "<p>Intent: %s · Score: %d", html.EscapeString(intent), o.Score)
	if o.SerpMatch {
		b.WriteString(" · ranks in search")
	}
	b.WriteString("</p>")
	if len(t.Keywords) > 0 {
		fmt.Fprintf(&b, "<p>Keywords: %s</p>", html.EscapeString(strings.Join(t.Keywords, ", ")))
	}
	if t.Synthetic {
		b.WriteString("<p><em>sample data</em></p>")
	}
	return b.String()
}
