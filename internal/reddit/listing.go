package reddit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go-thread-scout/internal/model"
)

// listing 为 /r/<c>/<listing>.json 的响应外壳；children 逐条解码，单条失败不影响整体。
type listing struct {
	Kind string `json:"kind"`
	Data struct {
		Children []json.RawMessage `json:"children"`
	} `json:"data"`
}

type child struct {
	Kind string `json:"kind"`
	Data post   `json:"data"`
}

type post struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	Selftext      string  `json:"selftext"`
	Author        string  `json:"author"`
	Permalink     string  `json:"permalink"`
	Ups           int     `json:"ups"`
	NumComments   int     `json:"num_comments"`
	LinkFlairText *string `json:"link_flair_text"`
	CreatedUTC    float64 `json:"created_utc"`
	Stickied      bool    `json:"stickied"`
	Pinned        bool    `json:"pinned"`
	IsSelf        bool    `json:"is_self"`
}

var errMalformed = errors.New("malformed listing")

func (h *Harvester) listingFrom(host string) func(ctx context.Context, community string, n int) ([]model.ThreadRecord, error) {
	return func(ctx context.Context, community string, n int) ([]model.ThreadRecord, error) {
		u := listingURL(host, community, h.opts.Listing, n)
		resp, err := h.fetch.Get(ctx, u, http.Header{"Accept": {"application/json"}})
		if err != nil {
			return nil, fmt.Errorf("GET %s: %w", u, err)
		}
		defer resp.Body.Close()
		b, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", u, err)
		}
		return parseListing(b, community, h.now())
	}
}

// parseListing 解析列表 JSON 并按过滤规则生成记录。
func parseListing(b []byte, community string, now time.Time) ([]model.ThreadRecord, error) {
	var l listing
	if err := json.Unmarshal(b, &l); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformed, err)
	}
	if l.Kind != "" && l.Kind != "Listing" {
		return nil, fmt.Errorf("%w: kind=%s", errMalformed, l.Kind)
	}
	out := make([]model.ThreadRecord, 0, len(l.Data.Children))
	for i, raw := range l.Data.Children {
		var c child
		if err := json.Unmarshal(raw, &c); err != nil {
			log.Debugf("r/%s 跳过第 %d 条无法解析的帖子：%v", community, i, err)
			continue
		}
		if c.Kind != "" && c.Kind != "t3" {
			continue
		}
		if !accept(c.Data) {
			continue
		}
		out = append(out, toRecord(c.Data, community, now))
	}
	return out, nil
}

func toRecord(p post, community string, now time.Time) model.ThreadRecord {
	flair := ""
	if p.LinkFlairText != nil {
		flair = strings.TrimSpace(*p.LinkFlairText)
	}
	created := now
	if p.CreatedUTC > 0 {
		created = time.Unix(int64(p.CreatedUTC), 0).UTC()
	}
	return model.ThreadRecord{
		Community:   community,
		Permalink:   p.Permalink,
		Title:       strings.TrimSpace(p.Title),
		Body:        strings.TrimSpace(p.Selftext),
		Author:      p.Author,
		Upvotes:     p.Ups,
		Comments:    p.NumComments,
		Flair:       flair,
		CreatedUTC:  created,
		HarvestedAt: now,
	}
}
