package reddit

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"go-thread-scout/internal/model"
)

// SampleAuthor 为样例记录的作者名。
const SampleAuthor = "sample_user"

type sample struct {
	title    string
	body     string
	upvotes  int
	comments int
	flair    string
}

// genericTemplate 为没有专属样例的社区使用，也用于补足数量。
var genericTemplate = []sample{
	{
		title:    "Notion vs Obsidian for managing client projects?",
		body:     "I run a small agency and keep losing track of deliverables. Has anyone compared Notion and Obsidian for client work? Open to other tools too.",
		upvotes:  42,
		comments: 18,
		flair:    "Question",
	},
	{
		title:    "Looking for an AI writing tool that doesn't sound robotic",
		body:     "Tried Jasper AI for a month for our blog content. Any recommendations for something cheaper with better tone control?",
		upvotes:  27,
		comments: 11,
		flair:    "Discussion",
	},
	{
		title:    "Six months using Canva for all our social graphics: honest review",
		body:     "Sharing my experience with Canva Pro after moving away from Photoshop. Templates save a lot of time but brand kits are limited.",
		upvotes:  63,
		comments: 24,
		flair:    "Review",
	},
}

var communitySamples = map[string][]sample{
	"saas": {
		{title: "Which CRM should a two-person SaaS start with?", body: "HubSpot free tier vs Pipedrive. We mostly do outbound email and demos.", upvotes: 55, comments: 31, flair: "Question"},
		{title: "What do you use for subscription billing?", body: "Stripe Billing works but dunning emails are basic. Considering Chargebee or Paddle.", upvotes: 38, comments: 22},
	},
	"seo": {
		{title: "Ahrefs vs Semrush in 2024 for a solo consultant", body: "Budget allows one subscription. Mostly keyword research and backlink audits.", upvotes: 71, comments: 45, flair: "Tools"},
		{title: "Best rank tracker for local clients?", body: "Looking for something that tracks map pack positions across a few cities.", upvotes: 19, comments: 9},
	},
	"productivity": {
		{title: "Todoist or TickTick for a heavy calendar user?", body: "I time-block everything and need tasks to show next to meetings.", upvotes: 88, comments: 52},
		{title: "My review of Notion after a year of daily use", body: "Great for docs and wikis, databases get slow once you pass a few thousand rows.", upvotes: 120, comments: 40, flair: "Review"},
	},
	"marketing": {
		{title: "Email platform alternative to Mailchimp for ecommerce?", body: "Mailchimp pricing jumped. Klaviyo seems popular, anyone tried ConvertKit for a store?", upvotes: 34, comments: 27},
	},
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Samples 生成 n 条带 Synthetic 标记的样例帖子：
// 先取社区专属样例（没有则取通用模板），不足时克隆通用模板并重新编号。
func Samples(community string, n int, now time.Time) []model.ThreadRecord {
	community = normalizeCommunity(community)
	if community == "" {
		community = "sample"
	}
	base, ok := communitySamples[strings.ToLower(community)]
	if !ok {
		base = genericTemplate
	}
	out := make([]model.ThreadRecord, 0, n)
	for i := 0; i < len(base) && len(out) < n; i++ {
		out = append(out, sampleRecord(base[i], community, len(out), now))
	}
	for clone := 0; len(out) < n; clone++ {
		s := genericTemplate[clone%len(genericTemplate)]
		s.title = fmt.Sprintf("%s (sample %d)", s.title, len(out)+1)
		out = append(out, sampleRecord(s, community, len(out), now))
	}
	return out
}

func sampleRecord(s sample, community string, idx int, now time.Time) model.ThreadRecord {
	slug := strings.Trim(nonAlnum.ReplaceAllString(strings.ToLower(s.title), "_"), "_")
	if len(slug) > 48 {
		slug = slug[:48]
	}
	flair := s.flair
	if flair == "" {
		flair = "Sample"
	}
	return model.ThreadRecord{
		Community:   community,
		Permalink:   fmt.Sprintf("/r/%s/comments/sample%d/%s/", community, idx+1, slug),
		Title:       s.title,
		Body:        s.body,
		Author:      SampleAuthor,
		Upvotes:     s.upvotes,
		Comments:    s.comments,
		Flair:       flair,
		CreatedUTC:  now.Add(-time.Duration(idx+1) * time.Hour).UTC(),
		HarvestedAt: now,
		Synthetic:   true,
	}
}
