package store_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"go-thread-scout/internal/model"
	"go-thread-scout/internal/store"
)

func openTemp(t *testing.T) *store.SQLite {
	t.Helper()
	s, err := store.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLite_UpsertThreadKeepsIdentity(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	th := model.ThreadRecord{Community: "saas", Permalink: "/r/saas/comments/x1/t/", Title: "t1", Upvotes: 3}
	created, err := s.UpsertThread(ctx, &th)
	if err != nil || !created {
		t.Fatalf("first upsert: created=%v err=%v", created, err)
	}
	firstID := th.ID

	again := model.ThreadRecord{Community: "saas", Permalink: "/r/saas/comments/x1/t/", Title: "t1 edited", Upvotes: 9}
	created, err = s.UpsertThread(ctx, &again)
	if err != nil || created {
		t.Fatalf("second upsert: created=%v err=%v", created, err)
	}
	if again.ID != firstID {
		t.Fatalf("id changed on upsert: %s -> %s", firstID, again.ID)
	}
	got, err := s.GetThread(ctx, firstID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "t1 edited" || got.Upvotes != 9 {
		t.Fatalf("mutable fields not updated: %+v", got)
	}
	list, _ := s.ListThreads(ctx, store.ThreadFilter{Community: "SAAS"})
	if len(list) != 1 {
		t.Fatalf("community filter len=%d want=1", len(list))
	}
}

func TestSQLite_ThreadEnrichmentAndRank(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	th := model.ThreadRecord{Community: "seo", Permalink: "/r/seo/comments/a/", Title: "x"}
	if _, err := s.UpsertThread(ctx, &th); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	th.Intent = model.IntentComparison
	th.Keywords = []string{"ahrefs", "semrush"}
	th.Score = 61
	if err := s.UpdateThreadEnrichment(ctx, th); err != nil {
		t.Fatalf("enrich: %v", err)
	}
	pos := 4
	if err := s.UpdateThreadRank(ctx, th.ID, &pos); err != nil {
		t.Fatalf("rank: %v", err)
	}
	got, _ := s.GetThread(ctx, th.ID)
	if got.Intent != model.IntentComparison || got.Score != 61 || len(got.Keywords) != 2 || got.Rank == nil || *got.Rank != 4 {
		t.Fatalf("unexpected thread: %+v", got)
	}
	if err := s.UpdateThreadRank(ctx, th.ID, nil); err != nil {
		t.Fatalf("clear rank: %v", err)
	}
	got, _ = s.GetThread(ctx, th.ID)
	if got.Rank != nil {
		t.Fatalf("rank should be cleared")
	}
	if err := s.UpdateThreadRank(ctx, "missing", &pos); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLite_OpportunityUniquePerThread(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	if _, err := s.GetOpportunityByThreadID(ctx, "t1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	o := model.Opportunity{ThreadID: "t1", Score: 40, Intent: model.IntentQuestion, ProgramIDs: []string{"p1"}}
	if err := s.CreateOpportunity(ctx, &o); err != nil {
		t.Fatalf("create: %v", err)
	}
	dup := model.Opportunity{ThreadID: "t1", Score: 1}
	if err := s.CreateOpportunity(ctx, &dup); err == nil {
		t.Fatalf("duplicate opportunity must be rejected")
	}
	o.Score = 55
	o.SerpMatch = true
	if err := s.UpdateOpportunity(ctx, o); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := s.GetOpportunityByThreadID(ctx, "t1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Score != 55 || !got.SerpMatch || got.Action != model.ActionPending || len(got.ProgramIDs) != 1 {
		t.Fatalf("unexpected opportunity: %+v", got)
	}
}

func TestSQLite_UpdateOpportunityScoreKeepsAction(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	o := model.Opportunity{ThreadID: "t1", Score: 10}
	if err := s.CreateOpportunity(ctx, &o); err != nil {
		t.Fatalf("create: %v", err)
	}
	stale := o
	o.Action = model.ActionRejected
	if err := s.UpdateOpportunity(ctx, o); err != nil {
		t.Fatalf("set action: %v", err)
	}
	stale.Score = 70
	if err := s.UpdateOpportunityScore(ctx, stale); err != nil {
		t.Fatalf("update score: %v", err)
	}
	got, err := s.GetOpportunityByThreadID(ctx, "t1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Score != 70 || got.Action != model.ActionRejected {
		t.Fatalf("unexpected opportunity: %+v", got)
	}
	if err := s.UpdateOpportunityScore(ctx, model.Opportunity{ID: "missing"}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLite_CrawlRunLifecycle(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	r := model.CrawlRun{Communities: []string{"a", "b"}, Status: model.CrawlRunning}
	if err := s.CreateCrawlRun(ctx, &r); err != nil {
		t.Fatalf("create: %v", err)
	}
	done := time.Now()
	r.CompletedAt = &done
	r.Status = model.CrawlFailed
	r.Error = "boom"
	r.Discovered = 4
	if err := s.UpdateCrawlRun(ctx, r); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := s.GetCrawlRun(ctx, r.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != model.CrawlFailed || got.Error != "boom" || got.CompletedAt == nil || len(got.Communities) != 2 || got.Discovered != 4 {
		t.Fatalf("unexpected run: %+v", got)
	}
	runs, _ := s.ListCrawlRuns(ctx, 5)
	if len(runs) != 1 {
		t.Fatalf("runs len=%d", len(runs))
	}
}

func TestSQLite_LatestSerpCheck(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)
	pos := 7
	_ = s.CreateSerpCheck(ctx, &model.SerpCheck{ThreadID: "t1", Query: "q", CheckedAt: base})
	_ = s.CreateSerpCheck(ctx, &model.SerpCheck{ThreadID: "t1", Query: "q", Position: &pos, IsRanked: true, CheckedAt: base.Add(time.Minute)})
	_ = s.CreateSerpCheck(ctx, &model.SerpCheck{ThreadID: "t2", Query: "q2", CheckedAt: base})

	c, err := s.LatestSerpCheck(ctx, "t1")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if !c.IsRanked || c.Position == nil || *c.Position != 7 {
		t.Fatalf("unexpected latest: %+v", c)
	}
	all, err := s.LatestSerpChecks(ctx)
	if err != nil {
		t.Fatalf("latest all: %v", err)
	}
	if len(all) != 2 || !all["t1"].IsRanked || all["t2"].IsRanked {
		t.Fatalf("unexpected map: %+v", all)
	}
}

func TestSQLite_ProgramsAndReset(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	p := model.AffiliateProgram{Name: "Notion", Keywords: []string{"notes"}, Active: true}
	if err := s.UpsertProgram(ctx, &p); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	off := model.AffiliateProgram{Name: "Legacy", Active: false}
	_ = s.UpsertProgram(ctx, &off)
	active, _ := s.ListPrograms(ctx, true)
	all, _ := s.ListPrograms(ctx, false)
	if len(active) != 1 || len(all) != 2 || active[0].Keywords[0] != "notes" {
		t.Fatalf("unexpected programs: active=%+v all=%d", active, len(all))
	}
	if err := s.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	st, _ := s.Stats(ctx)
	if st.ThreadsTotal != 0 || st.OpportunitiesTotal != 0 {
		t.Fatalf("not empty after reset: %+v", st)
	}
}
