package crawl_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-thread-scout/internal/crawl"
	"go-thread-scout/internal/fetch"
	"go-thread-scout/internal/model"
	"go-thread-scout/internal/reddit"
)

// fakeSource 为每个社区返回 n 条记录，可阻塞或触发 panic。
type fakeSource struct {
	mu      sync.Mutex
	order   []string
	pauses  int
	started chan struct{}
	release chan struct{}
	panicOn string
}

func (f *fakeSource) Fetch(ctx context.Context, community string, n int) []model.ThreadRecord {
	f.mu.Lock()
	f.order = append(f.order, community)
	f.mu.Unlock()
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	if community == f.panicOn {
		panic("listing decoder exploded")
	}
	out := make([]model.ThreadRecord, n)
	for i := range out {
		out[i] = model.ThreadRecord{Community: community, Permalink: "/r/" + community + "/comments/" + string(rune('a'+i)) + "/", Title: "t"}
	}
	return out
}

func (f *fakeSource) CommunityPause(ctx context.Context) error {
	f.mu.Lock()
	f.pauses++
	f.mu.Unlock()
	return ctx.Err()
}

// failingStore 在写入帖子时返回错误。
type failingStore struct{ *crawl.Buffer }

func (failingStore) UpsertThread(context.Context, *model.ThreadRecord) (bool, error) {
	return false, errors.New("database is locked")
}

// unrecordedStore 无法创建运行记录。
type unrecordedStore struct{ *crawl.Buffer }

func (unrecordedStore) CreateCrawlRun(context.Context, *model.CrawlRun) error {
	return errors.New("no such table: crawl_runs")
}

type countingRefresher struct{ calls int }

func (c *countingRefresher) Refresh(context.Context) (int, error) {
	c.calls++
	return 0, nil
}

func TestRunCrawlNow_SequentialWithPauses(t *testing.T) {
	src := &fakeSource{}
	buf := crawl.NewBuffer()
	ref := &countingRefresher{}
	o := crawl.New(src, buf, crawl.Options{PerCommunity: 3, Refresher: ref})

	run, err := o.RunCrawlNow(context.Background(), []string{"r/saas", "seo", " SaaS ", "", "productivity"})
	require.NoError(t, err)
	assert.Equal(t, model.CrawlCompleted, run.Status)
	assert.Equal(t, []string{"saas", "seo", "productivity"}, run.Communities)
	assert.Equal(t, []string{"saas", "seo", "productivity"}, src.order)
	assert.Equal(t, 2, src.pauses)
	assert.Equal(t, 9, run.Discovered)
	assert.Equal(t, 9, run.Saved)
	assert.NotNil(t, run.CompletedAt)
	assert.Equal(t, 1, ref.calls)
	assert.False(t, o.IsRunInProgress())

	threads, runs := buf.Snapshot()
	assert.Len(t, threads, 9)
	require.Len(t, runs, 1)
	assert.Equal(t, model.CrawlCompleted, runs[0].Status)
}

func TestRunCrawlNow_DefaultCommunities(t *testing.T) {
	src := &fakeSource{}
	o := crawl.New(src, crawl.NewBuffer(), crawl.Options{Communities: []string{"demo"}, PerCommunity: 2})
	run, err := o.RunCrawlNow(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"demo"}, run.Communities)
	assert.Equal(t, 2, run.Saved)
}

func TestRunCrawlNow_MutualExclusion(t *testing.T) {
	src := &fakeSource{started: make(chan struct{}, 1), release: make(chan struct{})}
	buf := crawl.NewBuffer()
	o := crawl.New(src, buf, crawl.Options{PerCommunity: 1})

	type result struct {
		run *model.CrawlRun
		err error
	}
	done := make(chan result, 1)
	go func() {
		run, err := o.RunCrawlNow(context.Background(), []string{"saas"})
		done <- result{run, err}
	}()

	<-src.started
	assert.True(t, o.IsRunInProgress())
	run, err := o.RunCrawlNow(context.Background(), []string{"seo"})
	assert.Nil(t, run)
	assert.ErrorIs(t, err, crawl.ErrRunInProgress)
	_, err = o.Start(context.Background(), nil)
	assert.ErrorIs(t, err, crawl.ErrRunInProgress)

	close(src.release)
	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, model.CrawlCompleted, res.run.Status)
	assert.False(t, o.IsRunInProgress())

	_, runs := buf.Snapshot()
	assert.Len(t, runs, 1)
}

func TestRunCrawlNow_PanicReleasesGuard(t *testing.T) {
	src := &fakeSource{panicOn: "seo"}
	o := crawl.New(src, crawl.NewBuffer(), crawl.Options{PerCommunity: 1})

	run, err := o.RunCrawlNow(context.Background(), []string{"saas", "seo"})
	require.NoError(t, err)
	assert.Equal(t, model.CrawlFailed, run.Status)
	assert.Contains(t, run.Error, "listing decoder exploded")
	assert.NotNil(t, run.CompletedAt)
	assert.False(t, o.IsRunInProgress())

	run, err = o.RunCrawlNow(context.Background(), []string{"saas"})
	require.NoError(t, err)
	assert.Equal(t, model.CrawlCompleted, run.Status)
}

func TestRunCrawlNow_PersistenceErrorFailsRun(t *testing.T) {
	ref := &countingRefresher{}
	o := crawl.New(&fakeSource{}, failingStore{crawl.NewBuffer()}, crawl.Options{PerCommunity: 2, Refresher: ref})
	run, err := o.RunCrawlNow(context.Background(), []string{"saas"})
	require.NoError(t, err)
	assert.Equal(t, model.CrawlFailed, run.Status)
	assert.Contains(t, run.Error, "database is locked")
	assert.Equal(t, 2, run.Discovered)
	assert.Equal(t, 0, run.Saved)
	assert.Equal(t, 0, ref.calls)
}

func TestStart_ReturnsRunningRecord(t *testing.T) {
	buf := crawl.NewBuffer()
	o := crawl.New(&fakeSource{}, buf, crawl.Options{PerCommunity: 1})
	run, err := o.Start(context.Background(), []string{"saas"})
	require.NoError(t, err)
	assert.Equal(t, model.CrawlRunning, run.Status)
	assert.NotEmpty(t, run.ID)

	o.Wait()
	assert.False(t, o.IsRunInProgress())
	_, runs := buf.Snapshot()
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
	assert.Equal(t, model.CrawlCompleted, runs[0].Status)
}

func TestScheduleRecurring_StopDisarms(t *testing.T) {
	o := crawl.New(&fakeSource{}, crawl.NewBuffer(), crawl.Options{Interval: time.Hour})
	assert.False(t, o.IsRunning())
	require.NoError(t, o.ScheduleRecurring())
	require.NoError(t, o.ScheduleRecurring())
	assert.True(t, o.IsRunning())
	assert.False(t, o.IsRunInProgress())
	o.Stop()
	assert.False(t, o.IsRunning())
	o.Stop()
}

func TestRunCrawlNow_RunRecordCreateFailureStillReturnsRun(t *testing.T) {
	src := &fakeSource{}
	o := crawl.New(src, unrecordedStore{crawl.NewBuffer()}, crawl.Options{PerCommunity: 1})

	run, err := o.RunCrawlNow(context.Background(), []string{"saas"})
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, model.CrawlFailed, run.Status)
	assert.Contains(t, run.Error, "no such table")
	assert.NotNil(t, run.CompletedAt)
	assert.Empty(t, src.order)
	assert.False(t, o.IsRunInProgress())

	started, err := o.Start(context.Background(), []string{"saas"})
	require.NoError(t, err)
	assert.Equal(t, model.CrawlFailed, started.Status)
	o.Wait()
	assert.False(t, o.IsRunInProgress())
}

func TestStop_WaitsForScheduledRun(t *testing.T) {
	src := &fakeSource{started: make(chan struct{}, 1), release: make(chan struct{})}
	buf := crawl.NewBuffer()
	o := crawl.New(src, buf, crawl.Options{Communities: []string{"saas"}, PerCommunity: 1, Interval: time.Second})
	require.NoError(t, o.ScheduleRecurring())

	select {
	case <-src.started:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduled run did not start")
	}

	stopped := make(chan struct{})
	go func() {
		o.Stop()
		o.Wait()
		close(stopped)
	}()
	select {
	case <-stopped:
		t.Fatal("Stop returned while a scheduled run was still writing")
	case <-time.After(200 * time.Millisecond):
	}

	close(src.release)
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return after the run finished")
	}
	assert.False(t, o.IsRunInProgress())
	_, runs := buf.Snapshot()
	require.NotEmpty(t, runs)
	for _, r := range runs {
		assert.Equal(t, model.CrawlCompleted, r.Status)
	}
}

func TestRunCrawlNow_OfflineHarvesterYieldsSamples(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	dead := srv.URL
	srv.Close()

	cl, err := fetch.New(fetch.Options{Timeout: time.Second})
	require.NoError(t, err)
	h := reddit.New(cl, reddit.Options{PrimaryHost: dead, MirrorHost: dead})
	buf := crawl.NewBuffer()
	o := crawl.New(h, buf, crawl.Options{PerCommunity: 2})

	run, err := o.RunCrawlNow(context.Background(), []string{"demo"})
	require.NoError(t, err)
	assert.Equal(t, model.CrawlCompleted, run.Status)
	assert.Equal(t, 2, run.Saved)
	threads, _ := buf.Snapshot()
	require.Len(t, threads, 2)
	for _, th := range threads {
		assert.True(t, th.Synthetic)
	}
}
