// 包 crawl 负责抓取编排：
// - 同一时刻至多一次运行（原子标志，冲突立即拒绝，不排队）
// - 按顺序逐个社区抓取，社区之间插入随机间隔
// - 记录 CrawlRun 生命周期，可选的周期触发
package crawl

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"go-thread-scout/internal/logx"
	"go-thread-scout/internal/model"
)

var log = logx.For("crawl")

// ErrRunInProgress 表示已有抓取在执行，本次请求被拒绝。
var ErrRunInProgress = errors.New("crawl: a run is already in progress")

// Source 为抓取来源，Fetch 不返回错误。
type Source interface {
	Fetch(ctx context.Context, community string, n int) []model.ThreadRecord
	CommunityPause(ctx context.Context) error
}

// Store 为编排所需的持久化操作。
type Store interface {
	CreateCrawlRun(ctx context.Context, r *model.CrawlRun) error
	UpdateCrawlRun(ctx context.Context, r model.CrawlRun) error
	UpsertThread(ctx context.Context, t *model.ThreadRecord) (bool, error)
}

// Refresher 在运行成功后触发重算，可为 nil。
type Refresher interface {
	Refresh(ctx context.Context) (int, error)
}

// Options 为编排参数。
type Options struct {
	Communities  []string
	PerCommunity int
	Interval     time.Duration
	Refresher    Refresher
}

// Orchestrator 为抓取编排器，持有运行中标志与周期触发器。
type Orchestrator struct {
	src   Source
	store Store
	opts  Options

	running atomic.Bool

	mu    sync.Mutex
	sched *cron.Cron

	wg  sync.WaitGroup
	now func() time.Time
}

// New 创建 Orchestrator。
func New(src Source, s Store, opts Options) *Orchestrator {
	if opts.PerCommunity <= 0 {
		opts.PerCommunity = 25
	}
	if opts.Interval <= 0 {
		opts.Interval = 12 * time.Hour
	}
	return &Orchestrator{src: src, store: s, opts: opts, now: time.Now}
}

// RunCrawlNow 同步执行一次抓取。已有运行时立即返回 ErrRunInProgress。
// 运行失败同样返回 CrawlRun（status=failed），error 为 nil；
// 运行记录无法创建时返回未持久化的 failed 记录。
func (o *Orchestrator) RunCrawlNow(ctx context.Context, communities []string) (*model.CrawlRun, error) {
	run, ok, err := o.begin(ctx, communities)
	if err != nil {
		return nil, err
	}
	if ok {
		o.execute(ctx, run)
	}
	return run, nil
}

// Start 创建运行记录后在后台执行，返回 running 状态的记录副本。
// 运行记录无法创建时直接返回 failed 记录，不启动后台执行。
func (o *Orchestrator) Start(ctx context.Context, communities []string) (model.CrawlRun, error) {
	run, ok, err := o.begin(ctx, communities)
	if err != nil {
		return model.CrawlRun{}, err
	}
	if !ok {
		return *run, nil
	}
	snapshot := *run
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.execute(context.WithoutCancel(ctx), run)
	}()
	return snapshot, nil
}

// Wait 等待所有后台运行（含周期触发的运行）结束。
func (o *Orchestrator) Wait() { o.wg.Wait() }

// IsRunInProgress 报告是否有抓取正在执行。
func (o *Orchestrator) IsRunInProgress() bool { return o.running.Load() }

// IsRunning 报告周期触发器是否已启用。
func (o *Orchestrator) IsRunning() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sched != nil
}

// ScheduleRecurring 按 Interval 启用周期触发；重复调用无副作用。
// 触发时若已有运行则跳过本轮。
func (o *Orchestrator) ScheduleRecurring() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sched != nil {
		return nil
	}
	c := cron.New()
	spec := "@every " + o.opts.Interval.String()
	if _, err := c.AddFunc(spec, o.tick); err != nil {
		return fmt.Errorf("schedule %q: %w", spec, err)
	}
	c.Start()
	o.sched = c
	log.Infof("已启用周期抓取：间隔=%s", o.opts.Interval)
	return nil
}

// Stop 停用周期触发，并等待已触发的运行写入终态后返回；不会中断正在执行的运行。
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	c := o.sched
	o.sched = nil
	o.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
		log.Infof("周期抓取已停用")
	}
}

func (o *Orchestrator) tick() {
	o.wg.Add(1)
	defer o.wg.Done()
	run, err := o.RunCrawlNow(context.Background(), nil)
	if errors.Is(err, ErrRunInProgress) {
		log.Infof("周期触发：已有运行，跳过")
		return
	}
	if err != nil {
		log.Errorf("周期触发失败：%v", err)
		return
	}
	log.Infof("周期触发完成：run=%s 状态=%s 保存=%d", run.ID, run.Status, run.Saved)
}

// begin 抢占运行标志并创建 running 记录。
// 创建失败时释放标志，返回内存中的 failed 记录且 ok 为 false。
func (o *Orchestrator) begin(ctx context.Context, communities []string) (run *model.CrawlRun, ok bool, err error) {
	if !o.running.CompareAndSwap(false, true) {
		return nil, false, ErrRunInProgress
	}
	run = &model.CrawlRun{
		StartedAt:   o.now(),
		Communities: o.targets(communities),
		Status:      model.CrawlRunning,
	}
	if cerr := o.store.CreateCrawlRun(ctx, run); cerr != nil {
		o.running.Store(false)
		done := o.now()
		run.CompletedAt = &done
		run.Status = model.CrawlFailed
		run.Error = fmt.Sprintf("create crawl run: %v", cerr)
		log.Errorf("无法创建运行记录：%v", cerr)
		return run, false, nil
	}
	return run, true, nil
}

// execute 执行抓取并写入终态；任何退出路径都会释放运行标志。
func (o *Orchestrator) execute(ctx context.Context, run *model.CrawlRun) {
	defer o.running.Store(false)
	defer func() {
		if r := recover(); r != nil {
			o.finish(ctx, run, fmt.Errorf("panic: %v", r))
		}
	}()
	log.Infof("开始抓取：run=%s 社区=%s", run.ID, strings.Join(run.Communities, ","))
	err := o.crawl(ctx, run)
	o.finish(ctx, run, err)
	if err == nil {
		o.refresh(ctx)
	}
}

// refresh 在运行成功后重算机会，失败只记录日志。
func (o *Orchestrator) refresh(ctx context.Context) {
	if o.opts.Refresher == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("抓取后重算异常：%v", r)
		}
	}()
	n, err := o.opts.Refresher.Refresh(ctx)
	if err != nil {
		log.Warnf("抓取后重算失败：%v", err)
		return
	}
	log.Infof("抓取后重算完成：变更机会=%d", n)
}

// crawl 顺序抓取各社区并逐条保存，保存失败即终止本次运行。
func (o *Orchestrator) crawl(ctx context.Context, run *model.CrawlRun) error {
	for i, c := range run.Communities {
		if i > 0 {
			if err := o.src.CommunityPause(ctx); err != nil {
				return err
			}
		}
		recs := o.src.Fetch(ctx, c, o.opts.PerCommunity)
		run.Discovered += len(recs)
		for j := range recs {
			if _, err := o.store.UpsertThread(ctx, &recs[j]); err != nil {
				return fmt.Errorf("save thread %s%s: %w", c, recs[j].Permalink, err)
			}
			run.Saved++
		}
		log.Infof("r/%s：获取=%d", c, len(recs))
	}
	return nil
}

func (o *Orchestrator) finish(ctx context.Context, run *model.CrawlRun, err error) {
	done := o.now()
	run.CompletedAt = &done
	if err != nil {
		run.Status = model.CrawlFailed
		run.Error = err.Error()
		log.Errorf("抓取失败：run=%s 错误=%v", run.ID, err)
	} else {
		run.Status = model.CrawlCompleted
		run.Error = ""
		log.Infof("抓取完成：run=%s 发现=%d 保存=%d", run.ID, run.Discovered, run.Saved)
	}
	if uerr := o.store.UpdateCrawlRun(context.WithoutCancel(ctx), *run); uerr != nil {
		log.Errorf("更新运行记录失败：run=%s 错误=%v", run.ID, uerr)
	}
}

// targets 清理社区名，空列表使用配置的默认目录。
func (o *Orchestrator) targets(in []string) []string {
	src := in
	if len(src) == 0 {
		src = o.opts.Communities
	}
	seen := map[string]struct{}{}
	out := make([]string, 0, len(src))
	for _, c := range src {
		c = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(c), "/"), "r/")
		if c == "" {
			continue
		}
		key := strings.ToLower(c)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}
