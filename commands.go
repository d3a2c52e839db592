package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"go-thread-scout/internal/config"
	"go-thread-scout/internal/crawl"
	"go-thread-scout/internal/export"
	"go-thread-scout/internal/httpapi"
	"go-thread-scout/internal/logx"
	"go-thread-scout/internal/model"
	"go-thread-scout/internal/scoring"
)

var (
	configPath string
	envPath    string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "thread-scout",
	Short:         "Find and score discussion threads for affiliate opportunities",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envPath, err)
		}
		c, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		logx.Init(logx.Options{Level: c.LogLevel, Format: c.LogFormat, Locale: c.LogLocale, Color: c.LogColor})
		cfg = c
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "settings.yaml", "path to settings.yaml")
	rootCmd.PersistentFlags().StringVar(&envPath, "env", ".env", "path to .env (optional)")

	crawlCmd.Flags().Bool("dry-run", false, "crawl and score in memory, write JSON instead of the database")
	crawlCmd.Flags().String("out", "data.json", "output path for --dry-run")
	serpCmd.Flags().String("query", "", "search query (built from the thread when empty)")
	scheduleCmd.Flags().Bool("now", false, "run one crawl immediately before waiting for the schedule")
	serveCmd.Flags().Bool("schedule", false, "arm the recurring crawl while serving")
	exportCmd.Flags().String("json", "worklist.json", "worklist JSON output path (empty to skip)")
	exportCmd.Flags().String("feed", "", "Atom feed output path (empty to skip)")

	rootCmd.AddCommand(crawlCmd, refreshCmd, serpCmd, scheduleCmd, serveCmd, exportCmd)
}

// withApp 组装组件并在命令结束后释放。
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var crawlCmd = &cobra.Command{
	Use:   "crawl [communities...]",
	Short: "Run one crawl now (default communities when none given)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if dry, _ := cmd.Flags().GetBool("dry-run"); dry {
			out, _ := cmd.Flags().GetString("out")
			return dryRun(cmd.Context(), args, out)
		}
		return withApp(cmd, func(ctx context.Context, a *app) error {
			run, err := a.crawler.RunCrawlNow(ctx, args)
			if err != nil {
				return err
			}
			return printJSON(run)
		})
	},
}

// dryRun 抓取并在内存中评分，结果直接写 JSON，不打开数据库。
func dryRun(ctx context.Context, communities []string, out string) error {
	cat, err := loadCatalog(cfg.CatalogPath)
	if err != nil {
		return err
	}
	h, err := newHarvester(cfg)
	if err != nil {
		return err
	}
	buf := crawl.NewBuffer()
	o := crawl.New(h, buf, crawl.Options{Communities: cfg.Communities, PerCommunity: cfg.PostsPerCommunity})
	run, err := o.RunCrawlNow(ctx, communities)
	if err != nil {
		return err
	}
	logx.Infof("演练抓取：状态=%s 发现=%d", run.Status, run.Discovered)

	threads, _ := buf.Snapshot()
	programs := cat.List()
	w := scoring.WeightsFromConfig(cfg.Scoring)
	now := time.Now()
	items := make([]model.WorkItem, 0, len(threads))
	for _, t := range threads {
		ev := scoring.Evaluate(t, programs, false, w)
		t.Intent, t.Keywords, t.Score = ev.Intent, ev.Keywords, ev.Score
		items = append(items, model.WorkItem{
			Thread: t,
			Opportunity: model.Opportunity{
				ThreadID:   t.ID,
				Score:      ev.Score,
				Intent:     ev.Intent,
				ProgramIDs: ev.ProgramIDs,
				Action:     model.ActionPending,
				CreatedAt:  now,
				UpdatedAt:  now,
			},
		})
	}
	if err := export.ToJSONData(items, out); err != nil {
		return err
	}
	logx.Infof("已导出 %s", out)
	return nil
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Recompute intent, keywords and scores and upsert opportunities",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			n, err := a.engine.Refresh(ctx)
			if err != nil {
				return err
			}
			return printJSON(map[string]int{"changed": n})
		})
	},
}

var serpCmd = &cobra.Command{
	Use:   "serp <thread-id>",
	Short: "Check where a thread ranks in external search results",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query, _ := cmd.Flags().GetString("query")
		return withApp(cmd, func(ctx context.Context, a *app) error {
			res, err := a.resolver.CheckPosition(ctx, args[0], query)
			if err != nil {
				return err
			}
			return printJSON(res)
		})
	},
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Arm the recurring crawl and block until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		now, _ := cmd.Flags().GetBool("now")
		return withApp(cmd, func(ctx context.Context, a *app) error {
			if err := a.crawler.ScheduleRecurring(); err != nil {
				return err
			}
			if now {
				if _, err := a.crawler.Start(ctx, nil); err != nil {
					logx.Warnf("立即抓取未启动：%v", err)
				}
			}
			<-ctx.Done()
			logx.Infof("收到退出信号，等待进行中的抓取结束")
			return nil
		})
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sched, _ := cmd.Flags().GetBool("schedule")
		return withApp(cmd, func(ctx context.Context, a *app) error {
			if sched {
				if err := a.crawler.ScheduleRecurring(); err != nil {
					return err
				}
			}
			gin.SetMode(gin.ReleaseMode)
			h := httpapi.NewHandler(a.crawler, a.engine, a.resolver, a.store)
			srv := &http.Server{Addr: a.cfg.Listen, Handler: httpapi.NewRouter(h), ReadHeaderTimeout: 10 * time.Second}

			errCh := make(chan error, 1)
			go func() {
				logx.Infof("HTTP 服务监听 %s", a.cfg.Listen)
				errCh <- srv.ListenAndServe()
			}()
			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the opportunity worklist as JSON and/or an Atom feed",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonPath, _ := cmd.Flags().GetString("json")
		feedPath, _ := cmd.Flags().GetString("feed")
		return withApp(cmd, func(ctx context.Context, a *app) error {
			if jsonPath != "" {
				if err := export.ToJSON(ctx, a.store, jsonPath); err != nil {
					return err
				}
				logx.Infof("已导出 %s", jsonPath)
			}
			if feedPath != "" {
				w, err := export.Worklist(ctx, a.store, model.ActionPending, export.MaxItems)
				if err != nil {
					return err
				}
				if err := export.WriteFeed(w.Items, feedPath); err != nil {
					return err
				}
				logx.Infof("已导出 %s", feedPath)
			}
			return nil
		})
	},
}
