package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"go-thread-scout/internal/catalog"
	"go-thread-scout/internal/config"
	"go-thread-scout/internal/crawl"
	"go-thread-scout/internal/fetch"
	"go-thread-scout/internal/logx"
	"go-thread-scout/internal/reddit"
	"go-thread-scout/internal/scoring"
	"go-thread-scout/internal/serp"
	"go-thread-scout/internal/store"
)

// app 持有一次命令执行所需的全部组件。
type app struct {
	cfg       *config.Config
	catalog   *catalog.Catalog
	store     *store.SQLite
	harvester *reddit.Harvester
	engine    *scoring.Engine
	resolver  *serp.Resolver
	crawler   *crawl.Orchestrator
}

// loadConfig 读取配置；文件不存在时使用默认值。
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		logx.Warnf("未找到配置文件 %s，使用默认配置", path)
		return config.Default(), nil
	}
	return cfg, err
}

// loadCatalog 读取联盟计划目录；文件不存在时使用内置目录。
func loadCatalog(path string) (*catalog.Catalog, error) {
	c, err := catalog.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		logx.Infof("未找到计划目录 %s，使用内置目录", path)
		return catalog.Builtin(), nil
	}
	return c, err
}

// newHarvester 创建带请求节奏与代理设置的抓取器；不依赖数据库。
func newHarvester(cfg *config.Config) (*reddit.Harvester, error) {
	cl, err := fetch.New(fetch.Options{
		ProxyHTTP:  cfg.Proxy.HTTP,
		ProxyHTTPS: cfg.Proxy.HTTPS,
		Timeout:    cfg.RequestTimeout,
		Pacer:      &fetch.Pacer{Base: cfg.RequestDelay.Base, Jitter: cfg.RequestDelay.Jitter},
	})
	if err != nil {
		return nil, fmt.Errorf("http client: %w", err)
	}
	return reddit.New(cl, reddit.Options{
		PrimaryHost:       cfg.Reddit.PrimaryHost,
		MirrorHost:        cfg.Reddit.MirrorHost,
		Listing:           cfg.Reddit.Listing,
		CommunityDelayMin: cfg.CommunityDelay.Min,
		CommunityDelayMax: cfg.CommunityDelay.Max,
	}), nil
}

// newApp 打开数据库、写入计划目录并组装各组件。
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	cat, err := loadCatalog(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}
	st, err := store.OpenSQLite(cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if cfg.ResetOnStart {
		if err := st.Reset(ctx); err != nil {
			logx.Warnf("启动清理数据库失败：%v", err)
		} else {
			logx.Infof("已清理数据库表")
		}
	}
	n, err := cat.Seed(ctx, st)
	if err != nil {
		st.Close()
		return nil, err
	}
	logx.Debugf("已写入联盟计划：%d", n)

	h, err := newHarvester(cfg)
	if err != nil {
		st.Close()
		return nil, err
	}
	serpClient, err := fetch.New(fetch.Options{
		ProxyHTTP:  cfg.Proxy.HTTP,
		ProxyHTTPS: cfg.Proxy.HTTPS,
		Timeout:    cfg.RequestTimeout,
	})
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("serp client: %w", err)
	}

	engine := scoring.NewEngine(st, scoring.WeightsFromConfig(cfg.Scoring))
	provider := serp.NewCSE(serpClient, cfg.Serp.Endpoint, cfg.Serp.APIKey, cfg.Serp.CX)
	return &app{
		cfg:       cfg,
		catalog:   cat,
		store:     st,
		harvester: h,
		engine:    engine,
		resolver: serp.NewResolver(provider, st, serp.Options{
			PageSize:    cfg.Serp.PageSize,
			MaxPages:    cfg.Serp.MaxPages,
			QuerySuffix: cfg.Serp.QuerySuffix,
		}),
		crawler: crawl.New(h, st, crawl.Options{
			Communities:  cfg.Communities,
			PerCommunity: cfg.PostsPerCommunity,
			Interval:     cfg.CrawlInterval,
			Refresher:    engine,
		}),
	}, nil
}

func (a *app) Close() error {
	a.crawler.Stop()
	a.crawler.Wait()
	return a.store.Close()
}
