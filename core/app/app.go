// Package app wires every tier from configuration and owns their lifetime.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	"ClipForge/cache"
	"ClipForge/config"
	"ClipForge/core/asset"
	"ClipForge/core/engine"
	"ClipForge/core/events"
	"ClipForge/core/fetch"
	"ClipForge/core/project"
	"ClipForge/core/timeline"
	"ClipForge/db"
	"ClipForge/logger"
	"ClipForge/repository"
	"ClipForge/storage"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Options 装配选项，零值使用 Headless 引擎和空项目
type Options struct {
	Source project.Source
	Engine engine.StreamingContext
	// Ready 引擎模块加载信号，nil 视为已就绪
	Ready *engine.Signal
}

// App 持有整个进程的资源解析与时间线组件
type App struct {
	Config   *config.Config
	Store    *storage.FSStore
	Repo     repository.AssetRepository
	Minio    *storage.MinioClient
	Engine   engine.StreamingContext
	Resolver *asset.Resolver
	Composer *timeline.Composer
	Events   *events.Hub
	Registry *prometheus.Registry

	closers []func() error
}

// Open 按配置装配全部组件，失败时释放已创建的资源
func Open(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	a := &App{
		Config:   cfg,
		Events:   events.NewHub(),
		Registry: prometheus.NewRegistry(),
	}
	if err := a.open(ctx, opts); err != nil {
		a.Close()
		return nil, err
	}
	logger.Info("应用组件装配完成",
		logger.String("assetRoot", a.Store.Root()),
		logger.String("assetDB", a.Config.AssetDB),
		logger.Bool("minio", a.Minio != nil))
	return a, nil
}

func (a *App) open(ctx context.Context, opts Options) (err error) {
	cfg := a.Config

	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	go a.Events.Run()
	a.closers = append(a.closers, func() error { a.Events.Stop(); return nil })

	if a.Store, err = storage.NewFSStore(cfg.AssetRoot); err != nil {
		return fmt.Errorf("open asset store: %w", err)
	}
	if a.Repo, err = a.openRepository(ctx); err != nil {
		return err
	}
	if a.Minio, err = storage.NewMinioFromConfig(ctx, cfg); err != nil {
		return fmt.Errorf("connect minio: %w", err)
	}

	a.Engine = opts.Engine
	if a.Engine == nil {
		a.Engine = engine.NewHeadless(engine.HeadlessOptions{})
		logger.Info("未接入原生引擎，使用 Headless 引擎")
	}
	removeInstallFeed := a.Engine.AssetPackageManager().AddInstallListener(a.publishInstall)
	a.closers = append(a.closers, func() error { removeInstallFeed(); return nil })

	a.Resolver, err = asset.NewResolver(asset.Options{
		Store:          a.Store,
		Repository:     a.Repo,
		Fetcher:        a.fetcher(),
		Engine:         a.Engine,
		Ready:          opts.Ready,
		InstallTimeout: cfg.InstallTimeout,
		Registerer:     a.Registry,
	})
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func() error { a.Resolver.Close(); return nil })

	source := opts.Source
	if source == nil {
		source = project.NewStaticSource(nil)
	}
	a.Composer, err = timeline.NewComposer(timeline.Options{
		Engine:           a.Engine,
		Source:           source,
		Resolver:         a.Resolver,
		Ready:            opts.Ready,
		Width:            cfg.TimelineWidth,
		Height:           cfg.TimelineHeight,
		FPS:              cfg.TimelineFPS,
		AudioSampleRate:  cfg.AudioSampleRate,
		AudioChannels:    cfg.AudioChannels,
		CanvasID:         cfg.CanvasID,
		FrameGrabTimeout: cfg.FrameGrabTimeout,
		Notify:           a.publishTimeline,
	})
	if err != nil {
		return err
	}
	if err = a.Composer.Init(ctx); err != nil {
		return fmt.Errorf("init timeline: %w", err)
	}
	a.closers = append(a.closers, func() error { a.Composer.Destroy(); return nil })
	return nil
}

// openRepository 按 ASSET_DB 选择结构化缓存层
func (a *App) openRepository(ctx context.Context) (repository.AssetRepository, error) {
	cfg := a.Config
	switch strings.ToLower(cfg.AssetDB) {
	case "", "sqlite":
		conn, err := db.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		return a.sqlRepository(ctx, conn, db.DialectSQLite)
	case "mysql":
		conn, err := db.ConnectDB(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("connect mysql: %w", err)
		}
		return a.sqlRepository(ctx, conn, db.DialectMySQL)
	case "gorm":
		gdb, err := db.ConnectGormDB(cfg)
		if err != nil {
			return nil, fmt.Errorf("connect gorm: %w", err)
		}
		a.closers = append(a.closers, func() error { return db.CloseGormDB(gdb) })
		if err := db.AutoMigrateModels(gdb); err != nil {
			return nil, err
		}
		return repository.NewGormAssetRepository(gdb), nil
	case "redis":
		client, err := db.ConnectRedis(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		return cache.NewAssetCache(client, cfg.AssetCacheTTL), nil
	}
	return nil, fmt.Errorf("unknown ASSET_DB %q", cfg.AssetDB)
}

func (a *App) sqlRepository(ctx context.Context, conn *sql.DB, dialect db.Dialect) (repository.AssetRepository, error) {
	a.closers = append(a.closers, conn.Close)
	if err := db.InitSchema(ctx, conn, dialect); err != nil {
		return nil, err
	}
	return repository.NewSQLAssetRepository(conn, dialect), nil
}

// fetcher 网络层：资源桶所在主机走 MinIO，其余走 HTTP
func (a *App) fetcher() fetch.Fetcher {
	cfg := a.Config
	httpFetcher := fetch.NewHTTPFetcher(fetch.HTTPOptions{
		Timeout: cfg.FetchTimeout,
		Rate:    cfg.FetchRate,
		Burst:   cfg.FetchBurst,
	})
	if a.Minio == nil {
		return httpFetcher
	}
	router := fetch.NewRouter(httpFetcher)
	router.Handle(minioHost(cfg.MinioEndpoint), fetch.NewMinioFetcher(a.Minio))
	return router
}

// minioHost 去掉协议和端口，与资源地址中的主机名比较
func minioHost(endpoint string) string {
	if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
		return u.Hostname()
	}
	if i := strings.LastIndex(endpoint, ":"); i >= 0 {
		return endpoint[:i]
	}
	return endpoint
}

func (a *App) publishTimeline(ev timeline.Event) {
	if err := a.Events.Publish(events.MsgTypeTimeline, ev); err != nil {
		logger.Warn("推送时间线事件失败", logger.ErrorField(err))
	}
}

func (a *App) publishInstall(ev engine.InstallEvent) {
	data := events.InstallData{Identity: ev.ID, Path: ev.Path, Type: int(ev.Type), Code: ev.Code}
	if err := a.Events.Publish(events.MsgTypeInstall, data); err != nil {
		logger.Warn("推送安装事件失败", logger.ErrorField(err))
	}
}

// Close 逆序释放资源
func (a *App) Close() error {
	var firstErr error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.closers = nil
	logger.Sync()
	return firstErr
}
