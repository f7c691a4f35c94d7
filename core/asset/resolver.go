// Package asset resolves remote asset references to something the engine can
// use: a local file path, a registered font family, or an installed package.
//
// Tiers are tried in order: local store (playlists and custom assets only),
// structured cache, then the network. Fetched bytes are persisted to the
// structured cache before use. Installable kinds go through the engine's
// package manager and wait for its per-identity completion event.
package asset

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"ClipForge/core/engine"
	"ClipForge/core/fetch"
	"ClipForge/logger"
	"ClipForge/model"
	"ClipForge/repository"

	"github.com/prometheus/client_golang/prometheus"
)

// LocalStore 本地文件层
type LocalStore interface {
	Path(kind model.AssetKind, name string) string
	ReadDir(ctx context.Context, kind model.AssetKind) ([]string, error)
	WriteFile(ctx context.Context, kind model.AssetKind, name string, data []byte) (string, error)
	Remove(ctx context.Context, path string) error
}

type Options struct {
	Store      LocalStore
	Repository repository.AssetRepository
	Fetcher    fetch.Fetcher
	Engine     engine.StreamingContext
	// Ready 引擎模块加载完成信号，nil 视为已就绪
	Ready *engine.Signal
	// InstallTimeout 安装等待上限，0 表示一直等待
	InstallTimeout time.Duration
	Registerer     prometheus.Registerer
}

func (o *Options) validate() error {
	switch {
	case o.Store == nil:
		return errors.New("asset: local store is required")
	case o.Repository == nil:
		return errors.New("asset: repository is required")
	case o.Fetcher == nil:
		return errors.New("asset: fetcher is required")
	}
	return nil
}

func (o *Options) setDefaults() {
	if o.Ready == nil {
		o.Ready = engine.Ready()
	}
}

type flight struct {
	done chan struct{}
	path string
	err  error
}

// Resolver 资源解析器，可并发调用
type Resolver struct {
	opts     Options
	metrics  *metrics
	installs *installRegistry

	mu      sync.Mutex
	flights map[string]*flight

	removeListener func()
}

func NewResolver(opts Options) (*Resolver, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	opts.setDefaults()

	r := &Resolver{
		opts:    opts,
		metrics: newMetrics(opts.Registerer),
		flights: make(map[string]*flight),
	}
	r.installs = newInstallRegistry(r.recordInstall)
	if opts.Engine != nil {
		r.removeListener = opts.Engine.AssetPackageManager().AddInstallListener(r.installs.dispatch)
	}
	return r, nil
}

// Close 注销引擎安装监听
func (r *Resolver) Close() {
	if r.removeListener != nil {
		r.removeListener()
	}
}

func (r *Resolver) recordInstall(err error) {
	switch {
	case err == nil:
		r.metrics.installs.WithLabelValues("ok").Inc()
	case errors.Is(err, ErrInstallTimeout):
		r.metrics.installs.WithLabelValues("timeout").Inc()
	default:
		r.metrics.installs.WithLabelValues("failed").Inc()
	}
}

// Resolve 返回资源的本地路径；字体返回字体族名
// 空地址直接返回 ""，不访问任何存储层。同一类型同一 identity 的并发调用
// 共享一次解析，调用方 ctx 取消只影响自己的等待
func (r *Resolver) Resolve(ctx context.Context, ref model.AssetRef) (string, error) {
	if ref.IsEmpty() {
		return "", nil
	}
	key := string(ref.Kind()) + "/" + ref.Identity()

	r.mu.Lock()
	f, exists := r.flights[key]
	if !exists {
		f = &flight{done: make(chan struct{})}
		r.flights[key] = f
		go r.run(context.WithoutCancel(ctx), key, ref, f)
	} else {
		r.metrics.deduped.Inc()
	}
	r.mu.Unlock()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-f.done:
		return f.path, f.err
	}
}

func (r *Resolver) run(ctx context.Context, key string, ref model.AssetRef, f *flight) {
	f.path, f.err = r.resolve(ctx, ref)
	r.mu.Lock()
	delete(r.flights, key)
	close(f.done)
	r.mu.Unlock()
}

func (r *Resolver) resolve(ctx context.Context, ref model.AssetRef) (string, error) {
	name := ref.FileName()
	if name == "" || name == "." || name == "/" {
		return "", fmt.Errorf("%w: %q", ErrInvalidReference, ref.URL)
	}
	kind := ref.Kind()
	id := ref.Identity()

	if err := r.opts.Ready.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: %v", ErrEngineNotLoaded, err)
	}

	if kind == model.KindPlaylist || kind == model.KindCustom {
		if p, ok := r.probeLocal(ctx, kind, id); ok {
			r.metrics.resolved.WithLabelValues("local", string(kind)).Inc()
			return p, nil
		}
	}

	data := r.probeRepository(ctx, kind, id, name)
	if data != nil {
		r.metrics.resolved.WithLabelValues("db", string(kind)).Inc()
	} else {
		fetched, err := r.fetch(ctx, ref, kind, id, name)
		if err != nil {
			return "", err
		}
		data = fetched
		r.metrics.resolved.WithLabelValues("network", string(kind)).Inc()
	}

	path, err := r.opts.Store.WriteFile(ctx, kind, name, data)
	if err != nil {
		return "", fmt.Errorf("write %s to local store: %w", name, err)
	}

	switch {
	case kind == model.KindFont:
		return r.registerFont(path)
	case kind.NeedsInstall():
		return r.install(ctx, ref, kind, id, path)
	default:
		return path, nil
	}
}

// probeLocal 目录中文件名等于 identity 或以 "identity." 开头即视为已就绪
func (r *Resolver) probeLocal(ctx context.Context, kind model.AssetKind, id string) (string, bool) {
	names, err := r.opts.Store.ReadDir(ctx, kind)
	if err != nil {
		logger.Warn("读取本地资源目录失败", logger.String("kind", string(kind)), logger.ErrorField(err))
		return "", false
	}
	for _, n := range names {
		if n == id || strings.HasPrefix(n, id+".") {
			return r.opts.Store.Path(kind, n), true
		}
	}
	return "", false
}

// probeRepository 命中且版本一致时返回字节，否则返回 nil
func (r *Resolver) probeRepository(ctx context.Context, kind model.AssetKind, id, name string) []byte {
	cached, err := r.opts.Repository.Get(ctx, kind, id)
	if err != nil {
		logger.Warn("读取资源缓存失败，改为网络拉取", logger.Identity(id), logger.ErrorField(err))
		return nil
	}
	if cached == nil {
		return nil
	}
	if cached.SourceName != name {
		r.metrics.stale.Inc()
		logger.Info("缓存版本不一致，重新拉取",
			logger.Identity(id),
			logger.String("cached", cached.SourceName),
			logger.String("requested", name))
		return nil
	}
	return cached.Data
}

func (r *Resolver) fetch(ctx context.Context, ref model.AssetRef, kind model.AssetKind, id, name string) ([]byte, error) {
	u := ref.SecureURL()
	data, err := r.opts.Fetcher.Fetch(ctx, u)
	if err != nil {
		r.metrics.fetchFailed.Inc()
		logger.Error("资源下载失败", logger.Identity(id), logger.String("url", u), logger.ErrorField(err))
		return nil, &FetchError{URL: u, Err: err}
	}

	err = r.opts.Repository.Put(ctx, &model.CachedAsset{
		Store:      string(kind),
		Identity:   id,
		SourceName: name,
		Data:       data,
	})
	if err != nil {
		logger.Warn("写入资源缓存失败", logger.Identity(id), logger.ErrorField(err))
	}
	return data, nil
}

func (r *Resolver) registerFont(path string) (string, error) {
	if r.opts.Engine == nil {
		return "", ErrEngineNotLoaded
	}
	family := r.opts.Engine.RegisterFontByFilePath(path)
	if family == "" {
		return "", fmt.Errorf("register font %s: engine returned no family", path)
	}
	return family, nil
}

func (r *Resolver) install(ctx context.Context, ref model.AssetRef, kind model.AssetKind, id, path string) (string, error) {
	if r.opts.Engine == nil {
		return "", ErrEngineNotLoaded
	}
	pm := r.opts.Engine.AssetPackageManager()
	typ := PackageType(kind)
	if pm.PackageStatus(id, typ) == engine.PackageReady {
		return path, nil
	}

	var licPath string
	if ref.CheckLicense {
		licPath = r.materializeLicense(ctx, id)
	}

	done, leader := r.installs.attach(id, func() { r.cleanup(path, licPath) })
	if leader {
		logger.Info("安装素材包", logger.Identity(id), logger.String("kind", string(kind)))
		if err := pm.InstallAssetPackage(path, licPath, typ); err != nil {
			r.installs.complete(id, fmt.Errorf("%w: %s: %v", ErrInstallFailed, id, err))
		} else {
			r.installs.arm(id, r.opts.InstallTimeout)
		}
	}

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case err := <-done:
		if err != nil {
			return "", err
		}
		return path, nil
	}
}

// materializeLicense 授权文件只从结构化缓存读取
func (r *Resolver) materializeLicense(ctx context.Context, id string) string {
	lic, err := r.opts.Repository.Get(ctx, model.KindLicense, id)
	if err != nil || lic == nil {
		logger.Warn("未找到授权文件", logger.Identity(id), logger.Any("error", err))
		return ""
	}
	p, err := r.opts.Store.WriteFile(ctx, model.KindLicense, id+".lic", lic.Data)
	if err != nil {
		logger.Warn("写入授权文件失败", logger.Identity(id), logger.ErrorField(err))
		return ""
	}
	return p
}

// cleanup 删除失败只记录日志
func (r *Resolver) cleanup(paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := r.opts.Store.Remove(context.Background(), p); err != nil {
			logger.Warn("删除临时文件失败", logger.String("path", p), logger.ErrorField(err))
		}
	}
}

// Outstanding 当前等待引擎回调的安装数
func (r *Resolver) Outstanding() int {
	return r.installs.outstanding()
}

// PackageType 资源类型对应的引擎包类型
func PackageType(kind model.AssetKind) engine.PackageType {
	switch kind {
	case model.KindVideoFx:
		return engine.PackageVideoFx
	case model.KindVideoTransition:
		return engine.PackageVideoTransition
	case model.KindCaptionStyle:
		return engine.PackageCaptionStyle
	case model.KindAnimatedSticker:
		return engine.PackageAnimatedSticker
	case model.KindCompoundCaption:
		return engine.PackageCompoundCaption
	case model.KindARScene:
		return engine.PackageARScene
	default:
		return engine.PackageGeneric
	}
}
