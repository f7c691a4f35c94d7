package asset

import (
	"sync"
	"time"

	"ClipForge/core/engine"
	"ClipForge/logger"
)

// pendingInstall 一个 identity 的安装请求，所有等待者共享同一个结果
type pendingInstall struct {
	waiters []chan error
	cleanup func()
	timer   *time.Timer
}

// installRegistry identity -> 等待者集合
// 引擎安装回调统一进入 dispatch，完成后条目被移除
type installRegistry struct {
	mu      sync.Mutex
	pending map[string]*pendingInstall
	onDone  func(err error)
}

func newInstallRegistry(onDone func(err error)) *installRegistry {
	return &installRegistry{
		pending: make(map[string]*pendingInstall),
		onDone:  onDone,
	}
}

// attach 加入等待；没有未完成请求时创建一个并返回 leader=true，由调用方发起安装
func (r *installRegistry) attach(id string, cleanup func()) (<-chan error, bool) {
	ch := make(chan error, 1)
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.pending[id]; ok {
		p.waiters = append(p.waiters, ch)
		return ch, false
	}
	r.pending[id] = &pendingInstall{waiters: []chan error{ch}, cleanup: cleanup}
	return ch, true
}

// arm 为已发起的安装设置超时，请求已完成时什么都不做
func (r *installRegistry) arm(id string, timeout time.Duration) {
	if timeout <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pending[id]
	if !ok || p.timer != nil {
		return
	}
	p.timer = time.AfterFunc(timeout, func() {
		if r.finish(id, p, ErrInstallTimeout) {
			logger.Warn("素材包安装超时", logger.Identity(id), logger.Duration("timeout", timeout))
		}
	})
}

// dispatch 引擎安装完成回调
func (r *installRegistry) dispatch(ev engine.InstallEvent) {
	var err error
	if ev.Code != 0 {
		err = &InstallError{Identity: ev.ID, Code: ev.Code}
	}
	if !r.complete(ev.ID, err) {
		logger.Debug("忽略无人等待的安装回调", logger.Identity(ev.ID), logger.Int("code", ev.Code))
	}
}

// complete 结束 id 当前的请求
func (r *installRegistry) complete(id string, err error) bool {
	r.mu.Lock()
	p, ok := r.pending[id]
	r.mu.Unlock()
	if !ok {
		return false
	}
	return r.finish(id, p, err)
}

// finish 只在 p 仍是 id 的当前请求时生效，保证每个请求只完成一次
func (r *installRegistry) finish(id string, p *pendingInstall, err error) bool {
	r.mu.Lock()
	if r.pending[id] != p {
		r.mu.Unlock()
		return false
	}
	delete(r.pending, id)
	r.mu.Unlock()

	if p.timer != nil {
		p.timer.Stop()
	}
	if p.cleanup != nil {
		p.cleanup()
	}
	for _, ch := range p.waiters {
		ch <- err
	}
	if r.onDone != nil {
		r.onDone(err)
	}
	return true
}

// outstanding 当前未完成的安装数
func (r *installRegistry) outstanding() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}
