package engine

import (
	"context"
	"image"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// HeadlessOptions tunes the in-memory engine. The zero value behaves like a
// healthy native engine that installs every package successfully.
type HeadlessOptions struct {
	// FailTimeline makes CreateTimeline return no handle.
	FailTimeline bool
	// DropGrabs never delivers grabbed frames.
	DropGrabs bool
	// ManualInstall leaves installs pending until CompleteInstall is called.
	ManualInstall bool
	InstallDelay  time.Duration
	// InstallCodes maps package IDs to the status code their install reports.
	InstallCodes map[string]int
	// RejectCaption / RejectSticker make the matching add call return nil.
	RejectCaption func(text string) bool
	RejectSticker func(packageID string) bool
}

// Headless keeps timeline state in memory. It backs dry-run composition in the
// CLI, the control server when no native engine is attached, and tests.
// Timeline objects follow the native engine's single-threaded affinity; only
// engine state, listeners and the package manager are safe for concurrent use.
type Headless struct {
	opts HeadlessOptions

	mu         sync.Mutex
	state      State
	positions  map[*HeadlessTimeline]int64
	readyCalls int
	windows    []*HeadlessLiveWindow
	// 最近一次播放请求的区间
	playStart, playEnd int64

	grabs    listenerSet[image.Image]
	packages *HeadlessPackages
}

func NewHeadless(opts HeadlessOptions) *Headless {
	h := &Headless{
		opts:      opts,
		positions: make(map[*HeadlessTimeline]int64),
	}
	h.packages = &HeadlessPackages{
		opts:   &h.opts,
		status: make(map[string]PackageStatus),
	}
	return h
}

func (h *Headless) CreateTimeline(video VideoResolution, fps Rational, audio AudioResolution) Timeline {
	if h.opts.FailTimeline || video.Width <= 0 || video.Height <= 0 || fps.Den == 0 {
		return nil
	}
	tl := &HeadlessTimeline{
		id:            uuid.NewString(),
		video:         video,
		fps:           fps,
		audio:         audio,
		rejectCaption: h.opts.RejectCaption,
		rejectSticker: h.opts.RejectSticker,
	}
	h.mu.Lock()
	h.positions[tl] = 0
	h.mu.Unlock()
	return tl
}

func (h *Headless) RemoveTimeline(tl Timeline) bool {
	t, ok := tl.(*HeadlessTimeline)
	if !ok || t == nil {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.positions[t]; !exists {
		return false
	}
	delete(h.positions, t)
	t.removed = true
	return true
}

// ReadyForTimelineModification stops playback like the native barrier does.
func (h *Headless) ReadyForTimelineModification(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mu.Lock()
	h.readyCalls++
	h.state = StateStopped
	h.mu.Unlock()
	return nil
}

// ReadyCalls reports how many modification barriers were requested.
func (h *Headless) ReadyCalls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.readyCalls
}

func (h *Headless) CreateLiveWindow(canvasID string) LiveWindow {
	if canvasID == "" {
		return nil
	}
	w := &HeadlessLiveWindow{CanvasID: canvasID, FillMode: FillPreserveAspectCrop}
	h.mu.Lock()
	h.windows = append(h.windows, w)
	h.mu.Unlock()
	return w
}

func (h *Headless) RemoveLiveWindow(w LiveWindow) {
	hw, ok := w.(*HeadlessLiveWindow)
	if !ok {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, existing := range h.windows {
		if existing == hw {
			h.windows = append(h.windows[:i], h.windows[i+1:]...)
			hw.Timeline = nil
			return
		}
	}
}

func (h *Headless) ConnectTimelineWithLiveWindow(tl Timeline, w LiveWindow) bool {
	hw, ok := w.(*HeadlessLiveWindow)
	t, ok2 := tl.(*HeadlessTimeline)
	if !ok || !ok2 || t == nil {
		return false
	}
	hw.Timeline = t
	return true
}

// LiveWindows lists windows that were created and not removed.
func (h *Headless) LiveWindows() []*HeadlessLiveWindow {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*HeadlessLiveWindow, len(h.windows))
	copy(out, h.windows)
	return out
}

func (h *Headless) PlaybackTimeline(tl Timeline, start, end int64) bool {
	t, ok := tl.(*HeadlessTimeline)
	if !ok || t == nil || t.removed {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state = StatePlayback
	h.positions[t] = start
	h.playStart, h.playEnd = start, end
	return true
}

// LastPlayback reports the range of the most recent accepted playback request.
func (h *Headless) LastPlayback() (start, end int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.playStart, h.playEnd
}

func (h *Headless) SeekTimeline(tl Timeline, position int64, flags int) bool {
	t, ok := tl.(*HeadlessTimeline)
	if !ok || t == nil || t.removed {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state = StateStopped
	h.positions[t] = position
	return true
}

func (h *Headless) Stop() {
	h.mu.Lock()
	h.state = StateStopped
	h.mu.Unlock()
}

func (h *Headless) StreamingEngineState() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

func (h *Headless) TimelineCurrentPosition(tl Timeline) int64 {
	t, ok := tl.(*HeadlessTimeline)
	if !ok {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.positions[t]
}

func (h *Headless) GrabImageFromTimeline(tl Timeline, position int64) bool {
	t, ok := tl.(*HeadlessTimeline)
	if !ok || t == nil || t.removed {
		return false
	}
	if h.opts.DropGrabs {
		return true
	}
	bounds := image.Rect(0, 0, t.video.Width, t.video.Height)
	go h.grabs.emit(image.NewRGBA(bounds))
	return true
}

func (h *Headless) AddImageGrabbedListener(fn func(img image.Image)) func() {
	return h.grabs.add(fn)
}

// RegisterFontByFilePath returns the file's base name as the family name.
func (h *Headless) RegisterFontByFilePath(path string) string {
	if path == "" {
		return ""
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (h *Headless) AssetPackageManager() PackageManager {
	return h.packages
}

// Packages exposes the concrete package manager for inspection.
func (h *Headless) Packages() *HeadlessPackages {
	return h.packages
}

type HeadlessLiveWindow struct {
	CanvasID string
	FillMode int
	Timeline *HeadlessTimeline
}

func (w *HeadlessLiveWindow) SetFillMode(mode int) {
	w.FillMode = mode
}

// InstallCall records one InstallAssetPackage invocation.
type InstallCall struct {
	ID          string
	Path        string
	LicensePath string
	Type        PackageType
}

type HeadlessPackages struct {
	opts *HeadlessOptions

	mu        sync.Mutex
	status    map[string]PackageStatus
	calls     []InstallCall
	pending   map[string]InstallCall
	listeners listenerSet[InstallEvent]
}

// PackageIDFromPath mirrors the native rule: the package ID is the first
// dot-separated component of the file name.
func PackageIDFromPath(path string) string {
	base := filepath.Base(path)
	return strings.Split(base, ".")[0]
}

func (p *HeadlessPackages) PackageStatus(id string, typ PackageType) PackageStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status[id]
}

// MarkInstalled flags a package as already installed.
func (p *HeadlessPackages) MarkInstalled(id string) {
	p.mu.Lock()
	p.status[id] = PackageReady
	p.mu.Unlock()
}

func (p *HeadlessPackages) InstallAssetPackage(path, licensePath string, typ PackageType) error {
	call := InstallCall{ID: PackageIDFromPath(path), Path: path, LicensePath: licensePath, Type: typ}
	p.mu.Lock()
	p.calls = append(p.calls, call)
	p.status[call.ID] = PackageInstalling
	if p.pending == nil {
		p.pending = make(map[string]InstallCall)
	}
	p.pending[call.ID] = call
	p.mu.Unlock()

	if p.opts.ManualInstall {
		return nil
	}
	code := p.opts.InstallCodes[call.ID]
	delay := p.opts.InstallDelay
	go func() {
		if delay > 0 {
			time.Sleep(delay)
		}
		p.CompleteInstall(call.ID, code)
	}()
	return nil
}

// CompleteInstall finishes a pending install and notifies listeners.
// It reports false when nothing was pending for id.
func (p *HeadlessPackages) CompleteInstall(id string, code int) bool {
	p.mu.Lock()
	call, ok := p.pending[id]
	if !ok {
		p.mu.Unlock()
		return false
	}
	delete(p.pending, id)
	if code == 0 {
		p.status[id] = PackageReady
	} else {
		p.status[id] = PackageNotInstalled
	}
	p.mu.Unlock()

	p.listeners.emit(InstallEvent{ID: id, Path: call.Path, Type: call.Type, Code: code})
	return true
}

// Calls returns every install request issued so far.
func (p *HeadlessPackages) Calls() []InstallCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]InstallCall, len(p.calls))
	copy(out, p.calls)
	return out
}

// Pending reports whether an install for id awaits completion.
func (p *HeadlessPackages) Pending(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.pending[id]
	return ok
}

func (p *HeadlessPackages) AddInstallListener(fn func(ev InstallEvent)) func() {
	return p.listeners.add(fn)
}

type listenerSet[T any] struct {
	mu    sync.Mutex
	next  int
	funcs map[int]func(T)
}

func (l *listenerSet[T]) add(fn func(T)) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.funcs == nil {
		l.funcs = make(map[int]func(T))
	}
	id := l.next
	l.next++
	l.funcs[id] = fn
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.funcs, id)
			l.mu.Unlock()
		})
	}
}

func (l *listenerSet[T]) emit(v T) {
	l.mu.Lock()
	funcs := make([]func(T), 0, len(l.funcs))
	for _, fn := range l.funcs {
		funcs = append(funcs, fn)
	}
	l.mu.Unlock()
	for _, fn := range funcs {
		fn(v)
	}
}
