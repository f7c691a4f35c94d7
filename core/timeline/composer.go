// Package timeline composes the project model onto an engine timeline.
//
// A Composer owns one engine timeline. Every mutation runs under the
// composer lock, after the engine's modification barrier. Remote assets are
// resolved before the lock is taken, so a build never holds the timeline
// while waiting on the network or on a package install.
package timeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"ClipForge/core/engine"
	"ClipForge/core/project"
	"ClipForge/logger"
	"ClipForge/model"
)

// AssetResolver turns a remote reference into something the engine accepts.
type AssetResolver interface {
	Resolve(ctx context.Context, ref model.AssetRef) (string, error)
}

type State int

const (
	StateUninitialized State = iota
	StateEngineReady
	StateComposed
	StatePlaying
	StateSeeking
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateEngineReady:
		return "engine_ready"
	case StateComposed:
		return "composed"
	case StatePlaying:
		return "playing"
	case StateSeeking:
		return "seeking"
	case StateDestroyed:
		return "destroyed"
	default:
		return "uninitialized"
	}
}

// EventType 时间线事件类型
type EventType string

const (
	EventBuilt         EventType = "timeline.built"
	EventBuildFailed   EventType = "timeline.build_failed"
	EventClipRefreshed EventType = "timeline.clip_refreshed"
	EventDestroyed     EventType = "timeline.destroyed"
)

// Event is delivered to Options.Notify after a mutation finishes.
type Event struct {
	Type     EventType `json:"type"`
	Clip     string    `json:"clip,omitempty"`
	Duration int64     `json:"duration"`
	Error    string    `json:"error,omitempty"`
	At       time.Time `json:"at"`
}

type Options struct {
	Engine   engine.StreamingContext
	Source   project.Source
	Resolver AssetResolver
	// Ready 引擎模块加载完成信号，nil 视为已就绪
	Ready *engine.Signal

	Width           int
	Height          int
	FPS             int
	AudioSampleRate int
	AudioChannels   int
	// CanvasID 为空时不创建预览窗口
	CanvasID         string
	FrameGrabTimeout time.Duration

	Notify func(Event)
}

func (o *Options) validate() error {
	switch {
	case o.Engine == nil:
		return errors.New("timeline: engine is required")
	case o.Source == nil:
		return errors.New("timeline: project source is required")
	}
	return nil
}

func (o *Options) setDefaults() {
	if o.Width <= 0 {
		o.Width = 1080
	}
	if o.Height <= 0 {
		o.Height = 1920
	}
	if o.FPS <= 0 {
		o.FPS = 25
	}
	if o.AudioSampleRate <= 0 {
		o.AudioSampleRate = 44100
	}
	if o.AudioChannels <= 0 {
		o.AudioChannels = 2
	}
	if o.FrameGrabTimeout <= 0 {
		o.FrameGrabTimeout = 5 * time.Second
	}
	if o.Ready == nil {
		o.Ready = engine.Ready()
	}
}

// Composer owns one engine timeline and projects project snapshots onto it.
// Until Init has created that timeline, and after Destroy, timeline
// operations (build, afresh, delete, caption edits, play, seek, grab) fail
// with ErrEngineUnavailable or ErrDestroyed instead of touching the engine.
type Composer struct {
	opts Options

	mu       sync.Mutex
	state    State
	timeline engine.Timeline
	window   engine.LiveWindow
	builds   uint64

	videoTrack    engine.Track
	templateTrack engine.Track
	audioTrack    engine.Track

	// 模型 ID 到引擎句柄的映射，引擎对象本身不携带模型 ID
	// 视频片段按素材 UUID 归组，按切片顺序排列，不依赖切片 ID
	clipSegments map[string][]engine.Clip
	audioClips   map[string]engine.Clip
	captions     map[string]engine.Caption
	stickers     map[string]engine.Sticker
}

func NewComposer(opts Options) (*Composer, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	opts.setDefaults()
	c := &Composer{opts: opts}
	c.resetHandles()
	return c, nil
}

func (c *Composer) resetHandles() {
	c.clipSegments = make(map[string][]engine.Clip)
	c.audioClips = make(map[string]engine.Clip)
	c.captions = make(map[string]engine.Caption)
	c.stickers = make(map[string]engine.Sticker)
}

// Init creates the engine timeline and connects the live window. A timeline
// the engine refuses to create is logged and leaves the composer
// Uninitialized; later operations then report ErrEngineUnavailable.
func (c *Composer) Init(ctx context.Context) error {
	if err := c.opts.Ready.Wait(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateDestroyed {
		return ErrDestroyed
	}
	if c.timeline != nil {
		return nil
	}

	tl := c.opts.Engine.CreateTimeline(
		engine.VideoResolution{Width: c.opts.Width, Height: c.opts.Height},
		engine.Rational{Num: c.opts.FPS, Den: 1},
		engine.AudioResolution{SampleRate: c.opts.AudioSampleRate, Channels: c.opts.AudioChannels},
	)
	if tl == nil {
		logger.Error("创建时间线失败",
			logger.Int("width", c.opts.Width),
			logger.Int("height", c.opts.Height),
			logger.Int("fps", c.opts.FPS))
		return nil
	}
	c.timeline = tl
	c.state = StateEngineReady
	c.connectLiveWindow()

	logger.Info("时间线已创建",
		logger.Int("width", c.opts.Width),
		logger.Int("height", c.opts.Height))
	return nil
}

func (c *Composer) connectLiveWindow() {
	if c.opts.CanvasID == "" {
		return
	}
	if c.window != nil {
		c.opts.Engine.RemoveLiveWindow(c.window)
		c.window = nil
	}
	w := c.opts.Engine.CreateLiveWindow(c.opts.CanvasID)
	if w == nil {
		logger.Warn("创建预览窗口失败", logger.String("canvas", c.opts.CanvasID))
		return
	}
	w.SetFillMode(engine.FillPreserveAspectFit)
	if !c.opts.Engine.ConnectTimelineWithLiveWindow(c.timeline, w) {
		logger.Warn("连接预览窗口失败", logger.String("canvas", c.opts.CanvasID))
	}
	c.window = w
}

// usable must be called with c.mu held.
func (c *Composer) usable() error {
	if c.state == StateDestroyed {
		return ErrDestroyed
	}
	if c.timeline == nil {
		logger.Warn("引擎时间线不可用")
		return ErrEngineUnavailable
	}
	return nil
}

// Ready reports whether Init produced an engine timeline.
func (c *Composer) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timeline != nil && c.state != StateDestroyed
}

func (c *Composer) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateComposed {
		return c.state
	}
	switch c.opts.Engine.StreamingEngineState() {
	case engine.StatePlayback:
		return StatePlaying
	case engine.StateSeeking:
		return StateSeeking
	}
	return c.state
}

// Timeline returns the engine timeline, nil before a successful Init.
func (c *Composer) Timeline() engine.Timeline {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timeline
}

// Destroy stops playback, detaches the live window and releases the engine
// timeline. Resolutions still in flight finish on their own; their results
// are dropped.
func (c *Composer) Destroy() {
	c.mu.Lock()
	if c.state == StateDestroyed {
		c.mu.Unlock()
		return
	}
	if c.timeline != nil && c.opts.Engine.StreamingEngineState() == engine.StatePlayback {
		c.opts.Engine.Stop()
	}
	if c.window != nil {
		c.opts.Engine.RemoveLiveWindow(c.window)
		c.window = nil
	}
	if c.timeline != nil {
		c.opts.Engine.RemoveTimeline(c.timeline)
		c.timeline = nil
	}
	c.videoTrack, c.templateTrack, c.audioTrack = nil, nil, nil
	c.resetHandles()
	c.state = StateDestroyed
	c.mu.Unlock()

	logger.Info("时间线已销毁")
	c.emit(Event{Type: EventDestroyed})
}

func (c *Composer) emit(ev Event) {
	if c.opts.Notify == nil {
		return
	}
	ev.At = time.Now()
	c.opts.Notify(ev)
}
