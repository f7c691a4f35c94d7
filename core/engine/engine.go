// Package engine describes the rendering engine capability surface consumed by
// the asset resolver and the timeline composer. The native engine owns every
// object handed out here; callers keep handles only to route later calls.
package engine

import (
	"context"
	"image"
)

// Rational is a frame rate or aspect ratio.
type Rational struct {
	Num int
	Den int
}

type VideoResolution struct {
	Width  int
	Height int
}

type AudioResolution struct {
	SampleRate int
	Channels   int
}

// PointF is a point in caption/sticker space.
type PointF struct {
	X float64
	Y float64
}

// RectF uses engine coordinates: top is greater than bottom.
type RectF struct {
	Left   float64
	Top    float64
	Right  float64
	Bottom float64
}

// Color channels are normalised to [0,1].
type Color struct {
	R float64
	G float64
	B float64
	A float64
}

type State int

const (
	StateStopped State = iota
	StatePlayback
	StateSeeking
	StateCompile
)

func (s State) String() string {
	switch s {
	case StatePlayback:
		return "playback"
	case StateSeeking:
		return "seeking"
	case StateCompile:
		return "compile"
	default:
		return "stopped"
	}
}

// PackageType is the engine's asset package category.
type PackageType int

const (
	PackageVideoFx PackageType = iota
	PackageVideoTransition
	PackageCaptionStyle
	PackageAnimatedSticker
	PackageCompoundCaption
	PackageARScene
	PackageGeneric
)

type PackageStatus int

const (
	PackageNotInstalled PackageStatus = iota
	PackageInstalling
	PackageReady
	PackageUpgrading
)

// InstallEvent is emitted once per finished install. Code 0 means success.
type InstallEvent struct {
	ID   string
	Path string
	Type PackageType
	Code int
}

// Text alignment values.
const (
	AlignLeft   = 0
	AlignCenter = 1
	AlignRight  = 2
)

// Seek flags.
const (
	SeekShowCaptionPoster         = 2
	SeekShowAnimatedStickerPoster = 4
)

// Fill modes for a live window.
const (
	FillPreserveAspectCrop = 0
	FillPreserveAspectFit  = 1
	FillStretch            = 2
)

// StreamingContext is the engine root object.
type StreamingContext interface {
	CreateTimeline(video VideoResolution, fps Rational, audio AudioResolution) Timeline
	RemoveTimeline(tl Timeline) bool
	// ReadyForTimelineModification blocks until the engine is not mid-frame.
	ReadyForTimelineModification(ctx context.Context) error

	CreateLiveWindow(canvasID string) LiveWindow
	RemoveLiveWindow(w LiveWindow)
	ConnectTimelineWithLiveWindow(tl Timeline, w LiveWindow) bool

	PlaybackTimeline(tl Timeline, start, end int64) bool
	SeekTimeline(tl Timeline, position int64, flags int) bool
	Stop()
	StreamingEngineState() State
	TimelineCurrentPosition(tl Timeline) int64

	// GrabImageFromTimeline is asynchronous; the frame arrives through the
	// image-grabbed listeners.
	GrabImageFromTimeline(tl Timeline, position int64) bool
	AddImageGrabbedListener(fn func(img image.Image)) (remove func())

	RegisterFontByFilePath(path string) string
	AssetPackageManager() PackageManager
}

// PackageManager installs asset packages. Completion is reported
// asynchronously, once per package ID, to every install listener.
type PackageManager interface {
	PackageStatus(id string, typ PackageType) PackageStatus
	InstallAssetPackage(path, licensePath string, typ PackageType) error
	AddInstallListener(fn func(ev InstallEvent)) (remove func())
}

type LiveWindow interface {
	SetFillMode(mode int)
}

type Timeline interface {
	Duration() int64

	AppendVideoTrack() Track
	AppendAudioTrack() Track
	VideoTrackCount() int
	AudioTrackCount() int
	RemoveVideoTrack(index int) bool
	RemoveAudioTrack(index int) bool

	AddCaption(text string, inPoint, duration int64, styleDesc string) Caption
	FirstCaption() Caption
	// RemoveCaption returns the caption following the removed one, or nil.
	RemoveCaption(c Caption) Caption

	AddAnimatedSticker(inPoint, duration int64, packageID string) Sticker
	FirstAnimatedSticker() Sticker
	RemoveAnimatedSticker(s Sticker) Sticker
}

type Track interface {
	Index() int
	ClipCount() int
	// AddClip places a clip at inPoint on the track timeline.
	AddClip(path string, inPoint, trimIn, trimOut int64) Clip
	// InsertClip inserts before the clip currently at index, shifting later clips.
	InsertClip(path string, trimIn, trimOut int64, index int) Clip
	RemoveClip(index int, keepSpace bool) bool
	ClipByIndex(index int) Clip
}

type Clip interface {
	// Index is the live position on the owning track, -1 once removed.
	Index() int
	InPoint() int64
	OutPoint() int64
	TrimIn() int64
	TrimOut() int64
	FilePath() string

	AppendBuiltinFx(name string) Fx
	AppendPackagedFx(packageID string) Fx
	FxCount() int

	SetImageMotionAnimationEnabled(enabled bool)
	SetImageMotionMode(mode int)
}

type Fx interface {
	Name() string
	SetStringVal(key, v string)
	SetFloatVal(key string, v float64)
	SetBooleanVal(key string, v bool)
	SetIntVal(key string, v int)
	SetColorVal(key string, c Color)

	SetFilterIntensity(v float64)
	SetRegional(v bool)
	SetIgnoreBackground(v bool)
	SetInverseRegion(v bool)
	SetRegionalFeatherWidth(v float64)
	// SetRegion takes x,y pairs.
	SetRegion(points []float64)
}

type Caption interface {
	Text() string
	InPoint() int64
	SetScaleX(v float64)
	SetScaleY(v float64)
	SetRotationZ(v float64)
	SetCaptionTranslation(p PointF)
	SetTextColor(c Color)
	SetTextAlignment(a int)
	SetTextFrameOriginRect(r RectF)
	SetFrameCaptionMaxFontSize(v float64)
	SetFontSize(v float64)
	SetFontFamily(family string)
	SetZValue(v float64)
}

type Sticker interface {
	PackageID() string
	SetScale(v float64)
	SetRotationZ(v float64)
	SetTranslation(p PointF)
	SetHorizontalFlip(v bool)
	SetVerticalFlip(v bool)
	SetZValue(v float64)
}
