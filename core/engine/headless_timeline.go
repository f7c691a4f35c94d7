package engine

import "sort"

// HeadlessTimeline is the in-memory Timeline.
type HeadlessTimeline struct {
	id      string
	video   VideoResolution
	fps     Rational
	audio   AudioResolution
	removed bool

	videoTracks []*HeadlessTrack
	audioTracks []*HeadlessTrack
	captions    []*HeadlessCaption
	stickers    []*HeadlessSticker

	rejectCaption func(string) bool
	rejectSticker func(string) bool
}

func (t *HeadlessTimeline) ID() string { return t.id }

func (t *HeadlessTimeline) Resolution() VideoResolution { return t.video }

func (t *HeadlessTimeline) Duration() int64 {
	var d int64
	for _, tracks := range [][]*HeadlessTrack{t.videoTracks, t.audioTracks} {
		for _, tr := range tracks {
			if n := len(tr.clips); n > 0 {
				if out := tr.clips[n-1].OutPoint(); out > d {
					d = out
				}
			}
		}
	}
	return d
}

func (t *HeadlessTimeline) AppendVideoTrack() Track {
	tr := &HeadlessTrack{tl: t, video: true}
	t.videoTracks = append(t.videoTracks, tr)
	return tr
}

func (t *HeadlessTimeline) AppendAudioTrack() Track {
	tr := &HeadlessTrack{tl: t}
	t.audioTracks = append(t.audioTracks, tr)
	return tr
}

func (t *HeadlessTimeline) VideoTrackCount() int { return len(t.videoTracks) }

func (t *HeadlessTimeline) AudioTrackCount() int { return len(t.audioTracks) }

func (t *HeadlessTimeline) RemoveVideoTrack(index int) bool {
	var ok bool
	t.videoTracks, ok = removeTrack(t.videoTracks, index)
	return ok
}

func (t *HeadlessTimeline) RemoveAudioTrack(index int) bool {
	var ok bool
	t.audioTracks, ok = removeTrack(t.audioTracks, index)
	return ok
}

func removeTrack(tracks []*HeadlessTrack, index int) ([]*HeadlessTrack, bool) {
	if index < 0 || index >= len(tracks) {
		return tracks, false
	}
	tr := tracks[index]
	tr.removed = true
	for _, c := range tr.clips {
		c.removed = true
	}
	return append(tracks[:index], tracks[index+1:]...), true
}

func (t *HeadlessTimeline) AddCaption(text string, inPoint, duration int64, styleDesc string) Caption {
	if duration <= 0 || (t.rejectCaption != nil && t.rejectCaption(text)) {
		return nil
	}
	c := &HeadlessCaption{text: text, inPoint: inPoint, duration: duration, style: styleDesc}
	t.captions = append(t.captions, c)
	sort.SliceStable(t.captions, func(i, j int) bool { return t.captions[i].inPoint < t.captions[j].inPoint })
	return c
}

func (t *HeadlessTimeline) FirstCaption() Caption {
	if len(t.captions) == 0 {
		return nil
	}
	return t.captions[0]
}

func (t *HeadlessTimeline) RemoveCaption(c Caption) Caption {
	hc, ok := c.(*HeadlessCaption)
	if !ok {
		return nil
	}
	for i, existing := range t.captions {
		if existing != hc {
			continue
		}
		t.captions = append(t.captions[:i], t.captions[i+1:]...)
		if i < len(t.captions) {
			return t.captions[i]
		}
		return nil
	}
	return nil
}

func (t *HeadlessTimeline) AddAnimatedSticker(inPoint, duration int64, packageID string) Sticker {
	if packageID == "" || duration <= 0 || (t.rejectSticker != nil && t.rejectSticker(packageID)) {
		return nil
	}
	s := &HeadlessSticker{packageID: packageID, inPoint: inPoint, duration: duration}
	t.stickers = append(t.stickers, s)
	sort.SliceStable(t.stickers, func(i, j int) bool { return t.stickers[i].inPoint < t.stickers[j].inPoint })
	return s
}

func (t *HeadlessTimeline) FirstAnimatedSticker() Sticker {
	if len(t.stickers) == 0 {
		return nil
	}
	return t.stickers[0]
}

func (t *HeadlessTimeline) RemoveAnimatedSticker(s Sticker) Sticker {
	hs, ok := s.(*HeadlessSticker)
	if !ok {
		return nil
	}
	for i, existing := range t.stickers {
		if existing != hs {
			continue
		}
		t.stickers = append(t.stickers[:i], t.stickers[i+1:]...)
		if i < len(t.stickers) {
			return t.stickers[i]
		}
		return nil
	}
	return nil
}

// VideoTracks returns the concrete video tracks for inspection.
func (t *HeadlessTimeline) VideoTracks() []*HeadlessTrack { return t.videoTracks }

func (t *HeadlessTimeline) AudioTracks() []*HeadlessTrack { return t.audioTracks }

func (t *HeadlessTimeline) Captions() []*HeadlessCaption { return t.captions }

func (t *HeadlessTimeline) Stickers() []*HeadlessSticker { return t.stickers }

// HeadlessTrack keeps clips ordered by in point.
type HeadlessTrack struct {
	tl      *HeadlessTimeline
	video   bool
	removed bool
	clips   []*HeadlessClip
}

func (tr *HeadlessTrack) Index() int {
	tracks := tr.tl.audioTracks
	if tr.video {
		tracks = tr.tl.videoTracks
	}
	for i, existing := range tracks {
		if existing == tr {
			return i
		}
	}
	return -1
}

func (tr *HeadlessTrack) ClipCount() int { return len(tr.clips) }

func (tr *HeadlessTrack) AddClip(path string, inPoint, trimIn, trimOut int64) Clip {
	if tr.removed || path == "" || trimOut < trimIn || inPoint < 0 {
		return nil
	}
	c := &HeadlessClip{track: tr, path: path, inPoint: inPoint, trimIn: trimIn, trimOut: trimOut}
	pos := sort.Search(len(tr.clips), func(i int) bool { return tr.clips[i].inPoint > inPoint })
	tr.clips = append(tr.clips, nil)
	copy(tr.clips[pos+1:], tr.clips[pos:])
	tr.clips[pos] = c
	return c
}

func (tr *HeadlessTrack) InsertClip(path string, trimIn, trimOut int64, index int) Clip {
	if tr.removed || path == "" || trimOut < trimIn || index < 0 || index > len(tr.clips) {
		return nil
	}
	var inPoint int64
	switch {
	case index < len(tr.clips):
		inPoint = tr.clips[index].inPoint
	case len(tr.clips) > 0:
		inPoint = tr.clips[len(tr.clips)-1].OutPoint()
	}
	dur := trimOut - trimIn
	for _, later := range tr.clips[index:] {
		later.inPoint += dur
	}
	c := &HeadlessClip{track: tr, path: path, inPoint: inPoint, trimIn: trimIn, trimOut: trimOut}
	tr.clips = append(tr.clips, nil)
	copy(tr.clips[index+1:], tr.clips[index:])
	tr.clips[index] = c
	return c
}

// RemoveClip without keepSpace ripples later clips left.
func (tr *HeadlessTrack) RemoveClip(index int, keepSpace bool) bool {
	if index < 0 || index >= len(tr.clips) {
		return false
	}
	c := tr.clips[index]
	c.removed = true
	tr.clips = append(tr.clips[:index], tr.clips[index+1:]...)
	if !keepSpace {
		dur := c.OutPoint() - c.inPoint
		for _, later := range tr.clips[index:] {
			later.inPoint -= dur
		}
	}
	return true
}

func (tr *HeadlessTrack) ClipByIndex(index int) Clip {
	if index < 0 || index >= len(tr.clips) {
		return nil
	}
	return tr.clips[index]
}

// Clips returns the concrete clips in timeline order.
func (tr *HeadlessTrack) Clips() []*HeadlessClip { return tr.clips }

type HeadlessClip struct {
	track   *HeadlessTrack
	removed bool

	path    string
	inPoint int64
	trimIn  int64
	trimOut int64

	fxs           []*HeadlessFx
	motionEnabled *bool
	motionMode    *int
}

func (c *HeadlessClip) Index() int {
	if c.removed {
		return -1
	}
	for i, existing := range c.track.clips {
		if existing == c {
			return i
		}
	}
	return -1
}

func (c *HeadlessClip) InPoint() int64 { return c.inPoint }

func (c *HeadlessClip) OutPoint() int64 { return c.inPoint + c.trimOut - c.trimIn }

func (c *HeadlessClip) TrimIn() int64 { return c.trimIn }

func (c *HeadlessClip) TrimOut() int64 { return c.trimOut }

func (c *HeadlessClip) FilePath() string { return c.path }

func (c *HeadlessClip) AppendBuiltinFx(name string) Fx {
	if name == "" {
		return nil
	}
	fx := newHeadlessFx(name, false)
	c.fxs = append(c.fxs, fx)
	return fx
}

func (c *HeadlessClip) AppendPackagedFx(packageID string) Fx {
	if packageID == "" {
		return nil
	}
	fx := newHeadlessFx(packageID, true)
	c.fxs = append(c.fxs, fx)
	return fx
}

func (c *HeadlessClip) FxCount() int { return len(c.fxs) }

func (c *HeadlessClip) SetImageMotionAnimationEnabled(enabled bool) {
	c.motionEnabled = &enabled
}

func (c *HeadlessClip) SetImageMotionMode(mode int) {
	c.motionMode = &mode
}

func (c *HeadlessClip) Fxs() []*HeadlessFx { return c.fxs }

// MotionEnabled is nil when never set.
func (c *HeadlessClip) MotionEnabled() *bool { return c.motionEnabled }

func (c *HeadlessClip) MotionMode() *int { return c.motionMode }

type HeadlessFx struct {
	name     string
	packaged bool

	Params           map[string]interface{}
	Intensity        float64
	Regional         bool
	IgnoreBackground bool
	InverseRegion    bool
	FeatherWidth     float64
	Region           []float64
}

func newHeadlessFx(name string, packaged bool) *HeadlessFx {
	return &HeadlessFx{name: name, packaged: packaged, Params: make(map[string]interface{}), Intensity: 1}
}

func (f *HeadlessFx) Name() string { return f.name }

func (f *HeadlessFx) Packaged() bool { return f.packaged }

func (f *HeadlessFx) SetStringVal(key, v string)        { f.Params[key] = v }
func (f *HeadlessFx) SetFloatVal(key string, v float64) { f.Params[key] = v }
func (f *HeadlessFx) SetBooleanVal(key string, v bool)  { f.Params[key] = v }
func (f *HeadlessFx) SetIntVal(key string, v int)       { f.Params[key] = v }
func (f *HeadlessFx) SetColorVal(key string, c Color)   { f.Params[key] = c }
func (f *HeadlessFx) SetFilterIntensity(v float64)      { f.Intensity = v }
func (f *HeadlessFx) SetRegional(v bool)                { f.Regional = v }
func (f *HeadlessFx) SetIgnoreBackground(v bool)        { f.IgnoreBackground = v }
func (f *HeadlessFx) SetInverseRegion(v bool)           { f.InverseRegion = v }
func (f *HeadlessFx) SetRegionalFeatherWidth(v float64) { f.FeatherWidth = v }
func (f *HeadlessFx) SetRegion(points []float64)        { f.Region = append([]float64(nil), points...) }

// HeadlessCaption records every setter; pointer fields stay nil until set.
type HeadlessCaption struct {
	text     string
	inPoint  int64
	duration int64
	style    string

	ScaleX      *float64
	ScaleY      *float64
	Rotation    *float64
	Translation *PointF
	Color       *Color
	Alignment   *int
	FrameRect   *RectF
	MaxFontSize *float64
	FontSize    *float64
	FontFamily  string
	Z           *float64
}

func (c *HeadlessCaption) Text() string      { return c.text }
func (c *HeadlessCaption) InPoint() int64    { return c.inPoint }
func (c *HeadlessCaption) Duration() int64   { return c.duration }
func (c *HeadlessCaption) StyleDesc() string { return c.style }

func (c *HeadlessCaption) SetScaleX(v float64)                  { c.ScaleX = &v }
func (c *HeadlessCaption) SetScaleY(v float64)                  { c.ScaleY = &v }
func (c *HeadlessCaption) SetRotationZ(v float64)               { c.Rotation = &v }
func (c *HeadlessCaption) SetCaptionTranslation(p PointF)       { c.Translation = &p }
func (c *HeadlessCaption) SetTextColor(col Color)               { c.Color = &col }
func (c *HeadlessCaption) SetTextAlignment(a int)               { c.Alignment = &a }
func (c *HeadlessCaption) SetTextFrameOriginRect(r RectF)       { c.FrameRect = &r }
func (c *HeadlessCaption) SetFrameCaptionMaxFontSize(v float64) { c.MaxFontSize = &v }
func (c *HeadlessCaption) SetFontSize(v float64)                { c.FontSize = &v }
func (c *HeadlessCaption) SetFontFamily(family string)          { c.FontFamily = family }
func (c *HeadlessCaption) SetZValue(v float64)                  { c.Z = &v }

type HeadlessSticker struct {
	packageID string
	inPoint   int64
	duration  int64

	Scale          *float64
	Rotation       *float64
	Translation    *PointF
	HorizontalFlip *bool
	VerticalFlip   *bool
	Z              *float64
}

func (s *HeadlessSticker) PackageID() string { return s.packageID }
func (s *HeadlessSticker) InPoint() int64    { return s.inPoint }
func (s *HeadlessSticker) Duration() int64   { return s.duration }

func (s *HeadlessSticker) SetScale(v float64)       { s.Scale = &v }
func (s *HeadlessSticker) SetRotationZ(v float64)   { s.Rotation = &v }
func (s *HeadlessSticker) SetTranslation(p PointF)  { s.Translation = &p }
func (s *HeadlessSticker) SetHorizontalFlip(v bool) { s.HorizontalFlip = &v }
func (s *HeadlessSticker) SetVerticalFlip(v bool)   { s.VerticalFlip = &v }
func (s *HeadlessSticker) SetZValue(v float64)      { s.Z = &v }

// Layout is a plain dump of a headless timeline.
type Layout struct {
	Duration int64           `json:"duration" yaml:"duration"`
	Video    [][]ClipLayout  `json:"video" yaml:"video"`
	Audio    [][]ClipLayout  `json:"audio" yaml:"audio"`
	Captions []CaptionLayout `json:"captions,omitempty" yaml:"captions,omitempty"`
	Stickers []StickerLayout `json:"stickers,omitempty" yaml:"stickers,omitempty"`
}

type ClipLayout struct {
	Path     string   `json:"path" yaml:"path"`
	InPoint  int64    `json:"inPoint" yaml:"inPoint"`
	OutPoint int64    `json:"outPoint" yaml:"outPoint"`
	TrimIn   int64    `json:"trimIn" yaml:"trimIn"`
	TrimOut  int64    `json:"trimOut" yaml:"trimOut"`
	Fx       []string `json:"fx,omitempty" yaml:"fx,omitempty"`
}

type CaptionLayout struct {
	Text     string `json:"text" yaml:"text"`
	InPoint  int64  `json:"inPoint" yaml:"inPoint"`
	Duration int64  `json:"duration" yaml:"duration"`
	Style    string `json:"style,omitempty" yaml:"style,omitempty"`
}

type StickerLayout struct {
	PackageID string `json:"packageId" yaml:"packageId"`
	InPoint   int64  `json:"inPoint" yaml:"inPoint"`
	Duration  int64  `json:"duration" yaml:"duration"`
}

func (t *HeadlessTimeline) Layout() Layout {
	l := Layout{Duration: t.Duration()}
	for _, tr := range t.videoTracks {
		l.Video = append(l.Video, tr.layout())
	}
	for _, tr := range t.audioTracks {
		l.Audio = append(l.Audio, tr.layout())
	}
	for _, c := range t.captions {
		l.Captions = append(l.Captions, CaptionLayout{Text: c.text, InPoint: c.inPoint, Duration: c.duration, Style: c.style})
	}
	for _, s := range t.stickers {
		l.Stickers = append(l.Stickers, StickerLayout{PackageID: s.packageID, InPoint: s.inPoint, Duration: s.duration})
	}
	return l
}

func (tr *HeadlessTrack) layout() []ClipLayout {
	out := make([]ClipLayout, 0, len(tr.clips))
	for _, c := range tr.clips {
		cl := ClipLayout{Path: c.path, InPoint: c.inPoint, OutPoint: c.OutPoint(), TrimIn: c.trimIn, TrimOut: c.trimOut}
		for _, fx := range c.fxs {
			cl.Fx = append(cl.Fx, fx.name)
		}
		out = append(out, cl)
	}
	return out
}
