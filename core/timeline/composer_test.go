package timeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ClipForge/core/engine"
	"ClipForge/core/project"
	"ClipForge/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubResolver struct {
	mu     sync.Mutex
	values map[string]string
	errs   map[string]error
	calls  map[string]int
	gate   chan struct{}
}

func newStubResolver() *stubResolver {
	return &stubResolver{values: map[string]string{}, errs: map[string]error{}, calls: map[string]int{}}
}

func (r *stubResolver) Resolve(ctx context.Context, ref model.AssetRef) (string, error) {
	if r.gate != nil {
		select {
		case <-r.gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[ref.URL]++
	if err := r.errs[ref.URL]; err != nil {
		return "", err
	}
	if v, ok := r.values[ref.URL]; ok {
		return v, nil
	}
	return "/assets/" + ref.FileName(), nil
}

func f64(v float64) *float64 { return &v }

func str(v string) *string { return &v }

func seg(id string, in, out int64, fxs ...model.Effect) model.SplitSegment {
	return model.SplitSegment{ID: id, CaptureIn: in, CaptureOut: out, VideoFxs: fxs}
}

func videoClip(id string, inPoint int64, segs ...model.SplitSegment) model.VideoClip {
	return model.VideoClip{UUID: id, M3U8Path: "/media/" + id + ".m3u8", InPoint: inPoint, VideoType: model.ClipVideo, SplitList: segs}
}

type fixture struct {
	h        *engine.Headless
	source   *project.StaticSource
	resolver *stubResolver
	c        *Composer
	events   chan Event
}

func newFixture(t *testing.T, snap *model.Snapshot, hopts engine.HeadlessOptions) *fixture {
	t.Helper()
	f := &fixture{
		h:        engine.NewHeadless(hopts),
		source:   project.NewStaticSource(snap),
		resolver: newStubResolver(),
		events:   make(chan Event, 16),
	}
	c, err := NewComposer(Options{
		Engine:           f.h,
		Source:           f.source,
		Resolver:         f.resolver,
		Width:            1080,
		Height:           1920,
		CanvasID:         "preview",
		FrameGrabTimeout: 50 * time.Millisecond,
		Notify:           func(ev Event) { f.events <- ev },
	})
	require.NoError(t, err)
	require.NoError(t, c.Init(context.Background()))
	f.c = c
	return f
}

func (f *fixture) timeline(t *testing.T) *engine.HeadlessTimeline {
	t.Helper()
	tl, ok := f.c.Timeline().(*engine.HeadlessTimeline)
	require.True(t, ok)
	return tl
}

func TestAssignScenes(t *testing.T) {
	intro := model.Scene{Name: "intro", Temporal: model.TemporalIntro}
	end := model.Scene{Name: "end", Temporal: model.TemporalEnd}
	b0 := model.Scene{Name: "b0"}
	b1 := model.Scene{Name: "b1"}

	clips := []model.VideoClip{
		videoClip("a", 0, seg("a0", 0, 1), seg("a1", 1, 2)),
		videoClip("b", 2, seg("b0", 0, 1), seg("b1", 1, 2), seg("b2", 2, 3)),
	}

	tests := []struct {
		name   string
		scenes []model.Scene
		want   []string
	}{
		{"intro and end", []model.Scene{intro, b0, b1, end}, []string{"intro", "b0", "b1", "b1", "end"}},
		{"no intro", []model.Scene{b0, b1, end}, []string{"b0", "b1", "b1", "b1", "end"}},
		{"no end", []model.Scene{intro, b0, b1}, []string{"intro", "b0", "b1", "b1", "b1"}},
		{"body only", []model.Scene{b0}, []string{"b0", "b0", "b0", "b0", "b0"}},
		{"no body", []model.Scene{intro, end}, []string{"intro", "", "", "", "end"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AssignScenes(clips, &model.Template{Scenes: tt.scenes})
			require.Len(t, got, len(tt.want))
			for i, s := range got {
				name := ""
				if s != nil {
					name = s.Name
				}
				assert.Equal(t, tt.want[i], name, "segment %d", i)
			}
		})
	}

	assert.Nil(t, AssignScenes(clips, nil))
}

func TestAssignScenesSingleSegmentPrefersIntro(t *testing.T) {
	clips := []model.VideoClip{videoClip("a", 0, seg("a0", 0, 1))}
	tpl := &model.Template{Scenes: []model.Scene{
		{Name: "end", Temporal: model.TemporalEnd},
		{Name: "intro", Temporal: model.TemporalIntro},
	}}
	got := AssignScenes(clips, tpl)
	require.Len(t, got, 1)
	assert.Equal(t, "intro", got[0].Name)
}

func TestBuildPlacesSegmentsFromClipInPoint(t *testing.T) {
	snap := &model.Snapshot{VideoClips: []model.VideoClip{
		videoClip("a", 10, seg("s1", 0, 5), seg("s2", 5, 12)),
	}}
	f := newFixture(t, snap, engine.HeadlessOptions{})
	require.NoError(t, f.c.BuildTimeline(context.Background(), nil))

	layout := f.timeline(t).Layout()
	require.Len(t, layout.Video, 2)
	require.Len(t, layout.Video[0], 2)
	assert.Equal(t, int64(10), layout.Video[0][0].InPoint)
	assert.Equal(t, int64(15), layout.Video[0][1].InPoint)
	assert.Equal(t, int64(5), layout.Video[0][1].TrimIn)
	assert.Equal(t, int64(22), layout.Duration)
	assert.Equal(t, StateComposed, f.c.State())

	select {
	case ev := <-f.events:
		assert.Equal(t, EventBuilt, ev.Type)
		assert.Equal(t, int64(22), ev.Duration)
	case <-time.After(time.Second):
		t.Fatal("no build event")
	}
}

func TestBuildClearsPreviousContent(t *testing.T) {
	snap := &model.Snapshot{
		VideoClips: []model.VideoClip{videoClip("a", 0, seg("s1", 0, 5))},
		AudioClips: []model.AudioClip{{ID: "m", M3U8Path: "/media/m.m3u8", InPoint: 0, OrgDuration: 30}},
		Captions:   []model.Caption{{ID: "c1", Text: "hi", Duration: 5}},
		Stickers:   []model.Sticker{{ID: "s1", Desc: "PKG", Duration: 5}},
	}
	f := newFixture(t, snap, engine.HeadlessOptions{})
	ctx := context.Background()
	require.NoError(t, f.c.BuildTimeline(ctx, nil))
	require.NoError(t, f.c.BuildTimeline(ctx, nil))

	tl := f.timeline(t)
	assert.Len(t, tl.VideoTracks(), 2)
	assert.Len(t, tl.AudioTracks(), 1)
	assert.Len(t, tl.Captions(), 1)
	assert.Len(t, tl.Stickers(), 1)
	assert.Equal(t, int64(30), tl.AudioTracks()[0].Clips()[0].TrimOut())
	assert.Equal(t, 2, f.h.ReadyCalls())
}

func TestBuildWithOverrideClips(t *testing.T) {
	snap := &model.Snapshot{VideoClips: []model.VideoClip{videoClip("a", 0, seg("s1", 0, 5))}}
	f := newFixture(t, snap, engine.HeadlessOptions{})

	override := []model.VideoClip{videoClip("b", 0, seg("s2", 0, 7), seg("s3", 7, 9))}
	require.NoError(t, f.c.BuildTimeline(context.Background(), override))
	assert.Equal(t, int64(9), f.c.Duration())
	assert.Len(t, f.timeline(t).VideoTracks()[0].Clips(), 2)
}

func TestAfreshMatchesFullBuild(t *testing.T) {
	blur := model.Effect{Type: model.FxBuiltin, Desc: "Gaussian Blur", Params: []model.FxParam{{Type: model.ParamFloat, Key: "Radius", Value: 3.0}}}
	image := model.VideoClip{UUID: "img", M3U8Path: "/media/img.m3u8", InPoint: 20, VideoType: model.ClipImage, SplitList: []model.SplitSegment{seg("i0", 0, 10)}}
	before := &model.Snapshot{VideoClips: []model.VideoClip{
		videoClip("a", 0, seg("a0", 0, 10, blur), seg("a1", 10, 20)),
		image,
		videoClip("c", 30, seg("c0", 0, 5)),
	}}
	f := newFixture(t, before, engine.HeadlessOptions{})
	ctx := context.Background()
	require.NoError(t, f.c.BuildTimeline(ctx, nil))

	// re-trim the image clip without changing its length
	after := *before
	after.VideoClips = append([]model.VideoClip(nil), before.VideoClips...)
	retrimmed := image
	retrimmed.Motion = true
	retrimmed.SplitList = []model.SplitSegment{seg("i0", 2, 6, blur), seg("i1", 6, 12)}
	after.VideoClips[1] = retrimmed
	f.source.Set(&after)

	require.NoError(t, f.c.AfreshVideoClip(ctx, "img"))

	fresh := newFixture(t, &after, engine.HeadlessOptions{})
	require.NoError(t, fresh.c.BuildTimeline(ctx, nil))

	got := f.timeline(t)
	want := fresh.timeline(t)
	assert.Equal(t, want.Layout().Video[0], got.Layout().Video[0])

	gotClips := got.VideoTracks()[0].Clips()
	wantClips := want.VideoTracks()[0].Clips()
	require.Len(t, gotClips, len(wantClips))
	for i := range wantClips {
		assert.Equal(t, wantClips[i].MotionEnabled(), gotClips[i].MotionEnabled(), "clip %d", i)
		assert.Equal(t, wantClips[i].MotionMode(), gotClips[i].MotionMode(), "clip %d", i)
	}
}

func TestAfreshUnknownClip(t *testing.T) {
	snap := &model.Snapshot{VideoClips: []model.VideoClip{videoClip("a", 0, seg("s1", 0, 5))}}
	f := newFixture(t, snap, engine.HeadlessOptions{})
	require.NoError(t, f.c.BuildTimeline(context.Background(), nil))

	assert.ErrorIs(t, f.c.AfreshVideoClip(context.Background(), "missing"), ErrClipNotFound)

	snap.VideoClips = append(snap.VideoClips, videoClip("late", 5, seg("l1", 0, 5)))
	f.source.Set(snap)
	assert.ErrorIs(t, f.c.AfreshVideoClip(context.Background(), "late"), ErrClipNotFound)
}

func TestAfreshWithoutSegmentIDs(t *testing.T) {
	snap := &model.Snapshot{VideoClips: []model.VideoClip{
		videoClip("a", 0, seg("", 0, 5), seg("", 5, 12)),
		videoClip("b", 12, seg("", 0, 4)),
	}}
	f := newFixture(t, snap, engine.HeadlessOptions{})
	ctx := context.Background()
	require.NoError(t, f.c.BuildTimeline(ctx, nil))

	require.NoError(t, f.c.AfreshVideoClip(ctx, "a"))

	fresh := newFixture(t, snap, engine.HeadlessOptions{})
	require.NoError(t, fresh.c.BuildTimeline(ctx, nil))

	got := f.timeline(t).VideoTracks()[0].Clips()
	want := fresh.timeline(t).VideoTracks()[0].Clips()
	require.Len(t, got, 3)
	require.Len(t, want, 3)
	for i := range want {
		assert.Equal(t, want[i].FilePath(), got[i].FilePath(), "clip %d", i)
		assert.Equal(t, want[i].TrimIn(), got[i].TrimIn(), "clip %d", i)
		assert.Equal(t, want[i].TrimOut(), got[i].TrimOut(), "clip %d", i)
	}
	assert.Contains(t, got[2].FilePath(), "b.m3u8")

	// b 的句柄不受 a 重建影响
	require.NoError(t, f.c.AfreshVideoClip(ctx, "b"))
	assert.Len(t, f.timeline(t).VideoTracks()[0].Clips(), 3)
}

func TestBuildRejectsInvalidClipIDs(t *testing.T) {
	f := newFixture(t, &model.Snapshot{}, engine.HeadlessOptions{})
	ctx := context.Background()

	noID := []model.VideoClip{videoClip("", 0, seg("s", 0, 5))}
	assert.ErrorIs(t, f.c.BuildTimeline(ctx, noID), ErrInvalidClip)

	dup := []model.VideoClip{videoClip("a", 0, seg("s", 0, 5)), videoClip("a", 5, seg("t", 0, 5))}
	assert.ErrorIs(t, f.c.BuildTimeline(ctx, dup), ErrInvalidClip)
	assert.Equal(t, 0, f.h.ReadyCalls())
}

func TestRejectedCaptionDoesNotAbortBuild(t *testing.T) {
	snap := &model.Snapshot{
		VideoClips: []model.VideoClip{videoClip("a", 0, seg("s1", 0, 50))},
		Captions: []model.Caption{
			{ID: "1", Text: "first", Duration: 5},
			{ID: "2", Text: "bad", Duration: 5},
			{ID: "3", Text: "third", Duration: 5},
		},
		Stickers: []model.Sticker{{ID: "s", Desc: "BROKEN", Duration: 5}, {ID: "t", Desc: "OK", Duration: 5}},
	}
	f := newFixture(t, snap, engine.HeadlessOptions{
		RejectCaption: func(text string) bool { return text == "bad" },
		RejectSticker: func(id string) bool { return id == "BROKEN" },
	})
	require.NoError(t, f.c.BuildTimeline(context.Background(), nil))

	tl := f.timeline(t)
	require.Len(t, tl.Captions(), 2)
	assert.Equal(t, "first", tl.Captions()[0].Text())
	assert.Equal(t, "third", tl.Captions()[1].Text())
	require.Len(t, tl.Stickers(), 1)
	assert.Equal(t, "OK", tl.Stickers()[0].PackageID())
}

func TestMosaicUsesFixedRecipe(t *testing.T) {
	mosaic := model.Effect{Type: model.FxBuiltin, Desc: MosaicFx, Params: []model.FxParam{
		{Type: model.ParamFloat, Key: "Unit Size", Value: 0.5},
		{Type: model.ParamFloat, Key: "Intensity", Value: 0.2},
	}}
	snap := &model.Snapshot{VideoClips: []model.VideoClip{videoClip("a", 0, seg("s1", 0, 5, mosaic))}}
	f := newFixture(t, snap, engine.HeadlessOptions{})
	require.NoError(t, f.c.BuildTimeline(context.Background(), nil))

	fxs := f.timeline(t).VideoTracks()[0].Clips()[0].Fxs()
	require.Len(t, fxs, 1)
	fx := fxs[0]
	assert.Equal(t, map[string]interface{}{"Unit Size": 0.0}, fx.Params)
	assert.Equal(t, 1.0, fx.Intensity)
	assert.True(t, fx.Regional)
	assert.True(t, fx.IgnoreBackground)
	assert.False(t, fx.InverseRegion)
	assert.Equal(t, 0.0, fx.FeatherWidth)
	assert.Equal(t, []float64{-1, 1, -1, -1, 1, -1, 1, 1}, fx.Region)
}

func TestEffectParamsAreCoerced(t *testing.T) {
	fxDef := model.Effect{Type: model.FxBuiltin, Desc: "Color Property", Params: []model.FxParam{
		{Type: model.ParamFloat, Key: "Brightness", Value: "1.5"},
		{Type: model.ParamInt, Key: "Mode", Value: 2.0},
		{Type: model.ParamBool, Key: "Enabled", Value: "true"},
		{Type: model.ParamString, Key: "Name", Value: "warm"},
		{Type: model.ParamColor, Key: "Tint", Value: "#ff0000"},
		{Type: model.ParamFloat, Key: "Broken", Value: []int{1}},
	}}
	snap := &model.Snapshot{VideoClips: []model.VideoClip{videoClip("a", 0, seg("s1", 0, 5, fxDef))}}
	f := newFixture(t, snap, engine.HeadlessOptions{})
	require.NoError(t, f.c.BuildTimeline(context.Background(), nil))

	fx := f.timeline(t).VideoTracks()[0].Clips()[0].Fxs()[0]
	assert.Equal(t, 1.5, fx.Params["Brightness"])
	assert.Equal(t, 2, fx.Params["Mode"])
	assert.Equal(t, true, fx.Params["Enabled"])
	assert.Equal(t, "warm", fx.Params["Name"])
	assert.Equal(t, engine.Color{R: 1, A: 1}, fx.Params["Tint"])
	assert.NotContains(t, fx.Params, "Broken")
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in   string
		want engine.Color
	}{
		{"#fff", engine.Color{R: 1, G: 1, B: 1, A: 1}},
		{"#000000", engine.Color{A: 1}},
		{"#ff000080", engine.Color{R: 1, A: 128.0 / 255}},
		{"rgba(255, 0, 255, 0.5)", engine.Color{R: 1, B: 1, A: 0.5}},
		{"rgb(0,255,0)", engine.Color{G: 1, A: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseColor(tt.in)
			require.NoError(t, err)
			assert.InDelta(t, tt.want.R, got.R, 1e-9)
			assert.InDelta(t, tt.want.G, got.G, 1e-9)
			assert.InDelta(t, tt.want.B, got.B, 1e-9)
			assert.InDelta(t, tt.want.A, got.A, 1e-9)
		})
	}

	for _, bad := range []string{"", "#12", "red", "rgba(1,2)", "#zzzzzz"} {
		_, err := ParseColor(bad)
		assert.Error(t, err, bad)
	}
}

func TestCaptionStyling(t *testing.T) {
	snap := &model.Snapshot{
		VideoClips:       []model.VideoClip{videoClip("a", 0, seg("s1", 0, 50))},
		VideoFrameWidth:  1000,
		VideoFrameHeight: 2000,
		Captions: []model.Caption{{
			ID: "c", Text: "hello", InPoint: 3, Duration: 7,
			StyleURL:     "https://cdn.example.com/E6AD8162.2.captionstyle",
			FontURL:      "https://cdn.example.com/NotoSans.ttf",
			FontSize:     f64(48),
			Scale:        f64(1.5),
			Rotation:     f64(30),
			TranslationX: f64(10),
			TranslationY: f64(-20),
			Color:        "#00ff00",
			Align:        str("right"),
			FrameWidth:   "80%",
			FrameHeight:  "100",
			Z:            f64(3),
		}},
	}
	f := newFixture(t, snap, engine.HeadlessOptions{})
	f.resolver.values["https://cdn.example.com/NotoSans.ttf"] = "Noto Sans"
	require.NoError(t, f.c.BuildTimeline(context.Background(), nil))

	caps := f.timeline(t).Captions()
	require.Len(t, caps, 1)
	c := caps[0]
	assert.Equal(t, "E6AD8162", c.StyleDesc())
	assert.Equal(t, "Noto Sans", c.FontFamily)
	assert.Equal(t, 1.5, *c.ScaleX)
	assert.Equal(t, 1.5, *c.ScaleY)
	assert.Equal(t, 30.0, *c.Rotation)
	assert.Equal(t, engine.PointF{X: 10, Y: -20}, *c.Translation)
	assert.Equal(t, engine.AlignRight, *c.Alignment)
	assert.Equal(t, engine.RectF{Left: -400, Top: 50, Right: 400, Bottom: -50}, *c.FrameRect)
	assert.Equal(t, 48.0, *c.MaxFontSize)
	assert.Nil(t, c.FontSize)
	assert.Equal(t, 3.0, *c.Z)
	assert.InDelta(t, 1.0, c.Color.G, 1e-9)
}

func TestCosmeticAssetFailuresDegrade(t *testing.T) {
	pkgFx := model.Effect{Type: model.FxPackage, PackageURL: "https://cdn.example.com/AAAA.videofx"}
	okFx := model.Effect{Type: model.FxPackage, PackageURL: "https://cdn.example.com/BBBB.videofx"}
	snap := &model.Snapshot{
		VideoClips: []model.VideoClip{videoClip("a", 0, seg("s1", 0, 50, pkgFx, okFx))},
		Captions:   []model.Caption{{ID: "c", Text: "x", Duration: 5, StyleURL: "https://cdn.example.com/CCCC.captionstyle"}},
		Stickers: []model.Sticker{
			{ID: "s", Duration: 5, PackageURL: "https://cdn.example.com/DDDD.animatedsticker"},
			{ID: "t", Duration: 5, Desc: "EEEE", PackageURL: "https://cdn.example.com/EEEE.animatedsticker"},
		},
	}
	f := newFixture(t, snap, engine.HeadlessOptions{})
	failed := errors.New("offline")
	for _, u := range []string{
		"https://cdn.example.com/AAAA.videofx",
		"https://cdn.example.com/CCCC.captionstyle",
		"https://cdn.example.com/DDDD.animatedsticker",
		"https://cdn.example.com/EEEE.animatedsticker",
	} {
		f.resolver.errs[u] = failed
	}
	require.NoError(t, f.c.BuildTimeline(context.Background(), nil))

	tl := f.timeline(t)
	fxs := tl.VideoTracks()[0].Clips()[0].Fxs()
	require.Len(t, fxs, 1)
	assert.Equal(t, "BBBB", fxs[0].Name())
	assert.True(t, fxs[0].Packaged())

	require.Len(t, tl.Captions(), 1)
	assert.Equal(t, "", tl.Captions()[0].StyleDesc())
	require.Len(t, tl.Stickers(), 1)
	assert.Equal(t, "EEEE", tl.Stickers()[0].PackageID())
}

func TestEssentialSourceFailureAbortsBuild(t *testing.T) {
	remote := model.VideoClip{UUID: "r", M3U8URL: "https://cdn.example.com/r.1.2.m3u8", SplitList: []model.SplitSegment{seg("s", 0, 5)}}
	snap := &model.Snapshot{VideoClips: []model.VideoClip{videoClip("a", 0, seg("s1", 0, 5))}}
	f := newFixture(t, snap, engine.HeadlessOptions{})
	ctx := context.Background()
	require.NoError(t, f.c.BuildTimeline(ctx, nil))

	f.resolver.errs[remote.M3U8URL] = errors.New("404")
	snap.VideoClips = append(snap.VideoClips, remote)
	f.source.Set(snap)

	err := f.c.BuildTimeline(ctx, nil)
	var essential *EssentialAssetError
	require.ErrorAs(t, err, &essential)
	assert.Equal(t, "r", essential.Clip)
	assert.Equal(t, 1, f.h.ReadyCalls())
	assert.Len(t, f.timeline(t).VideoTracks()[0].Clips(), 1)
}

func TestRemoteClipSourceIsResolved(t *testing.T) {
	remote := model.VideoClip{UUID: "r", M3U8URL: "https://cdn.example.com/r.1.2.m3u8", VideoType: model.ClipVideo, SplitList: []model.SplitSegment{seg("s", 0, 5)}}
	snap := &model.Snapshot{VideoClips: []model.VideoClip{remote, remote}}
	snap.VideoClips[1].UUID = "r2"
	snap.VideoClips[1].InPoint = 5
	f := newFixture(t, snap, engine.HeadlessOptions{})
	require.NoError(t, f.c.BuildTimeline(context.Background(), nil))

	clips := f.timeline(t).VideoTracks()[0].Clips()
	require.Len(t, clips, 2)
	assert.Equal(t, "/assets/r.1.2.m3u8", clips[0].FilePath())
	assert.Equal(t, 1, f.resolver.calls[remote.M3U8URL])
}

func TestTemplateProjection(t *testing.T) {
	tpl := &model.Template{Scenes: []model.Scene{
		{Name: "open", Temporal: model.TemporalIntro, Layers: []model.Layer{
			{Type: model.LayerRaw, Transforms: map[model.ClipType]model.Transform2D{
				model.ClipVideo: {ScaleX: 0.8, ScaleY: 0.8, TranslationX: 10, TranslationY: 20},
			}},
			{Type: model.LayerModule,
				Text:  []model.TemplateText{{Value: "Title", FontSize: f64(40)}, {Value: "Sub", Duration: 2}},
				Image: &model.TemplateImage{Source: &model.ImageSource{M3U8URL: "https://cdn.example.com/bg.1.2.m3u8"}},
			},
		}},
		{Name: "body", Layers: []model.Layer{
			{Type: model.LayerRaw, Transforms: map[model.ClipType]model.Transform2D{model.ClipImage: {ScaleX: 2}}},
		}},
	}}
	snap := &model.Snapshot{
		VideoClips: []model.VideoClip{videoClip("a", 10, seg("s1", 0, 5), seg("s2", 5, 12))},
		Template:   tpl,
	}
	f := newFixture(t, snap, engine.HeadlessOptions{})
	require.NoError(t, f.c.BuildTimeline(context.Background(), nil))

	tl := f.timeline(t)
	primary := tl.VideoTracks()[0].Clips()
	first := primary[0].Fxs()
	require.Len(t, first, 1)
	assert.Equal(t, Transform2DFx, first[0].Name())
	assert.Equal(t, 0.8, first[0].Params["Scale X"])
	assert.Equal(t, 20.0, first[0].Params["Trans Y"])
	assert.Empty(t, primary[1].Fxs())

	caps := tl.Captions()
	require.Len(t, caps, 2)
	assert.Equal(t, int64(10), caps[0].InPoint())
	assert.Equal(t, int64(5), caps[0].Duration())
	assert.Equal(t, 40.0, *caps[0].FontSize)
	assert.Equal(t, int64(2), caps[1].Duration())

	overlay := tl.VideoTracks()[1].Clips()
	require.Len(t, overlay, 1)
	assert.Equal(t, "/assets/bg.1.2.m3u8", overlay[0].FilePath())
	assert.Equal(t, int64(10), overlay[0].InPoint())
	assert.Equal(t, int64(5), overlay[0].OutPoint()-overlay[0].InPoint())
	require.NotNil(t, overlay[0].MotionEnabled())
	assert.False(t, *overlay[0].MotionEnabled())
}

func TestInitFailureLeavesComposerUninitialized(t *testing.T) {
	f := newFixture(t, &model.Snapshot{}, engine.HeadlessOptions{FailTimeline: true})
	assert.Equal(t, StateUninitialized, f.c.State())
	assert.False(t, f.c.Ready())
	assert.ErrorIs(t, f.c.BuildTimeline(context.Background(), nil), ErrEngineUnavailable)
	assert.ErrorIs(t, f.c.Play(0, ToEnd), ErrEngineUnavailable)
	assert.ErrorIs(t, f.c.Seek(0), ErrEngineUnavailable)
	assert.ErrorIs(t, f.c.SetCaption(model.Caption{ID: "c"}), ErrEngineUnavailable)
	assert.ErrorIs(t, f.c.DeleteClipByIndex(TrackVideo, 0), ErrEngineUnavailable)
	assert.ErrorIs(t, f.c.AfreshVideoClip(context.Background(), "a"), ErrEngineUnavailable)
	_, err := f.c.GrabFrame(context.Background(), 0)
	assert.ErrorIs(t, err, ErrEngineUnavailable)
}

func TestInitWaitsForEngineModule(t *testing.T) {
	ready := engine.NewSignal()
	c, err := NewComposer(Options{Engine: engine.NewHeadless(engine.HeadlessOptions{}), Source: project.NewStaticSource(nil), Ready: ready})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.Init(ctx), context.DeadlineExceeded)

	ready.Fire()
	require.NoError(t, c.Init(context.Background()))
	assert.Equal(t, StateEngineReady, c.State())
}

func TestLiveWindowConnected(t *testing.T) {
	f := newFixture(t, &model.Snapshot{}, engine.HeadlessOptions{})
	windows := f.h.LiveWindows()
	require.Len(t, windows, 1)
	assert.Equal(t, "preview", windows[0].CanvasID)
	assert.Equal(t, engine.FillPreserveAspectFit, windows[0].FillMode)
	assert.Equal(t, f.timeline(t), windows[0].Timeline)
}

func TestPlaybackAndSeek(t *testing.T) {
	snap := &model.Snapshot{VideoClips: []model.VideoClip{videoClip("a", 0, seg("s1", 0, 100))}}
	f := newFixture(t, snap, engine.HeadlessOptions{})
	require.NoError(t, f.c.BuildTimeline(context.Background(), nil))

	require.NoError(t, f.c.Seek(500))
	assert.Equal(t, int64(100), f.c.CurrentPosition())

	require.NoError(t, f.c.Seek(40))
	require.NoError(t, f.c.Play(FromCurrent, ToEnd))
	assert.True(t, f.c.IsPlaying())
	assert.Equal(t, StatePlaying, f.c.State())
	assert.Equal(t, int64(40), f.c.CurrentPosition())

	f.c.Stop()
	assert.False(t, f.c.IsPlaying())
	assert.Equal(t, StateComposed, f.c.State())
}

func TestPlayZeroEndPlaysToEnd(t *testing.T) {
	snap := &model.Snapshot{VideoClips: []model.VideoClip{videoClip("a", 0, seg("s1", 0, 100))}}
	f := newFixture(t, snap, engine.HeadlessOptions{})
	require.NoError(t, f.c.BuildTimeline(context.Background(), nil))

	require.NoError(t, f.c.Play(0, 0))
	start, end := f.h.LastPlayback()
	assert.Equal(t, int64(0), start)
	assert.Equal(t, ToEnd, end)

	require.NoError(t, f.c.Play(10, 60))
	start, end = f.h.LastPlayback()
	assert.Equal(t, int64(10), start)
	assert.Equal(t, int64(60), end)
}

func TestGrabFrame(t *testing.T) {
	f := newFixture(t, &model.Snapshot{}, engine.HeadlessOptions{})
	img, err := f.c.GrabFrame(context.Background(), FromCurrent)
	require.NoError(t, err)
	assert.Equal(t, 1080, img.Bounds().Dx())

	dropped := newFixture(t, &model.Snapshot{}, engine.HeadlessOptions{DropGrabs: true})
	_, err = dropped.c.GrabFrame(context.Background(), 0)
	assert.ErrorIs(t, err, ErrFrameGrabTimeout)
}

func TestSetCaption(t *testing.T) {
	snap := &model.Snapshot{Captions: []model.Caption{{ID: "c", Text: "x", Duration: 5}}}
	f := newFixture(t, snap, engine.HeadlessOptions{})
	require.NoError(t, f.c.BuildTimeline(context.Background(), nil))

	require.NoError(t, f.c.SetCaption(model.Caption{ID: "c", Scale: f64(2), FontSize: f64(12), TranslationX: f64(1)}))
	c := f.timeline(t).Captions()[0]
	assert.Equal(t, 2.0, *c.ScaleX)
	assert.Equal(t, 12.0, *c.FontSize)
	assert.Nil(t, c.Translation)

	assert.ErrorIs(t, f.c.SetCaption(model.Caption{ID: "nope"}), ErrCaptionNotFound)
}

func TestDeleteClipByIndex(t *testing.T) {
	snap := &model.Snapshot{
		VideoClips: []model.VideoClip{
			videoClip("a", 0, seg("a0", 0, 10)),
			videoClip("b", 10, seg("b0", 0, 5)),
		},
		AudioClips: []model.AudioClip{{ID: "m", M3U8Path: "/m.m3u8", TrimOut: 9}},
	}
	f := newFixture(t, snap, engine.HeadlessOptions{})
	require.NoError(t, f.c.BuildTimeline(context.Background(), nil))

	require.NoError(t, f.c.DeleteClipByIndex(TrackVideo, 0))
	clips := f.timeline(t).VideoTracks()[0].Clips()
	require.Len(t, clips, 1)
	assert.Equal(t, int64(0), clips[0].InPoint())
	assert.ErrorIs(t, f.c.AfreshVideoClip(context.Background(), "a"), ErrClipNotFound)

	require.NoError(t, f.c.DeleteClipByIndex(TrackAudio, 0))
	assert.ErrorIs(t, f.c.DeleteClipByIndex(TrackAudio, 0), ErrClipNotFound)
}

func TestDestroy(t *testing.T) {
	snap := &model.Snapshot{VideoClips: []model.VideoClip{videoClip("a", 0, seg("s1", 0, 10))}}
	f := newFixture(t, snap, engine.HeadlessOptions{})
	require.NoError(t, f.c.BuildTimeline(context.Background(), nil))
	require.NoError(t, f.c.Play(0, ToEnd))

	f.c.Destroy()
	f.c.Destroy()
	assert.Equal(t, StateDestroyed, f.c.State())
	assert.Empty(t, f.h.LiveWindows())
	assert.Equal(t, engine.StateStopped, f.h.StreamingEngineState())
	assert.Nil(t, f.c.Timeline())
	assert.ErrorIs(t, f.c.BuildTimeline(context.Background(), nil), ErrDestroyed)
	assert.ErrorIs(t, f.c.Init(context.Background()), ErrDestroyed)
}

func TestLateResolutionAfterDestroyIsDropped(t *testing.T) {
	remote := model.VideoClip{UUID: "r", M3U8URL: "https://cdn.example.com/r.1.2.m3u8", SplitList: []model.SplitSegment{seg("s", 0, 5)}}
	f := newFixture(t, &model.Snapshot{VideoClips: []model.VideoClip{remote}}, engine.HeadlessOptions{})
	f.resolver.gate = make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- f.c.BuildTimeline(context.Background(), nil) }()

	// the build is parked on the resolver
	time.Sleep(20 * time.Millisecond)
	f.c.Destroy()
	close(f.resolver.gate)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrDestroyed)
	case <-time.After(time.Second):
		t.Fatal("build did not return")
	}
	assert.Equal(t, 0, f.h.ReadyCalls())
}

func TestNewerBuildSupersedesParkedOne(t *testing.T) {
	remote := model.VideoClip{UUID: "r", M3U8URL: "https://cdn.example.com/r.1.2.m3u8", SplitList: []model.SplitSegment{seg("s", 0, 5)}}
	f := newFixture(t, &model.Snapshot{VideoClips: []model.VideoClip{remote}}, engine.HeadlessOptions{})
	f.resolver.gate = make(chan struct{})

	first := make(chan error, 1)
	go func() { first <- f.c.BuildTimeline(context.Background(), nil) }()
	time.Sleep(20 * time.Millisecond)

	second := make(chan error, 1)
	go func() { second <- f.c.BuildTimeline(context.Background(), []model.VideoClip{videoClip("a", 0, seg("a0", 0, 3))}) }()
	require.NoError(t, <-second)

	close(f.resolver.gate)
	assert.ErrorIs(t, <-first, ErrSuperseded)
	assert.Equal(t, int64(3), f.c.Duration())
}
