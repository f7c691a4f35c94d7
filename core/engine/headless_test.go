package engine

import (
	"context"
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTimeline(t *testing.T, h *Headless) *HeadlessTimeline {
	t.Helper()
	tl := h.CreateTimeline(VideoResolution{Width: 64, Height: 36}, Rational{Num: 25, Den: 1}, AudioResolution{SampleRate: 44100, Channels: 2})
	require.NotNil(t, tl)
	return tl.(*HeadlessTimeline)
}

func TestCreateTimelineFailureReturnsNilInterface(t *testing.T) {
	h := NewHeadless(HeadlessOptions{FailTimeline: true})
	tl := h.CreateTimeline(VideoResolution{Width: 1, Height: 1}, Rational{Num: 25, Den: 1}, AudioResolution{})
	assert.True(t, tl == nil)
}

func TestTrackInsertAndRippleRemove(t *testing.T) {
	tl := newTestTimeline(t, NewHeadless(HeadlessOptions{}))
	tr := tl.AppendVideoTrack()

	a := tr.AddClip("a.m3u8", 0, 0, 100)
	b := tr.AddClip("b.m3u8", 100, 0, 50)
	require.NotNil(t, a)
	require.NotNil(t, b)
	assert.Equal(t, int64(150), tl.Duration())

	require.True(t, tr.RemoveClip(a.Index(), false))
	assert.Equal(t, -1, a.Index())
	assert.Equal(t, 0, b.Index())
	assert.Equal(t, int64(0), b.InPoint())

	c := tr.InsertClip("c.m3u8", 10, 40, 0)
	require.NotNil(t, c)
	assert.Equal(t, int64(0), c.InPoint())
	assert.Equal(t, int64(30), b.InPoint())
	assert.Equal(t, 1, b.Index())

	d := tr.InsertClip("d.m3u8", 0, 20, tr.ClipCount())
	require.NotNil(t, d)
	assert.Equal(t, int64(80), d.InPoint())
	assert.True(t, tr.InsertClip("e.m3u8", 0, 1, 9) == nil)
}

func TestRemoveClipKeepSpace(t *testing.T) {
	tl := newTestTimeline(t, NewHeadless(HeadlessOptions{}))
	tr := tl.AppendVideoTrack()
	tr.AddClip("a", 0, 0, 100)
	b := tr.AddClip("b", 100, 0, 100)

	require.True(t, tr.RemoveClip(0, true))
	assert.Equal(t, int64(100), b.InPoint())
	assert.False(t, tr.RemoveClip(5, true))
}

func TestCaptionAndStickerRemovalReturnsNext(t *testing.T) {
	h := NewHeadless(HeadlessOptions{RejectCaption: func(text string) bool { return text == "bad" }})
	tl := newTestTimeline(t, h)

	first := tl.AddCaption("one", 0, 10, "")
	tl.AddCaption("two", 20, 10, "")
	assert.True(t, tl.AddCaption("bad", 0, 10, "") == nil)

	next := tl.RemoveCaption(tl.FirstCaption())
	require.NotNil(t, next)
	assert.Equal(t, "two", next.Text())
	assert.NotEqual(t, first, next)
	assert.True(t, tl.RemoveCaption(next) == nil)
	assert.True(t, tl.FirstCaption() == nil)

	s := tl.AddAnimatedSticker(0, 10, "pkg")
	require.NotNil(t, s)
	assert.True(t, tl.RemoveAnimatedSticker(s) == nil)
	assert.True(t, tl.FirstAnimatedSticker() == nil)
}

func TestInstallCompletesAutomatically(t *testing.T) {
	h := NewHeadless(HeadlessOptions{InstallCodes: map[string]int{"broken": 7}})
	pm := h.AssetPackageManager()

	events := make(chan InstallEvent, 2)
	remove := pm.AddInstallListener(func(ev InstallEvent) { events <- ev })
	defer remove()

	require.NoError(t, pm.InstallAssetPackage("/tmp/ABC.videofx", "", PackageVideoFx))
	require.NoError(t, pm.InstallAssetPackage("/tmp/broken.animatedsticker", "", PackageAnimatedSticker))

	got := map[string]int{}
	for i := 0; i < 2; i++ {
		select {
		case ev := <-events:
			got[ev.ID] = ev.Code
		case <-time.After(time.Second):
			t.Fatal("install event not delivered")
		}
	}
	assert.Equal(t, map[string]int{"ABC": 0, "broken": 7}, got)
	assert.Equal(t, PackageReady, pm.PackageStatus("ABC", PackageVideoFx))
	assert.Equal(t, PackageNotInstalled, pm.PackageStatus("broken", PackageAnimatedSticker))
}

func TestManualInstall(t *testing.T) {
	h := NewHeadless(HeadlessOptions{ManualInstall: true})
	pm := h.Packages()
	require.NoError(t, pm.InstallAssetPackage("/tmp/X1.captionstyle", "/tmp/X1.lic", PackageCaptionStyle))

	assert.True(t, pm.Pending("X1"))
	assert.Equal(t, PackageInstalling, pm.PackageStatus("X1", PackageCaptionStyle))
	assert.True(t, pm.CompleteInstall("X1", 0))
	assert.False(t, pm.CompleteInstall("X1", 0))
	require.Len(t, pm.Calls(), 1)
	assert.Equal(t, "/tmp/X1.lic", pm.Calls()[0].LicensePath)
}

func TestGrabDeliversFrame(t *testing.T) {
	h := NewHeadless(HeadlessOptions{})
	tl := newTestTimeline(t, h)

	frames := make(chan image.Image, 1)
	remove := h.AddImageGrabbedListener(func(img image.Image) { frames <- img })
	defer remove()

	require.True(t, h.GrabImageFromTimeline(tl, 0))
	select {
	case img := <-frames:
		assert.Equal(t, 64, img.Bounds().Dx())
	case <-time.After(time.Second):
		t.Fatal("no frame")
	}
}

func TestPlaybackState(t *testing.T) {
	h := NewHeadless(HeadlessOptions{})
	tl := newTestTimeline(t, h)

	require.True(t, h.PlaybackTimeline(tl, 40, 100))
	assert.Equal(t, StatePlayback, h.StreamingEngineState())
	assert.Equal(t, int64(40), h.TimelineCurrentPosition(tl))

	require.NoError(t, h.ReadyForTimelineModification(context.Background()))
	assert.Equal(t, StateStopped, h.StreamingEngineState())
	assert.Equal(t, 1, h.ReadyCalls())

	assert.Equal(t, "NotoSans", h.RegisterFontByFilePath("/fonts/NotoSans.ttf"))
}

func TestSignal(t *testing.T) {
	s := NewSignal()
	assert.False(t, s.IsFired())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Wait(ctx), context.DeadlineExceeded)

	s.Fire()
	s.Fire()
	assert.True(t, s.IsFired())
	assert.NoError(t, s.Wait(context.Background()))
	assert.True(t, Ready().IsFired())
}
