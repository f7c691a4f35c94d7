package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ClipForge/core/engine"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDumpLayout(t *testing.T) {
	h := engine.NewHeadless(engine.HeadlessOptions{})
	tl := h.CreateTimeline(engine.VideoResolution{Width: 64, Height: 64}, engine.Rational{Num: 25, Den: 1}, engine.AudioResolution{SampleRate: 44100, Channels: 2})
	require.NotNil(t, tl)
	tl.AppendVideoTrack().AddClip("/media/a.m3u8", 0, 0, 3_000_000)
	tl.AddCaption("hi", 0, 1_000_000, "")

	var buf bytes.Buffer
	require.NoError(t, dumpLayout(&buf, tl))

	var l engine.Layout
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &l))
	assert.Equal(t, int64(3_000_000), l.Duration)
	require.Len(t, l.Video, 1)
	assert.Equal(t, "/media/a.m3u8", l.Video[0][0].Path)
	require.Len(t, l.Captions, 1)
	assert.Equal(t, "hi", l.Captions[0].Text)
}

func TestDumpLayoutRejectsForeignTimeline(t *testing.T) {
	assert.Error(t, dumpLayout(&bytes.Buffer{}, nil))
}

func TestWatchLoopDebouncesWrites(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "project.yaml")
	require.NoError(t, os.WriteFile(target, []byte("videoClips: []\n"), 0o644))

	watcher, err := fsnotify.NewWatcher()
	require.NoError(t, err)
	defer watcher.Close()
	require.NoError(t, watcher.Add(dir))

	ctx, cancel := context.WithCancel(context.Background())
	changes := make(chan struct{}, 8)
	done := make(chan error, 1)
	go func() {
		done <- watchLoop(ctx, watcher, target, func() { changes <- struct{}{} })
	}()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x"), 0o644))
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(target, []byte("videoClips: []\n"), 0o644))
	}

	select {
	case <-changes:
	case <-time.After(2 * time.Second):
		t.Fatal("no rebuild after project change")
	}
	select {
	case <-changes:
		t.Fatal("writes were not coalesced")
	case <-time.After(400 * time.Millisecond):
	}

	cancel()
	assert.NoError(t, <-done)
}
