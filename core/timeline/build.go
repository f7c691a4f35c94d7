package timeline

import (
	"context"
	"fmt"

	"ClipForge/core/engine"
	"ClipForge/logger"
	"ClipForge/model"
)

// BuildTimeline rebuilds the whole engine timeline from the project snapshot.
// A non-nil override replaces the snapshot's video clips.
//
// The fixed order is: modification barrier, clear, video, audio, template,
// captions, stickers.
func (c *Composer) BuildTimeline(ctx context.Context, override []model.VideoClip) error {
	c.mu.Lock()
	if err := c.usable(); err != nil {
		c.mu.Unlock()
		return err
	}
	c.builds++
	gen := c.builds
	c.mu.Unlock()

	err := c.build(ctx, gen, override)
	if err != nil {
		logger.Error("构建时间线失败", logger.ErrorField(err))
		c.emit(Event{Type: EventBuildFailed, Error: err.Error()})
		return err
	}
	c.emit(Event{Type: EventBuilt, Duration: c.Duration()})
	return nil
}

func (c *Composer) build(ctx context.Context, gen uint64, override []model.VideoClip) error {
	snap, err := c.opts.Source.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("read project snapshot: %w", err)
	}
	clips := snap.VideoClips
	if override != nil {
		clips = override
	}
	p, err := c.prepare(ctx, snap, clips, true)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.usable(); err != nil {
		return err
	}
	if gen != c.builds {
		return ErrSuperseded
	}
	if err := c.opts.Engine.ReadyForTimelineModification(ctx); err != nil {
		return fmt.Errorf("wait for engine: %w", err)
	}

	c.clear()
	c.buildVideo(p)
	c.buildAudio(p)
	c.applyTemplate(p)
	for _, m := range snap.Captions {
		if h := c.addCaption(m, p); h != nil && m.ID != "" {
			c.captions[m.ID] = h
		}
	}
	for _, m := range snap.Stickers {
		if h := c.addSticker(m, p); h != nil && m.ID != "" {
			c.stickers[m.ID] = h
		}
	}
	c.state = StateComposed

	logger.Info("时间线构建完成",
		logger.Int("clips", len(clips)),
		logger.Int("captions", len(c.captions)),
		logger.Int("stickers", len(c.stickers)),
		logger.Int64("duration", c.timeline.Duration()))
	return nil
}

// clear drains every track, caption and sticker from the engine timeline.
func (c *Composer) clear() {
	tl := c.timeline
	for tl.VideoTrackCount() > 0 {
		if !tl.RemoveVideoTrack(0) {
			logger.Warn("移除视频轨道失败")
			break
		}
	}
	for tl.AudioTrackCount() > 0 {
		if !tl.RemoveAudioTrack(0) {
			logger.Warn("移除音频轨道失败")
			break
		}
	}
	for cp := tl.FirstCaption(); cp != nil; cp = tl.RemoveCaption(cp) {
	}
	for s := tl.FirstAnimatedSticker(); s != nil; s = tl.RemoveAnimatedSticker(s) {
	}
	c.videoTrack, c.templateTrack, c.audioTrack = nil, nil, nil
	c.resetHandles()
}

func (c *Composer) buildVideo(p *plan) {
	c.videoTrack = c.timeline.AppendVideoTrack()
	c.templateTrack = c.timeline.AppendVideoTrack()
	if c.videoTrack == nil {
		logger.Error("创建视频轨道失败")
		return
	}

	for i := range p.clips {
		clip := &p.clips[i]
		src, _ := p.source(clip.M3U8Path, clip.M3U8URL)
		handles := make([]engine.Clip, 0, len(clip.SplitList))
		cursor := clip.InPoint
		for j := range clip.SplitList {
			seg := &clip.SplitList[j]
			placed := placedSegment{clip: clip, seg: seg, inPoint: cursor}
			cursor += seg.Duration()

			h := c.videoTrack.AddClip(src, placed.inPoint, seg.CaptureIn, seg.CaptureOut)
			if h == nil {
				logger.Warn("添加视频片段失败",
					logger.String("clip", clip.UUID),
					logger.String("segment", seg.ID))
			} else {
				c.decorateSegment(h, clip, seg, p)
				handles = append(handles, h)
			}
			placed.handle = h
			p.placed = append(p.placed, placed)
		}
		c.clipSegments[clip.UUID] = handles
	}
}

func (c *Composer) buildAudio(p *plan) {
	c.audioTrack = c.timeline.AppendAudioTrack()
	if c.audioTrack == nil {
		logger.Error("创建音频轨道失败")
		return
	}
	for _, a := range p.snap.AudioClips {
		src, _ := p.source(a.M3U8Path, a.M3U8URL)
		trimOut := a.TrimOut
		if trimOut == 0 {
			trimOut = a.OrgDuration
		}
		h := c.audioTrack.AddClip(src, a.InPoint, a.TrimIn, trimOut)
		if h == nil {
			logger.Warn("添加音频片段失败", logger.String("clip", a.ID))
			continue
		}
		c.audioClips[a.ID] = h
	}
}

// decorateSegment applies what a segment carries besides its trims. Build and
// re-trim share it so both produce the same clip.
func (c *Composer) decorateSegment(h engine.Clip, clip *model.VideoClip, seg *model.SplitSegment, p *plan) {
	c.applyEffects(h, seg, p)
	if clip.VideoType == model.ClipImage {
		h.SetImageMotionAnimationEnabled(clip.Motion)
		h.SetImageMotionMode(0)
	}
}

// AfreshVideoClip replaces the segments of one clip in place, starting at the
// track index of its first segment. Use it when only trims changed; inserted
// or deleted segments need BuildTimeline so overlapping captions are redone.
func (c *Composer) AfreshVideoClip(ctx context.Context, clipID string) error {
	c.mu.Lock()
	err := c.usable()
	c.mu.Unlock()
	if err != nil {
		return err
	}

	snap, err := c.opts.Source.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("read project snapshot: %w", err)
	}
	clip, ok := snap.FindVideoClip(clipID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrClipNotFound, clipID)
	}
	p, err := c.prepare(ctx, snap, []model.VideoClip{clip}, false)
	if err != nil {
		return err
	}

	if err := c.afresh(ctx, p); err != nil {
		logger.Error("重建视频片段失败", logger.String("clip", clipID), logger.ErrorField(err))
		return err
	}
	c.emit(Event{Type: EventClipRefreshed, Clip: clipID, Duration: c.Duration()})
	return nil
}

func (c *Composer) afresh(ctx context.Context, p *plan) error {
	clip := &p.clips[0]

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.usable(); err != nil {
		return err
	}
	var old []engine.Clip
	for _, h := range c.clipSegments[clip.UUID] {
		if h.Index() >= 0 {
			old = append(old, h)
		}
	}
	if c.videoTrack == nil || len(old) == 0 {
		return fmt.Errorf("%w: %s has no segments on the timeline", ErrClipNotFound, clip.UUID)
	}
	if err := c.opts.Engine.ReadyForTimelineModification(ctx); err != nil {
		return fmt.Errorf("wait for engine: %w", err)
	}

	at := old[0].Index()
	for _, h := range old {
		// indices shift after every ripple removal
		if i := h.Index(); i >= 0 {
			c.videoTrack.RemoveClip(i, false)
		}
	}
	src, _ := p.source(clip.M3U8Path, clip.M3U8URL)
	handles := make([]engine.Clip, 0, len(clip.SplitList))
	for j := range clip.SplitList {
		seg := &clip.SplitList[j]
		h := c.videoTrack.InsertClip(src, seg.CaptureIn, seg.CaptureOut, at)
		if h == nil {
			logger.Warn("插入视频片段失败",
				logger.String("clip", clip.UUID),
				logger.String("segment", seg.ID),
				logger.Int("index", at))
			continue
		}
		c.decorateSegment(h, clip, seg, p)
		handles = append(handles, h)
		at++
	}
	c.clipSegments[clip.UUID] = handles
	return nil
}

// TrackKind selects the primary video or the audio track.
type TrackKind string

const (
	TrackVideo TrackKind = "video"
	TrackAudio TrackKind = "audio"
)

// DeleteClipByIndex removes a clip from the track and closes the gap.
func (c *Composer) DeleteClipByIndex(kind TrackKind, index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.usable(); err != nil {
		return err
	}
	track := c.videoTrack
	if kind == TrackAudio {
		track = c.audioTrack
	}
	if track == nil || !track.RemoveClip(index, false) {
		return fmt.Errorf("%w: %s track index %d", ErrClipNotFound, kind, index)
	}
	c.pruneHandles()
	return nil
}

// pruneHandles forgets clips the engine no longer holds.
func (c *Composer) pruneHandles() {
	for uuid, handles := range c.clipSegments {
		kept := handles[:0]
		for _, h := range handles {
			if h.Index() >= 0 {
				kept = append(kept, h)
			}
		}
		c.clipSegments[uuid] = kept
	}
	for id, h := range c.audioClips {
		if h.Index() < 0 {
			delete(c.audioClips, id)
		}
	}
}
