package timeline

import (
	"context"
	"errors"
	"image"
	"time"

	"ClipForge/core/engine"
)

const (
	// FromCurrent starts playback or seeks at the current position.
	FromCurrent int64 = -1
	// ToEnd plays until the end of the timeline. Play also treats an end of
	// zero as ToEnd so an omitted end never yields an empty range.
	ToEnd int64 = -1
)

var errPlaybackRefused = errors.New("timeline: engine refused playback request")

func (c *Composer) Play(start, end int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.usable(); err != nil {
		return err
	}
	if start < 0 {
		start = c.opts.Engine.TimelineCurrentPosition(c.timeline)
	}
	if end <= 0 {
		end = ToEnd
	}
	if !c.opts.Engine.PlaybackTimeline(c.timeline, start, end) {
		return errPlaybackRefused
	}
	return nil
}

// Seek moves to position, clamped to the timeline duration, and shows
// caption and sticker posters.
func (c *Composer) Seek(position int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.usable(); err != nil {
		return err
	}
	if position < 0 {
		position = c.opts.Engine.TimelineCurrentPosition(c.timeline)
	} else if d := c.timeline.Duration(); position > d {
		position = d
	}
	flags := engine.SeekShowCaptionPoster | engine.SeekShowAnimatedStickerPoster
	if !c.opts.Engine.SeekTimeline(c.timeline, position, flags) {
		return errPlaybackRefused
	}
	return nil
}

func (c *Composer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timeline == nil {
		return
	}
	c.opts.Engine.Stop()
}

func (c *Composer) IsPlaying() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timeline != nil && c.opts.Engine.StreamingEngineState() == engine.StatePlayback
}

func (c *Composer) CurrentPosition() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timeline == nil {
		return 0
	}
	return c.opts.Engine.TimelineCurrentPosition(c.timeline)
}

func (c *Composer) Duration() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timeline == nil {
		return 0
	}
	return c.timeline.Duration()
}

// GrabFrame renders the frame at point. The engine delivers frames
// asynchronously; no frame within FrameGrabTimeout yields ErrFrameGrabTimeout.
func (c *Composer) GrabFrame(ctx context.Context, point int64) (image.Image, error) {
	c.mu.Lock()
	if err := c.usable(); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	tl := c.timeline
	c.mu.Unlock()

	frames := make(chan image.Image, 1)
	remove := c.opts.Engine.AddImageGrabbedListener(func(img image.Image) {
		select {
		case frames <- img:
		default:
		}
	})
	defer remove()

	if point < 0 {
		point = 0
	}
	if !c.opts.Engine.GrabImageFromTimeline(tl, point) {
		return nil, errors.New("timeline: engine refused frame grab")
	}

	timer := time.NewTimer(c.opts.FrameGrabTimeout)
	defer timer.Stop()
	select {
	case img := <-frames:
		return img, nil
	case <-timer.C:
		return nil, ErrFrameGrabTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
