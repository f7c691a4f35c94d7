package timeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"ClipForge/core/engine"
	"ClipForge/model"
)

var errNoSource = errors.New("clip has neither a local path nor a remote url")

type resolution struct {
	value string
	err   error
}

// placedSegment is one split segment after it was laid on the primary track.
// handle is nil when the engine refused the clip.
type placedSegment struct {
	clip    *model.VideoClip
	seg     *model.SplitSegment
	inPoint int64
	handle  engine.Clip
}

// plan holds everything a mutation needs, resolved up front.
type plan struct {
	snap     *model.Snapshot
	clips    []model.VideoClip
	resolved map[model.AssetRef]resolution
	placed   []placedSegment
}

func (p *plan) lookup(ref model.AssetRef) (string, error) {
	r, ok := p.resolved[ref]
	if !ok {
		return "", fmt.Errorf("asset %s was not resolved", ref.URL)
	}
	return r.value, r.err
}

// source picks the local path when present, otherwise the resolved url.
func (p *plan) source(path, url string) (string, error) {
	if path != "" {
		return path, nil
	}
	if url == "" {
		return "", errNoSource
	}
	return p.lookup(model.AssetRef{URL: url})
}

// frameSize is the reference size for percentage caption frames.
func (p *plan) frameSize(c *Composer) (float64, float64) {
	w, h := c.opts.Width, c.opts.Height
	if p.snap != nil && p.snap.VideoFrameWidth > 0 && p.snap.VideoFrameHeight > 0 {
		w, h = p.snap.VideoFrameWidth, p.snap.VideoFrameHeight
	}
	return float64(w), float64(h)
}

type refSet struct {
	seen map[model.AssetRef]bool
	refs []model.AssetRef
}

func (s *refSet) add(ref model.AssetRef) {
	if ref.IsEmpty() || s.seen[ref] {
		return
	}
	if s.seen == nil {
		s.seen = make(map[model.AssetRef]bool)
	}
	s.seen[ref] = true
	s.refs = append(s.refs, ref)
}

// collectRefs lists every remote asset the clips reference. With full set,
// audio, captions, stickers and the template images in use are included.
func collectRefs(snap *model.Snapshot, clips []model.VideoClip, full bool) []model.AssetRef {
	var set refSet
	for _, clip := range clips {
		if clip.M3U8Path == "" {
			set.add(model.AssetRef{URL: clip.M3U8URL})
		}
		for _, seg := range clip.SplitList {
			for _, fx := range seg.VideoFxs {
				if fx.Type == model.FxPackage {
					set.add(model.AssetRef{URL: fx.PackageURL})
				}
			}
		}
	}
	if !full {
		return set.refs
	}

	for _, a := range snap.AudioClips {
		if a.M3U8Path == "" {
			set.add(model.AssetRef{URL: a.M3U8URL})
		}
	}
	if snap.Template != nil {
		for _, scene := range AssignScenes(clips, snap.Template) {
			if src := sceneImage(scene); src != "" {
				set.add(model.AssetRef{URL: src})
			}
		}
	}
	for _, cp := range snap.Captions {
		set.add(model.AssetRef{URL: cp.StyleURL})
		set.add(model.AssetRef{URL: cp.FontURL})
	}
	for _, s := range snap.Stickers {
		set.add(model.AssetRef{URL: s.PackageURL, Custom: s.Custom})
	}
	return set.refs
}

// prepare resolves every remote asset the mutation needs. Distinct refs are
// resolved concurrently; the resolver collapses duplicates across callers.
// A clip source that cannot be resolved fails the whole mutation.
func (c *Composer) prepare(ctx context.Context, snap *model.Snapshot, clips []model.VideoClip, full bool) (*plan, error) {
	if err := checkClipIDs(clips); err != nil {
		return nil, err
	}
	p := &plan{
		snap:     snap,
		clips:    clips,
		resolved: c.resolveAll(ctx, collectRefs(snap, clips, full)),
	}

	for _, clip := range clips {
		if _, err := p.source(clip.M3U8Path, clip.M3U8URL); err != nil {
			return nil, &EssentialAssetError{Clip: clip.UUID, URL: clip.M3U8URL, Err: err}
		}
	}
	if full {
		for _, a := range snap.AudioClips {
			if _, err := p.source(a.M3U8Path, a.M3U8URL); err != nil {
				return nil, &EssentialAssetError{Clip: a.ID, URL: a.M3U8URL, Err: err}
			}
		}
	}
	return p, nil
}

// checkClipIDs 视频句柄按 UUID 归组，UUID 必须非空且唯一
func checkClipIDs(clips []model.VideoClip) error {
	seen := make(map[string]bool, len(clips))
	for i, clip := range clips {
		if clip.UUID == "" {
			return fmt.Errorf("%w: video clip %d has no uuid", ErrInvalidClip, i)
		}
		if seen[clip.UUID] {
			return fmt.Errorf("%w: duplicate video clip uuid %s", ErrInvalidClip, clip.UUID)
		}
		seen[clip.UUID] = true
	}
	return nil
}

func (c *Composer) resolveAll(ctx context.Context, refs []model.AssetRef) map[model.AssetRef]resolution {
	out := make(map[model.AssetRef]resolution, len(refs))
	if len(refs) == 0 {
		return out
	}
	if c.opts.Resolver == nil {
		for _, ref := range refs {
			out[ref] = resolution{err: errors.New("no asset resolver configured")}
		}
		return out
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, ref := range refs {
		wg.Add(1)
		go func(ref model.AssetRef) {
			defer wg.Done()
			v, err := c.opts.Resolver.Resolve(ctx, ref)
			mu.Lock()
			out[ref] = resolution{value: v, err: err}
			mu.Unlock()
		}(ref)
	}
	wg.Wait()
	return out
}
