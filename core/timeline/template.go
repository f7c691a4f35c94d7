package timeline

import (
	"ClipForge/logger"
	"ClipForge/model"
)

// Transform2DFx is the builtin effect a raw template layer maps onto.
const Transform2DFx = "Transform 2D"

// AssignScenes returns the template scene for every split segment, in the
// flattened clip/segment order. The first segment gets the intro scene and
// the last segment of the last clip gets the end scene when present; every
// other segment takes the body scene at its ordinal, shifted by one when an
// intro exists and clamped to the last body scene. Entries are nil when no
// scene applies.
func AssignScenes(clips []model.VideoClip, tpl *model.Template) []*model.Scene {
	if tpl == nil {
		return nil
	}
	intro, end, body := tpl.Split()
	offset := 0
	if intro != nil {
		offset = 1
	}

	var out []*model.Scene
	last := len(clips) - 1
	j := 0
	for ci, clip := range clips {
		for si := range clip.SplitList {
			var s *model.Scene
			switch {
			case j == 0 && intro != nil:
				s = intro
			case j == 0:
				s = bodyAt(body, 0)
			case ci == last && si == len(clip.SplitList)-1 && end != nil:
				s = end
			default:
				s = bodyAt(body, j-offset)
			}
			out = append(out, s)
			j++
		}
	}
	return out
}

func bodyAt(body []*model.Scene, i int) *model.Scene {
	if len(body) == 0 {
		return nil
	}
	if i < 0 {
		i = 0
	}
	if i >= len(body) {
		i = len(body) - 1
	}
	return body[i]
}

// sceneImage returns the background image playlist of a scene's module layer.
func sceneImage(s *model.Scene) string {
	if s == nil {
		return ""
	}
	module := s.Layer(model.LayerModule)
	if module == nil || module.Image == nil || module.Image.Source == nil {
		return ""
	}
	return module.Image.Source.M3U8URL
}

func (c *Composer) applyTemplate(p *plan) {
	tpl := p.snap.Template
	if tpl == nil {
		return
	}
	scenes := AssignScenes(p.clips, tpl)
	for i, placed := range p.placed {
		if i >= len(scenes) || scenes[i] == nil {
			continue
		}
		c.applyScene(scenes[i], placed, p)
	}
}

func (c *Composer) applyScene(scene *model.Scene, placed placedSegment, p *plan) {
	duration := placed.seg.Duration()

	if raw := scene.Layer(model.LayerRaw); raw != nil && placed.handle != nil {
		if t, ok := raw.Transforms[placed.clip.VideoType]; ok {
			fx := placed.handle.AppendBuiltinFx(Transform2DFx)
			if fx == nil {
				logger.Warn("添加模板变换失败",
					logger.String("clip", placed.clip.UUID),
					logger.String("segment", placed.seg.ID))
			} else {
				fx.SetFloatVal("Scale X", t.ScaleX)
				fx.SetFloatVal("Scale Y", t.ScaleY)
				fx.SetFloatVal("Trans X", t.TranslationX)
				fx.SetFloatVal("Trans Y", t.TranslationY)
			}
		}
	}

	module := scene.Layer(model.LayerModule)
	if module == nil {
		return
	}
	for _, text := range module.Text {
		c.addCaption(templateCaption(text, placed.inPoint, duration), p)
	}

	src := sceneImage(scene)
	if src == "" {
		return
	}
	path, err := p.lookup(model.AssetRef{URL: src})
	if err != nil {
		logger.Warn("模板背景图不可用",
			logger.String("url", src),
			logger.String("segment", placed.seg.ID),
			logger.ErrorField(err))
		return
	}
	if c.templateTrack == nil {
		return
	}
	h := c.templateTrack.AddClip(path, placed.inPoint, 0, duration)
	if h == nil {
		logger.Warn("添加模板背景图失败", logger.String("url", src))
		return
	}
	h.SetImageMotionAnimationEnabled(false)
	h.SetImageMotionMode(0)
}

// templateCaption places a module text over its segment. The text's own
// duration wins over the segment's.
func templateCaption(t model.TemplateText, inPoint, duration int64) model.Caption {
	if t.Duration > 0 {
		duration = t.Duration
	}
	return model.Caption{
		Text:         t.Value,
		InPoint:      inPoint,
		Duration:     duration,
		StyleDesc:    t.StyleDesc,
		Font:         t.Font,
		FontSize:     t.FontSize,
		TranslationX: t.TranslationX,
		TranslationY: t.TranslationY,
		Color:        t.FontColor,
		Align:        t.TextXAlign,
		FrameWidth:   t.FrameWidth,
		FrameHeight:  t.FrameHeight,
		Z:            t.ZValue,
	}
}
