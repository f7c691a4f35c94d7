package timeline

import (
	"fmt"
	"strconv"
	"strings"

	"ClipForge/core/engine"
	"ClipForge/logger"
	"ClipForge/model"
)

var alignments = map[string]int{
	"left":   engine.AlignLeft,
	"center": engine.AlignCenter,
	"right":  engine.AlignRight,
}

// addCaption attaches one caption. A refused caption is logged and skipped so
// the rest of the build goes on.
func (c *Composer) addCaption(m model.Caption, p *plan) engine.Caption {
	style := m.StyleDesc
	if m.StyleURL != "" {
		ref := model.AssetRef{URL: m.StyleURL}
		if _, err := p.lookup(ref); err != nil {
			logger.Warn("字幕样式不可用",
				logger.String("caption", m.ID),
				logger.String("url", m.StyleURL),
				logger.ErrorField(err))
		} else if style == "" {
			style = ref.Identity()
		}
	}
	family := m.Font
	if m.FontURL != "" {
		if f, err := p.lookup(model.AssetRef{URL: m.FontURL}); err != nil {
			logger.Warn("字幕字体不可用",
				logger.String("caption", m.ID),
				logger.String("url", m.FontURL),
				logger.ErrorField(err))
		} else if f != "" {
			family = f
		}
	}

	h := c.timeline.AddCaption(m.Text, m.InPoint, m.Duration, style)
	if h == nil {
		logger.Warn("添加字幕失败",
			logger.String("caption", m.ID),
			logger.String("text", m.Text),
			logger.Int64("inPoint", m.InPoint))
		return nil
	}

	applyTransform(h, m)
	if m.Color != "" {
		if col, err := ParseColor(m.Color); err != nil {
			logger.Warn("字幕颜色无效", logger.String("caption", m.ID), logger.ErrorField(err))
		} else {
			h.SetTextColor(col)
		}
	}
	if m.Align != nil {
		if a, ok := alignments[*m.Align]; ok {
			h.SetTextAlignment(a)
		}
	}

	if m.FrameWidth != "" && m.FrameHeight != "" {
		refW, refH := p.frameSize(c)
		w, errW := frameValue(m.FrameWidth, refW)
		ht, errH := frameValue(m.FrameHeight, refH)
		if errW != nil || errH != nil {
			logger.Warn("字幕文本框无效",
				logger.String("caption", m.ID),
				logger.String("width", m.FrameWidth),
				logger.String("height", m.FrameHeight))
		} else {
			h.SetTextFrameOriginRect(engine.RectF{Left: -w / 2, Top: ht / 2, Right: w / 2, Bottom: -ht / 2})
		}
		if m.FontSize != nil && *m.FontSize > 0 {
			h.SetFrameCaptionMaxFontSize(*m.FontSize)
		}
	} else if m.FontSize != nil {
		h.SetFontSize(*m.FontSize)
	}

	if family != "" {
		h.SetFontFamily(family)
	}
	if m.Z != nil {
		h.SetZValue(*m.Z)
	}
	return h
}

// applyTransform sets scale, rotation and translation. Translation needs both
// coordinates.
func applyTransform(h engine.Caption, m model.Caption) {
	if m.Scale != nil {
		h.SetScaleX(*m.Scale)
		h.SetScaleY(*m.Scale)
	}
	if m.Rotation != nil {
		h.SetRotationZ(*m.Rotation)
	}
	if m.TranslationX != nil && m.TranslationY != nil {
		h.SetCaptionTranslation(engine.PointF{X: *m.TranslationX, Y: *m.TranslationY})
	}
}

// frameValue reads "80%" relative to ref, anything else as an absolute size.
func frameValue(v string, ref float64) (float64, error) {
	v = strings.TrimSpace(v)
	if pct, ok := strings.CutSuffix(v, "%"); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(pct), 64)
		if err != nil {
			return 0, fmt.Errorf("frame size %q: %w", v, err)
		}
		return f * ref / 100, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSuffix(v, "px"), 64)
	if err != nil {
		return 0, fmt.Errorf("frame size %q: %w", v, err)
	}
	return f, nil
}

// SetCaption re-applies scale, rotation, translation and font size to an
// attached caption.
func (c *Composer) SetCaption(m model.Caption) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.usable(); err != nil {
		return err
	}
	h := c.captions[m.ID]
	if h == nil {
		logger.Warn("字幕不存在", logger.String("caption", m.ID))
		return fmt.Errorf("%w: %s", ErrCaptionNotFound, m.ID)
	}
	applyTransform(h, m)
	if m.FontSize != nil {
		h.SetFontSize(*m.FontSize)
	}
	return nil
}

func (c *Composer) addSticker(m model.Sticker, p *plan) engine.Sticker {
	pkg := m.Desc
	if m.PackageURL != "" {
		ref := model.AssetRef{URL: m.PackageURL, Custom: m.Custom}
		if _, err := p.lookup(ref); err != nil {
			logger.Warn("贴纸资源不可用",
				logger.String("sticker", m.ID),
				logger.String("url", m.PackageURL),
				logger.ErrorField(err))
		} else if pkg == "" {
			pkg = ref.Identity()
		}
	}
	if pkg == "" {
		logger.Warn("贴纸缺少资源包，跳过", logger.String("sticker", m.ID))
		return nil
	}

	h := c.timeline.AddAnimatedSticker(m.InPoint, m.Duration, pkg)
	if h == nil {
		logger.Warn("添加贴纸失败",
			logger.String("sticker", m.ID),
			logger.String("package", pkg))
		return nil
	}
	if m.Scale != nil {
		h.SetScale(*m.Scale)
	}
	if m.Rotation != nil {
		h.SetRotationZ(*m.Rotation)
	}
	if m.TranslationX != nil && m.TranslationY != nil {
		h.SetTranslation(engine.PointF{X: *m.TranslationX, Y: *m.TranslationY})
	}
	if m.HorizontalFlip != nil {
		h.SetHorizontalFlip(*m.HorizontalFlip)
	}
	if m.VerticalFlip != nil {
		h.SetVerticalFlip(*m.VerticalFlip)
	}
	if m.Z != nil {
		h.SetZValue(*m.Z)
	}
	return h
}
