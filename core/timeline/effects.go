package timeline

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"ClipForge/core/engine"
	"ClipForge/logger"
	"ClipForge/model"
)

// MosaicFx always gets the same full-frame recipe; its params are ignored.
const MosaicFx = "Mosaic"

var mosaicRegion = []float64{-1, 1, -1, -1, 1, -1, 1, 1}

func (c *Composer) applyEffects(h engine.Clip, seg *model.SplitSegment, p *plan) {
	for _, e := range seg.VideoFxs {
		var fx engine.Fx
		switch e.Type {
		case model.FxBuiltin:
			fx = h.AppendBuiltinFx(e.Desc)
		case model.FxPackage:
			id := e.Desc
			if e.PackageURL != "" {
				ref := model.AssetRef{URL: e.PackageURL}
				if _, err := p.lookup(ref); err != nil {
					logger.Warn("特效包不可用，跳过",
						logger.String("segment", seg.ID),
						logger.String("url", e.PackageURL),
						logger.ErrorField(err))
					continue
				}
				if id == "" {
					id = ref.Identity()
				}
			}
			fx = h.AppendPackagedFx(id)
		default:
			logger.Warn("未知特效类型", logger.String("segment", seg.ID), logger.String("type", string(e.Type)))
			continue
		}
		if fx == nil {
			logger.Warn("添加特效失败", logger.String("segment", seg.ID), logger.String("fx", e.Desc))
			continue
		}

		if e.Desc == MosaicFx {
			applyMosaic(fx)
			continue
		}
		for _, param := range e.Params {
			if err := setParam(fx, param); err != nil {
				logger.Warn("特效参数无效",
					logger.String("fx", e.Desc),
					logger.String("key", param.Key),
					logger.ErrorField(err))
			}
		}
	}
}

func applyMosaic(fx engine.Fx) {
	fx.SetFloatVal("Unit Size", 0)
	fx.SetFilterIntensity(1)
	fx.SetRegional(true)
	fx.SetIgnoreBackground(true)
	fx.SetInverseRegion(false)
	fx.SetRegionalFeatherWidth(0)
	fx.SetRegion(mosaicRegion)
}

func setParam(fx engine.Fx, p model.FxParam) error {
	switch p.Type {
	case model.ParamString:
		fx.SetStringVal(p.Key, fmt.Sprint(p.Value))
	case model.ParamFloat:
		f, err := toFloat(p.Value)
		if err != nil {
			return err
		}
		fx.SetFloatVal(p.Key, f)
	case model.ParamInt:
		f, err := toFloat(p.Value)
		if err != nil {
			return err
		}
		fx.SetIntVal(p.Key, int(math.Round(f)))
	case model.ParamBool:
		b, err := toBool(p.Value)
		if err != nil {
			return err
		}
		fx.SetBooleanVal(p.Key, b)
	case model.ParamColor:
		col, err := toColor(p.Value)
		if err != nil {
			return err
		}
		fx.SetColorVal(p.Key, col)
	default:
		return fmt.Errorf("unknown param type %q", p.Type)
	}
	return nil
}

func toFloat(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(n), 64)
	}
	return 0, fmt.Errorf("%v is not a number", v)
}

func toBool(v interface{}) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		return strconv.ParseBool(strings.TrimSpace(b))
	case float64, float32, int, int64:
		f, _ := toFloat(b)
		return f != 0, nil
	}
	return false, fmt.Errorf("%v is not a bool", v)
}

// toColor accepts a CSS style string or a map with r/g/b/a channels in [0,1].
func toColor(v interface{}) (engine.Color, error) {
	switch c := v.(type) {
	case string:
		return ParseColor(c)
	case map[string]interface{}:
		col := engine.Color{A: 1}
		for key, dst := range map[string]*float64{"r": &col.R, "g": &col.G, "b": &col.B, "a": &col.A} {
			raw, ok := c[key]
			if !ok {
				continue
			}
			f, err := toFloat(raw)
			if err != nil {
				return engine.Color{}, fmt.Errorf("color channel %s: %w", key, err)
			}
			*dst = f
		}
		return col, nil
	}
	return engine.Color{}, fmt.Errorf("%v is not a color", v)
}

// ParseColor reads "#RGB", "#RGBA", "#RRGGBB", "#RRGGBBAA", "rgb(r,g,b)" and
// "rgba(r,g,b,a)". Channels come back in [0,1].
func ParseColor(s string) (engine.Color, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if strings.HasPrefix(s, "#") {
		return parseHexColor(s[1:])
	}

	var body string
	switch {
	case strings.HasPrefix(s, "rgba(") && strings.HasSuffix(s, ")"):
		body = s[len("rgba(") : len(s)-1]
	case strings.HasPrefix(s, "rgb(") && strings.HasSuffix(s, ")"):
		body = s[len("rgb(") : len(s)-1]
	default:
		return engine.Color{}, fmt.Errorf("unsupported color %q", s)
	}
	parts := strings.Split(body, ",")
	if len(parts) != 3 && len(parts) != 4 {
		return engine.Color{}, fmt.Errorf("unsupported color %q", s)
	}
	vals := make([]float64, len(parts))
	for i, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return engine.Color{}, fmt.Errorf("color %q: %w", s, err)
		}
		vals[i] = f
	}
	col := engine.Color{R: vals[0] / 255, G: vals[1] / 255, B: vals[2] / 255, A: 1}
	if len(vals) == 4 {
		col.A = vals[3]
	}
	return col, nil
}

func parseHexColor(hex string) (engine.Color, error) {
	switch len(hex) {
	case 3, 4:
		var b strings.Builder
		for _, r := range hex {
			b.WriteRune(r)
			b.WriteRune(r)
		}
		hex = b.String()
	case 6, 8:
	default:
		return engine.Color{}, fmt.Errorf("unsupported color #%s", hex)
	}
	if len(hex) == 6 {
		hex += "ff"
	}
	n, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return engine.Color{}, fmt.Errorf("color #%s: %w", hex, err)
	}
	return engine.Color{
		R: float64(n>>24&0xff) / 255,
		G: float64(n>>16&0xff) / 255,
		B: float64(n>>8&0xff) / 255,
		A: float64(n&0xff) / 255,
	}, nil
}
