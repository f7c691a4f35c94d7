package model

// Temporal 模板场景位置
type Temporal string

const (
	TemporalIntro Temporal = "intro"
	TemporalEnd   Temporal = "end"
)

// LayerType 模板图层类型
type LayerType string

const (
	LayerRaw    LayerType = "raw"
	LayerModule LayerType = "module"
)

// Transform2D raw 图层中某种素材类型的 2D 变换
type Transform2D struct {
	ScaleX       float64 `json:"scaleX" yaml:"scaleX"`
	ScaleY       float64 `json:"scaleY" yaml:"scaleY"`
	TranslationX float64 `json:"translationX" yaml:"translationX"`
	TranslationY float64 `json:"translationY" yaml:"translationY"`
}

// TemplateText module 图层中的文字
type TemplateText struct {
	Value        string   `json:"value" yaml:"value"`
	StyleDesc    string   `json:"styleDesc,omitempty" yaml:"styleDesc,omitempty"`
	Font         string   `json:"font,omitempty" yaml:"font,omitempty"`
	FontColor    string   `json:"fontColor,omitempty" yaml:"fontColor,omitempty"`
	FontSize     *float64 `json:"fontSize,omitempty" yaml:"fontSize,omitempty"`
	TextXAlign   *string  `json:"textXAlignment,omitempty" yaml:"textXAlignment,omitempty"`
	TranslationX *float64 `json:"translationX,omitempty" yaml:"translationX,omitempty"`
	TranslationY *float64 `json:"translationY,omitempty" yaml:"translationY,omitempty"`
	FrameWidth   string   `json:"frameWidth,omitempty" yaml:"frameWidth,omitempty"`
	FrameHeight  string   `json:"frameHeight,omitempty" yaml:"frameHeight,omitempty"`
	ZValue       *float64 `json:"zValue,omitempty" yaml:"zValue,omitempty"`
	// Duration 为 0 时使用切片时长
	Duration int64 `json:"duration,omitempty" yaml:"duration,omitempty"`
}

// ImageSource 背景图片来源
type ImageSource struct {
	M3U8URL string `json:"m3u8Url" yaml:"m3u8Url"`
}

// TemplateImage module 图层背景图
type TemplateImage struct {
	Source *ImageSource `json:"source,omitempty" yaml:"source,omitempty"`
}

// Layer 模板图层
// raw 图层使用 Transforms（按素材类型），module 图层使用 Text 和 Image
type Layer struct {
	Type       LayerType                `json:"type" yaml:"type"`
	Transforms map[ClipType]Transform2D `json:"transforms,omitempty" yaml:"transforms,omitempty"`
	Text       []TemplateText           `json:"text,omitempty" yaml:"text,omitempty"`
	Image      *TemplateImage           `json:"image,omitempty" yaml:"image,omitempty"`
}

// Scene 模板场景
type Scene struct {
	Name     string   `json:"name,omitempty" yaml:"name,omitempty"`
	Temporal Temporal `json:"temporal,omitempty" yaml:"temporal,omitempty"`
	Layers   []Layer  `json:"layers" yaml:"layers"`
}

// Layer 返回第一个指定类型的图层
func (s *Scene) Layer(t LayerType) *Layer {
	for i := range s.Layers {
		if s.Layers[i].Type == t {
			return &s.Layers[i]
		}
	}
	return nil
}

// Template 可复用模板
type Template struct {
	ID     string  `json:"id,omitempty" yaml:"id,omitempty"`
	Scenes []Scene `json:"scenes" yaml:"scenes"`
}

// Split 拆分出片头、片尾和中间通用场景
// 多个 intro/end 时只保留第一个
func (t *Template) Split() (intro *Scene, end *Scene, body []*Scene) {
	for i := range t.Scenes {
		s := &t.Scenes[i]
		switch s.Temporal {
		case TemporalIntro:
			if intro == nil {
				intro = s
				continue
			}
		case TemporalEnd:
			if end == nil {
				end = s
				continue
			}
		}
		body = append(body, s)
	}
	return intro, end, body
}
