package model

// 时间单位统一为微秒，与渲染引擎保持一致

// ClipType 视频轨道素材类型
type ClipType string

const (
	ClipVideo ClipType = "video"
	ClipImage ClipType = "image"
)

// FxType 特效挂载方式
type FxType string

const (
	FxBuiltin FxType = "builtin"
	FxPackage FxType = "package"
)

// ParamType 特效参数类型
type ParamType string

const (
	ParamString ParamType = "string"
	ParamFloat  ParamType = "float"
	ParamBool   ParamType = "bool"
	ParamInt    ParamType = "int"
	ParamColor  ParamType = "color"
)

// FxParam 特效参数，Value 的实际类型由 Type 决定
type FxParam struct {
	Type  ParamType   `json:"type" yaml:"type"`
	Key   string      `json:"key" yaml:"key"`
	Value interface{} `json:"value" yaml:"value"`
}

// Effect 挂在切片上的特效描述
type Effect struct {
	ID     string    `json:"id,omitempty" yaml:"id,omitempty"`
	Type   FxType    `json:"type" yaml:"type"`
	Desc   string    `json:"desc" yaml:"desc"`
	Params []FxParam `json:"params,omitempty" yaml:"params,omitempty"`
	// PackageURL 包特效的远程地址，为空时 Desc 即已安装的包 ID
	PackageURL string `json:"packageUrl,omitempty" yaml:"packageUrl,omitempty"`
}

// SplitSegment 源素材上的一段切片
type SplitSegment struct {
	ID         string   `json:"id" yaml:"id"`
	CaptureIn  int64    `json:"captureIn" yaml:"captureIn"`
	CaptureOut int64    `json:"captureOut" yaml:"captureOut"`
	VideoFxs   []Effect `json:"videoFxs,omitempty" yaml:"videoFxs,omitempty"`
}

// Duration 切片时长
func (s SplitSegment) Duration() int64 {
	return s.CaptureOut - s.CaptureIn
}

// VideoClip 视频轨道上的源素材
type VideoClip struct {
	UUID      string   `json:"uuid" yaml:"uuid"`
	M3U8Path  string   `json:"m3u8Path,omitempty" yaml:"m3u8Path,omitempty"`
	M3U8URL   string   `json:"m3u8Url,omitempty" yaml:"m3u8Url,omitempty"`
	InPoint   int64    `json:"inPoint" yaml:"inPoint"`
	VideoType ClipType `json:"videoType" yaml:"videoType"`
	// Motion 图片素材是否开启运动动画
	Motion    bool           `json:"motion,omitempty" yaml:"motion,omitempty"`
	SplitList []SplitSegment `json:"splitList" yaml:"splitList"`
}

// AudioClip 音频轨道素材
type AudioClip struct {
	ID          string `json:"id" yaml:"id"`
	M3U8Path    string `json:"m3u8Path,omitempty" yaml:"m3u8Path,omitempty"`
	M3U8URL     string `json:"m3u8Url,omitempty" yaml:"m3u8Url,omitempty"`
	InPoint     int64  `json:"inPoint" yaml:"inPoint"`
	TrimIn      int64  `json:"trimIn,omitempty" yaml:"trimIn,omitempty"`
	TrimOut     int64  `json:"trimOut,omitempty" yaml:"trimOut,omitempty"`
	OrgDuration int64  `json:"orgDuration,omitempty" yaml:"orgDuration,omitempty"`
}

// Caption 字幕，指针字段为 nil 表示未设置（0 是合法值）
type Caption struct {
	ID           string   `json:"id" yaml:"id"`
	Text         string   `json:"text" yaml:"text"`
	InPoint      int64    `json:"inPoint" yaml:"inPoint"`
	Duration     int64    `json:"duration" yaml:"duration"`
	StyleDesc    string   `json:"styleDesc,omitempty" yaml:"styleDesc,omitempty"`
	StyleURL     string   `json:"styleUrl,omitempty" yaml:"styleUrl,omitempty"`
	Font         string   `json:"font,omitempty" yaml:"font,omitempty"`
	FontURL      string   `json:"fontUrl,omitempty" yaml:"fontUrl,omitempty"`
	FontSize     *float64 `json:"fontSize,omitempty" yaml:"fontSize,omitempty"`
	Scale        *float64 `json:"scale,omitempty" yaml:"scale,omitempty"`
	Rotation     *float64 `json:"rotation,omitempty" yaml:"rotation,omitempty"`
	TranslationX *float64 `json:"translationX,omitempty" yaml:"translationX,omitempty"`
	TranslationY *float64 `json:"translationY,omitempty" yaml:"translationY,omitempty"`
	Color        string   `json:"color,omitempty" yaml:"color,omitempty"`
	Align        *string  `json:"align,omitempty" yaml:"align,omitempty"`
	// FrameWidth/FrameHeight 支持 "80%" 或绝对值
	FrameWidth  string   `json:"frameWidth,omitempty" yaml:"frameWidth,omitempty"`
	FrameHeight string   `json:"frameHeight,omitempty" yaml:"frameHeight,omitempty"`
	Z           *float64 `json:"z,omitempty" yaml:"z,omitempty"`
}

// Sticker 动画贴纸
type Sticker struct {
	ID             string   `json:"id" yaml:"id"`
	InPoint        int64    `json:"inPoint" yaml:"inPoint"`
	Duration       int64    `json:"duration" yaml:"duration"`
	Desc           string   `json:"desc,omitempty" yaml:"desc,omitempty"`
	PackageURL     string   `json:"packageUrl,omitempty" yaml:"packageUrl,omitempty"`
	Custom         bool     `json:"custom,omitempty" yaml:"custom,omitempty"`
	Scale          *float64 `json:"scale,omitempty" yaml:"scale,omitempty"`
	Rotation       *float64 `json:"rotation,omitempty" yaml:"rotation,omitempty"`
	TranslationX   *float64 `json:"translationX,omitempty" yaml:"translationX,omitempty"`
	TranslationY   *float64 `json:"translationY,omitempty" yaml:"translationY,omitempty"`
	HorizontalFlip *bool    `json:"horizontalFlip,omitempty" yaml:"horizontalFlip,omitempty"`
	VerticalFlip   *bool    `json:"verticalFlip,omitempty" yaml:"verticalFlip,omitempty"`
	Z              *float64 `json:"z,omitempty" yaml:"z,omitempty"`
}

// Snapshot 应用状态的只读快照
type Snapshot struct {
	VideoClips       []VideoClip `json:"videoClips" yaml:"videoClips"`
	AudioClips       []AudioClip `json:"audioClips" yaml:"audioClips"`
	Captions         []Caption   `json:"captions" yaml:"captions"`
	Stickers         []Sticker   `json:"stickers" yaml:"stickers"`
	Template         *Template   `json:"template,omitempty" yaml:"template,omitempty"`
	VideoFrameWidth  int         `json:"videoFrameWidth" yaml:"videoFrameWidth"`
	VideoFrameHeight int         `json:"videoFrameHeight" yaml:"videoFrameHeight"`
}

// FindVideoClip 按 UUID 查找视频素材
func (s *Snapshot) FindVideoClip(uuid string) (VideoClip, bool) {
	for _, c := range s.VideoClips {
		if c.UUID == uuid {
			return c, true
		}
	}
	return VideoClip{}, false
}
