package model

import (
	"net/url"
	"path"
	"strings"
	"time"
)

// AssetKind 资源类型，同时也是本地存储目录名和结构化缓存的分区名
type AssetKind string

const (
	KindFont            AssetKind = "font"
	KindAudio           AssetKind = "audio"
	KindPlaylist        AssetKind = "m3u8"
	KindCaptionStyle    AssetKind = "captionstyle"
	KindAnimatedSticker AssetKind = "animatedsticker"
	KindVideoFx         AssetKind = "videofx"
	KindVideoTransition AssetKind = "videotransition"
	KindCompoundCaption AssetKind = "compoundcaption"
	KindARScene         AssetKind = "arscene"
	KindLicense         AssetKind = "lic"
	KindCustom          AssetKind = "resource" // 自定义素材（用户上传的贴纸等）
	KindPackage         AssetKind = "package"  // 无法识别的通用素材包
)

// managedKinds 按文件名包含关系识别的类型，顺序即匹配优先级
var managedKinds = []AssetKind{
	KindPlaylist,
	KindCompoundCaption,
	KindCaptionStyle,
	KindAnimatedSticker,
	KindVideoTransition,
	KindVideoFx,
	KindARScene,
}

// NeedsInstall 是否需要调用引擎安装
func (k AssetKind) NeedsInstall() bool {
	switch k {
	case KindCaptionStyle, KindAnimatedSticker, KindVideoFx, KindVideoTransition,
		KindCompoundCaption, KindARScene, KindPackage:
		return true
	}
	return false
}

// AllKinds 所有本地存储目录
func AllKinds() []AssetKind {
	return []AssetKind{
		KindFont, KindAudio, KindPlaylist, KindCaptionStyle, KindAnimatedSticker,
		KindVideoFx, KindVideoTransition, KindCompoundCaption, KindARScene,
		KindLicense, KindCustom, KindPackage,
	}
}

// AssetRef 远程资源定位
type AssetRef struct {
	URL    string `json:"url" yaml:"url"`
	Custom bool   `json:"custom,omitempty" yaml:"custom,omitempty"`
	// CheckLicense 安装时附带授权文件
	CheckLicense bool `json:"checkLicense,omitempty" yaml:"checkLicense,omitempty"`
}

// IsEmpty 没有请求任何资源
func (r AssetRef) IsEmpty() bool {
	return strings.TrimSpace(r.URL) == ""
}

// FileName 返回定位地址中的文件名，不含查询串
// 例如 https://x.com/E6AD8162-1394-44F5-BA22-6402C828B12F.2.captionstyle?a=1
// 返回 E6AD8162-1394-44F5-BA22-6402C828B12F.2.captionstyle
func (r AssetRef) FileName() string {
	raw := strings.TrimSpace(r.URL)
	if u, err := url.Parse(raw); err == nil && u.Path != "" {
		return path.Base(u.Path)
	}
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		raw = raw[:i]
	}
	return path.Base(raw)
}

// Kind 根据文件扩展名或包含的类型名推断资源类型
func (r AssetRef) Kind() AssetKind {
	if r.Custom {
		return KindCustom
	}
	return KindOf(r.FileName())
}

// KindOf 根据文件名推断资源类型
func KindOf(name string) AssetKind {
	lower := strings.ToLower(name)
	switch strings.TrimPrefix(path.Ext(lower), ".") {
	case "ttc", "ttf", "otf":
		return KindFont
	case "m4a", "mp3", "wav":
		return KindAudio
	case "lic":
		return KindLicense
	}
	for _, k := range managedKinds {
		if strings.Contains(lower, string(k)) {
			return k
		}
	}
	return KindPackage
}

// Identity 缓存与安装的关联键
// m3u8 保留文件名前三段，其他类型只保留第一段
func (r AssetRef) Identity() string {
	return IdentityOf(r.FileName(), r.Kind())
}

// IdentityOf 按类型截取文件名前缀
func IdentityOf(name string, kind AssetKind) string {
	parts := strings.Split(name, ".")
	if kind == KindPlaylist {
		if len(parts) > 3 {
			parts = parts[:3]
		}
		return strings.Join(parts, ".")
	}
	return parts[0]
}

// SecureURL 强制使用 https
func (r AssetRef) SecureURL() string {
	raw := strings.TrimSpace(r.URL)
	if strings.HasPrefix(strings.ToLower(raw), "http://") {
		return "https://" + raw[len("http://"):]
	}
	return raw
}

// CachedAsset 结构化缓存中的一条资源记录
type CachedAsset struct {
	Store      string    `json:"store" gorm:"primaryKey;size:32"`
	Identity   string    `json:"identity" gorm:"primaryKey;size:191"`
	SourceName string    `json:"sourceName" gorm:"size:255;not null"`
	Data       []byte    `json:"-" gorm:"type:longblob"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// TableName 指定表名
func (CachedAsset) TableName() string {
	return "cached_assets"
}
