// Package project adapts an application state snapshot into the model the
// composer consumes. Sources are read-only; the composer never writes back.
package project

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"ClipForge/model"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Source 只读快照来源
type Source interface {
	Snapshot(ctx context.Context) (*model.Snapshot, error)
}

// StaticSource 内存快照，Set 之后的读取都看到新值
type StaticSource struct {
	mu   sync.RWMutex
	snap model.Snapshot
}

func NewStaticSource(snap *model.Snapshot) *StaticSource {
	s := &StaticSource{}
	if snap != nil {
		s.snap = *snap
	}
	return s
}

func (s *StaticSource) Set(snap *model.Snapshot) {
	s.mu.Lock()
	s.snap = *snap
	s.mu.Unlock()
}

func (s *StaticSource) Snapshot(ctx context.Context) (*model.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := s.snap
	return &cp, nil
}

// FileSource 每次读取都重新解析项目文件
type FileSource struct {
	Path string
}

func (s FileSource) Snapshot(ctx context.Context) (*model.Snapshot, error) {
	return LoadFile(s.Path)
}

// LoadFile 读取 YAML 或 JSON 项目文件
func LoadFile(path string) (*model.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open project %s: %w", path, err)
	}
	defer f.Close()
	snap, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("project %s: %w", path, err)
	}
	return snap, nil
}

// Load 解析项目并补全缺省字段
func Load(r io.Reader) (*model.Snapshot, error) {
	var snap model.Snapshot
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&snap); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := Normalize(&snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// stableID 按位置派生 ID，同一份项目文件每次读取得到相同的 ID
func stableID(format string, args ...interface{}) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf(format, args...))).String()
}

// Normalize 补全 ID 和素材类型并校验切片区间
func Normalize(snap *model.Snapshot) error {
	for i := range snap.VideoClips {
		c := &snap.VideoClips[i]
		if c.UUID == "" {
			c.UUID = stableID("clipforge:video/%d", i)
		}
		if c.VideoType == "" {
			c.VideoType = model.ClipVideo
		}
		if c.VideoType != model.ClipVideo && c.VideoType != model.ClipImage {
			return fmt.Errorf("clip %s: unknown videoType %q", c.UUID, c.VideoType)
		}
		for j := range c.SplitList {
			seg := &c.SplitList[j]
			if seg.ID == "" {
				seg.ID = stableID("clipforge:video/%s/segment/%d", c.UUID, j)
			}
			if seg.CaptureOut < seg.CaptureIn {
				return fmt.Errorf("clip %s segment %d: captureOut %d before captureIn %d",
					c.UUID, j, seg.CaptureOut, seg.CaptureIn)
			}
		}
	}
	for i := range snap.AudioClips {
		if snap.AudioClips[i].ID == "" {
			snap.AudioClips[i].ID = stableID("clipforge:audio/%d", i)
		}
	}
	for i := range snap.Captions {
		if snap.Captions[i].ID == "" {
			snap.Captions[i].ID = stableID("clipforge:caption/%d", i)
		}
	}
	for i := range snap.Stickers {
		if snap.Stickers[i].ID == "" {
			snap.Stickers[i].ID = stableID("clipforge:sticker/%d", i)
		}
	}
	return nil
}
