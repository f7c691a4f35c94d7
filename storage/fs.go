package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"ClipForge/model"
)

// ErrInvalidName 文件名为空或包含路径分隔符
var ErrInvalidName = errors.New("invalid asset file name")

// FSStore 本地资源目录，每种资源类型一个子目录
// 引擎只能读取真实文件路径，所以本地层直接落盘
type FSStore struct {
	root string
}

// NewFSStore 创建本地存储并准备好所有类型目录
func NewFSStore(root string) (*FSStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve asset root: %w", err)
	}
	for _, kind := range model.AllKinds() {
		if err := os.MkdirAll(filepath.Join(abs, string(kind)), 0755); err != nil {
			return nil, fmt.Errorf("create %s dir: %w", kind, err)
		}
	}
	return &FSStore{root: abs}, nil
}

func (s *FSStore) Root() string {
	return s.root
}

// Path 返回某类型下文件的绝对路径
func (s *FSStore) Path(kind model.AssetKind, name string) string {
	return filepath.Join(s.root, string(kind), name)
}

// ReadDir 列出类型目录下的文件名，目录不存在时返回空
func (s *FSStore) ReadDir(ctx context.Context, kind model.AssetKind) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(filepath.Join(s.root, string(kind)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s dir: %w", kind, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".tmp-") {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

func (s *FSStore) ReadFile(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

// WriteFile 写入文件并返回路径，先写临时文件再重命名
func (s *FSStore) WriteFile(ctx context.Context, kind model.AssetKind, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	dir := filepath.Join(s.root, string(kind))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create %s dir: %w", kind, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close %s: %w", name, err)
	}

	dst := filepath.Join(dir, name)
	if err := os.Rename(tmp.Name(), dst); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("rename %s: %w", name, err)
	}
	return dst, nil
}

// Remove 删除文件，文件不存在不算错误
func (s *FSStore) Remove(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
