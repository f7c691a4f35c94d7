package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ClipForge/db"
	"ClipForge/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AssetRepository 结构化缓存层，按 (store, identity) 存取资源字节
// 未命中时返回 nil, nil
type AssetRepository interface {
	Get(ctx context.Context, store model.AssetKind, identity string) (*model.CachedAsset, error)
	Put(ctx context.Context, asset *model.CachedAsset) error
}

// gormAssetRepository GORM 实现
type gormAssetRepository struct {
	db *gorm.DB
}

// NewGormAssetRepository 创建 GORM 资源仓库
func NewGormAssetRepository(db *gorm.DB) AssetRepository {
	return &gormAssetRepository{db: db}
}

func (r *gormAssetRepository) Get(ctx context.Context, store model.AssetKind, identity string) (*model.CachedAsset, error) {
	var asset model.CachedAsset
	err := r.db.WithContext(ctx).
		Where("store = ? AND identity = ?", string(store), identity).
		First(&asset).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &asset, nil
}

// Put 覆盖写入，同一 identity 只保留最新版本
func (r *gormAssetRepository) Put(ctx context.Context, asset *model.CachedAsset) error {
	if asset.UpdatedAt.IsZero() {
		asset.UpdatedAt = time.Now()
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "store"}, {Name: "identity"}},
		DoUpdates: clause.AssignmentColumns([]string{"source_name", "data", "updated_at"}),
	}).Create(asset).Error
}

// sqlAssetRepository database/sql 实现，支持 MySQL 和 SQLite
type sqlAssetRepository struct {
	DB      *sql.DB
	dialect db.Dialect
}

// NewSQLAssetRepository creates a repository over an open connection.
func NewSQLAssetRepository(conn *sql.DB, dialect db.Dialect) AssetRepository {
	return &sqlAssetRepository{DB: conn, dialect: dialect}
}

func (r *sqlAssetRepository) Get(ctx context.Context, store model.AssetKind, identity string) (*model.CachedAsset, error) {
	query := `SELECT store, identity, source_name, data, updated_at FROM cached_assets WHERE store = ? AND identity = ?`
	row := r.DB.QueryRowContext(ctx, query, string(store), identity)

	asset := &model.CachedAsset{}
	err := row.Scan(&asset.Store, &asset.Identity, &asset.SourceName, &asset.Data, &asset.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("error scanning cached asset %s/%s: %w", store, identity, err)
	}
	return asset, nil
}

func (r *sqlAssetRepository) Put(ctx context.Context, asset *model.CachedAsset) error {
	var query string
	switch r.dialect {
	case db.DialectMySQL:
		query = `INSERT INTO cached_assets (store, identity, source_name, data, updated_at) VALUES (?, ?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE source_name = VALUES(source_name), data = VALUES(data), updated_at = VALUES(updated_at)`
	case db.DialectSQLite:
		query = `INSERT INTO cached_assets (store, identity, source_name, data, updated_at) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(store, identity) DO UPDATE SET source_name = excluded.source_name, data = excluded.data, updated_at = excluded.updated_at`
	default:
		return fmt.Errorf("unsupported dialect %q", r.dialect)
	}

	if asset.UpdatedAt.IsZero() {
		asset.UpdatedAt = time.Now().UTC()
	}
	if _, err := r.DB.ExecContext(ctx, query, asset.Store, asset.Identity, asset.SourceName, asset.Data, asset.UpdatedAt); err != nil {
		return fmt.Errorf("failed to put cached asset %s/%s: %w", asset.Store, asset.Identity, err)
	}
	return nil
}
