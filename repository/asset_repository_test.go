package repository

import (
	"context"
	"path/filepath"
	"testing"

	"ClipForge/db"
	"ClipForge/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteRepo(t *testing.T) AssetRepository {
	t.Helper()
	ctx := context.Background()
	conn, err := db.OpenSQLite(ctx, filepath.Join(t.TempDir(), "assets.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, db.InitSchema(ctx, conn, db.DialectSQLite))
	return NewSQLAssetRepository(conn, db.DialectSQLite)
}

func TestSQLAssetRepositoryMiss(t *testing.T) {
	repo := newSQLiteRepo(t)
	got, err := repo.Get(context.Background(), model.KindFont, "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLAssetRepositoryPutOverwrites(t *testing.T) {
	ctx := context.Background()
	repo := newSQLiteRepo(t)

	require.NoError(t, repo.Put(ctx, &model.CachedAsset{
		Store: string(model.KindCaptionStyle), Identity: "ABC", SourceName: "ABC.1.captionstyle", Data: []byte("v1"),
	}))
	require.NoError(t, repo.Put(ctx, &model.CachedAsset{
		Store: string(model.KindCaptionStyle), Identity: "ABC", SourceName: "ABC.2.captionstyle", Data: []byte("v2"),
	}))

	got, err := repo.Get(ctx, model.KindCaptionStyle, "ABC")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "ABC.2.captionstyle", got.SourceName)
	assert.Equal(t, []byte("v2"), got.Data)
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestSQLAssetRepositoryStoresArePartitioned(t *testing.T) {
	ctx := context.Background()
	repo := newSQLiteRepo(t)

	require.NoError(t, repo.Put(ctx, &model.CachedAsset{Store: string(model.KindLicense), Identity: "ABC", SourceName: "ABC.lic", Data: []byte("lic")}))

	got, err := repo.Get(ctx, model.KindVideoFx, "ABC")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = repo.Get(ctx, model.KindLicense, "ABC")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "lic", string(got.Data))
}
