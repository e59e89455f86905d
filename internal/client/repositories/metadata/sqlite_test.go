package metadata

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE metadata (
  key   TEXT PRIMARY KEY,
  value BLOB
);
`)
	require.NoError(t, err)

	return db
}

func TestGetSetDelete(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	got, err := r.Get(ctx, KeyNodeName)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, r.Set(ctx, KeyNodeName, []byte("alpha")))
	got, err = r.Get(ctx, KeyNodeName)
	require.NoError(t, err)
	assert.Equal(t, []byte("alpha"), got)

	// Overwrite.
	require.NoError(t, r.Set(ctx, KeyNodeName, []byte("beta")))
	got, err = r.Get(ctx, KeyNodeName)
	require.NoError(t, err)
	assert.Equal(t, []byte("beta"), got)

	require.NoError(t, r.Delete(ctx, KeyNodeName))
	got, err = r.Get(ctx, KeyNodeName)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, r.Delete(ctx, "never existed"))
}

func TestWatermark(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	wm, err := r.Watermark(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), wm)

	require.NoError(t, r.SetWatermark(ctx, 1756000020))
	wm, err = r.Watermark(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(1756000020), wm)

	// Stored as readable decimal text.
	raw, err := r.Get(ctx, KeySyncWatermark)
	require.NoError(t, err)
	assert.Equal(t, "1756000020", string(raw))
}

func TestWatermark_CorruptValue(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, KeySyncWatermark, []byte("not a number")))
	_, err := r.Watermark(ctx)
	assert.Error(t, err)
}
