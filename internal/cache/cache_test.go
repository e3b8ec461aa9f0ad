package cache

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"serial-service/config"
	"serial-service/internal/models"
	"serial-service/internal/store"
)

type fixture struct {
	store    *store.Store
	cache    *Cache
	storeCfg config.StoreConfig
	cacheCfg config.CacheConfig
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dir := t.TempDir()
	storeCfg := config.StoreConfig{
		Path:      filepath.Join(dir, "order.xlsx"),
		SheetName: "order",
		TableName: "ordertable",
	}
	require.NoError(t, store.CreateWorkbook(storeCfg))

	st, err := store.NewStore(storeCfg)
	require.NoError(t, err)

	cacheCfg := config.CacheConfig{Path: storeCfg.Path + ".cache.json"}
	return &fixture{
		store:    st,
		cache:    New(st, cacheCfg),
		storeCfg: storeCfg,
		cacheCfg: cacheCfg,
	}
}

func (fx *fixture) appendRows(t *testing.T, recs ...models.OrderItemRecord) {
	t.Helper()
	require.NoError(t, fx.store.ApplyChanges(context.Background(), store.ChangeSet{Appends: recs}))
}

// bumpModTime guarantees the workbook mtime visibly changes even on
// filesystems with coarse timestamp granularity.
func bumpModTime(t *testing.T, path string) {
	t.Helper()
	next := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, next, next))
}

func rec(rowID, itemIndex int64, orderNo, ptype string) models.OrderItemRecord {
	return models.OrderItemRecord{
		RowID:       rowID,
		OrderDate:   "2024-08-22",
		OrderNo:     orderNo,
		ProductType: ptype,
		ProductCode: "K-1",
		Quantity:    1,
		ItemIndex:   itemIndex,
		Serial:      "x",
	}
}

func TestSequenceStateFromEmptyStore(t *testing.T) {
	fx := newFixture(t)

	st, err := fx.cache.SequenceState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.SequenceState{}, st)
}

func TestRebuildGroupsRowsByOrder(t *testing.T) {
	fx := newFixture(t)
	fx.appendRows(t,
		rec(1, 1, "1001", "MF"),
		rec(2, 1, "1002", "فویلی"),
		rec(3, 2, "1001", "MR"),
	)

	rows, err := fx.cache.Order(context.Background(), "1001")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(1), rows[0].RowID)
	assert.Equal(t, int64(3), rows[1].RowID)

	st, err := fx.cache.SequenceState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.SequenceState{MaxGroupA: 2, MaxGroupB: 1, MaxRowID: 3}, st)
}

func TestInvalidateForcesRebuild(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	_, err := fx.cache.SequenceState(ctx)
	require.NoError(t, err)
	assert.FileExists(t, fx.cacheCfg.Path)

	fx.cache.Invalidate()
	assert.NoFileExists(t, fx.cacheCfg.Path)

	// Mutate the store while the cache is empty; the next read must see it.
	fx.appendRows(t, rec(1, 5, "1001", "MF"))
	bumpModTime(t, fx.storeCfg.Path)

	st, err := fx.cache.SequenceState(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), st.MaxGroupA)
}

func TestModTimeChangeInvalidatesEntry(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	_, err := fx.cache.SequenceState(ctx)
	require.NoError(t, err)

	// Another process touches the workbook behind the cache's back.
	f, err := excelize.OpenFile(fx.storeCfg.Path)
	require.NoError(t, err)
	row := []interface{}{7, "2024-08-22", "2000", "MU", "K", 1, 9, "9-1403-U", "", "", ""}
	require.NoError(t, f.SetSheetRow(fx.storeCfg.SheetName, "A2", &row))
	require.NoError(t, f.Save())
	require.NoError(t, f.Close())
	bumpModTime(t, fx.storeCfg.Path)

	st, err := fx.cache.SequenceState(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(9), st.MaxGroupA, "a touched workbook must force a rebuild")
	assert.Equal(t, int64(7), st.MaxRowID)
}

func TestSideFileReusedAcrossProcessStarts(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	fx.appendRows(t, rec(1, 1, "1001", "MF"))
	_, err := fx.cache.SequenceState(ctx)
	require.NoError(t, err)

	// Tamper with the persisted state, keeping the mtime stamp intact: a
	// second cache that trusts the side file will reflect the tampered
	// value instead of rescanning.
	data, err := os.ReadFile(fx.cacheCfg.Path)
	require.NoError(t, err)
	var e Entry
	require.NoError(t, json.Unmarshal(data, &e))
	e.State.MaxGroupA = 77
	data, err = json.Marshal(&e)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(fx.cacheCfg.Path, data, 0o644))

	second := New(fx.store, fx.cacheCfg)
	st, err := second.SequenceState(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(77), st.MaxGroupA, "an mtime-matching side file must be reused without a rescan")
}

func TestCorruptSideFileDegradesToRebuild(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	fx.appendRows(t, rec(1, 3, "1001", "MF"))
	require.NoError(t, os.WriteFile(fx.cacheCfg.Path, []byte("{not json"), 0o644))

	st, err := fx.cache.SequenceState(ctx)
	require.NoError(t, err, "corruption must never surface to the caller")
	assert.Equal(t, int64(3), st.MaxGroupA)
}

func TestStaleSideFileIgnored(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	_, err := fx.cache.SequenceState(ctx)
	require.NoError(t, err)

	fx.appendRows(t, rec(1, 4, "1001", "MF"))
	bumpModTime(t, fx.storeCfg.Path)

	// A fresh cache sees an mtime mismatch in the side file and rebuilds.
	second := New(fx.store, fx.cacheCfg)
	st, err := second.SequenceState(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), st.MaxGroupA)
}
