package event

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzpsarthak13/recordstore/internal/core"
	"github.com/rzpsarthak13/recordstore/internal/database"
	"github.com/rzpsarthak13/recordstore/internal/keygen"
	"github.com/rzpsarthak13/recordstore/internal/table"
	"github.com/rzpsarthak13/recordstore/internal/testutil"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	logger := testutil.NewTestLogger(t)
	conn, err := database.Open(context.Background(), &database.Config{Driver: "sqlite"}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	store, err := Open(context.Background(), conn, table.WithLogger(logger))
	require.NoError(t, err)
	return store
}

func TestAverageStatus(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	avg, err := store.Average(ctx, ColumnStatus.Column(), false)
	require.NoError(t, err)
	assert.Nil(t, avg, "average of an empty table is absent")

	n, err := store.Count(ctx, nil, false)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	require.NoError(t, store.Insert(ctx, Make(WithName(1), WithStatus(2)), false))
	require.NoError(t, store.Insert(ctx, Make(WithName(1), WithStatus(4)), false))

	avg, err = store.Average(ctx, ColumnStatus.Column(), false)
	require.NoError(t, err)
	require.NotNil(t, avg)
	assert.InDelta(t, 3.0, *avg, 1e-9)

	n, err = store.Count(ctx, nil, false)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	withOptionals := Make(WithName(7), WithStatus(1), WithCode(404), WithNote("pump offline"))
	bare := Make(WithName(8), WithStatus(3))
	require.NoError(t, store.InsertAll(ctx, []*AlarmEvent{withOptionals, bare}, false))

	for _, want := range []*AlarmEvent{withOptionals, bare} {
		got, err := store.Seek(ctx, want.UUID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, *want, *got)
	}

	got, err := store.Seek(ctx, bare.UUID)
	require.NoError(t, err)
	assert.Nil(t, got.Code)
	assert.Nil(t, got.Note)
}

func TestSeekMissing(t *testing.T) {
	store := openStore(t)
	got, err := store.Seek(context.Background(), 12345)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDeleteThenSeek(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	e := Make(WithName(1), WithStatus(1))
	require.NoError(t, store.Insert(ctx, e, false))
	require.NoError(t, store.Delete(ctx, e.UUID))

	got, err := store.Seek(ctx, e.UUID)
	require.NoError(t, err)
	assert.Nil(t, got)

	// deleting again is not an error
	require.NoError(t, store.Delete(ctx, e.UUID))
}

func TestUpdateChangesOnlyNonKeyColumns(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	e := Make(WithName(1), WithStatus(1), WithTimestamp(1000))
	other := Make(WithName(2), WithStatus(2), WithTimestamp(2000))
	require.NoError(t, store.InsertAll(ctx, []*AlarmEvent{e, other}, false))

	e.Status = 5
	e.Note = strPtr("acknowledged")
	require.NoError(t, store.Update(ctx, e, false))

	got, err := store.Seek(ctx, e.UUID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, e.UUID, got.UUID)
	assert.Equal(t, int64(5), got.Status)
	assert.Equal(t, int64(1000), got.Timestamp)
	require.NotNil(t, got.Note)
	assert.Equal(t, "acknowledged", *got.Note)

	untouched, err := store.Seek(ctx, other.UUID)
	require.NoError(t, err)
	assert.Equal(t, *other, *untouched)
}

func TestUpdateWithRefresh(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	e := Make(WithName(1), WithStatus(1), WithTimestamp(1000))
	require.NoError(t, store.Insert(ctx, e, false))

	e.Status = 7
	require.NoError(t, store.Update(ctx, e, true))
	assert.Equal(t, int64(1000), e.Timestamp)

	got, err := store.Seek(ctx, e.UUID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(1000), got.Timestamp)
	assert.Equal(t, int64(7), got.Status)
}

func TestCreateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	require.NoError(t, store.Insert(ctx, Make(WithName(1), WithStatus(1)), false))
	require.NoError(t, store.Create(ctx, true))

	n, err := store.Count(ctx, nil, false)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	err = store.Create(ctx, false)
	assert.True(t, core.IsExecutionError(err))
}

func TestInsertDuplicateAndReplace(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	e := Make(WithName(1), WithStatus(1))
	require.NoError(t, store.Insert(ctx, e, false))

	dup := *e
	dup.Status = 9
	err := store.Insert(ctx, &dup, false)
	assert.True(t, core.IsExecutionError(err))

	require.NoError(t, store.Insert(ctx, &dup, true))
	got, err := store.Seek(ctx, e.UUID)
	require.NoError(t, err)
	assert.Equal(t, int64(9), got.Status)
}

func TestListAndSelect(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	var events []*AlarmEvent
	for i := int64(1); i <= 5; i++ {
		events = append(events, Make(WithName(i), WithStatus(6-i), WithTimestamp(i*100)))
	}
	require.NoError(t, store.InsertAll(ctx, events, false))

	keys, err := store.List(ctx, core.SelectOptions{})
	require.NoError(t, err)
	assert.Len(t, keys, 5)

	keys, err = store.List(ctx, core.SelectOptions{OrderBy: ColumnStatus.Column(), Asc: true, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []int64{events[4].UUID, events[3].UUID}, keys)

	rows, err := store.Select(ctx, core.SelectOptions{OrderBy: ColumnTimestamp.Column(), Asc: false, Offset: 3})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, *events[1], rows[0])
	assert.Equal(t, *events[0], rows[1])

	// results are copies: mutating them leaves the table unchanged
	rows[0].Status = 99
	again, err := store.Seek(ctx, events[1].UUID)
	require.NoError(t, err)
	assert.Equal(t, events[1].Status, again.Status)

	none, err := store.Select(ctx, core.SelectOptions{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestAggregates(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	require.NoError(t, store.InsertAll(ctx, []*AlarmEvent{
		Make(WithName(1), WithStatus(2), WithCode(10)),
		Make(WithName(1), WithStatus(2)),
		Make(WithName(2), WithStatus(5), WithCode(10)),
	}, false))

	sum, err := store.Sum(ctx, ColumnStatus.Column(), false)
	require.NoError(t, err)
	assert.InDelta(t, 9.0, *sum, 1e-9)

	distinctSum, err := store.Sum(ctx, ColumnStatus.Column(), true)
	require.NoError(t, err)
	assert.InDelta(t, 7.0, *distinctSum, 1e-9)

	lo, err := store.Min(ctx, ColumnStatus.Column(), false)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, *lo, 1e-9)

	hi, err := store.Max(ctx, ColumnStatus.Column(), false)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, *hi, 1e-9)

	codes, err := store.Count(ctx, ColumnCode.Column(), false)
	require.NoError(t, err)
	assert.Equal(t, int64(2), codes)

	distinctCodes, err := store.Count(ctx, ColumnCode.Column(), true)
	require.NoError(t, err)
	assert.Equal(t, int64(1), distinctCodes)

	viaAggregate, err := store.Aggregate(ctx, core.AggregateCount, nil, false)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, *viaAggregate, 1e-9)

	_, err = store.Average(ctx, nil, false)
	assert.ErrorIs(t, err, core.ErrColumnRequired)
}

func TestDrop(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	require.NoError(t, store.Drop(ctx))
	_, err := store.Count(ctx, nil, false)
	assert.True(t, core.IsExecutionError(err) || core.IsPrepareError(err))
}

func TestMakeAssignsDistinctKeys(t *testing.T) {
	f := &Factory{
		Keys: keygen.NewTimestampWithClock(func() time.Time { return time.UnixMilli(5) }),
		Now:  func() time.Time { return time.UnixMilli(42) },
	}
	a := f.Make()
	b := f.Make(WithName(3))
	assert.NotEqual(t, a.UUID, b.UUID)
	assert.Equal(t, int64(42), a.Timestamp)
	assert.Equal(t, int64(3), b.Name)
	assert.Nil(t, a.Code)
	assert.Nil(t, a.Note)
}

func TestParseColumn(t *testing.T) {
	c, ok := ParseColumn("status")
	require.True(t, ok)
	assert.Equal(t, ColumnStatus, c)

	c, ok = ParseColumn("NOTE")
	require.True(t, ok)
	assert.Equal(t, "note", c.String())

	_, ok = ParseColumn("missing")
	assert.False(t, ok)
}

func strPtr(s string) *string { return &s }
