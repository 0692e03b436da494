package table

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzpsarthak13/recordstore/internal/core"
	"github.com/rzpsarthak13/recordstore/internal/database"
	"github.com/rzpsarthak13/recordstore/internal/sqlgen"
	"github.com/rzpsarthak13/recordstore/internal/testutil"
)

// reading has a composite key to exercise multi-column keys.
type reading struct {
	Sensor int64
	At     int64
	Value  *float64
	Unit   string
}

type readingKey struct {
	Sensor int64
	At     int64
}

func readingDescriptor() *core.TableDescriptor {
	return &core.TableDescriptor{
		Name: "reading",
		Columns: []core.Column{
			{Name: "sensor", Type: core.TypeInteger, Constraints: core.ConstraintPrimaryKey},
			{Name: "value", Type: core.TypeReal},
			{Name: "at", Type: core.TypeInteger, Constraints: core.ConstraintPrimaryKey},
			{Name: "unit", Type: core.TypeText, Constraints: core.ConstraintNotNull},
		},
		Keys: []string{"sensor", "at"},
	}
}

type readingMapper struct {
	skipUnit bool
}

func (m readingMapper) Identity(r *reading) readingKey { return readingKey{r.Sensor, r.At} }

func (m readingMapper) KeyValues(k readingKey) []core.Value {
	return []core.Value{core.Int(k.Sensor), core.Int(k.At)}
}

func (m readingMapper) RestoreKey(stmt core.Statement) (readingKey, error) {
	sensor, err := stmt.ColumnInt64(0)
	if err != nil {
		return readingKey{}, err
	}
	at, err := stmt.ColumnInt64(1)
	return readingKey{sensor, at}, err
}

func (m readingMapper) Store(r *reading, stmt core.Statement) error {
	if err := stmt.Bind(0, core.Int(r.Sensor)); err != nil {
		return err
	}
	if err := stmt.Bind(1, core.MaybeReal(r.Value)); err != nil {
		return err
	}
	if err := stmt.Bind(2, core.Int(r.At)); err != nil {
		return err
	}
	if m.skipUnit {
		return nil
	}
	return stmt.Bind(3, core.Text(r.Unit))
}

func (m readingMapper) Restore(r *reading, stmt core.Statement) error {
	var err error
	if r.Sensor, err = stmt.ColumnInt64(0); err != nil {
		return err
	}
	if r.Value, err = stmt.ColumnMaybeDouble(1); err != nil {
		return err
	}
	if r.At, err = stmt.ColumnInt64(2); err != nil {
		return err
	}
	r.Unit, err = stmt.ColumnText(3)
	return err
}

type fakeQueue struct {
	events []*core.ChangeEvent
	err    error
}

func (q *fakeQueue) Enqueue(_ context.Context, e *core.ChangeEvent) error {
	if q.err != nil {
		return q.err
	}
	q.events = append(q.events, e)
	return nil
}

func (q *fakeQueue) Dequeue(context.Context, int) ([]*core.ChangeEvent, error) { return nil, nil }
func (q *fakeQueue) Size() int                                                  { return len(q.events) }
func (q *fakeQueue) Close() error                                               { return nil }

type fakeLifecycle struct {
	created, dropped []string
}

func (l *fakeLifecycle) ExecuteCreateHooks(_ context.Context, d *core.TableDescriptor) error {
	l.created = append(l.created, d.Name)
	return nil
}

func (l *fakeLifecycle) ExecuteDropHooks(_ context.Context, d *core.TableDescriptor) error {
	l.dropped = append(l.dropped, d.Name)
	return nil
}

func f64(v float64) *float64 { return &v }

func newSQLiteTable(t *testing.T, opts ...Option) *Table[reading, readingKey] {
	t.Helper()
	logger := testutil.NewTestLogger(t)
	conn, err := database.Open(context.Background(), &database.Config{Driver: "sqlite"}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	tbl, err := New[reading, readingKey](conn, readingDescriptor(), readingMapper{}, append(opts, WithLogger(logger))...)
	require.NoError(t, err)
	require.NoError(t, tbl.Create(context.Background(), true))
	return tbl
}

func TestNew_RejectsInvalidDescriptor(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	conn := database.NewSQLConnection(db, sqlgen.SQLite, nil)

	desc := readingDescriptor()
	desc.Keys = []string{"nope"}
	_, err = New[reading, readingKey](conn, desc, readingMapper{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid table descriptor")
}

func TestCompositeKeyCRUD(t *testing.T) {
	ctx := context.Background()
	queue := &fakeQueue{}
	lc := &fakeLifecycle{}
	tbl := newSQLiteTable(t, WithChangeQueue(queue), WithLifecycle(lc))

	a := &reading{Sensor: 1, At: 10, Value: f64(1.5), Unit: "bar"}
	b := &reading{Sensor: 1, At: 20, Unit: "bar"}
	require.NoError(t, tbl.InsertAll(ctx, []*reading{a, b}, false))

	got, err := tbl.Seek(ctx, readingKey{1, 10})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, *a, *got)

	// the key columns are bound last even though "at" sits between value and unit
	a.Value = f64(2.5)
	a.Unit = "psi"
	require.NoError(t, tbl.Update(ctx, a, false))
	got, err = tbl.Seek(ctx, readingKey{1, 10})
	require.NoError(t, err)
	assert.Equal(t, "psi", got.Unit)
	assert.InDelta(t, 2.5, *got.Value, 1e-9)

	keys, err := tbl.List(ctx, core.SelectOptions{OrderBy: &readingDescriptor().Columns[2], Asc: false})
	require.NoError(t, err)
	assert.Equal(t, []readingKey{{1, 20}, {1, 10}}, keys)

	require.NoError(t, tbl.DeleteAll(ctx, keys))
	n, err := tbl.Count(ctx, nil, false)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	require.NoError(t, tbl.Drop(ctx))

	require.Len(t, queue.events, 6)
	assert.Equal(t, core.OperationInsert, queue.events[0].Operation)
	assert.Equal(t, "1:10", queue.events[0].Key)
	assert.Equal(t, "bar", queue.events[0].Data["unit"])
	assert.Equal(t, core.OperationUpdate, queue.events[2].Operation)
	assert.Equal(t, "psi", queue.events[2].Data["unit"])
	assert.Equal(t, core.OperationDelete, queue.events[3].Operation)
	assert.Nil(t, queue.events[3].Data)
	assert.Equal(t, core.OperationDrop, queue.events[5].Operation)
	assert.NotEmpty(t, queue.events[0].ID)
	assert.NotEqual(t, queue.events[0].ID, queue.events[1].ID)

	assert.Equal(t, []string{"reading"}, lc.created)
	assert.Equal(t, []string{"reading"}, lc.dropped)
}

func TestPublishFailureDoesNotFailWrite(t *testing.T) {
	ctx := context.Background()
	tbl := newSQLiteTable(t, WithChangeQueue(&fakeQueue{err: errors.New("queue full")}))

	require.NoError(t, tbl.Insert(ctx, &reading{Sensor: 1, At: 1, Unit: "bar"}, false))
	got, err := tbl.Seek(ctx, readingKey{1, 1})
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestNotNullRejectedBeforeExecution(t *testing.T) {
	ctx := context.Background()
	tbl := newSQLiteTable(t)

	err := tbl.Insert(ctx, &reading{Sensor: 1, At: 1}, false)
	require.NoError(t, err, "empty string is not NULL")

	tbl.mapper = readingMapper{skipUnit: true}
	err = tbl.Insert(ctx, &reading{Sensor: 2, At: 1}, false)
	var se *core.SchemaError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "unit", se.Column)
}

func TestBatchIsNotAtomic(t *testing.T) {
	ctx := context.Background()
	tbl := newSQLiteTable(t)

	batch := []*reading{
		{Sensor: 1, At: 1, Unit: "bar"},
		{Sensor: 1, At: 2, Unit: "bar"},
		{Sensor: 1, At: 1, Unit: "dup"},
		{Sensor: 1, At: 3, Unit: "bar"},
	}
	err := tbl.InsertAll(ctx, batch, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 3 of 4")
	assert.True(t, core.IsExecutionError(err))

	n, err := tbl.Count(ctx, nil, false)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestAggregateValidation(t *testing.T) {
	ctx := context.Background()
	tbl := newSQLiteTable(t)

	_, err := tbl.Aggregate(ctx, core.AggregateFunc("MEDIAN"), nil, false)
	require.Error(t, err)

	_, err = tbl.Max(ctx, nil, false)
	assert.ErrorIs(t, err, core.ErrColumnRequired)

	_, err = tbl.Max(ctx, &core.Column{Name: "ghost"}, false)
	require.Error(t, err)

	v, err := tbl.Max(ctx, &readingDescriptor().Columns[1], false)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestPrepareFailurePropagates(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	conn := database.NewSQLConnection(db, sqlgen.Postgres, testutil.NewTestLogger(t))

	tbl, err := New[reading, readingKey](conn, readingDescriptor(), readingMapper{})
	require.NoError(t, err)
	ctx := context.Background()

	mock.ExpectPrepare(regexp.QuoteMeta(`SELECT "sensor", "value", "at", "unit" FROM "reading" WHERE`)).
		WillReturnError(assert.AnError)
	_, err = tbl.Seek(ctx, readingKey{1, 1})
	assert.True(t, core.IsPrepareError(err))
	assert.ErrorIs(t, err, assert.AnError)

	mock.ExpectPrepare(regexp.QuoteMeta(`UPDATE "reading" SET "value" = $1, "unit" = $2 WHERE "sensor" = $3 AND "at" = $4`)).
		ExpectExec().
		WithArgs(nil, "bar", int64(1), int64(2)).
		WillReturnError(assert.AnError)
	err = tbl.Update(ctx, &reading{Sensor: 1, At: 2, Unit: "bar"}, false)
	assert.True(t, core.IsExecutionError(err))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateRemap(t *testing.T) {
	assert.Equal(t, []int{2, 0, 3, 1}, updateRemap(readingDescriptor()))
}

// unitMapper normalizes the unit on refresh.
type unitMapper struct {
	readingMapper
}

func (unitMapper) Refresh(r *reading) { r.Unit = "kPa" }

func TestUpdateRefresh(t *testing.T) {
	ctx := context.Background()
	conn, err := database.Open(ctx, &database.Config{Driver: "sqlite"}, testutil.NewTestLogger(t))
	require.NoError(t, err)
	defer conn.Close()

	tbl, err := New[reading, readingKey](conn, readingDescriptor(), unitMapper{})
	require.NoError(t, err)
	require.NoError(t, tbl.Create(ctx, false))

	r := &reading{Sensor: 1, At: 10, Unit: "bar"}
	require.NoError(t, tbl.Insert(ctx, r, false))

	require.NoError(t, tbl.Update(ctx, r, false))
	got, err := tbl.Seek(ctx, readingKey{1, 10})
	require.NoError(t, err)
	assert.Equal(t, "bar", got.Unit)

	require.NoError(t, tbl.Update(ctx, r, true))
	got, err = tbl.Seek(ctx, readingKey{1, 10})
	require.NoError(t, err)
	assert.Equal(t, "kPa", got.Unit)
}
