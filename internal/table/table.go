// Package table provides the generic CRUD and aggregate API over one
// entity type. SQL comes from the connection's generator; entity fields
// move in and out of statements through a Mapper.
package table

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rzpsarthak13/recordstore/internal/core"
	"github.com/rzpsarthak13/recordstore/internal/schema"
)

// Mapper moves an entity of type E with key type K in and out of
// statements. Store and Restore work in descriptor column order.
type Mapper[E any, K comparable] interface {
	// Identity returns the primary key of e.
	Identity(e *E) K

	// KeyValues returns the key as bindable values in key order.
	KeyValues(k K) []core.Value

	// RestoreKey reads a key from a row holding only the key columns.
	RestoreKey(stmt core.Statement) (K, error)

	// Store binds every column of e at positions 0..n-1.
	Store(e *E, stmt core.Statement) error

	// Restore fills e from the current row. NULL cells become absent fields.
	Restore(e *E, stmt core.Statement) error
}

// Refresher is implemented by mappers that adjust an entity right
// before it is written back by Update.
type Refresher[E any] interface {
	Refresh(e *E)
}

// Table is the CRUD and aggregate API for one entity type. Every read
// returns fresh copies. A Table is not safe for concurrent use.
type Table[E any, K comparable] struct {
	conn       core.Connection
	desc       *core.TableDescriptor
	mapper     Mapper[E, K]
	gen        core.SQLGenerator
	validator  *schema.SchemaValidator
	translator *schema.Translator
	queue      core.ChangeQueue
	lifecycle  Lifecycle
	logger     *slog.Logger
}

// New returns the table for desc on conn.
func New[E any, K comparable](conn core.Connection, desc *core.TableDescriptor, mapper Mapper[E, K], opts ...Option) (*Table[E, K], error) {
	if conn == nil {
		return nil, fmt.Errorf("connection is required")
	}
	if mapper == nil {
		return nil, fmt.Errorf("mapper is required")
	}

	validator := schema.NewSchemaValidator(desc)
	if err := validator.ValidateDescriptor(); err != nil {
		return nil, fmt.Errorf("invalid table descriptor: %w", err)
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}

	return &Table[E, K]{
		conn:       conn,
		desc:       desc,
		mapper:     mapper,
		gen:        conn.SQLFactory(desc),
		validator:  validator,
		translator: schema.NewTranslator(),
		queue:      o.queue,
		lifecycle:  o.lifecycle,
		logger:     o.logger.With(slog.String("component", "table"), slog.String("table", desc.Name)),
	}, nil
}

// Name returns the table name.
func (t *Table[E, K]) Name() string { return t.desc.Name }

// Descriptor returns the table's column metadata.
func (t *Table[E, K]) Descriptor() *core.TableDescriptor { return t.desc }

// Create creates the table.
func (t *Table[E, K]) Create(ctx context.Context, ifNotExists bool) error {
	if err := t.conn.Exec(ctx, t.gen.CreateTable(t.desc.Name, t.desc.Keys, ifNotExists)); err != nil {
		return fmt.Errorf("failed to create table %s: %w", t.desc.Name, err)
	}
	t.logger.Info("table created", slog.Bool("if_not_exists", ifNotExists))

	if t.lifecycle != nil {
		if err := t.lifecycle.ExecuteCreateHooks(ctx, t.desc); err != nil {
			return fmt.Errorf("create hook failed for %s: %w", t.desc.Name, err)
		}
	}
	return nil
}

// Drop drops the table.
func (t *Table[E, K]) Drop(ctx context.Context) error {
	if err := t.conn.Exec(ctx, t.gen.DropTable(t.desc.Name)); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", t.desc.Name, err)
	}
	t.logger.Info("table dropped")
	t.publish(ctx, core.OperationDrop, "", nil)

	if t.lifecycle != nil {
		if err := t.lifecycle.ExecuteDropHooks(ctx, t.desc); err != nil {
			return fmt.Errorf("drop hook failed for %s: %w", t.desc.Name, err)
		}
	}
	return nil
}

// Insert writes e. With replace, an existing row with the same key is overwritten.
func (t *Table[E, K]) Insert(ctx context.Context, e *E, replace bool) error {
	return t.InsertAll(ctx, []*E{e}, replace)
}

// InsertAll writes every entity through one prepared statement. The batch
// is not atomic: entities before a failure stay committed.
func (t *Table[E, K]) InsertAll(ctx context.Context, entities []*E, replace bool) error {
	stmt, err := t.conn.Prepare(ctx, t.gen.InsertInto(t.desc.Name, replace))
	if err != nil {
		return fmt.Errorf("failed to insert into %s: %w", t.desc.Name, err)
	}
	defer t.closeStatement(stmt)

	b := newBinder(stmt, t.desc, t.validator, nil)
	for i, e := range entities {
		if i > 0 {
			if err := stmt.Reset(true); err != nil {
				return fmt.Errorf("failed to reset insert statement: %w", err)
			}
			b.reset()
		}
		if err := t.write(ctx, b, e); err != nil {
			return t.batchError("insert", i, len(entities), err)
		}
		t.publish(ctx, core.OperationInsert, t.keyString(t.mapper.Identity(e)), b.values)
	}
	return nil
}

// Update writes every non-key column of e to the row with e's key. With
// refresh, a Refresher mapper adjusts e first.
func (t *Table[E, K]) Update(ctx context.Context, e *E, refresh bool) error {
	return t.UpdateAll(ctx, []*E{e}, refresh)
}

// UpdateAll updates every entity through one prepared statement. The batch
// is not atomic.
func (t *Table[E, K]) UpdateAll(ctx context.Context, entities []*E, refresh bool) error {
	stmt, err := t.conn.Prepare(ctx, t.gen.UpdateSet(t.desc.Name, t.desc.Keys))
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", t.desc.Name, err)
	}
	defer t.closeStatement(stmt)

	refresher, _ := t.mapper.(Refresher[E])
	b := newBinder(stmt, t.desc, t.validator, updateRemap(t.desc))
	for i, e := range entities {
		if i > 0 {
			if err := stmt.Reset(true); err != nil {
				return fmt.Errorf("failed to reset update statement: %w", err)
			}
			b.reset()
		}
		if refresh && refresher != nil {
			refresher.Refresh(e)
		}
		if err := t.write(ctx, b, e); err != nil {
			return t.batchError("update", i, len(entities), err)
		}
		t.publish(ctx, core.OperationUpdate, t.keyString(t.mapper.Identity(e)), b.values)
	}
	return nil
}

func (t *Table[E, K]) write(ctx context.Context, b *binder, e *E) error {
	if e == nil {
		return fmt.Errorf("entity cannot be nil")
	}
	if err := t.mapper.Store(e, b); err != nil {
		return fmt.Errorf("failed to bind entity: %w", err)
	}
	if err := b.complete(t.desc); err != nil {
		return err
	}
	return t.conn.ExecStatement(ctx, b.Statement)
}

// Delete removes the row with key k. Deleting a missing row is not an error.
func (t *Table[E, K]) Delete(ctx context.Context, k K) error {
	return t.DeleteAll(ctx, []K{k})
}

// DeleteAll removes every keyed row through one prepared statement. The
// batch is not atomic.
func (t *Table[E, K]) DeleteAll(ctx context.Context, keys []K) error {
	stmt, err := t.conn.Prepare(ctx, t.gen.DeleteFrom(t.desc.Name, t.desc.Keys))
	if err != nil {
		return fmt.Errorf("failed to delete from %s: %w", t.desc.Name, err)
	}
	defer t.closeStatement(stmt)

	for i, k := range keys {
		if i > 0 {
			if err := stmt.Reset(true); err != nil {
				return fmt.Errorf("failed to reset delete statement: %w", err)
			}
		}
		if err := t.bindKey(stmt, k); err != nil {
			return t.batchError("delete", i, len(keys), err)
		}
		if err := t.conn.ExecStatement(ctx, stmt); err != nil {
			return t.batchError("delete", i, len(keys), err)
		}
		t.publish(ctx, core.OperationDelete, t.keyString(k), nil)
	}
	return nil
}

// Seek returns the entity with key k, or nil when no row matches.
func (t *Table[E, K]) Seek(ctx context.Context, k K) (*E, error) {
	stmt, err := t.conn.Prepare(ctx, t.gen.SeekFrom(t.desc.Name, t.desc.Keys))
	if err != nil {
		return nil, fmt.Errorf("failed to seek in %s: %w", t.desc.Name, err)
	}
	defer t.closeStatement(stmt)

	if err := t.bindKey(stmt, k); err != nil {
		return nil, err
	}
	ok, err := stmt.Step(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to seek in %s: %w", t.desc.Name, err)
	}
	if !ok {
		return nil, nil
	}

	e := new(E)
	if err := t.mapper.Restore(e, stmt); err != nil {
		return nil, fmt.Errorf("failed to restore %s row: %w", t.desc.Name, err)
	}
	return e, nil
}

// List returns the keys of the selected rows.
func (t *Table[E, K]) List(ctx context.Context, opts core.SelectOptions) ([]K, error) {
	stmt, err := t.conn.Prepare(ctx, t.gen.SelectKeysFrom(t.desc.Name, t.desc.Keys, opts))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", t.desc.Name, err)
	}
	defer t.closeStatement(stmt)

	keys := make([]K, 0)
	for {
		ok, err := stmt.Step(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", t.desc.Name, err)
		}
		if !ok {
			return keys, nil
		}
		k, err := t.mapper.RestoreKey(stmt)
		if err != nil {
			return nil, fmt.Errorf("failed to restore %s key: %w", t.desc.Name, err)
		}
		keys = append(keys, k)
	}
}

// Select returns the selected rows as entities.
func (t *Table[E, K]) Select(ctx context.Context, opts core.SelectOptions) ([]E, error) {
	stmt, err := t.conn.Prepare(ctx, t.gen.SelectFrom(t.desc.Name, opts))
	if err != nil {
		return nil, fmt.Errorf("failed to select from %s: %w", t.desc.Name, err)
	}
	defer t.closeStatement(stmt)

	entities := make([]E, 0)
	for {
		ok, err := stmt.Step(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to select from %s: %w", t.desc.Name, err)
		}
		if !ok {
			return entities, nil
		}
		var e E
		if err := t.mapper.Restore(&e, stmt); err != nil {
			return nil, fmt.Errorf("failed to restore %s row: %w", t.desc.Name, err)
		}
		entities = append(entities, e)
	}
}

// Aggregate computes fn over column. A nil column is only accepted for
// count, where it counts all rows. The result is nil when fn has no
// value, e.g. the average of an empty table.
func (t *Table[E, K]) Aggregate(ctx context.Context, fn core.AggregateFunc, column *core.Column, distinct bool) (*float64, error) {
	if !fn.Valid() {
		return nil, fmt.Errorf("unknown aggregate %q", fn)
	}
	if fn == core.AggregateCount {
		n, err := t.Count(ctx, column, distinct)
		if err != nil {
			return nil, err
		}
		f := float64(n)
		return &f, nil
	}
	if column == nil {
		return nil, fmt.Errorf("%s on %s: %w", fn, t.desc.Name, core.ErrColumnRequired)
	}
	if _, ok := t.desc.Column(column.Name); !ok {
		return nil, fmt.Errorf("column %s is not part of table %s", column.Name, t.desc.Name)
	}

	v, err := t.conn.QueryMaybeDouble(ctx, t.gen.TableAggregate(t.desc.Name, fn, column, distinct))
	if err != nil {
		return nil, fmt.Errorf("failed to compute %s on %s: %w", fn, t.desc.Name, err)
	}
	return v, nil
}

// Count counts all rows, or the non-NULL values of column.
func (t *Table[E, K]) Count(ctx context.Context, column *core.Column, distinct bool) (int64, error) {
	n, err := t.conn.QueryInt64(ctx, t.gen.TableCount(t.desc.Name, column, distinct))
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", t.desc.Name, err)
	}
	return n, nil
}

// Average returns the mean of column, or nil for no values.
func (t *Table[E, K]) Average(ctx context.Context, column *core.Column, distinct bool) (*float64, error) {
	return t.Aggregate(ctx, core.AggregateAverage, column, distinct)
}

// Sum returns the total of column, or nil for no values.
func (t *Table[E, K]) Sum(ctx context.Context, column *core.Column, distinct bool) (*float64, error) {
	return t.Aggregate(ctx, core.AggregateSum, column, distinct)
}

// Min returns the smallest value of column, or nil for no values.
func (t *Table[E, K]) Min(ctx context.Context, column *core.Column, distinct bool) (*float64, error) {
	return t.Aggregate(ctx, core.AggregateMin, column, distinct)
}

// Max returns the largest value of column, or nil for no values.
func (t *Table[E, K]) Max(ctx context.Context, column *core.Column, distinct bool) (*float64, error) {
	return t.Aggregate(ctx, core.AggregateMax, column, distinct)
}

func (t *Table[E, K]) bindKey(stmt core.Statement, k K) error {
	values := t.mapper.KeyValues(k)
	if len(values) != len(t.desc.Keys) {
		return &core.SchemaError{Position: -1, Want: fmt.Sprintf("%d key values", len(t.desc.Keys)), Got: fmt.Sprint(len(values))}
	}
	for i, v := range values {
		if v.IsNull() {
			return &core.SchemaError{Position: i, Column: t.desc.Keys[i], Want: "non-NULL key", Got: "NULL"}
		}
		if err := stmt.Bind(i, v); err != nil {
			return fmt.Errorf("failed to bind key: %w", err)
		}
	}
	return nil
}

// keyString formats k the way the change feed and the mirror address rows.
func (t *Table[E, K]) keyString(k K) string {
	values := t.mapper.KeyValues(k)
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprint(v.Interface())
	}
	return strings.Join(parts, ":")
}

func (t *Table[E, K]) batchError(op string, i, n int, err error) error {
	if n == 1 {
		return fmt.Errorf("failed to %s %s row: %w", op, t.desc.Name, err)
	}
	return fmt.Errorf("failed to %s %s row %d of %d: %w", op, t.desc.Name, i+1, n, err)
}

func (t *Table[E, K]) closeStatement(stmt core.Statement) {
	if err := stmt.Close(); err != nil {
		t.logger.Warn("failed to close statement", slog.String("sql", stmt.SQL()), slog.Any("error", err))
	}
}

// publish hands a committed write to the change queue. The write already
// reached the database, so a failed publish is logged and not returned.
func (t *Table[E, K]) publish(ctx context.Context, op core.OperationType, key string, values []core.Value) {
	if t.queue == nil {
		return
	}

	event := &core.ChangeEvent{
		ID:        uuid.New().String(),
		Table:     t.desc.Name,
		Operation: op,
		Key:       key,
		Timestamp: time.Now(),
	}
	if values != nil {
		record, err := t.translator.Record(t.desc, values)
		if err != nil {
			t.logger.Warn("failed to build change record", slog.Any("error", err))
			return
		}
		event.Data = record
	}

	if err := t.queue.Enqueue(ctx, event); err != nil {
		t.logger.Warn("failed to publish change event",
			slog.String("operation", string(op)),
			slog.String("key", key),
			slog.Any("error", err))
		return
	}
	t.logger.Debug("change event published", slog.String("id", event.ID), slog.String("operation", string(op)))
}
